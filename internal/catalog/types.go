package catalog

import (
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the official Go downloads page. Release archives
	// live directly beneath it.
	DefaultBaseURL = "https://go.dev/dl"

	// Platform is the only distribution this tool installs.
	Platform = "linux-amd64"

	// DefaultFetchTimeout bounds release page fetches.
	DefaultFetchTimeout = 30 * time.Second

	archivePrefix = "go"
	archiveSuffix = ".linux-amd64.tar.gz"
)

// HTTPClient is the transport used for catalog fetches. *http.Client
// satisfies it, tests substitute fakes.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Entry describes one downloadable Go release for linux-amd64.
type Entry struct {
	Version  string `yaml:"version"`
	SHA256   string `yaml:"sha256,omitempty"`
	Filename string `yaml:"-"`
	URL      string `yaml:"-"`
}

// ArchiveFilename returns the distribution filename for a version token,
// e.g. "go1.21.4.linux-amd64.tar.gz".
func ArchiveFilename(version string) string {
	return archivePrefix + version + archiveSuffix
}

// ArchiveURL returns the canonical download URL for a version under base.
func ArchiveURL(base, version string) string {
	return strings.TrimRight(base, "/") + "/" + ArchiveFilename(version)
}
