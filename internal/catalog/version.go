package catalog

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/kunchev/go-linux-installer/pkg/errdefs"
)

var (
	releasePattern    = regexp.MustCompile(`^\d+\.\d+(\.\d+)?$`)
	prereleasePattern = regexp.MustCompile(`^(\d+\.\d+(?:\.\d+)?)(rc|beta)(\d+)$`)
)

// Normalize strips the optional "go" prefix and surrounding space from a
// user supplied version token, so "go1.21.4" and "1.21.4" are equivalent.
func Normalize(version string) string {
	return strings.TrimPrefix(strings.TrimSpace(version), "go")
}

// Validate checks that v names a well formed release version such as
// "1.21.4" or "1.20".
func Validate(v string) error {
	if !releasePattern.MatchString(v) {
		return fmt.Errorf("%w: %q is not a release version", errdefs.ErrInvalidVersion, v)
	}
	return nil
}

// parseRelease turns a release token into a comparable semantic version.
// Tokens like "1.21rc2" sort as prereleases of their line.
func parseRelease(v string) (*semver.Version, bool) {
	if m := prereleasePattern.FindStringSubmatch(v); m != nil {
		v = fmt.Sprintf("%s-%s.%s", m[1], m[2], m[3])
	}
	sv, err := semver.NewVersion(v)
	if err != nil {
		return nil, false
	}
	return sv, true
}

// sortEntries orders entries newest first. Tokens that do not parse sink
// to the end in their original order.
func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		vi, oki := parseRelease(entries[i].Version)
		vj, okj := parseRelease(entries[j].Version)
		if oki && okj {
			return vi.GreaterThan(vj)
		}
		return oki && !okj
	})
}
