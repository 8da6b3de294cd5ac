// Package errdefs defines the error kinds surfaced by the installer and
// their mapping to process exit codes.
package errdefs

import "errors"

// Error kinds. Every error returned by a component wraps exactly one of
// these so callers can classify failures with errors.Is.
var (
	// ErrInvalidVersion indicates a malformed version string or a version
	// absent from the release catalog.
	ErrInvalidVersion = errors.New("invalid go version")

	// ErrNetwork indicates an HTTP request failed or returned a
	// non-success status.
	ErrNetwork = errors.New("network error")

	// ErrDisk indicates a local filesystem read or write failed.
	ErrDisk = errors.New("disk error")

	// ErrExtraction indicates the downloaded archive is corrupt or could
	// not be unpacked.
	ErrExtraction = errors.New("extraction error")

	// ErrPermission indicates missing privileges for a filesystem path.
	ErrPermission = errors.New("permission denied")

	// ErrConfigWrite indicates the shell profile could not be updated.
	ErrConfigWrite = errors.New("config write error")

	// ErrUsage indicates invalid command line arguments.
	ErrUsage = errors.New("usage error")
)

// Exit codes reported by the command line front end. These are stable and
// documented, scripts may rely on them.
const (
	ExitOK             = 0
	ExitFailure        = 1
	ExitUsage          = 2
	ExitInvalidVersion = 3
	ExitNetwork        = 4
	ExitDisk           = 5
	ExitExtraction     = 6
	ExitPermission     = 7
	ExitConfigWrite    = 8
)

// ExitCode maps an error chain to the exit code of the first recognized
// kind. A nil error maps to ExitOK, an unclassified error to ExitFailure.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrUsage):
		return ExitUsage
	case errors.Is(err, ErrInvalidVersion):
		return ExitInvalidVersion
	case errors.Is(err, ErrNetwork):
		return ExitNetwork
	case errors.Is(err, ErrDisk):
		return ExitDisk
	case errors.Is(err, ErrExtraction):
		return ExitExtraction
	case errors.Is(err, ErrPermission):
		return ExitPermission
	case errors.Is(err, ErrConfigWrite):
		return ExitConfigWrite
	default:
		return ExitFailure
	}
}
