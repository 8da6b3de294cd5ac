package errdefs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"usage", ErrUsage, ExitUsage},
		{"invalid version", ErrInvalidVersion, ExitInvalidVersion},
		{"network", ErrNetwork, ExitNetwork},
		{"disk", ErrDisk, ExitDisk},
		{"extraction", ErrExtraction, ExitExtraction},
		{"permission", ErrPermission, ExitPermission},
		{"config write", ErrConfigWrite, ExitConfigWrite},
		{"unclassified", errors.New("boom"), ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestExitCodeWrapped(t *testing.T) {
	err := fmt.Errorf("fetch https://example.com: %w", ErrNetwork)
	assert.Equal(t, ExitNetwork, ExitCode(err))

	// kind stays detectable through multiple wrapping layers
	err = fmt.Errorf("install go 1.21.0: %w", fmt.Errorf("%w: status 500", ErrNetwork))
	assert.Equal(t, ExitNetwork, ExitCode(err))
	assert.True(t, errors.Is(err, ErrNetwork))
}

func TestExitCodeKindAndCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("%w: GET /dl/: %w", ErrNetwork, cause)

	assert.Equal(t, ExitNetwork, ExitCode(err))
	assert.True(t, errors.Is(err, cause))
}
