package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/kunchev/go-linux-installer/pkg/errdefs"
	"github.com/kunchev/go-linux-installer/pkg/logger"
)

const (
	stagingPrefix = ".go-install-"

	// stagingStaleAfter is how old an abandoned staging directory must be
	// before a later run removes it. Younger ones may belong to a running
	// install.
	stagingStaleAfter = time.Hour
)

// Installer unpacks verified release archives into the install directory.
// A new toolchain replaces a previous one only after the whole archive
// extracted cleanly into a staging directory next to it, so a failed
// install leaves the old toolchain untouched.
type Installer struct {
	logger *logger.Logger
}

// NewInstaller creates an Installer.
func NewInstaller() *Installer {
	return &Installer{logger: logger.NewLogger("archive")}
}

// Install verifies archivePath against sum when one is known, extracts the
// toolchain and atomically swaps it into installDir.
func (i *Installer) Install(ctx context.Context, archivePath, sum, installDir string) error {
	if sum != "" {
		if err := VerifyChecksum(archivePath, sum); err != nil {
			return err
		}
	} else {
		i.logger.WithFields(logger.Fields{
			"archive": filepath.Base(archivePath),
		}).Debug("No checksum known for archive, skipping verification")
	}

	parent := filepath.Dir(installDir)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return classifyFS("create", parent, err)
	}
	i.sweepStaging(parent)

	staging := filepath.Join(parent, stagingPrefix+uuid.NewString())
	if err := os.Mkdir(staging, 0755); err != nil {
		return classifyFS("create", staging, err)
	}
	defer os.RemoveAll(staging)

	if err := extractTarGz(ctx, archivePath, staging); err != nil {
		return err
	}

	// A toolchain tree always carries bin/go. Anything else means the
	// archive was not a Go distribution.
	if _, err := os.Stat(filepath.Join(staging, "bin", "go")); err != nil {
		return fmt.Errorf("%w: archive carries no go binary", errdefs.ErrExtraction)
	}

	// Point of no return: drop the old tree and move the new one in. Both
	// live under the same parent so the rename cannot cross filesystems.
	if err := os.RemoveAll(installDir); err != nil {
		return classifyFS("remove previous install at", installDir, err)
	}
	if err := os.Rename(staging, installDir); err != nil {
		return classifyFS("activate install at", installDir, err)
	}

	i.logger.WithFields(logger.Fields{
		"archive": filepath.Base(archivePath),
		"dir":     installDir,
	}).Info("Toolchain installed")
	return nil
}

// sweepStaging removes staging directories abandoned by interrupted runs.
func (i *Installer) sweepStaging(parent string) {
	matches, err := filepath.Glob(filepath.Join(parent, stagingPrefix+"*"))
	if err != nil {
		return
	}
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || time.Since(info.ModTime()) < stagingStaleAfter {
			continue
		}
		if err := os.RemoveAll(m); err == nil {
			i.logger.WithFields(logger.Fields{"dir": m}).Debug("Removed stale staging directory")
		}
	}
}

// classifyFS maps a filesystem failure to the matching error kind.
func classifyFS(op, path string, err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %s %s: %w", errdefs.ErrPermission, op, path, err)
	}
	return fmt.Errorf("%w: %s %s: %w", errdefs.ErrDisk, op, path, err)
}
