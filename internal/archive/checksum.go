package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kunchev/go-linux-installer/pkg/errdefs"
)

// VerifyChecksum compares the SHA256 digest of the file at path with the
// expected hex sum. A mismatch means the archive is corrupt.
func VerifyChecksum(path, expected string) error {
	f, err := os.Open(path)
	if err != nil {
		return classifyFS("open", path, err)
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return classifyFS("read", path, err)
	}

	actual := hex.EncodeToString(hasher.Sum(nil))
	if !strings.EqualFold(actual, expected) {
		return fmt.Errorf("%w: checksum mismatch for %s: expected %s, got %s",
			errdefs.ErrExtraction, filepath.Base(path), expected, actual)
	}
	return nil
}
