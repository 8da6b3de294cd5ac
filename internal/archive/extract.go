package archive

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kunchev/go-linux-installer/pkg/errdefs"
)

const copyBufferSize = 32 * 1024

// extractTarGz unpacks a Go distribution archive into dest, stripping the
// leading "go/" directory so dest itself becomes the toolchain root.
func extractTarGz(ctx context.Context, src, dest string) error {
	f, err := os.Open(src)
	if err != nil {
		return classifyFS("open", src, err)
	}
	defer f.Close()

	gzr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("%w: %s is not a gzip archive: %w", errdefs.ErrExtraction, filepath.Base(src), err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	entries := 0
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("extraction canceled: %w", err)
		}

		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: read tar: %w", errdefs.ErrExtraction, err)
		}

		name, ok := splitRoot(header.Name)
		if !ok {
			continue
		}

		if err := extractEntry(tr, header, name, dest); err != nil {
			return err
		}
		entries++
	}

	if entries == 0 {
		return fmt.Errorf("%w: archive holds no toolchain entries", errdefs.ErrExtraction)
	}
	return nil
}

// splitRoot strips the archive's top level "go" directory from an entry
// name. Entries outside it do not belong to the toolchain. The remainder
// is deliberately not cleaned, traversal attempts must reach the path
// check and fail loudly.
func splitRoot(name string) (string, bool) {
	name = strings.TrimPrefix(name, "./")
	if name == "go" || name == "go/" {
		return "", false
	}
	rest, found := strings.CutPrefix(name, "go/")
	if !found || rest == "" {
		return "", false
	}
	return rest, true
}

func extractEntry(tr *tar.Reader, header *tar.Header, name, dest string) error {
	targetPath := filepath.Join(dest, name)
	if !isSafePath(targetPath, dest) {
		return fmt.Errorf("%w: illegal entry path: %s", errdefs.ErrExtraction, header.Name)
	}

	switch header.Typeflag {
	case tar.TypeDir:
		if err := os.MkdirAll(targetPath, header.FileInfo().Mode().Perm()); err != nil {
			return classifyFS("create dir", targetPath, err)
		}
	case tar.TypeReg:
		return extractFile(tr, header, targetPath)
	case tar.TypeSymlink:
		return extractSymlink(header, targetPath, dest)
	}
	return nil
}

func extractFile(tr *tar.Reader, header *tar.Header, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return classifyFS("create dir", filepath.Dir(target), err)
	}

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, header.FileInfo().Mode().Perm())
	if err != nil {
		return classifyFS("create file", target, err)
	}
	defer out.Close()

	// Read failures mean the archive is broken, write failures mean the
	// disk is. Keep them apart.
	buf := make([]byte, copyBufferSize)
	for {
		n, rerr := tr.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return classifyFS("write file", target, werr)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return fmt.Errorf("%w: read entry %s: %w", errdefs.ErrExtraction, header.Name, rerr)
		}
	}
	return nil
}

func extractSymlink(header *tar.Header, target, dest string) error {
	link := header.Linkname
	if filepath.IsAbs(link) {
		return fmt.Errorf("%w: absolute symlink %s -> %s", errdefs.ErrExtraction, header.Name, link)
	}
	if !isSafePath(filepath.Join(filepath.Dir(target), link), dest) {
		return fmt.Errorf("%w: symlink escapes archive root: %s -> %s", errdefs.ErrExtraction, header.Name, link)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return classifyFS("create dir", filepath.Dir(target), err)
	}
	os.Remove(target)
	if err := os.Symlink(link, target); err != nil {
		return classifyFS("create symlink", target, err)
	}
	return nil
}

func isSafePath(p, dest string) bool {
	cleanDest := filepath.Clean(dest) + string(os.PathSeparator)
	return strings.HasPrefix(filepath.Clean(p), cleanDest)
}
