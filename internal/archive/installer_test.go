package archive

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kunchev/go-linux-installer/pkg/errdefs"
)

type tarEntry struct {
	name     string
	body     string
	mode     int64
	typeflag byte
	linkname string
}

func file(name, body string) tarEntry {
	return tarEntry{name: name, body: body, mode: 0755, typeflag: tar.TypeReg}
}

func dir(name string) tarEntry {
	return tarEntry{name: name, mode: 0755, typeflag: tar.TypeDir}
}

func symlink(name, target string) tarEntry {
	return tarEntry{name: name, mode: 0777, typeflag: tar.TypeSymlink, linkname: target}
}

// writeArchive builds a tar.gz on disk and returns its path and hex sha256.
func writeArchive(t *testing.T, entries ...tarEntry) (string, string) {
	t.Helper()

	var buf bytes.Buffer
	gzw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gzw)
	for _, e := range entries {
		hdr := &tar.Header{
			Name:     e.name,
			Mode:     e.mode,
			Typeflag: e.typeflag,
			Linkname: e.linkname,
			Size:     int64(len(e.body)),
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if e.typeflag == tar.TypeReg {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gzw.Close())

	path := filepath.Join(t.TempDir(), "archive.tar.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	sum := sha256.Sum256(buf.Bytes())
	return path, hex.EncodeToString(sum[:])
}

func toolchainEntries(marker string) []tarEntry {
	return []tarEntry{
		dir("go/"),
		dir("go/bin/"),
		file("go/bin/go", "go binary "+marker),
		file("go/bin/gofmt", "gofmt binary "+marker),
		file("go/VERSION", marker),
		dir("go/src/"),
		file("go/src/runtime.go", "package runtime"),
	}
}

func TestInstallSuccess(t *testing.T) {
	archive, sum := writeArchive(t, toolchainEntries("go1.21.4")...)
	installDir := filepath.Join(t.TempDir(), "sdk", "go")

	err := NewInstaller().Install(context.Background(), archive, sum, installDir)
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(installDir, "bin", "go"))
	require.NoError(t, err)
	assert.Equal(t, "go binary go1.21.4", string(got))

	info, err := os.Stat(filepath.Join(installDir, "bin", "go"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())

	assert.FileExists(t, filepath.Join(installDir, "VERSION"))
	assert.FileExists(t, filepath.Join(installDir, "src", "runtime.go"))

	// no staging leftovers next to the install
	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(installDir), stagingPrefix+"*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestInstallWithoutChecksum(t *testing.T) {
	archive, _ := writeArchive(t, toolchainEntries("go1.21.4")...)
	installDir := filepath.Join(t.TempDir(), "go")

	err := NewInstaller().Install(context.Background(), archive, "", installDir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(installDir, "bin", "go"))
}

func TestInstallTwiceConverges(t *testing.T) {
	archive, sum := writeArchive(t, toolchainEntries("go1.21.4")...)
	installDir := filepath.Join(t.TempDir(), "go")
	installer := NewInstaller()

	require.NoError(t, installer.Install(context.Background(), archive, sum, installDir))

	// a file the archive does not carry must not survive the reinstall
	extra := filepath.Join(installDir, "bin", "stale-tool")
	require.NoError(t, os.WriteFile(extra, []byte("old"), 0755))

	require.NoError(t, installer.Install(context.Background(), archive, sum, installDir))

	got, err := os.ReadFile(filepath.Join(installDir, "bin", "go"))
	require.NoError(t, err)
	assert.Equal(t, "go binary go1.21.4", string(got))
	assert.NoFileExists(t, extra)
}

func TestInstallReplacesOldVersion(t *testing.T) {
	oldArchive, oldSum := writeArchive(t, toolchainEntries("go1.20.0")...)
	newArchive, newSum := writeArchive(t, toolchainEntries("go1.21.4")...)
	installDir := filepath.Join(t.TempDir(), "go")
	installer := NewInstaller()

	require.NoError(t, installer.Install(context.Background(), oldArchive, oldSum, installDir))
	require.NoError(t, installer.Install(context.Background(), newArchive, newSum, installDir))

	got, err := os.ReadFile(filepath.Join(installDir, "VERSION"))
	require.NoError(t, err)
	assert.Equal(t, "go1.21.4", string(got))
}

func TestInstallCorruptArchiveKeepsPrevious(t *testing.T) {
	goodArchive, goodSum := writeArchive(t, toolchainEntries("go1.20.0")...)
	installDir := filepath.Join(t.TempDir(), "go")
	installer := NewInstaller()
	require.NoError(t, installer.Install(context.Background(), goodArchive, goodSum, installDir))

	corrupt := filepath.Join(t.TempDir(), "corrupt.tar.gz")
	require.NoError(t, os.WriteFile(corrupt, []byte("this is not a gzip stream"), 0644))

	err := installer.Install(context.Background(), corrupt, "", installDir)
	assert.ErrorIs(t, err, errdefs.ErrExtraction)

	got, rerr := os.ReadFile(filepath.Join(installDir, "VERSION"))
	require.NoError(t, rerr)
	assert.Equal(t, "go1.20.0", string(got), "previous install must survive")

	leftovers, gerr := filepath.Glob(filepath.Join(filepath.Dir(installDir), stagingPrefix+"*"))
	require.NoError(t, gerr)
	assert.Empty(t, leftovers)
}

func TestInstallChecksumMismatchKeepsPrevious(t *testing.T) {
	goodArchive, goodSum := writeArchive(t, toolchainEntries("go1.20.0")...)
	installDir := filepath.Join(t.TempDir(), "go")
	installer := NewInstaller()
	require.NoError(t, installer.Install(context.Background(), goodArchive, goodSum, installDir))

	newArchive, _ := writeArchive(t, toolchainEntries("go1.21.4")...)
	wrongSum := "0000000000000000000000000000000000000000000000000000000000000000"

	err := installer.Install(context.Background(), newArchive, wrongSum, installDir)
	assert.ErrorIs(t, err, errdefs.ErrExtraction)

	got, rerr := os.ReadFile(filepath.Join(installDir, "VERSION"))
	require.NoError(t, rerr)
	assert.Equal(t, "go1.20.0", string(got))
}

func TestInstallRejectsTraversal(t *testing.T) {
	entries := append(toolchainEntries("go1.21.4"), file("go/../escape.txt", "outside"))
	archive, sum := writeArchive(t, entries...)

	parent := t.TempDir()
	installDir := filepath.Join(parent, "nest", "go")

	err := NewInstaller().Install(context.Background(), archive, sum, installDir)
	assert.ErrorIs(t, err, errdefs.ErrExtraction)
	assert.NoFileExists(t, filepath.Join(parent, "nest", "escape.txt"))
	assert.NoFileExists(t, filepath.Join(parent, "escape.txt"))
}

func TestInstallRejectsEscapingSymlink(t *testing.T) {
	entries := append(toolchainEntries("go1.21.4"), symlink("go/bin/evil", "../../../../etc/passwd"))
	archive, sum := writeArchive(t, entries...)
	installDir := filepath.Join(t.TempDir(), "go")

	err := NewInstaller().Install(context.Background(), archive, sum, installDir)
	assert.ErrorIs(t, err, errdefs.ErrExtraction)
	assert.NoDirExists(t, installDir)
}

func TestInstallKeepsRelativeSymlink(t *testing.T) {
	entries := append(toolchainEntries("go1.21.4"), symlink("go/bin/go-latest", "go"))
	archive, sum := writeArchive(t, entries...)
	installDir := filepath.Join(t.TempDir(), "go")

	require.NoError(t, NewInstaller().Install(context.Background(), archive, sum, installDir))

	target, err := os.Readlink(filepath.Join(installDir, "bin", "go-latest"))
	require.NoError(t, err)
	assert.Equal(t, "go", target)
}

func TestInstallArchiveWithoutToolchain(t *testing.T) {
	archive, sum := writeArchive(t, dir("go/"), file("go/README", "not a toolchain"))
	installDir := filepath.Join(t.TempDir(), "go")

	err := NewInstaller().Install(context.Background(), archive, sum, installDir)
	assert.ErrorIs(t, err, errdefs.ErrExtraction)
	assert.NoDirExists(t, installDir)
}

func TestInstallIgnoresForeignTopLevelEntries(t *testing.T) {
	entries := append([]tarEntry{file("pax_global_header", "meta")}, toolchainEntries("go1.21.4")...)
	archive, sum := writeArchive(t, entries...)
	installDir := filepath.Join(t.TempDir(), "go")

	require.NoError(t, NewInstaller().Install(context.Background(), archive, sum, installDir))
	assert.NoFileExists(t, filepath.Join(installDir, "pax_global_header"))
}

func TestInstallSweepsStaleStaging(t *testing.T) {
	archive, sum := writeArchive(t, toolchainEntries("go1.21.4")...)
	parent := t.TempDir()
	installDir := filepath.Join(parent, "go")

	stale := filepath.Join(parent, stagingPrefix+"dead")
	require.NoError(t, os.MkdirAll(stale, 0755))
	old := time.Now().Add(-2 * stagingStaleAfter)
	require.NoError(t, os.Chtimes(stale, old, old))

	fresh := filepath.Join(parent, stagingPrefix+"alive")
	require.NoError(t, os.MkdirAll(fresh, 0755))

	require.NoError(t, NewInstaller().Install(context.Background(), archive, sum, installDir))

	assert.NoDirExists(t, stale, "stale staging must be swept")
	assert.DirExists(t, fresh, "recent staging may belong to a running install")
}

func TestVerifyChecksum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob")
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0644))

	sum := sha256.Sum256([]byte("payload"))
	good := hex.EncodeToString(sum[:])

	assert.NoError(t, VerifyChecksum(path, good))

	err := VerifyChecksum(path, "deadbeef")
	assert.ErrorIs(t, err, errdefs.ErrExtraction)

	err = VerifyChecksum(filepath.Join(t.TempDir(), "missing"), good)
	assert.ErrorIs(t, err, errdefs.ErrDisk)
}
