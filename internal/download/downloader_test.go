package download

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kunchev/go-linux-installer/pkg/errdefs"
)

func listPartials(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*"+partialSuffix))
	require.NoError(t, err)
	return matches
}

func TestFetchSuccess(t *testing.T) {
	payload := []byte("pretend this is a go release archive")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	var lastDownloaded, lastTotal int64
	dir := t.TempDir()
	d := NewDownloader(dir,
		WithHTTPClient(srv.Client()),
		WithProgress(func(downloaded, total int64) {
			lastDownloaded, lastTotal = downloaded, total
		}),
	)

	path, err := d.Fetch(context.Background(), Target{
		URL:      srv.URL + "/go1.21.4.linux-amd64.tar.gz",
		Filename: "go1.21.4.linux-amd64.tar.gz",
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "go1.21.4.linux-amd64.tar.gz"), path)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	assert.Equal(t, int64(len(payload)), lastDownloaded)
	assert.Equal(t, int64(len(payload)), lastTotal)
	assert.Empty(t, listPartials(t, dir))
}

func TestFetchServerErrorRetriesThenFails(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := NewDownloader(dir, WithHTTPClient(srv.Client()), WithRetries(2))

	_, err := d.Fetch(context.Background(), Target{URL: srv.URL + "/a.tar.gz", Filename: "a.tar.gz"})
	assert.ErrorIs(t, err, errdefs.ErrNetwork)
	assert.EqualValues(t, 3, atomic.LoadInt32(&hits))

	assert.NoFileExists(t, filepath.Join(dir, "a.tar.gz"))
	assert.Empty(t, listPartials(t, dir))
}

func TestFetchConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	d := NewDownloader(t.TempDir(), WithRetries(0))
	_, err := d.Fetch(context.Background(), Target{URL: url + "/a.tar.gz", Filename: "a.tar.gz"})
	assert.ErrorIs(t, err, errdefs.ErrNetwork)
}

func TestFetchTruncatedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "4096")
		_, _ = w.Write(make([]byte, 128))
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := NewDownloader(dir, WithHTTPClient(srv.Client()), WithRetries(0))

	_, err := d.Fetch(context.Background(), Target{URL: srv.URL + "/a.tar.gz", Filename: "a.tar.gz"})
	assert.ErrorIs(t, err, errdefs.ErrNetwork)

	assert.NoFileExists(t, filepath.Join(dir, "a.tar.gz"))
	assert.Empty(t, listPartials(t, dir))
}

func TestFetchDownloadDirIsAFile(t *testing.T) {
	parent := t.TempDir()
	blocked := filepath.Join(parent, "downloads")
	require.NoError(t, os.WriteFile(blocked, []byte("in the way"), 0644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data"))
	}))
	defer srv.Close()

	d := NewDownloader(blocked, WithHTTPClient(srv.Client()))
	_, err := d.Fetch(context.Background(), Target{URL: srv.URL + "/a.tar.gz", Filename: "a.tar.gz"})
	assert.ErrorIs(t, err, errdefs.ErrDisk)
}

func TestFetchCanceledMidTransfer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			return
		}
		w.Header().Set("Content-Length", fmt.Sprint(1024*1024))
		for i := 0; i < 128; i++ {
			if _, err := w.Write(make([]byte, 8192)); err != nil {
				return
			}
			flusher.Flush()
			time.Sleep(5 * time.Millisecond)
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	dir := t.TempDir()
	d := NewDownloader(dir,
		WithHTTPClient(srv.Client()),
		WithRetries(0),
		WithProgress(func(downloaded, total int64) {
			if downloaded > 0 {
				cancel()
			}
		}),
	)

	_, err := d.Fetch(ctx, Target{URL: srv.URL + "/a.tar.gz", Filename: "a.tar.gz"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	assert.NoFileExists(t, filepath.Join(dir, "a.tar.gz"))
	assert.Empty(t, listPartials(t, dir))
}

func TestFetchSweepsStalePartials(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "go1.20.0.linux-amd64.tar.gz.dead"+partialSuffix)
	require.NoError(t, os.WriteFile(stale, []byte("interrupted"), 0644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data"))
	}))
	defer srv.Close()

	d := NewDownloader(dir, WithHTTPClient(srv.Client()))
	_, err := d.Fetch(context.Background(), Target{URL: srv.URL + "/a.tar.gz", Filename: "a.tar.gz"})
	require.NoError(t, err)

	assert.NoFileExists(t, stale)
	assert.Empty(t, listPartials(t, dir))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.0 KiB", formatBytes(1024))
	assert.Equal(t, "64.0 MiB", formatBytes(64*1024*1024))
}
