package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/kunchev/go-linux-installer/pkg/errdefs"
	"github.com/kunchev/go-linux-installer/pkg/logger"
)

const (
	// DefaultTimeout bounds a single archive request.
	DefaultTimeout = 5 * time.Minute

	// DefaultRetries is how often a failed transfer is attempted again.
	DefaultRetries = 1

	partialSuffix  = ".partial"
	copyBufferSize = 32 * 1024
	retryDelay     = 2 * time.Second
	maxRedirects   = 5
)

// NewHTTPClient returns the transport used for archive downloads, with a
// bounded timeout and redirect chain.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
}

// HTTPClient is the transport used for archive downloads. *http.Client
// satisfies it, tests substitute fakes.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Target names one archive to fetch and the filename to store it under.
type Target struct {
	URL      string
	Filename string
}

// Downloader streams release archives into the downloads directory. An
// archive appears under its final name only after a fully successful
// transfer, interrupted runs leave at most uniquely named partial files
// which the next run sweeps away.
type Downloader struct {
	client   HTTPClient
	dir      string
	retries  int
	progress ProgressFunc
	logger   *logger.Logger
}

// Option tweaks a Downloader.
type Option func(*Downloader)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c HTTPClient) Option {
	return func(d *Downloader) {
		if c != nil {
			d.client = c
		}
	}
}

// WithRetries sets how often a failed transfer is attempted again.
func WithRetries(n int) Option {
	return func(d *Downloader) {
		if n >= 0 {
			d.retries = n
		}
	}
}

// WithProgress installs a progress callback for running transfers.
func WithProgress(fn ProgressFunc) Option {
	return func(d *Downloader) {
		d.progress = fn
	}
}

// NewDownloader creates a Downloader storing archives under dir.
func NewDownloader(dir string, opts ...Option) *Downloader {
	d := &Downloader{
		client:  NewHTTPClient(DefaultTimeout),
		dir:     dir,
		retries: DefaultRetries,
		logger:  logger.NewLogger("download"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Fetch downloads the target archive and returns its local path. Transient
// network failures are retried, disk failures are not.
func (d *Downloader) Fetch(ctx context.Context, target Target) (string, error) {
	if target.URL == "" || target.Filename == "" {
		return "", fmt.Errorf("%w: empty download target", errdefs.ErrNetwork)
	}

	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return "", fmt.Errorf("%w: create downloads dir %s: %w", errdefs.ErrDisk, d.dir, err)
	}
	d.sweepPartials()

	finalPath := filepath.Join(d.dir, target.Filename)

	var lastErr error
	for attempt := 0; attempt <= d.retries; attempt++ {
		if attempt > 0 {
			d.logger.WithFields(logger.Fields{
				"url":     target.URL,
				"attempt": attempt + 1,
			}).Warn("Retrying download")

			select {
			case <-ctx.Done():
				return "", fmt.Errorf("download canceled: %w", ctx.Err())
			case <-time.After(time.Duration(attempt) * retryDelay):
			}
		}

		lastErr = d.fetchOnce(ctx, target.URL, finalPath)
		if lastErr == nil {
			d.logger.WithFields(logger.Fields{
				"url":  target.URL,
				"file": finalPath,
			}).Info("Download complete")
			return finalPath, nil
		}

		// Only network failures are worth another attempt.
		if !errors.Is(lastErr, errdefs.ErrNetwork) || ctx.Err() != nil {
			break
		}
	}
	return "", lastErr
}

func (d *Downloader) fetchOnce(ctx context.Context, url, finalPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: build request for %s: %w", errdefs.ErrNetwork, url, err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("download canceled: %w", ctx.Err())
		}
		return fmt.Errorf("%w: get %s: %w", errdefs.ErrNetwork, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: get %s: HTTP %d", errdefs.ErrNetwork, url, resp.StatusCode)
	}

	partial := finalPath + "." + uuid.NewString() + partialSuffix
	out, err := os.OpenFile(partial, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("%w: create %s: %w", errdefs.ErrDisk, partial, err)
	}

	keep := false
	defer func() {
		out.Close()
		if !keep {
			os.Remove(partial)
		}
	}()

	var body io.Reader = resp.Body
	if d.progress != nil {
		body = newCountingReader(resp.Body, resp.ContentLength, d.progress)
	}

	if err := copyWithContext(ctx, out, body); err != nil {
		return err
	}

	if err := out.Sync(); err != nil {
		return fmt.Errorf("%w: sync %s: %w", errdefs.ErrDisk, partial, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", errdefs.ErrDisk, partial, err)
	}

	if err := os.Rename(partial, finalPath); err != nil {
		return fmt.Errorf("%w: finalize %s: %w", errdefs.ErrDisk, finalPath, err)
	}
	keep = true
	return nil
}

// copyWithContext streams src into dst in fixed chunks, honoring ctx
// cancellation. Read failures classify as network errors, write failures
// as disk errors.
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) error {
	buf := make([]byte, copyBufferSize)
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("download canceled: %w", ctx.Err())
		default:
		}

		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return fmt.Errorf("%w: write archive: %w", errdefs.ErrDisk, werr)
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("download canceled: %w", ctx.Err())
			}
			return fmt.Errorf("%w: read response: %w", errdefs.ErrNetwork, rerr)
		}
	}
}

// sweepPartials removes leftovers from interrupted runs.
func (d *Downloader) sweepPartials() {
	matches, err := filepath.Glob(filepath.Join(d.dir, "*"+partialSuffix))
	if err != nil {
		return
	}
	for _, m := range matches {
		if err := os.Remove(m); err == nil {
			d.logger.WithFields(logger.Fields{"file": m}).Debug("Removed stale partial download")
		}
	}
}
