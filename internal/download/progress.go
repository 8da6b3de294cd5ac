package download

import (
	"fmt"
	"io"
	"time"

	"golang.org/x/time/rate"
)

// ProgressFunc receives the running byte count of a transfer. total is
// negative when the server did not announce a length.
type ProgressFunc func(downloaded, total int64)

// countingReader reports progress as bytes flow through it.
type countingReader struct {
	r          io.Reader
	total      int64
	downloaded int64
	report     ProgressFunc
}

func newCountingReader(r io.Reader, total int64, report ProgressFunc) *countingReader {
	return &countingReader{r: r, total: total, report: report}
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.downloaded += int64(n)
		c.report(c.downloaded, c.total)
	}
	return n, err
}

// ConsoleProgress renders transfer progress on w, redrawing at most a few
// times per second so fast transfers do not flood the terminal.
func ConsoleProgress(w io.Writer) ProgressFunc {
	limiter := rate.NewLimiter(rate.Every(200*time.Millisecond), 1)
	return func(downloaded, total int64) {
		done := total > 0 && downloaded >= total
		if !done && !limiter.Allow() {
			return
		}
		if total > 0 {
			fmt.Fprintf(w, "\rdownloading... %s / %s (%d%%)",
				formatBytes(downloaded), formatBytes(total), downloaded*100/total)
		} else {
			fmt.Fprintf(w, "\rdownloading... %s", formatBytes(downloaded))
		}
		if done {
			fmt.Fprintln(w)
		}
	}
}

// formatBytes renders a byte count in binary units.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
