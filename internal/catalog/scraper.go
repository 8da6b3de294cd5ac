package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/kunchev/go-linux-installer/pkg/errdefs"
	"github.com/kunchev/go-linux-installer/pkg/logger"
)

var checksumPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Scraper reads the release list off the downloads page. The page renders
// one anchor per artifact, with the sha256 in a <tt> cell on the same
// table row.
type Scraper struct {
	baseURL string
	client  HTTPClient
	logger  *logger.Logger
}

// NewScraper creates a scraper for the downloads page under baseURL.
func NewScraper(baseURL string, client HTTPClient) *Scraper {
	return &Scraper{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger.NewLogger("catalog"),
	}
}

// Fetch downloads and parses the index page and returns the linux-amd64
// release entries, newest first.
func (s *Scraper) Fetch(ctx context.Context) ([]Entry, error) {
	pageURL := s.baseURL + "/"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", errdefs.ErrNetwork, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %w", errdefs.ErrNetwork, pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: fetch %s: HTTP %d", errdefs.ErrNetwork, pageURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: parse downloads page: %w", errdefs.ErrNetwork, err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse base url %q: %w", errdefs.ErrNetwork, pageURL, err)
	}

	var entries []Entry
	seen := make(map[string]int)
	doc.Find("a").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok || !strings.HasSuffix(href, archiveSuffix) {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)

		filename := path.Base(abs.Path)
		version := strings.TrimSuffix(strings.TrimPrefix(filename, archivePrefix), archiveSuffix)
		if version == "" || version == filename {
			return
		}

		// The page links each artifact more than once (featured box plus
		// table row). Keep one entry and take the checksum from whichever
		// anchor sits in a table row.
		if i, dup := seen[version]; dup {
			if entries[i].SHA256 == "" {
				entries[i].SHA256 = rowChecksum(a)
			}
			return
		}
		seen[version] = len(entries)

		entries = append(entries, Entry{
			Version:  version,
			Filename: filename,
			URL:      abs.String(),
			SHA256:   rowChecksum(a),
		})
	})

	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no %s archives found at %s", errdefs.ErrNetwork, Platform, pageURL)
	}

	sortEntries(entries)
	s.logger.WithFields(logger.Fields{
		"count": len(entries),
		"url":   pageURL,
	}).Debug("Fetched release catalog")
	return entries, nil
}

// rowChecksum pulls the sha256 cell out of the anchor's table row.
func rowChecksum(a *goquery.Selection) string {
	sum := strings.TrimSpace(a.Closest("tr").Find("tt").First().Text())
	if checksumPattern.MatchString(sum) {
		return sum
	}
	return ""
}
