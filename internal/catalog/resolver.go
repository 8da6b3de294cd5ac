package catalog

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kunchev/go-linux-installer/pkg/errdefs"
	"github.com/kunchev/go-linux-installer/pkg/logger"
)

// Catalog sources selectable via configuration.
const (
	SourceAuto   = "auto"
	SourceRemote = "remote"
	SourceStatic = "static"
)

// Options configures a Resolver. Zero values fall back to defaults.
type Options struct {
	BaseURL string
	Source  string
	File    string // optional release table overriding the embedded one
	Timeout time.Duration
	Client  HTTPClient
}

// Resolver answers version questions: listing known releases and resolving
// a requested version to its download entry. Resolve works from the local
// release table only and never touches the network.
type Resolver struct {
	baseURL string
	source  string
	table   []Entry
	scraper *Scraper
	logger  *logger.Logger
}

// NewResolver loads the release table and prepares the remote scraper.
func NewResolver(opts Options) (*Resolver, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Source == "" {
		opts.Source = SourceAuto
	}
	switch opts.Source {
	case SourceAuto, SourceRemote, SourceStatic:
	default:
		return nil, fmt.Errorf("unknown catalog source %q", opts.Source)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultFetchTimeout
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: opts.Timeout}
	}

	table, err := loadTable(opts.File, opts.BaseURL)
	if err != nil {
		return nil, err
	}

	return &Resolver{
		baseURL: opts.BaseURL,
		source:  opts.Source,
		table:   table,
		scraper: NewScraper(opts.BaseURL, opts.Client),
		logger:  logger.NewLogger("catalog"),
	}, nil
}

// Resolve maps a requested version to its release entry. The token is
// validated and must be a member of the release table, so an unknown or
// malformed version fails before any network traffic could happen.
func (r *Resolver) Resolve(version string) (Entry, error) {
	v := Normalize(version)
	if err := Validate(v); err != nil {
		return Entry{}, err
	}

	for _, e := range r.table {
		if e.Version == v {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: go %s is not a known release", errdefs.ErrInvalidVersion, v)
}

// List returns the known releases, newest first. Depending on the
// configured source it serves the live downloads page, the local table, or
// the page with a fallback to the table.
func (r *Resolver) List(ctx context.Context) ([]Entry, error) {
	switch r.source {
	case SourceStatic:
		return r.table, nil
	case SourceRemote:
		return r.scraper.Fetch(ctx)
	}

	entries, err := r.scraper.Fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		r.logger.WithError(err).Warn("Release page unreachable, using the bundled table")
		return r.table, nil
	}
	return entries, nil
}
