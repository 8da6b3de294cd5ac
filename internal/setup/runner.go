package setup

import (
	"context"

	"github.com/kunchev/go-linux-installer/internal/catalog"
	"github.com/kunchev/go-linux-installer/internal/download"
	"github.com/kunchev/go-linux-installer/pkg/logger"
)

// State names one phase of an installation run.
type State string

const (
	StateIdle        State = "idle"
	StateResolving   State = "resolving"
	StateDownloading State = "downloading"
	StateExtracting  State = "extracting"
	StateConfiguring State = "configuring"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// The four capabilities an install needs. The concrete catalog, download,
// archive and profile types satisfy them, tests plug in fakes.
type (
	// Resolver maps a version request to a release entry.
	Resolver interface {
		Resolve(version string) (catalog.Entry, error)
	}

	// Fetcher brings a release archive onto the local disk.
	Fetcher interface {
		Fetch(ctx context.Context, target download.Target) (string, error)
	}

	// Extractor verifies an archive and swaps it into the install dir.
	Extractor interface {
		Install(ctx context.Context, archivePath, sum, installDir string) error
	}

	// Configurator wires the installed toolchain into the user's shell.
	Configurator interface {
		Apply(installDir string) error
	}
)

// Result reports how an installation run ended.
type Result struct {
	State   State
	Entry   catalog.Entry
	Archive string
}

// Runner drives a single toolchain installation through its states:
// resolving, downloading, extracting, configuring, done. The first failing
// stage aborts the run, later stages never start.
type Runner struct {
	resolver     Resolver
	fetcher      Fetcher
	extractor    Extractor
	configurator Configurator
	installDir   string
	observer     func(State)
	logger       *logger.Logger
}

// RunnerOption tweaks a Runner.
type RunnerOption func(*Runner)

// WithObserver registers a callback invoked on every state transition.
func WithObserver(fn func(State)) RunnerOption {
	return func(r *Runner) {
		r.observer = fn
	}
}

// NewRunner assembles an installation pipeline targeting installDir.
func NewRunner(resolver Resolver, fetcher Fetcher, extractor Extractor, configurator Configurator, installDir string, opts ...RunnerOption) *Runner {
	r := &Runner{
		resolver:     resolver,
		fetcher:      fetcher,
		extractor:    extractor,
		configurator: configurator,
		installDir:   installDir,
		logger:       logger.NewLogger("setup"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run installs the requested version. On failure the previous toolchain
// and profile stay as they were, except when the configuring stage itself
// failed, then the new toolchain is on disk but the profile is not.
func (r *Runner) Run(ctx context.Context, version string) (Result, error) {
	res := Result{State: StateIdle}

	r.transition(&res, StateResolving, version)
	entry, err := r.resolver.Resolve(version)
	if err != nil {
		return r.fail(res, StateResolving, err)
	}
	res.Entry = entry

	r.transition(&res, StateDownloading, entry.Version)
	archive, err := r.fetcher.Fetch(ctx, download.Target{
		URL:      entry.URL,
		Filename: entry.Filename,
	})
	if err != nil {
		return r.fail(res, StateDownloading, err)
	}
	res.Archive = archive

	r.transition(&res, StateExtracting, entry.Version)
	if err := r.extractor.Install(ctx, archive, entry.SHA256, r.installDir); err != nil {
		return r.fail(res, StateExtracting, err)
	}

	r.transition(&res, StateConfiguring, entry.Version)
	if err := r.configurator.Apply(r.installDir); err != nil {
		return r.fail(res, StateConfiguring, err)
	}

	r.transition(&res, StateDone, entry.Version)
	return res, nil
}

// InstallDir returns where the toolchain lands.
func (r *Runner) InstallDir() string {
	return r.installDir
}

func (r *Runner) transition(res *Result, state State, version string) {
	res.State = state
	if r.observer != nil {
		r.observer(state)
	}
	r.logger.WithFields(logger.Fields{
		"state":   string(state),
		"version": version,
	}).Debug("Install state changed")
}

func (r *Runner) fail(res Result, at State, err error) (Result, error) {
	res.State = StateFailed
	if r.observer != nil {
		r.observer(StateFailed)
	}
	r.logger.WithFields(logger.Fields{
		"stage": string(at),
		"error": err.Error(),
	}).Error("Install failed")
	return res, err
}
