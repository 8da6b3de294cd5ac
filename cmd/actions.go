package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/kunchev/go-linux-installer/internal/archive"
	"github.com/kunchev/go-linux-installer/internal/catalog"
	"github.com/kunchev/go-linux-installer/internal/config"
	"github.com/kunchev/go-linux-installer/internal/download"
	"github.com/kunchev/go-linux-installer/internal/profile"
	"github.com/kunchev/go-linux-installer/internal/setup"
	"github.com/kunchev/go-linux-installer/pkg/errdefs"
)

// Actions selectable with --action.
const (
	actionListVersions = "listgoversions"
	actionListLinks    = "listgolinks"
	actionInstall      = "installgo"
)

// runAction validates the flag combination and dispatches to the selected
// action. Results go to out, transient progress to errOut.
func runAction(ctx context.Context, cfg *config.Config, out, errOut io.Writer, action, version string) error {
	switch action {
	case "":
		return fmt.Errorf("%w: --action is required (one of %s, %s, %s)",
			errdefs.ErrUsage, actionListVersions, actionListLinks, actionInstall)
	case actionListVersions, actionListLinks:
		if version != "" {
			return fmt.Errorf("%w: --version only applies to action %s", errdefs.ErrUsage, actionInstall)
		}
		return runList(ctx, cfg, out, action)
	case actionInstall:
		if version == "" {
			return fmt.Errorf("%w: action %s requires --version", errdefs.ErrUsage, actionInstall)
		}
		return runInstall(ctx, cfg, out, errOut, version)
	default:
		return fmt.Errorf("%w: unknown action %q (one of %s, %s, %s)",
			errdefs.ErrUsage, action, actionListVersions, actionListLinks, actionInstall)
	}
}

// runList prints the known releases, one per line, newest first.
func runList(ctx context.Context, cfg *config.Config, out io.Writer, action string) error {
	resolver, err := newResolver(cfg)
	if err != nil {
		return err
	}

	entries, err := resolver.List(ctx)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if action == actionListLinks {
			fmt.Fprintln(out, e.URL)
		} else {
			fmt.Fprintln(out, e.Version)
		}
	}
	return nil
}

// runInstall drives the full resolve, download, extract, configure pipeline.
func runInstall(ctx context.Context, cfg *config.Config, out, errOut io.Writer, version string) error {
	resolver, err := newResolver(cfg)
	if err != nil {
		return err
	}

	fetcher := download.NewDownloader(cfg.Download.Dir,
		download.WithHTTPClient(download.NewHTTPClient(cfg.Download.RequestTimeout())),
		download.WithRetries(cfg.Download.Retries),
		download.WithProgress(download.ConsoleProgress(errOut)),
	)

	configurator := profile.NewConfigurator(profile.Options{
		File:      cfg.Profile.File,
		GoPath:    cfg.Profile.GoPath,
		Workspace: cfg.Profile.Workspace,
	})

	runner := setup.NewRunner(resolver, fetcher, archive.NewInstaller(), configurator, cfg.Install.Dir,
		setup.WithObserver(func(s setup.State) {
			switch s {
			case setup.StateExtracting:
				fmt.Fprintf(errOut, "extracting to %s...\n", cfg.Install.Dir)
			case setup.StateConfiguring:
				fmt.Fprintln(errOut, "updating shell profile...")
			}
		}),
	)

	res, err := runner.Run(ctx, version)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "go%s installed to %s\n", res.Entry.Version, cfg.Install.Dir)
	if path, err := configurator.ProfilePath(); err == nil {
		fmt.Fprintf(out, "Restart your shell or run 'source %s' to pick it up.\n", path)
	}
	return nil
}

func newResolver(cfg *config.Config) (*catalog.Resolver, error) {
	return catalog.NewResolver(catalog.Options{
		BaseURL: cfg.Catalog.BaseURL,
		Source:  cfg.Catalog.Source,
		File:    cfg.Catalog.File,
		Timeout: cfg.Catalog.RequestTimeout(),
	})
}
