package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kunchev/go-linux-installer/internal/config"
	"github.com/kunchev/go-linux-installer/pkg/errdefs"
)

var (
	cfgFile   string
	action    string
	goVersion string
	Cfg       *config.Config
	Version   string
)

var RootCmd = &cobra.Command{
	Use:   "go-linux-installer",
	Short: "Install official Go toolchains on linux-amd64",
	Long: `go-linux-installer downloads an official Go toolchain archive for
linux-amd64, unpacks it into the install directory and wires GOROOT,
GOPATH and PATH into the shell profile through a managed block.

Actions:
  listgoversions   print the known Go versions, newest first
  listgolinks      print the archive download links, newest first
  installgo        install the release selected with --version

Exit codes:
  0 success, 1 failure, 2 usage error, 3 invalid version,
  4 network error, 5 disk error, 6 extraction error,
  7 permission denied, 8 profile write error`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			return fmt.Errorf("%w: unexpected arguments: %s", errdefs.ErrUsage, strings.Join(args, " "))
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd.Context(), Cfg, cmd.OutOrStdout(), cmd.ErrOrStderr(), action, goVersion)
	},
}

func Execute(ctx context.Context, version string) error {
	Version = version
	return RootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	RootCmd.Flags().StringVarP(&action, "action", "a", "", "action to run (listgoversions, listgolinks or installgo)")
	RootCmd.Flags().StringVarP(&goVersion, "version", "v", "", "go version to install, e.g. 1.21.4 (installgo only)")
	RootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errdefs.ErrUsage, err)
	})
}

func initConfig() {
	var err error

	// Load configuration
	Cfg, err = config.LoadConfig(cfgFile)
	if err != nil {
		fmt.Printf("Fatal: Configuration could not be loaded: %v\n", err)
		os.Exit(1)
	}
}
