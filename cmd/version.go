package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  `Display the installer's own version, not the Go toolchain version.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "Version: %s\n", Version)
	},
}

func init() {
	RootCmd.AddCommand(versionCmd)
}
