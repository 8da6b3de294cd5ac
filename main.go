package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kunchev/go-linux-installer/cmd"
	"github.com/kunchev/go-linux-installer/pkg/errdefs"
)

var version = "1.0.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := cmd.Execute(ctx, version)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errdefs.ExitCode(err) == errdefs.ExitUsage {
			fmt.Fprintln(os.Stderr, "Run 'go-linux-installer --help' for usage.")
		}
		os.Exit(errdefs.ExitCode(err))
	}
}
