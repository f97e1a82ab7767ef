package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/pgmerge/internal/cli"
	"github.com/JonMunkholm/pgmerge/internal/config"
	"github.com/JonMunkholm/pgmerge/internal/core"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load .env file if it exists; variables already set in the environment win
	_ = godotenv.Load()

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", core.FormatUserError(err))
		fmt.Fprintf(os.Stderr, "  %v\n", err)
		return cli.ExitFailure
	}

	// Cancel on SIGINT/SIGTERM; in-flight units of work roll back
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := cli.NewRootCommand(cfg)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if core.IsUserFacing(err) {
			fmt.Fprintf(os.Stderr, "  %s\n", core.FormatUserError(err))
		}
		return cli.GetExitCode(err)
	}
	return cli.ExitSuccess
}
