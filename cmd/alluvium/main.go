package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alluvium-dev/alluvium/internal/cli"
)

// main is the entrypoint for the alluvium CLI.
func main() {
	// Use a minimal logger until the root command configures the full one.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}

// run executes the root command against the given writer and args.
func run(outW io.Writer, args []string) error {
	cmd := cli.NewRootCommand()
	cmd.SetOut(outW)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}
