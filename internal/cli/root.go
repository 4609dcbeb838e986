package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string
	Database   string

	// Logger is built by the root command from the verbose flag and
	// threaded to every subcommand.
	Logger *slog.Logger

	// Config holds the loaded config file, nil when absent.
	Config *Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the alluvium CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "alluvium",
		Short: "Alluvium - delivery pipelines as code",
		Long: `Alluvium composes Amazon Data Firehose delivery pipelines as
CloudFormation templates: construct trees in Go or CUE manifests in,
deterministic canonical templates out. The matrix command verifies
scaffolded projects across Go toolchain versions, and every synthesis
or matrix run can be recorded to a SQLite run ledger.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "alluvium.yaml", "path to config file")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to the SQLite run ledger")

	// Add subcommands
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewSynthCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewMatrixCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// resolve finalizes the global options before any command runs: load
// the config file, let flags override its values, validate the format,
// and build the logger.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	flags := cmd.Flags()

	cfg, err := loadConfig(o.ConfigFile, flags.Changed("config"))
	if err != nil {
		return err
	}
	o.Config = cfg

	if cfg != nil {
		if !flags.Changed("db") && cfg.Database != "" {
			o.Database = cfg.Database
		}
		if !flags.Changed("verbose") && cfg.Verbose {
			o.Verbose = true
		}
	}

	if !isValidFormat(o.Format) {
		return fmt.Errorf("invalid format %q: must be one of %v", o.Format, ValidFormats)
	}

	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}
	o.Logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: level,
	}))

	return nil
}

// logger returns the configured logger, or a discard logger when the
// options were constructed without going through the root command.
func (o *RootOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// commandContext returns the command's context, falling back to
// background when the command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
