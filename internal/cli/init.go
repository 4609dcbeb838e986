package cli

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	"github.com/alluvium-dev/alluvium/internal/scaffold"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	Template   string
	Dir        string
	Module     string
	ReplaceDir string
}

// InitResult holds the scaffold outcome.
type InitResult struct {
	Template string `json:"template"`
	Dir      string `json:"dir"`
	Module   string `json:"module"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a pipeline project",
		Long: `Scaffold a new project from an embedded template.

Templates:
  app         minimal pipeline: one stack, one bucket, one delivery stream
  sample-app  full wiring: imported role, KMS key, Lambda processor
  lib         reusable construct package (no main)

The target directory must be empty or absent. The module path defaults
to the directory name.

Examples:
  alluvium init --template app --dir ./pipeline
  alluvium init --template sample-app --dir ./demo --module example.com/demo
  alluvium init --template lib --dir ./streams --replace ../alluvium`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Template, "template", "t", "app", "template to scaffold")
	cmd.Flags().StringVar(&opts.Dir, "dir", ".", "target directory")
	cmd.Flags().StringVar(&opts.Module, "module", "", "module path for the scaffolded go.mod")
	cmd.Flags().StringVar(&opts.ReplaceDir, "replace", "", "local library checkout for a replace directive")

	return cmd
}

func runInit(opts *InitOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if !slices.Contains(scaffold.Names(), opts.Template) {
		return outputInitError(formatter,
			fmt.Sprintf("unknown template %q: must be one of %v", opts.Template, scaffold.Names()))
	}

	module := opts.Module
	if module == "" {
		abs, err := filepath.Abs(opts.Dir)
		if err != nil {
			return outputInitError(formatter, fmt.Sprintf("resolving target directory: %v", err))
		}
		module = filepath.Base(abs)
	}

	err := scaffold.Scaffold(opts.Dir, scaffold.Params{
		Template:   opts.Template,
		Module:     module,
		ReplaceDir: opts.ReplaceDir,
	})
	if err != nil {
		return outputInitError(formatter, err.Error())
	}

	result := InitResult{Template: opts.Template, Dir: opts.Dir, Module: module}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Scaffolded %s project in %s\n\n", opts.Template, opts.Dir)
	fmt.Fprintln(formatter.Writer, "Next steps:")
	if opts.Dir != "." {
		fmt.Fprintf(formatter.Writer, "  cd %s\n", opts.Dir)
	}
	fmt.Fprintln(formatter.Writer, "  go mod tidy")
	fmt.Fprintln(formatter.Writer, "  go test ./...")
	return nil
}

// outputInitError outputs a scaffold error.
func outputInitError(formatter *OutputFormatter, message string) error {
	_ = formatter.Error(ErrCodeScaffold, message, nil)
	// Scaffold errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", ErrCodeScaffold, message))
}
