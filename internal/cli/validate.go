package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alluvium-dev/alluvium/destinations"
	"github.com/alluvium-dev/alluvium/internal/manifest"
)

// StackSummary describes one realized stack.
type StackSummary struct {
	Name      string `json:"name"`
	Resources int    `json:"resources"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool           `json:"valid"`
	Stacks []StackSummary `json:"stacks,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <manifest>",
		Short: "Validate a manifest without writing output",
		Long: `Load a CUE manifest, realize the construct tree, and bind every
destination, without synthesizing templates or writing files.

Exit codes:
  0 - Manifest valid
  1 - Manifest rejected (unknown reference, invalid destination configuration)
  2 - Command error (file not found, malformed CUE)

Examples:
  alluvium validate pipeline.cue
  alluvium validate pipeline.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, manifestPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	spec, err := manifest.Load(manifestPath)
	if err != nil {
		// Unreadable input is a command error.
		return outputManifestError(formatter, err, ExitCommandError)
	}
	formatter.VerboseLog("Loaded %s: %d stack(s)", manifestPath, len(spec.Stacks))

	app, err := manifest.Realize(spec)
	if err != nil {
		// The manifest parsed but does not compose.
		return outputManifestError(formatter, err, ExitFailure)
	}

	result := ValidationResult{Valid: true}
	for _, stack := range app.Stacks() {
		result.Stacks = append(result.Stacks, StackSummary{
			Name:      stack.Name(),
			Resources: len(stack.Resources()),
		})
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintln(formatter.Writer, "✓ Manifest valid")
	for _, s := range result.Stacks {
		fmt.Fprintf(formatter.Writer, "  %s: %d resource(s)\n", s.Name, s.Resources)
	}
	return nil
}

// outputManifestError renders a manifest pipeline error in the
// configured format and maps it to exitCode.
func outputManifestError(formatter *OutputFormatter, err error, exitCode int) error {
	code, message := classifyManifestError(err)

	if exitCode == ExitCommandError || formatter.Format == "json" {
		_ = formatter.Error(code, message, nil)
		return NewExitError(exitCode, fmt.Sprintf("%s: %s", code, message))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Manifest rejected")
	fmt.Fprintln(formatter.Writer)
	fmt.Fprintf(formatter.Writer, "  %s: %s\n", code, message)

	return NewExitError(exitCode, fmt.Sprintf("%s: %s", code, message))
}

// classifyManifestError maps a manifest pipeline error to an error code
// and display message. CompileError renders its own position.
func classifyManifestError(err error) (string, string) {
	var confErr *destinations.ConfigurationError
	if errors.As(err, &confErr) {
		return ErrCodeCompose, confErr.Error()
	}
	var compileErr *manifest.CompileError
	if errors.As(err, &compileErr) {
		return ErrCodeManifest, compileErr.Error()
	}
	return ErrCodeGeneric, err.Error()
}
