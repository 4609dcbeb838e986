package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alluvium-dev/alluvium/internal/ledger"
	"github.com/alluvium-dev/alluvium/internal/manifest"
	"github.com/alluvium-dev/alluvium/internal/runid"
	"github.com/alluvium-dev/alluvium/synth"
)

// SynthOptions holds flags for the synth command.
type SynthOptions struct {
	*RootOptions
	Out string

	// IDs and Clock allow overriding run IDs and timestamps (for
	// testing). If nil, defaults to UUIDv7Generator and SystemClock.
	IDs   runid.Generator
	Clock runid.Clock
}

// SynthStackResult describes one synthesized stack.
type SynthStackResult struct {
	Stack        string `json:"stack"`
	TemplateFile string `json:"template_file"`
	TemplateHash string `json:"template_hash"`
}

// SynthResult holds the synthesis outcome.
type SynthResult struct {
	OutDir string             `json:"out_dir"`
	Stacks []SynthStackResult `json:"stacks"`
}

// NewSynthCommand creates the synth command.
func NewSynthCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SynthOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "synth <manifest>",
		Short: "Synthesize templates from a manifest",
		Long: `Load a CUE manifest, realize the construct tree, and write one
canonical CloudFormation template per stack plus a manifest.json index.

Synthesis is deterministic: the same manifest always produces
byte-identical templates and hashes. With --db, every synthesized
stack is recorded to the run ledger.

Examples:
  alluvium synth pipeline.cue
  alluvium synth pipeline.cue --out ./dist
  alluvium synth pipeline.cue --db runs.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSynth(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", `output directory (default "out")`)

	return cmd
}

func runSynth(opts *SynthOptions, manifestPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	spec, err := manifest.Load(manifestPath)
	if err != nil {
		return outputManifestError(formatter, err, ExitCommandError)
	}
	formatter.VerboseLog("Loaded %s: %d stack(s)", manifestPath, len(spec.Stacks))

	app, err := manifest.Realize(spec)
	if err != nil {
		return outputManifestError(formatter, err, ExitFailure)
	}

	asm, err := synth.Synthesize(app)
	if err != nil {
		return outputSynthError(formatter, ErrCodeSynth, err.Error(), ExitFailure)
	}

	outDir := opts.Out
	if outDir == "" && opts.Config != nil {
		outDir = opts.Config.Output
	}
	if outDir == "" {
		outDir = "out"
	}

	if err := asm.WriteTo(outDir); err != nil {
		return outputSynthError(formatter, ErrCodeWrite, err.Error(), ExitCommandError)
	}

	if opts.Database != "" {
		if err := recordSynth(commandContext(cmd), opts, asm, outDir); err != nil {
			return outputSynthError(formatter, ErrCodeDatabase, err.Error(), ExitCommandError)
		}
	}

	result := SynthResult{OutDir: outDir}
	for _, art := range asm.Artifacts() {
		result.Stacks = append(result.Stacks, SynthStackResult{
			Stack:        art.Name,
			TemplateFile: art.TemplateFile,
			TemplateHash: art.Hash,
		})
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Synthesized %d stack(s) to %s\n\n", len(result.Stacks), outDir)
	for _, s := range result.Stacks {
		fmt.Fprintf(formatter.Writer, "  %s  %s  %s\n", s.Stack, s.TemplateFile, shortHash(s.TemplateHash))
	}
	return nil
}

// recordSynth writes one ledger row per synthesized stack.
func recordSynth(ctx context.Context, opts *SynthOptions, asm *synth.Assembly, outDir string) error {
	ids := opts.IDs
	if ids == nil {
		ids = runid.UUIDv7Generator{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = runid.SystemClock{}
	}

	led, err := ledger.Open(opts.Database)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := led.Close(); closeErr != nil {
			opts.logger().Error("error closing ledger", "error", closeErr)
		}
	}()

	createdAt := clock.Now().Format(time.RFC3339)
	for _, art := range asm.Artifacts() {
		run := ledger.SynthRun{
			ID:           ids.Generate(),
			CreatedAt:    createdAt,
			Stack:        art.Name,
			TemplateHash: art.Hash,
			OutDir:       outDir,
		}
		if err := led.WriteSynthRun(ctx, run); err != nil {
			return err
		}
	}
	return nil
}

// outputSynthError outputs a synthesis error.
func outputSynthError(formatter *OutputFormatter, code, message string, exitCode int) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(exitCode, fmt.Sprintf("%s: %s", code, message))
}

// shortHash abbreviates a template hash for display.
func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
