package cli

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/bibform/internal/ir"
	"github.com/roach88/bibform/internal/registry"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult summarises a compiled configuration.
type CompilationResult struct {
	Sources     []string `json:"sources"`
	Fields      int      `json:"fields"`
	Models      []string `json:"models"`
	Formats     []string `json:"formats"`
	Fingerprint string   `json:"fingerprint"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile [config-dir]",
		Short: "Compile field and model definitions",
		Long: `Compile the CUE field and model definitions into a rule table.

Every source is checked before the rule table is built, so all structural
problems are reported at once. The directory defaults to config.dir.

With --output the rule table summary is written as canonical JSON.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := opts.Config.Config.Dir
			if len(args) == 1 {
				dir = args[0]
			}
			return runCompile(opts, dir, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, dir string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	_, snap, err := loadRegistry(dir, opts.Logger)
	if err != nil {
		return failConfig(f, err)
	}
	f.VerboseLog("Compiled %d source(s) from %s", len(snap.Sources), dir)

	result := summarize(snap)

	if opts.Output != "" {
		if err := writeSummary(snap, opts.Output); err != nil {
			return f.Fail(ExitCommandError, ErrCodeWriteFailed, "writing output file", err)
		}
		opts.Logger.Info("rule table written", zap.String("path", opts.Output))
	}

	return outputCompileSuccess(f, snap, result, opts.Output)
}

func summarize(snap *registry.Snapshot) *CompilationResult {
	return &CompilationResult{
		Sources:     snap.Sources,
		Fields:      snap.Table.Len(),
		Models:      snap.Models.Names(),
		Formats:     snap.Table.Formats(),
		Fingerprint: snap.Fingerprint(),
	}
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(f *OutputFormatter, snap *registry.Snapshot, result *CompilationResult, outputFile string) error {
	if f.Format == "json" {
		return f.Success(result)
	}

	fmt.Fprintf(f.Writer, "✓ Compiled %d field(s), %d model(s) from %d source(s)\n\n",
		result.Fields, len(result.Models), len(result.Sources))

	if len(result.Models) > 0 {
		fmt.Fprintln(f.Writer, "Models:")
		for _, name := range result.Models {
			resolved, err := snap.Models.Resolve(name)
			if err != nil {
				fmt.Fprintf(f.Writer, "  %s: %v\n", name, err)
				continue
			}
			fmt.Fprintf(f.Writer, "  %s: %d field(s)\n", name, len(resolved.Fields))
		}
		fmt.Fprintln(f.Writer)
	}

	if len(result.Formats) > 0 {
		fmt.Fprintf(f.Writer, "Source formats: %v\n", result.Formats)
	}
	fmt.Fprintf(f.Writer, "Fingerprint: %s\n", result.Fingerprint)

	if outputFile != "" {
		fmt.Fprintf(f.Writer, "Wrote rule table to %s\n", outputFile)
	}

	return nil
}

// writeSummary writes the rule table summary in canonical JSON format.
func writeSummary(snap *registry.Snapshot, filename string) error {
	data, err := ir.MarshalCanonical(snap.Table.Summary())
	if err != nil {
		return errors.Wrap(err, "marshaling rule table")
	}
	if err := os.WriteFile(filename, append(data, '\n'), 0o644); err != nil {
		return errors.Wrap(err, "writing file")
	}
	return nil
}
