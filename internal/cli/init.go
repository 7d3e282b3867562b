package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/bibform/internal/config"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	Force bool
}

// InitResult describes what init wrote.
type InitResult struct {
	Path      string `json:"path"`
	ConfigDir string `json:"config_dir"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a settings file",
		Long: `Write the current settings (defaults, environment and flags) to a
TOML settings file and create the configuration directory.

Examples:
  bibform init
  bibform init ./deploy/bibform.toml --config-dir ./deploy/fields
  bibform init --force`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultFile
			if len(args) == 1 {
				path = args[0]
			}
			return runInit(opts, path, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "overwrite an existing settings file")

	return cmd
}

func runInit(opts *InitOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	if err := config.Write(path, opts.Config, opts.Force); err != nil {
		return f.Fail(ExitCommandError, ErrCodeWriteFailed, "writing settings", err)
	}
	if err := os.MkdirAll(opts.Config.Config.Dir, 0o755); err != nil {
		return f.Fail(ExitCommandError, ErrCodeWriteFailed, "creating configuration directory", err)
	}
	opts.Logger.Info("settings written", zap.String("path", path), zap.String("config_dir", opts.Config.Config.Dir))

	result := InitResult{Path: path, ConfigDir: opts.Config.Config.Dir}
	if f.Format == "json" {
		return f.Success(result)
	}
	fmt.Fprintf(f.Writer, "✓ Wrote %s\n", path)
	fmt.Fprintf(f.Writer, "  Field and model definitions go in %s\n", result.ConfigDir)
	return nil
}
