// Package cli implements the bibform command line.
package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/roach88/bibform/internal/config"
	"github.com/roach88/bibform/internal/logger"
)

// RootOptions holds global flags and the settings every command runs with
// once the configuration is loaded.
type RootOptions struct {
	Verbose    int
	Format     string // "json" | "text"
	ConfigPath string

	Viper  *viper.Viper
	Config *config.Config
	Logger *zap.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the bibform CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{Viper: config.New(), Logger: zap.NewNop()}

	cmd := &cobra.Command{
		Use:   "bibform",
		Short: "bibform - rule-driven bibliographic record translator",
		Long: `Translate MARC bibliographic records into JSON records and back.

Fields and models are defined in CUE files. bibform compiles them into a
rule table, reads MARCXML, text MARC and JSON records through it and keeps
the results in a SQLite database.

Settings come from bibform.toml, BIBFORM_* environment variables and flags,
in increasing order of precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.CountVarP(&opts.Verbose, "verbose", "v", "verbose output (-v info, -vv debug)")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.ConfigPath, "config", "", "settings file (default ./"+config.DefaultFile+")")
	flags.String("config-dir", "", "directory of CUE field and model definitions")
	flags.String("db", "", "SQLite database path")
	_ = opts.Viper.BindPFlag("config.dir", flags.Lookup("config-dir"))
	_ = opts.Viper.BindPFlag("database.path", flags.Lookup("db"))

	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewTranslateCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewSearchCommand(opts))
	cmd.AddCommand(NewProduceCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// setup validates the global flags, loads the settings and builds the
// logger. Log lines go to stderr so they never mix with command output.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	if !isValidFormat(o.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}

	cfg, err := config.Load(o.Viper, o.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "loading settings", err)
	}

	log, err := logger.New(logger.Options{
		JSON:   cfg.Log.JSON,
		Level:  logger.VerbosityToLevel(o.Verbose, cfg.Log.Level),
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "building logger", err)
	}

	o.Config = cfg
	o.Logger = log
	return nil
}

// formatter returns the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose > 0,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
