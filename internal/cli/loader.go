package cli

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/roach88/bibform/internal/compiler"
	"github.com/roach88/bibform/internal/registry"
	"github.com/roach88/bibform/internal/store"
)

// Error code constants for failures the CLI reports itself. Configuration
// problems keep the E2xx/E3xx codes of the compiler, translation failures
// the E0xx codes of the reader.
const (
	ErrCodeGeneric     = "C001" // Generic/unknown error
	ErrCodeNotFound    = "C002" // Path or record not found
	ErrCodeLoadFailed  = "C003" // Configuration could not be loaded
	ErrCodeReadFailed  = "C004" // Input file could not be read
	ErrCodeWriteFailed = "C005" // File write error
	ErrCodeStore       = "C006" // Database error
	ErrCodeQuery       = "C007" // Invalid search query
	ErrCodeTranslate   = "C008" // Translation aborted
	ErrCodeProduce     = "C009" // MARCXML could not be produced
	ErrCodeTestFailed  = "C010" // One or more scenarios failed
)

// loadRegistry compiles every .cue file under dir.
func loadRegistry(dir string, logger *zap.Logger) (*registry.Registry, *registry.Snapshot, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, nil, errors.WithHint(
			errors.Newf("configuration directory not found: %s", dir),
			"set config.dir in bibform.toml, BIBFORM_CONFIG_DIR or --config-dir",
		)
	}
	if err != nil {
		return nil, nil, errors.Wrapf(err, "accessing %s", dir)
	}
	if !info.IsDir() {
		return nil, nil, errors.Newf("not a directory: %s", dir)
	}

	reg := registry.New(registry.DirLoader{Dir: dir}, registry.WithLogger(logger))
	snap, err := reg.Snapshot()
	if err != nil {
		return nil, nil, err
	}
	return reg, snap, nil
}

// openStore opens the record database at path.
func openStore(path string, logger *zap.Logger) (*store.Store, error) {
	st, err := store.Open(path, store.WithLogger(logger))
	if err != nil {
		return nil, errors.WithHint(err, "set database.path in bibform.toml, BIBFORM_DATABASE_PATH or --db")
	}
	return st, nil
}

// configProblems lists the problems carried by a configuration error, one
// CLIError each, keeping the compiler codes.
func configProblems(err error) []CLIError {
	if se, ok := registry.IsSourceError(err); ok {
		out := make([]CLIError, len(se.Errors))
		for i, ve := range se.Errors {
			out[i] = CLIError{Code: ve.Code, Message: fmt.Sprintf("%s: %s", ve.Field, ve.Message)}
			if ve.Line > 0 {
				out[i].Details = map[string]int{"line": ve.Line}
			}
		}
		return out
	}
	if fe, ok := compiler.IsFieldParserError(err); ok {
		return []CLIError{{Code: fe.Code, Message: fe.Error()}}
	}
	if me, ok := compiler.IsModelParserError(err); ok {
		return []CLIError{{Code: me.Code, Message: me.Error()}}
	}
	return []CLIError{{Code: ErrCodeLoadFailed, Message: err.Error()}}
}

// failConfig reports a configuration that does not load.
func failConfig(f *OutputFormatter, err error) error {
	problems := configProblems(err)
	if f.Format == "json" {
		_ = f.Error(problems[0].Code, problems[0].Message, problems)
	} else {
		fmt.Fprintln(f.Writer, "✗ Configuration failed to load")
		fmt.Fprintln(f.Writer)
		for _, p := range problems {
			fmt.Fprintf(f.Writer, "  %s: %s\n", p.Code, p.Message)
		}
		for _, hint := range errors.GetAllHints(err) {
			fmt.Fprintf(f.Writer, "  hint: %s\n", hint)
		}
	}
	return WrapExitError(ExitCommandError, fmt.Sprintf("configuration failed with %d error(s)", len(problems)), err)
}
