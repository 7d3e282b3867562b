package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/bibform/internal/ir"
	"github.com/roach88/bibform/internal/reader"
	"github.com/roach88/bibform/internal/record"
	"github.com/roach88/bibform/internal/store"
)

// TranslateOptions holds flags for the translate command.
type TranslateOptions struct {
	*RootOptions
	Fields        []string
	All           bool // split the input into several records
	Save          bool
	IncludeMeta   bool
	ExcludeHidden bool
}

// TranslatedRecord is the outcome for one input record.
type TranslatedRecord struct {
	Index  int                 `json:"index"`
	ID     string              `json:"id,omitempty"`
	Data   any                 `json:"data,omitempty"`
	Errors []record.FieldError `json:"errors,omitempty"`
	Error  *CLIError           `json:"error,omitempty"` // translation aborted
}

// TranslateResult holds every translated record.
type TranslateResult struct {
	Records    []TranslatedRecord `json:"records"`
	Translated int                `json:"translated"`
	Aborted    int                `json:"aborted"`
}

// NewTranslateCommand creates the translate command.
func NewTranslateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TranslateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "translate <file|->",
		Short: "Translate source records",
		Long: `Translate a source record into a JSON record through the rule table.

The input is MARCXML (marc), text MARC (textmarc) or a JSON record (json).
Field problems are reported next to the record and never stop the other
fields. With --all the input is split into records first; a record that
cannot be translated does not stop the batch.

Exit codes:
  0 - Every record was translated
  1 - One or more records of a batch were aborted
  2 - Command error (configuration, unreadable input, database)

Examples:
  bibform translate record.xml
  bibform translate records.xml --all --save
  bibform translate record.txt --input-format textmarc --model Book
  cat record.json | bibform translate - --input-format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(opts, args[0], cmd)
		},
	}

	flags := cmd.Flags()
	flags.String("input-format", "", "input format (marc|textmarc|json)")
	flags.String("model", "", "comma separated models to translate with")
	flags.StringSliceVar(&opts.Fields, "field", nil, "translate only these fields")
	flags.BoolVar(&opts.All, "all", false, "split the input into several records")
	flags.BoolVar(&opts.Save, "save", false, "save translated records in the database")
	flags.BoolVar(&opts.IncludeMeta, "meta", false, "include provenance under __meta_metadata__")
	flags.BoolVar(&opts.ExcludeHidden, "exclude-hidden", false, "leave hidden fields out of the output")
	_ = rootOpts.Viper.BindPFlag("translate.format", flags.Lookup("input-format"))
	_ = rootOpts.Viper.BindPFlag("translate.model", flags.Lookup("model"))

	return cmd
}

func runTranslate(opts *TranslateOptions, input string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	ctx := cmd.Context()

	reg, _, err := loadRegistry(opts.Config.Config.Dir, opts.Logger)
	if err != nil {
		return failConfig(f, err)
	}

	raw, err := readInput(input, cmd.InOrStdin())
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeReadFailed, "reading input", err)
	}

	readerOpts := []reader.Option{
		reader.WithMasterFormat(opts.Config.Translate.Format),
		reader.WithModel(splitModels(opts.Config.Translate.Model)...),
		reader.WithFields(opts.Fields...),
		reader.WithLogger(opts.Logger),
	}

	var results []reader.Result
	if opts.All {
		results, err = reader.TranslateAll(reg, raw, readerOpts...)
		if err != nil {
			return f.Fail(ExitCommandError, readerCode(err), "splitting input", err)
		}
	} else {
		out, err := reader.Translate(reg, raw, readerOpts...)
		if err != nil {
			return f.Fail(ExitCommandError, readerCode(err), "translation aborted", err)
		}
		results = []reader.Result{{Output: out}}
	}

	var st *store.Store
	if opts.Save {
		if st, err = openStore(opts.Config.Database.Path, opts.Logger); err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "opening database", err)
		}
		defer st.Close()
	}

	result := TranslateResult{Records: make([]TranslatedRecord, 0, len(results))}
	dumpOpts := record.DumpOptions{ExcludeHidden: opts.ExcludeHidden, IncludeMeta: opts.IncludeMeta}
	for _, r := range results {
		tr := TranslatedRecord{Index: r.Index}
		if r.Err != nil {
			tr.Error = &CLIError{Code: readerCode(r.Err), Message: r.Err.Error()}
			result.Records = append(result.Records, tr)
			result.Aborted++
			continue
		}

		rec := r.Output.Record()
		if st != nil {
			id, err := st.SaveOne(ctx, rec)
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("saving record %d", r.Index), err)
			}
			tr.ID = id
			f.VerboseLog("Saved record %d as %s", r.Index, id)
		}
		dump, err := rec.Dump(dumpOpts)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("dumping record %d", r.Index), err)
		}
		tr.Data = dump
		tr.Errors = rec.Errors()
		result.Records = append(result.Records, tr)
		result.Translated++
	}

	opts.Logger.Info("translation finished",
		zap.Int("translated", result.Translated),
		zap.Int("aborted", result.Aborted),
		zap.Bool("saved", opts.Save),
	)

	if err := outputTranslate(f, result); err != nil {
		return err
	}
	if result.Aborted > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d record(s) could not be translated", result.Aborted))
	}
	return nil
}

func outputTranslate(f *OutputFormatter, result TranslateResult) error {
	if f.Format == "json" {
		for i := range result.Records {
			if obj, ok := result.Records[i].Data.(ir.IRObject); ok {
				result.Records[i].Data = ir.ToGo(obj)
			}
		}
		return f.Success(result)
	}

	for _, tr := range result.Records {
		if len(result.Records) > 1 {
			fmt.Fprintf(f.Writer, "# record %d\n", tr.Index)
		}
		if tr.Error != nil {
			fmt.Fprintf(f.Writer, "✗ %s: %s\n", tr.Error.Code, tr.Error.Message)
			continue
		}
		if tr.ID != "" {
			fmt.Fprintf(f.Writer, "id: %s\n", tr.ID)
		}
		if err := f.WriteIR(tr.Data); err != nil {
			return err
		}
		printFieldErrors(f, tr.Errors)
	}
	return nil
}

func printFieldErrors(f *OutputFormatter, errs []record.FieldError) {
	for _, fe := range errs {
		fmt.Fprintf(f.Writer, "  ! %s\n", fe.Error())
	}
}

// readInput reads a file, or stdin for "-".
func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

// splitModels turns "Book, Article" into its model names.
func splitModels(s string) []string {
	var names []string
	for _, n := range strings.Split(s, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names
}

func readerCode(err error) string {
	if re, ok := reader.IsReaderError(err); ok {
		return re.Code
	}
	return ErrCodeTranslate
}
