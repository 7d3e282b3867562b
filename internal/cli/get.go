package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/roach88/bibform/internal/ir"
	"github.com/roach88/bibform/internal/record"
	"github.com/roach88/bibform/internal/store"
)

// GetOptions holds flags for the get command.
type GetOptions struct {
	*RootOptions
	IncludeMeta bool
}

// StoredRecord is a saved record as the CLI prints it.
type StoredRecord struct {
	ID           string              `json:"id"`
	Seq          int64               `json:"seq"`
	MasterFormat string              `json:"master_format"`
	Models       []string            `json:"models,omitempty"`
	Fingerprint  string              `json:"fingerprint"`
	Data         any                 `json:"data"`
	Meta         any                 `json:"meta,omitempty"`
	Errors       []record.FieldError `json:"errors,omitempty"`
	CreatedAt    string              `json:"created_at"`
	UpdatedAt    string              `json:"updated_at"`
}

func newStoredRecord(st *store.Stored, includeMeta bool) StoredRecord {
	out := StoredRecord{
		ID:           st.ID,
		Seq:          st.Seq,
		MasterFormat: st.MasterFormat,
		Models:       st.Models,
		Fingerprint:  st.Fingerprint,
		Data:         ir.ToGo(st.Data),
		Errors:       st.Errors,
		CreatedAt:    st.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:    st.UpdatedAt.Format(time.RFC3339Nano),
	}
	if includeMeta && len(st.Meta) > 0 {
		out.Meta = ir.ToGo(st.Meta)
	}
	return out
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a saved record",
		Long: `Show a record saved with translate --save, with the master format,
models and rule table fingerprint it was translated with.

Exit codes:
  0 - Record found
  1 - No record has that id
  2 - Command error (database)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.IncludeMeta, "meta", false, "include provenance")

	return cmd
}

func runGet(opts *GetOptions, id string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	st, err := openStore(opts.Config.Database.Path, opts.Logger)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "opening database", err)
	}
	defer st.Close()

	stored, err := st.GetOne(cmd.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return f.Fail(ExitFailure, ErrCodeNotFound, fmt.Sprintf("no record with id %s", id), nil)
	}
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "reading record", err)
	}

	view := newStoredRecord(stored, opts.IncludeMeta)
	if f.Format == "json" {
		return f.Success(view)
	}
	return printStoredRecord(f, stored, opts.IncludeMeta)
}

func printStoredRecord(f *OutputFormatter, st *store.Stored, includeMeta bool) error {
	fmt.Fprintf(f.Writer, "id: %s (seq %d)\n", st.ID, st.Seq)
	fmt.Fprintf(f.Writer, "master format: %s\n", st.MasterFormat)
	if len(st.Models) > 0 {
		fmt.Fprintf(f.Writer, "models: %s\n", strings.Join(st.Models, ", "))
	}
	fmt.Fprintf(f.Writer, "updated: %s\n", st.UpdatedAt.Format(time.RFC3339))

	data := st.Data
	if includeMeta && len(st.Meta) > 0 {
		data = ir.Clone(st.Data).(ir.IRObject)
		data[ir.MetaKey] = st.Meta
	}
	if err := f.WriteIR(data); err != nil {
		return err
	}
	printFieldErrors(f, st.Errors)
	return nil
}
