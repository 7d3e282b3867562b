package cli

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/bibform/internal/marc"
	"github.com/roach88/bibform/internal/queryir"
	"github.com/roach88/bibform/internal/record"
	"github.com/roach88/bibform/internal/store"
)

// ProduceOptions holds flags for the produce command.
type ProduceOptions struct {
	*RootOptions
	All    bool
	Output string
}

// ProduceResult is the JSON form of produced MARCXML.
type ProduceResult struct {
	Records int    `json:"records"`
	MARCXML string `json:"marcxml,omitempty"`
	Path    string `json:"path,omitempty"`
}

// NewProduceCommand creates the produce command.
func NewProduceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProduceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "produce <id>...",
		Short: "Render saved records as MARCXML",
		Long: `Render saved records as a MARCXML collection through the marc producer
rules of their fields. Fields without producer rules are left out.

Examples:
  bibform produce 0192f3c4-5a6b-7c8d-9e0f-a1b2c3d4e5f6
  bibform produce --all -o collection.xml`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProduce(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.All, "all", false, "render every saved record")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runProduce(opts *ProduceOptions, ids []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	ctx := cmd.Context()

	if len(ids) == 0 && !opts.All {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "name at least one record id or use --all", nil)
	}
	if len(ids) > 0 && opts.All {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "record ids and --all are exclusive", nil)
	}

	_, snap, err := loadRegistry(opts.Config.Config.Dir, opts.Logger)
	if err != nil {
		return failConfig(f, err)
	}

	st, err := openStore(opts.Config.Database.Path, opts.Logger)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "opening database", err)
	}
	defer st.Close()

	var stored []*store.Stored
	if opts.All {
		if stored, err = st.Search(ctx, queryir.Select{}); err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "reading records", err)
		}
	} else {
		for _, id := range ids {
			s, err := st.GetOne(ctx, id)
			if errors.Is(err, store.ErrNotFound) {
				return f.Fail(ExitFailure, ErrCodeNotFound, fmt.Sprintf("no record with id %s", id), nil)
			}
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeStore, "reading record", err)
			}
			stored = append(stored, s)
		}
	}

	recs := make([]*record.Record, 0, len(stored))
	for _, s := range stored {
		if s.Fingerprint != snap.Fingerprint() {
			opts.Logger.Warn("record was translated with another configuration",
				zap.String("id", s.ID),
				zap.String("record_fingerprint", s.Fingerprint),
				zap.String("fingerprint", snap.Fingerprint()),
			)
		}
		rec, err := s.Record()
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "rebuilding record", err)
		}
		recs = append(recs, rec)
	}

	data, err := marc.ProduceAll(recs, snap.Table)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeProduce, "producing MARCXML", err)
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
			return f.Fail(ExitCommandError, ErrCodeWriteFailed, "writing output file", err)
		}
		if f.Format == "json" {
			return f.Success(ProduceResult{Records: len(recs), Path: opts.Output})
		}
		fmt.Fprintf(f.Writer, "✓ Wrote %d record(s) to %s\n", len(recs), opts.Output)
		return nil
	}

	if f.Format == "json" {
		return f.Success(ProduceResult{Records: len(recs), MARCXML: string(data)})
	}
	_, err = f.Writer.Write(data)
	return err
}
