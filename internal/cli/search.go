package cli

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/roach88/bibform/internal/ir"
	"github.com/roach88/bibform/internal/queryir"
)

// SearchOptions holds flags for the search command.
type SearchOptions struct {
	*RootOptions
	Path         string
	Equals       string
	Contains     string
	Key          string
	Exists       bool
	Where        []string // path=value pairs, all must match
	Typed        bool     // values are JSON literals
	MasterFormat string
	Limit        int
}

// SearchResult holds the matching records.
type SearchResult struct {
	Records []StoredRecord `json:"records"`
	Count   int            `json:"count"`
}

// NewSearchCommand creates the search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SearchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search saved records",
		Long: `Search saved records by the values of their fields.

Paths are dot paths into the record data, such as
main_entry_personal_name.personal_name. A path over a list matches when any
element matches. Values are strings unless --typed is set, in which case
they are read as JSON literals (42, true, "text").

Records come back in the order they were saved.

Examples:
  bibform search --path control_number --equals 1
  bibform search --path international_standard_book_number --contains 80-902734-1-6 --key international_standard_book_number
  bibform search --path edition --exists
  bibform search --where title=Quarks --where main_entry_personal_name.personal_name=Ellis
  bibform search --path edition --equals 2 --typed`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(opts, cmd)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.Path, "path", "", "dot path of the compared value")
	flags.StringVar(&opts.Equals, "equals", "", "match records whose value at --path equals this")
	flags.StringVar(&opts.Contains, "contains", "", "match records whose list at --path holds this")
	flags.StringVar(&opts.Key, "key", "", "with --contains, the member of list objects to compare")
	flags.BoolVar(&opts.Exists, "exists", false, "match records holding any value at --path")
	flags.StringArrayVar(&opts.Where, "where", nil, "path=value equality, repeatable")
	flags.BoolVar(&opts.Typed, "typed", false, "read values as JSON literals")
	flags.StringVar(&opts.MasterFormat, "master-format", "", "only records of this master format")
	flags.IntVar(&opts.Limit, "limit", 0, "maximum number of records (0 = no limit)")
	cmd.MarkFlagsMutuallyExclusive("equals", "contains", "exists")

	return cmd
}

func runSearch(opts *SearchOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	q, err := opts.query()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeQuery, "invalid search", err)
	}
	if res := queryir.Validate(q); !res.Valid {
		return f.Fail(ExitCommandError, ErrCodeQuery, "invalid search: "+strings.Join(res.Problems, "; "), nil)
	}

	st, err := openStore(opts.Config.Database.Path, opts.Logger)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "opening database", err)
	}
	defer st.Close()

	found, err := st.Search(cmd.Context(), q)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "searching records", err)
	}
	f.VerboseLog("Found %d record(s)", len(found))

	result := SearchResult{Records: make([]StoredRecord, len(found)), Count: len(found)}
	for i, s := range found {
		result.Records[i] = newStoredRecord(s, false)
	}

	if f.Format == "json" {
		return f.Success(result)
	}
	if len(found) == 0 {
		fmt.Fprintln(f.Writer, "No records found.")
		return nil
	}
	for _, s := range found {
		fmt.Fprintf(f.Writer, "%s  seq=%d  %s\n", s.ID, s.Seq, summaryLine(s.Data))
	}
	fmt.Fprintf(f.Writer, "\n%d record(s)\n", len(found))
	return nil
}

// query builds the Select the flags describe.
func (o *SearchOptions) query() (queryir.Select, error) {
	var preds []queryir.Predicate

	if o.Path != "" {
		switch {
		case o.Exists:
			preds = append(preds, queryir.Exists{Path: o.Path})
		case o.Contains != "":
			v, err := o.value(o.Contains)
			if err != nil {
				return queryir.Select{}, err
			}
			preds = append(preds, queryir.Contains{Path: o.Path, Key: o.Key, Value: v})
		case o.Equals != "":
			v, err := o.value(o.Equals)
			if err != nil {
				return queryir.Select{}, err
			}
			preds = append(preds, queryir.Equals{Path: o.Path, Value: v})
		default:
			return queryir.Select{}, errors.New("--path needs one of --equals, --contains or --exists")
		}
	} else if o.Exists || o.Contains != "" || o.Equals != "" || o.Key != "" {
		return queryir.Select{}, errors.New("--equals, --contains, --key and --exists need --path")
	}

	for _, w := range o.Where {
		path, raw, ok := strings.Cut(w, "=")
		if !ok || path == "" {
			return queryir.Select{}, errors.Newf("--where %q is not path=value", w)
		}
		v, err := o.value(raw)
		if err != nil {
			return queryir.Select{}, err
		}
		preds = append(preds, queryir.Equals{Path: path, Value: v})
	}

	q := queryir.Select{MasterFormat: o.MasterFormat, Limit: o.Limit}
	switch len(preds) {
	case 0:
	case 1:
		q.Filter = preds[0]
	default:
		q.Filter = queryir.And{Predicates: preds}
	}
	return q, nil
}

func (o *SearchOptions) value(raw string) (ir.IRValue, error) {
	if !o.Typed {
		return ir.IRString(raw), nil
	}
	v, err := ir.UnmarshalIRValue([]byte(raw))
	if err != nil {
		return nil, errors.Wrapf(err, "value %q is not a JSON literal", raw)
	}
	return v, nil
}

// summaryLine shows the first few top-level string values of a record.
func summaryLine(data ir.IRObject) string {
	var parts []string
	for _, k := range data.SortedKeys() {
		s, ok := ir.AsString(data[k])
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%q", k, s))
		if len(parts) == 3 {
			break
		}
	}
	return strings.Join(parts, " ")
}
