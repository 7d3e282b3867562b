package harness

import (
	"context"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/roach88/bibform/internal/compiler"
	"github.com/roach88/bibform/internal/reader"
	"github.com/roach88/bibform/internal/record"
	"github.com/roach88/bibform/internal/registry"
	"github.com/roach88/bibform/internal/store"
	"github.com/roach88/bibform/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenarios with deterministic clocks and ids.
type Harness struct {
	registry *registry.Registry
	store    *store.Store
	ids      *testutil.SequenceIDGenerator
	logger   *zap.Logger
}

// Option configures Run.
type Option func(*runOptions)

type runOptions struct {
	logger *zap.Logger
}

// WithLogger sets the logger handed to the registry, reader and store.
func WithLogger(l *zap.Logger) Option {
	return func(o *runOptions) { o.logger = l }
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
//  1. Load the scenario's configuration into a registry
//  2. Translate every record with a fresh deterministic clock
//  3. Save every translated record in the store
//  4. Evaluate assertions and return the result
//
// A record that cannot be translated is reported as a failure of the
// result; the returned error is reserved for problems with the scenario
// itself (unreadable configuration, store setup).
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	o := &runOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}

	reg, err := loadRegistry(scenario.Config, o.logger)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:",
		store.WithLogger(o.logger),
		store.WithIDGenerator(testutil.NewSequenceIDGenerator("stored")),
		store.WithClock(testutil.NewDeterministicClock()),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create in-memory store")
	}
	defer st.Close()

	h := &Harness{
		registry: reg,
		store:    st,
		ids:      testutil.NewSequenceIDGenerator("id"),
		logger:   o.logger,
	}

	result := NewResult()
	if err := h.translate(ctx, scenario, result); err != nil {
		return nil, err
	}

	actx := &AssertionContext{Ctx: ctx, Store: st}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// loadRegistry reads the configuration files into a registry.
func loadRegistry(paths []string, logger *zap.Logger) (*registry.Registry, error) {
	var sources registry.MemLoader
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read config %s", p)
		}
		sources = append(sources, compiler.Source{Name: filepath.Base(p), Data: data})
	}
	reg := registry.New(sources, registry.WithLogger(logger))
	if err := reg.Load(); err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	return reg, nil
}

// translate reads, translates and saves every record of the scenario.
func (h *Harness) translate(ctx context.Context, scenario *Scenario, result *Result) error {
	for i, in := range scenario.Records {
		blob := []byte(in.Data)
		if in.File != "" {
			var err error
			if blob, err = os.ReadFile(in.File); err != nil {
				return errors.Wrapf(err, "record %d", i)
			}
		}

		opts := []reader.Option{
			reader.WithClock(testutil.NewDeterministicClock()),
			reader.WithIDGenerator(h.ids),
			reader.WithLogger(h.logger),
		}
		if scenario.InputFormat != "" {
			opts = append(opts, reader.WithMasterFormat(scenario.InputFormat))
		}
		if len(scenario.Models) > 0 {
			opts = append(opts, reader.WithModel(scenario.Models...))
		}
		if len(scenario.Fields) > 0 {
			opts = append(opts, reader.WithFields(scenario.Fields...))
		}

		out, err := reader.Translate(h.registry, blob, opts...)
		if err != nil {
			result.AddError(errors.Wrapf(err, "record %d", i).Error())
			result.Records = append(result.Records, RecordResult{Index: i})
			continue
		}
		rec := out.Record()

		id, err := h.store.SaveOne(ctx, rec)
		if err != nil {
			return errors.Wrapf(err, "record %d: save", i)
		}
		dump, err := rec.Dump(record.DumpOptions{IncludeMeta: true})
		if err != nil {
			return errors.Wrapf(err, "record %d: dump", i)
		}
		result.Records = append(result.Records, RecordResult{
			Index:  i,
			ID:     id,
			Dump:   dump,
			Errors: rec.Errors(),
			Record: rec,
		})

		h.logger.Debug("scenario record translated",
			zap.String("scenario", scenario.Name),
			zap.Int("record", i),
			zap.String("id", id),
			zap.Int("errors", len(rec.Errors())),
		)
	}
	return nil
}
