package reader

import (
	"go.uber.org/zap"

	"github.com/roach88/bibform/internal/format"
	"github.com/roach88/bibform/internal/marc"
	"github.com/roach88/bibform/internal/record"
)

type options struct {
	inputFormat string
	models      []string
	output      func() record.Output
	outputSet   bool
	clock       Clock
	ids         IDGenerator
	logger      *zap.Logger
	fields      []string
	preparers   *format.Registry
}

// Option configures one Translate call.
type Option func(*options)

func newOptions(opts []Option) *options {
	o := &options{
		inputFormat: marc.MasterFormat,
		output:      record.NewOutput,
		ids:         UUIDv7Generator{},
		preparers:   format.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.clock == nil {
		o.clock = NewClock()
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}

// WithMasterFormat names the input format of a raw blob ("marc",
// "textmarc", "json"). A prepared *ir.Intermediate without a master format
// of its own takes this name as its master format. Defaults to "marc".
func WithMasterFormat(name string) Option {
	return func(o *options) { o.inputFormat = name }
}

// WithModel selects the models the record is translated against. No
// models means every field under its json_id.
func WithModel(names ...string) Option {
	return func(o *options) { o.models = names }
}

// WithOutput replaces the output factory.
func WithOutput(factory func() record.Output) Option {
	return func(o *options) {
		o.output = factory
		o.outputSet = true
	}
}

// WithClock sets the provenance clock. Records keep it for later Set calls.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithIDGenerator sets the identifier source of the uuid default producer.
func WithIDGenerator(g IDGenerator) Option {
	return func(o *options) { o.ids = g }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithFields limits the translation to the named fields, by exposed name
// or json_id. Fields they depend on are still processed on demand.
func WithFields(names ...string) Option {
	return func(o *options) { o.fields = names }
}

// WithPreparers replaces the preparer registry used for raw blobs.
func WithPreparers(r *format.Registry) Option {
	return func(o *options) { o.preparers = r }
}
