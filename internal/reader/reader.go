// Package reader translates source records into output records.
//
// A translation resolves the requested models into a field set, then takes
// every field through its own sequence: rule lookup, creator rules for the
// record's master format, derived and calculated rules, defaulting, forced
// coercion and the after phase. Problems with a single field are recorded
// on the output and never stop the others; only the failures listed as
// ReaderError codes abort a translation.
package reader

import (
	"bytes"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/roach88/bibform/internal/format"
	"github.com/roach88/bibform/internal/ir"
	"github.com/roach88/bibform/internal/model"
	"github.com/roach88/bibform/internal/record"
	"github.com/roach88/bibform/internal/registry"
)

// Translate reads one record. blob is a raw single-record blob ([]byte or
// string) in the input format chosen by WithMasterFormat, a prepared
// *ir.Intermediate, or a JSON object (ir.IRObject or map[string]any) read
// with the json master format.
func Translate(reg *registry.Registry, blob any, opts ...Option) (record.Output, error) {
	if reg == nil {
		return nil, errors.New("reader: nil registry")
	}
	o := newOptions(opts)
	if o.outputSet && o.output == nil {
		return nil, readerError(ErrInvalidOutput, "nil output factory", nil)
	}
	snap, err := reg.Snapshot()
	if err != nil {
		return nil, err
	}
	prepared, err := prepare(blob, o)
	if err != nil {
		return nil, err
	}
	return translate(snap, prepared, o)
}

// Result is the outcome for one record of a batch.
type Result struct {
	Index  int
	Output record.Output
	Err    error
}

// TranslateAll splits a raw multi-record blob with the preparer of the
// input format and translates every record. A record that fails carries
// its error in its Result; the batch always runs to the end. The returned
// error is set only when the blob cannot be split.
func TranslateAll(reg *registry.Registry, raw []byte, opts ...Option) ([]Result, error) {
	o := newOptions(opts)
	p, ok := o.preparers.Lookup(o.inputFormat)
	if !ok {
		return nil, readerError(ErrUnknownFormat, "no preparer for input format "+o.inputFormat, nil)
	}
	blobs, err := p.SplitBlob(raw)
	if err != nil {
		return nil, readerError(ErrInvalidBlob, "cannot split blob", err)
	}

	results := make([]Result, len(blobs))
	for i, blob := range blobs {
		out, err := Translate(reg, blob, opts...)
		results[i] = Result{Index: i, Output: out, Err: err}
		if err != nil {
			o.logger.Warn("record skipped", zap.Int("index", i), zap.Error(err))
		}
	}
	return results, nil
}

func prepare(blob any, o *options) (*ir.Intermediate, error) {
	switch b := blob.(type) {
	case nil:
		return nil, readerError(ErrInvalidBlob, "no blob", nil)
	case *ir.Intermediate:
		if b == nil || b.Len() == 0 {
			return nil, readerError(ErrInvalidBlob, "empty record", nil)
		}
		rec := copyIntermediate(b)
		if rec.MasterFormat == "" {
			rec.MasterFormat = o.inputFormat
			if p, ok := o.preparers.Lookup(o.inputFormat); ok {
				rec.MasterFormat = p.MasterFormat()
			}
		}
		return rec, nil
	case ir.IRObject:
		if len(b) == 0 {
			return nil, readerError(ErrInvalidBlob, "empty record", nil)
		}
		return format.FromObject(b), nil
	case map[string]any:
		v, err := ir.FromGo(b)
		if err != nil {
			return nil, readerError(ErrInvalidBlob, "unreadable object", err)
		}
		return prepare(v, o)
	case []byte:
		return prepareRaw(b, o)
	case string:
		return prepareRaw([]byte(b), o)
	default:
		return nil, readerError(ErrInvalidBlob, "unsupported blob type", errors.Newf("%T", blob))
	}
}

func prepareRaw(raw []byte, o *options) (*ir.Intermediate, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, readerError(ErrInvalidBlob, "empty blob", nil)
	}
	p, ok := o.preparers.Lookup(o.inputFormat)
	if !ok {
		return nil, readerError(ErrUnknownFormat, "no preparer for input format "+o.inputFormat, nil)
	}
	rec, err := p.Prepare(raw)
	if err != nil {
		return nil, readerError(ErrInvalidBlob, "cannot prepare blob", err)
	}
	return rec, nil
}

func copyIntermediate(src *ir.Intermediate) *ir.Intermediate {
	dst := ir.NewIntermediate(src.MasterFormat)
	for _, key := range src.Keys() {
		for _, v := range src.Get(key) {
			dst.Add(key, ir.Clone(v))
		}
	}
	return dst
}

func translate(snap *registry.Snapshot, prepared *ir.Intermediate, o *options) (record.Output, error) {
	resolved, err := snap.Models.Resolve(o.models...)
	if err != nil {
		return nil, readerError(ErrModelResolution, "cannot resolve models", err)
	}
	out := o.output()
	if out == nil {
		return nil, readerError(ErrInvalidOutput, "output factory returned nil", nil)
	}

	e := &env{
		snap:     snap,
		resolved: resolved,
		master:   prepared.MasterFormat,
		clock:    o.clock,
		ids:      o.ids,
		logger:   o.logger,
	}
	out.Bind(e, record.Origin{
		MasterFormat: prepared.MasterFormat,
		Models:       resolved.Names,
		Fingerprint:  snap.Fingerprint(),
	})

	if prepared.MasterFormat == ir.FormatJSON {
		prepared = exposedToJSONIDs(prepared, resolved)
	}

	t := newTranslation(e, out, prepared)
	for _, ref := range t.targets(o.fields) {
		t.process(ref)
	}
	t.evaluateModelExtensions()

	o.logger.Debug("record translated",
		zap.String("master_format", prepared.MasterFormat),
		zap.Strings("models", resolved.Names),
		zap.Int("fields", len(out.Data())),
		zap.Int("errors", len(out.Errors())),
	)
	return out, nil
}

// exposedToJSONIDs rekeys a json master format record from exposed names to
// json_ids and drops the meta-metadata of a dump. Keys the model does not
// expose are kept as they are.
func exposedToJSONIDs(src *ir.Intermediate, resolved *model.Resolved) *ir.Intermediate {
	dst := ir.NewIntermediate(src.MasterFormat)
	for _, key := range src.Keys() {
		if key == ir.MetaKey {
			continue
		}
		target := key
		if id, ok := resolved.JSONID(key); ok {
			target = id
		}
		for _, v := range src.Get(key) {
			dst.Add(target, v)
		}
	}
	return dst
}
