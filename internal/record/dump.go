package record

import (
	"encoding/json"

	"github.com/cockroachdb/errors"

	"github.com/roach88/bibform/internal/ir"
)

// DumpOptions selects what Dump includes.
type DumpOptions struct {
	ExcludeHidden bool // drop fields whose provenance is hidden
	IncludeMeta   bool // add the provenance under ir.MetaKey
}

// Dump returns a deep copy of the data, filtered by opts.
func (r *Record) Dump(opts DumpOptions) (ir.IRObject, error) {
	out := make(ir.IRObject, len(r.data))
	for name, v := range r.data {
		if opts.ExcludeHidden && r.meta[name] != nil && r.meta[name].Hidden {
			continue
		}
		out[name] = ir.Clone(v)
	}
	if opts.IncludeMeta {
		meta, err := r.metaObject(out)
		if err != nil {
			return nil, err
		}
		out[ir.MetaKey] = meta
	}
	return out, nil
}

func (r *Record) metaObject(data ir.IRObject) (ir.IRObject, error) {
	meta := make(ir.IRObject, len(data))
	for name := range data {
		prov, ok := r.meta[name]
		if !ok {
			continue
		}
		raw, err := json.Marshal(prov)
		if err != nil {
			return nil, errors.Wrapf(err, "record: encoding provenance of %s", name)
		}
		v, err := ir.UnmarshalIRValue(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "record: encoding provenance of %s", name)
		}
		meta[name] = ir.StripNulls(v)
	}
	return meta, nil
}

// DumpJSON renders Dump as canonical JSON: RFC 8785 key order, NFC strings.
func (r *Record) DumpJSON(opts DumpOptions) ([]byte, error) {
	dump, err := r.Dump(opts)
	if err != nil {
		return nil, err
	}
	return ir.MarshalCanonical(dump)
}

// MarshalJSON renders the data as canonical JSON.
func (r *Record) MarshalJSON() ([]byte, error) {
	return r.DumpJSON(DumpOptions{})
}

// FromDump rebuilds a record from a dump made with IncludeMeta. Fields
// without a provenance entry get a set provenance.
func FromDump(dump ir.IRObject) (*Record, error) {
	rec := New()
	var meta map[string]*Provenance
	if raw, ok := dump[ir.MetaKey]; ok {
		data, err := ir.MarshalIRValue(raw)
		if err != nil {
			return nil, errors.Wrap(err, "record: reading provenance")
		}
		if err := json.Unmarshal(data, &meta); err != nil {
			return nil, errors.Wrap(err, "record: reading provenance")
		}
	}
	for name, v := range dump {
		if name == ir.MetaKey {
			continue
		}
		rec.Store(name, ir.Clone(v), meta[name])
	}
	return rec, nil
}
