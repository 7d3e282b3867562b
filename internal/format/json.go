package format

import (
	"bytes"
	"encoding/json"

	"github.com/cockroachdb/errors"

	"github.com/roach88/bibform/internal/ir"
)

// JSONPreparer reads JSON dumps: one object per record, or an array of
// them.
type JSONPreparer struct{}

func (JSONPreparer) Name() string         { return ir.FormatJSON }
func (JSONPreparer) MasterFormat() string { return ir.FormatJSON }

func (JSONPreparer) SplitBlob(raw []byte) ([][]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] != '[' {
		return [][]byte{trimmed}, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, errors.Wrap(err, "json")
	}
	out := make([][]byte, len(items))
	for i, item := range items {
		out[i] = []byte(item)
	}
	return out, nil
}

func (JSONPreparer) Prepare(raw []byte) (*ir.Intermediate, error) {
	v, err := ir.UnmarshalIRValue(bytes.TrimSpace(raw))
	if err != nil {
		return nil, errors.Wrap(err, "json")
	}
	obj, ok := v.(ir.IRObject)
	if !ok {
		return nil, errors.Newf("json: record must be an object, got %T", v)
	}
	return FromObject(obj), nil
}

// FromObject turns a JSON object into a json master format record, one key
// per top-level member in sorted order.
func FromObject(obj ir.IRObject) *ir.Intermediate {
	rec := ir.NewIntermediate(ir.FormatJSON)
	for _, key := range obj.SortedKeys() {
		rec.Add(key, ir.Clone(obj[key]))
	}
	return rec
}
