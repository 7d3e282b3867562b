package store

import (
	"encoding/json"

	"github.com/cockroachdb/errors"

	"github.com/roach88/bibform/internal/ir"
	"github.com/roach88/bibform/internal/record"
)

// marshalObject converts an IRObject to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON for deterministic serialization.
func marshalObject(what string, obj ir.IRObject) (string, error) {
	if obj == nil {
		obj = ir.IRObject{}
	}
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return "", errors.Wrapf(err, "marshal %s", what)
	}
	return string(data), nil
}

// unmarshalObject parses canonical JSON TEXT to IRObject.
// Uses ir.IRObject.UnmarshalJSON which keeps large integers exact.
func unmarshalObject(what, data string) (ir.IRObject, error) {
	if data == "" || data == "{}" {
		return ir.IRObject{}, nil
	}
	var obj ir.IRObject
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s", what)
	}
	return obj, nil
}

// marshalErrors converts the continuable errors of a record to JSON TEXT.
// FieldError is a struct with fixed field order, so encoding/json output
// is already stable.
func marshalErrors(errs []record.FieldError) (string, error) {
	if len(errs) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(errs)
	if err != nil {
		return "", errors.Wrap(err, "marshal errors")
	}
	return string(data), nil
}

func unmarshalErrors(data string) ([]record.FieldError, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var errs []record.FieldError
	if err := json.Unmarshal([]byte(data), &errs); err != nil {
		return nil, errors.Wrap(err, "unmarshal errors")
	}
	return errs, nil
}

// marshalModels stores the model list as a JSON array.
func marshalModels(models []string) (string, error) {
	if models == nil {
		models = []string{}
	}
	data, err := json.Marshal(models)
	if err != nil {
		return "", errors.Wrap(err, "marshal models")
	}
	return string(data), nil
}

func unmarshalModels(data string) ([]string, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var models []string
	if err := json.Unmarshal([]byte(data), &models); err != nil {
		return nil, errors.Wrap(err, "unmarshal models")
	}
	return models, nil
}

// splitDump separates a record dump made with IncludeMeta into its data
// and its provenance.
func splitDump(dump ir.IRObject) (data, meta ir.IRObject) {
	data = make(ir.IRObject, len(dump))
	meta = ir.IRObject{}
	for k, v := range dump {
		if k == ir.MetaKey {
			if m, ok := v.(ir.IRObject); ok {
				meta = m
			}
			continue
		}
		data[k] = v
	}
	return data, meta
}
