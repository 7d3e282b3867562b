package record

import (
	"encoding/json"

	"github.com/roach88/bibform/internal/ir"
)

// Provenance types beyond the rule types of ir.RuleType.
const (
	TypeDefault = "default" // value produced by a schema default
	TypeAfter   = "after"   // value written by an after decorator or extension
	TypeSet     = "set"     // value written through Set or Update
)

// Provenance records how a field got its current value.
type Provenance struct {
	JSONID    string             `json:"json_id"`
	Timestamp string             `json:"timestamp"`
	Seq       int64              `json:"seq"`
	PID       *int64             `json:"pid,omitempty"`
	Type      string             `json:"type"`
	Hidden    bool               `json:"hidden,omitempty"`
	Function  []string           `json:"function,omitempty"` // descriptions of every rule that contributed
	After     []ir.DecoratorCall `json:"after,omitempty"`
	Ext       ir.IRObject        `json:"ext,omitempty"`
	Origin    string             `json:"origin,omitempty"` // field whose after phase wrote this one
}

// Clone returns a deep copy.
func (p *Provenance) Clone() *Provenance {
	if p == nil {
		return nil
	}
	out := *p
	if p.PID != nil {
		pid := *p.PID
		out.PID = &pid
	}
	out.Function = append([]string(nil), p.Function...)
	if p.After != nil {
		out.After = make([]ir.DecoratorCall, len(p.After))
		for i, call := range p.After {
			out.After[i] = ir.DecoratorCall{Name: call.Name, Args: ir.Clone(call.Args)}
		}
	}
	if p.Ext != nil {
		out.Ext = ir.Clone(p.Ext).(ir.IRObject)
	}
	return &out
}

// UnmarshalJSON decodes decorator arguments into IR values.
func (p *Provenance) UnmarshalJSON(data []byte) error {
	type plain Provenance
	var aux struct {
		plain
		After []struct {
			Name string          `json:"name"`
			Args json.RawMessage `json:"args,omitempty"`
		} `json:"after,omitempty"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*p = Provenance(aux.plain)
	p.After = nil
	for _, call := range aux.After {
		dc := ir.DecoratorCall{Name: call.Name}
		if len(call.Args) > 0 {
			args, err := ir.UnmarshalIRValue(call.Args)
			if err != nil {
				return err
			}
			dc.Args = args
		}
		p.After = append(p.After, dc)
	}
	return nil
}
