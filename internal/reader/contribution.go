package reader

import (
	"github.com/roach88/bibform/internal/ir"
	"github.com/roach88/bibform/internal/record"
	"github.com/roach88/bibform/internal/schema"
)

// contribution accumulates the value of one field and what produced it.
type contribution struct {
	value     ir.IRValue
	has       bool
	list      bool // schema type list: always store a list
	typ       string
	functions []string
	after     []ir.DecoratorCall
}

func newContribution(def *ir.FieldDefinition) *contribution {
	return &contribution{list: def.Schema != nil && def.Schema.Type == schema.TypeList}
}

// extend merges a creator result. The first value is kept as it is; a
// second one turns the field into a list, and list results add their items.
func (c *contribution) extend(v ir.IRValue) {
	if !c.has {
		if c.list {
			v = ir.AsList(v)
		}
		c.value, c.has = v, true
		return
	}
	cur, ok := c.value.(ir.IRArray)
	if !ok {
		cur = ir.IRArray{c.value}
	}
	if arr, isArr := v.(ir.IRArray); isArr {
		cur = append(cur, arr...)
	} else {
		cur = append(cur, v)
	}
	c.value = cur
}

// replace stores a derived or calculated result over whatever was there.
func (c *contribution) replace(v ir.IRValue, rule *ir.Rule) {
	if c.list {
		v = ir.AsList(v)
	}
	c.value, c.has = v, true
	c.typ = string(rule.Type)
	c.functions = []string{rule.Function}
	c.after = appendCalls(nil, rule.Decorators.After)
}

// credit records a creator rule that contributed at least one value.
func (c *contribution) credit(rule *ir.Rule) {
	c.typ = string(rule.Type)
	c.functions = append(c.functions, rule.Function)
	c.after = appendCalls(c.after, rule.Decorators.After)
}

func (c *contribution) setDefault(v ir.IRValue) {
	c.value, c.has = v, true
	c.typ = record.TypeDefault
	c.functions, c.after = nil, nil
}

func (c *contribution) clear() {
	c.value, c.has = nil, false
	c.functions, c.after = nil, nil
}
