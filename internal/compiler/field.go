package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/bibform/internal/ir"
)

func parseFields(source string, v cue.Value) ([]ir.FieldSpec, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, fieldSyntaxError(source, err)
	}
	var fields []ir.FieldSpec
	for iter.Next() {
		field, err := parseField(source, iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		fields = append(fields, field)
	}
	return fields, nil
}

func parseField(source, name string, v cue.Value) (ir.FieldSpec, error) {
	field := ir.FieldSpec{Name: name, Source: source, Line: lineOf(v)}
	shapeErr := func(at cue.Value, format string, args ...any) error {
		return &FieldParserError{
			Code:    ErrFieldShape,
			Field:   name,
			Source:  source,
			Message: fmt.Sprintf(format, args...),
			Pos:     at.Pos(),
		}
	}

	iter, err := v.Fields()
	if err != nil {
		return field, shapeErr(v, "field definition must be a struct")
	}
	for iter.Next() {
		key, val := iter.Label(), iter.Value()
		switch key {
		case "aliases":
			aliases, err := stringsOf(val)
			if err != nil {
				return field, shapeErr(val, "aliases: %v", err)
			}
			field.Aliases = aliases
		case "pid":
			n, err := val.Int64()
			if err != nil {
				return field, shapeErr(val, "pid must be an integer")
			}
			field.PID = &n
		case "hidden", "extend", "override":
			b, err := val.Bool()
			if err != nil {
				return field, shapeErr(val, "%s must be a boolean", key)
			}
			switch key {
			case "hidden":
				field.Hidden = b
			case "extend":
				field.Extend = b
			default:
				field.Override = b
			}
		case "creator":
			rules, err := parseCreators(source, name, val)
			if err != nil {
				return field, err
			}
			field.Rules = append(field.Rules, rules...)
		case "derived", "calculated":
			rules, err := parseRuleList(source, name, ir.RuleType(key), "", val)
			if err != nil {
				return field, err
			}
			field.Rules = append(field.Rules, rules...)
		case "producer":
			producers, err := parseProducers(source, name, val)
			if err != nil {
				return field, err
			}
			field.Producers = producers
		case "schema":
			schema, err := parseSchema(val)
			if err != nil {
				return field, shapeErr(val, "schema: %v", err)
			}
			field.Schema = schema
		default:
			ext, err := toIR(val)
			if err != nil {
				return field, shapeErr(val, "%s: %v", key, err)
			}
			field.Extensions = append(field.Extensions, ir.Extension{Name: key, Value: ext})
		}
	}
	return field, nil
}

// parseCreators reads `creator: <format>: [rule, ...]`.
func parseCreators(source, field string, v cue.Value) ([]ir.RuleSpec, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, &FieldParserError{Code: ErrFieldShape, Field: field, Source: source,
			Message: "creator must map source formats to rule lists", Pos: v.Pos()}
	}
	var rules []ir.RuleSpec
	for iter.Next() {
		formatRules, err := parseRuleList(source, field, ir.RuleCreator, iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		rules = append(rules, formatRules...)
	}
	return rules, nil
}

func parseRuleList(source, field string, typ ir.RuleType, format string, v cue.Value) ([]ir.RuleSpec, error) {
	iter, err := v.List()
	if err != nil {
		return nil, &FieldParserError{Code: ErrFieldShape, Field: field, Source: source,
			Message: fmt.Sprintf("%s rules must be a list", typ), Pos: v.Pos()}
	}
	var rules []ir.RuleSpec
	for iter.Next() {
		rule, err := parseRule(source, field, typ, format, iter.Value())
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func parseRule(source, field string, typ ir.RuleType, format string, v cue.Value) (ir.RuleSpec, error) {
	rule := ir.RuleSpec{Type: typ, Format: format, Line: lineOf(v)}
	shapeErr := func(at cue.Value, msg string, args ...any) error {
		return &FieldParserError{Code: ErrFieldShape, Field: field, Source: source,
			Message: fmt.Sprintf(msg, args...), Pos: at.Pos()}
	}

	iter, err := v.Fields()
	if err != nil {
		return rule, shapeErr(v, "rule must be a struct")
	}
	for iter.Next() {
		key, val := iter.Label(), iter.Value()
		switch key {
		case "tags":
			tags, err := stringsOf(val)
			if err != nil {
				return rule, shapeErr(val, "tags: %v", err)
			}
			rule.Tags = tags
		case "function":
			fn, err := val.String()
			if err != nil {
				return rule, shapeErr(val, "function must be a string")
			}
			rule.Function = fn
		case "args":
			args, err := toIR(val)
			if err != nil {
				return rule, shapeErr(val, "args: %v", err)
			}
			rule.Args = args
		case "before", "on", "after":
			calls, err := parseDecorators(val)
			if err != nil {
				return rule, shapeErr(val, "%s: %v", key, err)
			}
			switch key {
			case "before":
				rule.Decorators.Before = calls
			case "on":
				rule.Decorators.On = calls
			default:
				rule.Decorators.After = calls
			}
		default:
			return rule, shapeErr(val, "unknown rule key %q", key)
		}
	}
	return rule, nil
}

// parseDecorators reads `{name: args, ...}` in declaration order.
func parseDecorators(v cue.Value) ([]ir.DecoratorCall, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, fmt.Errorf("decorators must be a struct of name: args")
	}
	var calls []ir.DecoratorCall
	for iter.Next() {
		args, err := toIR(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", iter.Label(), err)
		}
		calls = append(calls, ir.DecoratorCall{Name: iter.Label(), Args: args})
	}
	return calls, nil
}

// parseProducers reads `producer: <format>: [{tag, subfields: {code: path}}]`.
func parseProducers(source, field string, v cue.Value) ([]ir.ProducerRule, error) {
	shapeErr := func(at cue.Value, msg string) error {
		return &FieldParserError{Code: ErrFieldShape, Field: field, Source: source, Message: msg, Pos: at.Pos()}
	}
	formats, err := v.Fields()
	if err != nil {
		return nil, shapeErr(v, "producer must map target formats to lists")
	}
	var out []ir.ProducerRule
	for formats.Next() {
		format := formats.Label()
		list, err := formats.Value().List()
		if err != nil {
			return nil, shapeErr(formats.Value(), "producer rules must be a list")
		}
		for list.Next() {
			pv := list.Value()
			tagVal, ok := lookup(pv, "tag")
			if !ok {
				return nil, shapeErr(pv, "producer tag is required")
			}
			tag, err := tagVal.String()
			if err != nil {
				return nil, shapeErr(tagVal, "producer tag must be a string")
			}
			rule := ir.ProducerRule{Format: format, Tag: tag}
			if subs, ok := lookup(pv, "subfields"); ok {
				iter, err := subs.Fields()
				if err != nil {
					return nil, shapeErr(subs, "producer subfields must map codes to paths")
				}
				for iter.Next() {
					path, err := iter.Value().String()
					if err != nil {
						return nil, shapeErr(iter.Value(), "producer subfield path must be a string")
					}
					rule.Subfields = append(rule.Subfields, ir.SubfieldMap{Code: iter.Label(), Path: path})
				}
			}
			out = append(out, rule)
		}
	}
	return out, nil
}

func parseSchema(v cue.Value) (*ir.Schema, error) {
	s := &ir.Schema{}
	iter, err := v.Fields()
	if err != nil {
		return nil, fmt.Errorf("must be a struct")
	}
	for iter.Next() {
		key, val := iter.Label(), iter.Value()
		switch key {
		case "type":
			t, err := val.String()
			if err != nil {
				return nil, fmt.Errorf("type must be a string")
			}
			s.Type = t
		case "default":
			d, err := toIR(val)
			if err != nil {
				return nil, fmt.Errorf("default: %w", err)
			}
			s.Default = d
		case "default_func":
			f, err := val.String()
			if err != nil {
				return nil, fmt.Errorf("default_func must be a string")
			}
			s.DefaultFunc = f
		case "force":
			b, err := val.Bool()
			if err != nil {
				return nil, fmt.Errorf("force must be a boolean")
			}
			s.Force = b
		case "constraint":
			c, err := val.String()
			if err != nil {
				return nil, fmt.Errorf("constraint must be a CUE expression string")
			}
			s.Constraint = c
		case "required":
			req, err := stringsOf(val)
			if err != nil {
				return nil, fmt.Errorf("required: %w", err)
			}
			s.Required = req
		case "items":
			items, err := parseSchema(val)
			if err != nil {
				return nil, fmt.Errorf("items: %w", err)
			}
			s.Items = items
		case "properties":
			props, err := val.Fields()
			if err != nil {
				return nil, fmt.Errorf("properties must be a struct")
			}
			s.Properties = make(map[string]*ir.Schema)
			for props.Next() {
				sub, err := parseSchema(props.Value())
				if err != nil {
					return nil, fmt.Errorf("properties.%s: %w", props.Label(), err)
				}
				s.Properties[props.Label()] = sub
			}
		default:
			return nil, fmt.Errorf("unknown schema key %q", key)
		}
	}
	return s, nil
}
