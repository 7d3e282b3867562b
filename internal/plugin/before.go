package plugin

import (
	"slices"

	"github.com/cockroachdb/errors"

	"github.com/roach88/bibform/internal/ir"
)

// OnlyIf gates a rule on the master format and on a value already present in
// the record:
//
//	only_if: {master_format: ["marc"], field: "collection.primary", equals: "ARTICLE"}
//
// It only reads the record. A field that is not processed yet counts as
// absent; list it in a parse_first placed before only_if to process it
// first.
type OnlyIf struct{}

func (OnlyIf) Evaluate(ctx *BeforeContext, args ir.IRValue) (bool, error) {
	formats, err := stringList(args, "master_format")
	if err != nil {
		return false, errors.Wrap(err, "only_if")
	}
	if len(formats) > 0 && !slices.Contains(formats, ctx.MasterFormat) {
		return false, nil
	}

	path, ok := argString(args, "field")
	if !ok {
		return true, nil
	}
	if ctx.Record == nil {
		return false, nil
	}
	v, found := ctx.Record.Get(path)
	return matchValue(v, found, args), nil
}

// ParseFirst processes the listed fields before the rule runs. It never
// blocks the rule.
//
//	parse_first: ["authors", "title"]
type ParseFirst struct{}

func (ParseFirst) Evaluate(ctx *BeforeContext, args ir.IRValue) (bool, error) {
	names, err := stringList(args, "fields")
	if err != nil {
		return false, errors.Wrap(err, "parse_first")
	}
	if ctx.Require != nil {
		for _, name := range names {
			ctx.Require(name)
		}
	}
	return true, nil
}

// DependsOn processes the listed fields first and skips the rule unless all
// of them ended up with a value.
//
//	depends_on: ["authors"]
type DependsOn struct{}

func (DependsOn) Evaluate(ctx *BeforeContext, args ir.IRValue) (bool, error) {
	names, err := stringList(args, "fields")
	if err != nil {
		return false, errors.Wrap(err, "depends_on")
	}
	if ctx.Require == nil {
		return len(names) == 0, nil
	}
	for _, name := range names {
		if !ctx.Require(name) {
			return false, nil
		}
	}
	return true, nil
}

// LegacyEntry maps a flat legacy field name such as "100__a" onto a path
// below the field's json_id.
type LegacyEntry struct {
	Tag  string
	Path string
}

// Legacy carries flat legacy names for the legacy lookup table. It is
// metadata only and never blocks the rule.
//
//	legacy: [{tag: "100__a", path: "personal_name"}]
type Legacy struct{}

func (Legacy) Evaluate(*BeforeContext, ir.IRValue) (bool, error) {
	return true, nil
}

// ParseLegacyEntries reads the arguments of a legacy decorator.
func ParseLegacyEntries(args ir.IRValue) ([]LegacyEntry, error) {
	arr, ok := args.(ir.IRArray)
	if !ok {
		arr = ir.IRArray{args}
	}
	entries := make([]LegacyEntry, 0, len(arr))
	for i, elem := range arr {
		tag, ok := argString(elem, "tag")
		if !ok || tag == "" {
			return nil, errors.Newf("legacy[%d]: tag is required", i)
		}
		path, _ := argString(elem, "path")
		entries = append(entries, LegacyEntry{Tag: tag, Path: path})
	}
	return entries, nil
}
