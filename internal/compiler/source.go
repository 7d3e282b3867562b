package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/bibform/internal/ir"
)

// Source is one configuration source: a CUE document and the name it is
// reported under (usually its path).
type Source struct {
	Name string
	Data []byte
}

// CompileSource parses a configuration source into field and model specs.
// Each source is compiled on its own; sources never reference each other at
// the CUE level.
//
// A source may declare a `fields` struct and a `models` struct:
//
//	fields: title: creator: marc: [{tags: ["245__"], function: "subfields", args: {title: "a"}}]
//	models: Book: fields: {title: "title"}
func CompileSource(src Source) (*ir.SourceSpec, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src.Data, cue.Filename(src.Name))
	if err := v.Err(); err != nil {
		return nil, fieldSyntaxError(src.Name, err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fieldSyntaxError(src.Name, err)
	}
	return CompileValue(src.Name, v)
}

// CompileValue parses an already built CUE value.
func CompileValue(name string, v cue.Value) (*ir.SourceSpec, error) {
	spec := &ir.SourceSpec{Name: name}

	iter, err := v.Fields()
	if err != nil {
		return nil, fieldSyntaxError(name, err)
	}
	for iter.Next() {
		switch iter.Label() {
		case "fields":
			fields, err := parseFields(name, iter.Value())
			if err != nil {
				return nil, err
			}
			spec.Fields = fields
		case "models":
			models, err := parseModels(name, iter.Value())
			if err != nil {
				return nil, err
			}
			spec.Models = models
		default:
			return nil, &FieldParserError{
				Code:    ErrFieldShape,
				Source:  name,
				Message: fmt.Sprintf("unknown top-level key %q, expected fields or models", iter.Label()),
				Pos:     iter.Value().Pos(),
			}
		}
	}
	return spec, nil
}

// LoadDir reads every .cue file under dir in lexical path order.
func LoadDir(dir string) ([]Source, error) {
	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, err
	}
	sources := make([]Source, 0, len(files))
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		sources = append(sources, Source{Name: path, Data: data})
	}
	return sources, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths, sorted.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}
