// Package plugin defines the decorator and extension protocol used by the
// reader, plus the name-keyed Catalog that holds every registered plugin and
// function factory.
//
// Plugin kinds by evaluation phase:
//   - before: gates a whole rule before any data is looked at
//   - on: gates one matched element, either raw or transformed
//   - after: side effects once a field value is final
//   - field and model extensions: named metadata compiled at build time and
//     evaluated against an output record
//
// Boolean decorators must not have side effects on the paths that return
// false; the reader stops at the first false.
package plugin

import (
	"time"

	"github.com/roach88/bibform/internal/ir"
)

// Action names the mutation that triggered an after decorator.
type Action string

const (
	// ActionTranslate is used while a record is being built by the reader.
	ActionTranslate Action = "translate"

	// ActionSet is used when a caller mutates a translated record.
	ActionSet Action = "set"
)

// BeforeContext is what a before decorator can see about the rule it gates.
type BeforeContext struct {
	JSONID       string
	FieldName    string
	MasterFormat string
	Rule         *ir.Rule
	Prepared     *ir.Intermediate
	Record       ir.RecordView

	// Require processes the named field (exposed name or json_id) if it has
	// not been processed yet and reports whether it ended up with a value.
	Require func(name string) bool
}

// Target is the mutable face of an output record offered to after
// decorators and extensions.
type Target interface {
	ir.RecordView

	// Put stores value under name with provenance pointing at origin.
	// Storing the same value twice leaves the record unchanged.
	Put(name string, value ir.IRValue, origin string) error

	// AddCapability attaches a named capability object.
	AddCapability(name string, capability any)
}

// BeforeDecorator decides whether a rule is attempted at all.
type BeforeDecorator interface {
	Evaluate(ctx *BeforeContext, args ir.IRValue) (bool, error)
}

// OnDecorator decides whether one matched element is included.
type OnDecorator interface {
	Evaluate(value ir.IRValue, catalog *Catalog, args ir.IRValue) (bool, error)

	// OnTransformed reports whether Evaluate receives the transformed value
	// rather than the raw element.
	OnTransformed() bool
}

// AfterDecorator runs once the field value is final.
type AfterDecorator interface {
	Evaluate(out Target, field string, action Action, args ir.IRValue) error
}

// FieldExtension contributes named metadata to a field definition.
type FieldExtension interface {
	// CreateElement validates and normalises the configured value at build time.
	CreateElement(args ir.IRValue) (ir.IRValue, error)

	// Evaluate runs in the after phase of the field.
	Evaluate(out Target, field string, value ir.IRValue) error
}

// ModelExtension contributes named metadata to a model definition.
type ModelExtension interface {
	CreateElement(args ir.IRValue) (ir.IRValue, error)

	// InheritModel merges a base model's value into the current one. Either
	// side may be nil.
	InheritModel(current, base ir.IRValue) ir.IRValue

	// Evaluate runs once a record has been built against the model.
	Evaluate(out Target, value ir.IRValue) error
}

// CreatorFactory compiles configured arguments into a creator function.
type CreatorFactory func(args ir.IRValue) (ir.CreatorFunc, error)

// VirtualFactory compiles configured arguments into a derived/calculated
// function.
type VirtualFactory func(args ir.IRValue) (ir.VirtualFunc, error)

// CapabilityFactory builds the capability object grafted onto a record.
type CapabilityFactory func(rec ir.RecordView) (any, error)

// ProducerEnv carries the sources a default producer may draw from.
type ProducerEnv struct {
	Now   time.Time
	NewID func() string
}

// DefaultProducer computes a schema default value.
type DefaultProducer func(env ProducerEnv) (ir.IRValue, error)
