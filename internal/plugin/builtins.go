package plugin

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/roach88/bibform/internal/ir"
)

// NowDefault produces the translation time as an RFC 3339 UTC string.
func NowDefault(env ProducerEnv) (ir.IRValue, error) {
	return ir.IRString(env.Now.UTC().Format(time.RFC3339)), nil
}

// UUIDDefault produces a fresh identifier, a UUIDv7 unless the environment
// supplies its own generator.
func UUIDDefault(env ProducerEnv) (ir.IRValue, error) {
	if env.NewID != nil {
		return ir.IRString(env.NewID()), nil
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, errors.Wrap(err, "uuid default")
	}
	return ir.IRString(id.String()), nil
}

// EmptyListDefault produces [].
func EmptyListDefault(ProducerEnv) (ir.IRValue, error) { return ir.IRArray{}, nil }

// EmptyObjectDefault produces {}.
func EmptyObjectDefault(ProducerEnv) (ir.IRValue, error) { return ir.IRObject{}, nil }

// RegisterBuiltins registers every builtin plugin, function and producer.
func RegisterBuiltins(c *Catalog) error {
	regs := []func() error{
		func() error { return c.RegisterBefore("only_if", OnlyIf{}) },
		func() error { return c.RegisterBefore("parse_first", ParseFirst{}) },
		func() error { return c.RegisterBefore("depends_on", DependsOn{}) },
		func() error { return c.RegisterBefore("legacy", Legacy{}) },

		func() error { return c.RegisterOn("only_if_master_value", OnlyIfMasterValue{}) },
		func() error { return c.RegisterOn("only_if_value", OnlyIfValue{}) },

		func() error { return c.RegisterAfter("copy_to", CopyTo{}) },
		func() error { return c.RegisterAfter("dedupe", Dedupe{}) },

		func() error { return c.RegisterFieldExtension("description", Description{}) },
		func() error { return c.RegisterFieldExtension("normalize", Normalize{}) },
		func() error { return c.RegisterModelExtension("description", ModelDescription{}) },
		func() error { return c.RegisterModelExtension("capabilities", NewCapabilities(c)) },

		func() error { return c.RegisterCreator("value", ValueFunc) },
		func() error { return c.RegisterCreator("subfield", SubfieldFunc) },
		func() error { return c.RegisterCreator("subfields", SubfieldsFunc) },
		func() error { return c.RegisterCreator("integer", IntegerFunc) },
		func() error { return c.RegisterCreator("join", JoinFunc) },
		func() error { return c.RegisterCreator("const", ConstFunc) },

		func() error { return c.RegisterVirtual("count", CountVirtual) },
		func() error { return c.RegisterVirtual("copy", CopyVirtual) },
		func() error { return c.RegisterVirtual("first", FirstVirtual) },
		func() error { return c.RegisterVirtual("const", ConstVirtual) },

		func() error { return c.RegisterCapability("citable", NewCitable) },
		func() error { return c.RegisterCapability("identifiable", NewIdentifiable) },

		func() error { return c.RegisterDefault("now", NowDefault) },
		func() error { return c.RegisterDefault("uuid", UUIDDefault) },
		func() error { return c.RegisterDefault("empty_list", EmptyListDefault) },
		func() error { return c.RegisterDefault("empty_object", EmptyObjectDefault) },
	}
	for _, reg := range regs {
		if err := reg(); err != nil {
			return err
		}
	}
	return nil
}
