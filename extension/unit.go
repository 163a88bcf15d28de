package extension

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Options are the free-form options handed to a unit.
type Options map[string]any

// Unit is a self-contained contribution of schema, parse and serialize rules and
// actions for one construct. Apply must only act through the builder handle.
type Unit struct {
	Name string
	// Requires lists units that must be applied before this one.
	Requires []string
	// Overridable allows a later registration with the same name to replace this unit.
	Overridable bool
	Options     Options
	Apply       func(b *Builder, opts Options) error
}

// WithOptions returns a copy of the unit with opts merged over its options.
func (u Unit) WithOptions(opts Options) Unit {
	merged := make(Options, len(u.Options)+len(opts))
	for key, value := range u.Options {
		merged[key] = value
	}
	for key, value := range opts {
		merged[key] = value
	}
	u.Options = merged
	return u
}

// DecodeOptions decodes unit options into a typed struct. Unknown keys are rejected.
func DecodeOptions(opts Options, out any) error {
	if len(opts) == 0 {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		TagName:          "option",
	})
	if err != nil {
		return fmt.Errorf("failed to create options decoder: %w", err)
	}
	if err := decoder.Decode(map[string]any(opts)); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	return nil
}
