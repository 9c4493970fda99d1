package customdata

import "context"

// Virtual is a data object whose schema is supplied at runtime.
type Virtual struct {
	Base
	schema Schema
	sink   func(message string, err error) error
	ignore []string
}

func (v *Virtual) ExpectedProperties() Schema { return v.schema }

func (v *Virtual) HandleError(message string, err error) error {
	if v.sink == nil {
		return err
	}
	return v.sink(message, err)
}

// Ignore leaves names out of the identity key. Call it before Key.
func (v *Virtual) Ignore(names ...string) *Virtual {
	v.ignore = append(v.ignore, names...)
	return v
}

func (v *Virtual) IgnoreForKey() []string { return v.ignore }

// Check builds a Virtual from raw against an ad-hoc schema. sink may be nil,
// in which case the first error is returned.
func Check(ctx context.Context, raw map[string]any, schema Schema, sink func(message string, err error) error) (*Virtual, error) {
	v := &Virtual{schema: schema, sink: sink}
	if err := construct(ctx, v, raw, nil); err != nil {
		return nil, err
	}
	return v, nil
}
