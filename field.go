package customdata

import "context"

// Field is the view of one schema field handed to predicates and hook
// conditions while its owner is being audited.
type Field struct {
	// Name is the field name with the optional marker stripped.
	Name string

	ctx     context.Context
	prop    *Property
	owner   *Base
	schema  Schema
	pending *Error
}

// Value returns the field's current value, falling back to its default.
func (f *Field) Value() any {
	if v := f.owner.raw[f.Name]; v != nil {
		return v
	}
	if f.prop != nil {
		return f.prop.def
	}
	return nil
}

// Lookup returns another field's current value, falling back to the default
// its schema declares.
func (f *Field) Lookup(name string) any {
	if v := f.owner.raw[name]; v != nil {
		return v
	}
	if p, ok := f.schema.lookup(name); ok && p != nil {
		return p.def
	}
	return nil
}

// Owner returns the data object being audited.
func (f *Field) Owner() Data { return f.owner.self }

// Context returns the construction context.
func (f *Field) Context() context.Context { return f.ctx }

// reject records a specific failure for the current check. The type matcher
// reports it instead of the generic type error.
func (f *Field) reject(s errorInfo) { f.pending = f.fail(s) }

func (f *Field) fail(s errorInfo) *Error {
	s.field = f.Name
	s.owner = f.owner.typeName
	if s.message == "" && f.prop != nil {
		s.message = f.prop.message
	}
	return newError(s)
}
