package customdata

import "reflect"

// TypeRef is anything a property can be validated against: a builtin Kind,
// a nested DataType, or a Predicate.
type TypeRef interface {
	typeName() string
}

// Kind is a builtin scalar type tag.
type Kind string

const (
	TypeString  Kind = "string"
	TypeInteger Kind = "integer"
	TypeFloat   Kind = "float"
	TypeBool    Kind = "bool"
	TypeArray   Kind = "array"
	TypeObject  Kind = "object"
	TypeNumeric Kind = "numeric"
)

func (k Kind) typeName() string { return string(k) }

// Builtin reports whether k belongs to the fixed builtin set.
func (k Kind) Builtin() bool {
	switch k {
	case TypeString, TypeInteger, TypeFloat, TypeBool, TypeArray, TypeObject, TypeNumeric:
		return true
	default:
		return false
	}
}

// Predicate is a custom validator. The field gives access to the owning
// object while the audit runs.
type Predicate func(value any, f *Field) bool

func (Predicate) typeName() string { return "custom" }

// DataType references a concrete data type so schemas can nest objects and
// handlers can declare their input.
type DataType interface {
	TypeRef
	// Name is the qualified Go type name, e.g. "billing.AddressData".
	Name() string
	// IsInstance reports whether v already is a constructed value of this type.
	IsInstance(v any) bool
	// New returns a fresh, unconstructed instance.
	New() Data
}

// TypeOf returns the DataType of T. Call it as TypeOf[AddressData]().
func TypeOf[T any, PT interface {
	*T
	Data
}]() DataType {
	return dataType[T, PT]{}
}

type dataType[T any, PT interface {
	*T
	Data
}] struct{}

func (dataType[T, PT]) typeName() string { return reflect.TypeFor[T]().String() }
func (dataType[T, PT]) Name() string     { return reflect.TypeFor[T]().String() }
func (dataType[T, PT]) New() Data        { return PT(new(T)) }

func (dataType[T, PT]) IsInstance(v any) bool {
	p, ok := v.(PT)
	return ok && p != nil
}

func typeNameOf(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return "<nil>"
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.String()
}
