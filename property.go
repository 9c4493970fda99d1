package customdata

import (
	"fmt"
	"strings"

	"github.com/iancoleman/strcase"
)

// Property describes the expected shape of one field: its type, default,
// casts and audit hooks. Build it with the constructors below and chain
// the methods; a Property is consumed by a single audit run.
type Property struct {
	selected   TypeRef
	alternate  TypeRef
	child      TypeRef
	def        any
	hasDefault bool
	cast       func(any) any
	hasCast    bool
	message    string
	before     []hook
	after      []hook
	rules      any
}

type hookKind uint8

const (
	hookDefault hookKind = iota
	hookNotEmpty
	hookRequiredWhen
	hookRequiredWhenEquals
	hookTypeWhen
	hookRename
	hookCastTo
	hookCastToRecord
	hookCopy
)

// hook is one audit step. Only the fields relevant to kind are set.
type hook struct {
	kind hookKind

	cond  func(*Field) bool // requiredWhen, typeWhen
	other string            // requiredWhenEquals
	value any               // requiredWhenEquals, castTo
	typ   TypeRef           // typeWhen

	rename   func(*Field) string // rename
	castFunc func(any) any       // castTo
	hasFunc  bool
	record   string // castToRecord kind
	copyName string // copy
	replace  bool
}

// String expects a string (or a numeric value).
func String() *Property { return &Property{selected: TypeString} }

// Integer expects a Go integer.
func Integer() *Property { return &Property{selected: TypeInteger} }

// Float expects a Go float.
func Float() *Property { return &Property{selected: TypeFloat} }

// Numeric expects any numeric-looking value.
func Numeric() *Property { return &Property{selected: TypeNumeric} }

// Number is an alias of Numeric.
func Number() *Property { return Numeric() }

// Bool expects a bool or the integers 0 and 1.
func Bool() *Property { return &Property{selected: TypeBool} }

// Array expects a slice; see ArrayOf to constrain its elements.
func Array() *Property { return &Property{selected: TypeArray} }

// Object expects a structured value (map, struct, pointer, data object).
func Object() *Property { return &Property{selected: TypeObject} }

// OfType expects t, typically a nested DataType from TypeOf.
func OfType(t TypeRef) *Property { return &Property{selected: t} }

// ArrayOf expects a slice whose every element satisfies elem.
func ArrayOf(elem TypeRef) *Property { return (&Property{}).IsArrayOf(elem) }

// CustomValidator validates with fn instead of a builtin type.
func CustomValidator(fn Predicate) *Property { return (&Property{}).CustomValidator(fn) }

// Default registers v as the field's default. The default is written back
// into the object before the field is audited. A nil default is ignored.
func (p *Property) Default(v any) *Property {
	if v == nil {
		return p
	}
	p.def = v
	p.hasDefault = true
	p.before = append(p.before, hook{kind: hookDefault})
	return p
}

// IsArrayOf marks the field as an array of elem.
func (p *Property) IsArrayOf(elem TypeRef) *Property {
	p.selected = TypeArray
	p.child = elem
	return p
}

// CustomValidator replaces the selected type with fn.
func (p *Property) CustomValidator(fn Predicate) *Property {
	p.selected = fn
	return p
}

// InArray accepts only values loosely equal to one of items.
func (p *Property) InArray(items ...any) *Property {
	p.selected = Predicate(func(v any, f *Field) bool {
		for _, it := range items {
			if looseEqual(v, it) {
				return true
			}
		}
		parts := make([]string, len(items))
		for i, it := range items {
			parts[i] = fmt.Sprint(it)
		}
		f.reject(errorInfo{
			kind:   ErrUnexpectedPropertyType,
			code:   CodeNotInArray,
			actual: fmt.Sprint(v),
			extra:  map[string]string{"items": strings.Join(parts, ",")},
		})
		return false
	})
	return p
}

// OrUseType registers a fallback type tried once when the primary check fails.
func (p *Property) OrUseType(t TypeRef) *Property {
	p.alternate = t
	return p
}

// CastForValidation transforms the value handed to the type matcher. The
// stored value is left untouched.
func (p *Property) CastForValidation(fn func(any) any) *Property {
	p.cast = fn
	p.hasCast = true
	return p
}

// NotEmpty fails with ErrEmptyProperty when the value is empty.
func (p *Property) NotEmpty() *Property {
	p.before = append(p.before, hook{kind: hookNotEmpty})
	return p
}

// RequiredWhen fails with ErrMissingRequiredProperty when the value is empty
// and cond holds.
func (p *Property) RequiredWhen(cond func(*Field) bool) *Property {
	p.before = append(p.before, hook{kind: hookRequiredWhen, cond: cond})
	return p
}

// RequiredWhenEquals is RequiredWhen with the condition "field other equals
// value"; other's default is used when it has no value.
func (p *Property) RequiredWhenEquals(other string, value any) *Property {
	p.before = append(p.before, hook{kind: hookRequiredWhenEquals, other: other, value: value})
	return p
}

// TypeWhen switches the selected type to t when cond holds.
func (p *Property) TypeWhen(cond func(*Field) bool, t TypeRef) *Property {
	p.before = append(p.before, hook{kind: hookTypeWhen, cond: cond, typ: t})
	return p
}

// Message overrides the default error text of this property.
func (p *Property) Message(text string) *Property {
	p.message = text
	return p
}

// ToCamelCase renames the field to camelCase once every field is audited.
func (p *Property) ToCamelCase() *Property { return p.renameWith(strcase.ToLowerCamel) }

// ToSnakeCase renames the field to snake_case once every field is audited.
func (p *Property) ToSnakeCase() *Property { return p.renameWith(strcase.ToSnake) }

// ToKebabCase renames the field to kebab-case once every field is audited.
func (p *Property) ToKebabCase() *Property { return p.renameWith(strcase.ToKebab) }

// ToPascalCase renames the field to PascalCase once every field is audited.
func (p *Property) ToPascalCase() *Property { return p.renameWith(strcase.ToCamel) }

// Transform renames the field to name once every field is audited.
func (p *Property) Transform(name string) *Property {
	return p.TransformFunc(func(*Field) string { return name })
}

// TransformFunc renames the field to fn's result once every field is audited.
func (p *Property) TransformFunc(fn func(*Field) string) *Property {
	p.after = append(p.after, hook{kind: hookRename, rename: fn})
	return p
}

func (p *Property) renameWith(conv func(string) string) *Property {
	return p.TransformFunc(func(f *Field) string { return conv(f.Name) })
}

// CastTo replaces the audited value with v, keeping the original under
// original_<name>.
func (p *Property) CastTo(v any) *Property {
	p.after = append(p.after, hook{kind: hookCastTo, value: v})
	return p
}

// CastToFunc replaces the audited value with fn(value), keeping the original
// under original_<name>.
func (p *Property) CastToFunc(fn func(any) any) *Property {
	p.after = append(p.after, hook{kind: hookCastTo, castFunc: fn, hasFunc: true})
	return p
}

// CastToRecord replaces the audited value with the record of the given kind
// whose identity equals the value. The RecordFinder comes from the context.
func (p *Property) CastToRecord(kind string) *Property {
	p.after = append(p.after, hook{kind: hookCastToRecord, record: kind})
	return p
}

// Copy duplicates the audited value under name (default <field>_copy). When
// the target exists and replace is false a _copy suffix is appended.
func (p *Property) Copy(name string, replace bool) *Property {
	p.after = append(p.after, hook{kind: hookCopy, copyName: name, replace: replace})
	return p
}

// Rules sets the opaque form-validation rules exported by RulesOf.
func (p *Property) Rules(rules any) *Property {
	p.rules = rules
	return p
}

// AddRule appends a single rule, turning the rules payload into a []any.
func (p *Property) AddRule(rule any) *Property {
	list, _ := p.rules.([]any)
	p.rules = append(list, rule)
	return p
}

// DefaultValue returns the registered default, if any.
func (p *Property) DefaultValue() (any, bool) { return p.def, p.hasDefault }

// SelectedType returns the primary type.
func (p *Property) SelectedType() TypeRef { return p.selected }
