package rules

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/reoring/customdata"
)

// Op defines simple comparison operators for If.
type Op int

const (
	Eq Op = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

// Condition decides whether a conditional hook applies. It can be passed to
// Property.RequiredWhen and Property.TypeWhen directly.
type Condition func(*customdata.Field) bool

// If compares the value at path against want. The first path segment names
// a field of the object being audited (its default applies when unset);
// further segments walk into maps, nested data objects and slices, e.g.
// "address/country" or "/items/0/sku".
func If(path string, op Op, want any) Condition {
	segs := splitPath(path)
	return func(f *customdata.Field) bool {
		cur, ok := valueAt(f, segs)
		if !ok {
			return op == Ne
		}
		return compare(cur, op, want)
	}
}

// Present holds when the value at path is set.
func Present(path string) Condition {
	segs := splitPath(path)
	return func(f *customdata.Field) bool {
		v, ok := valueAt(f, segs)
		return ok && v != nil
	}
}

// In holds when the value at path equals one of values.
func In(path string, values ...any) Condition {
	conds := make([]Condition, len(values))
	for i, v := range values {
		conds[i] = If(path, Eq, v)
	}
	return IfAny(conds...)
}

// IfAll builds a conditional that requires all conditions to hold.
func IfAll(conds ...Condition) Condition {
	return func(f *customdata.Field) bool {
		for _, c := range conds {
			if c != nil && !c(f) {
				return false
			}
		}
		return true
	}
}

// IfAny builds a conditional that requires any condition to hold.
func IfAny(conds ...Condition) Condition {
	return func(f *customdata.Field) bool {
		for _, c := range conds {
			if c != nil && c(f) {
				return true
			}
		}
		return false
	}
}

// Not negates c.
func Not(c Condition) Condition {
	return func(f *customdata.Field) bool { return !c(f) }
}

// And combines the receiver with additional conditions using logical AND.
func (c Condition) And(others ...Condition) Condition {
	return IfAll(append([]Condition{c}, others...)...)
}

// Or combines the receiver with additional conditions using logical OR.
func (c Condition) Or(others ...Condition) Condition {
	return IfAny(append([]Condition{c}, others...)...)
}

// ------- helpers -------

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

type getter interface{ Get(name string) any }

func valueAt(f *customdata.Field, segs []string) (any, bool) {
	if len(segs) == 0 {
		return f.Value(), true
	}
	cur := f.Lookup(segs[0])
	for _, seg := range segs[1:] {
		if cur == nil {
			return nil, false
		}
		switch t := cur.(type) {
		case getter:
			cur = t.Get(seg)
			continue
		case map[string]any:
			v, ok := t[seg]
			if !ok {
				return nil, false
			}
			cur = v
			continue
		}
		rv := reflect.ValueOf(cur)
		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= rv.Len() {
				return nil, false
			}
			cur = rv.Index(idx).Interface()
		case reflect.Map:
			if rv.Type().Key().Kind() != reflect.String {
				return nil, false
			}
			mv := rv.MapIndex(reflect.ValueOf(seg).Convert(rv.Type().Key()))
			if !mv.IsValid() {
				return nil, false
			}
			cur = mv.Interface()
		default:
			return nil, false
		}
	}
	return cur, true
}

func compare(cur any, op Op, want any) bool {
	switch op {
	case Eq:
		return equal(cur, want)
	case Ne:
		return !equal(cur, want)
	case Lt, Le, Gt, Ge:
		return compareOrdered(cur, op, want)
	default:
		return false
	}
}

// equal compares deeply, treating numbers by value ("3", 3 and 3.0 are equal).
func equal(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	if !numeric(a) || !numeric(b) {
		return false
	}
	x, errA := cast.ToFloat64E(a)
	y, errB := cast.ToFloat64E(b)
	return errA == nil && errB == nil && x == y
}

func numeric(v any) bool {
	switch t := v.(type) {
	case string:
		_, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return err == nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

func compareOrdered(cur any, op Op, want any) bool {
	if !numeric(cur) || !numeric(want) {
		return false
	}
	a, errA := cast.ToFloat64E(cur)
	b, errB := cast.ToFloat64E(want)
	if errA != nil || errB != nil {
		return false
	}
	switch op {
	case Lt:
		return a < b
	case Le:
		return a <= b
	case Gt:
		return a > b
	case Ge:
		return a >= b
	}
	return false
}
