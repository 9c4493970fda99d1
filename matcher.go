package customdata

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// Matches reports whether v satisfies the builtin kind k. For TypeArray only
// the container is checked. Non-builtin kinds never match.
func Matches(k Kind, v any) bool {
	switch k {
	case TypeString:
		if _, ok := v.(string); ok {
			return true
		}
		return isNumberValue(v)
	case TypeInteger:
		return isInteger(v)
	case TypeFloat:
		switch v.(type) {
		case float32, float64:
			return true
		}
		return false
	case TypeBool:
		if _, ok := v.(bool); ok {
			return true
		}
		if isInteger(v) {
			f, _ := toFloat(v)
			return f == 0 || f == 1
		}
		return false
	case TypeNumeric:
		if isNumberValue(v) {
			return true
		}
		s, ok := v.(string)
		return ok && isNumericString(s)
	case TypeObject:
		if d, ok := v.(Data); ok {
			return !isNilData(d)
		}
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Map, reflect.Struct:
			return true
		case reflect.Pointer:
			return !rv.IsNil()
		}
		return false
	case TypeArray:
		rv := reflect.ValueOf(v)
		return rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array
	default:
		return false
	}
}

func isInteger(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, uintptr:
		return true
	}
	return false
}

// isNumberValue reports Go numeric kinds and json.Number.
func isNumberValue(v any) bool {
	switch v.(type) {
	case float32, float64, json.Number:
		return true
	}
	return isInteger(v)
}

func isNumericString(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return false
	}
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	var s string
	switch t := v.(type) {
	case json.Number:
		s = t.String()
	case string:
		s = t
	default:
		return 0, false
	}
	if !isNumericString(s) {
		return 0, false
	}
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f, true
}

// kindOf names the kind of v for error messages.
func kindOf(v any) string {
	if v == nil {
		return "null"
	}
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "bool"
	case float32, float64:
		return "float"
	case json.Number:
		return "numeric"
	}
	if isInteger(v) {
		return "integer"
	}
	if d, ok := v.(Data); ok && !isNilData(d) {
		return d.dataBase().typeName
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}

// isEmpty mirrors the loose emptiness used by NotEmpty, RequiredWhen and the
// optional-default rule: nil, false, zero numbers, "", "0", empty
// collections and nil pointers.
func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	switch t := v.(type) {
	case bool:
		return !t
	case string:
		return t == "" || t == "0"
	case json.Number:
		f, ok := toFloat(t)
		return ok && f == 0
	}
	if isNumberValue(v) {
		f, _ := toFloat(v)
		return f == 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// looseEqual compares deeply, treating numbers and numeric strings by value.
func looseEqual(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if okA && okB {
		return fa == fb
	}
	return false
}
