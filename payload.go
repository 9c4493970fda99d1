package customdata

import (
	"bytes"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Payload is an input a data object can be built from.
type Payload interface {
	Values() (map[string]any, error)
}

// Raw is an already decoded payload.
type Raw map[string]any

func (r Raw) Values() (map[string]any, error) { return map[string]any(r), nil }

// JSON decodes a JSON object. Integral numbers become int64, other numbers
// float64.
func JSON(b []byte) Payload { return jsonPayload(b) }

type jsonPayload []byte

func (p jsonPayload) Values() (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(p))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, payloadError("json", err)
	}
	return normalize(m).(map[string]any), nil
}

// JSONC decodes JSON with comments and trailing commas.
func JSONC(b []byte) Payload { return jsoncPayload(b) }

type jsoncPayload []byte

func (p jsoncPayload) Values() (map[string]any, error) {
	return jsonPayload(jsonc.ToJSON(p)).Values()
}

// YAML decodes a YAML mapping.
func YAML(b []byte) Payload { return yamlPayload(b) }

type yamlPayload []byte

func (p yamlPayload) Values() (map[string]any, error) {
	var m map[string]any
	if err := yaml.Unmarshal(p, &m); err != nil {
		return nil, payloadError("yaml", err)
	}
	if m == nil {
		m = map[string]any{}
	}
	return normalize(m).(map[string]any), nil
}

func payloadError(format string, err error) error {
	return newError(errorInfo{
		kind:  ErrInvalidPayload,
		code:  CodeInvalidPayload,
		cause: err,
		extra: map[string]string{"detail": format + ": " + err.Error()},
	})
}

// normalize converts json.Number and non-string-keyed maps into the plain
// shapes the type matcher expects.
func normalize(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		for k, e := range t {
			t[k] = normalize(e)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = normalize(e)
		}
		return out
	case []any:
		for i, e := range t {
			t[i] = normalize(e)
		}
		return t
	default:
		return v
	}
}

// Mapper is implemented by records that can be reduced to a plain map.
type Mapper interface {
	ToMap() map[string]any
}

// Filler marks values Fill should reduce to plain data.
type Filler struct{}

type filled struct{ v any }

// From marks v for reduction: data objects become their validated snapshot,
// Mappers their map. Other values pass through unchanged.
func (*Filler) From(v any) any { return filled{v: v} }

// Fill builds a payload from fn's result, reducing every value wrapped with
// Filler.From.
//
//	customdata.Fill(func(f *customdata.Filler) map[string]any {
//		return map[string]any{"user": f.From(user), "note": "x"}
//	})
func Fill(fn func(*Filler) map[string]any) Payload { return fillPayload(fn) }

type fillPayload func(*Filler) map[string]any

func (fn fillPayload) Values() (map[string]any, error) {
	in := fn(&Filler{})
	out := make(map[string]any, len(in))
	for k, v := range in {
		fv, ok := v.(filled)
		if !ok {
			out[k] = v
			continue
		}
		switch t := fv.v.(type) {
		case Data:
			if isNilData(t) {
				out[k] = nil
				continue
			}
			out[k] = t.dataBase().ValidatedMap()
		case Mapper:
			out[k] = t.ToMap()
		default:
			out[k] = fv.v
		}
	}
	return out, nil
}
