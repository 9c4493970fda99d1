package customdata

import (
	"context"
	"maps"
	"reflect"

	json "github.com/goccy/go-json"
	"github.com/spf13/cast"
)

// Data is implemented by every concrete data type. Embed Base and declare the
// schema:
//
//	type UserData struct{ customdata.Base }
//
//	func (*UserData) ExpectedProperties() customdata.Schema {
//		return customdata.Schema{
//			customdata.Expect("name", customdata.String()),
//			customdata.Expect("age?", customdata.Numeric()),
//		}
//	}
type Data interface {
	ExpectedProperties() Schema
	dataBase() *Base
}

// Optional interfaces a concrete data type may implement.
type (
	// Booter runs after a successful audit and any before-boot callbacks.
	Booter interface {
		Boot(ctx context.Context) error
	}
	// Validator gates the audit; returning false skips it entirely.
	Validator interface {
		ShouldValidate() bool
	}
	// ErrorSink receives every engine error raised while building the object.
	// Returning nil swallows the error; the field is then left out of the
	// validated snapshot.
	ErrorSink interface {
		HandleError(message string, err error) error
	}
	// KeyIgnorer lists validated fields left out of the identity key.
	KeyIgnorer interface {
		IgnoreForKey() []string
	}
)

// State is the lifecycle stage of a data object.
type State uint8

const (
	StateConstructed State = iota
	StateAudited
	StateBooted
)

func (s State) String() string {
	switch s {
	case StateConstructed:
		return "constructed"
	case StateAudited:
		return "audited"
	case StateBooted:
		return "booted"
	default:
		return "unknown"
	}
}

// Base holds the raw and validated state of a data object. It is meant to be
// embedded; the zero value is ready for Make.
type Base struct {
	self     Data
	typeName string

	raw       map[string]any
	validated map[string]any
	order     []string // validated keys in audit order
	renames   map[string]string
	presence  PresenceMap
	state     State

	key    string
	hasKey bool
}

func (b *Base) dataBase() *Base { return b }

func (b *Base) init(self Data, raw map[string]any) {
	b.self = self
	b.typeName = typeNameOf(self)
	b.raw = make(map[string]any, len(raw))
	for k, v := range raw {
		b.raw[k] = v
	}
	b.validated = map[string]any{}
	b.order = nil
	b.renames = map[string]string{}
	b.presence = collectPresence(raw)
	b.state = StateConstructed
	b.key, b.hasKey = "", false
}

// Get returns the current raw value of name, or nil.
func (b *Base) Get(name string) any { return b.raw[name] }

// Set writes v under name, stripping any optional marker.
func (b *Base) Set(name string, v any) {
	name, _ = splitMarker(name)
	if b.raw == nil {
		b.raw = map[string]any{}
	}
	b.raw[name] = v
}

// GetOr returns the value of name. When it is unset, def is written into the
// object and returned.
func (b *Base) GetOr(name string, def any) any {
	if v := b.raw[name]; v != nil {
		return v
	}
	b.Set(name, def)
	if b.presence == nil {
		b.presence = PresenceMap{}
	}
	b.presence[name] |= PresenceDefaultApplied
	return def
}

// Has reports whether name holds a non-nil value.
func (b *Base) Has(name string) bool { return b.raw[name] != nil }

// All returns a copy of the raw data.
func (b *Base) All() map[string]any { return maps.Clone(b.raw) }

// OnlyValidated returns a copy of the validated snapshot.
func (b *Base) OnlyValidated() map[string]any { return maps.Clone(b.validated) }

// Only returns the raw values of keys that are set.
func (b *Base) Only(keys ...string) map[string]any {
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := b.raw[k]; ok {
			out[k] = v
		}
	}
	return out
}

// ValidatedFields lists the validated field names in audit order.
func (b *Base) ValidatedFields() []string { return append([]string(nil), b.order...) }

func (b *Base) GetString(name string) string  { return cast.ToString(b.raw[name]) }
func (b *Base) GetInt(name string) int        { return cast.ToInt(b.raw[name]) }
func (b *Base) GetFloat(name string) float64  { return cast.ToFloat64(b.raw[name]) }
func (b *Base) GetBool(name string) bool      { return cast.ToBool(b.raw[name]) }
func (b *Base) GetSlice(name string) []any    { return cast.ToSlice(b.raw[name]) }
func (b *Base) GetMap(name string) map[string]any {
	return cast.ToStringMap(b.raw[name])
}

// ToMap returns the raw data with nested data objects unwrapped recursively.
func (b *Base) ToMap() map[string]any { return unwrapMap(b.raw, false) }

// ValidatedMap returns the validated snapshot with nested data objects
// reduced to their own validated snapshots.
func (b *Base) ValidatedMap() map[string]any { return unwrapMap(b.validated, true) }

// MarshalJSON encodes ToMap.
func (b *Base) MarshalJSON() ([]byte, error) { return json.Marshal(b.ToMap()) }

func (b *Base) String() string {
	out, err := json.Marshal(b.ToMap())
	if err != nil {
		return ""
	}
	return string(out)
}

// Presence returns the per-field presence flags.
func (b *Base) Presence() PresenceMap { return maps.Clone(b.presence) }

// State returns the lifecycle stage.
func (b *Base) State() State { return b.state }

// TypeName returns the qualified type name of the concrete object.
func (b *Base) TypeName() string { return b.typeName }

func unwrapMap(m map[string]any, validatedOnly bool) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = unwrapValue(v, validatedOnly)
	}
	return out
}

func unwrapValue(v any, validatedOnly bool) any {
	switch t := v.(type) {
	case Data:
		if isNilData(t) {
			return nil
		}
		b := t.dataBase()
		if validatedOnly {
			return unwrapMap(b.validated, true)
		}
		return unwrapMap(b.raw, false)
	case map[string]any:
		return unwrapMap(t, validatedOnly)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = unwrapValue(e, validatedOnly)
		}
		return out
	}
	// typed slices of data objects, e.g. []*AddressData
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Implements(dataIface) {
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = unwrapValue(rv.Index(i).Interface(), validatedOnly)
		}
		return out
	}
	return v
}

var dataIface = reflect.TypeFor[Data]()

func isNilData(d Data) bool {
	if d == nil {
		return true
	}
	rv := reflect.ValueOf(d)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
