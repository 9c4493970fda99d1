package customdata

import "strings"

// OptionalMarker is the trailing character marking a schema field optional.
const OptionalMarker = "?"

// Entry is one declared field. A nil Property means required and untyped.
type Entry struct {
	Name     string
	Property *Property
}

// Schema is the ordered list of fields a data type expects. Order is
// significant: fields are audited, stored and keyed in declaration order.
type Schema []Entry

// Expect declares a field. Append "?" to name to make it optional.
func Expect(name string, p *Property) Entry { return Entry{Name: name, Property: p} }

// splitMarker strips the optional marker from name.
func splitMarker(name string) (string, bool) {
	if strings.HasSuffix(name, OptionalMarker) {
		return strings.TrimSuffix(name, OptionalMarker), true
	}
	return name, false
}

// lookup returns the property declared for the marker-stripped field name.
func (s Schema) lookup(name string) (*Property, bool) {
	for _, e := range s {
		if n, _ := splitMarker(e.Name); n == name {
			return e.Property, true
		}
	}
	return nil, false
}

// Fields lists the marker-stripped field names in declaration order.
func (s Schema) Fields() []string {
	out := make([]string, 0, len(s))
	for _, e := range s {
		n, _ := splitMarker(e.Name)
		out = append(out, n)
	}
	return out
}

// RulesOf exports the form-validation rules declared on d's schema, keyed
// by field name. Fields without rules are omitted.
func RulesOf(d Data) map[string]any {
	out := map[string]any{}
	for _, e := range d.ExpectedProperties() {
		if e.Property == nil || e.Property.rules == nil {
			continue
		}
		n, _ := splitMarker(e.Name)
		out[n] = e.Property.rules
	}
	return out
}
