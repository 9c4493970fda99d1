package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"

	"github.com/reoring/customdata"
)

// parseField turns a --field value into a schema entry. The grammar is
// name[?][:type][=default] where type is a builtin kind or []kind.
func parseField(decl string) (customdata.Entry, error) {
	decl = strings.TrimSpace(decl)
	def, hasDefault := "", false
	if i := strings.Index(decl, "="); i >= 0 {
		decl, def, hasDefault = decl[:i], decl[i+1:], true
	}
	name, typ, _ := strings.Cut(decl, ":")
	name = strings.TrimSpace(name)
	typ = strings.TrimSpace(typ)
	if strings.TrimSuffix(name, customdata.OptionalMarker) == "" {
		return customdata.Entry{}, fmt.Errorf("field %q: empty name", decl)
	}

	var p *customdata.Property
	switch {
	case typ == "":
		if hasDefault {
			p = customdata.OfType(nil)
		}
	case strings.HasPrefix(typ, "[]"):
		elem := customdata.Kind(strings.TrimPrefix(typ, "[]"))
		if !elem.Builtin() {
			return customdata.Entry{}, fmt.Errorf("field %q: unknown element type %q", name, elem)
		}
		p = customdata.ArrayOf(elem)
	default:
		k := customdata.Kind(typ)
		if !k.Builtin() {
			return customdata.Entry{}, fmt.Errorf("field %q: unknown type %q", name, typ)
		}
		p = customdata.OfType(k)
	}

	if hasDefault {
		v, err := defaultValue(typ, def)
		if err != nil {
			return customdata.Entry{}, fmt.Errorf("field %q: default: %w", name, err)
		}
		p.Default(v)
	}
	return customdata.Expect(name, p), nil
}

func defaultValue(typ, s string) (any, error) {
	switch customdata.Kind(typ) {
	case customdata.TypeInteger:
		return cast.ToInt64E(s)
	case customdata.TypeFloat, customdata.TypeNumeric:
		return cast.ToFloat64E(s)
	case customdata.TypeBool:
		return cast.ToBoolE(s)
	}
	if strings.HasPrefix(typ, "[]") || typ == string(customdata.TypeArray) {
		if s == "" {
			return []any{}, nil
		}
		parts := strings.Split(s, ",")
		out := make([]any, len(parts))
		for i, p := range parts {
			out[i] = strings.TrimSpace(p)
		}
		return out, nil
	}
	return s, nil
}

func parseSchema(decls []string) (customdata.Schema, error) {
	schema := make(customdata.Schema, 0, len(decls))
	for _, s := range decls {
		e, err := parseField(s)
		if err != nil {
			return nil, err
		}
		schema = append(schema, e)
	}
	return schema, nil
}
