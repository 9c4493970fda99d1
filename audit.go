package customdata

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strconv"

	"github.com/rs/zerolog"
)

// auditor runs one audit of a data object against its schema.
type auditor struct {
	ctx    context.Context
	b      *Base
	schema Schema
	sink   ErrorSink
}

func newAuditor(ctx context.Context, d Data, schema Schema) *auditor {
	a := &auditor{ctx: ctx, b: d.dataBase(), schema: schema}
	if s, ok := d.(ErrorSink); ok {
		a.sink = s
	}
	return a
}

// raise routes err through the sink. A nil return means the error was
// swallowed and the audit goes on without the field.
func (a *auditor) raise(err error) error {
	if a.sink == nil {
		return err
	}
	out := a.sink.HandleError(err.Error(), err)
	if out == nil {
		zerolog.Ctx(a.ctx).Debug().Str("type", a.b.typeName).Err(err).Msg("customdata: error swallowed by sink")
	}
	return out
}

func (a *auditor) run() error {
	for _, e := range a.schema {
		if err := a.auditEntry(e); err != nil {
			return err
		}
	}
	a.applyRenames()
	return nil
}

func (a *auditor) auditEntry(e Entry) error {
	name, optional := splitMarker(e.Name)
	p := e.Property
	f := &Field{Name: name, ctx: a.ctx, prop: p, owner: a.b, schema: a.schema}
	current := a.b.raw[name]

	if optional && isEmpty(current) {
		if p != nil && p.hasDefault && !isEmpty(p.def) {
			return a.auditField(f)
		}
		// conditional requirements still apply to absent optional fields
		if p != nil {
			if err := a.requirements(f); err != nil {
				return a.raise(err)
			}
		}
		return nil
	}

	value := current
	if value == nil && p != nil {
		value = p.def
	}
	if !optional && value == nil {
		return a.raise(f.fail(errorInfo{kind: ErrMissingRequiredProperty, code: CodeRequired}))
	}
	return a.auditField(f)
}

func (a *auditor) requirements(f *Field) error {
	for _, h := range f.prop.before {
		switch h.kind {
		case hookRequiredWhen, hookRequiredWhenEquals:
			if err := a.before(f, h, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// auditField runs before hooks, the type match and after hooks, then stores
// the field into the validated snapshot.
func (a *auditor) auditField(f *Field) error {
	p := f.prop
	if p == nil {
		a.b.storeValidated(f.Name, a.b.raw[f.Name])
		return nil
	}

	selected := p.selected
	for _, h := range p.before {
		if err := a.before(f, h, &selected); err != nil {
			return a.raise(err)
		}
	}

	if selected != nil {
		if err := a.matchField(f, selected); err != nil {
			return a.raise(err)
		}
	}

	for _, h := range p.after {
		if err := a.after(f, h); err != nil {
			return a.raise(err)
		}
	}

	a.b.storeValidated(f.Name, a.b.raw[f.Name])
	return nil
}

func (a *auditor) before(f *Field, h hook, selected *TypeRef) error {
	raw := a.b.raw
	switch h.kind {
	case hookDefault:
		a.b.GetOr(f.Name, f.prop.def)
	case hookNotEmpty:
		if isEmpty(raw[f.Name]) {
			return f.fail(errorInfo{kind: ErrEmptyProperty, code: CodeEmpty})
		}
	case hookRequiredWhen:
		if h.cond == nil {
			return f.fail(errorInfo{kind: ErrUncallableValue, code: CodeUncallable, extra: map[string]string{"detail": "requiredWhen condition"}})
		}
		if isEmpty(raw[f.Name]) && h.cond(f) {
			return f.fail(errorInfo{kind: ErrMissingRequiredProperty, code: CodeRequiredWhen})
		}
	case hookRequiredWhenEquals:
		if isEmpty(raw[f.Name]) && looseEqual(f.Lookup(h.other), h.value) {
			return f.fail(errorInfo{
				kind:  ErrMissingRequiredProperty,
				code:  CodeRequiredWhenEquals,
				extra: map[string]string{"other": h.other, "value": fmt.Sprint(h.value)},
			})
		}
	case hookTypeWhen:
		if h.cond != nil && selected != nil && h.cond(f) {
			*selected = h.typ
		}
	}
	return nil
}

func (a *auditor) after(f *Field, h hook) error {
	raw := a.b.raw
	switch h.kind {
	case hookRename:
		if h.rename != nil {
			a.b.renames[f.Name] = h.rename(f)
		}
	case hookCastTo:
		orig := raw[f.Name]
		raw["original_"+f.Name] = orig
		if h.hasFunc {
			raw[f.Name] = h.castFunc(orig)
		} else {
			raw[f.Name] = h.value
		}
	case hookCastToRecord:
		finder, ok := Service[RecordFinder](a.ctx)
		if !ok || finder == nil {
			return f.fail(errorInfo{kind: ErrRecordNotFound, code: CodeDependencyUnavailable, extra: map[string]string{"record": h.record}})
		}
		id := raw[f.Name]
		raw["original_"+f.Name] = id
		rec, err := finder.FindRecord(a.ctx, h.record, id)
		if err != nil || rec == nil {
			return f.fail(errorInfo{
				kind:   ErrRecordNotFound,
				code:   CodeRecordNotFound,
				actual: fmt.Sprint(id),
				cause:  err,
				extra:  map[string]string{"record": h.record},
			})
		}
		raw[f.Name] = rec
	case hookCopy:
		target := h.copyName
		if target == "" {
			target = f.Name + "_copy"
		}
		if _, exists := raw[target]; exists && !h.replace {
			target += "_copy"
		}
		raw[target] = raw[f.Name]
	}
	return nil
}

// matchField type-checks the field value, retrying once with the fallback
// type. Replacements produced by nested construction are written back.
func (a *auditor) matchField(f *Field, selected TypeRef) error {
	p := f.prop
	value := a.b.raw[f.Name]
	checked := value
	f.pending = nil
	if p.hasCast && p.cast != nil {
		checked = p.cast(value)
	}

	try := func(t TypeRef) (bool, error) {
		repl, ok, err := a.matchValue(f, t, p.child, checked, f.Name)
		if err != nil || !ok {
			return false, err
		}
		if repl != nil {
			a.b.raw[f.Name] = repl
		}
		return true, nil
	}

	ok, err := try(selected)
	if err != nil || ok {
		return err
	}
	rejected := f.pending
	if p.alternate != nil {
		f.pending = nil
		if ok, err = try(p.alternate); err != nil || ok {
			return err
		}
		if f.pending == nil {
			f.pending = rejected
		}
	}
	if f.pending != nil {
		return f.pending
	}
	code := CodeInvalidType
	if _, isPred := selected.(Predicate); isPred {
		code = CodeValidationFailed
	}
	return f.fail(errorInfo{
		kind:     ErrUnexpectedPropertyType,
		code:     code,
		expected: selected.typeName(),
		actual:   kindOf(checked),
	})
}

// matchValue checks v against t. A non-nil replacement means v must be
// swapped for it. Errors are final; a plain mismatch returns ok=false and
// leaves room for the fallback type.
func (a *auditor) matchValue(f *Field, t TypeRef, elem TypeRef, v any, path ...string) (repl any, ok bool, err error) {
	switch tt := t.(type) {
	case Predicate:
		if tt == nil {
			return nil, false, f.fail(errorInfo{kind: ErrUncallableValue, code: CodeUncallable, extra: map[string]string{"detail": "custom validator"}})
		}
		return nil, tt(v, f), nil
	case DataType:
		if tt.IsInstance(v) {
			return nil, true, nil
		}
		m, isMap := v.(map[string]any)
		if !isMap {
			return nil, false, nil
		}
		built := tt.New()
		if err := construct(a.ctx, built, m, nil); err != nil {
			if e, ok := AsError(err); ok {
				return nil, false, e.rebase(path...)
			}
			return nil, false, err
		}
		return built, true, nil
	case Kind:
		if !tt.Builtin() {
			return nil, false, f.fail(errorInfo{kind: ErrUnsupportedType, code: CodeUnsupportedType, expected: string(tt)})
		}
		if !Matches(tt, v) {
			return nil, false, nil
		}
		if tt != TypeArray || elem == nil {
			return nil, true, nil
		}
		return a.matchItems(f, elem, v, path)
	case nil:
		return nil, true, nil
	default:
		return nil, false, f.fail(errorInfo{kind: ErrUnsupportedType, code: CodeUnsupportedType, expected: t.typeName()})
	}
}

func (a *auditor) matchItems(f *Field, elem TypeRef, v any, path []string) (any, bool, error) {
	if k, isKind := elem.(Kind); isKind && k == TypeArray {
		return nil, false, f.fail(errorInfo{kind: ErrUnsupportedType, code: CodeUnsupportedType, expected: "array of array"})
	}
	rv := reflect.ValueOf(v)
	items := make([]any, rv.Len())
	replaced := false
	for i := range items {
		item := rv.Index(i).Interface()
		items[i] = item
		f.pending = nil
		repl, ok, err := a.matchValue(f, elem, nil, item, append(path[:len(path):len(path)], strconv.Itoa(i))...)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, f.fail(errorInfo{
				kind:     ErrUnexpectedArrayItemType,
				code:     CodeInvalidItemType,
				item:     true,
				index:    i,
				expected: elem.typeName(),
				actual:   kindOf(item),
			})
		}
		if repl != nil {
			items[i] = repl
			replaced = true
		}
	}
	if replaced {
		return items, true, nil
	}
	return nil, true, nil
}

func (b *Base) storeValidated(name string, v any) {
	if _, seen := b.validated[name]; !seen {
		b.order = append(b.order, name)
	}
	b.validated[name] = v
}

// applyRenames moves every pending rename at once, so swaps and chains
// resolve against the pre-rename state.
func (a *auditor) applyRenames() {
	b := a.b
	if len(b.renames) == 0 {
		return
	}
	rawSnap := maps.Clone(b.raw)
	presSnap := maps.Clone(b.presence)
	for old := range b.renames {
		delete(b.raw, old)
		delete(b.presence, old)
	}
	for old, name := range b.renames {
		if v, ok := rawSnap[old]; ok {
			b.raw[name] = v
		}
		if p, ok := presSnap[old]; ok {
			b.presence[name] = p
		}
	}

	validated := make(map[string]any, len(b.validated))
	order := make([]string, 0, len(b.order))
	for _, k := range b.order {
		if _, renamed := b.renames[k]; renamed {
			continue
		}
		validated[k] = b.validated[k]
	}
	for old, name := range b.renames {
		if v, ok := b.validated[old]; ok {
			validated[name] = v
		}
	}
	for _, k := range b.order {
		if name, renamed := b.renames[k]; renamed {
			k = name
		}
		if _, ok := validated[k]; !ok || slices.Contains(order, k) {
			continue
		}
		order = append(order, k)
	}
	b.validated = validated
	b.order = order
	b.renames = map[string]string{}
}
