package customdata_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/spf13/cast"

	"github.com/reoring/customdata"
)

func check(t *testing.T, schema customdata.Schema, raw map[string]any) (*customdata.Virtual, error) {
	t.Helper()
	return customdata.Check(context.Background(), raw, schema, nil)
}

func TestProperty_InArray(t *testing.T) {
	schema := customdata.Schema{customdata.Expect("status", customdata.String().InArray("draft", "published"))}
	if _, err := check(t, schema, map[string]any{"status": "draft"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := check(t, schema, map[string]any{"status": "archived"})
	e, ok := customdata.AsError(err)
	if !ok || !errors.Is(err, customdata.ErrUnexpectedPropertyType) || e.Code != customdata.CodeNotInArray {
		t.Fatalf("expected not_in_array, got %v", err)
	}
	if e.Path != "/status" || e.Message != "status should be one of: draft,published but archived given" {
		t.Fatalf("path=%q message=%q", e.Path, e.Message)
	}
}

func TestProperty_OrUseType(t *testing.T) {
	schema := customdata.Schema{customdata.Expect("id", customdata.Integer().OrUseType(customdata.TypeString))}
	for _, v := range []any{42, "abc"} {
		if _, err := check(t, schema, map[string]any{"id": v}); err != nil {
			t.Fatalf("id=%v: %v", v, err)
		}
	}
	_, err := check(t, schema, map[string]any{"id": true})
	e, ok := customdata.AsError(err)
	if !ok || e.Code != customdata.CodeInvalidType || e.Expected != "integer" || e.Actual != "bool" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestProperty_CustomValidator(t *testing.T) {
	even := customdata.CustomValidator(func(v any, _ *customdata.Field) bool {
		return cast.ToInt(v)%2 == 0
	})
	schema := customdata.Schema{customdata.Expect("n", even)}
	if _, err := check(t, schema, map[string]any{"n": 4}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := check(t, schema, map[string]any{"n": 3})
	e, ok := customdata.AsError(err)
	if !ok || e.Code != customdata.CodeValidationFailed {
		t.Fatalf("expected validation_failed, got %v", err)
	}

	_, err = check(t, customdata.Schema{customdata.Expect("n", customdata.CustomValidator(nil))}, map[string]any{"n": 1})
	if !errors.Is(err, customdata.ErrUncallableValue) {
		t.Fatalf("expected uncallable, got %v", err)
	}
}

func TestProperty_CastForValidation(t *testing.T) {
	p := customdata.Integer().CastForValidation(func(v any) any { return cast.ToInt(v) })
	v, err := check(t, customdata.Schema{customdata.Expect("n", p)}, map[string]any{"n": "12"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Get("n") != "12" {
		t.Fatalf("raw value must be untouched, got %#v", v.Get("n"))
	}
}

func TestProperty_NotEmptyAndMessage(t *testing.T) {
	schema := customdata.Schema{customdata.Expect("email", customdata.String().NotEmpty().Message("email please"))}
	_, err := check(t, schema, map[string]any{"email": ""})
	if !errors.Is(err, customdata.ErrEmptyProperty) || err.Error() != "email please" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestProperty_RequiredWhen(t *testing.T) {
	schema := customdata.Schema{
		customdata.Expect("status", customdata.String()),
		customdata.Expect("reason?", customdata.String().RequiredWhenEquals("status", "rejected")),
		customdata.Expect("note?", customdata.String().RequiredWhen(func(f *customdata.Field) bool {
			return f.Lookup("status") == "escalated"
		})),
	}
	if _, err := check(t, schema, map[string]any{"status": "approved"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := check(t, schema, map[string]any{"status": "rejected"})
	e, ok := customdata.AsError(err)
	if !ok || e.Code != customdata.CodeRequiredWhenEquals || e.Field != "reason" {
		t.Fatalf("expected required_when_equals on reason, got %v", err)
	}
	if _, err := check(t, schema, map[string]any{"status": "rejected", "reason": "spam"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = check(t, schema, map[string]any{"status": "escalated"})
	e, ok = customdata.AsError(err)
	if !ok || e.Code != customdata.CodeRequiredWhen || e.Field != "note" {
		t.Fatalf("expected required_when on note, got %v", err)
	}
}

func TestProperty_RequiredWhenEqualsUsesDefault(t *testing.T) {
	schema := customdata.Schema{
		customdata.Expect("mode", customdata.String().Default("strict")),
		customdata.Expect("reason?", customdata.String().RequiredWhenEquals("mode", "strict")),
	}
	_, err := check(t, schema, map[string]any{})
	if !errors.Is(err, customdata.ErrMissingRequiredProperty) {
		t.Fatalf("expected requirement through default, got %v", err)
	}
}

func TestProperty_TypeWhen(t *testing.T) {
	schema := customdata.Schema{
		customdata.Expect("kind", customdata.String()),
		customdata.Expect("value", customdata.String().TypeWhen(func(f *customdata.Field) bool {
			return f.Lookup("kind") == "count"
		}, customdata.TypeInteger)),
	}
	if _, err := check(t, schema, map[string]any{"kind": "label", "value": "abc"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := check(t, schema, map[string]any{"kind": "count", "value": "abc"})
	e, ok := customdata.AsError(err)
	if !ok || e.Expected != "integer" {
		t.Fatalf("expected integer mismatch, got %v", err)
	}
}

func TestProperty_CastTo(t *testing.T) {
	schema := customdata.Schema{
		customdata.Expect("amount", customdata.Numeric().CastToFunc(func(v any) any { return cast.ToFloat64(v) })),
		customdata.Expect("flag", customdata.Bool().CastTo(true)),
	}
	v, err := check(t, schema, map[string]any{"amount": "12.5", "flag": 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Get("amount") != 12.5 || v.Get("original_amount") != "12.5" {
		t.Fatalf("amount=%#v original=%#v", v.Get("amount"), v.Get("original_amount"))
	}
	if v.OnlyValidated()["flag"] != true || v.Get("original_flag") != 0 {
		t.Fatalf("flag=%#v original=%#v", v.Get("flag"), v.Get("original_flag"))
	}
}

func TestProperty_Copy(t *testing.T) {
	schema := customdata.Schema{
		customdata.Expect("email", customdata.String().Copy("", false)),
		customdata.Expect("phone", customdata.String().Copy("contact", true)),
	}
	v, err := check(t, schema, map[string]any{"email": "a@b.c", "email_copy": "keep", "phone": "123", "contact": "old"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Get("email_copy") != "keep" || v.Get("email_copy_copy") != "a@b.c" {
		t.Fatalf("copy without replace: %v", v.All())
	}
	if v.Get("contact") != "123" {
		t.Fatalf("copy with replace: %v", v.All())
	}
}

func TestProperty_CastToRecord(t *testing.T) {
	schema := customdata.Schema{customdata.Expect("product", customdata.Integer().CastToRecord("product"))}
	raw := map[string]any{"product": 7}

	_, err := customdata.Check(context.Background(), raw, schema, nil)
	e, ok := customdata.AsError(err)
	if !ok || !errors.Is(err, customdata.ErrRecordNotFound) || e.Code != customdata.CodeDependencyUnavailable {
		t.Fatalf("expected missing finder, got %v", err)
	}

	ctx := customdata.WithService[customdata.RecordFinder](context.Background(), productFinder{7: {id: 7}})
	v, err := customdata.Check(ctx, map[string]any{"product": 7}, schema, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p, ok := v.Get("product").(product); !ok || p.id != 7 {
		t.Fatalf("product=%#v", v.Get("product"))
	}
	if got := v.Get("original_product"); got != 7 {
		t.Fatalf("original_product=%#v", got)
	}
	key, _ := v.Key()
	if key != "product__eq__7" {
		t.Fatalf("records key by identity, got %q", key)
	}

	_, err = customdata.Check(ctx, map[string]any{"product": 8}, schema, nil)
	e, ok = customdata.AsError(err)
	if !ok || e.Code != customdata.CodeRecordNotFound {
		t.Fatalf("expected record_not_found, got %v", err)
	}
}

func TestProperty_RenamesAreAtomic(t *testing.T) {
	var seen any
	schema := customdata.Schema{
		customdata.Expect("first", customdata.String().Transform("second")),
		customdata.Expect("second", customdata.CustomValidator(func(v any, f *customdata.Field) bool {
			seen = f.Lookup("first")
			return true
		}).Transform("first")),
		customdata.Expect("userName", customdata.String().ToSnakeCase()),
	}
	v, err := check(t, schema, map[string]any{"first": "a", "second": "b", "userName": "ann"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen != "a" {
		t.Fatalf("audit must see pre-rename values, saw %v", seen)
	}
	if v.Get("first") != "b" || v.Get("second") != "a" {
		t.Fatalf("swap failed: %v", v.All())
	}
	if v.Has("userName") || v.Get("user_name") != "ann" {
		t.Fatalf("snake case rename failed: %v", v.All())
	}
	want := []string{"second", "first", "user_name"}
	if got := v.ValidatedFields(); !reflect.DeepEqual(got, want) {
		t.Fatalf("validated order=%v want %v", got, want)
	}
	if v.OnlyValidated()["second"] != "a" {
		t.Fatalf("validated=%v", v.OnlyValidated())
	}
}

func TestProperty_CaseRenames(t *testing.T) {
	schema := customdata.Schema{
		customdata.Expect("first_name", customdata.String().ToCamelCase()),
		customdata.Expect("last_name", customdata.String().ToPascalCase()),
		customdata.Expect("zipCode", customdata.String().ToKebabCase()),
	}
	v, err := check(t, schema, map[string]any{"first_name": "A", "last_name": "B", "zipCode": "1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, k := range []string{"firstName", "LastName", "zip-code"} {
		if !v.Has(k) {
			t.Fatalf("missing %s in %v", k, v.All())
		}
	}
}

func TestProperty_UnsupportedTypes(t *testing.T) {
	_, err := check(t, customdata.Schema{customdata.Expect("x", customdata.OfType(customdata.Kind("money")))}, map[string]any{"x": 1})
	if !errors.Is(err, customdata.ErrUnsupportedType) {
		t.Fatalf("expected unsupported type, got %v", err)
	}
	_, err = check(t, customdata.Schema{customdata.Expect("x", customdata.ArrayOf(customdata.TypeArray))}, map[string]any{"x": []any{[]any{1}}})
	if !errors.Is(err, customdata.ErrUnsupportedType) {
		t.Fatalf("expected unsupported element type, got %v", err)
	}
}

func TestRulesOf(t *testing.T) {
	schema := customdata.Schema{
		customdata.Expect("name", customdata.String().Rules("required|max:20")),
		customdata.Expect("age?", customdata.Integer().AddRule("min:0").AddRule("max:150")),
		customdata.Expect("bio?", customdata.String()),
	}
	v, err := check(t, schema, map[string]any{"name": "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rules := customdata.RulesOf(v)
	if len(rules) != 2 || rules["name"] != "required|max:20" {
		t.Fatalf("rules=%v", rules)
	}
	if !reflect.DeepEqual(rules["age"], []any{"min:0", "max:150"}) {
		t.Fatalf("age rules=%v", rules["age"])
	}
}

func TestMatches(t *testing.T) {
	cases := []struct {
		kind customdata.Kind
		v    any
		want bool
	}{
		{customdata.TypeString, "x", true},
		{customdata.TypeString, 1.5, true},
		{customdata.TypeString, true, false},
		{customdata.TypeInteger, int64(3), true},
		{customdata.TypeInteger, 3.0, false},
		{customdata.TypeFloat, 3.0, true},
		{customdata.TypeFloat, 3, false},
		{customdata.TypeBool, 1, true},
		{customdata.TypeBool, 2, false},
		{customdata.TypeNumeric, " 4.2 ", true},
		{customdata.TypeNumeric, "NaN", false},
		{customdata.TypeNumeric, "abc", false},
		{customdata.TypeObject, map[string]any{}, true},
		{customdata.TypeObject, struct{}{}, true},
		{customdata.TypeObject, (*int)(nil), false},
		{customdata.TypeArray, [2]int{}, true},
		{customdata.TypeArray, "x", false},
	}
	for _, c := range cases {
		if got := customdata.Matches(c.kind, c.v); got != c.want {
			t.Fatalf("Matches(%s, %#v)=%v want %v", c.kind, c.v, got, c.want)
		}
	}
}
