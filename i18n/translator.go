package i18n

import "strings"

// Translator retrieves localized messages for error codes.
// data provides values substituted into {placeholders} (for example
// "field", "owner", "expected" or "actual").
type Translator interface {
	Message(code string, data map[string]string) string
}

var catalog = map[string]map[string]string{
	"en": {
		"required":                 "The property {field} is required on {owner}",
		"required_when":            "The property {field} is required because of the provided statement",
		"required_when_equals":     "The property {field} is required when the property {other} is equal to {value}",
		"invalid_type":             "Property {field}: expected {expected} but {actual} given",
		"validation_failed":        "Validation failed on {field} property",
		"empty":                    "The property {field} of {owner} should not be empty",
		"invalid_item_type":        "The item {field}[{index}] should be of type {expected} but {actual} given",
		"not_in_array":             "{field} should be one of: {items} but {actual} given",
		"uncallable":               "{field}: {detail} is not callable",
		"handler_method_not_found": "handler {handler} has no method {method}; declare it in Methods() or pick another one with On(name)",
		"action_no_argument":       "handler {handler} method {method} is supposed to declare an input type",
		"action_argument_not_data": "handler {handler} method {method} input {expected} should be a data type",
		"key_serialization":        "was not able to use {field} for the identity key of {owner}; add it to IgnoreForKey",
		"unsupported_type":         "{field}: unsupported property type {expected}",
		"nesting_too_deep":         "{owner} exceeds the max nesting depth of {max}",
		"invalid_payload":          "invalid payload: {detail}",
		"record_not_found":         "no {record} record found for {field} = {actual}",
		"dependency_unavailable":   "{field}: no record finder available to resolve {record}",
	},
	"ja": {
		"required":          "{owner} のプロパティ {field} は必須です",
		"invalid_type":      "プロパティ {field}: {expected} が必要ですが {actual} が与えられました",
		"validation_failed": "プロパティ {field} の検証に失敗しました",
		"empty":             "{owner} のプロパティ {field} は空にできません",
		"invalid_item_type": "要素 {field}[{index}] は {expected} である必要がありますが {actual} が与えられました",
		"invalid_payload":   "不正なペイロードです: {detail}",
	},
}

// dictTranslator is the built-in dictionary-based Translator.
// Missing entries fall back to English, then to the bare code.
type dictTranslator struct{ lang string }

func (t dictTranslator) Message(code string, data map[string]string) string {
	msg, ok := catalog[t.lang][code]
	if !ok {
		msg, ok = catalog["en"][code]
	}
	if !ok {
		return code
	}
	if len(data) == 0 {
		return msg
	}
	pairs := make([]string, 0, len(data)*2)
	for k, v := range data {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(msg)
}

var currentTranslator Translator = dictTranslator{lang: "en"}

// SetLanguage switches the built-in Translator language ("en"/"ja").
func SetLanguage(lang string) {
	if lang != "ja" {
		lang = "en"
	}
	currentTranslator = dictTranslator{lang: lang}
}

// SetTranslator replaces the Translator implementation (not limited to the
// dictionary version).
func SetTranslator(tr Translator) {
	if tr == nil {
		currentTranslator = dictTranslator{lang: "en"}
		return
	}
	currentTranslator = tr
}

// T fetches a message for the given code using the current Translator.
func T(code string, data map[string]string) string { return currentTranslator.Message(code, data) }
