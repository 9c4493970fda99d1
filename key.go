package customdata

import (
	"encoding/hex"
	"reflect"
	"slices"
	"strings"

	"github.com/spf13/cast"
	"github.com/zeebo/blake3"
)

// Identity key tokens. Values are escaped so none of these can appear
// inside a serialized value.
const (
	keyPairSep = "__eq__"
	keyJoin    = "-join-"
	keyItemSep = "-n-"

	// escapeKey never emits a bare % or %~, so these mark the empty string
	// and nil.
	keyEmpty = "%"
	keyNil   = "%~"
)

// keyDomain is the BLAKE3 key for identity digests: ASCII, zero-padded to 32
// bytes.
var keyDomain = [32]byte{
	'c', 'u', 's', 't', 'o', 'm', 'd', 'a', 't', 'a', '.', 'k', 'e', 'y',
}

// Key returns the identity key of the validated content: one
// field__eq__value pair per validated field, in audit order, joined with
// -join-. Fields listed by IgnoreForKey are skipped. The key is computed
// once and memoized.
func (b *Base) Key() (string, error) {
	if b.hasKey {
		return b.key, nil
	}
	var ignore []string
	if ki, ok := b.self.(KeyIgnorer); ok {
		ignore = ki.IgnoreForKey()
	}
	sink, _ := b.self.(ErrorSink)

	parts := make([]string, 0, len(b.order))
	for _, name := range b.order {
		if slices.Contains(ignore, name) {
			continue
		}
		s, err := keyValue(b.validated[name])
		if err != nil {
			e := newError(errorInfo{kind: ErrKeySerialization, code: CodeKeySerialization, owner: b.typeName, field: name, cause: err})
			if sink == nil {
				return "", e
			}
			if out := sink.HandleError(e.Error(), e); out != nil {
				return "", out
			}
			continue
		}
		parts = append(parts, escapeKey(name)+keyPairSep+s)
	}
	b.key = strings.Join(parts, keyJoin)
	b.hasKey = true
	return b.key, nil
}

// Digest returns the hex BLAKE3 keyed hash of Key.
func (b *Base) Digest() (string, error) {
	k, err := b.Key()
	if err != nil {
		return "", err
	}
	h, err := blake3.NewKeyed(keyDomain[:])
	if err != nil {
		return "", err
	}
	h.Write([]byte(k))
	return hex.EncodeToString(h.Sum(nil)), nil
}

func keyValue(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return keyNil, nil
	case bool:
		if t {
			return "1", nil
		}
		return "0", nil
	case Record:
		s, err := cast.ToStringE(t.RecordID())
		if err != nil {
			return "", err
		}
		return escapeKey(s), nil
	case Data:
		if isNilData(t) {
			return keyNil, nil
		}
		k, err := t.dataBase().Key()
		if err != nil {
			return "", err
		}
		return "(" + k + ")", nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			break // []byte keys like a string
		}
		items := make([]string, rv.Len())
		for i := range items {
			s, err := keyValue(rv.Index(i).Interface())
			if err != nil {
				return "", err
			}
			items[i] = s
		}
		return "[" + strings.Join(items, keyItemSep) + "]", nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		names := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			names = append(names, k.String())
		}
		slices.Sort(names)
		items := make([]string, len(names))
		for i, n := range names {
			s, err := keyValue(rv.MapIndex(reflect.ValueOf(n).Convert(rv.Type().Key())).Interface())
			if err != nil {
				return "", err
			}
			items[i] = escapeKey(n) + ":" + s
		}
		return "{" + strings.Join(items, keyItemSep) + "}", nil
	}

	s, err := cast.ToStringE(v)
	if err != nil {
		return "", err
	}
	return escapeKey(s), nil
}

const upperHex = "0123456789ABCDEF"

// escapeKey keeps ASCII letters, digits and dots and percent-encodes every
// other byte. The empty string becomes keyEmpty.
func escapeKey(s string) string {
	if s == "" {
		return keyEmpty
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9', c == '.':
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(upperHex[c>>4])
			b.WriteByte(upperHex[c&15])
		}
	}
	return b.String()
}
