package common

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"reflect"

	"github.com/ugorji/go/codec"
)

// maxExactFloat is the largest integer a float64 holds exactly.
const maxExactFloat = 1 << 53

// CanonicalJSON returns a deterministic JSON encoding of v: map keys sorted,
// no insignificant whitespace. v is first encoded with its own field tags,
// then decoded into generic maps and re-encoded, so that structs and maps
// carrying the same data produce the same bytes.
func CanonicalJSON(v interface{}) ([]byte, error) {
	raw, err := encodeJSON(v)
	if err != nil {
		return nil, err
	}
	return CanonicalizeJSON(raw)
}

// CanonicalizeJSON re-encodes a single JSON document canonically. Numbers
// with an integral value are written as integers, so 42, 42.0 and 4.2e1 have
// the same canonical form.
func CanonicalizeJSON(raw []byte) ([]byte, error) {
	var generic interface{}
	if err := DecodeJSON(raw, &generic); err != nil {
		return nil, err
	}
	return encodeJSON(normalizeNumbers(generic))
}

func encodeJSON(v interface{}) ([]byte, error) {
	var b bytes.Buffer
	enc := codec.NewEncoder(&b, newJSONHandle())
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func newJSONHandle() *codec.JsonHandle {
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	jh.MapType = reflect.TypeOf(map[string]interface{}(nil))
	jh.HTMLCharsAsIs = true
	return jh
}

// DecodeJSON decodes raw into v with the same handle as CanonicalJSON, so
// that generic values come back as map[string]interface{}. raw must hold
// exactly one JSON value.
func DecodeJSON(raw []byte, v interface{}) error {
	if !json.Valid(raw) {
		return errors.New("not a single JSON value")
	}
	return codec.NewDecoderBytes(raw, newJSONHandle()).Decode(v)
}

func normalizeNumbers(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, e := range t {
			t[k] = normalizeNumbers(e)
		}
		return t
	case []interface{}:
		for i, e := range t {
			t[i] = normalizeNumbers(e)
		}
		return t
	case float64:
		if t != math.Trunc(t) || math.Abs(t) >= maxExactFloat {
			return t
		}
		if t < 0 {
			return int64(t)
		}
		return uint64(t)
	case int64:
		if t >= 0 {
			return uint64(t)
		}
		return t
	default:
		return v
	}
}
