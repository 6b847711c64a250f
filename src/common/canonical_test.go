package common

import "testing"

func TestCanonicalJSON(t *testing.T) {
	type record struct {
		B string `json:"b"`
		A int    `json:"a"`
	}

	fromStruct, err := CanonicalJSON(record{B: "x", A: 1})
	if err != nil {
		t.Fatal(err)
	}

	fromText, err := CanonicalizeJSON([]byte(`{ "a" : 1,
		"b": "x" }`))
	if err != nil {
		t.Fatal(err)
	}

	if string(fromStruct) != string(fromText) {
		t.Fatalf("canonical forms differ: %s vs %s", fromStruct, fromText)
	}

	if string(fromText) != `{"a":1,"b":"x"}` {
		t.Fatalf("unexpected canonical form %s", fromText)
	}

	if _, err := CanonicalizeJSON([]byte(`{"a":`)); err == nil {
		t.Fatalf("truncated JSON should not canonicalize")
	}
}

func TestCanonicalizeJSONNumbers(t *testing.T) {
	for _, raw := range []string{`42`, `42.0`, `4.2e1`, ` 42 `} {
		got, err := CanonicalizeJSON([]byte(raw))
		if err != nil {
			t.Fatalf("%s: %v", raw, err)
		}
		if string(got) != `42` {
			t.Fatalf("%s canonicalizes to %s", raw, got)
		}
	}

	got, err := CanonicalizeJSON([]byte(`{"a":[1.0,-3.0,2.5]}`))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"a":[1,-3,2.5]}` {
		t.Fatalf("unexpected canonical form %s", got)
	}
}

func TestDecodeJSONTrailingInput(t *testing.T) {
	for _, raw := range []string{`42 trailing`, `{"a":1}{}`, `"x" 1`, ``} {
		var v interface{}
		if err := DecodeJSON([]byte(raw), &v); err == nil {
			t.Fatalf("%q should not decode", raw)
		}
		if _, err := CanonicalizeJSON([]byte(raw)); err == nil {
			t.Fatalf("%q should not canonicalize", raw)
		}
	}
}
