// Package fhirjson models arbitrary JSON documents as an explicit sum type
// instead of relying on reflection over interface{}, per the "Dynamic JSON
// at runtime" design note: Json = Null | Bool | Num | Str | Array | Object.
package fhirjson

import (
	"bytes"
	"encoding/json"
)

// Kind tags which variant a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// Value is a parsed JSON value. Exactly one of the typed fields is
// meaningful, selected by Kind; callers should branch on Kind rather than
// probe the zero values of the other fields.
type Value struct {
	Kind Kind

	Bool   bool
	Number float64
	Str    string
	Array  []Value
	Object map[string]Value

	// raw preserves the original numeric literal text (see RawNumber) so a
	// caller needing exact decimal semantics need not round-trip through
	// float64; the runtime's own min/max checks compare Number as float64.
	raw string
}

// Parse decodes raw JSON bytes into a Value tree.
func Parse(data []byte) (Value, error) {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return Value{}, err
	}
	return fromAny(raw), nil
}

// FromAny converts an already-decoded map[string]any/[]any/... tree (as
// produced by encoding/json without UseNumber, or hand-built by tests) into
// a Value tree.
func FromAny(v any) Value {
	return fromAny(v)
}

func fromAny(v any) Value {
	switch t := v.(type) {
	case nil:
		return Value{Kind: KindNull}
	case bool:
		return Value{Kind: KindBool, Bool: t}
	case json.Number:
		f, _ := t.Float64()
		return Value{Kind: KindNumber, Number: f, raw: string(t)}
	case float64:
		return Value{Kind: KindNumber, Number: t}
	case int:
		return Value{Kind: KindNumber, Number: float64(t)}
	case string:
		return Value{Kind: KindString, Str: t}
	case []any:
		arr := make([]Value, len(t))
		for i, e := range t {
			arr[i] = fromAny(e)
		}
		return Value{Kind: KindArray, Array: arr}
	case map[string]any:
		obj := make(map[string]Value, len(t))
		for k, e := range t {
			obj[k] = fromAny(e)
		}
		return Value{Kind: KindObject, Object: obj}
	default:
		return Value{Kind: KindNull}
	}
}

// RawNumber returns the original numeric literal text, if this Value was
// parsed (not synthesized) as a number; ok is false for synthesized numbers
// or non-numbers.
func (v Value) RawNumber() (string, bool) {
	if v.Kind != KindNumber || v.raw == "" {
		return "", false
	}
	return v.raw, true
}

// Field returns a named field of an object Value, or the null Value if this
// isn't an object or the field is absent. Present reports whether the key
// actually existed (distinguishing "absent" from "present and null").
func (v Value) Field(name string) (Value, bool) {
	if v.Kind != KindObject {
		return Value{Kind: KindNull}, false
	}
	f, ok := v.Object[name]
	return f, ok
}

// IsAbsent reports whether this Value is the zero Value, which stands for
// "no value was present". A parsed JSON null is also the zero Value (Kind 0,
// KindNull, with no distinguishing marker), so IsAbsent is true for it as
// well; callers should use Field's second return instead when the
// null/absent distinction matters.
func (v Value) IsAbsent() bool {
	return v.Kind == KindNull && v.raw == "" && v.Str == "" && v.Array == nil && v.Object == nil && !v.Bool && v.Number == 0
}

// ToAny converts a Value back into plain any (map[string]any/[]any/...) for
// marshaling or handing to libraries (e.g. FHIRPath evaluation) that expect
// encoding/json-shaped data rather than this package's sum type.
func (v Value) ToAny() any {
	switch v.Kind {
	case KindNull:
		return nil
	case KindBool:
		return v.Bool
	case KindNumber:
		if v.raw != "" {
			return json.Number(v.raw)
		}
		return v.Number
	case KindString:
		return v.Str
	case KindArray:
		out := make([]any, len(v.Array))
		for i, e := range v.Array {
			out[i] = e.ToAny()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.Object))
		for k, e := range v.Object {
			out[k] = e.ToAny()
		}
		return out
	default:
		return nil
	}
}

// Marshal re-serializes v to JSON bytes, e.g. to hand a validated subtree to
// a FHIRPath expression evaluator that expects raw JSON.
func (v Value) Marshal() ([]byte, error) {
	return json.Marshal(v.ToAny())
}

// Len returns the element/field count for Array and Object values, 0
// otherwise.
func (v Value) Len() int {
	switch v.Kind {
	case KindArray:
		return len(v.Array)
	case KindObject:
		return len(v.Object)
	default:
		return 0
	}
}
