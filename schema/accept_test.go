package schema

import (
	"testing"

	"github.com/gofhir/fhirschema/fhirjson"
)

func TestAccepts_ObjectUnknownFieldsOpenWorld(t *testing.T) {
	v := ObjectOf([]Field{{Name: "a", V: String("", 0, 0)}})
	node := fhirjson.FromAny(map[string]any{"a": "x", "b": "unrecognized"})
	if !accepts(v, node) {
		t.Error("expected open-world object to accept an extra unknown field")
	}
}

func TestAccepts_ArrayBounds(t *testing.T) {
	v := ArrayOf(String("", 0, 0), 1, 2)
	if accepts(v, fhirjson.FromAny([]any{})) {
		t.Error("expected empty array to violate MinItems")
	}
	if !accepts(v, fhirjson.FromAny([]any{"x"})) {
		t.Error("expected one item to satisfy bounds")
	}
	if accepts(v, fhirjson.FromAny([]any{"x", "y", "z"})) {
		t.Error("expected three items to violate MaxItems")
	}
}

func TestAccepts_OptionalAllowsAbsence(t *testing.T) {
	v := OptionalOf(String("", 1, 0))
	if !accepts(v, fhirjson.Value{}) {
		t.Error("expected Optional to accept an absent value")
	}
}

func TestAccepts_UnionAndIntersection(t *testing.T) {
	u := UnionOf(Literal("a"), Literal("b"))
	if !accepts(u, fhirjson.FromAny("b")) {
		t.Error("expected union to accept a matching branch")
	}
	if accepts(u, fhirjson.FromAny("c")) {
		t.Error("expected union to reject no matching branch")
	}

	i := IntersectionOf(String("", 0, 0), String("^a", 0, 0))
	if !accepts(i, fhirjson.FromAny("abc")) {
		t.Error("expected intersection to accept when all branches pass")
	}
	if accepts(i, fhirjson.FromAny("xyz")) {
		t.Error("expected intersection to reject when a branch fails")
	}
}
