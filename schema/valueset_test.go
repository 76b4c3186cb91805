package schema

import (
	"testing"

	"github.com/gofhir/fhirschema/fhirjson"
	"github.com/gofhir/fhirschema/resourcefile"
)

func TestCompileValueSet_EmptyComposeIsNever(t *testing.T) {
	vs := &resourcefile.ValueSet{URL: "http://example.org/ValueSet/empty"}
	c := NewCompiler(noResolve)
	v := c.CompileValueSet(vs, noHierarchy)
	if v.Kind != KNever {
		t.Fatalf("Kind = %v, want KNever", v.Kind)
	}
	if len(c.Diagnostics()) == 0 {
		t.Error("expected a diagnostic for the empty compose")
	}
}

func TestCompileValueSet_ConceptListBecomesEnum(t *testing.T) {
	vs := &resourcefile.ValueSet{
		URL: "http://example.org/ValueSet/vs",
		Compose: &resourcefile.ValueSetCompose{
			Include: []resourcefile.ValueSetInclude{
				{System: "http://example.org/CodeSystem/cs", Concept: []resourcefile.ValueSetConcept{
					{Code: "a"}, {Code: "b"},
				}},
			},
		},
	}
	c := NewCompiler(noResolve)
	v := c.CompileValueSet(vs, noHierarchy)
	if v.Kind != KEnum {
		t.Fatalf("Kind = %v, want KEnum", v.Kind)
	}
	if !accepts(v, fhirjson.Value{Kind: fhirjson.KindString, Str: "a"}) {
		t.Error("expected \"a\" to be accepted")
	}
	if accepts(v, fhirjson.Value{Kind: fhirjson.KindString, Str: "z"}) {
		t.Error("expected \"z\" to be rejected")
	}
}

func TestCompileValueSet_ExcludeRejectsViaNot(t *testing.T) {
	vs := &resourcefile.ValueSet{
		URL: "http://example.org/ValueSet/vs",
		Compose: &resourcefile.ValueSetCompose{
			Include: []resourcefile.ValueSetInclude{
				{System: "http://example.org/CodeSystem/cs", Concept: []resourcefile.ValueSetConcept{
					{Code: "a"}, {Code: "b"},
				}},
			},
			Exclude: []resourcefile.ValueSetInclude{
				{System: "http://example.org/CodeSystem/cs", Concept: []resourcefile.ValueSetConcept{
					{Code: "b"},
				}},
			},
		},
	}
	c := NewCompiler(noResolve)
	v := c.CompileValueSet(vs, noHierarchy)
	if v.Kind != KRefined {
		t.Fatalf("Kind = %v, want KRefined", v.Kind)
	}
	if !accepts(v, fhirjson.Value{Kind: fhirjson.KindString, Str: "a"}) {
		t.Error("expected \"a\" (included, not excluded) to be accepted")
	}
	if accepts(v, fhirjson.Value{Kind: fhirjson.KindString, Str: "b"}) {
		t.Error("expected \"b\" (included but also excluded) to be rejected")
	}
}

func TestCompileValueSet_ImportedValueSetUnresolvedFallsBackPermissive(t *testing.T) {
	vs := &resourcefile.ValueSet{
		URL: "http://example.org/ValueSet/vs",
		Compose: &resourcefile.ValueSetCompose{
			Include: []resourcefile.ValueSetInclude{
				{ValueSet: []string{"http://example.org/ValueSet/missing"}},
			},
		},
	}
	c := NewCompiler(noResolve)
	v := c.CompileValueSet(vs, noHierarchy)
	if v.Kind != KString {
		t.Fatalf("Kind = %v, want KString (permissive default)", v.Kind)
	}
	if len(c.Diagnostics()) == 0 {
		t.Error("expected a diagnostic for the unresolved imported ValueSet")
	}
}

func noHierarchy(string) (FilterHierarchy, bool) { return nil, false }
