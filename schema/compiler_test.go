package schema

import (
	"encoding/json"
	"testing"

	"github.com/gofhir/fhirschema/intermediate"
	"github.com/gofhir/fhirschema/resourcefile"
)

func noResolve(string) (*Validator, bool) { return nil, false }

func TestCompilePrimitive_Boolean(t *testing.T) {
	sd := &resourcefile.StructureDefinition{URL: "http://hl7.org/fhir/StructureDefinition/boolean", Type: "boolean", Kind: "primitive-type"}
	root := &intermediate.Element{Path: "boolean", Children: []*intermediate.Element{
		{Path: "boolean.value", Name: "value", TypeCode: "boolean"},
	}}
	c := NewCompiler(noResolve)
	v := c.CompileStructureDefinition(sd, root)
	if v.Kind != KBoolean {
		t.Fatalf("Kind = %v, want KBoolean", v.Kind)
	}
}

func TestCompilePrimitive_FixedPatternBecomesRegex(t *testing.T) {
	sd := &resourcefile.StructureDefinition{URL: "http://hl7.org/fhir/StructureDefinition/date", Type: "date", Kind: "primitive-type"}
	root := &intermediate.Element{Path: "date", Children: []*intermediate.Element{
		{
			Path: "date.value", Name: "value", TypeCode: "string",
			ChoiceValues: map[string]json.RawMessage{"fixedString": json.RawMessage(`"[0-9]{4}"`)},
		},
	}}
	c := NewCompiler(noResolve)
	v := c.CompileStructureDefinition(sd, root)
	if v.Kind != KString || v.RegexPattern != "[0-9]{4}" {
		t.Fatalf("got Kind=%v Pattern=%q", v.Kind, v.RegexPattern)
	}
}

func TestCompileComplex_ObjectWithOptionalChild(t *testing.T) {
	sd := &resourcefile.StructureDefinition{URL: "http://hl7.org/fhir/StructureDefinition/HumanName", Type: "HumanName", Kind: "complex-type"}
	root := &intermediate.Element{
		Path: "HumanName",
		Children: []*intermediate.Element{
			{Path: "HumanName.family", Name: "family", TypeCode: "string", Min: 0, Max: 1},
			{Path: "HumanName.given", Name: "given", TypeCode: "string", Min: 0, Max: intermediate.Unbounded},
		},
	}
	c := NewCompiler(func(name string) (*Validator, bool) {
		if name == "http://hl7.org/fhir/StructureDefinition/string" {
			return String("", 0, 0), true
		}
		return nil, false
	})
	v := c.CompileStructureDefinition(sd, root)
	if v.Kind != KRefined {
		t.Fatalf("complex-type root Kind = %v, want KRefined", v.Kind)
	}
	obj := v.Inner
	if obj.Kind != KObject {
		t.Fatalf("Inner Kind = %v, want KObject", obj.Kind)
	}
	family, ok := obj.Field("family")
	if !ok || family.Kind != KOptional {
		t.Fatalf("family field = %+v, ok=%v", family, ok)
	}
	given, ok := obj.Field("given")
	if !ok || given.Kind != KOptional || given.Inner.Kind != KArray {
		t.Fatalf("given field = %+v, ok=%v", given, ok)
	}
}

func TestCompileObject_ChoiceOfTypeExpandsFields(t *testing.T) {
	e := &intermediate.Element{
		Path: "Extension",
		Children: []*intermediate.Element{
			{Path: "Extension.value[x]", Name: "value[x]", TypeChoice: true, Profiles: []string{"string", "boolean"}, Min: 0, Max: 1},
		},
	}
	c := NewCompiler(func(name string) (*Validator, bool) {
		switch name {
		case "http://hl7.org/fhir/StructureDefinition/string":
			return String("", 0, 0), true
		case "http://hl7.org/fhir/StructureDefinition/boolean":
			return Boolean(), true
		}
		return nil, false
	})
	v := c.compileObject("http://example.org/sd", e)
	if v.Kind != KRefined {
		t.Fatalf("Kind = %v, want KRefined (AtMostOneOfPrefix)", v.Kind)
	}
	obj := v.Inner
	if _, ok := obj.Field("valueString"); !ok {
		t.Error("expected valueString field")
	}
	if _, ok := obj.Field("valueBoolean"); !ok {
		t.Error("expected valueBoolean field")
	}
	foundAtMostOne := false
	for _, r := range v.Refinements {
		if p, ok := r.(AtMostOneOfPrefix); ok && p.Prefix == "value" {
			foundAtMostOne = true
		}
	}
	if !foundAtMostOne {
		t.Error("expected AtMostOneOfPrefix{Prefix: \"value\"} refinement")
	}
}

func TestCompileObject_UnresolvedDependencyRecordsDiagnostic(t *testing.T) {
	e := &intermediate.Element{
		Path: "Patient",
		Children: []*intermediate.Element{
			{Path: "Patient.identifier", Name: "identifier", TypeCode: "Identifier", Min: 0, Max: 1},
		},
	}
	c := NewCompiler(noResolve)
	v := c.compileObject("http://example.org/Patient", e)
	field, _ := v.Field("identifier")
	if field == nil || field.Inner.Kind != KAny {
		t.Fatalf("expected unresolved child substituted with Any, got %+v", field)
	}
	if len(c.Diagnostics()) == 0 {
		t.Error("expected a diagnostic for the unresolved dependency")
	}
}

func TestCompileCodeSystem_CompleteBuildsEnum(t *testing.T) {
	cs := &resourcefile.CodeSystem{
		URL:     "http://example.org/CodeSystem/cs",
		Content: "complete",
		Concepts: []resourcefile.CodeSystemConcept{
			{Code: "a"}, {Code: "b"},
		},
	}
	c := NewCompiler(noResolve)
	v, h := c.CompileCodeSystem(cs)
	if v.Kind != KEnum || len(v.EnumValues) != 2 {
		t.Fatalf("got %+v", v)
	}
	if h == nil {
		t.Fatal("expected a non-nil hierarchy for content=complete")
	}
}

func TestCompileCodeSystem_SupplementYieldsNothing(t *testing.T) {
	cs := &resourcefile.CodeSystem{URL: "http://example.org/CodeSystem/supp", Content: "supplement"}
	c := NewCompiler(noResolve)
	v, h := c.CompileCodeSystem(cs)
	if v != nil || h != nil {
		t.Fatalf("expected nil, nil for supplement, got %+v %+v", v, h)
	}
}
