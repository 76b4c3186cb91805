package depgraph

import (
	"reflect"
	"testing"

	"github.com/gofhir/fhirschema/resourcefile"
)

func TestDependencies_StructureDefinition(t *testing.T) {
	rf := &resourcefile.ResourceFile{
		URL:          "http://example.org/StructureDefinition/my-patient",
		ResourceType: resourcefile.KindStructureDefinition,
		Payload: &resourcefile.StructureDefinition{
			BaseDefinition: "http://hl7.org/fhir/StructureDefinition/Patient",
			Elements: []resourcefile.ElementDefinition{
				{Path: "Patient.name", Type: []resourcefile.ElementDefinitionType{{Code: "HumanName"}}},
				{
					Path:    "Patient.gender",
					Type:    []resourcefile.ElementDefinitionType{{Code: "code"}},
					Binding: &resourcefile.ElementDefinitionBinding{Strength: "required", ValueSet: "http://hl7.org/fhir/ValueSet/administrative-gender"},
				},
				{
					Path:       "Patient",
					Constraint: []resourcefile.ElementDefinitionConstraint{{Key: "dom-2", Source: "http://hl7.org/fhir/StructureDefinition/DomainResource"}},
				},
			},
		},
	}

	got := Dependencies(rf)
	want := []string{
		"http://hl7.org/fhir/StructureDefinition/DomainResource",
		"http://hl7.org/fhir/StructureDefinition/HumanName",
		"http://hl7.org/fhir/StructureDefinition/Patient",
		"http://hl7.org/fhir/StructureDefinition/code",
		"http://hl7.org/fhir/ValueSet/administrative-gender",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Dependencies() = %v; want %v", got, want)
	}
}

func TestDependencies_ExcludesSelfReference(t *testing.T) {
	rf := &resourcefile.ResourceFile{
		URL:          "http://hl7.org/fhir/StructureDefinition/Element",
		ResourceType: resourcefile.KindStructureDefinition,
		Payload: &resourcefile.StructureDefinition{
			Elements: []resourcefile.ElementDefinition{
				{Path: "Element", Constraint: []resourcefile.ElementDefinitionConstraint{{Key: "ele-1", Source: "http://hl7.org/fhir/StructureDefinition/Element"}}},
			},
		},
	}
	if got := Dependencies(rf); len(got) != 0 {
		t.Errorf("Dependencies() = %v; want empty (self-reference excluded)", got)
	}
}

func TestDependencies_ValueSet(t *testing.T) {
	rf := &resourcefile.ResourceFile{
		URL:          "http://example.org/ValueSet/vs",
		ResourceType: resourcefile.KindValueSet,
		Payload: &resourcefile.ValueSet{
			Compose: &resourcefile.ValueSetCompose{
				Include: []resourcefile.ValueSetInclude{
					{System: "http://example.org/cs", ValueSet: []string{"http://example.org/ValueSet/imported"}},
				},
			},
		},
	}
	got := Dependencies(rf)
	want := []string{"http://example.org/ValueSet/imported", "http://example.org/cs"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Dependencies() = %v; want %v", got, want)
	}
}

func TestSort_SimpleDAG(t *testing.T) {
	deps := map[string][]string{
		"a": {"b"},
		"b": {"c"},
		"c": {},
	}
	result := Sort(deps)
	pos := make(map[string]int)
	for i, u := range result.Sorted {
		pos[u] = i
	}
	if pos["c"] > pos["b"] || pos["b"] > pos["a"] {
		t.Errorf("expected leaves-first order c,b,a; got %v", result.Sorted)
	}
	if len(result.Cycles) != 0 {
		t.Errorf("unexpected cycles: %v", result.Cycles)
	}
}

func TestSort_TolerantOfCycle(t *testing.T) {
	deps := map[string][]string{
		"a": {"b"},
		"b": {"a"},
	}
	result := Sort(deps)
	if len(result.Sorted) != 2 {
		t.Fatalf("len(Sorted) = %d; want 2 (cycle must not drop nodes)", len(result.Sorted))
	}
	if len(result.Cycles) == 0 {
		t.Error("expected at least one cycle to be reported")
	}
}

func TestComparator_TotalOrder(t *testing.T) {
	result := SortResult{Sorted: []string{"c", "b", "a"}}
	less := result.Comparator()

	if !less("c", "b") {
		t.Error("expected c (earlier in Sorted) to sort before b")
	}
	if !less("b", "unknown") {
		t.Error("expected a sorted URL to precede an unsorted one")
	}
	if !less("x", "y") {
		t.Error("expected lexicographic fallback for two unsorted URLs")
	}
}

func TestByKindLess_IGBeforeSD(t *testing.T) {
	ig := &resourcefile.ResourceFile{ResourceType: resourcefile.KindImplementationGuide, Name: "z"}
	sd := &resourcefile.ResourceFile{ResourceType: resourcefile.KindStructureDefinition, Name: "a"}
	if !ByKindLess(ig, sd) {
		t.Error("expected ImplementationGuide to sort before StructureDefinition regardless of name")
	}
}
