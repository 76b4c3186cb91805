package intermediate

import (
	"testing"

	"github.com/gofhir/fhirschema/resourcefile"
)

func min(n uint32) *uint32 { return &n }

func TestBuild_SimpleTree(t *testing.T) {
	sd := &resourcefile.StructureDefinition{
		URL:  "http://example.org/StructureDefinition/my-patient",
		Type: "Patient",
		Kind: "resource",
		Elements: []resourcefile.ElementDefinition{
			{ID: "Patient", Path: "Patient", Min: min(0), Max: "*"},
			{
				ID: "Patient.name", Path: "Patient.name", Min: min(1), Max: "*",
				Type: []resourcefile.ElementDefinitionType{{Code: "HumanName"}},
			},
			{
				ID: "Patient.gender", Path: "Patient.gender", Min: min(0), Max: "1",
				Type: []resourcefile.ElementDefinitionType{{Code: "code"}},
				Binding: &resourcefile.ElementDefinitionBinding{Strength: "required", ValueSet: "http://hl7.org/fhir/ValueSet/administrative-gender"},
			},
		},
	}

	root, err := Build(sd)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if root.Path != "Patient" {
		t.Fatalf("root.Path = %q", root.Path)
	}
	if len(root.Children) != 2 {
		t.Fatalf("len(root.Children) = %d; want 2", len(root.Children))
	}

	name := root.Children[0]
	if name.Name != "name" || name.TypeCode != "HumanName" {
		t.Errorf("name element = %+v", name)
	}
	if name.Min != 1 || name.Max != Unbounded {
		t.Errorf("name cardinality = min:%d max:%d", name.Min, name.Max)
	}

	gender := root.Children[1]
	if gender.Binding == nil || gender.Binding.ValueSet != "http://hl7.org/fhir/ValueSet/administrative-gender" {
		t.Errorf("gender.Binding = %+v", gender.Binding)
	}
}

func TestBuild_SliceIntroducer(t *testing.T) {
	sd := &resourcefile.StructureDefinition{
		URL:  "http://example.org/StructureDefinition/sliced",
		Type: "Observation",
		Kind: "resource",
		Elements: []resourcefile.ElementDefinition{
			{ID: "Observation", Path: "Observation"},
			{
				ID: "Observation.component", Path: "Observation.component", Max: "*",
				Slicing: &resourcefile.ElementDefinitionSlicing{Rules: "open"},
			},
			{ID: "Observation.component:systolic", Path: "Observation.component", SliceName: "systolic", Max: "1"},
		},
	}

	root, err := Build(sd)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	component := root.Children[0]
	if component.Slicing == nil {
		t.Fatal("expected component.Slicing to be set")
	}
	if len(component.Slices) != 1 || component.Slices[0].ID != "Observation.component:systolic" {
		t.Fatalf("component.Slices = %+v", component.Slices)
	}
	if len(component.Children) != 0 {
		t.Errorf("expected slice introducer not counted as a child, got %+v", component.Children)
	}
}

func TestBuild_MissingRoot(t *testing.T) {
	sd := &resourcefile.StructureDefinition{
		URL:  "http://example.org/StructureDefinition/broken",
		Type: "Patient",
		Elements: []resourcefile.ElementDefinition{
			{ID: "Observation", Path: "Observation"},
		},
	}
	if _, err := Build(sd); err == nil {
		t.Fatal("expected an error when no element matches the SD's type")
	}
}

func TestBuild_OrphanElement(t *testing.T) {
	sd := &resourcefile.StructureDefinition{
		URL:  "http://example.org/StructureDefinition/broken",
		Type: "Patient",
		Elements: []resourcefile.ElementDefinition{
			{ID: "Patient", Path: "Patient"},
			{ID: "Patient.a.b", Path: "Patient.a.b"}, // parent "Patient.a" never declared
		},
	}
	if _, err := Build(sd); err == nil {
		t.Fatal("expected an orphan-element error")
	}
}

func TestBuild_ChoiceOfType(t *testing.T) {
	sd := &resourcefile.StructureDefinition{
		URL:  "http://example.org/StructureDefinition/choice",
		Type: "Observation",
		Elements: []resourcefile.ElementDefinition{
			{ID: "Observation", Path: "Observation"},
			{
				ID: "Observation.value[x]", Path: "Observation.value[x]",
				Type: []resourcefile.ElementDefinitionType{{Code: "Quantity"}, {Code: "string"}},
			},
		},
	}
	root, err := Build(sd)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	value := root.Children[0]
	if !value.TypeChoice {
		t.Error("expected value[x] to be marked TypeChoice")
	}
}
