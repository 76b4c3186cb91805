package hierarchy

import (
	"reflect"
	"testing"

	"github.com/gofhir/fhirschema/resourcefile"
)

func TestBuild_NestedConcepts(t *testing.T) {
	cs := &resourcefile.CodeSystem{
		URL: "http://example.org/CodeSystem/cs",
		Concepts: []resourcefile.CodeSystemConcept{
			{Code: "root", Children: []resourcefile.CodeSystemConcept{
				{Code: "child1", Children: []resourcefile.CodeSystemConcept{
					{Code: "grandchild"},
				}},
				{Code: "child2"},
			}},
		},
	}
	h := Build(cs)

	if d := h.Descendants("root"); !reflect.DeepEqual(d, []string{"child1", "grandchild", "child2"}) {
		t.Errorf("Descendants(root) = %v", d)
	}
	if a := h.Ancestors("grandchild"); !reflect.DeepEqual(a, []string{"root", "child1"}) {
		t.Errorf("Ancestors(grandchild) = %v", a)
	}
	if a := h.Ancestors("root"); len(a) != 0 {
		t.Errorf("Ancestors(root) = %v; want empty", a)
	}
	if _, ok := h.Find("nope"); ok {
		t.Error("Find(nope) unexpectedly found a node")
	}
}

func TestBuild_FlatWithParentProperty(t *testing.T) {
	cs := &resourcefile.CodeSystem{
		URL: "http://example.org/CodeSystem/flat",
		Concepts: []resourcefile.CodeSystemConcept{
			{Code: "root"},
			{Code: "child", Parents: []string{"root"}},
		},
	}
	h := Build(cs)

	if d := h.Descendants("root"); !reflect.DeepEqual(d, []string{"child"}) {
		t.Errorf("Descendants(root) = %v", d)
	}
}

func TestCodes_DFSOrder(t *testing.T) {
	cs := &resourcefile.CodeSystem{
		Concepts: []resourcefile.CodeSystemConcept{
			{Code: "a", Children: []resourcefile.CodeSystemConcept{{Code: "b"}}},
			{Code: "c"},
		},
	}
	h := Build(cs)
	if got := h.Codes(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("Codes() = %v", got)
	}
}
