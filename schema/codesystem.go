package schema

import (
	"github.com/gofhir/fhirschema/hierarchy"
	"github.com/gofhir/fhirschema/resourcefile"
)

// CompileCodeSystem lowers a CodeSystem per spec §4.5. For content=complete
// it also builds and returns the ConceptHierarchy so the caller can
// register it by URL for later ValueSet filter resolution.
func (c *Compiler) CompileCodeSystem(cs *resourcefile.CodeSystem) (*Validator, *hierarchy.Hierarchy) {
	switch cs.Content {
	case "complete":
		h := hierarchy.Build(cs)
		return Enum(h.Codes()), h
	case "example", "not-present", "fragment":
		return String("", 1, 0), nil
	case "supplement":
		return nil, nil
	default:
		c.note(cs.URL, "unrecognized CodeSystem.content %q: skipped", cs.Content)
		return nil, nil
	}
}
