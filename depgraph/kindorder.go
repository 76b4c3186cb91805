package depgraph

import "github.com/gofhir/fhirschema/resourcefile"

var kindRank = map[resourcefile.Kind]int{
	resourcefile.KindImplementationGuide: 0,
	resourcefile.KindStructureDefinition: 1,
	resourcefile.KindValueSet:            2,
	resourcefile.KindCodeSystem:          3,
	resourcefile.KindConceptMap:          4,
	resourcefile.KindStructureMap:        5,
}

var sdKindRank = map[string]int{
	"resource":      0,
	"complex-type":  1,
	"primitive-type": 2,
}

// ByKindLess is the secondary, by-kind comparator used as a stabilizer
// before dependency sort (§4.3): ImplementationGuide < StructureDefinition
// < ValueSet < CodeSystem < ConceptMap; within StructureDefinition,
// resource < complex-type < primitive-type; then by name ascending, then by
// url.
func ByKindLess(a, b *resourcefile.ResourceFile) bool {
	ra, rb := kindRank[a.ResourceType], kindRank[b.ResourceType]
	if ra != rb {
		return ra < rb
	}
	if a.ResourceType == resourcefile.KindStructureDefinition {
		sa, sb := sdKindRank[a.SDKind], sdKindRank[b.SDKind]
		if sa != sb {
			return sa < sb
		}
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.URL < b.URL
}
