package resourcefile

import (
	"encoding/json"
	"fmt"
)

// StructureMap is a lightweight decode of the FHIR StructureMap resource.
// The compiler only needs its structure[] imports to extract dependency
// edges (spec §4.2: StructureMap depends on the profiles named under its
// structure block); map rule evaluation is transform logic, not validation,
// and out of scope.
type StructureMap struct {
	URL       string
	Name      string
	Structure []StructureMapStructure
	// Import is structureMap.import[]: other StructureMap canonical URLs
	// whose group[] rules this one may invoke (spec §4.2's StructureMap
	// dependency rule).
	Import []string
}

// StructureMapStructure is one structureMap.structure[] entry.
type StructureMapStructure struct {
	URL  string
	Mode string // "source" | "queried" | "target" | "produced"
	Alias string
}

type jsonStructureMap struct {
	URL       string                      `json:"url"`
	Name      string                      `json:"name"`
	Structure []jsonStructureMapStructure `json:"structure"`
	Import    []string                    `json:"import"`
}

type jsonStructureMapStructure struct {
	URL   string `json:"url"`
	Mode  string `json:"mode"`
	Alias string `json:"alias"`
}

func decodeStructureMap(data []byte) (*StructureMap, error) {
	var j jsonStructureMap
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("decoding StructureMap: %w", err)
	}

	sm := &StructureMap{URL: j.URL, Name: j.Name, Import: j.Import}
	for _, s := range j.Structure {
		sm.Structure = append(sm.Structure, StructureMapStructure{URL: s.URL, Mode: s.Mode, Alias: s.Alias})
	}
	return sm, nil
}
