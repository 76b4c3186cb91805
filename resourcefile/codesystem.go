package resourcefile

import (
	"encoding/json"
	"fmt"
)

// CodeSystem is a lightweight decode of the FHIR CodeSystem resource,
// grounded on the teacher's terminology/memory.go codeSystemData shape
// (hierarchy taken from concept nesting and from concept.property "parent"
// entries; a "child" property is not decoded).
type CodeSystem struct {
	URL      string
	Name     string
	Version  string
	Content  string // "complete" | "example" | "fragment" | "not-present" | "supplement"
	// Supplements is content="supplement"'s required back-reference to the
	// CodeSystem it supplies additional designations/properties for
	// (spec §4.2's CodeSystem dependency rule).
	Supplements string
	Concepts    []CodeSystemConcept
}

// CodeSystemConcept is one concept[] entry, possibly with nested concept[]
// children (a hierarchical CodeSystem) and/or "parent" properties (a flat
// CodeSystem expressing hierarchy via property instead of nesting).
type CodeSystemConcept struct {
	Code       string
	Display    string
	Definition string
	Parents    []string // codes named via a "parent" concept.property
	Children   []CodeSystemConcept
}

type jsonCodeSystem struct {
	URL         string                  `json:"url"`
	Name        string                  `json:"name"`
	Version     string                  `json:"version"`
	Content     string                  `json:"content"`
	Supplements string                  `json:"supplements"`
	Concept     []jsonCodeSystemConcept `json:"concept"`
}

type jsonCodeSystemConcept struct {
	Code       string                  `json:"code"`
	Display    string                  `json:"display"`
	Definition string                  `json:"definition"`
	Property   []jsonConceptProperty   `json:"property"`
	Concept    []jsonCodeSystemConcept `json:"concept"`
}

type jsonConceptProperty struct {
	Code        string `json:"code"`
	ValueCode   string `json:"valueCode"`
	ValueString string `json:"valueString"`
}

func decodeCodeSystem(data []byte) (*CodeSystem, error) {
	var j jsonCodeSystem
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("decoding CodeSystem: %w", err)
	}

	cs := &CodeSystem{URL: j.URL, Name: j.Name, Version: j.Version, Content: j.Content, Supplements: j.Supplements}
	cs.Concepts = convertConcepts(j.Concept)
	return cs, nil
}

func convertConcepts(in []jsonCodeSystemConcept) []CodeSystemConcept {
	if in == nil {
		return nil
	}
	out := make([]CodeSystemConcept, 0, len(in))
	for _, c := range in {
		concept := CodeSystemConcept{Code: c.Code, Display: c.Display, Definition: c.Definition}
		for _, p := range c.Property {
			if p.Code == "parent" {
				if p.ValueCode != "" {
					concept.Parents = append(concept.Parents, p.ValueCode)
				} else if p.ValueString != "" {
					concept.Parents = append(concept.Parents, p.ValueString)
				}
			}
		}
		concept.Children = convertConcepts(c.Concept)
		out = append(out, concept)
	}
	return out
}
