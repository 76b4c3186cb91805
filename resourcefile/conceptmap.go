package resourcefile

import (
	"encoding/json"
	"fmt"
)

// ConceptMap is a lightweight decode of the FHIR ConceptMap resource. The
// compiler only needs its source/target scope to extract dependency edges
// (spec §4.2); element-by-element mapping evaluation is out of scope for a
// structural validator and is kept only as the registry entry's payload for
// callers that want to inspect it directly.
type ConceptMap struct {
	URL           string
	Name          string
	SourceURI     string
	TargetURI     string
	SourceCanonical string
	TargetCanonical string
	Group         []ConceptMapGroup
}

// ConceptMapGroup is one conceptMap.group[] entry.
type ConceptMapGroup struct {
	Source  string
	Target  string
	Element []ConceptMapElement
}

// ConceptMapElement is one group.element[] entry: a single source code and
// its equivalence mappings.
type ConceptMapElement struct {
	Code   string
	Target []ConceptMapTarget
}

// ConceptMapTarget is one element.target[] entry.
type ConceptMapTarget struct {
	Code        string
	Equivalence string
	// DependsOn is target.dependsOn[], each naming a system whose code must
	// also match for this mapping to apply (spec §4.2's ConceptMap
	// dependency rule).
	DependsOn []ConceptMapDependsOn
}

// ConceptMapDependsOn is one element.target[].dependsOn[] entry.
type ConceptMapDependsOn struct {
	System string
	Code   string
}

type jsonConceptMap struct {
	URL             string              `json:"url"`
	Name            string              `json:"name"`
	SourceUri       string              `json:"sourceUri"`
	TargetUri       string              `json:"targetUri"`
	SourceCanonical string              `json:"sourceCanonical"`
	TargetCanonical string              `json:"targetCanonical"`
	Group           []jsonConceptMapGroup `json:"group"`
}

type jsonConceptMapGroup struct {
	Source  string                  `json:"source"`
	Target  string                  `json:"target"`
	Element []jsonConceptMapElement `json:"element"`
}

type jsonConceptMapElement struct {
	Code   string                 `json:"code"`
	Target []jsonConceptMapTarget `json:"target"`
}

type jsonConceptMapTarget struct {
	Code        string                   `json:"code"`
	Equivalence string                   `json:"equivalence"`
	DependsOn   []jsonConceptMapDependsOn `json:"dependsOn"`
}

type jsonConceptMapDependsOn struct {
	System string `json:"system"`
	Code   string `json:"code"`
}

func decodeConceptMap(data []byte) (*ConceptMap, error) {
	var j jsonConceptMap
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("decoding ConceptMap: %w", err)
	}

	cm := &ConceptMap{
		URL:             j.URL,
		Name:            j.Name,
		SourceURI:       j.SourceUri,
		TargetURI:       j.TargetUri,
		SourceCanonical: j.SourceCanonical,
		TargetCanonical: j.TargetCanonical,
	}
	for _, g := range j.Group {
		group := ConceptMapGroup{Source: g.Source, Target: g.Target}
		for _, e := range g.Element {
			elem := ConceptMapElement{Code: e.Code}
			for _, t := range e.Target {
				target := ConceptMapTarget{Code: t.Code, Equivalence: t.Equivalence}
				for _, d := range t.DependsOn {
					target.DependsOn = append(target.DependsOn, ConceptMapDependsOn{System: d.System, Code: d.Code})
				}
				elem.Target = append(elem.Target, target)
			}
			group.Element = append(group.Element, elem)
		}
		cm.Group = append(cm.Group, group)
	}
	return cm, nil
}
