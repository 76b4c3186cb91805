package resourcefile

import (
	"encoding/json"
	"fmt"
)

// ImplementationGuide is a lightweight decode of the FHIR
// ImplementationGuide resource: the global profile bindings it declares
// (ig.global[].profile). They are used for dependency ordering only; the
// facade's Validate does not add them to a document's profile list.
type ImplementationGuide struct {
	URL    string
	Name   string
	Global []ImplementationGuideGlobal
	// DependsOn is ig.dependsOn[]: other ImplementationGuides this one
	// builds on (spec §4.2's ImplementationGuide dependency rule).
	DependsOn []ImplementationGuideDependsOn
}

// ImplementationGuideGlobal is one ig.global[] entry.
type ImplementationGuideGlobal struct {
	Type    string
	Profile string
}

// ImplementationGuideDependsOn is one ig.dependsOn[] entry.
type ImplementationGuideDependsOn struct {
	URI       string
	PackageID string
	Version   string
}

type jsonImplementationGuide struct {
	URL       string                           `json:"url"`
	Name      string                           `json:"name"`
	Global    []jsonImplementationGuideGlobal  `json:"global"`
	DependsOn []jsonImplementationGuideDependsOn `json:"dependsOn"`
}

type jsonImplementationGuideGlobal struct {
	Type    string `json:"type"`
	Profile string `json:"profile"`
}

type jsonImplementationGuideDependsOn struct {
	URI       string `json:"uri"`
	PackageID string `json:"packageId"`
	Version   string `json:"version"`
}

func decodeImplementationGuide(data []byte) (*ImplementationGuide, error) {
	var j jsonImplementationGuide
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("decoding ImplementationGuide: %w", err)
	}

	ig := &ImplementationGuide{URL: j.URL, Name: j.Name}
	for _, g := range j.Global {
		ig.Global = append(ig.Global, ImplementationGuideGlobal{Type: g.Type, Profile: g.Profile})
	}
	for _, d := range j.DependsOn {
		ig.DependsOn = append(ig.DependsOn, ImplementationGuideDependsOn{URI: d.URI, PackageID: d.PackageID, Version: d.Version})
	}
	return ig, nil
}
