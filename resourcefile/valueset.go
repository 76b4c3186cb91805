package resourcefile

import (
	"encoding/json"
	"fmt"
)

// ValueSet is a lightweight decode of the FHIR ValueSet resource's compose
// rules, grounded on the teacher's pkg/terminology ValueSet/Compose/Include
// shape (dropped as a package, kept as the struct layout here).
type ValueSet struct {
	URL     string
	Name    string
	Version string
	Compose *ValueSetCompose
}

// ValueSetCompose is value_set.compose.
type ValueSetCompose struct {
	Include []ValueSetInclude
	Exclude []ValueSetInclude
}

// ValueSetInclude is one compose.include[] (or compose.exclude[]) entry.
// Exactly one of Concept, Filter, or ValueSet is expected to be populated in
// well-formed input, per the "intensional vs. extensional vs. imported" rule
// the Concept Hierarchy Engine uses to decide how to evaluate membership.
type ValueSetInclude struct {
	System  string
	Version string
	Concept []ValueSetConcept
	Filter  []ValueSetFilter
	// ValueSet holds canonical URLs of other ValueSets this include imports
	// wholesale (compose.include.valueSet).
	ValueSet []string
}

// ValueSetConcept is one compose.include.concept[] entry: an explicit,
// enumerated code.
type ValueSetConcept struct {
	Code    string
	Display string
}

// ValueSetFilter is one compose.include.filter[] entry. The operators
// schema.Filter checks are "=", "is-a", "is-not-a", "descendent-of",
// "generalizes", "regex", "in" and "not-in"; any other Op (e.g. "exists")
// is decoded but always passes.
type ValueSetFilter struct {
	Property string
	Op       string
	Value    string
}

type jsonValueSet struct {
	URL     string              `json:"url"`
	Name    string              `json:"name"`
	Version string              `json:"version"`
	Compose *jsonValueSetCompose `json:"compose"`
}

type jsonValueSetCompose struct {
	Include []jsonValueSetInclude `json:"include"`
	Exclude []jsonValueSetInclude `json:"exclude"`
}

type jsonValueSetInclude struct {
	System   string                `json:"system"`
	Version  string                `json:"version"`
	Concept  []jsonValueSetConcept `json:"concept"`
	Filter   []jsonValueSetFilter  `json:"filter"`
	ValueSet []string              `json:"valueSet"`
}

type jsonValueSetConcept struct {
	Code    string `json:"code"`
	Display string `json:"display"`
}

type jsonValueSetFilter struct {
	Property string `json:"property"`
	Op       string `json:"op"`
	Value    string `json:"value"`
}

func decodeValueSet(data []byte) (*ValueSet, error) {
	var j jsonValueSet
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("decoding ValueSet: %w", err)
	}

	vs := &ValueSet{URL: j.URL, Name: j.Name, Version: j.Version}
	if j.Compose != nil {
		compose := &ValueSetCompose{}
		compose.Include = convertIncludes(j.Compose.Include)
		compose.Exclude = convertIncludes(j.Compose.Exclude)
		vs.Compose = compose
	}
	return vs, nil
}

func convertIncludes(in []jsonValueSetInclude) []ValueSetInclude {
	if in == nil {
		return nil
	}
	out := make([]ValueSetInclude, 0, len(in))
	for _, i := range in {
		inc := ValueSetInclude{System: i.System, Version: i.Version, ValueSet: i.ValueSet}
		for _, c := range i.Concept {
			inc.Concept = append(inc.Concept, ValueSetConcept{Code: c.Code, Display: c.Display})
		}
		for _, f := range i.Filter {
			inc.Filter = append(inc.Filter, ValueSetFilter{Property: f.Property, Op: f.Op, Value: f.Value})
		}
		out = append(out, inc)
	}
	return out
}
