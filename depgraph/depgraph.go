// Package depgraph implements the Dependency Analyzer and the
// cycle-tolerant Topological Sorter: given the Resource Registry's
// ResourceFiles, it extracts the canonical URLs each one references, then
// orders the whole graph leaves-first without ever failing on a cycle.
package depgraph

import (
	"sort"
	"strings"

	"github.com/gofhir/fhirschema/resourcefile"
)

const baseNamespace = "http://hl7.org/fhir/StructureDefinition/"

// Dependencies returns the deduplicated, sorted set of canonical URLs rf
// depends on, per the per-kind rules of spec §4.2.
func Dependencies(rf *resourcefile.ResourceFile) []string {
	seen := make(map[string]struct{})
	add := func(url string) {
		if url == "" || url == rf.URL {
			return
		}
		seen[url] = struct{}{}
	}

	switch payload := rf.Payload.(type) {
	case *resourcefile.StructureDefinition:
		add(payload.BaseDefinition)
		for _, elem := range payload.Elements {
			for _, t := range elem.Type {
				add(canonicalizeType(t.Code))
				for _, p := range t.Profile {
					add(p)
				}
				for _, p := range t.TargetProfile {
					add(p)
				}
			}
			for _, c := range elem.Constraint {
				add(c.Source)
			}
			if elem.Binding != nil && elem.Binding.Strength == "required" {
				add(elem.Binding.ValueSet)
			}
		}
	case *resourcefile.ValueSet:
		if payload.Compose != nil {
			for _, inc := range append(append([]resourcefile.ValueSetInclude{}, payload.Compose.Include...), payload.Compose.Exclude...) {
				add(inc.System)
				for _, v := range inc.ValueSet {
					add(v)
				}
			}
		}
	case *resourcefile.CodeSystem:
		add(payload.Supplements)
	case *resourcefile.ConceptMap:
		add(payload.SourceURI)
		add(payload.TargetURI)
		add(payload.SourceCanonical)
		add(payload.TargetCanonical)
		for _, g := range payload.Group {
			add(g.Source)
			add(g.Target)
			for _, e := range g.Element {
				for _, t := range e.Target {
					for _, d := range t.DependsOn {
						add(d.System)
					}
				}
			}
		}
	case *resourcefile.StructureMap:
		for _, s := range payload.Structure {
			add(s.URL)
		}
		for _, imp := range payload.Import {
			add(imp)
		}
	case *resourcefile.ImplementationGuide:
		for _, g := range payload.Global {
			add(g.Profile)
		}
		for _, d := range payload.DependsOn {
			add(d.URI)
		}
	}

	out := make([]string, 0, len(seen))
	for url := range seen {
		out = append(out, url)
	}
	sort.Strings(out)
	return out
}

// canonicalizeType rewrites a bare FHIR type code (e.g. "HumanName") to its
// canonical StructureDefinition URL. Codes that already carry a URL scheme
// (profile references, or R5's use of full URLs in type.code) pass through
// unchanged.
func canonicalizeType(code string) string {
	if code == "" {
		return ""
	}
	if strings.Contains(code, ":") {
		return code // already a URL (has a scheme separator)
	}
	return baseNamespace + code
}
