package schema

import (
	"github.com/gofhir/fhirschema/fhirjson"
	"github.com/gofhir/fhirschema/resourcefile"
)

// HierarchyResolver looks up the materialized ConceptHierarchy for a
// CodeSystem URL, if one was built during CompileCodeSystem.
type HierarchyResolver func(systemURL string) (FilterHierarchy, bool)

// CompileValueSet lowers vs per spec §4.5: the final validator accepts a
// value iff it passes some include and passes none of the excludes.
func (c *Compiler) CompileValueSet(vs *resourcefile.ValueSet, hierarchyOf HierarchyResolver) *Validator {
	if vs.Compose == nil || len(vs.Compose.Include) == 0 {
		c.note(vs.URL, "compose.include is empty: compiled to Never")
		return Never()
	}

	includes := make([]*Validator, 0, len(vs.Compose.Include))
	for _, inc := range vs.Compose.Include {
		includes = append(includes, c.expandInclude(vs.URL, inc, hierarchyOf, true))
	}
	rInc := UnionOf(includes...)

	var rExc *Validator
	if len(vs.Compose.Exclude) > 0 {
		excludes := make([]*Validator, 0, len(vs.Compose.Exclude))
		for _, exc := range vs.Compose.Exclude {
			excludes = append(excludes, c.expandInclude(vs.URL, exc, hierarchyOf, false))
		}
		rExc = IntersectionOf(excludes...)
	}

	if rExc == nil {
		return rInc
	}
	return RefinedOf(rInc, Not{Inner: rExc})
}

// Not is a refinement that fails whenever its inner validator passes a
// value — the compiler's expression of "passes none of the excludes"
// (spec §4.5: `Refined(R_inc, [Not(R_exc)])`).
type Not struct {
	Inner *Validator
}

func (n Not) Check(node fhirjson.Value, path string, root fhirjson.Value) (bool, string) {
	return !accepts(n.Inner, node), "value matches an excluded ValueSet entry"
}

func (c *Compiler) expandInclude(vsURL string, inc resourcefile.ValueSetInclude, hierarchyOf HierarchyResolver, isInclude bool) *Validator {
	permissiveDefault := String("", 1, 0)
	if !isInclude {
		permissiveDefault = Never()
	}

	if len(inc.ValueSet) > 0 {
		branches := make([]*Validator, 0, len(inc.ValueSet))
		for _, ref := range inc.ValueSet {
			branches = append(branches, c.resolveValueSetOrDefault(ref, vsURL, permissiveDefault))
		}
		if len(branches) == 1 {
			return branches[0]
		}
		return UnionOf(branches...)
	}

	if inc.System == "" {
		return permissiveDefault
	}

	if len(inc.Concept) > 0 {
		codes := make([]string, len(inc.Concept))
		for i, con := range inc.Concept {
			codes[i] = con.Code
		}
		if len(codes) == 1 {
			return Literal(codes[0])
		}
		return Enum(codes)
	}

	systemValidator := c.resolveOrAny(inc.System, vsURL)
	if systemValidator.Kind == KAny {
		systemValidator = String("", 0, 0)
	}

	if len(inc.Filter) == 0 {
		return systemValidator
	}

	h, _ := hierarchyOf(inc.System)
	var refinements []Refinement
	for _, f := range inc.Filter {
		refinements = append(refinements, Filter{
			Op: f.Op, Value: f.Value, Property: f.Property,
			CodeSystemURL: inc.System, Hierarchy: h,
		})
	}
	return RefinedOf(systemValidator, refinements...)
}

func (c *Compiler) resolveValueSetOrDefault(url, forURL string, fallback *Validator) *Validator {
	if v, ok := c.resolve(url); ok {
		return v
	}
	c.note(forURL, "referenced ValueSet %q unresolved: permissive default substituted", url)
	return fallback
}
