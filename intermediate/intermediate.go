// Package intermediate builds the tree the Schema Compiler consumes:
// IntermediateElement, assembled from a StructureDefinition's flat
// snapshot.element list per spec §4.4.
package intermediate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gofhir/fhirschema/resourcefile"
)

// Unbounded is the cardinality sentinel for max = "*".
const Unbounded = -1

// Element is one node of the tree built from snapshot.element[]: either the
// root of a StructureDefinition or one of its descendants.
type Element struct {
	ID   string
	Path string
	Name string // last path segment, the object field name this element becomes

	Min int
	Max int // Unbounded for "*"

	// TypeCode is the element's single type code, or "" when TypeChoice is
	// true (the element carries zero or multiple type entries; the "[x]"
	// suffix of the field name is not consulted).
	TypeCode   string
	TypeChoice bool
	Profiles   []string
	TargetProfiles []string

	// MaxLength is element.maxLength (strings), 0 when absent (FHIR requires
	// a present maxLength be >= 1, so 0 is an unambiguous "unconstrained").
	MaxLength int

	// MinValue and MaxValue are the numeric reading of minValue[x]/
	// maxValue[x] when the choice's type is itself numeric (decimal,
	// integer, positiveInt, unsignedInt); nil when absent or non-numeric
	// (e.g. minValueDate), per spec §3's "min_value, max_value" value
	// constraints and §4.5's "min/max numeric" primitive refinement.
	MinValue *float64
	MaxValue *float64

	Binding *resourcefile.ElementDefinitionBinding

	Constraints []resourcefile.ElementDefinitionConstraint

	Slicing *resourcefile.ElementDefinitionSlicing
	Slices  []*Element // slice introducers, in declared order

	Children []*Element

	// ChoiceValues carries the source element's fixed[x]/pattern[x]/
	// defaultValue[x]/minValue[x]/maxValue[x] fields forward for the
	// Schema Compiler's ExactValue/Slicing refinements.
	ChoiceValues map[string]json.RawMessage

	MustSupport bool
	IsModifier  bool
}

// ChoiceValue returns the first element with the given prefix, same
// contract as resourcefile.ElementDefinition.ChoiceValue.
func (e *Element) ChoiceValue(prefix string) (raw json.RawMessage, typeSuffix string, ok bool) {
	for key, val := range e.ChoiceValues {
		if p, matched := isChoiceKey(key); matched && p == prefix {
			return val, strings.TrimPrefix(key, p), true
		}
	}
	return nil, "", false
}

var choicePrefixes = []string{"fixed", "pattern", "defaultValue", "minValue", "maxValue"}

func isChoiceKey(key string) (string, bool) {
	for _, p := range choicePrefixes {
		if strings.HasPrefix(key, p) && len(key) > len(p) {
			return p, true
		}
	}
	return "", false
}

// Build transforms sd's snapshot elements into a tree, rooted at the
// element whose id equals sd.Type, per spec §4.4.
func Build(sd *resourcefile.StructureDefinition) (*Element, error) {
	if len(sd.Elements) == 0 {
		return nil, fmt.Errorf("malformed-definition: %s has no elements", sd.URL)
	}

	byID := make(map[string]*Element, len(sd.Elements))
	source := make(map[string]resourcefile.ElementDefinition, len(sd.Elements))
	order := make([]string, 0, len(sd.Elements))

	constraintPool := buildConstraintPool(sd.Elements)

	var rootID string
	for _, ed := range sd.Elements {
		id := ed.ID
		if id == "" {
			id = ed.Path
		}
		if rootID == "" && ed.Path == sd.Type {
			rootID = id
		}
		node := normalize(ed, sd, constraintPool)
		byID[id] = node
		source[id] = ed
		order = append(order, id)
	}

	if rootID == "" {
		return nil, fmt.Errorf("malformed-definition: %s has no root element matching type %q", sd.URL, sd.Type)
	}

	for _, id := range order {
		if id == rootID {
			continue
		}
		ed := source[id]
		node := byID[id]

		parentID := parentOf(ed, id)
		parent, ok := byID[parentID]
		if !ok {
			return nil, fmt.Errorf("orphan-element: %s: element %q has no parent %q", sd.URL, id, parentID)
		}

		if ed.SliceName != "" && strings.HasSuffix(id, ":"+ed.SliceName) {
			parent.Slices = append(parent.Slices, node)
		} else {
			parent.Children = append(parent.Children, node)
		}
	}

	return byID[rootID], nil
}

// parentOf computes an element's parent id per §4.4: a slice introducer's
// parent is its id with the trailing ":name" stripped; otherwise it's the
// id (or path) with the last ".segment" stripped.
func parentOf(ed resourcefile.ElementDefinition, id string) string {
	if ed.SliceName != "" && strings.HasSuffix(id, ":"+ed.SliceName) {
		return strings.TrimSuffix(id, ":"+ed.SliceName)
	}
	trimmed := id
	if idx := strings.LastIndex(trimmed, "."); idx >= 0 {
		return trimmed[:idx]
	}
	return trimmed
}

func normalize(ed resourcefile.ElementDefinition, sd *resourcefile.StructureDefinition, pool map[string]resourcefile.ElementDefinitionConstraint) *Element {
	node := &Element{
		ID:          firstNonEmpty(ed.ID, ed.Path),
		Path:        ed.Path,
		Name:        lastSegment(ed.Path),
		Min:         0,
		Max:         1,
		Binding:     bindingOf(ed),
		Slicing:     ed.Slicing,
		ChoiceValues: ed.ChoiceValues,
		MustSupport: ed.MustSupport,
		IsModifier:  ed.IsModifier,
	}
	if ed.Min != nil {
		node.Min = int(*ed.Min)
	}
	if ed.Max == "*" {
		node.Max = Unbounded
	} else if ed.Max != "" {
		node.Max = parseMax(ed.Max)
	}
	if ed.MaxLength != nil {
		node.MaxLength = *ed.MaxLength
	}
	if raw, _, ok := ed.ChoiceValue("minValue"); ok {
		node.MinValue = numericLiteral(raw)
	}
	if raw, _, ok := ed.ChoiceValue("maxValue"); ok {
		node.MaxValue = numericLiteral(raw)
	}

	switch len(ed.Type) {
	case 1:
		node.TypeCode = ed.Type[0].Code
		node.Profiles = ed.Type[0].Profile
		node.TargetProfiles = ed.Type[0].TargetProfile
	default:
		node.TypeChoice = true
	}

	node.Constraints = resolveConstraints(ed, sd, pool)

	return node
}

func bindingOf(ed resourcefile.ElementDefinition) *resourcefile.ElementDefinitionBinding {
	if ed.Binding == nil || ed.Binding.Strength != "required" || ed.Binding.ValueSet == "" {
		return nil
	}
	return ed.Binding
}

// resolveConstraints collects ed's own error-severity constraints,
// discarding any whose source is the ambient base Element type, then
// deduplicates by (expression|human|key), per §4.4. pool is accepted but not
// read: ElementDefinition.condition[] is not decoded, so a constraint named
// only by key on another element is not added to this element's list.
func resolveConstraints(ed resourcefile.ElementDefinition, sd *resourcefile.StructureDefinition, pool map[string]resourcefile.ElementDefinitionConstraint) []resourcefile.ElementDefinitionConstraint {
	seen := make(map[string]struct{})
	var out []resourcefile.ElementDefinitionConstraint
	for _, c := range ed.Constraint {
		if c.Severity != "error" {
			continue
		}
		if c.Source == "http://hl7.org/fhir/StructureDefinition/Element" {
			continue
		}
		key := c.Expression + "|" + c.Human + "|" + c.Key
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

// buildConstraintPool indexes every constraint across the whole
// StructureDefinition by key. The pool is passed to resolveConstraints,
// which does not consult it (see there).
func buildConstraintPool(elements []resourcefile.ElementDefinition) map[string]resourcefile.ElementDefinitionConstraint {
	pool := make(map[string]resourcefile.ElementDefinitionConstraint)
	for _, ed := range elements {
		for _, c := range ed.Constraint {
			if c.Key != "" {
				pool[c.Key] = c
			}
		}
	}
	return pool
}

func lastSegment(path string) string {
	if idx := strings.LastIndex(path, "."); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// numericLiteral reads raw as a bare JSON number (minValueDecimal,
// minValueInteger, minValuePositiveInt, ...) and returns its float64 value,
// or nil when raw isn't a number (e.g. minValueDate's quoted string): the
// CompiledValidator catalog's boundary refinement is numeric-only (spec
// §4.5's "min/max numeric"), so a non-numeric bound simply isn't recorded.
func numericLiteral(raw json.RawMessage) *float64 {
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil
	}
	return &n
}

func parseMax(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 1
		}
		n = n*10 + int(r-'0')
	}
	return n
}
