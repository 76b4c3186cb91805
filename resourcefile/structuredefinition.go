package resourcefile

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StructureDefinition is a lightweight decode of the FHIR StructureDefinition
// resource: only the fields the Dependency Analyzer, Intermediate Form
// Builder, and Schema Compiler actually consult. Importing the full typed
// github.com/gofhir/fhir/r4 model here would pull profile metadata (contact,
// useContext, copyright, mapping...) the compiler never reads; a raw decode
// keeps the registry boundary cheap and keeps choice-of-type ([x]) fields
// accessible by prefix scan instead of one named field per FHIR type.
type StructureDefinition struct {
	URL            string
	Name           string
	Type           string // the FHIR type this SD describes, e.g. "Patient", "HumanName"
	Kind           string // "primitive-type" | "complex-type" | "resource" | "logical"
	Abstract       bool
	BaseDefinition string
	Derivation     string // "specialization" | "constraint"
	Elements       []ElementDefinition
}

// ElementDefinition is one entry from snapshot.element (or differential.element
// when no snapshot is present). Field names follow the FHIR resource exactly;
// see loader/converter.go in the teacher for the historical r4-typed
// equivalent this generalizes.
type ElementDefinition struct {
	ID        string
	Path      string
	SliceName string
	Min       *uint32
	Max       string

	// MaxLength is element.maxLength: a string-valued element's maximum
	// length, nil when absent. The FHIR spec requires it be >= 1 when
	// present, so there is no ambiguity with an unset pointer.
	MaxLength *int

	Type []ElementDefinitionType

	Binding *ElementDefinitionBinding

	Constraint []ElementDefinitionConstraint

	Slicing *ElementDefinitionSlicing

	MustSupport bool
	IsModifier  bool

	// ChoiceValues holds every present fixed[x]/pattern[x]/defaultValue[x]/
	// minValue[x]/maxValue[x] field, keyed by its exact JSON field name
	// (e.g. "patternCodeableConcept", "fixedBoolean"). The Intermediate Form
	// Builder picks the first match for a given prefix per spec §4.4.
	ChoiceValues map[string]json.RawMessage
}

// ElementDefinitionType is one entry of element.type[].
type ElementDefinitionType struct {
	Code          string
	Profile       []string
	TargetProfile []string
}

// ElementDefinitionBinding is element.binding.
type ElementDefinitionBinding struct {
	Strength    string // "required" | "extensible" | "preferred" | "example"
	ValueSet    string
	Description string
}

// ElementDefinitionConstraint is one entry of element.constraint[].
type ElementDefinitionConstraint struct {
	Key        string
	Severity   string // "error" | "warning"
	Human      string
	Expression string
	Source     string
}

// ElementDefinitionSlicing is element.slicing.
type ElementDefinitionSlicing struct {
	Discriminator []ElementDefinitionSlicingDiscriminator
	Description   string
	Ordered       bool
	Rules         string // "closed" | "open" | "openAtEnd"
}

// ElementDefinitionSlicingDiscriminator is one entry of slicing.discriminator[].
type ElementDefinitionSlicingDiscriminator struct {
	Type string // "value" | "exists" | "pattern" | "type" | "profile"
	Path string
}

var choicePrefixes = []string{"fixed", "pattern", "defaultValue", "minValue", "maxValue"}

// isChoiceKey reports whether key is a FHIR choice-of-type field such as
// "patternCodeableConcept", and if so returns its logical prefix
// ("pattern") for grouping.
func isChoiceKey(key string) (prefix string, ok bool) {
	for _, p := range choicePrefixes {
		if strings.HasPrefix(key, p) && len(key) > len(p) {
			return p, true
		}
	}
	return "", false
}

type jsonStructureDefinition struct {
	URL            string           `json:"url"`
	Name           string           `json:"name"`
	Type           string           `json:"type"`
	Kind           string           `json:"kind"`
	Abstract       bool             `json:"abstract"`
	BaseDefinition string           `json:"baseDefinition"`
	Derivation     string           `json:"derivation"`
	Snapshot       *jsonElementHolder `json:"snapshot"`
	Differential   *jsonElementHolder `json:"differential"`
}

type jsonElementHolder struct {
	Element []json.RawMessage `json:"element"`
}

type jsonElementDefinition struct {
	ID          string                  `json:"id"`
	Path        string                  `json:"path"`
	SliceName   string                  `json:"sliceName"`
	Min         *uint32                 `json:"min"`
	Max         string                  `json:"max"`
	MaxLength   *int                    `json:"maxLength"`
	Type        []jsonElementType       `json:"type"`
	Binding     *jsonElementBinding     `json:"binding"`
	Constraint  []jsonElementConstraint `json:"constraint"`
	Slicing     *jsonElementSlicing     `json:"slicing"`
	MustSupport bool                    `json:"mustSupport"`
	IsModifier  bool                    `json:"isModifier"`
}

type jsonElementType struct {
	Code          string   `json:"code"`
	Profile       []string `json:"profile"`
	TargetProfile []string `json:"targetProfile"`
}

type jsonElementBinding struct {
	Strength    string `json:"strength"`
	ValueSet    string `json:"valueSet"`
	Description string `json:"description"`
}

type jsonElementConstraint struct {
	Key        string `json:"key"`
	Severity   string `json:"severity"`
	Human      string `json:"human"`
	Expression string `json:"expression"`
	Source     string `json:"source"`
}

type jsonElementSlicing struct {
	Discriminator []jsonElementDiscriminator `json:"discriminator"`
	Description   string                     `json:"description"`
	Ordered       bool                       `json:"ordered"`
	Rules         string                     `json:"rules"`
}

type jsonElementDiscriminator struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

func decodeStructureDefinition(data []byte) (*StructureDefinition, error) {
	var j jsonStructureDefinition
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("decoding StructureDefinition: %w", err)
	}

	holder := j.Snapshot
	if holder == nil || len(holder.Element) == 0 {
		holder = j.Differential
	}

	sd := &StructureDefinition{
		URL:            j.URL,
		Name:           j.Name,
		Type:           j.Type,
		Kind:           j.Kind,
		Abstract:       j.Abstract,
		BaseDefinition: j.BaseDefinition,
		Derivation:     j.Derivation,
	}
	if holder == nil {
		// A StructureDefinition with neither snapshot nor differential is
		// structurally malformed: there is nothing to compile.
		return nil, fmt.Errorf("StructureDefinition %s has no snapshot or differential element list", j.URL)
	}

	for _, raw := range holder.Element {
		elem, err := decodeElementDefinition(raw)
		if err != nil {
			return nil, fmt.Errorf("StructureDefinition %s: %w", j.URL, err)
		}
		sd.Elements = append(sd.Elements, elem)
	}
	return sd, nil
}

func decodeElementDefinition(raw json.RawMessage) (ElementDefinition, error) {
	var j jsonElementDefinition
	if err := json.Unmarshal(raw, &j); err != nil {
		return ElementDefinition{}, fmt.Errorf("decoding ElementDefinition: %w", err)
	}
	if j.Path == "" {
		return ElementDefinition{}, fmt.Errorf("ElementDefinition missing path")
	}

	elem := ElementDefinition{
		ID:          j.ID,
		Path:        j.Path,
		SliceName:   j.SliceName,
		Min:         j.Min,
		Max:         j.Max,
		MaxLength:   j.MaxLength,
		MustSupport: j.MustSupport,
		IsModifier:  j.IsModifier,
	}
	for _, t := range j.Type {
		elem.Type = append(elem.Type, ElementDefinitionType{
			Code:          t.Code,
			Profile:       t.Profile,
			TargetProfile: t.TargetProfile,
		})
	}
	if j.Binding != nil {
		elem.Binding = &ElementDefinitionBinding{
			Strength:    j.Binding.Strength,
			ValueSet:    j.Binding.ValueSet,
			Description: j.Binding.Description,
		}
	}
	for _, c := range j.Constraint {
		elem.Constraint = append(elem.Constraint, ElementDefinitionConstraint{
			Key:        c.Key,
			Severity:   c.Severity,
			Human:      c.Human,
			Expression: c.Expression,
			Source:     c.Source,
		})
	}
	if j.Slicing != nil {
		s := &ElementDefinitionSlicing{
			Description: j.Slicing.Description,
			Ordered:     j.Slicing.Ordered,
			Rules:       j.Slicing.Rules,
		}
		for _, d := range j.Slicing.Discriminator {
			s.Discriminator = append(s.Discriminator, ElementDefinitionSlicingDiscriminator{
				Type: d.Type,
				Path: d.Path,
			})
		}
		elem.Slicing = s
	}

	// Scan for choice-of-type fields: fixed[x], pattern[x], defaultValue[x],
	// minValue[x], maxValue[x]. These can't be declared as named struct
	// fields without one field per FHIR data type, so the element is also
	// decoded into a generic map and filtered by prefix. The map does not
	// keep the object's key order (see ChoiceValue).
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(raw, &generic); err != nil {
		return ElementDefinition{}, fmt.Errorf("decoding ElementDefinition %s as map: %w", j.Path, err)
	}
	for key, val := range generic {
		if _, ok := isChoiceKey(key); ok {
			if elem.ChoiceValues == nil {
				elem.ChoiceValues = make(map[string]json.RawMessage)
			}
			elem.ChoiceValues[key] = val
		}
	}

	return elem, nil
}

// ChoiceValue returns the first fixed[x]/pattern[x]/defaultValue[x]/
// minValue[x]/maxValue[x] field matching prefix (e.g. "pattern"), and the
// suffix identifying its FHIR type (e.g. "CodeableConcept" from
// "patternCodeableConcept"). Go map iteration order is randomized, so when
// more than one key could match (which the FHIR spec disallows but malformed
// input might contain) the choice among them is arbitrary but deterministic
// per-process is not guaranteed; well-formed definitions never have more
// than one.
func (e ElementDefinition) ChoiceValue(prefix string) (raw json.RawMessage, typeSuffix string, ok bool) {
	for key, val := range e.ChoiceValues {
		if p, matched := isChoiceKey(key); matched && p == prefix {
			return val, strings.TrimPrefix(key, p), true
		}
	}
	return nil, "", false
}
