package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gofhir/fhirschema/fhirjson"
	"github.com/gofhir/fhirschema/intermediate"
	"github.com/gofhir/fhirschema/resourcefile"
)

// Resolver looks up an already-compiled validator by canonical URL (or bare
// type code). It is satisfied from the compiler's accumulating by-URL map;
// returning false means "not yet compiled or unresolvable", in which case
// the caller substitutes Any and continues — the principal resilience
// mechanism spec §4.5 requires.
type Resolver func(urlOrName string) (*Validator, bool)

// Diagnostic is one compile-time note (a substitution, a skip, a malformed
// compose) the compiler records instead of failing. The facade converts
// these into its own CompileLog entries.
type Diagnostic struct {
	URL string
	Msg string
}

// Compiler lowers IntermediateElement trees, ValueSets, and CodeSystems
// into CompiledValidators, accumulating diagnostics as it goes.
type Compiler struct {
	resolve     Resolver
	diagnostics []Diagnostic
}

// NewCompiler returns a Compiler backed by resolve.
func NewCompiler(resolve Resolver) *Compiler {
	return &Compiler{resolve: resolve}
}

// Diagnostics returns every diagnostic recorded since the Compiler was
// created.
func (c *Compiler) Diagnostics() []Diagnostic {
	return c.diagnostics
}

func (c *Compiler) note(url, format string, args ...any) {
	c.diagnostics = append(c.diagnostics, Diagnostic{URL: url, Msg: fmt.Sprintf(format, args...)})
}

func (c *Compiler) resolveOrAny(urlOrName, forURL string) *Validator {
	if v, ok := c.resolve(urlOrName); ok {
		return v
	}
	c.note(forURL, "unresolved dependency %q substituted with Any", urlOrName)
	return Any()
}

// CompileStructureDefinition lowers sd (already parsed into its
// IntermediateElement tree, root) into a CompiledValidator, following the
// rules of spec §4.5.
func (c *Compiler) CompileStructureDefinition(sd *resourcefile.StructureDefinition, root *intermediate.Element) *Validator {
	if sd.Kind == "primitive-type" {
		return c.compilePrimitive(sd, root)
	}
	return c.compileComplexOrResource(sd, root)
}

func (c *Compiler) compilePrimitive(sd *resourcefile.StructureDefinition, root *intermediate.Element) *Validator {
	valueElem := findByPath(root, sd.Type+".value")
	if valueElem == nil {
		// Primitive types with no value element (e.g. pure marker types)
		// accept anything structural; nothing more specific to say.
		return Any()
	}

	if sd.Type == "boolean" {
		// The canonical boolean primitive additionally accepts "true"/
		// "false" as either boolean or string: both representations are
		// valid in the wire format (spec §4.5).
		return Boolean()
	}

	if raw, _, ok := valueElem.ChoiceValue("fixed"); ok {
		if s, _ := stringLiteral(raw); s != "" {
			return RegexConstrainedString(s)
		}
	}

	switch valueElem.TypeCode {
	case "boolean":
		return Boolean()
	case "integer", "positiveInt", "unsignedInt", "integer64":
		return Integer(valueElem.MinValue, valueElem.MaxValue)
	case "decimal":
		return Number(valueElem.MinValue, valueElem.MaxValue)
	default:
		return String("", 0, valueElem.MaxLength)
	}
}

// RegexConstrainedString treats a fixed pattern string on a primitive's
// .value element as a regex constraint — the teacher's primitive
// validators apply FHIR's published regexes (e.g. "date", "dateTime") the
// same way, as a String refined by pattern rather than a bespoke type.
func RegexConstrainedString(pattern string) *Validator {
	return String(pattern, 0, 0)
}

func stringLiteral(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func findByPath(root *intermediate.Element, path string) *intermediate.Element {
	if root == nil {
		return nil
	}
	if root.Path == path {
		return root
	}
	for _, child := range root.Children {
		if found := findByPath(child, path); found != nil {
			return found
		}
	}
	return nil
}

func (c *Compiler) compileComplexOrResource(sd *resourcefile.StructureDefinition, root *intermediate.Element) *Validator {
	obj := c.compileObject(sd.URL, root)
	if sd.Kind == "resource" {
		obj = IntersectionOf(obj, ObjectOf([]Field{
			{Name: "resourceType", V: OptionalOf(String("", 0, 0))},
		}))
	}
	return RefinedOf(obj, NonEmptyObject{})
}

// compileObject builds an Object validator from e's children, per the
// per-child lowering rules in spec §4.5.
func (c *Compiler) compileObject(sourceURL string, e *intermediate.Element) *Validator {
	var fields []Field
	var parentRefinements []Refinement

	for _, child := range e.Children {
		if child.TypeChoice {
			prefix := strings.TrimSuffix(child.Name, "[x]")
			for _, candidateType := range choiceCandidateTypes(child) {
				fieldName := prefix + capitalize(candidateType)
				v := c.resolveOrAny(canonicalType(candidateType), sourceURL)
				fields = append(fields, Field{Name: fieldName, V: OptionalOf(c.wrapCardinality(v, child))})
			}
			parentRefinements = append(parentRefinements, AtMostOneOfPrefix{Prefix: prefix})
			continue
		}

		v := c.compileChild(sourceURL, child)
		if child.Min == 0 {
			v = OptionalOf(v)
		}
		fields = append(fields, Field{Name: child.Name, V: v})

		if child.Slicing != nil {
			if rule := c.compileSlicing(sourceURL, child); rule != nil {
				parentRefinements = append(parentRefinements, *rule)
			}
		} else if raw, _, ok := child.ChoiceValue("fixed"); ok {
			parentRefinements = append(parentRefinements, ExactValue{Field: child.Name, Value: mustParseJSON(raw)})
		} else if raw, _, ok := child.ChoiceValue("pattern"); ok {
			parentRefinements = append(parentRefinements, ExactValue{Field: child.Name, Value: mustParseJSON(raw)})
		}
	}

	obj := ObjectOf(fields)
	base := obj
	if len(parentRefinements) > 0 {
		base = RefinedOf(obj, parentRefinements...)
	}

	if len(e.Constraints) > 0 {
		refs := make([]Refinement, 0, len(e.Constraints))
		for _, con := range e.Constraints {
			refs = append(refs, FhirPath{Key: con.Key, Expression: con.Expression, Message: con.Human})
		}
		base = RefinedOf(base, refs...)
	}

	return base
}

// compileChild produces V0 for one child element: resolve its declared
// type, optionally intersected with its own nested object shape if it has
// children of its own.
func (c *Compiler) compileChild(sourceURL string, child *intermediate.Element) *Validator {
	v0 := c.resolveOrAny(canonicalType(child.TypeCode), sourceURL)
	v0 = applyValueConstraints(v0, child)

	if len(child.Children) > 0 {
		nested := c.compileObject(sourceURL, child)
		v0 = IntersectionOf(v0, nested)
	}

	return c.wrapCardinality(v0, child)
}

// applyValueConstraints layers child's maxLength (strings) or minValue[x]/
// maxValue[x] (numerics) onto an already-resolved validator, per spec §3's
// IntermediateElement value constraints. v0 may be a shared, cached
// validator (resolveOrAny can return the same *Validator for every field
// of a given type), so a bound is only ever applied via a shallow copy,
// never by mutating v in place.
func applyValueConstraints(v *Validator, child *intermediate.Element) *Validator {
	if v == nil {
		return v
	}
	switch v.Kind {
	case KString:
		if child.MaxLength <= 0 {
			return v
		}
		cp := *v
		cp.MaxLen = child.MaxLength
		return &cp
	case KNumber, KInteger:
		if child.MinValue == nil && child.MaxValue == nil {
			return v
		}
		cp := *v
		if child.MinValue != nil {
			cp.MinValue = child.MinValue
		}
		if child.MaxValue != nil {
			cp.MaxValue = child.MaxValue
		}
		return &cp
	default:
		return v
	}
}

func (c *Compiler) wrapCardinality(v *Validator, child *intermediate.Element) *Validator {
	if child.Max > 1 || child.Max == intermediate.Unbounded {
		max := Unbounded
		if child.Max != intermediate.Unbounded {
			max = child.Max
		}
		return ArrayOf(v, child.Min, max)
	}
	return v
}

func (c *Compiler) compileSlicing(sourceURL string, child *intermediate.Element) *Refinement {
	if child.Slicing == nil {
		return nil
	}
	var rules []SlicingRule
	for _, slice := range child.Slices {
		discs := compileDiscriminators(child.Slicing, slice)
		if discs == nil {
			continue // unsupported discriminator types (type/profile) skip this slice silently
		}
		rules = append(rules, SlicingRule{
			Name:           slice.Name,
			Validator:      c.compileChild(sourceURL, slice),
			Min:            slice.Min,
			Discriminators: discs,
		})
	}
	if len(rules) == 0 {
		return nil
	}
	var r Refinement = Slicing{Slices: rules, Rules: child.Slicing.Rules}
	return &r
}

func compileDiscriminators(slicing *resourcefile.ElementDefinitionSlicing, slice *intermediate.Element) []Discriminator {
	var out []Discriminator
	for _, d := range slicing.Discriminator {
		switch d.Type {
		case "exists":
			out = append(out, Discriminator{Type: "exists", Path: d.Path})
		case "value", "pattern":
			raw, _, ok := slice.ChoiceValue(d.Type)
			if !ok {
				raw, _, ok = slice.ChoiceValue("fixed")
			}
			if !ok {
				return nil
			}
			out = append(out, Discriminator{Type: "value", Path: d.Path, Expected: mustParseJSON(raw)})
		default:
			return nil // "type", "profile": not supported in this revision (spec §4.7)
		}
	}
	return out
}

func choiceCandidateTypes(child *intermediate.Element) []string {
	// The IntermediateElement builder only retains TypeChoice=true without
	// preserving the original candidate type list (that lives on the
	// source resourcefile.ElementDefinition.Type); compileObject reaches
	// this only for elements still carrying their originating types via
	// Profiles/TargetProfiles being unset, so fall back to the common FHIR
	// open type list when no explicit types are attached.
	if len(child.Profiles) > 0 {
		return child.Profiles
	}
	return defaultOpenTypes
}

var defaultOpenTypes = []string{
	"base64Binary", "boolean", "canonical", "code", "date", "dateTime",
	"decimal", "id", "instant", "integer", "integer64", "markdown", "oid",
	"positiveInt", "string", "time", "unsignedInt", "uri", "url", "uuid",
	"Address", "Age", "Annotation", "Attachment", "CodeableConcept",
	"CodeableReference", "Coding", "ContactPoint", "Count", "Distance",
	"Duration", "HumanName", "Identifier", "Money", "Period", "Quantity",
	"Range", "Ratio", "RatioRange", "Reference", "SampledData", "Signature",
	"Timing", "ContactDetail", "Contributor", "DataRequirement", "Expression",
	"ParameterDefinition", "RelatedArtifact", "TriggerDefinition", "UsageContext",
	"Dosage", "Meta",
}

func canonicalType(code string) string {
	if code == "" {
		return ""
	}
	if strings.Contains(code, "://") {
		return code
	}
	return "http://hl7.org/fhir/StructureDefinition/" + code
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func mustParseJSON(raw json.RawMessage) fhirjson.Value {
	v, err := fhirjson.Parse(raw)
	if err != nil {
		return fhirjson.Value{}
	}
	return v
}
