// Package schema defines CompiledValidator, the closed sum type the Schema
// Compiler lowers an IntermediateElement tree (or a ValueSet/CodeSystem)
// into, and the closed Refinement catalog attached to it.
package schema

// Kind tags which variant of CompiledValidator is populated. CompiledValidator
// is deliberately a flat struct rather than an interface hierarchy: the set
// of variants is closed, and a switch over Kind is cheaper and clearer than
// a type switch over implementations at validate time.
type Kind uint8

const (
	KAny Kind = iota
	KNever
	KString
	KNumber
	KInteger
	KBoolean
	KLiteral
	KEnum
	KArray
	KOptional
	KObject
	KUnion
	KIntersection
	KRefined
)

func (k Kind) String() string {
	switch k {
	case KAny:
		return "Any"
	case KNever:
		return "Never"
	case KString:
		return "String"
	case KNumber:
		return "Number"
	case KInteger:
		return "Integer"
	case KBoolean:
		return "Boolean"
	case KLiteral:
		return "Literal"
	case KEnum:
		return "Enum"
	case KArray:
		return "Array"
	case KOptional:
		return "Optional"
	case KObject:
		return "Object"
	case KUnion:
		return "Union"
	case KIntersection:
		return "Intersection"
	case KRefined:
		return "Refined"
	default:
		return "unknown"
	}
}

// Unbounded is the cardinality sentinel for an array with no upper bound.
const Unbounded = -1

// Field is one named member of a KObject validator.
type Field struct {
	Name string
	V    *Validator
}

// Validator is a compiled, executable validation program for one FHIR
// shape. Exactly the fields relevant to Kind are populated.
type Validator struct {
	Kind Kind

	// KString
	RegexPattern string // "" when unconstrained
	MinLen       int
	MaxLen       int // 0 when unconstrained (FHIR maxLength is never 0)

	// KNumber, KInteger
	MinValue *float64 // nil when unconstrained
	MaxValue *float64 // nil when unconstrained

	// KLiteral
	LiteralValue string

	// KEnum
	EnumValues []string

	// KArray
	Item     *Validator
	MinItems int
	MaxItems int // Unbounded for no upper bound

	// KOptional, KRefined
	Inner *Validator

	// KObject
	Fields []Field

	// KUnion, KIntersection
	Branches []*Validator

	// KRefined
	Refinements []Refinement

	// SourceURL names the canonical URL this validator was compiled from,
	// for diagnostics; empty for anonymous/structural validators.
	SourceURL string
}

// Any accepts every value.
func Any() *Validator { return &Validator{Kind: KAny} }

// Never accepts nothing.
func Never() *Validator { return &Validator{Kind: KNever} }

// String accepts any JSON string, optionally constrained by a regex and/or
// a minimum/maximum length. maxLen of 0 means unconstrained.
func String(regex string, minLen, maxLen int) *Validator {
	return &Validator{Kind: KString, RegexPattern: regex, MinLen: minLen, MaxLen: maxLen}
}

// Boolean accepts a JSON bool, or (per the primitive "boolean" type's wire
// laxness, spec §4.5) the strings "true"/"false".
func Boolean() *Validator { return &Validator{Kind: KBoolean} }

// Number accepts any JSON number, optionally bounded by min/max (either may
// be nil for "unconstrained on that side").
func Number(min, max *float64) *Validator {
	return &Validator{Kind: KNumber, MinValue: min, MaxValue: max}
}

// Integer accepts a JSON number with no fractional part, optionally bounded
// by min/max (either may be nil for "unconstrained on that side").
func Integer(min, max *float64) *Validator {
	return &Validator{Kind: KInteger, MinValue: min, MaxValue: max}
}

// Literal accepts only the exact string v.
func Literal(v string) *Validator { return &Validator{Kind: KLiteral, LiteralValue: v} }

// Enum accepts any of values.
func Enum(values []string) *Validator { return &Validator{Kind: KEnum, EnumValues: values} }

// ArrayOf wraps item in an array validator with the given bounds.
func ArrayOf(item *Validator, min, max int) *Validator {
	return &Validator{Kind: KArray, Item: item, MinItems: min, MaxItems: max}
}

// OptionalOf makes inner accept absence too.
func OptionalOf(inner *Validator) *Validator { return &Validator{Kind: KOptional, Inner: inner} }

// ObjectOf builds an object validator from fields.
func ObjectOf(fields []Field) *Validator { return &Validator{Kind: KObject, Fields: fields} }

// UnionOf accepts a value iff any branch accepts it.
func UnionOf(branches ...*Validator) *Validator { return &Validator{Kind: KUnion, Branches: branches} }

// IntersectionOf accepts a value iff every branch accepts it.
func IntersectionOf(branches ...*Validator) *Validator {
	return &Validator{Kind: KIntersection, Branches: branches}
}

// RefinedOf attaches refinements to inner, all of which must pass.
func RefinedOf(inner *Validator, refinements ...Refinement) *Validator {
	return &Validator{Kind: KRefined, Inner: inner, Refinements: refinements}
}

// Field looks up a named field of an Object validator.
func (v *Validator) Field(name string) (*Validator, bool) {
	if v == nil || v.Kind != KObject {
		return nil, false
	}
	for _, f := range v.Fields {
		if f.Name == name {
			return f.V, true
		}
	}
	return nil, false
}
