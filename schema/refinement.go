package schema

import (
	"regexp"
	"strings"
	"sync"

	"github.com/gofhir/fhirpath"

	"github.com/gofhir/fhirschema/fhirjson"
)

// Refinement is one predicate from the closed catalog in spec §4.5: a
// refinement either accepts a node or reports why it rejected it.
type Refinement interface {
	// Check evaluates the refinement against node, found at path within the
	// document rooted at root. It returns ok=true when the refinement
	// passes, or ok=false plus a human-readable message when it doesn't.
	Check(node fhirjson.Value, path string, root fhirjson.Value) (ok bool, message string)
}

// FhirPath evaluates expression against node alone: the root argument of
// Check is not passed to the evaluator, so expressions that refer to the
// outermost resource see only node. The refinement fails iff the expression yields a
// non-empty collection containing a falsy element. Any evaluation or
// compile error is treated as a pass: constraints that can't be checked
// must never produce a false positive (spec §4.5).
type FhirPath struct {
	Key        string
	Expression string
	Message    string
}

var (
	exprCacheMu sync.RWMutex
	exprCache   = make(map[string]*fhirpath.Expression)
)

func compiledExpression(expr string) (*fhirpath.Expression, error) {
	exprCacheMu.RLock()
	c, ok := exprCache[expr]
	exprCacheMu.RUnlock()
	if ok {
		return c, nil
	}
	c, err := fhirpath.Compile(expr)
	if err != nil {
		return nil, err
	}
	exprCacheMu.Lock()
	exprCache[expr] = c
	exprCacheMu.Unlock()
	return c, nil
}

func (f FhirPath) Check(node fhirjson.Value, path string, root fhirjson.Value) (bool, string) {
	expr, err := compiledExpression(f.Expression)
	if err != nil {
		return true, ""
	}
	data, err := node.Marshal()
	if err != nil {
		return true, ""
	}
	result, err := expr.Evaluate(data)
	if err != nil {
		return true, ""
	}
	if result.Empty() {
		return true, ""
	}
	passed, err := result.ToBoolean()
	if err != nil {
		return true, "" // non-boolean non-empty result: truthy per the teacher's constraintPassed fallback
	}
	if passed {
		return true, ""
	}
	return false, f.Message
}

// AtMostOneOfPrefix fails on an object with more than one own field whose
// name starts with Prefix — the discipline that backs choice-of-type
// ([x]) fields, which the compiler lowers to one optional field per
// candidate type.
type AtMostOneOfPrefix struct {
	Prefix string
}

func (r AtMostOneOfPrefix) Check(node fhirjson.Value, path string, root fhirjson.Value) (bool, string) {
	if node.Kind != fhirjson.KindObject {
		return true, ""
	}
	count := 0
	for k := range node.Object {
		if strings.HasPrefix(k, r.Prefix) {
			count++
		}
	}
	if count > 1 {
		return false, "more than one value present for choice field " + r.Prefix + "[x]"
	}
	return true, ""
}

// NonEmptyObject rejects an object with zero keys, unless the ambient
// position is inside an array (the path's last segment is a numeric
// index) — an empty array element is still structurally present and
// handled by cardinality checks, not this refinement.
type NonEmptyObject struct{}

func (NonEmptyObject) Check(node fhirjson.Value, path string, root fhirjson.Value) (bool, string) {
	if node.Kind != fhirjson.KindObject {
		return true, ""
	}
	if len(node.Object) > 0 {
		return true, ""
	}
	if pathEndsInIndex(path) {
		return true, ""
	}
	return false, "object must not be empty"
}

func pathEndsInIndex(path string) bool {
	if !strings.HasSuffix(path, "]") {
		return false
	}
	idx := strings.LastIndexByte(path, '[')
	return idx >= 0
}

// ExactValue fails if the named field's value differs from Value (by raw
// JSON equality), backing directly-fixed/pattern elements (not under
// slicing).
type ExactValue struct {
	Field string
	Value fhirjson.Value
}

func (r ExactValue) Check(node fhirjson.Value, path string, root fhirjson.Value) (bool, string) {
	if node.Kind != fhirjson.KindObject {
		return true, ""
	}
	actual, ok := node.Object[r.Field]
	if !ok {
		return true, "" // absence is a cardinality concern, not this refinement's
	}
	if jsonEqual(actual, r.Value) {
		return true, ""
	}
	return false, r.Field + " does not match its fixed/pattern value"
}

func jsonEqual(a, b fhirjson.Value) bool {
	am, _ := a.Marshal()
	bm, _ := b.Marshal()
	return string(am) == string(bm)
}

// SlicingRule describes one slice of a sliced array field.
type SlicingRule struct {
	Name           string
	Validator      *Validator
	Min            int
	Discriminators []Discriminator
}

// Discriminator is one slicing.discriminator entry, resolved to a
// directly-checkable path/value pair per spec §4.7.
type Discriminator struct {
	Type string // "value", "pattern", "exists"
	Path string
	// Expected is the expected value at Path for "value"/"pattern"
	// discriminators; unused for "exists".
	Expected fhirjson.Value
}

// Slicing validates an array field against a declared slice set, per spec
// §4.7: each element is matched against slices in declared order by their
// discriminators; unmatched elements are permitted unless Rules is
// "closed".
type Slicing struct {
	Slices []SlicingRule
	Rules  string // "closed" | "open" | "openAtEnd"
}

func (r Slicing) Check(node fhirjson.Value, path string, root fhirjson.Value) (bool, string) {
	if node.Kind != fhirjson.KindArray {
		return true, ""
	}

	matchedCounts := make(map[string]int, len(r.Slices))
	for _, elem := range node.Array {
		matched := false
		for _, slice := range r.Slices {
			if matchesDiscriminators(elem, slice.Discriminators) {
				matchedCounts[slice.Name]++
				matched = true
				break
			}
		}
		if !matched && r.Rules == "closed" {
			return false, "element does not match any declared slice and slicing rules are closed"
		}
	}

	for _, slice := range r.Slices {
		if slice.Min > 0 && matchedCounts[slice.Name] < slice.Min {
			return false, slice.Name + " requires at least one matching element"
		}
	}
	return true, ""
}

func matchesDiscriminators(elem fhirjson.Value, discs []Discriminator) bool {
	if len(discs) == 0 {
		return false
	}
	for _, d := range discs {
		if !discriminatorMatches(elem, d) {
			return false
		}
	}
	return true
}

func discriminatorMatches(elem fhirjson.Value, d Discriminator) bool {
	value, present := valueAtDottedPath(elem, d.Path)
	switch d.Type {
	case "exists":
		return present
	case "value", "pattern":
		if !present {
			return false
		}
		return jsonEqual(value, d.Expected)
	default:
		return false // "type"/"profile" discriminators are not supported (spec §4.7)
	}
}

func valueAtDottedPath(v fhirjson.Value, path string) (fhirjson.Value, bool) {
	if path == "" {
		return v, true
	}
	cur := v
	for _, seg := range strings.Split(path, ".") {
		if cur.Kind != fhirjson.KindObject {
			return fhirjson.Value{}, false
		}
		next, ok := cur.Object[seg]
		if !ok {
			return fhirjson.Value{}, false
		}
		cur = next
	}
	return cur, true
}

// Filter implements one ValueSet compose.include.filter operator against a
// code/property value, per the table in spec §4.6. When hierarchy is nil
// (the CodeSystem's concept tree could not be resolved), is-a/descendent-
// of/generalizes degrade to their conservative single-value form so a
// CodeSystem with content=not-present never produces spurious failures.
type Filter struct {
	Op           string
	Value        string
	Property     string // "", "code", or "concept" means the code itself; otherwise a concept.property code
	CodeSystemURL string
	Hierarchy    FilterHierarchy
}

// FilterHierarchy is the minimal surface Filter needs from the Concept
// Hierarchy Engine, kept as an interface here so schema does not import
// hierarchy (avoiding a package cycle; hierarchy does not need schema).
type FilterHierarchy interface {
	Descendants(code string) []string
	Ancestors(code string) []string
}

func (f Filter) Check(node fhirjson.Value, path string, root fhirjson.Value) (bool, string) {
	actual, ok := propertyValue(node, f.Property)
	if !ok {
		return false, "code has no value for filtered property"
	}

	switch f.Op {
	case "=":
		return actual == f.Value, "code does not equal filter value"
	case "regex":
		re, err := regexp.Compile(f.Value)
		if err != nil {
			return true, ""
		}
		return re.MatchString(actual), "code does not match filter regex"
	case "in":
		return containsCSV(f.Value, actual), "code not in filter value set"
	case "not-in":
		return !containsCSV(f.Value, actual), "code excluded by filter value set"
	case "is-a":
		if actual == f.Value {
			return true, ""
		}
		if f.Hierarchy == nil {
			return false, "code is not the filtered value (no hierarchy available)"
		}
		return containsString(f.Hierarchy.Descendants(f.Value), actual), "code is not the filtered value or one of its descendants"
	case "is-not-a":
		ok, _ := (Filter{Op: "is-a", Value: f.Value, Property: f.Property, Hierarchy: f.Hierarchy}).Check(node, path, root)
		return !ok, "code is the filtered value or one of its descendants"
	case "descendent-of":
		if f.Hierarchy == nil {
			return actual != f.Value, "code equals the filtered value"
		}
		return containsString(f.Hierarchy.Descendants(f.Value), actual), "code is not a strict descendant of the filtered value"
	case "generalizes":
		if actual == f.Value {
			return true, ""
		}
		if f.Hierarchy == nil {
			return false, "code is not the filtered value (no hierarchy available)"
		}
		return containsString(f.Hierarchy.Ancestors(f.Value), actual), "code does not generalize the filtered value"
	default:
		return true, "" // unsupported operator: permissive (spec §4.5)
	}
}

func propertyValue(node fhirjson.Value, property string) (string, bool) {
	if property == "" || property == "code" || property == "concept" {
		if node.Kind == fhirjson.KindString {
			return node.Str, true
		}
		return "", false
	}
	if node.Kind != fhirjson.KindObject {
		return "", false
	}
	v, ok := node.Object[property]
	if !ok || v.Kind != fhirjson.KindString {
		return "", false
	}
	return v.Str, true
}

func containsCSV(csv, value string) bool {
	for _, part := range strings.Split(csv, ",") {
		if strings.TrimSpace(part) == value {
			return true
		}
	}
	return false
}

func containsString(set []string, value string) bool {
	for _, s := range set {
		if s == value {
			return true
		}
	}
	return false
}

// CatalogCheck wraps an external validity check — the catalog's escape
// hatch for systems whose membership test can't be expressed as FHIRPath or
// a structural comparison (e.g. UCUM unit syntax, IANA timezone names).
// Adding a refinement kind backed by an arbitrary Go function is the single-
// file extension the closed catalog is designed to absorb.
type CatalogCheck struct {
	Name string
	Fn   func(code string) (ok bool, message string)
}

func (r CatalogCheck) Check(node fhirjson.Value, path string, root fhirjson.Value) (bool, string) {
	if node.Kind != fhirjson.KindString {
		return true, ""
	}
	if r.Fn == nil {
		return true, ""
	}
	ok, msg := r.Fn(node.Str)
	if ok {
		return true, ""
	}
	if msg == "" {
		msg = r.Name + ": invalid code"
	}
	return false, msg
}
