package schema

import (
	"regexp"
	"sync"

	"github.com/gofhir/fhirschema/fhirjson"
)

var (
	regexCacheMu sync.RWMutex
	regexCache   = map[string]*regexp.Regexp{}
)

func compileRegexCached(pattern string) (*regexp.Regexp, error) {
	regexCacheMu.RLock()
	re, ok := regexCache[pattern]
	regexCacheMu.RUnlock()
	if ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	regexCacheMu.Lock()
	regexCache[pattern] = re
	regexCacheMu.Unlock()
	return re, nil
}

// accepts reports whether v accepts node, with no issue detail collected.
// It exists for refinements like Not that need a yes/no answer about a
// nested validator rather than a full issue list; the Validator Runtime
// (package runtime) performs the equivalent walk when it needs path-
// annotated issues, and intentionally does not share code with this
// function to avoid an import cycle (runtime depends on schema, not the
// other way around).
func accepts(v *Validator, node fhirjson.Value) bool {
	if v == nil {
		return true
	}
	switch v.Kind {
	case KAny:
		return true
	case KNever:
		return false
	case KString:
		if node.Kind != fhirjson.KindString || len(node.Str) < v.MinLen || !matchesRegex(v.RegexPattern, node.Str) {
			return false
		}
		return v.MaxLen <= 0 || len(node.Str) <= v.MaxLen
	case KNumber:
		return node.Kind == fhirjson.KindNumber && withinBounds(v, node.Number)
	case KInteger:
		return node.Kind == fhirjson.KindNumber && node.Number == float64(int64(node.Number)) && withinBounds(v, node.Number)
	case KBoolean:
		return node.Kind == fhirjson.KindBool || (node.Kind == fhirjson.KindString && (node.Str == "true" || node.Str == "false"))
	case KLiteral:
		return node.Kind == fhirjson.KindString && node.Str == v.LiteralValue
	case KEnum:
		if node.Kind != fhirjson.KindString {
			return false
		}
		for _, e := range v.EnumValues {
			if e == node.Str {
				return true
			}
		}
		return false
	case KArray:
		if node.Kind != fhirjson.KindArray {
			return false
		}
		if len(node.Array) < v.MinItems {
			return false
		}
		if v.MaxItems != Unbounded && len(node.Array) > v.MaxItems {
			return false
		}
		for _, item := range node.Array {
			if !accepts(v.Item, item) {
				return false
			}
		}
		return true
	case KOptional:
		if node.IsAbsent() {
			return true
		}
		return accepts(v.Inner, node)
	case KObject:
		if node.Kind != fhirjson.KindObject {
			return false
		}
		for _, f := range v.Fields {
			child, present := node.Object[f.Name]
			if !present {
				child = fhirjson.Value{}
				if !accepts(f.V, child) {
					return false
				}
				continue
			}
			if !accepts(f.V, child) {
				return false
			}
		}
		return true
	case KUnion:
		for _, b := range v.Branches {
			if accepts(b, node) {
				return true
			}
		}
		return false
	case KIntersection:
		for _, b := range v.Branches {
			if !accepts(b, node) {
				return false
			}
		}
		return true
	case KRefined:
		if !accepts(v.Inner, node) {
			return false
		}
		for _, r := range v.Refinements {
			if ok, _ := r.Check(node, "", node); !ok {
				return false
			}
		}
		return true
	default:
		return true
	}
}

func withinBounds(v *Validator, n float64) bool {
	if v.MinValue != nil && n < *v.MinValue {
		return false
	}
	if v.MaxValue != nil && n > *v.MaxValue {
		return false
	}
	return true
}

func matchesRegex(pattern, s string) bool {
	if pattern == "" {
		return true
	}
	re, err := compileRegexCached(pattern)
	if err != nil {
		return true
	}
	return re.MatchString(s)
}
