// Package catalog supplies the Built-in Catalog: preloaded CompiledValidators
// for well-known external code systems too large and too volatile to ship
// as on-disk definitions (LOINC, UCUM, ICD-10, IANA timezones). Entries are
// injected into the Schema Compiler's resolver before compilation begins,
// so a reference to one of these systems resolves to a real validator
// instead of falling back to Any like any other unresolved dependency.
package catalog

import (
	"time"

	"github.com/google/cql/ucum"

	"github.com/gofhir/fhirschema/schema"
)

// Entry binds one canonical system URL to a pre-built validator.
type Entry struct {
	URL       string
	Validator *schema.Validator
}

// Catalog is a read-only lookup table of Entries, consulted by the facade's
// resolver the same way any compiled StructureDefinition/ValueSet/CodeSystem
// by-URL map is.
type Catalog struct {
	byURL map[string]*schema.Validator
}

// New builds a Catalog from entries; later entries override earlier ones
// with the same URL, so callers layer Default() under their own overrides.
func New(entries ...Entry) *Catalog {
	c := &Catalog{byURL: make(map[string]*schema.Validator, len(entries))}
	for _, e := range entries {
		c.byURL[e.URL] = e.Validator
	}
	return c
}

// Lookup satisfies schema.Resolver, so a Catalog can be composed directly
// into the compiler's resolve chain.
func (c *Catalog) Lookup(urlOrName string) (*schema.Validator, bool) {
	v, ok := c.byURL[urlOrName]
	return v, ok
}

// Len reports how many systems this catalog covers.
func (c *Catalog) Len() int { return len(c.byURL) }

// Default returns the catalog's standard entries. LOINC and ICD-10 are
// modeled exactly as spec.md's "out of scope" note describes them: opaque
// pluggable validators that accept any non-empty code string, since
// correctly validating either vocabulary requires a multi-megabyte terminology
// load this system never performs. UCUM is backed by a real syntax and unit
// table check; IANA timezone names are backed by the Go runtime's own
// bundled tz database, which is a stronger source of truth than any static
// list this repo could maintain.
func Default() []Entry {
	return []Entry{
		{URL: "http://loinc.org", Validator: opaqueCode("LOINC")},
		{URL: "http://hl7.org/fhir/sid/icd-10", Validator: opaqueCode("ICD-10")},
		{URL: "http://hl7.org/fhir/sid/icd-10-cm", Validator: opaqueCode("ICD-10-CM")},
		{URL: "http://unitsofmeasure.org", Validator: ucumValidator()},
		{URL: "https://www.iana.org/time-zones", Validator: timezoneValidator()},
		{URL: "urn:iso:std:iso:3166", Validator: countryCodeValidator()},
	}
}

// countryCodeValidator checks membership against the real ISO 3166-1 table
// in iso3166.go, rather than the opaque non-empty check LOINC/ICD-10 get:
// unlike those, the full country code list is small and stable enough to
// ship and check exactly.
func countryCodeValidator() *schema.Validator {
	return schema.RefinedOf(schema.String("", 1, 0), schema.CatalogCheck{
		Name: "iso-3166",
		Fn: func(code string) (bool, string) {
			if _, ok := iso3166[code]; !ok {
				return false, "iso-3166: unrecognized country code " + code
			}
			return true, ""
		},
	})
}

func opaqueCode(name string) *schema.Validator {
	return schema.RefinedOf(schema.String("", 1, 0), schema.CatalogCheck{
		Name: name,
		Fn: func(code string) (bool, string) {
			return code != "", name + ": code must be non-empty"
		},
	})
}

// ucumValidator wraps github.com/google/cql/ucum.CheckUnit, the same
// syntax-plus-unit-table checker the CQL engine uses to validate Quantity
// units; empty units and CQL-only date units are rejected here since a
// FHIR Quantity.code is expected to be a real UCUM unit expression.
func ucumValidator() *schema.Validator {
	return schema.RefinedOf(schema.String("", 0, 0), schema.CatalogCheck{
		Name: "UCUM",
		Fn: func(code string) (bool, string) {
			ok, reason := ucum.CheckUnit(code, false, false)
			return ok, reason
		},
	})
}

// timezoneValidator accepts any IANA Area/Location name time.LoadLocation
// recognizes.
func timezoneValidator() *schema.Validator {
	return schema.RefinedOf(schema.String("", 1, 0), schema.CatalogCheck{
		Name: "timezone",
		Fn: func(code string) (bool, string) {
			if _, err := time.LoadLocation(code); err != nil {
				return false, "timezone: unrecognized IANA name " + code
			}
			return true, ""
		},
	})
}
