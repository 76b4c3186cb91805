package fhirschema

// FHIRVersion identifies the FHIR release a Validator was built for. The
// compiler and runtime are written against R4's information model; R4B/R5
// are accepted as declared versions on loaded packages but are validated
// with the same R4-shaped element model (no per-version schema dialect).
type FHIRVersion string

const (
	R4  FHIRVersion = "4.0.1"
	R4B FHIRVersion = "4.3.0"
	R5  FHIRVersion = "5.0.0"
)

func (v FHIRVersion) String() string { return string(v) }

// CorePackage returns the canonical npm-style package name for a version's
// base resource/type definitions. Nothing in this module calls it;
// PackageLoader takes package directories already resolved by the caller.
func (v FHIRVersion) CorePackage() string {
	switch v {
	case R4B:
		return "hl7.fhir.r4b.core"
	case R5:
		return "hl7.fhir.r5.core"
	default:
		return "hl7.fhir.r4.core"
	}
}
