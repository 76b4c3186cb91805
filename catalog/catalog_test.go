package catalog

import (
	"testing"

	"github.com/gofhir/fhirschema/fhirjson"
	"github.com/gofhir/fhirschema/schema"
)

func TestDefault_CoversExpectedSystems(t *testing.T) {
	c := New(Default()...)
	for _, url := range []string{
		"http://loinc.org",
		"http://hl7.org/fhir/sid/icd-10",
		"http://hl7.org/fhir/sid/icd-10-cm",
		"http://unitsofmeasure.org",
		"https://www.iana.org/time-zones",
	} {
		if _, ok := c.Lookup(url); !ok {
			t.Errorf("expected catalog entry for %q", url)
		}
	}
	if _, ok := c.Lookup("http://example.org/not-in-catalog"); ok {
		t.Error("unexpected entry for an unregistered system")
	}
}

func TestNew_LaterEntryOverridesEarlier(t *testing.T) {
	c := New(
		Entry{URL: "http://example.org/sys", Validator: schema.Never()},
		Entry{URL: "http://example.org/sys", Validator: schema.Any()},
	)
	v, ok := c.Lookup("http://example.org/sys")
	if !ok || v.Kind != schema.KAny {
		t.Fatalf("expected the later entry (Any) to win, got %+v", v)
	}
}

func TestTimezoneValidator_AcceptsKnownRejectsUnknown(t *testing.T) {
	c := New(Default()...)
	v, _ := c.Lookup("https://www.iana.org/time-zones")

	ok, msg := checkString(v, "America/New_York")
	if !ok {
		t.Errorf("expected America/New_York to be accepted, got message %q", msg)
	}

	ok, _ = checkString(v, "Not/AZone")
	if ok {
		t.Error("expected an unrecognized timezone name to be rejected")
	}
}

func TestUCUMValidator_AcceptsKnownUnit(t *testing.T) {
	c := New(Default()...)
	v, _ := c.Lookup("http://unitsofmeasure.org")

	ok, msg := checkString(v, "mg")
	if !ok {
		t.Errorf("expected \"mg\" to be accepted, got message %q", msg)
	}
}

// checkString runs v's Refined refinement chain against a string node,
// mirroring what schema.accepts does internally but surfacing the message.
func checkString(v *schema.Validator, s string) (bool, string) {
	node := fhirjson.Value{Kind: fhirjson.KindString, Str: s}
	for _, r := range v.Refinements {
		if ok, msg := r.Check(node, "", node); !ok {
			return false, msg
		}
	}
	return true, ""
}
