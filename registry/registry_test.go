package registry

import (
	"testing"

	"github.com/gofhir/fhirschema/resourcefile"
)

func rf(path, url string, status resourcefile.Status, experimental bool, date string) *resourcefile.ResourceFile {
	return &resourcefile.ResourceFile{
		FilePath:     path,
		ResourceType: resourcefile.KindStructureDefinition,
		URL:          url,
		Status:       status,
		Experimental: experimental,
		Date:         date,
	}
}

func TestRegister_NoCollision(t *testing.T) {
	r := New()
	r.Register(rf("a.json", "http://x/a", resourcefile.StatusActive, false, "2024-01-01"))
	r.Register(rf("b.json", "http://x/b", resourcefile.StatusActive, false, "2024-01-01"))

	if r.Len() != 2 {
		t.Fatalf("Len() = %d; want 2", r.Len())
	}
}

func TestRegister_PrefersActiveOverDraft(t *testing.T) {
	r := New()
	r.Register(rf("draft.json", "http://x/a", resourcefile.StatusDraft, false, "2024-01-01"))
	r.Register(rf("active.json", "http://x/a", resourcefile.StatusActive, false, "2024-01-01"))

	got, ok := r.Get("http://x/a")
	if !ok {
		t.Fatal("expected a registered entry")
	}
	if got.FilePath != "active.json" {
		t.Errorf("kept %q; want active.json", got.FilePath)
	}
	if len(r.Dropped()) != 1 || r.Dropped()[0].FilePath != "draft.json" {
		t.Errorf("Dropped() = %+v", r.Dropped())
	}
}

func TestRegister_PrefersNonExperimental(t *testing.T) {
	r := New()
	r.Register(rf("exp.json", "http://x/a", resourcefile.StatusActive, true, "2024-01-01"))
	r.Register(rf("real.json", "http://x/a", resourcefile.StatusActive, false, "2024-01-01"))

	got, _ := r.Get("http://x/a")
	if got.FilePath != "real.json" {
		t.Errorf("kept %q; want real.json", got.FilePath)
	}
}

func TestRegister_PrefersGreatestDate(t *testing.T) {
	r := New()
	r.Register(rf("old.json", "http://x/a", resourcefile.StatusActive, false, "2023-01-01"))
	r.Register(rf("new.json", "http://x/a", resourcefile.StatusActive, false, "2024-06-01"))

	got, _ := r.Get("http://x/a")
	if got.FilePath != "new.json" {
		t.Errorf("kept %q; want new.json", got.FilePath)
	}
}

func TestRegister_StableTieBreakOnFilePath(t *testing.T) {
	r := New()
	r.Register(rf("zzz.json", "http://x/a", resourcefile.StatusActive, false, ""))
	r.Register(rf("aaa.json", "http://x/a", resourcefile.StatusActive, false, ""))

	got, _ := r.Get("http://x/a")
	if got.FilePath != "aaa.json" {
		t.Errorf("kept %q; want aaa.json (lexicographically smallest)", got.FilePath)
	}
}

func TestRegister_RetiredTolerated_WhenOnlyOption(t *testing.T) {
	r := New()
	r.Register(rf("only.json", "http://x/a", resourcefile.StatusRetired, false, "2024-01-01"))

	if r.Len() != 1 {
		t.Fatalf("Len() = %d; want 1", r.Len())
	}
	got, _ := r.Get("http://x/a")
	if got.FilePath != "only.json" {
		t.Errorf("expected sole retired entry to be kept, got %q", got.FilePath)
	}
}

func TestAll_StableOrder(t *testing.T) {
	r := New()
	r.Register(rf("a.json", "http://x/a", resourcefile.StatusActive, false, "2024-01-01"))
	r.Register(rf("b.json", "http://x/b", resourcefile.StatusActive, false, "2024-01-01"))
	r.Register(rf("c.json", "http://x/c", resourcefile.StatusActive, false, "2024-01-01"))

	all := r.All()
	if len(all) != 3 {
		t.Fatalf("len(All()) = %d; want 3", len(all))
	}
	want := []string{"http://x/a", "http://x/b", "http://x/c"}
	for i, rf := range all {
		if rf.URL != want[i] {
			t.Errorf("All()[%d].URL = %q; want %q", i, rf.URL, want[i])
		}
	}
}
