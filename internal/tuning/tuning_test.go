package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default tuning: %v", err)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	raw := []byte(`story:
  rumor_below: 0.5
  quest_below: 0.8
backend:
  retry_attempts: 5
`)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tu, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tu.Story.RumorBelow != 0.5 || tu.Story.QuestBelow != 0.8 {
		t.Fatalf("bands: %+v", tu.Story)
	}
	if tu.Backend.RetryAttempts != 5 {
		t.Fatalf("attempts: %d", tu.Backend.RetryAttempts)
	}
	if len(tu.Story.WorldShifts) != 4 {
		t.Fatalf("world shifts should keep defaults: %v", tu.Story.WorldShifts)
	}
}

func TestLoad_RejectsInvertedBands(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	if err := os.WriteFile(path, []byte("story:\n  rumor_below: 0.9\n  quest_below: 0.2\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for inverted bands")
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	tu, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tu.Story.RumorBelow != 0.35 {
		t.Fatalf("expected defaults, got %+v", tu.Story)
	}
}

func TestDigest_ChangesWithBands(t *testing.T) {
	a := Default()
	b := Default()
	if a.Digest() != b.Digest() || len(a.Digest()) != 64 {
		t.Fatalf("digest not stable: %q vs %q", a.Digest(), b.Digest())
	}
	b.Story.RumorBelow = 0.1
	if a.Digest() == b.Digest() {
		t.Fatalf("digest ignored a band change")
	}
}
