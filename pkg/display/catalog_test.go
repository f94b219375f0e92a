package display

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultCatalogCoversAllDiseases(t *testing.T) {
	cat := DefaultCatalog()
	for _, code := range []string{"cvd", "t2d", "ckd", "copd", "liver", "dementia"} {
		if cat.Disease(code) == code {
			t.Fatalf("missing display name for %s", code)
		}
	}
	if cat.Disease("unknown") != "unknown" {
		t.Fatal("expected unknown code to fall back to itself")
	}
}

func TestLoadCatalogFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := "diseases:\n  cvd: Herz-Kreislauf-Erkrankung\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write catalog: %v", err)
	}

	cat, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cat.Disease("cvd") != "Herz-Kreislauf-Erkrankung" {
		t.Fatalf("unexpected display name: %s", cat.Disease("cvd"))
	}
}

func TestLoadRejectsEmptyCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte("scores: {}\n"), 0o600); err != nil {
		t.Fatalf("failed to write catalog: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for catalog without diseases")
	}
}
