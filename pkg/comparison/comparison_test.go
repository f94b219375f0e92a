package comparison

import (
	"reflect"
	"testing"

	"github.com/panelbio/riskserver/pkg/refdata"
)

func TestCanonicalizeOrderInvariant(t *testing.T) {
	a := Canonicalize("Clin+ProScore+PRS")
	b := Canonicalize("Clin+PRS+ProScore")
	if a != b {
		t.Fatalf("expected equal canonical names, got %q and %q", a, b)
	}
	if a != "Clin+PRS+ProScore" {
		t.Fatalf("unexpected canonical name %q", a)
	}
}

func TestCanonicalizeIdempotent(t *testing.T) {
	names := []string{
		"Clin",
		"Clin+MetScore",
		"Clin+ProScore+MetScore+PRS",
		"Clin + ProScore + PRS",
	}
	for _, name := range names {
		once := Canonicalize(name)
		if twice := Canonicalize(once); twice != once {
			t.Fatalf("canonicalize not idempotent for %q: %q != %q", name, once, twice)
		}
	}
}

func TestMapNameShortensLongFormLabels(t *testing.T) {
	got := MapName("Clinical+Proteomic score+Genetic risk score")
	if got != "Clin+PRS+ProScore" {
		t.Fatalf("expected Clin+PRS+ProScore, got %q", got)
	}
}

func TestEnumeratePowerSet(t *testing.T) {
	names := Enumerate(BaseModel, []string{"PRS", "MetScore", "ProScore"})
	if len(names) != 8 {
		t.Fatalf("expected 8 model names, got %d: %v", len(names), names)
	}
	if names[0] != BaseModel {
		t.Fatalf("expected base model first, got %q", names[0])
	}

	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			t.Fatalf("duplicate name %q", name)
		}
		seen[name] = true
	}
	if !seen["Clin+PRS+MetScore+ProScore"] {
		t.Fatalf("missing full combination in %v", names)
	}
}

func TestEnumerateSortsByAddonCountThenName(t *testing.T) {
	names := Enumerate(BaseModel, []string{"ProScore", "PRS"})
	want := []string{"Clin", "Clin+PRS", "Clin+ProScore", "Clin+PRS+ProScore"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
}

func TestEnumerateDeduplicatesAddons(t *testing.T) {
	names := Enumerate(BaseModel, []string{"PRS", "PRS"})
	if len(names) != 2 {
		t.Fatalf("expected 2 names for one distinct add-on, got %v", names)
	}
}

func TestFilterKeepsRequiredModelsAndDiseases(t *testing.T) {
	records := []refdata.ConcordanceRecord{
		{Outcome: "t2d", Model: "Clinical+Proteomic score", Estimate: 0.80, CILower: 0.79, CIUpper: 0.81},
		{Outcome: "cvd", Model: "Clinical", Estimate: 0.71, CILower: 0.70, CIUpper: 0.72},
		{Outcome: "cvd", Model: "Clinical+Metabolomic score", Estimate: 0.73, CILower: 0.72, CIUpper: 0.74},
		{Outcome: "dementia", Model: "Clinical", Estimate: 0.75, CILower: 0.74, CIUpper: 0.76},
	}

	required := Enumerate(BaseModel, []string{"ProScore"})
	kept := Filter(records, required, []string{"t2d", "cvd"})

	if len(kept) != 2 {
		t.Fatalf("expected 2 records, got %d: %v", len(kept), kept)
	}
	// cvd precedes t2d in the canonical disease sequence.
	if kept[0].Disease != "cvd" || kept[0].Canonical != "Clin" {
		t.Fatalf("unexpected first record: %+v", kept[0])
	}
	if kept[1].Disease != "t2d" || kept[1].Canonical != "Clin+ProScore" {
		t.Fatalf("unexpected second record: %+v", kept[1])
	}
}

func TestFilterSortsModelsWithinDisease(t *testing.T) {
	records := []refdata.ConcordanceRecord{
		{Outcome: "cvd", Model: "Clinical+Proteomic score+Genetic risk score", Estimate: 0.76},
		{Outcome: "cvd", Model: "Clinical", Estimate: 0.71},
		{Outcome: "cvd", Model: "Clinical+Genetic risk score", Estimate: 0.73},
	}

	required := Enumerate(BaseModel, []string{"PRS", "ProScore"})
	kept := Filter(records, required, []string{"cvd"})

	want := []string{"Clin", "Clin+PRS", "Clin+PRS+ProScore"}
	if len(kept) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(kept))
	}
	for i, record := range kept {
		if record.Canonical != want[i] {
			t.Fatalf("expected %q at %d, got %q", want[i], i, record.Canonical)
		}
	}
}
