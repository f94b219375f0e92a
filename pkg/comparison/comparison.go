// Package comparison implements the model-combination engine behind the
// performance comparison view: enumerating predictor subsets, canonicalizing
// composite model names and filtering concordance benchmarks for display.
package comparison

import (
	"sort"
	"strings"

	"github.com/panelbio/riskserver/pkg/refdata"
)

// BaseModel is the required clinical base every composite builds on.
const BaseModel = "Clin"

// addonPriority fixes the ordering of add-on components within a canonical
// composite name, regardless of input order.
var addonPriority = []string{"PRS", "MetScore", "ProScore"}

// longFormNames maps the long-form labels used in the concordance table to
// the fixed abbreviations.
var longFormNames = map[string]string{
	"clinical":             BaseModel,
	"genetic risk score":   "PRS",
	"polygenic risk score": "PRS",
	"metabolomic score":    "MetScore",
	"proteomic score":      "ProScore",
}

func addonRank(component string) int {
	for i, addon := range addonPriority {
		if addon == component {
			return i
		}
	}
	return -1
}

// Canonicalize reorders a composite name's add-on components into the fixed
// priority order and rejoins them, so two differently-ordered labels for the
// same model compare equal. Non-add-on components (the base) keep their
// relative order and stay in front. Canonicalize is idempotent.
func Canonicalize(name string) string {
	components := splitComposite(name)
	var head, addons []string
	for _, component := range components {
		if addonRank(component) >= 0 {
			addons = append(addons, component)
		} else {
			head = append(head, component)
		}
	}
	sort.SliceStable(addons, func(i, j int) bool {
		return addonRank(addons[i]) < addonRank(addons[j])
	})
	return strings.Join(append(head, addons...), "+")
}

// MapName shortens long-form component labels to their abbreviations and
// canonicalizes the result. Unrecognized components pass through unchanged.
func MapName(raw string) string {
	components := splitComposite(raw)
	mapped := make([]string, 0, len(components))
	for _, component := range components {
		if short, ok := longFormNames[strings.ToLower(component)]; ok {
			component = short
		}
		mapped = append(mapped, component)
	}
	return Canonicalize(strings.Join(mapped, "+"))
}

func splitComposite(name string) []string {
	parts := strings.Split(name, "+")
	components := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			components = append(components, part)
		}
	}
	return components
}

// Enumerate yields the canonical names of every subset of the add-ons
// combined with the base, including the base alone: 2^n distinct names for n
// distinct add-ons. Subsets are generated by explicit recursion over the
// small fixed set. The result is sorted by add-on count, then
// lexicographically.
func Enumerate(base string, addons []string) []string {
	distinct := make([]string, 0, len(addons))
	seen := make(map[string]bool, len(addons))
	for _, addon := range addons {
		if !seen[addon] {
			seen[addon] = true
			distinct = append(distinct, addon)
		}
	}

	var names []string
	var walk func(i int, chosen []string)
	walk = func(i int, chosen []string) {
		if i == len(distinct) {
			name := base
			if len(chosen) > 0 {
				name += "+" + strings.Join(chosen, "+")
			}
			names = append(names, Canonicalize(name))
			return
		}
		walk(i+1, chosen)
		walk(i+1, append(chosen, distinct[i]))
	}
	walk(0, nil)

	SortModels(names)
	return names
}

// SortModels orders composite names by number of add-on components
// ascending, then lexicographically. This is the display/plot ordering.
func SortModels(names []string) {
	sort.Slice(names, func(i, j int) bool {
		ci, cj := componentCount(names[i]), componentCount(names[j])
		if ci != cj {
			return ci < cj
		}
		return names[i] < names[j]
	})
}

func componentCount(name string) int {
	count := 0
	for _, component := range splitComposite(name) {
		if addonRank(component) >= 0 {
			count++
		}
	}
	return count
}

// Record is one concordance benchmark selected for display.
type Record struct {
	Model     string
	Canonical string
	Disease   string
	Estimate  float64
	CILower   float64
	CIUpper   float64
}

// Filter maps concordance rows through the renaming scheme, canonicalizes
// them and keeps only rows whose canonical name is in the required set and
// whose outcome is among the selected diseases. The result is sorted by the
// canonical disease sequence, then by add-on count, then lexicographically.
func Filter(records []refdata.ConcordanceRecord, required []string, diseases []string) []Record {
	requiredSet := make(map[string]bool, len(required))
	for _, name := range required {
		requiredSet[Canonicalize(name)] = true
	}
	diseaseSet := make(map[string]bool, len(diseases))
	for _, disease := range diseases {
		diseaseSet[disease] = true
	}

	var kept []Record
	for _, record := range records {
		canonical := MapName(record.Model)
		if !requiredSet[canonical] || !diseaseSet[record.Outcome] {
			continue
		}
		kept = append(kept, Record{
			Model:     record.Model,
			Canonical: canonical,
			Disease:   record.Outcome,
			Estimate:  record.Estimate,
			CILower:   record.CILower,
			CIUpper:   record.CIUpper,
		})
	}

	sort.Slice(kept, func(i, j int) bool {
		di, dj := refdata.DiseaseIndex(kept[i].Disease), refdata.DiseaseIndex(kept[j].Disease)
		if di != dj {
			return di < dj
		}
		ci, cj := componentCount(kept[i].Canonical), componentCount(kept[j].Canonical)
		if ci != cj {
			return ci < cj
		}
		return kept[i].Canonical < kept[j].Canonical
	})
	return kept
}
