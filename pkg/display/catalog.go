package display

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog maps internal codes to user-facing labels for the form and chart
// renderers.
type Catalog struct {
	Diseases map[string]string `yaml:"diseases" json:"diseases"`
	Scores   map[string]string `yaml:"scores" json:"scores"`
	Models   map[string]string `yaml:"models" json:"models"`
}

func Load(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultCatalog(), err
	}
	var cat Catalog
	if err := yaml.Unmarshal(content, &cat); err != nil {
		return Catalog{}, err
	}
	if len(cat.Diseases) == 0 {
		return Catalog{}, fmt.Errorf("display catalog has no diseases")
	}
	return cat, nil
}

// Disease returns the display name for a disease code, falling back to the
// code itself.
func (c Catalog) Disease(code string) string {
	if name, ok := c.Diseases[strings.ToLower(code)]; ok {
		return name
	}
	return code
}

func DefaultCatalog() Catalog {
	return Catalog{
		Diseases: map[string]string{
			"cvd":      "Cardiovascular disease",
			"t2d":      "Type 2 diabetes",
			"ckd":      "Chronic kidney disease",
			"copd":     "COPD",
			"liver":    "Chronic liver disease",
			"dementia": "Dementia",
		},
		Scores: map[string]string{
			"prs":      "Genetic risk score",
			"metscore": "Metabolomic score",
			"proscore": "Proteomic score",
			"episcore": "Epigenetic age score",
		},
		Models: map[string]string{
			"Clin":     "Clinical model",
			"PRS":      "Genetic risk score",
			"MetScore": "Metabolomic score",
			"ProScore": "Proteomic score",
		},
	}
}
