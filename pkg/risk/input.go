package risk

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/panelbio/riskserver/pkg/common/models"
	"github.com/panelbio/riskserver/pkg/refdata"
)

// Field names the form supplies. The fixed feature set is defined by the
// reference dataset; unknown fields in a request are ignored, missing
// required fields fail validation.

// Field associates a feature name with its user-friendly display name used
// in validation messages.
type Field struct {
	Name    string `json:"name"`
	Display string `json:"display"`
}

// ContinuousFields are the raw biomarker inputs, standardized before entering
// the linear predictor.
var ContinuousFields = []Field{
	{Name: "age", Display: "Age"},
	{Name: "systolic_bp", Display: "Systolic blood pressure"},
	{Name: "diastolic_bp", Display: "Diastolic blood pressure"},
	{Name: "bmi", Display: "Body mass index"},
	{Name: "waist_circumference", Display: "Waist circumference"},
	{Name: "total_cholesterol", Display: "Total cholesterol"},
	{Name: "hdl_cholesterol", Display: "HDL cholesterol"},
	{Name: "ldl_cholesterol", Display: "LDL cholesterol"},
	{Name: "triglycerides", Display: "Triglycerides"},
	{Name: "hba1c", Display: "HbA1c"},
	{Name: "fasting_glucose", Display: "Fasting glucose"},
	{Name: "creatinine", Display: "Creatinine"},
	{Name: "egfr", Display: "eGFR"},
	{Name: "crp", Display: "C-reactive protein"},
	{Name: "albumin", Display: "Albumin"},
	{Name: "ggt", Display: "Gamma-GT"},
	{Name: "lymphocyte_pct", Display: "Lymphocyte percentage"},
}

// ScoreFields are the percentile-based score inputs. The form supplies a
// percentile rank per score; the resolver maps it to an absolute value which
// is then standardized like any other continuous feature.
var ScoreFields = []Field{
	{Name: "prs", Display: "Genetic risk score"},
	{Name: "metscore", Display: "Metabolomic score"},
	{Name: "proscore", Display: "Proteomic score"},
	{Name: "episcore", Display: "Epigenetic age score"},
}

// FlagFields are the binary lifestyle/history inputs, entering the linear
// predictor as raw 0/1 values.
var FlagFields = []Field{
	{Name: "current_smoker", Display: "Current smoker"},
	{Name: "former_smoker", Display: "Former smoker"},
	{Name: "heavy_alcohol", Display: "Heavy alcohol use"},
	{Name: "low_physical_activity", Display: "Low physical activity"},
	{Name: "poor_sleep", Display: "Poor sleep"},
	{Name: "family_history_cvd", Display: "Family history of heart disease"},
	{Name: "family_history_diabetes", Display: "Family history of diabetes"},
	{Name: "family_history_dementia", Display: "Family history of dementia"},
	{Name: "antihypertensives", Display: "Blood pressure medication"},
	{Name: "statins", Display: "Statin use"},
	{Name: "diabetes_diagnosed", Display: "Diagnosed diabetes"},
	{Name: "atrial_fibrillation", Display: "Atrial fibrillation"},
	{Name: "rheumatoid_arthritis", Display: "Rheumatoid arthritis"},
	{Name: "depression", Display: "Depression"},
}

// Ethnicity dummy features, white as the reference level.
var ethnicityFeatures = map[string]string{
	"south_asian": "eth_south_asian",
	"black":       "eth_black",
	"other":       "eth_other",
}

// BuildFeatureVector assembles the per-disease feature vector from raw form
// values: percentile scores are resolved then standardized, continuous
// biomarkers are standardized, and sex/ethnicity/flags enter as raw 0/1
// values. Any failure aborts the whole vector; no partial result is
// returned.
func (c *Calculator) BuildFeatureVector(disease string, req models.AssessmentRequest) (map[string]float64, error) {
	values := make(map[string]float64, len(ContinuousFields)+len(ScoreFields)+len(FlagFields)+4)

	for _, field := range ContinuousFields {
		raw, err := parseNumeric(req.Biomarkers[field.Name], field.Display)
		if err != nil {
			return nil, err
		}
		z, err := c.Standardize(field.Name, raw)
		if err != nil {
			return nil, err
		}
		values[field.Name] = z
	}

	for _, field := range ScoreFields {
		// Percentile ranks are integer-like keys; fractional input must be
		// rejected, not truncated to a nearby rank.
		rank, err := strconv.Atoi(strings.TrimSpace(req.Scores[field.Name]))
		if err != nil {
			return nil, &InputError{Field: field.Display}
		}
		absolute, err := c.ResolvePercentile(disease, field.Name, rank)
		if err != nil {
			return nil, err
		}
		z, err := c.Standardize(field.Name, absolute)
		if err != nil {
			return nil, err
		}
		values[field.Name] = z
	}

	switch strings.ToLower(strings.TrimSpace(req.Sex)) {
	case "male":
		values["sex_male"] = 1
	case "female":
		values["sex_male"] = 0
	default:
		return nil, &InputError{Field: "Sex"}
	}

	ethnicity := strings.ToLower(strings.TrimSpace(req.Ethnicity))
	if ethnicity != "white" {
		feature, ok := ethnicityFeatures[ethnicity]
		if !ok {
			return nil, &InputError{Field: "Ethnicity"}
		}
		values[feature] = 1
	}
	for _, feature := range ethnicityFeatures {
		if _, ok := values[feature]; !ok {
			values[feature] = 0
		}
	}

	for _, field := range FlagFields {
		if req.Flags[field.Name] {
			values[field.Name] = 1
		} else {
			values[field.Name] = 0
		}
	}

	return values, nil
}

// Assess runs the full pipeline for each requested disease. An empty disease
// selection means all supported outcomes, in canonical order. The first
// error aborts the whole assessment.
func (c *Calculator) Assess(req models.AssessmentRequest) ([]models.DiseaseRisk, error) {
	diseases := req.Diseases
	if len(diseases) == 0 {
		diseases = refdata.Diseases
	}

	risks := make([]models.DiseaseRisk, 0, len(diseases))
	for _, disease := range diseases {
		if !refdata.KnownDisease(disease) {
			return nil, fmt.Errorf("unsupported disease outcome %q", disease)
		}
		values, err := c.BuildFeatureVector(disease, req)
		if err != nil {
			return nil, err
		}
		probability := c.Evaluate(disease, values)
		risks = append(risks, models.DiseaseRisk{
			Disease:     disease,
			Probability: models.JSONFloat(probability),
			Percent:     FormatRisk(probability),
		})
	}
	return risks, nil
}

// parseNumeric converts a raw form string to a float, naming the offending
// field on failure.
func parseNumeric(raw, display string) (float64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, &InputError{Field: display}
	}
	return value, nil
}
