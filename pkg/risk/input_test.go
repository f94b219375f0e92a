package risk

import (
	"errors"
	"testing"

	"github.com/panelbio/riskserver/pkg/common/models"
	"github.com/panelbio/riskserver/pkg/refdata"
)

// fullStore covers every form field so complete requests can be assembled.
func fullStore() *refdata.Store {
	scalers := make(map[string]refdata.ScalerParams)
	for _, field := range ContinuousFields {
		scalers[field.Name] = refdata.ScalerParams{Mean: 0, Variance: 1}
	}
	for _, field := range ScoreFields {
		scalers[field.Name] = refdata.ScalerParams{Mean: 0, Variance: 1}
	}

	percentiles := make(refdata.PercentileTable)
	for _, disease := range refdata.Diseases {
		percentiles[disease] = make(map[string]map[int]float64)
		for _, field := range ScoreFields {
			percentiles[disease][field.Name] = map[int]float64{25: -0.67, 50: 0.0, 75: 0.67}
		}
	}

	baselines := make(map[string]refdata.BaselineCurve)
	for _, disease := range refdata.Diseases {
		baselines[disease] = refdata.BaselineCurve{{Time: 10, Survival: 0.95}}
	}

	coefficient := func(v float64) map[string]refdata.Coefficient {
		byDisease := make(map[string]refdata.Coefficient, len(refdata.Diseases))
		for _, disease := range refdata.Diseases {
			byDisease[disease] = refdata.Coefficient{Value: v, Valid: true}
		}
		return byDisease
	}

	return &refdata.Store{
		Coefficients: refdata.CoefficientTable{Rows: []refdata.CoefficientRow{
			{Feature: "age", ByDisease: coefficient(0.5)},
			{Feature: "prs", ByDisease: coefficient(0.2)},
			{Feature: "sex_male", ByDisease: coefficient(0.1)},
			{Feature: "eth_south_asian", ByDisease: coefficient(0.15)},
			{Feature: "current_smoker", ByDisease: coefficient(0.4)},
		}},
		Baselines:   baselines,
		Scalers:     scalers,
		Percentiles: percentiles,
	}
}

func validRequest() models.AssessmentRequest {
	biomarkers := make(map[string]string, len(ContinuousFields))
	for _, field := range ContinuousFields {
		biomarkers[field.Name] = "0"
	}
	scores := make(map[string]string, len(ScoreFields))
	for _, field := range ScoreFields {
		scores[field.Name] = "50"
	}
	return models.AssessmentRequest{
		Biomarkers: biomarkers,
		Scores:     scores,
		Sex:        "female",
		Ethnicity:  "white",
		Flags:      map[string]bool{},
	}
}

func TestBuildFeatureVector(t *testing.T) {
	calc := NewCalculator(fullStore())

	req := validRequest()
	req.Biomarkers["age"] = "2"
	req.Sex = "male"
	req.Ethnicity = "south_asian"
	req.Flags["current_smoker"] = true

	values, err := calc.BuildFeatureVector("cvd", req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if values["age"] != 2.0 {
		t.Fatalf("expected standardized age 2.0, got %v", values["age"])
	}
	if values["prs"] != 0.0 {
		t.Fatalf("expected p50 score 0.0, got %v", values["prs"])
	}
	if values["sex_male"] != 1 || values["eth_south_asian"] != 1 || values["eth_black"] != 0 {
		t.Fatalf("unexpected categorical encoding: %v", values)
	}
	if values["current_smoker"] != 1 || values["statins"] != 0 {
		t.Fatalf("unexpected flag encoding: %v", values)
	}
}

func TestBuildFeatureVectorNamesInvalidField(t *testing.T) {
	calc := NewCalculator(fullStore())

	req := validRequest()
	req.Biomarkers["hba1c"] = "abc"

	_, err := calc.BuildFeatureVector("cvd", req)
	var inputErr *InputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("expected InputError, got %T", err)
	}
	if inputErr.Field != "HbA1c" {
		t.Fatalf("expected field HbA1c, got %s", inputErr.Field)
	}
}

func TestBuildFeatureVectorRejectsFractionalRank(t *testing.T) {
	calc := NewCalculator(fullStore())

	req := validRequest()
	req.Scores["prs"] = "50.7"

	_, err := calc.BuildFeatureVector("cvd", req)
	var inputErr *InputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("expected InputError, got %T", err)
	}
	if inputErr.Field != "Genetic risk score" {
		t.Fatalf("expected field Genetic risk score, got %s", inputErr.Field)
	}
}

func TestBuildFeatureVectorRejectsUnknownEthnicity(t *testing.T) {
	calc := NewCalculator(fullStore())

	req := validRequest()
	req.Ethnicity = "martian"

	_, err := calc.BuildFeatureVector("cvd", req)
	var inputErr *InputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("expected InputError, got %T", err)
	}
}

func TestBuildFeatureVectorAbortsOnMissingPercentile(t *testing.T) {
	store := fullStore()
	delete(store.Percentiles["cvd"]["proscore"], 50)
	calc := NewCalculator(store)

	_, err := calc.BuildFeatureVector("cvd", validRequest())
	var lookupErr *LookupError
	if !errors.As(err, &lookupErr) {
		t.Fatalf("expected LookupError, got %T", err)
	}
	if lookupErr.Score != "proscore" {
		t.Fatalf("expected score proscore, got %s", lookupErr.Score)
	}
}

func TestAssessAllDiseases(t *testing.T) {
	calc := NewCalculator(fullStore())

	risks, err := calc.Assess(validRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(risks) != len(refdata.Diseases) {
		t.Fatalf("expected %d risks, got %d", len(refdata.Diseases), len(risks))
	}
	for i, risk := range risks {
		if risk.Disease != refdata.Diseases[i] {
			t.Fatalf("expected canonical disease order, got %v", risks)
		}
		// All-zero vector => lp 0 => risk exactly 1 - baseline.
		if risk.Percent != "5.0%" {
			t.Fatalf("expected 5.0%% for %s, got %s", risk.Disease, risk.Percent)
		}
	}
}

func TestAssessUnknownDisease(t *testing.T) {
	calc := NewCalculator(fullStore())

	req := validRequest()
	req.Diseases = []string{"gout"}

	if _, err := calc.Assess(req); err == nil {
		t.Fatal("expected error for unsupported disease")
	}
}
