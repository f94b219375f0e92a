package models

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// JSONFloat is a float64 that survives JSON encoding when non-finite.
// encoding/json rejects NaN/Inf outright; corrupted upstream values must
// instead reach the rendered output as-is, so non-finite values are encoded
// as their quoted string forms ("NaN", "+Inf", "-Inf").
type JSONFloat float64

func (f JSONFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return json.Marshal(strconv.FormatFloat(v, 'g', -1, 64))
	}
	return json.Marshal(v)
}

func (f *JSONFloat) UnmarshalJSON(data []byte) error {
	var v float64
	if err := json.Unmarshal(data, &v); err == nil {
		*f = JSONFloat(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = JSONFloat(v)
	return nil
}

// AssessmentRequest carries the raw form values for one calculation. It is
// built fresh per request from the current UI state and never persisted
// as-is; all string fields are parsed exactly once at the pipeline boundary.
type AssessmentRequest struct {
	// Continuous biomarkers keyed by field name, values as entered ("4.2").
	Biomarkers map[string]string `json:"biomarkers"`
	// Percentile-based scores keyed by score name, values are percentile
	// ranks as entered ("50").
	Scores map[string]string `json:"scores"`
	// "male" or "female".
	Sex string `json:"sex"`
	// One of "white", "south_asian", "black", "other".
	Ethnicity string `json:"ethnicity"`
	// Binary lifestyle/history flags; absent flags default to false.
	Flags map[string]bool `json:"flags"`
	// Disease outcomes to assess; empty means all supported outcomes.
	Diseases []string `json:"diseases,omitempty"`
}

type DiseaseRisk struct {
	Disease     string    `json:"disease"`
	Display     string    `json:"display"`
	Probability JSONFloat `json:"probability"`
	// Percent is the user-facing rendering, one decimal place ("13.1%").
	Percent string `json:"percent"`
}

type AssessmentResponse struct {
	RequestID string        `json:"request_id"`
	Risks     []DiseaseRisk `json:"risks"`
	HorizonYr float64       `json:"horizon_years"`
	Latency   time.Duration `json:"latency"`
}

// ComparisonRequest selects which model variants and outcomes to compare.
type ComparisonRequest struct {
	Base     string   `json:"base,omitempty"`
	Addons   []string `json:"addons"`
	Diseases []string `json:"diseases"`
}

type ComparisonRecord struct {
	Model          string  `json:"model"`
	CanonicalModel string  `json:"canonical_model"`
	Disease        string  `json:"disease"`
	DiseaseDisplay string  `json:"disease_display"`
	Estimate       float64 `json:"point_estimate"`
	CILower        float64 `json:"ci_lower"`
	CIUpper        float64 `json:"ci_upper"`
}

type ComparisonResponse struct {
	Models  []string           `json:"models"`
	Records []ComparisonRecord `json:"records"`
}

// Event Bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

type ErrorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
