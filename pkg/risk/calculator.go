// Package risk implements the 10-year disease risk pipeline: percentile
// resolution, feature standardization and Cox proportional-hazards
// evaluation over precomputed reference artifacts.
package risk

import (
	"math"
	"strconv"

	"github.com/panelbio/riskserver/pkg/refdata"
)

// DefaultHorizonYears is the prediction horizon of the reference models.
const DefaultHorizonYears = 10

// Calculator evaluates risks against an immutable reference store. It holds
// no mutable state and is safe for concurrent use.
type Calculator struct {
	store   *refdata.Store
	horizon float64
	warnf   func(format string, args ...interface{})
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithHorizon overrides the prediction horizon in years.
func WithHorizon(years float64) Option {
	return func(c *Calculator) {
		if years > 0 {
			c.horizon = years
		}
	}
}

// WithWarnf sets the sink for policy-default warnings (e.g. baseline
// survival falling back to 1.0).
func WithWarnf(warnf func(format string, args ...interface{})) Option {
	return func(c *Calculator) {
		if warnf != nil {
			c.warnf = warnf
		}
	}
}

func NewCalculator(store *refdata.Store, opts ...Option) *Calculator {
	c := &Calculator{
		store:   store,
		horizon: DefaultHorizonYears,
		warnf:   func(string, ...interface{}) {},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ResolvePercentile maps a (disease, score, percentile rank) triple to the
// absolute score value. An absent (disease, score) table and an absent rank
// key produce distinguishable LookupErrors; the caller must abort the whole
// calculation, never substitute a default.
func (c *Calculator) ResolvePercentile(disease, score string, rank int) (float64, error) {
	scores, ok := c.store.Percentiles[disease]
	if !ok {
		return 0, &LookupError{Disease: disease, Score: score}
	}
	ranks, ok := scores[score]
	if !ok {
		return 0, &LookupError{Disease: disease, Score: score}
	}
	value, ok := ranks[rank]
	if !ok {
		return 0, &LookupError{Disease: disease, Score: score, Rank: strconv.Itoa(rank)}
	}
	return value, nil
}

// Standardize z-score-normalizes a raw continuous value using the feature's
// scaler parameters.
func (c *Calculator) Standardize(feature string, raw float64) (float64, error) {
	params, ok := c.store.Scalers[feature]
	if !ok {
		return 0, &ConfigError{Feature: feature}
	}
	if params.Variance == 0 {
		return 0, &DegenerateScaleError{Feature: feature}
	}
	return (raw - params.Mean) / math.Sqrt(params.Variance), nil
}

// LinearPredictor sums coefficient * value over all coefficient rows for the
// disease. Rows whose per-disease entry is invalid (non-numeric in the
// source) are skipped, as are rows with no supplied value. A corrupt
// coefficient yields a non-finite sum which propagates as-is.
func (c *Calculator) LinearPredictor(disease string, values map[string]float64) float64 {
	var sum float64
	for _, row := range c.store.Coefficients.Rows {
		coeff, ok := row.ByDisease[disease]
		if !ok || !coeff.Valid {
			continue
		}
		value, ok := values[row.Feature]
		if !ok {
			continue
		}
		sum += coeff.Value * value
	}
	return sum
}

// BaselineSurvival selects, from the disease's survival curve, the point
// with the greatest time not exceeding the horizon. When no such point
// exists the baseline defaults to 1.0; that is a policy default, not an
// error, and is reported through the warn sink.
func (c *Calculator) BaselineSurvival(disease string) float64 {
	curve := c.store.Baselines[disease]
	best := -1
	for i, point := range curve {
		if point.Time > c.horizon {
			continue
		}
		if best < 0 || point.Time > curve[best].Time {
			best = i
		}
	}
	if best < 0 {
		c.warnf("no baseline survival point at or before %.1f years for %s, defaulting to 1.0", c.horizon, disease)
		return 1.0
	}
	return curve[best].Survival
}

// Evaluate computes the risk probability for one disease from an assembled
// feature vector (standardized continuous values plus raw binary/one-hot
// values). The result is 1 - s0^exp(lp); non-finite intermediates are not
// coerced.
func (c *Calculator) Evaluate(disease string, values map[string]float64) float64 {
	lp := c.LinearPredictor(disease, values)
	s0 := c.BaselineSurvival(disease)
	hazardRatio := math.Exp(lp)
	predictedSurvival := math.Pow(s0, hazardRatio)
	return 1 - predictedSurvival
}

// FormatRisk renders a probability as the user-facing percentage string with
// one decimal place.
func FormatRisk(probability float64) string {
	return strconv.FormatFloat(probability*100, 'f', 1, 64) + "%"
}
