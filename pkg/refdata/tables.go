// Package refdata holds the precomputed model artifacts the risk service
// evaluates at runtime: Cox coefficients, baseline survival curves, scaler
// parameters, percentile tables and concordance benchmarks. All tables are
// loaded once at startup and are read-only thereafter.
package refdata

// Diseases is the canonical outcome sequence. Display/plot ordering follows
// this slice, never alphabetical or input order.
var Diseases = []string{"cvd", "t2d", "ckd", "copd", "liver", "dementia"}

// DiseaseIndex returns the position of a disease code in the canonical
// sequence, or len(Diseases) for unknown codes so they sort last.
func DiseaseIndex(disease string) int {
	for i, d := range Diseases {
		if d == disease {
			return i
		}
	}
	return len(Diseases)
}

// KnownDisease reports whether the code is one of the supported outcomes.
func KnownDisease(disease string) bool {
	return DiseaseIndex(disease) < len(Diseases)
}

// Coefficient is one per-disease entry of a coefficient row. Valid is false
// when the source cell was non-numeric, meaning the feature is not used for
// that disease; such entries must be skipped, never treated as zero.
type Coefficient struct {
	Value float64
	Valid bool
}

// CoefficientRow holds one feature's coefficients across diseases. There is
// exactly one row per feature.
type CoefficientRow struct {
	Feature   string
	ByDisease map[string]Coefficient
}

type CoefficientTable struct {
	Rows []CoefficientRow
}

// CurvePoint is one (time, survival probability) point of a baseline
// survival curve. Curves are kept in file order; survival is assumed
// non-increasing in time but not enforced.
type CurvePoint struct {
	Time     float64
	Survival float64
}

type BaselineCurve []CurvePoint

// ScalerParams are the per-feature standardization parameters. A zero
// variance is a fatal configuration error for that feature, detected at use
// time rather than at load.
type ScalerParams struct {
	Mean     float64
	Variance float64
}

// ConcordanceRecord is one c-index benchmark row, already filtered to the
// c_index metric at load.
type ConcordanceRecord struct {
	Outcome  string
	Model    string
	Estimate float64
	CILower  float64
	CIUpper  float64
}

// PercentileTable maps disease -> score name -> percentile rank -> absolute
// score value. Built once from the raw rows for O(1) resolution.
type PercentileTable map[string]map[string]map[int]float64

// Store aggregates all reference tables. It is constructed by Load and
// passed explicitly into every pipeline call; there is no ambient global
// reference state.
type Store struct {
	Coefficients CoefficientTable
	Baselines    map[string]BaselineCurve
	Scalers      map[string]ScalerParams
	Percentiles  PercentileTable
	Concordance  []ConcordanceRecord
}
