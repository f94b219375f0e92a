package refdata

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/panelbio/riskserver/pkg/common/logger"
)

// Reference table file names within the data directory.
const (
	coefficientsFile = "coefficients.csv"
	baselinesFile    = "baseline_survivals.csv"
	scalersFile      = "PANEL_scaler_params.csv"
	percentilesFile  = "percentiles.csv"
	concordanceFile  = "cindex_final.csv"
)

// LoadError marks a reference table that failed to read or parse. Any
// LoadError at startup is unrecoverable: the calculation feature must stay
// disabled process-wide, with no retry and no partial initialization.
type LoadError struct {
	Table string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load reference table %s: %v", e.Table, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Load reads all five reference tables from dir. All tables must load; the
// first failure aborts with a LoadError naming the table.
func Load(dir string) (*Store, error) {
	store := &Store{}

	coeffs, err := loadCoefficients(filepath.Join(dir, coefficientsFile))
	if err != nil {
		return nil, &LoadError{Table: coefficientsFile, Err: err}
	}
	store.Coefficients = coeffs

	baselines, err := loadBaselines(filepath.Join(dir, baselinesFile))
	if err != nil {
		return nil, &LoadError{Table: baselinesFile, Err: err}
	}
	store.Baselines = baselines

	scalers, err := loadScalers(filepath.Join(dir, scalersFile))
	if err != nil {
		return nil, &LoadError{Table: scalersFile, Err: err}
	}
	store.Scalers = scalers

	percentiles, err := loadPercentiles(filepath.Join(dir, percentilesFile))
	if err != nil {
		return nil, &LoadError{Table: percentilesFile, Err: err}
	}
	store.Percentiles = percentiles

	concordance, err := loadConcordance(filepath.Join(dir, concordanceFile))
	if err != nil {
		return nil, &LoadError{Table: concordanceFile, Err: err}
	}
	store.Concordance = concordance

	logger.Log.WithFields(map[string]interface{}{
		"coefficients": len(store.Coefficients.Rows),
		"baselines":    len(store.Baselines),
		"scalers":      len(store.Scalers),
		"concordance":  len(store.Concordance),
	}).Info("Reference data loaded")

	return store, nil
}

func readTable(path string) ([][]string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("table has no data rows")
	}
	return rows, nil
}

// columnIndex maps header names to their positions and verifies the required
// columns are present.
func columnIndex(header []string, required ...string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}
	for _, name := range required {
		if _, ok := idx[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}
	return idx, nil
}

// loadCoefficients parses the coefficient matrix: first column is the
// feature name, remaining columns are disease codes. Non-numeric cells mean
// the feature is unused for that disease and are stored as invalid entries.
func loadCoefficients(path string) (CoefficientTable, error) {
	rows, err := readTable(path)
	if err != nil {
		return CoefficientTable{}, err
	}

	header := rows[0]
	if len(header) < 2 {
		return CoefficientTable{}, fmt.Errorf("expected feature column plus disease columns, got %d columns", len(header))
	}
	diseases := make([]string, 0, len(header)-1)
	for _, d := range header[1:] {
		diseases = append(diseases, strings.TrimSpace(d))
	}

	table := CoefficientTable{Rows: make([]CoefficientRow, 0, len(rows)-1)}
	seen := make(map[string]bool, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) != len(header) {
			return CoefficientTable{}, fmt.Errorf("row %d has %d columns, want %d", i+2, len(row), len(header))
		}
		feature := strings.TrimSpace(row[0])
		if feature == "" {
			return CoefficientTable{}, fmt.Errorf("row %d has an empty feature name", i+2)
		}
		if seen[feature] {
			return CoefficientTable{}, fmt.Errorf("duplicate coefficient row for feature %q", feature)
		}
		seen[feature] = true

		byDisease := make(map[string]Coefficient, len(diseases))
		for j, disease := range diseases {
			value, err := strconv.ParseFloat(strings.TrimSpace(row[j+1]), 64)
			if err != nil {
				// Non-numeric sentinel: feature unused for this disease.
				byDisease[disease] = Coefficient{}
				continue
			}
			byDisease[disease] = Coefficient{Value: value, Valid: true}
		}
		table.Rows = append(table.Rows, CoefficientRow{Feature: feature, ByDisease: byDisease})
	}
	return table, nil
}

// loadBaselines parses the baseline survival curves: a Time column plus one
// column per disease code.
func loadBaselines(path string) (map[string]BaselineCurve, error) {
	rows, err := readTable(path)
	if err != nil {
		return nil, err
	}

	header := rows[0]
	idx, err := columnIndex(header, "Time")
	if err != nil {
		return nil, err
	}
	timeCol := idx["Time"]

	curves := make(map[string]BaselineCurve, len(header)-1)
	for i, row := range rows[1:] {
		if len(row) != len(header) {
			return nil, fmt.Errorf("row %d has %d columns, want %d", i+2, len(row), len(header))
		}
		t, err := strconv.ParseFloat(strings.TrimSpace(row[timeCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid time %q", i+2, row[timeCol])
		}
		for j, name := range header {
			if j == timeCol {
				continue
			}
			disease := strings.TrimSpace(name)
			survival, err := strconv.ParseFloat(strings.TrimSpace(row[j]), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: invalid survival %q for %s", i+2, row[j], disease)
			}
			curves[disease] = append(curves[disease], CurvePoint{Time: t, Survival: survival})
		}
	}
	return curves, nil
}

func loadScalers(path string) (map[string]ScalerParams, error) {
	rows, err := readTable(path)
	if err != nil {
		return nil, err
	}

	idx, err := columnIndex(rows[0], "feature", "mean", "variance")
	if err != nil {
		return nil, err
	}

	scalers := make(map[string]ScalerParams, len(rows)-1)
	for i, row := range rows[1:] {
		feature := strings.TrimSpace(row[idx["feature"]])
		mean, err := strconv.ParseFloat(strings.TrimSpace(row[idx["mean"]]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid mean for %s", i+2, feature)
		}
		variance, err := strconv.ParseFloat(strings.TrimSpace(row[idx["variance"]]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid variance for %s", i+2, feature)
		}
		scalers[feature] = ScalerParams{Mean: mean, Variance: variance}
	}
	return scalers, nil
}

// loadPercentiles builds the nested disease -> score -> rank lookup from the
// raw rows. Percentile columns are named p<rank>, e.g. p50.
func loadPercentiles(path string) (PercentileTable, error) {
	rows, err := readTable(path)
	if err != nil {
		return nil, err
	}

	header := rows[0]
	idx, err := columnIndex(header, "outcome", "score")
	if err != nil {
		return nil, err
	}

	type rankCol struct {
		rank int
		col  int
	}
	var rankCols []rankCol
	for j, name := range header {
		name = strings.TrimSpace(name)
		if !strings.HasPrefix(name, "p") {
			continue
		}
		rank, err := strconv.Atoi(name[1:])
		if err != nil {
			continue
		}
		rankCols = append(rankCols, rankCol{rank: rank, col: j})
	}
	if len(rankCols) == 0 {
		return nil, fmt.Errorf("no percentile columns found")
	}

	table := make(PercentileTable)
	for i, row := range rows[1:] {
		if len(row) != len(header) {
			return nil, fmt.Errorf("row %d has %d columns, want %d", i+2, len(row), len(header))
		}
		outcome := strings.TrimSpace(row[idx["outcome"]])
		score := strings.TrimSpace(row[idx["score"]])

		if table[outcome] == nil {
			table[outcome] = make(map[string]map[int]float64)
		}
		ranks := make(map[int]float64, len(rankCols))
		for _, rc := range rankCols {
			value, err := strconv.ParseFloat(strings.TrimSpace(row[rc.col]), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: invalid value for p%d (%s/%s)", i+2, rc.rank, outcome, score)
			}
			ranks[rc.rank] = value
		}
		table[outcome][score] = ranks
	}
	return table, nil
}

// loadConcordance keeps only rows with metric == "c_index".
func loadConcordance(path string) ([]ConcordanceRecord, error) {
	rows, err := readTable(path)
	if err != nil {
		return nil, err
	}

	idx, err := columnIndex(rows[0], "metric", "outcome", "comparison_model", "point_estimate", "ci_lower", "ci_upper")
	if err != nil {
		return nil, err
	}

	var records []ConcordanceRecord
	for i, row := range rows[1:] {
		if strings.TrimSpace(row[idx["metric"]]) != "c_index" {
			continue
		}
		estimate, err := strconv.ParseFloat(strings.TrimSpace(row[idx["point_estimate"]]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid point_estimate", i+2)
		}
		lower, err := strconv.ParseFloat(strings.TrimSpace(row[idx["ci_lower"]]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid ci_lower", i+2)
		}
		upper, err := strconv.ParseFloat(strings.TrimSpace(row[idx["ci_upper"]]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid ci_upper", i+2)
		}
		records = append(records, ConcordanceRecord{
			Outcome:  strings.TrimSpace(row[idx["outcome"]]),
			Model:    strings.TrimSpace(row[idx["comparison_model"]]),
			Estimate: estimate,
			CILower:  lower,
			CIUpper:  upper,
		})
	}
	return records, nil
}
