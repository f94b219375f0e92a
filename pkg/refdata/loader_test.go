package refdata

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/panelbio/riskserver/pkg/common/logger"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

func writeTestTables(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	tables := map[string]string{
		coefficientsFile: "feature,cvd,t2d\n" +
			"age,0.5,0.3\n" +
			"hba1c,NA,0.8\n" +
			"sex_male,0.1,-0.05\n",
		baselinesFile: "Time,cvd,t2d\n" +
			"0,1.0,1.0\n" +
			"5,0.98,0.99\n" +
			"12,0.90,0.95\n",
		scalersFile: "feature,mean,variance\n" +
			"age,56.5,64.0\n" +
			"hba1c,36.0,0\n",
		percentilesFile: "outcome,score,p25,p50,p75\n" +
			"cvd,prs,-0.67,0.0,0.67\n" +
			"t2d,prs,-0.70,0.01,0.71\n",
		concordanceFile: "metric,outcome,comparison_model,point_estimate,ci_lower,ci_upper\n" +
			"c_index,cvd,Clinical,0.71,0.70,0.72\n" +
			"brier,cvd,Clinical,0.10,0.09,0.11\n" +
			"c_index,t2d,Clinical+Proteomic score,0.80,0.79,0.81\n",
	}
	for name, content := range tables {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	return dir
}

func TestLoadParsesAllTables(t *testing.T) {
	store, err := Load(writeTestTables(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.Coefficients.Rows) != 3 {
		t.Fatalf("expected 3 coefficient rows, got %d", len(store.Coefficients.Rows))
	}
	age := store.Coefficients.Rows[0]
	if age.Feature != "age" || !age.ByDisease["cvd"].Valid || age.ByDisease["cvd"].Value != 0.5 {
		t.Fatalf("unexpected age row: %+v", age)
	}

	if len(store.Baselines["cvd"]) != 3 {
		t.Fatalf("expected 3 curve points for cvd, got %d", len(store.Baselines["cvd"]))
	}
	if store.Baselines["t2d"][1].Survival != 0.99 {
		t.Fatalf("unexpected t2d survival: %v", store.Baselines["t2d"][1])
	}

	if store.Scalers["age"].Mean != 56.5 || store.Scalers["age"].Variance != 64.0 {
		t.Fatalf("unexpected age scaler: %+v", store.Scalers["age"])
	}
	// Zero variance loads fine; it only fails at standardization time.
	if store.Scalers["hba1c"].Variance != 0 {
		t.Fatalf("expected zero variance for hba1c, got %v", store.Scalers["hba1c"].Variance)
	}

	if store.Percentiles["cvd"]["prs"][50] != 0.0 {
		t.Fatalf("unexpected p50 for cvd/prs: %v", store.Percentiles["cvd"]["prs"][50])
	}
	if store.Percentiles["t2d"]["prs"][75] != 0.71 {
		t.Fatalf("unexpected p75 for t2d/prs: %v", store.Percentiles["t2d"]["prs"][75])
	}
}

func TestLoadSkipsNonNumericCoefficients(t *testing.T) {
	store, err := Load(writeTestTables(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	hba1c := store.Coefficients.Rows[1]
	if hba1c.Feature != "hba1c" {
		t.Fatalf("expected hba1c row, got %s", hba1c.Feature)
	}
	if hba1c.ByDisease["cvd"].Valid {
		t.Fatal("expected NA coefficient to be marked invalid")
	}
	if !hba1c.ByDisease["t2d"].Valid || hba1c.ByDisease["t2d"].Value != 0.8 {
		t.Fatalf("unexpected t2d coefficient: %+v", hba1c.ByDisease["t2d"])
	}
}

func TestLoadFiltersConcordanceMetric(t *testing.T) {
	store, err := Load(writeTestTables(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.Concordance) != 2 {
		t.Fatalf("expected 2 c_index rows, got %d", len(store.Concordance))
	}
	for _, record := range store.Concordance {
		if record.Model == "Clinical" && record.Estimate != 0.71 {
			t.Fatalf("unexpected estimate: %v", record.Estimate)
		}
	}
}

func TestLoadFailsWhenTableMissing(t *testing.T) {
	dir := writeTestTables(t)
	if err := os.Remove(filepath.Join(dir, percentilesFile)); err != nil {
		t.Fatalf("failed to remove table: %v", err)
	}

	_, err := Load(dir)
	if err == nil {
		t.Fatal("expected load error")
	}
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected LoadError, got %T", err)
	}
	if loadErr.Table != percentilesFile {
		t.Fatalf("expected failing table %s, got %s", percentilesFile, loadErr.Table)
	}
}

func TestLoadRejectsDuplicateFeatureRows(t *testing.T) {
	dir := writeTestTables(t)
	dup := "feature,cvd,t2d\nage,0.5,0.3\nage,0.6,0.4\n"
	if err := os.WriteFile(filepath.Join(dir, coefficientsFile), []byte(dup), 0o600); err != nil {
		t.Fatalf("failed to write table: %v", err)
	}

	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for duplicate feature row")
	}
}
