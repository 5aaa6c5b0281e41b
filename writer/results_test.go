package writer

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	appconfig "insurityflow/config"
	"insurityflow/models"
)

func testWriter(t *testing.T) *ResultsWriter {
	t.Helper()
	w, err := NewResultsWriter(&appconfig.Config{})
	if err != nil {
		t.Fatalf("new results writer: %v", err)
	}
	return w
}

func sampleResults() []models.PricingResult {
	return []models.PricingResult{
		{
			CustomerID:             "U1",
			Period:                 "2024-01",
			BasePremium:            100.0,
			PredictedLoss:          150.0,
			BookAverage:            100.0,
			RiskIndex:              1.5,
			EWMAIndex:              1.5,
			TelematicsFactorCapped: 1.0,
			FinalPremium:           100.0,
			TopReasons:             []string{},
			IsFirstMonth:           true,
		},
		{
			CustomerID:             "U1",
			Period:                 "2024-02",
			BasePremium:            100.0,
			PredictedLoss:          200.0,
			BookAverage:            100.0,
			RiskIndex:              2.0,
			EWMAIndex:              1.8,
			TelematicsFactorCapped: 1.1,
			FinalPremium:           110.0,
			TopReasons:             []string{"night_pct (+2453.276)"},
			MonthlyCapped:          true,
		},
	}
}

func TestWriteLocal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "pricing_results.json")

	if err := testWriter(t).WriteLocal(sampleResults(), path); err != nil {
		t.Fatalf("write local: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}

	var decoded []map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("output is not a JSON array: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(decoded))
	}
	if decoded[0]["user_id"] != "U1" || decoded[0]["month"] != "2024-01" {
		t.Errorf("first row: %v", decoded[0])
	}
	if decoded[1]["final_premium"] != 110.0 {
		t.Errorf("final premium: %v", decoded[1]["final_premium"])
	}

	// Records without annotations must serialize as [], never null.
	reasons, ok := decoded[0]["top_reasons"].([]interface{})
	if !ok {
		t.Fatalf("top_reasons is %T, want array", decoded[0]["top_reasons"])
	}
	if len(reasons) != 0 {
		t.Errorf("expected empty reason list, got %v", reasons)
	}
}

func TestWriteLocalDeterministic(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.json")
	second := filepath.Join(dir, "b.json")

	w := testWriter(t)
	if err := w.WriteLocal(sampleResults(), first); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.WriteLocal(sampleResults(), second); err != nil {
		t.Fatalf("write: %v", err)
	}

	a, _ := os.ReadFile(first)
	b, _ := os.ReadFile(second)
	if !bytes.Equal(a, b) {
		t.Fatalf("identical results must serialize to identical bytes")
	}
}

func TestUploadDisabledIsNoop(t *testing.T) {
	w := testWriter(t)
	if err := w.Upload(context.Background(), sampleResults(), time.Now()); err != nil {
		t.Fatalf("upload with S3 disabled must be a no-op, got %v", err)
	}
}

func TestGenerateS3KeyPartitionedByRunDate(t *testing.T) {
	w := testWriter(t)
	w.config.Storage.S3.Prefix = "pricing/"

	runAt := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	key := w.generateS3Key(runAt)

	const wantPrefix = "pricing/run_date=2024-03-15/pricing_results_20240315103000_"
	if len(key) <= len(wantPrefix) || key[:len(wantPrefix)] != wantPrefix {
		t.Fatalf("key %q does not start with %q", key, wantPrefix)
	}
	if filepath.Ext(key) != ".parquet" {
		t.Errorf("key %q must end in .parquet", key)
	}
}
