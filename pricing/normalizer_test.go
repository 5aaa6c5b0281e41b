package pricing

import (
	"errors"
	"math"
	"testing"

	appconfig "insurityflow/config"
	"insurityflow/models"
)

func testConfig() *appconfig.Config {
	return &appconfig.Config{
		Pricing: appconfig.PricingConfig{
			BasePremium:       100.0,
			EWMALambda:        0.6,
			MonthlyCapPct:     0.10,
			QuarterlyCapPct:   0.25,
			CapTolerance:      1e-6,
			BookAverageSource: appconfig.BookAverageSourceBoosting,
		},
		Engine: appconfig.EngineConfig{MaxWorkers: 2},
	}
}

func TestNormalizeComputesRiskIndex(t *testing.T) {
	records := []models.PredictionRecord{
		{CustomerID: "U1", Period: "2024-01", PredictedLoss: 150, BookAverage: 100},
	}

	series, customers, failures, err := NewNormalizer(testConfig()).Normalize(records)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	if len(customers) != 1 || customers[0] != "U1" {
		t.Fatalf("unexpected customers: %v", customers)
	}
	if got := series["U1"][0].RiskIndex; math.Abs(got-1.5) > 1e-12 {
		t.Fatalf("risk index: got %f want 1.5", got)
	}
}

func TestNormalizeSortsByPeriodNotInputOrder(t *testing.T) {
	records := []models.PredictionRecord{
		{CustomerID: "U1", Period: "2024-03", PredictedLoss: 3, BookAverage: 1},
		{CustomerID: "U1", Period: "2024-01", PredictedLoss: 1, BookAverage: 1},
		{CustomerID: "U1", Period: "2024-02", PredictedLoss: 2, BookAverage: 1},
	}

	series, _, _, err := NewNormalizer(testConfig()).Normalize(records)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	chain := series["U1"]
	for i, want := range []string{"2024-01", "2024-02", "2024-03"} {
		if chain[i].Period != want {
			t.Fatalf("position %d: got %s want %s", i, chain[i].Period, want)
		}
	}
}

func TestNormalizeComputesBookAverageWhenAbsent(t *testing.T) {
	// No record carries a book average; the per-period cross-customer
	// mean of the primary predictions takes its place.
	records := []models.PredictionRecord{
		{CustomerID: "U1", Period: "2024-01", PredictedLoss: 100},
		{CustomerID: "U2", Period: "2024-01", PredictedLoss: 300},
	}

	series, _, _, err := NewNormalizer(testConfig()).Normalize(records)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got := series["U1"][0].BookAverage; got != 200 {
		t.Fatalf("book average: got %f want 200", got)
	}
	if got := series["U1"][0].RiskIndex; got != 0.5 {
		t.Fatalf("risk index: got %f want 0.5", got)
	}
	if got := series["U2"][0].RiskIndex; got != 1.5 {
		t.Fatalf("risk index: got %f want 1.5", got)
	}
}

func TestNormalizeBookAverageFromGLMSource(t *testing.T) {
	cfg := testConfig()
	cfg.Pricing.BookAverageSource = appconfig.BookAverageSourceGLM

	records := []models.PredictionRecord{
		{CustomerID: "U1", Period: "2024-01", PredictedLoss: 100, GLMPredictedLoss: 50},
		{CustomerID: "U2", Period: "2024-01", PredictedLoss: 300, GLMPredictedLoss: 150},
	}

	series, _, _, err := NewNormalizer(cfg).Normalize(records)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got := series["U1"][0].BookAverage; got != 100 {
		t.Fatalf("book average: got %f want 100", got)
	}
}

func TestNormalizeZeroBookAverageFails(t *testing.T) {
	records := []models.PredictionRecord{
		{CustomerID: "U1", Period: "2024-01", PredictedLoss: 10, BookAverage: 100},
		{CustomerID: "U2", Period: "2024-02", PredictedLoss: 10, BookAverage: 0},
		{CustomerID: "U3", Period: "2024-02", PredictedLoss: 10, BookAverage: 100},
	}

	// A partially supplied column counts as supplied; the zero entry is
	// an input-data error, not a request to recompute.
	_, _, _, err := NewNormalizer(testConfig()).Normalize(records)
	if err == nil {
		t.Fatalf("expected error for zero book average")
	}
	if !errors.Is(err, ErrZeroBookAverage) {
		t.Fatalf("expected ErrZeroBookAverage, got %v", err)
	}
	var bae *BookAverageError
	if !errors.As(err, &bae) {
		t.Fatalf("expected BookAverageError, got %T", err)
	}
	if bae.Period != "2024-02" {
		t.Fatalf("error names period %s, want 2024-02", bae.Period)
	}
}

func TestNormalizeMalformedPeriodFailsOnlyThatCustomer(t *testing.T) {
	records := []models.PredictionRecord{
		{CustomerID: "U1", Period: "2024-01", PredictedLoss: 10, BookAverage: 100},
		{CustomerID: "U2", Period: "January 2024", PredictedLoss: 10, BookAverage: 100},
	}

	series, customers, failures, err := NewNormalizer(testConfig()).Normalize(records)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(customers) != 1 || customers[0] != "U1" {
		t.Fatalf("expected only U1 to survive, got %v", customers)
	}
	if len(failures) != 1 || failures[0].CustomerID != "U2" {
		t.Fatalf("expected U2 failure, got %v", failures)
	}
	if _, ok := series["U2"]; ok {
		t.Fatalf("failed customer must not appear in series")
	}
}

func TestNormalizeDuplicatePeriodFailsCustomer(t *testing.T) {
	records := []models.PredictionRecord{
		{CustomerID: "U1", Period: "2024-01", PredictedLoss: 10, BookAverage: 100},
		{CustomerID: "U1", Period: "2024-01", PredictedLoss: 20, BookAverage: 100},
	}

	_, customers, failures, err := NewNormalizer(testConfig()).Normalize(records)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(customers) != 0 {
		t.Fatalf("expected no surviving customers, got %v", customers)
	}
	if len(failures) != 1 {
		t.Fatalf("expected one failure, got %v", failures)
	}
}
