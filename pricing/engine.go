package pricing

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	appconfig "insurityflow/config"
	"insurityflow/logger"
	"insurityflow/models"
)

// Engine runs the five pricing stages over a full prediction table:
// normalize, smooth, enforce caps, calculate premiums, assemble output.
// Customer chains are independent of each other, so smoothing and capping
// fan out across workers; within one chain computation stays strictly
// sequential.
type Engine struct {
	config *appconfig.Config
	log    *logger.Log

	mu      sync.Mutex
	running bool
}

func NewEngine(cfg *appconfig.Config) *Engine {
	return &Engine{
		config: cfg,
		log:    logger.GetLogger(),
	}
}

// Run prices the given prediction table. It returns the assembled results,
// a run summary, and the list of customers whose chains failed. The error
// return is reserved for run-level failures such as a non-positive book
// average; per-customer failures never abort the batch.
func (e *Engine) Run(ctx context.Context, records []models.PredictionRecord, reasons map[models.ReasonKey][]string) ([]models.PricingResult, *models.RunSummary, []*CustomerError, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, nil, nil, fmt.Errorf("pricing engine already running")
	}
	e.running = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	runID := uuid.New().String()
	started := time.Now()

	log := e.log.WithComponent("pricing_engine").WithFields(logger.Fields{"run_id": runID})
	log.WithFields(logger.Fields{"records": len(records)}).Info("starting pricing run")

	if len(records) == 0 {
		return nil, nil, nil, fmt.Errorf("prediction table is empty")
	}

	normalizer := NewNormalizer(e.config)
	series, customers, failures, err := normalizer.Normalize(records)
	if err != nil {
		return nil, nil, nil, err
	}

	e.priceCustomers(ctx, series, customers)

	results := AssembleResults(series, customers, reasons, e.config.Pricing.BasePremium)

	summary := e.summarize(runID, results, customers, failures, started)
	e.reportMetrics(summary)

	logger.LogPerformanceEntry(log, "pricing_engine", "run", time.Since(started), logger.Fields{
		"records":   len(results),
		"customers": len(customers),
	})
	logger.LogDataFlowEntry(log, "prediction_table", "pricing_results", len(results), "pricing_result")
	logger.RecordStageRecords("pricing_engine", len(results), 0)

	return results, summary, failures, nil
}

// priceCustomers fans customer chains out to workers. Each worker owns the
// series it is smoothing and capping; nothing is shared across chains.
func (e *Engine) priceCustomers(ctx context.Context, series map[string][]models.PricingRecord, customers []string) {
	numWorkers := e.config.Engine.MaxWorkers
	if numWorkers < 1 {
		numWorkers = 1
	}
	if numWorkers > len(customers) && len(customers) > 0 {
		numWorkers = len(customers)
	}

	log := e.log.WithComponent("pricing_engine")
	log.WithFields(logger.Fields{"workers": numWorkers, "customers": len(customers)}).Info("starting pricing workers")

	jobs := make(chan string, len(customers))
	for _, customerID := range customers {
		jobs <- customerID
	}
	close(jobs)

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case customerID, ok := <-jobs:
					if !ok {
						return
					}
					chain := series[customerID]
					Smooth(chain, e.config.Pricing.EWMALambda)
					EnforceCaps(chain,
						e.config.Pricing.MonthlyCapPct,
						e.config.Pricing.QuarterlyCapPct,
						e.config.Pricing.CapTolerance,
					)
				}
			}
		}(i)
	}
	wg.Wait()
}

func (e *Engine) summarize(runID string, results []models.PricingResult, customers []string, failures []*CustomerError, started time.Time) *models.RunSummary {
	summary := &models.RunSummary{
		RunID:      runID,
		Records:    len(results),
		Customers:  len(customers),
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	for _, f := range failures {
		summary.FailedCustomers = append(summary.FailedCustomers, f.CustomerID)
	}
	sort.Strings(summary.FailedCustomers)

	if len(results) == 0 {
		return summary
	}

	factors := make([]float64, 0, len(results))
	factorSum := 0.0
	premiumSum := 0.0
	summary.FactorMin = results[0].TelematicsFactorCapped
	summary.FactorMax = results[0].TelematicsFactorCapped
	summary.PremiumMin = results[0].FinalPremium
	summary.PremiumMax = results[0].FinalPremium

	for _, res := range results {
		if res.IsFirstMonth {
			summary.GracePeriodCount++
		}
		if res.MonthlyCapped {
			summary.MonthlyCapped++
		}
		if res.QuarterlyCapped {
			summary.QuarterlyCapped++
		}

		factors = append(factors, res.TelematicsFactorCapped)
		factorSum += res.TelematicsFactorCapped
		premiumSum += res.FinalPremium

		if res.TelematicsFactorCapped < summary.FactorMin {
			summary.FactorMin = res.TelematicsFactorCapped
		}
		if res.TelematicsFactorCapped > summary.FactorMax {
			summary.FactorMax = res.TelematicsFactorCapped
		}
		if res.FinalPremium < summary.PremiumMin {
			summary.PremiumMin = res.FinalPremium
		}
		if res.FinalPremium > summary.PremiumMax {
			summary.PremiumMax = res.FinalPremium
		}
	}

	summary.FactorMean = factorSum / float64(len(results))
	summary.PremiumMean = premiumSum / float64(len(results))

	sort.Float64s(factors)
	mid := len(factors) / 2
	if len(factors)%2 == 1 {
		summary.FactorMedian = factors[mid]
	} else {
		summary.FactorMedian = (factors[mid-1] + factors[mid]) / 2
	}

	return summary
}

func (e *Engine) reportMetrics(summary *models.RunSummary) {
	e.log.LogMetric("pricing_engine", "records_priced", summary.Records, "counter", logger.Fields{})
	e.log.LogMetric("pricing_engine", "customers_priced", summary.Customers, "counter", logger.Fields{})
	e.log.LogMetric("pricing_engine", "grace_period", summary.GracePeriodCount, "counter", logger.Fields{})
	e.log.LogMetric("pricing_engine", "monthly_capped", summary.MonthlyCapped, "counter", logger.Fields{})
	e.log.LogMetric("pricing_engine", "quarterly_capped", summary.QuarterlyCapped, "counter", logger.Fields{})
	e.log.LogMetric("pricing_engine", "failed_customers", len(summary.FailedCustomers), "counter", logger.Fields{})

	e.log.WithComponent("pricing_engine").WithFields(logger.Fields{
		"run_id":           summary.RunID,
		"records":          summary.Records,
		"customers":        summary.Customers,
		"failed_customers": len(summary.FailedCustomers),
		"grace_period":     summary.GracePeriodCount,
		"monthly_capped":   summary.MonthlyCapped,
		"quarterly_capped": summary.QuarterlyCapped,
		"factor_mean":      summary.FactorMean,
		"factor_median":    summary.FactorMedian,
		"factor_min":       summary.FactorMin,
		"factor_max":       summary.FactorMax,
		"premium_mean":     summary.PremiumMean,
		"premium_min":      summary.PremiumMin,
		"premium_max":      summary.PremiumMax,
		"duration_ms":      float64(summary.FinishedAt.Sub(summary.StartedAt).Nanoseconds()) / 1e6,
	}).Info("pricing run summary")
}
