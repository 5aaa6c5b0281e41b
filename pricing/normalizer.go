package pricing

import (
	"fmt"
	"sort"
	"time"

	appconfig "insurityflow/config"
	"insurityflow/logger"
	"insurityflow/models"
)

// periodLayout is the calendar-month identifier format, e.g. "2024-01".
const periodLayout = "2006-01"

// Normalizer aligns raw prediction input into per-customer chronologically
// ordered series and computes the baseline raw risk index.
type Normalizer struct {
	config *appconfig.Config
	log    *logger.Log
}

func NewNormalizer(cfg *appconfig.Config) *Normalizer {
	return &Normalizer{config: cfg, log: logger.GetLogger()}
}

// Normalize groups records by customer, sorts each series by period and
// fills in RiskIndex. It returns the series map, customer IDs in sorted
// order, and per-customer failures. A non-positive book average for any
// period is fatal to the whole run, not to a single customer, since the
// book average spans all customers active in that period.
func (n *Normalizer) Normalize(records []models.PredictionRecord) (map[string][]models.PricingRecord, []string, []*CustomerError, error) {
	log := n.log.WithComponent("normalizer")

	bookAvg, err := n.bookAverages(records)
	if err != nil {
		return nil, nil, nil, err
	}

	grouped := make(map[string][]models.PredictionRecord)
	for _, rec := range records {
		grouped[rec.CustomerID] = append(grouped[rec.CustomerID], rec)
	}

	series := make(map[string][]models.PricingRecord, len(grouped))
	customers := make([]string, 0, len(grouped))
	var failures []*CustomerError

	for customerID, recs := range grouped {
		chain, err := n.buildSeries(recs, bookAvg)
		if err != nil {
			failures = append(failures, &CustomerError{CustomerID: customerID, Err: err})
			log.WithError(err).WithFields(logger.Fields{"customer_id": customerID}).Warn("dropping customer from pricing run")
			continue
		}
		series[customerID] = chain
		customers = append(customers, customerID)
	}
	sort.Strings(customers)

	log.WithFields(logger.Fields{
		"customers":        len(customers),
		"failed_customers": len(failures),
		"records":          len(records),
	}).Info("prediction input normalized")
	logger.RecordStageRecords("normalizer", len(records), 0)

	return series, customers, failures, nil
}

// buildSeries validates and chronologically sorts one customer's records.
// Input row order is never trusted; the sort key is the parsed period.
func (n *Normalizer) buildSeries(recs []models.PredictionRecord, bookAvg map[string]float64) ([]models.PricingRecord, error) {
	type dated struct {
		rec models.PredictionRecord
		at  time.Time
	}

	dateds := make([]dated, 0, len(recs))
	seen := make(map[string]bool, len(recs))
	for _, rec := range recs {
		at, err := time.Parse(periodLayout, rec.Period)
		if err != nil {
			return nil, fmt.Errorf("malformed period %q: %w", rec.Period, err)
		}
		if seen[rec.Period] {
			return nil, fmt.Errorf("duplicate period %q", rec.Period)
		}
		seen[rec.Period] = true
		dateds = append(dateds, dated{rec: rec, at: at})
	}

	sort.Slice(dateds, func(i, j int) bool { return dateds[i].at.Before(dateds[j].at) })

	chain := make([]models.PricingRecord, 0, len(dateds))
	for _, d := range dateds {
		avg := bookAvg[d.rec.Period]
		chain = append(chain, models.PricingRecord{
			CustomerID:       d.rec.CustomerID,
			Period:           d.rec.Period,
			PredictedLoss:    d.rec.PredictedLoss,
			GLMPredictedLoss: d.rec.GLMPredictedLoss,
			BookAverage:      avg,
			RiskIndex:        d.rec.PredictedLoss / avg,
		})
	}
	return chain, nil
}

// bookAverages resolves the per-period book average. When the input table
// carries the column it is validated as-is; otherwise the cross-customer
// mean of the configured source model's predictions is computed per
// period, matching the upstream aggregation.
func (n *Normalizer) bookAverages(records []models.PredictionRecord) (map[string]float64, error) {
	supplied := false
	for _, rec := range records {
		if rec.BookAverage != 0 {
			supplied = true
			break
		}
	}

	averages := make(map[string]float64)
	if supplied {
		for _, rec := range records {
			if rec.BookAverage <= 0 {
				return nil, &BookAverageError{Period: rec.Period, Value: rec.BookAverage}
			}
			averages[rec.Period] = rec.BookAverage
		}
		return averages, nil
	}

	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, rec := range records {
		sums[rec.Period] += n.sourcePrediction(rec)
		counts[rec.Period]++
	}
	for period, sum := range sums {
		avg := sum / float64(counts[period])
		if avg <= 0 {
			return nil, &BookAverageError{Period: period, Value: avg}
		}
		averages[period] = avg
	}

	n.log.WithComponent("normalizer").WithFields(logger.Fields{
		"periods": len(averages),
		"source":  n.config.Pricing.BookAverageSource,
	}).Info("computed book averages by period")

	return averages, nil
}

func (n *Normalizer) sourcePrediction(rec models.PredictionRecord) float64 {
	if n.config.Pricing.BookAverageSource == appconfig.BookAverageSourceGLM {
		return rec.GLMPredictedLoss
	}
	return rec.PredictedLoss
}
