package pricing

import (
	"insurityflow/models"
)

// AssembleResults left-merges reason annotations into the numeric pipeline
// output. Customers are emitted in the given (sorted) order and each
// series is already chronological, so reruns over the same input produce
// byte-identical output. A missing reason key yields an empty list, never
// an error.
func AssembleResults(series map[string][]models.PricingRecord, customers []string, reasons map[models.ReasonKey][]string, basePremium float64) []models.PricingResult {
	total := 0
	for _, customerID := range customers {
		total += len(series[customerID])
	}

	results := make([]models.PricingResult, 0, total)
	for _, customerID := range customers {
		for _, rec := range series[customerID] {
			topReasons := reasons[models.ReasonKey{CustomerID: rec.CustomerID, Period: rec.Period}]
			if topReasons == nil {
				topReasons = []string{}
			}

			results = append(results, models.PricingResult{
				CustomerID:             rec.CustomerID,
				Period:                 rec.Period,
				BasePremium:            basePremium,
				PredictedLoss:          rec.PredictedLoss,
				BookAverage:            rec.BookAverage,
				RiskIndex:              rec.RiskIndex,
				EWMAIndex:              rec.EWMAIndex,
				TelematicsFactorCapped: rec.TelematicsFactorCapped,
				FinalPremium:           FinalPremium(basePremium, rec.TelematicsFactorCapped),
				TopReasons:             topReasons,
				IsFirstMonth:           rec.IsFirstMonth,
				MonthlyCapped:          rec.MonthlyCapped,
				QuarterlyCapped:        rec.QuarterlyCapped,
			})
		}
	}
	return results
}
