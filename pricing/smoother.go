package pricing

import (
	"insurityflow/models"
)

// Smooth applies the EWMA recurrence over one customer's chronologically
// ordered series, filling EWMAIndex in place:
//
//	ewma[0] = risk[0]
//	ewma[n] = lambda*risk[n] + (1-lambda)*ewma[n-1]
//
// The series must already be sorted by period. Order across customers is
// irrelevant; order within the series is load-bearing.
func Smooth(series []models.PricingRecord, lambda float64) {
	if len(series) == 0 {
		return
	}

	series[0].EWMAIndex = series[0].RiskIndex
	for i := 1; i < len(series); i++ {
		series[i].EWMAIndex = lambda*series[i].RiskIndex + (1-lambda)*series[i-1].EWMAIndex
	}
}
