package pricing

import (
	"math"

	"insurityflow/models"
)

// EnforceCaps walks one customer's smoothed series and fills in
// TelematicsFactorCapped and the cap flags in place.
//
// Position 0 is the grace period: the factor is pinned to 1.0 and the
// smoothed value for that record is discarded. From position 1 the smoothed
// index is clamped to within monthlyCap of the previous capped factor, and
// from position 3 the monthly result is further clamped to within
// quarterlyCap of the capped factor three positions back. Both bounds are
// measured against already-capped history, never the raw smoothed series.
//
// Lookback is position based: a customer observed in January, March and
// December is capped exactly like one observed in three consecutive
// months. Calendar gaps do not reset or stretch the window.
func EnforceCaps(series []models.PricingRecord, monthlyCap, quarterlyCap, tolerance float64) {
	// Ring buffer of the last three capped factors; ring[i%3] still holds
	// position i-3 when position i is being computed.
	var ring [3]float64
	prev := 0.0

	for i := range series {
		rec := &series[i]

		if i == 0 {
			rec.IsFirstMonth = true
			rec.TelematicsFactorCapped = 1.0
		} else {
			monthly := clamp(rec.EWMAIndex, prev*(1-monthlyCap), prev*(1+monthlyCap))
			if math.Abs(monthly-rec.EWMAIndex) > tolerance {
				rec.MonthlyCapped = true
			}

			final := monthly
			if i >= 3 {
				base := ring[i%3]
				final = clamp(monthly, base*(1-quarterlyCap), base*(1+quarterlyCap))
				if math.Abs(final-monthly) > tolerance {
					rec.QuarterlyCapped = true
				}
			}
			rec.TelematicsFactorCapped = final
		}

		ring[i%3] = rec.TelematicsFactorCapped
		prev = rec.TelematicsFactorCapped
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
