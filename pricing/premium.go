package pricing

// FinalPremium maps a bounded telematics factor to a currency premium.
// The base premium is a single book-wide constant; underwriting-specific
// base rates are out of scope for this engine.
func FinalPremium(basePremium, cappedFactor float64) float64 {
	return basePremium * cappedFactor
}
