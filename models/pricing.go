package models

import (
	"time"
)

// PredictionRecord is one customer-period row from the upstream prediction
// step. PredictedLoss is the primary (boosting) model output and
// GLMPredictedLoss the secondary comparison output; both are opaque to the
// pricing engine. BookAverage may be zero when the upstream table does not
// carry it, in which case the normalizer computes it per period.
type PredictionRecord struct {
	CustomerID       string  `json:"user_id"`
	Period           string  `json:"month"`
	PredictedLoss    float64 `json:"lgb_predicted_loss"`
	GLMPredictedLoss float64 `json:"glm_predicted_loss"`
	BookAverage      float64 `json:"book_avg,omitempty"`
}

// PricingRecord carries one customer-period through the pricing stages.
// Fields are filled in stage order: RiskIndex by the normalizer, EWMAIndex
// by the smoother, the factor and flags by the cap enforcer.
type PricingRecord struct {
	CustomerID             string
	Period                 string
	PredictedLoss          float64
	GLMPredictedLoss       float64
	BookAverage            float64
	RiskIndex              float64
	EWMAIndex              float64
	TelematicsFactorCapped float64
	IsFirstMonth           bool
	MonthlyCapped          bool
	QuarterlyCapped        bool
}

// PricingResult is the final output row. Field names match the pricing
// results consumed downstream by the dashboard.
type PricingResult struct {
	CustomerID             string   `json:"user_id"`
	Period                 string   `json:"month"`
	BasePremium            float64  `json:"base_premium"`
	PredictedLoss          float64  `json:"predicted_loss"`
	BookAverage            float64  `json:"book_avg"`
	RiskIndex              float64  `json:"risk_index"`
	EWMAIndex              float64  `json:"ewma_index"`
	TelematicsFactorCapped float64  `json:"telematics_factor_capped"`
	FinalPremium           float64  `json:"final_premium"`
	TopReasons             []string `json:"top_reasons"`
	IsFirstMonth           bool     `json:"is_first_month"`
	MonthlyCapped          bool     `json:"monthly_capped"`
	QuarterlyCapped        bool     `json:"quarterly_capped"`
}

// Reason is the parsed form of a reason-code string, e.g.
// "night_pct (+2453.276)". IncreasesRisk is true when the attribution
// value is positive.
type Reason struct {
	Feature       string  `json:"feature"`
	Value         float64 `json:"value"`
	IncreasesRisk bool    `json:"increases_risk"`
}

// ReasonKey identifies the customer-period a set of reason strings
// belongs to.
type ReasonKey struct {
	CustomerID string
	Period     string
}

// RunSummary aggregates one pricing run for the end-of-run report.
type RunSummary struct {
	RunID            string    `json:"run_id"`
	Records          int       `json:"records"`
	Customers        int       `json:"customers"`
	FailedCustomers  []string  `json:"failed_customers,omitempty"`
	GracePeriodCount int       `json:"grace_period_count"`
	MonthlyCapped    int       `json:"monthly_capped"`
	QuarterlyCapped  int       `json:"quarterly_capped"`
	FactorMean       float64   `json:"factor_mean"`
	FactorMedian     float64   `json:"factor_median"`
	FactorMin        float64   `json:"factor_min"`
	FactorMax        float64   `json:"factor_max"`
	PremiumMean      float64   `json:"premium_mean"`
	PremiumMin       float64   `json:"premium_min"`
	PremiumMax       float64   `json:"premium_max"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
}
