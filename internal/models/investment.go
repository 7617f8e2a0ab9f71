package models

import "time"

// Investment is one entry of the public catalog.
type Investment struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Category   string  `json:"category"`
	MinAmount  int64   `json:"minAmount"`
	TermMonths int     `json:"termMonths"`
	ROIMin     float64 `json:"roiMin"`
	ROIMax     float64 `json:"roiMax"`
	Risk       string  `json:"risk"`
}

// Position is a user's stake in one investment.
type Position struct {
	ID         int64      `json:"id"`
	Amount     int64      `json:"amount"`
	CreatedAt  time.Time  `json:"createdAt"`
	Investment Investment `json:"investment"`
}

// PerformancePoint is one month of portfolio valuation history.
type PerformancePoint struct {
	Month string `json:"month"`
	Value int64  `json:"value"`
}

// Metrics aggregates platform-wide counters for the marketing surface.
type Metrics struct {
	InvestorsActive int   `json:"investorsActive"`
	AssetsTracked   int64 `json:"assetsTrackedEur"`
	AlertsTriggered int   `json:"alertsTriggered"`
}
