package domain

import "time"

type AnalysisRequest struct {
	Address   string   `json:"address"`
	Bedrooms  *int     `json:"bedrooms,omitempty"`
	Bathrooms *float64 `json:"bathrooms,omitempty"`
	Occupancy *int     `json:"occupancy,omitempty"` // guests; derived from bedrooms when absent
}

// AnalysisResult is the caller-facing envelope. The HTTP layer always answers 200
// and lets Success carry the outcome.
type AnalysisResult struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Data    *AnalysisData `json:"data,omitempty"`
}

type AnalysisData struct {
	PropertyDetails         any     `json:"property_details"`
	PropertyStatistics      any     `json:"property_statistics"`
	Comps                   any     `json:"comps"`
	MarketName              *string `json:"market_name"`
	SubmarketName           *string `json:"submarket_name"`
	MarketScore             any     `json:"market_score"`
	SubmarketScore          any     `json:"submarket_score"`
	ARD                     string  `json:"ard"`
	Occupancy               string  `json:"occupancy"`
	ProjectedRevenueTypical float64 `json:"projected_revenue_typical"`
	ProjectedRevenueTop25   float64 `json:"projected_revenue_top_25"`
	ProjectedRevenueTop10   float64 `json:"projected_revenue_top_10"`
}

// Audit records
type QueryLog struct {
	ID           string
	Address      string
	Bedrooms     *int
	Bathrooms    *float64
	Accommodates int
	Source       string
	Success      bool
	CreatedAt    time.Time
}

type QueryError struct {
	QueryID   string
	Kind      AlertKind
	Message   string
	Detail    string
	CreatedAt time.Time
}
