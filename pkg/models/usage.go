package models

import "time"

// UsageRecord represents a single bill from the portal's billing history
type UsageRecord struct {
	BillDate   time.Time `json:"bill_date"`             // UTC midnight of the billing date
	TotalUsage float64   `json:"total_usage"`           // CCF (hundred cubic feet)
	BillAmount *float64  `json:"bill_amount,omitempty"` // USD, absent on some rows
}

// HasAmount reports whether the record carries a bill amount
func (r UsageRecord) HasAmount() bool {
	return r.BillAmount != nil
}

// Estimate is the cost delta of the latest bill against prior years' baselines
type Estimate struct {
	ID              string    `json:"id"`
	BillDate        time.Time `json:"bill_date"`
	CurrentUsage    float64   `json:"current_usage"`
	CurrentAmount   float64   `json:"current_amount"`
	AverageBaseline float64   `json:"average_baseline"`
	Difference      float64   `json:"difference"`
	PricePerUnit    float64   `json:"price_per_unit"`
	AdditionalCost  float64   `json:"additional_cost"`
	Baselines       int       `json:"baselines"`
	Strategy        string    `json:"strategy"`
	CreatedAt       time.Time `json:"created_at"`
}
