package domain

import (
	"time"
)

// ChargingService is a rate plan. This core reads rate plans but never
// mutates them; the first active plan by sort order is the fallback when a
// session is auto-created from an unsolicited StartTransaction.
type ChargingService struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	Name       string    `json:"name"`
	RatePerKWh float64   `json:"rate_per_kwh"`
	Currency   string    `json:"currency"`
	Active     bool      `json:"active"`
	SortOrder  int       `json:"sort_order"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
