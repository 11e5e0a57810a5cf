package domain

import (
	"time"
)

// ChargingTransaction is the immutable settlement record written exactly once
// when a session completes. Duration, energy and amount are stored as
// absolute magnitudes; RatePerKWh is a snapshot taken at settlement time.
type ChargingTransaction struct {
	ID              string      `json:"id" gorm:"primaryKey"`
	Reference       string      `json:"reference" gorm:"uniqueIndex"`
	SessionID       string      `json:"session_id" gorm:"uniqueIndex"`
	AccountKind     AccountKind `json:"account_kind"`
	AccountID       uint        `json:"account_id"`
	ChargePointID   string      `json:"charge_point_id"`
	StartedAt       time.Time   `json:"started_at"`
	StoppedAt       time.Time   `json:"stopped_at"`
	DurationMinutes float64     `json:"duration_minutes"`
	EnergyConsumed  float64     `json:"energy_consumed"`
	RatePerKWh      float64     `json:"rate_per_kwh"`
	TotalAmount     float64     `json:"total_amount"`
	Currency        string      `json:"currency"`
	Notes           string      `json:"notes,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}
