package domain

import (
	"time"
)

type ChargePointStatus string

const (
	ChargePointStatusAvailable   ChargePointStatus = "Available"
	ChargePointStatusOccupied    ChargePointStatus = "Occupied"
	ChargePointStatusUnavailable ChargePointStatus = "Unavailable"
	ChargePointStatusFaulted     ChargePointStatus = "Faulted"
)

// ChargePoint is the mutable aggregate for a physical or simulated charger.
// It is created lazily on the first boot, status or log event that references
// an unknown identifier and is never deleted by this core.
type ChargePoint struct {
	ID              string            `json:"id" gorm:"primaryKey"`
	Identifier      string            `json:"identifier" gorm:"uniqueIndex"`
	Name            string            `json:"name"`
	Location        string            `json:"location"`
	Status          ChargePointStatus `json:"status"`
	ConnectorCount  int               `json:"connector_count"`
	MaxPowerKW      float64           `json:"max_power_kw"`
	FirmwareVersion string            `json:"firmware_version"`
	LastHeartbeat   *time.Time        `json:"last_heartbeat,omitempty"`
	IsSimulation    bool              `json:"is_simulation"`
	Configuration   JSONMap           `json:"configuration" gorm:"type:jsonb"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// MapOCPPStatus maps an inbound OCPP 1.6 status string to the canonical
// bucket. Every ingestion path (protocol dispatcher, log aggregator, status
// push) uses this single mapping. Intermediate substates collapse to
// Occupied; unknown strings fall back to Unavailable as the conservative
// default.
func MapOCPPStatus(raw string) ChargePointStatus {
	switch raw {
	case "Available":
		return ChargePointStatusAvailable
	case "Occupied", "Charging", "Preparing", "Finishing", "SuspendedEV", "SuspendedEVSE":
		return ChargePointStatusOccupied
	case "Faulted":
		return ChargePointStatusFaulted
	case "Unavailable", "Reserved":
		return ChargePointStatusUnavailable
	default:
		return ChargePointStatusUnavailable
	}
}
