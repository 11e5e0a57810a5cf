package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

type SessionStatus string

const (
	SessionStatusStarting  SessionStatus = "Starting"
	SessionStatusActive    SessionStatus = "Active"
	SessionStatusPaused    SessionStatus = "Paused"
	SessionStatusStopping  SessionStatus = "Stopping"
	SessionStatusCompleted SessionStatus = "Completed"
	SessionStatusFaulted   SessionStatus = "Faulted"
)

// LiveSessionStatuses are the states in which a session still occupies a
// connector and counts against the one-live-session-per-account invariant.
var LiveSessionStatuses = []SessionStatus{
	SessionStatusStarting,
	SessionStatusActive,
	SessionStatusPaused,
}

// IsTerminal reports whether no further transition is allowed.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusFaulted
}

// ChargingSession tracks a single charging attempt from creation to
// settlement. MeterStart/MeterStop are in Wh, EnergyConsumed in kWh.
type ChargingSession struct {
	ID                string        `json:"id" gorm:"primaryKey"`
	AccountKind       AccountKind   `json:"account_kind" gorm:"index:idx_sessions_account"`
	AccountID         uint          `json:"account_id" gorm:"index:idx_sessions_account"`
	ChargingServiceID string        `json:"charging_service_id"`
	ChargePointID     string        `json:"charge_point_id" gorm:"index"`
	ConnectorID       int           `json:"connector_id"`
	IdTag             string        `json:"id_tag"`
	TransactionID     *int          `json:"transaction_id,omitempty" gorm:"index"`
	Status            SessionStatus `json:"status" gorm:"index"`
	StartedAt         *time.Time    `json:"started_at,omitempty"`
	StoppedAt         *time.Time    `json:"stopped_at,omitempty"`
	LastActivityAt    *time.Time    `json:"last_activity_at,omitempty"`
	MeterStart        int64         `json:"meter_start"`
	MeterStop         *int64        `json:"meter_stop,omitempty"`
	EnergyConsumed    float64       `json:"energy_consumed"`
	CreditsReserved   float64       `json:"credits_reserved"`
	CreditsUsed       float64       `json:"credits_used"`
	StopReason        string        `json:"stop_reason,omitempty"`
	OCPPData          JSONMap       `json:"ocpp_data" gorm:"type:jsonb"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// AccountRef returns the owning account reference.
func (s *ChargingSession) AccountRef() AccountRef {
	return AccountRef{Kind: s.AccountKind, ID: s.AccountID}
}

// AccountRefString is the protocol-facing account token, e.g. "U-42".
func (s *ChargingSession) AccountRefString() string {
	return s.AccountRef().String()
}

// CanPause reports whether the pause transition is legal.
func (s *ChargingSession) CanPause() bool { return s.Status == SessionStatusActive }

// CanResume reports whether the resume transition is legal.
func (s *ChargingSession) CanResume() bool { return s.Status == SessionStatusPaused }

// CanStop reports whether the session may still be settled.
func (s *ChargingSession) CanStop() bool {
	return s.Status == SessionStatusActive || s.Status == SessionStatusPaused
}

// JSONMap stores free-form protocol payloads as a jsonb column.
type JSONMap map[string]interface{}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return errors.New("unsupported type for JSONMap")
	}
}
