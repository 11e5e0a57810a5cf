package domain

import (
	"time"
)

// Event topics, also used as queue subjects.
const (
	TopicSessionStarted        = "session.started"
	TopicSessionUpdated        = "session.updated"
	TopicSessionStopped        = "session.stopped"
	TopicChargePointStatus     = "chargepoint.status"
	TopicAdminSessionForceStop = "session.admin_force_stop"
)

// Event is a domain event headed for the realtime fan-out. Events are
// appended to the outbox in the same storage transaction as the business
// mutation and published after commit.
type Event struct {
	Topic      string      `json:"topic"`
	AccountRef string      `json:"account_ref,omitempty"`
	Payload    interface{} `json:"payload"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// SessionStartedEvent carries the snapshots downstream consumers need to
// render a freshly started session without extra lookups.
type SessionStartedEvent struct {
	Session     *ChargingSession `json:"session"`
	Service     *ChargingService `json:"service"`
	ChargePoint *ChargePoint     `json:"charge_point"`
}

type SessionUpdatedEvent struct {
	Session     *ChargingSession `json:"session"`
	MeterValues interface{}      `json:"meter_values,omitempty"`
}

type SessionStoppedEvent struct {
	Session     *ChargingSession     `json:"session"`
	Transaction *ChargingTransaction `json:"transaction"`
	ChargePoint *ChargePoint         `json:"charge_point"`
}

type ChargePointStatusEvent struct {
	ChargePoint *ChargePoint `json:"charge_point"`
	ConnectorID int          `json:"connector_id"`
	RawStatus   string       `json:"raw_status"`
}

type AdminForceStopEvent struct {
	Session *ChargingSession `json:"session"`
	ActorID string           `json:"actor_id"`
	Reason  string           `json:"reason"`
}

// OutboxEvent is the persisted form of an Event awaiting publication.
type OutboxEvent struct {
	ID          string     `json:"id" gorm:"primaryKey"`
	Topic       string     `json:"topic" gorm:"index"`
	AccountRef  string     `json:"account_ref"`
	Payload     []byte     `json:"payload" gorm:"type:jsonb"`
	CreatedAt   time.Time  `json:"created_at"`
	PublishedAt *time.Time `json:"published_at,omitempty" gorm:"index"`
}
