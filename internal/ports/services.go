package ports

import (
	"context"
	"time"

	"github.com/gridwatt/csms-core/internal/domain"
)

// ChargePointService is the registry over charge-point records.
type ChargePointService interface {
	GetByIdentifier(ctx context.Context, identifier string) (*domain.ChargePoint, error)
	GetByID(ctx context.Context, id string) (*domain.ChargePoint, error)
	// GetOrCreate creates the record lazily for boot, status and log events
	// referencing an unknown identifier.
	GetOrCreate(ctx context.Context, identifier string) (*domain.ChargePoint, error)
	List(ctx context.Context, filter map[string]interface{}) ([]domain.ChargePoint, error)
	RecordBoot(ctx context.Context, identifier string, vendor, model, firmware string) (*domain.ChargePoint, error)
	RecordHeartbeat(ctx context.Context, identifier string) error
	ApplyProtocolStatus(ctx context.Context, identifier string, connectorID int, rawStatus string) error
	// PushStatus is the out-of-band direct status update: only connector 1
	// feeds the aggregate status, and a raw status event is always emitted.
	PushStatus(ctx context.Context, identifier string, connectorID int, rawStatus string, at *time.Time) error
	SetStatus(ctx context.Context, identifier string, status domain.ChargePointStatus) error
	// UpsertFromLogs applies one aggregated write per charge point per log
	// batch: create-if-absent, raise connector count, overwrite status on
	// change, stamp heartbeat when one was observed.
	UpsertFromLogs(ctx context.Context, identifier string, maxConnector int, status *domain.ChargePointStatus, heartbeat bool) error
}

// ProtocolStartResult is what the dispatcher needs to answer StartTransaction.
type ProtocolStartResult struct {
	Session       *domain.ChargingSession
	TransactionID int
}

// SessionService owns the charging-session state machine, settlement and
// credit debits.
type SessionService interface {
	// Protocol paths.
	ProtocolStart(ctx context.Context, identifier string, connectorID int, idTag string, meterStart int64, inboundTxID *int) (*ProtocolStartResult, error)
	ProtocolStop(ctx context.Context, identifier string, transactionID int, meterStop int64, reason string) (*domain.ChargingSession, error)
	RecordMeterValues(ctx context.Context, identifier string, connectorID int, reading *int64, raw interface{}) error

	// User-initiated lifecycle.
	Start(ctx context.Context, ref domain.AccountRef, identifier string, connectorID int, serviceID string) (*domain.ChargingSession, error)
	Pause(ctx context.Context, sessionID string) (*domain.ChargingSession, error)
	Resume(ctx context.Context, sessionID string) (*domain.ChargingSession, error)
	Stop(ctx context.Context, sessionID string) (*domain.ChargingSession, error)

	// ForceStop settles a session on behalf of the watchdog or an admin.
	// When capDebit is true the debit is capped at the remaining balance.
	ForceStop(ctx context.Context, sessionID string, reason, note string, capDebit bool, actorID string) (*domain.ChargingSession, error)

	Get(ctx context.Context, sessionID string) (*domain.ChargingSession, error)
	GetLiveByAccount(ctx context.Context, ref domain.AccountRef) (*domain.ChargingSession, error)
	ListLive(ctx context.Context) ([]domain.ChargingSession, error)
	ListHistoryByAccount(ctx context.Context, ref domain.AccountRef) ([]domain.ChargingSession, error)
}

// AccountResolver resolves an id_tag to an account using the documented
// precedence: U-<id>, B-<id>, individual national id, individual email,
// business tax id, business email.
type AccountResolver interface {
	ResolveIDTag(ctx context.Context, idTag string) (*domain.Account, error)
	Get(ctx context.Context, ref domain.AccountRef) (*domain.Account, error)
}

// LogIngestService reconstructs charge-point state from raw log batches.
type LogIngestService interface {
	Ingest(ctx context.Context, batches []LogBatch) (int, error)
}

type LogBatch struct {
	ChargePointID string   `json:"cp_id"`
	Lines         []string `json:"lines"`
}

// EventRecorder appends a domain event to the outbox inside the caller's
// storage transaction.
type EventRecorder interface {
	Record(ctx context.Context, event domain.Event) error
}

// Broadcaster delivers committed events to interested channels.
type Broadcaster interface {
	Broadcast(event domain.Event)
}

// BridgeClient relays remote commands to the external device gateway.
type BridgeClient interface {
	RemoteStartTransaction(ctx context.Context, identifier, idTag string, connectorID int) (map[string]interface{}, error)
	RemoteStopTransaction(ctx context.Context, identifier string, transactionID int) (map[string]interface{}, error)
}

// Cache is the charge-point snapshot cache.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping() error
	Close() error
}
