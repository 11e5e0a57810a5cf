package mocks

import (
	"context"
	"time"

	"github.com/gridwatt/csms-core/internal/domain"
	"github.com/gridwatt/csms-core/internal/ports"
)

// MockChargePointService is a mock implementation of ChargePointService
type MockChargePointService struct {
	GetByIdentifierFunc     func(ctx context.Context, identifier string) (*domain.ChargePoint, error)
	GetByIDFunc             func(ctx context.Context, id string) (*domain.ChargePoint, error)
	GetOrCreateFunc         func(ctx context.Context, identifier string) (*domain.ChargePoint, error)
	ListFunc                func(ctx context.Context, filter map[string]interface{}) ([]domain.ChargePoint, error)
	RecordBootFunc          func(ctx context.Context, identifier string, vendor, model, firmware string) (*domain.ChargePoint, error)
	RecordHeartbeatFunc     func(ctx context.Context, identifier string) error
	ApplyProtocolStatusFunc func(ctx context.Context, identifier string, connectorID int, rawStatus string) error
	PushStatusFunc          func(ctx context.Context, identifier string, connectorID int, rawStatus string, at *time.Time) error
	SetStatusFunc           func(ctx context.Context, identifier string, status domain.ChargePointStatus) error
	UpsertFromLogsFunc      func(ctx context.Context, identifier string, maxConnector int, status *domain.ChargePointStatus, heartbeat bool) error
}

func (m *MockChargePointService) GetByIdentifier(ctx context.Context, identifier string) (*domain.ChargePoint, error) {
	if m.GetByIdentifierFunc != nil {
		return m.GetByIdentifierFunc(ctx, identifier)
	}
	return nil, domain.ErrNotFound
}

func (m *MockChargePointService) GetByID(ctx context.Context, id string) (*domain.ChargePoint, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *MockChargePointService) GetOrCreate(ctx context.Context, identifier string) (*domain.ChargePoint, error) {
	if m.GetOrCreateFunc != nil {
		return m.GetOrCreateFunc(ctx, identifier)
	}
	return nil, nil
}

func (m *MockChargePointService) List(ctx context.Context, filter map[string]interface{}) ([]domain.ChargePoint, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	return []domain.ChargePoint{}, nil
}

func (m *MockChargePointService) RecordBoot(ctx context.Context, identifier string, vendor, model, firmware string) (*domain.ChargePoint, error) {
	if m.RecordBootFunc != nil {
		return m.RecordBootFunc(ctx, identifier, vendor, model, firmware)
	}
	return nil, nil
}

func (m *MockChargePointService) RecordHeartbeat(ctx context.Context, identifier string) error {
	if m.RecordHeartbeatFunc != nil {
		return m.RecordHeartbeatFunc(ctx, identifier)
	}
	return nil
}

func (m *MockChargePointService) ApplyProtocolStatus(ctx context.Context, identifier string, connectorID int, rawStatus string) error {
	if m.ApplyProtocolStatusFunc != nil {
		return m.ApplyProtocolStatusFunc(ctx, identifier, connectorID, rawStatus)
	}
	return nil
}

func (m *MockChargePointService) PushStatus(ctx context.Context, identifier string, connectorID int, rawStatus string, at *time.Time) error {
	if m.PushStatusFunc != nil {
		return m.PushStatusFunc(ctx, identifier, connectorID, rawStatus, at)
	}
	return nil
}

func (m *MockChargePointService) SetStatus(ctx context.Context, identifier string, status domain.ChargePointStatus) error {
	if m.SetStatusFunc != nil {
		return m.SetStatusFunc(ctx, identifier, status)
	}
	return nil
}

func (m *MockChargePointService) UpsertFromLogs(ctx context.Context, identifier string, maxConnector int, status *domain.ChargePointStatus, heartbeat bool) error {
	if m.UpsertFromLogsFunc != nil {
		return m.UpsertFromLogsFunc(ctx, identifier, maxConnector, status, heartbeat)
	}
	return nil
}

// MockSessionService is a mock implementation of SessionService
type MockSessionService struct {
	ProtocolStartFunc        func(ctx context.Context, identifier string, connectorID int, idTag string, meterStart int64, inboundTxID *int) (*ports.ProtocolStartResult, error)
	ProtocolStopFunc         func(ctx context.Context, identifier string, transactionID int, meterStop int64, reason string) (*domain.ChargingSession, error)
	RecordMeterValuesFunc    func(ctx context.Context, identifier string, connectorID int, reading *int64, raw interface{}) error
	StartFunc                func(ctx context.Context, ref domain.AccountRef, identifier string, connectorID int, serviceID string) (*domain.ChargingSession, error)
	PauseFunc                func(ctx context.Context, sessionID string) (*domain.ChargingSession, error)
	ResumeFunc               func(ctx context.Context, sessionID string) (*domain.ChargingSession, error)
	StopFunc                 func(ctx context.Context, sessionID string) (*domain.ChargingSession, error)
	ForceStopFunc            func(ctx context.Context, sessionID string, reason, note string, capDebit bool, actorID string) (*domain.ChargingSession, error)
	GetFunc                  func(ctx context.Context, sessionID string) (*domain.ChargingSession, error)
	GetLiveByAccountFunc     func(ctx context.Context, ref domain.AccountRef) (*domain.ChargingSession, error)
	ListLiveFunc             func(ctx context.Context) ([]domain.ChargingSession, error)
	ListHistoryByAccountFunc func(ctx context.Context, ref domain.AccountRef) ([]domain.ChargingSession, error)
}

func (m *MockSessionService) ProtocolStart(ctx context.Context, identifier string, connectorID int, idTag string, meterStart int64, inboundTxID *int) (*ports.ProtocolStartResult, error) {
	if m.ProtocolStartFunc != nil {
		return m.ProtocolStartFunc(ctx, identifier, connectorID, idTag, meterStart, inboundTxID)
	}
	return nil, domain.ErrInvalidIdTag
}

func (m *MockSessionService) ProtocolStop(ctx context.Context, identifier string, transactionID int, meterStop int64, reason string) (*domain.ChargingSession, error) {
	if m.ProtocolStopFunc != nil {
		return m.ProtocolStopFunc(ctx, identifier, transactionID, meterStop, reason)
	}
	return nil, domain.ErrNotFound
}

func (m *MockSessionService) RecordMeterValues(ctx context.Context, identifier string, connectorID int, reading *int64, raw interface{}) error {
	if m.RecordMeterValuesFunc != nil {
		return m.RecordMeterValuesFunc(ctx, identifier, connectorID, reading, raw)
	}
	return nil
}

func (m *MockSessionService) Start(ctx context.Context, ref domain.AccountRef, identifier string, connectorID int, serviceID string) (*domain.ChargingSession, error) {
	if m.StartFunc != nil {
		return m.StartFunc(ctx, ref, identifier, connectorID, serviceID)
	}
	return nil, nil
}

func (m *MockSessionService) Pause(ctx context.Context, sessionID string) (*domain.ChargingSession, error) {
	if m.PauseFunc != nil {
		return m.PauseFunc(ctx, sessionID)
	}
	return nil, nil
}

func (m *MockSessionService) Resume(ctx context.Context, sessionID string) (*domain.ChargingSession, error) {
	if m.ResumeFunc != nil {
		return m.ResumeFunc(ctx, sessionID)
	}
	return nil, nil
}

func (m *MockSessionService) Stop(ctx context.Context, sessionID string) (*domain.ChargingSession, error) {
	if m.StopFunc != nil {
		return m.StopFunc(ctx, sessionID)
	}
	return nil, nil
}

func (m *MockSessionService) ForceStop(ctx context.Context, sessionID string, reason, note string, capDebit bool, actorID string) (*domain.ChargingSession, error) {
	if m.ForceStopFunc != nil {
		return m.ForceStopFunc(ctx, sessionID, reason, note, capDebit, actorID)
	}
	return nil, nil
}

func (m *MockSessionService) Get(ctx context.Context, sessionID string) (*domain.ChargingSession, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, sessionID)
	}
	return nil, domain.ErrNotFound
}

func (m *MockSessionService) GetLiveByAccount(ctx context.Context, ref domain.AccountRef) (*domain.ChargingSession, error) {
	if m.GetLiveByAccountFunc != nil {
		return m.GetLiveByAccountFunc(ctx, ref)
	}
	return nil, nil
}

func (m *MockSessionService) ListLive(ctx context.Context) ([]domain.ChargingSession, error) {
	if m.ListLiveFunc != nil {
		return m.ListLiveFunc(ctx)
	}
	return []domain.ChargingSession{}, nil
}

func (m *MockSessionService) ListHistoryByAccount(ctx context.Context, ref domain.AccountRef) ([]domain.ChargingSession, error) {
	if m.ListHistoryByAccountFunc != nil {
		return m.ListHistoryByAccountFunc(ctx, ref)
	}
	return []domain.ChargingSession{}, nil
}

// MockAccountResolver is a mock implementation of AccountResolver
type MockAccountResolver struct {
	ResolveIDTagFunc func(ctx context.Context, idTag string) (*domain.Account, error)
	GetFunc          func(ctx context.Context, ref domain.AccountRef) (*domain.Account, error)
}

func (m *MockAccountResolver) ResolveIDTag(ctx context.Context, idTag string) (*domain.Account, error) {
	if m.ResolveIDTagFunc != nil {
		return m.ResolveIDTagFunc(ctx, idTag)
	}
	return nil, domain.ErrInvalidIdTag
}

func (m *MockAccountResolver) Get(ctx context.Context, ref domain.AccountRef) (*domain.Account, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, ref)
	}
	return nil, domain.ErrNotFound
}

// MockEventRecorder records events in memory.
type MockEventRecorder struct {
	RecordFunc func(ctx context.Context, event domain.Event) error
	Recorded   []domain.Event
}

func (m *MockEventRecorder) Record(ctx context.Context, event domain.Event) error {
	m.Recorded = append(m.Recorded, event)
	if m.RecordFunc != nil {
		return m.RecordFunc(ctx, event)
	}
	return nil
}

// MockBroadcaster collects broadcast events.
type MockBroadcaster struct {
	BroadcastFunc func(event domain.Event)
	Events        []domain.Event
}

func (m *MockBroadcaster) Broadcast(event domain.Event) {
	m.Events = append(m.Events, event)
	if m.BroadcastFunc != nil {
		m.BroadcastFunc(event)
	}
}

// MockBridgeClient is a mock implementation of BridgeClient
type MockBridgeClient struct {
	RemoteStartTransactionFunc func(ctx context.Context, identifier, idTag string, connectorID int) (map[string]interface{}, error)
	RemoteStopTransactionFunc  func(ctx context.Context, identifier string, transactionID int) (map[string]interface{}, error)
}

func (m *MockBridgeClient) RemoteStartTransaction(ctx context.Context, identifier, idTag string, connectorID int) (map[string]interface{}, error) {
	if m.RemoteStartTransactionFunc != nil {
		return m.RemoteStartTransactionFunc(ctx, identifier, idTag, connectorID)
	}
	return map[string]interface{}{}, nil
}

func (m *MockBridgeClient) RemoteStopTransaction(ctx context.Context, identifier string, transactionID int) (map[string]interface{}, error) {
	if m.RemoteStopTransactionFunc != nil {
		return m.RemoteStopTransactionFunc(ctx, identifier, transactionID)
	}
	return map[string]interface{}{}, nil
}
