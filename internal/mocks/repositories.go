package mocks

import (
	"context"
	"time"

	"github.com/gridwatt/csms-core/internal/domain"
)

// MockTxManager runs the function directly, without any transaction.
type MockTxManager struct {
	DoFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *MockTxManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.DoFunc != nil {
		return m.DoFunc(ctx, fn)
	}
	return fn(ctx)
}

// MockChargePointRepository is a mock implementation of ChargePointRepository
type MockChargePointRepository struct {
	SaveFunc                      func(ctx context.Context, cp *domain.ChargePoint) error
	FindByIDFunc                  func(ctx context.Context, id string) (*domain.ChargePoint, error)
	FindByIdentifierFunc          func(ctx context.Context, identifier string) (*domain.ChargePoint, error)
	FindByIdentifierForUpdateFunc func(ctx context.Context, identifier string) (*domain.ChargePoint, error)
	FindAllFunc                   func(ctx context.Context, filter map[string]interface{}) ([]domain.ChargePoint, error)
}

func (m *MockChargePointRepository) Save(ctx context.Context, cp *domain.ChargePoint) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, cp)
	}
	return nil
}

func (m *MockChargePointRepository) FindByID(ctx context.Context, id string) (*domain.ChargePoint, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockChargePointRepository) FindByIdentifier(ctx context.Context, identifier string) (*domain.ChargePoint, error) {
	if m.FindByIdentifierFunc != nil {
		return m.FindByIdentifierFunc(ctx, identifier)
	}
	return nil, nil
}

func (m *MockChargePointRepository) FindByIdentifierForUpdate(ctx context.Context, identifier string) (*domain.ChargePoint, error) {
	if m.FindByIdentifierForUpdateFunc != nil {
		return m.FindByIdentifierForUpdateFunc(ctx, identifier)
	}
	if m.FindByIdentifierFunc != nil {
		return m.FindByIdentifierFunc(ctx, identifier)
	}
	return nil, nil
}

func (m *MockChargePointRepository) FindAll(ctx context.Context, filter map[string]interface{}) ([]domain.ChargePoint, error) {
	if m.FindAllFunc != nil {
		return m.FindAllFunc(ctx, filter)
	}
	return []domain.ChargePoint{}, nil
}

// MockSessionRepository is a mock implementation of SessionRepository
type MockSessionRepository struct {
	SaveFunc                  func(ctx context.Context, s *domain.ChargingSession) error
	FindByIDFunc              func(ctx context.Context, id string) (*domain.ChargingSession, error)
	FindByIDForUpdateFunc     func(ctx context.Context, id string) (*domain.ChargingSession, error)
	FindPendingFunc           func(ctx context.Context, chargePointID string, connectorID int, idTag string) (*domain.ChargingSession, error)
	FindByTransactionFunc     func(ctx context.Context, chargePointID string, transactionID int) (*domain.ChargingSession, error)
	FindActiveOnConnectorFunc func(ctx context.Context, chargePointID string, connectorID int) (*domain.ChargingSession, error)
	FindLiveByAccountFunc     func(ctx context.Context, kind domain.AccountKind, accountID uint) (*domain.ChargingSession, error)
	FindAllLiveFunc           func(ctx context.Context) ([]domain.ChargingSession, error)
	FindHistoryByAccountFunc  func(ctx context.Context, kind domain.AccountKind, accountID uint) ([]domain.ChargingSession, error)
}

func (m *MockSessionRepository) Save(ctx context.Context, s *domain.ChargingSession) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, s)
	}
	return nil
}

func (m *MockSessionRepository) FindByID(ctx context.Context, id string) (*domain.ChargingSession, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockSessionRepository) FindByIDForUpdate(ctx context.Context, id string) (*domain.ChargingSession, error) {
	if m.FindByIDForUpdateFunc != nil {
		return m.FindByIDForUpdateFunc(ctx, id)
	}
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockSessionRepository) FindPending(ctx context.Context, chargePointID string, connectorID int, idTag string) (*domain.ChargingSession, error) {
	if m.FindPendingFunc != nil {
		return m.FindPendingFunc(ctx, chargePointID, connectorID, idTag)
	}
	return nil, nil
}

func (m *MockSessionRepository) FindByTransaction(ctx context.Context, chargePointID string, transactionID int) (*domain.ChargingSession, error) {
	if m.FindByTransactionFunc != nil {
		return m.FindByTransactionFunc(ctx, chargePointID, transactionID)
	}
	return nil, nil
}

func (m *MockSessionRepository) FindActiveOnConnector(ctx context.Context, chargePointID string, connectorID int) (*domain.ChargingSession, error) {
	if m.FindActiveOnConnectorFunc != nil {
		return m.FindActiveOnConnectorFunc(ctx, chargePointID, connectorID)
	}
	return nil, nil
}

func (m *MockSessionRepository) FindLiveByAccount(ctx context.Context, kind domain.AccountKind, accountID uint) (*domain.ChargingSession, error) {
	if m.FindLiveByAccountFunc != nil {
		return m.FindLiveByAccountFunc(ctx, kind, accountID)
	}
	return nil, nil
}

func (m *MockSessionRepository) FindAllLive(ctx context.Context) ([]domain.ChargingSession, error) {
	if m.FindAllLiveFunc != nil {
		return m.FindAllLiveFunc(ctx)
	}
	return []domain.ChargingSession{}, nil
}

func (m *MockSessionRepository) FindHistoryByAccount(ctx context.Context, kind domain.AccountKind, accountID uint) ([]domain.ChargingSession, error) {
	if m.FindHistoryByAccountFunc != nil {
		return m.FindHistoryByAccountFunc(ctx, kind, accountID)
	}
	return []domain.ChargingSession{}, nil
}

// MockTransactionRepository is a mock implementation of TransactionRepository
type MockTransactionRepository struct {
	CreateFunc          func(ctx context.Context, tx *domain.ChargingTransaction) error
	FindByReferenceFunc func(ctx context.Context, reference string) (*domain.ChargingTransaction, error)
	FindBySessionFunc   func(ctx context.Context, sessionID string) (*domain.ChargingTransaction, error)
	FindByAccountFunc   func(ctx context.Context, kind domain.AccountKind, accountID uint) ([]domain.ChargingTransaction, error)
}

func (m *MockTransactionRepository) Create(ctx context.Context, tx *domain.ChargingTransaction) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx)
	}
	return nil
}

func (m *MockTransactionRepository) FindByReference(ctx context.Context, reference string) (*domain.ChargingTransaction, error) {
	if m.FindByReferenceFunc != nil {
		return m.FindByReferenceFunc(ctx, reference)
	}
	return nil, nil
}

func (m *MockTransactionRepository) FindBySession(ctx context.Context, sessionID string) (*domain.ChargingTransaction, error) {
	if m.FindBySessionFunc != nil {
		return m.FindBySessionFunc(ctx, sessionID)
	}
	return nil, nil
}

func (m *MockTransactionRepository) FindByAccount(ctx context.Context, kind domain.AccountKind, accountID uint) ([]domain.ChargingTransaction, error) {
	if m.FindByAccountFunc != nil {
		return m.FindByAccountFunc(ctx, kind, accountID)
	}
	return []domain.ChargingTransaction{}, nil
}

// MockServiceRepository is a mock implementation of ServiceRepository
type MockServiceRepository struct {
	FindByIDFunc          func(ctx context.Context, id string) (*domain.ChargingService, error)
	FindDefaultActiveFunc func(ctx context.Context) (*domain.ChargingService, error)
}

func (m *MockServiceRepository) FindByID(ctx context.Context, id string) (*domain.ChargingService, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockServiceRepository) FindDefaultActive(ctx context.Context) (*domain.ChargingService, error) {
	if m.FindDefaultActiveFunc != nil {
		return m.FindDefaultActiveFunc(ctx)
	}
	return nil, nil
}

// MockAccountRepository is a mock implementation of AccountRepository
type MockAccountRepository struct {
	FindByRefFunc                  func(ctx context.Context, ref domain.AccountRef) (*domain.Account, error)
	FindIndividualByNationalIDFunc func(ctx context.Context, document string) (*domain.Account, error)
	FindIndividualByEmailFunc      func(ctx context.Context, email string) (*domain.Account, error)
	FindBusinessByTaxIDFunc        func(ctx context.Context, document string) (*domain.Account, error)
	FindBusinessByEmailFunc        func(ctx context.Context, email string) (*domain.Account, error)
	DebitFunc                      func(ctx context.Context, ref domain.AccountRef, amount float64) error
}

func (m *MockAccountRepository) FindByRef(ctx context.Context, ref domain.AccountRef) (*domain.Account, error) {
	if m.FindByRefFunc != nil {
		return m.FindByRefFunc(ctx, ref)
	}
	return nil, nil
}

func (m *MockAccountRepository) FindIndividualByNationalID(ctx context.Context, document string) (*domain.Account, error) {
	if m.FindIndividualByNationalIDFunc != nil {
		return m.FindIndividualByNationalIDFunc(ctx, document)
	}
	return nil, nil
}

func (m *MockAccountRepository) FindIndividualByEmail(ctx context.Context, email string) (*domain.Account, error) {
	if m.FindIndividualByEmailFunc != nil {
		return m.FindIndividualByEmailFunc(ctx, email)
	}
	return nil, nil
}

func (m *MockAccountRepository) FindBusinessByTaxID(ctx context.Context, document string) (*domain.Account, error) {
	if m.FindBusinessByTaxIDFunc != nil {
		return m.FindBusinessByTaxIDFunc(ctx, document)
	}
	return nil, nil
}

func (m *MockAccountRepository) FindBusinessByEmail(ctx context.Context, email string) (*domain.Account, error) {
	if m.FindBusinessByEmailFunc != nil {
		return m.FindBusinessByEmailFunc(ctx, email)
	}
	return nil, nil
}

func (m *MockAccountRepository) Debit(ctx context.Context, ref domain.AccountRef, amount float64) error {
	if m.DebitFunc != nil {
		return m.DebitFunc(ctx, ref, amount)
	}
	return nil
}

// MockOutboxRepository is a mock implementation of OutboxRepository
type MockOutboxRepository struct {
	AppendFunc          func(ctx context.Context, event *domain.OutboxEvent) error
	FindUnpublishedFunc func(ctx context.Context, limit int) ([]domain.OutboxEvent, error)
	MarkPublishedFunc   func(ctx context.Context, id string, at time.Time) error
}

func (m *MockOutboxRepository) Append(ctx context.Context, event *domain.OutboxEvent) error {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, event)
	}
	return nil
}

func (m *MockOutboxRepository) FindUnpublished(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	if m.FindUnpublishedFunc != nil {
		return m.FindUnpublishedFunc(ctx, limit)
	}
	return []domain.OutboxEvent{}, nil
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id string, at time.Time) error {
	if m.MarkPublishedFunc != nil {
		return m.MarkPublishedFunc(ctx, id, at)
	}
	return nil
}
