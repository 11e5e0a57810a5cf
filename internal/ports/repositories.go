package ports

import (
	"context"
	"time"

	"github.com/gridwatt/csms-core/internal/domain"
)

// TxManager runs fn inside one storage transaction. Repository calls made
// with the ctx passed to fn join that transaction; an error rolls everything
// back. Session and charge-point rows fetched through the ForUpdate variants
// are locked until commit.
type TxManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

type ChargePointRepository interface {
	Save(ctx context.Context, cp *domain.ChargePoint) error
	FindByID(ctx context.Context, id string) (*domain.ChargePoint, error)
	FindByIdentifier(ctx context.Context, identifier string) (*domain.ChargePoint, error)
	FindByIdentifierForUpdate(ctx context.Context, identifier string) (*domain.ChargePoint, error)
	FindAll(ctx context.Context, filter map[string]interface{}) ([]domain.ChargePoint, error)
}

type SessionRepository interface {
	Save(ctx context.Context, s *domain.ChargingSession) error
	FindByID(ctx context.Context, id string) (*domain.ChargingSession, error)
	FindByIDForUpdate(ctx context.Context, id string) (*domain.ChargingSession, error)
	// FindPending matches the protocol StartTransaction lookup:
	// (charge point, connector, id tag) in {Starting, Active}.
	FindPending(ctx context.Context, chargePointID string, connectorID int, idTag string) (*domain.ChargingSession, error)
	// FindByTransaction matches the protocol StopTransaction lookup.
	FindByTransaction(ctx context.Context, chargePointID string, transactionID int) (*domain.ChargingSession, error)
	// FindActiveOnConnector returns the single Active session on a connector.
	FindActiveOnConnector(ctx context.Context, chargePointID string, connectorID int) (*domain.ChargingSession, error)
	FindLiveByAccount(ctx context.Context, kind domain.AccountKind, accountID uint) (*domain.ChargingSession, error)
	FindAllLive(ctx context.Context) ([]domain.ChargingSession, error)
	FindHistoryByAccount(ctx context.Context, kind domain.AccountKind, accountID uint) ([]domain.ChargingSession, error)
}

type TransactionRepository interface {
	Create(ctx context.Context, tx *domain.ChargingTransaction) error
	FindByReference(ctx context.Context, reference string) (*domain.ChargingTransaction, error)
	FindBySession(ctx context.Context, sessionID string) (*domain.ChargingTransaction, error)
	FindByAccount(ctx context.Context, kind domain.AccountKind, accountID uint) ([]domain.ChargingTransaction, error)
}

type ServiceRepository interface {
	FindByID(ctx context.Context, id string) (*domain.ChargingService, error)
	// FindDefaultActive returns the first active rate plan by sort order,
	// or nil when none exists.
	FindDefaultActive(ctx context.Context) (*domain.ChargingService, error)
}

// AccountRepository is the single polymorphic lookup surface over the
// individual and business account tables.
type AccountRepository interface {
	FindByRef(ctx context.Context, ref domain.AccountRef) (*domain.Account, error)
	FindIndividualByNationalID(ctx context.Context, document string) (*domain.Account, error)
	FindIndividualByEmail(ctx context.Context, email string) (*domain.Account, error)
	FindBusinessByTaxID(ctx context.Context, document string) (*domain.Account, error)
	FindBusinessByEmail(ctx context.Context, email string) (*domain.Account, error)
	// Debit subtracts amount from the account balance. The caller is
	// responsible for capping; the repository never clamps.
	Debit(ctx context.Context, ref domain.AccountRef, amount float64) error
}

type OutboxRepository interface {
	Append(ctx context.Context, event *domain.OutboxEvent) error
	FindUnpublished(ctx context.Context, limit int) ([]domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, at time.Time) error
}
