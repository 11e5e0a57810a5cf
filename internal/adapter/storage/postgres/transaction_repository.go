package postgres

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gridwatt/csms-core/internal/domain"
	"github.com/gridwatt/csms-core/internal/ports"
)

type TransactionRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewTransactionRepository(db *gorm.DB, log *zap.Logger) ports.TransactionRepository {
	return &TransactionRepository{db: db, log: log}
}

// Create inserts the settlement record. The unique index on session_id makes
// a double settlement fail loudly instead of writing a second row.
func (r *TransactionRepository) Create(ctx context.Context, tx *domain.ChargingTransaction) error {
	return dbFor(ctx, r.db).Create(tx).Error
}

func (r *TransactionRepository) FindByReference(ctx context.Context, reference string) (*domain.ChargingTransaction, error) {
	return r.first(ctx, "reference = ?", reference)
}

func (r *TransactionRepository) FindBySession(ctx context.Context, sessionID string) (*domain.ChargingTransaction, error) {
	return r.first(ctx, "session_id = ?", sessionID)
}

func (r *TransactionRepository) FindByAccount(ctx context.Context, kind domain.AccountKind, accountID uint) ([]domain.ChargingTransaction, error) {
	var txs []domain.ChargingTransaction
	err := dbFor(ctx, r.db).
		Where("account_kind = ? AND account_id = ?", kind, accountID).
		Order("created_at desc").
		Find(&txs).Error
	return txs, err
}

func (r *TransactionRepository) first(ctx context.Context, query string, args ...interface{}) (*domain.ChargingTransaction, error) {
	var tx domain.ChargingTransaction
	err := dbFor(ctx, r.db).Where(query, args...).First(&tx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tx, nil
}
