package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/gridwatt/csms-core/internal/ports"
)

type txContextKey struct{}

// TxManager implements ports.TxManager on top of gorm transactions. The
// open transaction travels in the context so repositories join it
// transparently.
type TxManager struct {
	db *gorm.DB
}

func NewTxManager(db *gorm.DB) ports.TxManager {
	return &TxManager{db: db}
}

func (m *TxManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		// Already inside a transaction; join it.
		return fn(ctx)
	}
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txContextKey{}, tx))
	})
}

func txFromContext(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txContextKey{}).(*gorm.DB); ok {
		return tx
	}
	return nil
}

// dbFor returns the transaction bound to ctx when present, else the root
// connection.
func dbFor(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return db.WithContext(ctx)
}
