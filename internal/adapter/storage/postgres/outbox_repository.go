package postgres

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gridwatt/csms-core/internal/domain"
	"github.com/gridwatt/csms-core/internal/ports"
)

type OutboxRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewOutboxRepository(db *gorm.DB, log *zap.Logger) ports.OutboxRepository {
	return &OutboxRepository{db: db, log: log}
}

func (r *OutboxRepository) Append(ctx context.Context, event *domain.OutboxEvent) error {
	return dbFor(ctx, r.db).Create(event).Error
}

// FindUnpublished locks the returned rows so concurrent drainers do not
// publish the same event twice.
func (r *OutboxRepository) FindUnpublished(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	var events []domain.OutboxEvent
	db := dbFor(ctx, r.db)
	if txFromContext(ctx) != nil {
		db = db.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	}
	err := db.
		Where("published_at IS NULL").
		Order("created_at asc").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, id string, at time.Time) error {
	return dbFor(ctx, r.db).
		Model(&domain.OutboxEvent{}).
		Where("id = ?", id).
		Update("published_at", at).Error
}
