package postgres

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gridwatt/csms-core/internal/domain"
	"github.com/gridwatt/csms-core/internal/ports"
)

type ChargePointRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewChargePointRepository(db *gorm.DB, log *zap.Logger) ports.ChargePointRepository {
	return &ChargePointRepository{db: db, log: log}
}

func (r *ChargePointRepository) Save(ctx context.Context, cp *domain.ChargePoint) error {
	if err := dbFor(ctx, r.db).Save(cp).Error; err != nil {
		r.log.Error("Failed to save charge point",
			zap.String("identifier", cp.Identifier),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (r *ChargePointRepository) FindByID(ctx context.Context, id string) (*domain.ChargePoint, error) {
	var cp domain.ChargePoint
	err := dbFor(ctx, r.db).First(&cp, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cp, nil
}

func (r *ChargePointRepository) FindByIdentifier(ctx context.Context, identifier string) (*domain.ChargePoint, error) {
	return r.findByIdentifier(ctx, identifier, false)
}

func (r *ChargePointRepository) FindByIdentifierForUpdate(ctx context.Context, identifier string) (*domain.ChargePoint, error) {
	return r.findByIdentifier(ctx, identifier, true)
}

func (r *ChargePointRepository) findByIdentifier(ctx context.Context, identifier string, forUpdate bool) (*domain.ChargePoint, error) {
	query := dbFor(ctx, r.db)
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var cp domain.ChargePoint
	err := query.First(&cp, "identifier = ?", identifier).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cp, nil
}

func (r *ChargePointRepository) FindAll(ctx context.Context, filter map[string]interface{}) ([]domain.ChargePoint, error) {
	var cps []domain.ChargePoint
	query := dbFor(ctx, r.db)
	if status, ok := filter["status"]; ok {
		query = query.Where("status = ?", status)
	}
	if sim, ok := filter["is_simulation"]; ok {
		query = query.Where("is_simulation = ?", sim)
	}

	if err := query.Order("identifier asc").Find(&cps).Error; err != nil {
		return nil, err
	}
	return cps, nil
}
