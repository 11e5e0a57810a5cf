package postgres

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gridwatt/csms-core/internal/domain"
	"github.com/gridwatt/csms-core/internal/ports"
)

type ServiceRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewServiceRepository(db *gorm.DB, log *zap.Logger) ports.ServiceRepository {
	return &ServiceRepository{db: db, log: log}
}

func (r *ServiceRepository) FindByID(ctx context.Context, id string) (*domain.ChargingService, error) {
	var svc domain.ChargingService
	err := dbFor(ctx, r.db).First(&svc, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &svc, nil
}

func (r *ServiceRepository) FindDefaultActive(ctx context.Context) (*domain.ChargingService, error) {
	var svc domain.ChargingService
	err := dbFor(ctx, r.db).
		Where("active = ?", true).
		Order("sort_order asc").
		First(&svc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &svc, nil
}
