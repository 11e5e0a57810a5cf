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

type SessionRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewSessionRepository(db *gorm.DB, log *zap.Logger) ports.SessionRepository {
	return &SessionRepository{db: db, log: log}
}

func (r *SessionRepository) Save(ctx context.Context, s *domain.ChargingSession) error {
	return dbFor(ctx, r.db).Save(s).Error
}

func (r *SessionRepository) FindByID(ctx context.Context, id string) (*domain.ChargingSession, error) {
	return r.first(ctx, false, "id = ?", id)
}

func (r *SessionRepository) FindByIDForUpdate(ctx context.Context, id string) (*domain.ChargingSession, error) {
	return r.first(ctx, true, "id = ?", id)
}

func (r *SessionRepository) FindPending(ctx context.Context, chargePointID string, connectorID int, idTag string) (*domain.ChargingSession, error) {
	return r.first(ctx, true,
		"charge_point_id = ? AND connector_id = ? AND id_tag = ? AND status IN ?",
		chargePointID, connectorID, idTag,
		[]domain.SessionStatus{domain.SessionStatusStarting, domain.SessionStatusActive},
	)
}

func (r *SessionRepository) FindByTransaction(ctx context.Context, chargePointID string, transactionID int) (*domain.ChargingSession, error) {
	return r.first(ctx, true,
		"charge_point_id = ? AND transaction_id = ?", chargePointID, transactionID)
}

func (r *SessionRepository) FindActiveOnConnector(ctx context.Context, chargePointID string, connectorID int) (*domain.ChargingSession, error) {
	return r.first(ctx, true,
		"charge_point_id = ? AND connector_id = ? AND status = ?",
		chargePointID, connectorID, domain.SessionStatusActive)
}

func (r *SessionRepository) FindLiveByAccount(ctx context.Context, kind domain.AccountKind, accountID uint) (*domain.ChargingSession, error) {
	return r.first(ctx, false,
		"account_kind = ? AND account_id = ? AND status IN ?",
		kind, accountID, domain.LiveSessionStatuses)
}

func (r *SessionRepository) FindAllLive(ctx context.Context) ([]domain.ChargingSession, error) {
	var sessions []domain.ChargingSession
	err := dbFor(ctx, r.db).
		Where("status IN ?", []domain.SessionStatus{domain.SessionStatusActive, domain.SessionStatusPaused}).
		Order("created_at asc").
		Find(&sessions).Error
	return sessions, err
}

func (r *SessionRepository) FindHistoryByAccount(ctx context.Context, kind domain.AccountKind, accountID uint) ([]domain.ChargingSession, error) {
	var sessions []domain.ChargingSession
	err := dbFor(ctx, r.db).
		Where("account_kind = ? AND account_id = ?", kind, accountID).
		Order("created_at desc").
		Find(&sessions).Error
	return sessions, err
}

func (r *SessionRepository) first(ctx context.Context, forUpdate bool, query string, args ...interface{}) (*domain.ChargingSession, error) {
	db := dbFor(ctx, r.db)
	if forUpdate && txFromContext(ctx) != nil {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var s domain.ChargingSession
	err := db.Where(query, args...).Order("created_at asc").First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}
