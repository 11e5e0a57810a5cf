package chargepoint

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gridwatt/csms-core/internal/domain"
	"github.com/gridwatt/csms-core/internal/ports"
	"github.com/gridwatt/csms-core/pkg/clock"
)

const snapshotTTL = 2 * time.Minute

// Service is the charge-point registry: lazy creation, status transitions
// and the aggregated upsert used by log ingestion.
type Service struct {
	repo   ports.ChargePointRepository
	txm    ports.TxManager
	events ports.EventRecorder
	cache  ports.Cache
	clock  clock.Clock
	log    *zap.Logger
}

func NewService(
	repo ports.ChargePointRepository,
	txm ports.TxManager,
	events ports.EventRecorder,
	cache ports.Cache,
	clk clock.Clock,
	log *zap.Logger,
) ports.ChargePointService {
	return &Service{repo: repo, txm: txm, events: events, cache: cache, clock: clk, log: log}
}

func (s *Service) GetByIdentifier(ctx context.Context, identifier string) (*domain.ChargePoint, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, cacheKey(identifier)); err == nil && raw != "" {
			var cp domain.ChargePoint
			if json.Unmarshal([]byte(raw), &cp) == nil {
				return &cp, nil
			}
		}
	}

	cp, err := s.repo.FindByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if cp == nil {
		return nil, domain.ErrNotFound
	}
	s.cacheSnapshot(ctx, cp)
	return cp, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*domain.ChargePoint, error) {
	cp, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cp == nil {
		return nil, domain.ErrNotFound
	}
	return cp, nil
}

func (s *Service) GetOrCreate(ctx context.Context, identifier string) (*domain.ChargePoint, error) {
	cp, err := s.repo.FindByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if cp != nil {
		return cp, nil
	}

	cp = s.newChargePoint(identifier)
	if err := s.repo.Save(ctx, cp); err != nil {
		return nil, err
	}
	s.log.Info("Charge point auto-created",
		zap.String("identifier", identifier),
		zap.Bool("is_simulation", cp.IsSimulation),
	)
	return cp, nil
}

func (s *Service) List(ctx context.Context, filter map[string]interface{}) ([]domain.ChargePoint, error) {
	return s.repo.FindAll(ctx, filter)
}

// RecordBoot marks the charge point Available and stamps firmware and
// heartbeat. Boot is never rejected at this layer.
func (s *Service) RecordBoot(ctx context.Context, identifier string, vendor, model, firmware string) (*domain.ChargePoint, error) {
	var out *domain.ChargePoint
	err := s.txm.Do(ctx, func(ctx context.Context) error {
		cp, err := s.GetOrCreate(ctx, identifier)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		cp.Status = domain.ChargePointStatusAvailable
		cp.FirmwareVersion = firmware
		cp.LastHeartbeat = &now
		if vendor != "" {
			cp.Configuration["vendor"] = vendor
		}
		if model != "" {
			cp.Configuration["model"] = model
		}
		if err := s.repo.Save(ctx, cp); err != nil {
			return err
		}

		out = cp
		return s.recordStatusEvent(ctx, cp, 0, string(domain.ChargePointStatusAvailable))
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, identifier)
	return out, nil
}

func (s *Service) RecordHeartbeat(ctx context.Context, identifier string) error {
	err := s.txm.Do(ctx, func(ctx context.Context) error {
		cp, err := s.GetOrCreate(ctx, identifier)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		cp.LastHeartbeat = &now
		return s.repo.Save(ctx, cp)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, identifier)
	return nil
}

// ApplyProtocolStatus maps and applies a StatusNotification.
func (s *Service) ApplyProtocolStatus(ctx context.Context, identifier string, connectorID int, rawStatus string) error {
	err := s.txm.Do(ctx, func(ctx context.Context) error {
		cp, err := s.GetOrCreate(ctx, identifier)
		if err != nil {
			return err
		}

		changed := s.applyStatus(cp, connectorID, rawStatus)
		if err := s.repo.Save(ctx, cp); err != nil {
			return err
		}
		if changed {
			return s.recordStatusEvent(ctx, cp, connectorID, rawStatus)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, identifier)
	return nil
}

// PushStatus is the out-of-band direct update. The status-pushed event is
// emitted even when the aggregate status did not change.
func (s *Service) PushStatus(ctx context.Context, identifier string, connectorID int, rawStatus string, at *time.Time) error {
	err := s.txm.Do(ctx, func(ctx context.Context) error {
		cp, err := s.GetOrCreate(ctx, identifier)
		if err != nil {
			return err
		}

		s.applyStatus(cp, connectorID, rawStatus)
		if at != nil {
			cp.UpdatedAt = *at
		}
		if err := s.repo.Save(ctx, cp); err != nil {
			return err
		}
		return s.recordStatusEvent(ctx, cp, connectorID, rawStatus)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, identifier)
	return nil
}

func (s *Service) SetStatus(ctx context.Context, identifier string, status domain.ChargePointStatus) error {
	err := s.txm.Do(ctx, func(ctx context.Context) error {
		cp, err := s.repo.FindByIdentifierForUpdate(ctx, identifier)
		if err != nil {
			return err
		}
		if cp == nil {
			return domain.ErrNotFound
		}
		if cp.Status == status {
			return nil
		}
		cp.Status = status
		if err := s.repo.Save(ctx, cp); err != nil {
			return err
		}
		return s.recordStatusEvent(ctx, cp, 1, string(status))
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, identifier)
	return nil
}

// UpsertFromLogs applies one aggregated write per charge point per batch.
func (s *Service) UpsertFromLogs(ctx context.Context, identifier string, maxConnector int, status *domain.ChargePointStatus, heartbeat bool) error {
	err := s.txm.Do(ctx, func(ctx context.Context) error {
		cp, err := s.repo.FindByIdentifierForUpdate(ctx, identifier)
		if err != nil {
			return err
		}

		dirty := false
		if cp == nil {
			cp = s.newChargePoint(identifier)
			if maxConnector > cp.ConnectorCount {
				cp.ConnectorCount = maxConnector
			}
			dirty = true
		} else if maxConnector > cp.ConnectorCount {
			cp.ConnectorCount = maxConnector
			dirty = true
		}

		statusChanged := false
		if status != nil && cp.Status != *status {
			cp.Status = *status
			dirty = true
			statusChanged = true
		}
		if heartbeat {
			now := s.clock.Now()
			cp.LastHeartbeat = &now
			dirty = true
		}

		if !dirty {
			return nil
		}
		if err := s.repo.Save(ctx, cp); err != nil {
			return err
		}
		if statusChanged {
			return s.recordStatusEvent(ctx, cp, 1, string(cp.Status))
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, identifier)
	return nil
}

// applyStatus applies the connector-1 rule: only connector 1 (or the
// station-level connector 0) feeds the aggregate status. Connector counts
// are raised, never lowered.
func (s *Service) applyStatus(cp *domain.ChargePoint, connectorID int, rawStatus string) bool {
	if connectorID > cp.ConnectorCount {
		cp.ConnectorCount = connectorID
	}
	if connectorID > 1 {
		return false
	}
	mapped := domain.MapOCPPStatus(rawStatus)
	if cp.Status == mapped {
		return false
	}
	cp.Status = mapped
	return true
}

func (s *Service) recordStatusEvent(ctx context.Context, cp *domain.ChargePoint, connectorID int, rawStatus string) error {
	return s.events.Record(ctx, domain.Event{
		Topic: domain.TopicChargePointStatus,
		Payload: domain.ChargePointStatusEvent{
			ChargePoint: cp,
			ConnectorID: connectorID,
			RawStatus:   rawStatus,
		},
		OccurredAt: s.clock.Now(),
	})
}

func (s *Service) newChargePoint(identifier string) *domain.ChargePoint {
	return &domain.ChargePoint{
		ID:             uuid.New().String(),
		Identifier:     identifier,
		Name:           identifier,
		Status:         domain.ChargePointStatusAvailable,
		ConnectorCount: 1,
		IsSimulation:   isSimulationIdentifier(identifier),
		Configuration:  domain.JSONMap{},
	}
}

func isSimulationIdentifier(identifier string) bool {
	return len(identifier) >= 4 && identifier[:4] == "SIM-"
}

func cacheKey(identifier string) string { return "chargepoint:" + identifier }

func (s *Service) cacheSnapshot(ctx context.Context, cp *domain.ChargePoint) {
	if s.cache == nil {
		return
	}
	if raw, err := json.Marshal(cp); err == nil {
		if err := s.cache.Set(ctx, cacheKey(cp.Identifier), string(raw), snapshotTTL); err != nil {
			s.log.Debug("Failed to cache charge point snapshot", zap.Error(err))
		}
	}
}

func (s *Service) invalidate(ctx context.Context, identifier string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cacheKey(identifier)); err != nil {
		s.log.Debug("Failed to invalidate charge point cache", zap.Error(err))
	}
}
