package session

import (
	"context"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gridwatt/csms-core/internal/domain"
	"github.com/gridwatt/csms-core/internal/observability/telemetry"
	"github.com/gridwatt/csms-core/internal/ports"
	"github.com/gridwatt/csms-core/pkg/clock"
)

const (
	// Credit floors for the user-initiated lifecycle.
	startReserveCredits = 10.0
	resumeFloorCredits  = 5.0

	// Consumption model for meterless paths: 10 kWh per hour of elapsed
	// session time.
	simulatedKWhPerHour = 10.0

	// InsufficientCreditsReason is the stop reason used by the watchdog.
	InsufficientCreditsReason = "Insufficient credits"
	// InsufficientCreditsNote is the settlement note for watchdog stops.
	InsufficientCreditsNote = "Session automatically stopped due to insufficient credits"

	defaultStopReason = "Remote"
)

// Service owns the charging-session state machine. Every mutation runs
// inside one storage transaction: status check, session write, settlement
// insert and balance debit commit or roll back together, and events reach
// the outbox in the same transaction.
type Service struct {
	sessions ports.SessionRepository
	txRepo   ports.TransactionRepository
	services ports.ServiceRepository
	accounts ports.AccountRepository
	resolver ports.AccountResolver
	cps      ports.ChargePointService
	txm      ports.TxManager
	events   ports.EventRecorder
	clock    clock.Clock
	ids      clock.IDGenerator
	log      *zap.Logger
}

func NewService(
	sessions ports.SessionRepository,
	txRepo ports.TransactionRepository,
	services ports.ServiceRepository,
	accounts ports.AccountRepository,
	resolver ports.AccountResolver,
	cps ports.ChargePointService,
	txm ports.TxManager,
	events ports.EventRecorder,
	clk clock.Clock,
	ids clock.IDGenerator,
	log *zap.Logger,
) ports.SessionService {
	return &Service{
		sessions: sessions,
		txRepo:   txRepo,
		services: services,
		accounts: accounts,
		resolver: resolver,
		cps:      cps,
		txm:      txm,
		events:   events,
		clock:    clk,
		ids:      ids,
		log:      log,
	}
}

// ProtocolStart handles an inbound StartTransaction. A pending session on
// (charge point, connector, id tag) is activated; otherwise the id tag is
// resolved and a session auto-created against the default active rate plan.
func (s *Service) ProtocolStart(ctx context.Context, identifier string, connectorID int, idTag string, meterStart int64, inboundTxID *int) (*ports.ProtocolStartResult, error) {
	var result *ports.ProtocolStartResult
	err := s.txm.Do(ctx, func(ctx context.Context) error {
		cp, err := s.cps.GetByIdentifier(ctx, identifier)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		txID := s.ids.ProtocolTransactionID()
		if inboundTxID != nil && *inboundTxID != 0 {
			txID = *inboundTxID
		}

		sess, err := s.sessions.FindPending(ctx, cp.ID, connectorID, idTag)
		if err != nil {
			return err
		}
		if sess == nil {
			sess, err = s.autoCreateSession(ctx, cp, connectorID, idTag)
			if err != nil {
				return err
			}
		}

		sess.TransactionID = &txID
		sess.MeterStart = meterStart
		sess.StartedAt = &now
		sess.LastActivityAt = &now
		sess.Status = domain.SessionStatusActive
		if err := s.sessions.Save(ctx, sess); err != nil {
			return err
		}

		if err := s.cps.SetStatus(ctx, identifier, domain.ChargePointStatusOccupied); err != nil {
			return err
		}

		svc, err := s.services.FindByID(ctx, sess.ChargingServiceID)
		if err != nil {
			return err
		}
		if err := s.events.Record(ctx, domain.Event{
			Topic:      domain.TopicSessionStarted,
			AccountRef: sess.AccountRefString(),
			Payload:    domain.SessionStartedEvent{Session: sess, Service: svc, ChargePoint: cp},
			OccurredAt: now,
		}); err != nil {
			return err
		}

		result = &ports.ProtocolStartResult{Session: sess, TransactionID: txID}
		return nil
	})
	if err != nil {
		return nil, err
	}

	telemetry.SessionsStartedTotal.WithLabelValues("protocol").Inc()
	return result, nil
}

func (s *Service) autoCreateSession(ctx context.Context, cp *domain.ChargePoint, connectorID int, idTag string) (*domain.ChargingSession, error) {
	acc, err := s.resolveIDTag(ctx, idTag)
	if err != nil {
		return nil, err
	}

	svc, err := s.services.FindDefaultActive(ctx)
	if err != nil {
		return nil, err
	}
	if svc == nil {
		s.log.Warn("No active charging service for unsolicited StartTransaction",
			zap.String("charge_point", cp.Identifier))
		return nil, domain.ErrInvalidIdTag
	}

	return &domain.ChargingSession{
		ID:                uuid.New().String(),
		AccountKind:       acc.Kind,
		AccountID:         acc.ID,
		ChargingServiceID: svc.ID,
		ChargePointID:     cp.ID,
		ConnectorID:       connectorID,
		IdTag:             idTag,
		Status:            domain.SessionStatusStarting,
		OCPPData:          domain.JSONMap{},
	}, nil
}

// ProtocolStop settles a session from an inbound StopTransaction.
func (s *Service) ProtocolStop(ctx context.Context, identifier string, transactionID int, meterStop int64, reason string) (*domain.ChargingSession, error) {
	if reason == "" {
		reason = defaultStopReason
	}

	var out *domain.ChargingSession
	err := s.txm.Do(ctx, func(ctx context.Context) error {
		cp, err := s.cps.GetByIdentifier(ctx, identifier)
		if err != nil {
			return err
		}

		sess, err := s.sessions.FindByTransaction(ctx, cp.ID, transactionID)
		if err != nil {
			return err
		}
		if sess == nil || sess.Status.IsTerminal() {
			return domain.ErrNotFound
		}

		energy := float64(meterStop-sess.MeterStart) / 1000.0
		svc, err := s.services.FindByID(ctx, sess.ChargingServiceID)
		if err != nil {
			return err
		}
		rate := 0.0
		currency := ""
		if svc != nil {
			rate = svc.RatePerKWh
			currency = svc.Currency
		}
		cost := energy * rate

		sess.MeterStop = &meterStop
		sess.EnergyConsumed = math.Abs(energy)
		out = sess
		return s.settle(ctx, sess, cp, rate, currency, math.Abs(cost), reason, "", false)
	})
	if err != nil {
		return nil, err
	}

	telemetry.SessionsStoppedTotal.WithLabelValues("protocol").Inc()
	telemetry.EnergyDeliveredTotal.Add(out.EnergyConsumed)
	return out, nil
}

// RecordMeterValues updates the running energy figure for the single Active
// session on the connector. A missing session is not an error.
func (s *Service) RecordMeterValues(ctx context.Context, identifier string, connectorID int, reading *int64, raw interface{}) error {
	return s.txm.Do(ctx, func(ctx context.Context) error {
		cp, err := s.cps.GetByIdentifier(ctx, identifier)
		if err != nil {
			return err
		}

		sess, err := s.sessions.FindActiveOnConnector(ctx, cp.ID, connectorID)
		if err != nil {
			return err
		}
		if sess == nil {
			return nil
		}

		now := s.clock.Now()
		if reading != nil {
			sess.EnergyConsumed = math.Abs(float64(*reading-sess.MeterStart) / 1000.0)
		}
		sess.LastActivityAt = &now
		if err := s.sessions.Save(ctx, sess); err != nil {
			return err
		}

		return s.events.Record(ctx, domain.Event{
			Topic:      domain.TopicSessionUpdated,
			AccountRef: sess.AccountRefString(),
			Payload:    domain.SessionUpdatedEvent{Session: sess, MeterValues: raw},
			OccurredAt: now,
		})
	})
}

// Start begins a user-initiated session: no live session for the account,
// charge point Available, balance at least the start reserve.
func (s *Service) Start(ctx context.Context, ref domain.AccountRef, identifier string, connectorID int, serviceID string) (*domain.ChargingSession, error) {
	if connectorID <= 0 {
		connectorID = 1
	}

	var out *domain.ChargingSession
	err := s.txm.Do(ctx, func(ctx context.Context) error {
		acc, err := s.accounts.FindByRef(ctx, ref)
		if err != nil {
			return err
		}
		if acc == nil {
			return domain.ErrNotFound
		}
		if acc.Balance < startReserveCredits {
			return domain.ErrPreconditionFailed
		}

		live, err := s.sessions.FindLiveByAccount(ctx, ref.Kind, ref.ID)
		if err != nil {
			return err
		}
		if live != nil {
			return domain.ErrPreconditionFailed
		}

		cp, err := s.cps.GetByIdentifier(ctx, identifier)
		if err != nil {
			return err
		}
		if cp.Status != domain.ChargePointStatusAvailable {
			return domain.ErrPreconditionFailed
		}

		svc, err := s.pickService(ctx, serviceID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		sess := &domain.ChargingSession{
			ID:                uuid.New().String(),
			AccountKind:       ref.Kind,
			AccountID:         ref.ID,
			ChargingServiceID: svc.ID,
			ChargePointID:     cp.ID,
			ConnectorID:       connectorID,
			IdTag:             ref.String(),
			Status:            domain.SessionStatusActive,
			StartedAt:         &now,
			LastActivityAt:    &now,
			CreditsReserved:   startReserveCredits,
			OCPPData:          domain.JSONMap{},
		}
		if err := s.sessions.Save(ctx, sess); err != nil {
			return err
		}
		if err := s.cps.SetStatus(ctx, identifier, domain.ChargePointStatusOccupied); err != nil {
			return err
		}

		out = sess
		return s.events.Record(ctx, domain.Event{
			Topic:      domain.TopicSessionStarted,
			AccountRef: ref.String(),
			Payload:    domain.SessionStartedEvent{Session: sess, Service: svc, ChargePoint: cp},
			OccurredAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	telemetry.SessionsStartedTotal.WithLabelValues("user").Inc()
	return out, nil
}

func (s *Service) pickService(ctx context.Context, serviceID string) (*domain.ChargingService, error) {
	if serviceID != "" {
		svc, err := s.services.FindByID(ctx, serviceID)
		if err != nil {
			return nil, err
		}
		if svc == nil || !svc.Active {
			return nil, domain.ErrPreconditionFailed
		}
		return svc, nil
	}
	svc, err := s.services.FindDefaultActive(ctx)
	if err != nil {
		return nil, err
	}
	if svc == nil {
		return nil, domain.ErrPreconditionFailed
	}
	return svc, nil
}

func (s *Service) Pause(ctx context.Context, sessionID string) (*domain.ChargingSession, error) {
	return s.transition(ctx, sessionID, func(sess *domain.ChargingSession, _ *domain.Account) error {
		if !sess.CanPause() {
			return domain.ErrPreconditionFailed
		}
		sess.Status = domain.SessionStatusPaused
		return nil
	})
}

func (s *Service) Resume(ctx context.Context, sessionID string) (*domain.ChargingSession, error) {
	return s.transition(ctx, sessionID, func(sess *domain.ChargingSession, acc *domain.Account) error {
		if !sess.CanResume() {
			return domain.ErrPreconditionFailed
		}
		if acc == nil || acc.Balance < resumeFloorCredits {
			return domain.ErrPreconditionFailed
		}
		sess.Status = domain.SessionStatusActive
		return nil
	})
}

func (s *Service) transition(ctx context.Context, sessionID string, apply func(*domain.ChargingSession, *domain.Account) error) (*domain.ChargingSession, error) {
	var out *domain.ChargingSession
	err := s.txm.Do(ctx, func(ctx context.Context) error {
		sess, err := s.sessions.FindByIDForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if sess == nil {
			return domain.ErrNotFound
		}

		acc, err := s.accounts.FindByRef(ctx, domain.AccountRef{Kind: sess.AccountKind, ID: sess.AccountID})
		if err != nil {
			return err
		}
		if err := apply(sess, acc); err != nil {
			return err
		}

		now := s.clock.Now()
		sess.LastActivityAt = &now
		if err := s.sessions.Save(ctx, sess); err != nil {
			return err
		}

		out = sess
		return s.events.Record(ctx, domain.Event{
			Topic:      domain.TopicSessionUpdated,
			AccountRef: sess.AccountRefString(),
			Payload:    domain.SessionUpdatedEvent{Session: sess},
			OccurredAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Stop settles a user-initiated session. This path has no real meter, so
// consumption follows the simulated model and the debit is uncapped.
func (s *Service) Stop(ctx context.Context, sessionID string) (*domain.ChargingSession, error) {
	var out *domain.ChargingSession
	err := s.txm.Do(ctx, func(ctx context.Context) error {
		sess, err := s.sessions.FindByIDForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if sess == nil {
			return domain.ErrNotFound
		}
		if !sess.CanStop() {
			return domain.ErrPreconditionFailed
		}

		cp, rate, currency, cost, err := s.estimate(ctx, sess)
		if err != nil {
			return err
		}
		sess.EnergyConsumed = math.Abs(cost.energyKWh)

		out = sess
		return s.settle(ctx, sess, cp, rate, currency, math.Abs(cost.amount), "User stop", "", false)
	})
	if err != nil {
		return nil, err
	}

	telemetry.SessionsStoppedTotal.WithLabelValues("user").Inc()
	return out, nil
}

// ForceStop settles on behalf of the watchdog or an admin. The status is
// re-checked under the row lock so a session that completed concurrently is
// left alone.
func (s *Service) ForceStop(ctx context.Context, sessionID string, reason, note string, capDebit bool, actorID string) (*domain.ChargingSession, error) {
	var out *domain.ChargingSession
	err := s.txm.Do(ctx, func(ctx context.Context) error {
		sess, err := s.sessions.FindByIDForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if sess == nil {
			return domain.ErrNotFound
		}
		if !sess.CanStop() {
			// Lost the race against a concurrent stop.
			return domain.ErrPreconditionFailed
		}

		cp, rate, currency, cost, err := s.estimate(ctx, sess)
		if err != nil {
			return err
		}
		sess.EnergyConsumed = math.Abs(cost.energyKWh)

		if err := s.settle(ctx, sess, cp, rate, currency, math.Abs(cost.amount), reason, note, capDebit); err != nil {
			return err
		}

		out = sess
		if actorID == "" {
			return nil
		}
		return s.events.Record(ctx, domain.Event{
			Topic:      domain.TopicAdminSessionForceStop,
			AccountRef: sess.AccountRefString(),
			Payload:    domain.AdminForceStopEvent{Session: sess, ActorID: actorID, Reason: reason},
			OccurredAt: s.clock.Now(),
		})
	})
	if err != nil {
		return nil, err
	}

	telemetry.SessionsStoppedTotal.WithLabelValues("forced").Inc()
	return out, nil
}

type costEstimate struct {
	energyKWh float64
	amount    float64
}

// estimate computes the simulated consumption model for meterless paths:
// 10 kWh/hour of elapsed session time, priced at the session's rate plan.
func (s *Service) estimate(ctx context.Context, sess *domain.ChargingSession) (*domain.ChargePoint, float64, string, costEstimate, error) {
	cp, err := s.chargePointOf(ctx, sess)
	if err != nil {
		return nil, 0, "", costEstimate{}, err
	}

	svc, err := s.services.FindByID(ctx, sess.ChargingServiceID)
	if err != nil {
		return nil, 0, "", costEstimate{}, err
	}
	rate := 0.0
	currency := ""
	if svc != nil {
		rate = svc.RatePerKWh
		currency = svc.Currency
	}

	elapsedMinutes := 0.0
	if sess.StartedAt != nil {
		elapsedMinutes = s.clock.Now().Sub(*sess.StartedAt).Minutes()
	}
	energy := simulatedKWhPerHour * elapsedMinutes / 60.0
	return cp, rate, currency, costEstimate{energyKWh: energy, amount: energy * rate}, nil
}

func (s *Service) chargePointOf(ctx context.Context, sess *domain.ChargingSession) (*domain.ChargePoint, error) {
	return s.cps.GetByID(ctx, sess.ChargePointID)
}

// settle performs the single Completed transition: exactly one settlement
// record, one debit (capped when requested), charge point freed, stop event
// recorded. Negative intermediate arithmetic is stored as magnitudes.
func (s *Service) settle(ctx context.Context, sess *domain.ChargingSession, cp *domain.ChargePoint, rate float64, currency string, cost float64, reason, note string, capDebit bool) error {
	now := s.clock.Now()

	debit := cost
	if capDebit {
		acc, err := s.accounts.FindByRef(ctx, domain.AccountRef{Kind: sess.AccountKind, ID: sess.AccountID})
		if err != nil {
			return err
		}
		if acc != nil && debit > acc.Balance {
			debit = math.Max(acc.Balance, 0)
		}
	}

	startedAt := now
	if sess.StartedAt != nil {
		startedAt = *sess.StartedAt
	}
	duration := math.Abs(now.Sub(startedAt).Minutes())

	sess.Status = domain.SessionStatusCompleted
	sess.StoppedAt = &now
	sess.LastActivityAt = &now
	sess.CreditsUsed = math.Abs(debit)
	sess.StopReason = reason
	if err := s.sessions.Save(ctx, sess); err != nil {
		return err
	}

	tx := &domain.ChargingTransaction{
		ID:              uuid.New().String(),
		Reference:       s.ids.TransactionReference(now),
		SessionID:       sess.ID,
		AccountKind:     sess.AccountKind,
		AccountID:       sess.AccountID,
		ChargePointID:   sess.ChargePointID,
		StartedAt:       startedAt,
		StoppedAt:       now,
		DurationMinutes: duration,
		EnergyConsumed:  math.Abs(sess.EnergyConsumed),
		RatePerKWh:      rate,
		TotalAmount:     math.Abs(debit),
		Currency:        currency,
		Notes:           note,
	}
	if err := s.txRepo.Create(ctx, tx); err != nil {
		return err
	}

	if debit > 0 {
		ref := domain.AccountRef{Kind: sess.AccountKind, ID: sess.AccountID}
		if err := s.accounts.Debit(ctx, ref, debit); err != nil {
			return err
		}
	}

	if cp != nil {
		if err := s.cps.SetStatus(ctx, cp.Identifier, domain.ChargePointStatusAvailable); err != nil {
			return err
		}
	}

	return s.events.Record(ctx, domain.Event{
		Topic:      domain.TopicSessionStopped,
		AccountRef: sess.AccountRefString(),
		Payload:    domain.SessionStoppedEvent{Session: sess, Transaction: tx, ChargePoint: cp},
		OccurredAt: now,
	})
}

func (s *Service) Get(ctx context.Context, sessionID string) (*domain.ChargingSession, error) {
	sess, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, domain.ErrNotFound
	}
	return sess, nil
}

func (s *Service) GetLiveByAccount(ctx context.Context, ref domain.AccountRef) (*domain.ChargingSession, error) {
	return s.sessions.FindLiveByAccount(ctx, ref.Kind, ref.ID)
}

func (s *Service) ListLive(ctx context.Context) ([]domain.ChargingSession, error) {
	return s.sessions.FindAllLive(ctx)
}

func (s *Service) ListHistoryByAccount(ctx context.Context, ref domain.AccountRef) ([]domain.ChargingSession, error) {
	return s.sessions.FindHistoryByAccount(ctx, ref.Kind, ref.ID)
}

func (s *Service) resolveIDTag(ctx context.Context, idTag string) (*domain.Account, error) {
	if s.resolver == nil {
		return nil, domain.ErrInvalidIdTag
	}
	return s.resolver.ResolveIDTag(ctx, idTag)
}
