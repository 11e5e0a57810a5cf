package session

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/gridwatt/csms-core/internal/domain"
	"github.com/gridwatt/csms-core/internal/mocks"
	"github.com/gridwatt/csms-core/pkg/clock"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

type stubIDGenerator struct {
	txID int
}

func (s stubIDGenerator) TransactionReference(now time.Time) string {
	return "TXN-OCPP-" + now.Format("20060102150405") + "-TEST"
}

func (s stubIDGenerator) ProtocolTransactionID() int { return s.txID }

type serviceFixture struct {
	sessions *mocks.MockSessionRepository
	txRepo   *mocks.MockTransactionRepository
	services *mocks.MockServiceRepository
	accounts *mocks.MockAccountRepository
	resolver *mocks.MockAccountResolver
	cps      *mocks.MockChargePointService
	events   *mocks.MockEventRecorder
	now      time.Time
}

func newServiceFixture() *serviceFixture {
	return &serviceFixture{
		sessions: &mocks.MockSessionRepository{},
		txRepo:   &mocks.MockTransactionRepository{},
		services: &mocks.MockServiceRepository{},
		accounts: &mocks.MockAccountRepository{},
		resolver: &mocks.MockAccountResolver{},
		cps:      &mocks.MockChargePointService{},
		events:   &mocks.MockEventRecorder{},
		now:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *serviceFixture) build() *Service {
	svc := NewService(
		f.sessions, f.txRepo, f.services, f.accounts,
		f.resolver, f.cps, &mocks.MockTxManager{}, f.events,
		clock.Fixed{Instant: f.now}, stubIDGenerator{txID: 4242}, newTestLogger(),
	)
	return svc.(*Service)
}

func TestProtocolStop_SettlesEnergyAndCost(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newServiceFixture()
	startedAt := f.now.Add(-30 * time.Minute)

	active := &domain.ChargingSession{
		ID:            "sess-1",
		AccountKind:   domain.AccountKindIndividual,
		AccountID:     42,
		ChargePointID: "cp-1",
		ConnectorID:   1,
		Status:        domain.SessionStatusActive,
		MeterStart:    0,
		StartedAt:     &startedAt,
	}

	f.cps.GetByIdentifierFunc = func(ctx context.Context, identifier string) (*domain.ChargePoint, error) {
		return &domain.ChargePoint{ID: "cp-1", Identifier: "CP-001"}, nil
	}
	f.sessions.FindByTransactionFunc = func(ctx context.Context, chargePointID string, transactionID int) (*domain.ChargingSession, error) {
		if chargePointID == "cp-1" && transactionID == 777 {
			return active, nil
		}
		return nil, nil
	}
	f.services.FindByIDFunc = func(ctx context.Context, id string) (*domain.ChargingService, error) {
		return &domain.ChargingService{ID: id, RatePerKWh: 40.0, Currency: "EUR", Active: true}, nil
	}

	var createdTx *domain.ChargingTransaction
	createCalls := 0
	f.txRepo.CreateFunc = func(ctx context.Context, tx *domain.ChargingTransaction) error {
		createCalls++
		createdTx = tx
		return nil
	}

	var debited float64
	f.accounts.DebitFunc = func(ctx context.Context, ref domain.AccountRef, amount float64) error {
		debited = amount
		return nil
	}

	var freedStatus domain.ChargePointStatus
	f.cps.SetStatusFunc = func(ctx context.Context, identifier string, status domain.ChargePointStatus) error {
		freedStatus = status
		return nil
	}

	// Act
	out, err := f.build().ProtocolStop(ctx, "CP-001", 777, 5000, "Remote")

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out.EnergyConsumed != 5.0 {
		t.Errorf("expected 5.0 kWh consumed, got %f", out.EnergyConsumed)
	}
	if out.Status != domain.SessionStatusCompleted {
		t.Errorf("expected Completed, got %s", out.Status)
	}
	if createCalls != 1 {
		t.Fatalf("expected exactly one settlement record, got %d", createCalls)
	}
	if createdTx.TotalAmount != 200.0 {
		t.Errorf("expected total 200.0, got %f", createdTx.TotalAmount)
	}
	if createdTx.EnergyConsumed != 5.0 {
		t.Errorf("expected 5.0 kWh on settlement, got %f", createdTx.EnergyConsumed)
	}
	if debited != 200.0 {
		t.Errorf("expected 200.0 debited, got %f", debited)
	}
	if freedStatus != domain.ChargePointStatusAvailable {
		t.Errorf("expected charge point freed to Available, got %s", freedStatus)
	}

	stopped := false
	for _, evt := range f.events.Recorded {
		if evt.Topic == domain.TopicSessionStopped {
			stopped = true
		}
	}
	if !stopped {
		t.Error("expected a session.stopped event")
	}
}

func TestProtocolStop_UnknownTransaction(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newServiceFixture()
	f.cps.GetByIdentifierFunc = func(ctx context.Context, identifier string) (*domain.ChargePoint, error) {
		return &domain.ChargePoint{ID: "cp-1", Identifier: "CP-001"}, nil
	}

	// Act
	_, err := f.build().ProtocolStop(ctx, "CP-001", 999, 1000, "")

	// Assert
	if err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProtocolStop_AlreadySettled(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newServiceFixture()
	f.cps.GetByIdentifierFunc = func(ctx context.Context, identifier string) (*domain.ChargePoint, error) {
		return &domain.ChargePoint{ID: "cp-1", Identifier: "CP-001"}, nil
	}
	f.sessions.FindByTransactionFunc = func(ctx context.Context, chargePointID string, transactionID int) (*domain.ChargingSession, error) {
		return &domain.ChargingSession{ID: "sess-1", Status: domain.SessionStatusCompleted}, nil
	}

	createCalls := 0
	f.txRepo.CreateFunc = func(ctx context.Context, tx *domain.ChargingTransaction) error {
		createCalls++
		return nil
	}

	// Act
	_, err := f.build().ProtocolStop(ctx, "CP-001", 777, 5000, "")

	// Assert
	if err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if createCalls != 0 {
		t.Errorf("expected no settlement on a settled session, got %d", createCalls)
	}
}

func TestProtocolStart_ActivatesPendingSession(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newServiceFixture()

	pending := &domain.ChargingSession{
		ID:                "sess-1",
		AccountKind:       domain.AccountKindIndividual,
		AccountID:         42,
		ChargingServiceID: "svc-1",
		ChargePointID:     "cp-1",
		ConnectorID:       1,
		IdTag:             "U-42",
		Status:            domain.SessionStatusStarting,
	}

	f.cps.GetByIdentifierFunc = func(ctx context.Context, identifier string) (*domain.ChargePoint, error) {
		return &domain.ChargePoint{ID: "cp-1", Identifier: "CP-001"}, nil
	}
	f.sessions.FindPendingFunc = func(ctx context.Context, chargePointID string, connectorID int, idTag string) (*domain.ChargingSession, error) {
		return pending, nil
	}
	f.services.FindByIDFunc = func(ctx context.Context, id string) (*domain.ChargingService, error) {
		return &domain.ChargingService{ID: id, RatePerKWh: 2.5, Active: true}, nil
	}

	var occupied bool
	f.cps.SetStatusFunc = func(ctx context.Context, identifier string, status domain.ChargePointStatus) error {
		occupied = status == domain.ChargePointStatusOccupied
		return nil
	}

	// Act
	result, err := f.build().ProtocolStart(ctx, "CP-001", 1, "U-42", 120, nil)

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.TransactionID != 4242 {
		t.Errorf("expected generated transaction id 4242, got %d", result.TransactionID)
	}
	if result.Session.Status != domain.SessionStatusActive {
		t.Errorf("expected Active, got %s", result.Session.Status)
	}
	if result.Session.MeterStart != 120 {
		t.Errorf("expected meter start 120, got %d", result.Session.MeterStart)
	}
	if !occupied {
		t.Error("expected charge point marked Occupied")
	}
}

func TestProtocolStart_KeepsInboundTransactionID(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newServiceFixture()
	f.cps.GetByIdentifierFunc = func(ctx context.Context, identifier string) (*domain.ChargePoint, error) {
		return &domain.ChargePoint{ID: "cp-1", Identifier: "CP-001"}, nil
	}
	f.sessions.FindPendingFunc = func(ctx context.Context, chargePointID string, connectorID int, idTag string) (*domain.ChargingSession, error) {
		return &domain.ChargingSession{ID: "sess-1", Status: domain.SessionStatusStarting}, nil
	}
	f.services.FindByIDFunc = func(ctx context.Context, id string) (*domain.ChargingService, error) {
		return &domain.ChargingService{ID: id, Active: true}, nil
	}

	inbound := 9001

	// Act
	result, err := f.build().ProtocolStart(ctx, "CP-001", 1, "U-42", 0, &inbound)

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.TransactionID != 9001 {
		t.Errorf("expected inbound transaction id 9001, got %d", result.TransactionID)
	}
}

func TestProtocolStart_InvalidIdTag(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newServiceFixture()
	f.cps.GetByIdentifierFunc = func(ctx context.Context, identifier string) (*domain.ChargePoint, error) {
		return &domain.ChargePoint{ID: "cp-1", Identifier: "CP-001"}, nil
	}

	saved := 0
	f.sessions.SaveFunc = func(ctx context.Context, s *domain.ChargingSession) error {
		saved++
		return nil
	}

	// Act: the default resolver mock rejects every tag.
	_, err := f.build().ProtocolStart(ctx, "CP-001", 1, "BOGUS", 0, nil)

	// Assert
	if err != domain.ErrInvalidIdTag {
		t.Fatalf("expected ErrInvalidIdTag, got %v", err)
	}
	if saved != 0 {
		t.Errorf("expected no session saved for a rejected tag, got %d", saved)
	}
}

func TestStart_RejectsLowBalance(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newServiceFixture()
	f.accounts.FindByRefFunc = func(ctx context.Context, ref domain.AccountRef) (*domain.Account, error) {
		return &domain.Account{Kind: ref.Kind, ID: ref.ID, Balance: 9.99}, nil
	}

	// Act
	_, err := f.build().Start(ctx, domain.AccountRef{Kind: domain.AccountKindIndividual, ID: 42}, "CP-001", 1, "")

	// Assert
	if err != domain.ErrPreconditionFailed {
		t.Fatalf("expected ErrPreconditionFailed, got %v", err)
	}
}

func TestStart_RejectsSecondLiveSession(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newServiceFixture()
	f.accounts.FindByRefFunc = func(ctx context.Context, ref domain.AccountRef) (*domain.Account, error) {
		return &domain.Account{Kind: ref.Kind, ID: ref.ID, Balance: 100}, nil
	}
	f.sessions.FindLiveByAccountFunc = func(ctx context.Context, kind domain.AccountKind, accountID uint) (*domain.ChargingSession, error) {
		return &domain.ChargingSession{ID: "sess-live", Status: domain.SessionStatusActive}, nil
	}

	// Act
	_, err := f.build().Start(ctx, domain.AccountRef{Kind: domain.AccountKindIndividual, ID: 42}, "CP-001", 1, "")

	// Assert
	if err != domain.ErrPreconditionFailed {
		t.Fatalf("expected ErrPreconditionFailed, got %v", err)
	}
}

func TestStart_RejectsBusyChargePoint(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newServiceFixture()
	f.accounts.FindByRefFunc = func(ctx context.Context, ref domain.AccountRef) (*domain.Account, error) {
		return &domain.Account{Kind: ref.Kind, ID: ref.ID, Balance: 100}, nil
	}
	f.cps.GetByIdentifierFunc = func(ctx context.Context, identifier string) (*domain.ChargePoint, error) {
		return &domain.ChargePoint{ID: "cp-1", Identifier: identifier, Status: domain.ChargePointStatusOccupied}, nil
	}

	// Act
	_, err := f.build().Start(ctx, domain.AccountRef{Kind: domain.AccountKindIndividual, ID: 42}, "CP-001", 1, "")

	// Assert
	if err != domain.ErrPreconditionFailed {
		t.Fatalf("expected ErrPreconditionFailed, got %v", err)
	}
}

func TestStart_CreatesActiveSession(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newServiceFixture()
	f.accounts.FindByRefFunc = func(ctx context.Context, ref domain.AccountRef) (*domain.Account, error) {
		return &domain.Account{Kind: ref.Kind, ID: ref.ID, Balance: 50}, nil
	}
	f.cps.GetByIdentifierFunc = func(ctx context.Context, identifier string) (*domain.ChargePoint, error) {
		return &domain.ChargePoint{ID: "cp-1", Identifier: identifier, Status: domain.ChargePointStatusAvailable}, nil
	}
	f.services.FindDefaultActiveFunc = func(ctx context.Context) (*domain.ChargingService, error) {
		return &domain.ChargingService{ID: "svc-1", RatePerKWh: 2.5, Active: true}, nil
	}

	// Act
	sess, err := f.build().Start(ctx, domain.AccountRef{Kind: domain.AccountKindIndividual, ID: 42}, "CP-001", 0, "")

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if sess.Status != domain.SessionStatusActive {
		t.Errorf("expected Active, got %s", sess.Status)
	}
	if sess.ConnectorID != 1 {
		t.Errorf("expected connector defaulted to 1, got %d", sess.ConnectorID)
	}
	if sess.CreditsReserved != startReserveCredits {
		t.Errorf("expected %f reserved, got %f", startReserveCredits, sess.CreditsReserved)
	}
	if sess.IdTag != "U-42" {
		t.Errorf("expected id tag U-42, got %s", sess.IdTag)
	}
}

func TestForceStop_CapsDebitAtBalance(t *testing.T) {
	// Arrange: 30 minutes at 10 kWh/h and 1.0/kWh costs 5.0, balance is 3.0.
	ctx := context.Background()
	f := newServiceFixture()
	startedAt := f.now.Add(-30 * time.Minute)

	f.sessions.FindByIDFunc = func(ctx context.Context, id string) (*domain.ChargingSession, error) {
		return &domain.ChargingSession{
			ID:                id,
			AccountKind:       domain.AccountKindIndividual,
			AccountID:         42,
			ChargingServiceID: "svc-1",
			ChargePointID:     "cp-1",
			Status:            domain.SessionStatusActive,
			StartedAt:         &startedAt,
		}, nil
	}
	f.cps.GetByIDFunc = func(ctx context.Context, id string) (*domain.ChargePoint, error) {
		return &domain.ChargePoint{ID: id, Identifier: "CP-001"}, nil
	}
	f.services.FindByIDFunc = func(ctx context.Context, id string) (*domain.ChargingService, error) {
		return &domain.ChargingService{ID: id, RatePerKWh: 1.0, Active: true}, nil
	}
	f.accounts.FindByRefFunc = func(ctx context.Context, ref domain.AccountRef) (*domain.Account, error) {
		return &domain.Account{Kind: ref.Kind, ID: ref.ID, Balance: 3.0}, nil
	}

	var debited float64
	f.accounts.DebitFunc = func(ctx context.Context, ref domain.AccountRef, amount float64) error {
		debited = amount
		return nil
	}

	// Act
	out, err := f.build().ForceStop(ctx, "sess-1", InsufficientCreditsReason, InsufficientCreditsNote, true, "")

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if debited != 3.0 {
		t.Errorf("expected debit capped at 3.0, got %f", debited)
	}
	if out.CreditsUsed != 3.0 {
		t.Errorf("expected credits used 3.0, got %f", out.CreditsUsed)
	}
	if out.StopReason != InsufficientCreditsReason {
		t.Errorf("expected stop reason %q, got %q", InsufficientCreditsReason, out.StopReason)
	}
	if out.EnergyConsumed != 5.0 {
		t.Errorf("expected 5.0 kWh estimated, got %f", out.EnergyConsumed)
	}
}

func TestForceStop_LostRace(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newServiceFixture()
	f.sessions.FindByIDFunc = func(ctx context.Context, id string) (*domain.ChargingSession, error) {
		return &domain.ChargingSession{ID: id, Status: domain.SessionStatusCompleted}, nil
	}

	// Act
	_, err := f.build().ForceStop(ctx, "sess-1", "Admin stop", "", false, "admin-1")

	// Assert
	if err != domain.ErrPreconditionFailed {
		t.Fatalf("expected ErrPreconditionFailed, got %v", err)
	}
}

func TestStop_DebitsFullEstimate(t *testing.T) {
	// Arrange: user stop is never capped, even past the balance.
	ctx := context.Background()
	f := newServiceFixture()
	startedAt := f.now.Add(-60 * time.Minute)

	f.sessions.FindByIDFunc = func(ctx context.Context, id string) (*domain.ChargingSession, error) {
		return &domain.ChargingSession{
			ID:                id,
			AccountKind:       domain.AccountKindIndividual,
			AccountID:         42,
			ChargingServiceID: "svc-1",
			ChargePointID:     "cp-1",
			Status:            domain.SessionStatusActive,
			StartedAt:         &startedAt,
		}, nil
	}
	f.cps.GetByIDFunc = func(ctx context.Context, id string) (*domain.ChargePoint, error) {
		return &domain.ChargePoint{ID: id, Identifier: "CP-001"}, nil
	}
	f.services.FindByIDFunc = func(ctx context.Context, id string) (*domain.ChargingService, error) {
		return &domain.ChargingService{ID: id, RatePerKWh: 2.0, Active: true}, nil
	}

	var debited float64
	f.accounts.DebitFunc = func(ctx context.Context, ref domain.AccountRef, amount float64) error {
		debited = amount
		return nil
	}

	// Act: 1 hour at 10 kWh/h and 2.0/kWh.
	out, err := f.build().Stop(ctx, "sess-1")

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if debited != 20.0 {
		t.Errorf("expected 20.0 debited, got %f", debited)
	}
	if out.StopReason != "User stop" {
		t.Errorf("expected stop reason User stop, got %q", out.StopReason)
	}
}

func TestPauseResume_Transitions(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newServiceFixture()
	state := &domain.ChargingSession{
		ID:          "sess-1",
		AccountKind: domain.AccountKindIndividual,
		AccountID:   42,
		Status:      domain.SessionStatusActive,
	}
	f.sessions.FindByIDFunc = func(ctx context.Context, id string) (*domain.ChargingSession, error) {
		return state, nil
	}
	f.accounts.FindByRefFunc = func(ctx context.Context, ref domain.AccountRef) (*domain.Account, error) {
		return &domain.Account{Kind: ref.Kind, ID: ref.ID, Balance: 50}, nil
	}
	svc := f.build()

	// Act + Assert
	out, err := svc.Pause(ctx, "sess-1")
	if err != nil {
		t.Fatalf("pause: expected no error, got %v", err)
	}
	if out.Status != domain.SessionStatusPaused {
		t.Errorf("expected Paused, got %s", out.Status)
	}

	out, err = svc.Resume(ctx, "sess-1")
	if err != nil {
		t.Fatalf("resume: expected no error, got %v", err)
	}
	if out.Status != domain.SessionStatusActive {
		t.Errorf("expected Active, got %s", out.Status)
	}

	// A second resume on an Active session is illegal.
	if _, err := svc.Resume(ctx, "sess-1"); err != domain.ErrPreconditionFailed {
		t.Errorf("expected ErrPreconditionFailed, got %v", err)
	}
}

func TestResume_RejectsLowBalance(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newServiceFixture()
	f.sessions.FindByIDFunc = func(ctx context.Context, id string) (*domain.ChargingSession, error) {
		return &domain.ChargingSession{ID: id, Status: domain.SessionStatusPaused}, nil
	}
	f.accounts.FindByRefFunc = func(ctx context.Context, ref domain.AccountRef) (*domain.Account, error) {
		return &domain.Account{Kind: ref.Kind, ID: ref.ID, Balance: 4.99}, nil
	}

	// Act
	_, err := f.build().Resume(ctx, "sess-1")

	// Assert
	if err != domain.ErrPreconditionFailed {
		t.Fatalf("expected ErrPreconditionFailed, got %v", err)
	}
}
