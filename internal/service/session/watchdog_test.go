package session

import (
	"context"
	"testing"
	"time"

	"github.com/gridwatt/csms-core/internal/domain"
	"github.com/gridwatt/csms-core/internal/mocks"
	"github.com/gridwatt/csms-core/pkg/clock"
)

type watchdogFixture struct {
	sessions *mocks.MockSessionRepository
	accounts *mocks.MockAccountRepository
	services *mocks.MockServiceRepository
	ledger   *mocks.MockSessionService
	now      time.Time
}

func newWatchdogFixture() *watchdogFixture {
	return &watchdogFixture{
		sessions: &mocks.MockSessionRepository{},
		accounts: &mocks.MockAccountRepository{},
		services: &mocks.MockServiceRepository{},
		ledger:   &mocks.MockSessionService{},
		now:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *watchdogFixture) build() *Watchdog {
	return NewWatchdog(
		f.sessions, f.accounts, f.services, f.ledger,
		clock.Fixed{Instant: f.now}, time.Minute, newTestLogger(),
	)
}

func liveSession(id string, startedAt time.Time) domain.ChargingSession {
	return domain.ChargingSession{
		ID:                id,
		AccountKind:       domain.AccountKindIndividual,
		AccountID:         42,
		ChargingServiceID: "svc-1",
		Status:            domain.SessionStatusActive,
		StartedAt:         &startedAt,
	}
}

func TestSweep_StopsWhenEstimateExceedsBalance(t *testing.T) {
	// Arrange: 60 minutes at 10 kWh/h and 1.0/kWh estimates 10.0 vs balance 5.0.
	ctx := context.Background()
	f := newWatchdogFixture()
	f.sessions.FindAllLiveFunc = func(ctx context.Context) ([]domain.ChargingSession, error) {
		return []domain.ChargingSession{liveSession("sess-1", f.now.Add(-60*time.Minute))}, nil
	}
	f.accounts.FindByRefFunc = func(ctx context.Context, ref domain.AccountRef) (*domain.Account, error) {
		return &domain.Account{Kind: ref.Kind, ID: ref.ID, Balance: 5.0}, nil
	}
	f.services.FindByIDFunc = func(ctx context.Context, id string) (*domain.ChargingService, error) {
		return &domain.ChargingService{ID: id, RatePerKWh: 1.0, Active: true}, nil
	}

	var gotReason, gotNote string
	var gotCap bool
	f.ledger.ForceStopFunc = func(ctx context.Context, sessionID string, reason, note string, capDebit bool, actorID string) (*domain.ChargingSession, error) {
		gotReason, gotNote, gotCap = reason, note, capDebit
		return &domain.ChargingSession{ID: sessionID, Status: domain.SessionStatusCompleted}, nil
	}

	// Act
	stopped := f.build().Sweep(ctx)

	// Assert
	if stopped != 1 {
		t.Fatalf("expected 1 stop, got %d", stopped)
	}
	if gotReason != InsufficientCreditsReason {
		t.Errorf("expected reason %q, got %q", InsufficientCreditsReason, gotReason)
	}
	if gotNote != InsufficientCreditsNote {
		t.Errorf("expected note %q, got %q", InsufficientCreditsNote, gotNote)
	}
	if !gotCap {
		t.Error("expected watchdog stops to cap the debit")
	}
}

func TestSweep_StopsOnNearZeroBalance(t *testing.T) {
	// Arrange: balance under the floor stops regardless of the estimate.
	ctx := context.Background()
	f := newWatchdogFixture()
	f.sessions.FindAllLiveFunc = func(ctx context.Context) ([]domain.ChargingSession, error) {
		return []domain.ChargingSession{liveSession("sess-1", f.now.Add(-time.Minute))}, nil
	}
	f.accounts.FindByRefFunc = func(ctx context.Context, ref domain.AccountRef) (*domain.Account, error) {
		return &domain.Account{Kind: ref.Kind, ID: ref.ID, Balance: 0.5}, nil
	}
	f.ledger.ForceStopFunc = func(ctx context.Context, sessionID string, reason, note string, capDebit bool, actorID string) (*domain.ChargingSession, error) {
		return &domain.ChargingSession{ID: sessionID}, nil
	}

	// Act + Assert
	if stopped := f.build().Sweep(ctx); stopped != 1 {
		t.Fatalf("expected 1 stop, got %d", stopped)
	}
}

func TestSweep_SkipsHealthySessions(t *testing.T) {
	// Arrange: 6 minutes at 10 kWh/h and 1.0/kWh is 1.0, well under balance 100.
	ctx := context.Background()
	f := newWatchdogFixture()
	f.sessions.FindAllLiveFunc = func(ctx context.Context) ([]domain.ChargingSession, error) {
		return []domain.ChargingSession{liveSession("sess-1", f.now.Add(-6*time.Minute))}, nil
	}
	f.accounts.FindByRefFunc = func(ctx context.Context, ref domain.AccountRef) (*domain.Account, error) {
		return &domain.Account{Kind: ref.Kind, ID: ref.ID, Balance: 100}, nil
	}
	f.services.FindByIDFunc = func(ctx context.Context, id string) (*domain.ChargingService, error) {
		return &domain.ChargingService{ID: id, RatePerKWh: 1.0, Active: true}, nil
	}

	forceStops := 0
	f.ledger.ForceStopFunc = func(ctx context.Context, sessionID string, reason, note string, capDebit bool, actorID string) (*domain.ChargingSession, error) {
		forceStops++
		return nil, nil
	}

	// Act + Assert
	if stopped := f.build().Sweep(ctx); stopped != 0 {
		t.Fatalf("expected 0 stops, got %d", stopped)
	}
	if forceStops != 0 {
		t.Errorf("expected no force stops, got %d", forceStops)
	}
}

func TestSweep_ToleratesLostRace(t *testing.T) {
	// Arrange: the session completed between listing and the force stop.
	ctx := context.Background()
	f := newWatchdogFixture()
	f.sessions.FindAllLiveFunc = func(ctx context.Context) ([]domain.ChargingSession, error) {
		return []domain.ChargingSession{liveSession("sess-1", f.now.Add(-time.Hour))}, nil
	}
	f.accounts.FindByRefFunc = func(ctx context.Context, ref domain.AccountRef) (*domain.Account, error) {
		return &domain.Account{Kind: ref.Kind, ID: ref.ID, Balance: 0}, nil
	}
	f.ledger.ForceStopFunc = func(ctx context.Context, sessionID string, reason, note string, capDebit bool, actorID string) (*domain.ChargingSession, error) {
		return nil, domain.ErrPreconditionFailed
	}

	// Act + Assert
	if stopped := f.build().Sweep(ctx); stopped != 0 {
		t.Fatalf("expected 0 stops on lost race, got %d", stopped)
	}
}

func TestSweep_SkipsWhileInProgress(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newWatchdogFixture()
	listed := 0
	f.sessions.FindAllLiveFunc = func(ctx context.Context) ([]domain.ChargingSession, error) {
		listed++
		return nil, nil
	}
	w := f.build()

	// Act: hold the sweep lock and try to sweep concurrently.
	w.mu.Lock()
	stopped := w.Sweep(ctx)
	w.mu.Unlock()

	// Assert
	if stopped != 0 {
		t.Fatalf("expected overlapping sweep to bail, got %d", stopped)
	}
	if listed != 0 {
		t.Errorf("expected no listing during an in-progress sweep, got %d", listed)
	}
}
