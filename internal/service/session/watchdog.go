package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gridwatt/csms-core/internal/domain"
	"github.com/gridwatt/csms-core/internal/observability/telemetry"
	"github.com/gridwatt/csms-core/internal/ports"
	"github.com/gridwatt/csms-core/pkg/clock"
)

const lowBalanceFloor = 1.0

// Watchdog periodically force-stops live sessions whose owner can no longer
// pay for them. Sweeps never overlap: a slow sweep makes the next tick a
// no-op instead of piling up.
type Watchdog struct {
	sessions ports.SessionRepository
	accounts ports.AccountRepository
	services ports.ServiceRepository
	ledger   ports.SessionService
	clock    clock.Clock
	interval time.Duration
	log      *zap.Logger

	mu sync.Mutex
}

func NewWatchdog(
	sessions ports.SessionRepository,
	accounts ports.AccountRepository,
	services ports.ServiceRepository,
	ledger ports.SessionService,
	clk clock.Clock,
	interval time.Duration,
	log *zap.Logger,
) *Watchdog {
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	return &Watchdog{
		sessions: sessions,
		accounts: accounts,
		services: services,
		ledger:   ledger,
		clock:    clk,
		interval: interval,
		log:      log,
	}
}

// Run blocks until ctx is done, sweeping on the configured interval.
// Callers start it in a goroutine.
func (w *Watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			go w.Sweep(ctx)
		}
	}
}

// Sweep evaluates all live sessions once. Returns the number of sessions
// force-stopped; a sweep already in progress returns immediately.
func (w *Watchdog) Sweep(ctx context.Context) int {
	if !w.mu.TryLock() {
		return 0
	}
	defer w.mu.Unlock()

	telemetry.WatchdogSweepsTotal.Inc()

	live, err := w.sessions.FindAllLive(ctx)
	if err != nil {
		w.log.Error("Watchdog failed to list live sessions", zap.Error(err))
		return 0
	}

	stopped := 0
	for i := range live {
		sess := &live[i]
		if !w.shouldStop(ctx, sess) {
			continue
		}

		_, err := w.ledger.ForceStop(ctx, sess.ID, InsufficientCreditsReason, InsufficientCreditsNote, true, "")
		if err != nil {
			// ErrPreconditionFailed means the session completed while we were
			// deciding; anything else is worth a log line.
			if err != domain.ErrPreconditionFailed {
				w.log.Error("Watchdog failed to force-stop session",
					zap.String("session_id", sess.ID),
					zap.Error(err),
				)
			}
			continue
		}

		stopped++
		telemetry.WatchdogForceStopsTotal.Inc()
		w.log.Info("Session force-stopped for insufficient credits",
			zap.String("session_id", sess.ID),
			zap.String("account", sess.AccountRefString()),
		)
	}
	return stopped
}

// shouldStop flags a session when the balance is nearly gone or the running
// estimate already exceeds it.
func (w *Watchdog) shouldStop(ctx context.Context, sess *domain.ChargingSession) bool {
	acc, err := w.accounts.FindByRef(ctx, sess.AccountRef())
	if err != nil || acc == nil {
		return false
	}
	if acc.Balance < lowBalanceFloor {
		return true
	}

	svc, err := w.services.FindByID(ctx, sess.ChargingServiceID)
	if err != nil || svc == nil {
		return false
	}

	elapsedMinutes := 0.0
	if sess.StartedAt != nil {
		elapsedMinutes = w.clock.Now().Sub(*sess.StartedAt).Minutes()
	}
	estimated := simulatedKWhPerHour * elapsedMinutes / 60.0 * svc.RatePerKWh
	return estimated > acc.Balance
}
