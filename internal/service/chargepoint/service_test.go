package chargepoint

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

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService(repo *mocks.MockChargePointRepository, events *mocks.MockEventRecorder) *Service {
	svc := NewService(repo, &mocks.MockTxManager{}, events, &mocks.MockCache{}, clock.Fixed{Instant: testNow}, newTestLogger())
	return svc.(*Service)
}

func TestRecordBoot_AutoCreatesSimulatedChargePoint(t *testing.T) {
	// Arrange
	ctx := context.Background()
	repo := &mocks.MockChargePointRepository{}
	var saved *domain.ChargePoint
	repo.SaveFunc = func(ctx context.Context, cp *domain.ChargePoint) error {
		saved = cp
		return nil
	}
	events := &mocks.MockEventRecorder{}
	svc := newTestService(repo, events)

	// Act
	cp, err := svc.RecordBoot(ctx, "SIM-009", "GridWatt", "SimulatorV1", "1.2.0")

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cp.Identifier != "SIM-009" {
		t.Errorf("expected identifier SIM-009, got %s", cp.Identifier)
	}
	if !cp.IsSimulation {
		t.Error("expected SIM- identifier to be flagged as simulation")
	}
	if cp.Status != domain.ChargePointStatusAvailable {
		t.Errorf("expected Available after boot, got %s", cp.Status)
	}
	if cp.LastHeartbeat == nil || !cp.LastHeartbeat.Equal(testNow) {
		t.Errorf("expected heartbeat stamped at %v, got %v", testNow, cp.LastHeartbeat)
	}
	if cp.FirmwareVersion != "1.2.0" {
		t.Errorf("expected firmware 1.2.0, got %s", cp.FirmwareVersion)
	}
	if saved == nil {
		t.Fatal("expected charge point persisted")
	}
	if len(events.Recorded) == 0 {
		t.Error("expected a status event recorded on boot")
	}
}

func TestApplyProtocolStatus_ConnectorOneFeedsAggregate(t *testing.T) {
	// Arrange
	ctx := context.Background()
	existing := &domain.ChargePoint{
		ID:             "cp-1",
		Identifier:     "CP-001",
		Status:         domain.ChargePointStatusAvailable,
		ConnectorCount: 2,
		Configuration:  domain.JSONMap{},
	}
	repo := &mocks.MockChargePointRepository{
		FindByIdentifierFunc: func(ctx context.Context, identifier string) (*domain.ChargePoint, error) {
			return existing, nil
		},
	}
	events := &mocks.MockEventRecorder{}
	svc := newTestService(repo, events)

	// Act
	if err := svc.ApplyProtocolStatus(ctx, "CP-001", 1, "Charging"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Assert: Charging collapses to the Occupied bucket.
	if existing.Status != domain.ChargePointStatusOccupied {
		t.Errorf("expected Occupied, got %s", existing.Status)
	}
	if len(events.Recorded) != 1 {
		t.Errorf("expected one status event, got %d", len(events.Recorded))
	}
}

func TestApplyProtocolStatus_HigherConnectorOnlyRaisesCount(t *testing.T) {
	// Arrange
	ctx := context.Background()
	existing := &domain.ChargePoint{
		ID:             "cp-1",
		Identifier:     "CP-001",
		Status:         domain.ChargePointStatusAvailable,
		ConnectorCount: 2,
		Configuration:  domain.JSONMap{},
	}
	repo := &mocks.MockChargePointRepository{
		FindByIdentifierFunc: func(ctx context.Context, identifier string) (*domain.ChargePoint, error) {
			return existing, nil
		},
	}
	events := &mocks.MockEventRecorder{}
	svc := newTestService(repo, events)

	// Act
	if err := svc.ApplyProtocolStatus(ctx, "CP-001", 4, "Faulted"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Assert: connector 4 raises the count but never the aggregate status.
	if existing.ConnectorCount != 4 {
		t.Errorf("expected connector count 4, got %d", existing.ConnectorCount)
	}
	if existing.Status != domain.ChargePointStatusAvailable {
		t.Errorf("expected status untouched, got %s", existing.Status)
	}
	if len(events.Recorded) != 0 {
		t.Errorf("expected no status event, got %d", len(events.Recorded))
	}
}

func TestApplyProtocolStatus_ConnectorCountNeverLowered(t *testing.T) {
	// Arrange
	ctx := context.Background()
	existing := &domain.ChargePoint{
		ID:             "cp-1",
		Identifier:     "CP-001",
		Status:         domain.ChargePointStatusAvailable,
		ConnectorCount: 3,
		Configuration:  domain.JSONMap{},
	}
	repo := &mocks.MockChargePointRepository{
		FindByIdentifierFunc: func(ctx context.Context, identifier string) (*domain.ChargePoint, error) {
			return existing, nil
		},
	}
	svc := newTestService(repo, &mocks.MockEventRecorder{})

	// Act
	if err := svc.ApplyProtocolStatus(ctx, "CP-001", 1, "Available"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Assert
	if existing.ConnectorCount != 3 {
		t.Errorf("expected connector count to stay 3, got %d", existing.ConnectorCount)
	}
}

func TestUpsertFromLogs_NoOpWhenNothingChanged(t *testing.T) {
	// Arrange
	ctx := context.Background()
	occupied := domain.ChargePointStatusOccupied
	existing := &domain.ChargePoint{
		ID:             "cp-1",
		Identifier:     "SIM-001",
		Status:         occupied,
		ConnectorCount: 2,
		Configuration:  domain.JSONMap{},
	}
	saves := 0
	repo := &mocks.MockChargePointRepository{
		FindByIdentifierFunc: func(ctx context.Context, identifier string) (*domain.ChargePoint, error) {
			return existing, nil
		},
		SaveFunc: func(ctx context.Context, cp *domain.ChargePoint) error {
			saves++
			return nil
		},
	}
	svc := newTestService(repo, &mocks.MockEventRecorder{})

	// Act: same status, lower connector max, no heartbeat.
	if err := svc.UpsertFromLogs(ctx, "SIM-001", 1, &occupied, false); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Assert
	if saves != 0 {
		t.Errorf("expected no write for a clean upsert, got %d", saves)
	}
}

func TestUpsertFromLogs_CreatesAndAppliesAggregate(t *testing.T) {
	// Arrange
	ctx := context.Background()
	var saved *domain.ChargePoint
	repo := &mocks.MockChargePointRepository{
		SaveFunc: func(ctx context.Context, cp *domain.ChargePoint) error {
			saved = cp
			return nil
		},
	}
	events := &mocks.MockEventRecorder{}
	svc := newTestService(repo, events)
	faulted := domain.ChargePointStatusFaulted

	// Act
	if err := svc.UpsertFromLogs(ctx, "SIM-007", 3, &faulted, true); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Assert
	if saved == nil {
		t.Fatal("expected charge point created")
	}
	if saved.ConnectorCount != 3 {
		t.Errorf("expected connector count 3, got %d", saved.ConnectorCount)
	}
	if saved.Status != domain.ChargePointStatusFaulted {
		t.Errorf("expected Faulted, got %s", saved.Status)
	}
	if saved.LastHeartbeat == nil {
		t.Error("expected heartbeat stamped")
	}
	if !saved.IsSimulation {
		t.Error("expected SIM- identifier flagged as simulation")
	}
	if len(events.Recorded) != 1 {
		t.Errorf("expected one status event, got %d", len(events.Recorded))
	}
}

func TestGetByIdentifier_Unknown(t *testing.T) {
	// Arrange
	ctx := context.Background()
	svc := newTestService(&mocks.MockChargePointRepository{}, &mocks.MockEventRecorder{})

	// Act + Assert
	if _, err := svc.GetByIdentifier(ctx, "CP-404"); err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
