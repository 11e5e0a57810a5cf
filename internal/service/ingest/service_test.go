package ingest

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/gridwatt/csms-core/internal/domain"
	"github.com/gridwatt/csms-core/internal/mocks"
	"github.com/gridwatt/csms-core/internal/ports"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

type upsertCall struct {
	identifier   string
	maxConnector int
	status       *domain.ChargePointStatus
	heartbeat    bool
}

func captureUpserts(calls *[]upsertCall) *mocks.MockChargePointService {
	return &mocks.MockChargePointService{
		UpsertFromLogsFunc: func(ctx context.Context, identifier string, maxConnector int, status *domain.ChargePointStatus, heartbeat bool) error {
			*calls = append(*calls, upsertCall{identifier, maxConnector, status, heartbeat})
			return nil
		},
	}
}

func TestIngest_SingleUpsertPerChargePoint(t *testing.T) {
	// Arrange
	ctx := context.Background()
	var calls []upsertCall
	svc := NewService(captureUpserts(&calls), newTestLogger())

	batches := []ports.LogBatch{
		{
			ChargePointID: "SIM-001.log",
			Lines: []string{
				`{"event":"StatusNotification","fields":{"connectorId":2,"status":"Charging"}}`,
				`{"event":"Heartbeat"}`,
			},
		},
	}

	// Act
	touched, err := svc.Ingest(ctx, batches)

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if touched != 1 {
		t.Fatalf("expected 1 charge point touched, got %d", touched)
	}
	if len(calls) != 1 {
		t.Fatalf("expected exactly one upsert, got %d", len(calls))
	}
	call := calls[0]
	if call.identifier != "SIM-001" {
		t.Errorf("expected .log suffix stripped, got %s", call.identifier)
	}
	if call.maxConnector != 2 {
		t.Errorf("expected max connector 2, got %d", call.maxConnector)
	}
	if call.status == nil || *call.status != domain.ChargePointStatusOccupied {
		t.Errorf("expected Occupied, got %v", call.status)
	}
	if !call.heartbeat {
		t.Error("expected heartbeat observed")
	}
}

func TestIngest_MergesBatchesForSameIdentifier(t *testing.T) {
	// Arrange: "SIM-002" and "SIM-002.log" are the same charge point.
	ctx := context.Background()
	var calls []upsertCall
	svc := NewService(captureUpserts(&calls), newTestLogger())

	batches := []ports.LogBatch{
		{ChargePointID: "SIM-002", Lines: []string{`{"event":"StatusNotification","fields":{"connectorId":1,"status":"Available"}}`}},
		{ChargePointID: "SIM-002.LOG", Lines: []string{`{"event":"Heartbeat"}`}},
	}

	// Act
	touched, err := svc.Ingest(ctx, batches)

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if touched != 1 {
		t.Fatalf("expected 1 charge point touched, got %d", touched)
	}
	if len(calls) != 1 {
		t.Fatalf("expected one merged upsert, got %d", len(calls))
	}
	if !calls[0].heartbeat {
		t.Error("expected heartbeat carried across batches")
	}
}

func TestIngest_RegexFallbackOnFrameTail(t *testing.T) {
	// Arrange: a raw OCPP call frame pasted into a plain-text line.
	ctx := context.Background()
	var calls []upsertCall
	svc := NewService(captureUpserts(&calls), newTestLogger())

	batches := []ports.LogBatch{
		{
			ChargePointID: "SIM-003",
			Lines: []string{
				`recv [2,"a1b2","StatusNotification",{"connectorId":3,"status":"Faulted","errorCode":"GroundFailure"}]`,
			},
		},
	}

	// Act
	touched, err := svc.Ingest(ctx, batches)

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if touched != 1 {
		t.Fatalf("expected 1 charge point touched, got %d", touched)
	}
	call := calls[0]
	if call.maxConnector != 3 {
		t.Errorf("expected max connector 3, got %d", call.maxConnector)
	}
	if call.status == nil || *call.status != domain.ChargePointStatusFaulted {
		t.Errorf("expected Faulted, got %v", call.status)
	}
}

func TestIngest_BareMarkersCountAsHeartbeat(t *testing.T) {
	// Arrange
	ctx := context.Background()
	var calls []upsertCall
	svc := NewService(captureUpserts(&calls), newTestLogger())

	batches := []ports.LogBatch{
		{ChargePointID: "SIM-004", Lines: []string{"charge point connected", "Heartbeat received"}},
	}

	// Act
	if _, err := svc.Ingest(ctx, batches); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Assert
	if len(calls) != 1 || !calls[0].heartbeat {
		t.Fatal("expected bare markers to stamp a heartbeat")
	}
	if calls[0].status != nil {
		t.Errorf("expected no status from markers, got %v", *calls[0].status)
	}
}

func TestIngest_GarbageLinesNeverFatal(t *testing.T) {
	// Arrange
	ctx := context.Background()
	var calls []upsertCall
	svc := NewService(captureUpserts(&calls), newTestLogger())

	batches := []ports.LogBatch{
		{ChargePointID: "SIM-005", Lines: []string{"", "   ", "not json at all", "[malformed"}},
	}

	// Act
	touched, err := svc.Ingest(ctx, batches)

	// Assert: the charge point is still upserted, with an empty aggregate.
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if touched != 1 {
		t.Fatalf("expected 1 charge point touched, got %d", touched)
	}
	call := calls[0]
	if call.maxConnector != 0 || call.status != nil || call.heartbeat {
		t.Errorf("expected empty aggregate, got %+v", call)
	}
}

func TestIngest_LaterStatusWins(t *testing.T) {
	// Arrange
	ctx := context.Background()
	var calls []upsertCall
	svc := NewService(captureUpserts(&calls), newTestLogger())

	batches := []ports.LogBatch{
		{
			ChargePointID: "SIM-006",
			Lines: []string{
				`{"event":"StatusNotification","fields":{"connectorId":1,"status":"Charging"}}`,
				`{"event":"StatusNotification","fields":{"connectorId":1,"status":"Available"}}`,
			},
		},
	}

	// Act
	if _, err := svc.Ingest(ctx, batches); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Assert
	if calls[0].status == nil || *calls[0].status != domain.ChargePointStatusAvailable {
		t.Errorf("expected last status to win, got %v", calls[0].status)
	}
}

func TestIngest_EmptyIdentifierSkipped(t *testing.T) {
	// Arrange
	ctx := context.Background()
	var calls []upsertCall
	svc := NewService(captureUpserts(&calls), newTestLogger())

	// Act
	touched, err := svc.Ingest(ctx, []ports.LogBatch{{ChargePointID: "  ", Lines: []string{"Heartbeat"}}})

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if touched != 0 || len(calls) != 0 {
		t.Fatalf("expected nothing touched, got %d", touched)
	}
}
