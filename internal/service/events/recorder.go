package events

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/gridwatt/csms-core/internal/domain"
	"github.com/gridwatt/csms-core/internal/ports"
	"github.com/gridwatt/csms-core/pkg/clock"
)

// Recorder appends domain events to the outbox. Callers invoke it inside
// their storage transaction, so the event row commits or rolls back together
// with the business mutation it describes.
type Recorder struct {
	outbox ports.OutboxRepository
	clock  clock.Clock
}

func NewRecorder(outbox ports.OutboxRepository, clk clock.Clock) ports.EventRecorder {
	return &Recorder{outbox: outbox, clock: clk}
}

func (r *Recorder) Record(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = r.clock.Now()
	}

	return r.outbox.Append(ctx, &domain.OutboxEvent{
		ID:         uuid.New().String(),
		Topic:      event.Topic,
		AccountRef: event.AccountRef,
		Payload:    payload,
		CreatedAt:  occurredAt,
	})
}
