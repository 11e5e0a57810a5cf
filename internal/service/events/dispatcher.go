package events

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/gridwatt/csms-core/internal/adapter/queue"
	"github.com/gridwatt/csms-core/internal/domain"
	"github.com/gridwatt/csms-core/internal/observability/telemetry"
	"github.com/gridwatt/csms-core/internal/ports"
	"github.com/gridwatt/csms-core/pkg/clock"
)

const drainBatchSize = 100

// Dispatcher drains committed outbox rows and fans them out: once to the
// message queue under the event topic, once to the websocket broadcaster.
// Delivery failures leave the row unpublished for the next drain; they never
// touch the business state the event describes.
type Dispatcher struct {
	outbox      ports.OutboxRepository
	mq          queue.MessageQueue
	broadcaster ports.Broadcaster
	clock       clock.Clock
	interval    time.Duration
	log         *zap.Logger
}

func NewDispatcher(
	outbox ports.OutboxRepository,
	mq queue.MessageQueue,
	broadcaster ports.Broadcaster,
	clk clock.Clock,
	interval time.Duration,
	log *zap.Logger,
) *Dispatcher {
	if interval <= 0 {
		interval = time.Second
	}
	return &Dispatcher{
		outbox:      outbox,
		mq:          mq,
		broadcaster: broadcaster,
		clock:       clk,
		interval:    interval,
		log:         log,
	}
}

// Run blocks until ctx is done, draining on the configured interval.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.Drain(ctx); err != nil {
				d.log.Error("Outbox drain failed", zap.Error(err))
			}
		}
	}
}

// Drain publishes one batch of unpublished events in creation order.
func (d *Dispatcher) Drain(ctx context.Context) error {
	pending, err := d.outbox.FindUnpublished(ctx, drainBatchSize)
	if err != nil {
		return err
	}

	for i := range pending {
		row := &pending[i]
		if err := d.publish(row); err != nil {
			d.log.Warn("Event publish failed, will retry",
				zap.String("event_id", row.ID),
				zap.String("topic", row.Topic),
				zap.Error(err),
			)
			continue
		}
		if err := d.outbox.MarkPublished(ctx, row.ID, d.clock.Now()); err != nil {
			return err
		}
		telemetry.OutboxPublishedTotal.WithLabelValues(row.Topic).Inc()
	}
	return nil
}

func (d *Dispatcher) publish(row *domain.OutboxEvent) error {
	if d.mq != nil {
		if err := d.mq.Publish(row.Topic, row.Payload); err != nil {
			return err
		}
	}
	if d.broadcaster != nil {
		d.broadcaster.Broadcast(domain.Event{
			Topic:      row.Topic,
			AccountRef: row.AccountRef,
			Payload:    json.RawMessage(row.Payload),
			OccurredAt: row.CreatedAt,
		})
	}
	return nil
}
