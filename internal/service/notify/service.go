package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/gridwatt/csms-core/internal/adapter/queue"
	"github.com/gridwatt/csms-core/internal/domain"
	"github.com/gridwatt/csms-core/internal/ports"
)

// Service mails settlement receipts. It consumes committed session-stopped
// events from the queue, so a mail failure can never affect settlement.
type Service struct {
	mailer   Mailer
	accounts ports.AccountResolver
	log      *zap.Logger
}

func NewService(mailer Mailer, accounts ports.AccountResolver, log *zap.Logger) *Service {
	return &Service{mailer: mailer, accounts: accounts, log: log}
}

// Subscribe attaches the receipt handler to the session-stopped topic.
func (s *Service) Subscribe(mq queue.MessageQueue) error {
	return mq.Subscribe(domain.TopicSessionStopped, s.handleSessionStopped)
}

func (s *Service) handleSessionStopped(data []byte) error {
	var evt domain.SessionStoppedEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		s.log.Warn("Malformed session-stopped event", zap.Error(err))
		return nil
	}
	if evt.Session == nil || evt.Transaction == nil {
		return nil
	}

	ctx := context.Background()
	acc, err := s.accounts.Get(ctx, evt.Session.AccountRef())
	if err != nil || acc == nil || acc.Email == "" {
		return nil
	}

	subject := fmt.Sprintf("Charging receipt %s", evt.Transaction.Reference)
	body := fmt.Sprintf(
		"Your charging session has ended.\n\nReference: %s\nEnergy: %.3f kWh\nDuration: %.0f minutes\nAmount: %.2f %s\n",
		evt.Transaction.Reference,
		evt.Transaction.EnergyConsumed,
		evt.Transaction.DurationMinutes,
		evt.Transaction.TotalAmount,
		evt.Transaction.Currency,
	)
	if evt.Session.StopReason != "" {
		body += fmt.Sprintf("Stop reason: %s\n", evt.Session.StopReason)
	}

	if err := s.mailer.Send(ctx, acc.Email, subject, body); err != nil {
		s.log.Warn("Failed to send receipt mail",
			zap.String("reference", evt.Transaction.Reference),
			zap.Error(err),
		)
	}
	return nil
}
