package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yare-hub/classroom/internal/billing"
	"github.com/yare-hub/classroom/internal/models"
	"github.com/yare-hub/classroom/pkg/queue"
)

// LogStore records email delivery attempts.
type LogStore interface {
	Create(ctx context.Context, el *models.EmailLog) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// Enqueuer hands an email job to the worker.
type Enqueuer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// Service renders notification emails, logs them as pending and queues them for delivery.
type Service struct {
	logs   LogStore
	queue  Enqueuer
	logger *zap.Logger
}

var _ billing.Notifier = (*Service)(nil)

// NewService creates a notification service.
func NewService(logs LogStore, q Enqueuer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{logs: logs, queue: q, logger: logger}
}

// PaymentConfirmed queues the payment confirmation email for evt.
func (s *Service) PaymentConfirmed(ctx context.Context, evt billing.PaymentConfirmed) error {
	msg, err := renderConfirmation(evt)
	if err != nil {
		return err
	}
	entry := &models.EmailLog{
		Reference:      evt.Reference,
		EmailType:      models.EmailTypePaymentConfirmation,
		RecipientEmail: msg.To,
		Subject:        msg.Subject,
		Status:         models.EmailLogStatusPending,
	}
	if err := s.logs.Create(ctx, entry); err != nil {
		return fmt.Errorf("create email log: %w", err)
	}

	err = s.queue.EnqueueEmail(ctx, queue.EmailPayload{
		LogID:          entry.ID,
		EmailType:      entry.EmailType,
		Reference:      evt.Reference,
		RecipientEmail: msg.To,
		RecipientName:  msg.ToName,
		Subject:        msg.Subject,
		BodyHTML:       msg.HTML,
		BodyText:       msg.Text,
	})
	if err != nil {
		if mErr := s.logs.MarkFailed(ctx, entry.ID, "enqueue: "+err.Error()); mErr != nil {
			s.logger.Warn("mark email log failed", zap.String("log_id", entry.ID.String()), zap.Error(mErr))
		}
		return fmt.Errorf("enqueue email: %w", err)
	}
	s.logger.Info("payment confirmation queued", zap.String("reference", evt.Reference), zap.String("log_id", entry.ID.String()))
	return nil
}
