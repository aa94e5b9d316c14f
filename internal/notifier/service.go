package notifier

import (
	"context"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/arpit8955/ecommerce/internal/kafka"
	"github.com/arpit8955/ecommerce/internal/orders"
)

type Deduper interface {
	MarkOnce(ctx context.Context, id string) (bool, error)
}

// Mailer delivers the payment confirmation. The default implementation only logs.
type Mailer interface {
	SendPaymentConfirmation(ctx context.Context, p orders.OrderPaidPayload) error
}

type Service struct {
	Dedup  Deduper
	Mailer Mailer
	Log    *zap.Logger
}

// HandleOrderPaid: dipasang sebagai handler consumer topic order.paid.
func (s *Service) HandleOrderPaid(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.DecodeEnvelope(m.Value)
	if err != nil {
		// pesan rusak tidak akan pernah sukses; commit saja
		s.Log.Error("drop undecodable message", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.EventType != orders.EventOrderPaid {
		return nil
	}

	// dedup via Redis (pakai event_id); Redis mati -> tetap kirim
	if s.Dedup != nil {
		first, err := s.Dedup.MarkOnce(ctx, env.EventID)
		if err != nil {
			s.Log.Warn("dedup unavailable", zap.String("event_id", env.EventID), zap.Error(err))
		} else if !first {
			s.Log.Debug("duplicate event ignored", zap.String("event_id", env.EventID))
			return nil
		}
	}

	p, err := kafkax.UnwrapPayload[orders.OrderPaidPayload](env.Payload)
	if err != nil {
		s.Log.Error("drop event with bad payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}
	return s.Mailer.SendPaymentConfirmation(ctx, p)
}

type LogMailer struct{ Log *zap.Logger }

func (l LogMailer) SendPaymentConfirmation(_ context.Context, p orders.OrderPaidPayload) error {
	l.Log.Info("QUEUE: dispatching payment confirmation email",
		zap.String("order_id", p.OrderID),
		zap.String("user_id", p.UserID),
		zap.String("transaction_id", p.TransactionID),
		zap.Int("amount_cents", p.AmountCents),
	)
	return nil
}
