package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/arpit8955/ecommerce/internal/orders"
)

type memDedup struct {
	seen map[string]bool
	err  error
}

func (d *memDedup) MarkOnce(_ context.Context, id string) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	if d.seen[id] {
		return false, nil
	}
	d.seen[id] = true
	return true, nil
}

type recordingMailer struct{ sent []orders.OrderPaidPayload }

func (m *recordingMailer) SendPaymentConfirmation(_ context.Context, p orders.OrderPaidPayload) error {
	m.sent = append(m.sent, p)
	return nil
}

func message(t *testing.T, eventID, eventType string, payload any) kafkago.Message {
	t.Helper()
	raw, _ := json.Marshal(payload)
	b, err := json.Marshal(orders.Envelope{EventID: eventID, EventType: eventType, EventVersion: 1, Payload: raw})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return kafkago.Message{Value: b}
}

func TestHandleOrderPaid(t *testing.T) {
	mailer := &recordingMailer{}
	svc := &Service{Dedup: &memDedup{seen: map[string]bool{}}, Mailer: mailer, Log: zap.NewNop()}
	ctx := context.Background()

	paid := message(t, "e-1", orders.EventOrderPaid, orders.OrderPaidPayload{OrderID: "o-1", TransactionID: "mock_tx_a"})
	if err := svc.HandleOrderPaid(ctx, paid); err != nil {
		t.Fatalf("handle: %v", err)
	}
	// redelivery of the same event
	if err := svc.HandleOrderPaid(ctx, paid); err != nil {
		t.Fatalf("handle again: %v", err)
	}
	if err := svc.HandleOrderPaid(ctx, message(t, "e-2", orders.EventOrderCreated, orders.OrderCreatedPayload{})); err != nil {
		t.Fatalf("other event: %v", err)
	}
	if err := svc.HandleOrderPaid(ctx, kafkago.Message{Value: []byte("not json")}); err != nil {
		t.Fatalf("poison message must be committed, got %v", err)
	}

	if len(mailer.sent) != 1 || mailer.sent[0].TransactionID != "mock_tx_a" {
		t.Fatalf("sent = %+v", mailer.sent)
	}
}

func TestHandleOrderPaid_DedupDown(t *testing.T) {
	mailer := &recordingMailer{}
	svc := &Service{Dedup: &memDedup{err: errors.New("redis down")}, Mailer: mailer, Log: zap.NewNop()}

	m := message(t, "e-1", orders.EventOrderPaid, orders.OrderPaidPayload{OrderID: "o-1"})
	if err := svc.HandleOrderPaid(context.Background(), m); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("notification should still go out")
	}
}
