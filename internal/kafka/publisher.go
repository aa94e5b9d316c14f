package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/arpit8955/ecommerce/internal/orders"
)

type sender interface {
	Send(m kafka.Message) bool
}

// EventPublisher turns order envelopes into Kafka messages keyed by order id.
// The current trace context travels in the message headers.
type EventPublisher struct {
	out sender
	log *zap.Logger
}

func NewEventPublisher(out sender, log *zap.Logger) *EventPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &EventPublisher{out: out, log: log}
}

func (p *EventPublisher) Publish(ctx context.Context, topic string, env orders.Envelope) {
	b, err := json.Marshal(env)
	if err != nil {
		p.log.Error("marshal envelope", zap.String("event_type", env.EventType), zap.Error(err))
		return
	}

	headers := []kafka.Header{
		{Key: "event_type", Value: []byte(env.EventType)},
		{Key: "event_id", Value: []byte(env.EventID)},
	}
	headers = append(headers, InjectHeaders(ctx)...)

	if !p.out.Send(kafka.Message{
		Topic:   topic,
		Key:     orders.PartitionKey(env.CorrelationID),
		Value:   b,
		Headers: headers,
		Time:    env.OccurredAt,
	}) {
		p.log.Warn("event not published",
			zap.String("event_type", env.EventType),
			zap.String("order_id", env.CorrelationID),
		)
	}
}

func InjectHeaders(ctx context.Context) []kafka.Header {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	out := make([]kafka.Header, 0, len(carrier))
	for k, v := range carrier {
		out = append(out, kafka.Header{Key: k, Value: []byte(v)})
	}
	return out
}

// ContextFromMessage returns ctx carrying the producer's trace context, if any.
func ContextFromMessage(ctx context.Context, m kafka.Message) context.Context {
	carrier := propagation.MapCarrier{}
	for _, h := range m.Headers {
		carrier[h.Key] = string(h.Value)
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
