package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Producer buffers messages in memory and writes them from one goroutine.
// Publishing never blocks the caller; a full buffer drops the message and logs it.
type Producer struct {
	w      *kafka.Writer
	log    *zap.Logger
	inbox  chan kafka.Message
	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

func NewProducer(brokers []string, buf int, log *zap.Logger) *Producer {
	if buf <= 0 {
		buf = 1024
	}
	if log == nil {
		log = zap.NewNop()
	}
	p := &Producer{
		log:    log,
		inbox:  make(chan kafka.Message, buf),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	p.w = &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{}, // key = order_id
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
		Async:                  true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				p.log.Error("kafka write failed", zap.Int("messages", len(msgs)), zap.Error(err))
			}
		},
	}
	return p
}

func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.doneCh)
		for {
			select {
			case m := <-p.inbox:
				p.write(m)
			case <-ctx.Done():
				p.flush()
				return
			case <-p.stopCh:
				p.flush()
				return
			}
		}
	}()
}

// Send enqueues m. It reports false when the buffer is full or the producer is closed.
func (p *Producer) Send(m kafka.Message) bool {
	if m.Time.IsZero() {
		m.Time = time.Now()
	}
	select {
	case <-p.stopCh:
		return false
	default:
	}
	select {
	case p.inbox <- m:
		return true
	default:
		p.log.Warn("kafka producer buffer full, dropping message",
			zap.String("topic", m.Topic),
			zap.ByteString("key", m.Key),
		)
		return false
	}
}

func (p *Producer) write(m kafka.Message) {
	if err := p.w.WriteMessages(context.Background(), m); err != nil {
		p.log.Error("kafka enqueue failed", zap.String("topic", m.Topic), zap.Error(err))
	}
}

// flush writes whatever is still buffered, then closes the writer.
func (p *Producer) flush() {
	for {
		select {
		case m := <-p.inbox:
			p.write(m)
		default:
			if err := p.w.Close(); err != nil {
				p.log.Error("kafka writer close", zap.Error(err))
			}
			return
		}
	}
}

// Close stops accepting messages; the goroutine flushes the rest and exits.
func (p *Producer) Close() { p.once.Do(func() { close(p.stopCh) }) }

// WaitClosed blocks until the flush has finished.
func (p *Producer) WaitClosed() { <-p.doneCh }
