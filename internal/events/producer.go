package events

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/MikeMC777/motodetail-shop/internal/order"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const (
	maxBackoff = 30 * time.Second
	// closeAttempts bounds the writes of a failing message once Close was called.
	closeAttempts = 3
)

// Producer hands messages to a background goroutine so request handlers never wait on Kafka.
// A failed write is retried with backoff until it succeeds or the producer is closed.
type Producer struct {
	w       messageWriter
	service string
	inbox   chan kafka.Message
	done    chan struct{}
	stop    chan struct{}
	retry   time.Duration

	stopOnce sync.Once
	mu       sync.RWMutex
	closed   bool
}

func NewProducer(brokers []string, service string, buf int) *Producer {
	return newProducer(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}, service, buf)
}

func newProducer(w messageWriter, service string, buf int) *Producer {
	return &Producer{
		w:       w,
		service: service,
		inbox:   make(chan kafka.Message, buf),
		done:    make(chan struct{}),
		stop:    make(chan struct{}),
		retry:   500 * time.Millisecond,
	}
}

// Start runs the write loop until Close drains the inbox.
func (p *Producer) Start() {
	go func() {
		defer close(p.done)
		for m := range p.inbox {
			p.write(m)
		}
		if err := p.w.Close(); err != nil {
			log.Printf("[events] close writer: %v", err)
		}
	}()
}

func (p *Producer) write(m kafka.Message) {
	backoff := p.retry
	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := p.w.WriteMessages(ctx, m)
		cancel()
		if err == nil {
			return
		}
		log.Printf("[events] write topic=%s key=%s attempt=%d: %v", m.Topic, m.Key, attempt, err)

		select {
		case <-p.stop:
			if attempt >= closeAttempts {
				log.Printf("[events] dropping topic=%s key=%s: producer closed", m.Topic, m.Key)
				return
			}
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// Publish queues a message. After Close it is logged and dropped.
func (p *Producer) Publish(topic string, key, value []byte, headers ...kafka.Header) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		log.Printf("[events] publish after close topic=%s key=%s", topic, key)
		return
	}
	p.inbox <- kafka.Message{
		Topic:   topic,
		Key:     key,
		Value:   value,
		Time:    time.Now(),
		Headers: headers,
	}
}

// Close stops accepting messages and waits until the queued ones were written
// or, for a broker that keeps failing, dropped after closeAttempts tries.
func (p *Producer) Close() {
	// stop first: a Publish blocked on a full inbox holds the read lock until the loop drains.
	p.stopOnce.Do(func() { close(p.stop) })
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
	p.mu.Unlock()
	<-p.done
}

func (p *Producer) publishEnvelope(topic string, ev Envelope) {
	p.Publish(topic, []byte(ev.CorrelationID), MustMarshal(ev),
		kafka.Header{Key: "x-event-type", Value: []byte(ev.EventType)},
		kafka.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

// OrderPaid publishes the paid event of o.
func (p *Producer) OrderPaid(_ context.Context, o *order.Order, items []order.Item) {
	p.publishEnvelope(TopicOrderPaid, newEnvelope(EventOrderPaid, p.service, o.ID, OrderPaidPayload{
		OrderID:         o.ID,
		PaymentMethod:   string(o.PaymentMethod),
		Total:           o.Total.StringFixed(2),
		Customer:        o.Customer,
		PaymentIntentID: o.PaymentIntentID,
		PaidAt:          o.PaidAt,
		Items:           itemLines(items),
	}))
}

// PaymentFailed publishes the failure event of o.
func (p *Producer) PaymentFailed(_ context.Context, o *order.Order, reason string) {
	p.publishEnvelope(TopicPaymentFailed, newEnvelope(EventPaymentFailed, p.service, o.ID, PaymentFailedPayload{
		OrderID:       o.ID,
		PaymentMethod: string(o.PaymentMethod),
		Total:         o.Total.StringFixed(2),
		Customer:      o.Customer,
		Reason:        reason,
	}))
}
