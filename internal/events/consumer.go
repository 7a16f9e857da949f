package events

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// Handler must return nil only if the message was processed and its offset may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r     messageReader
	retry time.Duration
}

func NewConsumer(brokers []string, group string, topics []string) *Consumer {
	return &Consumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			GroupID:        group,
			GroupTopics:    topics,
			MinBytes:       1,
			MaxBytes:       10e6,
			CommitInterval: 0, // manual commit
		}),
		retry: time.Second,
	}
}

// Start processes messages one at a time, in partition order, until ctx is done.
// A failing message is retried before the consumer moves on, so offsets never skip it.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		for {
			err := h(ctx, m)
			if err == nil {
				break
			}
			log.Printf("[events] handle topic=%s offset=%d: %v", m.Topic, m.Offset, err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.retry):
			}
		}
		if err := c.r.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("[events] commit offset=%d: %v", m.Offset, err)
		}
	}
}
