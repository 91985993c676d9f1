package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/angosms/sms-gateway/internal/config"
)

type Message = kafka.Message

// Source is what the worker consumes from. Commit acknowledges one message.
type Source interface {
	Fetch(ctx context.Context) (Message, error)
	Commit(ctx context.Context, m Message) error
}

// Consumer is a thin wrapper around segmentio/kafka-go Reader.
type Consumer struct {
	r *kafka.Reader
}

var _ Source = (*Consumer)(nil)

// NewConsumer reads topic with the broker and group settings of cfg.
func NewConsumer(cfg config.KafkaConfig, topic string) *Consumer {
	minBytes := cfg.MinBytes
	if minBytes <= 0 {
		minBytes = 1 << 10 // 1KB
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 10 << 20 // 10MB
	}
	commit := time.Duration(cfg.CommitInterval) * time.Millisecond
	if commit <= 0 {
		commit = time.Second
	}
	group := cfg.GroupID
	if group == "" {
		group = "smsgw-dispatch"
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       minBytes,
		MaxBytes:       maxBytes,
		CommitInterval: commit,
		MaxWait:        250 * time.Millisecond,
	})
	return &Consumer{r: r}
}

func (c *Consumer) Fetch(ctx context.Context) (Message, error) {
	return c.r.FetchMessage(ctx)
}

func (c *Consumer) Commit(ctx context.Context, m Message) error {
	return c.r.CommitMessages(ctx, m)
}

func (c *Consumer) Close() error { return c.r.Close() }
