package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// OutboxEvent is one row for the Debezium outbox router, which publishes the
// payload to the Kafka topic named in the row.
type OutboxEvent struct {
	Aggregate   string
	AggregateID string
	Topic       string
	Payload     any
}

type OutboxRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, ev OutboxEvent) error
}

type OutboxRepositoryImpl struct {
	db *sqlx.DB
}

func NewOutboxRepository(db *sqlx.DB) *OutboxRepositoryImpl {
	return &OutboxRepositoryImpl{db: db}
}

// Insert marshals ev.Payload to JSON and writes the row in tx, or in its own
// transaction when tx is nil.
func (r *OutboxRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, ev OutboxEvent) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Aggregate, err)
	}
	return withTx(ctx, r.db, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO outbox (aggregate, aggregate_id, topic, payload, created_at)
			VALUES (?, ?, ?, ?, NOW())
		`, ev.Aggregate, ev.AggregateID, ev.Topic, payload)
		return err
	})
}
