package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/amanas96/slot-swapper/internal/model"
	"github.com/amanas96/slot-swapper/internal/repository/base"
	"github.com/google/uuid"
)

type PostgresOutboxRepository struct {
	*base.Repository
}

func NewOutboxRepository(q base.Querier) *PostgresOutboxRepository {
	return &PostgresOutboxRepository{Repository: base.NewRepository(q)}
}

// Insert записывает событие в outbox
func (r *PostgresOutboxRepository) Insert(ctx context.Context, msg *model.OutboxMessage) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}

	query := `
		INSERT INTO outbox (id, topic, payload, status)
		VALUES ($1, $2, $3, 'pending')
		RETURNING created_at
	`

	err := r.QueryRow(ctx, query, msg.ID, msg.Topic, msg.Payload).Scan(&msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	msg.Status = model.OutboxStatusPending

	return nil
}

// ClaimPending берёт пачку необработанных сообщений, пропуская занятые другими воркерами
func (r *PostgresOutboxRepository) ClaimPending(ctx context.Context, limit int) ([]*model.OutboxMessage, error) {
	query := `
		SELECT id, topic, payload, status, attempts, created_at, last_attempt_at
		FROM outbox
		WHERE status = 'pending'
		ORDER BY created_at, id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`

	rows, err := r.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("claim outbox messages: %w", err)
	}
	defer rows.Close()

	var messages []*model.OutboxMessage
	for rows.Next() {
		var msg model.OutboxMessage
		err := rows.Scan(
			&msg.ID,
			&msg.Topic,
			&msg.Payload,
			&msg.Status,
			&msg.Attempts,
			&msg.CreatedAt,
			&msg.LastAttemptAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan outbox message: %w", err)
		}
		messages = append(messages, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox messages: %w", err)
	}

	return messages, nil
}

// MarkProcessed отмечает сообщение доставленным
func (r *PostgresOutboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE outbox
		SET status = 'processed', attempts = attempts + 1, last_attempt_at = $2
		WHERE id = $1
	`

	if _, err := r.ExecAffected(ctx, query, id, at); err != nil {
		return fmt.Errorf("mark outbox message processed: %w", err)
	}
	return nil
}

// MarkFailed увеличивает счётчик попыток; после maxAttempts сообщение становится dead
func (r *PostgresOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, at time.Time, maxAttempts int) error {
	query := `
		UPDATE outbox
		SET attempts = attempts + 1,
		    last_attempt_at = $2,
		    status = CASE WHEN attempts + 1 >= $3 THEN 'dead' ELSE 'pending' END
		WHERE id = $1
	`

	if _, err := r.ExecAffected(ctx, query, id, at, maxAttempts); err != nil {
		return fmt.Errorf("mark outbox message failed: %w", err)
	}
	return nil
}
