package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amanas96/slot-swapper/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore реализует Store поверх пула pgx
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Repositories возвращает репозитории вне транзакции
func (s *PostgresStore) Repositories() Repositories {
	return newRepositories(s.pool)
}

// WithTx выполняет fn в транзакции READ COMMITTED.
// Ошибка fn откатывает транзакцию. Неизвестный исход COMMIT возвращается как *CommitError.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, newRepositories(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		// Ответ сервера означает что транзакция точно откатилась
		if base.IsDefinitive(err) {
			return fmt.Errorf("commit transaction: %w", base.Classify(err))
		}
		if errors.Is(err, pgx.ErrTxClosed) {
			return fmt.Errorf("commit transaction: %w", err)
		}
		return &CommitError{Err: err}
	}

	return nil
}

func newRepositories(q base.Querier) Repositories {
	return Repositories{
		Slots:    NewSlotRepository(q),
		Requests: NewSwapRequestRepository(q),
		Outbox:   NewOutboxRepository(q),
	}
}
