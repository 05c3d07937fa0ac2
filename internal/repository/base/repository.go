package base

import (
	"context"
	"errors"
	"fmt"

	"github.com/amanas96/slot-swapper/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier общий интерфейс пула и транзакции pgx
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository базовый репозиторий с общими методами
type Repository struct {
	q Querier
}

// NewRepository создаёт новый базовый репозиторий поверх пула или транзакции
func NewRepository(q Querier) *Repository {
	return &Repository{q: q}
}

// QueryRow выполняет запрос и возвращает одну строку
func (r *Repository) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return r.q.QueryRow(ctx, query, args...)
}

// Query выполняет запрос и возвращает множество строк
func (r *Repository) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return r.q.Query(ctx, query, args...)
}

// ExecAffected выполняет команду и возвращает количество затронутых строк
func (r *Repository) ExecAffected(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return 0, Classify(err)
	}
	return tag.RowsAffected(), nil
}

// IsNotFound проверяет является ли ошибка "строка не найдена"
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// Коды PostgreSQL, которые означают проигранную гонку
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// Classify переводит ошибки драйвера в ошибки предметной области.
// Нарушение уникальности, сбой сериализации и дедлок считаются конфликтом.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation, codeSerializationFailure, codeDeadlockDetected:
			return fmt.Errorf("%w: %s (%s)", model.ErrConflict, pgErr.Message, pgErr.Code)
		}
	}
	return err
}

// IsDefinitive сообщает, что ошибка пришла от сервера и транзакция точно откатилась
func IsDefinitive(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}
