package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amanas96/slot-swapper/internal/model"
	"github.com/google/uuid"
)

// SlotUpdate условная запись слота: применяется только если строка
// всё ещё в том состоянии, которое прочитал вызывающий код.
// Иначе репозиторий возвращает model.ErrConflict.
type SlotUpdate struct {
	ID            uuid.UUID
	ExpectOwner   string
	ExpectStatus  model.SlotStatus
	ExpectVersion int64

	Owner  string
	Status model.SlotStatus
}

type SlotRepository interface {
	Create(ctx context.Context, slot *model.Slot) error
	// GetByID возвращает nil, nil если слота нет
	GetByID(ctx context.Context, id uuid.UUID) (*model.Slot, error)
	Update(ctx context.Context, upd SlotUpdate) (*model.Slot, error)
	Delete(ctx context.Context, id uuid.UUID, ownerID string, expectVersion int64) error
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Slot, error)
	ListTradeable(ctx context.Context, excludeOwnerID string) ([]*model.Slot, error)
}

// RequestSide сторона пользователя в запросе на обмен
type RequestSide string

const (
	SideIncoming RequestSide = "incoming"
	SideOutgoing RequestSide = "outgoing"
)

type SwapRequestRepository interface {
	Create(ctx context.Context, req *model.SwapRequest) error
	// GetByID возвращает nil, nil если запроса нет
	GetByID(ctx context.Context, id uuid.UUID) (*model.SwapRequest, error)
	// Resolve переводит pending запрос в терминальный статус; model.ErrConflict если версия устарела
	Resolve(ctx context.Context, id uuid.UUID, expectVersion int64, status model.SwapStatus, at time.Time) (*model.SwapRequest, error)
	ListPendingViews(ctx context.Context, userID string, side RequestSide) ([]*model.RequestView, error)
}

type OutboxRepository interface {
	Insert(ctx context.Context, msg *model.OutboxMessage) error
	// ClaimPending блокирует до limit необработанных сообщений до конца транзакции
	ClaimPending(ctx context.Context, limit int) ([]*model.OutboxMessage, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, at time.Time, maxAttempts int) error
}

// Repositories набор репозиториев, привязанных к одной транзакции или к пулу
type Repositories struct {
	Slots    SlotRepository
	Requests SwapRequestRepository
	Outbox   OutboxRepository
}

type TxManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

// Store хранилище: единица работы плюс чтения вне транзакции
type Store interface {
	TxManager
	Repositories() Repositories
}

// CommitError означает, что fn выполнилась, но исход COMMIT неизвестен:
// транзакция могла как примениться, так и откатиться.
type CommitError struct {
	Err error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit outcome unknown: %v", e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}

// IsCommitUnknown проверяет что ошибка это CommitError
func IsCommitUnknown(err error) bool {
	var ce *CommitError
	return errors.As(err, &ce)
}
