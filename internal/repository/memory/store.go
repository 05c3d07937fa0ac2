// Package memory хранилище в памяти с оптимистичными транзакциями.
//
// Транзакция читает зафиксированное состояние без блокировок и копит записи
// у себя. При фиксации под коротким мьютексом проверяется, что версии всех
// изменяемых записей не поменялись с момента чтения; иначе вся транзакция
// отклоняется с model.ErrConflict.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amanas96/slot-swapper/internal/model"
	"github.com/amanas96/slot-swapper/internal/repository"
	"github.com/google/uuid"
)

type Store struct {
	mu       sync.RWMutex
	slots    map[uuid.UUID]model.Slot
	requests map[uuid.UUID]model.SwapRequest
	outbox   []model.OutboxMessage
	// порядок создания запросов, чтобы выдача была стабильной при одинаковом времени
	order map[uuid.UUID]int64
	seq   int64

	now          func() time.Time
	beforeCommit func(ctx context.Context)
}

type Option func(*Store)

// WithClock подменяет источник времени
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithBeforeCommit вызывает hook перед проверкой и фиксацией каждой транзакции.
// Используется в тестах, чтобы выстроить конкретное чередование.
func WithBeforeCommit(hook func(ctx context.Context)) Option {
	return func(s *Store) { s.beforeCommit = hook }
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		slots:    make(map[uuid.UUID]model.Slot),
		requests: make(map[uuid.UUID]model.SwapRequest),
		order:    make(map[uuid.UUID]int64),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ repository.Store = (*Store)(nil)

// WithTx выполняет fn в оптимистичной транзакции
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t := newTx(s, false)
	if err := fn(ctx, t.repositories()); err != nil {
		return err
	}

	if s.beforeCommit != nil {
		s.beforeCommit(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return t.commit()
}

// Repositories возвращает репозитории, где каждая запись фиксируется сразу
func (s *Store) Repositories() repository.Repositories {
	return newTx(s, true).repositories()
}

// Snapshot копия зафиксированного состояния
type Snapshot struct {
	Slots    map[uuid.UUID]model.Slot
	Requests map[uuid.UUID]model.SwapRequest
	Outbox   []model.OutboxMessage
}

// Snapshot возвращает согласованную копию всех записей
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Slots:    make(map[uuid.UUID]model.Slot, len(s.slots)),
		Requests: make(map[uuid.UUID]model.SwapRequest, len(s.requests)),
		Outbox:   make([]model.OutboxMessage, 0, len(s.outbox)),
	}
	for k, v := range s.slots {
		snap.Slots[k] = v
	}
	for k, v := range s.requests {
		snap.Requests[k] = cloneRequest(v)
	}
	for _, v := range s.outbox {
		snap.Outbox = append(snap.Outbox, cloneOutbox(v))
	}
	return snap
}

// CheckInvariants проверяет что слот в pending_exchange тогда и только тогда,
// когда на него ссылается ровно один pending запрос, а у решённых запросов есть resolved_at
func (snap Snapshot) CheckInvariants() error {
	refs := make(map[uuid.UUID]int)
	for _, req := range snap.Requests {
		if req.IsAccepted() || req.IsRejected() {
			if req.ResolvedAt == nil {
				return fmt.Errorf("%s request %s has no resolved_at", req.Status, req.ID)
			}
			continue
		}
		if !req.IsPending() {
			return fmt.Errorf("request %s has unknown status %q", req.ID, req.Status)
		}
		if req.ResolvedAt != nil {
			return fmt.Errorf("pending request %s has resolved_at", req.ID)
		}
		refs[req.ProposerSlotID]++
		refs[req.CounterpartSlotID]++

		ps, ok := snap.Slots[req.ProposerSlotID]
		if !ok {
			return fmt.Errorf("pending request %s references missing slot %s", req.ID, req.ProposerSlotID)
		}
		cs, ok := snap.Slots[req.CounterpartSlotID]
		if !ok {
			return fmt.Errorf("pending request %s references missing slot %s", req.ID, req.CounterpartSlotID)
		}
		if ps.OwnerID != req.ProposerID || cs.OwnerID != req.RecipientID {
			return fmt.Errorf("pending request %s owners drifted", req.ID)
		}
	}

	for id, slot := range snap.Slots {
		n := refs[id]
		if n > 1 {
			return fmt.Errorf("slot %s referenced by %d pending requests", id, n)
		}
		if slot.IsPendingExchange() != (n == 1) {
			return fmt.Errorf("slot %s is %s with %d pending requests", id, slot.Status, n)
		}
	}
	return nil
}

func (s *Store) nextSeq() int64 {
	s.seq++
	return s.seq
}

func cloneRequest(r model.SwapRequest) model.SwapRequest {
	if r.ResolvedAt != nil {
		at := *r.ResolvedAt
		r.ResolvedAt = &at
	}
	return r
}

func cloneOutbox(m model.OutboxMessage) model.OutboxMessage {
	m.Payload = append([]byte(nil), m.Payload...)
	if m.LastAttemptAt != nil {
		at := *m.LastAttemptAt
		m.LastAttemptAt = &at
	}
	return m
}
