package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/amanas96/slot-swapper/internal/model"
	"github.com/amanas96/slot-swapper/internal/repository"
	"github.com/amanas96/slot-swapper/internal/repository/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testClock() time.Time { return testNow }

type fixture struct {
	store  *memory.Store
	engine *SwapEngine
	slots  *SlotService
	query  *QueryService
}

func newFixture(t *testing.T, opts ...memory.Option) *fixture {
	t.Helper()
	opts = append([]memory.Option{memory.WithClock(testClock)}, opts...)
	store := memory.NewStore(opts...)
	logger := zap.NewNop()
	return &fixture{
		store:  store,
		engine: NewSwapEngine(store, logger, WithClock(testClock)),
		slots:  NewSlotService(store, nil, logger),
		query:  NewQueryService(store, nil, logger),
	}
}

// seedSlot создаёт слот сразу в нужном статусе
func (f *fixture) seedSlot(t *testing.T, owner string, status model.SlotStatus, hour int) *model.Slot {
	t.Helper()
	start := testNow.Add(time.Duration(hour) * time.Hour)
	slot, err := model.NewSlot(owner, owner+"'s slot", start, start.Add(time.Hour))
	require.NoError(t, err)
	slot.Status = status
	require.NoError(t, f.store.Repositories().Slots.Create(context.Background(), slot))
	return slot
}

func (f *fixture) slot(t *testing.T, id uuid.UUID) model.Slot {
	t.Helper()
	s, ok := f.store.Snapshot().Slots[id]
	require.True(t, ok, "slot %s missing", id)
	return s
}

func (f *fixture) request(t *testing.T, id uuid.UUID) *model.SwapRequest {
	t.Helper()
	r, ok := f.store.Snapshot().Requests[id]
	require.True(t, ok, "request %s missing", id)
	return &r
}

func (f *fixture) requireInvariants(t *testing.T) {
	t.Helper()
	require.NoError(t, f.store.Snapshot().CheckInvariants())
}

// ambiguousStore выполняет транзакцию, но сообщает что исход COMMIT неизвестен
type ambiguousStore struct {
	*memory.Store
	commit   bool
	onCommit func()
}

var errForceRollback = errors.New("force rollback")

func (s *ambiguousStore) WithTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	err := s.Store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := fn(ctx, repos); err != nil {
			return err
		}
		if !s.commit {
			return errForceRollback
		}
		return nil
	})
	if err != nil && !errors.Is(err, errForceRollback) {
		return err
	}
	if s.onCommit != nil {
		s.onCommit()
	}
	return &repository.CommitError{Err: errors.New("connection reset by peer")}
}

type countingInvalidator struct {
	mu    sync.Mutex
	calls int
}

func (c *countingInvalidator) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return nil
}

func (c *countingInvalidator) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
