package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/amanas96/slot-swapper/internal/model"
	"github.com/amanas96/slot-swapper/internal/repository"
	"github.com/amanas96/slot-swapper/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCache struct {
	mu          sync.Mutex
	gen         int64
	entries     map[int64][]*model.Slot
	sets        int
	invalidated int
	getErr      error
}

func (c *fakeCache) Generation(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen, nil
}

func (c *fakeCache) Get(ctx context.Context, gen int64) ([]*model.Slot, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	slots, ok := c.entries[gen]
	return slots, ok, nil
}

func (c *fakeCache) Set(ctx context.Context, gen int64, slots []*model.Slot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[int64][]*model.Slot)
	}
	c.sets++
	c.entries[gen] = slots
	return nil
}

func (c *fakeCache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated++
	c.gen++
	return nil
}

// gatedStore останавливает первое чтение витрины после того как оно прочитало хранилище
type gatedStore struct {
	*memory.Store
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func newGatedStore(store *memory.Store) *gatedStore {
	return &gatedStore{Store: store, read: make(chan struct{}), release: make(chan struct{})}
}

func (s *gatedStore) Repositories() repository.Repositories {
	repos := s.Store.Repositories()
	repos.Slots = &gatedSlots{SlotRepository: repos.Slots, gate: s}
	return repos
}

type gatedSlots struct {
	repository.SlotRepository
	gate *gatedStore
}

func (g *gatedSlots) ListTradeable(ctx context.Context, excludeOwnerID string) ([]*model.Slot, error) {
	slots, err := g.SlotRepository.ListTradeable(ctx, excludeOwnerID)
	g.gate.once.Do(func() {
		close(g.gate.read)
		<-g.gate.release
	})
	return slots, err
}

func TestQueryService_ListTradeable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	late := f.seedSlot(t, "bob", model.SlotStatusTradeable, 9)
	early := f.seedSlot(t, "carol", model.SlotStatusTradeable, 2)
	f.seedSlot(t, "alice", model.SlotStatusTradeable, 1)
	f.seedSlot(t, "bob", model.SlotStatusBusy, 3)

	slots, err := f.query.ListTradeable(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, early.ID, slots[0].ID)
	assert.Equal(t, late.ID, slots[1].ID)
}

func TestQueryService_ListTradeableThroughCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cache := &fakeCache{}
	query := NewQueryService(f.store, cache, zap.NewNop())
	engine := NewSwapEngine(f.store, zap.NewNop(), WithInvalidator(cache))

	a := f.seedSlot(t, "alice", model.SlotStatusTradeable, 1)
	b := f.seedSlot(t, "bob", model.SlotStatusTradeable, 2)

	slots, err := query.ListTradeable(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, 1, cache.sets)

	// второй пользователь читает из того же кэша
	slots, err = query.ListTradeable(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, a.ID, slots[0].ID)
	assert.Equal(t, 1, cache.sets)

	_, err = engine.ProposeSwap(ctx, "alice", a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.invalidated)

	slots, err = query.ListTradeable(ctx, "carol")
	require.NoError(t, err)
	assert.Empty(t, slots)
	assert.Equal(t, 2, cache.sets)
}

func TestQueryService_RefillRacingSwapDoesNotServeStaleSlots(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cache := &fakeCache{}
	gated := newGatedStore(f.store)
	query := NewQueryService(gated, cache, zap.NewNop())
	engine := NewSwapEngine(f.store, zap.NewNop(), WithClock(testClock), WithInvalidator(cache))

	a := f.seedSlot(t, "alice", model.SlotStatusTradeable, 1)
	b := f.seedSlot(t, "bob", model.SlotStatusTradeable, 2)

	refill := make(chan error, 1)
	go func() {
		_, err := query.ListTradeable(ctx, "carol")
		refill <- err
	}()

	// читатель уже взял старую витрину из хранилища, но ещё не записал её в кэш
	<-gated.read
	_, err := engine.ProposeSwap(ctx, "alice", a.ID, b.ID)
	require.NoError(t, err)
	close(gated.release)
	require.NoError(t, <-refill)

	slots, err := query.ListTradeable(ctx, "carol")
	require.NoError(t, err)
	assert.Empty(t, slots)
	assert.Equal(t, model.SlotStatusPendingExchange, f.slot(t, a.ID).Status)
	assert.Equal(t, model.SlotStatusPendingExchange, f.slot(t, b.ID).Status)
}

func TestQueryService_CacheFailureFallsBackToStore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cache := &fakeCache{getErr: errors.New("redis down")}
	query := NewQueryService(f.store, cache, zap.NewNop())

	f.seedSlot(t, "bob", model.SlotStatusTradeable, 1)

	slots, err := query.ListTradeable(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, slots, 1)
}

func TestQueryService_ListMyRequests(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a := f.seedSlot(t, "alice", model.SlotStatusTradeable, 1)
	b := f.seedSlot(t, "bob", model.SlotStatusTradeable, 2)
	c := f.seedSlot(t, "carol", model.SlotStatusTradeable, 3)
	a2 := f.seedSlot(t, "alice", model.SlotStatusTradeable, 4)
	d := f.seedSlot(t, "bob", model.SlotStatusTradeable, 5)

	out, err := f.engine.ProposeSwap(ctx, "alice", a.ID, b.ID)
	require.NoError(t, err)
	in, err := f.engine.ProposeSwap(ctx, "carol", c.ID, a2.ID)
	require.NoError(t, err)
	done, err := f.engine.ProposeSwap(ctx, "bob", d.ID, a2.ID)
	require.ErrorIs(t, err, model.ErrInvalidState)
	require.Nil(t, done)

	mine, err := f.query.ListMyRequests(ctx, "alice")
	require.NoError(t, err)

	require.Len(t, mine.Outgoing, 1)
	assert.Equal(t, out.ID, mine.Outgoing[0].Request.ID)
	assert.Equal(t, a.ID, mine.Outgoing[0].ProposerSlot.ID)
	assert.Equal(t, b.ID, mine.Outgoing[0].CounterpartSlot.ID)
	assert.Equal(t, "bob", mine.Outgoing[0].CounterpartSlot.OwnerID)

	require.Len(t, mine.Incoming, 1)
	assert.Equal(t, in.ID, mine.Incoming[0].Request.ID)
	assert.Equal(t, "carol", mine.Incoming[0].ProposerSlot.OwnerID)

	_, err = f.engine.ResolveSwap(ctx, "alice", in.ID, false)
	require.NoError(t, err)

	mine, err = f.query.ListMyRequests(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, mine.Incoming)
	assert.Len(t, mine.Outgoing, 1)
}

func TestQueryService_ListMySlots(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	second := f.seedSlot(t, "alice", model.SlotStatusBusy, 5)
	first := f.seedSlot(t, "alice", model.SlotStatusTradeable, 1)
	f.seedSlot(t, "bob", model.SlotStatusBusy, 2)

	slots, err := f.query.ListMySlots(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, first.ID, slots[0].ID)
	assert.Equal(t, second.ID, slots[1].ID)
}
