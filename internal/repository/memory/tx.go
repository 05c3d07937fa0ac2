package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/amanas96/slot-swapper/internal/model"
	"github.com/amanas96/slot-swapper/internal/repository"
	"github.com/google/uuid"
)

type slotWrite struct {
	base    int64
	created bool
	deleted bool
	value   model.Slot
}

type requestWrite struct {
	base    int64
	created bool
	value   model.SwapRequest
}

type outboxWrite struct {
	baseAttempts int
	created      bool
	value        model.OutboxMessage
}

// tx копит записи до фиксации. В режиме autocommit каждая запись фиксируется сразу.
type tx struct {
	store      *Store
	autocommit bool

	slots       map[uuid.UUID]*slotWrite
	requests    map[uuid.UUID]*requestWrite
	outbox      map[uuid.UUID]*outboxWrite
	outboxOrder []uuid.UUID
}

func newTx(s *Store, autocommit bool) *tx {
	t := &tx{store: s, autocommit: autocommit}
	t.reset()
	return t
}

func (t *tx) reset() {
	t.slots = make(map[uuid.UUID]*slotWrite)
	t.requests = make(map[uuid.UUID]*requestWrite)
	t.outbox = make(map[uuid.UUID]*outboxWrite)
	t.outboxOrder = nil
}

func (t *tx) repositories() repository.Repositories {
	return repository.Repositories{
		Slots:    &slotRepository{tx: t},
		Requests: &requestRepository{tx: t},
		Outbox:   &outboxRepository{tx: t},
	}
}

func (t *tx) slot(id uuid.UUID) (model.Slot, bool) {
	if w, ok := t.slots[id]; ok {
		if w.deleted {
			return model.Slot{}, false
		}
		return w.value, true
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	v, ok := t.store.slots[id]
	return v, ok
}

func (t *tx) request(id uuid.UUID) (model.SwapRequest, bool) {
	if w, ok := t.requests[id]; ok {
		return cloneRequest(w.value), true
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	v, ok := t.store.requests[id]
	return cloneRequest(v), ok
}

func (t *tx) putSlot(v model.Slot, base int64, created, deleted bool) error {
	if w, ok := t.slots[v.ID]; ok {
		w.value = v
		w.deleted = deleted
	} else {
		t.slots[v.ID] = &slotWrite{base: base, created: created, deleted: deleted, value: v}
	}
	return t.flush()
}

func (t *tx) putRequest(v model.SwapRequest, base int64, created bool) error {
	if w, ok := t.requests[v.ID]; ok {
		w.value = v
	} else {
		t.requests[v.ID] = &requestWrite{base: base, created: created, value: v}
	}
	return t.flush()
}

func (t *tx) putOutbox(v model.OutboxMessage, baseAttempts int, created bool) error {
	if w, ok := t.outbox[v.ID]; ok {
		w.value = v
	} else {
		t.outbox[v.ID] = &outboxWrite{baseAttempts: baseAttempts, created: created, value: v}
		t.outboxOrder = append(t.outboxOrder, v.ID)
	}
	return t.flush()
}

func (t *tx) flush() error {
	if !t.autocommit {
		return nil
	}
	return t.commit()
}

// commit проверяет версии всех изменённых записей и применяет их атомарно
func (t *tx) commit() error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	defer t.reset()

	for id, w := range t.slots {
		cur, exists := s.slots[id]
		switch {
		case w.created && exists:
			return fmt.Errorf("slot %s: %w", id, model.ErrConflict)
		case !w.created && (!exists || cur.Version != w.base):
			return fmt.Errorf("slot %s: %w", id, model.ErrConflict)
		}
	}

	for id, w := range t.requests {
		cur, exists := s.requests[id]
		switch {
		case w.created && exists:
			return fmt.Errorf("swap request %s: %w", id, model.ErrConflict)
		case !w.created && (!exists || cur.Version != w.base):
			return fmt.Errorf("swap request %s: %w", id, model.ErrConflict)
		}
		if w.created && w.value.IsPending() {
			if other, busy := s.pendingFor(w.value.ProposerSlotID, w.value.CounterpartSlotID); busy {
				return fmt.Errorf("slot already in pending request %s: %w", other, model.ErrConflict)
			}
		}
	}

	outboxIndex := make(map[uuid.UUID]int, len(s.outbox))
	for i, m := range s.outbox {
		outboxIndex[m.ID] = i
	}
	for id, w := range t.outbox {
		i, exists := outboxIndex[id]
		switch {
		case w.created && exists:
			return fmt.Errorf("outbox message %s: %w", id, model.ErrConflict)
		case !w.created && (!exists || s.outbox[i].Attempts != w.baseAttempts):
			return fmt.Errorf("outbox message %s: %w", id, model.ErrConflict)
		}
	}

	for id, w := range t.slots {
		if w.deleted {
			delete(s.slots, id)
			continue
		}
		s.slots[id] = w.value
	}
	for id, w := range t.requests {
		if w.created {
			s.order[id] = s.nextSeq()
		}
		s.requests[id] = cloneRequest(w.value)
	}
	for _, id := range t.outboxOrder {
		w := t.outbox[id]
		if w.created {
			s.outbox = append(s.outbox, cloneOutbox(w.value))
			continue
		}
		s.outbox[outboxIndex[id]] = cloneOutbox(w.value)
	}

	return nil
}

// pendingFor ищет зафиксированный pending запрос, использующий любой из слотов. Вызывается под s.mu.
func (s *Store) pendingFor(slotIDs ...uuid.UUID) (uuid.UUID, bool) {
	for id, req := range s.requests {
		if !req.IsPending() {
			continue
		}
		for _, slotID := range slotIDs {
			if req.Involves(slotID) {
				return id, true
			}
		}
	}
	return uuid.Nil, false
}

type slotRepository struct {
	tx *tx
}

func (r *slotRepository) Create(ctx context.Context, slot *model.Slot) error {
	now := r.tx.store.now()
	slot.Version = 1
	slot.CreatedAt = now
	slot.UpdatedAt = now
	if err := r.tx.putSlot(*slot, 0, true, false); err != nil {
		return fmt.Errorf("create slot: %w", err)
	}
	return nil
}

func (r *slotRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Slot, error) {
	v, ok := r.tx.slot(id)
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (r *slotRepository) Update(ctx context.Context, upd repository.SlotUpdate) (*model.Slot, error) {
	cur, ok := r.tx.slot(upd.ID)
	if !ok || cur.OwnerID != upd.ExpectOwner || cur.Status != upd.ExpectStatus || cur.Version != upd.ExpectVersion {
		return nil, fmt.Errorf("update slot %s: %w", upd.ID, model.ErrConflict)
	}

	base := cur.Version
	if w, ok := r.tx.slots[upd.ID]; ok {
		base = w.base
	}

	cur.OwnerID = upd.Owner
	cur.Status = upd.Status
	cur.Version++
	cur.UpdatedAt = r.tx.store.now()

	created := false
	if w, ok := r.tx.slots[upd.ID]; ok {
		created = w.created
	}
	if err := r.tx.putSlot(cur, base, created, false); err != nil {
		return nil, fmt.Errorf("update slot %s: %w", upd.ID, err)
	}
	return &cur, nil
}

func (r *slotRepository) Delete(ctx context.Context, id uuid.UUID, ownerID string, expectVersion int64) error {
	cur, ok := r.tx.slot(id)
	if !ok || cur.OwnerID != ownerID || cur.Version != expectVersion || cur.IsPendingExchange() {
		return fmt.Errorf("delete slot %s: %w", id, model.ErrConflict)
	}

	base := cur.Version
	if w, ok := r.tx.slots[id]; ok {
		base = w.base
	}
	if err := r.tx.putSlot(cur, base, false, true); err != nil {
		return fmt.Errorf("delete slot %s: %w", id, err)
	}
	return nil
}

func (r *slotRepository) ListByOwner(ctx context.Context, ownerID string) ([]*model.Slot, error) {
	return r.list(func(s model.Slot) bool { return s.OwnerID == ownerID }), nil
}

func (r *slotRepository) ListTradeable(ctx context.Context, excludeOwnerID string) ([]*model.Slot, error) {
	return r.list(func(s model.Slot) bool {
		return s.IsTradeable() && s.OwnerID != excludeOwnerID
	}), nil
}

func (r *slotRepository) list(match func(model.Slot) bool) []*model.Slot {
	r.tx.store.mu.RLock()
	ids := make([]uuid.UUID, 0, len(r.tx.store.slots))
	for id := range r.tx.store.slots {
		ids = append(ids, id)
	}
	r.tx.store.mu.RUnlock()
	for id, w := range r.tx.slots {
		if w.created {
			ids = append(ids, id)
		}
	}

	var slots []*model.Slot
	for _, id := range ids {
		v, ok := r.tx.slot(id)
		if !ok || !match(v) {
			continue
		}
		slots = append(slots, &v)
	}

	sort.Slice(slots, func(i, j int) bool {
		if !slots[i].StartTime.Equal(slots[j].StartTime) {
			return slots[i].StartTime.Before(slots[j].StartTime)
		}
		return slots[i].ID.String() < slots[j].ID.String()
	})
	return slots
}

type requestRepository struct {
	tx *tx
}

func (r *requestRepository) Create(ctx context.Context, req *model.SwapRequest) error {
	now := r.tx.store.now()
	req.Version = 1
	req.CreatedAt = now
	req.UpdatedAt = now
	if err := r.tx.putRequest(cloneRequest(*req), 0, true); err != nil {
		return fmt.Errorf("create swap request: %w", err)
	}
	return nil
}

func (r *requestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.SwapRequest, error) {
	v, ok := r.tx.request(id)
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (r *requestRepository) Resolve(ctx context.Context, id uuid.UUID, expectVersion int64, status model.SwapStatus, at time.Time) (*model.SwapRequest, error) {
	cur, ok := r.tx.request(id)
	if !ok || !cur.IsPending() || cur.Version != expectVersion {
		return nil, fmt.Errorf("resolve swap request %s: %w", id, model.ErrConflict)
	}

	base := cur.Version
	created := false
	if w, ok := r.tx.requests[id]; ok {
		base = w.base
		created = w.created
	}

	resolvedAt := at
	cur.Status = status
	cur.ResolvedAt = &resolvedAt
	cur.UpdatedAt = at
	cur.Version++

	if err := r.tx.putRequest(cur, base, created); err != nil {
		return nil, fmt.Errorf("resolve swap request %s: %w", id, err)
	}
	out := cloneRequest(cur)
	return &out, nil
}

func (r *requestRepository) ListPendingViews(ctx context.Context, userID string, side repository.RequestSide) ([]*model.RequestView, error) {
	s := r.tx.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []model.SwapRequest
	for _, req := range s.requests {
		if !req.IsPending() {
			continue
		}
		if side == repository.SideOutgoing && req.ProposerID != userID {
			continue
		}
		if side == repository.SideIncoming && req.RecipientID != userID {
			continue
		}
		matched = append(matched, cloneRequest(req))
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return s.order[matched[i].ID] < s.order[matched[j].ID]
	})

	views := make([]*model.RequestView, 0, len(matched))
	for i := range matched {
		req := matched[i]
		ps, okP := s.slots[req.ProposerSlotID]
		cs, okC := s.slots[req.CounterpartSlotID]
		if !okP || !okC {
			continue
		}
		views = append(views, &model.RequestView{Request: &req, ProposerSlot: &ps, CounterpartSlot: &cs})
	}
	return views, nil
}

type outboxRepository struct {
	tx *tx
}

func (r *outboxRepository) Insert(ctx context.Context, msg *model.OutboxMessage) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	msg.Status = model.OutboxStatusPending
	msg.CreatedAt = r.tx.store.now()
	if err := r.tx.putOutbox(cloneOutbox(*msg), 0, true); err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}

func (r *outboxRepository) ClaimPending(ctx context.Context, limit int) ([]*model.OutboxMessage, error) {
	s := r.tx.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var messages []*model.OutboxMessage
	for _, m := range s.outbox {
		if len(messages) >= limit {
			break
		}
		if m.Status != model.OutboxStatusPending {
			continue
		}
		c := cloneOutbox(m)
		messages = append(messages, &c)
	}
	return messages, nil
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.mark(id, func(m *model.OutboxMessage) {
		m.Status = model.OutboxStatusProcessed
		m.Attempts++
		m.LastAttemptAt = &at
	})
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, at time.Time, maxAttempts int) error {
	return r.mark(id, func(m *model.OutboxMessage) {
		m.Attempts++
		m.LastAttemptAt = &at
		if m.Attempts >= maxAttempts {
			m.Status = model.OutboxStatusDead
		}
	})
}

func (r *outboxRepository) mark(id uuid.UUID, apply func(*model.OutboxMessage)) error {
	var (
		cur   model.OutboxMessage
		found bool
	)
	if w, ok := r.tx.outbox[id]; ok {
		cur, found = cloneOutbox(w.value), true
	} else {
		s := r.tx.store
		s.mu.RLock()
		for _, m := range s.outbox {
			if m.ID == id {
				cur, found = cloneOutbox(m), true
				break
			}
		}
		s.mu.RUnlock()
	}
	if !found {
		return fmt.Errorf("outbox message %s: %w", id, model.ErrNotFound)
	}

	base := cur.Attempts
	created := false
	if w, ok := r.tx.outbox[id]; ok {
		base = w.baseAttempts
		created = w.created
	}
	apply(&cur)
	return r.tx.putOutbox(cur, base, created)
}
