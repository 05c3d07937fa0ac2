package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/amanas96/slot-swapper/internal/model"
	"github.com/amanas96/slot-swapper/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultCommitCheckTimeout = 5 * time.Second

// CacheInvalidator сбрасывает закэшированные чтения после записи
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// SwapEngine проводит обмен двух слотов: резервирует оба слота, создаёт запрос
// и затем либо меняет владельцев, либо возвращает слоты в исходное состояние.
// Каждая операция выполняется одной транзакцией хранилища.
type SwapEngine struct {
	store              repository.Store
	logger             *zap.Logger
	invalidator        CacheInvalidator
	now                func() time.Time
	newID              func() uuid.UUID
	commitCheckTimeout time.Duration
}

type EngineOption func(*SwapEngine)

// WithClock подменяет источник времени
func WithClock(now func() time.Time) EngineOption {
	return func(e *SwapEngine) { e.now = now }
}

// WithIDGenerator подменяет генератор ID запросов
func WithIDGenerator(gen func() uuid.UUID) EngineOption {
	return func(e *SwapEngine) { e.newID = gen }
}

// WithCommitCheckTimeout задаёт время на перепроверку после неизвестного исхода COMMIT
func WithCommitCheckTimeout(d time.Duration) EngineOption {
	return func(e *SwapEngine) {
		if d > 0 {
			e.commitCheckTimeout = d
		}
	}
}

// WithInvalidator подключает сброс кэша витрины после успешных записей
func WithInvalidator(inv CacheInvalidator) EngineOption {
	return func(e *SwapEngine) { e.invalidator = inv }
}

func NewSwapEngine(store repository.Store, logger *zap.Logger, opts ...EngineOption) *SwapEngine {
	e := &SwapEngine{
		store:              store,
		logger:             logger,
		now:                time.Now,
		newID:              uuid.New,
		commitCheckTimeout: defaultCommitCheckTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ProposeSwap предлагает обменять свой слот offeredSlotID на чужой wantedSlotID
func (e *SwapEngine) ProposeSwap(ctx context.Context, proposerID string, offeredSlotID, wantedSlotID uuid.UUID) (*model.SwapRequest, error) {
	if proposerID == "" {
		return nil, fmt.Errorf("propose swap: %w: proposer is required", model.ErrInvalidInput)
	}

	requestID := e.newID()
	var created *model.SwapRequest

	err := e.store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		offered, err := repos.Slots.GetByID(ctx, offeredSlotID)
		if err != nil {
			return fmt.Errorf("get offered slot: %w", err)
		}
		if offered == nil {
			return fmt.Errorf("offered slot %s: %w", offeredSlotID, model.ErrNotFound)
		}

		wanted, err := repos.Slots.GetByID(ctx, wantedSlotID)
		if err != nil {
			return fmt.Errorf("get wanted slot: %w", err)
		}
		if wanted == nil {
			return fmt.Errorf("wanted slot %s: %w", wantedSlotID, model.ErrNotFound)
		}

		if offered.OwnerID != proposerID {
			return fmt.Errorf("offered slot %s: %w", offeredSlotID, model.ErrNotOwner)
		}
		if wanted.OwnerID == proposerID {
			return fmt.Errorf("wanted slot %s: %w", wantedSlotID, model.ErrSelfTrade)
		}

		offeredNext, err := offered.Status.Apply(model.SlotEventReserve)
		if err != nil {
			return fmt.Errorf("offered slot %s: %w", offeredSlotID, err)
		}
		wantedNext, err := wanted.Status.Apply(model.SlotEventReserve)
		if err != nil {
			return fmt.Errorf("wanted slot %s: %w", wantedSlotID, err)
		}

		updates := []repository.SlotUpdate{
			keepOwner(offered, offeredNext),
			keepOwner(wanted, wantedNext),
		}
		if err := applySlotUpdates(ctx, repos.Slots, updates); err != nil {
			return err
		}

		req := &model.SwapRequest{
			ID:                requestID,
			Status:            model.SwapStatusPending,
			ProposerID:        proposerID,
			ProposerSlotID:    offered.ID,
			RecipientID:       wanted.OwnerID,
			CounterpartSlotID: wanted.ID,
		}
		if err := repos.Requests.Create(ctx, req); err != nil {
			return err
		}

		if err := e.enqueue(ctx, repos.Outbox, model.TopicSwapProposed, req, offered, wanted); err != nil {
			return err
		}

		created = req
		return nil
	})

	if err != nil {
		if repository.IsCommitUnknown(err) {
			return e.confirmProposal(ctx, requestID, err)
		}
		return nil, fmt.Errorf("propose swap: %w", err)
	}

	e.logger.Info("Swap proposed",
		zap.String("request_id", created.ID.String()),
		zap.String("proposer_id", created.ProposerID),
		zap.String("recipient_id", created.RecipientID),
		zap.String("proposer_slot_id", created.ProposerSlotID.String()),
		zap.String("counterpart_slot_id", created.CounterpartSlotID.String()),
	)
	e.invalidate(ctx)

	return created, nil
}

// ResolveSwap принимает или отклоняет pending запрос. Решать может только получатель.
func (e *SwapEngine) ResolveSwap(ctx context.Context, responderID string, requestID uuid.UUID, accept bool) (*model.SwapRequest, error) {
	decision := model.DecisionFromBool(accept)
	var resolved *model.SwapRequest

	err := e.store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		req, err := repos.Requests.GetByID(ctx, requestID)
		if err != nil {
			return fmt.Errorf("get swap request: %w", err)
		}
		if req == nil {
			return fmt.Errorf("swap request %s: %w", requestID, model.ErrNotFound)
		}

		next, err := req.Status.Apply(decision)
		if err != nil {
			return fmt.Errorf("swap request %s: %w", requestID, err)
		}
		if req.RecipientID != responderID {
			return fmt.Errorf("swap request %s: %w", requestID, model.ErrNotAuthorized)
		}

		proposerSlot, err := repos.Slots.GetByID(ctx, req.ProposerSlotID)
		if err != nil {
			return fmt.Errorf("get proposer slot: %w", err)
		}
		counterpartSlot, err := repos.Slots.GetByID(ctx, req.CounterpartSlotID)
		if err != nil {
			return fmt.Errorf("get counterpart slot: %w", err)
		}
		if err := checkReserved(req, proposerSlot, counterpartSlot); err != nil {
			// запрос могли решить между нашими чтениями
			current, rerr := repos.Requests.GetByID(ctx, req.ID)
			if rerr == nil && (current == nil || current.Version != req.Version) {
				return fmt.Errorf("swap request %s changed concurrently: %w", req.ID, model.ErrConflict)
			}
			return err
		}

		res, err := repos.Requests.Resolve(ctx, req.ID, req.Version, next, e.now().UTC())
		if err != nil {
			return err
		}

		var updates []repository.SlotUpdate
		if res.IsAccepted() {
			updates, err = exchangeUpdates(proposerSlot, counterpartSlot)
		} else {
			updates, err = releaseUpdates(proposerSlot, counterpartSlot)
		}
		if err != nil {
			return err
		}
		if err := applySlotUpdates(ctx, repos.Slots, updates); err != nil {
			return err
		}

		topic := model.TopicSwapRejected
		if res.IsAccepted() {
			topic = model.TopicSwapAccepted
		}
		if err := e.enqueue(ctx, repos.Outbox, topic, res, proposerSlot, counterpartSlot); err != nil {
			return err
		}

		resolved = res
		return nil
	})

	if err != nil {
		if repository.IsCommitUnknown(err) {
			return e.confirmResolution(ctx, requestID, decision, err)
		}
		if errors.Is(err, model.ErrStateCorrupted) {
			e.logger.Error("Swap state corrupted",
				zap.String("request_id", requestID.String()),
				zap.String("responder_id", responderID),
				zap.Error(err),
			)
		}
		return nil, fmt.Errorf("resolve swap: %w", err)
	}

	e.logger.Info("Swap resolved",
		zap.String("request_id", resolved.ID.String()),
		zap.String("status", string(resolved.Status)),
		zap.String("proposer_id", resolved.ProposerID),
		zap.String("recipient_id", resolved.RecipientID),
	)
	e.invalidate(ctx)

	return resolved, nil
}

// checkReserved проверяет что оба слота запроса существуют, зарезервированы и не сменили владельцев
func checkReserved(req *model.SwapRequest, proposerSlot, counterpartSlot *model.Slot) error {
	if proposerSlot == nil {
		return fmt.Errorf("%w: proposer slot %s of request %s is missing", model.ErrStateCorrupted, req.ProposerSlotID, req.ID)
	}
	if counterpartSlot == nil {
		return fmt.Errorf("%w: counterpart slot %s of request %s is missing", model.ErrStateCorrupted, req.CounterpartSlotID, req.ID)
	}
	if !proposerSlot.IsPendingExchange() || !counterpartSlot.IsPendingExchange() {
		return fmt.Errorf("%w: slots of pending request %s are %s and %s",
			model.ErrStateCorrupted, req.ID, proposerSlot.Status, counterpartSlot.Status)
	}
	if proposerSlot.OwnerID != req.ProposerID || counterpartSlot.OwnerID != req.RecipientID {
		return fmt.Errorf("%w: slot owners of pending request %s changed", model.ErrStateCorrupted, req.ID)
	}
	return nil
}

func keepOwner(slot *model.Slot, next model.SlotStatus) repository.SlotUpdate {
	return repository.SlotUpdate{
		ID:            slot.ID,
		ExpectOwner:   slot.OwnerID,
		ExpectStatus:  slot.Status,
		ExpectVersion: slot.Version,
		Owner:         slot.OwnerID,
		Status:        next,
	}
}

func exchangeUpdates(proposerSlot, counterpartSlot *model.Slot) ([]repository.SlotUpdate, error) {
	pNext, err := proposerSlot.Status.Apply(model.SlotEventExchange)
	if err != nil {
		return nil, err
	}
	cNext, err := counterpartSlot.Status.Apply(model.SlotEventExchange)
	if err != nil {
		return nil, err
	}

	p := keepOwner(proposerSlot, pNext)
	p.Owner = counterpartSlot.OwnerID
	c := keepOwner(counterpartSlot, cNext)
	c.Owner = proposerSlot.OwnerID

	return []repository.SlotUpdate{p, c}, nil
}

func releaseUpdates(proposerSlot, counterpartSlot *model.Slot) ([]repository.SlotUpdate, error) {
	pNext, err := proposerSlot.Status.Apply(model.SlotEventRelease)
	if err != nil {
		return nil, err
	}
	cNext, err := counterpartSlot.Status.Apply(model.SlotEventRelease)
	if err != nil {
		return nil, err
	}
	return []repository.SlotUpdate{keepOwner(proposerSlot, pNext), keepOwner(counterpartSlot, cNext)}, nil
}

// applySlotUpdates пишет слоты в порядке возрастания ID, чтобы встречные транзакции не блокировали друг друга
func applySlotUpdates(ctx context.Context, slots repository.SlotRepository, updates []repository.SlotUpdate) error {
	if len(updates) == 2 && updates[1].ID.String() < updates[0].ID.String() {
		updates[0], updates[1] = updates[1], updates[0]
	}
	for _, upd := range updates {
		if _, err := slots.Update(ctx, upd); err != nil {
			return err
		}
	}
	return nil
}

func (e *SwapEngine) enqueue(ctx context.Context, outbox repository.OutboxRepository, topic string, req *model.SwapRequest, proposerSlot, counterpartSlot *model.Slot) error {
	payload, err := json.Marshal(model.SwapEvent{
		RequestID:         req.ID,
		Status:            string(req.Status),
		ProposerID:        req.ProposerID,
		RecipientID:       req.RecipientID,
		ProposerSlotID:    req.ProposerSlotID,
		CounterpartSlotID: req.CounterpartSlotID,
		ProposerSlot:      summarize(proposerSlot),
		CounterpartSlot:   summarize(counterpartSlot),
		OccurredAt:        e.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}

	return outbox.Insert(ctx, &model.OutboxMessage{Topic: topic, Payload: payload})
}

func summarize(s *model.Slot) model.SlotSummary {
	return model.SlotSummary{Title: s.Title, StartTime: s.StartTime.UTC(), EndTime: s.EndTime.UTC()}
}

// confirmProposal перечитывает запрос после неизвестного исхода COMMIT.
// Запрос с нашим ID есть - значит транзакция применилась.
func (e *SwapEngine) confirmProposal(ctx context.Context, requestID uuid.UUID, commitErr error) (*model.SwapRequest, error) {
	req, err := e.recheck(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("propose swap: %w (recheck failed: %v)", commitErr, err)
	}
	if req == nil {
		e.logger.Warn("Swap proposal was not committed", zap.String("request_id", requestID.String()), zap.Error(commitErr))
		return nil, fmt.Errorf("propose swap: not committed: %w", errors.Unwrap(commitErr))
	}

	e.logger.Info("Swap proposed (confirmed after commit error)",
		zap.String("request_id", req.ID.String()),
		zap.String("proposer_id", req.ProposerID),
		zap.String("recipient_id", req.RecipientID),
	)
	e.invalidate(ctx)
	return req, nil
}

// confirmResolution перечитывает запрос после неизвестного исхода COMMIT
func (e *SwapEngine) confirmResolution(ctx context.Context, requestID uuid.UUID, decision model.SwapDecision, commitErr error) (*model.SwapRequest, error) {
	req, err := e.recheck(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("resolve swap: %w (recheck failed: %v)", commitErr, err)
	}
	if req == nil {
		return nil, fmt.Errorf("resolve swap: %w: request %s disappeared", model.ErrStateCorrupted, requestID)
	}

	want, _ := model.SwapStatusPending.Apply(decision)
	switch req.Status {
	case want:
		e.logger.Info("Swap resolved (confirmed after commit error)",
			zap.String("request_id", req.ID.String()),
			zap.String("status", string(req.Status)),
		)
		e.invalidate(ctx)
		return req, nil
	case model.SwapStatusPending:
		e.logger.Warn("Swap resolution was not committed", zap.String("request_id", requestID.String()), zap.Error(commitErr))
		return nil, fmt.Errorf("resolve swap: not committed: %w", errors.Unwrap(commitErr))
	default:
		return nil, fmt.Errorf("resolve swap: request %s is %s: %w", requestID, req.Status, model.ErrAlreadyResolved)
	}
}

// recheck читает запрос на контексте, не зависящем от отмены вызывающего
func (e *SwapEngine) recheck(ctx context.Context, requestID uuid.UUID) (*model.SwapRequest, error) {
	checkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.commitCheckTimeout)
	defer cancel()

	return e.store.Repositories().Requests.GetByID(checkCtx, requestID)
}

func (e *SwapEngine) invalidate(ctx context.Context) {
	if e.invalidator == nil {
		return
	}
	if err := e.invalidator.Invalidate(context.WithoutCancel(ctx)); err != nil {
		e.logger.Warn("Failed to invalidate tradeable cache", zap.Error(err))
	}
}
