package service

import (
	"context"
	"fmt"

	"github.com/amanas96/slot-swapper/internal/model"
	"github.com/amanas96/slot-swapper/internal/repository"
	"go.uber.org/zap"
)

// TradeableCache кэш витрины: все слоты в статусе tradeable, по поколениям.
// Invalidate начинает новое поколение.
type TradeableCache interface {
	CacheInvalidator
	Generation(ctx context.Context) (int64, error)
	Get(ctx context.Context, gen int64) ([]*model.Slot, bool, error)
	Set(ctx context.Context, gen int64, slots []*model.Slot) error
}

// QueryService чтения вне транзакций, отражающие последнее зафиксированное состояние
type QueryService struct {
	store  repository.Store
	cache  TradeableCache
	logger *zap.Logger
}

func NewQueryService(store repository.Store, cache TradeableCache, logger *zap.Logger) *QueryService {
	return &QueryService{
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

// ListTradeable возвращает чужие слоты, выставленные на обмен, по времени начала
func (s *QueryService) ListTradeable(ctx context.Context, excludeUserID string) ([]*model.Slot, error) {
	if s.cache == nil {
		return s.listTradeable(ctx, excludeUserID)
	}

	gen, err := s.cache.Generation(ctx)
	if err != nil {
		s.logger.Warn("Tradeable cache generation read failed", zap.Error(err))
		return s.listTradeable(ctx, excludeUserID)
	}

	all, ok, err := s.cache.Get(ctx, gen)
	if err != nil {
		s.logger.Warn("Tradeable cache read failed", zap.Error(err))
	}
	if !ok {
		// пустой владелец не совпадает ни с одним пользователем
		all, err = s.listTradeable(ctx, "")
		if err != nil {
			return nil, err
		}
		// поколение прочитано до запроса к хранилищу: если запись успела
		// сбросить кэш, эта витрина ляжет в ключ, который уже не читают
		if err := s.cache.Set(ctx, gen, all); err != nil {
			s.logger.Warn("Tradeable cache write failed", zap.Error(err))
		}
	}

	slots := make([]*model.Slot, 0, len(all))
	for _, slot := range all {
		if slot.OwnerID != excludeUserID {
			slots = append(slots, slot)
		}
	}
	return slots, nil
}

func (s *QueryService) listTradeable(ctx context.Context, excludeUserID string) ([]*model.Slot, error) {
	slots, err := s.store.Repositories().Slots.ListTradeable(ctx, excludeUserID)
	if err != nil {
		return nil, fmt.Errorf("list tradeable slots: %w", err)
	}
	return slots, nil
}

// ListMySlots возвращает слоты пользователя
func (s *QueryService) ListMySlots(ctx context.Context, ownerID string) ([]*model.Slot, error) {
	slots, err := s.store.Repositories().Slots.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list my slots: %w", err)
	}
	return slots, nil
}

// ListMyRequests возвращает входящие и исходящие pending запросы вместе со слотами
func (s *QueryService) ListMyRequests(ctx context.Context, userID string) (*model.MyRequests, error) {
	requests := s.store.Repositories().Requests

	incoming, err := requests.ListPendingViews(ctx, userID, repository.SideIncoming)
	if err != nil {
		return nil, fmt.Errorf("list incoming requests: %w", err)
	}
	outgoing, err := requests.ListPendingViews(ctx, userID, repository.SideOutgoing)
	if err != nil {
		return nil, fmt.Errorf("list outgoing requests: %w", err)
	}

	return &model.MyRequests{Incoming: incoming, Outgoing: outgoing}, nil
}
