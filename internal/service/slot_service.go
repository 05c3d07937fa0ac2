package service

import (
	"context"
	"fmt"
	"time"

	"github.com/amanas96/slot-swapper/internal/model"
	"github.com/amanas96/slot-swapper/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type SlotService struct {
	store       repository.Store
	invalidator CacheInvalidator
	logger      *zap.Logger
}

func NewSlotService(store repository.Store, invalidator CacheInvalidator, logger *zap.Logger) *SlotService {
	return &SlotService{
		store:       store,
		invalidator: invalidator,
		logger:      logger,
	}
}

// Create создаёт новый слот в статусе busy
func (s *SlotService) Create(ctx context.Context, ownerID, title string, start, end time.Time) (*model.Slot, error) {
	slot, err := model.NewSlot(ownerID, title, start, end)
	if err != nil {
		return nil, fmt.Errorf("create slot: %w", err)
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		return repos.Slots.Create(ctx, slot)
	})
	if err != nil {
		return nil, fmt.Errorf("create slot: %w", err)
	}

	s.logger.Info("Slot created",
		zap.String("slot_id", slot.ID.String()),
		zap.String("owner_id", ownerID),
		zap.Time("start_time", slot.StartTime),
	)

	return slot, nil
}

// SetStatus переключает слот между busy и tradeable
func (s *SlotService) SetStatus(ctx context.Context, ownerID string, slotID uuid.UUID, target model.SlotStatus) (*model.Slot, error) {
	var event model.SlotEvent
	switch target {
	case model.SlotStatusBusy:
		event = model.SlotEventMarkBusy
	case model.SlotStatusTradeable:
		event = model.SlotEventMarkTradeable
	case model.SlotStatusPendingExchange:
		return nil, fmt.Errorf("set slot status: %w: pending exchange is set only by swap requests", model.ErrInvalidState)
	default:
		return nil, fmt.Errorf("set slot status: %w: unknown status %q", model.ErrInvalidInput, target)
	}

	var (
		result  *model.Slot
		changed bool
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		slot, err := repos.Slots.GetByID(ctx, slotID)
		if err != nil {
			return fmt.Errorf("get slot: %w", err)
		}
		if slot == nil {
			return fmt.Errorf("slot %s: %w", slotID, model.ErrNotFound)
		}
		if slot.OwnerID != ownerID {
			return fmt.Errorf("slot %s: %w", slotID, model.ErrNotOwner)
		}

		next, err := slot.Status.Apply(event)
		if err != nil {
			return fmt.Errorf("slot %s: %w", slotID, err)
		}
		if next == slot.Status {
			result = slot
			return nil
		}

		updated, err := repos.Slots.Update(ctx, keepOwner(slot, next))
		if err != nil {
			return err
		}
		result, changed = updated, true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("set slot status: %w", err)
	}

	if changed {
		s.logger.Info("Slot status changed",
			zap.String("slot_id", slotID.String()),
			zap.String("owner_id", ownerID),
			zap.String("status", string(result.Status)),
		)
		s.invalidate(ctx)
	}

	return result, nil
}

// Delete удаляет слот владельца, если он не участвует в обмене
func (s *SlotService) Delete(ctx context.Context, ownerID string, slotID uuid.UUID) error {
	var wasTradeable bool
	err := s.store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		slot, err := repos.Slots.GetByID(ctx, slotID)
		if err != nil {
			return fmt.Errorf("get slot: %w", err)
		}
		if slot == nil {
			return fmt.Errorf("slot %s: %w", slotID, model.ErrNotFound)
		}
		if slot.OwnerID != ownerID {
			return fmt.Errorf("slot %s: %w", slotID, model.ErrNotOwner)
		}
		if slot.IsPendingExchange() {
			return fmt.Errorf("slot %s: %w: slot is part of a pending swap", slotID, model.ErrInvalidState)
		}

		wasTradeable = slot.IsTradeable()
		return repos.Slots.Delete(ctx, slotID, ownerID, slot.Version)
	})
	if err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}

	s.logger.Info("Slot deleted", zap.String("slot_id", slotID.String()), zap.String("owner_id", ownerID))
	if wasTradeable {
		s.invalidate(ctx)
	}

	return nil
}

func (s *SlotService) invalidate(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warn("Failed to invalidate tradeable cache", zap.Error(err))
	}
}
