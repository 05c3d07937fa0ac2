package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type SlotStatus string

const (
	SlotStatusBusy            SlotStatus = "busy"
	SlotStatusTradeable       SlotStatus = "tradeable"
	SlotStatusPendingExchange SlotStatus = "pending_exchange"
)

// SlotEvent событие, переводящее слот из одного статуса в другой
type SlotEvent string

const (
	SlotEventMarkTradeable SlotEvent = "mark_tradeable"
	SlotEventMarkBusy      SlotEvent = "mark_busy"
	SlotEventReserve       SlotEvent = "reserve"
	SlotEventRelease       SlotEvent = "release"
	SlotEventExchange      SlotEvent = "exchange"
)

// slotTransitions таблица переходов: статус -> событие -> новый статус
var slotTransitions = map[SlotStatus]map[SlotEvent]SlotStatus{
	SlotStatusBusy: {
		SlotEventMarkTradeable: SlotStatusTradeable,
		SlotEventMarkBusy:      SlotStatusBusy,
	},
	SlotStatusTradeable: {
		SlotEventMarkTradeable: SlotStatusTradeable,
		SlotEventMarkBusy:      SlotStatusBusy,
		SlotEventReserve:       SlotStatusPendingExchange,
	},
	SlotStatusPendingExchange: {
		SlotEventRelease:  SlotStatusTradeable,
		SlotEventExchange: SlotStatusBusy,
	},
}

// Valid проверяет что статус известен
func (s SlotStatus) Valid() bool {
	_, ok := slotTransitions[s]
	return ok
}

// Apply возвращает статус после события или ErrInvalidState
func (s SlotStatus) Apply(event SlotEvent) (SlotStatus, error) {
	next, ok := slotTransitions[s][event]
	if !ok {
		return s, fmt.Errorf("%w: slot cannot %s while %s", ErrInvalidState, event, s)
	}
	return next, nil
}

// Slot временной слот, принадлежащий одному пользователю
type Slot struct {
	ID        uuid.UUID  `json:"id"`
	Title     string     `json:"title"`
	StartTime time.Time  `json:"start_time"`
	EndTime   time.Time  `json:"end_time"`
	OwnerID   string     `json:"owner_id"`
	Status    SlotStatus `json:"status"`
	Version   int64      `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// IsTradeable проверяет что слот выставлен на обмен
func (s *Slot) IsTradeable() bool {
	return s.Status == SlotStatusTradeable
}

// IsPendingExchange проверяет что слот зарезервирован запросом на обмен
func (s *Slot) IsPendingExchange() bool {
	return s.Status == SlotStatusPendingExchange
}

// NewSlot собирает новый слот в статусе busy после проверки входных данных
func NewSlot(ownerID, title string, start, end time.Time) (*Slot, error) {
	title = strings.TrimSpace(title)
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalidInput)
	}
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if start.IsZero() || end.IsZero() {
		return nil, fmt.Errorf("%w: start and end time are required", ErrInvalidInput)
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("%w: start time must be before end time", ErrInvalidInput)
	}

	return &Slot{
		ID:        uuid.New(),
		Title:     title,
		StartTime: start.UTC(),
		EndTime:   end.UTC(),
		OwnerID:   ownerID,
		Status:    SlotStatusBusy,
	}, nil
}
