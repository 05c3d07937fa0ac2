package model

import (
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusProcessed OutboxStatus = "processed"
	OutboxStatusDead      OutboxStatus = "dead"
)

// Темы событий, которые пишет движок обменов
const (
	TopicSwapProposed = "swap.proposed"
	TopicSwapAccepted = "swap.accepted"
	TopicSwapRejected = "swap.rejected"
)

// OutboxMessage событие, записанное в той же транзакции что и изменение состояния
type OutboxMessage struct {
	ID            uuid.UUID
	Topic         string
	Payload       []byte
	Status        OutboxStatus
	Attempts      int
	CreatedAt     time.Time
	LastAttemptAt *time.Time
}

// SwapEvent полезная нагрузка событий swap.*
type SwapEvent struct {
	RequestID         uuid.UUID   `json:"request_id"`
	Status            string      `json:"status"`
	ProposerID        string      `json:"proposer_id"`
	RecipientID       string      `json:"recipient_id"`
	ProposerSlotID    uuid.UUID   `json:"proposer_slot_id"`
	CounterpartSlotID uuid.UUID   `json:"counterpart_slot_id"`
	ProposerSlot      SlotSummary `json:"proposer_slot"`
	CounterpartSlot   SlotSummary `json:"counterpart_slot"`
	OccurredAt        time.Time   `json:"occurred_at"`
}

// SlotSummary снимок слота на момент события
type SlotSummary struct {
	Title     string    `json:"title"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}
