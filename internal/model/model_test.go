package model

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotStatusApply(t *testing.T) {
	tests := []struct {
		from    SlotStatus
		event   SlotEvent
		want    SlotStatus
		wantErr bool
	}{
		{SlotStatusBusy, SlotEventMarkTradeable, SlotStatusTradeable, false},
		{SlotStatusBusy, SlotEventMarkBusy, SlotStatusBusy, false},
		{SlotStatusBusy, SlotEventReserve, SlotStatusBusy, true},
		{SlotStatusBusy, SlotEventRelease, SlotStatusBusy, true},
		{SlotStatusBusy, SlotEventExchange, SlotStatusBusy, true},
		{SlotStatusTradeable, SlotEventMarkBusy, SlotStatusBusy, false},
		{SlotStatusTradeable, SlotEventMarkTradeable, SlotStatusTradeable, false},
		{SlotStatusTradeable, SlotEventReserve, SlotStatusPendingExchange, false},
		{SlotStatusTradeable, SlotEventExchange, SlotStatusTradeable, true},
		{SlotStatusPendingExchange, SlotEventRelease, SlotStatusTradeable, false},
		{SlotStatusPendingExchange, SlotEventExchange, SlotStatusBusy, false},
		{SlotStatusPendingExchange, SlotEventMarkBusy, SlotStatusPendingExchange, true},
		{SlotStatusPendingExchange, SlotEventMarkTradeable, SlotStatusPendingExchange, true},
		{SlotStatusPendingExchange, SlotEventReserve, SlotStatusPendingExchange, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.event), func(t *testing.T) {
			got, err := tt.from.Apply(tt.event)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidState)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSlotStatusValid(t *testing.T) {
	assert.True(t, SlotStatusBusy.Valid())
	assert.True(t, SlotStatusPendingExchange.Valid())
	assert.False(t, SlotStatus("SWAPPABLE").Valid())
}

func TestSwapStatusApply(t *testing.T) {
	got, err := SwapStatusPending.Apply(SwapDecisionAccept)
	require.NoError(t, err)
	assert.Equal(t, SwapStatusAccepted, got)

	got, err = SwapStatusPending.Apply(SwapDecisionReject)
	require.NoError(t, err)
	assert.Equal(t, SwapStatusRejected, got)

	for _, terminal := range []SwapStatus{SwapStatusAccepted, SwapStatusRejected} {
		for _, d := range []SwapDecision{SwapDecisionAccept, SwapDecisionReject} {
			got, err := terminal.Apply(d)
			assert.ErrorIs(t, err, ErrAlreadyResolved)
			assert.Equal(t, terminal, got)
		}
	}

	_, err = SwapStatusPending.Apply(SwapDecision("maybe"))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestNewSlot(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	slot, err := NewSlot("alice", "  Standup  ", start, end)
	require.NoError(t, err)
	assert.Equal(t, "Standup", slot.Title)
	assert.Equal(t, SlotStatusBusy, slot.Status)
	assert.Equal(t, "alice", slot.OwnerID)
	assert.NotEqual(t, uuid.Nil, slot.ID)

	_, err = NewSlot("alice", " ", start, end)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewSlot("alice", "x", end, start)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewSlot("alice", "x", start, start)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewSlot("", "x", start, end)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrConflict))
	assert.True(t, IsRetryable(errors.Join(errors.New("update slot"), ErrConflict)))
	assert.False(t, IsRetryable(ErrInvalidState))
	assert.False(t, IsRetryable(ErrStateCorrupted))
	assert.False(t, IsRetryable(nil))
}

func TestSwapRequestInvolves(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	req := &SwapRequest{ProposerSlotID: a, CounterpartSlotID: b, Status: SwapStatusPending}
	assert.True(t, req.Involves(a))
	assert.True(t, req.Involves(b))
	assert.False(t, req.Involves(uuid.New()))
	assert.True(t, req.IsPending())
	assert.False(t, req.IsAccepted())
	assert.Equal(t, SwapDecisionAccept, DecisionFromBool(true))
	assert.Equal(t, SwapDecisionReject, DecisionFromBool(false))
}
