package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type SwapStatus string

// Swap request status constants
const (
	SwapStatusPending  SwapStatus = "pending"
	SwapStatusAccepted SwapStatus = "accepted"
	SwapStatusRejected SwapStatus = "rejected"
)

// SwapDecision is the recipient's answer to a pending request
type SwapDecision string

const (
	SwapDecisionAccept SwapDecision = "accept"
	SwapDecisionReject SwapDecision = "reject"
)

// DecisionFromBool maps the wire-level acceptance flag to a decision
func DecisionFromBool(accept bool) SwapDecision {
	if accept {
		return SwapDecisionAccept
	}
	return SwapDecisionReject
}

// Apply returns the status after the decision. Terminal statuses never change.
func (s SwapStatus) Apply(decision SwapDecision) (SwapStatus, error) {
	if s != SwapStatusPending {
		return s, fmt.Errorf("%w: request is %s", ErrAlreadyResolved, s)
	}
	switch decision {
	case SwapDecisionAccept:
		return SwapStatusAccepted, nil
	case SwapDecisionReject:
		return SwapStatusRejected, nil
	default:
		return s, fmt.Errorf("%w: unknown decision %q", ErrInvalidInput, decision)
	}
}

// SwapRequest represents a proposal to exchange ownership of two slots
type SwapRequest struct {
	ID                uuid.UUID  `json:"id"`
	Status            SwapStatus `json:"status"`
	ProposerID        string     `json:"proposer_id"`
	ProposerSlotID    uuid.UUID  `json:"proposer_slot_id"`
	RecipientID       string     `json:"recipient_id"`
	CounterpartSlotID uuid.UUID  `json:"counterpart_slot_id"`
	Version           int64      `json:"version"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	ResolvedAt        *time.Time `json:"resolved_at"`
}

// IsPending checks if request is pending
func (r *SwapRequest) IsPending() bool {
	return r.Status == SwapStatusPending
}

// IsAccepted checks if request is accepted
func (r *SwapRequest) IsAccepted() bool {
	return r.Status == SwapStatusAccepted
}

// IsRejected checks if request is rejected
func (r *SwapRequest) IsRejected() bool {
	return r.Status == SwapStatusRejected
}

// Involves reports whether the slot is one of the two slots of the request
func (r *SwapRequest) Involves(slotID uuid.UUID) bool {
	return r.ProposerSlotID == slotID || r.CounterpartSlotID == slotID
}

// RequestView is a request joined with both of its slots for the read side
type RequestView struct {
	Request         *SwapRequest
	ProposerSlot    *Slot
	CounterpartSlot *Slot
}

// MyRequests groups the pending requests a user takes part in
type MyRequests struct {
	Incoming []*RequestView
	Outgoing []*RequestView
}
