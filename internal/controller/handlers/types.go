package handlers

import (
	"time"

	"github.com/amanas96/slot-swapper/internal/model"
	"github.com/amanas96/slot-swapper/internal/service"
	"go.uber.org/zap"
)

// Handlers содержит все зависимости HTTP обработчиков
type Handlers struct {
	engine  *service.SwapEngine
	slots   *service.SlotService
	query   *service.QueryService
	retrier *service.Retrier
	logger  *zap.Logger
}

// NewHandlers создаёт набор обработчиков
func NewHandlers(
	engine *service.SwapEngine,
	slots *service.SlotService,
	query *service.QueryService,
	retrier *service.Retrier,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		engine:  engine,
		slots:   slots,
		query:   query,
		retrier: retrier,
		logger:  logger,
	}
}

// Статусы слота в формате клиента
const (
	wireStatusBusy        = "BUSY"
	wireStatusSwappable   = "SWAPPABLE"
	wireStatusSwapPending = "SWAP_PENDING"
)

var slotStatusToWire = map[model.SlotStatus]string{
	model.SlotStatusBusy:            wireStatusBusy,
	model.SlotStatusTradeable:       wireStatusSwappable,
	model.SlotStatusPendingExchange: wireStatusSwapPending,
}

var swapStatusToWire = map[model.SwapStatus]string{
	model.SwapStatusPending:  "PENDING",
	model.SwapStatusAccepted: "ACCEPTED",
	model.SwapStatusRejected: "REJECTED",
}

// parseWireStatus переводит статус клиента во внутренний; false для неизвестного
func parseWireStatus(s string) (model.SlotStatus, bool) {
	for status, wire := range slotStatusToWire {
		if wire == s {
			return status, true
		}
	}
	return "", false
}

type createEventRequest struct {
	Title     string    `json:"title" binding:"required"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

type updateEventRequest struct {
	Status string `json:"status" binding:"required"`
}

type createSwapRequest struct {
	MySlotID    string `json:"mySlotId" binding:"required"`
	TheirSlotID string `json:"theirSlotId" binding:"required"`
}

type respondSwapRequest struct {
	Acceptance *bool `json:"acceptance" binding:"required"`
}

type slotResponse struct {
	ID        string    `json:"_id"`
	Title     string    `json:"title"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Status    string    `json:"status"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type requestResponse struct {
	ID            string     `json:"_id"`
	Status        string     `json:"status"`
	Requester     string     `json:"requester"`
	Recipient     string     `json:"recipient"`
	RequesterSlot string     `json:"requesterSlot"`
	RecipientSlot string     `json:"recipientSlot"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	ResolvedAt    *time.Time `json:"resolvedAt,omitempty"`
}

// requestViewResponse запрос с подставленными слотами
type requestViewResponse struct {
	ID            string        `json:"_id"`
	Status        string        `json:"status"`
	Requester     string        `json:"requester"`
	Recipient     string        `json:"recipient"`
	RequesterSlot *slotResponse `json:"requesterSlot"`
	RecipientSlot *slotResponse `json:"recipientSlot"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

type myRequestsResponse struct {
	IncomingRequests []requestViewResponse `json:"incomingRequests"`
	OutgoingRequests []requestViewResponse `json:"outgoingRequests"`
}

type deleteEventResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

func toSlotResponse(s *model.Slot) *slotResponse {
	if s == nil {
		return nil
	}
	return &slotResponse{
		ID:        s.ID.String(),
		Title:     s.Title,
		StartTime: s.StartTime.UTC(),
		EndTime:   s.EndTime.UTC(),
		Status:    slotStatusToWire[s.Status],
		Owner:     s.OwnerID,
		CreatedAt: s.CreatedAt.UTC(),
		UpdatedAt: s.UpdatedAt.UTC(),
	}
}

func toSlotList(slots []*model.Slot) []*slotResponse {
	out := make([]*slotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, toSlotResponse(s))
	}
	return out
}

func toRequestResponse(r *model.SwapRequest) requestResponse {
	resp := requestResponse{
		ID:            r.ID.String(),
		Status:        swapStatusToWire[r.Status],
		Requester:     r.ProposerID,
		Recipient:     r.RecipientID,
		RequesterSlot: r.ProposerSlotID.String(),
		RecipientSlot: r.CounterpartSlotID.String(),
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
	if r.ResolvedAt != nil {
		at := r.ResolvedAt.UTC()
		resp.ResolvedAt = &at
	}
	return resp
}

func toRequestViews(views []*model.RequestView) []requestViewResponse {
	out := make([]requestViewResponse, 0, len(views))
	for _, v := range views {
		out = append(out, requestViewResponse{
			ID:            v.Request.ID.String(),
			Status:        swapStatusToWire[v.Request.Status],
			Requester:     v.Request.ProposerID,
			Recipient:     v.Request.RecipientID,
			RequesterSlot: toSlotResponse(v.ProposerSlot),
			RecipientSlot: toSlotResponse(v.CounterpartSlot),
			CreatedAt:     v.Request.CreatedAt.UTC(),
			UpdatedAt:     v.Request.UpdatedAt.UTC(),
		})
	}
	return out
}
