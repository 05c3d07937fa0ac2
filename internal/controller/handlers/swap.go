package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/amanas96/slot-swapper/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SwappableSlots GET /api/swap/swappable-slots
func (h *Handlers) SwappableSlots(c *gin.Context) {
	slots, err := h.query.ListTradeable(c.Request.Context(), CurrentUser(c))
	if err != nil {
		h.respondError(c, "swappable_slots", err)
		return
	}

	c.JSON(http.StatusOK, toSlotList(slots))
}

// CreateSwapRequest POST /api/swap/request
func (h *Handlers) CreateSwapRequest(c *gin.Context) {
	var body createSwapRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, err)
		return
	}

	mySlotID, err := uuid.Parse(body.MySlotID)
	if err != nil {
		h.badRequest(c, fmt.Errorf("invalid mySlotId: %w", err))
		return
	}
	theirSlotID, err := uuid.Parse(body.TheirSlotID)
	if err != nil {
		h.badRequest(c, fmt.Errorf("invalid theirSlotId: %w", err))
		return
	}

	var req *model.SwapRequest
	err = h.retrier.Do(c.Request.Context(), "propose_swap", func(ctx context.Context) error {
		var err error
		req, err = h.engine.ProposeSwap(ctx, CurrentUser(c), mySlotID, theirSlotID)
		return err
	})
	if err != nil {
		h.respondError(c, "propose_swap", err)
		return
	}

	c.JSON(http.StatusCreated, toRequestResponse(req))
}

// RespondToSwapRequest POST /api/swap/response/:requestId
func (h *Handlers) RespondToSwapRequest(c *gin.Context) {
	requestID, ok := h.pathID(c, "requestId")
	if !ok {
		return
	}

	var body respondSwapRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, err)
		return
	}

	var req *model.SwapRequest
	err := h.retrier.Do(c.Request.Context(), "resolve_swap", func(ctx context.Context) error {
		var err error
		req, err = h.engine.ResolveSwap(ctx, CurrentUser(c), requestID, *body.Acceptance)
		return err
	})
	if err != nil {
		h.respondError(c, "resolve_swap", err)
		return
	}

	c.JSON(http.StatusOK, toRequestResponse(req))
}

// MyRequests GET /api/swap/my-requests
func (h *Handlers) MyRequests(c *gin.Context) {
	mine, err := h.query.ListMyRequests(c.Request.Context(), CurrentUser(c))
	if err != nil {
		h.respondError(c, "my_requests", err)
		return
	}

	c.JSON(http.StatusOK, myRequestsResponse{
		IncomingRequests: toRequestViews(mine.Incoming),
		OutgoingRequests: toRequestViews(mine.Outgoing),
	})
}
