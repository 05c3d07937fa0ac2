package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/amanas96/slot-swapper/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CreateEvent POST /api/events
func (h *Handlers) CreateEvent(c *gin.Context) {
	var body createEventRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, err)
		return
	}

	slot, err := h.slots.Create(c.Request.Context(), CurrentUser(c), body.Title, body.StartTime, body.EndTime)
	if err != nil {
		h.respondError(c, "create_event", err)
		return
	}

	c.JSON(http.StatusCreated, toSlotResponse(slot))
}

// ListMyEvents GET /api/events
func (h *Handlers) ListMyEvents(c *gin.Context) {
	slots, err := h.query.ListMySlots(c.Request.Context(), CurrentUser(c))
	if err != nil {
		h.respondError(c, "list_events", err)
		return
	}

	c.JSON(http.StatusOK, toSlotList(slots))
}

// UpdateEvent PUT /api/events/:id, меняет только статус
func (h *Handlers) UpdateEvent(c *gin.Context) {
	slotID, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	var body updateEventRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, err)
		return
	}
	target, known := parseWireStatus(body.Status)
	if !known {
		h.badRequest(c, fmt.Errorf("unknown status %q", body.Status))
		return
	}

	var slot *model.Slot
	err := h.retrier.Do(c.Request.Context(), "update_event", func(ctx context.Context) error {
		var err error
		slot, err = h.slots.SetStatus(ctx, CurrentUser(c), slotID, target)
		return err
	})
	if err != nil {
		h.respondError(c, "update_event", err)
		return
	}

	c.JSON(http.StatusOK, toSlotResponse(slot))
}

// DeleteEvent DELETE /api/events/:id
func (h *Handlers) DeleteEvent(c *gin.Context) {
	slotID, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	err := h.retrier.Do(c.Request.Context(), "delete_event", func(ctx context.Context) error {
		return h.slots.Delete(ctx, CurrentUser(c), slotID)
	})
	if err != nil {
		h.respondError(c, "delete_event", err)
		return
	}

	c.JSON(http.StatusOK, deleteEventResponse{Message: "Event removed", ID: slotID.String()})
}

func (h *Handlers) pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.badRequest(c, fmt.Errorf("invalid %s: %w", name, err))
		return uuid.Nil, false
	}
	return id, true
}
