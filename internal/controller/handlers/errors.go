package handlers

import (
	"errors"
	"net/http"

	"github.com/amanas96/slot-swapper/internal/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type errorResponse struct {
	Message   string `json:"message"`
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable"`
}

type errorKind struct {
	target  error
	status  int
	code    string
	message string
}

// порядок важен: первая совпавшая ошибка определяет ответ
var errorKinds = []errorKind{
	{model.ErrNotFound, http.StatusNotFound, "NOT_FOUND", "Resource not found"},
	{model.ErrNotOwner, http.StatusForbidden, "NOT_OWNER", "You are not the owner of this slot"},
	{model.ErrNotAuthorized, http.StatusForbidden, "NOT_AUTHORIZED", "You are not authorized to respond to this request"},
	{model.ErrSelfTrade, http.StatusBadRequest, "SELF_TRADE", "You cannot swap with yourself"},
	{model.ErrInvalidInput, http.StatusBadRequest, "INVALID_INPUT", "Invalid input"},
	{model.ErrInvalidState, http.StatusConflict, "INVALID_STATE", "Slot is not in the required state"},
	{model.ErrAlreadyResolved, http.StatusConflict, "ALREADY_RESOLVED", "This swap request has already been responded to"},
	{model.ErrConflict, http.StatusConflict, "CONFLICT", "Concurrent update, please retry"},
	{model.ErrStateCorrupted, http.StatusInternalServerError, "STATE_CORRUPTED", "Swap state is inconsistent"},
}

func classify(err error) (int, errorResponse) {
	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			return k.status, errorResponse{
				Message:   k.message,
				Error:     err.Error(),
				Code:      k.code,
				Retryable: model.IsRetryable(err),
			}
		}
	}
	return http.StatusInternalServerError, errorResponse{
		Message: "Internal server error",
		Error:   err.Error(),
		Code:    "INTERNAL",
	}
}

// respondError пишет JSON ошибку; 5xx логируются
func (h *Handlers) respondError(c *gin.Context, op string, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("op", op),
			zap.String("user_id", CurrentUser(c)),
			zap.String("code", body.Code),
			zap.Error(err))
	}
	c.AbortWithStatusJSON(status, body)
}

// badRequest ответ на невалидное тело или параметр
func (h *Handlers) badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
		Message: "Invalid input",
		Error:   err.Error(),
		Code:    "INVALID_INPUT",
	})
}
