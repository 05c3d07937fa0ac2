package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/amanas96/slot-swapper/internal/model"
	"github.com/amanas96/slot-swapper/internal/repository"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err       error
		status    int
		code      string
		retryable bool
	}{
		{model.ErrNotFound, http.StatusNotFound, "NOT_FOUND", false},
		{model.ErrNotOwner, http.StatusForbidden, "NOT_OWNER", false},
		{model.ErrNotAuthorized, http.StatusForbidden, "NOT_AUTHORIZED", false},
		{model.ErrSelfTrade, http.StatusBadRequest, "SELF_TRADE", false},
		{model.ErrInvalidInput, http.StatusBadRequest, "INVALID_INPUT", false},
		{model.ErrInvalidState, http.StatusConflict, "INVALID_STATE", false},
		{model.ErrAlreadyResolved, http.StatusConflict, "ALREADY_RESOLVED", false},
		{fmt.Errorf("propose swap: %w", model.ErrConflict), http.StatusConflict, "CONFLICT", true},
		{model.ErrStateCorrupted, http.StatusInternalServerError, "STATE_CORRUPTED", false},
		{&repository.CommitError{Err: errors.New("connection reset")}, http.StatusInternalServerError, "INTERNAL", false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			status, body := classify(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, tt.retryable, body.Retryable)
			assert.Equal(t, tt.err.Error(), body.Error)
		})
	}
}

func TestParseWireStatus(t *testing.T) {
	status, ok := parseWireStatus("SWAPPABLE")
	assert.True(t, ok)
	assert.Equal(t, model.SlotStatusTradeable, status)

	status, ok = parseWireStatus("BUSY")
	assert.True(t, ok)
	assert.Equal(t, model.SlotStatusBusy, status)

	_, ok = parseWireStatus("swappable")
	assert.False(t, ok)
}
