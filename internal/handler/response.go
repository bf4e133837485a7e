package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"propdesk/internal/domain"
)

type apiResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.JSON(status, apiResponse{
		Code:    status,
		Message: message,
		Meta:    meta,
	})
}

// Fail maps an error kind to its HTTP status.
func Fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	kind := "internal"
	switch {
	case errors.Is(err, domain.ErrValidation):
		status, kind = http.StatusBadRequest, "validation"
	case errors.Is(err, domain.ErrNotFound):
		status, kind = http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrConcurrentModification):
		status, kind = http.StatusConflict, "concurrent_modification"
	case errors.Is(err, domain.ErrInvalidTransition):
		status, kind = http.StatusConflict, "invalid_transition"
	case errors.Is(err, domain.ErrIneligiblePayout):
		status, kind = http.StatusUnprocessableEntity, "ineligible_payout"
	case errors.Is(err, domain.ErrTerminalAccount):
		status, kind = http.StatusLocked, "terminal_account"
	case errors.Is(err, domain.ErrStaleMarketData):
		status, kind = http.StatusServiceUnavailable, "stale_market_data"
	}
	Error(c, status, err.Error(), map[string]any{"kind": kind})
}
