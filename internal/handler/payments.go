package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"propdesk/internal/domain"
	"propdesk/internal/service"
)

// PaymentHandler receives challenge-fee events from the payment gateway.
type PaymentHandler struct {
	Accounts *service.AccountService
}

func (h *PaymentHandler) Register(r *gin.Engine) {
	r.POST("/api/v1/payments/events", h.event)
}

type paymentEventRequest struct {
	AccountID     uint64 `json:"account_id"`
	AccountNumber string `json:"account_number"`
	Event         string `json:"event"`
	Reason        string `json:"reason"`
}

// @Summary Payment event
// @Description event is payment_confirmed or payment_failed. The account may be named by id or number.
// @Tags payments
// @Accept json
// @Success 200 {object} map[string]any
// @Router /api/v1/payments/events [post]
func (h *PaymentHandler) event(c *gin.Context) {
	var req paymentEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	ctx := c.Request.Context()
	id := req.AccountID
	if id == 0 {
		number := strings.TrimSpace(req.AccountNumber)
		if number == "" {
			Error(c, http.StatusBadRequest, "account_id or account_number is required", nil)
			return
		}
		a, err := h.Accounts.GetAccountByNumber(ctx, number)
		if err != nil {
			Fail(c, err)
			return
		}
		id = a.ID
	}

	var (
		a   *domain.Account
		err error
	)
	switch strings.ToLower(strings.TrimSpace(req.Event)) {
	case "payment_confirmed", "confirmed":
		a, err = h.Accounts.ConfirmPayment(ctx, id)
	case "payment_failed", "failed":
		a, err = h.Accounts.FailPayment(ctx, id, req.Reason)
	default:
		Error(c, http.StatusBadRequest, "unknown event", nil)
		return
	}
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, toAccountView(*a), nil)
}
