package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"propdesk/internal/domain"
	"propdesk/internal/repository"
	"propdesk/internal/service"
)

type PayoutHandler struct {
	Accounts *service.AccountService
}

func (h *PayoutHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/payouts")
	g.GET("", h.list)
	g.POST("/:id/approve", h.approve)
	g.POST("/:id/complete", h.complete)
	g.POST("/:id/reject", h.reject)
}

// @Summary List payouts
// @Tags payouts
// @Param status query string false "PENDING|APPROVED|COMPLETED|REJECTED"
// @Success 200 {object} map[string]any
// @Router /api/v1/payouts [get]
func (h *PayoutHandler) list(c *gin.Context) {
	params := repository.ListPayoutsParams{
		Limit:  intQuery(c, "limit", 50),
		Offset: intQuery(c, "offset", 0),
	}
	if v := strQueryPtr(c, "status"); v != nil {
		st := domain.PayoutStatus(strings.ToUpper(*v))
		params.Status = &st
	}
	items, err := h.Accounts.ListPayouts(c.Request.Context(), params)
	if err != nil {
		Fail(c, err)
		return
	}
	out := make([]payoutView, 0, len(items))
	for _, p := range items {
		out = append(out, toPayoutView(p))
	}
	Ok(c, out, nil)
}

// @Summary Approve payout
// @Tags payouts
// @Param id path int true "payout id"
// @Success 200 {object} map[string]any
// @Router /api/v1/payouts/{id}/approve [post]
func (h *PayoutHandler) approve(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	p, err := h.Accounts.ApprovePayout(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, toPayoutView(*p), nil)
}

// @Summary Complete payout
// @Description Settles the payout and restarts profit from the current balance.
// @Tags payouts
// @Param id path int true "payout id"
// @Success 200 {object} map[string]any
// @Router /api/v1/payouts/{id}/complete [post]
func (h *PayoutHandler) complete(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	p, err := h.Accounts.CompletePayout(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, toPayoutView(*p), nil)
}

type rejectPayoutRequest struct {
	Notes string `json:"notes"`
}

// @Summary Reject payout
// @Tags payouts
// @Param id path int true "payout id"
// @Accept json
// @Success 200 {object} map[string]any
// @Router /api/v1/payouts/{id}/reject [post]
func (h *PayoutHandler) reject(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	var req rejectPayoutRequest
	_ = c.ShouldBindJSON(&req)
	p, err := h.Accounts.RejectPayout(c.Request.Context(), id, req.Notes)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, toPayoutView(*p), nil)
}
