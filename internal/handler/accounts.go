package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"propdesk/internal/domain"
	"propdesk/internal/repository"
	"propdesk/internal/risk"
	"propdesk/internal/service"
)

type AccountHandler struct {
	Accounts *service.AccountService
}

func (h *AccountHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/accounts")
	g.GET("", h.list)
	g.POST("", h.open)
	g.GET("/:id", h.get)
	g.POST("/:id/evaluate", h.evaluate)
	g.POST("/:id/promote", h.promote)
	g.POST("/:id/close", h.close)
	g.POST("/:id/notes", h.addNote)
	g.POST("/:id/trade-checks", h.tradeCheck)
	g.GET("/:id/statistics", h.statistics)
	g.GET("/:id/violations", h.violations)
	g.GET("/:id/activities", h.activities)
	g.GET("/:id/payouts", h.payouts)
	g.POST("/:id/payouts", h.requestPayout)
}

var accountOrderFields = map[string]string{
	"id":                "id",
	"created_at":        "created_at",
	"updated_at":        "updated_at",
	"current_balance":   "current_balance",
	"profit_earned":     "profit_earned",
	"last_evaluated_at": "last_evaluated_at",
}

// @Summary List accounts
// @Tags accounts
// @Param state query string false "account state"
// @Param plan_id query int false "plan id"
// @Param order_by query string false "id|created_at|updated_at|current_balance|profit_earned|last_evaluated_at"
// @Param asc query bool false "ascending"
// @Param limit query int false "limit"
// @Param offset query int false "offset"
// @Success 200 {object} map[string]any
// @Router /api/v1/accounts [get]
func (h *AccountHandler) list(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListAccountsParams{
		Limit:   limit,
		Offset:  offset,
		PlanID:  uint64QueryPtr(c, "plan_id"),
		OrderBy: parseOrder(c.Query("order_by"), accountOrderFields),
		Asc:     boolQueryPtr(c, "asc"),
	}
	if v := strQueryPtr(c, "state"); v != nil {
		st := domain.State(strings.ToUpper(*v))
		if !st.Valid() {
			Error(c, http.StatusBadRequest, "invalid state", nil)
			return
		}
		params.State = &st
	}
	if params.OrderBy == "" {
		params.OrderBy = "id"
		params.Asc = boolPtr(false)
	}
	items, total, err := h.Accounts.ListAccounts(c.Request.Context(), params)
	if err != nil {
		Fail(c, err)
		return
	}
	out := make([]accountView, 0, len(items))
	for _, a := range items {
		out = append(out, toAccountView(a))
	}
	Ok(c, out, paginationMeta(limit, offset, total))
}

type openAccountRequest struct {
	PlanID uint64 `json:"plan_id"`
}

// @Summary Open account
// @Description Creates a PENDING account on an active plan. It activates once payment is confirmed.
// @Tags accounts
// @Accept json
// @Success 200 {object} map[string]any
// @Router /api/v1/accounts [post]
func (h *AccountHandler) open(c *gin.Context) {
	var req openAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PlanID == 0 {
		Error(c, http.StatusBadRequest, "plan_id is required", nil)
		return
	}
	a, err := h.Accounts.OpenAccount(c.Request.Context(), req.PlanID)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, toAccountView(*a), nil)
}

// @Summary Get account
// @Tags accounts
// @Param id path int true "account id"
// @Success 200 {object} map[string]any
// @Router /api/v1/accounts/{id} [get]
func (h *AccountHandler) get(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	a, err := h.Accounts.GetAccount(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, toAccountView(*a), nil)
}

// @Summary Evaluate account
// @Description Refreshes metrics, records violations and applies any automatic transition.
// @Tags accounts
// @Param id path int true "account id"
// @Success 200 {object} map[string]any
// @Router /api/v1/accounts/{id}/evaluate [post]
func (h *AccountHandler) evaluate(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	res, err := h.Accounts.EvaluateAccount(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, toEvaluationView(res), nil)
}

// @Summary Promote to funded
// @Tags accounts
// @Param id path int true "account id"
// @Success 200 {object} map[string]any
// @Router /api/v1/accounts/{id}/promote [post]
func (h *AccountHandler) promote(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	a, err := h.Accounts.PromoteToFunded(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, toAccountView(*a), nil)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

// @Summary Close account
// @Tags accounts
// @Param id path int true "account id"
// @Accept json
// @Success 200 {object} map[string]any
// @Router /api/v1/accounts/{id}/close [post]
func (h *AccountHandler) close(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	var req reasonRequest
	_ = c.ShouldBindJSON(&req)
	a, err := h.Accounts.CloseAccount(c.Request.Context(), id, req.Reason)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, toAccountView(*a), nil)
}

type noteRequest struct {
	Text string `json:"text"`
}

// @Summary Add note
// @Tags accounts
// @Param id path int true "account id"
// @Accept json
// @Success 200 {object} map[string]any
// @Router /api/v1/accounts/{id}/notes [post]
func (h *AccountHandler) addNote(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	var req noteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	entry, err := h.Accounts.AddNote(c.Request.Context(), id, req.Text)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, toActivityView(*entry), nil)
}

type tradeCheckRequest struct {
	AssetID   string          `json:"asset_id"`
	Direction string          `json:"direction"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// @Summary Pre-trade check
// @Tags accounts
// @Param id path int true "account id"
// @Accept json
// @Success 200 {object} map[string]any
// @Router /api/v1/accounts/{id}/trade-checks [post]
func (h *AccountHandler) tradeCheck(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	var req tradeCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	res, err := h.Accounts.ValidateTrade(c.Request.Context(), id, risk.TradeIntent{
		AssetID:   strings.TrimSpace(req.AssetID),
		Direction: domain.Direction(strings.ToUpper(strings.TrimSpace(req.Direction))),
		Quantity:  req.Quantity,
		Price:     req.Price,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, toTradeCheckView(res), nil)
}

// @Summary Account statistics
// @Tags accounts
// @Param id path int true "account id"
// @Success 200 {object} map[string]any
// @Router /api/v1/accounts/{id}/statistics [get]
func (h *AccountHandler) statistics(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	st, err := h.Accounts.Statistics(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, toStatisticsView(st), nil)
}

// @Summary Account violations
// @Tags accounts
// @Param id path int true "account id"
// @Param type query string false "violation type"
// @Param unresolved query bool false "only unresolved"
// @Success 200 {object} map[string]any
// @Router /api/v1/accounts/{id}/violations [get]
func (h *AccountHandler) violations(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	params := repository.ListViolationsParams{
		AccountID:  id,
		Unresolved: boolQueryDefault(c, "unresolved", false),
		Limit:      intQuery(c, "limit", 100),
		Offset:     intQuery(c, "offset", 0),
	}
	if v := strQueryPtr(c, "type"); v != nil {
		typ := domain.ViolationType(strings.ToUpper(*v))
		params.Type = &typ
	}
	items, err := h.Accounts.ListViolations(c.Request.Context(), params)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, toViolationViews(items), nil)
}

// @Summary Account activity log
// @Tags accounts
// @Param id path int true "account id"
// @Param type query string false "activity type"
// @Success 200 {object} map[string]any
// @Router /api/v1/accounts/{id}/activities [get]
func (h *AccountHandler) activities(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	params := repository.ListActivitiesParams{
		AccountID: id,
		Limit:     intQuery(c, "limit", 100),
		Offset:    intQuery(c, "offset", 0),
	}
	if v := strQueryPtr(c, "type"); v != nil {
		typ := domain.ActivityType(strings.ToUpper(*v))
		params.Type = &typ
	}
	items, err := h.Accounts.ListActivities(c.Request.Context(), params)
	if err != nil {
		Fail(c, err)
		return
	}
	out := make([]activityView, 0, len(items))
	for _, a := range items {
		out = append(out, toActivityView(a))
	}
	Ok(c, out, nil)
}

// @Summary Account payouts
// @Tags payouts
// @Param id path int true "account id"
// @Success 200 {object} map[string]any
// @Router /api/v1/accounts/{id}/payouts [get]
func (h *AccountHandler) payouts(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	items, err := h.Accounts.ListPayouts(c.Request.Context(), repository.ListPayoutsParams{
		AccountID: id,
		Limit:     intQuery(c, "limit", 50),
		Offset:    intQuery(c, "offset", 0),
	})
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

type payoutRequest struct {
	Method  string         `json:"method"`
	Details map[string]any `json:"details"`
}

// @Summary Request payout
// @Description Snapshots the account's profit and files a PENDING request for profit × split.
// @Tags payouts
// @Param id path int true "account id"
// @Accept json
// @Success 200 {object} map[string]any
// @Router /api/v1/accounts/{id}/payouts [post]
func (h *AccountHandler) requestPayout(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	var req payoutRequest
	_ = c.ShouldBindJSON(&req)
	p, err := h.Accounts.RequestPayout(c.Request.Context(), id, req.Method, req.Details)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, toPayoutView(*p), nil)
}
