package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"propdesk/internal/domain"
	"propdesk/internal/money"
	"propdesk/internal/service"
)

type PlanHandler struct {
	Plans *service.PlanService
}

func (h *PlanHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/plans")
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.get)
	g.POST("/:id/revisions", h.revise)
}

type planRequest struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	Type            string `json:"type"`
	StartingBalance string `json:"starting_balance"`
	Price           string `json:"price"`
	MaxDailyLoss    string `json:"max_daily_loss"`
	MaxTotalLoss    string `json:"max_total_loss"`
	ProfitTarget    string `json:"profit_target"`
	MinTradingDays  int    `json:"min_trading_days"`
	MaxPositionSize string `json:"max_position_size"`
	ProfitSplit     string `json:"profit_split"`
	FundedPlanID    uint64 `json:"funded_plan_id"`
}

func (req planRequest) toPlan() (domain.Plan, error) {
	const op = "plan.decode"
	p := domain.Plan{
		Name:           strings.TrimSpace(req.Name),
		Description:    strings.TrimSpace(req.Description),
		Type:           domain.PlanType(strings.ToUpper(strings.TrimSpace(req.Type))),
		MinTradingDays: req.MinTradingDays,
		FundedPlanID:   req.FundedPlanID,
	}
	amounts := []struct {
		field string
		raw   string
		dst   *money.Cents
	}{
		{"starting_balance", req.StartingBalance, &p.StartingBalance},
		{"price", req.Price, &p.Price},
		{"max_daily_loss", req.MaxDailyLoss, &p.MaxDailyLoss},
		{"max_total_loss", req.MaxTotalLoss, &p.MaxTotalLoss},
		{"profit_target", req.ProfitTarget, &p.ProfitTarget},
	}
	for _, a := range amounts {
		if strings.TrimSpace(a.raw) == "" {
			continue
		}
		v, err := money.Parse(a.raw)
		if err != nil {
			return p, domain.Validation(op, "%s: %v", a.field, err)
		}
		*a.dst = v
	}
	percents := []struct {
		field string
		raw   string
		dst   *money.BasisPoints
	}{
		{"max_position_size", req.MaxPositionSize, &p.MaxPositionSize},
		{"profit_split", req.ProfitSplit, &p.ProfitSplit},
	}
	for _, pc := range percents {
		if strings.TrimSpace(pc.raw) == "" {
			continue
		}
		v, err := money.ParsePercent(pc.raw)
		if err != nil {
			return p, domain.Validation(op, "%s: %v", pc.field, err)
		}
		*pc.dst = v
	}
	return p, nil
}

// @Summary List plans
// @Tags plans
// @Param active query bool false "only active versions"
// @Success 200 {object} map[string]any
// @Router /api/v1/plans [get]
func (h *PlanHandler) list(c *gin.Context) {
	items, err := h.Plans.ListPlans(c.Request.Context(), boolQueryDefault(c, "active", false))
	if err != nil {
		Fail(c, err)
		return
	}
	out := make([]planView, 0, len(items))
	for _, p := range items {
		out = append(out, toPlanView(p))
	}
	Ok(c, out, map[string]any{"total": len(out)})
}

// @Summary Create plan
// @Tags plans
// @Accept json
// @Success 200 {object} map[string]any
// @Router /api/v1/plans [post]
func (h *PlanHandler) create(c *gin.Context) {
	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	p, err := req.toPlan()
	if err != nil {
		Fail(c, err)
		return
	}
	created, err := h.Plans.CreatePlan(c.Request.Context(), p)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, toPlanView(*created), nil)
}

// @Summary Get plan
// @Tags plans
// @Param id path int true "plan id"
// @Success 200 {object} map[string]any
// @Router /api/v1/plans/{id} [get]
func (h *PlanHandler) get(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	p, err := h.Plans.GetPlan(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, toPlanView(*p), nil)
}

// @Summary Revise plan
// @Description Creates the next version and retires the current one. Bound accounts keep their version.
// @Tags plans
// @Param id path int true "plan id"
// @Accept json
// @Success 200 {object} map[string]any
// @Router /api/v1/plans/{id}/revisions [post]
func (h *PlanHandler) revise(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	p, err := req.toPlan()
	if err != nil {
		Fail(c, err)
		return
	}
	next, err := h.Plans.RevisePlan(c.Request.Context(), id, p)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, toPlanView(*next), nil)
}
