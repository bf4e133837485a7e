package handler

import (
	"github.com/gin-gonic/gin"

	"propdesk/internal/service"
)

// SweepHandler triggers an out-of-schedule sweep.
type SweepHandler struct {
	Sweeper *service.Sweeper
	Prices  *service.PriceRefresher
}

func (h *SweepHandler) Register(r *gin.Engine) {
	r.POST("/api/v1/sweeps", h.run)
}

// @Summary Run sweep
// @Description Re-evaluates every trading account. With refresh_prices=true the price book is refreshed first.
// @Tags sweeps
// @Param refresh_prices query bool false "refresh prices first"
// @Success 200 {object} map[string]any
// @Router /api/v1/sweeps [post]
func (h *SweepHandler) run(c *gin.Context) {
	ctx := c.Request.Context()
	out := gin.H{}
	if h.Prices != nil && boolQueryDefault(c, "refresh_prices", false) {
		rep, err := h.Prices.RunOnce(ctx)
		if err != nil {
			Fail(c, err)
			return
		}
		out["prices"] = gin.H{
			"assets":  rep.Assets,
			"fresh":   rep.Fresh,
			"stale":   rep.Stale,
			"failed":  rep.Failed,
			"skipped": rep.Skipped,
		}
	}
	rep, err := h.Sweeper.RunOnce(ctx)
	if err != nil {
		Fail(c, err)
		return
	}
	out["sweep"] = gin.H{
		"accounts":    rep.Accounts,
		"evaluated":   rep.Evaluated,
		"failed":      rep.Failed,
		"transitions": rep.Transitions,
		"violations":  rep.Violations,
		"skipped":     rep.Skipped,
		"duration_ms": rep.Duration.Milliseconds(),
	}
	Ok(c, out, nil)
}
