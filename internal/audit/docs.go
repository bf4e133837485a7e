package audit

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func RegisterDocs(r *gin.Engine) {
	r.GET("/docs", func(c *gin.Context) {
		c.Header("Content-Type", "text/markdown; charset=utf-8")
		c.String(http.StatusOK, `# propdesk

Rule engine and account lifecycle for evaluation and funded trading accounts.

## Auth

All /api/* routes require a Bearer token. Health and metrics endpoints are public.

## Routes

- GET /healthz
- GET /readyz
- GET /metrics
- GET /swagger/index.html
- GET|POST /api/v1/plans
- GET /api/v1/plans/:id
- POST /api/v1/plans/:id/revisions
- GET|POST /api/v1/accounts
- GET /api/v1/accounts/:id
- POST /api/v1/accounts/:id/evaluate
- POST /api/v1/accounts/:id/promote
- POST /api/v1/accounts/:id/close
- POST /api/v1/accounts/:id/notes
- POST /api/v1/accounts/:id/trade-checks
- GET /api/v1/accounts/:id/statistics
- GET /api/v1/accounts/:id/violations
- GET /api/v1/accounts/:id/activities
- GET|POST /api/v1/accounts/:id/payouts
- GET /api/v1/payouts
- POST /api/v1/payouts/:id/approve
- POST /api/v1/payouts/:id/complete
- POST /api/v1/payouts/:id/reject
- POST /api/v1/payments/events
- GET /api/v1/settings
- PUT /api/v1/settings/:key
- POST /api/v1/sweeps
`)
	})
}
