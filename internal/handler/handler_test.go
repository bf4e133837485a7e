package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"propdesk/internal/balance"
	"propdesk/internal/domain"
	"propdesk/internal/marketdata"
	"propdesk/internal/money"
	"propdesk/internal/repository/memory"
	"propdesk/internal/service"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
}

func newTestEngine(t *testing.T) (*gin.Engine, *memory.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := memory.New()
	settings := &service.SystemSettingsService{Repo: store}
	accounts := &service.AccountService{
		Repo:     store,
		Prices:   marketdata.Resolver{Provider: marketdata.NewStatic(nil), Timeout: time.Second},
		Boundary: balance.UTCCutoff{},
		Settings: settings,
	}
	r := gin.New()
	(&HealthHandler{}).Register(r)
	(&PlanHandler{Plans: &service.PlanService{Repo: store}}).Register(r)
	(&AccountHandler{Accounts: accounts}).Register(r)
	(&PayoutHandler{Accounts: accounts}).Register(r)
	(&PaymentHandler{Accounts: accounts}).Register(r)
	(&SettingsHandler{Settings: settings}).Register(r)
	(&SweepHandler{Sweeper: &service.Sweeper{Accounts: accounts, Repo: store, Settings: settings}}).Register(r)
	return r, store
}

func do(t *testing.T, r http.Handler, method, path string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode err=%v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s %s body=%s err=%v", method, path, w.Body.String(), err)
		}
	}
	return w.Code, env
}

func TestAccountFlowOverHTTP(t *testing.T) {
	r, _ := newTestEngine(t)

	code, env := do(t, r, http.MethodPost, "/api/v1/plans", map[string]any{
		"name":             "Challenge 50k",
		"starting_balance": "50000.00",
		"max_daily_loss":   "2500.00",
		"max_total_loss":   "5000.00",
		"profit_target":    "4000.00",
		"profit_split":     "80",
	})
	if code != http.StatusOK {
		t.Fatalf("create plan status=%d msg=%s", code, env.Message)
	}
	var plan planView
	_ = json.Unmarshal(env.Data, &plan)
	if plan.ProfitSplit != "80.00" || plan.MaxPositionSize != "100.00" {
		t.Fatalf("plan=%+v", plan)
	}

	code, env = do(t, r, http.MethodPost, "/api/v1/accounts", map[string]any{"plan_id": plan.ID})
	if code != http.StatusOK {
		t.Fatalf("open status=%d msg=%s", code, env.Message)
	}
	var acct accountView
	_ = json.Unmarshal(env.Data, &acct)
	if acct.State != string(domain.StatePending) || acct.CurrentBalance != "50000.00" {
		t.Fatalf("account=%+v", acct)
	}

	code, env = do(t, r, http.MethodPost, "/api/v1/payments/events", map[string]any{
		"account_number": acct.AccountNumber,
		"event":          "payment_confirmed",
	})
	if code != http.StatusOK {
		t.Fatalf("payment status=%d msg=%s", code, env.Message)
	}
	_ = json.Unmarshal(env.Data, &acct)
	if acct.State != string(domain.StateEvaluationActive) {
		t.Fatalf("state=%s want EVALUATION_ACTIVE", acct.State)
	}

	code, env = do(t, r, http.MethodPost, "/api/v1/accounts/"+uitoa(acct.ID)+"/evaluate", nil)
	if code != http.StatusOK {
		t.Fatalf("evaluate status=%d msg=%s", code, env.Message)
	}

	code, env = do(t, r, http.MethodPost, "/api/v1/accounts/"+uitoa(acct.ID)+"/promote", nil)
	if code != http.StatusConflict || env.Meta["kind"] != "invalid_transition" {
		t.Fatalf("promote status=%d meta=%v want 409 invalid_transition", code, env.Meta)
	}

	code, env = do(t, r, http.MethodPost, "/api/v1/accounts/"+uitoa(acct.ID)+"/payouts", map[string]any{})
	if code != http.StatusUnprocessableEntity {
		t.Fatalf("payout status=%d msg=%s want 422", code, env.Message)
	}

	code, env = do(t, r, http.MethodGet, "/api/v1/accounts/"+uitoa(acct.ID)+"/activities", nil)
	if code != http.StatusOK {
		t.Fatalf("activities status=%d", code)
	}
	var acts []activityView
	_ = json.Unmarshal(env.Data, &acts)
	if len(acts) != 2 {
		t.Fatalf("activities=%d want 2 (created, activated)", len(acts))
	}
}

func TestPayoutOverHTTP(t *testing.T) {
	r, store := newTestEngine(t)
	plan := domain.Plan{
		Name:            "Funded",
		Type:            domain.PlanFunded,
		StartingBalance: money.MustParse("100000.00"),
		MaxDailyLoss:    money.MustParse("2500.00"),
		MaxTotalLoss:    money.MustParse("10000.00"),
		Active:          true,
	}
	plan.ApplyDefaults()
	_ = store.CreatePlan(context.Background(), &plan)
	a := domain.NewAccount("PD-HTTP", plan, time.Now().UTC())
	a.State = domain.StateFundedActive
	a.CurrentBalance = money.MustParse("102000.00")
	a.HighWaterMark = a.CurrentBalance
	a.ProfitEarned = money.MustParse("2000.00")
	_ = store.CreateAccount(context.Background(), &a)

	code, env := do(t, r, http.MethodPost, "/api/v1/accounts/"+uitoa(a.ID)+"/payouts", map[string]any{"method": "bank_transfer"})
	if code != http.StatusOK {
		t.Fatalf("payout status=%d msg=%s", code, env.Message)
	}
	var p payoutView
	_ = json.Unmarshal(env.Data, &p)
	if p.Amount != "1600.00" || p.Status != "PENDING" {
		t.Fatalf("payout=%+v", p)
	}

	code, env = do(t, r, http.MethodPost, "/api/v1/payouts/"+uitoa(p.ID)+"/complete", nil)
	if code != http.StatusOK {
		t.Fatalf("complete status=%d msg=%s", code, env.Message)
	}

	code, env = do(t, r, http.MethodGet, "/api/v1/accounts/"+uitoa(a.ID), nil)
	if code != http.StatusOK {
		t.Fatalf("get status=%d", code)
	}
	var acct accountView
	_ = json.Unmarshal(env.Data, &acct)
	if acct.ProfitEarned != "0.00" || acct.TotalPaidOut != "1600.00" {
		t.Fatalf("account=%+v", acct)
	}
}

func TestErrorMapping(t *testing.T) {
	r, store := newTestEngine(t)

	code, env := do(t, r, http.MethodGet, "/api/v1/accounts/42", nil)
	if code != http.StatusNotFound || env.Meta["kind"] != "not_found" {
		t.Fatalf("status=%d meta=%v want 404", code, env.Meta)
	}
	code, _ = do(t, r, http.MethodGet, "/api/v1/accounts/abc", nil)
	if code != http.StatusBadRequest {
		t.Fatalf("status=%d want 400", code)
	}

	plan := domain.Plan{
		Name:            "Eval",
		StartingBalance: money.MustParse("10000.00"),
		MaxDailyLoss:    money.MustParse("500.00"),
		MaxTotalLoss:    money.MustParse("1000.00"),
		Active:          true,
	}
	plan.ApplyDefaults()
	_ = store.CreatePlan(context.Background(), &plan)
	a := domain.NewAccount("PD-FAILED", plan, time.Now().UTC())
	a.State = domain.StateFailed
	_ = store.CreateAccount(context.Background(), &a)

	code, env = do(t, r, http.MethodPost, "/api/v1/accounts/"+uitoa(a.ID)+"/evaluate", nil)
	if code != http.StatusLocked || env.Meta["kind"] != "terminal_account" {
		t.Fatalf("status=%d meta=%v want 423", code, env.Meta)
	}

	code, _ = do(t, r, http.MethodPut, "/api/v1/settings/feature.unknown", map[string]any{"enabled": true})
	if code != http.StatusBadRequest {
		t.Fatalf("status=%d want 400", code)
	}
}

func TestSweepEndpoint(t *testing.T) {
	r, _ := newTestEngine(t)
	code, env := do(t, r, http.MethodPut, "/api/v1/settings/feature.sweep", map[string]any{"enabled": false})
	if code != http.StatusOK {
		t.Fatalf("put status=%d msg=%s", code, env.Message)
	}
	code, env = do(t, r, http.MethodPost, "/api/v1/sweeps", nil)
	if code != http.StatusOK {
		t.Fatalf("sweep status=%d msg=%s", code, env.Message)
	}
	var out map[string]map[string]any
	_ = json.Unmarshal(env.Data, &out)
	if out["sweep"]["skipped"] != true {
		t.Fatalf("sweep=%v want skipped", out["sweep"])
	}
}

func TestHealth(t *testing.T) {
	r, _ := newTestEngine(t)
	code, _ := do(t, r, http.MethodGet, "/readyz", nil)
	if code != http.StatusOK {
		t.Fatalf("status=%d want 200", code)
	}
}

func uitoa(v uint64) string {
	return strconv.FormatUint(v, 10)
}
