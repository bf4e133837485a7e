package audit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"propdesk/internal/config"
	"propdesk/internal/domain"
	"propdesk/internal/money"
)

type logServer struct {
	logins, logs int32
	mu           sync.Mutex
	entries      []wire
}

func (ls *logServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/login":
			atomic.AddInt32(&ls.logins, 1)
			_, _ = w.Write([]byte(`{"token":"tok","expires_at":"2099-01-01T00:00:00Z"}`))
		case "/api/v1/logs":
			if r.Header.Get("Authorization") != "Bearer tok" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			var e wire
			if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			ls.mu.Lock()
			ls.entries = append(ls.entries, e)
			ls.mu.Unlock()
			atomic.AddInt32(&ls.logs, 1)
			w.WriteHeader(http.StatusCreated)
		default:
			http.NotFound(w, r)
		}
	}
}

func TestClientDeliversAccountEvents(t *testing.T) {
	ls := &logServer{}
	srv := httptest.NewServer(ls.handler(t))
	defer srv.Close()

	a := domain.Account{
		ID:             7,
		AccountNumber:  "PA00000007",
		CurrentBalance: money.MustParse("89500.00"),
		HighWaterMark:  money.MustParse("100000.00"),
		TotalLoss:      money.MustParse("10500.00"),
	}
	c := NewClient(srv.URL, "key", "")
	c.Record(TransitionEvent(a, domain.StateEvaluationActive, domain.StateFailed, "total loss 10500.00 exceeded 10000.00"))
	c.Record(PayoutEvent(domain.PayoutRequest{ID: 3, AccountID: 7, Reference: "ref-1", Amount: money.MustParse("1600.00"), Status: domain.PayoutPending}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Close(ctx); err != nil {
		t.Fatalf("Close err=%v", err)
	}
	if atomic.LoadInt32(&ls.logins) != 1 || atomic.LoadInt32(&ls.logs) != 2 {
		t.Fatalf("logins=%d logs=%d want=1,2", ls.logins, ls.logs)
	}

	failed := ls.entries[0]
	if failed.Action != "account_failed" || failed.Level != "warn" || failed.Agent != "propdesk" {
		t.Fatalf("entry=%+v", failed)
	}
	if failed.SessionKey != "account:PA00000007" || failed.Metadata["account_number"] != "PA00000007" {
		t.Fatalf("session=%q metadata=%v", failed.SessionKey, failed.Metadata)
	}
	if failed.Details["total_loss"] != "10500.00" || failed.Details["from"] != "EVALUATION_ACTIVE" {
		t.Fatalf("details=%v", failed.Details)
	}
	payout := ls.entries[1]
	if payout.Action != "payout_pending" || payout.Details["amount"] != "1600.00" || payout.SessionKey != "account:7" {
		t.Fatalf("payout entry=%+v", payout)
	}

	c.Record(PayoutEvent(domain.PayoutRequest{ID: 4, Status: domain.PayoutApproved}))
	if atomic.LoadInt32(&ls.logs) != 2 {
		t.Fatalf("events after Close must be ignored")
	}
}

func TestClientDropsWhenQueueFull(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/auth/login" {
			_, _ = w.Write([]byte(`{"token":"tok"}`))
			return
		}
		<-release
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(srv.URL, "key", "propdesk")
	c.QueueSize = 1
	for i := 0; i < 5; i++ {
		c.Record(SweepFailedEvent(10, 8, 2, errors.New("deadline exceeded")))
	}
	if c.Dropped() < 1 {
		t.Fatalf("dropped=%d want>=1", c.Dropped())
	}
}

func TestNilClientIsNoop(t *testing.T) {
	var c *Client
	c.Record(Event{Action: "x"})
	if err := c.Close(context.Background()); err != nil {
		t.Fatalf("Close err=%v", err)
	}
	if NewClient("", "k", "a") != nil {
		t.Fatalf("expected nil client without base url")
	}
}

func TestRequireBearer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequireBearer(config.AuthConfig{Token: "secret"}))
	r.GET("/api/v1/plans", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	cases := []struct {
		path, auth string
		want       int
	}{
		{"/healthz", "", http.StatusOK},
		{"/api/v1/plans", "", http.StatusUnauthorized},
		{"/api/v1/plans", "Bearer nope", http.StatusUnauthorized},
		{"/api/v1/plans", "Bearer secret", http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		if tc.auth != "" {
			req.Header.Set("Authorization", tc.auth)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("%s auth=%q status=%d want=%d", tc.path, tc.auth, rec.Code, tc.want)
		}
	}
}
