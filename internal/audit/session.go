package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// tokenRefreshMargin is how long before expiry a bearer is renewed.
const tokenRefreshMargin = 2 * time.Minute

// session holds the bearer issued by the log service for an API key.
type session struct {
	mu        sync.RWMutex
	token     string
	expiresAt time.Time
}

func (s *session) bearer() (string, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.expiresAt
}

func (s *session) set(token string, exp time.Time) {
	s.mu.Lock()
	s.token = token
	s.expiresAt = exp
	s.mu.Unlock()
}

func (s *session) valid(now time.Time) bool {
	tok, exp := s.bearer()
	if tok == "" {
		return false
	}
	return exp.IsZero() || exp.Sub(now) >= tokenRefreshMargin
}

// Login exchanges the API key for a bearer.
func (c *Client) Login(ctx context.Context) error {
	base := c.base()
	if base == "" {
		return errors.New("audit base url is empty")
	}
	key := strings.TrimSpace(c.APIKey)
	if key == "" {
		return errors.New("audit api key is empty")
	}
	body, err := json.Marshal(struct {
		APIKey string `json:"api_key"`
	}{key})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/v1/auth/login", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("audit login: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("audit login http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var out struct {
		Token     string `json:"token"`
		ExpiresAt string `json:"expires_at"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("audit login: %w", err)
	}
	exp, _ := time.Parse(time.RFC3339, strings.TrimSpace(out.ExpiresAt))
	c.sess.set(strings.TrimSpace(out.Token), exp)
	return nil
}

func (c *Client) ensureSession(ctx context.Context) error {
	if c.sess.valid(time.Now()) {
		return nil
	}
	return c.Login(ctx)
}
