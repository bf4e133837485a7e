package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// HTTPClient reads last-trade prices from a REST endpoint:
// GET {host}/price?asset_id=X -> {"price": "1.2345", "timestamp": 1700000000}.
type HTTPClient struct {
	host       string
	httpClient *http.Client
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Body)
}

func NewHTTPClient(httpClient *http.Client, host string) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &HTTPClient{
		host:       strings.TrimRight(host, "/"),
		httpClient: httpClient,
	}
}

func (c *HTTPClient) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	fullURL := c.host + path
	if len(query) > 0 {
		fullURL = fullURL + "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrUnavailable
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func (c *HTTPClient) LastPrice(ctx context.Context, assetID string) (Quote, error) {
	if strings.TrimSpace(assetID) == "" {
		return Quote{}, fmt.Errorf("asset_id is required")
	}
	query := url.Values{}
	query.Set("asset_id", assetID)
	body, err := c.doRequest(ctx, "/price", query)
	if err != nil {
		return Quote{}, err
	}
	q, err := parseQuote(body)
	if err != nil {
		return Quote{}, err
	}
	q.AssetID = assetID
	return q, nil
}

func parseQuote(body []byte) (Quote, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return Quote{}, err
	}
	priceRaw, ok := raw["price"]
	if !ok {
		return Quote{}, fmt.Errorf("price not found in response")
	}
	price, err := parseDecimalRaw(priceRaw)
	if err != nil {
		return Quote{}, err
	}
	q := Quote{Price: price, At: time.Now().UTC()}
	if tsRaw, ok := raw["timestamp"]; ok {
		if ts, err := parseTimeRaw(tsRaw); err == nil {
			q.At = ts
		}
	}
	if staleRaw, ok := raw["stale"]; ok {
		_ = json.Unmarshal(staleRaw, &q.Stale)
	}
	return q, nil
}

func parseDecimalRaw(b json.RawMessage) (decimal.Decimal, error) {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		return decimal.NewFromString(strings.TrimSpace(s))
	}
	var d decimal.Decimal
	if err := json.Unmarshal(b, &d); err != nil {
		return decimal.Zero, fmt.Errorf("invalid price: %s", string(b))
	}
	return d, nil
}

func parseTimeRaw(b json.RawMessage) (time.Time, error) {
	var i int64
	if err := json.Unmarshal(b, &i); err == nil {
		return time.Unix(i, 0).UTC(), nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil && s != "" {
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time: %s", string(b))
}
