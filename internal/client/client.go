// Package client is a typed HTTP client for the session API, used by the
// operator tools.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/special"
)

// HTTPClient returns an instrumented client with the given timeout.
func HTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(&http.Transport{}),
	}
}

// APIError is a non-2xx response decoded from the error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// Client talks to /api/v1/sessions.
type Client struct {
	BaseURL string
	// Token is sent as a bearer token when set.
	Token string
	HTTP  *http.Client
	// Retry applies to every call. Scan and remove carry an Idempotency-Key,
	// so a retried mutation is replayed by the server rather than applied twice.
	Retry RetryPolicy
	// Breaker, when set, fails calls fast while the API is unhealthy.
	Breaker *Breaker
}

// New constructs a client for baseURL, e.g. http://localhost:8080.
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    HTTPClient(0),
		Retry:   RetryPolicy{MaxAttempts: 3, BaseBackoff: 200 * time.Millisecond, Jitter: 0.2},
	}
}

// Open creates a session and returns its id.
func (c *Client) Open(ctx context.Context) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/sessions/", nil, &out, ""); err != nil {
		return "", err
	}
	return out.ID, nil
}

// SetPrice sets the price of item in session id.
func (c *Client) SetPrice(ctx context.Context, id, item string, price decimal.Decimal, soldByWeight bool) error {
	body := map[string]any{"price": price, "soldByWeight": soldByWeight}
	return c.do(ctx, http.MethodPut, itemPath(id, "catalog", item), body, nil, "")
}

// SetMarkdown sets the markdown of item in session id.
func (c *Client) SetMarkdown(ctx context.Context, id, item string, markdown decimal.Decimal) error {
	body := map[string]any{"markdown": markdown}
	return c.do(ctx, http.MethodPut, itemPath(id, "catalog", item)+"/markdown", body, nil, "")
}

// SetSpecial replaces the special of item in session id.
func (c *Client) SetSpecial(ctx context.Context, id, item string, p special.Params) error {
	return c.do(ctx, http.MethodPut, itemPath(id, "specials", item), p, nil, "")
}

// Scan adds item, or weight of it, and returns the basket total.
func (c *Client) Scan(ctx context.Context, id, item string, weight decimal.Decimal) (decimal.Decimal, error) {
	return c.mutate(ctx, id, "scan", item, weight)
}

// Remove takes item, or weight of it, out of the basket and returns the total.
func (c *Client) Remove(ctx context.Context, id, item string, weight decimal.Decimal) (decimal.Decimal, error) {
	return c.mutate(ctx, id, "remove", item, weight)
}

func (c *Client) mutate(ctx context.Context, id, op, item string, weight decimal.Decimal) (decimal.Decimal, error) {
	var out struct {
		Total decimal.Decimal `json:"total"`
	}
	body := map[string]any{"item": item, "weight": weight}
	if err := c.do(ctx, http.MethodPost, "/api/v1/sessions/"+url.PathEscape(id)+"/"+op, body, &out, uuid.NewString()); err != nil {
		return decimal.Zero, err
	}
	return out.Total, nil
}

// Receipt is the priced basket as returned by the API.
type Receipt struct {
	SessionID string `json:"sessionId"`
	Lines     []struct {
		Item     string          `json:"item"`
		Quantity decimal.Decimal `json:"quantity"`
		Special  string          `json:"special"`
		Cost     decimal.Decimal `json:"cost"`
	} `json:"lines"`
	Total decimal.Decimal `json:"total"`
}

// Receipt fetches the repriced basket of session id.
func (c *Client) Receipt(ctx context.Context, id string) (Receipt, error) {
	var out Receipt
	err := c.do(ctx, http.MethodGet, "/api/v1/sessions/"+url.PathEscape(id)+"/", nil, &out, "")
	return out, err
}

func itemPath(id, kind, item string) string {
	return "/api/v1/sessions/" + url.PathEscape(id) + "/" + kind + "/" + url.PathEscape(item)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, idempotencyKey string) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
	}

	var lastErr error
	attempts := c.Retry.attempts()
	for attempt := 1; attempt <= attempts; attempt++ {
		if c.Breaker != nil && !c.Breaker.Allow() {
			return ErrOpenCircuit
		}
		retryable, err := c.once(ctx, method, path, payload, out, idempotencyKey)
		if c.Breaker != nil {
			c.Breaker.Report(!retryable)
		}
		if err == nil || !retryable {
			return err
		}
		lastErr = err
		if attempt < attempts {
			if err := sleep(ctx, Backoff(c.Retry.BaseBackoff, attempt, c.Retry.Jitter)); err != nil {
				return err
			}
		}
	}
	return lastErr
}

// once performs a single request and reports whether a failure is worth retrying.
func (c *Client) once(ctx context.Context, method, path string, payload []byte, out any, idempotencyKey string) (bool, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = HTTPClient(0)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return ctx.Err() == nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var envelope struct {
			Error common.ErrorBody `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&envelope)
		apiErr := &APIError{Status: resp.StatusCode, Code: envelope.Error.Code, Message: envelope.Error.Message}
		return resp.StatusCode >= http.StatusInternalServerError, apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return false, nil
	}
	envelope := common.DataBody{Data: out}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return false, fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return false, nil
}
