package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/client"
	"github.com/noah-isme/backend-pos/internal/session"
	"github.com/noah-isme/backend-pos/internal/special"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := session.NewStore(session.StoreConfig{IdleTTL: time.Hour, Logger: zerolog.Nop()})
	h := &session.Handler{Store: store}
	r := chi.NewRouter()
	r.Route("/api/v1", func(v chi.Router) {
		v.Mount("/sessions", h.Routes(session.RouterConfig{}))
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientRoundTrip(t *testing.T) {
	srv := newServer(t)
	c := client.New(srv.URL+"/", "")
	ctx := context.Background()

	id, err := c.Open(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.NoError(t, c.SetPrice(ctx, id, "bread", decimal.RequireFromString("3.00"), false))
	require.NoError(t, c.SetSpecial(ctx, id, "bread", special.Params{Type: "n_get_m_at_x_off", N: 2, M: 1, X: decimal.RequireFromString("0.5")}))
	require.NoError(t, c.SetPrice(ctx, id, "soup", decimal.RequireFromString("3.50"), false))
	require.NoError(t, c.SetMarkdown(ctx, id, "soup", decimal.RequireFromString("0.125")))

	for i := 0; i < 3; i++ {
		_, err = c.Scan(ctx, id, "bread", decimal.Zero)
		require.NoError(t, err)
	}
	total, err := c.Scan(ctx, id, "soup", decimal.Zero)
	require.NoError(t, err)
	require.Equal(t, "10.88", total.StringFixed(2))

	total, err = c.Remove(ctx, id, "soup", decimal.Zero)
	require.NoError(t, err)
	require.True(t, total.Equal(decimal.RequireFromString("7.50")))

	receipt, err := c.Receipt(ctx, id)
	require.NoError(t, err)
	require.Equal(t, id, receipt.SessionID)
	require.Len(t, receipt.Lines, 1)
	require.Equal(t, "n_get_m_at_x_off", receipt.Lines[0].Special)
}

func TestClientDecodesAPIErrors(t *testing.T) {
	srv := newServer(t)
	c := client.New(srv.URL, "")
	ctx := context.Background()
	id, err := c.Open(ctx)
	require.NoError(t, err)

	_, err = c.Scan(ctx, id, "kiwi", decimal.Zero)
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	require.Equal(t, http.StatusNotFound, apiErr.Status)
	require.Equal(t, "UNKNOWN_ITEM", apiErr.Code)

	_, err = c.Receipt(ctx, "missing")
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, "NOT_FOUND", apiErr.Code)
}

func TestClientRetriesServerErrorsWithSameIdempotencyKey(t *testing.T) {
	var keys []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys = append(keys, r.Header.Get("Idempotency-Key"))
		if len(keys) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"total":"1.00"}}`))
	}))
	t.Cleanup(srv.Close)

	c := client.New(srv.URL, "")
	c.Retry = client.RetryPolicy{MaxAttempts: 3, BaseBackoff: time.Millisecond}
	total, err := c.Scan(context.Background(), "s-1", "apple", decimal.Zero)
	require.NoError(t, err)
	require.Equal(t, "1.00", total.StringFixed(2))
	require.Len(t, keys, 2)
	require.NotEmpty(t, keys[0])
	require.Equal(t, keys[0], keys[1])
}

func TestClientBreakerFailsFast(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	c := client.New(srv.URL, "")
	c.Retry = client.RetryPolicy{MaxAttempts: 1}
	c.Breaker = client.NewBreaker(1, 1, time.Hour)

	_, err := c.Open(context.Background())
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusServiceUnavailable, apiErr.Status)

	_, err = c.Open(context.Background())
	require.ErrorIs(t, err, client.ErrOpenCircuit)
	require.Equal(t, 1, calls)
}
