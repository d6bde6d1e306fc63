package session_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/basket"
	"github.com/noah-isme/backend-pos/internal/catalog"
	"github.com/noah-isme/backend-pos/internal/session"
	"github.com/noah-isme/backend-pos/internal/special"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newSession(t *testing.T) *session.Session {
	t.Helper()
	s := session.New("s-1", time.Now(), zerolog.Nop())
	ctx := context.Background()
	s.SetPrice(ctx, "apple", dec("1.00"), false)
	s.SetPrice(ctx, "bread", dec("3.00"), false)
	s.SetPrice(ctx, "grapes", dec("2.50"), true)
	return s
}

func TestSessionPricingSetters(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()

	require.NoError(t, s.SetMarkdown(ctx, "apple", dec("0.25")))
	cost, err := s.UnitCost("apple")
	require.NoError(t, err)
	require.True(t, cost.Equal(dec("0.75")))

	byWeight, err := s.IsSoldByWeight("grapes")
	require.NoError(t, err)
	require.True(t, byWeight)

	require.ErrorIs(t, s.SetMarkdown(ctx, "kiwi", dec("0.10")), catalog.ErrUnknownItem)
	_, err = s.UnitCost("kiwi")
	require.ErrorIs(t, err, catalog.ErrUnknownItem)
}

func TestSessionSetSpecialValidates(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()

	require.NoError(t, s.SetSpecial(ctx, "apple", special.NForX{N: 3, X: dec("2.00")}))
	err := s.SetSpecial(ctx, "apple", special.NForX{N: 0, X: dec("2.00")})
	require.ErrorIs(t, err, special.ErrInvalidParameters)

	sp, ok := s.Special("apple")
	require.True(t, ok)
	require.Equal(t, 3, sp.(special.NForX).N)
}

func TestSessionScanRemoveAndSnapshot(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()
	require.NoError(t, s.SetSpecial(ctx, "bread", special.NGetMAtXOff{N: 2, M: 1, X: dec("0.5")}))

	for i := 0; i < 5; i++ {
		_, err := s.Scan(ctx, "bread", decimal.Zero)
		require.NoError(t, err)
	}
	total, err := s.Scan(ctx, "grapes", dec("1.5"))
	require.NoError(t, err)
	require.True(t, total.Equal(dec("17.25")), "got %s", total)

	receipt, err := s.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, "s-1", receipt.SessionID)
	require.Len(t, receipt.Lines, 2)
	require.Equal(t, "bread", receipt.Lines[0].ItemID)
	require.Equal(t, special.KindNGetMAtXOff, receipt.Lines[0].Special)
	require.True(t, receipt.Lines[0].Cost.Equal(dec("13.50")))
	require.True(t, receipt.Lines[1].Cost.Equal(dec("3.75")))
	require.True(t, receipt.Total.Equal(total))

	total, err = s.Remove(ctx, "grapes", dec("1.5"))
	require.NoError(t, err)
	require.True(t, total.Equal(dec("13.50")))
	require.Len(t, s.Items(), 1)
}

func TestSessionFailedScanLeavesStateUntouched(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()
	_, err := s.Scan(ctx, "apple", decimal.Zero)
	require.NoError(t, err)

	_, err = s.Scan(ctx, "kiwi", decimal.Zero)
	require.ErrorIs(t, err, catalog.ErrUnknownItem)
	_, err = s.Scan(ctx, "apple", dec("-2"))
	require.ErrorIs(t, err, basket.ErrInvalidQuantity)

	require.True(t, s.Total().Equal(dec("1.00")))
	require.Len(t, s.Items(), 1)
}

func TestSessionWarnsOnNegativeQuantity(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	s := session.New("s-neg", time.Now(), logger)
	ctx := context.Background()
	s.SetPrice(ctx, "bread", dec("3.00"), false)

	total, err := s.Remove(ctx, "bread", decimal.Zero)
	require.NoError(t, err)
	require.True(t, total.Equal(dec("-3.00")))

	var warned bool
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry["message"] == "basket quantity went negative" {
			warned = true
			require.Equal(t, "warn", entry["level"])
			require.Equal(t, "s-neg", entry["session_id"])
			require.Equal(t, "bread", entry["item"])
		}
	}
	require.True(t, warned, "expected a warning, got %s", buf.String())
}

func TestSessionQuoteDoesNotTouchBasket(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()
	require.NoError(t, s.SetSpecial(ctx, "apple", special.NForX{N: 3, X: dec("2.00")}))

	line, err := s.Quote(ctx, "apple", dec("7"))
	require.NoError(t, err)
	require.True(t, line.Cost.Equal(dec("5.00")))
	require.True(t, line.Groups.Equal(dec("2")))
	require.Empty(t, s.Items())
	require.True(t, s.Total().IsZero())
}

func TestSessionRecomputeAfterPriceChange(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()
	_, err := s.Scan(ctx, "apple", decimal.Zero)
	require.NoError(t, err)

	s.SetPrice(ctx, "apple", dec("1.20"), false)
	require.True(t, s.Total().Equal(dec("1.00")), "total only moves on recompute")

	total, err := s.Recompute(ctx)
	require.NoError(t, err)
	require.True(t, total.Equal(dec("1.20")))
}

func TestSessionSummary(t *testing.T) {
	s := newSession(t)
	_, err := s.Scan(context.Background(), "apple", decimal.Zero)
	require.NoError(t, err)

	sum := s.Summary()
	require.Equal(t, "s-1", sum.ID)
	require.Equal(t, 1, sum.Items)
	require.True(t, sum.Total.Equal(dec("1.00")))
}
