package basket_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/basket"
	"github.com/noah-isme/backend-pos/internal/catalog"
	"github.com/noah-isme/backend-pos/internal/pricing"
	"github.com/noah-isme/backend-pos/internal/special"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newBasket(t *testing.T) (*basket.Basket, *catalog.Catalog, *special.Registry) {
	t.Helper()
	c := catalog.New()
	r := special.NewRegistry()
	c.SetPrice("apple", dec("1.00"), false)
	c.SetPrice("bread", dec("3.00"), false)
	c.SetPrice("grapes", dec("2.50"), true)
	return basket.New(pricing.Engine{Catalog: c, Specials: r}), c, r
}

func TestScanUnitsAndWeight(t *testing.T) {
	b, _, _ := newBasket(t)

	total, err := b.Scan("apple", decimal.Zero)
	require.NoError(t, err)
	require.True(t, total.Equal(dec("1.00")))

	total, err = b.Scan("grapes", dec("1.5"))
	require.NoError(t, err)
	require.True(t, total.Equal(dec("4.75")), "got %s", total)

	q, ok := b.Quantity("grapes")
	require.True(t, ok)
	require.True(t, q.Equal(dec("1.5")))
	require.True(t, b.Total().Equal(dec("4.75")))
}

func TestScanAppliesSpecial(t *testing.T) {
	b, _, r := newBasket(t)
	require.NoError(t, r.Set("apple", special.NForX{N: 3, X: dec("2.00")}))

	var total decimal.Decimal
	var err error
	for i := 0; i < 7; i++ {
		total, err = b.Scan("apple", decimal.Zero)
		require.NoError(t, err)
	}
	require.True(t, total.Equal(dec("5.00")), "got %s", total)
}

func TestRemoveDropsEntryAtZero(t *testing.T) {
	b, _, _ := newBasket(t)

	_, err := b.Scan("grapes", dec("0.75"))
	require.NoError(t, err)
	total, err := b.Remove("grapes", dec("0.75"))
	require.NoError(t, err)

	_, ok := b.Quantity("grapes")
	require.False(t, ok)
	require.Equal(t, 0, b.Len())
	require.True(t, total.IsZero())
}

func TestRemoveNeverScannedGoesNegative(t *testing.T) {
	b, _, _ := newBasket(t)

	total, err := b.Remove("bread", decimal.Zero)
	require.NoError(t, err)
	require.True(t, total.Equal(dec("-3.00")))

	q, ok := b.Quantity("bread")
	require.True(t, ok)
	require.True(t, q.Equal(dec("-1")))
}

func TestRemoveSpecialItemBelowZeroFloorsGroups(t *testing.T) {
	b, _, r := newBasket(t)
	require.NoError(t, r.Set("apple", special.NForX{N: 3, X: dec("2.00")}))

	_, err := b.Scan("apple", decimal.Zero)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = b.Remove("apple", decimal.Zero)
		require.NoError(t, err)
	}

	q, ok := b.Quantity("apple")
	require.True(t, ok)
	require.True(t, q.Equal(dec("-2")))
	// floor(-2/3) = -1 group at 2.00 plus 1 unit at 1.00
	require.True(t, b.Total().Equal(dec("-1.00")), "got %s", b.Total())
}

func TestUnknownItemLeavesBasketUntouched(t *testing.T) {
	b, _, _ := newBasket(t)
	_, err := b.Scan("apple", decimal.Zero)
	require.NoError(t, err)

	_, err = b.Scan("ghost", decimal.Zero)
	require.ErrorIs(t, err, catalog.ErrUnknownItem)
	_, err = b.Remove("ghost", decimal.Zero)
	require.ErrorIs(t, err, catalog.ErrUnknownItem)

	require.Equal(t, 1, b.Len())
	require.True(t, b.Total().Equal(dec("1.00")))
}

func TestNegativeWeightRejected(t *testing.T) {
	b, _, _ := newBasket(t)

	_, err := b.Scan("grapes", dec("-1"))
	require.ErrorIs(t, err, basket.ErrInvalidQuantity)
	_, err = b.Remove("grapes", dec("-1"))
	require.ErrorIs(t, err, basket.ErrInvalidQuantity)
	require.Equal(t, 0, b.Len())
}

func TestRecomputeIsDeterministic(t *testing.T) {
	b, _, r := newBasket(t)
	require.NoError(t, r.Set("bread", special.NGetMAtXOff{N: 2, M: 1, X: dec("0.5")}))
	for i := 0; i < 5; i++ {
		_, err := b.Scan("bread", decimal.Zero)
		require.NoError(t, err)
	}
	_, err := b.Scan("grapes", dec("1.333"))
	require.NoError(t, err)

	first, err := b.Recompute()
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := b.Recompute()
		require.NoError(t, err)
		require.True(t, first.Equal(again))
	}
	require.True(t, first.Equal(dec("16.83")), "got %s", first)
}

func TestRecomputePicksUpPriceChanges(t *testing.T) {
	b, c, _ := newBasket(t)
	_, err := b.Scan("apple", decimal.Zero)
	require.NoError(t, err)
	_, err = b.Scan("apple", decimal.Zero)
	require.NoError(t, err)

	require.NoError(t, c.SetMarkdown("apple", dec("0.10")))
	total, err := b.Recompute()
	require.NoError(t, err)
	require.True(t, total.Equal(dec("1.80")))
}

func TestLineCostsRoundedBeforeSumming(t *testing.T) {
	b, c, _ := newBasket(t)
	c.SetPrice("cheese", dec("1.005"), true)
	c.SetPrice("ham", dec("1.005"), true)

	_, err := b.Scan("cheese", dec("1"))
	require.NoError(t, err)
	total, err := b.Scan("ham", dec("1"))
	require.NoError(t, err)
	require.True(t, total.Equal(dec("2.02")), "got %s", total)
}

func TestItemsSorted(t *testing.T) {
	b, _, _ := newBasket(t)
	for _, id := range []string{"grapes", "apple", "bread"} {
		_, err := b.Scan(id, decimal.Zero)
		require.NoError(t, err)
	}
	items := b.Items()
	require.Len(t, items, 3)
	require.Equal(t, "apple", items[0].ItemID)
	require.Equal(t, "bread", items[1].ItemID)
	require.Equal(t, "grapes", items[2].ItemID)
}
