package catalog_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/catalog"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestUnitCostWithoutMarkdown(t *testing.T) {
	c := catalog.New()
	c.SetPrice("apple", dec("1.25"), false)

	cost, err := c.UnitCost("apple")
	require.NoError(t, err)
	require.True(t, cost.Equal(dec("1.25")), "got %s", cost)
}

func TestMarkdownReducesUnitCost(t *testing.T) {
	c := catalog.New()
	c.SetPrice("soup", dec("1.89"), false)
	require.NoError(t, c.SetMarkdown("soup", dec("0.20")))

	cost, err := c.UnitCost("soup")
	require.NoError(t, err)
	require.True(t, cost.Equal(dec("1.69")), "got %s", cost)

	require.NoError(t, c.SetMarkdown("soup", dec("0.50")))
	cost, err = c.UnitCost("soup")
	require.NoError(t, err)
	require.True(t, cost.Equal(dec("1.39")), "got %s", cost)
}

func TestSetPriceClearsMarkdown(t *testing.T) {
	c := catalog.New()
	c.SetPrice("soup", dec("2.00"), false)
	require.NoError(t, c.SetMarkdown("soup", dec("0.50")))

	c.SetPrice("soup", dec("3.00"), true)

	it, ok := c.Item("soup")
	require.True(t, ok)
	require.False(t, it.Markdown.Valid)
	require.True(t, it.SoldByWeight)
	require.True(t, it.UnitCost().Equal(dec("3.00")))
}

func TestNegativePriceAccepted(t *testing.T) {
	c := catalog.New()
	c.SetPrice("coupon", dec("-1.00"), false)

	cost, err := c.UnitCost("coupon")
	require.NoError(t, err)
	require.True(t, cost.Equal(dec("-1.00")))
}

func TestUnknownItem(t *testing.T) {
	c := catalog.New()

	_, err := c.UnitCost("ghost")
	require.ErrorIs(t, err, catalog.ErrUnknownItem)
	require.Contains(t, err.Error(), "ghost")

	_, err = c.IsSoldByWeight("ghost")
	require.ErrorIs(t, err, catalog.ErrUnknownItem)

	err = c.SetMarkdown("ghost", dec("0.10"))
	require.ErrorIs(t, err, catalog.ErrUnknownItem)
	require.Equal(t, 0, c.Len())
}

func TestSoldByWeightFlag(t *testing.T) {
	c := catalog.New()
	c.SetPrice("grapes", dec("2.50"), true)
	c.SetPrice("bread", dec("3.00"), false)

	byWeight, err := c.IsSoldByWeight("grapes")
	require.NoError(t, err)
	require.True(t, byWeight)

	byWeight, err = c.IsSoldByWeight("bread")
	require.NoError(t, err)
	require.False(t, byWeight)
}

func TestItemsSorted(t *testing.T) {
	c := catalog.New()
	c.SetPrice("pear", dec("1"), false)
	c.SetPrice("apple", dec("1"), false)
	c.SetPrice("mango", dec("1"), false)

	items := c.Items()
	require.Len(t, items, 3)
	require.Equal(t, []string{"apple", "mango", "pear"}, []string{items[0].ID, items[1].ID, items[2].ID})
}
