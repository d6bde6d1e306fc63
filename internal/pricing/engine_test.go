package pricing_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/catalog"
	"github.com/noah-isme/backend-pos/internal/pricing"
	"github.com/noah-isme/backend-pos/internal/special"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func intPtr(v int) *int { return &v }

type fixture struct {
	catalog  *catalog.Catalog
	specials *special.Registry
	engine   pricing.Engine
}

func newFixture() fixture {
	c := catalog.New()
	r := special.NewRegistry()
	return fixture{catalog: c, specials: r, engine: pricing.Engine{Catalog: c, Specials: r}}
}

func TestCost(t *testing.T) {
	cases := []struct {
		name     string
		price    string
		markdown string
		special  special.Special
		amount   string
		want     string
	}{
		{name: "plain unit pricing", price: "1.89", amount: "3", want: "5.67"},
		{name: "weighed item", price: "2.50", amount: "1.5", want: "3.75"},
		{name: "markdown", price: "1.00", markdown: "0.25", amount: "2", want: "1.50"},
		{name: "three for two", price: "1.00", special: special.NForX{N: 3, X: dec("2.00")}, amount: "7", want: "5.00"},
		{name: "n for x exact groups", price: "1.00", special: special.NForX{N: 3, X: dec("2.00")}, amount: "6", want: "4.00"},
		{name: "n for x below group", price: "1.00", special: special.NForX{N: 3, X: dec("2.00")}, amount: "2", want: "2.00"},
		{name: "n for x remainder uses markdown", price: "1.00", markdown: "0.25", special: special.NForX{N: 3, X: dec("2.00")}, amount: "4", want: "2.75"},
		{name: "n for x limit exceeded", price: "3.00", special: special.NForX{N: 2, X: dec("5.00"), Limit: intPtr(6)}, amount: "7", want: "18.00"},
		{name: "n for x under limit", price: "3.00", special: special.NForX{N: 2, X: dec("5.00"), Limit: intPtr(6)}, amount: "4", want: "10.00"},
		{name: "n for x at limit", price: "3.00", special: special.NForX{N: 2, X: dec("5.00"), Limit: intPtr(6)}, amount: "6", want: "15.00"},
		{name: "buy two get one half off", price: "3.00", special: special.NGetMAtXOff{N: 2, M: 1, X: dec("0.5")}, amount: "5", want: "13.50"},
		{name: "buy one get one free", price: "2.00", special: special.NGetMAtXOff{N: 1, M: 1, X: dec("1")}, amount: "4", want: "4.00"},
		{name: "bogo limit exceeded", price: "2.00", special: special.NGetMAtXOff{N: 1, M: 1, X: dec("1"), Limit: intPtr(6)}, amount: "8", want: "10.00"},
		{name: "partial group full price", price: "2.00", special: special.NGetMAtXOff{N: 3, M: 2, X: dec("0.5")}, amount: "4", want: "8.00"},
		{name: "weighed n for x keeps fraction", price: "3.00", special: special.NForX{N: 2, X: dec("5.00")}, amount: "4.5", want: "11.50"},
		{name: "weighed get m keeps fraction", price: "4.00", special: special.NGetMAtXOff{N: 1, M: 1, X: dec("0.5")}, amount: "2.5", want: "8.00"},
		{name: "negative amount floors groups", price: "1.00", special: special.NForX{N: 3, X: dec("2.00")}, amount: "-2", want: "-1.00"},
		{name: "negative exact group", price: "1.00", special: special.NForX{N: 3, X: dec("2.00")}, amount: "-3", want: "-2.00"},
		{name: "negative get m floors groups", price: "3.00", special: special.NGetMAtXOff{N: 2, M: 1, X: dec("0.5")}, amount: "-1", want: "-1.50"},
		{name: "negative weighed amount", price: "3.00", special: special.NForX{N: 2, X: dec("5.00")}, amount: "-0.5", want: "-0.50"},
		{name: "zero amount", price: "1.00", special: special.NForX{N: 3, X: dec("2.00")}, amount: "0", want: "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			f.catalog.SetPrice("item", dec(tc.price), false)
			if tc.markdown != "" {
				require.NoError(t, f.catalog.SetMarkdown("item", dec(tc.markdown)))
			}
			if tc.special != nil {
				require.NoError(t, f.specials.Set("item", tc.special))
			}
			got, err := f.engine.Cost("item", dec(tc.amount))
			require.NoError(t, err)
			require.True(t, got.Equal(dec(tc.want)), "want %s got %s", tc.want, got)
		})
	}
}

func TestCostWithoutSpecialMatchesUnitCost(t *testing.T) {
	f := newFixture()
	f.catalog.SetPrice("rice", dec("0.89"), true)
	unit, err := f.catalog.UnitCost("rice")
	require.NoError(t, err)

	for _, amount := range []string{"1", "2", "0.35", "12.125", "100"} {
		got, err := f.engine.Cost("rice", dec(amount))
		require.NoError(t, err)
		require.True(t, got.Equal(unit.Mul(dec(amount))), "amount %s", amount)
	}
}

func TestNForXGroupFormula(t *testing.T) {
	f := newFixture()
	f.catalog.SetPrice("soda", dec("1.25"), false)
	x := dec("3.00")
	require.NoError(t, f.specials.Set("soda", special.NForX{N: 4, X: x}))

	for k := 0; k < 5; k++ {
		for r := 0; r < 4; r++ {
			amount := decimal.NewFromInt(int64(k*4 + r))
			want := decimal.NewFromInt(int64(k)).Mul(x).Add(decimal.NewFromInt(int64(r)).Mul(dec("1.25")))
			got, err := f.engine.Cost("soda", amount)
			require.NoError(t, err)
			require.True(t, got.Equal(want), "k=%d r=%d want %s got %s", k, r, want, got)
		}
	}
}

func TestNForXExcessAlwaysUnitCost(t *testing.T) {
	f := newFixture()
	f.catalog.SetPrice("soda", dec("1.25"), false)
	require.NoError(t, f.specials.Set("soda", special.NForX{N: 4, X: dec("3.00"), Limit: intPtr(8)}))

	atLimit, err := f.engine.Cost("soda", dec("8"))
	require.NoError(t, err)
	for extra := 1; extra <= 9; extra++ {
		got, err := f.engine.Cost("soda", decimal.NewFromInt(int64(8+extra)))
		require.NoError(t, err)
		want := atLimit.Add(dec("1.25").Mul(decimal.NewFromInt(int64(extra))))
		require.True(t, got.Equal(want), "extra %d", extra)
	}
}

func TestNGetMAtXOffDiscountBound(t *testing.T) {
	f := newFixture()
	f.catalog.SetPrice("bread", dec("3.00"), false)
	require.NoError(t, f.specials.Set("bread", special.NGetMAtXOff{N: 2, M: 1, X: dec("0.5")}))

	for n := 0; n <= 20; n++ {
		amount := decimal.NewFromInt(int64(n))
		line, err := f.engine.Line("bread", amount)
		require.NoError(t, err)
		bound := decimal.NewFromInt(int64(n / 3))
		require.True(t, line.Discounted.LessThanOrEqual(bound), "amount %d", n)
		require.True(t, line.FullPriced.Add(line.Discounted).Equal(amount), "amount %d", n)
	}
}

func TestNForXFloorsNegativeAmounts(t *testing.T) {
	f := newFixture()
	f.catalog.SetPrice("soda", dec("1.25"), false)
	x := dec("3.00")
	require.NoError(t, f.specials.Set("soda", special.NForX{N: 4, X: x}))

	for k := -3; k < 0; k++ {
		for r := 0; r < 4; r++ {
			amount := decimal.NewFromInt(int64(k*4 + r))
			line, err := f.engine.Line("soda", amount)
			require.NoError(t, err)
			require.True(t, line.Groups.Equal(decimal.NewFromInt(int64(k))), "amount %s groups %s", amount, line.Groups)
			require.True(t, line.FullPriced.Equal(decimal.NewFromInt(int64(r))), "amount %s remainder %s", amount, line.FullPriced)
			want := decimal.NewFromInt(int64(k)).Mul(x).Add(decimal.NewFromInt(int64(r)).Mul(dec("1.25")))
			require.True(t, line.Cost.Equal(want), "amount %s want %s got %s", amount, want, line.Cost)
		}
	}
}

func TestLineBreakdown(t *testing.T) {
	f := newFixture()
	f.catalog.SetPrice("bread", dec("3.00"), false)
	require.NoError(t, f.specials.Set("bread", special.NGetMAtXOff{N: 2, M: 1, X: dec("0.5")}))

	line, err := f.engine.Line("bread", dec("5"))
	require.NoError(t, err)
	require.Equal(t, special.KindNGetMAtXOff, line.Special)
	require.True(t, line.Groups.Equal(dec("1")))
	require.True(t, line.FullPriced.Equal(dec("4")))
	require.True(t, line.Discounted.Equal(dec("1")))
	require.True(t, line.UnitCost.Equal(dec("3.00")))
	require.True(t, line.Cost.Equal(dec("13.50")))
}

func TestUnknownItem(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.specials.Set("ghost", special.NForX{N: 2, X: dec("1")}))

	_, err := f.engine.Cost("ghost", dec("2"))
	require.ErrorIs(t, err, catalog.ErrUnknownItem)
}

type nilSpecials struct{}

func (nilSpecials) Get(string) (special.Special, bool) { return nil, true }

type pointerSpecials struct{}

func (pointerSpecials) Get(string) (special.Special, bool) {
	return &special.NForX{N: 2, X: dec("1")}, true
}

func TestUnsupportedSpecialType(t *testing.T) {
	c := catalog.New()
	c.SetPrice("apple", dec("1"), false)

	_, err := pricing.Engine{Catalog: c, Specials: nilSpecials{}}.Cost("apple", dec("2"))
	require.ErrorIs(t, err, special.ErrUnsupportedSpecialType)

	_, err = pricing.Engine{Catalog: c, Specials: pointerSpecials{}}.Cost("apple", dec("2"))
	require.ErrorIs(t, err, special.ErrUnsupportedSpecialType)
	require.Contains(t, err.Error(), "n_for_x")
}

func TestRound2(t *testing.T) {
	require.True(t, pricing.Round2(dec("3.745")).Equal(dec("3.75")))
	require.True(t, pricing.Round2(dec("3.744")).Equal(dec("3.74")))
	require.True(t, pricing.Round2(dec("-1.005")).Equal(dec("-1.01")))
}
