package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pos/internal/special"
)

// Money represents a monetary value in currency units.
type Money = decimal.Decimal

// UnitCoster resolves the effective unit price of an item.
type UnitCoster interface {
	UnitCost(id string) (decimal.Decimal, error)
}

// SpecialLookup returns the active special for an item, if any.
type SpecialLookup interface {
	Get(id string) (special.Special, bool)
}

// Engine computes the cost of a quantity of an item from the catalog and specials.
type Engine struct {
	Catalog  UnitCoster
	Specials SpecialLookup
}

// Line describes how the cost of a quantity was derived.
type Line struct {
	ItemID   string          `json:"item"`
	Quantity decimal.Decimal `json:"quantity"`
	UnitCost Money           `json:"unitCost"`
	Special  special.Kind    `json:"special,omitempty"`
	// Groups is the number of whole special groups charged.
	Groups decimal.Decimal `json:"groups"`
	// FullPriced is the quantity charged at unit cost.
	FullPriced decimal.Decimal `json:"fullPriced"`
	// Discounted is the quantity charged at the discounted rate.
	Discounted decimal.Decimal `json:"discounted"`
	Cost       Money           `json:"cost"`
}

// Cost returns the unrounded cost of amount units of id.
func (e Engine) Cost(id string, amount decimal.Decimal) (Money, error) {
	line, err := e.Line(id, amount)
	if err != nil {
		return decimal.Zero, err
	}
	return line.Cost, nil
}

// Line prices amount units of id and reports the breakdown. Group counts use
// floor division, so a negative amount left by over-removal yields a negative
// group count and a non-negative remainder.
func (e Engine) Line(id string, amount decimal.Decimal) (Line, error) {
	unit, err := e.Catalog.UnitCost(id)
	if err != nil {
		return Line{}, err
	}
	line := Line{
		ItemID:     id,
		Quantity:   amount,
		UnitCost:   unit,
		Groups:     decimal.Zero,
		FullPriced: amount,
		Discounted: decimal.Zero,
		Cost:       unit.Mul(amount),
	}
	if e.Specials == nil {
		return line, nil
	}
	sp, ok := e.Specials.Get(id)
	if !ok {
		return line, nil
	}

	switch s := sp.(type) {
	case special.NForX:
		nForX(&line, s)
	case special.NGetMAtXOff:
		nGetMAtXOff(&line, s)
	default:
		if sp == nil {
			return Line{}, fmt.Errorf("%w: <nil>", special.ErrUnsupportedSpecialType)
		}
		return Line{}, fmt.Errorf("%w: %s", special.ErrUnsupportedSpecialType, sp.Kind())
	}
	line.Special = sp.Kind()
	return line, nil
}

func nForX(line *Line, s special.NForX) {
	applied, excess := splitLimit(line.Quantity, s.Limit)
	qualifying, remainder := groups(applied, decimal.NewFromInt(int64(s.N)))
	remaining := remainder.Add(excess)

	line.Groups = qualifying
	line.FullPriced = remaining
	line.Cost = qualifying.Mul(s.X).Add(remaining.Mul(line.UnitCost))
}

func nGetMAtXOff(line *Line, s special.NGetMAtXOff) {
	applied, excess := splitLimit(line.Quantity, s.Limit)
	qualifying, remainder := groups(applied, decimal.NewFromInt(int64(s.N+s.M)))
	remaining := remainder.Add(excess)

	fullPriced := qualifying.Mul(decimal.NewFromInt(int64(s.N))).Add(remaining)
	discounted := qualifying.Mul(decimal.NewFromInt(int64(s.M)))
	discountedUnit := line.UnitCost.Mul(decimal.NewFromInt(1).Sub(s.X))

	line.Groups = qualifying
	line.FullPriced = fullPriced
	line.Discounted = discounted
	line.Cost = fullPriced.Mul(line.UnitCost).Add(discounted.Mul(discountedUnit))
}

// splitLimit caps amount at limit. The excess over the limit is returned
// separately so it can be charged at unit cost.
func splitLimit(amount decimal.Decimal, limit *int) (applied, excess decimal.Decimal) {
	if limit == nil {
		return amount, decimal.Zero
	}
	l := decimal.NewFromInt(int64(*limit))
	if amount.LessThanOrEqual(l) {
		return amount, decimal.Zero
	}
	return l, amount.Sub(l)
}

// groups splits amount into floor(amount/size) whole groups and the leftover
// in [0, size). The leftover keeps any fractional part of a weighed amount.
func groups(amount, size decimal.Decimal) (qualifying, remainder decimal.Decimal) {
	qualifying, remainder = amount.QuoRem(size, 0)
	if remainder.IsNegative() {
		qualifying = qualifying.Sub(decimal.NewFromInt(1))
		remainder = remainder.Add(size)
	}
	return qualifying, remainder
}

// Round2 rounds m to two decimal places, half away from zero.
func Round2(m Money) Money {
	return m.Round(2)
}
