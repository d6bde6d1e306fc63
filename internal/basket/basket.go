package basket

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pos/internal/pricing"
)

// ErrInvalidQuantity is returned when a scan or remove carries a negative weight.
var ErrInvalidQuantity = errors.New("invalid quantity")

// Pricer prices a quantity of an item.
type Pricer interface {
	Cost(id string, amount decimal.Decimal) (pricing.Money, error)
}

// Entry is a scanned item and its running quantity.
type Entry struct {
	ItemID   string          `json:"item"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Basket tracks scanned quantities and the running pretax total. It is not
// safe for concurrent use; callers serialise access.
type Basket struct {
	pricer Pricer
	items  map[string]decimal.Decimal
	total  pricing.Money
}

// New constructs an empty basket priced by p.
func New(p Pricer) *Basket {
	return &Basket{pricer: p, items: make(map[string]decimal.Decimal), total: decimal.Zero}
}

// Scan adds one unit of id, or weight when weight is non-zero, and returns the new total.
func (b *Basket) Scan(id string, weight decimal.Decimal) (pricing.Money, error) {
	delta, err := step(weight)
	if err != nil {
		return b.total, err
	}
	return b.apply(id, delta)
}

// Remove subtracts one unit of id, or weight when weight is non-zero, and
// returns the new total. The entry is dropped when its quantity reaches
// exactly zero. Quantities are not clamped and may go negative.
func (b *Basket) Remove(id string, weight decimal.Decimal) (pricing.Money, error) {
	delta, err := step(weight)
	if err != nil {
		return b.total, err
	}
	return b.apply(id, delta.Neg())
}

// Recompute recalculates the total from every entry and stores it.
func (b *Basket) Recompute() (pricing.Money, error) {
	total, err := b.sum()
	if err != nil {
		return b.total, err
	}
	b.total = total
	return total, nil
}

// Total returns the total computed by the last successful mutation.
func (b *Basket) Total() pricing.Money {
	return b.total
}

// Quantity returns the scanned quantity of id.
func (b *Basket) Quantity(id string) (decimal.Decimal, bool) {
	q, ok := b.items[id]
	return q, ok
}

// Items returns the entries ordered by item identifier.
func (b *Basket) Items() []Entry {
	out := lo.MapToSlice(b.items, func(id string, q decimal.Decimal) Entry {
		return Entry{ItemID: id, Quantity: q}
	})
	slices.SortFunc(out, func(a, c Entry) int { return strings.Compare(a.ItemID, c.ItemID) })
	return out
}

// Len returns the number of distinct items in the basket.
func (b *Basket) Len() int {
	return len(b.items)
}

// apply mutates the quantity of id and recomputes. When pricing fails the
// previous quantity is restored so the basket is never left half-updated.
func (b *Basket) apply(id string, delta decimal.Decimal) (pricing.Money, error) {
	prev, had := b.items[id]
	next := prev.Add(delta)
	if next.IsZero() {
		delete(b.items, id)
	} else {
		b.items[id] = next
	}

	total, err := b.sum()
	if err != nil {
		if had {
			b.items[id] = prev
		} else {
			delete(b.items, id)
		}
		return b.total, fmt.Errorf("price %q: %w", id, err)
	}
	b.total = total
	return total, nil
}

func (b *Basket) sum() (pricing.Money, error) {
	total := decimal.Zero
	for id, q := range b.items {
		cost, err := b.pricer.Cost(id, q)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(pricing.Round2(cost))
	}
	return total, nil
}

func step(weight decimal.Decimal) (decimal.Decimal, error) {
	if weight.IsNegative() {
		return decimal.Zero, fmt.Errorf("weight must not be negative: %w", ErrInvalidQuantity)
	}
	if weight.IsZero() {
		return decimal.NewFromInt(1), nil
	}
	return weight, nil
}
