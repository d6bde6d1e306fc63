package catalog

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// ErrUnknownItem is returned when an operation references an item that was never priced.
var ErrUnknownItem = errors.New("unknown item")

// Item holds the pricing attributes of a catalog entry.
type Item struct {
	ID           string              `json:"id"`
	Price        decimal.Decimal     `json:"price"`
	Markdown     decimal.NullDecimal `json:"markdown"`
	SoldByWeight bool                `json:"soldByWeight"`
}

// UnitCost returns the base price minus the markdown, if any.
func (it Item) UnitCost() decimal.Decimal {
	if it.Markdown.Valid {
		return it.Price.Sub(it.Markdown.Decimal)
	}
	return it.Price
}

// Catalog maps item identifiers to their pricing attributes.
// It is not safe for concurrent use; callers serialise access.
type Catalog struct {
	items map[string]Item
}

// New constructs an empty catalog.
func New() *Catalog {
	return &Catalog{items: make(map[string]Item)}
}

// SetPrice inserts or replaces the price entry for id. Any markdown
// previously set on the item is cleared. The price sign is not validated.
func (c *Catalog) SetPrice(id string, price decimal.Decimal, soldByWeight bool) {
	c.items[id] = Item{ID: id, Price: price, SoldByWeight: soldByWeight}
}

// SetMarkdown overwrites the markdown of an already priced item.
func (c *Catalog) SetMarkdown(id string, markdown decimal.Decimal) error {
	it, ok := c.items[id]
	if !ok {
		return unknown(id)
	}
	it.Markdown = decimal.NewNullDecimal(markdown)
	c.items[id] = it
	return nil
}

// IsSoldByWeight reports the stored sold-by-weight flag.
func (c *Catalog) IsSoldByWeight(id string) (bool, error) {
	it, ok := c.items[id]
	if !ok {
		return false, unknown(id)
	}
	return it.SoldByWeight, nil
}

// UnitCost returns the effective unit price of id.
func (c *Catalog) UnitCost(id string) (decimal.Decimal, error) {
	it, ok := c.items[id]
	if !ok {
		return decimal.Zero, unknown(id)
	}
	return it.UnitCost(), nil
}

// Item looks up a single entry.
func (c *Catalog) Item(id string) (Item, bool) {
	it, ok := c.items[id]
	return it, ok
}

// Items returns every entry ordered by identifier.
func (c *Catalog) Items() []Item {
	out := lo.Values(c.items)
	slices.SortFunc(out, func(a, b Item) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Len returns the number of priced items.
func (c *Catalog) Len() int {
	return len(c.items)
}

func unknown(id string) error {
	return fmt.Errorf("%w: %q", ErrUnknownItem, id)
}
