package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/backend-pos/internal/basket"
	"github.com/noah-isme/backend-pos/internal/catalog"
	"github.com/noah-isme/backend-pos/internal/obs"
	"github.com/noah-isme/backend-pos/internal/pricing"
	"github.com/noah-isme/backend-pos/internal/special"
)

// Session is one checkout lane: a catalog, its specials and a basket priced
// against them. Every operation holds the session mutex, so a recompute
// always observes a consistent catalog and basket.
type Session struct {
	ID        string
	CreatedAt time.Time

	lastSeen atomic.Int64

	mu       sync.Mutex
	catalog  *catalog.Catalog
	specials *special.Registry
	engine   pricing.Engine
	basket   *basket.Basket
	log      zerolog.Logger
}

// New constructs an empty session.
func New(id string, now time.Time, logger zerolog.Logger) *Session {
	c := catalog.New()
	r := special.NewRegistry()
	engine := pricing.Engine{Catalog: c, Specials: r}
	s := &Session{
		ID:        id,
		CreatedAt: now,
		catalog:   c,
		specials:  r,
		engine:    engine,
		basket:    basket.New(engine),
		log:       logger.With().Str("session_id", id).Logger(),
	}
	s.touch(now)
	return s
}

// Receipt is a consistent view of the basket: one priced line per item and the total.
type Receipt struct {
	SessionID string         `json:"sessionId"`
	Lines     []pricing.Line `json:"lines"`
	Total     pricing.Money  `json:"total"`
}

// SetPrice inserts or replaces the price of id, clearing any markdown.
func (s *Session) SetPrice(ctx context.Context, id string, price decimal.Decimal, soldByWeight bool) {
	_, span := obs.StartSpan(ctx, "session.set_price", attribute.String("pos.item", id))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog.SetPrice(id, price, soldByWeight)
	obs.ObservePricingUpdate("price", nil)
	s.log.Debug().Str("item", id).Stringer("price", price).Bool("sold_by_weight", soldByWeight).Msg("price set")
}

// SetMarkdown sets the markdown of an already priced item.
func (s *Session) SetMarkdown(ctx context.Context, id string, markdown decimal.Decimal) (err error) {
	_, span := obs.StartSpan(ctx, "session.set_markdown", attribute.String("pos.item", id))
	defer func() { obs.EndSpan(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	err = s.catalog.SetMarkdown(id, markdown)
	obs.ObservePricingUpdate("markdown", err)
	if err != nil {
		return err
	}
	s.log.Debug().Str("item", id).Stringer("markdown", markdown).Msg("markdown set")
	return nil
}

// SetSpecial replaces the special for id after validating its parameters.
func (s *Session) SetSpecial(ctx context.Context, id string, sp special.Special) (err error) {
	_, span := obs.StartSpan(ctx, "session.set_special", attribute.String("pos.item", id))
	defer func() { obs.EndSpan(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	err = s.specials.Set(id, sp)
	obs.ObservePricingUpdate("special", err)
	if err != nil {
		return err
	}
	s.log.Debug().Str("item", id).Str("special", string(sp.Kind())).Msg("special set")
	return nil
}

// Item returns the catalog entry for id.
func (s *Session) Item(id string) (catalog.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog.Item(id)
}

// IsSoldByWeight reports the sold-by-weight flag of id.
func (s *Session) IsSoldByWeight(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog.IsSoldByWeight(id)
}

// UnitCost returns the price of id after markdown.
func (s *Session) UnitCost(id string) (pricing.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog.UnitCost(id)
}

// Special returns the special registered for id.
func (s *Session) Special(id string) (special.Special, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.specials.Get(id)
}

// Quote prices amount units of id without touching the basket.
func (s *Session) Quote(ctx context.Context, id string, amount decimal.Decimal) (line pricing.Line, err error) {
	_, span := obs.StartSpan(ctx, "session.quote", attribute.String("pos.item", id), attribute.String("pos.amount", amount.String()))
	defer func() { obs.EndSpan(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	line, err = s.engine.Line(id, amount)
	if err != nil {
		return pricing.Line{}, err
	}
	obs.ObservePricedLine(string(line.Special))
	return line, nil
}

// Scan adds one unit of id, or weight when non-zero, and returns the new total.
func (s *Session) Scan(ctx context.Context, id string, weight decimal.Decimal) (pricing.Money, error) {
	return s.mutate(ctx, "scan", id, weight, s.basket.Scan)
}

// Remove subtracts one unit of id, or weight when non-zero, and returns the new total.
func (s *Session) Remove(ctx context.Context, id string, weight decimal.Decimal) (pricing.Money, error) {
	return s.mutate(ctx, "remove", id, weight, s.basket.Remove)
}

func (s *Session) mutate(ctx context.Context, op, id string, weight decimal.Decimal, apply func(string, decimal.Decimal) (pricing.Money, error)) (total pricing.Money, err error) {
	_, span := obs.StartSpan(ctx, "session."+op, attribute.String("pos.item", id), attribute.String("pos.weight", weight.String()))
	defer func() { obs.EndSpan(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	total, err = apply(id, weight)
	obs.ObserveBasketMutation(op, err)
	if err != nil {
		s.log.Debug().Err(err).Str("op", op).Str("item", id).Msg("basket mutation rejected")
		return total, err
	}

	qty, present := s.basket.Quantity(id)
	if !present {
		qty = decimal.Zero
	}
	if qty.IsNegative() {
		span.SetAttributes(attribute.Bool("pos.negative_quantity", true))
		s.log.Warn().Str("op", op).Str("item", id).Stringer("quantity", qty).Msg("basket quantity went negative")
		return total, nil
	}
	s.log.Debug().Str("op", op).Str("item", id).Stringer("quantity", qty).Stringer("total", total).Msg("basket updated")
	return total, nil
}

// Recompute reprices every basket entry against the current catalog and specials.
func (s *Session) Recompute(ctx context.Context) (total pricing.Money, err error) {
	_, span := obs.StartSpan(ctx, "session.recompute")
	defer func() { obs.EndSpan(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.basket.Recompute()
}

// Total returns the total computed by the last basket mutation.
func (s *Session) Total() pricing.Money {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.basket.Total()
}

// Items returns the basket entries ordered by item id.
func (s *Session) Items() []basket.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.basket.Items()
}

// Snapshot reprices the basket and returns the receipt. Each line cost is
// rounded to cents, and the total is the sum of the rounded lines.
func (s *Session) Snapshot(ctx context.Context) (receipt Receipt, err error) {
	_, span := obs.StartSpan(ctx, "session.snapshot")
	defer func() { obs.EndSpan(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	total, err := s.basket.Recompute()
	if err != nil {
		return Receipt{}, err
	}
	entries := s.basket.Items()
	lines := make([]pricing.Line, 0, len(entries))
	for _, e := range entries {
		line, err := s.engine.Line(e.ItemID, e.Quantity)
		if err != nil {
			return Receipt{}, err
		}
		line.Cost = pricing.Round2(line.Cost)
		lines = append(lines, line)
	}
	return Receipt{SessionID: s.ID, Lines: lines, Total: total}, nil
}

// Summary is the listing view of a session.
type Summary struct {
	ID        string        `json:"id"`
	CreatedAt time.Time     `json:"createdAt"`
	LastSeen  time.Time     `json:"lastSeen"`
	Items     int           `json:"items"`
	Total     pricing.Money `json:"total"`
}

// Summary reports the session's size and last total.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Summary{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		LastSeen:  s.LastSeen(),
		Items:     s.basket.Len(),
		Total:     s.basket.Total(),
	}
}

// LastSeen returns when the session was last fetched from the store.
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}
