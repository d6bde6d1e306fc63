package special

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pos/internal/common"
)

var (
	// ErrUnsupportedSpecialType is returned for a special kind the pricing engine cannot evaluate.
	ErrUnsupportedSpecialType = errors.New("special type not supported")
	// ErrInvalidParameters is returned when a special carries non-positive counts or an out-of-range fraction.
	ErrInvalidParameters = errors.New("invalid special parameters")
)

// Kind names a special variant on the wire.
type Kind string

const (
	// KindNForX is "buy N units for X".
	KindNForX Kind = "n_for_x"
	// KindNGetMAtXOff is "buy N, get the next M at fraction X off".
	KindNGetMAtXOff Kind = "n_get_m_at_x_off"
)

// Special is a promotional pricing rule attached to one catalog item.
// The set of implementations is closed to this package.
type Special interface {
	Kind() Kind
	// Cap returns the limit on how many units the rule applies to, or nil.
	Cap() *int
	sealed()
}

// NForX charges X for every full group of N units.
type NForX struct {
	N     int             `json:"n" validate:"gt=0"`
	X     decimal.Decimal `json:"x"`
	Limit *int            `json:"limit,omitempty" validate:"omitempty,gt=0"`
}

// Kind implements Special.
func (NForX) Kind() Kind { return KindNForX }

// Cap implements Special.
func (s NForX) Cap() *int { return s.Limit }

func (NForX) sealed() {}

// NGetMAtXOff discounts the M units following every N full-priced units by fraction X.
type NGetMAtXOff struct {
	N     int             `json:"n" validate:"gt=0"`
	M     int             `json:"m" validate:"gt=0"`
	X     decimal.Decimal `json:"x"`
	Limit *int            `json:"limit,omitempty" validate:"omitempty,gt=0"`
}

// Kind implements Special.
func (NGetMAtXOff) Kind() Kind { return KindNGetMAtXOff }

// Cap implements Special.
func (s NGetMAtXOff) Cap() *int { return s.Limit }

func (NGetMAtXOff) sealed() {}

var validate = common.NewValidator()

// Validate checks that s is a known variant with positive counts and, for
// NGetMAtXOff, a discount fraction within [0,1].
func Validate(s Special) error {
	switch s.(type) {
	case NForX, NGetMAtXOff:
	default:
		return unsupported(s)
	}
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidParameters, common.ValidationMessage(err))
	}
	// The validator sees decimals as float64, which cannot hold the fraction
	// bounds exactly, so they are compared as decimals here.
	if v, ok := s.(NGetMAtXOff); ok && (v.X.IsNegative() || v.X.GreaterThan(decimal.NewFromInt(1))) {
		return fmt.Errorf("%w: x must be within [0,1], got %s", ErrInvalidParameters, v.X)
	}
	return nil
}

func unsupported(s Special) error {
	if s == nil {
		return fmt.Errorf("%w: <nil>", ErrUnsupportedSpecialType)
	}
	return fmt.Errorf("%w: %T", ErrUnsupportedSpecialType, s)
}

// Params is the flat wire shape of a special.
type Params struct {
	Type  string          `json:"type"`
	N     int             `json:"n"`
	M     int             `json:"m,omitempty"`
	X     decimal.Decimal `json:"x"`
	Limit *int            `json:"limit,omitempty"`
}

// FromParams builds the variant named by p.Type and validates it.
func FromParams(p Params) (Special, error) {
	var s Special
	switch Kind(strings.ToLower(strings.TrimSpace(p.Type))) {
	case KindNForX:
		s = NForX{N: p.N, X: p.X, Limit: p.Limit}
	case KindNGetMAtXOff:
		s = NGetMAtXOff{N: p.N, M: p.M, X: p.X, Limit: p.Limit}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSpecialType, p.Type)
	}
	if err := Validate(s); err != nil {
		return nil, err
	}
	return s, nil
}

// ToParams flattens s into its wire shape.
func ToParams(s Special) Params {
	switch v := s.(type) {
	case NForX:
		return Params{Type: string(KindNForX), N: v.N, X: v.X, Limit: v.Limit}
	case NGetMAtXOff:
		return Params{Type: string(KindNGetMAtXOff), N: v.N, M: v.M, X: v.X, Limit: v.Limit}
	default:
		return Params{}
	}
}
