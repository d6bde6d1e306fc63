package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pos/internal/basket"
	"github.com/noah-isme/backend-pos/internal/catalog"
	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/obs"
	"github.com/noah-isme/backend-pos/internal/special"
)

const defaultPerPage = 20

var validate = common.NewValidator()

// Handler exposes sessions over HTTP.
type Handler struct {
	Store *Store
}

// RouterConfig supplies the middleware stacks that guard route groups.
type RouterConfig struct {
	// Admin guards catalog and special writes.
	Admin func(http.Handler) http.Handler
	// Mutations wrap scan and remove, e.g. idempotency and rate limiting.
	Mutations []func(http.Handler) http.Handler
}

// Routes builds the /sessions subtree.
func (h *Handler) Routes(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Route("/{sessionID}", func(sr chi.Router) {
		sr.Use(h.loadSession)
		sr.Get("/", h.Receipt)
		sr.Delete("/", h.Close)
		sr.Get("/catalog/{item}", h.GetItem)
		sr.Get("/specials/{item}", h.GetSpecial)
		sr.Get("/quote/{item}", h.Quote)

		sr.Group(func(admin chi.Router) {
			if cfg.Admin != nil {
				admin.Use(cfg.Admin)
			}
			admin.Put("/catalog/{item}", h.SetPrice)
			admin.Put("/catalog/{item}/markdown", h.SetMarkdown)
			admin.Put("/specials/{item}", h.SetSpecial)
		})

		sr.Group(func(m chi.Router) {
			m.Use(cfg.Mutations...)
			m.Post("/scan", h.Scan)
			m.Post("/remove", h.Remove)
		})
	})
	return r
}

type sessionCtxKey struct{}

func (h *Handler) loadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "sessionID")
		s, err := h.Store.Get(id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		ctx := obs.WithSessionID(r.Context(), id)
		ctx = context.WithValue(ctx, sessionCtxKey{}, s)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func current(r *http.Request) *Session {
	s, _ := r.Context().Value(sessionCtxKey{}).(*Session)
	return s
}

// Create opens a session.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	s, err := h.Store.Create()
	if err != nil {
		writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusCreated, map[string]any{"id": s.ID, "createdAt": s.CreatedAt})
}

// List returns a page of open sessions.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, defaultPerPage)
	items, total := h.Store.List(page, perPage)
	common.Page(w, items, common.NewPagination(page, perPage, total))
}

// Receipt returns the repriced basket.
func (h *Handler) Receipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := current(r).Snapshot(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, receipt)
}

// Close deletes the session.
func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Delete(current(r).ID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type pricePayload struct {
	Price        *decimal.Decimal `json:"price"`
	SoldByWeight bool             `json:"soldByWeight"`
}

// SetPrice inserts or replaces a catalog price.
func (h *Handler) SetPrice(w http.ResponseWriter, r *http.Request) {
	var p pricePayload
	if !decode(w, r, &p) || !present(w, "price", p.Price) {
		return
	}
	item := chi.URLParam(r, "item")
	s := current(r)
	s.SetPrice(r.Context(), item, *p.Price, p.SoldByWeight)
	h.writeItem(w, r, s, item)
}

type markdownPayload struct {
	Markdown *decimal.Decimal `json:"markdown"`
}

// SetMarkdown sets the markdown of a priced item.
func (h *Handler) SetMarkdown(w http.ResponseWriter, r *http.Request) {
	var p markdownPayload
	if !decode(w, r, &p) || !present(w, "markdown", p.Markdown) {
		return
	}
	item := chi.URLParam(r, "item")
	s := current(r)
	if err := s.SetMarkdown(r.Context(), item, *p.Markdown); err != nil {
		writeError(w, r, err)
		return
	}
	h.writeItem(w, r, s, item)
}

// GetItem returns a catalog entry with its unit cost.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	h.writeItem(w, r, current(r), chi.URLParam(r, "item"))
}

func (h *Handler) writeItem(w http.ResponseWriter, r *http.Request, s *Session, id string) {
	it, ok := s.Item(id)
	if !ok {
		writeError(w, r, catalog.ErrUnknownItem)
		return
	}
	common.Data(w, http.StatusOK, map[string]any{
		"id":           it.ID,
		"price":        it.Price,
		"markdown":     it.Markdown,
		"soldByWeight": it.SoldByWeight,
		"unitCost":     it.UnitCost(),
	})
}

// SetSpecial replaces the special of an item.
func (h *Handler) SetSpecial(w http.ResponseWriter, r *http.Request) {
	var p special.Params
	if !decode(w, r, &p) {
		return
	}
	sp, err := special.FromParams(p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	item := chi.URLParam(r, "item")
	if err := current(r).SetSpecial(r.Context(), item, sp); err != nil {
		writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, special.ToParams(sp))
}

// GetSpecial returns the special of an item.
func (h *Handler) GetSpecial(w http.ResponseWriter, r *http.Request) {
	sp, ok := current(r).Special(chi.URLParam(r, "item"))
	if !ok {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "no special for item", nil)
		return
	}
	common.Data(w, http.StatusOK, special.ToParams(sp))
}

// Quote prices ?amount= units of an item without scanning it.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	amount := decimal.NewFromInt(1)
	if raw := strings.TrimSpace(r.URL.Query().Get("amount")); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "amount must be a decimal number", nil)
			return
		}
		amount = parsed
	}
	line, err := current(r).Quote(r.Context(), chi.URLParam(r, "item"), amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, line)
}

type mutationPayload struct {
	Item   string          `json:"item" validate:"required,max=128"`
	Weight decimal.Decimal `json:"weight" validate:"gte=0"`
}

// Scan adds an item to the basket.
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, (*Session).Scan)
}

// Remove takes an item out of the basket.
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, (*Session).Remove)
}

func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, op func(*Session, context.Context, string, decimal.Decimal) (decimal.Decimal, error)) {
	var p mutationPayload
	if !decode(w, r, &p) {
		return
	}
	total, err := op(current(r), r.Context(), strings.TrimSpace(p.Item), p.Weight)
	if err != nil {
		writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, map[string]any{"total": total.StringFixed(2)})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON payload", nil)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", common.ValidationMessage(err), nil)
		return false
	}
	return true
}

// present rejects an absent decimal field. A zero value is legitimate here,
// so the validator's required tag cannot express it.
func present(w http.ResponseWriter, field string, d *decimal.Decimal) bool {
	if d == nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", field+" must be present", nil)
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, ErrCapacity):
		status, code = http.StatusServiceUnavailable, "SESSION_LIMIT"
	case errors.Is(err, catalog.ErrUnknownItem):
		status, code = http.StatusNotFound, "UNKNOWN_ITEM"
	case errors.Is(err, special.ErrInvalidParameters):
		status, code = http.StatusUnprocessableEntity, "INVALID_SPECIAL"
	case errors.Is(err, special.ErrUnsupportedSpecialType):
		status, code = http.StatusUnprocessableEntity, "UNSUPPORTED_SPECIAL_TYPE"
	case errors.Is(err, basket.ErrInvalidQuantity):
		status, code = http.StatusUnprocessableEntity, "INVALID_QUANTITY"
	}
	if status == http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("session request failed")
		common.WriteError(w, err)
		return
	}
	common.WriteError(w, common.NewAppError(code, err.Error(), status, err))
}
