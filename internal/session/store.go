package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/noah-isme/backend-pos/internal/obs"
)

var (
	// ErrNotFound is returned for an unknown or expired session id.
	ErrNotFound = errors.New("session not found")
	// ErrCapacity is returned by Create when MaxActive sessions are open.
	ErrCapacity = errors.New("session capacity reached")
)

// StoreConfig configures a Store.
type StoreConfig struct {
	// IdleTTL evicts sessions not fetched for this long. Zero disables expiry.
	IdleTTL time.Duration
	// MaxActive caps open sessions. Zero means unlimited.
	MaxActive int
	Logger    zerolog.Logger
	Now       func() time.Time
}

// Store keeps sessions in memory keyed by id.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	idleTTL  time.Duration
	max      int
	now      func() time.Time
	log      zerolog.Logger
}

// NewStore constructs an empty store.
func NewStore(cfg StoreConfig) *Store {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		sessions: make(map[string]*Session),
		idleTTL:  cfg.IdleTTL,
		max:      cfg.MaxActive,
		now:      now,
		log:      cfg.Logger,
	}
}

// Create opens a new session with a random id.
func (st *Store) Create() (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.max > 0 && len(st.sessions) >= st.max {
		return nil, fmt.Errorf("%w: %d open", ErrCapacity, len(st.sessions))
	}
	s := New(uuid.NewString(), st.now(), st.log)
	st.sessions[s.ID] = s
	obs.SetSessionsActive(len(st.sessions))
	st.log.Info().Str("session_id", s.ID).Msg("session opened")
	return s, nil
}

// Get returns the session and marks it as recently used. A session idle past
// IdleTTL is treated as gone even if the sweeper has not run yet.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	now := st.now()
	if st.expired(s, now) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.touch(now)
	return s, nil
}

// Delete closes the session.
func (st *Store) Delete(id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(st.sessions, id)
	obs.SetSessionsActive(len(st.sessions))
	st.log.Info().Str("session_id", id).Msg("session closed")
	return nil
}

// List returns one page of session summaries ordered by creation time, and
// the number of open sessions.
func (st *Store) List(page, perPage int) ([]Summary, int) {
	st.mu.RLock()
	all := lo.Values(st.sessions)
	st.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = len(all)
	}
	start := (page - 1) * perPage
	window := lo.Slice(all, start, start+perPage)
	return lo.Map(window, func(s *Session, _ int) Summary { return s.Summary() }), len(all)
}

// Len returns the number of open sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep evicts idle sessions and returns how many were removed.
func (st *Store) Sweep() int {
	if st.idleTTL <= 0 {
		return 0
	}
	now := st.now()
	st.mu.Lock()
	defer st.mu.Unlock()

	stale := lo.PickBy(st.sessions, func(_ string, s *Session) bool { return st.expired(s, now) })
	for id := range stale {
		delete(st.sessions, id)
		st.log.Info().Str("session_id", id).Msg("session expired")
	}
	if len(stale) > 0 {
		obs.SetSessionsActive(len(st.sessions))
		obs.AddSessionsExpired(len(stale))
	}
	return len(stale)
}

// Run sweeps on every tick of interval until ctx is cancelled.
func (st *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 || st.idleTTL <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := st.Sweep(); n > 0 {
				st.log.Debug().Int("expired", n).Int("active", st.Len()).Msg("session sweep")
			}
		}
	}
}

func (st *Store) expired(s *Session, now time.Time) bool {
	return st.idleTTL > 0 && now.Sub(s.LastSeen()) > st.idleTTL
}
