package dashboard

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// SessionCookie carries the session ID of the browser's view
	SessionCookie = "liftoff_session"

	DefaultSessionLimit = 1024
	DefaultSessionTTL   = 30 * time.Minute
)

// Sessions maps session IDs to mounted views.
// Every hit restarts the TTL of a session, so only idle views expire. Views also leave the store
// when it is full or on Remove, and are unmounted on the way out.
type Sessions struct {
	mu      sync.Mutex
	cache   *expirable.LRU[uuid.UUID, *View]
	fetcher Fetcher
	logger  *slog.Logger
}

// NewSessions creates a store holding at most limit views for ttl each.
// A limit or ttl of zero or less falls back to the defaults.
func NewSessions(fetcher Fetcher, limit int, ttl time.Duration, logger *slog.Logger) *Sessions {
	if limit <= 0 {
		limit = DefaultSessionLimit
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	sessions := &Sessions{fetcher: fetcher, logger: logger}
	sessions.cache = expirable.NewLRU(limit, func(id uuid.UUID, view *View) {
		view.Unmount()
		logger.Debug("session closed", "session_id", id)
	}, ttl)
	return sessions
}

// Get returns the view of a live session and restarts its TTL.
func (sessions *Sessions) Get(id uuid.UUID) (*View, bool) {
	sessions.mu.Lock()
	defer sessions.mu.Unlock()
	return sessions.touch(id)
}

// touch re-adds a live view, Add on an existing key moves its expiry without the eviction callback.
func (sessions *Sessions) touch(id uuid.UUID) (*View, bool) {
	view, ok := sessions.cache.Get(id)
	if !ok {
		return nil, false
	}
	sessions.cache.Add(id, view)
	return view, true
}

// Open returns the view for id, mounting a new view under a fresh ID when the session is unknown.
// created reports whether a new view was mounted.
func (sessions *Sessions) Open(id uuid.UUID, theme Theme) (view *View, created bool, err error) {
	sessions.mu.Lock()
	defer sessions.mu.Unlock()

	if id != uuid.Nil {
		if view, ok := sessions.touch(id); ok {
			return view, false, nil
		}
	}

	id, err = uuid.NewV7()
	if err != nil {
		return nil, false, fmt.Errorf("generating session id : %w", err)
	}
	view, err = NewView(id, sessions.fetcher, WithTheme(theme), WithLogger(sessions.logger))
	if err != nil {
		return nil, false, fmt.Errorf("creating view : %w", err)
	}
	view.Mount()
	sessions.cache.Add(id, view)
	sessions.logger.Debug("session opened", "session_id", id)
	return view, true, nil
}

// Remove unmounts and forgets a session.
func (sessions *Sessions) Remove(id uuid.UUID) bool {
	return sessions.cache.Remove(id)
}

// Len returns the number of live sessions.
func (sessions *Sessions) Len() int {
	return sessions.cache.Len()
}

// Close unmounts every view.
func (sessions *Sessions) Close() {
	sessions.cache.Purge()
}
