package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Clock abstraction supaya gampang ditest
type Clock interface {
	Now() time.Time
}

// Store keeps live sessions in memory, keyed by tenant and id. Nothing is
// persisted: a session lives until it is closed or goes idle.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	opts     Options
	clock    Clock
}

func NewStore(opts Options, clock Clock) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		opts:     opts,
		clock:    clock,
	}
}

func key(tenant, id string) string { return tenant + "/" + id }

// Create opens a new empty session for tenant.
func (st *Store) Create(tenant string) *Session {
	s := New(uuid.NewString(), tenant, st.opts, st.clock.Now())
	st.mu.Lock()
	st.sessions[key(tenant, s.ID)] = s
	st.mu.Unlock()
	return s
}

// Get ambil 1 session by id
func (st *Store) Get(tenant, id string) (*Session, error) {
	st.mu.RLock()
	s, ok := st.sessions[key(tenant, id)]
	st.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Delete closes and forgets a session.
func (st *Store) Delete(tenant, id string) error {
	st.mu.Lock()
	s, ok := st.sessions[key(tenant, id)]
	delete(st.sessions, key(tenant, id))
	st.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.Close()
	return nil
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep closes sessions idle for longer than maxIdle and returns how many
// were removed.
func (st *Store) Sweep(maxIdle time.Duration) int {
	now := st.clock.Now()
	var stale []*Session

	st.mu.Lock()
	for k, s := range st.sessions {
		if s.State() == StateAnalyzing {
			continue
		}
		if now.Sub(s.UpdatedAt()) > maxIdle {
			stale = append(stale, s)
			delete(st.sessions, k)
		}
	}
	st.mu.Unlock()

	for _, s := range stale {
		s.Close()
	}
	return len(stale)
}

// RunJanitor sweeps idle sessions every interval until ctx is done.
func (st *Store) RunJanitor(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st.Sweep(maxIdle)
		}
	}
}

// CloseAll closes every session, used on shutdown.
func (st *Store) CloseAll() {
	st.mu.Lock()
	all := st.sessions
	st.sessions = make(map[string]*Session)
	st.mu.Unlock()
	for _, s := range all {
		s.Close()
	}
}
