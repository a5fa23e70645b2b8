package scheduling

import (
	"context"
	"log"
	"sync"
	"time"
)

// Store keeps live scheduling sessions in memory. Sessions are per-customer
// and carry no cross-session state, so losing them on restart only costs the
// user a re-pick.
type Store struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*Session
}

func NewStore(ttl time.Duration) *Store {
	return &Store{
		ttl:      ttl,
		sessions: map[string]*Session{},
	}
}

func (st *Store) Create() *Session {
	s := newSession(st.ttl)
	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
	return s
}

func (st *Store) Get(id string) (*Session, bool) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	st.mu.Unlock()
	if !ok {
		return nil, false
	}
	if s.expired(time.Now()) {
		st.mu.Lock()
		delete(st.sessions, id)
		st.mu.Unlock()
		return nil, false
	}
	s.touch(time.Now())
	return s, true
}

// Run sweeps expired sessions on a ticker until ctx is done.
func (st *Store) Run(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			st.sweep(time.Now())
		}
	}
}

func (st *Store) sweep(now time.Time) {
	st.mu.Lock()
	defer st.mu.Unlock()
	removed := 0
	for id, s := range st.sessions {
		if s.expired(now) {
			delete(st.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		log.Printf("sessions: swept %d expired", removed)
	}
}
