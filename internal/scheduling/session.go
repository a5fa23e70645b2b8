package scheduling

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/field-scheduler/internal/booking"
	"github.com/example/field-scheduler/internal/territory"
)

// State of one submission attempt. Rejected and Failed are reported to the
// caller and the session drops back to SlotChosen so the user can retry
// without re-picking.
type State string

const (
	StateIdle       State = "idle"
	StateSlotChosen State = "slot_chosen"
	StateValidating State = "validating"
	StateCommitted  State = "committed"
	StateRejected   State = "rejected"
	StateFailed     State = "failed"
)

var ErrNoSelection = errors.New("no slot selected")

// Session holds one customer's scheduling state: the availability query, the
// last applied slot groups and the current selection. All mutable state is
// session-scoped; there are no ambient singletons. A mutex guards against a
// stale availability fetch racing a newer trigger.
type Session struct {
	ID string

	mu        sync.Mutex
	state     State
	territory string
	date      time.Time
	duration  time.Duration
	selected  *booking.SelectedBooking
	groups    []booking.PeriodGroup

	// last-trigger-wins bookkeeping for availability fetches
	gen    uint64
	cancel context.CancelFunc

	expiresAt time.Time
	ttl       time.Duration
}

func newSession(ttl time.Duration) *Session {
	return &Session{
		ID:        uuid.NewString(),
		state:     StateIdle,
		ttl:       ttl,
		expiresAt: time.Now().Add(ttl),
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) TerritoryName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.territory
}

func (s *Session) Date() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.date
}

func (s *Session) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration
}

// StartAvailability records a new availability query and returns the context
// and generation for its fetch. Any outstanding fetch is cancelled; its
// result, should it still arrive, no longer matches the generation and is
// discarded on apply. Changing the query invalidates the prior selection.
func (s *Session) StartAvailability(ctx context.Context, territoryName string, date time.Time, duration time.Duration) (context.Context, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.territory != territoryName || !s.date.Equal(date) || s.duration != duration {
		s.selected = nil
		s.state = StateIdle
	}
	s.territory = territoryName
	s.date = date
	s.duration = duration
	s.groups = nil
	s.gen++

	ctx, s.cancel = context.WithCancel(ctx)
	return ctx, s.gen
}

// ApplyAvailability installs fetched slot groups if gen is still current.
// Stale results are dropped, never merged.
func (s *Session) ApplyAvailability(gen uint64, groups []booking.PeriodGroup) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return false
	}
	s.groups = groups
	return true
}

func (s *Session) Availability() []booking.PeriodGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.groups
}

// FindSlot looks up an offered slot by its uniqueness key. Selection is only
// allowed from slots actually offered to this session.
func (s *Session) FindSlot(kind booking.Kind, start, end territory.ClockTime, period booking.Period) (booking.Slot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.groups {
		if g.Period != period {
			continue
		}
		for _, slot := range g.Slots {
			if slot.Kind != kind || slot.Start != start {
				continue
			}
			if kind == booking.KindFlex && slot.End != end {
				continue
			}
			return slot, true
		}
	}
	return booking.Slot{}, false
}

// Select installs a resolved booking; Idle -> SlotChosen.
func (s *Session) Select(sel booking.SelectedBooking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = &sel
	s.state = StateSlotChosen
}

func (s *Session) Selection() (booking.SelectedBooking, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return booking.SelectedBooking{}, false
	}
	return *s.selected, true
}

// beginValidating moves SlotChosen -> Validating and hands out the selection.
func (s *Session) beginValidating() (booking.SelectedBooking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateSlotChosen || s.selected == nil {
		return booking.SelectedBooking{}, ErrNoSelection
	}
	s.state = StateValidating
	return *s.selected, nil
}

// finishCommitted is terminal for the attempt.
func (s *Session) finishCommitted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateCommitted
}

// finishRetryable returns the session to SlotChosen after a rejection or
// failure; the selection is preserved so the user can resubmit or re-pick.
func (s *Session) finishRetryable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateSlotChosen
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expiresAt = now.Add(s.ttl)
}

func (s *Session) expired(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.After(s.expiresAt)
}
