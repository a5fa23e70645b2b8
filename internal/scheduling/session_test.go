package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/example/field-scheduler/internal/booking"
)

var monday = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func morningGroups() []booking.PeriodGroup {
	return []booking.PeriodGroup{
		{
			Period: booking.Morning,
			Slots: []booking.Slot{
				{Kind: booking.KindFlex, Start: 9 * 60, End: 12 * 60, Period: booking.Morning, Technicians: []string{"tech@example.com"}},
				{Kind: booking.KindExact, Start: 9 * 60, Period: booking.Morning, Technicians: []string{"tech@example.com"}},
			},
		},
	}
}

func TestStaleAvailabilityDiscarded(t *testing.T) {
	s := newSession(time.Minute)

	fetch1, gen1 := s.StartAvailability(context.Background(), "North", monday, time.Hour)
	_, gen2 := s.StartAvailability(context.Background(), "North", monday.AddDate(0, 0, 1), time.Hour)

	select {
	case <-fetch1.Done():
	default:
		t.Fatalf("first fetch context should be cancelled by the second trigger")
	}

	if s.ApplyAvailability(gen1, morningGroups()) {
		t.Fatalf("stale result must be dropped")
	}
	if got := s.Availability(); got != nil {
		t.Fatalf("availability = %v after dropped apply", got)
	}

	if !s.ApplyAvailability(gen2, morningGroups()) {
		t.Fatalf("current result must be applied")
	}
	if got := s.Availability(); len(got) != 1 {
		t.Fatalf("availability = %v", got)
	}
}

func TestQueryChangeClearsSelection(t *testing.T) {
	s := newSession(time.Minute)

	_, gen := s.StartAvailability(context.Background(), "North", monday, time.Hour)
	s.ApplyAvailability(gen, morningGroups())
	s.Select(booking.SelectedBooking{Kind: booking.KindExact, Technician: "tech@example.com"})

	// Same query again: selection survives.
	s.StartAvailability(context.Background(), "North", monday, time.Hour)
	if _, ok := s.Selection(); !ok {
		t.Fatalf("re-running the same query must keep the selection")
	}

	// Different date: selection is invalidated.
	s.StartAvailability(context.Background(), "North", monday.AddDate(0, 0, 1), time.Hour)
	if _, ok := s.Selection(); ok {
		t.Fatalf("changing the query must clear the selection")
	}
	if s.State() != StateIdle {
		t.Fatalf("state = %s, want idle after query change", s.State())
	}
}

func TestFindSlot(t *testing.T) {
	s := newSession(time.Minute)
	_, gen := s.StartAvailability(context.Background(), "North", monday, time.Hour)
	s.ApplyAvailability(gen, morningGroups())

	if _, ok := s.FindSlot(booking.KindFlex, 9*60, 12*60, booking.Morning); !ok {
		t.Fatalf("offered flex slot not found")
	}
	if _, ok := s.FindSlot(booking.KindExact, 9*60, 0, booking.Morning); !ok {
		t.Fatalf("offered exact slot not found")
	}
	// Flex lookup must match the end too.
	if _, ok := s.FindSlot(booking.KindFlex, 9*60, 11*60, booking.Morning); ok {
		t.Fatalf("flex slot with wrong end should not match")
	}
	if _, ok := s.FindSlot(booking.KindExact, 10*60, 0, booking.Morning); ok {
		t.Fatalf("unoffered slot should not match")
	}
}

func TestStoreExpiry(t *testing.T) {
	st := NewStore(10 * time.Millisecond)
	s := st.Create()

	if _, ok := st.Get(s.ID); !ok {
		t.Fatalf("fresh session not found")
	}

	time.Sleep(30 * time.Millisecond)
	if _, ok := st.Get(s.ID); ok {
		t.Fatalf("expired session should be gone")
	}
}

func TestStoreSweep(t *testing.T) {
	st := NewStore(10 * time.Millisecond)
	s := st.Create()

	st.sweep(time.Now().Add(time.Second))
	st.mu.Lock()
	_, ok := st.sessions[s.ID]
	st.mu.Unlock()
	if ok {
		t.Fatalf("sweep left an expired session behind")
	}
}
