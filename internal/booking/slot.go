package booking

import "github.com/example/field-scheduler/internal/territory"

// Kind distinguishes the two booking semantics: a flex slot offers the whole
// contiguous availability window with the exact start negotiated later; an
// exact slot fixes the start and derives the end from the service duration.
type Kind string

const (
	KindFlex  Kind = "flex"
	KindExact Kind = "exact"
)

// Slot is one bookable offer. End is only meaningful for flex slots.
// Technicians holds every technician whose clipped open-hours window produces
// this same slot, in discovery order.
type Slot struct {
	Kind   Kind
	Start  territory.ClockTime
	End    territory.ClockTime
	Period Period

	Technicians []string
}

// slotKey is the uniqueness key: no two slots in one availability result may
// share it. Exact slots carry no end in the key.
type slotKey struct {
	Kind   Kind
	Start  territory.ClockTime
	End    territory.ClockTime
	Period Period
}

func (s Slot) key() slotKey {
	k := slotKey{Kind: s.Kind, Start: s.Start, Period: s.Period}
	if s.Kind == KindFlex {
		k.End = s.End
	}
	return k
}

func (s *Slot) addTechnician(email string) {
	for _, t := range s.Technicians {
		if t == email {
			return
		}
	}
	s.Technicians = append(s.Technicians, email)
}

// PeriodGroup is the availability output unit: the slots of one period,
// sorted ascending by start time.
type PeriodGroup struct {
	Period Period
	Slots  []Slot
}
