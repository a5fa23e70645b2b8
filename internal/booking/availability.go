package booking

import (
	"errors"
	"sort"
	"time"

	"github.com/example/field-scheduler/internal/territory"
)

var (
	ErrDuration = errors.New("service duration must be positive")
	ErrBuffer   = errors.New("buffer must not be negative")
)

// DefaultBuffer is the gap left between consecutive exact slots.
const DefaultBuffer = 30 * time.Minute

// Compute derives every bookable slot a territory's roster offers on date,
// grouped by period in Morning/Afternoon/Evening order. Only non-empty
// groups are returned; an empty or missing roster is a valid empty result,
// not an error.
//
// Per technician open-hours rule in effect on date, the rule's window is
// clipped against each period it overlaps. Every non-empty sub-window emits
// one flex slot spanning it exactly, plus exact slots walked from the
// sub-window start at a duration+buffer stride for as long as a full
// duration still fits. Slots with an equal key produced by different
// technicians merge into one, accumulating candidates in discovery order.
func Compute(date time.Time, terr *territory.Territory, duration, buffer time.Duration) ([]PeriodGroup, error) {
	if duration <= 0 {
		return nil, ErrDuration
	}
	if buffer < 0 {
		return nil, ErrBuffer
	}
	if terr == nil || len(terr.Technicians) == 0 {
		return nil, nil
	}

	dur := territory.ClockTime(duration / time.Minute)
	buf := territory.ClockTime(buffer / time.Minute)
	if dur == 0 { // sub-minute durations are not schedulable
		return nil, ErrDuration
	}

	index := map[slotKey]*Slot{}
	var discovered []*Slot

	add := func(s Slot, email string) {
		k := s.key()
		if existing, ok := index[k]; ok {
			existing.addTechnician(email)
			return
		}
		s.Technicians = []string{email}
		p := &s
		index[k] = p
		discovered = append(discovered, p)
	}

	for _, tech := range terr.Technicians {
		for _, rule := range tech.Rules {
			if !rule.AppliesOn(date) {
				continue
			}
			for _, span := range periodSpans {
				lo := maxClock(rule.Start, span.Start)
				hi := minClock(rule.End, span.End)
				if hi <= lo {
					continue
				}
				add(Slot{Kind: KindFlex, Start: lo, End: hi, Period: span.Period}, tech.Email)
				for cur := lo; cur+dur <= hi; cur += dur + buf {
					add(Slot{Kind: KindExact, Start: cur, Period: span.Period}, tech.Email)
				}
			}
		}
	}

	var groups []PeriodGroup
	for _, span := range periodSpans {
		var slots []Slot
		for _, s := range discovered {
			if s.Period == span.Period {
				slots = append(slots, *s)
			}
		}
		if len(slots) == 0 {
			continue
		}
		// Stable: equal starts keep discovery order.
		sort.SliceStable(slots, func(i, j int) bool {
			return slots[i].Start < slots[j].Start
		})
		groups = append(groups, PeriodGroup{Period: span.Period, Slots: slots})
	}
	return groups, nil
}

func maxClock(a, b territory.ClockTime) territory.ClockTime {
	if a > b {
		return a
	}
	return b
}

func minClock(a, b territory.ClockTime) territory.ClockTime {
	if a < b {
		return a
	}
	return b
}
