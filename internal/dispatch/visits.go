package dispatch

import (
	"time"

	"github.com/example/field-scheduler/internal/orders"
	"github.com/example/field-scheduler/internal/territory"
)

// Location matches the routing optimizer's location record.
type Location struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

// Visit is one stop for the optimizer: where, inside which window, for how
// long. Built fresh per feasibility check, never persisted.
type Visit struct {
	Location Location `json:"location"`
	Start    string   `json:"start"` // HH:mm
	End      string   `json:"end"`   // HH:mm
	Duration int      `json:"duration"` // minutes
}

// Candidate is the not-yet-committed booking under validation.
type Candidate struct {
	ID            string
	TerritoryName string
	Lat           *float64
	Lng           *float64
	Start         territory.ClockTime
	End           territory.ClockTime
	Duration      time.Duration
}

// BuildVisits merges the candidate with every booking already committed for
// the same date into one visit map keyed by order identity, and collects the
// distinct territory names those bookings reference in first-seen order. The
// candidate's own territory always leads, even when it has no other bookings
// that day. An existing entry for the candidate's order is replaced by the
// candidate. Bookings without coordinates get (0,0): whether such a visit is
// routable is the optimizer's call, not ours.
func BuildVisits(candidate Candidate, existing []orders.Booking) (map[string]Visit, []string) {
	visits := make(map[string]Visit, len(existing)+1)
	names := []string{candidate.TerritoryName}
	seen := map[string]bool{candidate.TerritoryName: true}

	for _, b := range existing {
		if b.OrderID == candidate.ID {
			continue
		}
		visits[b.OrderID] = Visit{
			Location: Location{Name: b.OrderID, Lat: coord(b.Lat), Lng: coord(b.Lng)},
			Start:    b.Start.String(),
			End:      b.End.String(),
			Duration: int(b.Duration / time.Minute),
		}
		if !seen[b.TerritoryName] {
			seen[b.TerritoryName] = true
			names = append(names, b.TerritoryName)
		}
	}

	visits[candidate.ID] = Visit{
		Location: Location{Name: candidate.ID, Lat: coord(candidate.Lat), Lng: coord(candidate.Lng)},
		Start:    candidate.Start.String(),
		End:      candidate.End.String(),
		Duration: int(candidate.Duration / time.Minute),
	}

	return visits, names
}

func coord(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
