package booking

import (
	"errors"
	"time"

	"github.com/example/field-scheduler/internal/territory"
)

var ErrNoCandidates = errors.New("slot has no candidate technicians")

// SelectedBooking is the resolved outcome of a user's slot pick. It is
// immutable once created; re-selecting a date produces a fresh value.
type SelectedBooking struct {
	Start      int64 // unix seconds
	End        int64 // unix seconds
	Period     Period
	Kind       Kind
	Technician string
}

// Resolve turns a picked slot on date into a concrete time range served by
// one technician. technicianPriority wins when it is among the slot's
// candidates; otherwise the first candidate in discovery order is chosen.
// Exact slots end at start+duration regardless of the underlying window.
func Resolve(date time.Time, terr *territory.Territory, duration time.Duration, slot Slot, technicianPriority string) (SelectedBooking, error) {
	if duration <= 0 {
		return SelectedBooking{}, ErrDuration
	}
	if len(slot.Technicians) == 0 {
		return SelectedBooking{}, ErrNoCandidates
	}

	email := slot.Technicians[0]
	if technicianPriority != "" {
		for _, t := range slot.Technicians {
			if t == technicianPriority {
				email = technicianPriority
				break
			}
		}
	}

	loc := time.UTC
	if terr != nil {
		for _, tech := range terr.Technicians {
			if tech.Email == email {
				loc = tech.Location()
				break
			}
		}
	}

	start := slot.Start.OnDate(date, loc)
	var end time.Time
	if slot.Kind == KindFlex {
		end = slot.End.OnDate(date, loc)
	} else {
		end = start.Add(duration)
	}

	return SelectedBooking{
		Start:      start.Unix(),
		End:        end.Unix(),
		Period:     slot.Period,
		Kind:       slot.Kind,
		Technician: email,
	}, nil
}
