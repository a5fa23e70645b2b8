package booking

import "github.com/example/field-scheduler/internal/territory"

// Period is a fixed partition of the day. The boundaries are invariant
// constants, not configuration.
type Period string

const (
	Morning   Period = "Morning"   // [00:00, 12:00)
	Afternoon Period = "Afternoon" // [12:00, 18:00)
	Evening   Period = "Evening"   // [18:00, 24:00)
)

type periodSpan struct {
	Period Period
	Start  territory.ClockTime
	End    territory.ClockTime
}

// periodSpans is in chronological block order; availability output groups
// follow this order.
var periodSpans = []periodSpan{
	{Morning, 0, 12 * 60},
	{Afternoon, 12 * 60, 18 * 60},
	{Evening, 18 * 60, territory.EndOfDay},
}

// PeriodOf returns the period containing the given time of day.
func PeriodOf(c territory.ClockTime) Period {
	switch {
	case c < 12*60:
		return Morning
	case c < 18*60:
		return Afternoon
	default:
		return Evening
	}
}
