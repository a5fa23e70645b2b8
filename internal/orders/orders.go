package orders

import (
	"context"
	"strconv"
	"time"

	"github.com/example/field-scheduler/internal/booking"
	"github.com/example/field-scheduler/internal/db"
	"github.com/example/field-scheduler/internal/territory"
)

// Order is the hosting cart/order record as far as scheduling is concerned:
// identity, shipping location and the schedule fields this service owns.
type Order struct {
	ID            string
	TerritoryName string
	Lat           *float64
	Lng           *float64
}

// Booking is an order already committed to a window on some date.
type Booking struct {
	OrderID       string
	TerritoryName string
	Lat           *float64
	Lng           *float64
	Start         territory.ClockTime
	End           territory.ClockTime
	Duration      time.Duration
}

type Repo struct{ db *db.DB }

func NewRepo(d *db.DB) *Repo { return &Repo{db: d} }

func (r *Repo) Get(ctx context.Context, id string) (Order, error) {
	var o Order
	err := r.db.QueryRow(ctx, `
SELECT id, territory_name, ship_lat, ship_lng
FROM orders WHERE id=$1`, id).
		Scan(&o.ID, &o.TerritoryName, &o.Lat, &o.Lng)
	if err != nil {
		return Order{}, db.WrapNotFound(err)
	}
	return o, nil
}

// ScheduledForDate lists every booking already committed for date's calendar
// day, across all territories.
func (r *Repo) ScheduledForDate(ctx context.Context, date time.Time) ([]Booking, error) {
	rows, err := r.db.Query(ctx, `
SELECT id, territory_name, ship_lat, ship_lng, window_start, window_end, duration_minutes
FROM orders
WHERE scheduled_date=$1
ORDER BY id`, date.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		var b Booking
		var startStr, endStr string
		var durMin int
		if err := rows.Scan(&b.OrderID, &b.TerritoryName, &b.Lat, &b.Lng, &startStr, &endStr, &durMin); err != nil {
			return nil, err
		}
		if b.Start, err = territory.ParseClock(startStr); err != nil {
			return nil, err
		}
		if b.End, err = territory.ParseClock(endStr); err != nil {
			return nil, err
		}
		// a window closing at midnight is stored as 00:00
		if b.End == 0 && b.Start > 0 {
			b.End = territory.EndOfDay
		}
		b.Duration = time.Duration(durMin) * time.Minute
		out = append(out, b)
	}
	return out, rows.Err()
}

// scheduleMetadata is the checkout metadata merged onto the order. Time
// values are unix-second strings, matching what the storefront reads back.
// Exact bookings carry the serving technician; flex bookings carry the
// booking type instead, since the technician is settled on the day.
func scheduleMetadata(sel booking.SelectedBooking) map[string]string {
	meta := map[string]string{
		"startTime": strconv.FormatInt(sel.Start, 10),
		"endTime":   strconv.FormatInt(sel.End, 10),
		"period":    string(sel.Period),
	}
	if sel.Kind == booking.KindFlex {
		meta["bookingType"] = string(sel.Kind)
	} else {
		meta["technicianEmail"] = sel.Technician
	}
	return meta
}

// CommitSchedule writes the selected window onto the order: the schedule
// columns used for day aggregation plus the checkout metadata keys. duration
// is the service duration, not the window length; for a flex booking the two
// differ. loc is the serving technician's timezone; the schedule columns are
// local clock values.
func (r *Repo) CommitSchedule(ctx context.Context, orderID string, sel booking.SelectedBooking, duration time.Duration, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	start := time.Unix(sel.Start, 0).In(loc)
	end := time.Unix(sel.End, 0).In(loc)

	return r.db.Exec(ctx, `
UPDATE orders
SET scheduled_date=$2,
    window_start=$3,
    window_end=$4,
    duration_minutes=$5,
    metadata=metadata || $6,
    updated_at=now()
WHERE id=$1`,
		orderID,
		start.Format("2006-01-02"),
		start.Format("15:04"),
		end.Format("15:04"),
		int(duration/time.Minute),
		scheduleMetadata(sel))
}
