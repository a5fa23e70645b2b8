package scheduling

import (
	"context"
	"time"

	"github.com/example/field-scheduler/internal/booking"
	"github.com/example/field-scheduler/internal/dispatch"
	"github.com/example/field-scheduler/internal/orders"
	"github.com/example/field-scheduler/internal/routific"
	"github.com/example/field-scheduler/internal/territory"
)

type Catalog interface {
	TerritoryByName(ctx context.Context, name string) (*territory.Territory, error)
}

type OrderStore interface {
	Get(ctx context.Context, id string) (orders.Order, error)
	ScheduledForDate(ctx context.Context, date time.Time) ([]orders.Booking, error)
	CommitSchedule(ctx context.Context, orderID string, sel booking.SelectedBooking, duration time.Duration, loc *time.Location) error
}

type FeasibilityChecker interface {
	Check(ctx context.Context, visits map[string]dispatch.Visit, fleet map[string]dispatch.FleetMember) (routific.Verdict, error)
}

// Orchestrator drives one submission attempt end to end: aggregate the day's
// bookings with the candidate, derive the fleet, ask the optimizer, and only
// then persist. Every step is sequential because each feeds the next; the
// first failure aborts the rest.
type Orchestrator struct {
	Catalog Catalog
	Orders  OrderStore
	Routing FeasibilityChecker
	Depot   dispatch.Location
}

// Result is the attempt outcome. Unserved is set for rejections; Err for
// failures. Nothing is persisted unless Status is StateCommitted.
type Result struct {
	Status   State
	Unserved []string
	Err      error
}

// Submit validates and commits the session's selection for orderID. It
// returns an error (without touching any collaborator) only when there is no
// selection to submit; every downstream problem is reported in the Result
// and leaves the session back at SlotChosen with the selection intact.
func (o *Orchestrator) Submit(ctx context.Context, sess *Session, orderID string) (Result, error) {
	sel, err := sess.beginValidating()
	if err != nil {
		return Result{}, err
	}

	fail := func(cause error) Result {
		sess.finishRetryable()
		return Result{Status: StateFailed, Err: cause}
	}

	terr, err := o.Catalog.TerritoryByName(ctx, sess.TerritoryName())
	if err != nil {
		return fail(err), nil
	}

	order, err := o.Orders.Get(ctx, orderID)
	if err != nil {
		return fail(err), nil
	}

	existing, err := o.Orders.ScheduledForDate(ctx, sess.Date())
	if err != nil {
		return fail(err), nil
	}

	loc := time.UTC
	if tech, ok := terr.Technician(sel.Technician); ok {
		loc = tech.Location()
	}

	candidate := dispatch.Candidate{
		ID:            orderID,
		TerritoryName: sess.TerritoryName(),
		Lat:           order.Lat,
		Lng:           order.Lng,
		Start:         clockIn(sel.Start, loc),
		End:           clockInEnd(sel.End, loc),
		Duration:      sess.Duration(),
	}

	visits, names := dispatch.BuildVisits(candidate, existing)

	fleet, err := dispatch.BuildFleet(ctx, sess.Date(), names, o.Catalog, o.Depot)
	if err != nil {
		return fail(err), nil
	}

	verdict, err := o.Routing.Check(ctx, visits, fleet)
	if err != nil {
		return fail(err), nil
	}
	if !verdict.Feasible {
		sess.finishRetryable()
		return Result{Status: StateRejected, Unserved: verdict.Unserved}, nil
	}

	if err := o.Orders.CommitSchedule(ctx, orderID, sel, sess.Duration(), loc); err != nil {
		return fail(err), nil
	}

	sess.finishCommitted()
	return Result{Status: StateCommitted}, nil
}

func clockIn(unix int64, loc *time.Location) territory.ClockTime {
	t := time.Unix(unix, 0).In(loc)
	return territory.ClockTime(t.Hour()*60 + t.Minute())
}

// clockInEnd maps a window end landing on midnight to 24:00 rather than
// 00:00 of the next day.
func clockInEnd(unix int64, loc *time.Location) territory.ClockTime {
	c := clockIn(unix, loc)
	if c == 0 {
		return territory.EndOfDay
	}
	return c
}
