package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/field-scheduler/internal/db"
	"github.com/example/field-scheduler/internal/territory"
)

// FleetMember is one technician's shift envelope for the day under check.
type FleetMember struct {
	StartLocation Location `json:"start_location"`
	EndLocation   Location `json:"end_location"`
	ShiftStart    string   `json:"shift_start"` // HH:mm
	ShiftEnd      string   `json:"shift_end"`   // HH:mm
}

// Catalog resolves territory rosters by name.
type Catalog interface {
	TerritoryByName(ctx context.Context, name string) (*territory.Territory, error)
}

// UnknownTerritoryError reports territory names the catalog could not
// resolve. A booking in such a territory would reach the optimizer with no
// fleet that can serve it, so the whole build fails instead of silently
// emitting a partial fleet.
type UnknownTerritoryError struct {
	Names []string
}

func (e *UnknownTerritoryError) Error() string {
	return fmt.Sprintf("unknown territories: %s", strings.Join(e.Names, ", "))
}

// BuildFleet derives one fleet member per technician scheduled on date in
// any of the named territories, keyed by email|territory. The first
// open-hours rule in effect on date supplies the shift window; the depot is
// both shift endpoints. Technicians with no rule on date are off and
// emitted nothing.
func BuildFleet(ctx context.Context, date time.Time, names []string, catalog Catalog, depot Location) (map[string]FleetMember, error) {
	fleet := map[string]FleetMember{}
	var unknown []string

	for _, name := range names {
		terr, err := catalog.TerritoryByName(ctx, name)
		if err != nil {
			if db.IsNotFound(err) {
				unknown = append(unknown, name)
				continue
			}
			return nil, err
		}
		if terr == nil {
			unknown = append(unknown, name)
			continue
		}
		for _, tech := range terr.Technicians {
			rule, ok := tech.FirstRuleOn(date)
			if !ok {
				continue
			}
			key := tech.Email + "|" + terr.Name
			fleet[key] = FleetMember{
				StartLocation: depot,
				EndLocation:   depot,
				ShiftStart:    rule.Start.String(),
				ShiftEnd:      rule.End.String(),
			}
		}
	}

	if len(unknown) > 0 {
		return nil, &UnknownTerritoryError{Names: unknown}
	}
	return fleet, nil
}
