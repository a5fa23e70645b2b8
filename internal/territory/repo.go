package territory

import (
	"context"
	"fmt"
	"time"

	"github.com/example/field-scheduler/internal/db"
)

// Repo reads territory rosters from postgres. Rosters are loaded fresh on
// every call so schedule edits are visible immediately; nothing is cached.
type Repo struct{ db *db.DB }

func NewRepo(d *db.DB) *Repo { return &Repo{db: d} }

func (r *Repo) TerritoryByName(ctx context.Context, name string) (*Territory, error) {
	var t Territory
	err := r.db.QueryRow(ctx, `SELECT id, name FROM territories WHERE name=$1`, name).Scan(&t.ID, &t.Name)
	if err != nil {
		return nil, db.WrapNotFound(err)
	}
	if err := r.loadRoster(ctx, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Repo) List(ctx context.Context) ([]Territory, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name FROM territories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Territory
	for rows.Next() {
		var t Territory
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repo) loadRoster(ctx context.Context, t *Territory) error {
	rows, err := r.db.Query(ctx, `
SELECT id, email, display_name, timezone
FROM technicians
WHERE territory_id=$1
ORDER BY position, id`, t.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	byID := map[int64]int{}
	for rows.Next() {
		var id int64
		var tech Technician
		if err := rows.Scan(&id, &tech.Email, &tech.DisplayName, &tech.Timezone); err != nil {
			return err
		}
		byID[id] = len(t.Technicians)
		t.Technicians = append(t.Technicians, tech)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(t.Technicians) == 0 {
		return nil
	}

	ruleRows, err := r.db.Query(ctx, `
SELECT r.technician_id, r.start_time, r.end_time, r.weekdays, r.excluded_dates, r.timezone
FROM open_hours_rules r
JOIN technicians tech ON tech.id = r.technician_id
WHERE tech.territory_id=$1
ORDER BY r.technician_id, r.position, r.id`, t.ID)
	if err != nil {
		return err
	}
	defer ruleRows.Close()

	for ruleRows.Next() {
		var techID int64
		var startStr, endStr, tz string
		var weekdays []int32
		var excluded []time.Time
		if err := ruleRows.Scan(&techID, &startStr, &endStr, &weekdays, &excluded, &tz); err != nil {
			return err
		}
		rule, err := buildRule(startStr, endStr, weekdays, excluded, tz)
		if err != nil {
			return fmt.Errorf("technician %d: %w", techID, err)
		}
		i, ok := byID[techID]
		if !ok {
			continue
		}
		t.Technicians[i].Rules = append(t.Technicians[i].Rules, rule)
	}
	return ruleRows.Err()
}

func buildRule(startStr, endStr string, weekdays []int32, excluded []time.Time, tz string) (OpenHoursRule, error) {
	start, err := ParseClock(startStr)
	if err != nil {
		return OpenHoursRule{}, err
	}
	end, err := ParseClock(endStr)
	if err != nil {
		return OpenHoursRule{}, err
	}
	if end <= start {
		return OpenHoursRule{}, fmt.Errorf("rule %s-%s: end must be after start", startStr, endStr)
	}
	rule := OpenHoursRule{Start: start, End: end, Timezone: tz}
	for _, w := range weekdays {
		if w < 0 || w > 6 {
			return OpenHoursRule{}, fmt.Errorf("invalid weekday %d", w)
		}
		rule.Weekdays = append(rule.Weekdays, time.Weekday(w))
	}
	for _, d := range excluded {
		rule.Excluded = append(rule.Excluded, d.Format(dateLayout))
	}
	return rule, nil
}

func (r *Repo) CreateTerritory(ctx context.Context, name string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO territories(name) VALUES ($1) RETURNING id`, name).Scan(&id)
	return id, err
}

func (r *Repo) AddTechnician(ctx context.Context, territoryName, email, displayName, timezone string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
INSERT INTO technicians(territory_id, email, display_name, timezone, position)
SELECT t.id, $2, $3, $4, COALESCE((SELECT MAX(position)+1 FROM technicians WHERE territory_id=t.id), 0)
FROM territories t WHERE t.name=$1
RETURNING id`, territoryName, email, displayName, timezone).Scan(&id)
	return id, db.WrapNotFound(err)
}

func (r *Repo) AddRule(ctx context.Context, territoryName, email string, rule OpenHoursRule) error {
	weekdays := make([]int32, 0, len(rule.Weekdays))
	for _, w := range rule.Weekdays {
		weekdays = append(weekdays, int32(w))
	}
	excluded := make([]time.Time, 0, len(rule.Excluded))
	for _, d := range rule.Excluded {
		t, err := time.Parse(dateLayout, d)
		if err != nil {
			return fmt.Errorf("invalid excluded date %q: %w", d, err)
		}
		excluded = append(excluded, t)
	}
	var id int64
	err := r.db.QueryRow(ctx, `
INSERT INTO open_hours_rules(technician_id, start_time, end_time, weekdays, excluded_dates, timezone, position)
SELECT tech.id, $3, $4, $5, $6, $7, COALESCE((SELECT MAX(position)+1 FROM open_hours_rules WHERE technician_id=tech.id), 0)
FROM technicians tech
JOIN territories t ON t.id = tech.territory_id
WHERE t.name=$1 AND tech.email=$2
RETURNING id`,
		territoryName, email, rule.Start.String(), rule.End.String(), weekdays, excluded, rule.Timezone).Scan(&id)
	return db.WrapNotFound(err)
}
