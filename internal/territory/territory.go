package territory

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ClockTime is a time of day in minutes from midnight, [0, 1440].
type ClockTime int

const EndOfDay ClockTime = 24 * 60

// ParseClock parses "HH:MM".
func ParseClock(s string) (ClockTime, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock time %q (want HH:MM)", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("invalid clock time %q (want HH:MM)", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock time %q (want HH:MM)", s)
	}
	c := ClockTime(h*60 + m)
	if c > EndOfDay {
		return 0, fmt.Errorf("invalid clock time %q (past 24:00)", s)
	}
	return c, nil
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// OnDate resolves the clock time to an absolute instant on date's calendar
// day in loc.
func (c ClockTime) OnDate(date time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := date.In(loc).Date()
	return time.Date(y, m, d, int(c)/60, int(c)%60, 0, 0, loc)
}

// OpenHoursRule is one recurring weekly availability window for a technician.
// Start must be before End within the same day; excluded dates are compared
// against the calendar date in the rule's own timezone.
type OpenHoursRule struct {
	Start    ClockTime
	End      ClockTime
	Weekdays []time.Weekday
	Excluded []string // YYYY-MM-DD in the rule's timezone
	Timezone string
}

const dateLayout = "2006-01-02"

func (r OpenHoursRule) Location() *time.Location {
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// AppliesOn reports whether the rule is in effect on date's calendar day.
func (r OpenHoursRule) AppliesOn(date time.Time) bool {
	d := date.In(r.Location())
	if !hasWeekday(r.Weekdays, d.Weekday()) {
		return false
	}
	day := d.Format(dateLayout)
	for _, ex := range r.Excluded {
		if ex == day {
			return false
		}
	}
	return true
}

func hasWeekday(list []time.Weekday, w time.Weekday) bool {
	for _, d := range list {
		if d == w {
			return true
		}
	}
	return false
}

// Technician order within a territory is meaningful: it decides candidate
// merge order during slot generation and the default resolved technician.
type Technician struct {
	Email       string
	DisplayName string
	Timezone    string
	Rules       []OpenHoursRule
}

func (t Technician) Location() *time.Location {
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// FirstRuleOn returns the first rule in declaration order that applies on
// date, used as the technician's shift envelope for that day.
func (t Technician) FirstRuleOn(date time.Time) (OpenHoursRule, bool) {
	for _, r := range t.Rules {
		if r.AppliesOn(date) {
			return r, true
		}
	}
	return OpenHoursRule{}, false
}

type Territory struct {
	ID          int64
	Name        string
	Technicians []Technician
}

// Technician finds a roster member by email.
func (t *Territory) Technician(email string) (Technician, bool) {
	for _, tech := range t.Technicians {
		if tech.Email == email {
			return tech, true
		}
	}
	return Technician{}, false
}
