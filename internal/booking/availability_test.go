package booking

import (
	"testing"
	"time"

	"github.com/example/field-scheduler/internal/territory"
)

// monday is a plain weekday with no DST transition anywhere relevant.
var monday = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func weekdayRule(t *testing.T, start, end string, excluded ...string) territory.OpenHoursRule {
	t.Helper()
	s, err := territory.ParseClock(start)
	if err != nil {
		t.Fatalf("parse %q: %v", start, err)
	}
	e, err := territory.ParseClock(end)
	if err != nil {
		t.Fatalf("parse %q: %v", end, err)
	}
	return territory.OpenHoursRule{
		Start:    s,
		End:      e,
		Weekdays: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		Excluded: excluded,
		Timezone: "UTC",
	}
}

func singleTechTerritory(t *testing.T, email, start, end string) *territory.Territory {
	t.Helper()
	return &territory.Territory{
		ID:   1,
		Name: "North",
		Technicians: []territory.Technician{
			{Email: email, Timezone: "UTC", Rules: []territory.OpenHoursRule{weekdayRule(t, start, end)}},
		},
	}
}

func findGroup(groups []PeriodGroup, p Period) (PeriodGroup, bool) {
	for _, g := range groups {
		if g.Period == p {
			return g, true
		}
	}
	return PeriodGroup{}, false
}

func exactStarts(g PeriodGroup) []string {
	var out []string
	for _, s := range g.Slots {
		if s.Kind == KindExact {
			out = append(out, s.Start.String())
		}
	}
	return out
}

func flexRanges(g PeriodGroup) []string {
	var out []string
	for _, s := range g.Slots {
		if s.Kind == KindFlex {
			out = append(out, s.Start.String()+"-"+s.End.String())
		}
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestComputeNineToFive(t *testing.T) {
	terr := singleTechTerritory(t, "tech@example.com", "09:00", "17:00")

	groups, err := Compute(monday, terr, 60*time.Minute, 30*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 period groups, got %d", len(groups))
	}

	morning, ok := findGroup(groups, Morning)
	if !ok {
		t.Fatalf("missing Morning group")
	}
	if got := exactStarts(morning); !equalStrings(got, []string{"09:00", "10:30"}) {
		t.Fatalf("morning exact starts = %v, want [09:00 10:30]", got)
	}
	if got := flexRanges(morning); !equalStrings(got, []string{"09:00-12:00"}) {
		t.Fatalf("morning flex = %v, want [09:00-12:00]", got)
	}

	afternoon, ok := findGroup(groups, Afternoon)
	if !ok {
		t.Fatalf("missing Afternoon group")
	}
	if got := exactStarts(afternoon); !equalStrings(got, []string{"12:00", "13:30", "15:00"}) {
		t.Fatalf("afternoon exact starts = %v, want [12:00 13:30 15:00]", got)
	}
	if got := flexRanges(afternoon); !equalStrings(got, []string{"12:00-17:00"}) {
		t.Fatalf("afternoon flex = %v, want [12:00-17:00]", got)
	}

	if _, ok := findGroup(groups, Evening); ok {
		t.Fatalf("expected no Evening group")
	}
}

func TestComputeExcludedDate(t *testing.T) {
	terr := &territory.Territory{
		ID:   1,
		Name: "North",
		Technicians: []territory.Technician{
			{Email: "tech@example.com", Timezone: "UTC", Rules: []territory.OpenHoursRule{
				weekdayRule(t, "09:00", "17:00", monday.Format("2006-01-02")),
			}},
		},
	}

	groups, err := Compute(monday, terr, 60*time.Minute, 30*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 0 {
		t.Fatalf("expected no groups on an excluded date, got %d", len(groups))
	}
}

func TestComputeIdenticalWindowsMerge(t *testing.T) {
	terr := &territory.Territory{
		ID:   1,
		Name: "North",
		Technicians: []territory.Technician{
			{Email: "a@example.com", Timezone: "UTC", Rules: []territory.OpenHoursRule{weekdayRule(t, "09:00", "12:00")}},
			{Email: "b@example.com", Timezone: "UTC", Rules: []territory.OpenHoursRule{weekdayRule(t, "09:00", "12:00")}},
		},
	}

	groups, err := Compute(monday, terr, 60*time.Minute, 30*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	morning, ok := findGroup(groups, Morning)
	if !ok {
		t.Fatalf("missing Morning group")
	}

	var flex []Slot
	for _, s := range morning.Slots {
		if s.Kind == KindFlex {
			flex = append(flex, s)
		}
	}
	if len(flex) != 1 {
		t.Fatalf("expected one merged flex slot, got %d", len(flex))
	}
	if !equalStrings(flex[0].Technicians, []string{"a@example.com", "b@example.com"}) {
		t.Fatalf("flex candidates = %v, want both technicians in roster order", flex[0].Technicians)
	}
	for _, s := range morning.Slots {
		if len(s.Technicians) != 2 {
			t.Fatalf("slot %s %s: candidates = %v, want 2", s.Kind, s.Start, s.Technicians)
		}
	}
}

func TestComputeExactSlotCountFormula(t *testing.T) {
	cases := []struct {
		window   string // end; start fixed 12:00 so it stays in one period
		duration int    // minutes
		buffer   int
	}{
		{"13:00", 60, 30},
		{"14:00", 60, 30},
		{"17:59", 45, 15},
		{"12:30", 30, 0},
		{"18:00", 90, 30},
	}
	for _, tc := range cases {
		terr := singleTechTerritory(t, "tech@example.com", "12:00", tc.window)
		groups, err := Compute(monday, terr, time.Duration(tc.duration)*time.Minute, time.Duration(tc.buffer)*time.Minute)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		g, ok := findGroup(groups, Afternoon)
		if !ok {
			t.Fatalf("window 12:00-%s: missing Afternoon group", tc.window)
		}

		end, _ := territory.ParseClock(tc.window)
		w := int(end) - 12*60
		want := (w-tc.duration)/(tc.duration+tc.buffer) + 1
		if got := len(exactStarts(g)); got != want {
			t.Fatalf("window 12:00-%s dur=%d buf=%d: %d exact slots, want %d", tc.window, tc.duration, tc.buffer, got, want)
		}
	}
}

func TestComputeDurationLongerThanWindow(t *testing.T) {
	terr := singleTechTerritory(t, "tech@example.com", "09:00", "09:30")

	groups, err := Compute(monday, terr, 60*time.Minute, 30*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	morning, ok := findGroup(groups, Morning)
	if !ok {
		t.Fatalf("missing Morning group")
	}
	if got := exactStarts(morning); len(got) != 0 {
		t.Fatalf("expected no exact slots when duration exceeds the window, got %v", got)
	}
	if got := flexRanges(morning); !equalStrings(got, []string{"09:00-09:30"}) {
		t.Fatalf("flex = %v, want the bare window", got)
	}
}

func TestComputeWindowClosingAtPeriodBoundary(t *testing.T) {
	// Closes exactly at 12:00: the Afternoon clip is zero-width and must
	// produce nothing.
	terr := singleTechTerritory(t, "tech@example.com", "10:00", "12:00")

	groups, err := Compute(monday, terr, 60*time.Minute, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 1 || groups[0].Period != Morning {
		t.Fatalf("expected only a Morning group, got %+v", groups)
	}
}

func TestComputeKeyUniquenessAndOrdering(t *testing.T) {
	terr := &territory.Territory{
		ID:   1,
		Name: "North",
		Technicians: []territory.Technician{
			{Email: "a@example.com", Timezone: "UTC", Rules: []territory.OpenHoursRule{weekdayRule(t, "08:00", "14:00")}},
			{Email: "b@example.com", Timezone: "UTC", Rules: []territory.OpenHoursRule{weekdayRule(t, "10:00", "20:00")}},
		},
	}

	groups, err := Compute(monday, terr, 45*time.Minute, 15*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen := map[string]bool{}
	for _, g := range groups {
		prev := territory.ClockTime(-1)
		for _, s := range g.Slots {
			if s.Period != g.Period {
				t.Fatalf("slot period %s in group %s", s.Period, g.Period)
			}
			if s.Start < prev {
				t.Fatalf("group %s not sorted: %s after %s", g.Period, s.Start, prev)
			}
			prev = s.Start

			key := string(s.Kind) + "|" + s.Start.String() + "|" + s.End.String() + "|" + string(s.Period)
			if seen[key] {
				t.Fatalf("duplicate slot key %s", key)
			}
			seen[key] = true
		}
	}
}

func TestComputeEmptyRoster(t *testing.T) {
	groups, err := Compute(monday, nil, 60*time.Minute, 30*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if groups != nil {
		t.Fatalf("expected nil groups for missing territory, got %v", groups)
	}

	groups, err = Compute(monday, &territory.Territory{Name: "Empty"}, 60*time.Minute, 30*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if groups != nil {
		t.Fatalf("expected nil groups for empty roster, got %v", groups)
	}
}

func TestComputeInvalidArgs(t *testing.T) {
	terr := singleTechTerritory(t, "tech@example.com", "09:00", "17:00")
	if _, err := Compute(monday, terr, 0, 30*time.Minute); err != ErrDuration {
		t.Fatalf("expected ErrDuration, got %v", err)
	}
	if _, err := Compute(monday, terr, time.Hour, -time.Minute); err != ErrBuffer {
		t.Fatalf("expected ErrBuffer, got %v", err)
	}
}
