package rebac

import (
	"time"

	"github.com/robfig/cron/v3"
)

// ============================================================================
// TEMPORAL GRANT EVALUATION
// ============================================================================

// scheduleParser accepts the classic five-field cron form (minute, hour,
// day-of-month, month, day-of-week). No seconds field, no descriptors.
var scheduleParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// ParseSchedule parses a five-field cron expression, wrapping parse failures
// in a ValidationError so callers can distinguish bad input from faults.
func ParseSchedule(expr string) (cron.Schedule, error) {
	sched, err := scheduleParser.Parse(expr)
	if err != nil {
		return nil, NewValidationError("schedule", err.Error())
	}
	return sched, nil
}

// ValidateSchedule reports whether expr is a well-formed five-field cron
// expression. Empty means "no schedule" and is valid.
func ValidateSchedule(expr string) error {
	if expr == "" {
		return nil
	}
	_, err := ParseSchedule(expr)
	return err
}

// scheduleMatches reports whether the schedule's fields match the minute
// containing now. A match covers the whole minute, so an expression with a
// wildcard minute field ("* 9-17 * * 1-5") behaves as a continuous window.
func scheduleMatches(sched cron.Schedule, now time.Time) bool {
	minute := now.Truncate(time.Minute)
	return sched.Next(minute.Add(-time.Second)).Equal(minute)
}

// ScheduleMatchesAt parses expr and reports whether it matches at now. An
// unparsable expression never matches.
func ScheduleMatchesAt(expr string, now time.Time) bool {
	if expr == "" {
		return true
	}
	sched, err := ParseSchedule(expr)
	if err != nil {
		return false
	}
	return scheduleMatches(sched, now)
}

// NextOccurrences returns up to count schedule matches strictly after now,
// scanning no further than horizonDays ahead. A sparse or never-matching
// expression yields fewer (possibly zero) results rather than blocking.
func NextOccurrences(expr string, count, horizonDays int, now time.Time) ([]time.Time, error) {
	sched, err := ParseSchedule(expr)
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, nil
	}
	if horizonDays <= 0 {
		horizonDays = 366
	}
	horizon := now.AddDate(0, 0, horizonDays)
	out := make([]time.Time, 0, count)
	t := now
	for len(out) < count {
		t = sched.Next(t)
		if t.IsZero() || t.After(horizon) {
			break
		}
		out = append(out, t)
	}
	return out, nil
}

// SchedulePreset is a named, ready-made cron expression.
type SchedulePreset struct {
	Name        string `json:"name" yaml:"name"`
	Expression  string `json:"expression" yaml:"expression"`
	Description string `json:"description" yaml:"description"`
}

// SchedulePresets returns the built-in recurring windows. All presets use a
// wildcard minute field so they act as continuous ranges, not single ticks.
func SchedulePresets() []SchedulePreset {
	return []SchedulePreset{
		{Name: "business_hours", Expression: "* 9-17 * * 1-5", Description: "Weekdays 09:00-17:59"},
		{Name: "weekends", Expression: "* * * * 0,6", Description: "All day Saturday and Sunday"},
		{Name: "after_hours", Expression: "* 0-8,18-23 * * *", Description: "Outside 09:00-17:59, every day"},
		{Name: "first_week", Expression: "* * 1-7 * *", Description: "First seven days of each month"},
	}
}

// grantActive applies the shared temporal rules: not revoked, inside the
// validity window, and matching the schedule if one is set. matchFn resolves
// a schedule expression against now; the engine supplies a cached resolver,
// stores and tests can pass ScheduleMatchesAt directly.
func grantActive(window TimeWindow, schedule string, revokedAt, now time.Time, matchFn func(string, time.Time) bool) bool {
	if !revokedAt.IsZero() && !now.Before(revokedAt) {
		return false
	}
	if !window.Contains(now) {
		return false
	}
	if schedule == "" {
		return true
	}
	if matchFn == nil {
		matchFn = ScheduleMatchesAt
	}
	return matchFn(schedule, now)
}

// AssignmentActive reports whether the assignment is live at now, ignoring
// scope. Scope applicability is the engine's concern.
func AssignmentActive(a RoleAssignment, now time.Time) bool {
	return grantActive(a.Window, a.Schedule, a.RevokedAt, now, nil)
}

// OverrideActive reports whether the override grant is live at now.
func OverrideActive(g *OverrideGrant, now time.Time) bool {
	return grantActive(g.Window, g.Schedule, g.RevokedAt, now, nil)
}
