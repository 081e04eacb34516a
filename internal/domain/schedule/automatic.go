package schedule

import (
	"strconv"
	"strings"
	"time"

	"github.com/civicplan/planschedule/internal/domain/calendar"
	"github.com/civicplan/planschedule/pkg/errors"
)

// weekdaySearchCap bounds the nearest-matching-weekday walk.  A rule whose
// weekday filter can never match (or whose anchor holiday is missing) must
// return nothing instead of searching forever.
const weekdaySearchCap = 365

// AutomaticDate is a recurrence rule producing up to two concrete dates per
// year.  Exactly one of Week, StartDate/EndDate, BeforeHoliday, AfterHoliday
// may be set; Validate enforces this at authoring time.
type AutomaticDate struct {
	Name string

	// Weekdays narrows results to the given weekdays.
	Weekdays []time.Weekday

	// Week selects all matching weekdays of the ISO week number (1–53).
	Week int

	// StartDate and EndDate are "dd.mm." encoded.  Both set: all matching
	// weekdays in the range, wrapping the year boundary when start > end.
	// Start only: nearest matching weekday at or after the date.  End only:
	// nearest matching weekday before the date.
	StartDate string
	EndDate   string

	// BeforeHoliday / AfterHoliday anchor on a named public holiday.
	BeforeHoliday string
	AfterHoliday  string
}

// Validate rejects definitions that set zero or more than one of the
// mutually exclusive rule fields, or malformed dd.mm. strings.  The runtime
// evaluator assumes validated rules.
func (a *AutomaticDate) Validate() error {
	filled := 0
	if a.Week != 0 {
		if a.Week < 1 || a.Week > 53 {
			return errors.New(errors.CodeInvalidRecurrence, "week number must be between 1 and 53")
		}
		filled++
	}
	if a.StartDate != "" || a.EndDate != "" {
		filled++
	}
	if a.BeforeHoliday != "" {
		filled++
	}
	if a.AfterHoliday != "" {
		filled++
	}
	if filled != 1 {
		return errors.New(errors.CodeInvalidRecurrence,
			"exactly one of week number, start/end date, before-holiday, after-holiday must be set")
	}
	for _, s := range []string{a.StartDate, a.EndDate} {
		if s == "" {
			continue
		}
		if _, _, err := parseDayMonth(s); err != nil {
			return err
		}
	}
	return nil
}

// parseDayMonth parses a "dd.mm." encoded date fragment.
func parseDayMonth(s string) (day, month int, err error) {
	invalid := errors.New(errors.CodeInvalidRecurrence, "invalid date: input date in dd.mm. format").
		WithDetail(s)

	parts := strings.Split(s, ".")
	if len(parts) < 2 {
		return 0, 0, invalid
	}
	day, dayErr := strconv.Atoi(parts[0])
	month, monthErr := strconv.Atoi(parts[1])
	if dayErr != nil || monthErr != nil {
		return 0, 0, invalid
	}
	if month < 1 || month > 12 {
		return 0, 0, invalid
	}
	switch {
	case month == 2 && day > 29:
		return 0, 0, invalid
	case (month == 4 || month == 6 || month == 9 || month == 11) && day > 30:
		return 0, 0, invalid
	case day < 1 || day > 31:
		return 0, 0, invalid
	}
	return day, month, nil
}

// dateIn anchors a dd.mm. fragment in a concrete year.
func dateIn(s string, year int) time.Time {
	day, month, _ := parseDayMonth(s)
	return Date(year, time.Month(month), day)
}

// effectiveWeekdays returns the weekday filter, restricted to Monday–Friday
// when business days are required.  An empty result means nothing can match.
func (a *AutomaticDate) effectiveWeekdays(businessDaysOnly bool) []time.Weekday {
	if !businessDaysOnly {
		return a.Weekdays
	}
	var out []time.Weekday
	for _, wd := range a.Weekdays {
		if wd != time.Saturday && wd != time.Sunday {
			out = append(out, wd)
		}
	}
	return out
}

func containsWeekday(weekdays []time.Weekday, wd time.Weekday) bool {
	for _, w := range weekdays {
		if w == wd {
			return true
		}
	}
	return false
}

// closestWeekday walks outward from date (forward, or backward when previous
// is set) to the nearest day matching the weekday filter, skipping holidays
// when business days are required.  The walk gives up after weekdaySearchCap
// days and reports false.
func (a *AutomaticDate) closestWeekday(
	cal calendar.HolidayCalendar,
	date time.Time,
	businessDaysOnly bool,
	previous bool,
) (time.Time, bool) {
	weekdays := a.effectiveWeekdays(businessDaysOnly)
	if len(weekdays) == 0 {
		return time.Time{}, false
	}

	for delta := 1; delta < weekdaySearchCap; delta++ {
		step := delta
		if previous {
			step = -delta
		}
		candidate := date.AddDate(0, 0, step)
		if businessDaysOnly && cal.IsHoliday(candidate) {
			continue
		}
		if containsWeekday(weekdays, candidate.Weekday()) {
			return candidate, true
		}
	}
	return time.Time{}, false
}

// weekdaysInRange expands all matching weekdays between start and end,
// inclusive.
func (a *AutomaticDate) weekdaysInRange(
	cal calendar.HolidayCalendar,
	start, end time.Time,
	businessDaysOnly bool,
) []time.Time {
	weekdays := a.effectiveWeekdays(businessDaysOnly)
	if len(weekdays) == 0 {
		return nil
	}

	var out []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if businessDaysOnly && cal.IsHoliday(d) {
			continue
		}
		if containsWeekday(weekdays, d.Weekday()) {
			out = append(out, d)
		}
	}
	return out
}

// isoWeekSpan returns the Monday and Sunday of the ISO week in the given
// ISO year.
func isoWeekSpan(year, week int) (time.Time, time.Time) {
	// January 4th is always inside ISO week 1.
	jan4 := Date(year, time.January, 4)
	sinceMonday := (int(jan4.Weekday()) + 6) % 7
	week1Monday := jan4.AddDate(0, 0, -sinceMonday)
	start := week1Monday.AddDate(0, 0, (week-1)*7)
	return start, start.AddDate(0, 0, 6)
}

// Calculate evaluates the rule for a year, returning the concrete dates that
// fall within that year.  Entries whose bounded search found nothing are
// dropped silently per the engine's error model.
func (a *AutomaticDate) Calculate(
	cal calendar.HolidayCalendar,
	year int,
	businessDaysOnly bool,
) []time.Time {
	var candidates []time.Time
	add := func(t time.Time, ok bool) {
		if ok {
			candidates = append(candidates, t)
		}
	}

	switch {
	case a.Week != 0:
		start, end := isoWeekSpan(year, a.Week)
		candidates = a.weekdaysInRange(cal, start, end, businessDaysOnly)

	case a.StartDate != "" && a.EndDate != "":
		start := dateIn(a.StartDate, year)
		end := dateIn(a.EndDate, year)
		if start.After(end) {
			// The range wraps the year boundary: expand both fragments.
			candidates = append(
				a.weekdaysInRange(cal, Date(year, time.January, 1), end, businessDaysOnly),
				a.weekdaysInRange(cal, start, Date(year, time.December, 31), businessDaysOnly)...,
			)
		} else {
			candidates = a.weekdaysInRange(cal, start, end, businessDaysOnly)
		}

	case a.StartDate != "":
		// Nearest matching weekday after the anchor, in both the previous and
		// the current year, to cover year-boundary cases.
		add(a.closestWeekday(cal, dateIn(a.StartDate, year-1), businessDaysOnly, false))
		add(a.closestWeekday(cal, dateIn(a.StartDate, year), businessDaysOnly, false))

	case a.EndDate != "":
		add(a.closestWeekday(cal, dateIn(a.EndDate, year), businessDaysOnly, true))
		add(a.closestWeekday(cal, dateIn(a.EndDate, year+1), businessDaysOnly, true))

	case a.BeforeHoliday != "":
		if d, ok := calendar.HolidayDate(cal, a.BeforeHoliday, year); ok {
			add(a.closestWeekday(cal, d, businessDaysOnly, true))
		}
		if d, ok := calendar.HolidayDate(cal, a.BeforeHoliday, year+1); ok {
			add(a.closestWeekday(cal, d, businessDaysOnly, true))
		}

	case a.AfterHoliday != "":
		if d, ok := calendar.HolidayDate(cal, a.AfterHoliday, year-1); ok {
			add(a.closestWeekday(cal, d, businessDaysOnly, false))
		}
		if d, ok := calendar.HolidayDate(cal, a.AfterHoliday, year); ok {
			add(a.closestWeekday(cal, d, businessDaysOnly, false))
		}
	}

	out := candidates[:0]
	for _, d := range candidates {
		if d.Year() == year {
			out = append(out, d)
		}
	}
	return out
}
