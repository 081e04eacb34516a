// Package calendar wraps the public-holiday calendar consumed by the
// scheduling engine.  The engine only needs three pure queries (working day,
// holiday, holidays of a year), so everything else the underlying library
// offers stays hidden behind the HolidayCalendar interface.
package calendar

import (
	"sort"
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/fi"
)

// Holiday is a single public holiday occurrence.
type Holiday struct {
	Date time.Time
	Name string
}

// HolidayCalendar answers business-day and holiday queries.  Implementations
// must be pure functions of the date: no I/O, no mutation, safe for
// concurrent use.
type HolidayCalendar interface {
	// IsWorkingDay reports whether the date is a business day (not a weekend
	// and not a public holiday).
	IsWorkingDay(date time.Time) bool

	// IsHoliday reports whether the date is a public holiday.
	IsHoliday(date time.Time) bool

	// Holidays returns all public holiday occurrences of the given year,
	// sorted by date.
	Holidays(year int) []Holiday
}

type finlandCalendar struct {
	cal *cal.BusinessCalendar
}

// NewFinland returns a HolidayCalendar for the Finnish public-holiday set.
func NewFinland() HolidayCalendar {
	c := cal.NewBusinessCalendar()
	c.AddHoliday(fi.Holidays...)
	return &finlandCalendar{cal: c}
}

func (f *finlandCalendar) IsWorkingDay(date time.Time) bool {
	return f.cal.IsWorkday(date)
}

func (f *finlandCalendar) IsHoliday(date time.Time) bool {
	actual, observed, _ := f.cal.IsHoliday(date)
	return actual || observed
}

func (f *finlandCalendar) Holidays(year int) []Holiday {
	out := make([]Holiday, 0, len(f.cal.Holidays))
	for _, h := range f.cal.Holidays {
		actual, _ := h.Calc(year)
		if actual.IsZero() {
			continue
		}
		out = append(out, Holiday{Date: actual, Name: h.Name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// HolidayDate finds the date of the named holiday in the given year.
// The second return value is false if the calendar defines no such holiday.
func HolidayDate(c HolidayCalendar, name string, year int) (time.Time, bool) {
	for _, h := range c.Holidays(year) {
		if h.Name == name {
			return h.Date, true
		}
	}
	return time.Time{}, false
}
