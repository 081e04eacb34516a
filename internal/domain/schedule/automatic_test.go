package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicplan/planschedule/internal/domain/calendar"
	"github.com/civicplan/planschedule/pkg/errors"
)

func TestAutomaticDateValidate(t *testing.T) {
	cases := []struct {
		name string
		rule AutomaticDate
		ok   bool
	}{
		{"week only", AutomaticDate{Week: 20, Weekdays: []time.Weekday{time.Monday}}, true},
		{"range only", AutomaticDate{StartDate: "1.3.", EndDate: "15.3."}, true},
		{"start only", AutomaticDate{StartDate: "1.3."}, true},
		{"before holiday", AutomaticDate{BeforeHoliday: "Juhannuspäivä"}, true},
		{"nothing set", AutomaticDate{}, false},
		{"two rules", AutomaticDate{Week: 20, BeforeHoliday: "Juhannuspäivä"}, false},
		{"week out of range", AutomaticDate{Week: 54}, false},
		{"bad day", AutomaticDate{StartDate: "32.1."}, false},
		{"bad month", AutomaticDate{StartDate: "1.13."}, false},
		{"short february", AutomaticDate{StartDate: "30.2."}, false},
		{"not a date", AutomaticDate{StartDate: "maanantai"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.rule.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.CodeInvalidRecurrence))
			}
		})
	}
}

func TestAutomaticDate_ISOWeek(t *testing.T) {
	rule := &AutomaticDate{
		Weekdays: []time.Weekday{time.Monday, time.Friday},
		Week:     2,
	}
	got := rule.Calculate(calendar.NewFinland(), 2024, false)
	// ISO week 2 of 2024 runs Mon 2024-01-08 .. Sun 2024-01-14.
	assert.Equal(t, []time.Time{
		Date(2024, time.January, 8),
		Date(2024, time.January, 12),
	}, got)
}

func TestAutomaticDate_DateRange(t *testing.T) {
	rule := &AutomaticDate{
		Weekdays:  []time.Weekday{time.Wednesday},
		StartDate: "1.2.",
		EndDate:   "20.2.",
	}
	got := rule.Calculate(calendar.NewFinland(), 2024, false)
	assert.Equal(t, []time.Time{
		Date(2024, time.February, 7),
		Date(2024, time.February, 14),
	}, got)
}

func TestAutomaticDate_WrappingRange(t *testing.T) {
	// Start after end wraps over the year boundary; only current-year days
	// survive the year filter.
	rule := &AutomaticDate{
		Weekdays:  []time.Weekday{time.Monday},
		StartDate: "20.12.",
		EndDate:   "10.1.",
	}
	got := rule.Calculate(calendar.NewFinland(), 2024, false)
	assert.Equal(t, []time.Time{
		Date(2024, time.January, 1),
		Date(2024, time.January, 8),
		Date(2024, time.December, 23),
		Date(2024, time.December, 30),
	}, got)
}

func TestAutomaticDate_StartOnly(t *testing.T) {
	rule := &AutomaticDate{
		Weekdays:  []time.Weekday{time.Tuesday},
		StartDate: "15.8.",
	}
	got := rule.Calculate(calendar.NewFinland(), 2024, false)
	// Nearest Tuesday after 2024-08-15 (a Thursday).
	require.Len(t, got, 1)
	assert.Equal(t, Date(2024, time.August, 20), got[0])
}

func TestAutomaticDate_EndOnly(t *testing.T) {
	rule := &AutomaticDate{
		Weekdays: []time.Weekday{time.Friday},
		EndDate:  "15.8.",
	}
	got := rule.Calculate(calendar.NewFinland(), 2024, false)
	// Nearest Friday before 2024-08-15, plus the year-boundary probe from
	// the next year's anchor resolves into 2025 and is filtered out.
	require.Len(t, got, 1)
	assert.Equal(t, Date(2024, time.August, 9), got[0])
}

// independenceDay finds the calendar's name for the fixed December 6th
// holiday so the tests do not depend on the library's exact spelling.
func independenceDay(t *testing.T, c calendar.HolidayCalendar) string {
	t.Helper()
	for _, h := range c.Holidays(2024) {
		if h.Date.Equal(Date(2024, time.December, 6)) {
			return h.Name
		}
	}
	t.Fatal("no holiday on 2024-12-06")
	return ""
}

func TestAutomaticDate_BeforeHoliday(t *testing.T) {
	c := calendar.NewFinland()
	rule := &AutomaticDate{
		Weekdays:      []time.Weekday{time.Thursday},
		BeforeHoliday: independenceDay(t, c),
	}
	got := rule.Calculate(c, 2024, false)
	// Independence day 2024-12-06 is a Friday; the prior Thursday is the
	// 5th.  The next year's occurrence yields a date outside 2024.
	require.Len(t, got, 1)
	assert.Equal(t, Date(2024, time.December, 5), got[0])
}

func TestAutomaticDate_AfterHoliday(t *testing.T) {
	c := calendar.NewFinland()
	rule := &AutomaticDate{
		Weekdays:     []time.Weekday{time.Monday},
		AfterHoliday: independenceDay(t, c),
	}
	got := rule.Calculate(c, 2024, false)
	// Monday after independence day 2023 falls in December 2023 and is
	// filtered out; Monday after the 2024 occurrence is the 9th.
	require.Len(t, got, 1)
	assert.Equal(t, Date(2024, time.December, 9), got[0])
}

func TestAutomaticDate_UnknownHolidayYieldsNothing(t *testing.T) {
	rule := &AutomaticDate{
		Weekdays:      []time.Weekday{time.Monday},
		BeforeHoliday: "olematon juhla",
	}
	assert.Empty(t, rule.Calculate(calendar.NewFinland(), 2024, false))
}

func TestAutomaticDate_BusinessDaysDropWeekendFilter(t *testing.T) {
	// A weekend-only weekday filter can never match on business days; the
	// bounded search must come back empty instead of spinning.
	rule := &AutomaticDate{
		Weekdays:  []time.Weekday{time.Saturday, time.Sunday},
		StartDate: "1.6.",
	}
	assert.Empty(t, rule.Calculate(calendar.NewFinland(), 2024, true))
}

func TestAutomaticDate_BusinessDaysSkipHolidays(t *testing.T) {
	rule := &AutomaticDate{
		Weekdays: []time.Weekday{time.Monday, time.Wednesday},
		EndDate:  "2.1.",
	}
	got := rule.Calculate(calendar.NewFinland(), 2024, true)
	// Walking back from 2024-01-02: Monday the 1st is a holiday, so the
	// first match is Wednesday 2023-12-27, outside the target year.  The
	// next-year probe walks back from 2025-01-02 and lands on Monday
	// 2024-12-30.
	require.Len(t, got, 1)
	assert.Equal(t, Date(2024, time.December, 30), got[0])
}
