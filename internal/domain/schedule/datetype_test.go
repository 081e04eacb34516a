package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicplan/planschedule/internal/domain/calendar"
)

func newTestResolver(types ...*DateType) *DateTypeResolver {
	byID := make(map[string]*DateType, len(types))
	for _, dt := range types {
		byID[dt.Identifier] = dt
	}
	return NewDateTypeResolver(calendar.NewFinland(), NewMemoryDateCache(), byID, nil)
}

func TestDates_UnionOfListedAutomaticAndForced(t *testing.T) {
	dt := &DateType{
		Identifier: "lautakunnan_kokouspäivät",
		Dates: []time.Time{
			Date(2024, time.March, 4),
			Date(2023, time.March, 6), // other year, filtered out
		},
		AutomaticDates: []*AutomaticDate{{
			Name:      "viikon 20 maanantai",
			Weekdays:  []time.Weekday{time.Monday},
			Week:      20,
		}},
		ForcedDates: []time.Time{Date(2024, time.July, 1)},
	}
	r := newTestResolver(dt)

	dates := r.Dates(context.Background(), dt, 2024)
	assert.Equal(t, []time.Time{
		Date(2024, time.March, 4),
		Date(2024, time.May, 13), // Monday of ISO week 20
		Date(2024, time.July, 1),
	}, dates)
}

func TestDates_ExcludeSelectedNeverContainsListed(t *testing.T) {
	dt := &DateType{
		Identifier:      "paitsi_maaliskuun_neljäs",
		ExcludeSelected: true,
		Dates:           []time.Time{Date(2024, time.March, 4)},
		ForcedDates:     []time.Time{Date(2024, time.March, 4)},
	}
	r := newTestResolver(dt)
	dates := r.Dates(context.Background(), dt, 2024)

	// Forced dates override the exclusion; without the forced list the
	// listed date must be absent.
	assert.True(t, r.IsValidDate(context.Background(), dt, Date(2024, time.March, 4)))

	bare := &DateType{
		Identifier:      "paitsi_maaliskuun_neljäs_2",
		ExcludeSelected: true,
		Dates:           []time.Time{Date(2024, time.March, 4)},
	}
	r2 := newTestResolver(bare)
	assert.False(t, r2.IsValidDate(context.Background(), bare, Date(2024, time.March, 4)))
	assert.Len(t, dates, 366) // leap year, exclusion undone by the forced date
}

func TestDates_BusinessDaysExcludeSelected(t *testing.T) {
	// A pool of every business day of the year.
	dt := &DateType{
		Identifier:       "arkipäivät",
		BusinessDaysOnly: true,
		ExcludeSelected:  true,
	}
	r := newTestResolver(dt)
	ctx := context.Background()

	assert.False(t, r.IsValidDate(ctx, dt, Date(2024, time.January, 1)), "new year's day")
	assert.True(t, r.IsValidDate(ctx, dt, Date(2024, time.January, 2)))
	assert.False(t, r.IsValidDate(ctx, dt, Date(2024, time.January, 13)), "saturday")
	assert.False(t, r.IsValidDate(ctx, dt, Date(2024, time.January, 14)), "sunday")
}

func TestDates_ExcludeSelectedAgainstBasePool(t *testing.T) {
	base := &DateType{
		Identifier: "kokouspäivät",
		Dates: []time.Time{
			Date(2024, time.April, 8),
			Date(2024, time.April, 15),
			Date(2024, time.April, 22),
		},
	}
	dt := &DateType{
		Identifier:      "kokouspäivät_paitsi_15",
		BaseDateTypes:   []*DateType{base},
		ExcludeSelected: true,
		Dates:           []time.Time{Date(2024, time.April, 15)},
	}
	r := newTestResolver(base, dt)

	dates := r.Dates(context.Background(), dt, 2024)
	assert.Equal(t, []time.Time{
		Date(2024, time.April, 8),
		Date(2024, time.April, 22),
	}, dates)
}

func TestDates_CachedResultReused(t *testing.T) {
	cache := NewMemoryDateCache()
	dt := &DateType{
		Identifier: "yksi",
		Dates:      []time.Time{Date(2024, time.June, 3)},
	}
	r := NewDateTypeResolver(calendar.NewFinland(), cache, map[string]*DateType{dt.Identifier: dt}, nil)
	ctx := context.Background()

	first := r.Dates(ctx, dt, 2024)
	cached, ok := cache.Get(ctx, DateCacheKey("yksi", 2024))
	require.True(t, ok)
	assert.Equal(t, first, cached)

	// A definition edit is invisible until the entry expires.
	dt.Dates = append(dt.Dates, Date(2024, time.June, 10))
	assert.Equal(t, first, r.Dates(ctx, dt, 2024))
}

func TestValidDaysTo_Antisymmetric(t *testing.T) {
	dt := &DateType{
		Identifier: "kolme_päivää",
		Dates: []time.Time{
			Date(2024, time.February, 5),
			Date(2024, time.February, 12),
			Date(2024, time.February, 19),
		},
	}
	r := newTestResolver(dt)
	ctx := context.Background()

	a := Date(2024, time.February, 1)
	b := Date(2024, time.February, 19)
	forward := r.ValidDaysTo(ctx, dt, a, b)
	assert.Equal(t, 3, forward)
	assert.Equal(t, -forward, r.ValidDaysTo(ctx, dt, b, a))
	assert.Equal(t, 0, r.ValidDaysTo(ctx, dt, a, a))
}

func TestValidDaysTo_StrictAfterInclusiveTo(t *testing.T) {
	dt := &DateType{
		Identifier: "raja",
		Dates: []time.Time{
			Date(2024, time.February, 5),
			Date(2024, time.February, 12),
		},
	}
	r := newTestResolver(dt)
	ctx := context.Background()

	// The from endpoint is excluded, the to endpoint included.
	assert.Equal(t, 1, r.ValidDaysTo(ctx, dt, Date(2024, time.February, 5), Date(2024, time.February, 12)))
}

func TestValidDaysFrom_ZeroSteps(t *testing.T) {
	dt := &DateType{
		Identifier: "nolla",
		Dates:      []time.Time{Date(2024, time.March, 4)},
	}
	r := newTestResolver(dt)
	ctx := context.Background()

	got := r.ValidDaysFrom(ctx, dt, Date(2024, time.March, 4), 0)
	require.NotNil(t, got)
	assert.Equal(t, Date(2024, time.March, 4), *got)

	assert.Nil(t, r.ValidDaysFrom(ctx, dt, Date(2024, time.March, 5), 0))
}

func TestValidDaysFrom_ForwardAndBackward(t *testing.T) {
	dt := &DateType{
		Identifier: "askeleet",
		Dates: []time.Time{
			Date(2024, time.March, 4),
			Date(2024, time.March, 11),
			Date(2024, time.March, 18),
			Date(2024, time.March, 25),
		},
	}
	r := newTestResolver(dt)
	ctx := context.Background()

	got := r.ValidDaysFrom(ctx, dt, Date(2024, time.March, 4), 2)
	require.NotNil(t, got)
	assert.Equal(t, Date(2024, time.March, 18), *got)

	got = r.ValidDaysFrom(ctx, dt, Date(2024, time.March, 25), -2)
	require.NotNil(t, got)
	assert.Equal(t, Date(2024, time.March, 11), *got)

	// Off-pool start: the first step lands on the pool.
	got = r.ValidDaysFrom(ctx, dt, Date(2024, time.March, 5), 1)
	require.NotNil(t, got)
	assert.Equal(t, Date(2024, time.March, 11), *got)
}

func TestValidDaysFrom_CrossesYearBoundary(t *testing.T) {
	dt := &DateType{
		Identifier: "vuodenvaihde",
		Dates: []time.Time{
			Date(2024, time.December, 30),
			Date(2025, time.January, 7),
		},
	}
	r := newTestResolver(dt)

	got := r.ValidDaysFrom(context.Background(), dt, Date(2024, time.December, 30), 1)
	require.NotNil(t, got)
	assert.Equal(t, Date(2025, time.January, 7), *got)
}

func TestValidDaysFrom_EmptyPoolGivesUp(t *testing.T) {
	dt := &DateType{Identifier: "tyhjä"}
	r := newTestResolver(dt)

	// Must terminate via the year-walk bound, not hang.
	assert.Nil(t, r.ValidDaysFrom(context.Background(), dt, Date(2024, time.June, 1), 3))
	assert.Nil(t, r.ValidDaysFrom(context.Background(), dt, Date(2024, time.June, 1), -3))
}

func TestValidDaysFrom_SparsePoolStaysNearStart(t *testing.T) {
	dt := &DateType{Identifier: "harva"}
	for year := 2024; year <= 2100; year++ {
		dt.Dates = append(dt.Dates, Date(year, time.June, 1))
	}
	r := newTestResolver(dt)
	ctx := context.Background()

	// One date per year: a few steps stay within the year-walk bound.
	got := r.ValidDaysFrom(ctx, dt, Date(2024, time.June, 1), 5)
	require.NotNil(t, got)
	assert.Equal(t, Date(2028, time.June, 1), *got)

	// Fifty steps would land decades away, and the walk must stop even
	// though every scanned year contributes a date.
	assert.Nil(t, r.ValidDaysFrom(ctx, dt, Date(2024, time.June, 1), 50))
	assert.Nil(t, r.ValidDaysFrom(ctx, dt, Date(2100, time.June, 1), -50))
}

func TestClosestValidDate(t *testing.T) {
	dt := &DateType{
		Identifier: "lähin",
		Dates: []time.Time{
			Date(2024, time.May, 6),
			Date(2024, time.May, 20),
		},
	}
	r := newTestResolver(dt)
	ctx := context.Background()

	got := r.ClosestValidDate(ctx, dt, Date(2024, time.May, 6))
	require.NotNil(t, got)
	assert.Equal(t, Date(2024, time.May, 6), *got)

	got = r.ClosestValidDate(ctx, dt, Date(2024, time.May, 7))
	require.NotNil(t, got)
	assert.Equal(t, Date(2024, time.May, 20), *got)

	empty := &DateType{Identifier: "lähin_tyhjä"}
	r2 := newTestResolver(empty)
	assert.Nil(t, r2.ClosestValidDate(ctx, empty, Date(2024, time.May, 7)))
}
