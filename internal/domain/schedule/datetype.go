package schedule

import (
	"context"
	"sort"
	"time"

	"github.com/civicplan/planschedule/internal/domain/calendar"
	"github.com/civicplan/planschedule/internal/infrastructure/monitoring/logging"
)

// yearWalkCap bounds how many years valid-date searches may scan away from
// their starting year before giving up.
const yearWalkCap = 10

// DateTypeResolver expands date types into concrete per-year date pools and
// answers distance and validity questions against them.  Pools are served
// through the injected cache; pass NopDateCache to disable caching.
type DateTypeResolver struct {
	cal   calendar.HolidayCalendar
	cache DateCache
	types map[string]*DateType
	ttl   time.Duration
	log   logging.Logger
}

func NewDateTypeResolver(
	cal calendar.HolidayCalendar,
	cache DateCache,
	types map[string]*DateType,
	log logging.Logger,
) *DateTypeResolver {
	if cache == nil {
		cache = NopDateCache{}
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &DateTypeResolver{cal: cal, cache: cache, types: types, ttl: DateCacheTTL, log: log}
}

// SetCacheTTL overrides how long resolved pools stay cached.  Non-positive
// values are ignored.
func (r *DateTypeResolver) SetCacheTTL(ttl time.Duration) {
	if ttl > 0 {
		r.ttl = ttl
	}
}

// DateType looks up a date type by identifier.
func (r *DateTypeResolver) DateType(identifier string) (*DateType, bool) {
	dt, ok := r.types[identifier]
	return dt, ok
}

// Dates returns the sorted, deduplicated date pool of a date type for one
// year.  Listed and recurring dates are expanded first.  With ExcludeSelected
// the pool inverts: every calendar day of the year except the expanded dates,
// further restricted to the base pools when the type has any.  Forced dates
// join before the business-day filter so that the filter applies uniformly.
func (r *DateTypeResolver) Dates(ctx context.Context, dt *DateType, year int) []time.Time {
	key := DateCacheKey(dt.Identifier, year)
	if cached, ok := r.cache.Get(ctx, key); ok {
		return cached
	}

	var dates []time.Time
	for _, d := range dt.Dates {
		if d.Year() == year {
			dates = append(dates, Normalize(d))
		}
	}
	for i := range dt.AutomaticDates {
		dates = append(dates, dt.AutomaticDates[i].Calculate(r.cal, year, dt.BusinessDaysOnly)...)
	}

	var baseDates []time.Time
	for _, base := range dt.BaseDateTypes {
		baseDates = append(baseDates, r.Dates(ctx, base, year)...)
	}

	if dt.ExcludeSelected {
		excluded := make(map[time.Time]struct{}, len(dates))
		for _, d := range dates {
			excluded[d] = struct{}{}
		}
		var candidates []time.Time
		if len(dt.BaseDateTypes) > 0 {
			candidates = baseDates
		} else {
			last := Date(year, time.December, 31)
			for d := Date(year, time.January, 1); !d.After(last); d = d.AddDate(0, 0, 1) {
				candidates = append(candidates, d)
			}
		}
		dates = dates[:0]
		for _, d := range candidates {
			if _, skip := excluded[d]; !skip {
				dates = append(dates, d)
			}
		}
	} else {
		dates = append(dates, baseDates...)
	}

	for _, d := range dt.ForcedDates {
		if d.Year() == year {
			dates = append(dates, Normalize(d))
		}
	}

	if dt.BusinessDaysOnly {
		kept := dates[:0]
		for _, d := range dates {
			if r.cal.IsWorkingDay(d) {
				kept = append(kept, d)
			}
		}
		dates = kept
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	dates = dedupeDates(dates)

	r.cache.Set(ctx, key, dates, r.ttl)
	return dates
}

func dedupeDates(sorted []time.Time) []time.Time {
	out := sorted[:0]
	for i, d := range sorted {
		if i == 0 || !d.Equal(sorted[i-1]) {
			out = append(out, d)
		}
	}
	return out
}

// IsValidDate reports whether date is in the pool of its own year.
func (r *DateTypeResolver) IsValidDate(ctx context.Context, dt *DateType, date time.Time) bool {
	date = Normalize(date)
	for _, d := range r.Dates(ctx, dt, date.Year()) {
		if d.Equal(date) {
			return true
		}
	}
	return false
}

// ValidDaysTo counts pool dates strictly after from, up to and including to.
// A to before from yields the negated count of the mirrored interval, so the
// result is a signed distance in valid days.
func (r *DateTypeResolver) ValidDaysTo(ctx context.Context, dt *DateType, from, to time.Time) int {
	from, to = Normalize(from), Normalize(to)
	sign := 1
	if to.Before(from) {
		from, to = to, from
		sign = -1
	}

	count := 0
	for year := from.Year(); year <= to.Year(); year++ {
		for _, d := range r.Dates(ctx, dt, year) {
			if d.After(from) && !d.After(to) {
				count++
			}
		}
	}
	return sign * count
}

// ValidDaysFrom steps days valid dates away from date within the pool,
// forward for non-negative counts and backward otherwise.  A zero count
// returns the date itself when it is in the pool, nil otherwise.  The walk
// scans additional years as needed but never strays ten or more years from
// the starting date; past that bound the pool counts as exhausted and the
// result is nil.
func (r *DateTypeResolver) ValidDaysFrom(ctx context.Context, dt *DateType, date time.Time, days int) *time.Time {
	date = Normalize(date)
	isValid := r.IsValidDate(ctx, dt, date)
	if days == 0 && !isValid {
		return nil
	}
	abs := days
	if abs < 0 {
		abs = -abs
	}

	collect := func(year int) []time.Time {
		pool := r.Dates(ctx, dt, year)
		var out []time.Time
		if days >= 0 {
			for _, d := range pool {
				if !d.Before(date) {
					out = append(out, d)
				}
			}
		} else {
			for i := len(pool) - 1; i >= 0; i-- {
				if !pool[i].After(date) {
					out = append(out, pool[i])
				}
			}
		}
		return out
	}

	year := date.Year()
	dates := collect(year)
	for abs > len(dates) {
		if days >= 0 {
			year++
		} else {
			year--
		}
		distance := year - date.Year()
		if distance < 0 {
			distance = -distance
		}
		if distance >= yearWalkCap {
			r.log.Warn("date pool exhausted",
				logging.String("datetype", dt.Identifier),
				logging.Time("from", date),
				logging.Int("days", days))
			return nil
		}
		dates = append(dates, collect(year)...)
	}
	if len(dates) == 0 {
		return nil
	}

	var result time.Time
	switch {
	case !isValid:
		// Off-pool starting dates consume one step reaching the pool.
		result = dates[abs-1]
	case len(dates) == abs:
		result = dates[abs-1]
	default:
		result = dates[abs]
	}
	return &result
}

// ClosestValidDate snaps date onto the pool: the date itself when already
// valid, otherwise the next valid day forward.  Nil when the forward walk
// exhausts the pool.
func (r *DateTypeResolver) ClosestValidDate(ctx context.Context, dt *DateType, date time.Time) *time.Time {
	date = Normalize(date)
	if r.IsValidDate(ctx, dt, date) {
		return &date
	}
	return r.ValidDaysFrom(ctx, dt, date, 1)
}
