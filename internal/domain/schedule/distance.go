package schedule

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// DistanceValidator checks minimum-separation constraints between deadline
// pairs.  The scheduler consults it informationally; the interactive edit
// boundary consults it synchronously and surfaces its violations to the
// user.
type DistanceValidator struct {
	resolver *DateTypeResolver
}

func NewDistanceValidator(resolver *DateTypeResolver) *DistanceValidator {
	return &DistanceValidator{resolver: resolver}
}

// Active reports whether the constraint applies under the current data.  A
// constraint with conditions applies when any of them is set; one without
// conditions always applies.
func (v *DistanceValidator) Active(c *DeadlineDistance, env *EvalEnv) bool {
	if len(c.Conditions) == 0 {
		return true
	}
	for _, attr := range c.Conditions {
		if env.CheckCondition(attr) {
			return true
		}
	}
	return false
}

// Distance measures the signed day distance from a previous date to a later
// one, in valid days of the constraint's pool when it names one, plain
// calendar days otherwise.
func (v *DistanceValidator) Distance(ctx context.Context, c *DeadlineDistance, from, to time.Time) int {
	if c.DateType != nil {
		return v.resolver.ValidDaysTo(ctx, c.DateType, from, to)
	}
	return int(Normalize(to).Sub(Normalize(from)).Hours() / 24)
}

// IsUnderMinDistance reports whether date sits closer to previousDate than
// the constraint allows.
func (v *DistanceValidator) IsUnderMinDistance(ctx context.Context, c *DeadlineDistance, previousDate, date time.Time) bool {
	return v.Distance(ctx, c, previousDate, date) < c.MinDistance
}

// FirstPossibleDate is the earliest date satisfying the constraint: the
// previous date advanced by the minimum distance, walked along the
// constraint's pool when it has one, then snapped to the dependent
// deadline's own pool.
func (v *DistanceValidator) FirstPossibleDate(ctx context.Context, c *DeadlineDistance, previousDate time.Time) *time.Time {
	var candidate *time.Time
	if c.DateType != nil {
		candidate = v.resolver.ValidDaysFrom(ctx, c.DateType, previousDate, c.MinDistance)
	} else {
		d := Normalize(previousDate).AddDate(0, 0, c.MinDistance)
		candidate = &d
	}
	if candidate == nil {
		return nil
	}
	if c.Deadline != nil && c.Deadline.DateType != nil {
		return v.resolver.ClosestValidDate(ctx, c.Deadline.DateType, *candidate)
	}
	return candidate
}

// DistanceViolation describes one failed minimum-distance check.
type DistanceViolation struct {
	Constraint    *DeadlineDistance
	Distance      int
	FirstPossible *time.Time
	Message       string
}

// expandMessage fills a per-deadline message template.  Supported tokens:
// {date}, {distance}, {deadline}, {suggested}.  The {deadline} token names
// the constraint's other end.
func expandMessage(tpl string, date time.Time, c *DeadlineDistance, other string, suggested *time.Time) string {
	suggestion := ""
	if suggested != nil {
		suggestion = suggested.Format(DateFormat)
	}
	return strings.NewReplacer(
		"{date}", date.Format(DateFormat),
		"{distance}", strconv.Itoa(c.MinDistance),
		"{deadline}", other,
		"{suggested}", suggestion,
	).Replace(tpl)
}

// CheckDeadline validates one deadline's candidate date against every
// constraint naming it as the dependent deadline, using dates (deadline ID
// to resolved date) for the counterpart values.  Inactive constraints and
// pairs with an unresolved counterpart are skipped.
func (v *DistanceValidator) CheckDeadline(
	ctx context.Context,
	d *Deadline,
	date time.Time,
	constraints []*DeadlineDistance,
	env *EvalEnv,
	dates map[string]*time.Time,
) []DistanceViolation {
	var out []DistanceViolation
	for _, c := range constraints {
		if c.Deadline == nil || c.Deadline.ID != d.ID || c.PreviousDeadline == nil {
			continue
		}
		if !v.Active(c, env) {
			continue
		}
		prev := dates[c.PreviousDeadline.ID]
		if prev == nil {
			continue
		}
		if !v.IsUnderMinDistance(ctx, c, *prev, date) {
			continue
		}
		suggested := v.FirstPossibleDate(ctx, c, *prev)
		tpl := d.ErrorMinDistancePrevious
		if tpl == "" {
			tpl = "date must be at least {distance} days after {deadline}; first possible date is {suggested}"
		}
		out = append(out, DistanceViolation{
			Constraint:    c,
			Distance:      v.Distance(ctx, c, *prev, date),
			FirstPossible: suggested,
			Message:       expandMessage(tpl, date, c, c.PreviousDeadline.Abbreviation, suggested),
		})
	}
	return out
}

// CheckFollowing warns when moving a deadline would squeeze a later deadline
// under its own minimum distance.  Violations carry the later deadline's
// warning template.
func (v *DistanceValidator) CheckFollowing(
	ctx context.Context,
	d *Deadline,
	date time.Time,
	constraints []*DeadlineDistance,
	env *EvalEnv,
	dates map[string]*time.Time,
) []DistanceViolation {
	var out []DistanceViolation
	for _, c := range constraints {
		if c.PreviousDeadline == nil || c.PreviousDeadline.ID != d.ID || c.Deadline == nil {
			continue
		}
		if !v.Active(c, env) {
			continue
		}
		next := dates[c.Deadline.ID]
		if next == nil {
			continue
		}
		if !v.IsUnderMinDistance(ctx, c, date, *next) {
			continue
		}
		suggested := v.FirstPossibleDate(ctx, c, date)
		tpl := d.WarningMinDistanceNext
		if tpl == "" {
			tpl = "moving this date leaves less than {distance} days before {deadline}"
		}
		out = append(out, DistanceViolation{
			Constraint:    c,
			Distance:      v.Distance(ctx, c, date, *next),
			FirstPossible: suggested,
			Message:       expandMessage(tpl, *next, c, c.Deadline.Abbreviation, suggested),
		})
	}
	return out
}
