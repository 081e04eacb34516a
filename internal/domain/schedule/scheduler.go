package schedule

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/civicplan/planschedule/internal/infrastructure/monitoring/logging"
)

// Registry bundles the administrator-authored reference data one scheduling
// run needs.  It is shared read-only across projects.
type Registry struct {
	Deadlines []*Deadline
	Distances []*DeadlineDistance
}

// ForSizeClass returns the registry's deadlines applicable to a size class,
// in canonical index order.
func (r *Registry) ForSizeClass(sc SizeClass) []*Deadline {
	var out []*Deadline
	for _, d := range r.Deadlines {
		if d.SizeClass == sc {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// ScheduleResult is the outcome of one scheduling run: the full new row set
// plus the deltas the caller persists and audits.  The engine itself never
// touches storage.
type ScheduleResult struct {
	Rows    []*ProjectDeadline
	Created []*ProjectDeadline
	Deleted []*ProjectDeadline
	Changes []DateChange
}

// Scheduler resolves every applicable deadline of a project in dependency
// order.
type Scheduler struct {
	registry *Registry
	branches *BranchResolver
	log      logging.Logger
}

func NewScheduler(registry *Registry, branches *BranchResolver, log logging.Logger) *Scheduler {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Scheduler{registry: registry, branches: branches, log: log}
}

// applicable reports whether the deadline applies to the project under the
// current data.  Phase opt-in always gates; the deadline's own condition
// attributes gate only non-initial runs, so that the initial pass creates
// rows for deadlines that become applicable once earlier data exists.
func (s *Scheduler) applicable(d *Deadline, env *EvalEnv, initial bool) bool {
	if d.Phase != nil && !env.Project.OptedInto(d.Phase) {
		return false
	}
	if initial || len(d.ConditionAttributes) == 0 {
		return true
	}
	for _, attr := range d.ConditionAttributes {
		if env.CheckCondition(attr) {
			return true
		}
	}
	return false
}

// ApplicableDeadlines computes the applicable deadline set for the project.
func (s *Scheduler) ApplicableDeadlines(env *EvalEnv, initial bool) []*Deadline {
	var out []*Deadline
	for _, d := range s.registry.ForSizeClass(env.Project.SizeClass) {
		if s.applicable(d, env, initial) {
			out = append(out, d)
		}
	}
	return out
}

// calculations picks the branch set for the run kind.  Initial runs fall
// back to the update branches when no initial branches are defined.
func calculations(d *Deadline, initial bool) []*CalculationBranch {
	if initial && len(d.InitialCalculations) > 0 {
		return d.InitialCalculations
	}
	return d.UpdateCalculations
}

// protected reports whether the row must not be overwritten: a manual edit
// cleared its generated flag, or the deadline is confirmed (locked) in the
// current data.
func protected(row *ProjectDeadline, d *Deadline, env *EvalEnv) bool {
	if row != nil && !row.Generated {
		return true
	}
	return env.Confirmed(d)
}

// UpdateDeadlines runs a full scheduling pass and returns the new row set
// with its deltas.  Existing rows whose deadline fell out of the applicable
// set are deleted; newly-applicable deadlines get fresh generated rows.
// Attribute-bound deadlines mirror their attribute value.  The rest resolve
// recursively in dependency order with one retry pass.  The caller persists
// the result inside its own transaction.
func (s *Scheduler) UpdateDeadlines(
	ctx context.Context,
	project *Project,
	existing []*ProjectDeadline,
	initial bool,
) *ScheduleResult {
	env := NewEvalEnv(project, nil)
	return s.run(ctx, env, existing, initial, nil)
}

// PreviewDeadlines resolves the schedule against a hypothetical attribute
// overlay without persisting anything, returning the dates keyed by deadline
// ID.  Deadlines bound to an attribute named in confirmedFields keep their
// stored date.
func (s *Scheduler) PreviewDeadlines(
	ctx context.Context,
	project *Project,
	existing []*ProjectDeadline,
	overlay map[string]interface{},
	confirmedFields []string,
) map[string]*time.Time {
	env := NewEvalEnv(project, overlay)
	confirmed := make(map[string]struct{}, len(confirmedFields))
	for _, f := range confirmedFields {
		confirmed[f] = struct{}{}
	}

	// Work on copies; preview must leave the stored rows untouched.
	rows := make([]*ProjectDeadline, len(existing))
	for i, row := range existing {
		clone := *row
		rows[i] = &clone
	}
	result := s.run(ctx, env, rows, false, confirmed)

	dates := make(map[string]*time.Time, len(result.Rows))
	for _, row := range result.Rows {
		dates[row.DeadlineID] = row.Date
	}
	return dates
}

func (s *Scheduler) run(
	ctx context.Context,
	env *EvalEnv,
	existing []*ProjectDeadline,
	initial bool,
	previewConfirmed map[string]struct{},
) *ScheduleResult {
	deadlines := s.ApplicableDeadlines(env, initial)
	byID := make(map[string]*Deadline, len(deadlines))
	for _, d := range deadlines {
		byID[d.ID] = d
	}

	// Only preview runs restrict branch bases to the applicable set;
	// committed runs resolve against every stored deadline.
	var valid map[string]struct{}
	if previewConfirmed != nil {
		valid = make(map[string]struct{}, len(deadlines))
		for _, d := range deadlines {
			valid[d.ID] = struct{}{}
		}
	}

	result := &ScheduleResult{}

	// Reconcile the row set with the applicable deadlines.
	rows := make(map[string]*ProjectDeadline, len(deadlines))
	for _, row := range existing {
		if _, ok := byID[row.DeadlineID]; !ok {
			result.Deleted = append(result.Deleted, row)
			continue
		}
		rows[row.DeadlineID] = row
		env.SetDeadlineDate(row.DeadlineID, row.Date)
	}
	for _, d := range deadlines {
		if _, ok := rows[d.ID]; ok {
			continue
		}
		row := &ProjectDeadline{
			ID:         uuid.NewString(),
			ProjectID:  env.Project.ID,
			DeadlineID: d.ID,
			Generated:  true,
		}
		rows[d.ID] = row
		result.Created = append(result.Created, row)
	}

	// previewLocked marks deadlines that keep their stored date during a
	// preview run.
	previewLocked := func(d *Deadline) bool {
		if previewConfirmed == nil || d.Attribute == nil {
			return false
		}
		_, ok := previewConfirmed[d.Attribute.Identifier]
		return ok
	}

	set := func(d *Deadline, date *time.Time) {
		row := rows[d.ID]
		if protected(row, d, env) || previewLocked(d) {
			env.SetDeadlineDate(d.ID, row.Date)
			return
		}
		if !datesEqual(row.Date, date) {
			result.Changes = append(result.Changes, DateChange{Deadline: d, Old: row.Date, New: date})
		}
		row.Date = date
		env.SetDeadlineDate(d.ID, date)
	}

	// Attribute-bound deadlines mirror raw data; the "null" sentinel maps to
	// an actual null.
	var computed []*Deadline
	for _, d := range deadlines {
		if d.Attribute == nil {
			computed = append(computed, d)
			continue
		}
		v, ok := env.AttributeValue(d.Attribute.Identifier)
		if !ok {
			set(d, nil)
			continue
		}
		if t, isDate := ParseDateValue(v); isDate {
			t := t
			set(d, &t)
		} else {
			set(d, nil)
		}
	}

	resolved := make(map[string]bool, len(computed))
	stack := make(map[string]bool, len(computed))
	var failed []*Deadline

	var resolve func(d *Deadline)
	resolve = func(d *Deadline) {
		if resolved[d.ID] {
			return
		}
		if stack[d.ID] {
			// Dependency cycle in the rule data: fail this node instead of
			// recursing forever.
			s.log.Warn("deadline dependency cycle",
				logging.String("project", env.Project.ID),
				logging.String("deadline", d.ID))
			resolved[d.ID] = true
			set(d, nil)
			failed = append(failed, d)
			return
		}
		stack[d.ID] = true
		for _, dep := range dependsOn(calculations(d, initial)) {
			if _, ok := byID[dep.ID]; ok && dep.Attribute == nil {
				resolve(dep)
			}
		}
		delete(stack, d.ID)
		if resolved[d.ID] {
			return
		}

		date := s.branches.Resolve(ctx, d, calculations(d, initial), env, valid)
		set(d, date)
		resolved[d.ID] = true
		if date == nil {
			failed = append(failed, d)
		}
	}

	for _, d := range computed {
		resolve(d)
	}

	// Retry pass: sibling ordering within the first pass may have left a
	// dependency stale.
	for _, d := range failed {
		if date := s.branches.Resolve(ctx, d, calculations(d, initial), env, valid); date != nil {
			set(d, date)
		}
	}

	for _, d := range deadlines {
		result.Rows = append(result.Rows, rows[d.ID])
	}
	return result
}

func datesEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
