package schedule

import (
	"context"
	"sort"
	"time"
)

// BranchResolver selects and evaluates the applicable calculation branch for
// a deadline.
type BranchResolver struct {
	eval *Evaluator
}

func NewBranchResolver(eval *Evaluator) *BranchResolver {
	return &BranchResolver{eval: eval}
}

// branchSatisfied checks a branch's applicability: every condition attribute
// must be truthy and every negated condition falsy.  A branch with no
// conditions always applies.
func branchSatisfied(b *CalculationBranch, env *EvalEnv) bool {
	for _, attr := range b.Conditions {
		if !env.CheckCondition(attr) {
			return false
		}
	}
	for _, attr := range b.NotConditions {
		if env.CheckCondition(attr) {
			return false
		}
	}
	return true
}

// byPriority returns the branches ordered by descending priority index.
func byPriority(branches []*CalculationBranch) []*CalculationBranch {
	out := make([]*CalculationBranch, len(branches))
	copy(out, branches)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index > out[j].Index })
	return out
}

// skipBranch reports whether the branch's base deadline falls outside the
// currently-valid deadline set.  Relevant during preview recomputation, where
// a branch may reference a deadline the hypothetical data removed.
func skipBranch(b *CalculationBranch, valid map[string]struct{}) bool {
	if valid == nil {
		return false
	}
	base := b.Calculation.BaseDeadline
	if base == nil {
		return false
	}
	_, ok := valid[base.ID]
	return !ok
}

// Resolve computes a deadline's date.  Deadlines of a phase the project has
// not opted into resolve to nil unconditionally.  Deadlines defaulting to
// the creation timestamp return it directly.  Otherwise branches are scanned
// in descending priority: phase-boundary deadlines take the latest date
// among all satisfied branches, all others take the first satisfied branch's
// result and stop.  A satisfied branch whose base value does not resolve is
// passed over so a lower-priority branch can supply the date.  valid, when
// non-nil, restricts which base deadlines branches may draw from.
func (r *BranchResolver) Resolve(
	ctx context.Context,
	d *Deadline,
	branches []*CalculationBranch,
	env *EvalEnv,
	valid map[string]struct{},
) *time.Time {
	if d.Phase != nil && !env.Project.OptedInto(d.Phase) {
		return nil
	}
	if d.DefaultToCreatedAt {
		created := Normalize(env.Project.CreatedAt)
		return &created
	}

	var latest *time.Time
	for _, b := range byPriority(branches) {
		if skipBranch(b, valid) {
			continue
		}
		if !branchSatisfied(b, env) {
			continue
		}
		if !r.eval.Computable(b.Calculation, env) {
			continue
		}
		date := r.eval.Calculate(ctx, b.Calculation, env, d.DateType)
		if !d.IsBoundary() {
			return date
		}
		if date != nil && (latest == nil || date.After(*latest)) {
			latest = date
		}
	}
	return latest
}

// BranchTrace describes one branch's evaluation for debugging.
type BranchTrace struct {
	Index       int
	Description string
	Skipped     bool
	Satisfied   bool
	Date        *time.Time
}

// Explain evaluates every branch of a deadline without the creation-date
// shortcut, returning a per-branch trace.  Intended for administrative
// introspection of rule data, never for scheduling.
func (r *BranchResolver) Explain(
	ctx context.Context,
	d *Deadline,
	branches []*CalculationBranch,
	env *EvalEnv,
	valid map[string]struct{},
) []BranchTrace {
	traces := make([]BranchTrace, 0, len(branches))
	optedOut := d.Phase != nil && !env.Project.OptedInto(d.Phase)

	for _, b := range byPriority(branches) {
		trace := BranchTrace{Index: b.Index, Description: b.Calculation.Description}
		switch {
		case optedOut || skipBranch(b, valid):
			trace.Skipped = true
		case branchSatisfied(b, env):
			trace.Satisfied = true
			trace.Date = r.eval.Calculate(ctx, b.Calculation, env, d.DateType)
		}
		traces = append(traces, trace)
	}
	return traces
}
