package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBranchResolver() *BranchResolver {
	return NewBranchResolver(NewEvaluator(newTestResolver()))
}

// branchTo builds a branch computing base deadline date plus constant days.
func branchTo(base *Deadline, constant, index int, conds ...*Attribute) *CalculationBranch {
	return &CalculationBranch{
		Calculation: &DateCalculation{BaseDeadline: base, Constant: constant},
		Conditions:  conds,
		Index:       index,
	}
}

func TestResolve_BoundaryTakesLatestSatisfiedDate(t *testing.T) {
	r := newTestBranchResolver()
	k1 := &Deadline{ID: "K1"}
	k2 := &Deadline{ID: "K2"}

	env := NewEvalEnv(testProject(nil), nil)
	d1 := Date(2024, time.May, 1)
	d2 := Date(2024, time.June, 10)
	env.SetDeadlineDate("K1", &d1)
	env.SetDeadlineDate("K2", &d2)

	branches := []*CalculationBranch{
		branchTo(k1, 0, 2), // higher priority, earlier date
		branchTo(k2, 0, 1),
	}

	boundary := &Deadline{
		ID:            "x_vaihe_paattyy",
		DeadlineTypes: []DeadlineType{TypePhaseEnd},
	}
	got := r.Resolve(context.Background(), boundary, branches, env, nil)
	require.NotNil(t, got)
	assert.Equal(t, Date(2024, time.June, 10), *got)

	ordinary := &Deadline{ID: "tavallinen", DeadlineTypes: []DeadlineType{TypeMilestone}}
	got = r.Resolve(context.Background(), ordinary, branches, env, nil)
	require.NotNil(t, got)
	assert.Equal(t, Date(2024, time.May, 1), *got, "ordinary deadline follows priority, not date order")
}

func TestResolve_ConditionsGateBranches(t *testing.T) {
	r := newTestBranchResolver()
	k := &Deadline{ID: "K"}

	env := NewEvalEnv(testProject(map[string]interface{}{
		"jatkettu_esillaolo": true,
		"peruttu":            false,
	}), nil)
	kDate := Date(2024, time.April, 1)
	env.SetDeadlineDate("K", &kDate)

	d := &Deadline{ID: "D"}

	// Highest-priority branch requires an unset attribute and is skipped.
	branches := []*CalculationBranch{
		branchTo(k, 30, 3, &Attribute{Identifier: "puuttuva"}),
		branchTo(k, 14, 2, &Attribute{Identifier: "jatkettu_esillaolo"}),
		branchTo(k, 7, 1),
	}
	got := r.Resolve(context.Background(), d, branches, env, nil)
	require.NotNil(t, got)
	assert.Equal(t, Date(2024, time.April, 15), *got)

	// A falsy condition blocks the branch it negates.
	negated := []*CalculationBranch{
		{
			Calculation:   &DateCalculation{BaseDeadline: k, Constant: 14},
			NotConditions: []*Attribute{{Identifier: "jatkettu_esillaolo"}},
			Index:         2,
		},
		branchTo(k, 7, 1),
	}
	got = r.Resolve(context.Background(), d, negated, env, nil)
	require.NotNil(t, got)
	assert.Equal(t, Date(2024, time.April, 8), *got)
}

func TestResolve_UnresolvableBaseFallsThrough(t *testing.T) {
	r := newTestBranchResolver()
	k := &Deadline{ID: "K"}

	env := NewEvalEnv(testProject(nil), nil)
	kDate := Date(2024, time.March, 1)
	env.SetDeadlineDate("K", &kDate)

	d := &Deadline{ID: "D", DeadlineTypes: []DeadlineType{TypeMilestone}}

	// The top branch's base attribute has no value yet; the next branch
	// supplies the date instead of the whole deadline resolving to nil.
	branches := []*CalculationBranch{
		{
			Calculation: &DateCalculation{
				BaseAttribute: &Attribute{Identifier: "lautakunnan_paiva"},
				Constant:      7,
			},
			Index: 2,
		},
		branchTo(k, 14, 1),
	}
	got := r.Resolve(context.Background(), d, branches, env, nil)
	require.NotNil(t, got)
	assert.Equal(t, Date(2024, time.March, 15), *got)

	// With every base missing the deadline stays unresolved.
	bare := NewEvalEnv(testProject(nil), nil)
	assert.Nil(t, r.Resolve(context.Background(), d, branches, bare, nil))
}

func TestResolve_AllConditionsMustHold(t *testing.T) {
	r := newTestBranchResolver()
	k := &Deadline{ID: "K"}

	env := NewEvalEnv(testProject(map[string]interface{}{"a": true}), nil)
	kDate := Date(2024, time.April, 1)
	env.SetDeadlineDate("K", &kDate)

	branches := []*CalculationBranch{
		branchTo(k, 14, 2, &Attribute{Identifier: "a"}, &Attribute{Identifier: "b"}),
		branchTo(k, 7, 1, &Attribute{Identifier: "a"}),
	}
	got := r.Resolve(context.Background(), &Deadline{ID: "D"}, branches, env, nil)
	require.NotNil(t, got)
	assert.Equal(t, Date(2024, time.April, 8), *got)
}

func TestResolve_PhaseOptOutIsNil(t *testing.T) {
	r := newTestBranchResolver()
	k := &Deadline{ID: "K"}
	env := NewEvalEnv(testProject(nil), nil)
	kDate := Date(2024, time.April, 1)
	env.SetDeadlineDate("K", &kDate)

	d := &Deadline{
		ID:    "periaatteet_alkaa",
		Phase: &Phase{ID: "ph-periaatteet", OptIn: OptInPrinciples},
	}
	assert.Nil(t, r.Resolve(context.Background(), d, []*CalculationBranch{branchTo(k, 7, 1)}, env, nil))

	env.Project.CreatePrinciples = true
	assert.NotNil(t, r.Resolve(context.Background(), d, []*CalculationBranch{branchTo(k, 7, 1)}, env, nil))
}

func TestResolve_DefaultToCreatedAt(t *testing.T) {
	r := newTestBranchResolver()
	env := NewEvalEnv(testProject(nil), nil)

	d := &Deadline{ID: "kaynnistys", DefaultToCreatedAt: true}
	got := r.Resolve(context.Background(), d, nil, env, nil)
	require.NotNil(t, got)
	assert.Equal(t, Date(2024, time.January, 15), *got)
}

func TestResolve_ValidSetSkipsRemovedBases(t *testing.T) {
	r := newTestBranchResolver()
	gone := &Deadline{ID: "poistunut"}
	k := &Deadline{ID: "K"}

	env := NewEvalEnv(testProject(nil), nil)
	goneDate := Date(2024, time.March, 1)
	kDate := Date(2024, time.April, 1)
	env.SetDeadlineDate("poistunut", &goneDate)
	env.SetDeadlineDate("K", &kDate)

	branches := []*CalculationBranch{
		branchTo(gone, 0, 2),
		branchTo(k, 0, 1),
	}
	valid := map[string]struct{}{"K": {}, "D": {}}
	got := r.Resolve(context.Background(), &Deadline{ID: "D"}, branches, env, valid)
	require.NotNil(t, got)
	assert.Equal(t, Date(2024, time.April, 1), *got)
}

func TestExplain_TracesEveryBranch(t *testing.T) {
	r := newTestBranchResolver()
	k := &Deadline{ID: "K"}
	env := NewEvalEnv(testProject(nil), nil)
	kDate := Date(2024, time.April, 1)
	env.SetDeadlineDate("K", &kDate)

	branches := []*CalculationBranch{
		branchTo(k, 7, 1),
		branchTo(k, 14, 2, &Attribute{Identifier: "puuttuva"}),
	}
	d := &Deadline{ID: "D", DefaultToCreatedAt: true}

	traces := r.Explain(context.Background(), d, branches, env, nil)
	require.Len(t, traces, 2)

	// Descending priority; the created-at shortcut does not apply here.
	assert.Equal(t, 2, traces[0].Index)
	assert.False(t, traces[0].Satisfied)
	assert.Nil(t, traces[0].Date)

	assert.Equal(t, 1, traces[1].Index)
	assert.True(t, traces[1].Satisfied)
	require.NotNil(t, traces[1].Date)
	assert.Equal(t, Date(2024, time.April, 8), *traces[1].Date)
}
