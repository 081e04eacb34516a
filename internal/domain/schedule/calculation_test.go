package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProject(attrs map[string]interface{}) *Project {
	return &Project{
		ID:            "proj-1",
		Name:          "Pasilan asemakaava",
		SizeClass:     SizeM,
		CreatedAt:     Date(2024, time.January, 15),
		AttributeData: attrs,
	}
}

func TestCalculate_BaseDeadlinePlusConstant(t *testing.T) {
	ev := NewEvaluator(newTestResolver())
	k := &Deadline{ID: "K"}
	calc := &DateCalculation{BaseDeadline: k, Constant: 14}

	env := NewEvalEnv(testProject(nil), nil)
	kDate := Date(2024, time.March, 1)
	env.SetDeadlineDate("K", &kDate)

	got := ev.Calculate(context.Background(), calc, env, nil)
	require.NotNil(t, got)
	assert.Equal(t, Date(2024, time.March, 15), *got)
}

func TestCalculate_BaseAttribute(t *testing.T) {
	ev := NewEvaluator(newTestResolver())
	calc := &DateCalculation{
		BaseAttribute: &Attribute{Identifier: "oas_esillaolo_alkaa"},
		Constant:      7,
	}

	env := NewEvalEnv(testProject(map[string]interface{}{
		"oas_esillaolo_alkaa": "2024-02-01",
	}), nil)

	got := ev.Calculate(context.Background(), calc, env, nil)
	require.NotNil(t, got)
	assert.Equal(t, Date(2024, time.February, 8), *got)
}

func TestCalculate_MissingBaseIsNil(t *testing.T) {
	ev := NewEvaluator(newTestResolver())
	env := NewEvalEnv(testProject(nil), nil)

	attrCalc := &DateCalculation{BaseAttribute: &Attribute{Identifier: "puuttuva"}}
	assert.Nil(t, ev.Calculate(context.Background(), attrCalc, env, nil))

	dlCalc := &DateCalculation{BaseDeadline: &Deadline{ID: "K"}}
	assert.Nil(t, ev.Calculate(context.Background(), dlCalc, env, nil))
}

func TestCalculate_PreviewAttributeTakesPrecedence(t *testing.T) {
	ev := NewEvaluator(newTestResolver())
	calc := &DateCalculation{
		BaseAttribute: &Attribute{Identifier: "oas_esillaolo_alkaa"},
	}

	env := NewEvalEnv(
		testProject(map[string]interface{}{"oas_esillaolo_alkaa": "2024-02-01"}),
		map[string]interface{}{"oas_esillaolo_alkaa": "2024-03-01"},
	)

	got := ev.Calculate(context.Background(), calc, env, nil)
	require.NotNil(t, got)
	assert.Equal(t, Date(2024, time.March, 1), *got)
}

func TestCalculate_PoolWalkedConstant(t *testing.T) {
	pool := &DateType{
		Identifier: "kokoukset",
		Dates: []time.Time{
			Date(2024, time.March, 4),
			Date(2024, time.March, 11),
			Date(2024, time.March, 18),
		},
	}
	ev := NewEvaluator(newTestResolver(pool))
	k := &Deadline{ID: "K"}
	calc := &DateCalculation{BaseDeadline: k, Constant: 2, DateType: pool}

	env := NewEvalEnv(testProject(nil), nil)
	kDate := Date(2024, time.March, 4)
	env.SetDeadlineDate("K", &kDate)

	got := ev.Calculate(context.Background(), calc, env, nil)
	require.NotNil(t, got)
	assert.Equal(t, Date(2024, time.March, 18), *got)
}

func TestCalculate_AuxiliaryOffsets(t *testing.T) {
	ev := NewEvaluator(newTestResolver())
	k := &Deadline{ID: "K"}
	calc := &DateCalculation{
		BaseDeadline: k,
		Constant:     10,
		Attributes: []CalculationAttribute{
			{Attribute: &Attribute{Identifier: "lisäaika"}},
			{Attribute: &Attribute{Identifier: "kiirehtiminen"}, Subtract: true},
			{Attribute: &Attribute{Identifier: "ei_numero"}},
		},
	}

	env := NewEvalEnv(testProject(map[string]interface{}{
		"lisäaika":      5,
		"kiirehtiminen": float64(2),
		"ei_numero":     "paljon", // silently ignored
	}), nil)
	kDate := Date(2024, time.March, 1)
	env.SetDeadlineDate("K", &kDate)

	got := ev.Calculate(context.Background(), calc, env, nil)
	require.NotNil(t, got)
	assert.Equal(t, Date(2024, time.March, 14), *got)
}

func TestCalculate_SnapsToResultPool(t *testing.T) {
	pool := &DateType{
		Identifier: "esilläolopäivät",
		Dates: []time.Time{
			Date(2024, time.March, 20),
			Date(2024, time.March, 27),
		},
	}
	ev := NewEvaluator(newTestResolver(pool))
	k := &Deadline{ID: "K"}
	calc := &DateCalculation{BaseDeadline: k, Constant: 14}

	env := NewEvalEnv(testProject(nil), nil)
	kDate := Date(2024, time.March, 1)
	env.SetDeadlineDate("K", &kDate)

	got := ev.Calculate(context.Background(), calc, env, pool)
	require.NotNil(t, got)
	assert.Equal(t, Date(2024, time.March, 20), *got)
}
