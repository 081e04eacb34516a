package schedule

import (
	"context"
	"time"
)

// Evaluator computes candidate dates from calculation rules against a
// project's evaluation environment.
type Evaluator struct {
	resolver *DateTypeResolver
}

func NewEvaluator(resolver *DateTypeResolver) *Evaluator {
	return &Evaluator{resolver: resolver}
}

// baseDate resolves the calculation's base value: a date-valued attribute or
// another deadline's date, with the environment handling preview precedence.
// A nil result means the calculation is not yet computable.
func (ev *Evaluator) baseDate(calc *DateCalculation, env *EvalEnv) *time.Time {
	if calc.BaseAttribute != nil {
		if v, ok := env.AttributeValue(calc.BaseAttribute.Identifier); ok {
			if t, valid := ParseDateValue(v); valid {
				return &t
			}
		}
		return nil
	}
	return env.DeadlineDate(calc.BaseDeadline)
}

// Computable reports whether the calculation's base value resolves in env.
// Branch selection skips branches with a missing base so a lower-priority
// branch can supply the date.
func (ev *Evaluator) Computable(calc *DateCalculation, env *EvalEnv) bool {
	return ev.baseDate(calc, env) != nil
}

// Calculate evaluates one calculation rule.  The constant offset walks the
// calculation's date pool when one is configured, plain calendar days
// otherwise.  Auxiliary attribute offsets apply as calendar days, skipping
// non-numeric values.  When resultPool is non-nil the final date snaps to
// its closest valid date.
func (ev *Evaluator) Calculate(
	ctx context.Context,
	calc *DateCalculation,
	env *EvalEnv,
	resultPool *DateType,
) *time.Time {
	base := ev.baseDate(calc, env)
	if base == nil {
		return nil
	}

	var date *time.Time
	if calc.DateType != nil {
		date = ev.resolver.ValidDaysFrom(ctx, calc.DateType, *base, calc.Constant)
		if date == nil {
			return nil
		}
	} else {
		d := base.AddDate(0, 0, calc.Constant)
		date = &d
	}

	for _, aux := range calc.Attributes {
		v, ok := env.AttributeValue(aux.Attribute.Identifier)
		if !ok {
			continue
		}
		days, numeric := NumericDays(v)
		if !numeric {
			continue
		}
		if aux.Subtract {
			days = -days
		}
		d := date.AddDate(0, 0, days)
		date = &d
	}

	if resultPool != nil {
		return ev.resolver.ClosestValidDate(ctx, resultPool, *date)
	}
	return date
}
