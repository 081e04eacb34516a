// Package schedule implements the deadline scheduling and date-calculation
// engine for planning projects.  Administrator-authored reference data
// (deadline definitions, date pools, recurrence rules, calculation branches,
// distance constraints) is shared read-only by all projects; the engine
// computes per-project deadline dates from it.
package schedule

import (
	"time"

	"github.com/civicplan/planschedule/pkg/types/common"
)

// DateFormat is the serialization format for date-valued attribute data.
const DateFormat = "2006-01-02"

// NullValue is the sentinel stored in attribute data to mean an explicit
// null (as opposed to a missing key).
const NullValue = "null"

// ─────────────────────────────────────────────────────────────────────────────
// Reference data
// ─────────────────────────────────────────────────────────────────────────────

// DeadlineType tags the role a deadline plays in the phase timeline drawing.
type DeadlineType string

const (
	TypePhaseStart  DeadlineType = "phase_start"
	TypePhaseEnd    DeadlineType = "phase_end"
	TypeDashedStart DeadlineType = "dashed_start"
	TypeDashedEnd   DeadlineType = "dashed_end"
	TypeInnerStart  DeadlineType = "inner_start"
	TypeInnerEnd    DeadlineType = "inner_end"
	TypeMilestone   DeadlineType = "milestone"
)

// SizeClass classifies a project and selects which deadline set and phase
// sequence applies to it.
type SizeClass string

const (
	SizeXS SizeClass = "XS"
	SizeS  SizeClass = "S"
	SizeM  SizeClass = "M"
	SizeL  SizeClass = "L"
	SizeXL SizeClass = "XL"
)

// PhaseOptIn identifies an optional phase a project must explicitly opt into.
type PhaseOptIn string

const (
	OptInNone       PhaseOptIn = ""
	OptInPrinciples PhaseOptIn = "principles"
	OptInDraft      PhaseOptIn = "draft"
)

// Phase is one step of a size class's phase sequence.
type Phase struct {
	ID        string
	Name      string
	Index     int
	SizeClass SizeClass
	Color     string
	ColorCode string

	// OptIn marks conditionally-created phases: deadlines of such a phase
	// only apply when the project has opted into the phase.
	OptIn PhaseOptIn
}

// Attribute identifies a field in the external attribute store.  When
// StaticProperty is set, condition checks fall back to the named project
// field if the attribute data carries no value.
type Attribute struct {
	Identifier     string
	StaticProperty string
}

// DateType is a named pool of valid calendar days, computable per year.
type DateType struct {
	Identifier       string
	Name             string
	BaseDateTypes    []*DateType
	BusinessDaysOnly bool
	Dates            []time.Time
	AutomaticDates   []*AutomaticDate

	// ExcludeSelected inverts the pool: all days of the year except the
	// listed and automatic ones, intersected with base-pool membership when
	// base pools exist.
	ExcludeSelected bool

	// ForcedDates are always unioned into the pool regardless of exclusion.
	ForcedDates []time.Time
}

// DateCalculation computes one candidate date: base value plus a constant day
// offset, optionally walked along a date pool instead of plain calendar days,
// plus auxiliary attribute offsets.
type DateCalculation struct {
	Description   string
	BaseAttribute *Attribute
	BaseDeadline  *Deadline
	Constant      int

	// DateType, when set, makes the constant offset count valid days of this
	// pool instead of calendar days.
	DateType *DateType

	Attributes []CalculationAttribute
}

// CalculationAttribute is an auxiliary numeric day offset read from
// attribute data.  Non-numeric values are ignored silently.
type CalculationAttribute struct {
	Attribute *Attribute
	Subtract  bool
}

// CalculationBranch binds a DateCalculation to a deadline together with its
// applicability conditions and priority.  A deadline's branches in priority
// order form its candidate computations.
type CalculationBranch struct {
	Calculation *DateCalculation

	// Conditions must all hold truthy for the branch to apply.
	Conditions []*Attribute

	// NotConditions must all hold falsy for the branch to apply.
	NotConditions []*Attribute

	// Index is the branch priority; higher indexes are considered first.
	Index int
}

// Deadline defines a common milestone shared by all projects of a size class.
type Deadline struct {
	ID           string
	Abbreviation string

	// Attribute, when set, binds the deadline's date to a raw data field:
	// the scheduler mirrors the attribute value into the project deadline.
	Attribute *Attribute

	// ConfirmationAttribute, when truthy in the project's data, locks the
	// deadline against automatic recomputation.
	ConfirmationAttribute *Attribute

	EditPrivilege common.Privilege
	DeadlineTypes []DeadlineType
	DateType      *DateType

	// ConditionAttributes gate whether the deadline applies at all: the
	// deadline applies when any of them is set.
	ConditionAttributes []*Attribute

	Phase     *Phase
	SizeClass SizeClass

	InitialCalculations []*CalculationBranch
	UpdateCalculations  []*CalculationBranch

	ErrorPastDue             string
	ErrorDateTypeMismatch    string
	ErrorMinDistancePrevious string
	WarningMinDistanceNext   string

	// DefaultToCreatedAt makes the project's creation date the deadline value
	// when no calculation produces one.
	DefaultToCreatedAt bool

	DeadlineGroup string

	// Index defines the canonical ordering of deadlines within a size class.
	Index int
}

// Editable reports whether any caller privilege can edit this deadline.
func (d *Deadline) Editable() bool {
	return d.EditPrivilege != common.PrivilegeNone
}

// EditableBy reports whether a caller holding the given privilege may edit
// this deadline's date.
func (d *Deadline) EditableBy(p common.Privilege) bool {
	if !d.Editable() {
		return false
	}
	return p.AtLeast(d.EditPrivilege)
}

// IsBoundary reports whether the deadline marks a phase boundary.  Boundary
// deadlines resolve branch ambiguity by taking the latest satisfied date
// (the outer bound of the span) instead of the highest-priority branch.
func (d *Deadline) IsBoundary() bool {
	for _, t := range d.DeadlineTypes {
		if t == TypePhaseStart || t == TypePhaseEnd {
			return true
		}
	}
	return false
}

// HasType reports whether the deadline carries the given type tag.
func (d *Deadline) HasType(t DeadlineType) bool {
	for _, dt := range d.DeadlineTypes {
		if dt == t {
			return true
		}
	}
	return false
}

// InitialDependsOn returns the distinct deadlines the initial calculations
// derive their base dates from.
func (d *Deadline) InitialDependsOn() []*Deadline {
	return dependsOn(d.InitialCalculations)
}

// UpdateDependsOn returns the distinct deadlines the update calculations
// derive their base dates from.
func (d *Deadline) UpdateDependsOn() []*Deadline {
	return dependsOn(d.UpdateCalculations)
}

func dependsOn(branches []*CalculationBranch) []*Deadline {
	seen := make(map[string]struct{}, len(branches))
	var out []*Deadline
	for _, b := range branches {
		base := b.Calculation.BaseDeadline
		if base == nil {
			continue
		}
		if _, ok := seen[base.ID]; ok {
			continue
		}
		seen[base.ID] = struct{}{}
		out = append(out, base)
	}
	return out
}

// DeadlineDistance is a minimum-separation constraint between an ordered pair
// of deadlines within a size class.
type DeadlineDistance struct {
	Deadline         *Deadline
	PreviousDeadline *Deadline

	// MinDistance is the required day count between the previous deadline and
	// this one, counted in DateType valid days when DateType is set, plain
	// calendar days otherwise.
	MinDistance int

	DateType *DateType

	// Conditions activate the constraint: when non-empty, the constraint only
	// applies if any of the attributes is set.
	Conditions []*Attribute

	Index int
}

// ─────────────────────────────────────────────────────────────────────────────
// Per-project data
// ─────────────────────────────────────────────────────────────────────────────

// Project is the snapshot of a planning project the engine operates on.  All
// inputs are materialized before scheduling; the engine performs no I/O on
// the project itself.
type Project struct {
	ID        string
	Name      string
	SizeClass SizeClass
	CreatedAt time.Time

	// Phase is the project's current phase; used for the out-of-sync flag on
	// serialized deadlines.
	Phase *Phase

	// CreatePrinciples and CreateDraft opt the project into the conditionally
	// created phases.
	CreatePrinciples bool
	CreateDraft      bool

	// AttributeData is the externally-stored key→value project data.
	AttributeData map[string]interface{}
}

// OptedInto reports whether the project has opted into the phase.  Phases
// without an opt-in requirement always apply.
func (p *Project) OptedInto(ph *Phase) bool {
	if ph == nil {
		return true
	}
	switch ph.OptIn {
	case OptInPrinciples:
		return p.CreatePrinciples
	case OptInDraft:
		return p.CreateDraft
	default:
		return true
	}
}

// StaticProperty resolves an attribute's static-property fallback against the
// project's own fields.
func (p *Project) StaticProperty(name string) (interface{}, bool) {
	switch name {
	case "create_principles":
		return p.CreatePrinciples, true
	case "create_draft":
		return p.CreateDraft, true
	case "created_at":
		return p.CreatedAt, true
	default:
		return nil, false
	}
}

// ProjectDeadline is the per-project instantiation of a Deadline.
type ProjectDeadline struct {
	ID         string
	ProjectID  string
	DeadlineID string

	// Date is the resolved deadline date; nil while not yet computable.
	Date *time.Time

	// Generated is true while the date is produced by the rule engine; a
	// manual user edit clears it, which protects the row from recomputation.
	Generated bool

	// EditedAt is the timestamp of the last manual edit.
	EditedAt *time.Time
}

// DateChange records an old/new date pair produced by a scheduling run.  The
// caller emits these to the audit log; the engine never writes the log
// itself.
type DateChange struct {
	Deadline *Deadline
	Old      *time.Time
	New      *time.Time
}
