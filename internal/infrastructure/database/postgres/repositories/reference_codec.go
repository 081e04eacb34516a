package repositories

import (
	"encoding/json"
	"time"

	domain "github.com/civicplan/planschedule/internal/domain/schedule"
	"github.com/civicplan/planschedule/pkg/errors"
	"github.com/civicplan/planschedule/pkg/types/common"
)

// Snapshot document format.  References between objects are by identifier;
// decodeSnapshot links them into the pointer graph the engine uses.  Date
// strings are "2006-01-02" except AutomaticDate ranges, which keep their
// native "dd.mm." encoding.

type refAttribute struct {
	Identifier     string `json:"identifier"`
	StaticProperty string `json:"static_property,omitempty"`
}

type refPhase struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Index     int    `json:"index"`
	SizeClass string `json:"size_class"`
	Color     string `json:"color,omitempty"`
	ColorCode string `json:"color_code,omitempty"`
	OptIn     string `json:"opt_in,omitempty"`
}

type refAutomaticDate struct {
	Name          string `json:"name"`
	Weekdays      []int  `json:"weekdays,omitempty"`
	Week          int    `json:"week,omitempty"`
	StartDate     string `json:"start_date,omitempty"`
	EndDate       string `json:"end_date,omitempty"`
	BeforeHoliday string `json:"before_holiday,omitempty"`
	AfterHoliday  string `json:"after_holiday,omitempty"`
}

type refDateType struct {
	Identifier       string             `json:"identifier"`
	Name             string             `json:"name"`
	BaseDateTypes    []string           `json:"base_date_types,omitempty"`
	BusinessDaysOnly bool               `json:"business_days_only"`
	Dates            []string           `json:"dates,omitempty"`
	AutomaticDates   []refAutomaticDate `json:"automatic_dates,omitempty"`
	ExcludeSelected  bool               `json:"exclude_selected"`
	ForcedDates      []string           `json:"forced_dates,omitempty"`
}

type refCalcAttribute struct {
	Attribute string `json:"attribute"`
	Subtract  bool   `json:"subtract"`
}

type refCalculation struct {
	Description   string             `json:"description,omitempty"`
	BaseAttribute string             `json:"base_attribute,omitempty"`
	BaseDeadline  string             `json:"base_deadline,omitempty"`
	Constant      int                `json:"constant"`
	DateType      string             `json:"date_type,omitempty"`
	Attributes    []refCalcAttribute `json:"attributes,omitempty"`
}

type refBranch struct {
	Calculation   refCalculation `json:"calculation"`
	Conditions    []string       `json:"conditions,omitempty"`
	NotConditions []string       `json:"not_conditions,omitempty"`
	Index         int            `json:"index"`
}

type refDeadline struct {
	ID                    string   `json:"id"`
	Abbreviation          string   `json:"abbreviation"`
	Attribute             string   `json:"attribute,omitempty"`
	ConfirmationAttribute string   `json:"confirmation_attribute,omitempty"`
	EditPrivilege         string   `json:"edit_privilege,omitempty"`
	DeadlineTypes         []string `json:"deadline_types,omitempty"`
	DateType              string   `json:"date_type,omitempty"`
	ConditionAttributes   []string `json:"condition_attributes,omitempty"`
	Phase                 string   `json:"phase,omitempty"`
	SizeClass             string   `json:"size_class"`

	InitialCalculations []refBranch `json:"initial_calculations,omitempty"`
	UpdateCalculations  []refBranch `json:"update_calculations,omitempty"`

	ErrorPastDue             string `json:"error_past_due,omitempty"`
	ErrorDateTypeMismatch    string `json:"error_date_type_mismatch,omitempty"`
	ErrorMinDistancePrevious string `json:"error_min_distance_previous,omitempty"`
	WarningMinDistanceNext   string `json:"warning_min_distance_next,omitempty"`

	DefaultToCreatedAt bool   `json:"default_to_created_at"`
	DeadlineGroup      string `json:"deadline_group,omitempty"`
	Index              int    `json:"index"`
}

type refDistance struct {
	Deadline         string   `json:"deadline"`
	PreviousDeadline string   `json:"previous_deadline"`
	MinDistance      int      `json:"min_distance"`
	DateType         string   `json:"date_type,omitempty"`
	Conditions       []string `json:"conditions,omitempty"`
	Index            int      `json:"index"`
}

type refSnapshot struct {
	Attributes []refAttribute `json:"attributes"`
	Phases     []refPhase     `json:"phases"`
	DateTypes  []refDateType  `json:"date_types"`
	Deadlines  []refDeadline  `json:"deadlines"`
	Distances  []refDistance  `json:"distances"`
}

// decodedSnapshot is the linked result of one snapshot document.
type decodedSnapshot struct {
	registry  *domain.Registry
	dateTypes map[string]*domain.DateType
	phases    map[string]*domain.Phase
}

func decodeSnapshot(payload []byte) (*decodedSnapshot, error) {
	var doc refSnapshot
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, errors.Wrap(err, errors.CodeSerialization, "failed to decode reference snapshot")
	}

	attrs := make(map[string]*domain.Attribute, len(doc.Attributes))
	for _, a := range doc.Attributes {
		attrs[a.Identifier] = &domain.Attribute{
			Identifier:     a.Identifier,
			StaticProperty: a.StaticProperty,
		}
	}
	attrRef := func(id string) (*domain.Attribute, error) {
		if id == "" {
			return nil, nil
		}
		a, ok := attrs[id]
		if !ok {
			return nil, errors.Newf(errors.CodeValidation, "snapshot references undefined attribute %q", id)
		}
		return a, nil
	}
	attrRefs := func(ids []string) ([]*domain.Attribute, error) {
		var out []*domain.Attribute
		for _, id := range ids {
			a, err := attrRef(id)
			if err != nil {
				return nil, err
			}
			out = append(out, a)
		}
		return out, nil
	}

	phases := make(map[string]*domain.Phase, len(doc.Phases))
	for _, p := range doc.Phases {
		phases[p.ID] = &domain.Phase{
			ID:        p.ID,
			Name:      p.Name,
			Index:     p.Index,
			SizeClass: domain.SizeClass(p.SizeClass),
			Color:     p.Color,
			ColorCode: p.ColorCode,
			OptIn:     domain.PhaseOptIn(p.OptIn),
		}
	}

	// Date types: first pass creates the pools, second pass links bases so
	// that forward references work.
	dateTypes := make(map[string]*domain.DateType, len(doc.DateTypes))
	for _, dt := range doc.DateTypes {
		pool := &domain.DateType{
			Identifier:       dt.Identifier,
			Name:             dt.Name,
			BusinessDaysOnly: dt.BusinessDaysOnly,
			ExcludeSelected:  dt.ExcludeSelected,
		}
		var err error
		if pool.Dates, err = parseDates(dt.Dates); err != nil {
			return nil, err
		}
		if pool.ForcedDates, err = parseDates(dt.ForcedDates); err != nil {
			return nil, err
		}
		for _, ad := range dt.AutomaticDates {
			auto := &domain.AutomaticDate{
				Name:          ad.Name,
				Week:          ad.Week,
				StartDate:     ad.StartDate,
				EndDate:       ad.EndDate,
				BeforeHoliday: ad.BeforeHoliday,
				AfterHoliday:  ad.AfterHoliday,
			}
			for _, wd := range ad.Weekdays {
				auto.Weekdays = append(auto.Weekdays, time.Weekday(wd))
			}
			if err := auto.Validate(); err != nil {
				return nil, err
			}
			pool.AutomaticDates = append(pool.AutomaticDates, auto)
		}
		dateTypes[dt.Identifier] = pool
	}
	dateTypeRef := func(id string) (*domain.DateType, error) {
		if id == "" {
			return nil, nil
		}
		dt, ok := dateTypes[id]
		if !ok {
			return nil, errors.Newf(errors.CodeDateTypeNotFound, "snapshot references undefined date type %q", id)
		}
		return dt, nil
	}
	for _, dt := range doc.DateTypes {
		for _, baseID := range dt.BaseDateTypes {
			base, err := dateTypeRef(baseID)
			if err != nil {
				return nil, err
			}
			dateTypes[dt.Identifier].BaseDateTypes = append(dateTypes[dt.Identifier].BaseDateTypes, base)
		}
	}

	// Deadlines: shells first so calculation branches can reference any
	// deadline as their base, independent of document order.
	deadlines := make(map[string]*domain.Deadline, len(doc.Deadlines))
	for _, d := range doc.Deadlines {
		deadlines[d.ID] = &domain.Deadline{ID: d.ID}
	}
	deadlineRef := func(id string) (*domain.Deadline, error) {
		if id == "" {
			return nil, nil
		}
		d, ok := deadlines[id]
		if !ok {
			return nil, errors.Newf(errors.CodeDeadlineNotFound, "snapshot references undefined deadline %q", id)
		}
		return d, nil
	}
	branches := func(refs []refBranch) ([]*domain.CalculationBranch, error) {
		var out []*domain.CalculationBranch
		for _, b := range refs {
			calc := &domain.DateCalculation{
				Description: b.Calculation.Description,
				Constant:    b.Calculation.Constant,
			}
			var err error
			if calc.BaseAttribute, err = attrRef(b.Calculation.BaseAttribute); err != nil {
				return nil, err
			}
			if calc.BaseDeadline, err = deadlineRef(b.Calculation.BaseDeadline); err != nil {
				return nil, err
			}
			if calc.DateType, err = dateTypeRef(b.Calculation.DateType); err != nil {
				return nil, err
			}
			for _, ca := range b.Calculation.Attributes {
				attr, err := attrRef(ca.Attribute)
				if err != nil {
					return nil, err
				}
				calc.Attributes = append(calc.Attributes, domain.CalculationAttribute{
					Attribute: attr,
					Subtract:  ca.Subtract,
				})
			}

			branch := &domain.CalculationBranch{Calculation: calc, Index: b.Index}
			if branch.Conditions, err = attrRefs(b.Conditions); err != nil {
				return nil, err
			}
			if branch.NotConditions, err = attrRefs(b.NotConditions); err != nil {
				return nil, err
			}
			out = append(out, branch)
		}
		return out, nil
	}

	registry := &domain.Registry{}
	for _, d := range doc.Deadlines {
		dl := deadlines[d.ID]
		dl.Abbreviation = d.Abbreviation
		dl.EditPrivilege = common.Privilege(d.EditPrivilege)
		dl.SizeClass = domain.SizeClass(d.SizeClass)
		dl.ErrorPastDue = d.ErrorPastDue
		dl.ErrorDateTypeMismatch = d.ErrorDateTypeMismatch
		dl.ErrorMinDistancePrevious = d.ErrorMinDistancePrevious
		dl.WarningMinDistanceNext = d.WarningMinDistanceNext
		dl.DefaultToCreatedAt = d.DefaultToCreatedAt
		dl.DeadlineGroup = d.DeadlineGroup
		dl.Index = d.Index

		var err error
		if dl.Attribute, err = attrRef(d.Attribute); err != nil {
			return nil, err
		}
		if dl.ConfirmationAttribute, err = attrRef(d.ConfirmationAttribute); err != nil {
			return nil, err
		}
		if dl.DateType, err = dateTypeRef(d.DateType); err != nil {
			return nil, err
		}
		if dl.ConditionAttributes, err = attrRefs(d.ConditionAttributes); err != nil {
			return nil, err
		}
		for _, t := range d.DeadlineTypes {
			dl.DeadlineTypes = append(dl.DeadlineTypes, domain.DeadlineType(t))
		}
		if d.Phase != "" {
			phase, ok := phases[d.Phase]
			if !ok {
				return nil, errors.Newf(errors.CodeValidation, "snapshot references undefined phase %q", d.Phase)
			}
			dl.Phase = phase
		}
		if dl.InitialCalculations, err = branches(d.InitialCalculations); err != nil {
			return nil, err
		}
		if dl.UpdateCalculations, err = branches(d.UpdateCalculations); err != nil {
			return nil, err
		}

		registry.Deadlines = append(registry.Deadlines, dl)
	}

	for _, dist := range doc.Distances {
		dd := &domain.DeadlineDistance{
			MinDistance: dist.MinDistance,
			Index:       dist.Index,
		}
		var err error
		if dd.Deadline, err = deadlineRef(dist.Deadline); err != nil {
			return nil, err
		}
		if dd.Deadline == nil {
			return nil, errors.New(errors.CodeValidation, "distance constraint is missing its deadline")
		}
		if dd.PreviousDeadline, err = deadlineRef(dist.PreviousDeadline); err != nil {
			return nil, err
		}
		if dd.PreviousDeadline == nil {
			return nil, errors.New(errors.CodeValidation, "distance constraint is missing its previous deadline")
		}
		if dd.DateType, err = dateTypeRef(dist.DateType); err != nil {
			return nil, err
		}
		if dd.Conditions, err = attrRefs(dist.Conditions); err != nil {
			return nil, err
		}
		registry.Distances = append(registry.Distances, dd)
	}

	return &decodedSnapshot{
		registry:  registry,
		dateTypes: dateTypes,
		phases:    phases,
	}, nil
}

func parseDates(values []string) ([]time.Time, error) {
	var out []time.Time
	for _, v := range values {
		d, err := time.Parse(domain.DateFormat, v)
		if err != nil {
			return nil, errors.Newf(errors.CodeValidation, "invalid date %q in reference snapshot", v).WithCause(err)
		}
		out = append(out, d)
	}
	return out, nil
}
