// Package schedule orchestrates the scheduling engine against persistence:
// full recalculations, previews, interactive edit validation and the
// serialized schedule views the interface layer exposes.
package schedule

import (
	"context"
	"time"

	domain "github.com/civicplan/planschedule/internal/domain/schedule"
	"github.com/civicplan/planschedule/internal/infrastructure/monitoring/logging"
	"github.com/civicplan/planschedule/pkg/errors"
	"github.com/civicplan/planschedule/pkg/types/common"
)

// DeadlineView is the serialized form of one project deadline row.
type DeadlineView struct {
	DeadlineID        string     `json:"deadline_id"`
	Abbreviation      string     `json:"abbreviation"`
	DeadlineGroup     string     `json:"deadline_group,omitempty"`
	Date              *string    `json:"date"`
	Generated         bool       `json:"generated"`
	EditedAt          *time.Time `json:"edited_at,omitempty"`
	PastDue           bool       `json:"is_past_due"`
	OutOfSync         bool       `json:"out_of_sync"`
	DistanceViolation bool       `json:"distance_violation"`
	Editable          bool       `json:"editable"`
}

// ValidationResult is the outcome of an interactive single-date edit check.
type ValidationResult struct {
	Valid               bool     `json:"valid"`
	Reason              string   `json:"reason,omitempty"`
	SuggestedDate       *string  `json:"suggested_date,omitempty"`
	ConflictingDeadline string   `json:"conflicting_deadline,omitempty"`
	Warnings            []string `json:"warnings,omitempty"`
}

// RecalculateResult summarizes one scheduling run.
type RecalculateResult struct {
	ProjectID string `json:"project_id"`
	Created   int    `json:"created"`
	Deleted   int    `json:"deleted"`
	Changed   int    `json:"changed"`
}

// Metrics receives scheduling run observations.  The prometheus-backed
// implementation lives in infrastructure/monitoring.
type Metrics interface {
	SchedulingRun(initial bool, changed int, duration time.Duration)
	ValidationFailure()
}

// NopMetrics discards all observations.
type NopMetrics struct{}

func (NopMetrics) SchedulingRun(bool, int, time.Duration) {}
func (NopMetrics) ValidationFailure()                     {}

// Service exposes the scheduling use cases.
type Service interface {
	RecalculateProject(ctx context.Context, projectID string, initial bool) (*RecalculateResult, error)
	RecalculateAll(ctx context.Context) ([]RecalculateResult, error)
	PreviewSchedule(ctx context.Context, projectID string, overlay map[string]interface{}, confirmedFields []string) (map[string]*string, error)
	ValidateUserEdit(ctx context.Context, projectID, deadlineID string, date time.Time) (*ValidationResult, error)
	SetDeadlineDate(ctx context.Context, projectID, deadlineID string, date *time.Time, actor common.UserID, privilege common.Privilege) (*DeadlineView, error)
	ProjectSchedule(ctx context.Context, projectID string, privilege common.Privilege) ([]DeadlineView, error)
	DateTypeDates(ctx context.Context, identifier string, year int) ([]string, error)
	ExplainDeadline(ctx context.Context, projectID, deadlineID string) ([]domain.BranchTrace, error)
}

type service struct {
	projects  domain.ProjectRepository
	rows      domain.ProjectDeadlineRepository
	registry  *domain.Registry
	scheduler *domain.Scheduler
	branches  *domain.BranchResolver
	resolver  *domain.DateTypeResolver
	validator *domain.DistanceValidator
	audit     AuditEmitter
	metrics   Metrics
	log       logging.Logger

	// now is the clock; overridable in tests.
	now func() time.Time
}

// NewService wires the engine to its collaborators.
func NewService(
	projects domain.ProjectRepository,
	rows domain.ProjectDeadlineRepository,
	registry *domain.Registry,
	scheduler *domain.Scheduler,
	branches *domain.BranchResolver,
	resolver *domain.DateTypeResolver,
	validator *domain.DistanceValidator,
	audit AuditEmitter,
	metrics Metrics,
	log logging.Logger,
) Service {
	if audit == nil {
		audit = NopEmitter{}
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &service{
		projects:  projects,
		rows:      rows,
		registry:  registry,
		scheduler: scheduler,
		branches:  branches,
		resolver:  resolver,
		validator: validator,
		audit:     audit,
		metrics:   metrics,
		log:       log,
		now:       time.Now,
	}
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(domain.DateFormat)
	return &s
}

func (s *service) deadline(id string) (*domain.Deadline, error) {
	for _, d := range s.registry.Deadlines {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, errors.New(errors.CodeDeadlineNotFound, "deadline definition not found").WithDetail(id)
}

func (s *service) loadProject(ctx context.Context, projectID string) (*domain.Project, []*domain.ProjectDeadline, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	rows, err := s.rows.ListByProject(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	return project, rows, nil
}

// RecalculateProject runs a full scheduling pass and persists the deltas.
// The caller is expected to hold the project's transaction boundary.
func (s *service) RecalculateProject(ctx context.Context, projectID string, initial bool) (*RecalculateResult, error) {
	start := s.now()
	project, rows, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	result := s.scheduler.UpdateDeadlines(ctx, project, rows, initial)

	if len(result.Deleted) > 0 {
		ids := make([]string, len(result.Deleted))
		for i, row := range result.Deleted {
			ids[i] = row.ID
		}
		if err := s.rows.Delete(ctx, ids...); err != nil {
			return nil, err
		}
	}
	if len(result.Created) > 0 {
		if err := s.rows.Create(ctx, result.Created...); err != nil {
			return nil, err
		}
	}

	created := make(map[string]struct{}, len(result.Created))
	for _, row := range result.Created {
		created[row.ID] = struct{}{}
	}
	changedRows := make(map[string]*domain.ProjectDeadline, len(result.Changes))
	byDeadline := make(map[string]*domain.ProjectDeadline, len(result.Rows))
	for _, row := range result.Rows {
		byDeadline[row.DeadlineID] = row
	}
	for _, ch := range result.Changes {
		if row := byDeadline[ch.Deadline.ID]; row != nil {
			changedRows[row.ID] = row
		}
	}
	for id, row := range changedRows {
		if _, isNew := created[id]; isNew {
			continue
		}
		if err := s.rows.Update(ctx, row); err != nil {
			return nil, err
		}
	}

	if err := s.audit.EmitDateChanges(ctx, SystemActor, projectID, result.Changes); err != nil {
		// Audit delivery must not fail the run.
		s.log.Warn("audit emit failed",
			logging.String("project", projectID), logging.Err(err))
	}

	s.metrics.SchedulingRun(initial, len(result.Changes), s.now().Sub(start))
	s.log.Info("schedule recalculated",
		logging.String("project", projectID),
		logging.Bool("initial", initial),
		logging.Int("changed", len(result.Changes)))

	return &RecalculateResult{
		ProjectID: projectID,
		Created:   len(result.Created),
		Deleted:   len(result.Deleted),
		Changed:   len(result.Changes),
	}, nil
}

// RecalculateAll reruns scheduling for every project, skipping projects that
// fail individually.
func (s *service) RecalculateAll(ctx context.Context) ([]RecalculateResult, error) {
	ids, err := s.projects.ListIDs(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]RecalculateResult, 0, len(ids))
	for _, id := range ids {
		r, err := s.RecalculateProject(ctx, id, false)
		if err != nil {
			s.log.Error("recalculation failed",
				logging.String("project", id), logging.Err(err))
			continue
		}
		results = append(results, *r)
	}
	return results, nil
}

// PreviewSchedule resolves the schedule under a hypothetical attribute
// overlay without persisting anything.
func (s *service) PreviewSchedule(
	ctx context.Context,
	projectID string,
	overlay map[string]interface{},
	confirmedFields []string,
) (map[string]*string, error) {
	project, rows, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	dates := s.scheduler.PreviewDeadlines(ctx, project, rows, overlay, confirmedFields)
	out := make(map[string]*string, len(dates))
	for id, date := range dates {
		out[id] = formatDate(date)
	}
	return out, nil
}

// ValidateUserEdit checks a candidate date for one deadline: pool membership
// first, then minimum distances to the preceding deadlines.  Squeezed
// following deadlines come back as warnings, past-due dates too; neither
// invalidates the edit.
func (s *service) ValidateUserEdit(ctx context.Context, projectID, deadlineID string, date time.Time) (*ValidationResult, error) {
	project, rows, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	d, err := s.deadline(deadlineID)
	if err != nil {
		return nil, err
	}

	date = domain.Normalize(date)
	env := domain.NewEvalEnv(project, nil)
	dates := make(map[string]*time.Time, len(rows))
	for _, row := range rows {
		dates[row.DeadlineID] = row.Date
	}

	result := &ValidationResult{Valid: true}

	if d.DateType != nil && !s.resolver.IsValidDate(ctx, d.DateType, date) {
		result.Valid = false
		result.Reason = d.ErrorDateTypeMismatch
		if result.Reason == "" {
			result.Reason = "date is not a valid day for this deadline"
		}
		result.SuggestedDate = formatDate(s.resolver.ClosestValidDate(ctx, d.DateType, date))
		s.metrics.ValidationFailure()
		return result, nil
	}

	violations := s.validator.CheckDeadline(ctx, d, date, s.registry.Distances, env, dates)
	if len(violations) > 0 {
		v := violations[0]
		result.Valid = false
		result.Reason = v.Message
		result.SuggestedDate = formatDate(v.FirstPossible)
		if v.Constraint.PreviousDeadline != nil {
			result.ConflictingDeadline = v.Constraint.PreviousDeadline.Abbreviation
		}
		s.metrics.ValidationFailure()
		return result, nil
	}

	for _, w := range s.validator.CheckFollowing(ctx, d, date, s.registry.Distances, env, dates) {
		result.Warnings = append(result.Warnings, w.Message)
	}
	if date.Before(domain.Normalize(s.now())) && d.ErrorPastDue != "" {
		result.Warnings = append(result.Warnings, d.ErrorPastDue)
	}
	return result, nil
}

// SetDeadlineDate applies a manual edit: privilege and lock checks, full
// validation, then either an attribute write (for bound deadlines) followed
// by a recalculation, or a direct row update that clears the generated flag.
func (s *service) SetDeadlineDate(
	ctx context.Context,
	projectID, deadlineID string,
	date *time.Time,
	actor common.UserID,
	privilege common.Privilege,
) (*DeadlineView, error) {
	project, rows, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	d, err := s.deadline(deadlineID)
	if err != nil {
		return nil, err
	}
	if !d.EditableBy(privilege) {
		return nil, errors.New(errors.CodeForbidden, "insufficient privilege for this deadline").
			WithDetail(d.Abbreviation)
	}
	env := domain.NewEvalEnv(project, nil)
	if env.Confirmed(d) {
		return nil, errors.New(errors.CodeScheduleLocked, "deadline is confirmed and locked").
			WithDetail(d.Abbreviation)
	}

	if date != nil {
		check, err := s.ValidateUserEdit(ctx, projectID, deadlineID, *date)
		if err != nil {
			return nil, err
		}
		if !check.Valid {
			appErr := errors.New(errors.CodeMinDistanceViolation, check.Reason)
			if check.SuggestedDate != nil {
				appErr = appErr.WithDetail(*check.SuggestedDate)
			}
			return nil, appErr
		}
	}

	var old *time.Time
	var row *domain.ProjectDeadline
	for _, r := range rows {
		if r.DeadlineID == deadlineID {
			row = r
			old = r.Date
			break
		}
	}
	if row == nil {
		return nil, errors.New(errors.CodeDeadlineNotFound, "project has no row for this deadline").
			WithDetail(deadlineID)
	}

	if d.Attribute != nil {
		// Bound deadlines are edited through their attribute; the
		// recalculation mirrors the value back into the row.
		var value interface{}
		if date != nil {
			value = date.Format(domain.DateFormat)
		}
		if err := s.projects.SetAttribute(ctx, projectID, d.Attribute.Identifier, value); err != nil {
			return nil, err
		}
		if _, err := s.RecalculateProject(ctx, projectID, false); err != nil {
			return nil, err
		}
	} else {
		now := s.now()
		row.Date = date
		row.Generated = false
		row.EditedAt = &now
		if err := s.rows.Update(ctx, row); err != nil {
			return nil, err
		}
	}

	change := []domain.DateChange{{Deadline: d, Old: old, New: date}}
	if err := s.audit.EmitDateChanges(ctx, string(actor), projectID, change); err != nil {
		s.log.Warn("audit emit failed",
			logging.String("project", projectID), logging.Err(err))
	}

	views, err := s.ProjectSchedule(ctx, projectID, privilege)
	if err != nil {
		return nil, err
	}
	for i := range views {
		if views[i].DeadlineID == deadlineID {
			return &views[i], nil
		}
	}
	return nil, errors.New(errors.CodeDeadlineNotFound, "edited deadline missing from schedule")
}

// ProjectSchedule serializes the project's deadline rows with the derived
// display flags.
func (s *service) ProjectSchedule(ctx context.Context, projectID string, privilege common.Privilege) ([]DeadlineView, error) {
	project, rows, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	env := domain.NewEvalEnv(project, nil)
	today := domain.Normalize(s.now())

	byDeadline := make(map[string]*domain.ProjectDeadline, len(rows))
	dates := make(map[string]*time.Time, len(rows))
	for _, row := range rows {
		byDeadline[row.DeadlineID] = row
		dates[row.DeadlineID] = row.Date
	}

	ordered := s.registry.ForSizeClass(project.SizeClass)

	// A deadline is flagged past due when it, or any earlier deadline in the
	// canonical order, is unconfirmed and overdue.
	overdueSoFar := false
	var views []DeadlineView
	for _, d := range ordered {
		row, ok := byDeadline[d.ID]
		if !ok {
			continue
		}
		if row.Date != nil && row.Date.Before(today) && !env.Confirmed(d) {
			overdueSoFar = true
		}

		outOfSync := d.Phase != nil && d.Phase.SizeClass != project.SizeClass

		violation := false
		if row.Date != nil {
			violation = len(s.validator.CheckDeadline(ctx, d, *row.Date, s.registry.Distances, env, dates)) > 0
		}

		views = append(views, DeadlineView{
			DeadlineID:        d.ID,
			Abbreviation:      d.Abbreviation,
			DeadlineGroup:     d.DeadlineGroup,
			Date:              formatDate(row.Date),
			Generated:         row.Generated,
			EditedAt:          row.EditedAt,
			PastDue:           overdueSoFar,
			OutOfSync:         outOfSync,
			DistanceViolation: violation,
			Editable:          d.EditableBy(privilege),
		})
	}
	return views, nil
}

// DateTypeDates lists the serialized date pool of one date type for a year.
func (s *service) DateTypeDates(ctx context.Context, identifier string, year int) ([]string, error) {
	dt, ok := s.resolver.DateType(identifier)
	if !ok {
		return nil, errors.New(errors.CodeDateTypeNotFound, "date type not found").WithDetail(identifier)
	}
	dates := s.resolver.Dates(ctx, dt, year)
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.Format(domain.DateFormat)
	}
	return out, nil
}

// ExplainDeadline traces every update-calculation branch of a deadline for
// administrative debugging.
func (s *service) ExplainDeadline(ctx context.Context, projectID, deadlineID string) ([]domain.BranchTrace, error) {
	project, rows, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	d, err := s.deadline(deadlineID)
	if err != nil {
		return nil, err
	}
	env := domain.NewEvalEnv(project, nil)
	for _, row := range rows {
		env.SetDeadlineDate(row.DeadlineID, row.Date)
	}
	return s.branches.Explain(ctx, d, d.UpdateCalculations, env, nil), nil
}
