package repositories

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/lib/pq"

	domain "github.com/civicplan/planschedule/internal/domain/schedule"
	"github.com/civicplan/planschedule/internal/infrastructure/monitoring/logging"
	"github.com/civicplan/planschedule/pkg/errors"
)

// ProjectDeadlineRepository persists per-project deadline rows.  The
// scheduler computes whole-set deltas; the application layer applies them
// through this repository inside one transaction.
type ProjectDeadlineRepository struct {
	db     queryExecutor
	logger logging.Logger
}

func NewProjectDeadlineRepository(db queryExecutor, log logging.Logger) *ProjectDeadlineRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &ProjectDeadlineRepository{db: db, logger: log}
}

const deadlineColumns = `id, project_id, deadline_id, date, generated, edited_at`

func (r *ProjectDeadlineRepository) ListByProject(ctx context.Context, projectID string) ([]*domain.ProjectDeadline, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+deadlineColumns+` FROM project_deadlines WHERE project_id = $1 ORDER BY deadline_id`,
		projectID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to list project deadlines")
	}
	defer rows.Close()

	var out []*domain.ProjectDeadline
	for rows.Next() {
		pd, err := scanProjectDeadline(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to scan project deadline")
		}
		out = append(out, pd)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to iterate project deadlines")
	}
	return out, nil
}

func (r *ProjectDeadlineRepository) GetByDeadline(ctx context.Context, projectID, deadlineID string) (*domain.ProjectDeadline, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+deadlineColumns+` FROM project_deadlines WHERE project_id = $1 AND deadline_id = $2`,
		projectID, deadlineID)

	pd, err := scanProjectDeadline(row)
	if err == sql.ErrNoRows {
		return nil, errors.Newf(errors.CodeDeadlineNotFound, "deadline %s not set for project %s", deadlineID, projectID)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to load project deadline")
	}
	return pd, nil
}

func (r *ProjectDeadlineRepository) Create(ctx context.Context, rows ...*domain.ProjectDeadline) error {
	if len(rows) == 0 {
		return nil
	}

	args := make([]interface{}, 0, len(rows)*6)
	placeholders := make([]string, 0, len(rows))
	for i, pd := range rows {
		base := i * 6
		placeholders = append(placeholders, placeholder(base, 6))
		args = append(args, pd.ID, pd.ProjectID, pd.DeadlineID, nullTime(pd.Date), pd.Generated, nullTime(pd.EditedAt))
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO project_deadlines (`+deadlineColumns+`) VALUES `+strings.Join(placeholders, ", "),
		args...)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to create project deadlines")
	}

	r.logger.Debug("Created project deadlines", logging.Int("count", len(rows)))
	return nil
}

func (r *ProjectDeadlineRepository) Update(ctx context.Context, row *domain.ProjectDeadline) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE project_deadlines SET date = $2, generated = $3, edited_at = $4 WHERE id = $1`,
		row.ID, nullTime(row.Date), row.Generated, nullTime(row.EditedAt))
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to update project deadline")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.Newf(errors.CodeDeadlineNotFound, "project deadline %s not found", row.ID)
	}
	return nil
}

func (r *ProjectDeadlineRepository) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM project_deadlines WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to delete project deadlines")
	}
	return nil
}

func scanProjectDeadline(s scanner) (*domain.ProjectDeadline, error) {
	var (
		pd       domain.ProjectDeadline
		date     sql.NullTime
		editedAt sql.NullTime
	)
	if err := s.Scan(&pd.ID, &pd.ProjectID, &pd.DeadlineID, &date, &pd.Generated, &editedAt); err != nil {
		return nil, err
	}
	if date.Valid {
		d := date.Time
		pd.Date = &d
	}
	if editedAt.Valid {
		e := editedAt.Time
		pd.EditedAt = &e
	}
	return &pd, nil
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
