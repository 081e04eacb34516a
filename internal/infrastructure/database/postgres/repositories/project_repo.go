package repositories

import (
	"context"
	"database/sql"
	"encoding/json"

	domain "github.com/civicplan/planschedule/internal/domain/schedule"
	"github.com/civicplan/planschedule/internal/infrastructure/monitoring/logging"
	"github.com/civicplan/planschedule/pkg/errors"
)

// PhaseLookup resolves a phase ID against the loaded reference data.  The
// projects table stores only the phase ID; the in-memory phase graph is
// owned by the reference registry.
type PhaseLookup func(id string) *domain.Phase

// ProjectRepository persists project snapshots.
type ProjectRepository struct {
	db     queryExecutor
	phases PhaseLookup
	logger logging.Logger
}

// NewProjectRepository builds a repository over db.  phases may be nil when
// the caller does not need phase pointers resolved (tests, migrations).
func NewProjectRepository(db queryExecutor, phases PhaseLookup, log logging.Logger) *ProjectRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &ProjectRepository{db: db, phases: phases, logger: log}
}

const projectColumns = `id, name, size_class, phase_id, created_at, create_principles, create_draft, attribute_data`

func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)

	p, err := r.scanProject(row)
	if err == sql.ErrNoRows {
		return nil, errors.Newf(errors.CodeProjectNotFound, "project %s not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to load project")
	}
	return p, nil
}

func (r *ProjectRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM projects ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to list projects")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to scan project id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to iterate projects")
	}
	return ids, nil
}

// SetAttribute writes one attribute value into the project's data document.
// A nil value stores the explicit-null sentinel so downstream consumers can
// distinguish "cleared" from "never set".
func (r *ProjectRepository) SetAttribute(ctx context.Context, projectID, identifier string, value interface{}) error {
	if value == nil {
		value = domain.NullValue
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, errors.CodeSerialization, "failed to encode attribute value")
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE projects
		 SET attribute_data = jsonb_set(COALESCE(attribute_data, '{}'::jsonb), ARRAY[$2], $3::jsonb, true)
		 WHERE id = $1`,
		projectID, identifier, string(encoded))
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to set project attribute")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.Newf(errors.CodeProjectNotFound, "project %s not found", projectID)
	}

	r.logger.Debug("Set project attribute",
		logging.String("project_id", projectID),
		logging.String("attribute", identifier),
	)
	return nil
}

func (r *ProjectRepository) scanProject(s scanner) (*domain.Project, error) {
	var (
		p         domain.Project
		sizeClass string
		phaseID   sql.NullString
		rawData   []byte
	)
	if err := s.Scan(&p.ID, &p.Name, &sizeClass, &phaseID, &p.CreatedAt,
		&p.CreatePrinciples, &p.CreateDraft, &rawData); err != nil {
		return nil, err
	}

	p.SizeClass = domain.SizeClass(sizeClass)
	if phaseID.Valid && r.phases != nil {
		p.Phase = r.phases(phaseID.String)
	}

	p.AttributeData = map[string]interface{}{}
	if len(rawData) > 0 {
		if err := json.Unmarshal(rawData, &p.AttributeData); err != nil {
			return nil, err
		}
	}
	return &p, nil
}
