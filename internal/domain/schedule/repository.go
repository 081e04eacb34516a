package schedule

import (
	"context"
)

// ProjectRepository defines the persistence contract for project snapshots.
type ProjectRepository interface {
	GetByID(ctx context.Context, id string) (*Project, error)
	ListIDs(ctx context.Context) ([]string, error)

	// SetAttribute writes one attribute value into the project's data.  A
	// nil value stores the explicit-null sentinel.
	SetAttribute(ctx context.Context, projectID, identifier string, value interface{}) error
}

// ProjectDeadlineRepository defines the persistence contract for per-project
// deadline rows.  The scheduler computes whole-set deltas; callers apply
// them inside one transaction.
type ProjectDeadlineRepository interface {
	ListByProject(ctx context.Context, projectID string) ([]*ProjectDeadline, error)
	GetByDeadline(ctx context.Context, projectID, deadlineID string) (*ProjectDeadline, error)
	Create(ctx context.Context, rows ...*ProjectDeadline) error
	Update(ctx context.Context, row *ProjectDeadline) error
	Delete(ctx context.Context, ids ...string) error
}

// ReferenceRepository loads the administrator-authored reference data.  The
// data is read once per process start (or on explicit reload) and shared
// read-only.
type ReferenceRepository interface {
	LoadRegistry(ctx context.Context) (*Registry, error)
	LoadDateTypes(ctx context.Context) (map[string]*DateType, error)
}
