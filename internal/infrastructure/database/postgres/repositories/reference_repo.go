package repositories

import (
	"context"
	"database/sql"

	domain "github.com/civicplan/planschedule/internal/domain/schedule"
	"github.com/civicplan/planschedule/internal/infrastructure/monitoring/logging"
	"github.com/civicplan/planschedule/pkg/errors"
)

// ReferenceRepository loads the administrator-authored reference data.  The
// admin import tool publishes each revision as one versioned JSON snapshot;
// the service reads the newest snapshot at startup and decodes it into the
// linked in-memory graph the engine operates on.
type ReferenceRepository struct {
	db     queryExecutor
	logger logging.Logger
}

func NewReferenceRepository(db queryExecutor, log logging.Logger) *ReferenceRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &ReferenceRepository{db: db, logger: log}
}

func (r *ReferenceRepository) latestSnapshot(ctx context.Context) ([]byte, int64, error) {
	var (
		id      int64
		payload []byte
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, payload FROM reference_snapshots ORDER BY id DESC LIMIT 1`).
		Scan(&id, &payload)
	if err == sql.ErrNoRows {
		return nil, 0, errors.New(errors.CodeNotFound, "no reference snapshot has been published")
	}
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeDatabaseError, "failed to load reference snapshot")
	}
	return payload, id, nil
}

// LoadRegistry decodes the newest snapshot into the deadline and distance
// registry.
func (r *ReferenceRepository) LoadRegistry(ctx context.Context) (*domain.Registry, error) {
	payload, id, err := r.latestSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	decoded, err := decodeSnapshot(payload)
	if err != nil {
		return nil, err
	}

	r.logger.Info("Loaded reference registry",
		logging.Int64("snapshot_id", id),
		logging.Int("deadlines", len(decoded.registry.Deadlines)),
		logging.Int("distances", len(decoded.registry.Distances)),
	)
	return decoded.registry, nil
}

// LoadDateTypes decodes the newest snapshot's date pool definitions.
func (r *ReferenceRepository) LoadDateTypes(ctx context.Context) (map[string]*domain.DateType, error) {
	payload, id, err := r.latestSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	decoded, err := decodeSnapshot(payload)
	if err != nil {
		return nil, err
	}

	r.logger.Info("Loaded date pool definitions",
		logging.Int64("snapshot_id", id),
		logging.Int("date_types", len(decoded.dateTypes)),
	)
	return decoded.dateTypes, nil
}

// Phases returns the decoded phase set of the newest snapshot, keyed by ID.
// The project repository uses it to resolve stored phase references.
func (r *ReferenceRepository) Phases(ctx context.Context) (map[string]*domain.Phase, error) {
	payload, _, err := r.latestSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	decoded, err := decodeSnapshot(payload)
	if err != nil {
		return nil, err
	}
	return decoded.phases, nil
}
