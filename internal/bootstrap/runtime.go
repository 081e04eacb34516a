// Package bootstrap assembles the scheduling engine from configuration: the
// database, the cached calendar resolver, the audit producer, and the
// application service.  All entry points (API server, worker, CLI) build
// their runtime here so the wiring stays in one place.
package bootstrap

import (
	"context"

	appschedule "github.com/civicplan/planschedule/internal/application/schedule"
	"github.com/civicplan/planschedule/internal/config"
	"github.com/civicplan/planschedule/internal/domain/calendar"
	domain "github.com/civicplan/planschedule/internal/domain/schedule"
	"github.com/civicplan/planschedule/internal/infrastructure/database/postgres"
	"github.com/civicplan/planschedule/internal/infrastructure/database/postgres/repositories"
	redisinfra "github.com/civicplan/planschedule/internal/infrastructure/database/redis"
	"github.com/civicplan/planschedule/internal/infrastructure/messaging/kafka"
	"github.com/civicplan/planschedule/internal/infrastructure/monitoring/logging"
	"github.com/civicplan/planschedule/pkg/errors"
)

// Options selects optional pieces of the runtime.
type Options struct {
	// Migrate applies pending schema migrations before anything else.
	Migrate bool

	// Metrics receives engine observations; nil disables instrumentation.
	Metrics appschedule.Metrics
}

// Runtime holds the assembled engine and the connections behind it.
type Runtime struct {
	Config  *config.Config
	Logger  logging.Logger
	DB      *postgres.Connection
	Redis   *redisinfra.Client
	Audit   *kafka.AuditProducer
	Service appschedule.Service

	// Registry and resolver are exposed for entry points that need direct
	// engine access, such as the reference snapshot importer.
	Registry *domain.Registry
	Resolver *domain.DateTypeResolver
}

// New builds the full runtime.  Reference data is loaded from the newest
// published snapshot; starting without one is an error.
func New(ctx context.Context, cfg *config.Config, logger logging.Logger, opts Options) (*Runtime, error) {
	if opts.Migrate {
		dsn := postgres.BuildDSN(cfg.Database)
		if err := postgres.RunMigrations(dsn, cfg.Database.MigrationPath); err != nil {
			return nil, errors.Wrap(err, errors.CodeDatabaseError, "schema migration failed")
		}
	}

	conn, err := postgres.NewConnection(cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{Config: cfg, Logger: logger, DB: conn}
	if err := rt.assemble(ctx, opts); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) assemble(ctx context.Context, opts Options) error {
	cfg := rt.Config
	db := rt.DB.DB()

	refs := repositories.NewReferenceRepository(db, rt.Logger)
	registry, err := refs.LoadRegistry(ctx)
	if err != nil {
		return err
	}
	dateTypes, err := refs.LoadDateTypes(ctx)
	if err != nil {
		return err
	}
	phases, err := refs.Phases(ctx)
	if err != nil {
		return err
	}

	var cache domain.DateCache
	if cfg.Scheduler.CacheBackend == "redis" {
		client, err := redisinfra.NewClient(cfg.Redis, rt.Logger)
		if err != nil {
			return err
		}
		rt.Redis = client
		cache = redisinfra.NewDateCache(client, rt.Logger)
	} else {
		cache = domain.NewMemoryDateCache()
	}

	resolver := domain.NewDateTypeResolver(calendar.NewFinland(), cache, dateTypes, rt.Logger)
	resolver.SetCacheTTL(cfg.Scheduler.DatePoolTTL)

	branches := domain.NewBranchResolver(domain.NewEvaluator(resolver))
	scheduler := domain.NewScheduler(registry, branches, rt.Logger)
	validator := domain.NewDistanceValidator(resolver)

	projects := repositories.NewProjectRepository(db, func(id string) *domain.Phase {
		return phases[id]
	}, rt.Logger)
	rows := repositories.NewProjectDeadlineRepository(db, rt.Logger)

	var audit appschedule.AuditEmitter
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewAuditProducer(cfg.Kafka, rt.Logger)
		rt.Audit = producer
		audit = producer
	}

	rt.Registry = registry
	rt.Resolver = resolver
	rt.Service = appschedule.NewService(
		projects, rows, registry,
		scheduler, branches, resolver, validator,
		audit, opts.Metrics, rt.Logger,
	)
	return nil
}

// Close releases every connection the runtime holds.  Safe to call on a
// partially assembled runtime.
func (rt *Runtime) Close() {
	if rt.Audit != nil {
		if err := rt.Audit.Close(); err != nil {
			rt.Logger.Warn("closing audit producer", logging.Err(err))
		}
	}
	if rt.Redis != nil {
		if err := rt.Redis.Close(); err != nil {
			rt.Logger.Warn("closing redis client", logging.Err(err))
		}
	}
	if rt.DB != nil {
		if err := rt.DB.Close(); err != nil {
			rt.Logger.Warn("closing database", logging.Err(err))
		}
	}
}
