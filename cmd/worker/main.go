// Worker entry point: consumes recalculation requests from Kafka and runs
// the scheduling engine against the database.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/civicplan/planschedule/internal/bootstrap"
	"github.com/civicplan/planschedule/internal/config"
	redisinfra "github.com/civicplan/planschedule/internal/infrastructure/database/redis"
	"github.com/civicplan/planschedule/internal/infrastructure/messaging/kafka"
	"github.com/civicplan/planschedule/internal/infrastructure/monitoring/logging"
)

// fullRunLockTTL bounds how long a crashed worker can block full
// recalculations on other instances.
const fullRunLockTTL = 30 * time.Minute

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: environment only)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	if len(cfg.Kafka.Brokers) == 0 {
		fmt.Fprintln(os.Stderr, "configuration error: worker requires kafka.brokers")
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	logger.Info("starting planschedule worker",
		logging.Any("brokers", cfg.Kafka.Brokers))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.New(ctx, cfg, logger, bootstrap.Options{})
	if err != nil {
		logger.Fatal("startup failed", logging.Err(err))
	}
	defer rt.Close()

	handler := recalculationHandler(rt, logger)
	consumer := kafka.NewRecalculationConsumer(cfg.Kafka, handler, logger)
	defer consumer.Close()

	if err := consumer.Run(ctx); err != nil {
		logger.Error("consumer stopped", logging.Err(err))
		os.Exit(1)
	}
	logger.Info("worker stopped")
}

// recalculationHandler runs one request.  An empty project ID means a full
// run over every project; full runs are serialized across worker instances
// through a Redis lock when one is available.
func recalculationHandler(rt *bootstrap.Runtime, logger logging.Logger) kafka.RecalculationHandler {
	return func(ctx context.Context, req kafka.RecalculationRequest) error {
		if req.ProjectID != "" {
			result, err := rt.Service.RecalculateProject(ctx, req.ProjectID, false)
			if err != nil {
				return err
			}
			logger.Info("project recalculated",
				logging.String("project_id", req.ProjectID),
				logging.String("reason", req.Reason),
				logging.Int("changed", result.Changed))
			return nil
		}

		if rt.Redis != nil {
			mutex := redisinfra.NewMutex(rt.Redis, "recalculate-all", fullRunLockTTL)
			acquired, err := mutex.TryLock(ctx)
			if err != nil {
				return err
			}
			if !acquired {
				logger.Info("full recalculation already running elsewhere, skipping",
					logging.String("reason", req.Reason))
				return nil
			}
			defer func() {
				if err := mutex.Unlock(ctx); err != nil {
					logger.Warn("releasing full-run lock", logging.Err(err))
				}
			}()
		}

		results, err := rt.Service.RecalculateAll(ctx)
		if err != nil {
			return err
		}
		logger.Info("full recalculation finished",
			logging.String("reason", req.Reason),
			logging.Int("projects", len(results)))
		return nil
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.LoadFromEnv()
}

func buildLogger(cfg config.LogConfig) (logging.Logger, error) {
	format := "json"
	if cfg.Format == "text" {
		format = "console"
	}
	output := cfg.Output
	if output == "" {
		output = "stdout"
	}
	return logging.NewLogger(logging.LogConfig{
		Level:       cfg.Level,
		Format:      format,
		OutputPaths: []string{output},
	})
}
