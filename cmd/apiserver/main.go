// API server entry point for the planschedule deadline engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/civicplan/planschedule/internal/bootstrap"
	"github.com/civicplan/planschedule/internal/config"
	"github.com/civicplan/planschedule/internal/infrastructure/monitoring/logging"
	"github.com/civicplan/planschedule/internal/infrastructure/monitoring/prometheus"
	httpserver "github.com/civicplan/planschedule/internal/interfaces/http"
	"github.com/civicplan/planschedule/internal/interfaces/http/handlers"
	"github.com/civicplan/planschedule/internal/interfaces/http/middleware"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: environment only)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	logger.Info("starting planschedule api server",
		logging.Int("port", cfg.Server.Port),
		logging.String("cache_backend", cfg.Scheduler.CacheBackend))

	gin.SetMode(cfg.Server.Mode)

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            prometheus.Namespace,
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger)
	if err != nil {
		logger.Fatal("metrics init failed", logging.Err(err))
	}
	appMetrics := prometheus.NewAppMetrics(collector)

	ctx := context.Background()
	rt, err := bootstrap.New(ctx, cfg, logger, bootstrap.Options{
		Migrate: true,
		Metrics: prometheus.NewEngineMetrics(appMetrics),
	})
	if err != nil {
		logger.Fatal("startup failed", logging.Err(err))
	}
	defer rt.Close()

	health := handlers.NewHealthHandler(logger)
	health.Register("postgres", handlers.PingerFunc(rt.DB.HealthCheck))
	if rt.Redis != nil {
		health.Register("redis", handlers.PingerFunc(rt.Redis.Ping))
	}

	routerCfg := httpserver.RouterConfig{
		ScheduleHandler:     handlers.NewScheduleHandler(rt.Service, logger),
		DateTypeHandler:     handlers.NewDateTypeHandler(rt.Service, logger),
		HealthHandler:       health,
		PrivilegeMiddleware: middleware.NewPrivilegeMiddleware(cfg.Server.PrivilegeHeader),
		CORSMiddleware:      middleware.NewCORSMiddleware(middleware.DefaultCORSConfig()),
		LoggingMiddleware:   middleware.NewLoggingMiddleware(logger),
		MetricsMiddleware:   middleware.NewMetricsMiddleware(appMetrics),
	}
	if cfg.Metrics.Enabled {
		routerCfg.MetricsCollector = collector
		routerCfg.MetricsPath = cfg.Metrics.Path
	}

	srv := httpserver.NewServer(cfg.Server, httpserver.NewRouter(routerCfg), logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("shutdown signal received", logging.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", logging.Err(err))
		}
	}

	if err := srv.Stop(context.Background()); err != nil {
		logger.Error("shutdown error", logging.Err(err))
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
