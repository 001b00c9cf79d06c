package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-api/internal/app"
	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/handler/health"
	"github.com/jwalitptl/clinic-api/internal/handler/prometheus"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/worker"
)

func main() {
	configFile := flag.String("config", "", "path to config.yml")
	healthAddr := flag.String("health-addr", ":8081", "address for health and metrics endpoints")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	l := app.NewLogger(cfg.Log)

	if err := run(cfg, *healthAddr, l); err != nil {
		l.Fatal(err, "Outbox worker failed")
	}
}

func run(cfg *config.Config, healthAddr string, l *logger.Logger) error {
	if strings.EqualFold(cfg.Database.Driver, "memory") {
		return errors.New("the outbox worker needs a shared SQL store; run the api with outbox.embedded instead")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := app.OpenStore(ctx, cfg.Database, l)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	broker, err := app.NewBroker(ctx, cfg.Redis, l)
	if err != nil {
		return fmt.Errorf("failed to create broker: %w", err)
	}
	defer broker.Close()

	m := metrics.NewMetrics("clinic_outbox")
	processor, err := worker.NewOutboxProcessor(store, broker, worker.OutboxProcessorConfig{
		BatchSize:     cfg.Outbox.BatchSize,
		PollInterval:  cfg.Outbox.PollInterval,
		RetryAttempts: cfg.Outbox.RetryAttempts,
		RetryDelay:    cfg.Outbox.RetryDelay,
		MaxDeliveries: cfg.Outbox.MaxDeliveries,
		Retention:     cfg.Outbox.Retention,
		ClaimTimeout:  cfg.Outbox.ClaimTimeout,
	}, l, m)
	if err != nil {
		return err
	}

	checks := map[string]health.Pinger{"database": store}
	if p, ok := broker.(health.Pinger); ok {
		checks["broker"] = p
	}
	srv := healthServer(healthAddr, checks, m)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error(err, "Health check server failed")
			stop()
		}
	}()

	processor.Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func healthServer(addr string, checks map[string]health.Pinger, m *metrics.Metrics) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	health.NewHandler(checks).RegisterRoutes(&engine.RouterGroup)
	engine.GET("/metrics", prometheus.New(m).Handler())
	return &http.Server{Addr: addr, Handler: engine, ReadTimeout: 5 * time.Second}
}
