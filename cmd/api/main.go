package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-api/internal/app"
	"github.com/jwalitptl/clinic-api/internal/config"
	appointmentHandler "github.com/jwalitptl/clinic-api/internal/handler/appointment"
	authHandler "github.com/jwalitptl/clinic-api/internal/handler/auth"
	clinicHandler "github.com/jwalitptl/clinic-api/internal/handler/clinic"
	"github.com/jwalitptl/clinic-api/internal/handler/health"
	patientHandler "github.com/jwalitptl/clinic-api/internal/handler/patient"
	paymentHandler "github.com/jwalitptl/clinic-api/internal/handler/payment"
	"github.com/jwalitptl/clinic-api/internal/handler/prometheus"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/router"
	appointmentService "github.com/jwalitptl/clinic-api/internal/service/appointment"
	authService "github.com/jwalitptl/clinic-api/internal/service/auth"
	clinicService "github.com/jwalitptl/clinic-api/internal/service/clinic"
	"github.com/jwalitptl/clinic-api/internal/service/conflict"
	eventService "github.com/jwalitptl/clinic-api/internal/service/event"
	patientService "github.com/jwalitptl/clinic-api/internal/service/patient"
	paymentService "github.com/jwalitptl/clinic-api/internal/service/payment"
	"github.com/jwalitptl/clinic-api/pkg/auth"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/worker"
)

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-api",
		Short: "Clinic appointment API",
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to config.yml")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(hashPasscodeCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configFile)
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configFile)
			if err != nil {
				return err
			}
			l := app.NewLogger(cfg.Log)
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()
			_, err = app.Migrate(ctx, cfg.Database, l)
			return err
		},
	}
}

func hashPasscodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-passcode <passcode>",
		Short: "Print the bcrypt hash to use as auth.admin_passcode_hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := authService.HashPasscode(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func runServer(cfg *config.Config) error {
	l := app.NewLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := app.OpenStore(ctx, cfg.Database, l)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	m := metrics.NewMetrics("clinic")

	checker := conflict.NewChecker(
		conflict.WithLocation(cfg.Clinic.Location()),
		conflict.WithMetrics(m),
	)
	events := eventService.NewEventService()

	appointmentSvc := appointmentService.NewService(store, checker, events, l, m)
	patientSvc := patientService.NewService(store, l)
	clinicSvc := clinicService.NewService(store, cfg.Clinic.TreatmentCacheTTL, l)
	paymentSvc := paymentService.NewService(store)
	authSvc := authService.NewService(store, patientSvc,
		auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry),
		cfg.Auth.AdminPasscodeHash, l)

	checks := map[string]health.Pinger{"database": store}

	if cfg.Outbox.Embedded {
		broker, err := app.NewBroker(ctx, cfg.Redis, l)
		if err != nil {
			return fmt.Errorf("failed to create broker: %w", err)
		}
		defer broker.Close()
		if p, ok := broker.(health.Pinger); ok {
			checks["broker"] = p
		}

		processor, err := worker.NewOutboxProcessor(store, broker, outboxConfig(cfg.Outbox), l, m)
		if err != nil {
			return err
		}
		go processor.Start(ctx)
	}

	r := router.NewRouter(
		l,
		middleware.NewAuthMiddleware(authSvc),
		authHandler.NewHandler(authSvc),
		health.NewHandler(checks),
		prometheus.New(m),
		[]router.ProtectedHandler{
			appointmentHandler.NewHandler(appointmentSvc),
			patientHandler.NewHandler(patientSvc, appointmentSvc),
			clinicHandler.NewHandler(clinicSvc, appointmentSvc),
			paymentHandler.NewHandler(paymentSvc),
		},
		router.RouterConfig{
			Mode:        cfg.Server.Mode,
			RateLimit:   rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst:   cfg.RateLimit.Burst,
			RateEnabled: cfg.RateLimit.Enabled,
			CORSConfig: middleware.CORSConfig{
				AllowOrigins: cfg.CORS.AllowedOrigins,
				AllowMethods: cfg.CORS.AllowedMethods,
				AllowHeaders: cfg.CORS.AllowedHeaders,
			},
			RequestTimeout: cfg.Server.RequestTimeout,
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server exited properly")
	return nil
}

func outboxConfig(cfg config.OutboxConfig) worker.OutboxProcessorConfig {
	return worker.OutboxProcessorConfig{
		BatchSize:     cfg.BatchSize,
		PollInterval:  cfg.PollInterval,
		RetryAttempts: cfg.RetryAttempts,
		RetryDelay:    cfg.RetryDelay,
		MaxDeliveries: cfg.MaxDeliveries,
		Retention:     cfg.Retention,
		ClaimTimeout:  cfg.ClaimTimeout,
	}
}
