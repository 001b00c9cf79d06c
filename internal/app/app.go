// Package app assembles the stores, brokers and services shared by the
// api and worker binaries.
package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/internal/repository/sqlstore"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/messaging/redis"
)

// NewLogger builds the process logger and installs it as zerolog's global.
func NewLogger(cfg config.LogConfig) *logger.Logger {
	l := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		Console:    cfg.Console,
	})
	log.Logger = l.ZL
	return l
}

// OpenStore connects the configured store. SQL stores are migrated first when
// database.auto_migrate is set.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig, l *logger.Logger) (repository.Store, error) {
	if strings.EqualFold(cfg.Driver, "memory") {
		l.Warn("using in-memory store; data is lost on exit")
		return memory.New(memory.WithTreatments(model.DefaultTreatments()...)), nil
	}

	db, err := sqlstore.NewDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if _, err := migrate(ctx, db, l); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	store, err := sqlstore.New(db, cfg.TxRetries)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	l.Info("connected to database", "driver", cfg.Driver, "host", cfg.Host, "name", cfg.Name)
	return store, nil
}

// Migrate applies pending schema migrations and returns how many ran.
func Migrate(ctx context.Context, cfg config.DatabaseConfig, l *logger.Logger) (int, error) {
	if strings.EqualFold(cfg.Driver, "memory") {
		return 0, fmt.Errorf("the memory store has no schema to migrate")
	}
	db, err := sqlstore.NewDB(ctx, cfg)
	if err != nil {
		return 0, err
	}
	defer db.Close()
	return migrate(ctx, db, l)
}

func migrate(ctx context.Context, db *sqlx.DB, l *logger.Logger) (int, error) {
	m, err := sqlstore.NewMigrator(db)
	if err != nil {
		return 0, err
	}
	n, err := m.Up(ctx)
	if err != nil {
		return n, fmt.Errorf("failed to migrate: %w", err)
	}
	l.Info("migrations applied", "count", n)
	return n, nil
}

// NewBroker connects to Redis when enabled and otherwise logs events locally.
func NewBroker(ctx context.Context, cfg config.RedisConfig, l *logger.Logger) (messaging.Broker, error) {
	if !cfg.Enabled {
		return messaging.NewLogBroker(l), nil
	}
	return redis.NewRedisBroker(ctx, redis.Config{
		URL:           cfg.URL,
		MaxRetries:    cfg.MaxRetries,
		RetryBackoff:  cfg.RetryBackoff,
		PoolSize:      cfg.PoolSize,
		MinIdleConns:  cfg.MinIdleConns,
		ChannelPrefix: cfg.ChannelPrefix,
	}, l)
}
