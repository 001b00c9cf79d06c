package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

type OutboxProcessorConfig struct {
	BatchSize    int
	PollInterval time.Duration
	// RetryAttempts is the number of immediate publish attempts per poll.
	RetryAttempts int
	RetryDelay    time.Duration
	// MaxDeliveries is the number of polls an event gets before it is marked FAILED.
	MaxDeliveries int
	// Retention is how long PROCESSED events are kept; zero keeps them forever.
	Retention time.Duration
	// ClaimTimeout hides a claimed event from other polls while it is being
	// published. An event whose processor died becomes due again afterwards.
	ClaimTimeout time.Duration
}

type OutboxProcessor struct {
	store   repository.Store
	broker  messaging.Broker
	config  OutboxProcessorConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewOutboxProcessor(
	store repository.Store,
	broker messaging.Broker,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) (*OutboxProcessor, error) {
	if config.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be greater than 0")
	}
	if config.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be greater than 0")
	}
	if config.RetryAttempts <= 0 {
		config.RetryAttempts = 1
	}
	if config.MaxDeliveries <= 0 {
		config.MaxDeliveries = 5
	}
	if floor := time.Duration(config.RetryAttempts)*config.RetryDelay + config.PollInterval; config.ClaimTimeout < floor {
		config.ClaimTimeout = floor
	}

	return &OutboxProcessor{
		store:   store,
		broker:  broker,
		config:  config,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}, nil
}

// Start polls until ctx is cancelled.
func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting outbox processor",
		"batch_size", p.config.BatchSize,
		"poll_interval", p.config.PollInterval.String())

	lastCleanup := p.now()
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error(err, "Failed to process events")
			}
			if p.config.Retention > 0 && p.now().Sub(lastCleanup) >= time.Hour {
				if _, err := p.Cleanup(ctx); err != nil {
					p.logger.Error(err, "Failed to clean up processed events")
				}
				lastCleanup = p.now()
			}
		}
	}
}

// ProcessBatch publishes one batch of due events and returns how many were
// delivered. Events are claimed in a short transaction and published outside of
// it, so a slow broker never holds the store.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	events, err := p.claim(ctx)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, event := range events {
		ok, err := p.processEvent(ctx, event)
		if err != nil {
			return delivered, err
		}
		if ok {
			delivered++
		}
	}
	return delivered, nil
}

// claim locks the due events and pushes their retry_at past the claim timeout.
func (p *OutboxProcessor) claim(ctx context.Context) ([]*model.OutboxEvent, error) {
	var events []*model.OutboxEvent
	err := p.store.WithTx(ctx, func(tx repository.Repositories) error {
		pending, err := tx.Outbox().GetPendingEventsWithLock(ctx, p.config.BatchSize)
		if err != nil {
			p.metrics.DatabaseOperations.WithLabelValues("get_pending_events", "error").Inc()
			return fmt.Errorf("failed to get pending events: %w", err)
		}
		p.metrics.DatabaseOperations.WithLabelValues("get_pending_events", "success").Inc()

		leaseUntil := p.now().Add(p.config.ClaimTimeout)
		for _, event := range pending {
			if err := tx.Outbox().UpdateStatus(ctx, event.ID, model.OutboxStatusPending, nil, &leaseUntil); err != nil {
				return fmt.Errorf("failed to claim event %s: %w", event.ID, err)
			}
		}
		events = pending
		return nil
	})
	return events, err
}

// processEvent reports whether the event was delivered. Only a failure to
// record the outcome is returned as an error.
func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) (bool, error) {
	err := retry(ctx, p.config.RetryAttempts, p.config.RetryDelay, func() error {
		return p.broker.Publish(ctx, event.EventType, event.Payload)
	})

	if err == nil {
		p.metrics.OutboxEventsProcessed.Inc()
		p.metrics.BrokerPublishes.WithLabelValues(event.EventType, "success").Inc()
		if err := p.store.Outbox().UpdateStatus(ctx, event.ID, model.OutboxStatusProcessed, nil, nil); err != nil {
			return false, fmt.Errorf("failed to mark event %s processed: %w", event.ID, err)
		}
		return true, nil
	}

	p.metrics.BrokerPublishes.WithLabelValues(event.EventType, "error").Inc()
	p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
	errStr := err.Error()

	status := model.OutboxStatusPending
	retryAt := p.now().Add(p.backoff(event.RetryCount))
	retryAtPtr := &retryAt
	if event.RetryCount+1 >= p.config.MaxDeliveries {
		status = model.OutboxStatusFailed
		retryAtPtr = nil
		p.metrics.OutboxEventsFailed.Inc()
	}

	p.logger.Error(err, "Failed to publish event",
		"event_id", event.ID.String(),
		"event_type", event.EventType,
		"attempt", event.RetryCount+1,
		"status", string(status))

	if err := p.store.Outbox().UpdateStatus(ctx, event.ID, status, &errStr, retryAtPtr); err != nil {
		return false, fmt.Errorf("failed to record failure of event %s: %w", event.ID, err)
	}
	return false, nil
}

// backoff doubles the poll interval per previous delivery, capped at an hour.
func (p *OutboxProcessor) backoff(previous int) time.Duration {
	d := p.config.PollInterval
	for i := 0; i < previous && d < time.Hour; i++ {
		d *= 2
	}
	if d > time.Hour {
		d = time.Hour
	}
	return d
}

// Cleanup drops PROCESSED events older than the retention window.
func (p *OutboxProcessor) Cleanup(ctx context.Context) (int64, error) {
	if p.config.Retention <= 0 {
		return 0, nil
	}
	n, err := p.store.Outbox().DeleteProcessedBefore(ctx, p.now().Add(-p.config.Retention))
	if err != nil {
		p.metrics.DatabaseOperations.WithLabelValues("delete_processed_events", "error").Inc()
		return 0, err
	}
	p.metrics.DatabaseOperations.WithLabelValues("delete_processed_events", "success").Inc()
	if n > 0 {
		p.logger.Info("Cleaned up processed events", "count", n)
	}
	return n, nil
}

func retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < attempts-1 && delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return err
}
