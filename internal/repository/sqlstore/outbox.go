package sqlstore

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/pkg/errors"
)

type outboxRepository struct{ repos }

// outboxRow scans the payload as plain bytes; drivers disagree on whether JSON
// columns come back as string or []byte.
type outboxRow struct {
	ID           uuid.UUID          `db:"id"`
	EventType    string             `db:"event_type"`
	Payload      []byte             `db:"payload"`
	Status       model.OutboxStatus `db:"status"`
	ErrorMessage *string            `db:"error_message"`
	RetryCount   int                `db:"retry_count"`
	RetryAt      *time.Time         `db:"retry_at"`
	CreatedAt    time.Time          `db:"created_at"`
	UpdatedAt    time.Time          `db:"updated_at"`
	ProcessedAt  *time.Time         `db:"processed_at"`
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil || event.Payload == nil {
		return errors.Validation("event payload cannot be nil")
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.Status = model.OutboxStatusPending
	event.CreatedAt = now()
	event.UpdatedAt = event.CreatedAt

	_, err := r.q.ExecContext(ctx, r.q.Rebind(`
		INSERT INTO outbox_events (id, event_type, payload, status, retry_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)`),
		event.ID.String(), event.EventType, string(event.Payload), event.Status, event.CreatedAt, event.UpdatedAt,
	)
	if err != nil {
		return storageErr("create outbox event", err)
	}
	return nil
}

func (r *outboxRepository) GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	rows := []*outboxRow{}
	if err := r.selectAll(ctx, &rows, "get pending events", `
		SELECT id, event_type, payload, status, error_message, retry_count, retry_at,
			created_at, updated_at, processed_at
		FROM outbox_events
		WHERE status = ? AND (retry_at IS NULL OR retry_at <= ?)
		ORDER BY created_at
		LIMIT ? FOR UPDATE SKIP LOCKED`,
		model.OutboxStatusPending, now(), limit,
	); err != nil {
		return nil, err
	}

	events := make([]*model.OutboxEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, &model.OutboxEvent{
			ID:           row.ID,
			EventType:    row.EventType,
			Payload:      row.Payload,
			Status:       row.Status,
			ErrorMessage: row.ErrorMessage,
			RetryCount:   row.RetryCount,
			RetryAt:      row.RetryAt,
			CreatedAt:    row.CreatedAt,
			UpdatedAt:    row.UpdatedAt,
			ProcessedAt:  row.ProcessedAt,
		})
	}
	return events, nil
}

func (r *outboxRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error {
	ts := now()
	var processedAt *time.Time
	if status == model.OutboxStatusProcessed {
		processedAt = &ts
	}
	retries := 0
	if errorMessage != nil {
		retries = 1
	}
	return r.execOne(ctx, "outbox event", "update", `
		UPDATE outbox_events
		SET status = ?, error_message = ?, retry_at = ?, processed_at = ?,
			retry_count = retry_count + ?, updated_at = ?
		WHERE id = ?`,
		status, errorMessage, retryAt, processedAt, retries, ts, id.String(),
	)
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, r.q.Rebind(`
		DELETE FROM outbox_events WHERE status = ? AND processed_at < ?`),
		model.OutboxStatusProcessed, before,
	)
	if err != nil {
		return 0, storageErr("delete processed events", err)
	}
	return res.RowsAffected()
}
