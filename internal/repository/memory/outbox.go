package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/pkg/errors"
)

type outboxRepository struct{ repos }

func (r outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil || event.Payload == nil {
		return errors.Validation("event payload cannot be nil")
	}
	defer r.lock()()
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.Status = model.OutboxStatusPending
	event.CreatedAt = r.store.now()
	event.UpdatedAt = event.CreatedAt
	r.store.data.outbox[event.ID] = *event
	return nil
}

func (r outboxRepository) GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	defer r.lock()()
	now := r.store.now()
	out := make([]*model.OutboxEvent, 0)
	for _, e := range r.store.data.outbox {
		if e.Status != model.OutboxStatusPending {
			continue
		}
		if e.RetryAt != nil && e.RetryAt.After(now) {
			continue
		}
		e := e
		out = append(out, &e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r outboxRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error {
	defer r.lock()()
	e, ok := r.store.data.outbox[id]
	if !ok {
		return errors.NotFound("outbox event")
	}
	now := r.store.now()
	e.Status = status
	e.ErrorMessage = errorMessage
	e.RetryAt = retryAt
	e.UpdatedAt = now
	if errorMessage != nil {
		e.RetryCount++
	}
	if status == model.OutboxStatusProcessed {
		e.ProcessedAt = &now
	}
	r.store.data.outbox[id] = e
	return nil
}

func (r outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	defer r.lock()()
	var n int64
	for id, e := range r.store.data.outbox {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			delete(r.store.data.outbox, id)
			n++
		}
	}
	return n, nil
}
