package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

// EventService writes lifecycle events into the transactional outbox. Publishing
// is left to the outbox worker, so an event exists iff its transition committed.
type EventService struct{}

func NewEventService() *EventService {
	return &EventService{}
}

// Emit records eventType with payload through the given (transaction bound)
// repositories.
func (s *EventService) Emit(ctx context.Context, repos repository.Repositories, eventType string, payload interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	event := &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   payloadJSON,
		Status:    model.OutboxStatusPending,
	}
	if err := repos.Outbox().Create(ctx, event); err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}
