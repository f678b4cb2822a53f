package activity

import (
	"context"

	"github.com/matthewbaird/casedesk/internal/event"
)

// Consumer fans a DomainEvent out into one Entry per affected entity and
// writes them to the store. It subscribes to the event bus.
type Consumer struct {
	store Store
}

// NewConsumer creates a Consumer backed by store.
func NewConsumer(store Store) *Consumer {
	return &Consumer{store: store}
}

func (c *Consumer) HandleEvent(ctx context.Context, evt event.DomainEvent) error {
	entries := make([]Entry, 0, len(evt.AffectedEntities))
	for _, ref := range evt.AffectedEntities {
		entries = append(entries, Entry{
			EventID:           evt.ID,
			EventType:         evt.EventType,
			Action:            evt.Action,
			OccurredAt:        evt.OccurredAt,
			Actor:             evt.Actor,
			IndexedEntityType: ref.EntityType,
			IndexedEntityID:   ref.EntityID,
			EntityRole:        ref.Role,
			Summary:           evt.Summary,
			Category:          evt.Category,
			Payload:           evt.Payload,
		})
	}
	return c.store.WriteEntries(ctx, entries)
}
