package eventbus

import (
	"context"

	"go.uber.org/zap"

	"github.com/matthewbaird/casedesk/internal/event"
)

// LogConsumer logs all domain events for observability.
type LogConsumer struct {
	logger *zap.Logger
}

func NewLogConsumer(logger *zap.Logger) *LogConsumer { return &LogConsumer{logger: logger} }

func (c *LogConsumer) HandleEvent(_ context.Context, evt event.DomainEvent) error {
	entities := make([]string, len(evt.AffectedEntities))
	for i, ref := range evt.AffectedEntities {
		entities[i] = ref.EntityType + ":" + ref.EntityID
	}
	c.logger.Info("event",
		zap.String("event_type", evt.EventType),
		zap.String("category", evt.Category),
		zap.String("actor", evt.Actor),
		zap.String("summary", evt.Summary),
		zap.Strings("entities", entities))
	return nil
}
