// Package activity keeps the recent activity feed shown on the dashboard:
// every published domain event is fanned out into one entry per affected
// entity so a case, source or template can list what happened to it.
package activity

import (
	"context"
	"encoding/json"
	"time"
)

// Entry is one event as seen from one affected entity.
type Entry struct {
	EventID           string          `json:"event_id"`
	EventType         string          `json:"event_type"`
	Action            string          `json:"action"`
	OccurredAt        time.Time       `json:"occurred_at"`
	Actor             string          `json:"actor,omitempty"`
	IndexedEntityType string          `json:"entity_type"`
	IndexedEntityID   string          `json:"entity_id"`
	EntityRole        string          `json:"entity_role"`
	Summary           string          `json:"summary"`
	Category          string          `json:"category"`
	Payload           json.RawMessage `json:"payload,omitempty"`
}

// Store is the interface for reading and writing activity entries.
type Store interface {
	// WriteEntries writes one or more activity entries (one event → many entries).
	WriteEntries(ctx context.Context, entries []Entry) error

	// QueryByEntity returns activity entries for a specific entity.
	QueryByEntity(ctx context.Context, entityType, entityID string, opts QueryOptions) (entries []Entry, nextCursor string, totalCount int, err error)

	// Search performs a case-insensitive substring search across summaries.
	Search(ctx context.Context, query string, opts SearchOptions) (entries []Entry, totalCount int, err error)
}
