package activity

import (
	"context"
	"testing"
	"time"

	"github.com/matthewbaird/casedesk/internal/event"
	"github.com/matthewbaird/casedesk/internal/types"
)

func testEntry(entityType, entityID, category, summary string, daysAgo int) Entry {
	return Entry{
		EventID:           "test-" + summary,
		EventType:         "test_event",
		OccurredAt:        time.Now().AddDate(0, 0, -daysAgo),
		IndexedEntityType: entityType,
		IndexedEntityID:   entityID,
		EntityRole:        "subject",
		Summary:           summary,
		Category:          category,
	}
}

func TestMemoryStore_WriteAndQuery(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	entries := []Entry{
		testEntry("case", "c1", "record", "Case created", 10),
		testEntry("case", "c1", "record", "Case closed", 5),
		testEntry("case", "c2", "record", "Case created", 10),
	}

	if err := store.WriteEntries(ctx, entries); err != nil {
		t.Fatalf("WriteEntries: %v", err)
	}

	results, _, total, err := store.QueryByEntity(ctx, "case", "c1", DefaultQueryOptions())
	if err != nil {
		t.Fatalf("QueryByEntity: %v", err)
	}
	if total != 2 {
		t.Errorf("total = %d, want 2", total)
	}
	if len(results) != 2 || results[0].Summary != "Case closed" {
		t.Errorf("expected newest first, got %+v", results)
	}
}

func TestMemoryStore_QueryByEntity_FilterCategory(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	store.WriteEntries(ctx, []Entry{
		testEntry("template", "t1", "template", "Template saved", 10),
		testEntry("template", "t1", "record", "Case created from template", 5),
	})

	opts := DefaultQueryOptions()
	opts.Categories = []string{"template"}
	results, _, total, err := store.QueryByEntity(ctx, "template", "t1", opts)
	if err != nil {
		t.Fatalf("QueryByEntity: %v", err)
	}
	if total != 1 || len(results) != 1 {
		t.Fatalf("total = %d, want 1", total)
	}
	if results[0].Category != "template" {
		t.Errorf("category = %q, want template", results[0].Category)
	}
}

func TestMemoryStore_QueryByEntity_TimeWindow(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	store.WriteEntries(ctx, []Entry{
		testEntry("case", "c1", "record", "Recent", 5),
		testEntry("case", "c1", "record", "Old", 200),
	})

	since := time.Now().AddDate(0, 0, -30)
	opts := DefaultQueryOptions()
	opts.Since = &since
	results, _, total, err := store.QueryByEntity(ctx, "case", "c1", opts)
	if err != nil {
		t.Fatalf("QueryByEntity: %v", err)
	}
	if total != 1 {
		t.Errorf("total = %d, want 1", total)
	}
	if len(results) != 1 || results[0].Summary != "Recent" {
		t.Errorf("expected only 'Recent' entry")
	}
}

func TestMemoryStore_QueryByEntity_Cursor(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	store.WriteEntries(ctx, []Entry{
		testEntry("case", "c1", "record", "three", 1),
		testEntry("case", "c1", "record", "two", 2),
		testEntry("case", "c1", "record", "one", 3),
	})

	opts := DefaultQueryOptions()
	opts.Limit = 2
	page, cursor, total, _ := store.QueryByEntity(ctx, "case", "c1", opts)
	if total != 3 || len(page) != 2 || cursor == "" {
		t.Fatalf("first page: total=%d len=%d cursor=%q", total, len(page), cursor)
	}

	opts.Cursor = cursor
	page, cursor, _, _ = store.QueryByEntity(ctx, "case", "c1", opts)
	if len(page) != 1 || page[0].Summary != "one" || cursor != "" {
		t.Errorf("second page: %+v cursor=%q", page, cursor)
	}
}

func TestMemoryStore_Capacity(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2)

	store.WriteEntries(ctx, []Entry{
		testEntry("case", "c1", "record", "first", 3),
		testEntry("case", "c1", "record", "second", 2),
		testEntry("case", "c1", "record", "third", 1),
	})

	results, _, total, _ := store.QueryByEntity(ctx, "case", "c1", DefaultQueryOptions())
	if total != 2 {
		t.Fatalf("total = %d, want 2", total)
	}
	if results[1].Summary != "second" {
		t.Errorf("oldest entry should have been evicted, got %+v", results)
	}
}

func TestMemoryStore_Search(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	store.WriteEntries(ctx, []Entry{
		testEntry("case", "c1", "record", "Case c1 moved to closed", 5),
		testEntry("case", "c1", "record", "Case c1 created", 10),
		testEntry("source", "s1", "record", "Source s1 moved to closed", 3),
	})

	results, total, err := store.Search(ctx, "CLOSED", DefaultSearchOptions())
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if total != 2 || len(results) != 2 {
		t.Errorf("total = %d, want 2", total)
	}

	opts := DefaultSearchOptions()
	opts.EntityType = "source"
	results, total, _ = store.Search(ctx, "closed", opts)
	if total != 1 || results[0].IndexedEntityType != "source" {
		t.Errorf("expected only source entity")
	}

	_, total, _ = store.Search(ctx, "zzzznotfound", DefaultSearchOptions())
	if total != 0 {
		t.Errorf("expected no results, got %d", total)
	}
}

func TestConsumer_FansOutPerEntity(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	c := NewConsumer(store)

	rec := types.Record{ID: "c1", TemplateID: "t1"}
	if err := c.HandleEvent(ctx, event.NewRecordCreated(types.KindCase, rec, 2, "alice")); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	byCase, _, _, _ := store.QueryByEntity(ctx, "case", "c1", DefaultQueryOptions())
	byTemplate, _, _, _ := store.QueryByEntity(ctx, "template", "t1", DefaultQueryOptions())
	if len(byCase) != 1 || len(byTemplate) != 1 {
		t.Fatalf("expected one entry per entity, got case=%d template=%d", len(byCase), len(byTemplate))
	}
	if byTemplate[0].EntityRole != "context" || byCase[0].Actor != "alice" {
		t.Errorf("unexpected entries: %+v %+v", byCase[0], byTemplate[0])
	}
}
