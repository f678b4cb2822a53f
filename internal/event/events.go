// Package event defines the domain events published after successful
// mutations against the API. Events feed the live dashboard stream, the
// activity feed and the log.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/matthewbaird/casedesk/internal/types"
)

// EntityRef points at an entity touched by an event.
type EntityRef struct {
	EntityType string `json:"entity_type"` // "case", "source", "template", "user"
	EntityID   string `json:"entity_id"`
	Role       string `json:"role"` // "subject", "context", "related"
}

// DomainEvent carries the canonical shape of every domain event.
type DomainEvent struct {
	ID               string
	EventType        string
	Action           string // "created", "updated", "deleted", "status_changed", "assigned"
	OccurredAt       time.Time
	Actor            string
	AffectedEntities []EntityRef
	Summary          string
	Category         string // "record", "template"
	Payload          json.RawMessage
}

// Subject returns the entity the event is about.
func (e DomainEvent) Subject() EntityRef {
	for _, r := range e.AffectedEntities {
		if r.Role == "subject" {
			return r
		}
	}
	if len(e.AffectedEntities) > 0 {
		return e.AffectedEntities[0]
	}
	return EntityRef{}
}

func newID() string { return uuid.New().String() }

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// ── Record events ────────────────────────────────────────────────────────────

// RecordPayload carries event-specific data for record events.
type RecordPayload struct {
	Kind           types.RecordKind `json:"kind"`
	RecordID       string           `json:"record_id"`
	Name           string           `json:"name,omitempty"`
	TemplateID     string           `json:"template_id,omitempty"`
	Status         types.Status     `json:"status,omitempty"`
	AssignedUserID string           `json:"assigned_user_id,omitempty"`
	FieldCount     int              `json:"field_count,omitempty"`
}

func recordEvent(action, actor string, p RecordPayload, summary string) DomainEvent {
	refs := []EntityRef{{EntityType: string(p.Kind), EntityID: p.RecordID, Role: "subject"}}
	if p.TemplateID != "" {
		refs = append(refs, EntityRef{EntityType: "template", EntityID: p.TemplateID, Role: "context"})
	}
	if p.AssignedUserID != "" {
		refs = append(refs, EntityRef{EntityType: "user", EntityID: p.AssignedUserID, Role: "related"})
	}
	return DomainEvent{
		ID:               newID(),
		EventType:        string(p.Kind) + "_" + action,
		Action:           action,
		OccurredAt:       time.Now(),
		Actor:            actor,
		AffectedEntities: refs,
		Summary:          summary,
		Category:         "record",
		Payload:          mustJSON(p),
	}
}

func recordPayload(kind types.RecordKind, rec types.Record, fields int) RecordPayload {
	return RecordPayload{
		Kind:           kind,
		RecordID:       rec.ID,
		Name:           rec.Name,
		TemplateID:     rec.TemplateID,
		Status:         rec.Status,
		AssignedUserID: rec.AssignedUserID,
		FieldCount:     fields,
	}
}

// NewRecordCreated is published after a case or source was created.
func NewRecordCreated(kind types.RecordKind, rec types.Record, fields int, actor string) DomainEvent {
	p := recordPayload(kind, rec, fields)
	return recordEvent("created", actor, p,
		fmt.Sprintf("%s %s created with %d custom fields", kind, short(rec.ID), fields))
}

// NewRecordUpdated is published after a case or source was updated.
func NewRecordUpdated(kind types.RecordKind, rec types.Record, fields int, actor string) DomainEvent {
	p := recordPayload(kind, rec, fields)
	return recordEvent("updated", actor, p, fmt.Sprintf("%s %s updated", kind, short(rec.ID)))
}

// NewRecordDeleted is published after a case or source was deleted.
func NewRecordDeleted(kind types.RecordKind, id, actor string) DomainEvent {
	p := RecordPayload{Kind: kind, RecordID: id}
	return recordEvent("deleted", actor, p, fmt.Sprintf("%s %s deleted", kind, short(id)))
}

// NewRecordStatusChanged is published after a status change.
func NewRecordStatusChanged(kind types.RecordKind, id string, status types.Status, actor string) DomainEvent {
	p := RecordPayload{Kind: kind, RecordID: id, Status: status}
	return recordEvent("status_changed", actor, p,
		fmt.Sprintf("%s %s moved to %s", kind, short(id), status))
}

// NewRecordAssigned is published after the responsible user changed.
func NewRecordAssigned(kind types.RecordKind, id, userID, actor string) DomainEvent {
	p := RecordPayload{Kind: kind, RecordID: id, AssignedUserID: userID}
	summary := fmt.Sprintf("%s %s assigned to %s", kind, short(id), short(userID))
	if userID == "" {
		summary = fmt.Sprintf("%s %s unassigned", kind, short(id))
	}
	return recordEvent("assigned", actor, p, summary)
}

// ── Template events ──────────────────────────────────────────────────────────

// TemplatePayload carries event-specific data for TemplateSaved.
type TemplatePayload struct {
	TemplateID string `json:"template_id"`
	Title      string `json:"title"`
	GroupCount int    `json:"group_count"`
	FieldCount int    `json:"field_count"`
	Created    bool   `json:"created"`
}

// NewTemplateSaved is published after a template was created or updated.
func NewTemplateSaved(tpl types.Template, created bool, actor string) DomainEvent {
	action := "updated"
	if created {
		action = "created"
	}
	p := TemplatePayload{
		TemplateID: tpl.ID,
		Title:      tpl.Title,
		GroupCount: len(tpl.Groups),
		FieldCount: tpl.FieldCount(),
		Created:    created,
	}
	return DomainEvent{
		ID:         newID(),
		EventType:  "template_" + action,
		Action:     action,
		OccurredAt: time.Now(),
		Actor:      actor,
		AffectedEntities: []EntityRef{
			{EntityType: "template", EntityID: tpl.ID, Role: "subject"},
		},
		Summary:  fmt.Sprintf("Template %q %s with %d fields", tpl.Title, action, p.FieldCount),
		Category: "template",
		Payload:  mustJSON(p),
	}
}
