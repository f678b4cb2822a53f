package types

import (
	"fmt"
	"time"
)

// RecordKind distinguishes the two record families served by the dashboard.
type RecordKind string

const (
	KindCase   RecordKind = "case"
	KindSource RecordKind = "source"
)

// Collection returns the plural path segment used by the API for the kind.
func (k RecordKind) Collection() string {
	switch k {
	case KindSource:
		return "sources"
	default:
		return "cases"
	}
}

// KindFromCollection maps "cases"/"sources" back to a kind.
func KindFromCollection(s string) (RecordKind, bool) {
	switch s {
	case "cases":
		return KindCase, true
	case "sources":
		return KindSource, true
	}
	return "", false
}

// Status is the record lifecycle enum. Transitions are decided by the API;
// the dashboard only checks that the value is part of the enum.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusSuspended  Status = "suspended"
	StatusClosed     Status = "closed"
	StatusArchived   Status = "archived"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusOpen, StatusInProgress, StatusSuspended, StatusClosed, StatusArchived}

// ParseStatus validates s against the enum.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// BaseFields is the fixed part of a case or source.
type BaseFields struct {
	Name           string     `json:"name"`
	LawReference   string     `json:"lawReference,omitempty"`
	AssignedUserID string     `json:"assignedUserId,omitempty"`
	StartDate      *time.Time `json:"startDate,omitempty"`
	EndDate        *time.Time `json:"endDate,omitempty"`
	Description    string     `json:"description,omitempty"`
	Status         Status     `json:"status,omitempty"`
}

// Record is a case or source as returned by the API. Groups is a snapshot
// of the template taken at creation time; later template edits do not
// change it.
type Record struct {
	ID string `json:"id"`
	BaseFields
	TemplateID string        `json:"templateId,omitempty"`
	Groups     []RecordGroup `json:"groups,omitempty"`
	CreatedAt  *time.Time    `json:"createdAt,omitempty"`
	UpdatedAt  *time.Time    `json:"updatedAt,omitempty"`
}

// RecordGroup is the materialized instance of a template group.
type RecordGroup struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Fields      []RecordField `json:"fields"`
}

// RecordField is one field value within a record snapshot.
type RecordField struct {
	ID         string    `json:"id"`
	FieldLabel string    `json:"fieldLabel,omitempty"`
	FieldValue *string   `json:"fieldValue,omitempty"`
	FieldType  FieldType `json:"fieldType,omitempty"`
}

// PayloadEntry is the API-ready representation of one field value. A nil
// Value means "not provided" and is omitted from the JSON body.
type PayloadEntry struct {
	GroupID     string    `json:"groupId"`
	FieldLabel  string    `json:"fieldLabel"`
	FieldName   string    `json:"fieldName"`
	FieldType   FieldType `json:"fieldType"`
	IsRequired  bool      `json:"isRequired"`
	Placeholder string    `json:"placeholder,omitempty"`
	Description string    `json:"description,omitempty"`
	Value       *string   `json:"value,omitempty"`
}

// RecordRequest is the create/update body for cases and sources.
type RecordRequest struct {
	BaseFields
	Fields     []PayloadEntry `json:"fields"`
	TemplateID string         `json:"templateId,omitempty"`
}

// Page is a list response from the API.
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}
