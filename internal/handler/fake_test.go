package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/matthewbaird/casedesk/internal/apiclient"
	"github.com/matthewbaird/casedesk/internal/event"
	"github.com/matthewbaird/casedesk/internal/types"
)

// fakeAPI is an in-memory stand-in for the external API.
type fakeAPI struct {
	mu        sync.Mutex
	templates map[string]types.Template
	records   map[string]types.Record
	requests  []types.RecordRequest
	created   []types.Template
	updated   []types.Template
	fail      error
	nextID    int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		templates: make(map[string]types.Template),
		records:   make(map[string]types.Record),
	}
}

func notFound(op string) error {
	return &apiclient.Error{Op: op, Status: http.StatusNotFound, Code: apiclient.CodeStatus, Message: "not found"}
}

func (f *fakeAPI) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeAPI) ListTemplates(_ context.Context, _ apiclient.ListParams) (types.Page[types.Template], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return types.Page[types.Template]{}, f.fail
	}
	var out types.Page[types.Template]
	for _, t := range f.templates {
		out.Items = append(out.Items, t)
	}
	out.Total = len(out.Items)
	return out, nil
}

func (f *fakeAPI) GetTemplate(_ context.Context, id string) (types.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return types.Template{}, f.fail
	}
	t, ok := f.templates[id]
	if !ok {
		return types.Template{}, notFound("get template")
	}
	return t, nil
}

func (f *fakeAPI) CreateTemplate(_ context.Context, tpl types.Template) (types.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return types.Template{}, f.fail
	}
	tpl.ID = f.id("tpl")
	f.templates[tpl.ID] = tpl
	f.created = append(f.created, tpl)
	return tpl, nil
}

func (f *fakeAPI) UpdateTemplate(_ context.Context, id string, tpl types.Template) (types.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return types.Template{}, f.fail
	}
	if _, ok := f.templates[id]; !ok {
		return types.Template{}, notFound("update template")
	}
	tpl.ID = id
	f.templates[id] = tpl
	f.updated = append(f.updated, tpl)
	return tpl, nil
}

func (f *fakeAPI) ListRecords(_ context.Context, kind types.RecordKind, _ apiclient.ListParams) (types.Page[types.Record], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return types.Page[types.Record]{}, f.fail
	}
	var out types.Page[types.Record]
	for _, r := range f.records {
		out.Items = append(out.Items, r)
	}
	out.Total = len(out.Items)
	return out, nil
}

func (f *fakeAPI) GetRecord(_ context.Context, kind types.RecordKind, id string) (types.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return types.Record{}, f.fail
	}
	r, ok := f.records[id]
	if !ok {
		return types.Record{}, notFound("get record")
	}
	return r, nil
}

// snapshot turns a request into the record the API would store.
func snapshot(id string, req types.RecordRequest) types.Record {
	rec := types.Record{ID: id, BaseFields: req.BaseFields, TemplateID: req.TemplateID}
	groups := make(map[string]int)
	for _, e := range req.Fields {
		gi, ok := groups[e.GroupID]
		if !ok {
			gi = len(rec.Groups)
			groups[e.GroupID] = gi
			rec.Groups = append(rec.Groups, types.RecordGroup{ID: e.GroupID})
		}
		rec.Groups[gi].Fields = append(rec.Groups[gi].Fields, types.RecordField{
			ID:         e.FieldName,
			FieldLabel: e.FieldLabel,
			FieldValue: e.Value,
			FieldType:  e.FieldType,
		})
	}
	return rec
}

func (f *fakeAPI) CreateRecord(_ context.Context, kind types.RecordKind, req types.RecordRequest) (types.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return types.Record{}, f.fail
	}
	f.requests = append(f.requests, req)
	rec := snapshot(f.id(string(kind)), req)
	rec.Status = types.StatusOpen
	f.records[rec.ID] = rec
	return rec, nil
}

func (f *fakeAPI) UpdateRecord(_ context.Context, kind types.RecordKind, id string, req types.RecordRequest) (types.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return types.Record{}, f.fail
	}
	if _, ok := f.records[id]; !ok {
		return types.Record{}, notFound("update record")
	}
	f.requests = append(f.requests, req)
	rec := snapshot(id, req)
	f.records[id] = rec
	return rec, nil
}

func (f *fakeAPI) DeleteRecord(_ context.Context, kind types.RecordKind, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	if _, ok := f.records[id]; !ok {
		return notFound("delete record")
	}
	delete(f.records, id)
	return nil
}

func (f *fakeAPI) SetStatus(_ context.Context, kind types.RecordKind, id string, status types.Status) (types.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return types.Record{}, notFound("set status")
	}
	r.Status = status
	f.records[id] = r
	return r, nil
}

func (f *fakeAPI) Assign(_ context.Context, kind types.RecordKind, id, userID string) (types.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return types.Record{}, notFound("assign")
	}
	r.AssignedUserID = userID
	f.records[id] = r
	return r, nil
}

func (f *fakeAPI) Export(_ context.Context, kind types.RecordKind, query url.Values) (*apiclient.Export, error) {
	if query.Get("format") == "xml" {
		return nil, notFound("export")
	}
	return &apiclient.Export{
		Body:        io.NopCloser(strings.NewReader("id,name\ncase-9,Old\n")),
		ContentType: "text/csv",
		Filename:    "cases-2026.csv",
	}, nil
}

func (f *fakeAPI) Login(_ context.Context, cred apiclient.Credentials) (apiclient.Session, error) {
	if cred.Password != "secret" {
		return apiclient.Session{}, &apiclient.Error{Op: "login", Status: http.StatusUnauthorized, Code: apiclient.CodeStatus}
	}
	return apiclient.Session{Token: "tok-1", User: apiclient.User{ID: "u1", Email: cred.Email}}, nil
}

// recorder collects published events.
type recorder struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (r *recorder) Publish(_ context.Context, evt event.DomainEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recorder) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.EventType
	}
	return out
}

// victimsTemplate has a required number field and an optional date.
func victimsTemplate() types.Template {
	return types.Template{
		ID:    "tpl-homicide",
		Title: "Homicide",
		Groups: []types.Group{{
			ID:    "g1",
			Title: "Facts",
			Fields: []types.Field{
				{ID: "f-victims", FieldName: "victims", FieldLabel: "Victims", FieldType: types.FieldNumber, IsRequired: true, Index: 0},
				{ID: "f-date", FieldName: "occurred", FieldLabel: "Occurred", FieldType: types.FieldDate, Index: 1},
			},
		}},
	}
}
