package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/casedesk/internal/types"
)

func setupRecords(t *testing.T) (*fakeAPI, *recorder, http.Handler) {
	t.Helper()
	api := newFakeAPI()
	api.templates["tpl-homicide"] = victimsTemplate()
	rec := &recorder{}
	h := NewRecordHandler(types.KindCase, api, rec, nil)
	r := chi.NewRouter()
	r.Use(Locale("en"))
	r.Route("/v1/cases", h.Routes)
	return api, rec, r
}

func do(t *testing.T, h http.Handler, method, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

const (
	jsonCT = "application/json"
	formCT = "application/x-www-form-urlencoded"
)

func TestRecordCreate_JSON(t *testing.T) {
	api, events, h := setupRecords(t)

	w := do(t, h, http.MethodPost, "/v1/cases", jsonCT,
		`{"templateId":"tpl-homicide","name":"Case A","fields":{"victims":3,"occurred":"2024-05-01"}}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.Len(t, api.requests, 1)
	req := api.requests[0]
	assert.Equal(t, "Case A", req.Name)
	assert.Equal(t, "tpl-homicide", req.TemplateID)
	require.Len(t, req.Fields, 2)
	assert.Equal(t, "victims", req.Fields[0].FieldName)
	require.NotNil(t, req.Fields[0].Value)
	assert.Equal(t, "3", *req.Fields[0].Value)
	require.NotNil(t, req.Fields[1].Value)
	assert.Equal(t, "2024-05-01T00:00:00.000Z", *req.Fields[1].Value)

	assert.Equal(t, []string{"case_created"}, events.eventTypes())
}

func shuffledTemplate() types.Template {
	return types.Template{
		ID:    "tpl-shuffled",
		Title: "Shuffled",
		Groups: []types.Group{
			{ID: "g2", Title: "Second", Index: 1, Fields: []types.Field{
				{ID: "f-b", FieldName: "b", FieldLabel: "B", FieldType: types.FieldText, Index: 0},
			}},
			{ID: "g1", Title: "First", Index: 0, Fields: []types.Field{
				{ID: "f-a2", FieldName: "a2", FieldLabel: "A2", FieldType: types.FieldText, Index: 1},
				{ID: "f-a1", FieldName: "a1", FieldLabel: "A1", FieldType: types.FieldText, Index: 0},
			}},
		},
	}
}

func TestRecordCreate_PayloadFollowsFormOrder(t *testing.T) {
	api, _, h := setupRecords(t)
	api.templates["tpl-shuffled"] = shuffledTemplate()

	w := do(t, h, http.MethodGet, "/v1/cases/new?templateId=tpl-shuffled", "", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	html := w.Body.String()
	assert.Less(t, strings.Index(html, `name="fields.a1"`), strings.Index(html, `name="fields.a2"`))
	assert.Less(t, strings.Index(html, `name="fields.a2"`), strings.Index(html, `name="fields.b"`))

	w = do(t, h, http.MethodPost, "/v1/cases", jsonCT,
		`{"templateId":"tpl-shuffled","name":"Case S","fields":{"a1":"x","a2":"y","b":"z"}}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Len(t, api.requests, 1)
	var names []string
	for _, f := range api.requests[0].Fields {
		names = append(names, f.FieldName)
	}
	assert.Equal(t, []string{"a1", "a2", "b"}, names)
	assert.Equal(t, "g1", api.requests[0].Fields[0].GroupID)
}

func TestRecordCreate_ValidationNeverReachesAPI(t *testing.T) {
	api, events, h := setupRecords(t)

	w := do(t, h, http.MethodPost, "/v1/cases", jsonCT,
		`{"templateId":"tpl-homicide","fields":{"victims":"abc"}}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
	fields, ok := body["fields"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Required", fields["name"])
	assert.Equal(t, "Enter a number", fields["fields.victims"])

	assert.Empty(t, api.requests)
	assert.Empty(t, events.eventTypes())
}

func TestRecordCreate_FormPost(t *testing.T) {
	api, _, h := setupRecords(t)

	w := do(t, h, http.MethodPost, "/v1/cases", formCT,
		"templateId=tpl-homicide&name=&fields.victims=")
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	html := w.Body.String()
	assert.Contains(t, html, `role="alert"`)
	assert.Contains(t, html, `id="field-fields-victims-error"`)
	assert.Empty(t, api.requests)

	w = do(t, h, http.MethodPost, "/v1/cases", formCT,
		"templateId=tpl-homicide&name=Case+B&fields.victims=2")
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
	assert.Equal(t, "/v1/cases/case-1", w.Header().Get("Location"))
}

func seededRecord(api *fakeAPI) {
	two := "2"
	api.records["case-9"] = types.Record{
		ID:         "case-9",
		BaseFields: types.BaseFields{Name: "Old", Status: types.StatusInProgress},
		TemplateID: "tpl-homicide",
		Groups: []types.RecordGroup{{
			ID:     "g1",
			Fields: []types.RecordField{{ID: "f-victims", FieldValue: &two}},
		}},
	}
}

func TestRecordEditForm_KeyedByID(t *testing.T) {
	api, _, h := setupRecords(t)
	seededRecord(api)

	w := do(t, h, http.MethodGet, "/v1/cases/case-9/edit", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	html := w.Body.String()
	assert.Contains(t, html, `action="/v1/cases/case-9"`)
	assert.Contains(t, html, `name="fields.f-victims" value="2"`)
	assert.Contains(t, html, `value="Old"`)
	assert.Contains(t, html, "Edit case")
}

func TestRecordUpdate_KeepsStatus(t *testing.T) {
	api, events, h := setupRecords(t)
	seededRecord(api)

	w := do(t, h, http.MethodPut, "/v1/cases/case-9", jsonCT,
		`{"name":"New","fields":{"f-victims":"5"}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.Len(t, api.requests, 1)
	req := api.requests[0]
	assert.Equal(t, "New", req.Name)
	assert.Equal(t, types.StatusInProgress, req.Status)
	require.NotEmpty(t, req.Fields)
	assert.Equal(t, "victims", req.Fields[0].FieldName)
	require.NotNil(t, req.Fields[0].Value)
	assert.Equal(t, "5", *req.Fields[0].Value)
	assert.Equal(t, []string{"case_updated"}, events.eventTypes())
}

func TestRecordSetStatus(t *testing.T) {
	api, events, h := setupRecords(t)
	seededRecord(api)

	w := do(t, h, http.MethodPost, "/v1/cases/case-9/status", jsonCT, `{"status":"reopened"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_STATUS", decodeBody(t, w)["code"])

	w = do(t, h, http.MethodPost, "/v1/cases/case-9/status", jsonCT, `{"status":"closed"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, types.StatusClosed, api.records["case-9"].Status)
	assert.Equal(t, []string{"case_status_changed"}, events.eventTypes())
}

func TestRecordAssignAndDelete(t *testing.T) {
	api, events, h := setupRecords(t)
	seededRecord(api)

	w := do(t, h, http.MethodPost, "/v1/cases/case-9/assign", formCT, "userId=u-42")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u-42", api.records["case-9"].AssignedUserID)

	w = do(t, h, http.MethodDelete, "/v1/cases/case-9", "", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NotContains(t, api.records, "case-9")
	assert.Equal(t, []string{"case_assigned", "case_deleted"}, events.eventTypes())
}

func TestRecordAPIErrors(t *testing.T) {
	api, _, h := setupRecords(t)

	w := do(t, h, http.MethodGet, "/v1/cases/missing", "", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "NOT_FOUND", body["code"])
	assert.Equal(t, "Not found.", body["error"])

	api.fail = errors.New("connection refused")
	w = do(t, h, http.MethodGet, "/v1/cases", "", "")
	require.Equal(t, http.StatusBadGateway, w.Code)
	body = decodeBody(t, w)
	assert.Equal(t, "UPSTREAM_ERROR", body["code"])
	assert.NotContains(t, body["error"], "connection refused")
}

func TestRecordList(t *testing.T) {
	api, _, h := setupRecords(t)
	seededRecord(api)

	w := do(t, h, http.MethodGet, "/v1/cases?page=2&page_size=500", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.EqualValues(t, 1, body["total"])
	assert.EqualValues(t, 2, body["page"])
	assert.EqualValues(t, 100, body["page_size"])
}

func TestRecordExport(t *testing.T) {
	_, _, h := setupRecords(t)

	w := do(t, h, http.MethodGet, "/v1/cases/export?format=csv", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="cases-2026.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "id,name\ncase-9,Old\n", w.Body.String())

	w = do(t, h, http.MethodGet, "/v1/cases/export?format=xml", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func newJSONRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", jsonCT)
	}
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}
