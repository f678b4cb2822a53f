package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/casedesk/internal/builder"
)

func setupBuilder(t *testing.T) (*fakeAPI, *recorder, http.Handler) {
	t.Helper()
	api := newFakeAPI()
	api.templates["tpl-homicide"] = victimsTemplate()
	rec := &recorder{}
	h := NewBuilderHandler(builder.NewManager(time.Hour, time.Hour, nil), api, rec, nil)
	r := chi.NewRouter()
	r.Use(Locale("en"))
	r.Route("/v1/builder/sessions", h.Routes)
	return api, rec, r
}

// fieldAt digs a field out of a decoded session view.
func fieldAt(t *testing.T, view map[string]any, gi, fi int) map[string]any {
	t.Helper()
	tpl := view["template"].(map[string]any)
	groups := tpl["groups"].([]any)
	require.Greater(t, len(groups), gi)
	fields := groups[gi].(map[string]any)["fields"].([]any)
	require.Greater(t, len(fields), fi)
	return fields[fi].(map[string]any)
}

func TestBuilderSessionFlow(t *testing.T) {
	api, events, h := setupBuilder(t)

	w := do(t, h, http.MethodPost, "/v1/builder/sessions", "", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	view := decodeBody(t, w)
	sid := view["id"].(string)
	base := "/v1/builder/sessions/" + sid
	assert.Len(t, view["problems"], 2)

	w = do(t, h, http.MethodPatch, base, jsonCT, `{"title":"Robbery"}`)
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, h, http.MethodPatch, base+"/groups/0", jsonCT, `{"title":"Facts"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodPatch, base+"/groups/0/fields/0", jsonCT, `{"fieldLabel":"Stolen Amount","fieldType":"number"}`)
	require.Equal(t, http.StatusOK, w.Code)
	f := fieldAt(t, decodeBody(t, w), 0, 0)
	assert.Equal(t, "stolen_amount", f["fieldName"])
	assert.Equal(t, "number", f["fieldType"])

	w = do(t, h, http.MethodPost, base+"/groups/0/fields", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, h, http.MethodPatch, base+"/groups/0/fields/1", jsonCT, `{"fieldLabel":"Weapon"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodPost, base+"/groups/0/fields/1/move", jsonCT, `{"direction":"up"}`)
	require.Equal(t, http.StatusOK, w.Code)
	view = decodeBody(t, w)
	assert.Equal(t, true, view["moved"])
	assert.Equal(t, "weapon", fieldAt(t, view, 0, 0)["fieldName"])
	assert.EqualValues(t, 0, fieldAt(t, view, 0, 0)["index"])

	w = do(t, h, http.MethodPost, base+"/groups/0/fields/0/move", jsonCT, `{"direction":"up"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decodeBody(t, w)["moved"])

	w = do(t, h, http.MethodPost, base+"/save", "", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	view = decodeBody(t, w)
	require.Len(t, api.created, 1)
	assert.Equal(t, api.created[0].ID, view["templateId"])

	// A second save updates the stored template.
	w = do(t, h, http.MethodPatch, base, jsonCT, `{"description":"armed or not"}`)
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, h, http.MethodPost, base+"/save", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, api.updated, 1)
	assert.Equal(t, "armed or not", api.updated[0].Description)

	assert.Equal(t, []string{"template_created", "template_updated"}, events.eventTypes())
}

func TestBuilderSaveRejectsUntitled(t *testing.T) {
	api, _, h := setupBuilder(t)

	w := do(t, h, http.MethodPost, "/v1/builder/sessions", "", "")
	sid := decodeBody(t, w)["id"].(string)

	w = do(t, h, http.MethodPost, "/v1/builder/sessions/"+sid+"/save", "", "")
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "INVALID_TEMPLATE", decodeBody(t, w)["code"])
	assert.Empty(t, api.created)
}

func TestBuilderEditExisting(t *testing.T) {
	_, _, h := setupBuilder(t)

	w := do(t, h, http.MethodPost, "/v1/builder/sessions", jsonCT, `{"templateId":"tpl-homicide"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	view := decodeBody(t, w)
	assert.Equal(t, "tpl-homicide", view["templateId"])
	base := "/v1/builder/sessions/" + view["id"].(string)

	// Saved field names do not follow the label.
	w = do(t, h, http.MethodPatch, base+"/groups/0/fields/0", jsonCT, `{"fieldLabel":"Number of victims"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "victims", fieldAt(t, decodeBody(t, w), 0, 0)["fieldName"])

	w = do(t, h, http.MethodPost, "/v1/builder/sessions", jsonCT, `{"templateId":"missing"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBuilderErrors(t *testing.T) {
	_, _, h := setupBuilder(t)

	w := do(t, h, http.MethodGet, "/v1/builder/sessions/nope", "", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", decodeBody(t, w)["code"])

	w = do(t, h, http.MethodPost, "/v1/builder/sessions", "", "")
	base := "/v1/builder/sessions/" + decodeBody(t, w)["id"].(string)

	cases := []struct {
		method, path, body string
		status             int
		code               string
	}{
		{http.MethodDelete, base + "/groups/0", "", http.StatusConflict, "MINIMUM_REACHED"},
		{http.MethodDelete, base + "/groups/0/fields/0", "", http.StatusConflict, "MINIMUM_REACHED"},
		{http.MethodDelete, base + "/groups/4", "", http.StatusNotFound, "OUT_OF_RANGE"},
		{http.MethodDelete, base + "/groups/x", "", http.StatusBadRequest, "INVALID_POSITION"},
		{http.MethodPatch, base + "/groups/0/fields/0", `{"fieldType":"checkbox"}`, http.StatusBadRequest, "UNSUPPORTED_FIELD_TYPE"},
		{http.MethodPost, base + "/groups/0/move", `{"direction":"left"}`, http.StatusBadRequest, "INVALID_DIRECTION"},
	}
	for _, tc := range cases {
		ct := ""
		if tc.body != "" {
			ct = jsonCT
		}
		w := do(t, h, tc.method, tc.path, ct, tc.body)
		assert.Equal(t, tc.status, w.Code, tc.path)
		assert.Equal(t, tc.code, decodeBody(t, w)["code"], tc.path)
	}

	w = do(t, h, http.MethodDelete, base, "", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, h, http.MethodGet, base, "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
