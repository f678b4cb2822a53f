package handler

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/matthewbaird/casedesk/internal/event"
	"github.com/matthewbaird/casedesk/internal/form"
	"github.com/matthewbaird/casedesk/internal/i18n"
	"github.com/matthewbaird/casedesk/internal/render"
	"github.com/matthewbaird/casedesk/internal/types"
)

// RecordHandler serves one record kind (cases or sources).
type RecordHandler struct {
	kind   types.RecordKind
	api    RecordAPI
	pub    event.Publisher
	logger *zap.Logger
}

// NewRecordHandler creates a handler for kind.
func NewRecordHandler(kind types.RecordKind, api RecordAPI, pub event.Publisher, logger *zap.Logger) *RecordHandler {
	if pub == nil {
		pub = event.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordHandler{kind: kind, api: api, pub: pub, logger: logger}
}

// Routes registers the kind's endpoints on r, mounted at /v1/<collection>.
func (h *RecordHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/export", h.Export)
	r.Get("/new", h.NewForm)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/edit", h.EditForm)
	r.Put("/{id}", h.Update)
	r.Post("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/status", h.SetStatus)
	r.Post("/{id}/assign", h.Assign)
}

// Kind returns the record kind the handler serves.
func (h *RecordHandler) Kind() types.RecordKind { return h.kind }

func (h *RecordHandler) collectionPath() string { return "/v1/" + h.kind.Collection() }

func (h *RecordHandler) recordPath(id string) string {
	return h.collectionPath() + "/" + url.PathEscape(id)
}

// template fetches the template a record is built from, sorted by index.
// Records without a template only carry base fields.
func (h *RecordHandler) template(ctx context.Context, id string) (types.Template, error) {
	if id == "" {
		return types.Template{}, nil
	}
	tpl, err := h.api.GetTemplate(ctx, id)
	if err != nil {
		return types.Template{}, err
	}
	return tpl.Ordered(), nil
}

// List returns one page of records.
func (h *RecordHandler) List(w http.ResponseWriter, r *http.Request) {
	p := parsePagination(r)
	page, err := h.api.ListRecords(r.Context(), h.kind, p.params(r.URL.Query().Get("q")))
	if err != nil {
		writeAPIError(w, r, h.logger, err)
		return
	}
	if page.Items == nil {
		page.Items = []types.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":     page.Items,
		"total":     page.Total,
		"page":      p.Page,
		"page_size": p.PageSize,
	})
}

// Get returns one record.
func (h *RecordHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.api.GetRecord(r.Context(), h.kind, chi.URLParam(r, "id"))
	if err != nil {
		writeAPIError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// NewForm renders the create form for ?templateId=.
func (h *RecordHandler) NewForm(w http.ResponseWriter, r *http.Request) {
	lang := LangFrom(r.Context())
	tpl, err := h.template(r.Context(), r.URL.Query().Get("templateId"))
	if err != nil {
		writeAPIError(w, r, h.logger, err)
		return
	}
	f := newRecordForm(lang, tpl, render.ByName)
	values := inputValues(baseValuesOf(types.BaseFields{}), f.custom.Defaults())
	h.writeForm(w, r, f, h.createAction(tpl.ID), formTitle(lang, "new", h.kind), values, nil, "", http.StatusOK)
}

func (h *RecordHandler) createAction(templateID string) string {
	if templateID == "" {
		return h.collectionPath()
	}
	return h.collectionPath() + "?templateId=" + url.QueryEscape(templateID)
}

// Create validates the submission against its template and creates the
// record. Invalid input never reaches the API.
func (h *RecordHandler) Create(w http.ResponseWriter, r *http.Request) {
	htmlForm := isFormPost(r)
	s, err := readSubmission(r)
	if err != nil {
		writeBadRequest(w, r, "INVALID_BODY", "bad_request")
		return
	}
	if s.TemplateID == "" {
		s.TemplateID = r.URL.Query().Get("templateId")
	}
	lang := LangFrom(r.Context())
	tpl, err := h.template(r.Context(), s.TemplateID)
	if err != nil {
		writeAPIError(w, r, h.logger, err)
		return
	}

	f := newRecordForm(lang, tpl, render.ByName)
	action, title := h.createAction(tpl.ID), formTitle(lang, "new", h.kind)
	base, payload, err := f.submit(s)
	if err != nil {
		h.rejectSubmission(w, r, f, htmlForm, action, title, s, err)
		return
	}

	// The API call outlives a client that goes away mid-request.
	rec, err := h.api.CreateRecord(context.WithoutCancel(r.Context()), h.kind, types.RecordRequest{
		BaseFields: base,
		Fields:     payload,
		TemplateID: tpl.ID,
	})
	if err != nil {
		h.failSubmission(w, r, f, htmlForm, action, title, s, err)
		return
	}
	h.pub.Publish(r.Context(), event.NewRecordCreated(h.kind, rec, len(payload), actorFrom(r)))

	if htmlForm {
		http.Redirect(w, r, h.recordPath(rec.ID), http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// EditForm renders the edit form of a record, keyed by field id.
func (h *RecordHandler) EditForm(w http.ResponseWriter, r *http.Request) {
	lang := LangFrom(r.Context())
	id := chi.URLParam(r, "id")
	rec, err := h.api.GetRecord(r.Context(), h.kind, id)
	if err != nil {
		writeAPIError(w, r, h.logger, err)
		return
	}
	tpl, err := h.template(r.Context(), rec.TemplateID)
	if err != nil {
		writeAPIError(w, r, h.logger, err)
		return
	}
	f := newRecordForm(lang, tpl, render.ByID)
	values := inputValues(baseValuesOf(rec.BaseFields), form.EditValues(tpl, rec))
	h.writeForm(w, r, f, h.recordPath(id), formTitle(lang, "edit", h.kind), values, nil, "", http.StatusOK)
}

// Update validates the submission against the record's template and
// replaces the record. Accepts PUT and POST (browser forms).
func (h *RecordHandler) Update(w http.ResponseWriter, r *http.Request) {
	htmlForm := isFormPost(r)
	id := chi.URLParam(r, "id")
	s, err := readSubmission(r)
	if err != nil {
		writeBadRequest(w, r, "INVALID_BODY", "bad_request")
		return
	}
	lang := LangFrom(r.Context())
	rec, err := h.api.GetRecord(r.Context(), h.kind, id)
	if err != nil {
		writeAPIError(w, r, h.logger, err)
		return
	}
	tpl, err := h.template(r.Context(), rec.TemplateID)
	if err != nil {
		writeAPIError(w, r, h.logger, err)
		return
	}

	f := newRecordForm(lang, tpl, render.ByID)
	action, title := h.recordPath(id), formTitle(lang, "edit", h.kind)
	base, payload, err := f.submit(s)
	if err != nil {
		h.rejectSubmission(w, r, f, htmlForm, action, title, s, err)
		return
	}
	base.Status = rec.Status

	updated, err := h.api.UpdateRecord(context.WithoutCancel(r.Context()), h.kind, id, types.RecordRequest{
		BaseFields: base,
		Fields:     payload,
		TemplateID: rec.TemplateID,
	})
	if err != nil {
		h.failSubmission(w, r, f, htmlForm, action, title, s, err)
		return
	}
	h.pub.Publish(r.Context(), event.NewRecordUpdated(h.kind, updated, len(payload), actorFrom(r)))

	if htmlForm {
		http.Redirect(w, r, h.recordPath(id), http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Delete removes a record.
func (h *RecordHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.api.DeleteRecord(context.WithoutCancel(r.Context()), h.kind, id); err != nil {
		writeAPIError(w, r, h.logger, err)
		return
	}
	h.pub.Publish(r.Context(), event.NewRecordDeleted(h.kind, id, actorFrom(r)))
	w.WriteHeader(http.StatusNoContent)
}

// SetStatus moves a record to another status of the enum.
func (h *RecordHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body struct {
		Status string `json:"status"`
	}
	if err := readSmallBody(r, &body.Status, "status"); err != nil {
		writeBadRequest(w, r, "INVALID_BODY", "bad_request")
		return
	}
	status, err := types.ParseStatus(body.Status)
	if err != nil {
		writeBadRequest(w, r, "INVALID_STATUS", "invalid_status")
		return
	}
	rec, err := h.api.SetStatus(context.WithoutCancel(r.Context()), h.kind, id, status)
	if err != nil {
		writeAPIError(w, r, h.logger, err)
		return
	}
	h.pub.Publish(r.Context(), event.NewRecordStatusChanged(h.kind, id, status, actorFrom(r)))
	writeJSON(w, http.StatusOK, rec)
}

// Assign sets or clears the responsible user.
func (h *RecordHandler) Assign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var userID string
	if err := readSmallBody(r, &userID, "userId"); err != nil {
		writeBadRequest(w, r, "INVALID_BODY", "bad_request")
		return
	}
	rec, err := h.api.Assign(context.WithoutCancel(r.Context()), h.kind, id, userID)
	if err != nil {
		writeAPIError(w, r, h.logger, err)
		return
	}
	h.pub.Publish(r.Context(), event.NewRecordAssigned(h.kind, id, userID, actorFrom(r)))
	writeJSON(w, http.StatusOK, rec)
}

// Export streams the API's export through unchanged.
func (h *RecordHandler) Export(w http.ResponseWriter, r *http.Request) {
	exp, err := h.api.Export(r.Context(), h.kind, r.URL.Query())
	if err != nil {
		writeAPIError(w, r, h.logger, err)
		return
	}
	defer exp.Body.Close()

	ct := exp.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	name := exp.Filename
	if name == "" {
		name = h.kind.Collection() + ".csv"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, exp.Body); err != nil {
		h.logger.Warn("export copy interrupted", zap.String("kind", string(h.kind)), zap.Error(err))
	}
}

// rejectSubmission answers a submission that failed validation.
func (h *RecordHandler) rejectSubmission(w http.ResponseWriter, r *http.Request, f recordForm, htmlForm bool, action, title string, s submission, err error) {
	verr, ok := asValidation(err)
	if !ok {
		verr = &form.ValidationError{}
		verr.Add("", form.CodeInvalid)
	}
	if htmlForm {
		h.writeForm(w, r, f, action, title, s.display(), verr.Fields, i18n.T(f.lang, "validation_failed"), http.StatusUnprocessableEntity)
		return
	}
	writeValidation(w, r, verr)
}

// failSubmission answers a submission the API refused or never received.
func (h *RecordHandler) failSubmission(w http.ResponseWriter, r *http.Request, f recordForm, htmlForm bool, action, title string, s submission, err error) {
	if !htmlForm {
		writeAPIError(w, r, h.logger, err)
		return
	}
	status, _ := apiStatus(err)
	h.logger.Warn("api call failed", zap.String("path", r.URL.Path), zap.Error(err))
	h.writeForm(w, r, f, action, title, s.display(), nil, i18n.T(f.lang, "request_failed"), status)
}

func (h *RecordHandler) writeForm(w http.ResponseWriter, r *http.Request, f recordForm, action, title string, values map[string]any, errs map[string]string, notice string, status int) {
	html, err := f.render(action, title, values, errs, notice)
	if err != nil {
		h.logger.Error("rendering record form", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", i18n.T(f.lang, "request_failed"))
		return
	}
	writeHTML(w, status, html)
}

// readSmallBody reads one string value named key from a form post or a
// JSON object.
func readSmallBody(r *http.Request, dst *string, key string) error {
	if isFormPost(r) {
		if err := r.ParseForm(); err != nil {
			return err
		}
		*dst = r.PostForm.Get(key)
		return nil
	}
	var body map[string]any
	if err := decodeJSON(r, &body); err != nil {
		return err
	}
	*dst = rawString(body[key])
	return nil
}
