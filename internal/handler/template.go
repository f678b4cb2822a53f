package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/matthewbaird/casedesk/internal/builder"
	"github.com/matthewbaird/casedesk/internal/event"
	"github.com/matthewbaird/casedesk/internal/form"
	"github.com/matthewbaird/casedesk/internal/i18n"
	"github.com/matthewbaird/casedesk/internal/render"
	"github.com/matthewbaird/casedesk/internal/types"
)

// TemplateHandler serves templates and what is materialized from them.
type TemplateHandler struct {
	api    TemplateAPI
	pub    event.Publisher
	logger *zap.Logger
}

// NewTemplateHandler creates a TemplateHandler.
func NewTemplateHandler(api TemplateAPI, pub event.Publisher, logger *zap.Logger) *TemplateHandler {
	if pub == nil {
		pub = event.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TemplateHandler{api: api, pub: pub, logger: logger}
}

// Routes registers the template endpoints, mounted at /v1/templates.
func (h *TemplateHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Get("/{id}/defaults", h.Defaults)
	r.Get("/{id}/schema", h.Schema)
	r.Get("/{id}/form", h.Form)
	r.Post("/{id}/payload", h.Payload)
}

// List returns one page of templates.
func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	p := parsePagination(r)
	page, err := h.api.ListTemplates(r.Context(), p.params(r.URL.Query().Get("q")))
	if err != nil {
		writeAPIError(w, r, h.logger, err)
		return
	}
	if page.Items == nil {
		page.Items = []types.Template{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":     page.Items,
		"total":     page.Total,
		"page":      p.Page,
		"page_size": p.PageSize,
	})
}

// Get returns one template with groups and fields in display order.
func (h *TemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	tpl, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

// Create normalizes and saves a new template.
func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, "")
}

// Update normalizes and replaces a template.
func (h *TemplateHandler) Update(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, chi.URLParam(r, "id"))
}

func (h *TemplateHandler) save(w http.ResponseWriter, r *http.Request, id string) {
	var tpl types.Template
	if err := decodeJSON(r, &tpl); err != nil {
		writeBadRequest(w, r, "INVALID_BODY", "bad_request")
		return
	}
	for _, gf := range tpl.AllFields() {
		if !gf.Field.FieldType.Known() {
			writeBadRequest(w, r, "UNSUPPORTED_FIELD_TYPE", "unsupported_type")
			return
		}
	}
	// Run the template through the builder so ids, indexes and the
	// one-group/one-field minimum hold on whatever the client sent.
	d := builder.EditDraft(tpl)
	if problems := d.Validate(); len(problems) > 0 {
		writeProblems(w, r, problems)
		return
	}
	saved, err := saveTemplate(context.WithoutCancel(r.Context()), h.api, id, d.Template())
	if err != nil {
		writeAPIError(w, r, h.logger, err)
		return
	}
	h.pub.Publish(r.Context(), event.NewTemplateSaved(saved, id == "", actorFrom(r)))
	status := http.StatusOK
	if id == "" {
		status = http.StatusCreated
	}
	writeJSON(w, status, saved)
}

// saveTemplate creates tpl when id is empty and updates it otherwise.
func saveTemplate(ctx context.Context, api TemplateAPI, id string, tpl types.Template) (types.Template, error) {
	if id == "" {
		return api.CreateTemplate(ctx, tpl)
	}
	tpl.ID = id
	return api.UpdateTemplate(ctx, id, tpl)
}

// Defaults returns the initial value bag of the template's create form.
func (h *TemplateHandler) Defaults(w http.ResponseWriter, r *http.Request) {
	tpl, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, form.DefaultValues(tpl))
}

// Schema returns the CUE validation schema as text.
func (h *TemplateHandler) Schema(w http.ResponseWriter, r *http.Request) {
	tpl, ok := h.load(w, r)
	if !ok {
		return
	}
	src := form.Materialize(tpl, render.ByName).Rules.Schema.Source()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(src))
}

// Form renders the template's custom fields as a standalone HTML form
// posting values keyed by field name.
func (h *TemplateHandler) Form(w http.ResponseWriter, r *http.Request) {
	tpl, ok := h.load(w, r)
	if !ok {
		return
	}
	action := r.URL.Query().Get("action")
	if action == "" {
		action = "/v1/templates/" + tpl.ID + "/payload"
	}
	f := form.Materialize(tpl, render.ByName)
	h.writeForm(w, r, f, action, f.Defaults(), nil, "", http.StatusOK)
}

// Payload runs a submission through validation and payload mapping
// without saving anything. JSON bodies are {"values": {fieldName: raw}};
// form posts carry one input per field name and get the form back with
// inline errors when they fail validation.
func (h *TemplateHandler) Payload(w http.ResponseWriter, r *http.Request) {
	tpl, ok := h.load(w, r)
	if !ok {
		return
	}
	htmlForm := isFormPost(r)
	raw, err := readValues(r)
	if err != nil {
		writeBadRequest(w, r, "INVALID_BODY", "bad_request")
		return
	}
	f := form.Materialize(tpl, render.ByName)
	payload, _, err := f.Submit(raw)
	if err != nil {
		verr, ok := asValidation(err)
		switch {
		case ok && htmlForm:
			values := make(map[string]any, len(raw))
			for k, v := range raw {
				values[k] = v
			}
			lang := LangFrom(r.Context())
			h.writeForm(w, r, f, r.URL.Path, values, verr.Fields, i18n.T(lang, "validation_failed"), http.StatusUnprocessableEntity)
		case ok:
			writeValidation(w, r, verr)
		default:
			writeBadRequest(w, r, "INVALID_BODY", "bad_request")
		}
		return
	}
	if payload == nil {
		payload = []types.PayloadEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"fields": payload})
}

// readValues reads raw field values keyed by field name from a form post
// or a {"values": {...}} JSON body.
func readValues(r *http.Request) (map[string]string, error) {
	if isFormPost(r) {
		if err := r.ParseMultipartForm(maxFormMemory); err != nil && err != http.ErrNotMultipart {
			return nil, err
		}
		raw := make(map[string]string, len(r.PostForm))
		for k, vs := range r.PostForm {
			if len(vs) > 0 {
				raw[k] = vs[0]
			}
		}
		return raw, nil
	}
	var body struct {
		Values map[string]any `json:"values"`
	}
	if err := decodeJSON(r, &body); err != nil {
		return nil, err
	}
	raw := make(map[string]string, len(body.Values))
	for k, v := range body.Values {
		raw[k] = rawString(v)
	}
	return raw, nil
}

func (h *TemplateHandler) writeForm(w http.ResponseWriter, r *http.Request, f *form.Form, action string, values map[string]any, errs map[string]string, notice string, status int) {
	lang := LangFrom(r.Context())
	sections := make([]render.Section, 0, len(f.Template.Groups))
	for _, g := range f.Template.Ordered().Groups {
		sections = append(sections, render.Section{Group: g, KeyBy: f.KeyBy})
	}
	html, err := render.NewHTMLRenderer(i18n.Labels(lang)).Form(render.FormOptions{
		Action:   action,
		Title:    f.Template.Title,
		Sections: sections,
		Values:   values,
		Errors:   errs,
		Notice:   notice,
	})
	if err != nil {
		h.logger.Error("rendering template form", zap.String("template_id", f.Template.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", i18n.T(lang, "request_failed"))
		return
	}
	writeHTML(w, status, html)
}

func (h *TemplateHandler) load(w http.ResponseWriter, r *http.Request) (types.Template, bool) {
	tpl, err := h.api.GetTemplate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAPIError(w, r, h.logger, err)
		return types.Template{}, false
	}
	return tpl.Ordered(), true
}

// writeProblems answers 422 with the builder's structural problems.
func writeProblems(w http.ResponseWriter, r *http.Request, problems []builder.Problem) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"error":    i18n.T(LangFrom(r.Context()), "validation_failed"),
		"code":     "INVALID_TEMPLATE",
		"problems": problems,
	})
}
