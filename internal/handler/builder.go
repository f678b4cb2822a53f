package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/matthewbaird/casedesk/internal/builder"
	"github.com/matthewbaird/casedesk/internal/event"
	"github.com/matthewbaird/casedesk/internal/form"
	"github.com/matthewbaird/casedesk/internal/i18n"
)

// BuilderHandler exposes template builder sessions over HTTP. Every
// operation answers with the session's current state.
type BuilderHandler struct {
	sessions *builder.Manager
	api      TemplateAPI
	pub      event.Publisher
	logger   *zap.Logger
}

// NewBuilderHandler creates a BuilderHandler.
func NewBuilderHandler(sessions *builder.Manager, api TemplateAPI, pub event.Publisher, logger *zap.Logger) *BuilderHandler {
	if pub == nil {
		pub = event.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BuilderHandler{sessions: sessions, api: api, pub: pub, logger: logger}
}

// Routes registers the builder endpoints, mounted at /v1/builder/sessions.
func (h *BuilderHandler) Routes(r chi.Router) {
	r.Post("/", h.Create)
	r.Route("/{sid}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Delete)
		r.Patch("/", h.UpdateTemplate)
		r.Post("/save", h.Save)
		r.Post("/groups", h.AddGroup)
		r.Route("/groups/{g}", func(r chi.Router) {
			r.Patch("/", h.UpdateGroup)
			r.Delete("/", h.RemoveGroup)
			r.Post("/move", h.MoveGroup)
			r.Post("/fields", h.AddField)
			r.Patch("/fields/{f}", h.UpdateField)
			r.Delete("/fields/{f}", h.RemoveField)
			r.Post("/fields/{f}/move", h.MoveField)
		})
	})
}

// builderView is a session plus the diagnostics shown next to the editor.
type builderView struct {
	builder.View
	Duplicates []string `json:"duplicates"`
	Moved      *bool    `json:"moved,omitempty"`
}

func (h *BuilderHandler) view(s *builder.Session) builderView {
	v := builderView{View: s.Snapshot()}
	v.Duplicates = form.Duplicates(v.Template)
	if v.Duplicates == nil {
		v.Duplicates = []string{}
	}
	return v
}

// Create starts a session on a blank draft, or on a saved template when
// the body names one.
func (h *BuilderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TemplateID string `json:"templateId"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &body); err != nil {
			writeBadRequest(w, r, "INVALID_BODY", "bad_request")
			return
		}
	}
	d := builder.NewDraft()
	if body.TemplateID != "" {
		tpl, err := h.api.GetTemplate(r.Context(), body.TemplateID)
		if err != nil {
			writeAPIError(w, r, h.logger, err)
			return
		}
		d = builder.EditDraft(tpl)
	}
	s := h.sessions.Create(d, body.TemplateID)
	h.logger.Debug("builder session created", zap.String("session_id", s.ID), zap.String("template_id", body.TemplateID))
	writeJSON(w, http.StatusCreated, h.view(s))
}

// Get returns the session state.
func (h *BuilderHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.view(s))
}

// Delete discards a session without saving.
func (h *BuilderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.session(w, r); !ok {
		return
	}
	h.sessions.Remove(chi.URLParam(r, "sid"))
	w.WriteHeader(http.StatusNoContent)
}

// UpdateTemplate patches the template title and description.
func (h *BuilderHandler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var p builder.TemplatePatch
	h.edit(w, r, &p, func(d *builder.Draft) error {
		d.UpdateTemplate(p)
		return nil
	})
}

// AddGroup appends a group.
func (h *BuilderHandler) AddGroup(w http.ResponseWriter, r *http.Request) {
	h.edit(w, r, nil, func(d *builder.Draft) error {
		d.AddGroup()
		return nil
	})
}

// UpdateGroup patches a group's title and description.
func (h *BuilderHandler) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	var p builder.GroupPatch
	h.edit(w, r, &p, func(d *builder.Draft) error {
		gi, err := position(r, "g")
		if err != nil {
			return err
		}
		return d.UpdateGroup(gi, p)
	})
}

// RemoveGroup deletes a group unless it is the last one.
func (h *BuilderHandler) RemoveGroup(w http.ResponseWriter, r *http.Request) {
	h.edit(w, r, nil, func(d *builder.Draft) error {
		gi, err := position(r, "g")
		if err != nil {
			return err
		}
		return d.RemoveGroup(gi)
	})
}

// MoveGroup swaps a group with its neighbour.
func (h *BuilderHandler) MoveGroup(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, func(d *builder.Draft, dir builder.Direction) (bool, error) {
		gi, err := position(r, "g")
		if err != nil {
			return false, err
		}
		return d.MoveGroup(gi, dir)
	})
}

// AddField appends a text field to a group.
func (h *BuilderHandler) AddField(w http.ResponseWriter, r *http.Request) {
	h.edit(w, r, nil, func(d *builder.Draft) error {
		gi, err := position(r, "g")
		if err != nil {
			return err
		}
		_, err = d.AddField(gi)
		return err
	})
}

// UpdateField patches a field. A label change re-derives the technical
// name until the name is set explicitly.
func (h *BuilderHandler) UpdateField(w http.ResponseWriter, r *http.Request) {
	var p builder.FieldPatch
	h.edit(w, r, &p, func(d *builder.Draft) error {
		gi, fi, err := fieldPosition(r)
		if err != nil {
			return err
		}
		return d.UpdateField(gi, fi, p)
	})
}

// RemoveField deletes a field unless it is its group's last.
func (h *BuilderHandler) RemoveField(w http.ResponseWriter, r *http.Request) {
	h.edit(w, r, nil, func(d *builder.Draft) error {
		gi, fi, err := fieldPosition(r)
		if err != nil {
			return err
		}
		return d.RemoveField(gi, fi)
	})
}

// MoveField swaps a field with its neighbour in the same group.
func (h *BuilderHandler) MoveField(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, func(d *builder.Draft, dir builder.Direction) (bool, error) {
		gi, fi, err := fieldPosition(r)
		if err != nil {
			return false, err
		}
		return d.MoveField(gi, fi, dir)
	})
}

// Save posts the draft to the API, creating the template on the first
// save and updating it afterwards.
func (h *BuilderHandler) Save(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	v := s.Snapshot()
	if len(v.Problems) > 0 {
		writeProblems(w, r, v.Problems)
		return
	}
	saved, err := saveTemplate(context.WithoutCancel(r.Context()), h.api, v.TemplateID, v.Template)
	if err != nil {
		writeAPIError(w, r, h.logger, err)
		return
	}
	s.Saved(saved)
	h.pub.Publish(r.Context(), event.NewTemplateSaved(saved, v.TemplateID == "", actorFrom(r)))
	h.logger.Info("template saved from builder",
		zap.String("session_id", s.ID),
		zap.String("template_id", saved.ID),
		zap.Int("fields", saved.FieldCount()))
	writeJSON(w, http.StatusOK, h.view(s))
}

func (h *BuilderHandler) session(w http.ResponseWriter, r *http.Request) (*builder.Session, bool) {
	s := h.sessions.Get(chi.URLParam(r, "sid"))
	if s == nil {
		writeError(w, http.StatusNotFound, "SESSION_NOT_FOUND", i18n.T(LangFrom(r.Context()), "not_found"))
		return nil, false
	}
	return s, true
}

// edit decodes an optional patch body into patch, runs fn on the draft and
// answers with the new state.
func (h *BuilderHandler) edit(w http.ResponseWriter, r *http.Request, patch any, fn func(d *builder.Draft) error) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if patch != nil {
		if err := decodeJSON(r, patch); err != nil {
			writeBadRequest(w, r, "INVALID_BODY", "bad_request")
			return
		}
	}
	if err := s.Do(fn); err != nil {
		writeBuilderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(s))
}

func (h *BuilderHandler) move(w http.ResponseWriter, r *http.Request, fn func(d *builder.Draft, dir builder.Direction) (bool, error)) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var body struct {
		Direction string `json:"direction"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeBadRequest(w, r, "INVALID_BODY", "bad_request")
		return
	}
	dir, err := builder.ParseDirection(body.Direction)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_DIRECTION", err.Error())
		return
	}
	var moved bool
	err = s.Do(func(d *builder.Draft) error {
		var err error
		moved, err = fn(d, dir)
		return err
	})
	if err != nil {
		writeBuilderError(w, r, err)
		return
	}
	v := h.view(s)
	v.Moved = &moved
	writeJSON(w, http.StatusOK, v)
}

// errBadPosition marks a group or field position that is not a number.
var errBadPosition = errors.New("position must be a non-negative integer")

func position(r *http.Request, param string) (int, error) {
	n, err := strconv.Atoi(chi.URLParam(r, param))
	if err != nil || n < 0 {
		return 0, errBadPosition
	}
	return n, nil
}

func fieldPosition(r *http.Request) (int, int, error) {
	gi, err := position(r, "g")
	if err != nil {
		return 0, 0, err
	}
	fi, err := position(r, "f")
	if err != nil {
		return 0, 0, err
	}
	return gi, fi, nil
}

// writeBuilderError maps draft errors to HTTP answers.
func writeBuilderError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, builder.ErrOutOfRange):
		writeError(w, http.StatusNotFound, "OUT_OF_RANGE", err.Error())
	case errors.Is(err, builder.ErrLastGroup), errors.Is(err, builder.ErrLastField):
		writeError(w, http.StatusConflict, "MINIMUM_REACHED", err.Error())
	case errors.Is(err, builder.ErrUnknownFieldType):
		writeBadRequest(w, r, "UNSUPPORTED_FIELD_TYPE", "unsupported_type")
	case errors.Is(err, errBadPosition):
		writeError(w, http.StatusBadRequest, "INVALID_POSITION", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", i18n.T(LangFrom(r.Context()), "request_failed"))
	}
}
