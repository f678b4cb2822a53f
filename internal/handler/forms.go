package handler

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/matthewbaird/casedesk/internal/form"
	"github.com/matthewbaird/casedesk/internal/i18n"
	"github.com/matthewbaird/casedesk/internal/render"
	"github.com/matthewbaird/casedesk/internal/types"
)

// fieldsNamespace prefixes custom field inputs so they cannot collide with
// base field names.
const fieldsNamespace = "fields"

// maxFormMemory bounds multipart form parsing.
const maxFormMemory = 10 << 20

// submission is a create or update body as sent by a browser form or a
// JSON client. Fields holds custom values keyed by field name on create and
// by field id on update.
type submission struct {
	TemplateID     string         `json:"templateId"`
	Name           string         `json:"name"`
	LawReference   string         `json:"lawReference"`
	AssignedUserID string         `json:"assignedUserId"`
	StartDate      string         `json:"startDate"`
	EndDate        string         `json:"endDate"`
	Description    string         `json:"description"`
	Fields         map[string]any `json:"fields"`
}

// readSubmission decodes a form post (custom inputs named "fields.<key>")
// or a JSON body.
func readSubmission(r *http.Request) (submission, error) {
	var s submission
	if !isFormPost(r) {
		if err := decodeJSON(r, &s); err != nil {
			return s, err
		}
		return s, nil
	}
	if err := r.ParseMultipartForm(maxFormMemory); err != nil && err != http.ErrNotMultipart {
		return s, err
	}
	pf := r.PostForm
	s.TemplateID = pf.Get("templateId")
	s.Name = pf.Get("name")
	s.LawReference = pf.Get("lawReference")
	s.AssignedUserID = pf.Get("assignedUserId")
	s.StartDate = pf.Get("startDate")
	s.EndDate = pf.Get("endDate")
	s.Description = pf.Get("description")
	s.Fields = make(map[string]any)
	for k, vs := range pf {
		if key, ok := strings.CutPrefix(k, fieldsNamespace+"."); ok && len(vs) > 0 {
			s.Fields[key] = vs[0]
		}
	}
	return s, nil
}

func (s submission) baseRaw() map[string]string {
	return map[string]string{
		"name":           s.Name,
		"lawReference":   s.LawReference,
		"assignedUserId": s.AssignedUserID,
		"startDate":      s.StartDate,
		"endDate":        s.EndDate,
		"description":    s.Description,
	}
}

func (s submission) customRaw() map[string]string {
	out := make(map[string]string, len(s.Fields))
	for k, v := range s.Fields {
		out[k] = rawString(v)
	}
	return out
}

// display returns the submitted strings keyed by input name, for
// re-rendering a rejected form exactly as typed.
func (s submission) display() map[string]any {
	out := make(map[string]any)
	for k, v := range s.baseRaw() {
		out[k] = v
	}
	for k, v := range s.customRaw() {
		out[fieldsNamespace+"."+k] = v
	}
	return out
}

// baseTemplate describes the fixed record fields as a one-group template
// so they go through the same controls and validation as custom fields.
func baseTemplate(lang string) types.Template {
	field := func(i int, name, label string, t types.FieldType, required bool) types.Field {
		return types.Field{ID: name, FieldName: name, FieldLabel: i18n.T(lang, label), FieldType: t, IsRequired: required, Index: i}
	}
	return types.Template{Groups: []types.Group{{
		ID:    "base",
		Title: i18n.T(lang, "base_section"),
		Fields: []types.Field{
			field(0, "name", "name", types.FieldText, true),
			field(1, "lawReference", "law_reference", types.FieldText, false),
			field(2, "assignedUserId", "assigned_user", types.FieldText, false),
			field(3, "startDate", "start_date", types.FieldDate, false),
			field(4, "endDate", "end_date", types.FieldDate, false),
			field(5, "description", "description", types.FieldTextarea, false),
		},
	}}}
}

// recordForm pairs the base field form with a template's custom fields.
type recordForm struct {
	lang   string
	base   *form.Form
	custom *form.Form
}

func newRecordForm(lang string, tpl types.Template, keyBy render.KeyFunc) recordForm {
	return recordForm{
		lang:   lang,
		base:   form.Materialize(baseTemplate(lang), render.ByName),
		custom: form.Materialize(tpl, keyBy),
	}
}

// submit validates s and returns the base fields and custom payload. The
// error, when validation fails, is a *form.ValidationError keyed by input
// name.
func (f recordForm) submit(s submission) (types.BaseFields, []types.PayloadEntry, error) {
	_, baseValues, berr := f.base.Submit(s.baseRaw())
	payload, _, cerr := f.custom.Submit(s.customRaw())

	all := &form.ValidationError{}
	if verr, ok := asValidation(berr); ok {
		for k, code := range verr.Fields {
			all.Add(k, code)
		}
	}
	if verr, ok := asValidation(cerr); ok {
		for k, code := range verr.Fields {
			all.Add(fieldsNamespace+"."+k, code)
		}
	}
	if !all.Empty() {
		return types.BaseFields{}, nil, all
	}
	return baseFieldsFrom(baseValues), payload, nil
}

// render draws the whole record form. values and errs are keyed by input
// name; errs holds codes and is localized here.
func (f recordForm) render(action, title string, values map[string]any, errs map[string]string, notice string) (template.HTML, error) {
	sections := make([]render.Section, 0, 1+len(f.custom.Template.Groups))
	sections = append(sections, render.Section{Group: f.base.Template.Groups[0], KeyBy: render.ByName})
	for _, g := range f.custom.Template.Ordered().Groups {
		sections = append(sections, render.Section{Group: g, Namespace: fieldsNamespace, KeyBy: f.custom.KeyBy})
	}
	return render.NewHTMLRenderer(i18n.Labels(f.lang)).Form(render.FormOptions{
		Action:   action,
		Title:    title,
		Sections: sections,
		Values:   values,
		Errors:   i18n.Errors(f.lang, errs),
		Notice:   notice,
	})
}

// inputValues merges base and custom value bags into one keyed by input
// name.
func inputValues(base, custom map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(custom))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range custom {
		out[fieldsNamespace+"."+k] = v
	}
	return out
}

func baseFieldsFrom(v map[string]any) types.BaseFields {
	str := func(k string) string {
		s, _ := v[k].(string)
		return strings.TrimSpace(s)
	}
	date := func(k string) *time.Time {
		if t, ok := v[k].(time.Time); ok {
			return &t
		}
		return nil
	}
	return types.BaseFields{
		Name:           str("name"),
		LawReference:   str("lawReference"),
		AssignedUserID: str("assignedUserId"),
		StartDate:      date("startDate"),
		EndDate:        date("endDate"),
		Description:    str("description"),
	}
}

func baseValuesOf(b types.BaseFields) map[string]any {
	out := map[string]any{
		"name":           b.Name,
		"lawReference":   b.LawReference,
		"assignedUserId": b.AssignedUserID,
		"startDate":      nil,
		"endDate":        nil,
		"description":    b.Description,
	}
	if b.StartDate != nil {
		out["startDate"] = *b.StartDate
	}
	if b.EndDate != nil {
		out["endDate"] = *b.EndDate
	}
	return out
}

// formTitle returns the localized title of a new or edit form.
func formTitle(lang, action string, kind types.RecordKind) string {
	return i18n.T(lang, fmt.Sprintf("%s_%s", action, kind))
}
