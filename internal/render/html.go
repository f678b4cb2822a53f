package render

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/matthewbaird/casedesk/internal/types"
)

// Labels are the localized strings the HTML renderer needs.
type Labels struct {
	Required          string
	PickDate          string
	Unsupported       string
	SelectPlaceholder string
	Submit            string
}

// DefaultLabels are the English labels.
var DefaultLabels = Labels{
	Required:          "required",
	PickDate:          "Pick a date",
	Unsupported:       "Unsupported field type",
	SelectPlaceholder: "Options are not available",
	Submit:            "Save",
}

const htmlTemplates = `
{{define "label"}}<label for="{{.ID}}">{{.Label}}{{if .Required}} <span class="required" title="{{.Labels.Required}}">*</span>{{end}}</label>{{end}}
{{define "help"}}{{if .Description}}<p class="field-description">{{.Description}}</p>{{end}}{{if .Error}}<p class="field-error" id="{{.ID}}-error">{{.Error}}</p>{{end}}{{end}}
{{define "text"}}<div class="field field-text{{if .Error}} has-error{{end}}">{{template "label" .}}<input type="text" id="{{.ID}}" name="{{.Name}}" value="{{.Value}}"{{if .Placeholder}} placeholder="{{.Placeholder}}"{{end}}{{if .Required}} aria-required="true"{{end}}>{{template "help" .}}</div>{{end}}
{{define "number"}}<div class="field field-number{{if .Error}} has-error{{end}}">{{template "label" .}}<input type="number" step="any" id="{{.ID}}" name="{{.Name}}" value="{{.Value}}"{{if .Placeholder}} placeholder="{{.Placeholder}}"{{end}}{{if .Required}} aria-required="true"{{end}}>{{template "help" .}}</div>{{end}}
{{define "textarea"}}<div class="field field-textarea{{if .Error}} has-error{{end}}">{{template "label" .}}<textarea id="{{.ID}}" name="{{.Name}}"{{if .Placeholder}} placeholder="{{.Placeholder}}"{{end}}{{if .Required}} aria-required="true"{{end}}>{{.Value}}</textarea>{{template "help" .}}</div>{{end}}
{{define "date"}}<div class="field field-date{{if .Error}} has-error{{end}}">{{template "label" .}}<details class="date-popover"><summary id="{{.ID}}-trigger">{{if .Value}}{{.Value}}{{else if .Placeholder}}{{.Placeholder}}{{else}}{{.Labels.PickDate}}{{end}}</summary><input type="date" id="{{.ID}}" name="{{.Name}}" value="{{.Value}}"{{if .Required}} aria-required="true"{{end}}></details>{{template "help" .}}</div>{{end}}
{{define "select"}}<div class="field field-select">{{template "label" .}}<select id="{{.ID}}" name="{{.Name}}" disabled><option value="">{{if .Placeholder}}{{.Placeholder}}{{else}}{{.Labels.SelectPlaceholder}}{{end}}</option></select>{{template "help" .}}</div>{{end}}
{{define "unsupported"}}<div class="field field-unsupported">{{template "label" .}}<p class="unsupported" data-field-type="{{.Type}}">{{.Labels.Unsupported}}: {{.Type}}</p></div>{{end}}
{{define "form"}}<form method="post" action="{{.Action}}" class="template-form">{{if .Title}}<h2>{{.Title}}</h2>{{end}}{{if .Notice}}<p class="form-error" role="alert">{{.Notice}}</p>{{end}}{{range .Groups}}<fieldset class="field-group"{{if .ID}} data-group-id="{{.ID}}"{{end}}>{{if .Title}}<legend>{{.Title}}</legend>{{end}}{{if .Description}}<p class="group-description">{{.Description}}</p>{{end}}{{range .Controls}}{{.}}{{end}}</fieldset>{{end}}<button type="submit">{{.Submit}}</button></form>{{end}}
`

// HTMLRenderer renders controls and forms as HTML fragments.
type HTMLRenderer struct {
	tpl    *template.Template
	labels Labels
}

var baseTemplates = template.Must(template.New("controls").Parse(htmlTemplates))

// NewHTMLRenderer creates a renderer using the given labels.
func NewHTMLRenderer(labels Labels) *HTMLRenderer {
	return &HTMLRenderer{tpl: baseTemplates, labels: labels}
}

type controlData struct {
	ID          string
	Name        string
	Label       string
	Placeholder string
	Description string
	Value       string
	Error       string
	Type        string
	Required    bool
	Labels      Labels
}

func (h *HTMLRenderer) data(c Control, st State) controlData {
	f := c.Field()
	b := c.Binding()
	return controlData{
		ID:          b.ID(),
		Name:        b.Name(),
		Label:       f.FieldLabel,
		Placeholder: f.Placeholder,
		Description: f.Description,
		Value:       c.Format(st.Value),
		Error:       st.Error,
		Type:        string(f.FieldType),
		Required:    f.IsRequired,
		Labels:      h.labels,
	}
}

func (h *HTMLRenderer) exec(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := h.tpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", name, err)
	}
	return template.HTML(buf.String()), nil
}

func (h *HTMLRenderer) Text(c TextControl, st State) (template.HTML, error) {
	return h.exec("text", h.data(c, st))
}

func (h *HTMLRenderer) Number(c NumberControl, st State) (template.HTML, error) {
	return h.exec("number", h.data(c, st))
}

func (h *HTMLRenderer) Textarea(c TextareaControl, st State) (template.HTML, error) {
	return h.exec("textarea", h.data(c, st))
}

func (h *HTMLRenderer) Date(c DateControl, st State) (template.HTML, error) {
	return h.exec("date", h.data(c, st))
}

func (h *HTMLRenderer) Select(c SelectControl, st State) (template.HTML, error) {
	return h.exec("select", h.data(c, st))
}

func (h *HTMLRenderer) Unsupported(c UnsupportedControl, st State) (template.HTML, error) {
	return h.exec("unsupported", h.data(c, st))
}

// KeyFunc picks the value-bag key of a field.
type KeyFunc func(types.Field) string

// ByName keys fields by their technical name.
func ByName(f types.Field) string { return f.FieldName }

// ByID keys fields by their id.
func ByID(f types.Field) string { return f.ID }

// Section is one group of controls sharing a namespace and key function.
type Section struct {
	Group     types.Group
	Namespace string
	KeyBy     KeyFunc
}

// FormOptions describes a whole form. Values and Errors are keyed by the
// full input name (Binding.Name).
type FormOptions struct {
	Action   string
	Title    string
	Submit   string
	Sections []Section
	Values   map[string]any
	Errors   map[string]string
	// Notice is a form-level message shown above the groups.
	Notice string
}

type groupData struct {
	ID          string
	Title       string
	Description string
	Controls    []template.HTML
}

// Controls builds the bound controls of a section in display order.
func (s Section) Controls() []Control {
	keyBy := s.KeyBy
	if keyBy == nil {
		keyBy = ByName
	}
	g := types.Template{Groups: []types.Group{s.Group}}.Ordered().Groups[0]
	out := make([]Control, 0, len(g.Fields))
	for _, f := range g.Fields {
		out = append(out, ControlFor(f, Binding{Key: keyBy(f), Namespace: s.Namespace}))
	}
	return out
}

// Form renders a complete form with one fieldset per section.
func (h *HTMLRenderer) Form(opts FormOptions) (template.HTML, error) {
	submit := opts.Submit
	if submit == "" {
		submit = h.labels.Submit
	}
	groups := make([]groupData, 0, len(opts.Sections))
	for _, s := range opts.Sections {
		gd := groupData{ID: s.Group.ID, Title: s.Group.Title, Description: s.Group.Description}
		for _, c := range s.Controls() {
			name := c.Binding().Name()
			html, err := Render(h, c, State{Value: opts.Values[name], Error: opts.Errors[name]})
			if err != nil {
				return "", err
			}
			gd.Controls = append(gd.Controls, html)
		}
		groups = append(groups, gd)
	}
	return h.exec("form", struct {
		Action string
		Title  string
		Notice string
		Submit string
		Groups []groupData
	}{opts.Action, opts.Title, opts.Notice, submit, groups})
}
