// Package types provides the JSON shapes exchanged with the case management
// API: templates with their groups and fields, records (cases and sources)
// carrying a snapshot of template fields, and the flat payload entries sent
// on create and update.
package types

import "sort"

// FieldType is the wire name of a custom field kind.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldNumber   FieldType = "number"
	FieldSelect   FieldType = "select"
	FieldDate     FieldType = "date"
	FieldTextarea FieldType = "textarea"
)

// FieldTypes lists the closed vocabulary in builder menu order.
var FieldTypes = []FieldType{FieldText, FieldNumber, FieldSelect, FieldDate, FieldTextarea}

// Known reports whether t belongs to the closed vocabulary. Unknown values
// are accepted when reading templates but never produced by the builder.
func (t FieldType) Known() bool {
	switch t {
	case FieldText, FieldNumber, FieldSelect, FieldDate, FieldTextarea:
		return true
	}
	return false
}

// Template is the reusable custom-field schema for a category of record.
type Template struct {
	ID          string  `json:"id,omitempty" yaml:"id,omitempty"`
	Title       string  `json:"title" yaml:"title"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Groups      []Group `json:"groups" yaml:"groups"`
}

// Group is a named section of a template.
type Group struct {
	ID          string  `json:"id,omitempty" yaml:"id,omitempty"`
	Title       string  `json:"title" yaml:"title"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Index       int     `json:"index" yaml:"index"`
	Fields      []Field `json:"fields" yaml:"fields"`
}

// Field describes one custom field. FieldName is the technical key used in
// both the form value bag and the outgoing payload.
type Field struct {
	ID          string    `json:"id,omitempty" yaml:"id,omitempty"`
	FieldName   string    `json:"fieldName" yaml:"fieldName"`
	FieldLabel  string    `json:"fieldLabel" yaml:"fieldLabel"`
	FieldType   FieldType `json:"fieldType" yaml:"fieldType"`
	IsRequired  bool      `json:"isRequired" yaml:"isRequired"`
	Placeholder string    `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Index       int       `json:"index" yaml:"index"`
}

// GroupField pairs a field with the group that declares it.
type GroupField struct {
	GroupID string
	Field   Field
}

// Ordered returns a copy of the template whose groups and fields are sorted
// by index. The sort is stable, so equal indexes keep their array order.
func (t Template) Ordered() Template {
	out := t
	out.Groups = make([]Group, len(t.Groups))
	copy(out.Groups, t.Groups)
	sort.SliceStable(out.Groups, func(i, j int) bool { return out.Groups[i].Index < out.Groups[j].Index })
	for i := range out.Groups {
		fields := make([]Field, len(out.Groups[i].Fields))
		copy(fields, out.Groups[i].Fields)
		sort.SliceStable(fields, func(a, b int) bool { return fields[a].Index < fields[b].Index })
		out.Groups[i].Fields = fields
	}
	return out
}

// AllFields flattens the template in group order then field order, as
// stored in the arrays.
func (t Template) AllFields() []GroupField {
	var out []GroupField
	for _, g := range t.Groups {
		for _, f := range g.Fields {
			out = append(out, GroupField{GroupID: g.ID, Field: f})
		}
	}
	return out
}

// FieldCount returns the number of fields across all groups.
func (t Template) FieldCount() int {
	n := 0
	for _, g := range t.Groups {
		n += len(g.Fields)
	}
	return n
}
