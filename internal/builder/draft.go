// Package builder implements the structural template editor: adding,
// removing and reordering groups and fields of a draft template, and
// deriving technical field names from labels.
package builder

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/matthewbaird/casedesk/internal/types"
)

var (
	ErrLastGroup        = errors.New("a template needs at least one group")
	ErrLastField        = errors.New("a group needs at least one field")
	ErrOutOfRange       = errors.New("position out of range")
	ErrUnknownFieldType = errors.New("unknown field type")
)

// Direction is a one-slot move.
type Direction int

const (
	Up Direction = iota
	Down
)

// ParseDirection accepts "up" and "down".
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

var (
	whitespace = regexp.MustCompile(`\s+`)
	nameStrip  = regexp.MustCompile(`[^a-z0-9_]`)
)

// DeriveName turns a human label into a technical field name: lowercase,
// whitespace runs become "_", anything outside [a-z0-9_] is dropped.
func DeriveName(label string) string {
	s := strings.ToLower(label)
	s = whitespace.ReplaceAllString(s, "_")
	return nameStrip.ReplaceAllString(s, "")
}

// Draft is a template under construction. It always holds at least one
// group and every group holds at least one field.
type Draft struct {
	tpl types.Template
	// named holds the ids of fields whose technical name was set by hand
	// and must no longer follow the label.
	named map[string]bool
}

// NewDraft starts an empty template with one group holding one field.
func NewDraft() *Draft {
	d := &Draft{named: make(map[string]bool)}
	d.tpl.Groups = []types.Group{newGroup(0)}
	return d
}

// EditDraft starts from an existing template. Its fields keep their
// technical names when relabelled, since saved records refer to them. Empty
// groups or an empty template are padded to satisfy the draft invariants.
func EditDraft(tpl types.Template) *Draft {
	d := &Draft{tpl: tpl.Ordered(), named: make(map[string]bool)}
	if len(d.tpl.Groups) == 0 {
		d.tpl.Groups = []types.Group{newGroup(0)}
	}
	for gi := range d.tpl.Groups {
		g := &d.tpl.Groups[gi]
		if g.ID == "" {
			g.ID = uuid.NewString()
		}
		if len(g.Fields) == 0 {
			g.Fields = []types.Field{newField(0)}
		}
		for fi := range g.Fields {
			f := &g.Fields[fi]
			if f.ID == "" {
				f.ID = uuid.NewString()
			}
			if f.FieldName != "" {
				d.named[f.ID] = true
			}
		}
	}
	d.reindex()
	return d
}

func newGroup(index int) types.Group {
	return types.Group{
		ID:     uuid.NewString(),
		Index:  index,
		Fields: []types.Field{newField(0)},
	}
}

func newField(index int) types.Field {
	return types.Field{
		ID:        uuid.NewString(),
		FieldType: types.FieldText,
		Index:     index,
	}
}

// Template returns a deep copy of the draft template.
func (d *Draft) Template() types.Template {
	out := d.tpl
	out.Groups = make([]types.Group, len(d.tpl.Groups))
	for i, g := range d.tpl.Groups {
		g.Fields = append([]types.Field(nil), g.Fields...)
		out.Groups[i] = g
	}
	return out
}

// GroupCount returns the number of groups.
func (d *Draft) GroupCount() int { return len(d.tpl.Groups) }

// FieldCount returns the number of fields of group gi, or -1.
func (d *Draft) FieldCount(gi int) int {
	if gi < 0 || gi >= len(d.tpl.Groups) {
		return -1
	}
	return len(d.tpl.Groups[gi].Fields)
}

// IsNamed reports whether the field's technical name was set by hand.
func (d *Draft) IsNamed(fieldID string) bool { return d.named[fieldID] }

// TemplatePatch holds optional template-level changes.
type TemplatePatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

// UpdateTemplate applies p.
func (d *Draft) UpdateTemplate(p TemplatePatch) {
	if p.Title != nil {
		d.tpl.Title = *p.Title
	}
	if p.Description != nil {
		d.tpl.Description = *p.Description
	}
}

// AddGroup appends a new group with one empty field and returns its
// position.
func (d *Draft) AddGroup() int {
	d.tpl.Groups = append(d.tpl.Groups, newGroup(len(d.tpl.Groups)))
	return len(d.tpl.Groups) - 1
}

// RemoveGroup deletes group gi unless it is the last one.
func (d *Draft) RemoveGroup(gi int) error {
	if err := d.checkGroup(gi); err != nil {
		return err
	}
	if len(d.tpl.Groups) == 1 {
		return ErrLastGroup
	}
	for _, f := range d.tpl.Groups[gi].Fields {
		delete(d.named, f.ID)
	}
	d.tpl.Groups = append(d.tpl.Groups[:gi], d.tpl.Groups[gi+1:]...)
	d.reindex()
	return nil
}

// MoveGroup swaps group gi with its neighbour. Moving past either end is a
// no-op and returns false.
func (d *Draft) MoveGroup(gi int, dir Direction) (bool, error) {
	if err := d.checkGroup(gi); err != nil {
		return false, err
	}
	j := neighbour(gi, dir)
	if j < 0 || j >= len(d.tpl.Groups) {
		return false, nil
	}
	gs := d.tpl.Groups
	gs[gi], gs[j] = gs[j], gs[gi]
	d.reindex()
	return true, nil
}

// GroupPatch holds optional group changes.
type GroupPatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

// UpdateGroup applies p to group gi.
func (d *Draft) UpdateGroup(gi int, p GroupPatch) error {
	if err := d.checkGroup(gi); err != nil {
		return err
	}
	g := &d.tpl.Groups[gi]
	if p.Title != nil {
		g.Title = *p.Title
	}
	if p.Description != nil {
		g.Description = *p.Description
	}
	return nil
}

// AddField appends a text field to group gi and returns its position.
func (d *Draft) AddField(gi int) (int, error) {
	if err := d.checkGroup(gi); err != nil {
		return 0, err
	}
	g := &d.tpl.Groups[gi]
	g.Fields = append(g.Fields, newField(len(g.Fields)))
	return len(g.Fields) - 1, nil
}

// RemoveField deletes field fi of group gi unless it is the group's last.
func (d *Draft) RemoveField(gi, fi int) error {
	if err := d.checkField(gi, fi); err != nil {
		return err
	}
	g := &d.tpl.Groups[gi]
	if len(g.Fields) == 1 {
		return ErrLastField
	}
	delete(d.named, g.Fields[fi].ID)
	g.Fields = append(g.Fields[:fi], g.Fields[fi+1:]...)
	d.reindex()
	return nil
}

// MoveField swaps field fi of group gi with its neighbour in the same
// group. Moving past either end is a no-op and returns false.
func (d *Draft) MoveField(gi, fi int, dir Direction) (bool, error) {
	if err := d.checkField(gi, fi); err != nil {
		return false, err
	}
	fs := d.tpl.Groups[gi].Fields
	j := neighbour(fi, dir)
	if j < 0 || j >= len(fs) {
		return false, nil
	}
	fs[fi], fs[j] = fs[j], fs[fi]
	d.reindex()
	return true, nil
}

// FieldPatch holds optional field changes. Label is applied before Name,
// so a patch carrying both keeps the explicit name.
type FieldPatch struct {
	Label       *string          `json:"fieldLabel,omitempty"`
	Name        *string          `json:"fieldName,omitempty"`
	Type        *types.FieldType `json:"fieldType,omitempty"`
	Required    *bool            `json:"isRequired,omitempty"`
	Placeholder *string          `json:"placeholder,omitempty"`
	Description *string          `json:"description,omitempty"`
}

// UpdateField applies p to field fi of group gi. A label change re-derives
// the technical name until the name is set explicitly.
func (d *Draft) UpdateField(gi, fi int, p FieldPatch) error {
	if err := d.checkField(gi, fi); err != nil {
		return err
	}
	if p.Type != nil && !p.Type.Known() {
		return fmt.Errorf("%w: %q", ErrUnknownFieldType, *p.Type)
	}
	f := &d.tpl.Groups[gi].Fields[fi]
	if p.Label != nil {
		f.FieldLabel = *p.Label
		if !d.named[f.ID] {
			f.FieldName = DeriveName(*p.Label)
		}
	}
	if p.Name != nil {
		f.FieldName = *p.Name
		d.named[f.ID] = true
	}
	if p.Type != nil {
		f.FieldType = *p.Type
	}
	if p.Required != nil {
		f.IsRequired = *p.Required
	}
	if p.Placeholder != nil {
		f.Placeholder = *p.Placeholder
	}
	if p.Description != nil {
		f.Description = *p.Description
	}
	return nil
}

// Problem is one structural issue found by Validate.
type Problem struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Validate checks that the template and each group have a title. Duplicate
// field names are allowed.
func (d *Draft) Validate() []Problem {
	var out []Problem
	if strings.TrimSpace(d.tpl.Title) == "" {
		out = append(out, Problem{Path: "title", Message: "title is required"})
	}
	for i, g := range d.tpl.Groups {
		if strings.TrimSpace(g.Title) == "" {
			out = append(out, Problem{Path: fmt.Sprintf("groups[%d].title", i), Message: "title is required"})
		}
	}
	return out
}

// reindex makes every index equal its array position.
func (d *Draft) reindex() {
	for gi := range d.tpl.Groups {
		g := &d.tpl.Groups[gi]
		g.Index = gi
		for fi := range g.Fields {
			g.Fields[fi].Index = fi
		}
	}
}

func (d *Draft) checkGroup(gi int) error {
	if gi < 0 || gi >= len(d.tpl.Groups) {
		return fmt.Errorf("group %d: %w", gi, ErrOutOfRange)
	}
	return nil
}

func (d *Draft) checkField(gi, fi int) error {
	if err := d.checkGroup(gi); err != nil {
		return err
	}
	if fi < 0 || fi >= len(d.tpl.Groups[gi].Fields) {
		return fmt.Errorf("field %d of group %d: %w", fi, gi, ErrOutOfRange)
	}
	return nil
}

func neighbour(i int, dir Direction) int {
	if dir == Up {
		return i - 1
	}
	return i + 1
}
