// Package render turns template field descriptors into form controls.
//
// Each field kind is its own Control variant. Variants are sealed to this
// package and dispatch to a Renderer method of their own, so a new kind
// cannot be added without every Renderer growing a method for it.
package render

import (
	"errors"
	"fmt"
	"html/template"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/matthewbaird/casedesk/internal/types"
)

var (
	ErrInvalidNumber = errors.New("invalid number")
	ErrInvalidDate   = errors.New("invalid date")
)

// DateLayout is the layout of the native date input value.
const DateLayout = "2006-01-02"

// Binding addresses one flat key in a form's value bag, optionally nested
// under a namespace such as "fields".
type Binding struct {
	Key       string
	Namespace string
}

// Name is the form input name, e.g. "fields.victim_count".
func (b Binding) Name() string {
	if b.Namespace == "" {
		return b.Key
	}
	return b.Namespace + "." + b.Key
}

// ID is a DOM id derived from the input name.
func (b Binding) ID() string {
	return "field-" + strings.ReplaceAll(b.Name(), ".", "-")
}

// Control is one bound input control. Parse converts the raw submitted
// string into the storage representation; Format goes the other way for
// re-displaying a stored value.
type Control interface {
	Field() types.Field
	Binding() Binding
	Parse(raw string) (any, error)
	Format(v any) string
	accept(r Renderer, st State) (template.HTML, error)
}

// State is the per-render value and inline error of a control.
type State struct {
	Value any
	Error string
}

// Renderer has one method per control variant.
type Renderer interface {
	Text(c TextControl, st State) (template.HTML, error)
	Number(c NumberControl, st State) (template.HTML, error)
	Textarea(c TextareaControl, st State) (template.HTML, error)
	Date(c DateControl, st State) (template.HTML, error)
	Select(c SelectControl, st State) (template.HTML, error)
	Unsupported(c UnsupportedControl, st State) (template.HTML, error)
}

// Render dispatches c to the matching Renderer method.
func Render(r Renderer, c Control, st State) (template.HTML, error) {
	return c.accept(r, st)
}

type base struct {
	field   types.Field
	binding Binding
}

func (b base) Field() types.Field { return b.field }
func (b base) Binding() Binding    { return b.binding }

// TextControl is a single-line input.
type TextControl struct{ base }

// NumberControl is a numeric input stored as float64 or nil.
type NumberControl struct{ base }

// TextareaControl is a multi-line input.
type TextareaControl struct{ base }

// DateControl is a calendar picker behind a popover trigger, stored as a
// time.Time at UTC midnight or nil.
type DateControl struct{ base }

// SelectControl is declared by templates but has no option list, so it is
// rendered as a disabled placeholder.
type SelectControl struct{ base }

// UnsupportedControl stands in for field types outside the vocabulary.
type UnsupportedControl struct{ base }

// ControlFor builds the control variant for f. Unknown field types yield an
// UnsupportedControl instead of failing.
func ControlFor(f types.Field, b Binding) Control {
	bs := base{field: f, binding: b}
	switch f.FieldType {
	case types.FieldText:
		return TextControl{bs}
	case types.FieldNumber:
		return NumberControl{bs}
	case types.FieldTextarea:
		return TextareaControl{bs}
	case types.FieldDate:
		return DateControl{bs}
	case types.FieldSelect:
		return SelectControl{bs}
	default:
		return UnsupportedControl{bs}
	}
}

func (c TextControl) Parse(raw string) (any, error)        { return raw, nil }
func (c TextareaControl) Parse(raw string) (any, error)    { return raw, nil }
func (c SelectControl) Parse(raw string) (any, error)      { return raw, nil }
func (c UnsupportedControl) Parse(raw string) (any, error) { return raw, nil }

func (c TextControl) Format(v any) string        { return formatString(v) }
func (c TextareaControl) Format(v any) string    { return formatString(v) }
func (c SelectControl) Format(v any) string      { return formatString(v) }
func (c UnsupportedControl) Format(v any) string { return formatString(v) }

// Parse reads a number; an empty input is nil.
func (c NumberControl) Parse(raw string) (any, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%s: %w", c.binding.Key, ErrInvalidNumber)
	}
	return f, nil
}

func (c NumberControl) Format(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case int:
		return strconv.Itoa(n)
	case int64:
		return strconv.FormatInt(n, 10)
	case string:
		return n
	default:
		return fmt.Sprint(n)
	}
}

// Parse reads a calendar date (or a full RFC 3339 timestamp); an empty
// input is nil. Dates are taken at UTC midnight.
func (c DateControl) Parse(raw string) (any, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	return nil, fmt.Errorf("%s: %w", c.binding.Key, ErrInvalidDate)
}

func (c DateControl) Format(v any) string {
	switch d := v.(type) {
	case nil:
		return ""
	case time.Time:
		return d.UTC().Format(DateLayout)
	case *time.Time:
		if d == nil {
			return ""
		}
		return d.UTC().Format(DateLayout)
	case string:
		if t, err := time.Parse(time.RFC3339Nano, d); err == nil {
			return t.UTC().Format(DateLayout)
		}
		return d
	default:
		return fmt.Sprint(d)
	}
}

func (c TextControl) accept(r Renderer, st State) (template.HTML, error) { return r.Text(c, st) }
func (c NumberControl) accept(r Renderer, st State) (template.HTML, error) {
	return r.Number(c, st)
}
func (c TextareaControl) accept(r Renderer, st State) (template.HTML, error) {
	return r.Textarea(c, st)
}
func (c DateControl) accept(r Renderer, st State) (template.HTML, error) { return r.Date(c, st) }
func (c SelectControl) accept(r Renderer, st State) (template.HTML, error) {
	return r.Select(c, st)
}
func (c UnsupportedControl) accept(r Renderer, st State) (template.HTML, error) {
	return r.Unsupported(c, st)
}

func formatString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}
