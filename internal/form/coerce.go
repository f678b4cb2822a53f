package form

import (
	"errors"

	"github.com/matthewbaird/casedesk/internal/render"
	"github.com/matthewbaird/casedesk/internal/types"
)

// Coerce parses raw submitted strings keyed by field name into storage
// values: strings for text-like fields, float64 or nil for numbers,
// time.Time or nil for dates. A field missing from raw is parsed as "".
// Parse failures are reported as a *ValidationError; the returned map still
// holds a nil for each failed field.
func Coerce(tpl types.Template, raw map[string]string) (map[string]any, error) {
	return coerce(tpl, raw, render.ByName)
}

func coerce(tpl types.Template, raw map[string]string, keyBy render.KeyFunc) (map[string]any, error) {
	out := make(map[string]any, tpl.FieldCount())
	verr := &ValidationError{}
	for _, gf := range tpl.AllFields() {
		key := keyBy(gf.Field)
		if _, done := out[key]; done {
			continue
		}
		v, err := render.ControlFor(gf.Field, render.Binding{Key: key}).Parse(raw[key])
		if err != nil {
			switch {
			case errors.Is(err, render.ErrInvalidNumber):
				verr.Add(key, CodeInvalidNumber)
			case errors.Is(err, render.ErrInvalidDate):
				verr.Add(key, CodeInvalidDate)
			default:
				verr.Add(key, CodeInvalid)
			}
		}
		out[key] = v
	}
	if verr.Empty() {
		return out, nil
	}
	return out, verr
}
