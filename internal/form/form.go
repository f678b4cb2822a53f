// Package form materializes a template into what a form needs: default
// values, a validation ruleset, and the mapping from submitted values back
// to the flat payload the API expects.
package form

import (
	"github.com/matthewbaird/casedesk/internal/render"
	"github.com/matthewbaird/casedesk/internal/types"
)

// Form is a template materialized for one value-bag keying scheme. Create
// forms key values by field name; edit forms key them by field id.
type Form struct {
	Template types.Template
	KeyBy    render.KeyFunc
	Rules    Ruleset
}

// Materialize builds the form for tpl. A nil keyBy keys by field name.
func Materialize(tpl types.Template, keyBy render.KeyFunc) *Form {
	if keyBy == nil {
		keyBy = render.ByName
	}
	return &Form{
		Template: tpl,
		KeyBy:    keyBy,
		Rules:    NewRuleset(tpl, keyBy),
	}
}

// Defaults returns the initial value bag.
func (f *Form) Defaults() map[string]any {
	return defaultValues(f.Template, f.KeyBy)
}

// Coerce parses raw submitted strings into storage values.
func (f *Form) Coerce(raw map[string]string) (map[string]any, error) {
	return coerce(f.Template, raw, f.KeyBy)
}

// Validate checks storage values against the ruleset.
func (f *Form) Validate(values map[string]any) error {
	return f.Rules.Validate(values)
}

// Payload maps storage values to payload entries in template order.
func (f *Form) Payload(values map[string]any) []types.PayloadEntry {
	return buildPayload(f.Template, values, f.KeyBy)
}

// Submit runs the whole submit path: coerce, validate, map. Validation
// errors from both coercion and the ruleset are merged into one
// *ValidationError and no payload is returned.
func (f *Form) Submit(raw map[string]string) ([]types.PayloadEntry, map[string]any, error) {
	values, cerr := f.Coerce(raw)
	verr := &ValidationError{}
	verr.merge(cerr)
	verr.merge(f.Validate(values))
	if !verr.Empty() {
		return nil, values, verr
	}
	return f.Payload(values), values, nil
}
