package form

import (
	"github.com/matthewbaird/casedesk/internal/render"
	"github.com/matthewbaird/casedesk/internal/types"
)

// DefaultValues returns the initial value bag for tpl keyed by field name:
// nil for number and date fields, "" for everything else. Fields sharing a
// name share one entry.
func DefaultValues(tpl types.Template) map[string]any {
	return defaultValues(tpl, render.ByName)
}

func defaultValues(tpl types.Template, keyBy render.KeyFunc) map[string]any {
	out := make(map[string]any, tpl.FieldCount())
	for _, gf := range tpl.AllFields() {
		out[keyBy(gf.Field)] = defaultFor(gf.Field.FieldType)
	}
	return out
}

func defaultFor(t types.FieldType) any {
	switch t {
	case types.FieldNumber, types.FieldDate:
		return nil
	default:
		return ""
	}
}

// Duplicates returns the field names declared more than once, in order of
// first repetition.
func Duplicates(tpl types.Template) []string {
	seen := make(map[string]int)
	var dups []string
	for _, gf := range tpl.AllFields() {
		seen[gf.Field.FieldName]++
		if seen[gf.Field.FieldName] == 2 {
			dups = append(dups, gf.Field.FieldName)
		}
	}
	return dups
}
