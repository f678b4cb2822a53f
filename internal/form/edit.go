package form

import (
	"github.com/matthewbaird/casedesk/internal/render"
	"github.com/matthewbaird/casedesk/internal/types"
)

// EditValues returns the value bag of an edit form for rec, keyed by field
// id. Each field of the current template takes its value from the record
// snapshot entry with the same id; fields missing from the snapshot keep
// their defaults and snapshot entries whose id is no longer in tpl are
// dropped. Stored values that no longer parse for the field's type also
// fall back to the default.
func EditValues(tpl types.Template, rec types.Record) map[string]any {
	snapshot := make(map[string]types.RecordField)
	for _, g := range rec.Groups {
		for _, f := range g.Fields {
			snapshot[f.ID] = f
		}
	}
	out := defaultValues(tpl, render.ByID)
	for _, gf := range tpl.AllFields() {
		rf, ok := snapshot[gf.Field.ID]
		if !ok || rf.FieldValue == nil {
			continue
		}
		c := render.ControlFor(gf.Field, render.Binding{Key: gf.Field.ID})
		v, err := c.Parse(*rf.FieldValue)
		if err != nil {
			continue
		}
		out[gf.Field.ID] = v
	}
	return out
}
