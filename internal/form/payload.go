package form

import (
	"fmt"
	"strconv"
	"time"

	"github.com/matthewbaird/casedesk/internal/render"
	"github.com/matthewbaird/casedesk/internal/types"
)

// isoLayout matches JavaScript's Date.prototype.toISOString.
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

// ISOString formats t in UTC with millisecond precision,
// e.g. "2024-05-01T00:00:00.000Z".
func ISOString(t time.Time) string {
	return t.UTC().Format(isoLayout)
}

// BuildPayload maps a value bag keyed by field name to payload entries, one
// per template field, in group order then field order. Values whose key is
// not a field of tpl are dropped.
func BuildPayload(tpl types.Template, values map[string]any) []types.PayloadEntry {
	return buildPayload(tpl, values, render.ByName)
}

func buildPayload(tpl types.Template, values map[string]any, keyBy render.KeyFunc) []types.PayloadEntry {
	out := make([]types.PayloadEntry, 0, tpl.FieldCount())
	for _, gf := range tpl.AllFields() {
		f := gf.Field
		out = append(out, types.PayloadEntry{
			GroupID:     gf.GroupID,
			FieldLabel:  f.FieldLabel,
			FieldName:   f.FieldName,
			FieldType:   f.FieldType,
			IsRequired:  f.IsRequired,
			Placeholder: f.Placeholder,
			Description: f.Description,
			Value:       wireValue(f.FieldType, values[keyBy(f)]),
		})
	}
	return out
}

// wireValue converts one stored value to its payload text. nil, a nil
// pointer and "" are "not provided".
func wireValue(t types.FieldType, v any) *string {
	var s string
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		if x == "" {
			return nil
		}
		s = x
	case *string:
		if x == nil || *x == "" {
			return nil
		}
		s = *x
	case time.Time:
		if t == types.FieldDate {
			s = ISOString(x)
		} else {
			s = x.String()
		}
	case *time.Time:
		if x == nil {
			return nil
		}
		return wireValue(t, *x)
	case *float64:
		if x == nil {
			return nil
		}
		return wireValue(t, *x)
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		s = strconv.Itoa(x)
	case int64:
		s = strconv.FormatInt(x, 10)
	case bool:
		s = strconv.FormatBool(x)
	default:
		s = fmt.Sprint(x)
	}
	return &s
}
