package form

import (
	"time"

	"github.com/matthewbaird/casedesk/internal/render"
	"github.com/matthewbaird/casedesk/internal/types"
)

// Rule is the validation rule of one value-bag key.
type Rule struct {
	Key      string
	Type     types.FieldType
	Required bool
}

// Ruleset holds one rule per distinct key, in template order. When two
// fields share a key the first declaration wins, since they share a value.
type Ruleset struct {
	Rules  []Rule
	Schema *Schema
}

// NewRuleset derives the rules of tpl.
func NewRuleset(tpl types.Template, keyBy render.KeyFunc) Ruleset {
	if keyBy == nil {
		keyBy = render.ByName
	}
	seen := make(map[string]bool)
	var rules []Rule
	for _, gf := range tpl.AllFields() {
		key := keyBy(gf.Field)
		if seen[key] {
			continue
		}
		seen[key] = true
		rules = append(rules, Rule{Key: key, Type: gf.Field.FieldType, Required: gf.Field.IsRequired})
	}
	return Ruleset{Rules: rules, Schema: NewSchema(rules)}
}

// Validate checks storage values. Required keys with no value are reported
// as CodeRequired; present values are then checked against the CUE schema.
func (rs Ruleset) Validate(values map[string]any) error {
	verr := &ValidationError{}
	wire := make(map[string]any, len(rs.Rules))
	for _, r := range rs.Rules {
		v, ok := schemaValue(values[r.Key])
		if !ok {
			if r.Required {
				verr.Add(r.Key, CodeRequired)
			}
			continue
		}
		wire[r.Key] = v
	}
	if rs.Schema != nil {
		verr.merge(rs.Schema.Check(wire))
	}
	if verr.Empty() {
		return nil
	}
	return verr
}

// schemaValue converts a storage value into the value checked by the
// schema. ok is false when the value counts as not provided.
func schemaValue(v any) (any, bool) {
	switch x := v.(type) {
	case nil:
		return nil, false
	case string:
		return x, x != ""
	case *string:
		if x == nil || *x == "" {
			return nil, false
		}
		return *x, true
	case time.Time:
		return ISOString(x), true
	case *time.Time:
		if x == nil {
			return nil, false
		}
		return ISOString(*x), true
	case *float64:
		if x == nil {
			return nil, false
		}
		return *x, true
	default:
		return x, true
	}
}
