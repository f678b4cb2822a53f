package form

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/literal"

	"github.com/matthewbaird/casedesk/internal/types"
)

// datePattern accepts the ISO-8601 strings produced by ISOString.
const datePattern = `^[0-9]{4}-[0-9]{2}-[0-9]{2}T`

// Schema is the CUE validation schema of a ruleset. Required keys are
// regular fields, optional keys are "?" fields. The source is compiled on
// every Check because a cue context must not be shared between goroutines.
type Schema struct {
	src string
}

// NewSchema renders the CUE source for rules.
func NewSchema(rules []Rule) *Schema {
	var b strings.Builder
	for _, r := range rules {
		marker := "?"
		if r.Required {
			marker = ""
		}
		fmt.Fprintf(&b, "%s%s: %s\n", literal.Label.Quote(r.Key), marker, constraint(r))
	}
	return &Schema{src: b.String()}
}

func constraint(r Rule) string {
	switch r.Type {
	case types.FieldNumber:
		return "number"
	case types.FieldDate:
		return "string & =~" + literal.String.Quote(datePattern)
	default:
		if r.Required {
			return `string & !=""`
		}
		return "string"
	}
}

// Source returns the CUE source text.
func (s *Schema) Source() string { return s.src }

// Check unifies values with the schema and validates the result
// concretely. Failures are returned as a *ValidationError keyed by the
// first path element of each CUE error.
func (s *Schema) Check(values map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(s.src, cue.Filename("template.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compiling validation schema: %w", err)
	}
	v := schema.Unify(ctx.Encode(values))
	err := v.Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}
	verr := &ValidationError{}
	for _, e := range cueerrors.Errors(err) {
		key := keyFromPath(e.Path())
		if _, present := values[key]; present || key == "" {
			verr.Add(key, CodeInvalid)
		} else {
			verr.Add(key, CodeRequired)
		}
	}
	if verr.Empty() {
		verr.Add("", CodeInvalid)
	}
	return verr
}

func keyFromPath(path []string) string {
	if len(path) == 0 {
		return ""
	}
	if uq, err := literal.Unquote(path[0]); err == nil {
		return uq
	}
	return path[0]
}
