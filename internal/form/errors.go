package form

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Inline error codes. Handlers localize them before display.
const (
	CodeRequired      = "required"
	CodeInvalidNumber = "invalid_number"
	CodeInvalidDate   = "invalid_date"
	CodeInvalid       = "invalid"
)

// ValidationError maps value-bag keys to the first error code found for
// them. Errors that cannot be tied to a key are stored under "".
type ValidationError struct {
	Fields map[string]string
}

// Add records code for key unless key already has one.
func (e *ValidationError) Add(key, code string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[key]; !ok {
		e.Fields[key] = code
	}
}

// Empty reports whether no error was recorded.
func (e *ValidationError) Empty() bool { return e == nil || len(e.Fields) == 0 }

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %s", k, e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) merge(err error) {
	var other *ValidationError
	if errors.As(err, &other) {
		for k, c := range other.Fields {
			e.Add(k, c)
		}
	} else if err != nil {
		e.Add("", CodeInvalid)
	}
}
