package errors

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationErrors accumulates per-field problems so a caller sees every
// invalid field at once instead of the first one found.
type ValidationErrors struct {
	fields map[string]string
}

func ValidationErrs() *ValidationErrors {
	return &ValidationErrors{fields: make(map[string]string)}
}

func (v *ValidationErrors) Add(field, message string) {
	v.fields[field] = message
}

// Err returns nil when no problems were recorded.
func (v *ValidationErrors) Err() error {
	if len(v.fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(v.fields))
	for k := range v.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, v.fields[k]))
	}
	return NewAppError(InvalidInput, "validation failed").WithDetails(strings.Join(parts, "; "))
}
