// Package editor applies raw operator input to a session's field values.
// Edits are immutable-update: the caller's map is never touched, so aborting
// an edit is simply discarding the returned copy.
package editor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"faultctl/internal/catalog"
)

var (
	// ErrUnknownField reports a key that is not part of the schema.
	ErrUnknownField = errors.New("editor: unknown field")
	// ErrInvalidOption reports input outside an enumerated field's options.
	ErrInvalidOption = errors.New("editor: invalid option")
	// ErrControlCharacters reports free-text input with control characters.
	ErrControlCharacters = errors.New("editor: input contains control characters")
)

// ValidationError carries the offending field and input alongside the cause,
// so the edit screen can re-prompt with context. It never propagates past the
// editing step.
type ValidationError struct {
	Key   string
	Input string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("field %s: %v", e.Key, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// EditField validates raw input against the schema and returns a new value
// set with the edit applied. Other fields are copied through untouched and
// never re-validated.
func EditField(exp *catalog.Experiment, values map[string]string, key, raw string) (map[string]string, error) {
	spec, ok := exp.Field(key)
	if !ok {
		return nil, &ValidationError{Key: key, Input: raw, Err: ErrUnknownField}
	}
	next, err := applyEdit(spec, values[key], raw)
	if err != nil {
		return nil, &ValidationError{Key: key, Input: raw, Err: err}
	}
	updated := make(map[string]string, len(values))
	for k, v := range values {
		updated[k] = v
	}
	updated[key] = next
	return updated, nil
}

func applyEdit(spec catalog.FieldSpec, current, raw string) (string, error) {
	switch spec.Kind {
	case catalog.FieldEnumerated:
		for _, opt := range spec.Options {
			if raw == opt {
				return raw, nil
			}
		}
		return "", ErrInvalidOption
	default:
		if hasControlCharacters(raw) {
			return "", ErrControlCharacters
		}
		return coerce(current, raw), nil
	}
}

// coerce keeps the apparent type of the previous value: a numeric-looking
// current value canonicalizes a numeric replacement, and a failed parse keeps
// the replacement as plain text. A replacement equal in value to the current
// one keeps the current spelling, so re-entering a non-canonical value like
// "007" is a no-op. Best effort only, never an error.
func coerce(current, raw string) string {
	trimmed := strings.TrimSpace(raw)
	if cur, err := strconv.ParseInt(current, 10, 64); err == nil {
		if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			if n == cur {
				return current
			}
			return strconv.FormatInt(n, 10)
		}
		return raw
	}
	if cur, err := strconv.ParseFloat(current, 64); err == nil {
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			if f == cur {
				return current
			}
			return strconv.FormatFloat(f, 'g', -1, 64)
		}
	}
	return raw
}

func hasControlCharacters(value string) bool {
	for _, r := range value {
		if unicode.IsControl(r) {
			return true
		}
	}
	return false
}
