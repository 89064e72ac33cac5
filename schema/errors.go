package schema

import (
	"errors"
	"fmt"
)

// ErrClassification is the sentinel every localisation configuration error wraps.
var ErrClassification = errors.New("invalid localisation configuration")

// ClassificationError reports a malformed declaration. It is returned at registration
// time so misconfiguration fails on startup rather than on the first query.
type ClassificationError struct {
	Type   string
	Field  string
	Reason string
}

func (e *ClassificationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: type %q field %q: %s", ErrClassification, e.Type, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: type %q: %s", ErrClassification, e.Type, e.Reason)
}

func (e *ClassificationError) Unwrap() error {
	return ErrClassification
}

// MessageID identifies the translatable message for this error.
func (e *ClassificationError) MessageID() string {
	return "FluentClassificationError"
}

// TemplateData feeds the translatable message.
func (e *ClassificationError) TemplateData() map[string]any {
	return map[string]any{
		"Type":   e.Type,
		"Field":  e.Field,
		"Reason": e.Reason,
	}
}

func classificationErr(typeName, field, reason string, args ...any) error {
	return &ClassificationError{Type: typeName, Field: field, Reason: fmt.Sprintf(reason, args...)}
}
