package fluent

import (
	"github.com/pitabwire/fluent/schema"
	"github.com/pitabwire/fluent/state"
)

var (
	// ErrMissingLocale is wrapped by every MissingLocaleError.
	ErrMissingLocale = state.ErrMissingLocale
	// ErrClassification is wrapped by every ClassificationError.
	ErrClassification = schema.ErrClassification
)

type (
	// MissingLocaleError is returned by writes made without a current locale.
	MissingLocaleError = state.MissingLocaleError
	// ClassificationError reports a declaration whose localised fields can not be resolved.
	ClassificationError = schema.ClassificationError
)
