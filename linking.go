package fluent

import (
	"context"

	"github.com/pitabwire/fluent/state"
)

// LinkingMode tells whether a record is shown directly in a locale or reached through a link.
type LinkingMode string

const (
	LinkingModeCurrent LinkingMode = "current"
	LinkingModeLink    LinkingMode = "link"
)

// LocaleViewer is implemented by records that decide for themselves in which locales
// they can be viewed.
type LocaleViewer interface {
	CanViewInLocale(ctx context.Context, locale string) bool
}

// LinkingMode resolves how record is linked from candidate. It is current only when
// candidate is the locale of ctx and the record, if it is a LocaleViewer, can be viewed in it.
func (e *Extension) LinkingMode(ctx context.Context, record any, candidate string) LinkingMode {
	if viewer, ok := record.(LocaleViewer); ok && !viewer.CanViewInLocale(ctx, candidate) {
		return LinkingModeLink
	}

	if candidate != "" && candidate == state.FromContext(ctx).Locale() {
		return LinkingModeCurrent
	}
	return LinkingModeLink
}
