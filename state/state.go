// Package state holds the locale a unit of work runs in.
//
// A State is created per request (or per job) and carried on the context so that
// every localised query and write sees the same locale and frontend flag.
package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

type contextKey string

func (c contextKey) String() string {
	return "fluent/state/" + string(c)
}

const ctxKeyState = contextKey("stateKey")

// State is the current locale and frontend flag consulted by localised operations.
type State struct {
	mu         sync.RWMutex
	locale     string
	isFrontend bool
}

// New creates an empty State.
func New() *State {
	return &State{}
}

// SetLocale sets the current locale. Any string is accepted.
func (s *State) SetLocale(locale string) *State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locale = locale
	return s
}

// Locale returns the current locale, empty when none was set.
func (s *State) Locale() string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.locale
}

// SetIsFrontend marks whether the current unit of work serves frontend content.
func (s *State) SetIsFrontend(isFrontend bool) *State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isFrontend = isFrontend
	return s
}

// IsFrontend reports the frontend flag.
func (s *State) IsFrontend() bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isFrontend
}

// Clone returns an independent copy.
func (s *State) Clone() *State {
	return New().SetLocale(s.Locale()).SetIsFrontend(s.IsFrontend())
}

// ToContext adds the state to the supplied context.
func ToContext(ctx context.Context, s *State) context.Context {
	return context.WithValue(ctx, ctxKeyState, s)
}

// FromContext extracts the state from the supplied context, nil when none exists.
func FromContext(ctx context.Context) *State {
	s, ok := ctx.Value(ctxKeyState).(*State)
	if !ok {
		return nil
	}
	return s
}

// WithLocale returns a context carrying a copy of the current state switched to locale.
// The state already on ctx is left untouched.
func WithLocale(ctx context.Context, locale string) context.Context {
	current := FromContext(ctx)
	if current == nil {
		return ToContext(ctx, New().SetLocale(locale))
	}
	return ToContext(ctx, current.Clone().SetLocale(locale))
}

// ErrMissingLocale is wrapped by every MissingLocaleError.
var ErrMissingLocale = errors.New("no current locale")

// MissingLocaleError is returned when a write needs a locale and none is set.
type MissingLocaleError struct {
	Table    string
	RecordID string
}

func (e *MissingLocaleError) Error() string {
	if e.RecordID != "" {
		return fmt.Sprintf("%s: cannot write %s record %s", ErrMissingLocale, e.Table, e.RecordID)
	}
	return fmt.Sprintf("%s: cannot write %s record", ErrMissingLocale, e.Table)
}

func (e *MissingLocaleError) Unwrap() error {
	return ErrMissingLocale
}

// MessageID identifies the translatable message for this error.
func (e *MissingLocaleError) MessageID() string {
	return "FluentMissingLocale"
}

// TemplateData feeds the translatable message.
func (e *MissingLocaleError) TemplateData() map[string]any {
	return map[string]any{
		"Table":    e.Table,
		"RecordID": e.RecordID,
	}
}
