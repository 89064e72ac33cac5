// Package locales keeps the set of locales content can be written in, which one is the
// default and which locales each falls back to when it has no content of its own.
package locales

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/language"
)

var ErrInvalidLocale = errors.New("invalid locale configuration")

// Locale is one content locale. Code is stored and compared verbatim.
type Locale struct {
	Code       string   `yaml:"code"        toml:"code"`
	Title      string   `yaml:"title"       toml:"title"`
	URLSegment string   `yaml:"url_segment" toml:"url_segment"`
	IsDefault  bool     `yaml:"default"     toml:"default"`
	Fallbacks  []string `yaml:"fallbacks"   toml:"fallbacks"`
}

// Registry is an immutable set of locales.
type Registry struct {
	locales       []Locale
	byCode        map[string]int
	defaultLocale string
	matcher       language.Matcher
	matchCodes    []string
}

// New validates the locales and builds a registry. When no locale is flagged as default
// the first one is.
func New(list ...Locale) (*Registry, error) {
	r := &Registry{byCode: make(map[string]int, len(list))}

	for i, l := range list {
		if strings.TrimSpace(l.Code) == "" {
			return nil, fmt.Errorf("%w: locale %d has no code", ErrInvalidLocale, i)
		}
		if _, exists := r.byCode[l.Code]; exists {
			return nil, fmt.Errorf("%w: locale %q declared more than once", ErrInvalidLocale, l.Code)
		}
		if l.IsDefault {
			if r.defaultLocale != "" {
				return nil, fmt.Errorf("%w: both %q and %q are default", ErrInvalidLocale, r.defaultLocale, l.Code)
			}
			r.defaultLocale = l.Code
		}
		if l.URLSegment == "" {
			l.URLSegment = l.Code
		}
		r.byCode[l.Code] = i
		r.locales = append(r.locales, l)
	}

	for _, l := range r.locales {
		for _, fb := range l.Fallbacks {
			if _, ok := r.byCode[fb]; !ok {
				return nil, fmt.Errorf("%w: locale %q falls back to unknown %q", ErrInvalidLocale, l.Code, fb)
			}
		}
	}

	if r.defaultLocale == "" && len(r.locales) > 0 {
		r.defaultLocale = r.locales[0].Code
		r.locales[0].IsDefault = true
	}

	var tags []language.Tag
	for _, l := range r.locales {
		tag, err := language.Parse(l.Code)
		if err != nil {
			// Codes that are not BCP 47 still work, they just never match a request.
			continue
		}
		tags = append(tags, tag)
		r.matchCodes = append(r.matchCodes, l.Code)
	}
	if len(tags) > 0 {
		r.matcher = language.NewMatcher(tags)
	}

	return r, nil
}

// FromCodes builds a registry from plain codes, as supplied through environment config.
func FromCodes(defaultCode string, codes ...string) (*Registry, error) {
	list := make([]Locale, 0, len(codes)+1)
	if defaultCode != "" && !slices.Contains(codes, defaultCode) {
		list = append(list, Locale{Code: defaultCode, IsDefault: true})
	}
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		list = append(list, Locale{Code: code, IsDefault: code == defaultCode})
	}
	return New(list...)
}

// Default returns the default locale code, empty for an empty registry.
func (r *Registry) Default() string {
	if r == nil {
		return ""
	}
	return r.defaultLocale
}

// Codes lists the locale codes in registration order.
func (r *Registry) Codes() []string {
	if r == nil {
		return nil
	}
	codes := make([]string, 0, len(r.locales))
	for _, l := range r.locales {
		codes = append(codes, l.Code)
	}
	return codes
}

// Get returns the locale registered under code.
func (r *Registry) Get(code string) (Locale, bool) {
	if r == nil {
		return Locale{}, false
	}
	i, ok := r.byCode[code]
	if !ok {
		return Locale{}, false
	}
	return r.locales[i], true
}

// Chain returns code followed by its fallbacks, without repeats. An unknown code
// yields just itself.
func (r *Registry) Chain(code string) []string {
	if code == "" {
		return nil
	}
	chain := []string{code}
	l, ok := r.Get(code)
	if !ok {
		return chain
	}
	for _, fb := range l.Fallbacks {
		if !slices.Contains(chain, fb) {
			chain = append(chain, fb)
		}
	}
	return chain
}

// Match picks the registered locale that best serves the given language preferences,
// for instance the entries of an Accept-Language header. Underscore and hyphen
// separated tags are treated alike.
func (r *Registry) Match(preferences ...string) (string, bool) {
	if r == nil || r.matcher == nil {
		return "", false
	}

	for _, pref := range preferences {
		if _, ok := r.byCode[strings.TrimSpace(pref)]; ok {
			return strings.TrimSpace(pref), true
		}
	}

	var tags []language.Tag
	for _, pref := range preferences {
		parsed, _, err := language.ParseAcceptLanguage(pref)
		if err != nil {
			continue
		}
		tags = append(tags, parsed...)
	}
	if len(tags) == 0 {
		return "", false
	}

	_, index, confidence := r.matcher.Match(tags...)
	if confidence == language.No {
		return "", false
	}
	return r.matchCodes[index], true
}
