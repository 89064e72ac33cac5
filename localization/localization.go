// Package localization translates messages for the request language and turns the
// request language into the locale state localised reads and writes run in.
package localization

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pitabwire/util"
	"golang.org/x/text/language"
	"google.golang.org/grpc/metadata"

	"github.com/pitabwire/fluent/locales"
	"github.com/pitabwire/fluent/state"
)

type contextKey string

func (c contextKey) String() string {
	return "fluent/localization/" + string(c)
}

const ctxKeyLanguage = contextKey("languageKey")

// ToContext adds language to the current supplied context.
func ToContext(ctx context.Context, lang []string) context.Context {
	return context.WithValue(ctx, ctxKeyLanguage, lang)
}

// FromContext extracts language from the supplied context if any exist.
func FromContext(ctx context.Context) []string {
	languages, ok := ctx.Value(ctxKeyLanguage).([]string)
	if !ok {
		return nil
	}

	return languages
}

func ToMap(m map[string]string, lang []string) map[string]string {
	m["lang"] = strings.Join(lang, ",")
	return m
}

func FromMap(m map[string]string) []string {
	lang, ok := m["lang"]
	if !ok {
		return nil
	}
	return strings.Split(lang, ",")
}

// TranslatableError is implemented by errors that carry their own message template.
type TranslatableError interface {
	error
	MessageID() string
	TemplateData() map[string]any
}

type Manager interface {
	Bundle() *i18n.Bundle
	Translate(ctx context.Context, request any, messageID string) string
	TranslateWithMap(
		ctx context.Context,
		request any,
		messageID string,
		variables map[string]any,
	) string
	TranslateWithMapAndCount(
		ctx context.Context,
		request any,
		messageID string,
		variables map[string]any,
		count int,
	) string
	TranslateError(ctx context.Context, request any, err error) string
}

type managerImpl struct {
	bundle *i18n.Bundle
}

// defaultMessages back the errors raised by this module when no catalog overrides them.
var defaultMessages = map[language.Tag][]*i18n.Message{
	language.English: {
		{ID: "FluentMissingLocale", Other: "{{.Table}} can not be saved without a current locale"},
		{ID: "FluentClassificationError", Other: "{{.Type}} has an invalid localisation setup: {{.Reason}}"},
	},
	language.German: {
		{ID: "FluentMissingLocale", Other: "{{.Table}} kann ohne aktuelle Sprache nicht gespeichert werden"},
		{ID: "FluentClassificationError", Other: "{{.Type}} ist fehlerhaft lokalisiert: {{.Reason}}"},
	},
}

// NewManager loads messages.<lang>.toml for each language from translationsFolder.
func NewManager(translationsFolder string, languages ...string) (Manager, error) {
	if translationsFolder == "" {
		translationsFolder = "localization"
	}

	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	for tag, messages := range defaultMessages {
		if err := bundle.AddMessages(tag, messages...); err != nil {
			return nil, err
		}
	}

	for _, lang := range languages {
		path := filepath.Join(translationsFolder, fmt.Sprintf("messages.%v.toml", lang))
		if _, err := bundle.LoadMessageFile(path); err != nil {
			return nil, fmt.Errorf("load translations %s: %w", path, err)
		}
	}

	return &managerImpl{bundle: bundle}, nil
}

// Bundle Access the translation bundle instatiated in the system.
func (s *managerImpl) Bundle() *i18n.Bundle {
	return s.bundle
}

// Translate performs a quick translation based on the supplied message id.
func (s *managerImpl) Translate(ctx context.Context, request any, messageID string) string {
	return s.TranslateWithMap(ctx, request, messageID, map[string]any{})
}

// TranslateWithMap performs a translation with variables based on the supplied message id.
func (s *managerImpl) TranslateWithMap(
	ctx context.Context,
	request any,
	messageID string,
	variables map[string]any,
) string {
	return s.localize(ctx, request, messageID, variables, nil)
}

// TranslateWithMapAndCount performs a translation with variables based on the supplied message id and can pluralize.
func (s *managerImpl) TranslateWithMapAndCount(
	ctx context.Context,
	request any,
	messageID string,
	variables map[string]any,
	count int,
) string {
	return s.localize(ctx, request, messageID, variables, count)
}

// localize renders messageID, a nil pluralCount selects the "other" form.
func (s *managerImpl) localize(
	ctx context.Context,
	request any,
	messageID string,
	variables map[string]any,
	pluralCount any,
) string {
	var languageSlice []string

	switch v := request.(type) {
	case *http.Request:
		languageSlice = ExtractLanguageFromHTTPRequest(v)

	case context.Context:
		languageSlice = FromContext(v)
		if len(languageSlice) == 0 {
			languageSlice = ExtractLanguageFromGrpcRequest(v)
		}

	case string:
		languageSlice = []string{v}

	case []string:
		languageSlice = v

	default:
		logger := util.Log(ctx).WithField("messageID", messageID).WithField("variables", variables)
		logger.Warn("localize -- no valid request object found, use string, []string, context or http.Request")
		return messageID
	}

	localizer := i18n.NewLocalizer(s.Bundle(), languageSlice...)

	transVersion, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:      messageID,
		DefaultMessage: &i18n.Message{ID: messageID},
		TemplateData:   variables,
		PluralCount:    pluralCount,
	})

	if err != nil {
		util.Log(ctx).WithError(err).WithField("messageID", messageID).
			Error("localize -- could not perform translation")
	}

	return transVersion
}

// TranslateError renders err in the request language when it is translatable and falls
// back to its plain message otherwise.
func (s *managerImpl) TranslateError(ctx context.Context, request any, err error) string {
	if err == nil {
		return ""
	}

	var translatable TranslatableError
	if !errors.As(err, &translatable) {
		return err.Error()
	}

	return s.TranslateWithMap(ctx, request, translatable.MessageID(), translatable.TemplateData())
}

func ExtractLanguageFromHTTPRequest(req *http.Request) []string {
	lang := req.FormValue("lang")

	acceptedLang := ExtractLanguageFromHTTPHeader(req.Header)

	var languages []string
	if lang != "" {
		languages = append(languages, lang)
	}

	return append(languages, acceptedLang...)
}

func ExtractLanguageFromHTTPHeader(req http.Header) []string {
	return splitLanguages(req.Get("Accept-Language"))
}

func ExtractLanguageFromGrpcRequest(ctx context.Context) []string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return []string{}
	}

	header, ok := md["accept-language"]
	if !ok || len(header) == 0 {
		return []string{}
	}
	return splitLanguages(header[0])
}

func splitLanguages(header string) []string {
	var languages []string
	for _, lang := range strings.Split(header, ",") {
		lang = strings.TrimSpace(lang)
		if lang != "" {
			languages = append(languages, lang)
		}
	}
	return languages
}

// StateOption adjusts the state a request starts with.
type StateOption func(*state.State)

// Frontend marks requests as serving published frontend content.
func Frontend(isFrontend bool) StateOption {
	return func(s *state.State) {
		s.SetIsFrontend(isFrontend)
	}
}

// WithState records the request languages on ctx together with a fresh locale state.
// The locale is the registered one that best matches the languages, or the default
// locale when none does.
func WithState(
	ctx context.Context,
	registry *locales.Registry,
	languages []string,
	opts ...StateOption,
) context.Context {
	ctx = ToContext(ctx, languages)

	code, ok := registry.Match(languages...)
	if !ok {
		code = registry.Default()
	}

	st := state.New().SetLocale(code)
	for _, opt := range opts {
		opt(st)
	}

	return state.ToContext(ctx, st)
}
