// Package fluent stores the translatable fields of gorm models per locale.
//
// Base fields stay in the model's table. Localised fields are also kept in a side table
// named <table>_Localised holding one row per record and locale. Reads pick the value
// of the current locale, walking its fallbacks before settling on the base value, and
// writes upsert the row of the current locale only.
//
// The current locale travels on the context, see package state.
package fluent

import (
	"context"
	"errors"

	"github.com/pitabwire/util"

	"github.com/pitabwire/fluent/config"
	"github.com/pitabwire/fluent/datastore/pool"
	"github.com/pitabwire/fluent/localization"
	"github.com/pitabwire/fluent/locales"
	"github.com/pitabwire/fluent/schema"
)

type contextKey string

func (c contextKey) String() string {
	return "fluent/" + string(c)
}

const ctxKeyExtension = contextKey("extensionKey")

// Extension holds together what localised repositories need: the connection pool, the
// localisation declarations and the configured locales.
type Extension struct {
	configuration any
	logger        *util.LogEntry

	pool       pool.Pool
	ownsPool   bool
	registry   *schema.Registry
	locales    *locales.Registry
	translator localization.Manager

	initErrs []error
	cleanup  []func(ctx context.Context)
}

// Option configures an Extension.
type Option func(ctx context.Context, e *Extension)

// NewExtension builds an extension from the environment configuration and opts.
// The returned context carries the extension, its configuration and logger.
func NewExtension(ctx context.Context, opts ...Option) (context.Context, *Extension, error) {
	defaultCfg, err := config.FromEnv[config.ConfigurationDefault]()
	if err != nil {
		return ctx, nil, err
	}

	e := &Extension{
		configuration: &defaultCfg,
		logger:        util.Log(ctx),
		registry:      schema.NewRegistry(),
	}

	for _, opt := range opts {
		opt(ctx, e)
	}

	if len(e.initErrs) == 0 {
		e.setupDefaults(ctx)
	}

	if len(e.initErrs) > 0 {
		e.Close(ctx)
		return ctx, nil, errors.Join(e.initErrs...)
	}

	ctx = ToContext(ctx, e)
	ctx = config.ToContext(ctx, e.configuration)
	ctx = util.ContextWithLogger(ctx, e.logger)
	return ctx, e, nil
}

// setupDefaults fills in what no option provided from the configuration.
func (e *Extension) setupDefaults(ctx context.Context) {
	if e.locales == nil {
		WithLocalesFromConfig()(ctx, e)
	}

	if e.translator == nil {
		WithTranslationFromConfig()(ctx, e)
	}

	if e.pool == nil {
		if cfg, ok := e.configuration.(config.ConfigurationDatabase); ok && len(cfg.GetDatabasePrimaryHostURL()) > 0 {
			WithDatastore()(ctx, e)
		}
	}
}

func (e *Extension) addError(err error) {
	if err != nil {
		e.initErrs = append(e.initErrs, err)
	}
}

// AddCleanupMethod registers fn to run on Close, most recent first.
func (e *Extension) AddCleanupMethod(fn func(ctx context.Context)) {
	e.cleanup = append(e.cleanup, fn)
}

// Close releases the resources the extension opened itself.
func (e *Extension) Close(ctx context.Context) {
	for i := len(e.cleanup) - 1; i >= 0; i-- {
		e.cleanup[i](ctx)
	}
	e.cleanup = nil
}

// ToContext pushes an extension into the supplied context.
func ToContext(ctx context.Context, e *Extension) context.Context {
	return context.WithValue(ctx, ctxKeyExtension, e)
}

// FromContext obtains the extension propagated through the context, nil when absent.
func FromContext(ctx context.Context) *Extension {
	e, ok := ctx.Value(ctxKeyExtension).(*Extension)
	if !ok {
		return nil
	}
	return e
}

func (e *Extension) Config() any {
	return e.configuration
}

func (e *Extension) Log(ctx context.Context) *util.LogEntry {
	return e.logger.WithContext(ctx)
}

// Pool is the connection pool, nil when no datastore was configured.
func (e *Extension) Pool() pool.Pool {
	return e.pool
}

// Schema holds the localisation declarations.
func (e *Extension) Schema() *schema.Registry {
	return e.registry
}

func (e *Extension) Locales() *locales.Registry {
	return e.locales
}

func (e *Extension) Localization() localization.Manager {
	return e.translator
}
