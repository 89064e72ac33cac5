package fluent

import (
	"context"
	"errors"

	"github.com/pitabwire/util"

	"github.com/pitabwire/fluent/config"
	"github.com/pitabwire/fluent/datastore"
	"github.com/pitabwire/fluent/datastore/pool"
	"github.com/pitabwire/fluent/localization"
	"github.com/pitabwire/fluent/locales"
	"github.com/pitabwire/fluent/schema"
)

// WithConfig replaces the configuration read from the environment.
func WithConfig(cfg any) Option {
	return func(_ context.Context, e *Extension) {
		e.configuration = cfg
	}
}

// WithLogger builds the extension logger from the logging configuration and opts.
func WithLogger(opts ...util.Option) Option {
	return func(ctx context.Context, e *Extension) {
		if cfg, ok := e.configuration.(config.ConfigurationLogLevel); ok {
			logLevel, err := util.ParseLevel(cfg.LoggingLevel())
			if err == nil {
				opts = append(opts, util.WithLogLevel(logLevel))
			}
			opts = append(opts,
				util.WithLogTimeFormat(cfg.LoggingTimeFormat()),
				util.WithLogNoColor(!cfg.LoggingColored()))
			if cfg.LoggingShowStackTrace() {
				opts = append(opts, util.WithLogStackTrace())
			}
		}

		e.logger = util.NewLogger(ctx, opts...).WithField("component", "fluent")
	}
}

// WithPool uses an existing pool. The caller stays responsible for closing it.
func WithPool(dbPool pool.Pool) Option {
	return func(_ context.Context, e *Extension) {
		e.pool = dbPool
		e.ownsPool = false
	}
}

// WithDatastoreConnection opens a pool over a single connection string.
func WithDatastoreConnection(dsn string, readOnly bool, opts ...datastore.Option) Option {
	return WithDatastore(append(opts, datastore.WithConnection(dsn, readOnly))...)
}

// WithDatastore opens a pool from the database configuration and opts.
func WithDatastore(opts ...datastore.Option) Option {
	return func(ctx context.Context, e *Extension) {
		if cfg, ok := e.configuration.(config.ConfigurationDatabase); ok {
			opts = append([]datastore.Option{datastore.WithConfig(cfg)}, opts...)
		} else {
			e.Log(ctx).Warn("configuration object not of type : ConfigurationDatabase")
		}

		dbPool, err := datastore.Open(util.ContextWithLogger(ctx, e.logger), opts...)
		if err != nil {
			e.addError(err)
			return
		}

		e.pool = dbPool
		e.ownsPool = true
		e.AddCleanupMethod(func(ctx context.Context) {
			if e.ownsPool && e.pool != nil {
				e.pool.Close(ctx)
			}
		})
	}
}

// WithDeclarations registers localisation declarations, failing the extension when any is invalid.
func WithDeclarations(decls ...schema.Declaration) Option {
	return func(_ context.Context, e *Extension) {
		e.addError(e.registry.Register(decls...))
	}
}

// WithLocales sets the locales content is written in.
func WithLocales(list ...locales.Locale) Option {
	return func(_ context.Context, e *Extension) {
		registry, err := locales.New(list...)
		if err != nil {
			e.addError(err)
			return
		}
		e.locales = registry
	}
}

// WithLocalesFile loads the locales from a YAML or TOML file.
func WithLocalesFile(path string) Option {
	return func(_ context.Context, e *Extension) {
		registry, err := locales.LoadFile(path)
		if err != nil {
			e.addError(err)
			return
		}
		e.locales = registry
	}
}

// WithLocalesFromConfig reads the locales file, or else the locale codes, from the configuration.
func WithLocalesFromConfig() Option {
	return func(ctx context.Context, e *Extension) {
		cfg, ok := e.configuration.(config.ConfigurationLocalisation)
		if !ok {
			e.addError(errors.New("configuration object not of type : ConfigurationLocalisation"))
			return
		}

		if cfg.GetLocalesFile() != "" {
			WithLocalesFile(cfg.GetLocalesFile())(ctx, e)
			return
		}

		registry, err := locales.FromCodes(cfg.GetDefaultLocale(), cfg.GetLocales()...)
		if err != nil {
			e.addError(err)
			return
		}
		e.locales = registry
	}
}

// WithTranslation loads message catalogs messages.<language>.toml from translationsFolder.
func WithTranslation(translationsFolder string, languages ...string) Option {
	return func(_ context.Context, e *Extension) {
		manager, err := localization.NewManager(translationsFolder, languages...)
		if err != nil {
			e.addError(err)
			return
		}
		e.translator = manager
	}
}

// WithTranslationFromConfig loads the message catalogs named in the configuration.
func WithTranslationFromConfig() Option {
	return func(ctx context.Context, e *Extension) {
		cfg, ok := e.configuration.(config.ConfigurationLocalisation)
		if !ok {
			WithTranslation("")(ctx, e)
			return
		}
		WithTranslation(cfg.GetTranslationsPath(), cfg.GetTranslationLanguages()...)(ctx, e)
	}
}
