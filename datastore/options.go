package datastore

import (
	"github.com/pitabwire/fluent/config"
	"github.com/pitabwire/fluent/data"
	"github.com/pitabwire/fluent/datastore/pool"
)

// Option configures database connection settings.
type Option func(*Options)

// Options holds Datastore connection configuration.
type Options struct {
	DSNMap      map[string]bool
	PoolOptions []pool.Option
}

// WithConnection returns an Option to configure the database connection dsn.
func WithConnection(dsn string, readOnly bool) Option {
	return func(o *Options) {
		if o.DSNMap == nil {
			o.DSNMap = make(map[string]bool)
		}

		o.DSNMap[dsn] = readOnly
	}
}

// WithConnections returns an Option to configure database connections.
func WithConnections(dsns map[string]bool) Option {
	return func(o *Options) {
		if o.DSNMap == nil {
			o.DSNMap = make(map[string]bool, len(dsns))
		}

		for k, v := range dsns {
			o.DSNMap[k] = v
		}
	}
}

// WithPoolOptions returns an Option to configure the database connection pool options.
func WithPoolOptions(poolOptions ...pool.Option) Option {
	return func(o *Options) {
		o.PoolOptions = append(o.PoolOptions, poolOptions...)
	}
}

// WithConfig adds the primary and replica urls of cfg along with its pool settings.
// Each url entry may itself hold several comma separated connection strings.
func WithConfig(cfg config.ConfigurationDatabase) Option {
	return func(o *Options) {
		for _, primary := range cfg.GetDatabasePrimaryHostURL() {
			for _, dsn := range data.DSN(primary).ToArray() {
				WithConnection(dsn.String(), false)(o)
			}
		}
		for _, replica := range cfg.GetDatabaseReplicaHostURL() {
			for _, dsn := range data.DSN(replica).ToArray() {
				WithConnection(dsn.String(), true)(o)
			}
		}
		WithPoolOptions(pool.FromConfig(cfg)...)(o)
	}
}
