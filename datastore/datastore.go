// Package datastore opens the gorm connection pool and provides the generic repository
// the localised repositories build on.
package datastore

import (
	"context"
	"errors"
	"fmt"

	"github.com/pitabwire/util"

	"github.com/pitabwire/fluent/datastore/pool"
)

// ErrNoConnection is returned when Open is given no connection string.
var ErrNoConnection = errors.New("datastore: no connection configured")

// Open creates a pool holding every configured connection.
func Open(ctx context.Context, opts ...Option) (pool.Pool, error) {
	dsOpts := &Options{}
	for _, opt := range opts {
		opt(dsOpts)
	}

	if len(dsOpts.DSNMap) == 0 {
		return nil, ErrNoConnection
	}

	log := util.Log(ctx)
	dbPool := pool.NewPool(ctx)
	for dsn, readOnly := range dsOpts.DSNMap {
		err := dbPool.AddConnection(ctx, dsn, readOnly, dsOpts.PoolOptions...)
		if err != nil {
			dbPool.Close(ctx)
			return nil, fmt.Errorf("datastore: add connection: %w", err)
		}
		log.WithField("read_only", readOnly).Debug("datastore connection added")
	}

	return dbPool, nil
}
