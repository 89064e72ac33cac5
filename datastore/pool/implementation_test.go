package pool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/pitabwire/fluent/config"
	"github.com/pitabwire/fluent/datastore/migration"
	"github.com/pitabwire/fluent/fluenttests"
)

func TestIsRelationAlreadyExistsErr(t *testing.T) {
	t.Parallel()

	require.True(t, isRelationAlreadyExistsErr(&pgconn.PgError{Code: "42P07"}))
	require.True(t, isRelationAlreadyExistsErr(errors.New("relation \"migrations\" already exists")))
	require.False(t, isRelationAlreadyExistsErr(&pgconn.PgError{Code: "23505"}))
	require.False(t, isRelationAlreadyExistsErr(nil))
}

func TestMigrateWithoutWritableDBReturnsError(t *testing.T) {
	t.Parallel()

	dbPool := NewPool(context.Background())
	err := dbPool.Migrate(context.Background(), "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no writable database configured")
}

func TestAddConnectionRejectsNonPostgres(t *testing.T) {
	t.Parallel()

	dbPool := NewPool(context.Background())
	err := dbPool.AddConnection(context.Background(), "mysql://root@localhost/db", false)
	require.Error(t, err)
	require.Nil(t, dbPool.DB(context.Background(), true))
}

func TestCleanPostgresDSN(t *testing.T) {
	t.Parallel()

	dsn, err := cleanPostgresDSN("postgres://user:pw@localhost/fluent?sslmode=disable")
	require.NoError(t, err)
	require.Contains(t, dsn, "host=localhost")
	require.Contains(t, dsn, "port=5432")
	require.Contains(t, dsn, "dbname=fluent")
	require.Contains(t, dsn, "sslmode=disable")

	dsn, err = cleanPostgresDSN(" host=db user=fluent ")
	require.NoError(t, err)
	require.Equal(t, "host=db user=fluent", dsn)

	_, err = cleanPostgresDSN("mysql://localhost/db")
	require.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	t.Parallel()

	cfg := &config.ConfigurationDefault{
		DatabaseMaxOpenConnections:           7,
		DatabaseMaxIdleConnections:           3,
		DatabaseMaxConnectionLifeTimeSeconds: 60,
		DatabaseTraceQueries:                 true,
	}

	opts := &Options{}
	for _, opt := range FromConfig(cfg) {
		opt(opts)
	}
	require.Equal(t, 7, opts.MaxOpen)
	require.Equal(t, 3, opts.MaxIdle)
	require.Equal(t, time.Minute, opts.MaxLifetime)
	require.NotNil(t, opts.TraceConfig)
	require.True(t, opts.TraceConfig.CanDatabaseTraceQueries())
}

type PoolSuite struct {
	fluenttests.PostgresSuite
}

func TestPoolSuite(t *testing.T) {
	suite.Run(t, new(PoolSuite))
}

func (s *PoolSuite) TestMigrateAppliesPatchesOnce() {
	ctx := s.T().Context()

	dbPool := NewPool(ctx)
	s.Require().NoError(dbPool.AddConnection(ctx, s.NewDatabase(), false))
	defer dbPool.Close(ctx)

	s.Require().NoError(dbPool.Migrate(ctx, ""))
	s.Require().NoError(dbPool.SaveMigration(ctx, &migration.Patch{
		Name:        "create_widgets",
		Patch:       "CREATE TABLE widgets (id varchar(50) PRIMARY KEY);",
		RevertPatch: "DROP TABLE widgets;",
	}))

	for range 2 {
		s.Require().NoError(dbPool.Migrate(ctx, ""))
	}

	var count int64
	s.Require().NoError(dbPool.DB(ctx, true).Model(&migration.Migration{}).
		Where("applied_at IS NOT NULL").Count(&count).Error)
	s.Equal(int64(1), count)

	s.Require().NoError(dbPool.DB(ctx, false).Exec("INSERT INTO widgets (id) VALUES ('w1')").Error)
}
