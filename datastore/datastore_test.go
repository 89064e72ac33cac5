package datastore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/pitabwire/fluent/config"
	"github.com/pitabwire/fluent/data"
	"github.com/pitabwire/fluent/datastore"
	"github.com/pitabwire/fluent/fluenttests"
)

type widget struct {
	data.BaseModel

	Name  string `gorm:"type:varchar(100)"`
	Color string `gorm:"type:varchar(20)"`
}

func TestOpenWithoutConnection(t *testing.T) {
	t.Parallel()

	_, err := datastore.Open(context.Background())
	require.ErrorIs(t, err, datastore.ErrNoConnection)
}

func TestWithConfigSplitsConnections(t *testing.T) {
	t.Parallel()

	cfg := &config.ConfigurationDefault{
		DatabasePrimaryURL: []string{"postgres://a@db1/x, postgres://a@db2/x"},
		DatabaseReplicaURL: []string{"postgres://a@replica/x"},
	}

	opts := &datastore.Options{}
	datastore.WithConfig(cfg)(opts)

	require.Equal(t, map[string]bool{
		"postgres://a@db1/x":     false,
		"postgres://a@db2/x":     false,
		"postgres://a@replica/x": true,
	}, opts.DSNMap)
	require.NotEmpty(t, opts.PoolOptions)
}

type RepositoryTestSuite struct {
	fluenttests.PostgresSuite
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

func (s *RepositoryTestSuite) repository(ctx context.Context) datastore.BaseRepository[*widget] {
	dbPool, err := datastore.Open(ctx, datastore.WithConnection(s.NewDatabase(), false))
	s.Require().NoError(err)
	s.T().Cleanup(func() { dbPool.Close(context.Background()) })

	s.Require().NoError(dbPool.Migrate(ctx, "", &widget{}))

	repo, err := datastore.NewBaseRepository(ctx, dbPool, func() *widget { return &widget{} })
	s.Require().NoError(err)
	return repo
}

func (s *RepositoryTestSuite) TestSaveAndOptimisticLocking() {
	ctx := s.T().Context()
	repo := s.repository(ctx)

	s.Equal("widgets", repo.Table())
	s.Contains(repo.Columns(), "color")

	w := &widget{Name: "bolt", Color: "red"}
	s.Require().NoError(repo.Save(ctx, w))
	s.NotEmpty(w.ID)
	s.Equal(uint(1), w.Version)

	w.Color = "blue"
	w.Name = "ignored"
	s.Require().NoError(repo.Save(ctx, w, "name"))

	stored, err := repo.GetByID(ctx, w.ID)
	s.Require().NoError(err)
	s.Equal("blue", stored.Color)
	s.Equal("bolt", stored.Name)
	s.Equal(uint(2), stored.Version)

	stale := &widget{BaseModel: data.BaseModel{ID: w.ID, Version: 1}, Color: "green"}
	err = repo.Save(ctx, stale)
	s.Require().ErrorIs(err, datastore.ErrOptimisticLock)
}

func (s *RepositoryTestSuite) TestQueriesAndDelete() {
	ctx := s.T().Context()
	repo := s.repository(ctx)

	for _, color := range []string{"red", "red", "blue"} {
		s.Require().NoError(repo.Save(ctx, &widget{Name: "nut", Color: color}))
	}

	count, err := repo.Count(ctx)
	s.Require().NoError(err)
	s.Equal(int64(3), count)

	count, err = repo.CountBy(ctx, map[string]any{"color": "red"})
	s.Require().NoError(err)
	s.Equal(int64(2), count)

	_, err = repo.CountBy(ctx, map[string]any{"color; DROP TABLE widgets": "red"})
	s.Require().Error(err)

	reds, err := repo.GetAllBy(ctx, map[string]any{"color": "red"}, 0, 1)
	s.Require().NoError(err)
	s.Len(reds, 1)

	s.Require().NoError(repo.Delete(ctx, reds[0].ID))
	_, err = repo.GetByID(ctx, reds[0].ID)
	s.True(data.ErrorIsNoRows(err))

	all, err := repo.GetAllBy(ctx, nil, 0, 0)
	s.Require().NoError(err)
	ids := make([]string, 0, len(all))
	for _, w := range all {
		ids = append(ids, w.ID)
	}
	s.Require().NoError(repo.DeleteBatch(ctx, ids))

	count, err = repo.Count(ctx)
	s.Require().NoError(err)
	s.Zero(count)

	var withDeleted int64
	s.Require().NoError(repo.Pool().DB(ctx, true).Unscoped().Model(&widget{}).Count(&withDeleted).Error)
	s.Equal(int64(3), withDeleted)
}

func (s *RepositoryTestSuite) TestSaveEntityInsideTransaction() {
	ctx := s.T().Context()
	repo := s.repository(ctx)

	w := &widget{Name: "washer"}
	err := repo.Pool().DB(ctx, false).Transaction(func(tx *gorm.DB) error {
		return datastore.SaveEntity(tx, w)
	})
	s.Require().NoError(err)

	_, err = repo.GetByID(ctx, w.ID)
	s.Require().NoError(err)
}
