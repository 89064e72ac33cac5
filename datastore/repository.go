package datastore

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/pitabwire/fluent/data"
	"github.com/pitabwire/fluent/datastore/pool"
)

// ErrOptimisticLock is returned when an update matched no row at the expected version.
var ErrOptimisticLock = errors.New("optimistic lock failed")

// BaseRepository provides generic CRUD operations for any model type.
// T is the model type (e.g., *models.LocalisedParent).
type BaseRepository[T any] interface {
	Pool() pool.Pool
	Table() string
	Columns() []string
	GetByID(ctx context.Context, id string) (T, error)
	GetAllBy(ctx context.Context, properties map[string]any, offset, limit int) ([]T, error)
	Count(ctx context.Context) (int64, error)
	CountBy(ctx context.Context, properties map[string]any) (int64, error)
	Save(ctx context.Context, entity T, omit ...string) error
	Delete(ctx context.Context, id string) error
	DeleteBatch(ctx context.Context, ids []string) error
}

type baseRepository[T data.BaseModelI] struct {
	dbPool pool.Pool
	// modelFactory creates a new instance of T for queries
	modelFactory func() T
	tableName    string
	columns      []string
	// allowedColumns whitelist for safe column access
	allowedColumns map[string]bool
}

// NewBaseRepository creates a new base repository instance.
// modelFactory should return a pointer to a new model instance.
func NewBaseRepository[T data.BaseModelI](
	ctx context.Context,
	dbPool pool.Pool,
	modelFactory func() T,
) (BaseRepository[T], error) {
	db := dbPool.DB(ctx, true)
	if db == nil {
		return nil, errors.New("base repository: no database configured")
	}

	repo := &baseRepository[T]{
		dbPool:         dbPool,
		modelFactory:   modelFactory,
		allowedColumns: make(map[string]bool),
	}

	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(modelFactory()); err != nil {
		return nil, fmt.Errorf("base repository: parse model: %w", err)
	}
	repo.tableName = stmt.Schema.Table
	repo.columns = append(repo.columns, stmt.Schema.DBNames...)

	for _, dbName := range stmt.Schema.DBNames {
		repo.allowedColumns[dbName] = true
	}

	return repo, nil
}

func (br *baseRepository[T]) Pool() pool.Pool {
	return br.dbPool
}

func (br *baseRepository[T]) Table() string {
	return br.tableName
}

// Columns lists the model's database columns in declaration order.
func (br *baseRepository[T]) Columns() []string {
	return append([]string(nil), br.columns...)
}

func (br *baseRepository[T]) validateColumn(column string) error {
	if !br.allowedColumns[column] {
		return fmt.Errorf("invalid column name: %s", column)
	}
	return nil
}

func (br *baseRepository[T]) GetByID(ctx context.Context, id string) (T, error) {
	entity := br.modelFactory()
	err := br.dbPool.DB(ctx, true).Where("id = ?", id).First(entity).Error
	return entity, err
}

// Save creates or updates an entity, see SaveEntity.
func (br *baseRepository[T]) Save(ctx context.Context, entity T, omit ...string) error {
	return SaveEntity(br.dbPool.DB(ctx, false), entity, omit...)
}

// SaveEntity creates or updates an entity with optimistic locking on db, which may be a transaction.
// New entities (version <= 0) are created with every column. Existing ones are updated at
// their current version, leaving out the omitted columns.
func SaveEntity[T data.BaseModelI](db *gorm.DB, entity T, omit ...string) error {
	if entity.GetVersion() > 0 && entity.GetID() == "" {
		return errors.New("entity ID is required for updates")
	}

	if entity.GetVersion() <= 0 {
		return db.Create(entity).Error
	}

	currentVersion := entity.GetVersion()

	query := db.Model(entity).Where("version = ?", currentVersion)
	if len(omit) > 0 {
		query = query.Omit(omit...)
	}

	// BeforeUpdate increments the version, only the expected one may match.
	result := query.Updates(entity)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: entity (id=%s) was modified by another transaction (expected version: %d)",
			ErrOptimisticLock, entity.GetID(), currentVersion)
	}

	return nil
}

// Delete soft deletes an entity by its ID without fetching it first.
func (br *baseRepository[T]) Delete(ctx context.Context, id string) error {
	entity := br.modelFactory()
	return br.dbPool.DB(ctx, false).Where("id = ?", id).Delete(entity).Error
}

// DeleteBatch soft deletes multiple entities by their IDs in a single query.
func (br *baseRepository[T]) DeleteBatch(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	entity := br.modelFactory()
	return br.dbPool.DB(ctx, false).Where("id IN ?", ids).Delete(entity).Error
}

func (br *baseRepository[T]) Count(ctx context.Context) (int64, error) {
	return br.CountBy(ctx, nil)
}

// CountBy returns the count of live entities matching the given properties.
func (br *baseRepository[T]) CountBy(ctx context.Context, properties map[string]any) (int64, error) {
	var count int64
	query := br.dbPool.DB(ctx, true).Model(br.modelFactory())

	for key, value := range properties {
		if err := br.validateColumn(key); err != nil {
			return 0, err
		}
		query = query.Where(key+" = ?", value)
	}

	err := query.Count(&count).Error
	return count, err
}

// GetAllBy retrieves entities matching the given properties with pagination.
func (br *baseRepository[T]) GetAllBy(ctx context.Context, properties map[string]any, offset, limit int) ([]T, error) {
	var entities []T

	query := br.dbPool.DB(ctx, true).Offset(offset)
	if limit > 0 {
		query = query.Limit(limit)
	}

	for key, value := range properties {
		if err := br.validateColumn(key); err != nil {
			return nil, err
		}
		query = query.Where(key+" = ?", value)
	}

	err := query.Order("created_at ASC").Find(&entities).Error
	return entities, err
}
