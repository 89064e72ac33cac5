package pool

import (
	"context"

	"gorm.io/gorm"

	"github.com/pitabwire/fluent/datastore/migration"
)

// Pool hands out gorm sessions over one or more PostgreSQL connections.
type Pool interface {
	DB(ctx context.Context, readOnly bool) *gorm.DB

	AddConnection(ctx context.Context, dsn string, readOnly bool, opts ...Option) error

	CanMigrate() bool
	SaveMigration(ctx context.Context, migrationPatches ...*migration.Patch) error
	// Migrate auto migrates models, then finds missing migrations and applies them.
	Migrate(ctx context.Context, migrationsDirPath string, migrations ...any) error

	Close(ctx context.Context)
}
