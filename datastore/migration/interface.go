package migration

import (
	"context"

	"gorm.io/gorm"
)

// Migrator stores SQL patches and applies the pending ones in name order.
type Migrator interface {
	DB(ctx context.Context) *gorm.DB
	ScanMigrationFiles(ctx context.Context, migrationsDirPath string) error
	SavePatch(ctx context.Context, patch *Patch) error
	Pending(ctx context.Context) ([]*Migration, error)
	ApplyNewMigrations(ctx context.Context) error
}
