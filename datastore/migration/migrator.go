package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pitabwire/util"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pitabwire/fluent/data"
)

// TableName is where applied and pending patches are recorded.
const TableName = "fluent_migrations"

var errNoDatabase = errors.New("no database configured")

// Migration records one SQL patch and when it was applied.
type Migration struct {
	data.BaseModel

	Name        string `gorm:"type:text;uniqueIndex:idx_fluent_migrations_name"`
	Patch       string `gorm:"type:text"`
	RevertPatch string `gorm:"type:text"`
	AppliedAt   sql.NullTime
}

func (Migration) TableName() string {
	return TableName
}

type datastoreMigrator struct {
	dbGetter func(ctx context.Context) *gorm.DB
	logger   *util.LogEntry
}

func NewMigrator(ctx context.Context, dbGetter func(ctx context.Context) *gorm.DB) Migrator {
	return &datastoreMigrator{
		dbGetter: dbGetter,
		logger:   util.Log(ctx).WithField("component", "migrator"),
	}
}

func (m *datastoreMigrator) DB(ctx context.Context) *gorm.DB {
	return m.dbGetter(ctx)
}

func (m *datastoreMigrator) db(ctx context.Context, action string) (*gorm.DB, error) {
	db := m.DB(ctx)
	if db == nil {
		return nil, fmt.Errorf("%s: %w", action, errNoDatabase)
	}
	return db, nil
}

// ScanMigrationFiles records every patch of migrationsDirPath that is not recorded yet.
func (m *datastoreMigrator) ScanMigrationFiles(ctx context.Context, migrationsDirPath string) error {
	patches, err := ReadDir(migrationsDirPath)
	if err != nil {
		return err
	}

	for _, patch := range patches {
		if err = m.SavePatch(ctx, patch); err != nil {
			m.logger.WithError(err).WithField("file", patch.Name).Error("migration file could not be saved")
			return err
		}
	}
	return nil
}

// SavePatch records patch under its name. A recorded patch that is still pending takes
// the new sql; an applied one is left as it is.
func (m *datastoreMigrator) SavePatch(ctx context.Context, patch *Patch) error {
	if err := patch.Validate(); err != nil {
		return err
	}

	db, err := m.db(ctx, "save migration")
	if err != nil {
		return err
	}

	var existing Migration
	err = db.Where("name = ?", patch.Name).First(&existing).Error
	switch {
	case data.ErrorIsNoRows(err):
		record := &Migration{Name: patch.Name, Patch: patch.Patch, RevertPatch: patch.RevertPatch}
		if err = db.Create(record).Error; err != nil {
			return fmt.Errorf("save migration %s: %w", patch.Name, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("look up migration %s: %w", patch.Name, err)
	}

	if existing.AppliedAt.Valid {
		return nil
	}

	changes := map[string]any{}
	if existing.Patch != patch.Patch {
		changes["patch"] = patch.Patch
	}
	if patch.RevertPatch != "" && existing.RevertPatch != patch.RevertPatch {
		changes["revert_patch"] = patch.RevertPatch
	}
	if len(changes) == 0 {
		return nil
	}

	err = db.Model(&Migration{}).
		Where("id = ? AND applied_at IS NULL", existing.ID).
		Updates(changes).Error
	if err != nil {
		return fmt.Errorf("update migration %s: %w", patch.Name, err)
	}
	return nil
}

// Pending lists the patches that have not been applied yet, ordered by name.
func (m *datastoreMigrator) Pending(ctx context.Context) ([]*Migration, error) {
	db, err := m.db(ctx, "pending migrations")
	if err != nil {
		return nil, err
	}

	var pending []*Migration
	err = db.Where("applied_at IS NULL").Order("name ASC").Find(&pending).Error
	if err != nil && !data.ErrorIsNoRows(err) {
		return nil, err
	}
	return pending, nil
}

// ApplyNewMigrations runs the pending patches in name order, each in its own transaction.
func (m *datastoreMigrator) ApplyNewMigrations(ctx context.Context) error {
	db, err := m.db(ctx, "apply migrations")
	if err != nil {
		return err
	}

	pending, err := m.Pending(ctx)
	if err != nil {
		return err
	}

	for _, migration := range pending {
		applied, applyErr := apply(db, migration.ID)
		if applyErr != nil {
			return fmt.Errorf("apply migration %s: %w", migration.Name, applyErr)
		}
		if applied {
			m.logger.WithField("migration", migration.Name).Debug("migration applied")
		}
	}
	return nil
}

// apply runs the patch of migration id unless a concurrent migrator got to it first.
func apply(db *gorm.DB, id string) (bool, error) {
	applied := false
	err := db.Transaction(func(tx *gorm.DB) error {
		var locked Migration
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&locked).Error
		if data.ErrorIsNoRows(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if locked.AppliedAt.Valid {
			return nil
		}

		if err = tx.Exec(locked.Patch).Error; err != nil {
			return err
		}
		applied = true
		return tx.Model(&Migration{}).
			Where("id = ? AND applied_at IS NULL", locked.ID).
			Update("applied_at", time.Now().UTC()).Error
	})
	return applied, err
}
