package pool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pitabwire/util"
	"gorm.io/gorm"

	"github.com/pitabwire/fluent/data"
	"github.com/pitabwire/fluent/datastore/migration"
)

const pgDuplicateTable = "42P07"

type pool struct {
	readIdx     uint64       // atomic counter for round-robin
	writeIdx    uint64       // atomic counter for round-robin
	mu          sync.RWMutex // protects db slices
	allReadDBs  []*gorm.DB
	allWriteDBs []*gorm.DB

	shouldDoMigrations bool
}

func NewPool(_ context.Context) Pool {
	return &pool{
		allReadDBs:         []*gorm.DB{},
		allWriteDBs:        []*gorm.DB{},
		shouldDoMigrations: true,
	}
}

// NewPoolWithDB wraps an already opened gorm database as the single read/write connection.
func NewPoolWithDB(ctx context.Context, db *gorm.DB) Pool {
	p := NewPool(ctx).(*pool)
	p.allWriteDBs = append(p.allWriteDBs, db)
	return p
}

// AddConnection opens dsn and adds it to the read or the write set.
func (s *pool) AddConnection(ctx context.Context, dsn string, readOnly bool, opts ...Option) error {
	if !data.DSN(dsn).IsPostgres() {
		return fmt.Errorf("add connection: unsupported datasource, only postgres is supported")
	}

	db, err := s.createConnection(ctx, dsn, opts...)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if readOnly {
		s.allReadDBs = append(s.allReadDBs, db)
	} else {
		s.allWriteDBs = append(s.allWriteDBs, db)
	}
	return nil
}

func (s *pool) Close(_ context.Context) {
	s.mu.RLock()
	dbs := append(append([]*gorm.DB(nil), s.allReadDBs...), s.allWriteDBs...)
	s.mu.RUnlock()

	for _, db := range dbs {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	}
}

// DB returns a fresh session on the next read (or write) connection, nil when none exist.
// Read requests fall back to the write set when no replica is configured.
func (s *pool) DB(ctx context.Context, readOnly bool) *gorm.DB {
	var selectedDB *gorm.DB

	s.mu.RLock()
	if readOnly && len(s.allReadDBs) != 0 {
		selectedDB = s.selectOne(s.allReadDBs, &s.readIdx)
	}

	if selectedDB == nil {
		selectedDB = s.selectOne(s.allWriteDBs, &s.writeIdx)
	}
	s.mu.RUnlock()

	if selectedDB == nil {
		return nil
	}

	return selectedDB.Session(&gorm.Session{NewDB: true}).WithContext(ctx)
}

// selectOne uses atomic round-robin for high concurrency.
func (s *pool) selectOne(pool []*gorm.DB, idx *uint64) *gorm.DB {
	if len(pool) == 0 {
		return nil
	}
	pos := atomic.AddUint64(idx, 1)
	return pool[int(pos-1)%len(pool)] //nolint:gosec // G115: index is result of (val % len), always < len and fits in int.
}

func (s *pool) CanMigrate() bool {
	return s.shouldDoMigrations
}

func (s *pool) SaveMigration(ctx context.Context, migrationPatches ...*migration.Patch) error {
	migrationExecutor := migration.NewMigrator(ctx, func(ctx context.Context) *gorm.DB {
		return s.DB(ctx, false)
	})
	for _, migrationPatch := range migrationPatches {
		if err := migrationExecutor.SavePatch(ctx, migrationPatch); err != nil {
			return err
		}
	}
	return nil
}

func (s *pool) Migrate(ctx context.Context, migrationsDirPath string, migrations ...any) error {
	db := s.DB(ctx, false)
	if db == nil {
		return errors.New("migrate datastore: no writable database configured")
	}

	log := util.Log(ctx)

	migrtor := db.Migrator()
	// Concurrent startups may race to create the migrations table.
	err := migrtor.AutoMigrate(&migration.Migration{})
	if err != nil {
		if !isRelationAlreadyExistsErr(err) {
			log.WithError(err).Error("MigrateDatastore -- couldn't create migration table")
			return err
		}

		log.WithError(err).Warn("MigrateDatastore -- migration table already created concurrently")
	}

	if len(migrations) > 0 {
		err = migrtor.AutoMigrate(migrations...)
		if err != nil {
			log.WithError(err).Error("MigrateDatastore -- couldn't auto migrate")
			return err
		}
	}

	migrationExecutor := migration.NewMigrator(ctx, func(ctx context.Context) *gorm.DB {
		return s.DB(ctx, false)
	})

	if migrationsDirPath != "" {
		err = migrationExecutor.ScanMigrationFiles(ctx, migrationsDirPath)
		if err != nil {
			log.WithError(err).Error("MigrateDatastore -- Error scanning for new migrations")
			return err
		}
	}

	err = migrationExecutor.ApplyNewMigrations(ctx)
	if err != nil {
		log.WithError(err).Error("MigrateDatastore -- Error applying migrations ")
		return err
	}
	return nil
}

func isRelationAlreadyExistsErr(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgDuplicateTable
	}

	return err != nil && strings.Contains(strings.ToLower(err.Error()), "already exists")
}
