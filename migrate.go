package fluent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/pitabwire/fluent/config"
	"github.com/pitabwire/fluent/datastore/migration"
	"github.com/pitabwire/fluent/datastore/scopes"
	"github.com/pitabwire/fluent/schema"
)

const localeColumnType = "varchar(50)"

// Migrate creates the base tables of models, then the side table of every model with
// localised fields, recording each side table layout as a migration patch.
func (e *Extension) Migrate(ctx context.Context, models ...any) error {
	if e.pool == nil {
		return errors.New("fluent migrate: no datastore configured")
	}

	migrationPath := ""
	if cfg, ok := e.configuration.(config.ConfigurationDatabase); ok {
		migrationPath = cfg.GetDatabaseMigrationPath()
	}

	if err := e.pool.Migrate(ctx, migrationPath, models...); err != nil {
		return err
	}

	var patches []*migration.Patch
	for _, model := range models {
		patch, err := e.LocalisedTablePatch(ctx, model)
		if err != nil {
			return err
		}
		if patch != nil {
			patches = append(patches, patch)
		}
	}

	if len(patches) == 0 {
		return nil
	}

	if err := e.pool.SaveMigration(ctx, patches...); err != nil {
		return err
	}
	return e.pool.Migrate(ctx, "")
}

// LocalisedTablePatch returns the DDL creating the side table of model, nil when the
// model has no localised fields. Added fields change the layout and so the patch name.
func (e *Extension) LocalisedTablePatch(ctx context.Context, model any) (*migration.Patch, error) {
	typeName := schema.NameOf(model)
	fields, err := e.registry.LocalisedFieldsInChain(typeName)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}

	stmt := &gorm.Statement{DB: e.pool.DB(ctx, false)}
	if err = stmt.Parse(model); err != nil {
		return nil, fmt.Errorf("fluent migrate: parse %s: %w", typeName, err)
	}

	table := stmt.Schema.Table
	localisedTable := scopes.Quote(LocalisedTable(table))

	var ddl strings.Builder
	fmt.Fprintf(&ddl, "CREATE TABLE IF NOT EXISTS %s (\n", localisedTable)
	fmt.Fprintf(&ddl, "\t%s varchar(50) NOT NULL REFERENCES %s (%s) ON DELETE CASCADE,\n",
		scopes.Quote(scopes.RecordIDColumn), scopes.Quote(table), scopes.Quote("id"))
	fmt.Fprintf(&ddl, "\t%s %s NOT NULL,\n", scopes.Quote(scopes.LocaleColumn), localeColumnType)
	fmt.Fprintf(&ddl, "\tPRIMARY KEY (%s, %s)\n);\n", scopes.Quote(scopes.RecordIDColumn), scopes.Quote(scopes.LocaleColumn))

	for _, f := range fields {
		column := stmt.Schema.LookUpField(f.Name)
		if column == nil || column.DBName == "" {
			return nil, &schema.ClassificationError{Type: typeName, Field: f.Name, Reason: "localised field is not a column"}
		}
		columnType, typeErr := schema.ColumnType(f.Type)
		if typeErr != nil {
			return nil, typeErr
		}
		fmt.Fprintf(&ddl, "ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s %s;\n",
			localisedTable, scopes.Quote(column.DBName), columnType)
	}

	return migration.NewLayoutPatch(
		"fluent",
		LocalisedTable(table),
		ddl.String(),
		fmt.Sprintf("DROP TABLE IF EXISTS %s;", localisedTable),
	), nil
}
