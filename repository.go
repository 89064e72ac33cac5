package fluent

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gschema "gorm.io/gorm/schema"

	"github.com/pitabwire/fluent/data"
	"github.com/pitabwire/fluent/datastore"
	"github.com/pitabwire/fluent/datastore/scopes"
	"github.com/pitabwire/fluent/schema"
	"github.com/pitabwire/fluent/state"
)

const (
	// SettingLocale is the gorm setting holding the locale a query reads in.
	SettingLocale = "Fluent.Locale"
	// SettingIsFrontend is the gorm setting holding the frontend flag a query was built with.
	SettingIsFrontend = "Fluent.IsFrontend"
)

// Repository reads and writes models of type T in the locale carried by the context.
type Repository[T data.BaseModelI] struct {
	ext     *Extension
	base    datastore.BaseRepository[T]
	factory func() T

	typeName       string
	decl           schema.Declaration
	modelSchema    *gschema.Schema
	table          string
	localisedTable string
	columns        []string
	localised      []*gschema.Field

	tracer trace.Tracer
}

// NewRepository creates the localised repository of T. T must be registered with the
// extension's schema and every localised field must be a column of T.
func NewRepository[T data.BaseModelI](ctx context.Context, ext *Extension, factory func() T) (*Repository[T], error) {
	if ext.Pool() == nil {
		return nil, errors.New("fluent repository: no datastore configured")
	}

	typeName := schema.NameOf(factory())
	decl, ok := ext.Schema().Declaration(typeName)
	if !ok {
		return nil, &schema.ClassificationError{Type: typeName, Reason: "type is not registered"}
	}

	fields, err := ext.Schema().LocalisedFieldsInChain(typeName)
	if err != nil {
		return nil, err
	}

	base, err := datastore.NewBaseRepository(ctx, ext.Pool(), factory)
	if err != nil {
		return nil, err
	}

	stmt := &gorm.Statement{DB: ext.Pool().DB(ctx, true)}
	if err = stmt.Parse(factory()); err != nil {
		return nil, fmt.Errorf("fluent repository: parse %s: %w", typeName, err)
	}

	r := &Repository[T]{
		ext:            ext,
		base:           base,
		factory:        factory,
		typeName:       typeName,
		decl:           decl,
		modelSchema:    stmt.Schema,
		table:          base.Table(),
		localisedTable: LocalisedTable(base.Table()),
		columns:        base.Columns(),
		tracer:         otel.Tracer(instrumentationName),
	}

	for _, f := range fields {
		column := stmt.Schema.LookUpField(f.Name)
		if column == nil || column.DBName == "" {
			return nil, &schema.ClassificationError{Type: typeName, Field: f.Name, Reason: "localised field is not a column"}
		}
		r.localised = append(r.localised, column)
	}

	return r, nil
}

// Table is the base table of T.
func (r *Repository[T]) Table() string {
	return r.table
}

// LocalisedTable is the side table of T.
func (r *Repository[T]) LocalisedTable() string {
	return r.localisedTable
}

// LocalisedColumns lists the columns of T kept per locale.
func (r *Repository[T]) LocalisedColumns() []string {
	columns := make([]string, 0, len(r.localised))
	for _, f := range r.localised {
		columns = append(columns, f.DBName)
	}
	return columns
}

// Base exposes the plain repository, reading and writing base values only.
func (r *Repository[T]) Base() datastore.BaseRepository[T] {
	return r.base
}

// readLocale is the locale reads happen in: the current one, or else the default locale.
func (r *Repository[T]) readLocale(ctx context.Context) string {
	if locale := state.FromContext(ctx).Locale(); locale != "" {
		return locale
	}
	return r.ext.Locales().Default()
}

func (r *Repository[T]) localisation(locale string) scopes.Localisation {
	return scopes.Localisation{
		Table:          r.table,
		LocalisedTable: r.localisedTable,
		Columns:        r.columns,
		Localised:      r.LocalisedColumns(),
		Chain:          r.ext.Locales().Chain(locale),
	}
}

func (r *Repository[T]) column(field string) (string, error) {
	f := r.modelSchema.LookUpField(field)
	if f == nil || f.DBName == "" {
		return "", fmt.Errorf("fluent repository: %s has no field %q", r.typeName, field)
	}
	return f.DBName, nil
}

// Query returns a read query on T joined to the side table for the locale chain of ctx.
// The locale and frontend flag it was built with are available through db.Get with
// SettingLocale and SettingIsFrontend before it runs.
func (r *Repository[T]) Query(ctx context.Context) *gorm.DB {
	db, loc := r.query(ctx)
	return db.Scopes(scopes.Select(loc))
}

func (r *Repository[T]) query(ctx context.Context) (*gorm.DB, scopes.Localisation) {
	locale := r.readLocale(ctx)
	isFrontend := state.FromContext(ctx).IsFrontend()
	loc := r.localisation(locale)

	db := r.ext.Pool().DB(ctx, true).
		Set(SettingLocale, locale).
		Set(SettingIsFrontend, isFrontend).
		Model(r.factory()).
		Scopes(scopes.Joins(loc))

	if isFrontend && r.decl.FrontendPublishRequired {
		db = db.Scopes(scopes.FrontendFilter(loc))
	}
	return db, loc
}

func (r *Repository[T]) filter(db *gorm.DB, loc scopes.Localisation, o *queryOptions) (*gorm.DB, error) {
	for _, w := range o.wheres {
		column, err := r.column(w.field)
		if err != nil {
			return nil, err
		}
		db = scopes.Where(loc, column, w.value)(db)
	}
	return db, nil
}

func (r *Repository[T]) order(db *gorm.DB, loc scopes.Localisation, o *queryOptions) (*gorm.DB, error) {
	for _, s := range o.sorts {
		column, err := r.column(s.field)
		if err != nil {
			return nil, err
		}
		db = scopes.OrderBy(loc, column, bool(s.dir))(db)
	}
	if o.limit > 0 {
		db = db.Limit(o.limit)
	}
	if o.offset > 0 {
		db = db.Offset(o.offset)
	}
	return db, nil
}

// List reads the records of T in the locale of ctx.
func (r *Repository[T]) List(ctx context.Context, opts ...QueryOption) (result []T, err error) {
	ctx, op := startOperation(ctx, r.tracer, "List", r.table, r.readLocale(ctx))
	defer func() { op.end(ctx, err) }()

	o := newQueryOptions(opts)
	db, loc := r.query(ctx)
	if db, err = r.filter(db, loc, o); err != nil {
		return nil, err
	}
	if db, err = r.order(db, loc, o); err != nil {
		return nil, err
	}

	err = db.Scopes(scopes.Select(loc)).Find(&result).Error
	return result, err
}

// GetByID reads one record of T in the locale of ctx.
func (r *Repository[T]) GetByID(ctx context.Context, id string) (entity T, err error) {
	ctx, op := startOperation(ctx, r.tracer, "GetByID", r.table, r.readLocale(ctx))
	defer func() { op.end(ctx, err) }()

	entity = r.factory()
	db, loc := r.query(ctx)
	err = db.Scopes(scopes.Select(loc)).
		Where(scopes.Quote(r.table)+"."+scopes.Quote("id")+" = ?", id).
		First(entity).Error
	return entity, err
}

// Count counts the records of T visible in the locale of ctx. Sorting and paging options are ignored.
func (r *Repository[T]) Count(ctx context.Context, opts ...QueryOption) (count int64, err error) {
	ctx, op := startOperation(ctx, r.tracer, "Count", r.table, r.readLocale(ctx))
	defer func() { op.end(ctx, err) }()

	db, loc := r.query(ctx)
	if db, err = r.filter(db, loc, newQueryOptions(opts)); err != nil {
		return 0, err
	}

	err = db.Count(&count).Error
	return count, err
}

// Column reads a single field of every matching record of T in the locale of ctx.
func Column[T data.BaseModelI, V any](
	ctx context.Context,
	r *Repository[T],
	field string,
	opts ...QueryOption,
) (values []V, err error) {
	ctx, op := startOperation(ctx, r.tracer, "Column", r.table, r.readLocale(ctx))
	defer func() { op.end(ctx, err) }()

	column, err := r.column(field)
	if err != nil {
		return nil, err
	}

	o := newQueryOptions(opts)
	db, loc := r.query(ctx)
	if db, err = r.filter(db, loc, o); err != nil {
		return nil, err
	}
	if db, err = r.order(db, loc, o); err != nil {
		return nil, err
	}

	err = db.Pluck(loc.ColumnExpr(column), &values).Error
	return values, err
}

// localisedValues returns the localised columns of entity that hold a value.
func (r *Repository[T]) localisedValues(ctx context.Context, entity T) map[string]any {
	rv := reflect.ValueOf(entity)
	values := make(map[string]any, len(r.localised))
	for _, f := range r.localised {
		value, zero := f.ValueOf(ctx, rv)
		if !zero {
			values[f.DBName] = value
		}
	}
	return values
}

// bookkeepingFields are set by the model hooks while saving.
var bookkeepingFields = []string{"ID", "Version", "CreatedAt", "ModifiedAt"}

// snapshot captures the bookkeeping fields of entity. The returned func puts them back,
// so an entity whose save rolled back can be saved again as it was.
func (r *Repository[T]) snapshot(ctx context.Context, entity T) func() {
	rv := reflect.ValueOf(entity)
	saved := make(map[*gschema.Field]any, len(bookkeepingFields))
	for _, name := range bookkeepingFields {
		if f := r.modelSchema.LookUpField(name); f != nil {
			saved[f], _ = f.ValueOf(ctx, rv)
		}
	}

	return func() {
		for f, value := range saved {
			if err := f.Set(ctx, rv, value); err != nil {
				r.ext.Log(ctx).WithError(err).WithField("field", f.Name).Warn("could not restore field after failed save")
			}
		}
	}
}

// Save writes entity in the locale of ctx, in one transaction. Base values go to the
// base table; localised columns are written there only when the record is created or
// when writing in the default locale. The localised values that are set are then
// upserted into the row of the current locale, rows of other locales stay untouched.
// A failed save leaves the id, version and timestamps of entity as they were.
func (r *Repository[T]) Save(ctx context.Context, entity T) (err error) {
	locale := state.FromContext(ctx).Locale()

	ctx, op := startOperation(ctx, r.tracer, "Save", r.table, locale)
	defer func() { op.end(ctx, err) }()

	if locale == "" {
		return &MissingLocaleError{Table: r.table, RecordID: entity.GetID()}
	}

	var omit []string
	if entity.GetVersion() > 0 && locale != r.ext.Locales().Default() {
		omit = r.LocalisedColumns()
	}

	values := r.localisedValues(ctx, entity)
	restore := r.snapshot(ctx, entity)

	err = r.ext.Pool().DB(ctx, false).Transaction(func(tx *gorm.DB) error {
		if saveErr := datastore.SaveEntity(tx, entity, omit...); saveErr != nil {
			return saveErr
		}
		return r.upsert(tx, entity.GetID(), locale, values)
	})
	if err != nil {
		restore()
		return err
	}

	r.ext.Log(ctx).
		WithField("table", r.table).
		WithField("locale", locale).
		WithField("id", entity.GetID()).
		Debug("localised record saved")
	return nil
}

// SaveValues writes field values given by Go field name or column. Without an id a new
// record is created through Save; with one only the localised values of the current
// locale are upserted. It returns the record id.
func (r *Repository[T]) SaveValues(ctx context.Context, id string, values map[string]any) (string, error) {
	if id == "" {
		entity := r.factory()
		rv := reflect.ValueOf(entity)
		for name, value := range values {
			f := r.modelSchema.LookUpField(name)
			if f == nil {
				return "", fmt.Errorf("fluent repository: %s has no field %q", r.typeName, name)
			}
			if err := f.Set(ctx, rv, value); err != nil {
				return "", fmt.Errorf("fluent repository: set %s.%s: %w", r.typeName, name, err)
			}
		}
		if err := r.Save(ctx, entity); err != nil {
			return "", err
		}
		return entity.GetID(), nil
	}

	locale := state.FromContext(ctx).Locale()
	if locale == "" {
		return "", &MissingLocaleError{Table: r.table, RecordID: id}
	}

	columns := make(map[string]any, len(values))
	for name, value := range values {
		column, err := r.column(name)
		if err != nil {
			return "", err
		}
		if !slices.Contains(r.LocalisedColumns(), column) {
			return "", &schema.ClassificationError{Type: r.typeName, Field: name, Reason: "field is not localised"}
		}
		columns[column] = value
	}

	err := r.upsert(r.ext.Pool().DB(ctx, false), id, locale, columns)
	return id, err
}

// upsert inserts or updates the side table row of (id, locale) with values. Nothing is
// written when there are no values.
func (r *Repository[T]) upsert(db *gorm.DB, id, locale string, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}

	row := make(map[string]any, len(values)+2)
	updates := make([]string, 0, len(values))
	for column, value := range values {
		row[column] = value
		updates = append(updates, column)
	}
	slices.Sort(updates)
	row[scopes.RecordIDColumn] = id
	row[scopes.LocaleColumn] = locale

	err := db.Table(r.localisedTable).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: scopes.RecordIDColumn}, {Name: scopes.LocaleColumn}},
			DoUpdates: clause.AssignmentColumns(updates),
		}).
		Create(row).Error
	if err != nil {
		return err
	}

	upsertCount.Add(db.Statement.Context, 1, metric.WithAttributes(
		tableKey.String(r.table),
		localeKey.String(locale),
	))
	return nil
}

// HasLocalisedRecord reports whether id has its own row in locale, fallbacks aside.
func (r *Repository[T]) HasLocalisedRecord(ctx context.Context, id, locale string) (bool, error) {
	var count int64
	err := r.ext.Pool().DB(ctx, true).
		Table(r.localisedTable).
		Where(scopes.Quote(scopes.RecordIDColumn)+" = ? AND "+scopes.Quote(scopes.LocaleColumn)+" = ?", id, locale).
		Count(&count).Error
	return count > 0, err
}

// Locales lists the locales id has its own row in.
func (r *Repository[T]) Locales(ctx context.Context, id string) ([]string, error) {
	var codes []string
	err := r.ext.Pool().DB(ctx, true).
		Table(r.localisedTable).
		Where(scopes.Quote(scopes.RecordIDColumn)+" = ?", id).
		Order(scopes.Quote(scopes.LocaleColumn)).
		Pluck(scopes.LocaleColumn, &codes).Error
	return codes, err
}

// Delete soft deletes the base record. Its localised rows are kept.
func (r *Repository[T]) Delete(ctx context.Context, id string) error {
	return r.base.Delete(ctx, id)
}
