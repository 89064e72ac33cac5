// Package scopes holds the gorm scopes that join a model to its localised side table.
//
// Every locale in the lookup chain gets its own alias of the side table, joined on the
// record id and that locale. A localised column then reads the first non null value in
// chain order and finally the base table value.
package scopes

import (
	"slices"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// RecordIDColumn links a side table row to its base record.
	RecordIDColumn = "record_id"
	// LocaleColumn holds the locale code of a side table row.
	LocaleColumn = "locale"

	baseIDColumn = "id"
)

// Quote quotes a PostgreSQL identifier verbatim, keeping its case.
func Quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

// Localisation describes how one model is read in a locale chain.
type Localisation struct {
	// Table is the base table.
	Table string
	// LocalisedTable is the side table holding one row per record and locale.
	LocalisedTable string
	// Columns are all base table columns in select order.
	Columns []string
	// Localised are the columns also stored in the side table.
	Localised []string
	// Chain is the current locale followed by its fallbacks. Empty reads base values.
	Chain []string
}

// Alias names the side table join of locale.
func (l Localisation) Alias(locale string) string {
	return l.LocalisedTable + "_" + locale
}

// IsLocalised reports whether column is read through the side table.
func (l Localisation) IsLocalised(column string) bool {
	return slices.Contains(l.Localised, column)
}

// ColumnExpr is the SQL expression reading column in the chain. Unlocalised columns and
// an empty chain read the qualified base column.
func (l Localisation) ColumnExpr(column string) string {
	base := Quote(l.Table) + "." + Quote(column)
	if len(l.Chain) == 0 || !l.IsLocalised(column) {
		return base
	}

	parts := make([]string, 0, len(l.Chain)+1)
	for _, locale := range l.Chain {
		parts = append(parts, Quote(l.Alias(locale))+"."+Quote(column))
	}
	parts = append(parts, base)
	return "COALESCE(" + strings.Join(parts, ", ") + ")"
}

// HasRecordExpr is true when a side table row exists for any locale of the chain.
func (l Localisation) HasRecordExpr() string {
	if len(l.Chain) == 0 {
		return "FALSE"
	}
	parts := make([]string, 0, len(l.Chain))
	for _, locale := range l.Chain {
		parts = append(parts, Quote(l.Alias(locale))+"."+Quote(RecordIDColumn)+" IS NOT NULL")
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

// Joins left joins one side table alias per chain locale.
func Joins(l Localisation) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		for _, locale := range l.Chain {
			alias := Quote(l.Alias(locale))
			db = db.Joins(
				"LEFT JOIN "+Quote(l.LocalisedTable)+" AS "+alias+
					" ON "+alias+"."+Quote(RecordIDColumn)+" = "+Quote(l.Table)+"."+Quote(baseIDColumn)+
					" AND "+alias+"."+Quote(LocaleColumn)+" = ?",
				locale,
			)
		}
		return db
	}
}

// Select replaces the column list so localised columns read through the chain.
func Select(l Localisation) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		columns := make([]string, 0, len(l.Columns))
		for _, column := range l.Columns {
			expr := l.ColumnExpr(column)
			if l.IsLocalised(column) && len(l.Chain) > 0 {
				expr += " AS " + Quote(column)
			}
			columns = append(columns, expr)
		}
		return db.Select(strings.Join(columns, ", "))
	}
}

// Localised joins the chain and selects every column through it.
func Localised(l Localisation) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Scopes(Joins(l), Select(l))
	}
}

// FrontendFilter drops records that have no side table row anywhere in the chain.
func FrontendFilter(l Localisation) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(l.HasRecordExpr())
	}
}

// OrderBy sorts by column as read in the chain.
func OrderBy(l Localisation, column string, desc bool) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Order(clause.OrderByColumn{
			Column: clause.Column{Name: l.ColumnExpr(column), Raw: true},
			Desc:   desc,
		})
	}
}

// Where filters on column as read in the chain.
func Where(l Localisation, column string, value any) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(l.ColumnExpr(column)+" = ?", value)
	}
}
