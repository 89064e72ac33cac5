package fluent

// LocalisedSuffix is appended to a base table name to name its side table.
const LocalisedSuffix = "_Localised"

// LocalisedTable names the side table of table, or with a locale, the alias that side
// table is joined under for that locale. The locale is used verbatim.
func LocalisedTable(table string, locale ...string) string {
	name := table + LocalisedSuffix
	if len(locale) > 0 && locale[0] != "" {
		name += "_" + locale[0]
	}
	return name
}

// LocalisedTable is the package level LocalisedTable.
func (e *Extension) LocalisedTable(table string, locale ...string) string {
	return LocalisedTable(table, locale...)
}
