package fluent

// Direction orders a sort.
type Direction bool

const (
	Ascending  Direction = false
	Descending Direction = true
)

type sortOption struct {
	field string
	dir   Direction
}

type whereOption struct {
	field string
	value any
}

type queryOptions struct {
	sorts  []sortOption
	wheres []whereOption
	limit  int
	offset int
}

// QueryOption narrows or orders a localised read.
type QueryOption func(*queryOptions)

// SortBy orders by field, a Go field name or column. Localised fields sort on the value
// read in the current locale chain.
func SortBy(field string, dir Direction) QueryOption {
	return func(o *queryOptions) {
		o.sorts = append(o.sorts, sortOption{field: field, dir: dir})
	}
}

// WhereField keeps records whose field, as read in the current locale chain, equals value.
func WhereField(field string, value any) QueryOption {
	return func(o *queryOptions) {
		o.wheres = append(o.wheres, whereOption{field: field, value: value})
	}
}

func Limit(limit int) QueryOption {
	return func(o *queryOptions) {
		o.limit = limit
	}
}

func Offset(offset int) QueryOption {
	return func(o *queryOptions) {
		o.offset = offset
	}
}

func newQueryOptions(opts []QueryOption) *queryOptions {
	o := &queryOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
