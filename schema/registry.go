// Package schema classifies the fields of entity types into base fields, stored once,
// and localised fields, stored per locale in a side table.
package schema

import (
	"reflect"
	"slices"
	"sync"
)

// Field is a declared storage field: the Go struct field name and its storage type.
type Field struct {
	Name string
	Type string
}

// Declaration is the localisation configuration of one entity type.
//
// Fields lists only what the type declares itself; inherited fields stay on the Parent
// declaration. Resolution of the localised set, per type:
//
//	TranslateNone           -> nothing
//	Translate               -> exactly those fields
//	FieldInclude            -> only those fields
//	FieldExclude            -> all fields except those
//	(default)               -> all declared fields
//
// and then DataInclude keeps, or DataExclude drops, fields by base storage type.
type Declaration struct {
	Name   string
	Parent string
	Fields []Field

	Translate     []string
	TranslateNone bool

	FieldInclude []string
	FieldExclude []string

	DataInclude []string
	DataExclude []string

	// FrontendPublishRequired hides records with no localised row for the
	// current locale chain when the state is in frontend mode.
	FrontendPublishRequired bool
}

func (d *Declaration) field(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// NameOf returns the registry key for a model value, its Go type name.
func NameOf(model any) string {
	t := reflect.TypeOf(model)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return ""
	}
	return t.Name()
}

// Registry holds declarations keyed by type name.
type Registry struct {
	mu    sync.RWMutex
	decls map[string]Declaration
}

func NewRegistry() *Registry {
	return &Registry{decls: map[string]Declaration{}}
}

// Register validates and adds declarations. Declarations in one call may refer to each
// other as parents. Nothing is registered when any declaration is invalid.
func (r *Registry) Register(decls ...Declaration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	staged := make(map[string]Declaration, len(r.decls)+len(decls))
	for name, d := range r.decls {
		staged[name] = d
	}

	for _, d := range decls {
		if d.Name == "" {
			return classificationErr("", "", "declaration has no name")
		}
		if _, exists := staged[d.Name]; exists {
			return classificationErr(d.Name, "", "declared more than once")
		}
		staged[d.Name] = d
	}

	for _, d := range decls {
		if err := validate(staged, d); err != nil {
			return err
		}
	}

	r.decls = staged
	return nil
}

// Declaration returns the declaration registered under name.
func (r *Registry) Declaration(name string) (Declaration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.decls[name]
	return d, ok
}

// Ancestry returns name followed by its parents, nearest first.
func (r *Registry) Ancestry(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return ancestry(r.decls, name)
}

// LocalisedFields returns localised field name to storage type for the type itself, or
// for the ancestor forType when given. An ancestor's fields are returned according to
// the ancestor's own configuration, whatever mode name uses.
func (r *Registry) LocalisedFields(name string, forType ...string) (map[string]string, error) {
	fields, err := r.LocalisedFieldList(name, forType...)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(fields))
	for _, f := range fields {
		out[f.Name] = f.Type
	}
	return out, nil
}

// LocalisedFieldList is LocalisedFields in declaration order.
func (r *Registry) LocalisedFieldList(name string, forType ...string) ([]Field, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.decls[name]; !ok {
		return nil, classificationErr(name, "", "type is not registered")
	}

	target := name
	if len(forType) > 0 && forType[0] != "" {
		target = forType[0]
		if !slices.Contains(ancestry(r.decls, name), target) {
			return nil, classificationErr(name, "", "%q is not an ancestor", target)
		}
	}

	return resolve(r.decls[target]), nil
}

// LocalisedFieldsInChain returns the localised fields of name and all its ancestors,
// root ancestor first. These are the columns an entity of type name keeps per locale.
func (r *Registry) LocalisedFieldsInChain(name string) ([]Field, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.decls[name]; !ok {
		return nil, classificationErr(name, "", "type is not registered")
	}

	chain := ancestry(r.decls, name)
	slices.Reverse(chain)

	var out []Field
	for _, typeName := range chain {
		out = append(out, resolve(r.decls[typeName])...)
	}
	return out, nil
}

func ancestry(decls map[string]Declaration, name string) []string {
	var chain []string
	seen := map[string]bool{}
	for current := name; current != ""; {
		d, ok := decls[current]
		if !ok || seen[current] {
			break
		}
		seen[current] = true
		chain = append(chain, current)
		current = d.Parent
	}
	return chain
}

func resolve(d Declaration) []Field {
	if d.TranslateNone {
		return nil
	}

	var fields []Field
	switch {
	case len(d.Translate) > 0:
		for _, name := range d.Translate {
			if f, ok := d.field(name); ok {
				fields = append(fields, f)
			}
		}
		return fields
	case len(d.FieldInclude) > 0:
		for _, f := range d.Fields {
			if slices.Contains(d.FieldInclude, f.Name) {
				fields = append(fields, f)
			}
		}
	case len(d.FieldExclude) > 0:
		for _, f := range d.Fields {
			if !slices.Contains(d.FieldExclude, f.Name) {
				fields = append(fields, f)
			}
		}
	default:
		fields = slices.Clone(d.Fields)
	}

	switch {
	case len(d.DataInclude) > 0:
		fields = slices.DeleteFunc(fields, func(f Field) bool {
			return !slices.Contains(d.DataInclude, BaseType(f.Type))
		})
	case len(d.DataExclude) > 0:
		fields = slices.DeleteFunc(fields, func(f Field) bool {
			return slices.Contains(d.DataExclude, BaseType(f.Type))
		})
	}
	return fields
}

func validate(decls map[string]Declaration, d Declaration) error {
	if d.Parent != "" {
		if _, ok := decls[d.Parent]; !ok {
			return classificationErr(d.Name, "", "unknown parent %q", d.Parent)
		}
		seen := map[string]bool{d.Name: true}
		for current := d.Parent; current != ""; current = decls[current].Parent {
			if seen[current] {
				return classificationErr(d.Name, "", "inheritance cycle through %q", current)
			}
			seen[current] = true
		}
	}

	if d.TranslateNone && len(d.Translate) > 0 {
		return classificationErr(d.Name, "", "translate none cannot be combined with a translate list")
	}
	if len(d.FieldInclude) > 0 && len(d.FieldExclude) > 0 {
		return classificationErr(d.Name, "", "field include and field exclude are mutually exclusive")
	}
	if len(d.DataInclude) > 0 && len(d.DataExclude) > 0 {
		return classificationErr(d.Name, "", "data include and data exclude are mutually exclusive")
	}

	seen := map[string]bool{}
	for _, f := range d.Fields {
		if f.Name == "" {
			return classificationErr(d.Name, "", "field has no name")
		}
		if seen[f.Name] {
			return classificationErr(d.Name, f.Name, "declared more than once")
		}
		seen[f.Name] = true
		if _, err := ColumnType(f.Type); err != nil {
			return classificationErr(d.Name, f.Name, "%v", err)
		}
	}

	for _, list := range [][]string{d.Translate, d.FieldInclude, d.FieldExclude} {
		for _, name := range list {
			if !seen[name] {
				return classificationErr(d.Name, name, "field is not declared on this type")
			}
		}
	}
	return nil
}
