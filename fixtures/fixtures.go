// Package fixtures seeds localised records from YAML files.
//
// A fixture file maps a type name to named records. Each record lists its field values,
// written in the default locale, and optionally per locale values under Localised:
//
//	LocalisedParent:
//	  record_a:
//	    Title: A record
//	    Localised:
//	      de_DE:
//	        Title: Eine Akte
package fixtures

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/pitabwire/util"
	"gopkg.in/yaml.v3"

	"github.com/pitabwire/fluent/state"
)

// LocalisedKey holds the per locale values of a record.
const LocalisedKey = "Localised"

var ErrUnknownFixture = errors.New("unknown fixture")

// Saver writes field values of one type. An empty id creates a record, otherwise the
// values are stored for the record in the locale of ctx. It returns the record id.
type Saver interface {
	SaveValues(ctx context.Context, id string, values map[string]any) (string, error)
}

// Record is one named fixture record.
type Record struct {
	Values    map[string]any
	Localised map[string]map[string]any
}

// Set is a loaded fixture file.
type Set struct {
	records map[string]map[string]Record
	ids     map[string]map[string]string
}

// Load reads a fixture file.
func Load(path string) (*Set, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	return Parse(content)
}

// Parse reads fixtures from YAML content.
func Parse(content []byte) (*Set, error) {
	var raw map[string]map[string]map[string]any
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}

	set := &Set{
		records: make(map[string]map[string]Record, len(raw)),
		ids:     map[string]map[string]string{},
	}
	for typeName, records := range raw {
		set.records[typeName] = make(map[string]Record, len(records))
		for identifier, values := range records {
			record, err := newRecord(values)
			if err != nil {
				return nil, fmt.Errorf("parse fixtures: %s.%s: %w", typeName, identifier, err)
			}
			set.records[typeName][identifier] = record
		}
	}
	return set, nil
}

func newRecord(values map[string]any) (Record, error) {
	record := Record{Values: map[string]any{}}
	for key, value := range values {
		if key != LocalisedKey {
			record.Values[key] = value
			continue
		}

		perLocale, ok := value.(map[string]any)
		if !ok {
			return Record{}, fmt.Errorf("%s must map locales to values", LocalisedKey)
		}
		record.Localised = make(map[string]map[string]any, len(perLocale))
		for locale, localeValues := range perLocale {
			fields, isMap := localeValues.(map[string]any)
			if !isMap {
				return Record{}, fmt.Errorf("%s.%s must map fields to values", LocalisedKey, locale)
			}
			record.Localised[locale] = fields
		}
	}
	return record, nil
}

// Types lists the fixture types in name order.
func (s *Set) Types() []string {
	return slices.Sorted(maps.Keys(s.records))
}

// Record returns the named fixture record of typeName.
func (s *Set) Record(typeName, identifier string) (Record, bool) {
	record, ok := s.records[typeName][identifier]
	return record, ok
}

// Seed writes every record of the types savers know, in type then identifier order.
// Base values are written in defaultLocale, then each locale's values in that locale.
func (s *Set) Seed(ctx context.Context, defaultLocale string, savers map[string]Saver) error {
	log := util.Log(ctx)
	for _, typeName := range s.Types() {
		saver, ok := savers[typeName]
		if !ok {
			log.WithField("type", typeName).Debug("no saver for fixture type, skipping")
			continue
		}

		records := s.records[typeName]
		for _, identifier := range slices.Sorted(maps.Keys(records)) {
			id, err := s.seedRecord(ctx, saver, defaultLocale, records[identifier])
			if err != nil {
				return fmt.Errorf("seed %s.%s: %w", typeName, identifier, err)
			}
			if s.ids[typeName] == nil {
				s.ids[typeName] = map[string]string{}
			}
			s.ids[typeName][identifier] = id
		}
	}
	return nil
}

func (s *Set) seedRecord(ctx context.Context, saver Saver, defaultLocale string, record Record) (string, error) {
	id, err := saver.SaveValues(state.WithLocale(ctx, defaultLocale), "", record.Values)
	if err != nil {
		return "", err
	}

	for _, locale := range slices.Sorted(maps.Keys(record.Localised)) {
		_, err = saver.SaveValues(state.WithLocale(ctx, locale), id, record.Localised[locale])
		if err != nil {
			return "", fmt.Errorf("locale %s: %w", locale, err)
		}
	}
	return id, nil
}

// ID returns the id a seeded record was stored under.
func (s *Set) ID(typeName, identifier string) (string, error) {
	id, ok := s.ids[typeName][identifier]
	if !ok {
		return "", fmt.Errorf("%w: %s.%s", ErrUnknownFixture, typeName, identifier)
	}
	return id, nil
}
