// Package models holds the entity types the fluent test suites run against.
//
// The hierarchy is LocalisedParent with three children, each using a different way of
// choosing its localised fields, plus LocalisedGrandChild for a third level.
package models

import (
	"github.com/pitabwire/fluent/data"
	"github.com/pitabwire/fluent/schema"
)

type LocalisedParent struct {
	data.BaseModel
	Title       string `gorm:"type:varchar(255)"`
	Details     string `gorm:"type:varchar(200)"`
	Description string `gorm:"type:text"`
}

type LocalisedAnother struct {
	LocalisedParent
	Bastion string `gorm:"type:varchar(255)"`
	Data    string `gorm:"type:varchar(100)"`
	Secret  string `gorm:"type:varchar(50)"`
	Notes   string `gorm:"type:text"`
}

type LocalisedChild struct {
	LocalisedParent
	Record string `gorm:"type:text"`
	Other  string `gorm:"type:varchar(255)"`
}

type UnlocalisedChild struct {
	LocalisedParent
	Alias string `gorm:"type:varchar(255)"`
}

type LocalisedGrandChild struct {
	LocalisedChild
	Summary string `gorm:"type:varchar(255)"`
	Code    string `gorm:"type:varchar(20)"`
}

// All lists a zero value of every model, for migrations.
func All() []any {
	return []any{
		&LocalisedParent{},
		&LocalisedAnother{},
		&LocalisedChild{},
		&UnlocalisedChild{},
		&LocalisedGrandChild{},
	}
}

// ParentLocalised is what LocalisedParent localises, from any descendant's point of view.
func ParentLocalised() map[string]string {
	return map[string]string{
		"Title":   "Varchar",
		"Details": "Varchar(200)",
	}
}

// Declarations returns the localisation configuration for every model above.
func Declarations() []schema.Declaration {
	return []schema.Declaration{
		{
			Name: schema.NameOf(LocalisedParent{}),
			Fields: []schema.Field{
				{Name: "Title", Type: "Varchar"},
				{Name: "Details", Type: "Varchar(200)"},
				{Name: "Description", Type: "Text"},
			},
			DataExclude: []string{"Text"},
		},
		{
			Name:   schema.NameOf(LocalisedAnother{}),
			Parent: schema.NameOf(LocalisedParent{}),
			Fields: []schema.Field{
				{Name: "Bastion", Type: "Varchar"},
				{Name: "Data", Type: "Varchar(100)"},
				{Name: "Secret", Type: "Varchar(50)"},
				{Name: "Notes", Type: "Text"},
			},
			FieldExclude: []string{"Secret"},
			DataInclude:  []string{"Varchar"},
		},
		{
			Name:   schema.NameOf(LocalisedChild{}),
			Parent: schema.NameOf(LocalisedParent{}),
			Fields: []schema.Field{
				{Name: "Record", Type: "Text"},
				{Name: "Other", Type: "Varchar"},
			},
			Translate:               []string{"Record"},
			FrontendPublishRequired: true,
		},
		{
			Name:   schema.NameOf(UnlocalisedChild{}),
			Parent: schema.NameOf(LocalisedParent{}),
			Fields: []schema.Field{
				{Name: "Alias", Type: "Varchar"},
			},
			TranslateNone: true,
		},
		{
			Name:   schema.NameOf(LocalisedGrandChild{}),
			Parent: schema.NameOf(LocalisedChild{}),
			Fields: []schema.Field{
				{Name: "Summary", Type: "Varchar"},
				{Name: "Code", Type: "Varchar(20)"},
			},
			FieldInclude: []string{"Summary"},
		},
	}
}
