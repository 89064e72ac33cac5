package scopes_test

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/pitabwire/fluent/data"
	"github.com/pitabwire/fluent/datastore/scopes"
)

type article struct {
	data.BaseModel

	Title string
	Body  string
	Slug  string
}

type ScopesSuite struct {
	suite.Suite

	db *gorm.DB
}

func TestScopesSuite(t *testing.T) {
	suite.Run(t, new(ScopesSuite))
}

func (s *ScopesSuite) SetupSuite() {
	db, err := gorm.Open(
		postgres.New(postgres.Config{DSN: "host=localhost user=fluent dbname=fluent sslmode=disable"}),
		&gorm.Config{DryRun: true, DisableAutomaticPing: true},
	)
	s.Require().NoError(err)
	s.db = db
}

func (s *ScopesSuite) localisation(chain ...string) scopes.Localisation {
	return scopes.Localisation{
		Table:          "articles",
		LocalisedTable: "articles_Localised",
		Columns:        []string{"id", "title", "body", "slug"},
		Localised:      []string{"title", "body"},
		Chain:          chain,
	}
}

func (s *ScopesSuite) sql(fn func(tx *gorm.DB) *gorm.DB) string {
	return s.db.ToSQL(fn)
}

func (s *ScopesSuite) TestQuote() {
	s.Equal(`"articles_Localised_en_US"`, scopes.Quote("articles_Localised_en_US"))
	s.Equal(`"a""b"`, scopes.Quote(`a"b`))
}

func (s *ScopesSuite) TestColumnExpr() {
	l := s.localisation("de_AT", "de_DE")
	s.Equal(`COALESCE("articles_Localised_de_AT"."title", "articles_Localised_de_DE"."title", "articles"."title")`,
		l.ColumnExpr("title"))
	s.Equal(`"articles"."slug"`, l.ColumnExpr("slug"))
	s.Equal(`"articles"."title"`, s.localisation().ColumnExpr("title"))
}

func (s *ScopesSuite) TestLocalisedJoinsEveryChainLocale() {
	l := s.localisation("en_NZ", "en_US")
	query := s.sql(func(tx *gorm.DB) *gorm.DB {
		return tx.Model(&article{}).Scopes(scopes.Localised(l)).Find(&[]article{})
	})

	s.Contains(query, `LEFT JOIN "articles_Localised" AS "articles_Localised_en_NZ" ON `+
		`"articles_Localised_en_NZ"."record_id" = "articles"."id" AND "articles_Localised_en_NZ"."locale" = 'en_NZ'`)
	s.Contains(query, `AS "articles_Localised_en_US" ON`)
	s.Contains(query, `'en_US'`)
	s.Contains(query, `COALESCE("articles_Localised_en_NZ"."body", "articles_Localised_en_US"."body", "articles"."body") AS "body"`)
	s.Contains(query, `"articles"."slug"`)
	s.Contains(query, `"articles"."deleted_at" IS NULL`)
}

func (s *ScopesSuite) TestEmptyChainReadsBaseColumns() {
	query := s.sql(func(tx *gorm.DB) *gorm.DB {
		return tx.Model(&article{}).Scopes(scopes.Localised(s.localisation())).Find(&[]article{})
	})
	s.NotContains(query, "JOIN")
	s.NotContains(query, "COALESCE")
	s.Contains(query, `"articles"."title"`)
}

func (s *ScopesSuite) TestOrderByLocalisedColumn() {
	l := s.localisation("de_DE")
	query := s.sql(func(tx *gorm.DB) *gorm.DB {
		return tx.Model(&article{}).Scopes(scopes.Localised(l), scopes.OrderBy(l, "title", true)).Find(&[]article{})
	})
	s.Contains(query, `ORDER BY COALESCE("articles_Localised_de_DE"."title", "articles"."title") DESC`)

	query = s.sql(func(tx *gorm.DB) *gorm.DB {
		return tx.Model(&article{}).Scopes(scopes.Localised(l), scopes.OrderBy(l, "slug", false)).Find(&[]article{})
	})
	s.Contains(query, `ORDER BY "articles"."slug"`)
	s.NotContains(query, "DESC")
}

func (s *ScopesSuite) TestWhereAndFrontendFilter() {
	l := s.localisation("es_ES", "en_US")
	query := s.sql(func(tx *gorm.DB) *gorm.DB {
		return tx.Model(&article{}).
			Scopes(scopes.Localised(l), scopes.FrontendFilter(l), scopes.Where(l, "title", "Hola")).
			Find(&[]article{})
	})
	s.Contains(query, `("articles_Localised_es_ES"."record_id" IS NOT NULL OR "articles_Localised_en_US"."record_id" IS NOT NULL)`)
	s.Contains(query, `COALESCE("articles_Localised_es_ES"."title", "articles_Localised_en_US"."title", "articles"."title") = 'Hola'`)

	s.Equal("FALSE", s.localisation().HasRecordExpr())
}

func (s *ScopesSuite) TestAliasKeepsLocaleCase() {
	s.Equal("articles_Localised_FR", s.localisation().Alias("FR"))
	s.Equal("articles_Localised_fr", s.localisation().Alias("fr"))
	s.True(s.localisation().IsLocalised("title"))
	s.False(s.localisation().IsLocalised("slug"))
}
