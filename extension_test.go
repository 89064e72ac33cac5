package fluent_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/pitabwire/fluent"
	"github.com/pitabwire/fluent/config"
	"github.com/pitabwire/fluent/datastore/pool"
	"github.com/pitabwire/fluent/fluenttests/models"
	"github.com/pitabwire/fluent/locales"
	"github.com/pitabwire/fluent/schema"
	"github.com/pitabwire/fluent/state"
)

func testLocales() []locales.Locale {
	return []locales.Locale{
		{Code: "en_US", IsDefault: true},
		{Code: "en_NZ", Fallbacks: []string{"en_US"}},
		{Code: "de_DE"},
		{Code: "es_ES", Fallbacks: []string{"en_US"}},
	}
}

func dryRunPool(ctx context.Context) (pool.Pool, error) {
	db, err := gorm.Open(
		postgres.New(postgres.Config{DSN: "host=localhost user=fluent dbname=fluent sslmode=disable"}),
		&gorm.Config{DryRun: true, DisableAutomaticPing: true},
	)
	if err != nil {
		return nil, err
	}
	return pool.NewPoolWithDB(ctx, db), nil
}

// ExtensionSuite checks query building against a dry run connection, no database needed.
type ExtensionSuite struct {
	suite.Suite

	ext *fluent.Extension
}

func TestExtensionSuite(t *testing.T) {
	suite.Run(t, new(ExtensionSuite))
}

func (s *ExtensionSuite) SetupTest() {
	ctx := context.Background()
	dbPool, err := dryRunPool(ctx)
	s.Require().NoError(err)

	_, ext, err := fluent.NewExtension(ctx,
		fluent.WithConfig(&config.ConfigurationDefault{}),
		fluent.WithLogger(),
		fluent.WithPool(dbPool),
		fluent.WithDeclarations(models.Declarations()...),
		fluent.WithLocales(testLocales()...),
	)
	s.Require().NoError(err)
	s.ext = ext
}

func (s *ExtensionSuite) parents() *fluent.Repository[*models.LocalisedParent] {
	repo, err := fluent.NewRepository(context.Background(), s.ext, func() *models.LocalisedParent {
		return &models.LocalisedParent{}
	})
	s.Require().NoError(err)
	return repo
}

func (s *ExtensionSuite) TestExtensionOnContext() {
	ctx, ext, err := fluent.NewExtension(context.Background(),
		fluent.WithConfig(&config.ConfigurationDefault{FluentDefaultLocale: "de_DE", FluentLocales: []string{"de_DE", "en_US"}}),
	)
	s.Require().NoError(err)
	defer ext.Close(ctx)

	s.Same(ext, fluent.FromContext(ctx))
	s.Nil(fluent.FromContext(context.Background()))
	s.Equal("de_DE", ext.Locales().Default())
	s.NotNil(ext.Localization())
	s.Nil(ext.Pool())
	s.NotNil(config.FromContext[*config.ConfigurationDefault](ctx))

	_, err = fluent.NewRepository(ctx, ext, func() *models.LocalisedParent { return &models.LocalisedParent{} })
	s.Require().Error(err)
}

func (s *ExtensionSuite) TestInvalidSetupFails() {
	testCases := []struct {
		name string
		opts []fluent.Option
	}{
		{
			name: "bad declaration",
			opts: []fluent.Option{fluent.WithDeclarations(schema.Declaration{Name: "Page", Parent: "Missing"})},
		},
		{
			name: "bad locales",
			opts: []fluent.Option{fluent.WithLocales(locales.Locale{Code: "en_US"}, locales.Locale{Code: "en_US"})},
		},
		{
			name: "missing locales file",
			opts: []fluent.Option{fluent.WithLocalesFile("testdata/none.yml")},
		},
		{
			name: "missing translations",
			opts: []fluent.Option{fluent.WithTranslation("testdata", "xx")},
		},
		{
			name: "unsupported datastore",
			opts: []fluent.Option{fluent.WithDatastoreConnection("mysql://root@localhost/db", false)},
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			opts := append([]fluent.Option{fluent.WithConfig(&config.ConfigurationDefault{})}, tc.opts...)
			_, ext, err := fluent.NewExtension(context.Background(), opts...)
			s.Require().Error(err)
			s.Nil(ext)
		})
	}

	_, _, err := fluent.NewExtension(context.Background(),
		fluent.WithDeclarations(schema.Declaration{Name: "Page", Parent: "Missing"}))
	s.Require().ErrorIs(err, fluent.ErrClassification)
}

func (s *ExtensionSuite) TestLocalisedTable() {
	s.Equal("LocalisedParent_Localised", s.ext.LocalisedTable("LocalisedParent"))
	s.Equal("LocalisedParent_Localised_FR", s.ext.LocalisedTable("LocalisedParent", "FR"))
	s.Equal("LocalisedParent_Localised_en_US", fluent.LocalisedTable("LocalisedParent", "en_US"))
	s.Equal("LocalisedParent_Localised", fluent.LocalisedTable("LocalisedParent", ""))
}

type viewer struct {
	allowed string
}

func (v viewer) CanViewInLocale(_ context.Context, locale string) bool {
	return locale == v.allowed
}

func (s *ExtensionSuite) TestLinkingMode() {
	ctx := state.WithLocale(context.Background(), "en_NZ")
	record := &models.LocalisedParent{}

	s.Equal(fluent.LinkingModeCurrent, s.ext.LinkingMode(ctx, record, "en_NZ"))
	s.Equal(fluent.LinkingModeLink, s.ext.LinkingMode(ctx, record, "en_US"))
	s.Equal(fluent.LinkingModeLink, s.ext.LinkingMode(context.Background(), record, ""))

	s.Equal(fluent.LinkingModeCurrent, s.ext.LinkingMode(ctx, viewer{allowed: "en_NZ"}, "en_NZ"))
	s.Equal(fluent.LinkingModeLink, s.ext.LinkingMode(ctx, viewer{allowed: "de_DE"}, "en_NZ"))
	s.Equal(fluent.LinkingModeLink, s.ext.LinkingMode(ctx, viewer{allowed: "de_DE"}, "de_DE"))
}

func (s *ExtensionSuite) TestQueryCarriesLocaleSettings() {
	repo := s.parents()

	testCases := []struct {
		name       string
		locale     string
		isFrontend bool
	}{
		{name: "english backend", locale: "en_US"},
		{name: "german frontend", locale: "de_DE", isFrontend: true},
		{name: "unregistered locale", locale: "FR", isFrontend: true},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			st := state.New().SetLocale(tc.locale).SetIsFrontend(tc.isFrontend)
			query := repo.Query(state.ToContext(context.Background(), st))

			locale, ok := query.Get(fluent.SettingLocale)
			s.Require().True(ok)
			s.Equal(tc.locale, locale)

			isFrontend, ok := query.Get(fluent.SettingIsFrontend)
			s.Require().True(ok)
			s.Equal(tc.isFrontend, isFrontend)
		})
	}

	query := repo.Query(context.Background())
	locale, _ := query.Get(fluent.SettingLocale)
	s.Equal("en_US", locale)
}

func (s *ExtensionSuite) explain(db *gorm.DB) string {
	stmt := db.Statement
	return db.Dialector.Explain(stmt.SQL.String(), stmt.Vars...)
}

func (s *ExtensionSuite) TestQueryJoinsLocaleChain() {
	repo := s.parents()
	ctx := state.WithLocale(context.Background(), "en_NZ")

	var out []*models.LocalisedParent
	sql := s.explain(repo.Query(ctx).Find(&out))

	s.Contains(sql, `LEFT JOIN "localised_parents_Localised" AS "localised_parents_Localised_en_NZ"`)
	s.Contains(sql, `"localised_parents_Localised_en_NZ"."locale" = 'en_NZ'`)
	s.Contains(sql, `"localised_parents_Localised_en_US"."locale" = 'en_US'`)
	s.Contains(sql, `COALESCE("localised_parents_Localised_en_NZ"."title", "localised_parents_Localised_en_US"."title", "localised_parents"."title") AS "title"`)
	s.Contains(sql, `"localised_parents"."description"`)
	s.NotContains(sql, `"localised_parents_Localised_en_NZ"."description"`)
	s.NotContains(sql, "IS NOT NULL")
}

func (s *ExtensionSuite) TestFrontendFilterOnlyWhenPublishRequired() {
	ctx := state.ToContext(context.Background(), state.New().SetLocale("de_DE").SetIsFrontend(true))

	var parents []*models.LocalisedParent
	sql := s.explain(s.parents().Query(ctx).Find(&parents))
	s.NotContains(sql, `"record_id" IS NOT NULL`)

	children, err := fluent.NewRepository(ctx, s.ext, func() *models.LocalisedChild { return &models.LocalisedChild{} })
	s.Require().NoError(err)
	s.ElementsMatch([]string{"title", "details", "record"}, children.LocalisedColumns())

	var out []*models.LocalisedChild
	sql = s.explain(children.Query(ctx).Find(&out))
	s.Contains(sql, `"localised_children_Localised_de_DE"."record_id" IS NOT NULL`)

	backend := state.WithLocale(context.Background(), "de_DE")
	sql = s.explain(children.Query(backend).Find(&out))
	s.NotContains(sql, `"record_id" IS NOT NULL`)
}

func (s *ExtensionSuite) TestUnlocalisedChildKeepsParentFields() {
	repo, err := fluent.NewRepository(context.Background(), s.ext, func() *models.UnlocalisedChild {
		return &models.UnlocalisedChild{}
	})
	s.Require().NoError(err)
	s.ElementsMatch([]string{"title", "details"}, repo.LocalisedColumns())
	s.Equal("unlocalised_children_Localised", repo.LocalisedTable())
}

func (s *ExtensionSuite) TestRepositoryRejectsUnregisteredType() {
	type stray struct {
		models.LocalisedParent
	}

	_, err := fluent.NewRepository(context.Background(), s.ext, func() *stray { return &stray{} })
	s.Require().ErrorIs(err, fluent.ErrClassification)
}

func (s *ExtensionSuite) TestSaveWithoutLocale() {
	repo := s.parents()

	record := &models.LocalisedParent{Title: "A"}
	err := repo.Save(context.Background(), record)
	s.Require().ErrorIs(err, fluent.ErrMissingLocale)

	var missing *fluent.MissingLocaleError
	s.Require().ErrorAs(err, &missing)
	s.Equal("localised_parents", missing.Table)
	s.Empty(record.ID)

	_, err = repo.SaveValues(context.Background(), "abc", map[string]any{"Title": "B"})
	s.Require().ErrorIs(err, fluent.ErrMissingLocale)
}

func (s *ExtensionSuite) TestUnknownSortField() {
	_, err := s.parents().List(state.WithLocale(context.Background(), "en_US"), fluent.SortBy("Nope", fluent.Ascending))
	s.Require().Error(err)
}

func (s *ExtensionSuite) TestLocalisedTablePatch() {
	patch, err := s.ext.LocalisedTablePatch(context.Background(), &models.LocalisedAnother{})
	s.Require().NoError(err)
	s.Require().NotNil(patch)

	s.Contains(patch.Name, "localised_anothers_localised")
	s.Contains(patch.Patch, `CREATE TABLE IF NOT EXISTS "localised_anothers_Localised"`)
	s.Contains(patch.Patch, `REFERENCES "localised_anothers" ("id") ON DELETE CASCADE`)
	s.Contains(patch.Patch, `PRIMARY KEY ("record_id", "locale")`)
	s.Contains(patch.Patch, `ADD COLUMN IF NOT EXISTS "title" varchar(255);`)
	s.Contains(patch.Patch, `ADD COLUMN IF NOT EXISTS "details" varchar(200);`)
	s.Contains(patch.Patch, `ADD COLUMN IF NOT EXISTS "bastion" varchar(255);`)
	s.Contains(patch.Patch, `ADD COLUMN IF NOT EXISTS "data" varchar(100);`)
	s.NotContains(patch.Patch, `"secret"`)
	s.NotContains(patch.Patch, `"notes"`)
	s.Equal(`DROP TABLE IF EXISTS "localised_anothers_Localised";`, patch.RevertPatch)

	again, err := s.ext.LocalisedTablePatch(context.Background(), &models.LocalisedAnother{})
	s.Require().NoError(err)
	s.Equal(patch.Name, again.Name)
}
