package fixtures_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/pitabwire/fluent/fixtures"
	"github.com/pitabwire/fluent/state"
)

type call struct {
	locale string
	id     string
	values map[string]any
}

type recordingSaver struct {
	calls []call
	next  int
	fail  bool
}

func (r *recordingSaver) SaveValues(ctx context.Context, id string, values map[string]any) (string, error) {
	if r.fail {
		return "", errors.New("boom")
	}
	r.calls = append(r.calls, call{locale: state.FromContext(ctx).Locale(), id: id, values: values})
	if id != "" {
		return id, nil
	}
	r.next++
	return string(rune('a'+r.next-1)) + "-id", nil
}

type FixturesSuite struct {
	suite.Suite
}

func TestFixturesSuite(t *testing.T) {
	suite.Run(t, new(FixturesSuite))
}

func (s *FixturesSuite) TestLoad() {
	set, err := fixtures.Load("testdata/fluent.yml")
	s.Require().NoError(err)
	s.Equal([]string{"LocalisedParent", "UnlocalisedChild"}, set.Types())

	record, ok := set.Record("LocalisedParent", "record_b")
	s.Require().True(ok)
	s.Equal("Read about things", record.Values["Title"])
	s.NotContains(record.Values, fixtures.LocalisedKey)
	s.Equal("Lesen Sie mehr", record.Localised["de_DE"]["Title"])

	_, err = fixtures.Load("testdata/missing.yml")
	s.Require().Error(err)
}

func (s *FixturesSuite) TestParseRejectsMalformedLocalised() {
	_, err := fixtures.Parse([]byte("Page:\n  home:\n    Localised: nope\n"))
	s.Require().Error(err)

	_, err = fixtures.Parse([]byte("Page:\n  home:\n    Localised:\n      en_US: nope\n"))
	s.Require().Error(err)
}

func (s *FixturesSuite) TestSeedOrderAndIDs() {
	set, err := fixtures.Load("testdata/fluent.yml")
	s.Require().NoError(err)

	saver := &recordingSaver{}
	err = set.Seed(context.Background(), "en_US", map[string]fixtures.Saver{"LocalisedParent": saver})
	s.Require().NoError(err)

	s.Require().Len(saver.calls, 4+3+3)
	first := saver.calls[0]
	s.Equal("en_US", first.locale)
	s.Empty(first.id)
	s.Equal("A record", first.values["Title"])

	s.Equal("de_DE", saver.calls[1].locale)
	s.Equal("a-id", saver.calls[1].id)
	s.Equal("en_US", saver.calls[2].locale)
	s.Equal("es_ES", saver.calls[3].locale)

	id, err := set.ID("LocalisedParent", "record_c")
	s.Require().NoError(err)
	s.Equal("c-id", id)

	_, err = set.ID("UnlocalisedChild", "plain")
	s.Require().ErrorIs(err, fixtures.ErrUnknownFixture)
}

func (s *FixturesSuite) TestSeedFailure() {
	set, err := fixtures.Load("testdata/fluent.yml")
	s.Require().NoError(err)

	err = set.Seed(context.Background(), "en_US", map[string]fixtures.Saver{"LocalisedParent": &recordingSaver{fail: true}})
	s.Require().Error(err)
	s.Contains(err.Error(), "record_a")
}
