package fluenttests

import (
	"context"
	"net/url"
	"os"
	"strings"

	"github.com/pitabwire/util"
	"github.com/stretchr/testify/suite"
)

const (
	// DefaultRandomStringLength sizes the suffix of per test databases.
	DefaultRandomStringLength = 8

	// EnvSkipContainers disables the container backed suites, useful where docker is absent.
	EnvSkipContainers = "FLUENT_SKIP_CONTAINER_TESTS"
)

// PostgresSuite starts one PostgreSQL container for the suite and hands each test its own database.
type PostgresSuite struct {
	suite.Suite

	Postgres *Postgres
}

func (s *PostgresSuite) SetupSuite() {
	if strings.EqualFold(os.Getenv(EnvSkipContainers), "true") {
		s.T().Skipf("%s is set, skipping container backed tests", EnvSkipContainers)
	}

	pg, err := StartPostgres(s.T().Context())
	s.Require().NoError(err, "could not start postgres")
	s.Postgres = pg
}

func (s *PostgresSuite) TearDownSuite() {
	if s.Postgres != nil {
		_ = s.Postgres.Terminate(context.Background())
	}
}

// NewDatabase returns the connection string of a fresh database, wiped again when the test ends.
func (s *PostgresSuite) NewDatabase() string {
	t := s.T()
	dsn, cleanup, err := s.Postgres.RandomisedDatabase(t.Context(), util.RandomAlphaNumericString(DefaultRandomStringLength))
	s.Require().NoError(err)
	t.Cleanup(func() { cleanup(context.Background()) })
	return dsn
}

// DatabaseName extracts the database name of a connection string.
func DatabaseName(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}
