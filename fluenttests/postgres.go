// Package fluenttests runs the localisation test suites against a disposable PostgreSQL.
package fluenttests

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	postgreSQLMaxIdentifiersCharLength = 60

	// PostgresqlDBImage is the PostgreSQL Image.
	PostgresqlDBImage = "postgres:17-alpine"

	// DBUser is the default username for the PostgreSQL test database.
	DBUser = "fluent"
	// DBPassword is the default password for the PostgreSQL test database.
	DBPassword = "flu3nt"
	// DBName is the default database name for the PostgreSQL test database.
	DBName = "fluent_test"

	occurrenceValue  = 2
	timeoutInSeconds = 60

	pgDuplicateDatabase = "42P04"
	pgUniqueViolation   = "23505"
	pgInternalError     = "XX000"
)

var invalidIdentifierChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// Postgres is a running PostgreSQL container.
type Postgres struct {
	container *tcPostgres.PostgresContainer
	uri       string
}

// StartPostgres starts a PostgreSQL container and waits until it accepts connections.
func StartPostgres(ctx context.Context) (*Postgres, error) {
	pgContainer, err := tcPostgres.Run(ctx, PostgresqlDBImage,
		tcPostgres.WithDatabase(DBName),
		tcPostgres.WithUsername(DBUser),
		tcPostgres.WithPassword(DBPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(occurrenceValue).
				WithStartupTimeout(timeoutInSeconds*time.Second)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	uri, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = testcontainers.TerminateContainer(pgContainer)
		return nil, fmt.Errorf("postgres connection string: %w", err)
	}

	return &Postgres{container: pgContainer, uri: uri}, nil
}

// URI is the connection string of the default database.
func (p *Postgres) URI() string {
	return p.uri
}

// Terminate stops and removes the container.
func (p *Postgres) Terminate(_ context.Context) error {
	if p == nil || p.container == nil {
		return nil
	}
	return testcontainers.TerminateContainer(p.container)
}

// RandomisedDatabase creates (or reuses) a database named after suffix and returns its
// connection string along with a function that wipes its public schema.
func (p *Postgres) RandomisedDatabase(ctx context.Context, suffix string) (string, func(context.Context), error) {
	connectionURI, err := url.Parse(p.uri)
	if err != nil {
		return "", func(context.Context) {}, err
	}

	newDatabaseName := suffixedDatabaseName(connectionURI, suffix)

	connectionURI, err = ensureDatabaseExists(ctx, connectionURI, newDatabaseName)
	if err != nil {
		return "", func(context.Context) {}, err
	}

	suffixedURI := connectionURI.String()
	return suffixedURI, func(cleanupCtx context.Context) {
		_ = clearDatabase(cleanupCtx, suffixedURI)
	}, nil
}

func ensureDatabaseExists(ctx context.Context, postgresURI *url.URL, newDBName string) (*url.URL, error) {
	pool, err := pgxpool.New(ctx, postgresURI.String())
	if err != nil {
		return postgresURI, err
	}
	defer pool.Close()

	if err = pool.Ping(ctx); err != nil {
		return postgresURI, err
	}

	_, err = pool.Exec(ctx, fmt.Sprintf(`CREATE DATABASE %s;`, newDBName))
	if err != nil && !isConcurrentCreate(err) {
		return postgresURI, err
	}

	created := *postgresURI
	created.Path = newDBName
	return &created, nil
}

func isConcurrentCreate(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgDuplicateDatabase, pgUniqueViolation:
		return true
	case pgInternalError:
		return strings.Contains(pgErr.Message, "tuple concurrently updated")
	default:
		return false
	}
}

func clearDatabase(ctx context.Context, connectionString string) error {
	pool, err := pgxpool.New(ctx, connectionString)
	if err != nil {
		return err
	}
	defer pool.Close()

	_, err = pool.Exec(ctx, `DROP SCHEMA public CASCADE; CREATE SCHEMA public;`)
	return err
}

// suffixedDatabaseName builds a valid, lower case PostgreSQL identifier within the length limit.
func suffixedDatabaseName(currentURI *url.URL, suffix string) string {
	pathPart := strings.ReplaceAll(currentURI.Path, "/", "")
	if pathPart == "" {
		pathPart = "db"
	}

	maxPathLength := postgreSQLMaxIdentifiersCharLength - len(suffix)
	if maxPathLength > 0 && len(pathPart) > maxPathLength {
		pathPart = pathPart[:maxPathLength]
	}

	result := invalidIdentifierChars.ReplaceAllString(fmt.Sprintf("%s_%s", pathPart, suffix), "_")
	return strings.ToLower(result)
}
