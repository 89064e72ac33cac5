package fluenttests

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSuffixedDatabaseName(t *testing.T) {
	t.Parallel()

	u, err := url.Parse("postgres://fluent:pw@localhost:5432/Fluent-Test")
	require.NoError(t, err)
	require.Equal(t, "fluent_test_abc123", suffixedDatabaseName(u, "abc123"))
	require.Equal(t, "fluent_test_abcxyz09", suffixedDatabaseName(u, "AbCxYz09"))

	u, err = url.Parse("postgres://fluent:pw@localhost:5432")
	require.NoError(t, err)
	require.Equal(t, "db_x", suffixedDatabaseName(u, "x"))

	u, err = url.Parse("postgres://localhost/" + strings.Repeat("a", 80))
	require.NoError(t, err)
	require.LessOrEqual(t, len(suffixedDatabaseName(u, "suffix")), postgreSQLMaxIdentifiersCharLength+1)
}

func TestDatabaseName(t *testing.T) {
	t.Parallel()

	require.Equal(t, "fluent_test_x", DatabaseName("postgres://u:p@localhost:5432/fluent_test_x?sslmode=disable"))
	require.Empty(t, DatabaseName("://"))
}
