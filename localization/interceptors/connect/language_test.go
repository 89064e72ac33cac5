package connect_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	lconnect "github.com/pitabwire/fluent/localization/interceptors/connect"
	"github.com/pitabwire/fluent/locales"
)

func TestNewLanguageInterceptor(t *testing.T) {
	t.Parallel()

	_, err := lconnect.NewLanguageInterceptor(nil)
	require.Error(t, err)

	registry, err := locales.FromCodes("en_US", "de_DE")
	require.NoError(t, err)

	interceptor, err := lconnect.NewLanguageInterceptor(registry)
	require.NoError(t, err)
	require.NotNil(t, interceptor)
}
