package http

import (
	"net/http"

	"github.com/pitabwire/fluent/localization"
	"github.com/pitabwire/fluent/locales"
)

// LanguageHTTPMiddleware resolves the request locale from the lang form value and the
// Accept-Language header and starts the request with its own locale state.
func LanguageHTTPMiddleware(registry *locales.Registry, opts ...localization.StateOption) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := localization.ExtractLanguageFromHTTPRequest(r)

			ctx := localization.WithState(r.Context(), registry, l, opts...)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
