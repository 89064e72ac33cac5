package connect

import (
	"context"
	"errors"

	"connectrpc.com/connect"

	"github.com/pitabwire/fluent/localization"
	"github.com/pitabwire/fluent/locales"
)

// LanguageInterceptor implements connect.Interceptor, starting every handled call with
// the locale state matching its Accept-Language header.
type LanguageInterceptor struct {
	registry *locales.Registry
	opts     []localization.StateOption
}

// NewLanguageInterceptor creates a language interceptor over the supplied locales.
func NewLanguageInterceptor(registry *locales.Registry, opts ...localization.StateOption) (*LanguageInterceptor, error) {
	if registry == nil {
		return nil, errors.New("language interceptor: no locales configured")
	}
	return &LanguageInterceptor{registry: registry, opts: opts}, nil
}

func (l *LanguageInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if req.Spec().IsClient {
			return next(ctx, req)
		}

		languages := localization.ExtractLanguageFromHTTPHeader(req.Header())
		ctx = localization.WithState(ctx, l.registry, languages, l.opts...)

		return next(ctx, req)
	}
}

// WrapStreamingClient is a pass-through, the locale is resolved server side.
func (l *LanguageInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (l *LanguageInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		languages := localization.ExtractLanguageFromHTTPHeader(conn.RequestHeader())
		ctx = localization.WithState(ctx, l.registry, languages, l.opts...)

		return next(ctx, conn)
	}
}
