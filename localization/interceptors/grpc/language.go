package grpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/pitabwire/fluent/localization"
	"github.com/pitabwire/fluent/locales"
)

// LanguageUnaryInterceptor resolves the request locale from the accept-language metadata.
func LanguageUnaryInterceptor(registry *locales.Registry, opts ...localization.StateOption) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any,
		_ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		l := localization.ExtractLanguageFromGrpcRequest(ctx)
		ctx = localization.WithState(ctx, registry, l, opts...)

		return handler(ctx, req)
	}
}

// LanguageStreamInterceptor resolves the stream locale once, when the stream opens.
func LanguageStreamInterceptor(registry *locales.Registry, opts ...localization.StateOption) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx := ss.Context()
		l := localization.ExtractLanguageFromGrpcRequest(ctx)
		ctx = localization.WithState(ctx, registry, l, opts...)

		return handler(srv, &serverStreamWrapper{ctx, ss})
	}
}

// serverStreamWrapper hands handlers the context carrying the locale state.
type serverStreamWrapper struct {
	ctx context.Context
	grpc.ServerStream
}

func (s *serverStreamWrapper) Context() context.Context {
	return s.ctx
}
