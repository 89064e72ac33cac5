package fluent_test

import (
	"context"
	"slices"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/pitabwire/fluent"
	"github.com/pitabwire/fluent/fluenttests/models"
	"github.com/pitabwire/fluent/state"
)

// spanNames records the names of started spans, nothing else.
type spanNames struct {
	noop.TracerProvider

	mu    sync.Mutex
	names []string
}

func (p *spanNames) Tracer(string, ...trace.TracerOption) trace.Tracer {
	return &namingTracer{names: p}
}

func (p *spanNames) started() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.names)
}

type namingTracer struct {
	noop.Tracer

	names *spanNames
}

func (t *namingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	t.names.mu.Lock()
	t.names.names = append(t.names.names, name)
	t.names.mu.Unlock()
	return t.Tracer.Start(ctx, name, opts...)
}

var (
	installTracing sync.Once
	recordedSpans  = &spanNames{}
)

func (s *ExtensionSuite) TestEveryReadIsTraced() {
	installTracing.Do(func() { otel.SetTracerProvider(recordedSpans) })

	repo := s.parents()
	ctx := state.WithLocale(context.Background(), "de_DE")

	_, err := repo.Count(ctx)
	s.Require().NoError(err)

	_, err = fluent.Column[*models.LocalisedParent, string](ctx, repo, "Title")
	s.Require().NoError(err)

	_, err = repo.List(ctx)
	s.Require().NoError(err)

	_, err = fluent.Column[*models.LocalisedParent, string](ctx, repo, "Nope")
	s.Require().Error(err)

	started := recordedSpans.started()
	s.Contains(started, "fluent.Count")
	s.Contains(started, "fluent.Column")
	s.Contains(started, "fluent.List")
}
