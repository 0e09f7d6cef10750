package tracing

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
)

type testProvider struct {
	*tracesdk.TracerProvider
	closed bool
}

func (p *testProvider) Close() error {
	p.closed = true
	return p.Shutdown(context.Background())
}

func TestInit_InstallsProvider(t *testing.T) {
	original := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(original) })

	tp := &testProvider{TracerProvider: tracesdk.NewTracerProvider()}
	provider, err := Init(func() (Provider, error) { return tp, nil })

	require.NoError(t, err)
	assert.Same(t, tp, provider)
	assert.Equal(t, Provider(tp), otel.GetTracerProvider())
	assert.Contains(t, otel.GetTextMapPropagator().Fields(), "traceparent")
	assert.Contains(t, otel.GetTextMapPropagator().Fields(), "baggage")

	require.NoError(t, provider.Close())
	assert.True(t, tp.closed)
}

func TestInit_BuilderErrorFallsBackToNoop(t *testing.T) {
	cause := errors.New("endpoint unreachable")
	provider, err := Init(func() (Provider, error) { return nil, cause })

	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "failed to load tracing provider")
	assert.IsType(t, &NoopProvider{}, provider)
}

func TestInit_DisabledIsNotAnError(t *testing.T) {
	provider, err := Init(func() (Provider, error) { return nil, ErrDisabled })

	require.NoError(t, err)
	assert.IsType(t, &NoopProvider{}, provider)
}

func TestNoopProvider(t *testing.T) {
	p := &NoopProvider{}

	_, span := p.Tracer("bannermail").Start(context.Background(), "SMTP.Send")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
	assert.NoError(t, p.Close())
}
