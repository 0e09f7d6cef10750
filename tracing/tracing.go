// Package tracing installs the global OpenTelemetry tracer provider.
package tracing

import (
	"io"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ErrDisabled is returned by builders when tracing is switched off.
var ErrDisabled = errors.New("tracing disabled")

type Provider interface {
	trace.TracerProvider
	io.Closer
}

// ProviderBuilder wraps the construction details of a provider.
type ProviderBuilder func() (Provider, error)

// Init builds a provider and installs it globally together with the W3C trace
// context propagator. On failure a NoopProvider is returned with the error,
// so callers may log and continue.
func Init(creator ProviderBuilder) (Provider, error) {
	provider, err := creator()
	if err != nil {
		if errors.Is(err, ErrDisabled) {
			return &NoopProvider{}, nil
		}
		return &NoopProvider{}, errors.Wrapf(err, "failed to load tracing provider")
	}

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return provider, nil
}

type NoopProvider struct{ noop.TracerProvider }

func (NoopProvider) Close() error { return nil }
