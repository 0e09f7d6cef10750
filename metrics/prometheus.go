package metrics

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
)

// InitPrometheus sets a global meter provider that exports into registerer,
// plus Go runtime instrumentation.
func InitPrometheus(registerer prometheus.Registerer) error {
	exporter, err := otelprom.New(otelprom.WithRegisterer(registerer))
	if err != nil {
		return errors.Wrap(err, "failed to create prometheus instance")
	}
	provider := metric.NewMeterProvider(metric.WithReader(exporter))

	otel.SetMeterProvider(provider)

	if err := runtime.Start(runtime.WithMinimumReadMemStatsInterval(15 * time.Second)); err != nil {
		return errors.Wrap(err, "failed to start runtime")
	}

	return nil
}
