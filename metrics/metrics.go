// Package metrics exposes OpenTelemetry metrics on a Prometheus endpoint.
package metrics

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Config struct {
	Enabled     bool          `envconfig:"METRICS_ENABLED" default:"false"`
	Host        string        `envconfig:"METRICS_HOST"`
	Port        int           `envconfig:"METRICS_PORT" default:"9090"`
	ReadTimeout time.Duration `envconfig:"METRICS_READ_TIMEOUT" default:"30s"`
}

type Metrics struct {
	config   Config
	registry *prometheus.Registry
	server   *http.Server
	listener net.Listener
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// InitDefault starts the endpoint when enabled. A disabled config yields a
// closer that does nothing and leaves the global meter provider untouched.
func InitDefault(config Config) (io.Closer, error) {
	if !config.Enabled {
		return nopCloser{}, nil
	}

	provider := New(config)
	if err := provider.Start(); err != nil {
		return nil, errors.Wrap(err, "failed to start metrics server")
	}

	return provider, nil
}

func New(config Config) *Metrics {
	registry := prometheus.NewRegistry()
	return &Metrics{
		config:   config,
		registry: registry,
		server:   NewHttpServer(config, registry),
	}
}

// Start installs the meter provider and serves /metrics in the background.
func (s *Metrics) Start() error {
	if err := InitPrometheus(s.registry); err != nil {
		return errors.Wrap(err, "failed to init prometheus")
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", s.server.Addr)
	}
	s.listener = ln

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Default().Warn("metrics server failed", "error", err.Error())
		}
	}()
	slog.Default().Info("metrics server started", "addr", ln.Addr().String())

	return nil
}

// Addr is the bound address once started.
func (s *Metrics) Addr() string {
	if s.listener == nil {
		return s.server.Addr
	}
	return s.listener.Addr().String()
}

func (s *Metrics) Close() error {
	return errors.Wrap(s.server.Close(), "failed to close metrics")
}

func NewHttpServer(conf Config, gatherer prometheus.Gatherer) *http.Server {
	r := http.NewServeMux()
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", conf.Host, conf.Port),
		Handler:           r,
		ReadTimeout:       conf.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
