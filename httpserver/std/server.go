package std

import (
	"context"
	stdErr "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/pure-golang/bannermail/httpserver"
)

var _ httpserver.RunableProvider = (*Server)(nil)

type Config struct {
	Host            string        `envconfig:"WEBSERVER_HOST"`
	Port            int           `envconfig:"WEBSERVER_PORT" default:"8080"`
	TLSCertPath     string        `envconfig:"WEBSERVER_TLS_CERT_PATH"`
	TLSKeyPath      string        `envconfig:"WEBSERVER_TLS_KEY_PATH"`
	ReadTimeout     time.Duration `envconfig:"WEBSERVER_READ_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"WEBSERVER_SHUTDOWN_TIMEOUT" default:"15s"`
}

type Server struct {
	logger *slog.Logger
	server *http.Server
	config Config

	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}
}

// ServerOptions contains options for creating a Server.
type ServerOptions struct {
	Logger *slog.Logger
}

// NewDefault is New with the server's internal errors routed to the logger.
func NewDefault(c Config, h http.Handler, options *ServerOptions) *Server {
	s := New(c, h, options)
	s.server.ErrorLog = slog.NewLogLogger(s.logger.Handler(), slog.LevelError)
	return s
}

func New(c Config, h http.Handler, options *ServerOptions) *Server {
	if options == nil {
		options = &ServerOptions{}
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	return &Server{
		server: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", c.Host, c.Port),
			Handler:           h,
			ReadHeaderTimeout: 10 * time.Second, // Prevent Slowloris attacks
			ReadTimeout:       c.ReadTimeout,
		},
		logger: options.Logger.WithGroup("webserver"),
		config: c,
		ready:  make(chan struct{}),
	}
}

// Start listens and serves until Close. A closed server is not an error.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", s.server.Addr)
	}

	s.mu.Lock()
	s.listener = ln
	close(s.ready)
	s.mu.Unlock()

	s.logger.Info("server starting", slog.String("addr", ln.Addr().String()))

	if s.config.TLSCertPath == "" {
		err = s.server.Serve(ln)
	} else {
		err = s.server.ServeTLS(ln, s.config.TLSCertPath, s.config.TLSKeyPath)
	}

	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return errors.Wrapf(err, "serve failed")
}

// Addr waits until the server listens and returns the bound address.
func (s *Server) Addr(ctx context.Context) (string, error) {
	select {
	case <-s.ready:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener.Addr().String(), nil
}

func (s *Server) Close() error {
	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := s.server.Shutdown(ctx)
	if err != nil {
		err = stdErr.Join(err, errors.Wrapf(s.server.Close(), "failed to close server"))
	}

	s.logger.Info("server closed")

	return errors.Wrapf(err, "server shutdown failed")
}

func (s *Server) Run() {
	go func() {
		err := s.Start()
		if err != nil {
			s.logger.With("error", err).Error("webserver crashed")
		}
	}()
}
