package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/pure-golang/bannermail/api"
	"github.com/pure-golang/bannermail/banner"
	"github.com/pure-golang/bannermail/dispatch"
	"github.com/pure-golang/bannermail/env"
	"github.com/pure-golang/bannermail/httpserver/std"
	"github.com/pure-golang/bannermail/logger"
	"github.com/pure-golang/bannermail/mail"
	"github.com/pure-golang/bannermail/mail/gomail"
	"github.com/pure-golang/bannermail/mail/noop"
	"github.com/pure-golang/bannermail/mail/smtp"
	"github.com/pure-golang/bannermail/metrics"
	"github.com/pure-golang/bannermail/scheduler"
	"github.com/pure-golang/bannermail/tracing"
	"github.com/pure-golang/bannermail/tracing/jaeger"
)

const stopTimeout = 30 * time.Second

type appConfig struct {
	MailProvider string `envconfig:"MAIL_PROVIDER" default:"smtp"`
	Timezone     string `envconfig:"SCHEDULER_TIMEZONE" default:"Local"`
}

type config struct {
	App     appConfig
	Logger  logger.Config
	Server  std.Config
	SMTP    smtp.Config
	Gomail  gomail.Config
	Banner  banner.Config
	Metrics metrics.Config
	Tracing jaeger.Config
}

func main() {
	if err := run(); err != nil {
		logger.WithErr(err).Error("bannermail stopped with error")
		os.Exit(1)
	}
}

func loadConfig() (config, error) {
	var c config
	err := env.InitConfig(&c.App, &c.Logger, &c.Server, &c.SMTP, &c.Gomail, &c.Banner, &c.Metrics, &c.Tracing)
	return c, err
}

func newTransport(c config, log *slog.Logger) (mail.Transport, error) {
	switch c.App.MailProvider {
	case "smtp", "":
		return smtp.NewTransport(c.SMTP, &smtp.TransportOptions{Logger: log}), nil
	case "gomail":
		return gomail.NewTransport(c.Gomail, &gomail.TransportOptions{Logger: log}), nil
	case "noop":
		return noop.NewTransport(), nil
	default:
		return nil, errors.Errorf("unknown MAIL_PROVIDER %q", c.App.MailProvider)
	}
}

func run() error {
	c, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	logger.InitDefault(c.Logger)
	log := slog.Default()

	tp, err := tracing.Init(jaeger.NewProviderBuilder(c.Tracing))
	if err != nil {
		log.Warn("tracing disabled", "error", err.Error())
	}
	defer closeLogged(log, "tracing", tp)

	m, err := metrics.InitDefault(c.Metrics)
	if err != nil {
		return errors.Wrap(err, "failed to init metrics")
	}
	defer closeLogged(log, "metrics", m)

	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return errors.Wrapf(err, "invalid SCHEDULER_TIMEZONE %q", c.App.Timezone)
	}

	transport, err := newTransport(c, log)
	if err != nil {
		return err
	}

	jobs := scheduler.New(scheduler.WithLogger(log), scheduler.WithLocation(loc))
	if err := jobs.Start(); err != nil {
		return errors.Wrap(err, "failed to start scheduler")
	}

	service := dispatch.NewService(transport, jobs, &dispatch.ServiceOptions{Logger: log, Location: loc})
	banners := banner.NewGenerator(c.Banner, &banner.GeneratorOptions{Logger: log})
	handler := api.NewHandler(service, banners, jobs, &api.HandlerOptions{Logger: log})

	server := std.NewDefault(c.Server, handler.Router(), &std.ServerOptions{Logger: log})
	server.Run()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	log.Info("shutting down")

	if err := server.Close(); err != nil {
		log.Error("failed to close server", "error", err.Error())
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if pending := jobs.Len(); pending > 0 {
		log.Warn("discarding scheduled sends", "pending", pending)
	}
	return errors.Wrap(jobs.Stop(stopCtx), "failed to stop scheduler")
}

func closeLogged(log *slog.Logger, name string, c io.Closer) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		log.Warn("failed to close "+name, "error", err.Error())
	}
}
