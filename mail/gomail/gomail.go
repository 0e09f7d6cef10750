// Package gomail delivers prebuilt messages through gopkg.in/mail.v2.
package gomail

import (
	"bytes"
	"context"
	"crypto/tls"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	mailv2 "gopkg.in/mail.v2"

	"github.com/pure-golang/bannermail/mail"
)

var _ mail.Transport = (*Transport)(nil)

var tracer = otel.Tracer("github.com/pure-golang/bannermail/mail/gomail")

// Config configures the dialer.
type Config struct {
	Insecure bool          `envconfig:"SMTP_INSECURE" default:"false"`
	Timeout  time.Duration `envconfig:"SMTP_TIMEOUT" default:"10s"`
}

// Transport implements mail.Transport with a fresh mail.v2 dialer per send.
type Transport struct {
	cfg    Config
	logger *slog.Logger
}

// TransportOptions contains options for creating a Transport.
type TransportOptions struct {
	Logger *slog.Logger
}

func NewTransport(cfg Config, options *TransportOptions) *Transport {
	if options == nil {
		options = &TransportOptions{}
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Transport{
		cfg:    cfg,
		logger: options.Logger.WithGroup("gomail"),
	}
}

func (t *Transport) dialer(ctx context.Context, creds mail.Credentials) *mailv2.Dialer {
	d := mailv2.NewDialer(creds.Host, creds.Port, creds.Username, creds.Password)
	d.StartTLSPolicy = mailv2.OpportunisticStartTLS
	d.TLSConfig = &tls.Config{
		ServerName:         creds.Host,
		InsecureSkipVerify: t.cfg.Insecure, // #nosec G402 -- controlled by config
	}
	if t.cfg.Timeout > 0 {
		d.Timeout = t.cfg.Timeout
	}
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left > 0 && left < d.Timeout {
			d.Timeout = left
		}
	}
	return d
}

// Send dials, submits msg as-is and closes the session.
func (t *Transport) Send(ctx context.Context, creds mail.Credentials, from string, to []string, msg []byte) error {
	if len(to) == 0 {
		return mail.ErrNoRecipients
	}

	_, span := tracer.Start(ctx, "Gomail.Send", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("smtp.host", creds.Host),
		attribute.Int("smtp.port", creds.Port),
		attribute.Int("smtp.recipients_count", len(to)),
	)

	err := t.send(ctx, creds, from, to, msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		t.logger.Warn("delivery failed", "smtp", creds, "recipients", len(to), "error", err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	t.logger.Info("message delivered", "smtp", creds, "recipients", len(to))
	return nil
}

func (t *Transport) send(ctx context.Context, creds mail.Credentials, from string, to []string, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return mail.NewDeliveryError("connect", creds.Host, err)
	}

	s, err := t.dialer(ctx, creds).Dial()
	if err != nil {
		return mail.NewDeliveryError("connect", creds.Host, err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			t.logger.Debug("close failed", "host", creds.Host, "error", err.Error())
		}
	}()

	return mail.NewDeliveryError("send", creds.Host, s.Send(from, to, bytes.NewReader(msg)))
}
