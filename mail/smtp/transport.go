package smtp

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"net/smtp"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pure-golang/bannermail/mail"
)

var _ mail.Transport = (*Transport)(nil)

var tracer = otel.Tracer("github.com/pure-golang/bannermail/mail/smtp")

// Transport implements mail.Transport using net/smtp.
type Transport struct {
	cfg    Config
	logger *slog.Logger
}

// TransportOptions contains options for creating a Transport.
type TransportOptions struct {
	Logger *slog.Logger
}

// NewTransport creates a new SMTP Transport.
func NewTransport(cfg Config, options *TransportOptions) *Transport {
	if options == nil {
		options = &TransportOptions{}
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	return &Transport{
		cfg:    cfg,
		logger: options.Logger.WithGroup("smtp"),
	}
}

// Send opens one session, upgrades it with STARTTLS when offered, authenticates
// and submits msg to every recipient in a single transaction. The connection
// is closed before returning in every case.
func (t *Transport) Send(ctx context.Context, creds mail.Credentials, from string, to []string, msg []byte) error {
	if len(to) == 0 {
		return mail.ErrNoRecipients
	}

	ctx, span := tracer.Start(ctx, "SMTP.Send", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("smtp.host", creds.Host),
		attribute.Int("smtp.port", creds.Port),
		attribute.String("smtp.from", from),
		attribute.Int("smtp.recipients_count", len(to)),
		attribute.Int("smtp.message_size", len(msg)),
	)

	if err := t.deliver(ctx, span, creds, from, to, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		t.logger.Warn("delivery failed", "smtp", creds, "recipients", len(to), "error", err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	t.logger.Info("message delivered", "smtp", creds, "recipients", len(to))
	return nil
}

func (t *Transport) deliver(ctx context.Context, span trace.Span, creds mail.Credentials, from string, to []string, msg []byte) error {
	host := creds.Host

	conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", creds.Addr())
	if err != nil {
		return mail.NewDeliveryError("connect", host, err)
	}

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return mail.NewDeliveryError("greeting", host, err)
	}
	defer func() {
		// After a successful QUIT the connection is already gone.
		_ = client.Close()
	}()

	if t.cfg.TLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			span.SetAttributes(attribute.Bool("smtp.starttls", true))
			tlsConfig := &tls.Config{
				ServerName:         host,
				InsecureSkipVerify: t.cfg.Insecure, // #nosec G402 -- controlled by config
			}
			if err := client.StartTLS(tlsConfig); err != nil {
				return mail.NewDeliveryError("starttls", host, err)
			}
		} else {
			span.SetAttributes(attribute.Bool("smtp.starttls", false))
		}
	}

	if creds.Username != "" {
		if err := client.Auth(smtp.PlainAuth("", creds.Username, creds.Password, host)); err != nil {
			return mail.NewDeliveryError("auth", host, err)
		}
	}

	if err := client.Mail(from); err != nil {
		return mail.NewDeliveryError("mail", host, err)
	}
	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			return mail.NewDeliveryError("rcpt", host, errors.Wrapf(err, "recipient %s", addr))
		}
	}

	w, err := client.Data()
	if err != nil {
		return mail.NewDeliveryError("data", host, err)
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return mail.NewDeliveryError("data", host, err)
	}
	if err := w.Close(); err != nil {
		return mail.NewDeliveryError("data", host, err)
	}

	// The message is accepted at this point; a failed QUIT does not undo it.
	if err := client.Quit(); err != nil {
		t.logger.Debug("quit failed", "host", host, "error", err.Error())
	}
	return nil
}
