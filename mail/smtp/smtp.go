package smtp

// Config contains transport-level SMTP options. Host and credentials arrive
// with every request, see mail.Credentials.
type Config struct {
	TLS      bool `envconfig:"SMTP_TLS" default:"true"`       // upgrade with STARTTLS when the server offers it
	Insecure bool `envconfig:"SMTP_INSECURE" default:"false"` // skip certificate verification
}
