package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pure-golang/bannermail/env"
	"github.com/pure-golang/bannermail/logger/noop"
	"github.com/pure-golang/bannermail/mail/gomail"
	mailnoop "github.com/pure-golang/bannermail/mail/noop"
	"github.com/pure-golang/bannermail/mail/smtp"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv(env.FileVar, filepath.Join(t.TempDir(), "none.env"))

	c, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, "smtp", c.App.MailProvider)
	assert.Equal(t, "Local", c.App.Timezone)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, "arial.ttf", c.Banner.FontPath)
	assert.True(t, c.SMTP.TLS)
	assert.False(t, c.Metrics.Enabled)
	assert.False(t, c.Tracing.Enabled)
}

func TestNewTransport(t *testing.T) {
	log := noop.NewNoop()
	tests := []struct {
		provider string
		want     any
	}{
		{"smtp", &smtp.Transport{}},
		{"", &smtp.Transport{}},
		{"gomail", &gomail.Transport{}},
		{"noop", &mailnoop.Transport{}},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			c := config{App: appConfig{MailProvider: tt.provider}}
			tr, err := newTransport(c, log)
			require.NoError(t, err)
			assert.IsType(t, tt.want, tr)
		})
	}

	_, err := newTransport(config{App: appConfig{MailProvider: "carrier-pigeon"}}, log)
	assert.ErrorContains(t, err, "carrier-pigeon")
}
