package mail

import (
	"bytes"
	"fmt"
	"log/slog"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestCredentials_NeverExposePassword(t *testing.T) {
	creds := Credentials{Host: "smtp.example.com", Port: 587, Username: "me@example.com", Password: "s3cret"}

	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, nil))
	l.Info("sending", "smtp", creds)

	assert.NotContains(t, buf.String(), "s3cret")
	assert.Contains(t, buf.String(), "smtp.example.com")
	assert.NotContains(t, creds.String(), "s3cret")
	assert.NotContains(t, fmt.Sprint(creds), "s3cret")
	assert.Equal(t, "smtp.example.com:587", creds.Addr())
}

func TestNewImage_SniffsType(t *testing.T) {
	img := NewImage(pngHeader, "")

	assert.Equal(t, "image/png", img.ContentType)
	assert.Equal(t, DefaultImageFilename, img.Filename)

	jpeg := NewImage([]byte("\xff\xd8\xff\xe0rest"), "photo.jpg")
	assert.Equal(t, "image/jpeg", jpeg.ContentType)
	assert.Equal(t, "image/jpeg", jpeg.contentType())
	assert.Equal(t, "photo.jpg", jpeg.filename())
}

func TestImage_ContentTypeFallback(t *testing.T) {
	assert.Equal(t, "image/png", Image{}.contentType())
	assert.Equal(t, "image/png", Image{ContentType: "text/plain; charset=utf-8"}.contentType())
}

func TestImage_CloneIsDeep(t *testing.T) {
	img := NewImage([]byte{1, 2, 3}, "")
	clone := img.Clone()
	img.Data[0] = 9

	assert.Equal(t, []byte{1, 2, 3}, clone.Data)
}

func TestDeliveryError(t *testing.T) {
	cause := errors.New("535 authentication failed")
	err := NewDeliveryError("auth", "smtp.example.com", cause)

	assert.ErrorIs(t, err, ErrDelivery)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "op=auth")
	assert.Contains(t, err.Error(), "535 authentication failed")
	assert.NoError(t, NewDeliveryError("auth", "h", nil))
	assert.NotErrorIs(t, ErrNoRecipients, ErrDelivery)
}
