package mail

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"strconv"
	"strings"
)

// DefaultContentID is the content-id the HTML body uses to reference the image.
const DefaultContentID = "banner"

// DefaultImageFilename names the inline image part.
const DefaultImageFilename = "banner.png"

// Transport delivers an already built message to every address in to.
type Transport interface {
	Send(ctx context.Context, creds Credentials, from string, to []string, msg []byte) error
}

// Credentials are per-request SMTP settings. They are held in memory only.
type Credentials struct {
	Host     string `validate:"required"`
	Port     int    `validate:"required,min=1,max=65535"`
	Username string `validate:"required"`
	Password string `validate:"required"`
}

// Addr returns host:port.
func (c Credentials) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// String never includes the password.
func (c Credentials) String() string {
	return fmt.Sprintf("%s@%s", c.Username, c.Addr())
}

// LogValue implements slog.LogValuer.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("host", c.Host),
		slog.Int("port", c.Port),
		slog.String("username", c.Username),
	)
}

// Image is an encoded raster image. Data is treated as read-only.
type Image struct {
	Data        []byte `validate:"required,min=1"`
	ContentType string
	Filename    string
}

// NewImage wraps raw bytes and sniffs their content type.
func NewImage(data []byte, filename string) Image {
	if filename == "" {
		filename = DefaultImageFilename
	}
	return Image{
		Data:        data,
		ContentType: http.DetectContentType(data),
		Filename:    filename,
	}
}

// Clone returns a deep copy so the caller's buffer can change afterwards.
func (i Image) Clone() Image {
	out := i
	if i.Data != nil {
		out.Data = make([]byte, len(i.Data))
		copy(out.Data, i.Data)
	}
	return out
}

func (i Image) contentType() string {
	mediaType, _, err := mime.ParseMediaType(i.ContentType)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return "image/png"
	}
	return mediaType
}

func (i Image) filename() string {
	if i.Filename == "" {
		return DefaultImageFilename
	}
	return i.Filename
}
