package mail

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	netmail "net/mail"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDRfake-image-bytes")

type parsedMessage struct {
	header      netmail.Header
	relatedType string
	altType     string
	html        string
	imageHeader map[string]string
	imageData   []byte
	parts       int
}

func parseBuilt(t *testing.T, raw []byte) parsedMessage {
	t.Helper()

	msg, err := netmail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)

	out := parsedMessage{header: msg.Header}

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)
	out.relatedType = mediaType
	assert.Equal(t, "multipart/alternative", params["type"])

	related := multipart.NewReader(msg.Body, params["boundary"])
	for {
		part, err := related.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		out.parts++

		ct, ctParams, err := mime.ParseMediaType(part.Header.Get("Content-Type"))
		require.NoError(t, err)

		switch {
		case ct == "multipart/alternative":
			out.altType = ct
			alt := multipart.NewReader(part, ctParams["boundary"])
			htmlPart, err := alt.NextPart()
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(htmlPart.Header.Get("Content-Type"), "text/html"))
			body, err := io.ReadAll(htmlPart)
			require.NoError(t, err)
			out.html = string(body)
			_, err = alt.NextPart()
			assert.Equal(t, io.EOF, err, "alternative must hold a single html part")
		case strings.HasPrefix(ct, "image/"):
			out.imageHeader = map[string]string{
				"Content-Type":        ct,
				"Content-ID":          part.Header.Get("Content-Id"),
				"Content-Disposition": part.Header.Get("Content-Disposition"),
			}
			encoded, err := io.ReadAll(part)
			require.NoError(t, err)
			data, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(string(encoded), "\r\n", ""))
			require.NoError(t, err)
			out.imageData = data
		default:
			t.Fatalf("unexpected part %s", ct)
		}
	}

	return out
}

func testMessage() Message {
	return Message{
		From:    "sender@example.com",
		To:      []string{"a@x.com", "b@y.com", "c@z.com"},
		Subject: "Hello from Our Business",
		HTML:    "<p>Hi there,</p><p>See our latest update below.</p>",
		Image:   NewImage(pngHeader, ""),
		Date:    time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC),
	}
}

func TestBuild_Structure(t *testing.T) {
	raw, err := Build(testMessage())
	require.NoError(t, err)

	p := parseBuilt(t, raw)

	assert.Equal(t, "multipart/related", p.relatedType)
	assert.Equal(t, "multipart/alternative", p.altType)
	assert.Equal(t, 2, p.parts)
	assert.Equal(t, "sender@example.com", p.header.Get("From"))
	assert.Equal(t, "a@x.com, b@y.com, c@z.com", p.header.Get("To"))
	assert.Equal(t, "Hello from Our Business", p.header.Get("Subject"))
	assert.Equal(t, "1.0", p.header.Get("MIME-Version"))
	assert.NotEmpty(t, p.header.Get("Message-ID"))
	assert.Contains(t, p.header.Get("Message-ID"), "@example.com>")

	assert.Equal(t, "image/png", p.imageHeader["Content-Type"])
	assert.Equal(t, "<banner>", p.imageHeader["Content-ID"])
	disposition, params, err := mime.ParseMediaType(p.imageHeader["Content-Disposition"])
	require.NoError(t, err)
	assert.Equal(t, "inline", disposition)
	assert.Equal(t, "banner.png", params["filename"])
	assert.Equal(t, pngHeader, p.imageData)
}

func TestBuild_AppendsSingleReference(t *testing.T) {
	raw, err := Build(testMessage())
	require.NoError(t, err)

	p := parseBuilt(t, raw)

	assert.Equal(t, 1, strings.Count(p.html, "cid:banner"))
	assert.Contains(t, p.html, `style="max-width:100%;height:auto;"`)
	assert.True(t, strings.HasPrefix(p.html, "<p>Hi there,</p>"))
}

func TestBuild_ExistingReferenceNotDuplicated(t *testing.T) {
	m := testMessage()
	m.HTML = `<p>Look:</p><img src="cid:banner" alt="x"/>`

	raw, err := Build(m)
	require.NoError(t, err)

	p := parseBuilt(t, raw)
	assert.Equal(t, 1, strings.Count(p.html, "cid:banner"))
	assert.Equal(t, m.HTML, p.html)
}

func TestBuild_NonASCIISubject(t *testing.T) {
	m := testMessage()
	m.Subject = "Привет — news"

	raw, err := Build(m)
	require.NoError(t, err)

	msg, err := netmail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(msg.Header.Get("Subject"), "=?utf-8?q?"))

	decoded, err := new(mime.WordDecoder).DecodeHeader(msg.Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, "Привет — news", decoded)
}

func TestBuild_ReusableImage(t *testing.T) {
	m := testMessage()

	first, err := Build(m)
	require.NoError(t, err)
	second, err := Build(m)
	require.NoError(t, err)

	assert.Equal(t, parseBuilt(t, first).imageData, parseBuilt(t, second).imageData)
	assert.Equal(t, pngHeader, m.Image.Data)
}

func TestBuild_LongImageIsWrapped(t *testing.T) {
	m := testMessage()
	m.Image = NewImage(bytes.Repeat(pngHeader, 40), "")

	raw, err := Build(m)
	require.NoError(t, err)

	for _, line := range strings.Split(string(raw), "\r\n") {
		assert.LessOrEqual(t, len(line), 998)
	}
	assert.Equal(t, m.Image.Data, parseBuilt(t, raw).imageData)
}

func TestBuild_Errors(t *testing.T) {
	m := testMessage()
	m.From = ""
	_, err := Build(m)
	assert.ErrorIs(t, err, ErrNoSender)

	m = testMessage()
	m.Image = Image{}
	_, err = Build(m)
	assert.ErrorIs(t, err, ErrNoImage)
}

func TestBuild_CustomContentID(t *testing.T) {
	m := testMessage()
	m.ContentID = "logo"

	raw, err := Build(m)
	require.NoError(t, err)

	p := parseBuilt(t, raw)
	assert.Equal(t, "<logo>", p.imageHeader["Content-ID"])
	assert.Equal(t, 1, strings.Count(p.html, "cid:logo"))
}

func TestEnsureInlineReference(t *testing.T) {
	tests := []struct {
		name   string
		html   string
		append bool
	}{
		{name: "empty body", html: "", append: true},
		{name: "plain text", html: "<p>hello</p>", append: true},
		{name: "existing reference", html: `<img src="cid:banner">`, append: false},
		{name: "existing reference with spaces", html: `<div><IMG SRC=" cid:banner "></div>`, append: false},
		{name: "other image", html: `<img src="https://example.com/a.png">`, append: true},
		{name: "mention in text only", html: `<p>cid:banner</p>`, append: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := EnsureInlineReference(tt.html, DefaultContentID)
			if tt.append {
				assert.True(t, strings.HasPrefix(out, tt.html))
				assert.Contains(t, out[len(tt.html):], `<img src="cid:banner"`)
			} else {
				assert.Equal(t, tt.html, out)
			}

			assert.Equal(t, out, EnsureInlineReference(out, DefaultContentID), "must be idempotent")
		})
	}
}
