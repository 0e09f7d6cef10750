package mail

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const base64LineLen = 76

// Message is a composed email: an HTML body with one inline image.
type Message struct {
	From    string
	To      []string // display list for the To header
	Subject string
	HTML    string
	Image   Image

	// ContentID defaults to DefaultContentID.
	ContentID string
	// Date defaults to time.Now().
	Date time.Time
}

func (m Message) contentID() string {
	if m.ContentID == "" {
		return DefaultContentID
	}
	return m.ContentID
}

// Build renders m as:
//
//	multipart/related
//	  multipart/alternative
//	    text/html
//	  image/* (inline, Content-ID: <banner>)
//
// The image bytes are only read, so the same Image may be built any number of
// times.
func Build(m Message) ([]byte, error) {
	if m.From == "" {
		return nil, ErrNoSender
	}
	if len(m.Image.Data) == 0 {
		return nil, ErrNoImage
	}

	cid := m.contentID()
	html := EnsureInlineReference(m.HTML, cid)

	var body bytes.Buffer
	related := multipart.NewWriter(&body)

	if err := writeAlternative(related, html); err != nil {
		return nil, err
	}
	if err := writeInlineImage(related, m.Image, cid); err != nil {
		return nil, err
	}
	if err := related.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to close related part")
	}

	date := m.Date
	if date.IsZero() {
		date = time.Now()
	}

	var out bytes.Buffer
	writeHeader(&out, "From", m.From)
	if len(m.To) > 0 {
		writeHeader(&out, "To", strings.Join(m.To, ", "))
	}
	writeHeader(&out, "Subject", mime.QEncoding.Encode("utf-8", m.Subject))
	writeHeader(&out, "Date", date.Format(time.RFC1123Z))
	writeHeader(&out, "Message-ID", messageID(m.From))
	writeHeader(&out, "MIME-Version", "1.0")
	writeHeader(&out, "Content-Type", mime.FormatMediaType("multipart/related", map[string]string{
		"boundary": related.Boundary(),
		"type":     "multipart/alternative",
	}))
	out.WriteString("\r\n")
	out.Write(body.Bytes())

	return out.Bytes(), nil
}

func writeAlternative(related *multipart.Writer, html string) error {
	var alt bytes.Buffer
	alternative := multipart.NewWriter(&alt)

	part, err := alternative.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/html; charset=UTF-8"},
		"Content-Transfer-Encoding": {"quoted-printable"},
	})
	if err != nil {
		return errors.Wrap(err, "failed to create html part")
	}
	qp := quotedprintable.NewWriter(part)
	if _, err := qp.Write([]byte(html)); err != nil {
		return errors.Wrap(err, "failed to write html part")
	}
	if err := qp.Close(); err != nil {
		return errors.Wrap(err, "failed to flush html part")
	}
	if err := alternative.Close(); err != nil {
		return errors.Wrap(err, "failed to close alternative part")
	}

	container, err := related.CreatePart(textproto.MIMEHeader{
		"Content-Type": {mime.FormatMediaType("multipart/alternative", map[string]string{
			"boundary": alternative.Boundary(),
		})},
	})
	if err != nil {
		return errors.Wrap(err, "failed to create alternative part")
	}
	_, err = container.Write(alt.Bytes())
	return errors.Wrap(err, "failed to write alternative part")
}

func writeInlineImage(related *multipart.Writer, img Image, cid string) error {
	filename := img.filename()
	part, err := related.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {mime.FormatMediaType(img.contentType(), map[string]string{"name": filename})},
		"Content-Transfer-Encoding": {"base64"},
		"Content-ID":                {"<" + cid + ">"},
		"Content-Disposition":       {mime.FormatMediaType("inline", map[string]string{"filename": filename})},
	})
	if err != nil {
		return errors.Wrap(err, "failed to create image part")
	}
	return errors.Wrap(writeBase64(part, img.Data), "failed to write image part")
}

func writeBase64(w io.Writer, data []byte) error {
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 0 {
		n := min(base64LineLen, len(encoded))
		if _, err := io.WriteString(w, encoded[:n]+"\r\n"); err != nil {
			return err
		}
		encoded = encoded[n:]
	}
	return nil
}

func writeHeader(buf *bytes.Buffer, key, value string) {
	fmt.Fprintf(buf, "%s: %s\r\n", key, value)
}

func messageID(from string) string {
	domain := "localhost"
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		domain = strings.Trim(from[at+1:], "<> ")
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}

// EnsureInlineReference appends a responsive <img> pointing at cid unless the
// body already references it. Images pointing elsewhere do not count.
func EnsureInlineReference(html, cid string) string {
	ref := "cid:" + cid
	if hasInlineReference(html, ref) {
		return html
	}
	return html + fmt.Sprintf(`<br><img src="%s" alt="%s" style="max-width:100%%;height:auto;"/>`, ref, cid)
}

func hasInlineReference(html, ref string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.Contains(html, ref)
	}

	found := false
	doc.Find("img[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, _ := s.Attr("src")
		if strings.EqualFold(strings.TrimSpace(src), ref) {
			found = true
			return false
		}
		return true
	})
	return found
}
