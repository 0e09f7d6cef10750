package api

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"github.com/pure-golang/bannermail/banner"
	"github.com/pure-golang/bannermail/dispatch"
	"github.com/pure-golang/bannermail/mail"
	"github.com/pure-golang/bannermail/recipients"
)

const (
	defaultSMTPHost = "smtp.gmail.com"
	defaultSMTPPort = 587
)

var ErrInvalidImage = errors.New("uploaded file is not a supported image")

func parseForm(r *http.Request) error {
	err := r.ParseMultipartForm(maxFormMemory)
	if err == nil || errors.Is(err, http.ErrNotMultipart) {
		return nil
	}
	return &dispatch.InputError{Field: "form", Err: err}
}

// formFile returns the uploaded file named key, or nil when none was sent.
func formFile(r *http.Request, key string) (multipart.File, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	f, _, err := r.FormFile(key)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, &dispatch.InputError{Field: key, Err: err}
	}
	return f, nil
}

func readRecipients(r *http.Request) (recipients.List, error) {
	f, err := formFile(r, "recipients_file")
	if err != nil {
		return nil, err
	}
	var file io.Reader
	if f != nil {
		defer f.Close()
		file = f
	}

	list, err := recipients.Resolve(r.FormValue("recipients"), file)
	if err != nil {
		return nil, &dispatch.InputError{Field: "recipients_file", Err: err}
	}
	return list, nil
}

func readCredentials(r *http.Request) (mail.Credentials, error) {
	creds := mail.Credentials{
		Host:     strings.TrimSpace(r.FormValue("smtp_host")),
		Port:     defaultSMTPPort,
		Username: strings.TrimSpace(r.FormValue("smtp_username")),
		Password: r.FormValue("smtp_password"),
	}
	if creds.Host == "" {
		creds.Host = defaultSMTPHost
	}
	if raw := strings.TrimSpace(r.FormValue("smtp_port")); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return mail.Credentials{}, &dispatch.InputError{Field: "smtp_port", Err: errors.Wrap(err, "port must be a number")}
		}
		creds.Port = port
	}
	return creds, nil
}

// readImage prefers an uploaded image and otherwise renders a banner from
// banner_text. With neither, the returned image is empty.
func (h *Handler) readImage(r *http.Request) (mail.Image, error) {
	f, err := formFile(r, "image")
	if err != nil {
		return mail.Image{}, err
	}
	if f != nil {
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return mail.Image{}, &dispatch.InputError{Field: "image", Err: err}
		}
		if _, err := imaging.Decode(bytes.NewReader(data)); err != nil {
			return mail.Image{}, &dispatch.InputError{Field: "image", Err: ErrInvalidImage}
		}
		return mail.NewImage(data, uploadName(r)), nil
	}

	text := r.FormValue("banner_text")
	if strings.TrimSpace(text) == "" {
		return mail.Image{}, nil
	}
	data, err := h.render(text, r.FormValue("banner_background"))
	if err != nil {
		return mail.Image{}, err
	}
	return mail.Image{Data: data, ContentType: banner.ContentType, Filename: banner.Filename}, nil
}

func (h *Handler) render(text, background string) ([]byte, error) {
	return h.banners.Generate(banner.Options{
		Text:       text,
		Background: banner.ColorOrDefault(background),
	})
}

func uploadName(r *http.Request) string {
	if r.MultipartForm == nil {
		return ""
	}
	if files := r.MultipartForm.File["image"]; len(files) > 0 {
		return files[0].Filename
	}
	return ""
}

func (h *Handler) readRequest(r *http.Request) (dispatch.Request, error) {
	creds, err := readCredentials(r)
	if err != nil {
		return dispatch.Request{}, err
	}
	list, err := readRecipients(r)
	if err != nil {
		return dispatch.Request{}, err
	}
	img, err := h.readImage(r)
	if err != nil {
		return dispatch.Request{}, err
	}

	return dispatch.Request{
		Credentials: creds,
		Recipients:  list.Strings(),
		Subject:     r.FormValue("subject"),
		HTML:        r.FormValue("html"),
		Image:       img,
	}, nil
}
