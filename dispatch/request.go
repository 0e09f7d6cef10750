package dispatch

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/pure-golang/bannermail/mail"
)

// Request is everything needed for one send.
type Request struct {
	Credentials mail.Credentials
	Recipients  []string `validate:"required,min=1,dive,required"`
	Subject     string
	HTML        string
	Image       mail.Image
}

// clone copies every slice so later changes by the caller are not observed.
func (r Request) clone() Request {
	out := r
	out.Recipients = append([]string(nil), r.Recipients...)
	out.Image = r.Image.Clone()
	return out
}

func (r Request) message() mail.Message {
	return mail.Message{
		From:    r.Credentials.Username,
		To:      r.Recipients,
		Subject: r.Subject,
		HTML:    r.HTML,
		Image:   r.Image,
	}
}

func validate(v *validator.Validate, r Request) error {
	err := v.Struct(r)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return errors.Wrap(err, "failed to validate request")
	}

	// errors come back in field order, report the first
	fe := fieldErrs[0]
	ns := strings.TrimPrefix(fe.StructNamespace(), "Request.")
	switch {
	case strings.HasPrefix(ns, "Credentials."):
		return &InputError{Field: strings.ToLower(fe.StructField()), Err: ErrMissingCredentials}
	case strings.HasPrefix(ns, "Recipients"):
		return &InputError{Field: "recipients", Err: mail.ErrNoRecipients}
	case strings.HasPrefix(ns, "Image."):
		return &InputError{Field: "image", Err: mail.ErrNoImage}
	default:
		return &InputError{Field: strings.ToLower(fe.Field()), Err: errors.Errorf("failed %q check", fe.Tag())}
	}
}
