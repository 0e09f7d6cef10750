package dispatch

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrMissingCredentials = errors.New("smtp host, port, username and password are required")
	ErrInvalidDateTime    = errors.New("date must be YYYY-MM-DD and time HH:MM")
)

// InputError reports a problem with what the caller supplied. Nothing has
// been sent or scheduled when one is returned.
type InputError struct {
	Field string
	Err   error
}

func (e *InputError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// IsInputError reports whether err carries an InputError.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}
