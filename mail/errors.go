package mail

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrNoRecipients = errors.New("no recipients provided")
	ErrNoSender     = errors.New("no from address specified")
	ErrNoImage      = errors.New("no image provided")
	ErrDelivery     = errors.New("delivery failed")
)

// DeliveryError is the single failure reported for any problem during an SMTP
// session: connect, TLS, auth, a rejected recipient or the data transfer.
type DeliveryError struct {
	Op   string
	Host string
	Err  error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed (host=%s, op=%s): %v", e.Host, e.Op, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrDelivery) hold for every DeliveryError.
func (e *DeliveryError) Is(target error) bool { return target == ErrDelivery }

// NewDeliveryError wraps err unless it is nil.
func NewDeliveryError(op, host string, err error) error {
	if err == nil {
		return nil
	}
	return &DeliveryError{Op: op, Host: host, Err: err}
}
