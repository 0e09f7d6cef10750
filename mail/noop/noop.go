package noop

import (
	"context"
	"sync"

	"github.com/pure-golang/bannermail/mail"
)

var _ mail.Transport = (*Transport)(nil)

// Delivery is one message accepted by the noop Transport.
type Delivery struct {
	Credentials mail.Credentials
	From        string
	To          []string
	Message     []byte
}

// Transport records messages instead of sending them. Set Err to make every
// send fail with it.
type Transport struct {
	Err error

	mu         sync.Mutex
	deliveries []Delivery
}

// NewTransport creates a new no-op Transport.
func NewTransport() *Transport {
	return &Transport{}
}

// Send stores a copy of the message.
func (n *Transport) Send(ctx context.Context, creds mail.Credentials, from string, to []string, msg []byte) error {
	if len(to) == 0 {
		return mail.ErrNoRecipients
	}
	if err := ctx.Err(); err != nil {
		return mail.NewDeliveryError("send", creds.Host, err)
	}
	if n.Err != nil {
		return n.Err
	}

	d := Delivery{
		Credentials: creds,
		From:        from,
		To:          append([]string(nil), to...),
		Message:     append([]byte(nil), msg...),
	}

	n.mu.Lock()
	n.deliveries = append(n.deliveries, d)
	n.mu.Unlock()
	return nil
}

// Deliveries returns everything sent so far.
func (n *Transport) Deliveries() []Delivery {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Delivery(nil), n.deliveries...)
}
