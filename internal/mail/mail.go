package mail

import (
	"context"
	"errors"
)

var ErrInvalidMessage = errors.New("mail message requires recipient, subject and body")

type Message struct {
	To      string
	Subject string
	HTML    string
}

func (m Message) Validate() error {
	if m.To == "" || m.Subject == "" || m.HTML == "" {
		return ErrInvalidMessage
	}
	return nil
}

// Mailer hands a message to the outbound mail provider.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
