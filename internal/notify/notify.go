// Package notify holds the delivery channels for notifications: the local
// device notifier, push (FCM, Telegram) and email.
package notify

import (
	"context"
	"errors"
	"log"
)

// Pusher delivers a push message to one identity. Recipients without a
// registered channel are skipped without error.
type Pusher interface {
	Push(ctx context.Context, recipientID, title, body string) error
}

// Mail is one outgoing email.
type Mail struct {
	To      string
	Subject string
	HTML    string
}

// Mailer sends email.
type Mailer interface {
	Send(ctx context.Context, mail Mail) error
}

// Local writes notifications to the process log. It stands in for the
// device notification tray of an interactive client.
type Local struct{}

func (Local) Notify(_ context.Context, title, body string) error {
	log.Printf("[info] notify: %s: %s", title, body)
	return nil
}

// Fanout pushes to every channel and joins their errors.
type Fanout []Pusher

func (f Fanout) Push(ctx context.Context, recipientID, title, body string) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Push(ctx, recipientID, title, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
