package notify

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/messaging"
	"google.golang.org/api/option"

	"taskhive/internal/model"
)

// ProfileSource resolves the contact details of an identity.
type ProfileSource interface {
	Get(ctx context.Context, id string) (model.Profile, error)
}

// FCMPusher sends push messages through Firebase Cloud Messaging to the
// token stored on the recipient's profile.
type FCMPusher struct {
	client   *messaging.Client
	profiles ProfileSource
}

// NewFCMPusher initializes a Firebase app from a service account file.
func NewFCMPusher(ctx context.Context, credentialsFile string, profiles ProfileSource) (*FCMPusher, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase messaging: %w", err)
	}
	return &FCMPusher{client: client, profiles: profiles}, nil
}

func (p *FCMPusher) Push(ctx context.Context, recipientID, title, body string) error {
	profile, err := p.profiles.Get(ctx, recipientID)
	if err != nil || profile.FCMToken == "" || !profile.NotifyPush {
		return nil
	}
	_, err = p.client.Send(ctx, &messaging.Message{
		Token: profile.FCMToken,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: map[string]string{"recipient": recipientID},
	})
	if err != nil {
		return fmt.Errorf("fcm send: %w", err)
	}
	return nil
}
