// README: FCM push delivery for notifications.
package notification

import (
	"context"

	"firebase.google.com/go/v4/messaging"
)

// Pusher sends notifications through Firebase Cloud Messaging. Each user is
// subscribed client-side to a per-user topic.
type Pusher struct {
	client *messaging.Client
}

func NewPusher(client *messaging.Client) *Pusher {
	return &Pusher{client: client}
}

func (p *Pusher) Send(ctx context.Context, n Notification) error {
	msg := &messaging.Message{
		Topic: "user_" + string(n.UserID),
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Message,
		},
		Data: map[string]string{
			"type":                string(n.Type),
			"related_entity_type": n.RelatedEntityType,
			"related_entity_id":   string(n.RelatedEntityID),
		},
	}
	_, err := p.client.Send(ctx, msg)
	return err
}
