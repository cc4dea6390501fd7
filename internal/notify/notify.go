package notify

import (
	"context"
	"errors"
	"fmt"

	"firebase.google.com/go/v4/messaging"
)

var ErrNoToken = errors.New("recipient has no push token")

// Message is a push notification addressed to one device token.
type Message struct {
	Title string
	Body  string
	Data  map[string]string
}

type Notifier interface {
	Notify(ctx context.Context, token string, msg Message) error
}

// Noop drops every message.
type Noop struct{}

func (Noop) Notify(context.Context, string, Message) error { return nil }

// Sender is the subset of *messaging.Client used by FCMNotifier.
type Sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMNotifier delivers messages through Firebase Cloud Messaging.
type FCMNotifier struct {
	sender Sender
}

func NewFCMNotifier(sender Sender) *FCMNotifier {
	return &FCMNotifier{sender: sender}
}

func (n *FCMNotifier) Notify(ctx context.Context, token string, msg Message) error {
	if token == "" {
		return ErrNoToken
	}

	data := make(map[string]string, len(msg.Data))
	for k, v := range msg.Data {
		data[k] = v
	}

	fcm := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: "appointments",
				Sound:     "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-priority":  "10",
				"apns-push-type": "alert",
			},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
				},
			},
		},
	}

	if _, err := n.sender.Send(ctx, fcm); err != nil {
		return fmt.Errorf("send fcm message: %w", err)
	}
	return nil
}
