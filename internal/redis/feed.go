package redisclient

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const feedChannelPrefix = "clinic:feed:"

// PubSubFeed fans change signals out to every api-server instance through
// Redis pub/sub. It satisfies feed.Feed.
type PubSubFeed struct {
	client *redis.Client
	logger *zap.Logger
}

func NewPubSubFeed(client *redis.Client, logger *zap.Logger) *PubSubFeed {
	return &PubSubFeed{client: client, logger: logger}
}

func (f *PubSubFeed) Publish(ctx context.Context, topic string) error {
	if err := f.client.Publish(ctx, feedChannelPrefix+topic, "changed").Err(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (f *PubSubFeed) Subscribe(ctx context.Context, topic string) (<-chan struct{}, error) {
	sub := f.client.Subscribe(ctx, feedChannelPrefix+topic)

	// Wait for the subscription confirmation so no publish after this call is missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	out := make(chan struct{}, 1)
	msgs := sub.Channel()

	go func() {
		defer close(out)
		defer func() {
			if err := sub.Close(); err != nil {
				f.logger.Warn("closing redis subscription", zap.String("topic", topic), zap.Error(err))
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()

	return out, nil
}
