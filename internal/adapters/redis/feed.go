package redis

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/robertarktes/studio-booking-cart/internal/observability"
)

const changeChannel = "cart:changed"

type changeNotice struct {
	UserID string `json:"user_id"`
	Origin string `json:"origin"`
}

// ChangeFeed broadcasts cart rewrites between API processes over pub/sub.
// Notices carry the writer's instance ID so a process ignores its own.
type ChangeFeed struct {
	client   *redis.Client
	instance string
	logger   observability.Logger
}

func NewChangeFeed(client *redis.Client, instance string, logger observability.Logger) *ChangeFeed {
	return &ChangeFeed{client: client, instance: instance, logger: logger}
}

func (f *ChangeFeed) Publish(ctx context.Context, userID string) error {
	payload, err := json.Marshal(changeNotice{UserID: userID, Origin: f.instance})
	if err != nil {
		return err
	}
	return errors.Wrap(f.client.Publish(ctx, changeChannel, payload).Err(), "publish cart change")
}

// Watch calls onChange for every notice from another instance until ctx is
// done. onChange runs on the watch goroutine.
func (f *ChangeFeed) Watch(ctx context.Context, onChange func(ctx context.Context, userID string)) error {
	sub := f.client.Subscribe(ctx, changeChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return errors.Wrap(err, "subscribe cart changes")
	}
	f.logger.WithField("instance", f.instance).Info("watching cart changes")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var notice changeNotice
			if err := json.Unmarshal([]byte(msg.Payload), &notice); err != nil {
				f.logger.WithError(err).Warn("ignoring malformed cart change notice")
				continue
			}
			if notice.Origin == f.instance || notice.UserID == "" {
				continue
			}
			onChange(ctx, notice.UserID)
		}
	}
}
