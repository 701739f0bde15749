package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis publishes each message as JSON on a pub/sub channel.
type Redis struct {
	Client  *redis.Client
	Channel string
	Now     func() time.Time
}

type redisEnvelope struct {
	UserIDs   []string `json:"user_ids"`
	Message   string   `json:"message"`
	Type      string   `json:"type"`
	Link      string   `json:"link,omitempty"`
	CreatedBy string   `json:"created_by"`
	CreatedAt string   `json:"created_at"`
}

// NewRedis connects to url (redis://...) and verifies it answers.
func NewRedis(ctx context.Context, url, channel string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{Client: client, Channel: channel}, nil
}

func (r *Redis) Notify(ctx context.Context, msg Message) error {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	data, err := json.Marshal(redisEnvelope{
		UserIDs:   msg.UserIDs,
		Message:   msg.Text,
		Type:      msg.Type,
		Link:      msg.Link,
		CreatedBy: msg.CreatedBy,
		CreatedAt: now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	if err := r.Client.Publish(ctx, r.Channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", r.Channel, err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.Client.Close()
}
