package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultChannelPrefix is prepended to every topic when no prefix is configured.
const DefaultChannelPrefix = "module-lifecycle"

// Event is the envelope published on a channel. Data is encoded as JSON.
type Event struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	RequestID  string    `json:"requestId,omitempty"`
	Data       any       `json:"data"`
}

// publisher is the slice of the redis client used here; *redis.Client satisfies it.
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Publisher writes events to Redis pub/sub channels named "<prefix>.<topic>".
type Publisher struct {
	client publisher
	prefix string
}

// NewPublisher wraps a redis client. An empty prefix uses DefaultChannelPrefix.
func NewPublisher(client publisher, prefix string) (*Publisher, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &Publisher{client: client, prefix: prefix}, nil
}

// Channel returns the full channel name for topic.
func (p *Publisher) Channel(topic string) string {
	return p.prefix + "." + topic
}

// Publish encodes ev and publishes it on the topic's channel. It returns the
// number of subscribers that received the message.
func (p *Publisher) Publish(ctx context.Context, topic string, ev Event) (int64, error) {
	if strings.TrimSpace(topic) == "" {
		return 0, errors.New("topic is required")
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return 0, fmt.Errorf("encode %s event: %w", ev.Type, err)
	}

	receivers, err := p.client.Publish(ctx, p.Channel(topic), body).Result()
	if err != nil {
		return 0, fmt.Errorf("publish %s: %w", p.Channel(topic), err)
	}
	return receivers, nil
}

// Connect parses a redis:// URL and verifies the server answers a PING.
func Connect(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
