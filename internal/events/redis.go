package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher publishes each event on <prefix>:<jobID>, so other
// processes can follow a job with SUBSCRIBE or the firehose with PSUBSCRIBE.
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

func NewRedisPublisher(client *redis.Client, prefix string) *RedisPublisher {
	if prefix == "" {
		prefix = "postjob:events"
	}
	return &RedisPublisher{client: client, prefix: prefix}
}

// NewRedisPublisherFromURL parses a redis:// URL and pings the server.
func NewRedisPublisherFromURL(ctx context.Context, url, prefix string) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisPublisher(client, prefix), nil
}

func (p *RedisPublisher) Channel(jobID string) string {
	return p.prefix + ":" + jobID
}

func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	if err := p.client.Publish(ctx, p.Channel(e.JobID), e.Encode()).Err(); err != nil {
		return fmt.Errorf("publish %s for job %s: %w", e.Type, e.JobID, err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
