package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher publishes JSON-encoded records on a Redis channel
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// RedisConfig holds Redis publisher configuration
type RedisConfig struct {
	// Addr is the Redis server address (host:port)
	Addr string
	// Password is the Redis password (optional)
	Password string
	// DB is the Redis database number
	DB int
	// Channel is the pub/sub channel
	Channel string
}

// DefaultRedisConfig returns a default Redis configuration
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:    "localhost:6379",
		Channel: "conduit:changes",
	}
}

// NewRedisPublisher connects to Redis and verifies the connection
func NewRedisPublisher(config RedisConfig) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", config.Addr, err)
	}

	return NewRedisPublisherWithClient(client, config.Channel), nil
}

// NewRedisPublisherWithClient creates a publisher over an existing client
func NewRedisPublisherWithClient(client *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultRedisConfig().Channel
	}
	return &RedisPublisher{client: client, channel: channel}
}

// Channel returns the channel records are published on
func (p *RedisPublisher) Channel() string { return p.channel }

// Publish implements Publisher
func (p *RedisPublisher) Publish(ctx context.Context, record *ChangeRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode change record %s: %w", record.ID(), err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish change record %s: %w", record.ID(), err)
	}
	return nil
}

// Close closes the Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
