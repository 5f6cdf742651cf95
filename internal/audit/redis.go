package audit

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisPublisherConfig describes the Redis stream target.
type RedisPublisherConfig struct {
	Address  string
	Password string
	DB       int
	Stream   string
	MaxLen   int64
}

// RedisPublisher appends audit events to a Redis stream via XADD so
// off-chain indexers can tail the vault with consumer groups.
type RedisPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisPublisher connects to Redis and verifies the connection.
func NewRedisPublisher(cfg RedisPublisherConfig) (*RedisPublisher, error) {
	if cfg.Address == "" {
		return nil, errors.New("redis address is required")
	}
	stream := cfg.Stream
	if stream == "" {
		stream = "aegis:audit"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &RedisPublisher{client: client, stream: stream, maxLen: cfg.MaxLen}, nil
}

// Publish appends one event to the stream.
func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	values := map[string]any{
		"seq":      strconv.FormatUint(event.Seq, 10),
		"type":     event.Type,
		"actor":    event.Actor,
		"trace_id": event.TraceID,
		"at":       strconv.FormatInt(event.At, 10),
	}
	for k, v := range event.Data {
		values["data:"+k] = v
	}
	args := &redis.XAddArgs{Stream: p.stream, Values: values}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd audit event: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (p *RedisPublisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}

var _ Publisher = (*RedisPublisher)(nil)
