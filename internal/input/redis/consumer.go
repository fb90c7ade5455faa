package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const (
	defaultAddr         = "127.0.0.1:6379"
	defaultBlockTimeout = 5 * time.Second
)

// Config configures the Redis consumer. DeadLetterKey is optional; when set,
// rejected payloads are kept there for inspection.
type Config struct {
	Addr          string
	Password      string
	DB            int
	Key           string
	DeadLetterKey string
	BlockTimeout  time.Duration
}

// DeadLetter is the record stored for a rejected payload.
type DeadLetter struct {
	Payload    string    `json:"payload"`
	Reason     string    `json:"reason"`
	RejectedAt time.Time `json:"rejectedAt"`
}

// Consumer reads security event payloads from a Redis list queue.
type Consumer struct {
	client  redis.UniversalClient
	cfg     Config
	ownConn bool
}

// NewConsumer dials Redis and returns a consumer for cfg.Key.
func NewConsumer(cfg Config) (*Consumer, error) {
	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	c, err := NewConsumerWithClient(client, cfg)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	c.ownConn = true
	return c, nil
}

// NewConsumerWithClient wraps an existing client. Close leaves the client
// open.
func NewConsumerWithClient(client redis.UniversalClient, cfg Config) (*Consumer, error) {
	if cfg.Key == "" {
		return nil, errors.New("redis key is required")
	}
	if cfg.DeadLetterKey == cfg.Key {
		return nil, errors.New("dead letter key must differ from the queue key")
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = defaultBlockTimeout
	}
	return &Consumer{client: client, cfg: cfg}, nil
}

// Pop blocks up to the configured timeout for one payload. A timeout yields
// a nil payload and a nil error.
func (c *Consumer) Pop(ctx context.Context) ([]byte, error) {
	res, err := c.client.BLPop(ctx, c.cfg.BlockTimeout, c.cfg.Key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("pop %s: %w", c.cfg.Key, err)
	case len(res) < 2:
		return nil, nil
	}
	return []byte(res[1]), nil
}

// Push appends a raw payload to the queue.
func (c *Consumer) Push(ctx context.Context, payload []byte) error {
	if err := c.client.RPush(ctx, c.cfg.Key, payload).Err(); err != nil {
		return fmt.Errorf("push %s: %w", c.cfg.Key, err)
	}
	return nil
}

// Reject records a payload that could not be decoded. Without a dead letter
// key it is a no-op.
func (c *Consumer) Reject(ctx context.Context, payload []byte, reason error) error {
	if c.cfg.DeadLetterKey == "" {
		return nil
	}
	rec := DeadLetter{Payload: string(payload), RejectedAt: time.Now().UTC()}
	if reason != nil {
		rec.Reason = reason.Error()
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode dead letter: %w", err)
	}
	if err := c.client.RPush(ctx, c.cfg.DeadLetterKey, raw).Err(); err != nil {
		return fmt.Errorf("push %s: %w", c.cfg.DeadLetterKey, err)
	}
	return nil
}

// Depth reports the number of payloads waiting in the queue.
func (c *Consumer) Depth(ctx context.Context) (int64, error) {
	n, err := c.client.LLen(ctx, c.cfg.Key).Result()
	if err != nil {
		return 0, fmt.Errorf("llen %s: %w", c.cfg.Key, err)
	}
	return n, nil
}

// Close releases the connection if the consumer dialed it.
func (c *Consumer) Close() error {
	if !c.ownConn {
		return nil
	}
	return c.client.Close()
}
