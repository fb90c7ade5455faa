package redis

import (
	"context"
	"testing"

	redis "github.com/redis/go-redis/v9"
)

func TestNewConsumerWithClientValidatesKeys(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	if _, err := NewConsumerWithClient(client, Config{}); err == nil {
		t.Fatalf("expected error for missing key")
	}
	if _, err := NewConsumerWithClient(client, Config{Key: "q", DeadLetterKey: "q"}); err == nil {
		t.Fatalf("expected error for dead letter key equal to queue key")
	}
	c, err := NewConsumerWithClient(client, Config{Key: "q"})
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}
	if c.cfg.BlockTimeout != defaultBlockTimeout {
		t.Fatalf("expected default block timeout, got %v", c.cfg.BlockTimeout)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close of borrowed client: %v", err)
	}
}

func TestRejectWithoutDeadLetterKeyIsNoop(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	c, err := NewConsumerWithClient(client, Config{Key: "q"})
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}
	if err := c.Reject(context.Background(), []byte("x"), nil); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}
