package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps the shared Redis connection: the event queue, the output
// list of ingested entry ids, and the exchange dialog state store.
type Client struct {
	rdb    *redis.Client
	events string
	outbox string
}

func New(addr, eventQueue, outputQueue string) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Client{rdb: rdb, events: eventQueue, outbox: outputQueue}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Event queue

func (c *Client) PopFront(ctx context.Context) ([]byte, error) {
	raw, err := c.rdb.LPop(ctx, c.events).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) PushBack(ctx context.Context, raw []byte) error {
	return c.rdb.RPush(ctx, c.events, raw).Err()
}

func (c *Client) Len(ctx context.Context) (int64, error) {
	return c.rdb.LLen(ctx, c.events).Result()
}

// Outbox

func (c *Client) Push(ctx context.Context, id string) error {
	return c.rdb.RPush(ctx, c.outbox, id).Err()
}

// Dialog state

func (c *Client) GetState(ctx context.Context, key string) ([]byte, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) SetState(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, val, ttl).Err()
}

func (c *Client) ClearState(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}
