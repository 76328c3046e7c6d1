package guard

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultKeyPrefix = "print:guard:"

// Redis shares admissions between agents through SET NX PX, so two agents
// driving the same printer still print an order once. Expiry bounds memory.
type Redis struct {
	client redis.Cmdable
	prefix string
	window time.Duration
	now    Clock
}

func NewRedis(client redis.Cmdable, window time.Duration, prefix string) *Redis {
	if window <= 0 {
		window = DefaultWindow
	}
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Redis{client: client, prefix: prefix, window: window, now: time.Now}
}

func (r *Redis) CanPrint(ctx context.Context, orderID string) (bool, error) {
	stamp := strconv.FormatInt(r.now().UnixMilli(), 10)
	ok, err := r.client.SetNX(ctx, r.prefix+orderID, stamp, r.window).Result()
	if err != nil {
		return false, fmt.Errorf("guard admission for %s: %w", orderID, err)
	}
	return ok, nil
}

func (r *Redis) Release(ctx context.Context, orderID string) error {
	if err := r.client.Del(ctx, r.prefix+orderID).Err(); err != nil {
		return fmt.Errorf("guard release for %s: %w", orderID, err)
	}
	return nil
}

// ConnectRedis opens a client from a redis:// URL and checks it answers.
func ConnectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opt.MaxRetries = 3

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}
