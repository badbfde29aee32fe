package sequence

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisAllocator allocates sequence numbers with a single INCR per call.
// INCR is atomic server-side, so concurrent callers across any number of
// processes never receive the same value for a year.
type RedisAllocator struct {
	client redis.Cmdable
	prefix string
}

// NewRedis creates an allocator backed by the given Redis client.
func NewRedis(client redis.Cmdable) *RedisAllocator {
	return &RedisAllocator{client: client, prefix: "registration:seq"}
}

// Next returns the next sequence number for year.
func (a *RedisAllocator) Next(ctx context.Context, year int) (int64, error) {
	key := fmt.Sprintf("%s:%d", a.prefix, year)
	seq, err := a.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("allocate sequence for %d: %w", year, err)
	}
	return seq, nil
}
