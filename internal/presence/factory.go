package presence

import (
	"context"
	"strings"
)

// NewStore creates a redis-backed store when configured, otherwise in-memory.
func NewStore(ctx context.Context, redisURL string, ttls TTLs) (Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return NewInMemoryStore(ttls), nil
	}
	return NewRedisStore(ctx, redisURL, ttls)
}
