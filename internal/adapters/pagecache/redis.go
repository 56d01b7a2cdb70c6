package pagecache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sugawarayuuta/sonnet"

	"github.com/okian/ladder/internal/domain/types"
)

// Redis is a Cache shared by every process using the same Redis. Pages of
// old generations are left to expire.
type Redis struct {
	client redis.UniversalClient
	prefix string
	genKey string
}

var _ Cache = (*Redis)(nil)

// NewRedis returns a Redis backed cache using keys under prefix.
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = "leaderboard"
	}
	return &Redis{client: client, prefix: prefix, genKey: prefix + ":page:gen"}
}

func (r *Redis) pageKey(gen uint64, key string) string {
	return r.prefix + ":page:" + strconv.FormatUint(gen, 10) + ":" + key
}

func (r *Redis) Generation(ctx context.Context) (uint64, error) {
	gen, err := r.client.Get(ctx, r.genKey).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("page cache generation: %w", err)
	}
	return gen, nil
}

func (r *Redis) Get(ctx context.Context, gen uint64, key string) (types.Page, bool, error) {
	raw, err := r.client.Get(ctx, r.pageKey(gen, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.Page{}, false, nil
	}
	if err != nil {
		return types.Page{}, false, fmt.Errorf("page cache get: %w", err)
	}
	var page types.Page
	if err := sonnet.Unmarshal(raw, &page); err != nil {
		return types.Page{}, false, fmt.Errorf("page cache decode: %w", err)
	}
	return page, true, nil
}

func (r *Redis) Set(ctx context.Context, gen uint64, key string, page types.Page, ttl time.Duration) error {
	raw, err := sonnet.Marshal(page)
	if err != nil {
		return fmt.Errorf("page cache encode: %w", err)
	}
	if err := r.client.Set(ctx, r.pageKey(gen, key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("page cache set: %w", err)
	}
	return nil
}

func (r *Redis) Purge(ctx context.Context) error {
	if err := r.client.Incr(ctx, r.genKey).Err(); err != nil {
		return fmt.Errorf("page cache purge: %w", err)
	}
	return nil
}
