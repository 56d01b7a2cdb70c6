package rankset

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/pkg/metrics"
)

// KEYS[1] totals hash, KEYS[2] ranking zset.
// ARGV[1] player, ARGV[2] delta, ARGV[3] capacity, ARGV[4] seed or "".
// Reply {total, rank, size}; {-1, 0, 0} asks the caller for a seed.
var applyScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 0 then
  if ARGV[4] == '' then
    return {-1, 0, 0}
  end
  redis.call('HSET', KEYS[1], ARGV[1], ARGV[4])
end
local total = redis.call('HINCRBY', KEYS[1], ARGV[1], ARGV[2])
local admit = false
if redis.call('ZSCORE', KEYS[2], ARGV[1]) then
  admit = true
elseif redis.call('ZCARD', KEYS[2]) < tonumber(ARGV[3]) then
  admit = true
else
  local low = redis.call('ZRANGE', KEYS[2], 0, 0, 'WITHSCORES')
  if #low == 0 or total > tonumber(low[2]) then
    admit = true
  end
end
local rank = 0
if admit then
  redis.call('ZADD', KEYS[2], total, ARGV[1])
  rank = redis.call('ZCOUNT', KEYS[2], '(' .. tostring(total), '+inf') + 1
end
return {total, rank, redis.call('ZCARD', KEYS[2])}
`)

// KEYS[1] ranking zset. ARGV[1] capacity.
// Totals stay in the hash: the ledger copy may trail queued writes.
var trimScript = redis.NewScript(`
local excess = redis.call('ZCARD', KEYS[1]) - tonumber(ARGV[1])
if excess <= 0 then
  return {}
end
local victims = redis.call('ZRANGE', KEYS[1], 0, excess - 1)
redis.call('ZREMRANGEBYRANK', KEYS[1], 0, excess - 1)
return victims
`)

// KEYS[1] totals hash, KEYS[2] ranking zset. ARGV is id, total pairs.
var loadScript = redis.NewScript(`
for i = 1, #ARGV, 2 do
  local id = ARGV[i]
  local total = ARGV[i + 1]
  local cur = redis.call('HGET', KEYS[1], id)
  if cur and tonumber(cur) > tonumber(total) then
    total = cur
  end
  redis.call('HSET', KEYS[1], id, total)
  redis.call('ZADD', KEYS[2], total, id)
end
return #ARGV / 2
`)

// Redis is a RankedSet stored in a Redis sorted set plus a hash.
type Redis struct {
	client    redis.UniversalClient
	prefix    string
	zsetKey   string
	totalsKey string
}

var _ RankedSet = (*Redis)(nil)

// Option applies a configuration option to the Redis ranked set.
type Option func(*Redis)

// WithPrefix sets the key prefix. Default "leaderboard".
func WithPrefix(prefix string) Option {
	return func(r *Redis) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// NewRedis returns a RankedSet backed by client.
func NewRedis(client redis.UniversalClient, opts ...Option) *Redis {
	r := &Redis{client: client, prefix: "leaderboard"}
	for _, opt := range opts {
		opt(r)
	}
	r.zsetKey = r.prefix + ":alltime"
	r.totalsKey = r.prefix + ":totals"
	return r
}

// Apply implements RankedSet.Apply with a single script execution.
func (r *Redis) Apply(ctx context.Context, playerID string, delta int64, capacity int, seed *int64) (Update, error) {
	start := time.Now()
	defer observe("apply", start)

	seedArg := ""
	if seed != nil {
		seedArg = strconv.FormatInt(*seed, 10)
	}
	reply, err := applyScript.Run(ctx, r.client, []string{r.totalsKey, r.zsetKey},
		playerID, delta, capacity, seedArg).Int64Slice()
	if err != nil {
		return Update{}, fmt.Errorf("rankset apply %s: %w", playerID, err)
	}
	if len(reply) != 3 {
		return Update{}, fmt.Errorf("%w: apply returned %d values", ErrUnexpectedReply, len(reply))
	}
	if reply[0] < 0 {
		return Update{}, ErrSeedRequired
	}
	metrics.UpdateRankSetSize(reply[2])
	return Update{Total: reply[0], Rank: reply[1], Size: reply[2]}, nil
}

// Trim implements RankedSet.Trim.
func (r *Redis) Trim(ctx context.Context, capacity int) ([]string, error) {
	start := time.Now()
	defer observe("trim", start)

	evicted, err := trimScript.Run(ctx, r.client, []string{r.zsetKey}, capacity).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("rankset trim: %w", err)
	}
	return evicted, nil
}

// Load implements RankedSet.Load in one script execution per call.
func (r *Redis) Load(ctx context.Context, members []model.Member) error {
	if len(members) == 0 {
		return nil
	}
	start := time.Now()
	defer observe("load", start)

	args := make([]interface{}, 0, 2*len(members))
	for _, m := range members {
		args = append(args, m.PlayerID, strconv.FormatInt(m.TotalScore, 10))
	}
	n, err := loadScript.Run(ctx, r.client, []string{r.totalsKey, r.zsetKey}, args...).Int64()
	if err != nil {
		return fmt.Errorf("rankset load: %w", err)
	}
	if n != int64(len(members)) {
		return fmt.Errorf("%w: load stored %d of %d", ErrUnexpectedReply, n, len(members))
	}
	return nil
}

// Card implements RankedSet.Card.
func (r *Redis) Card(ctx context.Context) (int64, error) {
	n, err := r.client.ZCard(ctx, r.zsetKey).Result()
	if err != nil {
		return 0, fmt.Errorf("rankset card: %w", err)
	}
	return n, nil
}

// Top implements RankedSet.Top.
func (r *Redis) Top(ctx context.Context, n int) ([]model.Member, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	zs, err := r.client.ZRevRangeWithScores(ctx, r.zsetKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("rankset top: %w", err)
	}
	out := make([]model.Member, 0, len(zs))
	for _, z := range zs {
		id, ok := z.Member.(string)
		if !ok {
			return nil, fmt.Errorf("%w: member %v", ErrUnexpectedReply, z.Member)
		}
		out = append(out, model.Member{PlayerID: id, TotalScore: int64(z.Score)})
	}
	return out, nil
}
