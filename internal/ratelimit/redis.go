package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Tokens are returned as a string so fractional buckets survive the Lua to
// Redis integer reply conversion.
var tokenBucket = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local burst = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])

local data = redis.call("HMGET", key, "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])

if tokens == nil then
  tokens = burst
  ts = now_ms
else
  local delta = math.max(0, now_ms - ts)
  local add = (delta / 1000.0) * rate
  tokens = math.min(burst, tokens + add)
  ts = now_ms
end

local allowed = 0
local retry_ms = 0

if tokens >= cost then
  allowed = 1
  tokens = tokens - cost
else
  local missing = cost - tokens
  if rate > 0 then
    retry_ms = math.ceil((missing / rate) * 1000.0)
  else
    retry_ms = 1000
  end
end

redis.call("HSET", key, "tokens", tokens, "ts", ts)
redis.call("PEXPIRE", key, 300000)
return {allowed, tostring(tokens), retry_ms}
`)

// RedisLimiter shares buckets across replicas through a Lua script.
type RedisLimiter struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisLimiter(rdb *redis.Client) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, prefix: "reqbin:"}
}

func (r *RedisLimiter) Allow(ctx context.Context, key string, p Policy) (Decision, error) {
	now := time.Now().UnixMilli()
	res, err := tokenBucket.Run(ctx, r.rdb, []string{r.prefix + key}, now, p.RPS, p.Burst, 1).Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("token bucket script: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("token bucket script: unexpected reply %v", res)
	}

	allowed, _ := res[0].(int64)
	tokensStr, _ := res[1].(string)
	retryMs, _ := res[2].(int64)
	tokens, _ := strconv.ParseFloat(tokensStr, 64)

	dec := Decision{Allowed: allowed == 1, Remaining: tokens}
	if !dec.Allowed {
		dec.RetryAfter = time.Duration(retryMs) * time.Millisecond
	}
	return dec, nil
}

func (r *RedisLimiter) Close() error { return r.rdb.Close() }
