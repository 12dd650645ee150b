package capacity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one hash per experience under capacity:{id} with
// 'total' and 'remaining' fields.  The conditional decrement and the
// capped release are Lua scripts so the check and the write execute as
// one atomic step inside Redis, which is the single serialization
// point for all controller replicas.
type RedisStore struct {
	rdb      *redis.Client
	tokenTTL time.Duration
}

// NewRedisStore returns a RedisStore bound to the provided client.
// tokenTTL bounds how long a decrement token is remembered for
// idempotent replay; it should comfortably exceed the caller's retry
// window.
func NewRedisStore(rdb *redis.Client, tokenTTL time.Duration) *RedisStore {
	if rdb == nil {
		panic("nil redis client passed to NewRedisStore")
	}
	if tokenTTL <= 0 {
		tokenTTL = 10 * time.Minute
	}
	return &RedisStore{rdb: rdb, tokenTTL: tokenTTL}
}

func capacityKey(experienceID uint64) string {
	return fmt.Sprintf("capacity:%d", experienceID)
}

func tokenKey(experienceID uint64, token string) string {
	return fmt.Sprintf("capacity:%d:token:%s", experienceID, token)
}

// decrScript checks the precondition and decrements in one step.  A
// token already present means this request was already applied; the
// recorded remaining is returned without a second decrement.  Return
// values: {-2} no record, {-1} insufficient, {0, remaining} applied or
// replayed.
var decrScript = redis.NewScript(`
    local cap_key = KEYS[1]
    local tok_key = KEYS[2]
    local n = tonumber(ARGV[1])
    local ttl_seconds = tonumber(ARGV[2])

    local prev = redis.call('GET', tok_key)
    if prev then
        return { 0, tonumber(prev) }
    end

    local state = redis.call('HMGET', cap_key, 'total', 'remaining')
    local total = tonumber(state[1])
    local remaining = tonumber(state[2])
    if total == nil or remaining == nil then
        return { -2 }
    end

    if remaining < n then
        return { -1, remaining }
    end

    remaining = remaining - n
    redis.call('HSET', cap_key, 'remaining', remaining)
    redis.call('SET', tok_key, remaining, 'EX', ttl_seconds)
    return { 0, remaining }
`)

// releaseScript adds seats back, capped at total, and drops the
// decrement token in the same atomic step: once the seats are
// returned, a retry with that token must decrement for real rather
// than replay the stale recorded remaining.  Return values mirror
// decrScript: {-2} no record, {0, remaining} applied.
var releaseScript = redis.NewScript(`
    local cap_key = KEYS[1]
    local tok_key = KEYS[2]
    local n = tonumber(ARGV[1])

    local state = redis.call('HMGET', cap_key, 'total', 'remaining')
    local total = tonumber(state[1])
    local remaining = tonumber(state[2])
    if total == nil or remaining == nil then
        return { -2 }
    end

    remaining = remaining + n
    if remaining > total then
        remaining = total
    end
    redis.call('HSET', cap_key, 'remaining', remaining)
    redis.call('DEL', tok_key)
    return { 0, remaining }
`)

// initScript creates or reseeds the record.  When a record already
// exists, seats already granted (old total - old remaining) are
// carried over against the new total, floored at zero.
var initScript = redis.NewScript(`
    local cap_key = KEYS[1]
    local total = tonumber(ARGV[1])

    local state = redis.call('HMGET', cap_key, 'total', 'remaining')
    local old_total = tonumber(state[1])
    local old_remaining = tonumber(state[2])

    local remaining = total
    if old_total ~= nil and old_remaining ~= nil then
        local booked = old_total - old_remaining
        remaining = total - booked
        if remaining < 0 then remaining = 0 end
    end

    redis.call('HSET', cap_key, 'total', total, 'remaining', remaining)
    return remaining
`)

// Get reads the capacity hash.  A missing hash maps to ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, experienceID uint64) (Record, error) {
	vals, err := s.rdb.HMGet(ctx, capacityKey(experienceID), "total", "remaining").Result()
	if err != nil {
		return Record{}, err
	}
	total, err1 := redisInt(vals[0])
	remaining, err2 := redisInt(vals[1])
	if err1 != nil || err2 != nil {
		return Record{}, ErrNotFound
	}
	return Record{Total: total, Remaining: remaining}, nil
}

// ConditionalDecrement runs the atomic decrement script.
func (s *RedisStore) ConditionalDecrement(ctx context.Context, experienceID uint64, n int64, token string) (int64, error) {
	keys := []string{capacityKey(experienceID), tokenKey(experienceID, token)}
	ttl := int64(s.tokenTTL / time.Second)
	res, err := decrScript.Run(ctx, s.rdb, keys, n, ttl).Int64Slice()
	if err != nil {
		return 0, err
	}
	switch res[0] {
	case -2:
		return 0, ErrNotFound
	case -1:
		return res[1], ErrInsufficient
	default:
		return res[1], nil
	}
}

// Release runs the capped-increment script.  An empty token derives a
// key that never exists, so the DEL is a no-op.
func (s *RedisStore) Release(ctx context.Context, experienceID uint64, n int64, token string) (int64, error) {
	keys := []string{capacityKey(experienceID), tokenKey(experienceID, token)}
	res, err := releaseScript.Run(ctx, s.rdb, keys, n).Int64Slice()
	if err != nil {
		return 0, err
	}
	if res[0] == -2 {
		return 0, ErrNotFound
	}
	return res[1], nil
}

// Init creates or reseeds the capacity record for an experience.
func (s *RedisStore) Init(ctx context.Context, experienceID uint64, total int64) error {
	return initScript.Run(ctx, s.rdb, []string{capacityKey(experienceID)}, total).Err()
}

// Delete removes the capacity record.
func (s *RedisStore) Delete(ctx context.Context, experienceID uint64) error {
	return s.rdb.Del(ctx, capacityKey(experienceID)).Err()
}

// redisInt converts an HMGET result element, which go-redis returns as
// a string or nil, into an int64.
func redisInt(v interface{}) (int64, error) {
	str, ok := v.(string)
	if !ok {
		return 0, errors.New("missing field")
	}
	return strconv.ParseInt(str, 10, 64)
}
