package nonce

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "nonce:"

// compareAndDelete удаляет ключ, только если значение не изменилось с момента чтения.
var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore хранит nonce в Redis: ключ nonce:<address>, значение <nonce>:<expires_at_ms>.
//
// TTL ключа в два раза больше TTL nonce, чтобы просроченный nonce какое-то время
// отдавался как ErrExpired, а не ErrNotFound. Дальше Redis удаляет его сам.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl, now: time.Now}
}

func (s *RedisStore) WithClock(now func() time.Time) *RedisStore {
	s.now = now
	return s
}

func (s *RedisStore) Issue(ctx context.Context, address string) (Record, error) {
	n, err := generate()
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		Address:   Normalize(address),
		Nonce:     n,
		ExpiresAt: s.now().Add(s.ttl).Truncate(time.Millisecond),
	}

	if err := s.client.Set(ctx, keyPrefix+rec.Address, encode(rec), 2*s.ttl).Err(); err != nil {
		return Record{}, fmt.Errorf("store nonce: %w", err)
	}
	return rec, nil
}

func (s *RedisStore) Get(ctx context.Context, address string) (Record, error) {
	key := Normalize(address)

	raw, err := s.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("load nonce: %w", err)
	}

	rec, err := decode(key, raw)
	if err != nil {
		return Record{}, err
	}

	if rec.Expired(s.now()) {
		if err := compareAndDelete.Run(ctx, s.client, []string{keyPrefix + key}, raw).Err(); err != nil {
			return Record{}, fmt.Errorf("delete expired nonce: %w", err)
		}
		return Record{}, ErrExpired
	}
	return rec, nil
}

func (s *RedisStore) Consume(ctx context.Context, rec Record) error {
	key := Normalize(rec.Address)

	n, err := compareAndDelete.Run(ctx, s.client, []string{keyPrefix + key}, encode(rec)).Int64()
	if err != nil {
		return fmt.Errorf("consume nonce: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func encode(rec Record) string {
	return rec.Nonce + ":" + strconv.FormatInt(rec.ExpiresAt.UnixMilli(), 10)
}

func decode(address, raw string) (Record, error) {
	nonce, ms, ok := strings.Cut(raw, ":")
	if !ok {
		return Record{}, fmt.Errorf("malformed nonce record for %s", address)
	}
	expires, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("malformed nonce expiry for %s: %w", address, err)
	}
	return Record{
		Address:   address,
		Nonce:     nonce,
		ExpiresAt: time.UnixMilli(expires),
	}, nil
}
