package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// release only deletes the key while it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Locker struct {
	rdb redis.UniversalClient
}

func NewLocker(rdb redis.UniversalClient) *Locker { return &Locker{rdb: rdb} }

func (l *Locker) TryLock(ctx context.Context, name string, ttl time.Duration) (func(), bool, error) {
	key := fmt.Sprintf(KeyLock, name)
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return func() {}, false, err
	}
	return func() {
		_ = unlockScript.Run(context.Background(), l.rdb, []string{key}, token).Err()
	}, true, nil
}

// Dedup remembers processed event ids per consumer service.
type Dedup struct {
	rdb     redis.UniversalClient
	service string
}

func NewDedup(rdb redis.UniversalClient, service string) *Dedup {
	return &Dedup{rdb: rdb, service: service}
}

// MarkOnce records id and reports whether this is the first time it was seen.
func (d *Dedup) MarkOnce(ctx context.Context, id string) (bool, error) {
	return d.rdb.SetNX(ctx, fmt.Sprintf(KeyDedup, d.service, id), 1, TTLDedup).Result()
}
