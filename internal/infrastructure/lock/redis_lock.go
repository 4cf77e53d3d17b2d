package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/example/order-fulfillment/internal/scheduler"
)

// releaseScript deletes the lock key only if this holder still owns it, so
// a holder whose maxHold expired cannot release a lock someone else took.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLockManager implements the scheduler lock with SET NX PX. The key's
// TTL is the maximum hold; early releases before the minimum hold shrink
// the TTL to the minimum instead of deleting the key.
type RedisLockManager struct {
	rdb *redis.Client
}

func NewRedisLockManager(rdb *redis.Client) *RedisLockManager {
	return &RedisLockManager{rdb: rdb}
}

func (m *RedisLockManager) Acquire(ctx context.Context, name string, maxHold, minHold time.Duration) (scheduler.Lock, error) {
	token := uuid.New().String()
	ok, err := m.rdb.SetNX(ctx, lockKey(name), token, maxHold).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, scheduler.ErrLockHeld
	}
	return &redisLock{
		rdb:      m.rdb,
		key:      lockKey(name),
		token:    token,
		acquired: time.Now(),
		minHold:  minHold,
	}, nil
}

type redisLock struct {
	rdb      *redis.Client
	key      string
	token    string
	acquired time.Time
	minHold  time.Duration
}

func (l *redisLock) Release(ctx context.Context) error {
	held := time.Since(l.acquired)
	if held < l.minHold {
		// Keep the key alive until the minimum hold passes.
		return l.rdb.PExpire(ctx, l.key, l.minHold-held).Err()
	}
	return releaseScript.Run(ctx, l.rdb, []string{l.key}, l.token).Err()
}

func lockKey(name string) string {
	return "schedlock:" + name
}
