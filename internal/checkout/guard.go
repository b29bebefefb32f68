package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/redis/go-redis/v9"
)

// RedisGuard keeps checkout locks and reference claims in Redis.
type RedisGuard struct {
	Redis   redis.Cmdable
	LockTTL time.Duration
}

var _ Guard = RedisGuard{}

func (g RedisGuard) Lock(ctx context.Context, key string) (func(), error) {
	unlock, err := redisx.Locker{Redis: g.Redis, TTL: g.LockTTL}.Acquire(ctx, redisx.Key(redisx.KeyCheckoutLock, key))
	if errors.Is(err, redisx.ErrLocked) {
		return nil, orders.ErrCheckoutInProgress
	}
	return unlock, err
}

func (g RedisGuard) ClaimReference(ctx context.Context, referenceID, owner string) (bool, error) {
	return redisx.Claim(ctx, g.Redis, redisx.Key(redisx.KeyIdemCheckout, referenceID), owner, redisx.TTLIdempotency)
}

func (g RedisGuard) ReleaseReference(ctx context.Context, referenceID string) error {
	return g.Redis.Del(ctx, redisx.Key(redisx.KeyIdemCheckout, referenceID)).Err()
}
