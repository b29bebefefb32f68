package redisx

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// PublishBuyer sends payload to the live channel of one buyer.
func PublishBuyer(ctx context.Context, rdb redis.Cmdable, buyerID string, payload []byte) error {
	return rdb.Publish(ctx, Key(ChanBuyer, buyerID), payload).Err()
}

// SubscribeBuyer returns a subscription on the buyer's live channel. The
// caller must Close it.
func SubscribeBuyer(ctx context.Context, rdb *redis.Client, buyerID string) (*redis.PubSub, error) {
	ps := rdb.Subscribe(ctx, Key(ChanBuyer, buyerID))
	// wait for the subscription confirmation so no message is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	return ps, nil
}
