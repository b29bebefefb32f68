// Package live pushes transaction and order events to buyers watching their
// listings. Events travel over Redis pub/sub so any API instance can serve
// the websocket.
package live

import (
	"context"
	"encoding/json"

	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/redis/go-redis/v9"
)

type Notifier struct {
	Redis redis.Cmdable
}

var _ orders.BuyerNotifier = Notifier{}

func (n Notifier) NotifyBuyer(ctx context.Context, buyerID string, env orders.Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return redisx.PublishBuyer(ctx, n.Redis, buyerID, b)
}
