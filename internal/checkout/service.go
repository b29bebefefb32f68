// Package checkout turns carts into handoff orders or gateway transactions
// and applies the manual buyer/merchant actions on handoff orders.
package checkout

import (
	"context"
	"time"

	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/payment"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"
)

// Tolerance is how far client totals may drift from the server's sum.
var Tolerance = decimal.New(1, -2)

const maxNotes = 500

// Guard serialises checkouts per buyer and makes reference ids single-use.
type Guard interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
	ClaimReference(ctx context.Context, referenceID, owner string) (bool, error)
	ReleaseReference(ctx context.Context, referenceID string) error
}

// ExpiryScheduler arranges for an unpaid transaction to expire.
type ExpiryScheduler interface {
	ScheduleExpiry(ctx context.Context, referenceID string, at time.Time) error
}

// CartSource is the buyer's stored cart, cleared after a successful checkout.
type CartSource interface {
	Load(ctx context.Context, o cart.Owner) (cart.Cart, error)
	Clear(ctx context.Context, o cart.Owner) error
}

type Service struct {
	Catalog      catalog.Reader
	Orders       orders.OrderStore
	Transactions orders.TransactionStore
	Gateway      payment.Gateway
	Guard        Guard
	Events       orders.EventSink
	Live         orders.BuyerNotifier
	Expiry       ExpiryScheduler // optional
	Carts        CartSource      // optional
	IDs          *snowflake.Node

	ServiceName string
	HandoffTTL  time.Duration
	Now         func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) lock(ctx context.Context, key string) (func(), error) {
	if s.Guard == nil {
		return func() {}, nil
	}
	return s.Guard.Lock(ctx, key)
}

// publish sends an event to the log and, when the record has a buyer, to
// the buyer's live feed. Failures are logged only: the record is written.
func (s *Service) publish(ctx context.Context, topic, eventType, correlationID, buyerID string, payload any) {
	env := orders.NewEnvelope(eventType, s.ServiceName, correlationID, traceID(ctx), payload)
	if s.Events != nil {
		if err := s.Events.Emit(ctx, topic, env); err != nil {
			logx.WithContext(ctx).Errorw("event publish failed",
				logx.Field("topic", topic),
				logx.Field("correlationId", correlationID),
				logx.Field("err", err.Error()),
			)
		}
	}
	if s.Live != nil && buyerID != "" {
		if err := s.Live.NotifyBuyer(ctx, buyerID, env); err != nil {
			logx.WithContext(ctx).Errorw("live notify failed",
				logx.Field("buyerId", buyerID),
				logx.Field("err", err.Error()),
			)
		}
	}
}

func (s *Service) clearCart(ctx context.Context, o *cart.Owner) {
	if s.Carts == nil || o == nil || (o.DeviceID == "" && o.BuyerID == "") {
		return
	}
	if err := s.Carts.Clear(ctx, *o); err != nil {
		logx.WithContext(ctx).Errorw("cart clear after checkout failed",
			logx.Field("deviceId", o.DeviceID),
			logx.Field("buyerId", o.BuyerID),
			logx.Field("err", err.Error()),
		)
	}
}

type traceKey struct{}

// WithTraceID tags ctx so events emitted under it carry the request id.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

func traceID(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}

func withinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Tolerance)
}
