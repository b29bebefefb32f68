// Package indexer keeps the per-buyer transaction copies in step with the
// global records by replaying transaction events.
package indexer

import (
	"context"
	"errors"

	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/zeromicro/go-zero/core/logx"
)

// Topics the repair consumer subscribes to.
var Topics = []string{orders.TopicTransactionCreated, orders.TopicTransactionStatusChanged}

type Service struct {
	Transactions orders.TransactionStore
	Redis        redis.Cmdable // optional event dedup
	ServiceName  string
}

// HandleMessage is installed as the consumer handler.
func (s *Service) HandleMessage(ctx context.Context, m kafkago.Message) error {
	// 1) decode envelope
	env, err := kafkax.Decode[orders.Envelope](m.Value)
	if err != nil {
		logx.WithContext(ctx).Errorw("undecodable event skipped",
			logx.Field("topic", m.Topic),
			logx.Field("offset", m.Offset),
			logx.Field("err", err.Error()),
		)
		return nil
	}

	// 2) dedup by event id
	dkey := redisx.Key(redisx.KeyDedup, s.ServiceName, env.EventID)
	if s.Redis != nil {
		if seen, _ := redisx.Exists(ctx, s.Redis, dkey); seen {
			return nil
		}
	}

	// 3) pick the reference out of the payload
	var ref string
	switch env.EventType {
	case orders.EventTransactionCreated:
		p, err := kafkax.Decode[orders.TransactionCreatedPayload](env.Payload)
		if err != nil {
			return nil
		}
		ref = p.ReferenceID
	case orders.EventTransactionStatusChanged:
		p, err := kafkax.Decode[orders.TransactionStatusChangedPayload](env.Payload)
		if err != nil {
			return nil
		}
		ref = p.ReferenceID
	default:
		return nil
	}

	// 4) bring the buyer copy up to the global record
	if err := s.Repair(ctx, ref); err != nil {
		return err
	}
	if s.Redis != nil {
		_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	}
	return nil
}

// Repair copies the global record into the buyer index when the copy is
// missing, and merges status when it is behind.
func (s *Service) Repair(ctx context.Context, referenceID string) error {
	global, err := s.Transactions.Get(ctx, referenceID)
	if errors.Is(err, orders.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if global.BuyerID == "" {
		return nil
	}

	mirror, err := s.Transactions.GetBuyer(ctx, global.BuyerID, referenceID)
	if errors.Is(err, orders.ErrNotFound) {
		logx.WithContext(ctx).Infow("per-buyer copy restored",
			logx.Field("referenceId", referenceID),
			logx.Field("buyerId", global.BuyerID),
		)
		return s.Transactions.PutBuyer(ctx, *global)
	}
	if err != nil {
		return err
	}
	if mirror.Status == global.Status && mirror.GatewayPaymentID == global.GatewayPaymentID {
		return nil
	}
	return s.Transactions.MergeBuyer(ctx, global.BuyerID, referenceID, orders.StatusPatch{
		Status:           global.Status,
		GatewayPaymentID: global.GatewayPaymentID,
		UpdatedAt:        global.UpdatedAt,
	})
}
