// Package reconcile applies asynchronous gateway status updates to stored
// transactions.
package reconcile

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/redis/go-redis/v9"
	"github.com/zeromicro/go-zero/core/logx"
)

type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeStale     Outcome = "stale"
)

type Result struct {
	Outcome     Outcome       `json:"outcome"`
	ReferenceID string        `json:"referenceId"`
	Status      orders.Status `json:"status"`
}

// casAttempts bounds how often a callback re-reads after losing a race with
// another writer of the same transaction.
const casAttempts = 3

type Handler struct {
	Transactions orders.TransactionStore
	Events       orders.EventSink
	Live         orders.BuyerNotifier
	Cache        redis.Cmdable // optional status cache to invalidate

	ServiceName string
	Now         func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

// ApplyGatewayCallback moves a transaction to the status the gateway
// reported. Only status, gateway payment id and updatedAt are written.
// Unknown references fail with ErrUnknownReference and create nothing.
func (h *Handler) ApplyGatewayCallback(ctx context.Context, gatewayPaymentID, referenceID, rawStatus string) (Result, error) {
	referenceID = strings.TrimSpace(referenceID)
	if referenceID == "" {
		return Result{}, orders.Invalid("reference_id", "is required")
	}
	if strings.TrimSpace(rawStatus) == "" {
		return Result{}, orders.Invalid("status", "is required")
	}
	to := orders.ParseGatewayStatus(rawStatus)

	for attempt := 1; ; attempt++ {
		cur, err := h.Transactions.Get(ctx, referenceID)
		if errors.Is(err, orders.ErrNotFound) {
			return Result{}, orders.ErrUnknownReference
		}
		if err != nil {
			return Result{}, err
		}
		res := Result{ReferenceID: referenceID, Status: cur.Status}

		samePayment := gatewayPaymentID == "" || gatewayPaymentID == cur.GatewayPaymentID
		if cur.Status == to && samePayment {
			res.Outcome = OutcomeDuplicate
			return res, nil
		}
		if cur.Status != to && !orders.CanAdvance(cur.Status, to) {
			logx.WithContext(ctx).Infow("gateway status ignored",
				logx.Field("referenceId", referenceID),
				logx.Field("current", string(cur.Status)),
				logx.Field("reported", string(to)),
			)
			res.Outcome = OutcomeStale
			return res, nil
		}

		patch := orders.StatusPatch{
			Status:           to,
			GatewayPaymentID: gatewayPaymentID,
			UpdatedAt:        h.now(),
			Expect:           cur.Status,
		}
		err = h.Transactions.MergeGlobal(ctx, referenceID, patch)
		if errors.Is(err, orders.ErrStaleWrite) && attempt < casAttempts {
			continue
		}
		if errors.Is(err, orders.ErrNotFound) {
			return Result{}, orders.ErrUnknownReference
		}
		if err != nil {
			return Result{}, err
		}

		h.mergeBuyer(ctx, cur.BuyerID, referenceID, patch)
		h.afterChange(ctx, *cur, patch)
		res.Outcome = OutcomeApplied
		res.Status = to
		return res, nil
	}
}

// mergeBuyer mirrors the patch into the per-buyer copy. A missing copy is
// skipped; the index worker repairs it from the status event.
func (h *Handler) mergeBuyer(ctx context.Context, buyerID, referenceID string, patch orders.StatusPatch) {
	if buyerID == "" {
		return
	}
	patch.Expect = ""
	err := h.Transactions.MergeBuyer(ctx, buyerID, referenceID, patch)
	switch {
	case err == nil:
	case errors.Is(err, orders.ErrNotFound):
		logx.WithContext(ctx).Debugw("per-buyer copy missing, skipped",
			logx.Field("referenceId", referenceID),
			logx.Field("buyerId", buyerID),
		)
	default:
		w := &orders.PartialWriteWarning{ReferenceID: referenceID, BuyerID: buyerID, Err: err}
		logx.WithContext(ctx).Errorw(w.Error(),
			logx.Field("referenceId", referenceID),
			logx.Field("buyerId", buyerID),
		)
	}
}

func (h *Handler) afterChange(ctx context.Context, prev orders.Transaction, patch orders.StatusPatch) {
	if h.Cache != nil {
		if err := h.Cache.Del(ctx, redisx.Key(redisx.KeyTxStatus, prev.ReferenceID)).Err(); err != nil {
			logx.WithContext(ctx).Errorw("status cache invalidate failed",
				logx.Field("referenceId", prev.ReferenceID),
				logx.Field("err", err.Error()),
			)
		}
	}

	paymentID := patch.GatewayPaymentID
	if paymentID == "" {
		paymentID = prev.GatewayPaymentID
	}
	env := orders.NewEnvelope(orders.EventTransactionStatusChanged, h.ServiceName, prev.ReferenceID, "",
		orders.TransactionStatusChangedPayload{
			ReferenceID:      prev.ReferenceID,
			BuyerID:          prev.BuyerID,
			GatewayPaymentID: paymentID,
			From:             prev.Status,
			To:               patch.Status,
		})
	if h.Events != nil {
		if err := h.Events.Emit(ctx, orders.TopicTransactionStatusChanged, env); err != nil {
			logx.WithContext(ctx).Errorw("event publish failed",
				logx.Field("referenceId", prev.ReferenceID),
				logx.Field("err", err.Error()),
			)
		}
	}
	if h.Live != nil && prev.BuyerID != "" {
		if err := h.Live.NotifyBuyer(ctx, prev.BuyerID, env); err != nil {
			logx.WithContext(ctx).Errorw("live notify failed",
				logx.Field("buyerId", prev.BuyerID),
				logx.Field("err", err.Error()),
			)
		}
	}
}
