package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/hibiken/asynq"
	"github.com/zeromicro/go-zero/core/logx"
)

const (
	TaskExpireTransaction = "transaction:expire"
	QueueExpiry           = "payment"
)

type ExpirePayload struct {
	ReferenceID string `json:"reference_id"`
}

// Enqueuer is the part of *asynq.Client the scheduler uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ExpiryScheduler queues the expiry of unpaid transactions.
type ExpiryScheduler struct {
	Client Enqueuer
}

func (s ExpiryScheduler) ScheduleExpiry(ctx context.Context, referenceID string, at time.Time) error {
	payload, err := json.Marshal(ExpirePayload{ReferenceID: referenceID})
	if err != nil {
		return err
	}
	task := asynq.NewTask(TaskExpireTransaction, payload)
	_, err = s.Client.EnqueueContext(ctx, task,
		asynq.ProcessAt(at),
		asynq.Queue(QueueExpiry),
		asynq.TaskID("expire:"+referenceID),
		asynq.MaxRetry(10),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// NewAsynqMux routes the reconcile tasks to h.
func NewAsynqMux(h *Handler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskExpireTransaction, h.HandleExpireTask)
	return mux
}

// HandleExpireTask expires a transaction through the same path as a gateway
// callback, so a paid transaction is left alone.
func (h *Handler) HandleExpireTask(ctx context.Context, t *asynq.Task) error {
	var p ExpirePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode expire payload: %v: %w", err, asynq.SkipRetry)
	}
	res, err := h.ApplyGatewayCallback(ctx, "", p.ReferenceID, "EXPIRED")
	if errors.Is(err, orders.ErrUnknownReference) || errors.Is(err, orders.ErrValidation) {
		return fmt.Errorf("expire %s: %v: %w", p.ReferenceID, err, asynq.SkipRetry)
	}
	if err != nil {
		return err
	}
	logx.WithContext(ctx).Infow("expiry task done",
		logx.Field("referenceId", p.ReferenceID),
		logx.Field("outcome", string(res.Outcome)),
	)
	return nil
}
