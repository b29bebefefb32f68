package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-storefront/internal/orders"
)

// Action is a manual step on a handoff order. MerchantID, when set, must
// match the order's merchant.
type Action struct {
	BuyerID    string
	OrderID    string
	Actor      orders.Actor
	MerchantID string
	Reason     string
}

func (a Action) validate() error {
	if a.BuyerID == "" || a.OrderID == "" {
		return orders.Invalid("orderId", "is required")
	}
	if !a.Actor.Valid() {
		return orders.Invalid("actor", "must be user or merchant")
	}
	return nil
}

func (a Action) authorize(o *orders.Order) error {
	if a.MerchantID != "" && a.MerchantID != o.MerchantID {
		return orders.ErrForbidden
	}
	return nil
}

// ConfirmOrder records one side's confirmation. Both sides confirming does
// not complete the order; completion is its own action.
func (s *Service) ConfirmOrder(ctx context.Context, a Action) (*orders.Order, error) {
	return s.update(ctx, a, func(o *orders.Order) error {
		if o.Status.Terminal() {
			return fmt.Errorf("%w: order is %s", orders.ErrInvalidTransition, o.Status)
		}
		now := s.now()
		switch a.Actor {
		case orders.ActorBuyer:
			if o.BuyerConfirmed {
				return nil
			}
			o.BuyerConfirmed = true
			o.BuyerConfirmedAt = &now
		case orders.ActorMerchant:
			if o.MerchantConfirmed {
				return nil
			}
			o.MerchantConfirmed = true
			o.MerchantConfirmedAt = &now
		}
		o.UpdatedAt = now
		return nil
	})
}

func (s *Service) CancelOrder(ctx context.Context, a Action) (*orders.Order, error) {
	a.Reason = strings.TrimSpace(a.Reason)
	if len([]rune(a.Reason)) > maxNotes {
		return nil, orders.Invalid("reason", fmt.Sprintf("must be at most %d characters", maxNotes))
	}
	return s.update(ctx, a, func(o *orders.Order) error {
		if !orders.CanTransition(o.Status, orders.StatusCancelled) {
			return fmt.Errorf("%w: %s -> %s", orders.ErrInvalidTransition, o.Status, orders.StatusCancelled)
		}
		now := s.now()
		o.Status = orders.StatusCancelled
		o.CancelledAt = &now
		o.CancelledBy = a.Actor
		o.CancelReason = a.Reason
		o.UpdatedAt = now
		return nil
	})
}

func (s *Service) CompleteOrder(ctx context.Context, a Action) (*orders.Order, error) {
	return s.update(ctx, a, func(o *orders.Order) error {
		if !orders.CanTransition(o.Status, orders.StatusCompleted) {
			return fmt.Errorf("%w: %s -> %s", orders.ErrInvalidTransition, o.Status, orders.StatusCompleted)
		}
		now := s.now()
		o.Status = orders.StatusCompleted
		o.CompletedAt = &now
		o.UpdatedAt = now
		return nil
	})
}

// MarkHandoffSent records that the buyer opened the chat link. The first
// call wins.
func (s *Service) MarkHandoffSent(ctx context.Context, buyerID, orderID string) (*orders.Order, error) {
	return s.update(ctx, Action{BuyerID: buyerID, OrderID: orderID, Actor: orders.ActorBuyer}, func(o *orders.Order) error {
		if o.HandoffSentAt == nil {
			now := s.now()
			o.HandoffSentAt = &now
			o.UpdatedAt = now
		}
		return nil
	})
}

func (s *Service) update(ctx context.Context, a Action, fn func(*orders.Order) error) (*orders.Order, error) {
	if err := a.validate(); err != nil {
		return nil, err
	}
	o, err := s.Orders.Update(ctx, a.BuyerID, a.OrderID, func(o *orders.Order) error {
		if err := a.authorize(o); err != nil {
			return err
		}
		return fn(o)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, orders.TopicHandoffOrderUpdated, orders.EventHandoffOrderUpdated, o.ID, o.BuyerID, handoffPayload(*o))
	return o, nil
}
