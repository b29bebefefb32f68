package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/payment"
	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"
)

type GatewayRequest struct {
	ReferenceID string // generated when empty
	Amount      decimal.Decimal
	Method      orders.PaymentMethod
	BankCode    string
	Description string
	Buyer       orders.Customer // Buyer.ID empty = guest checkout
	Items       []orders.LineItem
	Cart        *cart.Owner // cleared on success
}

func (r GatewayRequest) validate() error {
	if !r.Amount.IsPositive() {
		return orders.Invalid("amount", "must be positive")
	}
	if r.Method != orders.MethodQRIS && r.Method != orders.MethodVirtualAccount {
		return orders.Invalid("paymentMethod", "must be qris or virtual-account")
	}
	for i, it := range r.Items {
		if it.Quantity <= 0 {
			return orders.Invalid(fmt.Sprintf("items[%d].quantity", i), "must be at least 1")
		}
		if it.UnitPrice.IsNegative() || it.Subtotal.IsNegative() {
			return orders.Invalid(fmt.Sprintf("items[%d]", i), "has a negative price")
		}
	}
	return nil
}

// checkSubtotal rejects items whose subtotals do not add up to amount, or
// whose subtotal is not quantity times unit price.
func checkSubtotal(items []orders.LineItem, amount decimal.Decimal) error {
	if len(items) == 0 {
		return nil
	}
	for _, it := range items {
		want := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		if !withinTolerance(want, it.Subtotal) {
			return fmt.Errorf("%w: item %s", orders.ErrSubtotalMismatch, it.ProductID)
		}
	}
	if sum := orders.SumSubtotals(items); !withinTolerance(sum, amount) {
		return fmt.Errorf("%w: items sum to %s, order says %s", orders.ErrSubtotalMismatch, sum, amount)
	}
	return nil
}

// CreateGatewayOrder opens a hosted payment and records the pending
// transaction. Nothing is written unless the gateway call succeeds.
func (s *Service) CreateGatewayOrder(ctx context.Context, req GatewayRequest) (*orders.Transaction, error) {
	req.ReferenceID = strings.TrimSpace(req.ReferenceID)
	if err := req.validate(); err != nil {
		return nil, err
	}
	if err := checkSubtotal(req.Items, req.Amount); err != nil {
		return nil, err
	}
	if req.ReferenceID == "" {
		req.ReferenceID = "order_" + s.IDs.Generate().String()
	}

	lockKey := req.Buyer.ID
	if lockKey == "" {
		lockKey = "ref:" + req.ReferenceID
	}
	unlock, err := s.lock(ctx, lockKey)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := s.claim(ctx, req.ReferenceID, req.Buyer.ID); err != nil {
		return nil, err
	}

	tx, err := s.openIntent(ctx, req)
	if err != nil {
		if !errors.Is(err, payment.ErrGatewayTimeout) && s.Guard != nil {
			// the gateway refused, so the reference id was never used
			_ = s.Guard.ReleaseReference(ctx, req.ReferenceID)
		}
		return nil, err
	}

	if err := s.Transactions.PutGlobal(ctx, *tx); err != nil {
		logx.WithContext(ctx).Errorw("transaction write failed after gateway intent",
			logx.Field("referenceId", tx.ReferenceID),
			logx.Field("gatewayPaymentId", tx.GatewayPaymentID),
			logx.Field("err", err.Error()),
		)
		return nil, err
	}
	if tx.BuyerID != "" {
		if err := s.Transactions.PutBuyer(ctx, *tx); err != nil {
			w := &orders.PartialWriteWarning{ReferenceID: tx.ReferenceID, BuyerID: tx.BuyerID, Err: err}
			logx.WithContext(ctx).Errorw(w.Error(),
				logx.Field("referenceId", tx.ReferenceID),
				logx.Field("buyerId", tx.BuyerID),
			)
		}
	}

	s.publish(ctx, orders.TopicTransactionCreated, orders.EventTransactionCreated, tx.ReferenceID, tx.BuyerID,
		orders.TransactionCreatedPayload{
			ReferenceID: tx.ReferenceID,
			BuyerID:     tx.BuyerID,
			Method:      tx.Method,
			Amount:      tx.Amount.String(),
			Status:      tx.Status,
		})
	if s.Expiry != nil && tx.ExpiresAt != nil {
		if err := s.Expiry.ScheduleExpiry(ctx, tx.ReferenceID, *tx.ExpiresAt); err != nil {
			logx.WithContext(ctx).Errorw("schedule expiry failed",
				logx.Field("referenceId", tx.ReferenceID),
				logx.Field("err", err.Error()),
			)
		}
	}
	s.clearCart(ctx, req.Cart)
	return tx, nil
}

func (s *Service) claim(ctx context.Context, referenceID, buyerID string) error {
	if _, err := s.Transactions.Get(ctx, referenceID); err == nil {
		return orders.ErrDuplicateCheckout
	} else if !errors.Is(err, orders.ErrNotFound) {
		return err
	}
	if s.Guard == nil {
		return nil
	}
	owner := buyerID
	if owner == "" {
		owner = "guest"
	}
	won, err := s.Guard.ClaimReference(ctx, referenceID, owner)
	if err != nil {
		return err
	}
	if !won {
		return orders.ErrDuplicateCheckout
	}
	return nil
}

func (s *Service) openIntent(ctx context.Context, req GatewayRequest) (*orders.Transaction, error) {
	now := s.now()
	tx := &orders.Transaction{
		ReferenceID: req.ReferenceID,
		Mode:        orders.ModeGateway,
		BuyerID:     req.Buyer.ID,
		Customer:    req.Buyer,
		Description: req.Description,
		Items:       req.Items,
		Amount:      req.Amount,
		Currency:    orders.DefaultCurrency,
		Status:      orders.StatusPending,
		Method:      req.Method,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	switch req.Method {
	case orders.MethodQRIS:
		intent, err := s.Gateway.CreateQRIS(ctx, req.Amount, req.ReferenceID, req.Description)
		if err != nil {
			return nil, err
		}
		tx.GatewayPaymentID = intent.ID
		tx.QRString = intent.QRString
		tx.ExpiresAt = intent.ExpiresAt
	case orders.MethodVirtualAccount:
		intent, err := s.Gateway.CreateVirtualAccount(ctx, req.Amount, req.ReferenceID, req.BankCode, req.Buyer.Name)
		if err != nil {
			return nil, err
		}
		tx.GatewayPaymentID = intent.ID
		tx.AccountNumber = intent.AccountNumber
		tx.BankCode = intent.BankCode
		tx.ExpiresAt = intent.ExpiresAt
	}
	return tx, nil
}
