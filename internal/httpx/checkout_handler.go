package httpx

import (
	"net/http"
	"time"

	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/ariefcatur/go-storefront/internal/checkout"
	"github.com/ariefcatur/go-storefront/internal/identity"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

const (
	modeGateway = "gateway"
	modeManual  = "manual"
)

type checkoutHandler struct {
	Checkout *checkout.Service
}

type customerReq struct {
	Name  string `json:"name" validate:"max=120"`
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone" validate:"max=32"`
}

type itemReq struct {
	ProductID string           `json:"productId" validate:"required"`
	Name      string           `json:"name"`
	Quantity  int              `json:"quantity" validate:"gt=0"`
	UnitPrice decimal.Decimal  `json:"unitPrice"`
	Subtotal  *decimal.Decimal `json:"subtotal"`
}

type checkoutReq struct {
	Mode          string           `json:"mode" validate:"required,oneof=gateway manual"`
	Amount        *decimal.Decimal `json:"amount"`
	ReferenceID   string           `json:"referenceId" validate:"max=64"`
	PaymentMethod string           `json:"paymentMethod" validate:"omitempty,oneof=qris virtual-account"`
	BankCode      string           `json:"bankCode" validate:"max=16"`
	Description   string           `json:"description" validate:"max=255"`
	Customer      customerReq      `json:"customer"`
	Items         []itemReq        `json:"items" validate:"dive"`
	Subtotal      *decimal.Decimal `json:"subtotal"`
	Notes         string           `json:"notes" validate:"max=500"`
}

type paymentDisplay struct {
	Method        orders.PaymentMethod `json:"method"`
	QRString      string               `json:"qrString,omitempty"`
	AccountNumber string               `json:"accountNumber,omitempty"`
	BankCode      string               `json:"bankCode,omitempty"`
	ExpiresAt     *time.Time           `json:"expiresAt,omitempty"`
}

type checkoutResp struct {
	TransactionID    string          `json:"transactionId,omitempty"`
	GatewayPaymentID string          `json:"gatewayPaymentId,omitempty"`
	PaymentDisplay   *paymentDisplay `json:"paymentDisplay,omitempty"`

	OrderID        string     `json:"orderId,omitempty"`
	HandoffURL     string     `json:"handoffUrl,omitempty"`
	HandoffMessage string     `json:"handoffMessage,omitempty"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`

	Amount decimal.Decimal `json:"amount"`
	Status orders.Status   `json:"status"`
}

func (h *checkoutHandler) register(r chi.Router) {
	r.Post("/checkout", h.create)
}

func (h *checkoutHandler) create(w http.ResponseWriter, r *http.Request) {
	var req checkoutReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	buyer := orders.Customer{Name: req.Customer.Name, Email: req.Customer.Email, Phone: req.Customer.Phone}
	if u, ok := identity.FromContext(r.Context()); ok {
		buyer.ID = u.ID
		if buyer.Name == "" {
			buyer.Name = u.DisplayName
		}
		if buyer.Email == "" {
			buyer.Email = u.Email
		}
	}
	var owner *cart.Owner
	if o := cartOwner(r); o.DeviceID != "" || o.BuyerID != "" {
		owner = &o
	}

	ctx := withTrace(r)
	switch req.Mode {
	case modeGateway:
		if req.Amount == nil {
			writeError(w, r, orders.Invalid("amount", "is required"))
			return
		}
		tx, err := h.Checkout.CreateGatewayOrder(ctx, checkout.GatewayRequest{
			ReferenceID: req.ReferenceID,
			Amount:      *req.Amount,
			Method:      orders.PaymentMethod(req.PaymentMethod),
			BankCode:    req.BankCode,
			Description: req.Description,
			Buyer:       buyer,
			Items:       lineItems(req.Items),
			Cart:        owner,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, checkoutResp{
			TransactionID:    tx.ReferenceID,
			GatewayPaymentID: tx.GatewayPaymentID,
			PaymentDisplay: &paymentDisplay{
				Method:        tx.Method,
				QRString:      tx.QRString,
				AccountNumber: tx.AccountNumber,
				BankCode:      tx.BankCode,
				ExpiresAt:     tx.ExpiresAt,
			},
			Amount: tx.Amount,
			Status: tx.Status,
		})

	case modeManual:
		if buyer.ID == "" {
			writeError(w, r, identity.ErrMissingToken)
			return
		}
		items := make([]checkout.ItemRequest, 0, len(req.Items))
		for _, it := range req.Items {
			items = append(items, checkout.ItemRequest{ProductID: it.ProductID, Quantity: it.Quantity})
		}
		o, err := h.Checkout.CreateHandoffOrder(ctx, checkout.HandoffRequest{
			Buyer:    buyer,
			Items:    items,
			Subtotal: req.Subtotal,
			Notes:    req.Notes,
			Cart:     owner,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, checkoutResp{
			OrderID:        o.ID,
			HandoffURL:     o.HandoffURL,
			HandoffMessage: o.HandoffMessage,
			ExpiresAt:      o.ExpiresAt,
			Amount:         o.Subtotal,
			Status:         o.Status,
		})
	}
}

// lineItems keeps the client's audit lines; an absent line subtotal is
// derived from quantity and unit price, an explicit zero is kept.
func lineItems(in []itemReq) []orders.LineItem {
	out := make([]orders.LineItem, 0, len(in))
	for _, it := range in {
		sub := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		if it.Subtotal != nil {
			sub = *it.Subtotal
		}
		out = append(out, orders.LineItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  sub,
		})
	}
	return out
}
