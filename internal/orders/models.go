package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type CheckoutMode string

const (
	ModeGateway CheckoutMode = "gateway"
	ModeHandoff CheckoutMode = "manual-handoff"
)

type PaymentMethod string

const (
	MethodQRIS           PaymentMethod = "qris"
	MethodVirtualAccount PaymentMethod = "virtual-account"
)

// Actor identifies who performed a manual order action.
type Actor string

const (
	ActorBuyer    Actor = "user"
	ActorMerchant Actor = "merchant"
)

func (a Actor) Valid() bool { return a == ActorBuyer || a == ActorMerchant }

// LineItem is copied into the order at checkout so later catalog edits do
// not rewrite history.
type LineItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type Customer struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Order is the manual-handoff variant: the buyer settles with the merchant
// over WhatsApp and both sides confirm independently.
type Order struct {
	ID      string       `json:"id"`
	BuyerID string       `json:"buyerId"`
	Mode    CheckoutMode `json:"mode"`

	MerchantID    string `json:"merchantId"`
	MerchantName  string `json:"merchantName,omitempty"`
	MerchantPhone string `json:"merchantPhone,omitempty"`

	Items    []LineItem      `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Currency string          `json:"currency"`
	Status   Status          `json:"status"`

	BuyerConfirmed      bool       `json:"buyerConfirmed"`
	MerchantConfirmed   bool       `json:"merchantConfirmed"`
	BuyerConfirmedAt    *time.Time `json:"buyerConfirmedAt,omitempty"`
	MerchantConfirmedAt *time.Time `json:"merchantConfirmedAt,omitempty"`

	HandoffMessage string     `json:"handoffMessage,omitempty"`
	HandoffURL     string     `json:"handoffUrl,omitempty"`
	HandoffSentAt  *time.Time `json:"handoffSentAt,omitempty"`

	Notes        string `json:"notes,omitempty"`
	CancelReason string `json:"cancelReason,omitempty"`
	CancelledBy  Actor  `json:"cancelledBy,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// Transaction is the gateway-payment variant. It lives in the global index
// keyed by ReferenceID and, when BuyerID is set, in the per-buyer index too.
type Transaction struct {
	ReferenceID      string       `json:"referenceId"`
	GatewayPaymentID string       `json:"gatewayPaymentId"`
	Mode             CheckoutMode `json:"mode"`
	BuyerID          string       `json:"buyerId,omitempty"`
	Customer         Customer     `json:"customer"`
	Description      string       `json:"description,omitempty"`
	Items            []LineItem   `json:"items,omitempty"`

	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Status   Status          `json:"status"`
	Method   PaymentMethod   `json:"method"`

	QRString      string `json:"qrString,omitempty"`
	BankCode      string `json:"bankCode,omitempty"`
	AccountNumber string `json:"accountNumber,omitempty"`

	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// StatusPatch is the only shape a gateway callback may write: every other
// field on the stored transaction is left as it is.
type StatusPatch struct {
	Status           Status
	GatewayPaymentID string
	UpdatedAt        time.Time

	// Expect, when set, makes the merge conditional on the stored status;
	// a mismatch yields ErrStaleWrite and changes nothing.
	Expect Status
}

// Apply merges p into t the same way the stores do.
func (p StatusPatch) Apply(t *Transaction) {
	t.Status = p.Status
	if p.GatewayPaymentID != "" {
		t.GatewayPaymentID = p.GatewayPaymentID
	}
	t.UpdatedAt = p.UpdatedAt
}

// SumSubtotals adds the subtotal of every item.
func SumSubtotals(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal)
	}
	return total
}
