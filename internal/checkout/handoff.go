package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/shopspring/decimal"
)

type ItemRequest struct {
	ProductID string
	Quantity  int
}

type HandoffRequest struct {
	Buyer orders.Customer
	// Items are resolved against the catalog. When empty, the stored cart
	// of Cart is used instead.
	Items    []ItemRequest
	Subtotal *decimal.Decimal // optional client total, checked when set
	Notes    string
	Cart     *cart.Owner
}

// CreateHandoffOrder records a pending order to be settled with the
// merchant over WhatsApp and returns it with its chat deep link.
func (s *Service) CreateHandoffOrder(ctx context.Context, req HandoffRequest) (*orders.Order, error) {
	if strings.TrimSpace(req.Buyer.ID) == "" {
		return nil, orders.Invalid("buyerId", "is required")
	}
	req.Notes = strings.TrimSpace(req.Notes)
	if len([]rune(req.Notes)) > maxNotes {
		return nil, orders.Invalid("notes", fmt.Sprintf("must be at most %d characters", maxNotes))
	}

	unlock, err := s.lock(ctx, req.Buyer.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	c, err := s.resolveCart(ctx, req)
	if err != nil {
		return nil, err
	}
	if c.Empty() {
		return nil, orders.Invalid("items", "must not be empty")
	}

	merchant, err := s.Catalog.GetMerchant(ctx, c.MerchantID())
	if err != nil {
		return nil, err
	}
	if merchant == nil {
		return nil, fmt.Errorf("merchant %s: %w", c.MerchantID(), orders.ErrNotFound)
	}
	phone, err := NormalizePhone(merchant.Phone)
	if err != nil {
		return nil, err
	}

	items := make([]orders.LineItem, 0, len(c.Lines()))
	for _, l := range c.Lines() {
		items = append(items, orders.LineItem{
			ProductID: l.Product.ID,
			Name:      l.Product.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.Product.UnitPrice,
			Subtotal:  l.Subtotal(),
		})
	}
	subtotal := c.TotalPrice()
	if req.Subtotal != nil && !withinTolerance(*req.Subtotal, subtotal) {
		return nil, fmt.Errorf("%w: cart totals %s, order says %s", orders.ErrSubtotalMismatch, subtotal, *req.Subtotal)
	}

	now := s.now()
	o := orders.Order{
		ID:            s.IDs.Generate().String(),
		BuyerID:       req.Buyer.ID,
		Mode:          orders.ModeHandoff,
		MerchantID:    merchant.ID,
		MerchantName:  merchant.Name,
		MerchantPhone: phone,
		Items:         items,
		Subtotal:      subtotal,
		Currency:      orders.DefaultCurrency,
		Status:        orders.StatusPending,
		Notes:         req.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if s.HandoffTTL > 0 {
		exp := now.Add(s.HandoffTTL)
		o.ExpiresAt = &exp
	}
	name := req.Buyer.Name
	if name == "" {
		name = req.Buyer.Email
	}
	o.HandoffMessage = OrderMessage(o, name)
	o.HandoffURL = ChatLink(phone, o.HandoffMessage)

	if err := s.Orders.Create(ctx, o); err != nil {
		return nil, err
	}
	s.publish(ctx, orders.TopicHandoffOrderCreated, orders.EventHandoffOrderCreated, o.ID, o.BuyerID, handoffPayload(o))
	s.clearCart(ctx, req.Cart)
	return &o, nil
}

// resolveCart prices every line from the catalog, never from the client,
// and runs it through a Cart so the single-merchant rule holds.
func (s *Service) resolveCart(ctx context.Context, req HandoffRequest) (cart.Cart, error) {
	wanted := req.Items
	if len(wanted) == 0 && s.Carts != nil && req.Cart != nil {
		stored, err := s.Carts.Load(ctx, *req.Cart)
		if err != nil {
			return cart.Cart{}, err
		}
		for _, l := range stored.Lines() {
			wanted = append(wanted, ItemRequest{ProductID: l.Product.ID, Quantity: l.Quantity})
		}
	}

	var c cart.Cart
	for i, it := range wanted {
		field := fmt.Sprintf("items[%d]", i)
		if it.Quantity <= 0 {
			return cart.Cart{}, orders.Invalid(field+".quantity", "must be at least 1")
		}
		p, err := s.Catalog.GetProduct(ctx, it.ProductID)
		if err != nil {
			return cart.Cart{}, err
		}
		if p == nil {
			return cart.Cart{}, orders.Invalid(field+".productId", "is not available")
		}
		if !p.PriceVisible {
			return cart.Cart{}, orders.Invalid(field+".productId", "is not sold online")
		}
		if err := c.AddItem(*p, it.Quantity); err != nil {
			return cart.Cart{}, err
		}
	}
	for _, l := range c.Lines() {
		if !l.Product.HasStock(l.Quantity) {
			return cart.Cart{}, fmt.Errorf("%w: %s", orders.ErrOutOfStock, l.Product.Name)
		}
	}
	return c, nil
}

func handoffPayload(o orders.Order) orders.HandoffOrderPayload {
	return orders.HandoffOrderPayload{
		OrderID:    o.ID,
		BuyerID:    o.BuyerID,
		MerchantID: o.MerchantID,
		Status:     o.Status,
		Subtotal:   o.Subtotal.String(),
	}
}
