// Package cart holds a buyer's pending selection. A cart only ever contains
// products of a single merchant.
package cart

import (
	"fmt"

	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/shopspring/decimal"
)

type Line struct {
	Product  catalog.ProductSnapshot `json:"product"`
	Quantity int                     `json:"quantity"`
}

func (l Line) Subtotal() decimal.Decimal {
	return l.Product.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// CrossMerchantCartError is returned when a product from another merchant is
// added to a non-empty cart. The cart is left unchanged.
type CrossMerchantCartError struct {
	Existing string
	Incoming string
}

func (e *CrossMerchantCartError) Error() string {
	return fmt.Sprintf("cart holds items from merchant %s, cannot add items from %s", e.Existing, e.Incoming)
}

// Cart is a value; copies share nothing once mutated through its methods.
type Cart struct {
	lines []Line
}

func New(lines ...Line) Cart {
	var c Cart
	for _, l := range lines {
		if l.Quantity > 0 {
			c.lines = append(c.lines, l)
		}
	}
	return c
}

func (c Cart) Lines() []Line { return append([]Line(nil), c.lines...) }

func (c Cart) Empty() bool { return len(c.lines) == 0 }

// MerchantID is empty for an empty cart.
func (c Cart) MerchantID() string {
	if len(c.lines) == 0 {
		return ""
	}
	return c.lines[0].Product.MerchantID
}

func (c *Cart) AddItem(p catalog.ProductSnapshot, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("quantity must be positive, got %d", qty)
	}
	if m := c.MerchantID(); m != "" && m != p.MerchantID {
		return &CrossMerchantCartError{Existing: m, Incoming: p.MerchantID}
	}
	for i := range c.lines {
		if c.lines[i].Product.ID == p.ID {
			c.lines[i].Quantity += qty
			return nil
		}
	}
	c.lines = append(c.lines, Line{Product: p, Quantity: qty})
	return nil
}

// UpdateQuantity sets the quantity of a line; qty <= 0 removes it.
func (c *Cart) UpdateQuantity(productID string, qty int) {
	if qty <= 0 {
		c.RemoveItem(productID)
		return
	}
	for i := range c.lines {
		if c.lines[i].Product.ID == productID {
			c.lines[i].Quantity = qty
			return
		}
	}
}

func (c *Cart) RemoveItem(productID string) {
	for i := range c.lines {
		if c.lines[i].Product.ID == productID {
			c.lines = append(c.lines[:i:i], c.lines[i+1:]...)
			return
		}
	}
}

func (c *Cart) Clear() { c.lines = nil }

func (c Cart) TotalItems() int {
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

func (c Cart) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Merge combines the device copy with the buyer's stored copy. Products in
// both keep the local quantity; remote-only products are adopted, unless
// they belong to a different merchant than the local lines.
func Merge(local, remote Cart) Cart {
	out := New(local.lines...)
	for _, r := range remote.lines {
		if out.has(r.Product.ID) {
			continue
		}
		if m := out.MerchantID(); m != "" && m != r.Product.MerchantID {
			continue
		}
		out.lines = append(out.lines, r)
	}
	return out
}

func (c Cart) has(productID string) bool {
	for _, l := range c.lines {
		if l.Product.ID == productID {
			return true
		}
	}
	return false
}
