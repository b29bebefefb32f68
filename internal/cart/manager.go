package cart

import (
	"context"
	"strings"

	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/zeromicro/go-zero/core/logx"
)

// Owner addresses a cart: the device slot always, the buyer copy only while
// someone is signed in.
type Owner struct {
	DeviceID string
	BuyerID  string
}

func (o Owner) validate() error {
	if strings.TrimSpace(o.DeviceID) == "" && strings.TrimSpace(o.BuyerID) == "" {
		return orders.Invalid("X-Device-ID", "is required")
	}
	return nil
}

type Manager struct {
	Catalog catalog.Reader
	Device  Store
	Buyers  Store // optional
}

// Load returns the device cart, or the buyer's copy when the request has no
// device slot.
func (m *Manager) Load(ctx context.Context, o Owner) (Cart, error) {
	if err := o.validate(); err != nil {
		return Cart{}, err
	}
	if o.DeviceID == "" {
		if m.Buyers == nil {
			return Cart{}, orders.Invalid("X-Device-ID", "is required")
		}
		return m.Buyers.Load(ctx, o.BuyerID)
	}
	return m.Device.Load(ctx, o.DeviceID)
}

func (m *Manager) Add(ctx context.Context, o Owner, productID string, qty int) (Cart, error) {
	if qty <= 0 {
		return Cart{}, orders.Invalid("quantity", "must be at least 1")
	}
	p, err := m.Catalog.GetProduct(ctx, productID)
	if err != nil {
		return Cart{}, err
	}
	if p == nil {
		return Cart{}, orders.ErrNotFound
	}
	if !p.PriceVisible {
		return Cart{}, orders.Invalid("productId", "is not sold online")
	}
	c, err := m.Load(ctx, o)
	if err != nil {
		return Cart{}, err
	}
	inCart := 0
	for _, l := range c.lines {
		if l.Product.ID == p.ID {
			inCart = l.Quantity
		}
	}
	if !p.HasStock(inCart + qty) {
		return Cart{}, orders.ErrOutOfStock
	}
	if err := c.AddItem(*p, qty); err != nil {
		return Cart{}, err
	}
	return c, m.persist(ctx, o, c)
}

func (m *Manager) Update(ctx context.Context, o Owner, productID string, qty int) (Cart, error) {
	c, err := m.Load(ctx, o)
	if err != nil {
		return Cart{}, err
	}
	c.UpdateQuantity(productID, qty)
	return c, m.persist(ctx, o, c)
}

func (m *Manager) Remove(ctx context.Context, o Owner, productID string) (Cart, error) {
	c, err := m.Load(ctx, o)
	if err != nil {
		return Cart{}, err
	}
	c.RemoveItem(productID)
	return c, m.persist(ctx, o, c)
}

func (m *Manager) Clear(ctx context.Context, o Owner) error {
	if err := o.validate(); err != nil {
		return err
	}
	return m.persist(ctx, o, Cart{})
}

// Attach merges the device cart with the buyer's stored cart (device wins)
// and writes the result back to both.
func (m *Manager) Attach(ctx context.Context, o Owner) (Cart, error) {
	if o.DeviceID == "" || o.BuyerID == "" || m.Buyers == nil {
		return Cart{}, orders.Invalid("owner", "attach needs both a device and a buyer")
	}
	local, err := m.Device.Load(ctx, o.DeviceID)
	if err != nil {
		return Cart{}, err
	}
	remote, err := m.Buyers.Load(ctx, o.BuyerID)
	if err != nil {
		return Cart{}, err
	}
	merged := Merge(local, remote)
	if err := m.Device.Save(ctx, o.DeviceID, merged); err != nil {
		return Cart{}, err
	}
	if err := m.Buyers.Save(ctx, o.BuyerID, merged); err != nil {
		return Cart{}, err
	}
	return merged, nil
}

// persist writes the device slot first. The buyer mirror is best effort.
func (m *Manager) persist(ctx context.Context, o Owner, c Cart) error {
	if o.DeviceID != "" {
		if err := m.Device.Save(ctx, o.DeviceID, c); err != nil {
			return err
		}
	}
	if o.BuyerID == "" || m.Buyers == nil {
		return nil
	}
	if err := m.Buyers.Save(ctx, o.BuyerID, c); err != nil {
		if o.DeviceID == "" {
			return err
		}
		logx.WithContext(ctx).Errorw("cart mirror write failed",
			logx.Field("buyerId", o.BuyerID),
			logx.Field("err", err.Error()),
		)
	}
	return nil
}
