package docstore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/ariefcatur/go-storefront/internal/orders"
)

// Orders keeps handoff orders at buyers/{buyer}/orders/{order}.
type Orders struct {
	Client *firestore.Client
}

var _ orders.OrderStore = Orders{}

func (s Orders) ref(buyerID, orderID string) *firestore.DocumentRef {
	return s.Client.Collection(colBuyers).Doc(buyerID).Collection(colOrders).Doc(orderID)
}

func (s Orders) Create(ctx context.Context, o orders.Order) error {
	doc, err := orderDoc(o)
	if err != nil {
		return err
	}
	_, err = s.ref(o.BuyerID, o.ID).Create(ctx, doc)
	return err
}

func (s Orders) Get(ctx context.Context, buyerID, orderID string) (*orders.Order, error) {
	snap, err := s.ref(buyerID, orderID).Get(ctx)
	if notFound(err) {
		return nil, orders.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeOrder(snap.Data())
}

func (s Orders) Update(ctx context.Context, buyerID, orderID string, fn func(*orders.Order) error) (*orders.Order, error) {
	ref := s.ref(buyerID, orderID)
	var out *orders.Order
	err := s.Client.RunTransaction(ctx, func(ctx context.Context, t *firestore.Transaction) error {
		snap, err := t.Get(ref)
		if notFound(err) {
			return orders.ErrNotFound
		}
		if err != nil {
			return err
		}
		o, err := decodeOrder(snap.Data())
		if err != nil {
			return err
		}
		if err := fn(o); err != nil {
			return err
		}
		doc, err := orderDoc(*o)
		if err != nil {
			return err
		}
		out = o
		return t.Set(ref, doc)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s Orders) ListByBuyer(ctx context.Context, buyerID string) ([]orders.Order, error) {
	snaps, err := s.Client.Collection(colBuyers).Doc(buyerID).Collection(colOrders).
		OrderBy("createdAt", firestore.Desc).Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	out := make([]orders.Order, 0, len(snaps))
	for _, snap := range snaps {
		o, err := decodeOrder(snap.Data())
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, nil
}
