// Package ordertest provides in-memory order and transaction stores with
// failure injection, plus recording event fakes.
package ordertest

import (
	"context"
	"sort"
	"sync"

	"github.com/ariefcatur/go-storefront/internal/orders"
)

type buyerKey struct{ buyer, ref string }

// Transactions is an in-memory orders.TransactionStore. Setting one of the
// Fail* fields makes the matching call return that error without writing.
type Transactions struct {
	mu     sync.Mutex
	global map[string]orders.Transaction
	buyer  map[buyerKey]orders.Transaction

	FailPutGlobal   error
	FailPutBuyer    error
	FailGet         error
	FailMergeGlobal error
	FailMergeBuyer  error

	// Writes counts successful PutGlobal/PutBuyer/Merge* calls.
	Writes int
}

var _ orders.TransactionStore = (*Transactions)(nil)

func NewTransactions() *Transactions {
	return &Transactions{
		global: map[string]orders.Transaction{},
		buyer:  map[buyerKey]orders.Transaction{},
	}
}

func (s *Transactions) PutGlobal(_ context.Context, tx orders.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailPutGlobal != nil {
		return s.FailPutGlobal
	}
	s.global[tx.ReferenceID] = clone(tx)
	s.Writes++
	return nil
}

func (s *Transactions) PutBuyer(_ context.Context, tx orders.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailPutBuyer != nil {
		return s.FailPutBuyer
	}
	if tx.BuyerID == "" {
		return orders.Invalid("buyerId", "is required for the per-buyer index")
	}
	s.buyer[buyerKey{tx.BuyerID, tx.ReferenceID}] = clone(tx)
	s.Writes++
	return nil
}

func (s *Transactions) Get(_ context.Context, ref string) (*orders.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailGet != nil {
		return nil, s.FailGet
	}
	tx, ok := s.global[ref]
	if !ok {
		return nil, orders.ErrNotFound
	}
	out := clone(tx)
	return &out, nil
}

func (s *Transactions) GetBuyer(_ context.Context, buyerID, ref string) (*orders.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.buyer[buyerKey{buyerID, ref}]
	if !ok {
		return nil, orders.ErrNotFound
	}
	out := clone(tx)
	return &out, nil
}

func (s *Transactions) MergeGlobal(_ context.Context, ref string, p orders.StatusPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailMergeGlobal != nil {
		return s.FailMergeGlobal
	}
	tx, ok := s.global[ref]
	if !ok {
		return orders.ErrNotFound
	}
	if p.Expect != "" && tx.Status != p.Expect {
		return orders.ErrStaleWrite
	}
	p.Apply(&tx)
	s.global[ref] = tx
	s.Writes++
	return nil
}

func (s *Transactions) MergeBuyer(_ context.Context, buyerID, ref string, p orders.StatusPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailMergeBuyer != nil {
		return s.FailMergeBuyer
	}
	k := buyerKey{buyerID, ref}
	tx, ok := s.buyer[k]
	if !ok {
		return orders.ErrNotFound
	}
	if p.Expect != "" && tx.Status != p.Expect {
		return orders.ErrStaleWrite
	}
	p.Apply(&tx)
	s.buyer[k] = tx
	s.Writes++
	return nil
}

func (s *Transactions) ListByBuyer(_ context.Context, buyerID string) ([]orders.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []orders.Transaction
	for k, tx := range s.buyer {
		if k.buyer == buyerID {
			out = append(out, clone(tx))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// DeleteBuyer drops a per-buyer copy, simulating a lost index write.
func (s *Transactions) DeleteBuyer(buyerID, ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buyer, buyerKey{buyerID, ref})
}

// GlobalCount reports how many global records exist.
func (s *Transactions) GlobalCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.global)
}

func clone(tx orders.Transaction) orders.Transaction {
	if tx.Items != nil {
		tx.Items = append([]orders.LineItem(nil), tx.Items...)
	}
	return tx
}

// Orders is an in-memory orders.OrderStore.
type Orders struct {
	mu   sync.Mutex
	byID map[buyerKey]orders.Order

	FailCreate error
}

var _ orders.OrderStore = (*Orders)(nil)

func NewOrders() *Orders { return &Orders{byID: map[buyerKey]orders.Order{}} }

func (s *Orders) Create(_ context.Context, o orders.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailCreate != nil {
		return s.FailCreate
	}
	s.byID[buyerKey{o.BuyerID, o.ID}] = cloneOrder(o)
	return nil
}

func (s *Orders) Get(_ context.Context, buyerID, orderID string) (*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.byID[buyerKey{buyerID, orderID}]
	if !ok {
		return nil, orders.ErrNotFound
	}
	out := cloneOrder(o)
	return &out, nil
}

func (s *Orders) Update(_ context.Context, buyerID, orderID string, fn func(*orders.Order) error) (*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := buyerKey{buyerID, orderID}
	o, ok := s.byID[k]
	if !ok {
		return nil, orders.ErrNotFound
	}
	o = cloneOrder(o)
	if err := fn(&o); err != nil {
		return nil, err
	}
	s.byID[k] = o
	out := cloneOrder(o)
	return &out, nil
}

func (s *Orders) ListByBuyer(_ context.Context, buyerID string) ([]orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []orders.Order
	for k, o := range s.byID {
		if k.buyer == buyerID {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func cloneOrder(o orders.Order) orders.Order {
	if o.Items != nil {
		o.Items = append([]orders.LineItem(nil), o.Items...)
	}
	return o
}
