package orders

import "context"

// TransactionStore keeps gateway transactions in two places: the global
// index addressed by reference id, and a per-buyer copy used for listings.
// The two writes are independent; callers decide what a half-done write means.
type TransactionStore interface {
	PutGlobal(ctx context.Context, tx Transaction) error
	PutBuyer(ctx context.Context, tx Transaction) error

	// Get returns ErrNotFound when the reference is unknown.
	Get(ctx context.Context, referenceID string) (*Transaction, error)
	GetBuyer(ctx context.Context, buyerID, referenceID string) (*Transaction, error)

	// MergeGlobal and MergeBuyer overwrite status, gateway payment id and
	// updatedAt only. A missing record yields ErrNotFound, never an insert;
	// a record whose status differs from p.Expect yields ErrStaleWrite.
	MergeGlobal(ctx context.Context, referenceID string, p StatusPatch) error
	MergeBuyer(ctx context.Context, buyerID, referenceID string, p StatusPatch) error

	// ListByBuyer reads the per-buyer index, newest first.
	ListByBuyer(ctx context.Context, buyerID string) ([]Transaction, error)
}

// OrderStore keeps manual-handoff orders under their buyer.
type OrderStore interface {
	Create(ctx context.Context, o Order) error
	Get(ctx context.Context, buyerID, orderID string) (*Order, error)
	// Update runs fn against the current order and stores the result unless
	// fn fails. Concurrent updates of one order are serialised.
	Update(ctx context.Context, buyerID, orderID string, fn func(*Order) error) (*Order, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]Order, error)
}
