package docstore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/ariefcatur/go-storefront/internal/orders"
)

// Transactions lays out the two indices as transactions/{ref} and
// buyers/{buyer}/transactions/{ref}.
type Transactions struct {
	Client *firestore.Client
}

var _ orders.TransactionStore = Transactions{}

func (s Transactions) global(ref string) *firestore.DocumentRef {
	return s.Client.Collection(colTransactions).Doc(ref)
}

func (s Transactions) buyer(buyerID, ref string) *firestore.DocumentRef {
	return s.Client.Collection(colBuyers).Doc(buyerID).Collection(colTransactions).Doc(ref)
}

func (s Transactions) PutGlobal(ctx context.Context, tx orders.Transaction) error {
	return s.put(ctx, s.global(tx.ReferenceID), tx)
}

func (s Transactions) PutBuyer(ctx context.Context, tx orders.Transaction) error {
	if tx.BuyerID == "" {
		return orders.Invalid("buyerId", "is required for the per-buyer index")
	}
	return s.put(ctx, s.buyer(tx.BuyerID, tx.ReferenceID), tx)
}

func (s Transactions) put(ctx context.Context, ref *firestore.DocumentRef, tx orders.Transaction) error {
	doc, err := transactionDoc(tx)
	if err != nil {
		return err
	}
	_, err = ref.Set(ctx, doc)
	return err
}

func (s Transactions) Get(ctx context.Context, referenceID string) (*orders.Transaction, error) {
	return s.get(ctx, s.global(referenceID))
}

func (s Transactions) GetBuyer(ctx context.Context, buyerID, referenceID string) (*orders.Transaction, error) {
	return s.get(ctx, s.buyer(buyerID, referenceID))
}

func (s Transactions) get(ctx context.Context, ref *firestore.DocumentRef) (*orders.Transaction, error) {
	snap, err := ref.Get(ctx)
	if notFound(err) {
		return nil, orders.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeTransaction(snap.Data())
}

func (s Transactions) MergeGlobal(ctx context.Context, referenceID string, p orders.StatusPatch) error {
	return s.merge(ctx, s.global(referenceID), p)
}

func (s Transactions) MergeBuyer(ctx context.Context, buyerID, referenceID string, p orders.StatusPatch) error {
	return s.merge(ctx, s.buyer(buyerID, referenceID), p)
}

// merge updates the callback-owned fields inside a Firestore transaction so
// the Expect check and the write see the same document version.
func (s Transactions) merge(ctx context.Context, ref *firestore.DocumentRef, p orders.StatusPatch) error {
	return s.Client.RunTransaction(ctx, func(ctx context.Context, t *firestore.Transaction) error {
		snap, err := t.Get(ref)
		if notFound(err) {
			return orders.ErrNotFound
		}
		if err != nil {
			return err
		}
		if p.Expect != "" {
			cur, _ := snap.Data()["status"].(string)
			if orders.Status(cur) != p.Expect {
				return orders.ErrStaleWrite
			}
		}
		return t.Update(ref, patchUpdates(p))
	})
}

func patchUpdates(p orders.StatusPatch) []firestore.Update {
	ups := []firestore.Update{
		{Path: "status", Value: string(p.Status)},
		{Path: "updatedAt", Value: p.UpdatedAt.UTC()},
	}
	if p.GatewayPaymentID != "" {
		ups = append(ups, firestore.Update{Path: "gatewayPaymentId", Value: p.GatewayPaymentID})
	}
	return ups
}

func (s Transactions) ListByBuyer(ctx context.Context, buyerID string) ([]orders.Transaction, error) {
	snaps, err := s.Client.Collection(colBuyers).Doc(buyerID).Collection(colTransactions).
		OrderBy("createdAt", firestore.Desc).Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	out := make([]orders.Transaction, 0, len(snaps))
	for _, snap := range snaps {
		tx, err := decodeTransaction(snap.Data())
		if err != nil {
			return nil, err
		}
		out = append(out, *tx)
	}
	return out, nil
}
