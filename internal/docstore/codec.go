package docstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ariefcatur/go-storefront/internal/orders"
)

// toDoc flattens v through its JSON form so documents carry the same field
// names as the API. Timestamps listed in times are stored natively so that
// Firestore can order by them.
func toDoc(v any, times map[string]time.Time) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	for k, t := range times {
		m[k] = t.UTC()
	}
	return m, nil
}

func fromDoc(data map[string]any, out any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("%w: %v", orders.ErrCorruptRecord, err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("%w: %v", orders.ErrCorruptRecord, err)
	}
	return nil
}

func transactionDoc(tx orders.Transaction) (map[string]any, error) {
	if tx.Mode == "" {
		tx.Mode = orders.ModeGateway
	}
	return toDoc(tx, map[string]time.Time{"createdAt": tx.CreatedAt, "updatedAt": tx.UpdatedAt})
}

func decodeTransaction(data map[string]any) (*orders.Transaction, error) {
	var tx orders.Transaction
	if err := fromDoc(data, &tx); err != nil {
		return nil, err
	}
	tx.Mode = orders.ModeGateway
	if tx.Currency == "" {
		tx.Currency = orders.DefaultCurrency
	}
	if tx.UpdatedAt.IsZero() {
		tx.UpdatedAt = tx.CreatedAt
	}
	if err := orders.ValidateTransaction(tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func orderDoc(o orders.Order) (map[string]any, error) {
	return toDoc(o, map[string]time.Time{"createdAt": o.CreatedAt, "updatedAt": o.UpdatedAt})
}

func decodeOrder(data map[string]any) (*orders.Order, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", orders.ErrCorruptRecord, err)
	}
	return orders.DecodeOrder(b)
}
