package orders

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeOrder parses a stored handoff order document. Every "field might be
// missing" rule for orders lives here and nowhere else.
func DecodeOrder(doc []byte) (*Order, error) {
	var o Order
	if err := json.Unmarshal(doc, &o); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if o.ID == "" || o.BuyerID == "" {
		return nil, fmt.Errorf("%w: order without id or buyer", ErrCorruptRecord)
	}
	if o.Mode == "" {
		o.Mode = ModeHandoff
	}
	if o.Status == "" {
		o.Status = StatusPending
	}
	if o.Currency == "" {
		o.Currency = DefaultCurrency
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = o.CreatedAt
	}
	return &o, nil
}

// ValidateTransaction rejects records that cannot have come from checkout.
func ValidateTransaction(tx Transaction) error {
	switch {
	case strings.TrimSpace(tx.ReferenceID) == "":
		return fmt.Errorf("%w: transaction without reference id", ErrCorruptRecord)
	case tx.Status == "":
		return fmt.Errorf("%w: transaction %s without status", ErrCorruptRecord, tx.ReferenceID)
	case tx.Method != MethodQRIS && tx.Method != MethodVirtualAccount:
		return fmt.Errorf("%w: transaction %s has method %q", ErrCorruptRecord, tx.ReferenceID, tx.Method)
	case tx.Amount.IsNegative():
		return fmt.Errorf("%w: transaction %s has negative amount", ErrCorruptRecord, tx.ReferenceID)
	}
	return nil
}

const DefaultCurrency = "IDR"
