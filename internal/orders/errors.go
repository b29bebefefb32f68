package orders

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrUnknownReference       = errors.New("unknown transaction reference")
	ErrValidation             = errors.New("validation failed")
	ErrSubtotalMismatch       = errors.New("subtotal does not match items")
	ErrMissingMerchantContact = errors.New("merchant has no usable contact phone")
	ErrOutOfStock             = errors.New("insufficient stock")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrDuplicateCheckout      = errors.New("reference id already used")
	ErrCheckoutInProgress     = errors.New("another checkout is in progress")
	ErrCorruptRecord          = errors.New("stored record is malformed")
	ErrStaleWrite             = errors.New("record changed since it was read")
	ErrForbidden              = errors.New("forbidden")
)

// ValidationError names the request field that was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// PartialWriteWarning reports that the global transaction record was written
// but its per-buyer copy was not. It is logged, never returned as a failure.
type PartialWriteWarning struct {
	ReferenceID string
	BuyerID     string
	Err         error
}

func (w *PartialWriteWarning) Error() string {
	return fmt.Sprintf("per-buyer index write failed for %s/%s: %v", w.BuyerID, w.ReferenceID, w.Err)
}

func (w *PartialWriteWarning) Unwrap() error { return w.Err }
