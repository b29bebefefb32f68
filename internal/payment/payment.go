// Package payment is the contract checkout uses to open hosted payments.
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var ErrGatewayTimeout = errors.New("payment gateway timed out")

// GatewayError is a failed call the gateway answered, or could not be
// reached for a reason other than a timeout.
type GatewayError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment gateway: %v", e.Err)
	}
	return fmt.Sprintf("payment gateway: status %d: %s", e.StatusCode, e.Body)
}

func (e *GatewayError) Unwrap() error { return e.Err }

type QRISIntent struct {
	ID        string
	QRString  string
	ExpiresAt *time.Time
}

type VAIntent struct {
	ID            string
	AccountNumber string
	BankCode      string
	ExpiresAt     *time.Time
}

type Gateway interface {
	CreateQRIS(ctx context.Context, amount decimal.Decimal, referenceID, description string) (*QRISIntent, error)
	CreateVirtualAccount(ctx context.Context, amount decimal.Decimal, referenceID, bankCode, payerName string) (*VAIntent, error)
}

// Method mirrors the checkout payment methods without importing orders.
type Method string

const (
	MethodQRIS           Method = "qris"
	MethodVirtualAccount Method = "virtual-account"
)

// StatusChecker reads the current gateway-side status of an intent.
type StatusChecker interface {
	PaymentStatus(ctx context.Context, method Method, paymentID string) (string, error)
}
