package status

import (
	"errors"
	"fmt"
)

// Payment statuses shared by the gateway adapter, the webhook reconciler
// and the cancellation flow.
const (
	Paid     = "paid"
	Pending  = "pending"
	Expired  = "expired"
	Failed   = "failed"
	Refunded = "refunded"
	Canceled = "canceled"
)

var (
	ErrValidation       = errors.New("payment: invalid request")
	ErrCapacityExceeded = errors.New("event: capacity exceeded")
	ErrQuotaExceeded    = errors.New("referral: usage quota exceeded")
	ErrNotFound         = errors.New("order: not found")
	ErrSignatureInvalid = errors.New("callback: invalid signature")
)

// IsTerminal reports whether s is a terminal status for side-effect purposes.
func IsTerminal(s string) bool {
	switch s {
	case Paid, Failed, Expired, Canceled, Refunded:
		return true
	}
	return false
}

// GatewayError wraps a failed call to the payment provider. The provider
// detail is kept so handlers can attach it to the response.
type GatewayError struct {
	Op     string
	Detail string
	Err    error
}

func (e *GatewayError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("gateway: %s: %s", e.Op, e.Detail)
	}
	return fmt.Sprintf("gateway: %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// PersistenceError marks a store write that failed after an external side
// effect (gateway charge or cancel) already happened. The external action is
// left standing and must be reconciled manually.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
