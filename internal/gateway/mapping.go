package gateway

import (
	"strings"

	"ticket-pay/internal/status"
)

// MapStatus translates the provider status vocabulary to the internal enum.
// Unknown values pass through lower-cased so the reconciler stays total over
// whatever the provider starts sending.
func MapStatus(providerStatus string) string {
	switch strings.ToLower(strings.TrimSpace(providerStatus)) {
	case "paid", "success", "settled", "settlement", "capture", "completed":
		return status.Paid
	case "unpaid", "pending", "process", "on_process", "waiting_payment":
		return status.Pending
	case "expired", "expire":
		return status.Expired
	case "failed", "failure", "deny", "error":
		return status.Failed
	case "refund", "refunded", "partial_refund":
		return status.Refunded
	case "canceled", "cancelled", "cancel", "void":
		return status.Canceled
	case "":
		return ""
	default:
		return strings.ToLower(strings.TrimSpace(providerStatus))
	}
}
