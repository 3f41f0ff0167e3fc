package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ticket-pay/internal/gateway"
	"ticket-pay/internal/status"
	"ticket-pay/internal/store"
	"ticket-pay/models"
)

type CancelResult struct {
	Success   bool   `json:"success"`
	Status    string `json:"status"`
	Reference string `json:"reference,omitempty"`
	OrderID   string `json:"order_id"`
}

// CancelOrder converges a pending order out of pending. Paid orders are
// rejected; terminal orders return success without touching the gateway
// again; a failing gateway cancel degrades to a local state change with the
// error recorded for audit.
func (s *OrderService) CancelOrder(ctx context.Context, value string) (*CancelResult, error) {
	doc, err := s.FindOrder(ctx, value)
	if err != nil {
		return nil, err
	}
	orderID := doc.GetString("id")
	current := doc.GetString("status")

	if current == status.Paid {
		return nil, fmt.Errorf("%w: paid order cannot be canceled", status.ErrValidation)
	}
	if status.IsTerminal(current) {
		return &CancelResult{
			Success:   true,
			Status:    current,
			Reference: doc.GetString("gateway_reference"),
			OrderID:   orderID,
		}, nil
	}

	reference := doc.GetString("gateway_reference")
	if reference == "" {
		reference = orderID
	}

	var gwErr error
	mapped := ""
	if doc.GetString("provider") == models.ProviderGateway {
		var resp *gateway.Transaction
		resp, gwErr = s.gateway.CancelTransaction(ctx, reference)
		if gwErr != nil {
			slog.Warn("gateway cancel failed, canceling locally", "order", orderID, "error", gwErr)
		} else {
			mapped = gateway.MapStatus(resp.Status)
		}
	}

	// pending must never be the terminal state written here.
	if mapped == "" || mapped == status.Pending {
		if gwErr != nil {
			mapped = status.Failed
		} else {
			mapped = status.Canceled
		}
	}

	fields := store.Doc{
		"status":      mapped,
		"reserved":    false,
		"canceled_at": time.Now().UTC().Format(time.RFC3339),
	}
	if gwErr != nil {
		fields["cancel_error"] = gwErr.Error()
	}
	if err := s.store.Set(ctx, models.CollectionOrders, orderID, fields); err != nil {
		// The gateway-side cancel (if any) already happened.
		return nil, &status.PersistenceError{Op: "record cancellation", Err: err}
	}

	return &CancelResult{
		Success:   true,
		Status:    mapped,
		Reference: doc.GetString("gateway_reference"),
		OrderID:   orderID,
	}, nil
}
