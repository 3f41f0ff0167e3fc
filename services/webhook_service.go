package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ticket-pay/internal/gateway"
	"ticket-pay/internal/status"
	"ticket-pay/internal/store"
	"ticket-pay/models"
	"ticket-pay/monitoring"
)

// CallbackPayload is the gateway's notification body. Providers have used
// several field names for the same payable-code concept over time, hence the
// spread of optional fields resolved by resolvePayCode.
type CallbackPayload struct {
	Reference     string   `json:"reference"`
	MerchantRef   string   `json:"merchant_ref"`
	Status        string   `json:"status"`
	PaymentMethod string   `json:"payment_method,omitempty"`
	PayCode       string   `json:"pay_code,omitempty"`
	PaymentCode   string   `json:"payment_code,omitempty"`
	VANumber      string   `json:"va_number,omitempty"`
	VANumbers     []string `json:"va_numbers,omitempty"`
	TotalAmount   int64    `json:"total_amount"`
}

type ReconcileResult struct {
	OrderID string
	Status  string
}

// WebhookService applies gateway callbacks to local order state.
type WebhookService struct {
	store  store.Store
	signer *gateway.Signer
	notify Dispatcher
}

func NewWebhookService(s store.Store, signer *gateway.Signer, notify Dispatcher) *WebhookService {
	return &WebhookService{store: s, signer: signer, notify: notify}
}

// Reconcile authenticates the callback and applies the status transition.
// The previous-status read and the merge write share one transaction, so the
// paid side effect fires exactly once even under concurrent duplicate
// callbacks. The raw status field itself is never refused: the gateway is
// the source of truth, only the paid side effect is guarded.
func (s *WebhookService) Reconcile(ctx context.Context, rawBody []byte, signature string) (*ReconcileResult, error) {
	var payload CallbackPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		monitoring.TrackCallback("malformed")
		return nil, fmt.Errorf("%w: malformed callback body", status.ErrValidation)
	}
	if payload.MerchantRef == "" {
		monitoring.TrackCallback("malformed")
		return nil, fmt.Errorf("%w: missing merchant reference", status.ErrValidation)
	}

	// Authentication comes before any state mutation.
	reserialized, _ := json.Marshal(payload)
	if !s.signer.VerifyCallback(rawBody, reserialized, payload.MerchantRef, payload.TotalAmount, signature) {
		monitoring.TrackCallback("rejected")
		return nil, status.ErrSignatureInvalid
	}

	mapped := gateway.MapStatus(payload.Status)
	if mapped == "" {
		mapped = status.Pending
	}

	var previous string
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		doc, err := tx.Get(ctx, models.CollectionOrders, payload.MerchantRef)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("order %q: %w", payload.MerchantRef, status.ErrNotFound)
			}
			return fmt.Errorf("read order: %w", err)
		}
		previous = doc.GetString("status")

		fields := store.Doc{
			"status":          mapped,
			"gateway_payload": string(rawBody),
			"pay_code":        resolvePayCode(&payload, doc),
		}
		if payload.Reference != "" {
			fields["gateway_reference"] = payload.Reference
		}
		return tx.Set(ctx, models.CollectionOrders, payload.MerchantRef, fields)
	})
	if err != nil {
		monitoring.TrackCallback("error")
		return nil, err
	}

	if previous != status.Paid && mapped == status.Paid {
		s.notify.Dispatch(ctx, payload.MerchantRef)
	}
	monitoring.TrackCallback("ok")

	return &ReconcileResult{OrderID: payload.MerchantRef, Status: mapped}, nil
}

// resolvePayCode picks the payable code with a fixed fallback priority:
// explicit pay code, payment code, VA number, first of the VA-number list,
// then whatever the order already stored.
func resolvePayCode(p *CallbackPayload, doc store.Doc) string {
	switch {
	case p.PayCode != "":
		return p.PayCode
	case p.PaymentCode != "":
		return p.PaymentCode
	case p.VANumber != "":
		return p.VANumber
	case len(p.VANumbers) > 0 && p.VANumbers[0] != "":
		return p.VANumbers[0]
	case doc.GetString("va_number") != "":
		return doc.GetString("va_number")
	default:
		return doc.GetString("pay_code")
	}
}
