package handlers

import (
	"errors"
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticket-pay/internal/referral"
	"ticket-pay/internal/store"
	"ticket-pay/models"
)

type ReferralHandler struct {
	ledger *referral.Ledger
}

func NewReferralHandler(ledger *referral.Ledger) *ReferralHandler {
	return &ReferralHandler{ledger: ledger}
}

// Validate - check a referral code against the caller's remaining quota
func (h *ReferralHandler) Validate(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		ReferralCode string `json:"referral_code"`
		EventID      string `json:"event_id"`
		TicketType   string `json:"ticket_type"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.ReferralCode == "" {
		return apis.NewBadRequestError("referral_code is required", nil)
	}
	ticketType := req.TicketType
	if ticketType == "" {
		ticketType = models.TicketRegular
	}

	ctx := e.Request.Context()

	ref, err := h.ledger.Find(ctx, req.ReferralCode)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apis.NewNotFoundError("Referral code not found", nil)
		}
		return apiError(err)
	}

	uses, err := h.ledger.Usage(ctx, e.Auth.Id, req.ReferralCode)
	if err != nil {
		return apiError(err)
	}

	priceAfter, applicable := referral.ResolvePrice(ref, ticketType)
	limit := h.ledger.Limit()

	resp := map[string]any{
		"valid":    applicable && uses < limit,
		"uses":     uses,
		"limit":    limit,
		"referral": models.ReferralFromDoc(ref),
	}
	if applicable {
		resp["price_after"] = priceAfter
	}
	return e.JSON(http.StatusOK, resp)
}
