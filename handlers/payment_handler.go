package handlers

import (
	"io"
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticket-pay/models"
	"ticket-pay/services"
)

type PaymentHandler struct {
	orders   *services.OrderService
	webhooks *services.WebhookService
}

func NewPaymentHandler(orders *services.OrderService, webhooks *services.WebhookService) *PaymentHandler {
	return &PaymentHandler{
		orders:   orders,
		webhooks: webhooks,
	}
}

// Create - reserve a seat and open a payment intent
func (h *PaymentHandler) Create(e *core.RequestEvent) error {
	var req services.CreateOrderRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	// The referral quota is keyed by the authenticated user when present,
	// otherwise by the customer email.
	if e.Auth != nil {
		req.UserID = e.Auth.Id
	} else {
		req.UserID = req.Customer.Email
	}

	result, err := h.orders.CreateOrder(e.Request.Context(), &req)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, result)
}

// Cancel - converge a pending order to canceled/failed
func (h *PaymentHandler) Cancel(e *core.RequestEvent) error {
	var req struct {
		Reference   string `json:"reference"`
		MerchantRef string `json:"merchant_ref"`
		OrderID     string `json:"order_id"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	value := req.Reference
	if value == "" {
		value = req.MerchantRef
	}
	if value == "" {
		value = req.OrderID
	}

	result, err := h.orders.CancelOrder(e.Request.Context(), value)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, result)
}

// Status - look an order up by id, merchant reference or gateway reference
func (h *PaymentHandler) Status(e *core.RequestEvent) error {
	value := e.Request.URL.Query().Get("value")
	if value == "" && e.Request.Method == http.MethodPost {
		var req struct {
			Value string `json:"value"`
		}
		if err := e.BindBody(&req); err == nil {
			value = req.Value
		}
	}

	doc, err := h.orders.FindOrder(e.Request.Context(), value)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, models.OrderFromDoc(doc))
}

// Webhook - gateway payment notification callback
func (h *PaymentHandler) Webhook(e *core.RequestEvent) error {
	rawBody, err := io.ReadAll(e.Request.Body)
	if err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}
	signature := e.Request.Header.Get("X-Callback-Signature")

	if _, err := h.webhooks.Reconcile(e.Request.Context(), rawBody, signature); err != nil {
		return apiError(err)
	}

	// Downstream notification outcomes are recorded on the order; the
	// gateway only needs to know the callback landed.
	return e.JSON(http.StatusOK, map[string]any{"received": true})
}
