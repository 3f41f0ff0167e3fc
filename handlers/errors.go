package handlers

import (
	"errors"
	"net/http"

	"github.com/pocketbase/pocketbase/apis"

	"ticket-pay/internal/status"
)

// apiError maps service errors onto HTTP responses: validation, capacity and
// quota failures are the caller's fault; gateway failures surface upstream
// detail; persistence failures after an external side effect are 500s that
// operators reconcile manually.
func apiError(err error) error {
	switch {
	case errors.Is(err, status.ErrValidation),
		errors.Is(err, status.ErrCapacityExceeded),
		errors.Is(err, status.ErrQuotaExceeded):
		return apis.NewBadRequestError(err.Error(), nil)
	case errors.Is(err, status.ErrNotFound):
		return apis.NewNotFoundError(err.Error(), nil)
	case errors.Is(err, status.ErrSignatureInvalid):
		return apis.NewForbiddenError(err.Error(), nil)
	}

	var gwErr *status.GatewayError
	if errors.As(err, &gwErr) {
		return apis.NewApiError(http.StatusBadGateway, "Payment provider error", map[string]any{
			"op":     gwErr.Op,
			"detail": gwErr.Detail,
		})
	}

	var pErr *status.PersistenceError
	if errors.As(err, &pErr) {
		return apis.NewApiError(http.StatusInternalServerError, pErr.Error(), nil)
	}

	return apis.NewApiError(http.StatusInternalServerError, "Internal error", nil)
}
