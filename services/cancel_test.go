package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-pay/internal/gateway"
	"ticket-pay/internal/status"
	"ticket-pay/internal/store"
	"ticket-pay/models"
)

func seedOrder(t *testing.T, env *orderTestEnv, id string, fields store.Doc) {
	t.Helper()
	doc := store.Doc{
		"event_id": "ev1",
		"provider": models.ProviderGateway,
		"status":   status.Pending,
		"reserved": true,
	}
	for k, v := range fields {
		doc[k] = v
	}
	require.NoError(t, env.store.Set(context.Background(), models.CollectionOrders, id, doc))
}

func TestCancelOrder_PendingGatewayOrder(t *testing.T) {
	env := newOrderTestEnv(t)
	seedOrder(t, env, "TP-1", store.Doc{"gateway_reference": "DEV-1"})
	ctx := context.Background()

	result, err := env.service.CancelOrder(ctx, "TP-1")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, status.Canceled, result.Status)
	assert.Equal(t, "TP-1", result.OrderID)

	// Cancel went to the gateway under the gateway reference.
	assert.Equal(t, []string{"DEV-1"}, env.gateway.cancelRefs)

	order, err := env.store.Get(ctx, models.CollectionOrders, "TP-1")
	require.NoError(t, err)
	assert.Equal(t, status.Canceled, order.GetString("status"))
	assert.False(t, order.GetBool("reserved"))
	assert.NotEmpty(t, order.GetString("canceled_at"))
	assert.Empty(t, order.GetString("cancel_error"))
}

func TestCancelOrder_ByGatewayReference(t *testing.T) {
	env := newOrderTestEnv(t)
	seedOrder(t, env, "TP-1", store.Doc{"gateway_reference": "DEV-1"})

	result, err := env.service.CancelOrder(context.Background(), "DEV-1")
	require.NoError(t, err)
	assert.Equal(t, "TP-1", result.OrderID)
}

func TestCancelOrder_PaidOrderRejected(t *testing.T) {
	env := newOrderTestEnv(t)
	seedOrder(t, env, "TP-1", store.Doc{"status": status.Paid})
	ctx := context.Background()

	_, err := env.service.CancelOrder(ctx, "TP-1")
	assert.ErrorIs(t, err, status.ErrValidation)

	// Untouched, and the gateway was not called.
	order, err := env.store.Get(ctx, models.CollectionOrders, "TP-1")
	require.NoError(t, err)
	assert.Equal(t, status.Paid, order.GetString("status"))
	assert.True(t, order.GetBool("reserved"))
	assert.Empty(t, env.gateway.cancelRefs)
}

func TestCancelOrder_TerminalIsIdempotent(t *testing.T) {
	for _, terminal := range []string{status.Canceled, status.Expired, status.Failed, status.Refunded} {
		t.Run(terminal, func(t *testing.T) {
			env := newOrderTestEnv(t)
			seedOrder(t, env, "TP-1", store.Doc{"status": terminal})

			result, err := env.service.CancelOrder(context.Background(), "TP-1")
			require.NoError(t, err)
			assert.True(t, result.Success)
			assert.Equal(t, terminal, result.Status)
			assert.Empty(t, env.gateway.cancelRefs)
		})
	}
}

func TestCancelOrder_GatewayErrorDegradesToFailed(t *testing.T) {
	env := newOrderTestEnv(t)
	seedOrder(t, env, "TP-1", store.Doc{"gateway_reference": "DEV-1"})
	env.gateway.cancelErr = errors.New("provider timeout")
	ctx := context.Background()

	result, err := env.service.CancelOrder(ctx, "TP-1")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, status.Failed, result.Status)

	order, err := env.store.Get(ctx, models.CollectionOrders, "TP-1")
	require.NoError(t, err)
	assert.Equal(t, status.Failed, order.GetString("status"))
	assert.False(t, order.GetBool("reserved"))
	assert.Contains(t, order.GetString("cancel_error"), "provider timeout")
}

func TestCancelOrder_GatewayPendingResponseForcedOut(t *testing.T) {
	env := newOrderTestEnv(t)
	seedOrder(t, env, "TP-1", store.Doc{"gateway_reference": "DEV-1"})
	env.gateway.cancelTx = &gateway.Transaction{Reference: "DEV-1", Status: "UNPAID"}

	result, err := env.service.CancelOrder(context.Background(), "TP-1")
	require.NoError(t, err)
	// The order must not stay pending after a successful cancel call.
	assert.Equal(t, status.Canceled, result.Status)
}

func TestCancelOrder_GatewayExpiredResponseKept(t *testing.T) {
	env := newOrderTestEnv(t)
	seedOrder(t, env, "TP-1", store.Doc{"gateway_reference": "DEV-1"})
	env.gateway.cancelTx = &gateway.Transaction{Reference: "DEV-1", Status: "EXPIRED"}
	ctx := context.Background()

	result, err := env.service.CancelOrder(ctx, "TP-1")
	require.NoError(t, err)
	assert.Equal(t, status.Expired, result.Status)

	order, err := env.store.Get(ctx, models.CollectionOrders, "TP-1")
	require.NoError(t, err)
	assert.Equal(t, status.Expired, order.GetString("status"))
}

func TestCancelOrder_FreeOrderSkipsGateway(t *testing.T) {
	env := newOrderTestEnv(t)
	seedOrder(t, env, "TP-1", store.Doc{"provider": models.ProviderFree, "status": status.Pending})

	result, err := env.service.CancelOrder(context.Background(), "TP-1")
	require.NoError(t, err)
	assert.Equal(t, status.Canceled, result.Status)
	assert.Empty(t, env.gateway.cancelRefs)
}

func TestCancelOrder_UnknownOrder(t *testing.T) {
	env := newOrderTestEnv(t)

	_, err := env.service.CancelOrder(context.Background(), "nope")
	assert.ErrorIs(t, err, status.ErrNotFound)
}
