package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_SetMergesFields(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "orders", "o1", Doc{"status": "pending", "amount_total": int64(5000)}))
	require.NoError(t, m.Set(ctx, "orders", "o1", Doc{"status": "paid"}))

	doc, err := m.Get(ctx, "orders", "o1")
	require.NoError(t, err)
	assert.Equal(t, "paid", doc.GetString("status"))
	// Untouched fields survive the partial write.
	assert.Equal(t, int64(5000), doc.GetInt("amount_total"))
	assert.Equal(t, "o1", doc.GetString("id"))
}

func TestMemory_GetUnknown(t *testing.T) {
	m := NewMemory()

	_, err := m.Get(context.Background(), "orders", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_GetBy(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "orders", "o1", Doc{"gateway_reference": "DEV-1"}))
	require.NoError(t, m.Set(ctx, "orders", "o2", Doc{"gateway_reference": "DEV-2"}))

	doc, err := m.GetBy(ctx, "orders", "gateway_reference", "DEV-2")
	require.NoError(t, err)
	assert.Equal(t, "o2", doc.GetString("id"))

	_, err = m.GetBy(ctx, "orders", "gateway_reference", "DEV-3")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_GetReturnsCopy(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "orders", "o1", Doc{"status": "pending"}))

	doc, err := m.Get(ctx, "orders", "o1")
	require.NoError(t, err)
	doc["status"] = "mutated"

	again, err := m.Get(ctx, "orders", "o1")
	require.NoError(t, err)
	assert.Equal(t, "pending", again.GetString("status"))
}

func TestMemory_TransactionCommit(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	err := m.RunInTransaction(ctx, func(tx Store) error {
		if err := tx.Set(ctx, "events", "e1", Doc{"seats_used": int64(1)}); err != nil {
			return err
		}
		return tx.Set(ctx, "orders", "o1", Doc{"status": "pending"})
	})
	require.NoError(t, err)

	event, err := m.Get(ctx, "events", "e1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), event.GetInt("seats_used"))

	order, err := m.Get(ctx, "orders", "o1")
	require.NoError(t, err)
	assert.Equal(t, "pending", order.GetString("status"))
}

func TestMemory_TransactionRollback(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "events", "e1", Doc{"seats_used": int64(0)}))

	boom := errors.New("boom")
	err := m.RunInTransaction(ctx, func(tx Store) error {
		if err := tx.Set(ctx, "events", "e1", Doc{"seats_used": int64(1)}); err != nil {
			return err
		}
		if err := tx.Set(ctx, "orders", "o1", Doc{"status": "pending"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	// Nothing staged leaks out.
	event, err := m.Get(ctx, "events", "e1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), event.GetInt("seats_used"))

	_, err = m.Get(ctx, "orders", "o1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_TransactionReadsOwnWrites(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "events", "e1", Doc{"seats_used": int64(3), "capacity": int64(10)}))

	err := m.RunInTransaction(ctx, func(tx Store) error {
		doc, err := tx.Get(ctx, "events", "e1")
		if err != nil {
			return err
		}
		if err := tx.Set(ctx, "events", "e1", Doc{"seats_used": doc.GetInt("seats_used") + 1}); err != nil {
			return err
		}

		again, err := tx.Get(ctx, "events", "e1")
		if err != nil {
			return err
		}
		assert.Equal(t, int64(4), again.GetInt("seats_used"))
		// Base fields still visible through the staged overlay.
		assert.Equal(t, int64(10), again.GetInt("capacity"))
		return nil
	})
	require.NoError(t, err)
}

func TestMemory_TransactionDelete(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "referral_usages", "u1_CODE", Doc{"count": int64(1)}))

	err := m.RunInTransaction(ctx, func(tx Store) error {
		if err := tx.Delete(ctx, "referral_usages", "u1_CODE"); err != nil {
			return err
		}
		_, err := tx.Get(ctx, "referral_usages", "u1_CODE")
		assert.ErrorIs(t, err, ErrNotFound)
		return nil
	})
	require.NoError(t, err)

	_, err = m.Get(ctx, "referral_usages", "u1_CODE")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_ConcurrentGuardedIncrements(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "events", "e1", Doc{"seats_used": int64(0)}))

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.RunInTransaction(ctx, func(tx Store) error {
				doc, err := tx.Get(ctx, "events", "e1")
				if err != nil {
					return err
				}
				return tx.Set(ctx, "events", "e1", Doc{"seats_used": doc.GetInt("seats_used") + 1})
			})
		}()
	}
	wg.Wait()

	doc, err := m.Get(ctx, "events", "e1")
	require.NoError(t, err)
	assert.Equal(t, int64(n), doc.GetInt("seats_used"))
}

func TestDoc_Getters(t *testing.T) {
	d := Doc{
		"s":   "text",
		"b":   true,
		"i64": int64(7),
		"i":   3,
		"f":   2.9,
	}

	assert.Equal(t, "text", d.GetString("s"))
	assert.Equal(t, "", d.GetString("missing"))
	assert.True(t, d.GetBool("b"))
	assert.False(t, d.GetBool("missing"))
	assert.Equal(t, int64(7), d.GetInt("i64"))
	assert.Equal(t, int64(3), d.GetInt("i"))
	assert.Equal(t, int64(2), d.GetInt("f"))
	assert.Equal(t, int64(0), d.GetInt("missing"))
}
