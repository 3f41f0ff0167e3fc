package referral

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-pay/internal/status"
	"ticket-pay/internal/store"
	"ticket-pay/models"
)

func seedReferral(t *testing.T, s *store.Memory, code string, fields store.Doc) {
	t.Helper()
	doc := store.Doc{"code": code, "active": true, "applies_to": models.ReferralAppliesBoth}
	for k, v := range fields {
		doc[k] = v
	}
	require.NoError(t, s.Set(context.Background(), models.CollectionReferrals, "ref_"+code, doc))
}

func TestLedger_FindAndUsage(t *testing.T) {
	s := store.NewMemory()
	ledger := NewLedger(s, 5)
	ctx := context.Background()
	seedReferral(t, s, "EARLYBIRD", store.Doc{"price_regular": int64(50000)})

	ref, err := ledger.Find(ctx, "EARLYBIRD")
	require.NoError(t, err)
	assert.Equal(t, "EARLYBIRD", ref.GetString("code"))

	_, err = ledger.Find(ctx, "NOPE")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// No usage record yet means zero, not an error.
	uses, err := ledger.Usage(ctx, "user1", "EARLYBIRD")
	require.NoError(t, err)
	assert.Equal(t, int64(0), uses)
}

func TestLedger_ReserveIncrementsUpToLimit(t *testing.T) {
	s := store.NewMemory()
	ledger := NewLedger(s, 5)
	ctx := context.Background()
	seedReferral(t, s, "EARLYBIRD", nil)

	for i := 1; i <= 5; i++ {
		require.NoError(t, ledger.Reserve(ctx, "user1", "EARLYBIRD", fmt.Sprintf("order-%d", i), "ev1"))

		uses, err := ledger.Usage(ctx, "user1", "EARLYBIRD")
		require.NoError(t, err)
		assert.Equal(t, int64(i), uses)
	}

	err := ledger.Reserve(ctx, "user1", "EARLYBIRD", "order-6", "ev1")
	assert.ErrorIs(t, err, status.ErrQuotaExceeded)

	uses, err := ledger.Usage(ctx, "user1", "EARLYBIRD")
	require.NoError(t, err)
	assert.Equal(t, int64(5), uses)

	// The denormalized counter followed along.
	ref, err := ledger.Find(ctx, "EARLYBIRD")
	require.NoError(t, err)
	assert.Equal(t, int64(5), ref.GetInt("used_count"))
}

func TestLedger_QuotaIsPerUserPerCode(t *testing.T) {
	s := store.NewMemory()
	ledger := NewLedger(s, 1)
	ctx := context.Background()
	seedReferral(t, s, "CODE-A", nil)
	seedReferral(t, s, "CODE-B", nil)

	require.NoError(t, ledger.Reserve(ctx, "user1", "CODE-A", "o1", "ev1"))
	assert.ErrorIs(t, ledger.Reserve(ctx, "user1", "CODE-A", "o2", "ev1"), status.ErrQuotaExceeded)

	// Same user, different code.
	require.NoError(t, ledger.Reserve(ctx, "user1", "CODE-B", "o3", "ev1"))
	// Different user, same code.
	require.NoError(t, ledger.Reserve(ctx, "user2", "CODE-A", "o4", "ev1"))
}

func TestLedger_RollbackIsInverseOfReserve(t *testing.T) {
	s := store.NewMemory()
	ledger := NewLedger(s, 5)
	ctx := context.Background()
	seedReferral(t, s, "EARLYBIRD", nil)

	require.NoError(t, ledger.Reserve(ctx, "user1", "EARLYBIRD", "o1", "ev1"))
	require.NoError(t, ledger.Reserve(ctx, "user1", "EARLYBIRD", "o2", "ev1"))
	require.NoError(t, ledger.Rollback(ctx, "user1", "EARLYBIRD"))

	uses, err := ledger.Usage(ctx, "user1", "EARLYBIRD")
	require.NoError(t, err)
	assert.Equal(t, int64(1), uses)

	ref, err := ledger.Find(ctx, "EARLYBIRD")
	require.NoError(t, err)
	assert.Equal(t, int64(1), ref.GetInt("used_count"))

	// Rolling the last use back removes the usage record entirely.
	require.NoError(t, ledger.Rollback(ctx, "user1", "EARLYBIRD"))
	_, err = s.Get(ctx, models.CollectionReferralUsages, models.ReferralUsageID("user1", "EARLYBIRD"))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestLedger_RollbackAtZeroIsNoop(t *testing.T) {
	s := store.NewMemory()
	ledger := NewLedger(s, 5)
	ctx := context.Background()
	seedReferral(t, s, "EARLYBIRD", nil)

	require.NoError(t, ledger.Rollback(ctx, "user1", "EARLYBIRD"))
	require.NoError(t, ledger.Rollback(ctx, "user1", "EARLYBIRD"))

	uses, err := ledger.Usage(ctx, "user1", "EARLYBIRD")
	require.NoError(t, err)
	assert.Equal(t, int64(0), uses)

	ref, err := ledger.Find(ctx, "EARLYBIRD")
	require.NoError(t, err)
	assert.Equal(t, int64(0), ref.GetInt("used_count"))
}

func TestLedger_ConcurrentReservesRespectLimit(t *testing.T) {
	s := store.NewMemory()
	ledger := NewLedger(s, 5)
	ctx := context.Background()
	seedReferral(t, s, "EARLYBIRD", nil)

	const attempts = 20
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = ledger.Reserve(ctx, "user1", "EARLYBIRD", fmt.Sprintf("o-%d", i), "ev1")
		}(i)
	}
	wg.Wait()

	granted := 0
	for _, err := range errs {
		if err == nil {
			granted++
		} else {
			assert.ErrorIs(t, err, status.ErrQuotaExceeded)
		}
	}
	assert.Equal(t, 5, granted)

	uses, err := ledger.Usage(ctx, "user1", "EARLYBIRD")
	require.NoError(t, err)
	assert.Equal(t, int64(5), uses)
}

func TestResolvePrice(t *testing.T) {
	tests := []struct {
		name       string
		ref        store.Doc
		ticketType string
		wantPrice  int64
		wantOK     bool
	}{
		{
			name:       "nil referral",
			ref:        nil,
			ticketType: models.TicketRegular,
		},
		{
			name:       "inactive",
			ref:        store.Doc{"active": false, "applies_to": "both", "price_regular": int64(100)},
			ticketType: models.TicketRegular,
		},
		{
			name:       "wrong ticket type",
			ref:        store.Doc{"active": true, "applies_to": "vip", "price_vip": int64(100)},
			ticketType: models.TicketRegular,
		},
		{
			name:       "both applies to regular",
			ref:        store.Doc{"active": true, "applies_to": "both", "price_regular": int64(75000)},
			ticketType: models.TicketRegular,
			wantPrice:  75000,
			wantOK:     true,
		},
		{
			name:       "vip price key",
			ref:        store.Doc{"active": true, "applies_to": "vip", "price_vip": int64(150000)},
			ticketType: models.TicketVip,
			wantPrice:  150000,
			wantOK:     true,
		},
		{
			name:       "price key missing",
			ref:        store.Doc{"active": true, "applies_to": "both"},
			ticketType: models.TicketRegular,
		},
		{
			name:       "zero price is a valid free override",
			ref:        store.Doc{"active": true, "applies_to": "both", "price_regular": int64(0)},
			ticketType: models.TicketRegular,
			wantPrice:  0,
			wantOK:     true,
		},
		{
			name:       "negative price rejected",
			ref:        store.Doc{"active": true, "applies_to": "both", "price_regular": int64(-1)},
			ticketType: models.TicketRegular,
		},
		{
			name:       "float from JSON decoding",
			ref:        store.Doc{"active": true, "applies_to": "both", "price_regular": float64(50000)},
			ticketType: models.TicketRegular,
			wantPrice:  50000,
			wantOK:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price, ok := ResolvePrice(tt.ref, tt.ticketType)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantPrice, price)
		})
	}
}
