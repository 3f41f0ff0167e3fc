package referral

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"ticket-pay/internal/status"
	"ticket-pay/internal/store"
	"ticket-pay/models"
)

// DefaultLimit is the per-(user, code) redemption cap.
const DefaultLimit = 5

// Ledger enforces the per-user referral usage quota. Reserve and Rollback
// are exact inverses; both run as guarded read-modify-write transactions.
type Ledger struct {
	store store.Store
	limit int64
}

func NewLedger(s store.Store, limit int64) *Ledger {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Ledger{store: s, limit: limit}
}

func (l *Ledger) Limit() int64 { return l.limit }

// Find looks a referral up by code.
func (l *Ledger) Find(ctx context.Context, code string) (store.Doc, error) {
	return l.store.GetBy(ctx, models.CollectionReferrals, "code", code)
}

// Usage returns the current redemption count for the (user, code) pair.
func (l *Ledger) Usage(ctx context.Context, userID, code string) (int64, error) {
	usage, err := l.store.Get(ctx, models.CollectionReferralUsages, models.ReferralUsageID(userID, code))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return usage.GetInt("count"), nil
}

// Reserve consumes one quota slot, incrementing the referral's denormalized
// used_count in the same transaction. Returns status.ErrQuotaExceeded when
// the cap is already reached.
func (l *Ledger) Reserve(ctx context.Context, userID, code, orderID, eventID string) error {
	usageID := models.ReferralUsageID(userID, code)

	return l.store.RunInTransaction(ctx, func(tx store.Store) error {
		var count int64
		usage, err := tx.Get(ctx, models.CollectionReferralUsages, usageID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("referral reserve: read usage: %w", err)
		}
		if usage != nil {
			count = usage.GetInt("count")
		}
		if count >= l.limit {
			return status.ErrQuotaExceeded
		}

		if err := tx.Set(ctx, models.CollectionReferralUsages, usageID, store.Doc{
			"user_id":      userID,
			"code":         code,
			"count":        count + 1,
			"last_order":   orderID,
			"last_event":   eventID,
			"last_used_at": time.Now().UTC().Format(time.RFC3339),
		}); err != nil {
			return fmt.Errorf("referral reserve: write usage: %w", err)
		}

		return l.bumpUsedCount(ctx, tx, code, 1)
	})
}

// Rollback is Reserve's inverse, invoked by callers when a later step of the
// same logical operation fails. A zero count is a no-op.
func (l *Ledger) Rollback(ctx context.Context, userID, code string) error {
	usageID := models.ReferralUsageID(userID, code)

	return l.store.RunInTransaction(ctx, func(tx store.Store) error {
		usage, err := tx.Get(ctx, models.CollectionReferralUsages, usageID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			return fmt.Errorf("referral rollback: read usage: %w", err)
		}
		count := usage.GetInt("count")
		if count <= 0 {
			return nil
		}

		if count == 1 {
			if err := tx.Delete(ctx, models.CollectionReferralUsages, usageID); err != nil {
				return fmt.Errorf("referral rollback: delete usage: %w", err)
			}
		} else if err := tx.Set(ctx, models.CollectionReferralUsages, usageID, store.Doc{
			"count": count - 1,
		}); err != nil {
			return fmt.Errorf("referral rollback: write usage: %w", err)
		}

		return l.bumpUsedCount(ctx, tx, code, -1)
	})
}

func (l *Ledger) bumpUsedCount(ctx context.Context, tx store.Store, code string, delta int64) error {
	ref, err := tx.GetBy(ctx, models.CollectionReferrals, "code", code)
	if err != nil {
		// The usage record is authoritative; a missing referral document
		// only loses the advisory counter.
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("referral: read referral %q: %w", code, err)
	}
	used := ref.GetInt("used_count") + delta
	if used < 0 {
		used = 0
	}
	return tx.Set(ctx, models.CollectionReferrals, ref.GetString("id"), store.Doc{
		"used_count": used,
	})
}

// ResolvePrice returns the discounted price for ticketType when the referral
// is active, applicable, and carries a sane price. Anything else means no
// override.
func ResolvePrice(ref store.Doc, ticketType string) (int64, bool) {
	if ref == nil || !ref.GetBool("active") {
		return 0, false
	}
	applies := ref.GetString("applies_to")
	if applies != models.ReferralAppliesBoth && applies != ticketType {
		return 0, false
	}

	key := "price_regular"
	if ticketType == models.TicketVip {
		key = "price_vip"
	}
	raw, ok := ref[key]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case int64:
		if v < 0 {
			return 0, false
		}
		return v, true
	case int:
		if v < 0 {
			return 0, false
		}
		return int64(v), true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return 0, false
		}
		return int64(v), true
	}
	return 0, false
}
