package models

import (
	"ticket-pay/internal/store"
)

const (
	ReferralAppliesRegular = "regular"
	ReferralAppliesVip     = "vip"
	ReferralAppliesBoth    = "both"
)

// Referral is read-mostly; UsedCount is a denormalized convenience counter,
// the authoritative per-user count lives in ReferralUsage.
type Referral struct {
	Code         string `json:"code"`
	Active       bool   `json:"active"`
	AppliesTo    string `json:"applies_to"` // regular, vip, both
	PriceRegular int64  `json:"price_regular"`
	PriceVip     int64  `json:"price_vip"`
	UsedCount    int64  `json:"used_count"`
}

func ReferralFromDoc(d store.Doc) Referral {
	return Referral{
		Code:         d.GetString("code"),
		Active:       d.GetBool("active"),
		AppliesTo:    d.GetString("applies_to"),
		PriceRegular: d.GetInt("price_regular"),
		PriceVip:     d.GetInt("price_vip"),
		UsedCount:    d.GetInt("used_count"),
	}
}

// ReferralUsage tracks one (user, code) pair. Document id is
// "<userID>_<code>".
type ReferralUsage struct {
	UserID     string `json:"user_id"`
	Code       string `json:"code"`
	Count      int64  `json:"count"`
	LastOrder  string `json:"last_order,omitempty"`
	LastEvent  string `json:"last_event,omitempty"`
	LastUsedAt string `json:"last_used_at,omitempty"`
}

func ReferralUsageID(userID, code string) string {
	return userID + "_" + code
}
