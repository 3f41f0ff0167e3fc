package models

import (
	"ticket-pay/internal/store"
)

// Collection names in the document store.
const (
	CollectionEvents         = "events"
	CollectionOrders         = "orders"
	CollectionReferrals      = "referrals"
	CollectionReferralUsages = "referral_usages"
)

const (
	EventPublished   = "published"
	EventUnpublished = "unpublished"
)

type Event struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Status           string `json:"status"` // published, unpublished
	Capacity         int64  `json:"capacity"` // 0 = unlimited
	SeatsUsed        int64  `json:"seats_used"`
	SeatsUsedRegular int64  `json:"seats_used_regular"`
	SeatsUsedVip     int64  `json:"seats_used_vip"`
	PriceRegular     int64  `json:"price_regular"`
	PriceVip         int64  `json:"price_vip"`
}

func EventFromDoc(d store.Doc) Event {
	return Event{
		ID:               d.GetString("id"),
		Name:             d.GetString("name"),
		Status:           d.GetString("status"),
		Capacity:         d.GetInt("capacity"),
		SeatsUsed:        d.GetInt("seats_used"),
		SeatsUsedRegular: d.GetInt("seats_used_regular"),
		SeatsUsedVip:     d.GetInt("seats_used_vip"),
		PriceRegular:     d.GetInt("price_regular"),
		PriceVip:         d.GetInt("price_vip"),
	}
}

// Price returns the base ticket price for the given ticket type.
func (e Event) Price(ticketType string) int64 {
	if ticketType == TicketVip {
		return e.PriceVip
	}
	return e.PriceRegular
}
