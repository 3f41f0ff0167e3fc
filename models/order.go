package models

import (
	"time"

	"ticket-pay/internal/store"
)

const (
	TicketRegular = "regular"
	TicketVip     = "vip"

	ProviderFree    = "free"
	ProviderGateway = "gateway"

	NotifyPending = "pending"
	NotifySent    = "sent"
	NotifyError   = "error"
)

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Amounts is the money breakdown of an order, in whole rupiah.
type Amounts struct {
	Base        int64 `json:"base"`
	PlatformFee int64 `json:"platform_fee"`
	GatewayFee  int64 `json:"gateway_fee"`
	Gateway     int64 `json:"gateway"` // base + platform fee, charged to the gateway
	Total       int64 `json:"total"`   // gateway + gateway fee, charged to the customer
}

// Order id doubles as the merchant reference signed with the gateway.
type Order struct {
	ID                 string    `json:"id"`
	EventID            string    `json:"event_id"`
	Provider           string    `json:"provider"` // free, gateway
	TicketType         string    `json:"ticket_type"`
	Status             string    `json:"status"`
	Amounts            Amounts   `json:"amounts"`
	Customer           Customer  `json:"customer"`
	Reserved           bool      `json:"reserved"`
	ReferralCode       string    `json:"referral_code,omitempty"`
	ReferralPrice      int64     `json:"referral_price,omitempty"`
	NotificationStatus string    `json:"notification_status"`
	PayCode            string    `json:"pay_code,omitempty"`
	GatewayReference   string    `json:"gateway_reference,omitempty"`
	Created            time.Time `json:"created"`
	CanceledAt         string    `json:"canceled_at,omitempty"`
}

func OrderFromDoc(d store.Doc) Order {
	return Order{
		ID:         d.GetString("id"),
		EventID:    d.GetString("event_id"),
		Provider:   d.GetString("provider"),
		TicketType: d.GetString("ticket_type"),
		Status:     d.GetString("status"),
		Amounts: Amounts{
			Base:        d.GetInt("amount_base"),
			PlatformFee: d.GetInt("platform_fee"),
			GatewayFee:  d.GetInt("gateway_fee"),
			Gateway:     d.GetInt("amount_gateway"),
			Total:       d.GetInt("amount_total"),
		},
		Customer: Customer{
			Name:  d.GetString("customer_name"),
			Email: d.GetString("customer_email"),
			Phone: d.GetString("customer_phone"),
		},
		Reserved:           d.GetBool("reserved"),
		ReferralCode:       d.GetString("referral_code"),
		ReferralPrice:      d.GetInt("referral_price"),
		NotificationStatus: d.GetString("notification_status"),
		PayCode:            d.GetString("pay_code"),
		GatewayReference:   d.GetString("gateway_reference"),
		CanceledAt:         d.GetString("canceled_at"),
	}
}
