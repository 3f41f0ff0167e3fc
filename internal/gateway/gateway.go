package gateway

import (
	"context"
)

// CreateRequest is a payment intent request for the provider.
type CreateRequest struct {
	Method        string      `json:"method"`
	MerchantRef   string      `json:"merchant_ref"`
	Amount        int64       `json:"amount"`
	CustomerName  string      `json:"customer_name"`
	CustomerEmail string      `json:"customer_email"`
	CustomerPhone string      `json:"customer_phone"`
	OrderItems    []OrderItem `json:"order_items"`
	ExpiredTime   int64       `json:"expired_time"`
	Signature     string      `json:"signature"`
}

type OrderItem struct {
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

// Transaction is the provider's view of a payment, in provider status
// vocabulary. Callers map Status through MapStatus before persisting.
type Transaction struct {
	Reference   string `json:"reference"`
	MerchantRef string `json:"merchant_ref"`
	Status      string `json:"status"`
	PayCode     string `json:"pay_code,omitempty"`
	CheckoutURL string `json:"checkout_url,omitempty"`
	QRURL       string `json:"qr_url,omitempty"`
	Amount      int64  `json:"amount"`
}

// PaymentGateway is the outbound provider boundary.
type PaymentGateway interface {
	CreateTransaction(ctx context.Context, req *CreateRequest) (*Transaction, error)
	CancelTransaction(ctx context.Context, reference string) (*Transaction, error)
}
