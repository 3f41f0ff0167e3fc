package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ticket-pay/internal/gateway"
	"ticket-pay/internal/referral"
	"ticket-pay/internal/status"
	"ticket-pay/internal/store"
	"ticket-pay/models"
	"ticket-pay/monitoring"
)

const (
	PaymentBankTransfer = "bank_transfer"
	PaymentQRIS         = "qris"

	// intentExpiry is how long a gateway payment intent stays payable.
	intentExpiry = 24 * time.Hour
)

// Bank-transfer fees are fixed per bank; QRIS carries a base fee plus a
// percentage. All charged in whole rupiah.
const (
	feeBankBCA     = 5500
	feeBankDefault = 4250
	feeQRISBase    = 750
)

// Dispatcher queues the post-payment notification without blocking the
// request path.
type Dispatcher interface {
	Dispatch(ctx context.Context, orderID string)
}

// OrderService is the reservation and order engine: pricing, atomic seat
// reservation and order creation, plus the cancellation flow.
type OrderService struct {
	store   store.Store
	gateway gateway.PaymentGateway
	signer  *gateway.Signer
	ledger  *referral.Ledger
	notify  Dispatcher
}

func NewOrderService(s store.Store, gw gateway.PaymentGateway, signer *gateway.Signer, ledger *referral.Ledger, notify Dispatcher) *OrderService {
	return &OrderService{
		store:   s,
		gateway: gw,
		signer:  signer,
		ledger:  ledger,
		notify:  notify,
	}
}

// Fees is the money breakdown for one order.
type Fees struct {
	PlatformTax   int64
	GatewayFee    int64
	AmountGateway int64
	TotalCustomer int64
}

// ComputeFees is pure and deterministic; it is charged to real money, so the
// rounding (ceil on percentages, floor at zero) must not drift.
func ComputeFees(paymentType, bank string, base int64) Fees {
	platformTax := decimal.NewFromInt(base).
		Div(decimal.NewFromInt(100)).
		Ceil().
		IntPart()

	var gatewayFee int64
	switch paymentType {
	case PaymentQRIS:
		gatewayFee = decimal.NewFromInt(feeQRISBase).
			Add(decimal.NewFromInt(base).Mul(decimal.NewFromInt(7)).Div(decimal.NewFromInt(1000))).
			Ceil().
			IntPart()
	case PaymentBankTransfer:
		if strings.EqualFold(bank, "bca") {
			gatewayFee = feeBankBCA
		} else {
			gatewayFee = feeBankDefault
		}
	}

	amountGateway := base + platformTax
	if amountGateway < 0 {
		amountGateway = 0
	}
	total := amountGateway + gatewayFee
	if total < 0 {
		total = 0
	}

	return Fees{
		PlatformTax:   platformTax,
		GatewayFee:    gatewayFee,
		AmountGateway: amountGateway,
		TotalCustomer: total,
	}
}

// NewOrderID derives the merchant reference from the event, ticket type and
// a high-resolution timestamp, so concurrent attempts never collide into an
// accidental idempotent overwrite.
func NewOrderID(eventID, ticketType string) string {
	return fmt.Sprintf("TP-%s-%s-%d", eventID, ticketType, time.Now().UnixNano())
}

type CreateOrderRequest struct {
	EventID      string          `json:"event_id"`
	PaymentType  string          `json:"payment_type"`
	Bank         string          `json:"bank,omitempty"`
	TicketType   string          `json:"ticket_type,omitempty"`
	Customer     models.Customer `json:"customer"`
	ReferralCode string          `json:"referral_code,omitempty"`

	// UserID keys the referral quota; handlers fill it from the
	// authenticated record, falling back to the customer email.
	UserID string `json:"-"`
}

type CreateOrderResult struct {
	OrderID     string `json:"order_id"`
	Provider    string `json:"provider"`
	Status      string `json:"status"`
	TicketType  string `json:"ticket_type"`
	Amounts     models.Amounts `json:"amounts"`
	Reference   string `json:"reference,omitempty"`
	PayCode     string `json:"pay_code,omitempty"`
	CheckoutURL string `json:"checkout_url,omitempty"`
	QRURL       string `json:"qr_url,omitempty"`
	ExpiredAt   int64  `json:"expired_at,omitempty"`
}

// CreateOrder validates the request, resolves pricing (referral override
// included), opens a gateway intent for paid orders, and reserves the seat
// together with the order write in one transaction.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResult, error) {
	if req.EventID == "" || req.Customer.Name == "" || req.Customer.Email == "" {
		return nil, fmt.Errorf("%w: event_id and customer name/email are required", status.ErrValidation)
	}
	ticketType := req.TicketType
	if ticketType == "" {
		ticketType = models.TicketRegular
	}
	if ticketType != models.TicketRegular && ticketType != models.TicketVip {
		return nil, fmt.Errorf("%w: unknown ticket type %q", status.ErrValidation, ticketType)
	}

	eventDoc, err := s.store.Get(ctx, models.CollectionEvents, req.EventID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("event %q: %w", req.EventID, status.ErrNotFound)
		}
		return nil, fmt.Errorf("read event: %w", err)
	}
	event := models.EventFromDoc(eventDoc)
	if event.Status != models.EventPublished {
		return nil, fmt.Errorf("%w: event is not open for sale", status.ErrValidation)
	}

	price := event.Price(ticketType)

	// Referral override: applied only when the code resolves; an exhausted
	// quota is an error, everything else falls back to the base price.
	referralUsed := false
	var referralPrice int64
	if req.ReferralCode != "" {
		ref, err := s.ledger.Find(ctx, req.ReferralCode)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("read referral: %w", err)
		}
		if p, ok := referral.ResolvePrice(ref, ticketType); ok {
			price = p
			referralPrice = p
			referralUsed = true
		}
	}

	orderID := NewOrderID(req.EventID, ticketType)

	if referralUsed {
		if err := s.ledger.Reserve(ctx, req.UserID, req.ReferralCode, orderID, req.EventID); err != nil {
			return nil, err
		}
	}
	// Any failure after a successful quota reserve must undo it.
	rollbackReferral := func() {
		if !referralUsed {
			return
		}
		if err := s.ledger.Rollback(ctx, req.UserID, req.ReferralCode); err != nil {
			slog.Error("referral rollback failed", "user", req.UserID, "code", req.ReferralCode, "error", err)
		}
	}

	if price <= 0 {
		result, err := s.createFreeOrder(ctx, orderID, &event, ticketType, req, referralUsed, referralPrice)
		if err != nil {
			rollbackReferral()
			return nil, err
		}
		return result, nil
	}

	result, err := s.createGatewayOrder(ctx, orderID, &event, ticketType, price, req, referralUsed, referralPrice)
	if err != nil {
		rollbackReferral()
		return nil, err
	}
	return result, nil
}

// createFreeOrder skips the gateway entirely: the order is committed as paid
// in the same transaction as the seat increment, and the confirmation is
// queued fire-and-forget.
func (s *OrderService) createFreeOrder(ctx context.Context, orderID string, event *models.Event, ticketType string, req *CreateOrderRequest, referralUsed bool, referralPrice int64) (*CreateOrderResult, error) {
	fields := s.orderFields(event.ID, ticketType, req, models.ProviderFree, status.Paid, Fees{}, 0)
	if referralUsed {
		fields["referral_code"] = req.ReferralCode
		fields["referral_price"] = referralPrice
	}

	if err := s.reserveSeatAndCreateOrder(ctx, event.ID, ticketType, orderID, fields); err != nil {
		return nil, err
	}
	monitoring.TrackOrderCreated(models.ProviderFree, status.Paid)

	s.notify.Dispatch(ctx, orderID)

	return &CreateOrderResult{
		OrderID:    orderID,
		Provider:   models.ProviderFree,
		Status:     status.Paid,
		TicketType: ticketType,
	}, nil
}

func (s *OrderService) createGatewayOrder(ctx context.Context, orderID string, event *models.Event, ticketType string, price int64, req *CreateOrderRequest, referralUsed bool, referralPrice int64) (*CreateOrderResult, error) {
	method, err := methodCode(req.PaymentType, req.Bank)
	if err != nil {
		return nil, err
	}
	fees := ComputeFees(req.PaymentType, req.Bank, price)
	expiredAt := time.Now().Add(intentExpiry).Unix()

	intent, err := s.gateway.CreateTransaction(ctx, &gateway.CreateRequest{
		Method:        method,
		MerchantRef:   orderID,
		Amount:        fees.AmountGateway,
		CustomerName:  req.Customer.Name,
		CustomerEmail: req.Customer.Email,
		CustomerPhone: req.Customer.Phone,
		OrderItems: []gateway.OrderItem{{
			Name:     fmt.Sprintf("%s (%s)", event.Name, ticketType),
			Price:    fees.AmountGateway,
			Quantity: 1,
		}},
		ExpiredTime: expiredAt,
		Signature:   s.signer.Sign(orderID, fees.AmountGateway),
	})
	if err != nil {
		return nil, err
	}

	mapped := gateway.MapStatus(intent.Status)
	if mapped == "" {
		mapped = status.Pending
	}

	fields := s.orderFields(event.ID, ticketType, req, models.ProviderGateway, mapped, fees, price)
	if referralUsed {
		fields["referral_code"] = req.ReferralCode
		fields["referral_price"] = referralPrice
	}
	fields["gateway_reference"] = intent.Reference
	fields["pay_code"] = intent.PayCode
	fields["checkout_url"] = intent.CheckoutURL
	if raw, err := json.Marshal(intent); err == nil {
		fields["gateway_payload"] = string(raw)
	}

	if err := s.reserveSeatAndCreateOrder(ctx, event.ID, ticketType, orderID, fields); err != nil {
		if errors.Is(err, status.ErrCapacityExceeded) {
			// The gateway-side intent is left orphaned and will expire on
			// its own; the caller must see the failure.
			slog.Warn("seat reservation failed after gateway intent", "order", orderID, "reference", intent.Reference)
			return nil, err
		}
		return nil, &status.PersistenceError{Op: "create order after gateway intent", Err: err}
	}
	monitoring.TrackOrderCreated(models.ProviderGateway, mapped)

	if mapped == status.Paid {
		s.notify.Dispatch(ctx, orderID)
	}

	return &CreateOrderResult{
		OrderID:     orderID,
		Provider:    models.ProviderGateway,
		Status:      mapped,
		TicketType:  ticketType,
		Amounts: models.Amounts{
			Base:        price,
			PlatformFee: fees.PlatformTax,
			GatewayFee:  fees.GatewayFee,
			Gateway:     fees.AmountGateway,
			Total:       fees.TotalCustomer,
		},
		Reference:   intent.Reference,
		PayCode:     intent.PayCode,
		CheckoutURL: intent.CheckoutURL,
		QRURL:       intent.QRURL,
		ExpiredAt:   expiredAt,
	}, nil
}

func (s *OrderService) orderFields(eventID, ticketType string, req *CreateOrderRequest, provider, orderStatus string, fees Fees, base int64) store.Doc {
	return store.Doc{
		"event_id":            eventID,
		"provider":            provider,
		"ticket_type":         ticketType,
		"status":              orderStatus,
		"amount_base":         base,
		"platform_fee":        fees.PlatformTax,
		"gateway_fee":         fees.GatewayFee,
		"amount_gateway":      fees.AmountGateway,
		"amount_total":        fees.TotalCustomer,
		"customer_name":       req.Customer.Name,
		"customer_email":      req.Customer.Email,
		"customer_phone":      req.Customer.Phone,
		"reserved":            true,
		"notification_status": models.NotifyPending,
	}
}

// reserveSeatAndCreateOrder pairs the capacity check-and-increment with the
// order write in a single transaction: no caller can observe an incremented
// counter without the matching order, or the reverse.
func (s *OrderService) reserveSeatAndCreateOrder(ctx context.Context, eventID, ticketType, orderID string, fields store.Doc) error {
	return s.store.RunInTransaction(ctx, func(tx store.Store) error {
		eventDoc, err := tx.Get(ctx, models.CollectionEvents, eventID)
		if err != nil {
			return fmt.Errorf("read event %q: %w", eventID, err)
		}

		capacity := eventDoc.GetInt("capacity")
		used := eventDoc.GetInt("seats_used")
		if capacity > 0 && used >= capacity {
			return status.ErrCapacityExceeded
		}

		counter := "seats_used_regular"
		if ticketType == models.TicketVip {
			counter = "seats_used_vip"
		}
		if err := tx.Set(ctx, models.CollectionEvents, eventID, store.Doc{
			"seats_used": used + 1,
			counter:      eventDoc.GetInt(counter) + 1,
		}); err != nil {
			return fmt.Errorf("increment seats: %w", err)
		}

		return tx.Set(ctx, models.CollectionOrders, orderID, fields)
	})
}

// FindOrder locates an order by document id (= merchant reference) first,
// then by gateway reference.
func (s *OrderService) FindOrder(ctx context.Context, value string) (store.Doc, error) {
	if value == "" {
		return nil, fmt.Errorf("%w: empty order reference", status.ErrValidation)
	}
	doc, err := s.store.Get(ctx, models.CollectionOrders, value)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	doc, err = s.store.GetBy(ctx, models.CollectionOrders, "gateway_reference", value)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, status.ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

func methodCode(paymentType, bank string) (string, error) {
	switch paymentType {
	case PaymentQRIS:
		return "QRIS", nil
	case PaymentBankTransfer:
		switch strings.ToLower(bank) {
		case "bca":
			return "BCAVA", nil
		case "bni":
			return "BNIVA", nil
		case "bri":
			return "BRIVA", nil
		case "mandiri":
			return "MANDIRIVA", nil
		case "permata":
			return "PERMATAVA", nil
		case "":
			return "", fmt.Errorf("%w: bank is required for bank_transfer", status.ErrValidation)
		default:
			return "", fmt.Errorf("%w: unsupported bank %q", status.ErrValidation, bank)
		}
	default:
		return "", fmt.Errorf("%w: unsupported payment type %q", status.ErrValidation, paymentType)
	}
}
