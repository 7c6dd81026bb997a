package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/faizu526/zerotohero/internal/pricing"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// CanTransition reports whether a payment may move from s to to.
func (s PaymentStatus) CanTransition(to PaymentStatus) bool {
	switch s {
	case PaymentPending:
		return to == PaymentPaid || to == PaymentFailed
	case PaymentPaid:
		return to == PaymentRefunded
	}
	return false
}

var paymentStatuses = []PaymentStatus{PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded}

// PaymentStatusesBefore lists the statuses that may move to to.
func PaymentStatusesBefore(to PaymentStatus) []PaymentStatus {
	var from []PaymentStatus
	for _, s := range paymentStatuses {
		if s.CanTransition(to) {
			from = append(from, s)
		}
	}
	return from
}

// ParsePaymentStatus maps a gateway webhook status onto a payment status.
func ParsePaymentStatus(raw string) (PaymentStatus, bool) {
	switch raw {
	case "succeeded", "paid":
		return PaymentPaid, true
	case "failed":
		return PaymentFailed, true
	case "refunded":
		return PaymentRefunded, true
	}
	return "", false
}

// OrderStatusFor is the fulfilment status that follows a payment status.
func OrderStatusFor(p PaymentStatus) OrderStatus {
	switch p {
	case PaymentPaid:
		return OrderStatusCompleted
	case PaymentFailed:
		return OrderStatusCancelled
	case PaymentRefunded:
		return OrderStatusRefunded
	}
	return OrderStatusPending
}

// OrderItem is a snapshot of a product at purchase time. It is never
// updated after the order is created.
type OrderItem struct {
	ID               string          `json:"id"`
	ProductID        int64           `json:"product_id"`
	ProductName      string          `json:"product_name"`
	PlatformName     string          `json:"platform_name"`
	Quantity         int             `json:"quantity"`
	Price            decimal.Decimal `json:"price"`
	OriginalPrice    decimal.Decimal `json:"original_price"`
	CommissionRate   decimal.Decimal `json:"commission_rate"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`
}

// LineTotal is what the student paid for the line.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// LineSavings is the saving against the platform price at purchase time.
func (i OrderItem) LineSavings() decimal.Decimal {
	qty := decimal.NewFromInt(int64(i.Quantity))
	s, err := pricing.ComputeSavings(i.OriginalPrice.Mul(qty), i.LineTotal())
	if err != nil {
		return decimal.Zero
	}
	return s.Amount
}

type Order struct {
	ID                  string          `json:"id"`
	OrderNumber         string          `json:"order_number"`
	CustomerID          string          `json:"customer_id,omitempty"`
	CustomerEmail       string          `json:"customer_email,omitempty"`
	GuestEmail          string          `json:"guest_email,omitempty"`
	GuestName           string          `json:"guest_name,omitempty"`
	Items               []OrderItem     `json:"items"`
	Subtotal            decimal.Decimal `json:"subtotal"`
	Discount            decimal.Decimal `json:"discount"`
	Total               decimal.Decimal `json:"total"`
	CommissionTotal     decimal.Decimal `json:"commission_total"`
	AffiliateCommission decimal.Decimal `json:"affiliate_commission"`
	AffiliateID         string          `json:"affiliate_id,omitempty"`
	AffiliateCode       string          `json:"affiliate_code,omitempty"`
	PaymentMethod       string          `json:"payment_method"`
	PaymentID           string          `json:"payment_id,omitempty"`
	PaymentStatus       PaymentStatus   `json:"payment_status"`
	Status              OrderStatus     `json:"order_status"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
	PaidAt              *time.Time      `json:"paid_at,omitempty"`
}

// NewOrderNumber returns "ZTH-" followed by eight upper-case hex digits.
func NewOrderNumber() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "ZTH-" + strings.ToUpper(hex[:8])
}

// NewOrder snapshots a priced quote into a pending order. The affiliate
// share equals the commission total when an affiliate is attributed.
func NewOrder(quote pricing.Quote, affiliateID, affiliateCode string, at time.Time) Order {
	o := Order{
		ID:                  uuid.NewString(),
		OrderNumber:         NewOrderNumber(),
		Subtotal:            quote.Subtotal,
		Discount:            decimal.Zero,
		Total:               quote.Subtotal,
		CommissionTotal:     quote.CommissionTotal,
		AffiliateCommission: decimal.Zero,
		PaymentStatus:       PaymentPending,
		Status:              OrderStatusPending,
		CreatedAt:           at,
		UpdatedAt:           at,
	}

	for _, l := range quote.Lines {
		o.Items = append(o.Items, OrderItem{
			ID:               uuid.NewString(),
			ProductID:        l.ProductID,
			ProductName:      l.Name,
			PlatformName:     l.PlatformName,
			Quantity:         l.Quantity,
			Price:            l.UnitPrice,
			OriginalPrice:    l.OriginalUnitPrice,
			CommissionRate:   l.CommissionRate,
			CommissionAmount: l.CommissionAmount,
		})
	}

	if affiliateID != "" {
		o.AffiliateID = affiliateID
		o.AffiliateCode = affiliateCode
		o.AffiliateCommission = quote.CommissionTotal
	}
	return o
}

// TotalSaved sums the item savings recorded at purchase time.
func (o Order) TotalSaved() decimal.Decimal {
	total := decimal.Zero
	for _, i := range o.Items {
		total = total.Add(i.LineSavings())
	}
	return total
}

// ContactEmail is where receipts for the order are sent.
func (o Order) ContactEmail(customerEmail string) string {
	if o.GuestEmail != "" {
		return o.GuestEmail
	}
	return customerEmail
}
