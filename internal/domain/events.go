package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderEventType string

const (
	EventOrderPlaced      OrderEventType = "order.placed"
	EventPaymentConfirmed OrderEventType = "payment.confirmed"
	EventPaymentFailed    OrderEventType = "payment.failed"
	EventOrderRefunded    OrderEventType = "order.refunded"
)

// OrderEvent is published on the order events topic keyed by order ID, so
// events of one order are consumed in order.
type OrderEvent struct {
	EventID       string          `json:"event_id"`
	Type          OrderEventType  `json:"type"`
	OrderID       string          `json:"order_id"`
	OrderNumber   string          `json:"order_number"`
	CustomerID    string          `json:"customer_id,omitempty"`
	CustomerEmail string          `json:"customer_email,omitempty"`
	AffiliateID   string          `json:"affiliate_id,omitempty"`
	Total         decimal.Decimal `json:"total"`
	Items         []OrderItem     `json:"items"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Event builds an order event of type t carrying the order's snapshot.
func (o Order) Event(t OrderEventType, customerEmail string, at time.Time) OrderEvent {
	return OrderEvent{
		EventID:       uuid.NewString(),
		Type:          t,
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		CustomerID:    o.CustomerID,
		CustomerEmail: o.ContactEmail(customerEmail),
		AffiliateID:   o.AffiliateID,
		Total:         o.Total,
		Items:         o.Items,
		Timestamp:     at,
	}
}
