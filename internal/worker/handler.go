package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/faizu526/zerotohero/internal/domain"
	"github.com/faizu526/zerotohero/internal/email"
	"github.com/faizu526/zerotohero/internal/messaging"
)

// Ledger is the part of the affiliate ledger that reacts to order events.
// Every method is safe to replay.
type Ledger interface {
	AccrueOrder(ctx context.Context, event domain.OrderEvent) ([]domain.Commission, error)
	ConfirmPayment(ctx context.Context, orderID string) ([]domain.Commission, error)
	CancelOrder(ctx context.Context, orderID, reason string) ([]domain.Commission, error)
}

type Affiliates interface {
	GetAffiliate(ctx context.Context, id string) (*domain.Affiliate, error)
}

type Mailer interface {
	Send(ctx context.Context, msg email.Message) error
}

type OrderEventHandler struct {
	ledger     Ledger
	affiliates Affiliates
	mailer     Mailer
	logger     *slog.Logger
}

func NewOrderEventHandler(ledger Ledger, affiliates Affiliates, mailer Mailer, logger *slog.Logger) *OrderEventHandler {
	return &OrderEventHandler{
		ledger:     ledger,
		affiliates: affiliates,
		mailer:     mailer,
		logger:     logger,
	}
}

// Handle dispatches on the event type header, falling back to the type in
// the payload. Unknown types and undecodable payloads are logged and
// skipped so they do not block the topic; redelivery could never fix them.
func (h *OrderEventHandler) Handle(ctx context.Context, d messaging.Delivery) error {
	var event domain.OrderEvent
	if err := json.Unmarshal(d.Payload, &event); err != nil {
		h.logger.Error("skipping undecodable order event", "error", err, "key", d.Key, "event_type", d.Type, "payload_bytes", len(d.Payload))
		return nil
	}

	t := domain.OrderEventType(d.Type)
	if t == "" {
		t = event.Type
	}

	h.logger.Info("processing order event", "order_id", event.OrderID, "event_type", t, "event_id", event.EventID)

	switch t {
	case domain.EventOrderPlaced:
		return h.orderPlaced(ctx, event)
	case domain.EventPaymentConfirmed:
		return h.paymentConfirmed(ctx, event)
	case domain.EventPaymentFailed:
		return h.cancel(ctx, event, "payment failed")
	case domain.EventOrderRefunded:
		if err := h.cancel(ctx, event, "order refunded"); err != nil {
			return err
		}
		return h.sendToCustomer(ctx, event, "Refund processed: "+event.OrderNumber,
			fmt.Sprintf("Your order %s has been refunded. %s will reach your original payment method.", event.OrderNumber, event.Total.StringFixed(2)))
	default:
		h.logger.Warn("skipping unknown order event", "order_id", event.OrderID, "event_type", t)
		return nil
	}
}

func (h *OrderEventHandler) orderPlaced(ctx context.Context, event domain.OrderEvent) error {
	if _, err := h.ledger.AccrueOrder(ctx, event); err != nil {
		h.logger.Error("failed to accrue commissions", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("accrue order: %w", err)
	}
	return nil
}

// paymentConfirmed accrues first so an order whose placed event never
// arrived is still credited. Accrual is a no-op once commissions exist.
func (h *OrderEventHandler) paymentConfirmed(ctx context.Context, event domain.OrderEvent) error {
	if err := h.orderPlaced(ctx, event); err != nil {
		return err
	}

	approved, err := h.ledger.ConfirmPayment(ctx, event.OrderID)
	if err != nil {
		h.logger.Error("failed to confirm commissions", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("confirm payment: %w", err)
	}

	if err := h.sendToCustomer(ctx, event, "Order Confirmation: "+event.OrderNumber,
		fmt.Sprintf("Your order %s is paid. Total %s for %d items.", event.OrderNumber, event.Total.StringFixed(2), len(event.Items))); err != nil {
		return err
	}

	return h.notifyAffiliates(ctx, approved)
}

func (h *OrderEventHandler) cancel(ctx context.Context, event domain.OrderEvent, reason string) error {
	if _, err := h.ledger.CancelOrder(ctx, event.OrderID, reason); err != nil {
		h.logger.Error("failed to cancel commissions", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("cancel order: %w", err)
	}
	return nil
}

func (h *OrderEventHandler) sendToCustomer(ctx context.Context, event domain.OrderEvent, subject, body string) error {
	if event.CustomerEmail == "" {
		h.logger.Info("order has no contact email", "order_id", event.OrderID)
		return nil
	}
	if err := h.mailer.Send(ctx, email.Message{To: event.CustomerEmail, Subject: subject, Body: body}); err != nil {
		h.logger.Error("failed to send customer email", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("send customer email: %w", err)
	}
	return nil
}

// notifyAffiliates sends one notice per affiliate with the sum approved.
func (h *OrderEventHandler) notifyAffiliates(ctx context.Context, approved []domain.Commission) error {
	if len(approved) == 0 {
		return nil
	}

	var order []string
	sums := map[string][]domain.Commission{}
	for _, c := range approved {
		if _, ok := sums[c.AffiliateID]; !ok {
			order = append(order, c.AffiliateID)
		}
		sums[c.AffiliateID] = append(sums[c.AffiliateID], c)
	}

	for _, id := range order {
		a, err := h.affiliates.GetAffiliate(ctx, id)
		if err != nil {
			return fmt.Errorf("get affiliate: %w", err)
		}
		if a == nil || a.Email == "" {
			continue
		}

		total := sums[id][0].Amount
		for _, c := range sums[id][1:] {
			total = total.Add(c.Amount)
		}
		msg := email.Message{
			To:      a.Email,
			Subject: "Commission approved",
			Body:    fmt.Sprintf("%s in commission was approved for order %s.", total.StringFixed(2), sums[id][0].OrderID),
		}
		if err := h.mailer.Send(ctx, msg); err != nil {
			h.logger.Error("failed to send commission notice", "error", err, "affiliate_id", id)
			return fmt.Errorf("send commission notice: %w", err)
		}
	}
	return nil
}
