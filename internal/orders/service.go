package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/faizu526/zerotohero/internal/domain"
	"github.com/faizu526/zerotohero/internal/messaging"
	"github.com/faizu526/zerotohero/internal/pricing"
)

// RecentOrders is how many orders the customer dashboard shows.
const RecentOrders = 5

var (
	ErrInvalidCheckout = errors.New("invalid checkout")
	ErrUnknownStatus   = errors.New("unknown payment status")
)

var paymentMethods = map[string]bool{
	"stripe":   true,
	"razorpay": true,
}

type Service struct {
	repo      Repository
	catalog   Catalog
	referrals Referrals
	producer  messaging.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewService wires checkout. producer may be nil, in which case no events
// are published.
func NewService(repo Repository, catalog Catalog, referrals Referrals, producer messaging.Publisher, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		catalog:   catalog,
		referrals: referrals,
		producer:  producer,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Quote prices an explicit cart against the current catalog.
func (s *Service) Quote(ctx context.Context, lines []pricing.CartLine) (pricing.Quote, error) {
	for _, l := range lines {
		if l.Quantity <= 0 {
			return pricing.Quote{}, fmt.Errorf("product %d: %w", l.ProductID, pricing.ErrInvalidQuantity)
		}
	}
	cart := pricing.NewCart(lines...)
	if cart.IsEmpty() {
		return pricing.QuoteCart(cart, nil)
	}

	prices, err := s.catalog.Lookup(ctx, cart.ProductIDs())
	if err != nil {
		return pricing.Quote{}, err
	}
	byID := make(map[int64]pricing.ProductPrice, len(prices))
	for _, p := range prices {
		byID[p.ProductID] = p
	}
	return pricing.QuoteCart(cart, byID)
}

type CheckoutRequest struct {
	CustomerID    string             `json:"customer_id"`
	Email         string             `json:"email"`
	GuestName     string             `json:"guest_name"`
	Items         []pricing.CartLine `json:"items"`
	AffiliateCode string             `json:"affiliate_code"`
	PaymentMethod string             `json:"payment_method"`
}

func (r CheckoutRequest) validate() error {
	switch {
	case len(r.Items) == 0:
		return fmt.Errorf("%w: cart is empty", ErrInvalidCheckout)
	case r.CustomerID == "" && r.Email == "":
		return fmt.Errorf("%w: guest checkout needs an email", ErrInvalidCheckout)
	case !paymentMethods[r.PaymentMethod]:
		return fmt.Errorf("%w: unsupported payment method %q", ErrInvalidCheckout, r.PaymentMethod)
	}
	return nil
}

// Checkout snapshots the priced cart into a pending order and publishes
// order.placed. An unknown referral code places the order without credit.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (domain.Order, error) {
	if err := req.validate(); err != nil {
		return domain.Order{}, err
	}

	quote, err := s.Quote(ctx, req.Items)
	if err != nil {
		return domain.Order{}, err
	}
	if len(quote.Lines) == 0 {
		return domain.Order{}, fmt.Errorf("%w: no purchasable items", ErrInvalidCheckout)
	}
	if len(quote.Skipped) > 0 {
		s.logger.Warn("checkout skipped unavailable products", "product_ids", quote.Skipped)
	}

	ref := s.resolveReferral(ctx, strings.TrimSpace(req.AffiliateCode))
	var affiliateID, affiliateCode string
	if ref != nil {
		affiliateID, affiliateCode = ref.AffiliateID, ref.ReferralCode
	}

	order := domain.NewOrder(quote, affiliateID, affiliateCode, s.now())
	order.CustomerID = req.CustomerID
	order.GuestName = req.GuestName
	order.PaymentMethod = req.PaymentMethod
	if req.CustomerID == "" {
		order.GuestEmail = req.Email
	} else {
		order.CustomerEmail = req.Email
	}

	if err := s.repo.Create(ctx, &order); err != nil {
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}

	s.publish(ctx, order, domain.EventOrderPlaced)
	s.logger.Info("order placed",
		"order_id", order.ID,
		"order_number", order.OrderNumber,
		"customer_id", order.CustomerID,
		"affiliate_id", order.AffiliateID,
		"total", order.Total,
	)
	return order, nil
}

func (s *Service) resolveReferral(ctx context.Context, code string) *Referral {
	if code == "" || s.referrals == nil {
		return nil
	}
	ref, err := s.referrals.Resolve(ctx, code)
	if err != nil {
		s.logger.Error("failed to resolve referral, placing order without credit", "error", err, "referral_code", code)
		return nil
	}
	if ref == nil {
		s.logger.Info("unknown referral code", "referral_code", code)
	}
	return ref
}

type PaymentUpdate struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
}

type PaymentResult struct {
	Order   domain.Order `json:"order"`
	Changed bool         `json:"changed"`
}

var paymentEvents = map[domain.PaymentStatus]domain.OrderEventType{
	domain.PaymentPaid:     domain.EventPaymentConfirmed,
	domain.PaymentFailed:   domain.EventPaymentFailed,
	domain.PaymentRefunded: domain.EventOrderRefunded,
}

// ApplyPayment records a verified gateway status. Each transition happens
// once: a repeated webhook returns the order unchanged but publishes the
// event again, so a publish lost after the first delivery is recovered by
// the gateway's retry. Consumers treat the repeat as a no-op.
func (s *Service) ApplyPayment(ctx context.Context, u PaymentUpdate) (PaymentResult, error) {
	to, ok := domain.ParsePaymentStatus(u.Status)
	if !ok {
		return PaymentResult{}, fmt.Errorf("%q: %w", u.Status, ErrUnknownStatus)
	}

	updated, err := s.repo.ApplyPayment(ctx, u.OrderID, u.PaymentID, to, s.now())
	if err != nil {
		return PaymentResult{}, fmt.Errorf("apply payment: %w", err)
	}

	if updated == nil {
		current, err := s.repo.GetByID(ctx, u.OrderID)
		if err != nil {
			return PaymentResult{}, err
		}
		if current == nil {
			return PaymentResult{}, domain.ErrNotFound
		}
		if current.PaymentStatus != to {
			return PaymentResult{}, fmt.Errorf("payment %s -> %s: %w", current.PaymentStatus, to, domain.ErrInvalidTransition)
		}
		s.logger.Info("duplicate payment webhook, republishing event", "order_id", u.OrderID, "payment_status", to)
		s.publish(ctx, *current, paymentEvents[to])
		return PaymentResult{Order: *current}, nil
	}

	s.publish(ctx, *updated, paymentEvents[to])
	s.logger.Info("payment status updated", "order_id", updated.ID, "payment_status", to, "payment_id", u.PaymentID)
	return PaymentResult{Order: *updated, Changed: true}, nil
}

func (s *Service) publish(ctx context.Context, order domain.Order, t domain.OrderEventType) {
	if s.producer == nil {
		return
	}
	event := order.Event(t, order.CustomerEmail, s.now())
	if err := s.producer.Publish(ctx, order.ID, string(t), event); err != nil {
		s.logger.Error("failed to publish order event", "error", err, "order_id", order.ID, "event_type", t)
	}
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Order, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Order, error) {
	return s.repo.List(ctx, f)
}

type Dashboard struct {
	CustomerID       string          `json:"customer_id"`
	TotalSpent       decimal.Decimal `json:"total_spent"`
	TotalSaved       decimal.Decimal `json:"total_saved"`
	CoursesPurchased int             `json:"courses_purchased"`
	Orders           int             `json:"orders"`
	PaidOrders       int             `json:"paid_orders"`
	RecentOrders     []domain.Order  `json:"recent_orders"`
}

// CustomerDashboard sums paid orders only. Savings come from the item
// snapshots, so later repricing does not change them.
func (s *Service) CustomerDashboard(ctx context.Context, customerID string) (Dashboard, error) {
	orders, err := s.repo.List(ctx, ListFilter{CustomerID: customerID})
	if err != nil {
		return Dashboard{}, err
	}
	return buildDashboard(customerID, orders), nil
}

func buildDashboard(customerID string, orders []domain.Order) Dashboard {
	d := Dashboard{
		CustomerID:   customerID,
		TotalSpent:   decimal.Zero,
		TotalSaved:   decimal.Zero,
		Orders:       len(orders),
		RecentOrders: orders[:min(len(orders), RecentOrders)],
	}
	for _, o := range orders {
		if o.PaymentStatus != domain.PaymentPaid {
			continue
		}
		d.PaidOrders++
		d.TotalSpent = d.TotalSpent.Add(o.Total)
		d.TotalSaved = d.TotalSaved.Add(o.TotalSaved())
		for _, item := range o.Items {
			d.CoursesPurchased += item.Quantity
		}
	}
	return d
}
