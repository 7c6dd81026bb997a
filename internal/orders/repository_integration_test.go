//go:build integration

package orders

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faizu526/zerotohero/internal/domain"
	"github.com/faizu526/zerotohero/internal/testutil"
)

func newPostgresFixture(ctx context.Context, t *testing.T) (*fixture, *OrderRepository) {
	t.Helper()

	pg := testutil.StartPostgres(ctx, t)
	repo := NewOrderRepository(pg.DB(ctx, t, "orders"))

	f := newFixture()
	f.service = NewService(repo, f.catalog, f.referrals, f.producer, discardLogger())
	return f, repo
}

func TestOrderRepository_CheckoutAndPayment(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	f, repo := newPostgresFixture(ctx, t)

	placed, err := f.service.Checkout(ctx, CheckoutRequest{
		CustomerID:    "cust-1",
		Email:         "student@example.com",
		Items:         cartItems(),
		AffiliateCode: "GOOD1234",
		PaymentMethod: "razorpay",
	})
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, placed.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, placed.OrderNumber, got.OrderNumber)
	assert.Equal(t, "aff-1", got.AffiliateID)
	assert.Equal(t, "student@example.com", got.CustomerEmail)
	assert.True(t, got.Subtotal.Equal(dec("1880")), "got %s", got.Subtotal)
	assert.True(t, got.CommissionTotal.Equal(dec("100")))
	require.Len(t, got.Items, 2)
	assert.Equal(t, int64(1), got.Items[0].ProductID, "items keep cart order")
	assert.True(t, got.Items[1].Price.IsZero())
	assert.Nil(t, got.PaidAt)

	res, err := f.service.ApplyPayment(ctx, PaymentUpdate{OrderID: placed.ID, PaymentID: "pay_1", Status: "succeeded"})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, domain.PaymentPaid, res.Order.PaymentStatus)
	assert.Equal(t, "pay_1", res.Order.PaymentID)
	assert.NotNil(t, res.Order.PaidAt)

	dup, err := f.service.ApplyPayment(ctx, PaymentUpdate{OrderID: placed.ID, PaymentID: "pay_1", Status: "paid"})
	require.NoError(t, err)
	assert.False(t, dup.Changed)

	_, err = f.service.ApplyPayment(ctx, PaymentUpdate{OrderID: placed.ID, Status: "failed"})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.service.ApplyPayment(ctx, PaymentUpdate{OrderID: "no-such-order", Status: "paid"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	refunded, err := f.service.ApplyPayment(ctx, PaymentUpdate{OrderID: placed.ID, Status: "refunded"})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusRefunded, refunded.Order.Status)
	assert.NotNil(t, refunded.Order.PaidAt, "refund keeps paid_at")

	assert.Equal(t, []string{
		string(domain.EventOrderPlaced),
		string(domain.EventPaymentConfirmed),
		string(domain.EventPaymentConfirmed),
		string(domain.EventOrderRefunded),
	}, f.producer.types())
}

func TestOrderRepository_ListFilters(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	f, repo := newPostgresFixture(ctx, t)

	var numbers []string
	for i := 0; i < 3; i++ {
		o, err := f.service.Checkout(ctx, CheckoutRequest{
			CustomerID:    "cust-list",
			Items:         cartItems()[:1],
			PaymentMethod: "stripe",
		})
		require.NoError(t, err)
		numbers = append(numbers, o.OrderNumber)
	}
	_, err := f.service.Checkout(ctx, CheckoutRequest{
		Email:         "guest@example.com",
		GuestName:     "Guest",
		Items:         cartItems()[:1],
		PaymentMethod: "stripe",
	})
	require.NoError(t, err)

	all, err := repo.List(ctx, ListFilter{CustomerID: "cust-list"})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	for _, o := range all {
		assert.Len(t, o.Items, 1)
	}

	limited, err := repo.List(ctx, ListFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	found, err := repo.List(ctx, ListFilter{Search: numbers[1][4:]})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, numbers[1], found[0].OrderNumber)

	pending, err := repo.List(ctx, ListFilter{Status: domain.OrderStatusPending})
	require.NoError(t, err)
	assert.Len(t, pending, 4)

	completed, err := repo.List(ctx, ListFilter{Status: domain.OrderStatusCompleted})
	require.NoError(t, err)
	assert.Empty(t, completed)
}

func TestOrderRepository_SalesAggregates(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	f, repo := newPostgresFixture(ctx, t)

	for i, status := range []string{"succeeded", "succeeded", ""} {
		o, err := f.service.Checkout(ctx, CheckoutRequest{
			CustomerID:    "cust-sales",
			Items:         cartItems(),
			PaymentMethod: "stripe",
		})
		require.NoError(t, err, "order %d", i)
		if status != "" {
			_, err = f.service.ApplyPayment(ctx, PaymentUpdate{OrderID: o.ID, Status: status})
			require.NoError(t, err)
		}
	}

	platforms, err := repo.PlatformSales(ctx)
	require.NoError(t, err)
	require.Len(t, platforms, 1)
	assert.Equal(t, "TryHackMe", platforms[0].Platform)
	assert.Equal(t, 2, platforms[0].Orders)
	assert.True(t, platforms[0].Revenue.Equal(dec("3760")))

	now := time.Now()
	window, err := repo.PaidBetween(ctx, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, window.Orders)
	assert.True(t, window.Revenue.Equal(dec("3760")))

	earlier, err := repo.PaidBetween(ctx, now.Add(-48*time.Hour), now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, earlier.Orders)
	assert.True(t, earlier.Revenue.IsZero())
}
