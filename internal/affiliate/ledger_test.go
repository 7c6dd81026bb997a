package affiliate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/faizu526/zerotohero/internal/domain"
	"github.com/faizu526/zerotohero/internal/pricing"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	ledger *Ledger
	store  *MemoryStore
	clock  time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	metrics, err := NewMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	f := &fixture{
		store: NewMemoryStore(),
		clock: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	f.ledger = NewLedger(f.store, metrics, discardLogger())
	f.ledger.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

// seed inserts an affiliate whose balances are all available.
func (f *fixture) seed(t *testing.T, code string, available string) domain.Affiliate {
	t.Helper()

	a := domain.Affiliate{
		ID:             "aff-" + code,
		ReferralCode:   code,
		Email:          code + "@example.com",
		Balances:       domain.ZeroBalances(),
		ConversionRate: decimal.Zero,
		IsActive:       true,
	}
	a.Balances.Available = dec(available)
	a.Balances.TotalEarned = dec(available)

	err := f.store.WithTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.CreateAffiliate(ctx, a)
	})
	require.NoError(t, err)
	return a
}

func (f *fixture) balances(t *testing.T, id string) domain.Balances {
	t.Helper()

	a, err := f.store.GetAffiliate(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, a)
	require.NoError(t, a.Balances.Validate())
	return a.Balances
}

func orderEvent(orderID, affiliateID string, items ...domain.OrderItem) domain.OrderEvent {
	return domain.OrderEvent{
		Type:        domain.EventOrderPlaced,
		OrderID:     orderID,
		AffiliateID: affiliateID,
		Items:       items,
	}
}

func item(id string, original, rate string, qty int) domain.OrderItem {
	return domain.OrderItem{
		ID:             id,
		ProductID:      1,
		Quantity:       qty,
		Price:          dec(original),
		OriginalPrice:  dec(original),
		CommissionRate: dec(rate),
	}
}

func TestAttributeReferral_CaseSensitive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seed(t, "ABC123", "0")

	got, err := f.ledger.AttributeReferral(ctx, "ABC123")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, a.ID, got.ID)

	got, err = f.ledger.AttributeReferral(ctx, "abc123")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = f.ledger.AttributeReferral(ctx, "ZZZ999")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = f.ledger.AttributeReferral(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAttributeReferral_InactiveAffiliate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seed(t, "OFF00001", "0")

	err := f.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		a.IsActive = false
		return tx.SaveAffiliate(ctx, a)
	})
	require.NoError(t, err)

	got, err := f.ledger.AttributeReferral(ctx, "OFF00001")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAccrueCommission_DoesNotTouchBalances(t *testing.T) {
	f := newFixture(t)
	a := f.seed(t, "ACC00001", "0")

	c, err := f.ledger.AccrueCommission(dec("1000"), dec("5"), a)
	require.NoError(t, err)
	assert.Equal(t, domain.CommissionPending, c.Status)
	assert.True(t, c.Amount.Equal(dec("50.00")))
	assert.Equal(t, a.ID, c.AffiliateID)

	assert.True(t, f.balances(t, a.ID).Pending.IsZero())

	_, err = f.ledger.AccrueCommission(dec("1000"), dec("101"), a)
	assert.ErrorIs(t, err, domain.ErrInvalidRate)
}

func TestAccrueOrder_IdempotentAndSkipsZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seed(t, "ORD00001", "0")

	event := orderEvent("order-1", a.ID,
		item("i1", "1000", "5", 1),
		item("i2", "200", "0", 1),
		item("i3", "300", "3", 2),
	)

	accrued, err := f.ledger.AccrueOrder(ctx, event)
	require.NoError(t, err)
	require.Len(t, accrued, 2)
	assert.True(t, accrued[0].Amount.Equal(dec("50")))
	assert.True(t, accrued[1].Amount.Equal(dec("18")))

	again, err := f.ledger.AccrueOrder(ctx, event)
	require.NoError(t, err)
	assert.Empty(t, again)

	all, err := f.store.ListCommissions(ctx, a.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestAccrueOrder_WithoutAffiliate(t *testing.T) {
	f := newFixture(t)

	accrued, err := f.ledger.AccrueOrder(context.Background(), orderEvent("order-1", "", item("i1", "1000", "5", 1)))
	require.NoError(t, err)
	assert.Empty(t, accrued)

	accrued, err = f.ledger.AccrueOrder(context.Background(), orderEvent("order-2", "missing", item("i1", "1000", "5", 1)))
	require.NoError(t, err)
	assert.Empty(t, accrued)
}

func TestConfirmPayment_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seed(t, "IDEM0001", "0")

	_, err := f.ledger.AccrueOrder(ctx, orderEvent("order-1", a.ID, item("i1", "1000", "5", 1), item("i2", "499.99", "3", 1)))
	require.NoError(t, err)

	approved, err := f.ledger.ConfirmPayment(ctx, "order-1")
	require.NoError(t, err)
	assert.Len(t, approved, 2)
	once := f.balances(t, a.ID)
	assert.True(t, once.Pending.Equal(dec("65")), "got %s", once.Pending)

	approved, err = f.ledger.ConfirmPayment(ctx, "order-1")
	require.NoError(t, err)
	assert.Empty(t, approved)
	twice := f.balances(t, a.ID)
	assert.True(t, once.Pending.Equal(twice.Pending))
	assert.True(t, once.TotalEarned.Equal(twice.TotalEarned))

	got, err := f.store.GetAffiliate(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Conversions)
}

func TestConfirmPayment_UnknownOrderIsNoop(t *testing.T) {
	f := newFixture(t)

	approved, err := f.ledger.ConfirmPayment(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, approved)
}

func TestCancelCommission_ReversesApprovedCredit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seed(t, "REV00001", "12.50")

	before := f.balances(t, a.ID)

	accrued, err := f.ledger.AccrueOrder(ctx, orderEvent("order-1", a.ID, item("i1", "1000", "5", 1)))
	require.NoError(t, err)
	require.Len(t, accrued, 1)

	_, err = f.ledger.ConfirmPayment(ctx, "order-1")
	require.NoError(t, err)
	assert.True(t, f.balances(t, a.ID).Pending.Equal(dec("50")))

	cancelled, err := f.ledger.CancelCommission(ctx, accrued[0].ID, "refund")
	require.NoError(t, err)
	assert.Equal(t, domain.CommissionCancelled, cancelled.Status)
	assert.Equal(t, "refund", cancelled.Notes)

	after := f.balances(t, a.ID)
	assert.True(t, before.Pending.Equal(after.Pending))
	assert.True(t, before.Available.Equal(after.Available))
	assert.True(t, before.TotalEarned.Equal(after.TotalEarned))

	_, err = f.ledger.CancelCommission(ctx, accrued[0].ID, "again")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, after, f.balances(t, a.ID))
}

func TestCancelCommission_PendingHasNoBalanceEffect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seed(t, "PEN00001", "0")

	accrued, err := f.ledger.AccrueOrder(ctx, orderEvent("order-1", a.ID, item("i1", "1000", "5", 1)))
	require.NoError(t, err)

	_, err = f.ledger.CancelCommission(ctx, accrued[0].ID, "")
	require.NoError(t, err)
	assert.True(t, f.balances(t, a.ID).TotalEarned.IsZero())

	// A later payment confirmation finds nothing pending.
	approved, err := f.ledger.ConfirmPayment(ctx, "order-1")
	require.NoError(t, err)
	assert.Empty(t, approved)
	assert.True(t, f.balances(t, a.ID).Pending.IsZero())

	_, err = f.ledger.CancelCommission(ctx, "missing", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCancelOrder_LeavesPaidCommissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seed(t, "REF00001", "0")

	_, err := f.ledger.AccrueOrder(ctx, orderEvent("order-1", a.ID, item("i1", "1000", "5", 1)))
	require.NoError(t, err)
	_, err = f.ledger.ConfirmPayment(ctx, "order-1")
	require.NoError(t, err)

	f.advance(15 * 24 * time.Hour)
	released, err := f.ledger.ReleaseApproved(ctx, f.clock.Add(-14*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, released)

	cancelled, err := f.ledger.CancelOrder(ctx, "order-1", "refund")
	require.NoError(t, err)
	assert.Empty(t, cancelled)
	assert.True(t, f.balances(t, a.ID).Available.Equal(dec("50")))
}

func TestCancelOrder_CancelsOpenCommissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seed(t, "REF00002", "0")

	_, err := f.ledger.AccrueOrder(ctx, orderEvent("order-1", a.ID, item("i1", "1000", "5", 1), item("i2", "100", "10", 1)))
	require.NoError(t, err)
	_, err = f.ledger.ConfirmPayment(ctx, "order-1")
	require.NoError(t, err)

	cancelled, err := f.ledger.CancelOrder(ctx, "order-1", "refund")
	require.NoError(t, err)
	assert.Len(t, cancelled, 2)
	assert.True(t, f.balances(t, a.ID).TotalEarned.IsZero())

	cancelled, err = f.ledger.CancelOrder(ctx, "order-1", "refund")
	require.NoError(t, err)
	assert.Empty(t, cancelled)
}

func TestReleaseApproved_RespectsCutoff(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seed(t, "REL00001", "0")

	_, err := f.ledger.AccrueOrder(ctx, orderEvent("old", a.ID, item("i1", "1000", "5", 1)))
	require.NoError(t, err)
	_, err = f.ledger.ConfirmPayment(ctx, "old")
	require.NoError(t, err)

	f.advance(10 * 24 * time.Hour)
	_, err = f.ledger.AccrueOrder(ctx, orderEvent("new", a.ID, item("i1", "200", "5", 1)))
	require.NoError(t, err)
	_, err = f.ledger.ConfirmPayment(ctx, "new")
	require.NoError(t, err)

	f.advance(5 * 24 * time.Hour)
	job := NewReleaseJob(f.ledger, 14, discardLogger())
	n, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	b := f.balances(t, a.ID)
	assert.True(t, b.Available.Equal(dec("50")))
	assert.True(t, b.Pending.Equal(dec("10")))

	paid, err := f.store.ListCommissions(ctx, a.ID, domain.CommissionPaid)
	require.NoError(t, err)
	require.Len(t, paid, 1)
	assert.Equal(t, "old", paid[0].OrderID)

	n, err = job.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRequestWithdrawal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seed(t, "WDR00001", "100")

	w, err := f.ledger.RequestWithdrawal(ctx, a.ID, dec("80"), domain.PaymentMethodUPI, map[string]string{"vpa": "me@upi"})
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalPending, w.Status)

	b := f.balances(t, a.ID)
	assert.True(t, b.Available.Equal(dec("20")))
	assert.True(t, b.Withdrawn.Equal(dec("80")))

	_, err = f.ledger.RequestWithdrawal(ctx, a.ID, dec("20.01"), domain.PaymentMethodUPI, nil)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	_, err = f.ledger.RequestWithdrawal(ctx, a.ID, dec("0"), domain.PaymentMethodUPI, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.ledger.RequestWithdrawal(ctx, "missing", dec("1"), domain.PaymentMethodUPI, nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.Equal(t, b, f.balances(t, a.ID))
}

func TestRequestWithdrawal_FlagsNewPayoutDestination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seed(t, "DST00001", "100")
	usual := map[string]string{"vpa": "asha@upi"}

	first, err := f.ledger.RequestWithdrawal(ctx, a.ID, dec("30"), domain.PaymentMethodUPI, usual)
	require.NoError(t, err)
	assert.False(t, first.NeedsReview, "no completed payout to compare against")

	for _, to := range []domain.WithdrawalStatus{domain.WithdrawalProcessing, domain.WithdrawalCompleted} {
		_, err = f.ledger.TransitionWithdrawal(ctx, first.ID, to, "txn-1", "")
		require.NoError(t, err)
	}

	same, err := f.ledger.RequestWithdrawal(ctx, a.ID, dec("30"), domain.PaymentMethodUPI, map[string]string{"vpa": "asha@upi"})
	require.NoError(t, err)
	assert.False(t, same.NeedsReview)

	f.advance(time.Hour)
	other, err := f.ledger.RequestWithdrawal(ctx, a.ID, dec("30"), domain.PaymentMethodUPI, map[string]string{"vpa": "someone@upi"})
	require.NoError(t, err)
	assert.True(t, other.NeedsReview)

	stored, err := f.store.ListWithdrawals(ctx, a.ID, 1)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, other.ID, stored[0].ID)
	assert.True(t, stored[0].NeedsReview)
}

func TestRequestWithdrawal_ConcurrentRequestsNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seed(t, "RACE0001", "100")

	const workers = 2
	var (
		wg       sync.WaitGroup
		start    = make(chan struct{})
		mu       sync.Mutex
		success  int
		rejected int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.ledger.RequestWithdrawal(ctx, a.ID, dec("80"), domain.PaymentMethodBank, nil)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, domain.ErrInsufficientBalance):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}

	close(start)
	wg.Wait()

	assert.Equal(t, 1, success)
	assert.Equal(t, 1, rejected)

	b := f.balances(t, a.ID)
	assert.True(t, b.Available.Equal(dec("20")))
	assert.True(t, b.Withdrawn.Equal(dec("80")))
}

func TestRequestWithdrawal_ManyConcurrentRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seed(t, "RACE0002", "100")

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.RequestWithdrawal(ctx, a.ID, dec("7"), domain.PaymentMethodBank, nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	}

	assert.Equal(t, 14, success)
	b := f.balances(t, a.ID)
	assert.True(t, b.Withdrawn.Equal(dec("98")))
	assert.True(t, b.Available.Equal(dec("2")))
}

func TestTransitionWithdrawal_RejectRestoresHold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seed(t, "WDR00002", "100")

	w, err := f.ledger.RequestWithdrawal(ctx, a.ID, dec("60"), domain.PaymentMethodBank, nil)
	require.NoError(t, err)

	w, err = f.ledger.TransitionWithdrawal(ctx, w.ID, domain.WithdrawalProcessing, "", "")
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalProcessing, w.Status)

	w, err = f.ledger.TransitionWithdrawal(ctx, w.ID, domain.WithdrawalRejected, "", "bank details invalid")
	require.NoError(t, err)
	assert.Equal(t, "bank details invalid", w.Notes)

	b := f.balances(t, a.ID)
	assert.True(t, b.Available.Equal(dec("100")))
	assert.True(t, b.Withdrawn.IsZero())

	_, err = f.ledger.TransitionWithdrawal(ctx, w.ID, domain.WithdrawalCompleted, "", "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestTransitionWithdrawal_Complete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seed(t, "WDR00003", "100")

	w, err := f.ledger.RequestWithdrawal(ctx, a.ID, dec("40"), domain.PaymentMethodBank, nil)
	require.NoError(t, err)

	_, err = f.ledger.TransitionWithdrawal(ctx, w.ID, domain.WithdrawalCompleted, "", "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.ledger.TransitionWithdrawal(ctx, w.ID, domain.WithdrawalProcessing, "", "")
	require.NoError(t, err)
	w, err = f.ledger.TransitionWithdrawal(ctx, w.ID, domain.WithdrawalCompleted, "TXN-42", "")
	require.NoError(t, err)
	assert.Equal(t, "TXN-42", w.TransactionID)
	require.NotNil(t, w.ProcessedAt)

	b := f.balances(t, a.ID)
	assert.True(t, b.Available.Equal(dec("60")))
	assert.True(t, b.Withdrawn.Equal(dec("40")))

	_, err = f.ledger.TransitionWithdrawal(ctx, "missing", domain.WithdrawalProcessing, "", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecordClick(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seed(t, "CLK00001", "0")

	for i := 0; i < 4; i++ {
		_, err := f.ledger.RecordClick(ctx, "CLK00001")
		require.NoError(t, err)
	}
	_, err := f.ledger.AccrueOrder(ctx, orderEvent("order-1", a.ID, item("i1", "100", "5", 1)))
	require.NoError(t, err)
	_, err = f.ledger.ConfirmPayment(ctx, "order-1")
	require.NoError(t, err)

	got, err := f.store.GetAffiliate(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), got.Clicks)
	assert.Equal(t, int64(1), got.Conversions)
	assert.True(t, got.ConversionRate.Equal(dec("25")))

	unknown, err := f.ledger.RecordClick(ctx, "clk00001")
	require.NoError(t, err)
	assert.Nil(t, unknown)
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.ledger.Register(ctx, "cust-1", "Asha", "asha@example.com")
	require.NoError(t, err)
	assert.Len(t, a.ReferralCode, domain.ReferralCodeLength)
	assert.True(t, a.IsActive)

	found, err := f.ledger.AttributeReferral(ctx, a.ReferralCode)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, a.ID, found.ID)
}

func TestDashboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seed(t, "DSH00001", "100")

	_, err := f.ledger.AccrueOrder(ctx, orderEvent("order-1", a.ID, item("i1", "1000", "5", 1)))
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		f.advance(time.Minute)
		_, err := f.ledger.RequestWithdrawal(ctx, a.ID, dec("1"), domain.PaymentMethodUPI, nil)
		require.NoError(t, err)
	}

	d, err := f.ledger.Dashboard(ctx, a.ID, "https://zerotohero.tech")
	require.NoError(t, err)
	assert.Equal(t, "https://zerotohero.tech/ref/DSH00001/", d.ReferralLink)
	assert.True(t, d.PendingCommission.Equal(dec("50")))
	assert.True(t, d.PaidCommission.IsZero())
	assert.Len(t, d.RecentWithdrawals, 5)
	assert.True(t, d.RecentWithdrawals[0].RequestedAt.After(d.RecentWithdrawals[4].RequestedAt))

	_, err = f.ledger.Dashboard(ctx, "missing", "https://zerotohero.tech")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// Product priced at 1000 with a 5% rate, bought through an affiliate,
// paid, released and withdrawn.
func TestEndToEnd_ProductToWithdrawal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seed(t, "E2E00001", "0")

	product, err := domain.Product{ID: 7, Name: "Ethical Hacking", PlatformName: "TryHackMe", IsActive: true}.
		Reprice(dec("1000"), dec("940"), dec("5"), false)
	require.NoError(t, err)
	assert.True(t, product.CommissionAmount.Equal(dec("50.00")))

	quote, err := pricing.QuoteCart(
		pricing.NewCart(pricing.CartLine{ProductID: product.ID, Quantity: 1}),
		map[int64]pricing.ProductPrice{product.ID: product.Price()},
	)
	require.NoError(t, err)

	order := domain.NewOrder(quote, a.ID, a.ReferralCode, f.clock)
	assert.True(t, order.Items[0].CommissionAmount.Equal(product.CommissionAmount))

	_, err = f.ledger.AccrueOrder(ctx, order.Event(domain.EventOrderPlaced, "", f.clock))
	require.NoError(t, err)

	before := f.balances(t, a.ID)
	_, err = f.ledger.ConfirmPayment(ctx, order.ID)
	require.NoError(t, err)
	after := f.balances(t, a.ID)
	assert.True(t, after.Pending.Sub(before.Pending).Equal(dec("50.00")))

	_, err = f.ledger.RequestWithdrawal(ctx, a.ID, dec("50.00"), domain.PaymentMethodUPI, nil)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	f.advance(15 * 24 * time.Hour)
	_, err = NewReleaseJob(f.ledger, 14, discardLogger()).Run(ctx)
	require.NoError(t, err)
	assert.True(t, f.balances(t, a.ID).Available.Equal(dec("50.00")))

	_, err = f.ledger.RequestWithdrawal(ctx, a.ID, dec("50.00"), domain.PaymentMethodUPI, nil)
	require.NoError(t, err)
	_, err = f.ledger.RequestWithdrawal(ctx, a.ID, dec("50.00"), domain.PaymentMethodUPI, nil)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	final := f.balances(t, a.ID)
	assert.True(t, final.Withdrawn.Equal(dec("50")))
	assert.True(t, final.TotalEarned.Equal(dec("50")))
}
