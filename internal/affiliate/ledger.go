// Package affiliate tracks referrals, commissions and withdrawals. All
// balance movement happens inside Ledger, one store transaction per
// operation, with the affiliate row locked for the duration.
package affiliate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/faizu526/zerotohero/internal/domain"
	"github.com/faizu526/zerotohero/internal/pricing"
)

const (
	referralCodeAttempts = 5
	dashboardWithdrawals = 5
	releaseBatchSize     = 500
	payoutHistory        = 100
)

var ErrInactiveAffiliate = errors.New("affiliate is inactive")

type Ledger struct {
	store   Store
	metrics *Metrics
	logger  *slog.Logger
	now     func() time.Time
}

func NewLedger(store Store, metrics *Metrics, logger *slog.Logger) *Ledger {
	return &Ledger{
		store:   store,
		metrics: metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Register creates an affiliate with a fresh referral code.
func (l *Ledger) Register(ctx context.Context, customerID, name, email string) (domain.Affiliate, error) {
	now := l.now()
	a := domain.Affiliate{
		ID:             uuid.NewString(),
		CustomerID:     customerID,
		Name:           name,
		Email:          email,
		Balances:       domain.ZeroBalances(),
		ConversionRate: decimal.Zero,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := l.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		for i := 0; i < referralCodeAttempts; i++ {
			code, err := domain.NewReferralCode()
			if err != nil {
				return err
			}
			exists, err := tx.ReferralCodeExists(ctx, code)
			if err != nil {
				return err
			}
			if !exists {
				a.ReferralCode = code
				return tx.CreateAffiliate(ctx, a)
			}
		}
		return fmt.Errorf("no unique referral code after %d attempts", referralCodeAttempts)
	})
	if err != nil {
		return domain.Affiliate{}, err
	}

	l.logger.Info("affiliate registered", "affiliate_id", a.ID, "referral_code", a.ReferralCode)
	return a, nil
}

// AttributeReferral resolves a visitor's referral code. An empty, unknown
// or inactive code resolves to nil without error.
func (l *Ledger) AttributeReferral(ctx context.Context, code string) (*domain.Affiliate, error) {
	if code == "" {
		return nil, nil
	}

	a, err := l.store.FindByReferralCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("find referral code: %w", err)
	}
	if a == nil {
		l.logger.Info("unknown referral code", "referral_code", code)
		return nil, nil
	}
	if !a.IsActive {
		l.logger.Info("referral code belongs to inactive affiliate", "referral_code", code, "affiliate_id", a.ID)
		return nil, nil
	}
	return a, nil
}

// AccrueCommission builds a pending commission for a sale. It does not
// touch balances.
func (l *Ledger) AccrueCommission(orderTotal, rate decimal.Decimal, affiliate domain.Affiliate) (domain.Commission, error) {
	amount, err := pricing.ComputeCommission(orderTotal, rate)
	if err != nil {
		return domain.Commission{}, err
	}
	return domain.Commission{
		ID:          uuid.NewString(),
		AffiliateID: affiliate.ID,
		OrderTotal:  orderTotal,
		Rate:        rate,
		Amount:      amount,
		Status:      domain.CommissionPending,
		CreatedAt:   l.now(),
	}, nil
}

// AccrueOrder records one pending commission per order line for the
// attributed affiliate. Replaying the same order is a no-op.
func (l *Ledger) AccrueOrder(ctx context.Context, event domain.OrderEvent) ([]domain.Commission, error) {
	if event.AffiliateID == "" {
		return nil, nil
	}

	affiliate, err := l.store.GetAffiliate(ctx, event.AffiliateID)
	if err != nil {
		return nil, fmt.Errorf("get affiliate: %w", err)
	}
	if affiliate == nil {
		l.logger.Warn("order attributed to unknown affiliate", "order_id", event.OrderID, "affiliate_id", event.AffiliateID)
		return nil, nil
	}

	var accrued []domain.Commission
	err = l.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		accrued = nil

		existing, err := tx.LockCommissionsByOrder(ctx, event.OrderID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return nil
		}

		for _, item := range event.Items {
			base := item.OriginalPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
			c, err := l.AccrueCommission(base, item.CommissionRate, *affiliate)
			if err != nil {
				return fmt.Errorf("item %s: %w", item.ID, err)
			}
			if c.Amount.IsZero() {
				continue
			}
			c.OrderID = event.OrderID
			c.OrderItemID = item.ID
			c.ProductID = item.ProductID
			if err := tx.InsertCommission(ctx, c); err != nil {
				return err
			}
			accrued = append(accrued, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, c := range accrued {
		l.metrics.commission(ctx, domain.CommissionPending, c.Amount)
	}
	if len(accrued) > 0 {
		l.logger.Info("commissions accrued", "order_id", event.OrderID, "affiliate_id", event.AffiliateID, "count", len(accrued))
	}
	return accrued, nil
}

// ConfirmPayment approves every pending commission of the order and
// credits the affiliates' pending balances. A second call finds nothing
// pending and changes nothing.
func (l *Ledger) ConfirmPayment(ctx context.Context, orderID string) ([]domain.Commission, error) {
	var approved []domain.Commission

	err := l.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		approved = nil

		commissions, err := tx.LockCommissionsByOrder(ctx, orderID)
		if err != nil {
			return err
		}

		byAffiliate := map[string][]domain.Commission{}
		for _, c := range commissions {
			if c.Status == domain.CommissionPending {
				byAffiliate[c.AffiliateID] = append(byAffiliate[c.AffiliateID], c)
			}
		}

		now := l.now()
		for _, affiliateID := range sortedKeys(byAffiliate) {
			affiliate, err := tx.LockAffiliate(ctx, affiliateID)
			if err != nil {
				return err
			}
			if affiliate == nil {
				return fmt.Errorf("affiliate %s: %w", affiliateID, domain.ErrNotFound)
			}

			a := *affiliate
			for _, c := range byAffiliate[affiliateID] {
				next, entry, err := c.Transition(domain.CommissionApproved, now)
				if err != nil {
					return err
				}
				if a.Balances, err = a.Balances.Apply(*entry); err != nil {
					return err
				}
				if err := tx.SaveCommission(ctx, next); err != nil {
					return err
				}
				approved = append(approved, next)
			}

			a = a.RecordConversion()
			a.UpdatedAt = now
			if err := tx.SaveAffiliate(ctx, a); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, c := range approved {
		l.metrics.commission(ctx, domain.CommissionApproved, c.Amount)
	}
	if len(approved) > 0 {
		l.logger.Info("commissions approved", "order_id", orderID, "count", len(approved))
	}
	return approved, nil
}

// CancelCommission cancels a pending or approved commission. Cancelling an
// approved one reverses its pending balance credit.
func (l *Ledger) CancelCommission(ctx context.Context, id, reason string) (domain.Commission, error) {
	var cancelled domain.Commission

	err := l.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		c, err := tx.LockCommission(ctx, id)
		if err != nil {
			return err
		}
		if c == nil {
			return domain.ErrNotFound
		}

		cancelled, err = l.cancelLocked(ctx, tx, *c, reason)
		return err
	})
	if err != nil {
		return domain.Commission{}, err
	}

	l.metrics.commission(ctx, domain.CommissionCancelled, cancelled.Amount)
	l.logger.Info("commission cancelled", "commission_id", id, "order_id", cancelled.OrderID)
	return cancelled, nil
}

// CancelOrder cancels every open commission of a refunded order. Paid
// commissions are left alone.
func (l *Ledger) CancelOrder(ctx context.Context, orderID, reason string) ([]domain.Commission, error) {
	var cancelled []domain.Commission

	err := l.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		cancelled = nil

		commissions, err := tx.LockCommissionsByOrder(ctx, orderID)
		if err != nil {
			return err
		}

		for _, c := range commissions {
			switch c.Status {
			case domain.CommissionCancelled:
				continue
			case domain.CommissionPaid:
				l.logger.Warn("refund after commission was paid out", "order_id", orderID, "commission_id", c.ID)
				continue
			}

			next, err := l.cancelLocked(ctx, tx, c, reason)
			if err != nil {
				return err
			}
			cancelled = append(cancelled, next)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, c := range cancelled {
		l.metrics.commission(ctx, domain.CommissionCancelled, c.Amount)
	}
	if len(cancelled) > 0 {
		l.logger.Info("order commissions cancelled", "order_id", orderID, "count", len(cancelled))
	}
	return cancelled, nil
}

func (l *Ledger) cancelLocked(ctx context.Context, tx Tx, c domain.Commission, reason string) (domain.Commission, error) {
	now := l.now()
	next, entry, err := c.Transition(domain.CommissionCancelled, now)
	if err != nil {
		return domain.Commission{}, err
	}
	next.Notes = reason

	if entry != nil {
		if err := l.applyLocked(ctx, tx, c.AffiliateID, *entry, now); err != nil {
			return domain.Commission{}, err
		}
	}

	if err := tx.SaveCommission(ctx, next); err != nil {
		return domain.Commission{}, err
	}
	return next, nil
}

// ReleaseApproved pays out commissions approved before the cutoff, moving
// their amount from pending to available. Each commission is released in
// its own transaction. Batches are drained until none remain due.
func (l *Ledger) ReleaseApproved(ctx context.Context, before time.Time) (int, error) {
	released := 0
	for {
		ids, err := l.store.ApprovedBefore(ctx, before, releaseBatchSize)
		if err != nil {
			return released, fmt.Errorf("list approved commissions: %w", err)
		}

		n, err := l.releaseBatch(ctx, ids)
		released += n
		if err != nil {
			return released, err
		}
		// A batch that moved nothing would be listed again unchanged.
		if len(ids) < releaseBatchSize || n == 0 {
			break
		}
	}

	if released > 0 {
		l.logger.Info("commissions released", "count", released, "before", before)
	}
	return released, nil
}

func (l *Ledger) releaseBatch(ctx context.Context, ids []string) (int, error) {
	released := 0
	for _, id := range ids {
		var paid *domain.Commission
		err := l.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
			paid = nil

			c, err := tx.LockCommission(ctx, id)
			if err != nil {
				return err
			}
			if c == nil || c.Status != domain.CommissionApproved {
				return nil
			}

			now := l.now()
			next, entry, err := c.Transition(domain.CommissionPaid, now)
			if err != nil {
				return err
			}
			if err := l.applyLocked(ctx, tx, c.AffiliateID, *entry, now); err != nil {
				return err
			}
			if err := tx.SaveCommission(ctx, next); err != nil {
				return err
			}
			paid = &next
			return nil
		})
		if err != nil {
			return released, fmt.Errorf("release commission %s: %w", id, err)
		}
		if paid != nil {
			released++
			l.metrics.commission(ctx, domain.CommissionPaid, paid.Amount)
		}
	}
	return released, nil
}

// RequestWithdrawal holds amount from the available balance. Concurrent
// requests for one affiliate serialize on the affiliate row, so the
// balance check and the hold cannot interleave. A payout destination not
// seen on an earlier completed withdrawal is flagged for admin review.
func (l *Ledger) RequestWithdrawal(ctx context.Context, affiliateID string, amount decimal.Decimal, method domain.PaymentMethod, details map[string]string) (domain.Withdrawal, error) {
	var w domain.Withdrawal

	history, err := l.store.ListWithdrawals(ctx, affiliateID, payoutHistory)
	if err != nil {
		return domain.Withdrawal{}, fmt.Errorf("list withdrawals: %w", err)
	}
	needsReview := domain.NewDestination(history, method, details)

	err = l.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		affiliate, err := tx.LockAffiliate(ctx, affiliateID)
		if err != nil {
			return err
		}
		if affiliate == nil {
			return domain.ErrNotFound
		}
		if !affiliate.IsActive {
			return ErrInactiveAffiliate
		}

		now := l.now()
		var hold domain.LedgerEntry
		w, hold, err = domain.NewWithdrawal(uuid.NewString(), affiliateID, amount, method, details, now)
		if err != nil {
			return err
		}
		w.NeedsReview = needsReview

		a := *affiliate
		if a.Balances, err = a.Balances.Apply(hold); err != nil {
			return err
		}
		a.UpdatedAt = now
		if err := tx.SaveAffiliate(ctx, a); err != nil {
			return err
		}
		return tx.InsertWithdrawal(ctx, w)
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientBalance) {
			l.metrics.withdrawal(ctx, "insufficient_balance")
			l.logger.Warn("withdrawal exceeds available balance", "affiliate_id", affiliateID, "amount", amount)
		}
		return domain.Withdrawal{}, err
	}

	l.metrics.withdrawal(ctx, string(domain.WithdrawalPending))
	l.logger.Info("withdrawal requested", "withdrawal_id", w.ID, "affiliate_id", affiliateID, "amount", amount, "payment_method", method)
	if w.NeedsReview {
		l.logger.Warn("withdrawal to a new payout destination", "withdrawal_id", w.ID, "affiliate_id", affiliateID, "payment_method", method)
	}
	return w, nil
}

// TransitionWithdrawal applies an admin decision. Rejection returns the
// held amount to the available balance.
func (l *Ledger) TransitionWithdrawal(ctx context.Context, id string, to domain.WithdrawalStatus, transactionID, notes string) (domain.Withdrawal, error) {
	var w domain.Withdrawal

	err := l.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		current, err := tx.LockWithdrawal(ctx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}

		now := l.now()
		next, entry, err := current.Transition(to, now)
		if err != nil {
			return err
		}
		if transactionID != "" {
			next.TransactionID = transactionID
		}
		if notes != "" {
			next.Notes = notes
		}

		if entry != nil {
			if err := l.applyLocked(ctx, tx, current.AffiliateID, *entry, now); err != nil {
				return err
			}
		}

		w = next
		return tx.SaveWithdrawal(ctx, next)
	})
	if err != nil {
		return domain.Withdrawal{}, err
	}

	l.metrics.withdrawal(ctx, string(w.Status))
	l.logger.Info("withdrawal status changed", "withdrawal_id", id, "status", w.Status)
	return w, nil
}

// RecordClick counts a visit through a referral link. Unknown codes
// resolve to nil.
func (l *Ledger) RecordClick(ctx context.Context, code string) (*domain.Affiliate, error) {
	found, err := l.AttributeReferral(ctx, code)
	if err != nil || found == nil {
		return nil, err
	}

	var updated domain.Affiliate
	err = l.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		a, err := tx.LockAffiliate(ctx, found.ID)
		if err != nil {
			return err
		}
		if a == nil {
			return domain.ErrNotFound
		}
		updated = a.RecordClick()
		updated.UpdatedAt = l.now()
		return tx.SaveAffiliate(ctx, updated)
	})
	if err != nil {
		return nil, err
	}

	l.metrics.click(ctx)
	return &updated, nil
}

type Dashboard struct {
	Affiliate         domain.Affiliate    `json:"affiliate"`
	ReferralLink      string              `json:"referral_link"`
	PaidCommission    decimal.Decimal     `json:"paid_commission"`
	PendingCommission decimal.Decimal     `json:"pending_commission"`
	RecentWithdrawals []domain.Withdrawal `json:"recent_withdrawals"`
}

func (l *Ledger) Dashboard(ctx context.Context, affiliateID, baseURL string) (Dashboard, error) {
	a, err := l.store.GetAffiliate(ctx, affiliateID)
	if err != nil {
		return Dashboard{}, err
	}
	if a == nil {
		return Dashboard{}, domain.ErrNotFound
	}

	sums, err := l.store.CommissionSums(ctx, affiliateID)
	if err != nil {
		return Dashboard{}, err
	}

	withdrawals, err := l.store.ListWithdrawals(ctx, affiliateID, dashboardWithdrawals)
	if err != nil {
		return Dashboard{}, err
	}

	return Dashboard{
		Affiliate:         *a,
		ReferralLink:      a.ReferralLink(baseURL),
		PaidCommission:    sums[domain.CommissionPaid],
		PendingCommission: sums[domain.CommissionPending],
		RecentWithdrawals: withdrawals,
	}, nil
}

func (l *Ledger) applyLocked(ctx context.Context, tx Tx, affiliateID string, entry domain.LedgerEntry, at time.Time) error {
	affiliate, err := tx.LockAffiliate(ctx, affiliateID)
	if err != nil {
		return err
	}
	if affiliate == nil {
		return fmt.Errorf("affiliate %s: %w", affiliateID, domain.ErrNotFound)
	}

	a := *affiliate
	if a.Balances, err = a.Balances.Apply(entry); err != nil {
		return err
	}
	a.UpdatedAt = at
	return tx.SaveAffiliate(ctx, a)
}

func sortedKeys(m map[string][]domain.Commission) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
