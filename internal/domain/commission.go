package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CommissionStatus string

const (
	CommissionPending   CommissionStatus = "pending"
	CommissionApproved  CommissionStatus = "approved"
	CommissionPaid      CommissionStatus = "paid"
	CommissionCancelled CommissionStatus = "cancelled"
)

type Commission struct {
	ID          string           `json:"id"`
	AffiliateID string           `json:"affiliate_id"`
	OrderID     string           `json:"order_id"`
	OrderItemID string           `json:"order_item_id,omitempty"`
	ProductID   int64            `json:"product_id,omitempty"`
	OrderTotal  decimal.Decimal  `json:"order_total"`
	Rate        decimal.Decimal  `json:"commission_rate"`
	Amount      decimal.Decimal  `json:"amount"`
	Status      CommissionStatus `json:"status"`
	Notes       string           `json:"notes,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	ApprovedAt  *time.Time       `json:"approved_at,omitempty"`
	PaidAt      *time.Time       `json:"paid_at,omitempty"`
	CancelledAt *time.Time       `json:"cancelled_at,omitempty"`
}

func (s CommissionStatus) Terminal() bool {
	return s == CommissionPaid || s == CommissionCancelled
}

// Transition moves the commission to status to. The returned entry, when
// non-nil, must be applied to the affiliate's balances in the same unit of
// work.
func (c Commission) Transition(to CommissionStatus, at time.Time) (Commission, *LedgerEntry, error) {
	var entry *LedgerEntry

	switch {
	case c.Status == CommissionPending && to == CommissionApproved:
		c.ApprovedAt = &at
		entry = &LedgerEntry{Kind: EntryCredit, Amount: c.Amount}
	case c.Status == CommissionApproved && to == CommissionPaid:
		c.PaidAt = &at
		entry = &LedgerEntry{Kind: EntryRelease, Amount: c.Amount}
	case c.Status == CommissionPending && to == CommissionCancelled:
		c.CancelledAt = &at
	case c.Status == CommissionApproved && to == CommissionCancelled:
		c.CancelledAt = &at
		entry = &LedgerEntry{Kind: EntryReverse, Amount: c.Amount}
	default:
		return c, nil, ErrInvalidTransition
	}

	c.Status = to
	return c, entry, nil
}
