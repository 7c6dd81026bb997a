package domain

import (
	"maps"
	"time"

	"github.com/shopspring/decimal"
)

type WithdrawalStatus string

const (
	WithdrawalPending    WithdrawalStatus = "pending"
	WithdrawalProcessing WithdrawalStatus = "processing"
	WithdrawalCompleted  WithdrawalStatus = "completed"
	WithdrawalRejected   WithdrawalStatus = "rejected"
)

type PaymentMethod string

const (
	PaymentMethodBank   PaymentMethod = "bank"
	PaymentMethodUPI    PaymentMethod = "upi"
	PaymentMethodWallet PaymentMethod = "wallet"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodBank, PaymentMethodUPI, PaymentMethodWallet:
		return true
	}
	return false
}

type Withdrawal struct {
	ID             string            `json:"id"`
	AffiliateID    string            `json:"affiliate_id"`
	Amount         decimal.Decimal   `json:"amount"`
	Status         WithdrawalStatus  `json:"status"`
	PaymentMethod  PaymentMethod     `json:"payment_method"`
	PaymentDetails map[string]string `json:"payment_details,omitempty"`
	TransactionID  string            `json:"transaction_id,omitempty"`
	Notes          string            `json:"notes,omitempty"`
	RequestedAt    time.Time         `json:"requested_at"`
	ProcessedAt    *time.Time        `json:"processed_at,omitempty"`
	// NeedsReview marks a request whose payout destination was never used
	// by one of the affiliate's completed withdrawals.
	NeedsReview bool `json:"needs_review"`
}

// NewDestination reports whether method and details differ from every
// completed withdrawal in history. An affiliate with no completed payouts
// has nothing to compare against.
func NewDestination(history []Withdrawal, method PaymentMethod, details map[string]string) bool {
	compared := false
	for _, w := range history {
		if w.Status != WithdrawalCompleted {
			continue
		}
		compared = true
		if w.PaymentMethod == method && maps.Equal(w.PaymentDetails, details) {
			return false
		}
	}
	return compared
}

// NewWithdrawal builds a pending withdrawal and the hold that reserves its
// amount.
func NewWithdrawal(id, affiliateID string, amount decimal.Decimal, method PaymentMethod, details map[string]string, at time.Time) (Withdrawal, LedgerEntry, error) {
	if !amount.IsPositive() {
		return Withdrawal{}, LedgerEntry{}, ErrInvalidAmount
	}
	w := Withdrawal{
		ID:             id,
		AffiliateID:    affiliateID,
		Amount:         amount,
		Status:         WithdrawalPending,
		PaymentMethod:  method,
		PaymentDetails: details,
		RequestedAt:    at,
	}
	return w, LedgerEntry{Kind: EntryHold, Amount: amount}, nil
}

func (s WithdrawalStatus) Terminal() bool {
	return s == WithdrawalCompleted || s == WithdrawalRejected
}

// Transition moves the withdrawal to status to. Rejection returns the
// entry restoring the hold.
func (w Withdrawal) Transition(to WithdrawalStatus, at time.Time) (Withdrawal, *LedgerEntry, error) {
	var entry *LedgerEntry

	switch {
	case w.Status == WithdrawalPending && to == WithdrawalProcessing:
	case w.Status == WithdrawalProcessing && to == WithdrawalCompleted:
		w.ProcessedAt = &at
	case (w.Status == WithdrawalPending || w.Status == WithdrawalProcessing) && to == WithdrawalRejected:
		w.ProcessedAt = &at
		entry = &LedgerEntry{Kind: EntryRestore, Amount: w.Amount}
	default:
		return w, nil, ErrInvalidTransition
	}

	w.Status = to
	return w, entry, nil
}
