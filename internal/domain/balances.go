package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type EntryKind string

const (
	// EntryCredit books an approved commission into the pending balance.
	EntryCredit EntryKind = "credit"
	// EntryReverse removes a previously credited commission.
	EntryReverse EntryKind = "reverse"
	// EntryRelease moves a commission from pending to available.
	EntryRelease EntryKind = "release"
	// EntryHold reserves available funds for a withdrawal request.
	EntryHold EntryKind = "hold"
	// EntryRestore returns a rejected withdrawal's hold to available.
	EntryRestore EntryKind = "restore"
)

type LedgerEntry struct {
	Kind   EntryKind       `json:"kind"`
	Amount decimal.Decimal `json:"amount"`
}

// Balances is the money state of an affiliate. Withdrawn includes amounts
// held by withdrawals that are still pending or processing.
type Balances struct {
	TotalEarned decimal.Decimal `json:"total_earned"`
	Pending     decimal.Decimal `json:"pending_balance"`
	Available   decimal.Decimal `json:"available_balance"`
	Withdrawn   decimal.Decimal `json:"total_withdrawn"`
}

func ZeroBalances() Balances {
	return Balances{
		TotalEarned: decimal.Zero,
		Pending:     decimal.Zero,
		Available:   decimal.Zero,
		Withdrawn:   decimal.Zero,
	}
}

// Apply is the only way balances move. The receiver is left untouched and
// the result always satisfies Validate.
func (b Balances) Apply(e LedgerEntry) (Balances, error) {
	if e.Amount.IsNegative() {
		return b, ErrInvalidAmount
	}

	next := b
	switch e.Kind {
	case EntryCredit:
		next.Pending = b.Pending.Add(e.Amount)
		next.TotalEarned = b.TotalEarned.Add(e.Amount)
	case EntryReverse:
		if b.Pending.LessThan(e.Amount) {
			return b, ErrInsufficientBalance
		}
		next.Pending = b.Pending.Sub(e.Amount)
		next.TotalEarned = b.TotalEarned.Sub(e.Amount)
	case EntryRelease:
		if b.Pending.LessThan(e.Amount) {
			return b, ErrInsufficientBalance
		}
		next.Pending = b.Pending.Sub(e.Amount)
		next.Available = b.Available.Add(e.Amount)
	case EntryHold:
		if b.Available.LessThan(e.Amount) {
			return b, ErrInsufficientBalance
		}
		next.Available = b.Available.Sub(e.Amount)
		next.Withdrawn = b.Withdrawn.Add(e.Amount)
	case EntryRestore:
		if b.Withdrawn.LessThan(e.Amount) {
			return b, ErrInsufficientBalance
		}
		next.Withdrawn = b.Withdrawn.Sub(e.Amount)
		next.Available = b.Available.Add(e.Amount)
	default:
		return b, fmt.Errorf("unknown ledger entry kind %q", e.Kind)
	}

	if err := next.Validate(); err != nil {
		return b, err
	}
	return next, nil
}

// Validate checks that no balance is negative and that
// TotalEarned == Available + Pending + Withdrawn.
func (b Balances) Validate() error {
	for _, v := range []decimal.Decimal{b.TotalEarned, b.Pending, b.Available, b.Withdrawn} {
		if v.IsNegative() {
			return fmt.Errorf("negative balance: %w", ErrInvalidAmount)
		}
	}
	if !b.TotalEarned.Equal(b.Available.Add(b.Pending).Add(b.Withdrawn)) {
		return fmt.Errorf("balances out of sync: earned %s != available %s + pending %s + withdrawn %s",
			b.TotalEarned, b.Available, b.Pending, b.Withdrawn)
	}
	return nil
}
