// Package pricing holds the marketplace's money rules: affiliate commission,
// student savings against the market price and bundle discounts. Everything
// here is pure decimal arithmetic with no I/O.
package pricing

import (
	"errors"

	"github.com/shopspring/decimal"
)

// CurrencyPlaces is the precision every stored amount is rounded to.
const CurrencyPlaces = 2

var (
	ErrInvalidRate   = errors.New("commission rate must be between 0 and 100")
	ErrInvalidAmount = errors.New("amount must not be negative")
)

var hundred = decimal.NewFromInt(100)

// ComputeCommission returns price * rate / 100 rounded half-up to currency
// precision.
func ComputeCommission(price, rate decimal.Decimal) (decimal.Decimal, error) {
	if price.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}
	if err := ValidateRate(rate); err != nil {
		return decimal.Zero, err
	}
	// Shift keeps the division exact; Round is half away from zero, which is
	// half-up for the non-negative values accepted above.
	return price.Mul(rate).Shift(-2).Round(CurrencyPlaces), nil
}

// ValidateRate reports ErrInvalidRate for rates outside [0, 100].
func ValidateRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(hundred) {
		return ErrInvalidRate
	}
	return nil
}

// Savings is what a student saves buying at our price instead of the
// platform's list price.
type Savings struct {
	Amount     decimal.Decimal `json:"amount"`
	Percentage decimal.Decimal `json:"percentage"`
}

// ComputeSavings clamps the amount at zero and rounds the percentage to one
// decimal place. A zero original price yields zero savings.
func ComputeSavings(original, our decimal.Decimal) (Savings, error) {
	if original.IsNegative() || our.IsNegative() {
		return Savings{}, ErrInvalidAmount
	}

	amount := original.Sub(our)
	if amount.IsNegative() {
		amount = decimal.Zero
	}

	percentage := decimal.Zero
	if original.IsPositive() {
		percentage = amount.Mul(hundred).DivRound(original, 1)
	}

	return Savings{Amount: amount, Percentage: percentage}, nil
}

// BundleTotals are the derived prices of a bundle.
type BundleTotals struct {
	OriginalTotal     decimal.Decimal `json:"original_total"`
	SavingsAmount     decimal.Decimal `json:"savings_amount"`
	SavingsPercentage int64           `json:"savings_percentage"`
}

// Misconfigured reports a bundle priced above the sum of its members.
func (t BundleTotals) Misconfigured() bool {
	return t.SavingsAmount.IsNegative()
}

// ComputeBundleTotals sums member prices and derives the bundle discount.
// Unlike ComputeSavings the amount is not clamped and the percentage is
// truncated to a whole number.
func ComputeBundleTotals(memberPrices []decimal.Decimal, bundlePrice decimal.Decimal) (BundleTotals, error) {
	if bundlePrice.IsNegative() {
		return BundleTotals{}, ErrInvalidAmount
	}

	total := decimal.Zero
	for _, p := range memberPrices {
		if p.IsNegative() {
			return BundleTotals{}, ErrInvalidAmount
		}
		total = total.Add(p)
	}

	savings := total.Sub(bundlePrice)

	var percentage int64
	if total.IsPositive() {
		q, _ := savings.Mul(hundred).QuoRem(total, 0)
		percentage = q.IntPart()
	}

	return BundleTotals{
		OriginalTotal:     total,
		SavingsAmount:     savings,
		SavingsPercentage: percentage,
	}, nil
}
