package domain

import (
	"crypto/rand"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	ReferralCodeLength = 8
	referralAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

type Affiliate struct {
	ID             string          `json:"id"`
	CustomerID     string          `json:"customer_id"`
	Name           string          `json:"name"`
	Email          string          `json:"email"`
	ReferralCode   string          `json:"referral_code"`
	Balances       Balances        `json:"balances"`
	Clicks         int64           `json:"clicks"`
	Conversions    int64           `json:"conversions"`
	ConversionRate decimal.Decimal `json:"conversion_rate"`
	IsActive       bool            `json:"is_active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ReferralLink is the public URL that credits this affiliate.
func (a Affiliate) ReferralLink(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/ref/" + a.ReferralCode + "/"
}

// RecordClick counts a visit through the referral link.
func (a Affiliate) RecordClick() Affiliate {
	a.Clicks++
	a.ConversionRate = conversionRate(a.Conversions, a.Clicks)
	return a
}

// RecordConversion counts a paid order attributed to this affiliate.
func (a Affiliate) RecordConversion() Affiliate {
	a.Conversions++
	a.ConversionRate = conversionRate(a.Conversions, a.Clicks)
	return a
}

func conversionRate(conversions, clicks int64) decimal.Decimal {
	if clicks <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(conversions).Mul(decimal.NewFromInt(100)).DivRound(decimal.NewFromInt(clicks), 2)
}

// NewReferralCode draws ReferralCodeLength upper-case alphanumerics.
// Uniqueness is the caller's concern.
func NewReferralCode() (string, error) {
	max := big.NewInt(int64(len(referralAlphabet)))
	var sb strings.Builder
	sb.Grow(ReferralCodeLength)
	for i := 0; i < ReferralCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(referralAlphabet[n.Int64()])
	}
	return sb.String(), nil
}
