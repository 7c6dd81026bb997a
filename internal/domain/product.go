package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/faizu526/zerotohero/internal/pricing"
)

type CommissionType string

const (
	CommissionTypePercentage CommissionType = "percentage"
	CommissionTypeFixed      CommissionType = "fixed"
)

type Platform struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	Slug           string          `json:"slug"`
	Website        string          `json:"website"`
	Country        string          `json:"country"`
	CommissionType CommissionType  `json:"commission_type"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
	OurMargin      decimal.Decimal `json:"our_margin"`
	CookieDuration int             `json:"cookie_duration_days"`
	IsHiddenGem    bool            `json:"is_hidden_gem"`
	IsFeatured     bool            `json:"is_featured"`
	IsActive       bool            `json:"is_active"`
	TotalProducts  int             `json:"total_products"`
}

type ProductType string

const (
	ProductTypeCourse        ProductType = "course"
	ProductTypeSubscription  ProductType = "subscription"
	ProductTypeLab           ProductType = "lab"
	ProductTypeCertification ProductType = "certification"
)

type Product struct {
	ID               int64           `json:"id"`
	PlatformID       int64           `json:"platform_id"`
	PlatformName     string          `json:"platform_name"`
	Name             string          `json:"name"`
	Slug             string          `json:"slug"`
	Category         string          `json:"category"`
	ProductType      ProductType     `json:"product_type"`
	ShortDescription string          `json:"short_description"`
	Currency         string          `json:"currency"`
	OriginalPrice    decimal.Decimal `json:"original_price"`
	OurPrice         decimal.Decimal `json:"our_price"`
	CommissionRate   decimal.Decimal `json:"commission_rate"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`
	IsFree           bool            `json:"is_free"`
	IsActive         bool            `json:"is_active"`
	IsFeatured       bool            `json:"is_featured"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Reprice returns a copy of p with new prices and rate. The commission
// amount is always recomputed from the new original price and rate.
func (p Product) Reprice(original, our, rate decimal.Decimal, free bool) (Product, error) {
	if original.IsNegative() || our.IsNegative() {
		return Product{}, ErrInvalidAmount
	}
	if !free && our.GreaterThan(original) {
		return Product{}, ErrPriceAboveOriginal
	}

	commission, err := pricing.ComputeCommission(original, rate)
	if err != nil {
		return Product{}, err
	}

	p.OriginalPrice = original
	p.OurPrice = our
	p.CommissionRate = rate
	p.CommissionAmount = commission
	p.IsFree = free
	return p, nil
}

func (p Product) Savings() pricing.Savings {
	s, err := pricing.ComputeSavings(p.OriginalPrice, p.PriceToPay())
	if err != nil {
		return pricing.Savings{Amount: decimal.Zero, Percentage: decimal.Zero}
	}
	return s
}

func (p Product) PriceToPay() decimal.Decimal {
	return p.Price().UnitPrice()
}

func (p Product) Price() pricing.ProductPrice {
	return pricing.ProductPrice{
		ProductID:      p.ID,
		Name:           p.Name,
		PlatformName:   p.PlatformName,
		OriginalPrice:  p.OriginalPrice,
		OurPrice:       p.OurPrice,
		CommissionRate: p.CommissionRate,
		IsFree:         p.IsFree,
		IsActive:       p.IsActive,
	}
}

// ProductView is the listing representation with derived savings.
type ProductView struct {
	Product
	Savings pricing.Savings `json:"savings"`
}

func (p Product) View() ProductView {
	return ProductView{Product: p, Savings: p.Savings()}
}

type Bundle struct {
	ID                int64           `json:"id"`
	Name              string          `json:"name"`
	Slug              string          `json:"slug"`
	Description       string          `json:"description"`
	ProductIDs        []int64         `json:"product_ids"`
	BundlePrice       decimal.Decimal `json:"bundle_price"`
	OriginalTotal     decimal.Decimal `json:"original_total"`
	SavingsAmount     decimal.Decimal `json:"savings_amount"`
	SavingsPercentage int64           `json:"savings_percentage"`
	Misconfigured     bool            `json:"misconfigured"`
	IsActive          bool            `json:"is_active"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Recalculate derives the bundle totals from the current our_price of each
// member, in membership order.
func (b Bundle) Recalculate(memberPrices []decimal.Decimal) (Bundle, error) {
	totals, err := pricing.ComputeBundleTotals(memberPrices, b.BundlePrice)
	if err != nil {
		return Bundle{}, err
	}
	b.OriginalTotal = totals.OriginalTotal
	b.SavingsAmount = totals.SavingsAmount
	b.SavingsPercentage = totals.SavingsPercentage
	b.Misconfigured = totals.Misconfigured()
	return b, nil
}
