package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrInvalidQuantity = errors.New("quantity must be positive")

type CartLine struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// Cart is an immutable list of product lines. Every mutator returns a new
// Cart and leaves the receiver untouched.
type Cart struct {
	Lines []CartLine `json:"items"`
}

func NewCart(lines ...CartLine) Cart {
	var c Cart
	for _, l := range lines {
		c = c.Add(l.ProductID, l.Quantity)
	}
	return c
}

// Add increases the quantity of an existing line or appends a new one.
func (c Cart) Add(productID int64, quantity int) Cart {
	if quantity <= 0 {
		return c
	}
	lines := make([]CartLine, len(c.Lines), len(c.Lines)+1)
	copy(lines, c.Lines)
	for i := range lines {
		if lines[i].ProductID == productID {
			lines[i].Quantity += quantity
			return Cart{Lines: lines}
		}
	}
	return Cart{Lines: append(lines, CartLine{ProductID: productID, Quantity: quantity})}
}

// SetQuantity replaces a line's quantity; zero or less removes the line.
func (c Cart) SetQuantity(productID int64, quantity int) Cart {
	if quantity <= 0 {
		return c.Remove(productID)
	}
	lines := make([]CartLine, 0, len(c.Lines))
	found := false
	for _, l := range c.Lines {
		if l.ProductID == productID {
			l.Quantity = quantity
			found = true
		}
		lines = append(lines, l)
	}
	if !found {
		lines = append(lines, CartLine{ProductID: productID, Quantity: quantity})
	}
	return Cart{Lines: lines}
}

func (c Cart) Remove(productID int64) Cart {
	lines := make([]CartLine, 0, len(c.Lines))
	for _, l := range c.Lines {
		if l.ProductID != productID {
			lines = append(lines, l)
		}
	}
	return Cart{Lines: lines}
}

func (c Cart) Clear() Cart {
	return Cart{}
}

func (c Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

func (c Cart) ProductIDs() []int64 {
	ids := make([]int64, len(c.Lines))
	for i, l := range c.Lines {
		ids[i] = l.ProductID
	}
	return ids
}

// ProductPrice is the pricing view of a catalog product.
type ProductPrice struct {
	ProductID      int64           `json:"product_id"`
	Name           string          `json:"name"`
	PlatformName   string          `json:"platform_name"`
	OriginalPrice  decimal.Decimal `json:"original_price"`
	OurPrice       decimal.Decimal `json:"our_price"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
	IsFree         bool            `json:"is_free"`
	IsActive       bool            `json:"is_active"`
}

// UnitPrice is what the student pays for one unit.
func (p ProductPrice) UnitPrice() decimal.Decimal {
	if p.IsFree {
		return decimal.Zero
	}
	return p.OurPrice
}

type QuoteLine struct {
	ProductID         int64           `json:"product_id"`
	Name              string          `json:"name"`
	PlatformName      string          `json:"platform_name"`
	Quantity          int             `json:"quantity"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	OriginalUnitPrice decimal.Decimal `json:"original_unit_price"`
	LineTotal         decimal.Decimal `json:"line_total"`
	Savings           Savings         `json:"savings"`
	CommissionRate    decimal.Decimal `json:"commission_rate"`
	CommissionAmount  decimal.Decimal `json:"commission_amount"`
}

type Quote struct {
	Lines           []QuoteLine     `json:"lines"`
	Skipped         []int64         `json:"skipped,omitempty"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	OriginalTotal   decimal.Decimal `json:"original_total"`
	SavingsTotal    decimal.Decimal `json:"savings_total"`
	CommissionTotal decimal.Decimal `json:"commission_total"`
}

// QuoteCart prices every line of the cart against the given catalog view.
// Lines whose product is unknown or inactive are skipped and reported.
// Free products are quoted at zero and carry no commission.
func QuoteCart(cart Cart, catalog map[int64]ProductPrice) (Quote, error) {
	q := Quote{
		Subtotal:        decimal.Zero,
		OriginalTotal:   decimal.Zero,
		SavingsTotal:    decimal.Zero,
		CommissionTotal: decimal.Zero,
	}

	for _, line := range cart.Lines {
		if line.Quantity <= 0 {
			return Quote{}, fmt.Errorf("product %d: %w", line.ProductID, ErrInvalidQuantity)
		}

		p, ok := catalog[line.ProductID]
		if !ok || !p.IsActive {
			q.Skipped = append(q.Skipped, line.ProductID)
			continue
		}

		qty := decimal.NewFromInt(int64(line.Quantity))
		lineTotal := p.UnitPrice().Mul(qty)
		originalTotal := p.OriginalPrice.Mul(qty)

		savings, err := ComputeSavings(originalTotal, lineTotal)
		if err != nil {
			return Quote{}, fmt.Errorf("product %d: %w", line.ProductID, err)
		}

		rate := p.CommissionRate
		commission := decimal.Zero
		if p.IsFree {
			rate = decimal.Zero
		} else {
			commission, err = ComputeCommission(originalTotal, rate)
			if err != nil {
				return Quote{}, fmt.Errorf("product %d: %w", line.ProductID, err)
			}
		}

		q.Lines = append(q.Lines, QuoteLine{
			ProductID:         p.ProductID,
			Name:              p.Name,
			PlatformName:      p.PlatformName,
			Quantity:          line.Quantity,
			UnitPrice:         p.UnitPrice(),
			OriginalUnitPrice: p.OriginalPrice,
			LineTotal:         lineTotal,
			Savings:           savings,
			CommissionRate:    rate,
			CommissionAmount:  commission,
		})

		q.Subtotal = q.Subtotal.Add(lineTotal)
		q.OriginalTotal = q.OriginalTotal.Add(originalTotal)
		q.SavingsTotal = q.SavingsTotal.Add(savings.Amount)
		q.CommissionTotal = q.CommissionTotal.Add(commission)
	}

	return q, nil
}
