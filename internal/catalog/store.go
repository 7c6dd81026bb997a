// Package catalog serves platforms, products and bundles, and owns
// repricing: a product's commission amount and every bundle containing it
// are recomputed in the transaction that changes its prices.
package catalog

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/faizu526/zerotohero/internal/domain"
)

// Store reads return (nil, nil) when the row does not exist.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	ListProducts(ctx context.Context, f ProductFilter) ([]domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	LookupProducts(ctx context.Context, ids []int64) ([]domain.Product, error)
	ListPlatforms(ctx context.Context, f PlatformFilter) ([]domain.Platform, error)
	ListBundles(ctx context.Context) ([]domain.Bundle, error)
	GetBundle(ctx context.Context, id int64) (*domain.Bundle, error)
}

// Tx locks products before bundles.
type Tx interface {
	LockProduct(ctx context.Context, id int64) (*domain.Product, error)
	SaveProductPricing(ctx context.Context, p domain.Product) error

	LockBundle(ctx context.Context, id int64) (*domain.Bundle, error)
	LockBundlesContaining(ctx context.Context, productID int64) ([]domain.Bundle, error)
	// MemberPrices returns the our_price of each id in the order given.
	// Unknown ids are reported with domain.ErrNotFound.
	MemberPrices(ctx context.Context, productIDs []int64) ([]decimal.Decimal, error)
	SaveBundle(ctx context.Context, b domain.Bundle) error
}
