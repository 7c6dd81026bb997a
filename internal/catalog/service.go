package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/faizu526/zerotohero/internal/domain"
	"github.com/faizu526/zerotohero/internal/pricing"
)

type Service struct {
	store  Store
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds the catalog service. cache may be nil.
func NewService(store Store, cache Cache, ttl time.Duration, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) ListProducts(ctx context.Context, f ProductFilter) ([]domain.ProductView, error) {
	return cached(ctx, s, f.CacheKey(), func() ([]domain.ProductView, error) {
		products, err := s.store.ListProducts(ctx, f)
		if err != nil {
			return nil, err
		}
		views := make([]domain.ProductView, 0, len(products))
		for _, p := range products {
			views = append(views, p.View())
		}
		return views, nil
	})
}

// GetProduct returns nil when the product does not exist.
func (s *Service) GetProduct(ctx context.Context, id int64) (*domain.ProductView, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil || p == nil {
		return nil, err
	}
	v := p.View()
	return &v, nil
}

// Lookup returns the pricing view of each known product, active or not.
// Checkout decides what to do with inactive ones.
func (s *Service) Lookup(ctx context.Context, ids []int64) ([]pricing.ProductPrice, error) {
	products, err := s.store.LookupProducts(ctx, ids)
	if err != nil {
		return nil, err
	}
	prices := make([]pricing.ProductPrice, 0, len(products))
	for _, p := range products {
		prices = append(prices, p.Price())
	}
	return prices, nil
}

func (s *Service) ListPlatforms(ctx context.Context, f PlatformFilter) ([]domain.Platform, error) {
	return cached(ctx, s, f.CacheKey(), func() ([]domain.Platform, error) {
		return s.store.ListPlatforms(ctx, f)
	})
}

func (s *Service) ListBundles(ctx context.Context) ([]domain.Bundle, error) {
	return cached(ctx, s, "bundles", func() ([]domain.Bundle, error) {
		return s.store.ListBundles(ctx)
	})
}

func (s *Service) GetBundle(ctx context.Context, id int64) (*domain.Bundle, error) {
	return s.store.GetBundle(ctx, id)
}

type RepriceRequest struct {
	OriginalPrice  decimal.Decimal `json:"original_price"`
	OurPrice       decimal.Decimal `json:"our_price"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
	IsFree         bool            `json:"is_free"`
}

type RepriceResult struct {
	Product domain.ProductView `json:"product"`
	Bundles []domain.Bundle    `json:"bundles"`
}

// Reprice changes a product's prices and rate. The commission amount and
// every bundle containing the product are recomputed in the same
// transaction, so no reader sees the new price with old derived values.
func (s *Service) Reprice(ctx context.Context, id int64, req RepriceRequest) (RepriceResult, error) {
	var result RepriceResult

	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		current, err := tx.LockProduct(ctx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}

		next, err := current.Reprice(req.OriginalPrice, req.OurPrice, req.CommissionRate, req.IsFree)
		if err != nil {
			return err
		}
		now := s.now()
		next.UpdatedAt = now
		if err := tx.SaveProductPricing(ctx, next); err != nil {
			return err
		}

		bundles, err := tx.LockBundlesContaining(ctx, id)
		if err != nil {
			return err
		}
		updated := make([]domain.Bundle, 0, len(bundles))
		for _, b := range bundles {
			nb, err := s.recalculate(ctx, tx, b, now)
			if err != nil {
				return fmt.Errorf("bundle %d: %w", b.ID, err)
			}
			updated = append(updated, nb)
		}

		result = RepriceResult{Product: next.View(), Bundles: updated}
		return nil
	})
	if err != nil {
		return RepriceResult{}, err
	}

	s.invalidate(ctx)
	s.logger.Info("product repriced",
		"product_id", id,
		"our_price", result.Product.OurPrice,
		"commission_amount", result.Product.CommissionAmount,
		"bundles", len(result.Bundles),
	)
	for _, b := range result.Bundles {
		if b.Misconfigured {
			s.logger.Warn("bundle price exceeds member total", "bundle_id", b.ID, "savings_amount", b.SavingsAmount)
		}
	}
	return result, nil
}

// BundleUpdate changes membership and/or price. Nil fields are kept.
type BundleUpdate struct {
	ProductIDs  []int64          `json:"product_ids"`
	BundlePrice *decimal.Decimal `json:"bundle_price"`
}

func (s *Service) UpdateBundle(ctx context.Context, id int64, u BundleUpdate) (domain.Bundle, error) {
	if u.BundlePrice != nil && u.BundlePrice.IsNegative() {
		return domain.Bundle{}, domain.ErrInvalidAmount
	}

	var updated domain.Bundle
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		b, err := tx.LockBundle(ctx, id)
		if err != nil {
			return err
		}
		if b == nil {
			return domain.ErrNotFound
		}

		next := *b
		if u.ProductIDs != nil {
			next.ProductIDs = dedupe(u.ProductIDs)
		}
		if u.BundlePrice != nil {
			next.BundlePrice = *u.BundlePrice
		}

		updated, err = s.recalculate(ctx, tx, next, s.now())
		return err
	})
	if err != nil {
		return domain.Bundle{}, err
	}

	s.invalidate(ctx)
	if updated.Misconfigured {
		s.logger.Warn("bundle price exceeds member total", "bundle_id", id, "savings_amount", updated.SavingsAmount)
	}
	s.logger.Info("bundle updated", "bundle_id", id, "members", len(updated.ProductIDs))
	return updated, nil
}

func (s *Service) recalculate(ctx context.Context, tx Tx, b domain.Bundle, at time.Time) (domain.Bundle, error) {
	prices, err := tx.MemberPrices(ctx, b.ProductIDs)
	if err != nil {
		return domain.Bundle{}, err
	}
	next, err := b.Recalculate(prices)
	if err != nil {
		return domain.Bundle{}, err
	}
	next.UpdatedAt = at
	if err := tx.SaveBundle(ctx, next); err != nil {
		return domain.Bundle{}, err
	}
	return next, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Error("failed to invalidate catalog cache", "error", err)
	}
}

// cached serves key from the cache when present and fills it otherwise.
// Cache failures are logged and fall through to load.
func cached[T any](ctx context.Context, s *Service, key string, load func() (T, error)) (T, error) {
	if s.cache != nil {
		data, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("catalog cache read failed", "error", err, "key", key)
		}
		if ok {
			var v T
			if err := json.Unmarshal(data, &v); err == nil {
				return v, nil
			}
			s.logger.Warn("discarding undecodable cache entry", "key", key)
		}
	}

	v, err := load()
	if err != nil {
		return v, err
	}

	if s.cache != nil {
		data, err := json.Marshal(v)
		if err == nil {
			err = s.cache.Set(ctx, key, data, s.ttl)
		}
		if err != nil {
			s.logger.Warn("catalog cache write failed", "error", err, "key", key)
		}
	}
	return v, nil
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
