package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/faizu526/zerotohero/internal/domain"
)

// fakeStore is an in-memory Store whose transactions apply all or nothing.
type fakeStore struct {
	mu       sync.Mutex
	products map[int64]domain.Product
	bundles  map[int64]domain.Bundle
	// failSaveBundle makes SaveBundle fail, to check rollback.
	failSaveBundle bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products: map[int64]domain.Product{},
		bundles:  map[int64]domain.Bundle{},
	}
}

func (s *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &fakeTx{
		products: make(map[int64]domain.Product, len(s.products)),
		bundles:  make(map[int64]domain.Bundle, len(s.bundles)),
		fail:     s.failSaveBundle,
	}
	for k, v := range s.products {
		tx.products[k] = v
	}
	for k, v := range s.bundles {
		v.ProductIDs = append([]int64(nil), v.ProductIDs...)
		tx.bundles[k] = v
	}

	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.products = tx.products
	s.bundles = tx.bundles
	return nil
}

func (s *fakeStore) ListProducts(_ context.Context, f ProductFilter) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []domain.Product{}
	for _, p := range s.products {
		if !p.IsActive {
			continue
		}
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.Query != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Query)) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *fakeStore) LookupProducts(_ context.Context, ids []int64) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []domain.Product{}
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeStore) ListPlatforms(context.Context, PlatformFilter) ([]domain.Platform, error) {
	return []domain.Platform{{ID: 1, Name: "TryHackMe", IsActive: true}}, nil
}

func (s *fakeStore) ListBundles(context.Context) ([]domain.Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []domain.Bundle{}
	for _, b := range s.bundles {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) GetBundle(_ context.Context, id int64) (*domain.Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bundles[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

type fakeTx struct {
	products map[int64]domain.Product
	bundles  map[int64]domain.Bundle
	fail     bool
}

func (t *fakeTx) LockProduct(_ context.Context, id int64) (*domain.Product, error) {
	p, ok := t.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (t *fakeTx) SaveProductPricing(_ context.Context, p domain.Product) error {
	if _, ok := t.products[p.ID]; !ok {
		return domain.ErrNotFound
	}
	t.products[p.ID] = p
	return nil
}

func (t *fakeTx) LockBundle(_ context.Context, id int64) (*domain.Bundle, error) {
	b, ok := t.bundles[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (t *fakeTx) LockBundlesContaining(_ context.Context, productID int64) ([]domain.Bundle, error) {
	var out []domain.Bundle
	for _, b := range t.bundles {
		for _, id := range b.ProductIDs {
			if id == productID {
				out = append(out, b)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *fakeTx) MemberPrices(_ context.Context, ids []int64) ([]decimal.Decimal, error) {
	prices := make([]decimal.Decimal, 0, len(ids))
	for _, id := range ids {
		p, ok := t.products[id]
		if !ok {
			return nil, fmt.Errorf("product %d: %w", id, domain.ErrNotFound)
		}
		prices = append(prices, p.OurPrice)
	}
	return prices, nil
}

func (t *fakeTx) SaveBundle(_ context.Context, b domain.Bundle) error {
	if t.fail {
		return fmt.Errorf("disk full")
	}
	if _, ok := t.bundles[b.ID]; !ok {
		return domain.ErrNotFound
	}
	t.bundles[b.ID] = b
	return nil
}

// fakeCache records how often it was invalidated.
type fakeCache struct {
	mu          sync.Mutex
	entries     map[string][]byte
	gets        int
	hits        int
	invalidated int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string][]byte{}}
}

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gets++
	v, ok := c.entries[key]
	if ok {
		c.hits++
	}
	return v, ok, nil
}

func (c *fakeCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = value
	return nil
}

func (c *fakeCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.invalidated++
	c.entries = map[string][]byte{}
	return nil
}
