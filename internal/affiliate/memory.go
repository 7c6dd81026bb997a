package affiliate

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/faizu526/zerotohero/internal/domain"
)

// MemoryStore keeps everything in process. Transactions are serialized by
// a single mutex and applied copy-on-write, so a failed transaction leaves
// no trace.
type MemoryStore struct {
	mu    sync.Mutex
	state memState
}

type memState struct {
	affiliates  map[string]domain.Affiliate
	commissions map[string]domain.Commission
	withdrawals map[string]domain.Withdrawal
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: memState{
		affiliates:  map[string]domain.Affiliate{},
		commissions: map[string]domain.Commission{},
		withdrawals: map[string]domain.Withdrawal{},
	}}
}

func (s memState) clone() memState {
	c := memState{
		affiliates:  make(map[string]domain.Affiliate, len(s.affiliates)),
		commissions: make(map[string]domain.Commission, len(s.commissions)),
		withdrawals: make(map[string]domain.Withdrawal, len(s.withdrawals)),
	}
	for k, v := range s.affiliates {
		c.affiliates[k] = v
	}
	for k, v := range s.commissions {
		c.commissions[k] = v
	}
	for k, v := range s.withdrawals {
		c.withdrawals[k] = v
	}
	return c
}

func (m *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := m.state.clone()
	if err := fn(ctx, &memTx{state: work}); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (m *MemoryStore) FindByReferralCode(_ context.Context, code string) (*domain.Affiliate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.state.affiliates {
		if a.ReferralCode == code {
			return &a, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) GetAffiliate(_ context.Context, id string) (*domain.Affiliate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.state.affiliates[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *MemoryStore) GetCommission(_ context.Context, id string) (*domain.Commission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.state.commissions[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *MemoryStore) ListCommissions(_ context.Context, affiliateID string, status domain.CommissionStatus) ([]domain.Commission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []domain.Commission{}
	for _, c := range m.state.commissions {
		if c.AffiliateID != affiliateID {
			continue
		}
		if status != "" && c.Status != status {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) ListWithdrawals(_ context.Context, affiliateID string, limit int) ([]domain.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []domain.Withdrawal{}
	for _, w := range m.state.withdrawals {
		if w.AffiliateID == affiliateID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].RequestedAt.After(out[j].RequestedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) CommissionSums(_ context.Context, affiliateID string) (map[domain.CommissionStatus]decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sums := map[domain.CommissionStatus]decimal.Decimal{}
	for _, c := range m.state.commissions {
		if c.AffiliateID != affiliateID {
			continue
		}
		sums[c.Status] = sums[c.Status].Add(c.Amount)
	}
	return sums, nil
}

func (m *MemoryStore) ApprovedBefore(_ context.Context, before time.Time, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []domain.Commission
	for _, c := range m.state.commissions {
		if c.Status == domain.CommissionApproved && c.ApprovedAt != nil && c.ApprovedAt.Before(before) {
			matched = append(matched, c)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ApprovedAt.Before(*matched[j].ApprovedAt) })

	ids := make([]string, 0, len(matched))
	for _, c := range matched {
		if limit > 0 && len(ids) == limit {
			break
		}
		ids = append(ids, c.ID)
	}
	return ids, nil
}

type memTx struct {
	state memState
}

func (t *memTx) ReferralCodeExists(_ context.Context, code string) (bool, error) {
	for _, a := range t.state.affiliates {
		if a.ReferralCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) CreateAffiliate(ctx context.Context, a domain.Affiliate) error {
	if _, ok := t.state.affiliates[a.ID]; ok {
		return ErrDuplicate
	}
	exists, _ := t.ReferralCodeExists(ctx, a.ReferralCode)
	if exists {
		return ErrDuplicate
	}
	t.state.affiliates[a.ID] = a
	return nil
}

func (t *memTx) LockAffiliate(_ context.Context, id string) (*domain.Affiliate, error) {
	a, ok := t.state.affiliates[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (t *memTx) SaveAffiliate(_ context.Context, a domain.Affiliate) error {
	if _, ok := t.state.affiliates[a.ID]; !ok {
		return domain.ErrNotFound
	}
	if err := a.Balances.Validate(); err != nil {
		return err
	}
	t.state.affiliates[a.ID] = a
	return nil
}

func (t *memTx) LockCommission(_ context.Context, id string) (*domain.Commission, error) {
	c, ok := t.state.commissions[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (t *memTx) LockCommissionsByOrder(_ context.Context, orderID string) ([]domain.Commission, error) {
	var out []domain.Commission
	for _, c := range t.state.commissions {
		if c.OrderID == orderID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) InsertCommission(_ context.Context, c domain.Commission) error {
	if _, ok := t.state.commissions[c.ID]; ok {
		return ErrDuplicate
	}
	for _, existing := range t.state.commissions {
		if existing.OrderID == c.OrderID && existing.OrderItemID == c.OrderItemID {
			return ErrDuplicate
		}
	}
	t.state.commissions[c.ID] = c
	return nil
}

func (t *memTx) SaveCommission(_ context.Context, c domain.Commission) error {
	if _, ok := t.state.commissions[c.ID]; !ok {
		return domain.ErrNotFound
	}
	t.state.commissions[c.ID] = c
	return nil
}

func (t *memTx) LockWithdrawal(_ context.Context, id string) (*domain.Withdrawal, error) {
	w, ok := t.state.withdrawals[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (t *memTx) InsertWithdrawal(_ context.Context, w domain.Withdrawal) error {
	if _, ok := t.state.withdrawals[w.ID]; ok {
		return ErrDuplicate
	}
	t.state.withdrawals[w.ID] = w
	return nil
}

func (t *memTx) SaveWithdrawal(_ context.Context, w domain.Withdrawal) error {
	if _, ok := t.state.withdrawals[w.ID]; !ok {
		return domain.ErrNotFound
	}
	t.state.withdrawals[w.ID] = w
	return nil
}
