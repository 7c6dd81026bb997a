package affiliate

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/faizu526/zerotohero/internal/domain"
)

var ErrDuplicate = errors.New("duplicate record")

// Store persists affiliates, commissions and withdrawals. Reads outside
// WithTx may observe any committed state. Every balance change goes
// through WithTx.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	FindByReferralCode(ctx context.Context, code string) (*domain.Affiliate, error)
	GetAffiliate(ctx context.Context, id string) (*domain.Affiliate, error)
	GetCommission(ctx context.Context, id string) (*domain.Commission, error)
	ListCommissions(ctx context.Context, affiliateID string, status domain.CommissionStatus) ([]domain.Commission, error)
	ListWithdrawals(ctx context.Context, affiliateID string, limit int) ([]domain.Withdrawal, error)
	CommissionSums(ctx context.Context, affiliateID string) (map[domain.CommissionStatus]decimal.Decimal, error)
	ApprovedBefore(ctx context.Context, before time.Time, limit int) ([]string, error)
	Analytics(ctx context.Context, top int) (Analytics, error)
}

// Tx is one atomic unit of work. Lock* methods hold the row until the
// transaction ends. Callers lock commission and withdrawal rows before the
// affiliate row they belong to.
type Tx interface {
	ReferralCodeExists(ctx context.Context, code string) (bool, error)
	CreateAffiliate(ctx context.Context, a domain.Affiliate) error
	LockAffiliate(ctx context.Context, id string) (*domain.Affiliate, error)
	SaveAffiliate(ctx context.Context, a domain.Affiliate) error

	LockCommission(ctx context.Context, id string) (*domain.Commission, error)
	LockCommissionsByOrder(ctx context.Context, orderID string) ([]domain.Commission, error)
	InsertCommission(ctx context.Context, c domain.Commission) error
	SaveCommission(ctx context.Context, c domain.Commission) error

	LockWithdrawal(ctx context.Context, id string) (*domain.Withdrawal, error)
	InsertWithdrawal(ctx context.Context, w domain.Withdrawal) error
	SaveWithdrawal(ctx context.Context, w domain.Withdrawal) error
}
