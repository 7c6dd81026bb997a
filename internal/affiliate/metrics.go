package affiliate

import (
	"context"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/faizu526/zerotohero/internal/domain"
)

type Metrics struct {
	commissions      metric.Int64Counter
	commissionAmount metric.Float64Counter
	withdrawals      metric.Int64Counter
	clicks           metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	commissions, err := meter.Int64Counter("affiliate.commissions",
		metric.WithDescription("Commission status transitions"),
	)
	if err != nil {
		return nil, err
	}

	commissionAmount, err := meter.Float64Counter("affiliate.commission.amount",
		metric.WithDescription("Commission amount moved per status"),
	)
	if err != nil {
		return nil, err
	}

	withdrawals, err := meter.Int64Counter("affiliate.withdrawals",
		metric.WithDescription("Withdrawal requests and outcomes"),
	)
	if err != nil {
		return nil, err
	}

	clicks, err := meter.Int64Counter("affiliate.referral.clicks",
		metric.WithDescription("Visits through referral links"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		commissions:      commissions,
		commissionAmount: commissionAmount,
		withdrawals:      withdrawals,
		clicks:           clicks,
	}, nil
}

func (m *Metrics) commission(ctx context.Context, status domain.CommissionStatus, amount decimal.Decimal) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", string(status)))
	m.commissions.Add(ctx, 1, attrs)
	// Metrics only; money never leaves decimal anywhere else.
	m.commissionAmount.Add(ctx, amount.InexactFloat64(), attrs)
}

func (m *Metrics) withdrawal(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.withdrawals.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) click(ctx context.Context) {
	if m == nil {
		return
	}
	m.clicks.Add(ctx, 1)
}
