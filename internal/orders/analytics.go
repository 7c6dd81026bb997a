package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PeriodSales counts orders paid within a window.
type PeriodSales struct {
	Orders  int             `json:"orders"`
	Revenue decimal.Decimal `json:"revenue"`
}

// PlatformSales sums paid line totals by the platform name snapshotted on
// each item.
type PlatformSales struct {
	Platform string          `json:"platform"`
	Orders   int             `json:"orders"`
	Revenue  decimal.Decimal `json:"revenue"`
}

type SalesAnalytics struct {
	Platforms []PlatformSales        `json:"platforms"`
	Periods   map[string]PeriodSales `json:"periods"`
}

type period struct {
	name     string
	from, to time.Time
}

// salesPeriods are half-open [from, to) windows in UTC days.
func salesPeriods(now time.Time) []period {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	tomorrow := today.AddDate(0, 0, 1)

	return []period{
		{"today", today, tomorrow},
		{"yesterday", today.AddDate(0, 0, -1), today},
		{"last_7_days", today.AddDate(0, 0, -7), tomorrow},
		{"last_30_days", today.AddDate(0, 0, -30), tomorrow},
		{"this_month", time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC), tomorrow},
	}
}

// SalesAnalytics reports paid revenue per platform and per period. Refunded
// orders are not revenue.
func (s *Service) SalesAnalytics(ctx context.Context) (SalesAnalytics, error) {
	platforms, err := s.repo.PlatformSales(ctx)
	if err != nil {
		return SalesAnalytics{}, fmt.Errorf("platform sales: %w", err)
	}

	out := SalesAnalytics{Platforms: platforms, Periods: map[string]PeriodSales{}}
	for _, p := range salesPeriods(s.now()) {
		sales, err := s.repo.PaidBetween(ctx, p.from, p.to)
		if err != nil {
			return SalesAnalytics{}, fmt.Errorf("%s sales: %w", p.name, err)
		}
		out.Periods[p.name] = sales
	}
	return out, nil
}

func (r *OrderRepository) PlatformSales(ctx context.Context) ([]PlatformSales, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT i.platform_name, COUNT(DISTINCT i.order_id), COALESCE(SUM(i.price * i.quantity), 0) AS revenue
		FROM order_items i
		JOIN orders o ON o.id = i.order_id
		WHERE o.payment_status = 'paid'
		GROUP BY i.platform_name
		ORDER BY revenue DESC, i.platform_name
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []PlatformSales{}
	for rows.Next() {
		var p PlatformSales
		if err := rows.Scan(&p.Platform, &p.Orders, &p.Revenue); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *OrderRepository) PaidBetween(ctx context.Context, from, to time.Time) (PeriodSales, error) {
	var p PeriodSales
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total), 0)
		FROM orders
		WHERE payment_status = 'paid' AND paid_at >= $1 AND paid_at < $2
	`, from, to).Scan(&p.Orders, &p.Revenue)
	return p, err
}
