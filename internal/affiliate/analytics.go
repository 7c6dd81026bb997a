package affiliate

import (
	"context"
	"database/sql"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/faizu526/zerotohero/internal/domain"
)

// TopAffiliatesLimit is how many affiliates the program report ranks.
const TopAffiliatesLimit = 20

type TopAffiliate struct {
	AffiliateID  string          `json:"affiliate_id"`
	Name         string          `json:"name"`
	ReferralCode string          `json:"referral_code"`
	Earned       decimal.Decimal `json:"earned"`
	Commissions  int             `json:"commissions"`
}

type CommissionStat struct {
	Status domain.CommissionStatus `json:"status"`
	Total  decimal.Decimal         `json:"total"`
	Count  int                     `json:"count"`
}

// MonthlyCount is keyed by UTC month, formatted 2006-01.
type MonthlyCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

// Analytics summarizes the whole affiliate program. Earned and Commissions
// leave cancelled commissions out.
type Analytics struct {
	TopAffiliates     []TopAffiliate   `json:"top_affiliates"`
	CommissionStats   []CommissionStat `json:"commission_stats"`
	MonthlyAffiliates []MonthlyCount   `json:"monthly_affiliates"`
}

func (m *MemoryStore) Analytics(_ context.Context, top int) (Analytics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ranked := make(map[string]*TopAffiliate, len(m.state.affiliates))
	months := map[string]int{}
	for _, a := range m.state.affiliates {
		ranked[a.ID] = &TopAffiliate{AffiliateID: a.ID, Name: a.Name, ReferralCode: a.ReferralCode, Earned: decimal.Zero}
		months[a.CreatedAt.UTC().Format("2006-01")]++
	}

	stats := map[domain.CommissionStatus]*CommissionStat{}
	for _, c := range m.state.commissions {
		s, ok := stats[c.Status]
		if !ok {
			s = &CommissionStat{Status: c.Status, Total: decimal.Zero}
			stats[c.Status] = s
		}
		s.Total = s.Total.Add(c.Amount)
		s.Count++

		if t, ok := ranked[c.AffiliateID]; ok && c.Status != domain.CommissionCancelled {
			t.Earned = t.Earned.Add(c.Amount)
			t.Commissions++
		}
	}

	out := Analytics{
		TopAffiliates:     make([]TopAffiliate, 0, len(ranked)),
		CommissionStats:   make([]CommissionStat, 0, len(stats)),
		MonthlyAffiliates: make([]MonthlyCount, 0, len(months)),
	}
	for _, t := range ranked {
		out.TopAffiliates = append(out.TopAffiliates, *t)
	}
	sort.Slice(out.TopAffiliates, func(i, j int) bool {
		a, b := out.TopAffiliates[i], out.TopAffiliates[j]
		if c := a.Earned.Cmp(b.Earned); c != 0 {
			return c > 0
		}
		return a.AffiliateID < b.AffiliateID
	})
	if top > 0 && len(out.TopAffiliates) > top {
		out.TopAffiliates = out.TopAffiliates[:top]
	}

	for _, s := range stats {
		out.CommissionStats = append(out.CommissionStats, *s)
	}
	sort.Slice(out.CommissionStats, func(i, j int) bool {
		return out.CommissionStats[i].Status < out.CommissionStats[j].Status
	})

	for month, n := range months {
		out.MonthlyAffiliates = append(out.MonthlyAffiliates, MonthlyCount{Month: month, Count: n})
	}
	sort.Slice(out.MonthlyAffiliates, func(i, j int) bool {
		return out.MonthlyAffiliates[i].Month < out.MonthlyAffiliates[j].Month
	})
	return out, nil
}

func (s *PostgresStore) Analytics(ctx context.Context, top int) (Analytics, error) {
	out := Analytics{
		TopAffiliates:     []TopAffiliate{},
		CommissionStats:   []CommissionStat{},
		MonthlyAffiliates: []MonthlyCount{},
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.name, a.referral_code,
		       COALESCE(SUM(c.amount) FILTER (WHERE c.status <> 'cancelled'), 0) AS earned,
		       COUNT(c.id) FILTER (WHERE c.status <> 'cancelled')
		FROM affiliates a
		LEFT JOIN commissions c ON c.affiliate_id = a.id
		GROUP BY a.id
		ORDER BY earned DESC, a.id
		LIMIT $1
	`, top)
	if err != nil {
		return Analytics{}, err
	}
	for rows.Next() {
		var t TopAffiliate
		if err := rows.Scan(&t.AffiliateID, &t.Name, &t.ReferralCode, &t.Earned, &t.Commissions); err != nil {
			_ = rows.Close()
			return Analytics{}, err
		}
		out.TopAffiliates = append(out.TopAffiliates, t)
	}
	if err := closeRows(rows); err != nil {
		return Analytics{}, err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT status, COALESCE(SUM(amount), 0), COUNT(*)
		FROM commissions
		GROUP BY status
		ORDER BY status
	`)
	if err != nil {
		return Analytics{}, err
	}
	for rows.Next() {
		var c CommissionStat
		if err := rows.Scan(&c.Status, &c.Total, &c.Count); err != nil {
			_ = rows.Close()
			return Analytics{}, err
		}
		out.CommissionStats = append(out.CommissionStats, c)
	}
	if err := closeRows(rows); err != nil {
		return Analytics{}, err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT to_char(date_trunc('month', created_at AT TIME ZONE 'UTC'), 'YYYY-MM') AS month, COUNT(*)
		FROM affiliates
		GROUP BY month
		ORDER BY month
	`)
	if err != nil {
		return Analytics{}, err
	}
	for rows.Next() {
		var m MonthlyCount
		if err := rows.Scan(&m.Month, &m.Count); err != nil {
			_ = rows.Close()
			return Analytics{}, err
		}
		out.MonthlyAffiliates = append(out.MonthlyAffiliates, m)
	}
	if err := closeRows(rows); err != nil {
		return Analytics{}, err
	}
	return out, nil
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	return rows.Close()
}
