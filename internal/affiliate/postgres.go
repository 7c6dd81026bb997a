package affiliate

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/faizu526/zerotohero/internal/domain"
)

const uniqueViolation = "23505"

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, &pgTx{q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

const affiliateColumns = `
	id, customer_id, name, email, referral_code,
	total_earned, pending_balance, available_balance, total_withdrawn,
	clicks, conversions, conversion_rate, is_active, created_at, updated_at
`

func scanAffiliate(row interface{ Scan(...any) error }) (*domain.Affiliate, error) {
	a := &domain.Affiliate{}
	err := row.Scan(
		&a.ID, &a.CustomerID, &a.Name, &a.Email, &a.ReferralCode,
		&a.Balances.TotalEarned, &a.Balances.Pending, &a.Balances.Available, &a.Balances.Withdrawn,
		&a.Clicks, &a.Conversions, &a.ConversionRate, &a.IsActive, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

const commissionColumns = `
	id, affiliate_id, order_id, order_item_id, product_id, order_total, rate, amount,
	status, notes, created_at, approved_at, paid_at, cancelled_at
`

func scanCommission(row interface{ Scan(...any) error }) (*domain.Commission, error) {
	c := &domain.Commission{}
	var approvedAt, paidAt, cancelledAt sql.NullTime
	err := row.Scan(
		&c.ID, &c.AffiliateID, &c.OrderID, &c.OrderItemID, &c.ProductID, &c.OrderTotal, &c.Rate, &c.Amount,
		&c.Status, &c.Notes, &c.CreatedAt, &approvedAt, &paidAt, &cancelledAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	c.ApprovedAt = timePtr(approvedAt)
	c.PaidAt = timePtr(paidAt)
	c.CancelledAt = timePtr(cancelledAt)
	return c, nil
}

const withdrawalColumns = `
	id, affiliate_id, amount, status, payment_method, payment_details,
	transaction_id, notes, requested_at, processed_at, needs_review
`

func scanWithdrawal(row interface{ Scan(...any) error }) (*domain.Withdrawal, error) {
	w := &domain.Withdrawal{}
	var details []byte
	var processedAt sql.NullTime
	err := row.Scan(
		&w.ID, &w.AffiliateID, &w.Amount, &w.Status, &w.PaymentMethod, &details,
		&w.TransactionID, &w.Notes, &w.RequestedAt, &processedAt, &w.NeedsReview,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &w.PaymentDetails); err != nil {
			return nil, err
		}
	}
	w.ProcessedAt = timePtr(processedAt)
	return w, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (s *PostgresStore) FindByReferralCode(ctx context.Context, code string) (*domain.Affiliate, error) {
	return scanAffiliate(s.db.QueryRowContext(ctx,
		`SELECT `+affiliateColumns+` FROM affiliates WHERE referral_code = $1`, code))
}

func (s *PostgresStore) GetAffiliate(ctx context.Context, id string) (*domain.Affiliate, error) {
	return scanAffiliate(s.db.QueryRowContext(ctx,
		`SELECT `+affiliateColumns+` FROM affiliates WHERE id = $1`, id))
}

func (s *PostgresStore) GetCommission(ctx context.Context, id string) (*domain.Commission, error) {
	return scanCommission(s.db.QueryRowContext(ctx,
		`SELECT `+commissionColumns+` FROM commissions WHERE id = $1`, id))
}

func (s *PostgresStore) ListCommissions(ctx context.Context, affiliateID string, status domain.CommissionStatus) ([]domain.Commission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+commissionColumns+`
		FROM commissions
		WHERE affiliate_id = $1 AND ($2::text = '' OR status = $2::text)
		ORDER BY created_at DESC, id
	`, affiliateID, string(status))
	if err != nil {
		return nil, err
	}
	return collectCommissions(rows)
}

func collectCommissions(rows *sql.Rows) ([]domain.Commission, error) {
	defer func() { _ = rows.Close() }()

	out := []domain.Commission{}
	for rows.Next() {
		c, err := scanCommission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) ListWithdrawals(ctx context.Context, affiliateID string, limit int) ([]domain.Withdrawal, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+withdrawalColumns+`
		FROM withdrawals
		WHERE affiliate_id = $1
		ORDER BY requested_at DESC, id
		LIMIT $2
	`, affiliateID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []domain.Withdrawal{}
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) CommissionSums(ctx context.Context, affiliateID string) (map[domain.CommissionStatus]decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COALESCE(SUM(amount), 0)
		FROM commissions
		WHERE affiliate_id = $1
		GROUP BY status
	`, affiliateID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	sums := map[domain.CommissionStatus]decimal.Decimal{}
	for rows.Next() {
		var status domain.CommissionStatus
		var sum decimal.Decimal
		if err := rows.Scan(&status, &sum); err != nil {
			return nil, err
		}
		sums[status] = sum
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sums, nil
}

func (s *PostgresStore) ApprovedBefore(ctx context.Context, before time.Time, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id
		FROM commissions
		WHERE status = 'approved' AND approved_at < $1
		ORDER BY approved_at
		LIMIT $2
	`, before, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

type pgTx struct {
	q queryer
}

func translate(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}

func (t *pgTx) ReferralCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := t.q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM affiliates WHERE referral_code = $1)`, code).Scan(&exists)
	return exists, err
}

func (t *pgTx) CreateAffiliate(ctx context.Context, a domain.Affiliate) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO affiliates (`+affiliateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, a.ID, a.CustomerID, a.Name, a.Email, a.ReferralCode,
		a.Balances.TotalEarned, a.Balances.Pending, a.Balances.Available, a.Balances.Withdrawn,
		a.Clicks, a.Conversions, a.ConversionRate, a.IsActive, a.CreatedAt, a.UpdatedAt)
	return translate(err)
}

func (t *pgTx) LockAffiliate(ctx context.Context, id string) (*domain.Affiliate, error) {
	return scanAffiliate(t.q.QueryRowContext(ctx,
		`SELECT `+affiliateColumns+` FROM affiliates WHERE id = $1 FOR UPDATE`, id))
}

func (t *pgTx) SaveAffiliate(ctx context.Context, a domain.Affiliate) error {
	if err := a.Balances.Validate(); err != nil {
		return err
	}
	result, err := t.q.ExecContext(ctx, `
		UPDATE affiliates
		SET total_earned = $2, pending_balance = $3, available_balance = $4, total_withdrawn = $5,
			clicks = $6, conversions = $7, conversion_rate = $8, is_active = $9, updated_at = $10
		WHERE id = $1
	`, a.ID, a.Balances.TotalEarned, a.Balances.Pending, a.Balances.Available, a.Balances.Withdrawn,
		a.Clicks, a.Conversions, a.ConversionRate, a.IsActive, a.UpdatedAt)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *pgTx) LockCommission(ctx context.Context, id string) (*domain.Commission, error) {
	return scanCommission(t.q.QueryRowContext(ctx,
		`SELECT `+commissionColumns+` FROM commissions WHERE id = $1 FOR UPDATE`, id))
}

func (t *pgTx) LockCommissionsByOrder(ctx context.Context, orderID string) ([]domain.Commission, error) {
	rows, err := t.q.QueryContext(ctx, `
		SELECT `+commissionColumns+`
		FROM commissions
		WHERE order_id = $1
		ORDER BY id
		FOR UPDATE
	`, orderID)
	if err != nil {
		return nil, err
	}
	return collectCommissions(rows)
}

func (t *pgTx) InsertCommission(ctx context.Context, c domain.Commission) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO commissions (`+commissionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, c.ID, c.AffiliateID, c.OrderID, c.OrderItemID, c.ProductID, c.OrderTotal, c.Rate, c.Amount,
		c.Status, c.Notes, c.CreatedAt, nullTime(c.ApprovedAt), nullTime(c.PaidAt), nullTime(c.CancelledAt))
	return translate(err)
}

func (t *pgTx) SaveCommission(ctx context.Context, c domain.Commission) error {
	result, err := t.q.ExecContext(ctx, `
		UPDATE commissions
		SET status = $2, notes = $3, approved_at = $4, paid_at = $5, cancelled_at = $6
		WHERE id = $1
	`, c.ID, c.Status, c.Notes, nullTime(c.ApprovedAt), nullTime(c.PaidAt), nullTime(c.CancelledAt))
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (t *pgTx) LockWithdrawal(ctx context.Context, id string) (*domain.Withdrawal, error) {
	return scanWithdrawal(t.q.QueryRowContext(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1 FOR UPDATE`, id))
}

func (t *pgTx) InsertWithdrawal(ctx context.Context, w domain.Withdrawal) error {
	details, err := json.Marshal(w.PaymentDetails)
	if err != nil {
		return err
	}
	_, err = t.q.ExecContext(ctx, `
		INSERT INTO withdrawals (`+withdrawalColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, w.ID, w.AffiliateID, w.Amount, w.Status, w.PaymentMethod, string(details),
		w.TransactionID, w.Notes, w.RequestedAt, nullTime(w.ProcessedAt), w.NeedsReview)
	return translate(err)
}

func (t *pgTx) SaveWithdrawal(ctx context.Context, w domain.Withdrawal) error {
	result, err := t.q.ExecContext(ctx, `
		UPDATE withdrawals
		SET status = $2, transaction_id = $3, notes = $4, processed_at = $5
		WHERE id = $1
	`, w.ID, w.Status, w.TransactionID, w.Notes, nullTime(w.ProcessedAt))
	if err != nil {
		return err
	}
	return requireRow(result)
}
