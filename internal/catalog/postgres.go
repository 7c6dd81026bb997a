package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/faizu526/zerotohero/internal/domain"
)

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

const productSelect = `
	SELECT p.id, p.platform_id, pl.name, p.name, p.slug, p.category, p.product_type,
		p.short_description, p.currency, p.original_price, p.our_price,
		p.commission_rate, p.commission_amount, p.is_free, p.is_active, p.is_featured,
		p.created_at, p.updated_at
	FROM products p
	JOIN platforms pl ON pl.id = p.platform_id
`

func scanProduct(row interface{ Scan(...any) error }) (*domain.Product, error) {
	p := &domain.Product{}
	err := row.Scan(
		&p.ID, &p.PlatformID, &p.PlatformName, &p.Name, &p.Slug, &p.Category, &p.ProductType,
		&p.ShortDescription, &p.Currency, &p.OriginalPrice, &p.OurPrice,
		&p.CommissionRate, &p.CommissionAmount, &p.IsFree, &p.IsActive, &p.IsFeatured,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

func collectProducts(rows *sql.Rows) ([]domain.Product, error) {
	defer func() { _ = rows.Close() }()

	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

// where accumulates AND-ed conditions with numbered placeholders.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, args ...any) {
	for _, a := range args {
		w.args = append(w.args, a)
		cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	w.conds = append(w.conds, cond)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(w.conds, " AND ")
}

func (w *where) next() string {
	return fmt.Sprintf("$%d", len(w.args)+1)
}

func (s *PostgresStore) ListProducts(ctx context.Context, f ProductFilter) ([]domain.Product, error) {
	var w where
	w.add("p.is_active")
	if f.Category != "" {
		w.add("p.category = ?", f.Category)
	}
	switch f.Price {
	case PriceFree:
		w.add("p.is_free")
	case PriceUnder1000:
		w.add("p.our_price < 1000")
	case Price1000To5000:
		w.add("p.our_price BETWEEN 1000 AND 5000")
	}
	if f.Query != "" {
		like := "%" + f.Query + "%"
		w.add("(p.name ILIKE ? OR p.short_description ILIKE ? OR pl.name ILIKE ?)", like, like, like)
	}

	limit := w.next()
	w.args = append(w.args, f.Limit)
	offset := w.next()
	w.args = append(w.args, f.Offset)

	query := productSelect + w.String() + `
		ORDER BY p.is_featured DESC, p.created_at DESC, p.id
		LIMIT ` + limit + ` OFFSET ` + offset

	rows, err := s.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

func (s *PostgresStore) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return scanProduct(s.db.QueryRowContext(ctx, productSelect+`WHERE p.id = $1`, id))
}

func (s *PostgresStore) LookupProducts(ctx context.Context, ids []int64) ([]domain.Product, error) {
	if len(ids) == 0 {
		return []domain.Product{}, nil
	}
	rows, err := s.db.QueryContext(ctx, productSelect+`WHERE p.id = ANY($1) ORDER BY p.id`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

func (s *PostgresStore) ListPlatforms(ctx context.Context, f PlatformFilter) ([]domain.Platform, error) {
	var w where
	w.add("pl.is_active")
	switch f.Commission {
	case CommissionFree:
		w.add("pl.commission_rate = 0")
	case CommissionThree:
		w.add("pl.commission_rate = 3")
	case CommissionFive:
		w.add("pl.commission_rate BETWEEN 5 AND 7")
	}
	if f.HiddenGems {
		w.add("pl.is_hidden_gem")
	}
	if f.Query != "" {
		like := "%" + f.Query + "%"
		w.add("(pl.name ILIKE ? OR pl.country ILIKE ?)", like, like)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT pl.id, pl.name, pl.slug, pl.website, pl.country, pl.commission_type,
			pl.commission_rate, pl.our_margin, pl.cookie_duration, pl.is_hidden_gem,
			pl.is_featured, pl.is_active,
			(SELECT COUNT(*) FROM products p WHERE p.platform_id = pl.id AND p.is_active)
		FROM platforms pl
		`+w.String()+`
		ORDER BY pl.is_featured DESC, pl.name
	`, w.args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	platforms := []domain.Platform{}
	for rows.Next() {
		var p domain.Platform
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Slug, &p.Website, &p.Country, &p.CommissionType,
			&p.CommissionRate, &p.OurMargin, &p.CookieDuration, &p.IsHiddenGem,
			&p.IsFeatured, &p.IsActive, &p.TotalProducts,
		); err != nil {
			return nil, err
		}
		platforms = append(platforms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return platforms, nil
}

const bundleSelect = `
	SELECT b.id, b.name, b.slug, b.description, b.bundle_price, b.original_total,
		b.savings_amount, b.savings_percentage, b.is_active, b.updated_at,
		COALESCE(ARRAY(
			SELECT bp.product_id FROM bundle_products bp
			WHERE bp.bundle_id = b.id ORDER BY bp.position
		), '{}')
	FROM bundles b
`

func scanBundle(row interface{ Scan(...any) error }) (*domain.Bundle, error) {
	b := &domain.Bundle{}
	var members pq.Int64Array
	err := row.Scan(
		&b.ID, &b.Name, &b.Slug, &b.Description, &b.BundlePrice, &b.OriginalTotal,
		&b.SavingsAmount, &b.SavingsPercentage, &b.IsActive, &b.UpdatedAt, &members,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	b.ProductIDs = []int64(members)
	b.Misconfigured = b.SavingsAmount.IsNegative()
	return b, nil
}

func collectBundles(rows *sql.Rows) ([]domain.Bundle, error) {
	defer func() { _ = rows.Close() }()

	bundles := []domain.Bundle{}
	for rows.Next() {
		b, err := scanBundle(rows)
		if err != nil {
			return nil, err
		}
		bundles = append(bundles, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bundles, nil
}

func (s *PostgresStore) ListBundles(ctx context.Context) ([]domain.Bundle, error) {
	rows, err := s.db.QueryContext(ctx, bundleSelect+`WHERE b.is_active ORDER BY b.id`)
	if err != nil {
		return nil, err
	}
	return collectBundles(rows)
}

func (s *PostgresStore) GetBundle(ctx context.Context, id int64) (*domain.Bundle, error) {
	return scanBundle(s.db.QueryRowContext(ctx, bundleSelect+`WHERE b.id = $1`, id))
}

type pgTx struct {
	q queryer
}

func (t *pgTx) LockProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return scanProduct(t.q.QueryRowContext(ctx, productSelect+`WHERE p.id = $1 FOR UPDATE OF p`, id))
}

func (t *pgTx) SaveProductPricing(ctx context.Context, p domain.Product) error {
	result, err := t.q.ExecContext(ctx, `
		UPDATE products
		SET original_price = $2, our_price = $3, commission_rate = $4,
			commission_amount = $5, is_free = $6, updated_at = $7
		WHERE id = $1
	`, p.ID, p.OriginalPrice, p.OurPrice, p.CommissionRate, p.CommissionAmount, p.IsFree, p.UpdatedAt)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (t *pgTx) LockBundle(ctx context.Context, id int64) (*domain.Bundle, error) {
	return scanBundle(t.q.QueryRowContext(ctx, bundleSelect+`WHERE b.id = $1 FOR UPDATE OF b`, id))
}

func (t *pgTx) LockBundlesContaining(ctx context.Context, productID int64) ([]domain.Bundle, error) {
	rows, err := t.q.QueryContext(ctx, bundleSelect+`
		WHERE b.id IN (SELECT bundle_id FROM bundle_products WHERE product_id = $1)
		ORDER BY b.id
		FOR UPDATE OF b
	`, productID)
	if err != nil {
		return nil, err
	}
	return collectBundles(rows)
}

func (t *pgTx) MemberPrices(ctx context.Context, productIDs []int64) ([]decimal.Decimal, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}

	rows, err := t.q.QueryContext(ctx, `
		SELECT id, our_price FROM products WHERE id = ANY($1)
	`, pq.Array(productIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	byID := make(map[int64]decimal.Decimal, len(productIDs))
	for rows.Next() {
		var id int64
		var price decimal.Decimal
		if err := rows.Scan(&id, &price); err != nil {
			return nil, err
		}
		byID[id] = price
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	prices := make([]decimal.Decimal, 0, len(productIDs))
	for _, id := range productIDs {
		price, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("product %d: %w", id, domain.ErrNotFound)
		}
		prices = append(prices, price)
	}
	return prices, nil
}

func (t *pgTx) SaveBundle(ctx context.Context, b domain.Bundle) error {
	result, err := t.q.ExecContext(ctx, `
		UPDATE bundles
		SET bundle_price = $2, original_total = $3, savings_amount = $4,
			savings_percentage = $5, updated_at = $6
		WHERE id = $1
	`, b.ID, b.BundlePrice, b.OriginalTotal, b.SavingsAmount, b.SavingsPercentage, b.UpdatedAt)
	if err != nil {
		return err
	}
	if err := requireRow(result); err != nil {
		return err
	}

	if _, err := t.q.ExecContext(ctx, `DELETE FROM bundle_products WHERE bundle_id = $1`, b.ID); err != nil {
		return err
	}
	for i, productID := range b.ProductIDs {
		if _, err := t.q.ExecContext(ctx, `
			INSERT INTO bundle_products (bundle_id, product_id, position)
			VALUES ($1, $2, $3)
		`, b.ID, productID, i); err != nil {
			return err
		}
	}
	return nil
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
