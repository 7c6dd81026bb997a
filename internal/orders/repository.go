package orders

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/faizu526/zerotohero/internal/domain"
)

// Repository persists orders and their item snapshots.
type Repository interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, f ListFilter) ([]domain.Order, error)
	// ApplyPayment moves the payment status to to when the current status
	// allows it. It returns nil when no row was changed.
	ApplyPayment(ctx context.Context, id, paymentID string, to domain.PaymentStatus, at time.Time) (*domain.Order, error)

	PlatformSales(ctx context.Context) ([]PlatformSales, error)
	PaidBetween(ctx context.Context, from, to time.Time) (PeriodSales, error)
}

// ListFilter narrows an order listing. Zero values match everything.
type ListFilter struct {
	CustomerID string
	Status     domain.OrderStatus
	Search     string
	Limit      int
}

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `
	id, order_number, customer_id, customer_email, guest_email, guest_name,
	subtotal, discount, total, commission_total, affiliate_commission,
	affiliate_id, affiliate_code, payment_method, payment_id, payment_status,
	order_status, created_at, updated_at, paid_at
`

func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`,
		order.ID, order.OrderNumber, order.CustomerID, order.CustomerEmail, order.GuestEmail, order.GuestName,
		order.Subtotal, order.Discount, order.Total, order.CommissionTotal, order.AffiliateCommission,
		order.AffiliateID, order.AffiliateCode, order.PaymentMethod, order.PaymentID, order.PaymentStatus,
		order.Status, order.CreatedAt, order.UpdatedAt, order.PaidAt,
	)
	if err != nil {
		return err
	}

	for i, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (
				id, order_id, position, product_id, product_name, platform_name,
				quantity, price, original_price, commission_rate, commission_amount
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, item.ID, order.ID, i, item.ProductID, item.ProductName, item.PlatformName,
			item.Quantity, item.Price, item.OriginalPrice, item.CommissionRate, item.CommissionAmount)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func scanOrder(row interface{ Scan(...any) error }) (*domain.Order, error) {
	var o domain.Order
	var paidAt sql.NullTime
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.CustomerID, &o.CustomerEmail, &o.GuestEmail, &o.GuestName,
		&o.Subtotal, &o.Discount, &o.Total, &o.CommissionTotal, &o.AffiliateCommission,
		&o.AffiliateID, &o.AffiliateCode, &o.PaymentMethod, &o.PaymentID, &o.PaymentStatus,
		&o.Status, &o.CreatedAt, &o.UpdatedAt, &paidAt,
	)
	if err != nil {
		return nil, err
	}
	if paidAt.Valid {
		t := paidAt.Time
		o.PaidAt = &t
	}
	o.Items = []domain.OrderItem{}
	return &o, nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if err := r.loadItems(ctx, map[string]*domain.Order{order.ID: order}, []string{order.ID}); err != nil {
		return nil, err
	}
	return order, nil
}

// List returns orders newest first with their items, loaded in one extra
// query for the whole page.
func (r *OrderRepository) List(ctx context.Context, f ListFilter) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
		WHERE ($1 = '' OR customer_id = $1)
		  AND ($2 = '' OR order_status = $2)
		  AND ($3 = '' OR order_number ILIKE '%' || $3 || '%')
		ORDER BY created_at DESC, id`
	args := []any{f.CustomerID, string(f.Status), f.Search}
	if f.Limit > 0 {
		query += ` LIMIT $4`
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orderMap[order.ID] = order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	if err := r.loadItems(ctx, orderMap, orderIDs); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}

func (r *OrderRepository) loadItems(ctx context.Context, orderMap map[string]*domain.Order, ids []string) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id, id, product_id, product_name, platform_name,
		       quantity, price, original_price, commission_rate, commission_amount
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position
	`, pq.Array(ids))
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var orderID string
		var item domain.OrderItem
		if err := rows.Scan(&orderID, &item.ID, &item.ProductID, &item.ProductName, &item.PlatformName,
			&item.Quantity, &item.Price, &item.OriginalPrice, &item.CommissionRate, &item.CommissionAmount); err != nil {
			return err
		}
		order := orderMap[orderID]
		order.Items = append(order.Items, item)
	}

	return rows.Err()
}

// ApplyPayment guards the update on the statuses that may move to to, so a
// duplicate or out-of-order webhook changes nothing.
func (r *OrderRepository) ApplyPayment(ctx context.Context, id, paymentID string, to domain.PaymentStatus, at time.Time) (*domain.Order, error) {
	from := domain.PaymentStatusesBefore(to)
	if len(from) == 0 {
		return nil, nil
	}
	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}

	var paidAt sql.NullTime
	if to == domain.PaymentPaid {
		paidAt = sql.NullTime{Time: at, Valid: true}
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET payment_status = $1,
		    order_status = $2,
		    payment_id = CASE WHEN $3 = '' THEN payment_id ELSE $3 END,
		    paid_at = COALESCE($4, paid_at),
		    updated_at = $5
		WHERE id = $6 AND payment_status = ANY($7)
	`, to, domain.OrderStatusFor(to), paymentID, paidAt, at, id, pq.Array(allowed))
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	if rowsAffected == 0 {
		return nil, nil
	}

	return r.GetByID(ctx, id)
}
