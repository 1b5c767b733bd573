package repository

import (
	"context"
	"database/sql"

	"hatshop/internal/domain"
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// ListByUser returns the user's orders, newest first, without line items.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, status, total_amount, COALESCE(shipping_address,''), COALESCE(tracking_number,''), created_at
		FROM orders WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

// GetWithItems loads one order with its lines, product names resolved.
// userID scopes the lookup to the owner; pass "" to skip the ownership check.
func (r *OrderRepository) GetWithItems(ctx context.Context, id, userID string) (*domain.Order, error) {
	query := `
		SELECT id, user_id, status, total_amount, COALESCE(shipping_address,''), COALESCE(tracking_number,''), created_at
		FROM orders WHERE id = ?`
	args := []any{id}
	if userID != "" {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}

	var o domain.Order
	err := r.db.QueryRowContext(ctx, query, args...).
		Scan(&o.ID, &o.UserID, &o.Status, &o.TotalAmount, &o.ShippingAddress, &o.TrackingNumber, &o.CreatedAt)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT oi.id, oi.order_id, oi.product_id, COALESCE(p.name,''), oi.quantity, oi.price
		FROM order_items oi
		LEFT JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ?
		ORDER BY oi.created_at`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.Price); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, it)
	}
	return &o, rows.Err()
}

// UpdateStatus moves an order to a new status, optionally recording a
// tracking number at the same time.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id, status, trackingNumber string) error {
	var res sql.Result
	var err error
	if trackingNumber != "" {
		res, err = r.db.ExecContext(ctx,
			`UPDATE orders SET status = ?, tracking_number = ? WHERE id = ?`, status, trackingNumber, id)
	} else {
		res, err = r.db.ExecContext(ctx,
			`UPDATE orders SET status = ? WHERE id = ?`, status, id)
	}
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func scanOrders(rows *sql.Rows) ([]domain.Order, error) {
	var out []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.Status, &o.TotalAmount, &o.ShippingAddress, &o.TrackingNumber, &o.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
