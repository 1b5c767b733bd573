package repository

import (
	"context"
	"database/sql"

	"hatshop/internal/domain"

	"github.com/google/uuid"
)

type ShippingRepository struct {
	db *sql.DB
}

func NewShippingRepository(db *sql.DB) *ShippingRepository {
	return &ShippingRepository{db: db}
}

func (r *ShippingRepository) Add(ctx context.Context, u *domain.ShippingUpdate) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO shipping_updates (id, order_id, status, description)
		VALUES (?, ?, ?, ?)`,
		u.ID, u.OrderID, u.Status, u.Description)
	return err
}

// ListForOrder returns the shipping trail oldest first, as shown in the
// order detail message.
func (r *ShippingRepository) ListForOrder(ctx context.Context, orderID string) ([]domain.ShippingUpdate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, status, COALESCE(description,''), created_at
		FROM shipping_updates WHERE order_id = ? ORDER BY created_at ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ShippingUpdate
	for rows.Next() {
		var u domain.ShippingUpdate
		if err := rows.Scan(&u.ID, &u.OrderID, &u.Status, &u.Description, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
