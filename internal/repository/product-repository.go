package repository

import (
	"context"
	"database/sql"

	"hatshop/internal/domain"

	"github.com/google/uuid"
)

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// ListActive returns products on sale, cheapest first.
func (r *ProductRepository) ListActive(ctx context.Context) ([]domain.Product, error) {
	return r.list(ctx, `
		SELECT id, name, COALESCE(description,''), price, stock, active
		FROM products WHERE active = 1 ORDER BY price ASC`)
}

// ListAll returns every product, inactive ones included, for the back-office.
func (r *ProductRepository) ListAll(ctx context.Context) ([]domain.Product, error) {
	return r.list(ctx, `
		SELECT id, name, COALESCE(description,''), price, stock, active
		FROM products ORDER BY name`)
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(description,''), price, stock, active
		FROM products WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Active)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (id, name, description, price, stock, active)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.Price, p.Stock, boolToInt(p.Active))
	return err
}

func (r *ProductRepository) Update(ctx context.Context, p *domain.Product) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE products SET name = ?, description = ?, price = ?, stock = ?, active = ?
		WHERE id = ?`,
		p.Name, p.Description, p.Price, p.Stock, boolToInt(p.Active), p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	return err
}

func (r *ProductRepository) list(ctx context.Context, query string) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Active); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
