package repository

import (
	"context"
	"database/sql"

	"hatshop/internal/domain"

	"github.com/google/uuid"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert registers the sender on first contact and refreshes the profile
// fields on every later one.
func (r *UserRepository) Upsert(ctx context.Context, telegramID int64, username, firstName, lastName string) (*domain.User, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, telegram_id, username, first_name, last_name)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(telegram_id) DO UPDATE SET
		  username   = excluded.username,
		  first_name = excluded.first_name,
		  last_name  = excluded.last_name
	`, uuid.New().String(), telegramID, username, firstName, lastName)
	if err != nil {
		return nil, err
	}
	return r.GetByTelegramID(ctx, telegramID)
}

func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, `
		SELECT id, telegram_id, COALESCE(username,''), COALESCE(first_name,''), COALESCE(last_name,''), COALESCE(phone,''), balance, created_at
		FROM users WHERE telegram_id = ?`, telegramID))
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, `
		SELECT id, telegram_id, COALESCE(username,''), COALESCE(first_name,''), COALESCE(last_name,''), COALESCE(phone,''), balance, created_at
		FROM users WHERE id = ?`, id))
}

func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, telegram_id, COALESCE(username,''), COALESCE(first_name,''), COALESCE(last_name,''), COALESCE(phone,''), balance, created_at
		FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.TelegramID, &u.Username, &u.FirstName, &u.LastName, &u.Phone, &u.Balance, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *UserRepository) AdjustBalance(ctx context.Context, id string, delta float64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET balance = balance + ? WHERE id = ?`, delta, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	return err
}

func (r *UserRepository) scanOne(row *sql.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.TelegramID, &u.Username, &u.FirstName, &u.LastName, &u.Phone, &u.Balance, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
