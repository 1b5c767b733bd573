package repository

import (
	"context"
	"database/sql"

	"hatshop/internal/domain"

	"github.com/google/uuid"
)

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// ----- payment settings (TRX / IBAN accounts) -----

func (r *PaymentRepository) ListActiveSettings(ctx context.Context) ([]domain.PaymentSetting, error) {
	return r.listSettings(ctx, `
		SELECT id, type, account, COALESCE(account_name,''), active
		FROM payment_settings WHERE active = 1 ORDER BY type, created_at`)
}

func (r *PaymentRepository) ListSettings(ctx context.Context) ([]domain.PaymentSetting, error) {
	return r.listSettings(ctx, `
		SELECT id, type, account, COALESCE(account_name,''), active
		FROM payment_settings ORDER BY type, created_at`)
}

func (r *PaymentRepository) GetSetting(ctx context.Context, id string) (*domain.PaymentSetting, error) {
	var s domain.PaymentSetting
	err := r.db.QueryRowContext(ctx, `
		SELECT id, type, account, COALESCE(account_name,''), active
		FROM payment_settings WHERE id = ?`, id).
		Scan(&s.ID, &s.Type, &s.Account, &s.AccountName, &s.Active)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PaymentRepository) CreateSetting(ctx context.Context, s *domain.PaymentSetting) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payment_settings (id, type, account, account_name, active)
		VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.Type, s.Account, s.AccountName, boolToInt(s.Active))
	return err
}

func (r *PaymentRepository) UpdateSetting(ctx context.Context, s *domain.PaymentSetting) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE payment_settings SET type = ?, account = ?, account_name = ?, active = ?
		WHERE id = ?`,
		s.Type, s.Account, s.AccountName, boolToInt(s.Active), s.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *PaymentRepository) DeleteSetting(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM payment_settings WHERE id = ?`, id)
	return err
}

// ----- payment requests -----

func (r *PaymentRepository) CreateRequest(ctx context.Context, req *domain.PaymentRequest) error {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.Status == "" {
		req.Status = domain.PaymentPending
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payment_requests (id, user_id, amount, payment_method, payment_details, status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		req.ID, req.UserID, req.Amount, req.PaymentMethod, req.PaymentDetails, req.Status)
	return err
}

func (r *PaymentRepository) GetRequest(ctx context.Context, id string) (*domain.PaymentRequest, error) {
	var p domain.PaymentRequest
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, amount, payment_method, payment_details, status, COALESCE(admin_notes,''), created_at
		FROM payment_requests WHERE id = ?`, id).
		Scan(&p.ID, &p.UserID, &p.Amount, &p.PaymentMethod, &p.PaymentDetails, &p.Status, &p.AdminNotes, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) listSettings(ctx context.Context, query string) ([]domain.PaymentSetting, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PaymentSetting
	for rows.Next() {
		var s domain.PaymentSetting
		if err := rows.Scan(&s.ID, &s.Type, &s.Account, &s.AccountName, &s.Active); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
