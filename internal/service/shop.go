package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"hatshop/internal/domain"
	"hatshop/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Purchase is the outcome of a balance-funded direct buy.
type Purchase struct {
	OrderID     string
	ProductName string
	Price       float64
	NewBalance  float64
}

// ApprovalResult reports what approving a payment request did.
type ApprovalResult struct {
	Request        *domain.PaymentRequest
	OrderID        string  // order moved to processing, when the request referenced one
	CreditedAmount float64 // balance credited for plain top-ups
}

// Stats backs the dashboard landing page.
type Stats struct {
	Users           int     `json:"users"`
	Products        int     `json:"products"`
	Orders          int     `json:"orders"`
	PendingRequests int     `json:"pending_requests"`
	Revenue         float64 `json:"revenue"`
}

// ShopService owns the catalog/order operations whose multi-row writes must
// land together: the direct buy and the payment request verdicts.
type ShopService struct {
	db       *sql.DB
	logger   *zap.Logger
	payments *repository.PaymentRepository
}

func NewShopService(db *sql.DB, logger *zap.Logger, payments *repository.PaymentRepository) *ShopService {
	return &ShopService{db: db, logger: logger, payments: payments}
}

// DirectBuy purchases one unit of the product from the user's balance:
// a paid order, its line, the stock decrement and the balance decrement
// commit as one transaction or not at all.
func (s *ShopService) DirectBuy(ctx context.Context, userID, productID string) (*Purchase, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var (
		name  string
		price float64
		stock int
	)
	err = tx.QueryRowContext(ctx, `SELECT name, price, stock FROM products WHERE id = ? AND active = 1`, productID).
		Scan(&name, &price, &stock)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductUnavailable
	}
	if err != nil {
		return nil, err
	}
	if stock <= 0 {
		return nil, ErrOutOfStock
	}

	var balance float64
	err = tx.QueryRowContext(ctx, `SELECT balance FROM users WHERE id = ?`, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if balance < price {
		return nil, ErrInsufficientBalance
	}

	orderID := uuid.New().String()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, status, total_amount)
		VALUES (?, ?, ?, ?)`,
		orderID, userID, domain.OrderPaid, price); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO order_items (id, order_id, product_id, quantity, price)
		VALUES (?, ?, ?, 1, ?)`,
		uuid.New().String(), orderID, productID, price); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE products SET stock = stock - 1 WHERE id = ?`, productID); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE users SET balance = balance - ? WHERE id = ?`, price, userID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &Purchase{
		OrderID:     orderID,
		ProductName: name,
		Price:       price,
		NewBalance:  balance - price,
	}, nil
}

var orderRefPattern = regexp.MustCompile(`(?i)Sipariş ID: ([a-f0-9-]+)`)

// ApproveRequest approves a pending payment request. A request referencing
// an order moves that order to processing; a plain top-up credits the
// user's balance by the request amount. Both writes share the request
// update's transaction.
func (s *ShopService) ApproveRequest(ctx context.Context, requestID, adminNote string) (*ApprovalResult, error) {
	req, err := s.payments.GetRequest(ctx, requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if req.Status != domain.PaymentPending {
		return nil, ErrWrongStage
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `
		UPDATE payment_requests SET status = ?, admin_notes = ? WHERE id = ?`,
		domain.PaymentApproved, nullIfEmpty(adminNote), requestID); err != nil {
		return nil, err
	}

	result := &ApprovalResult{Request: req}
	if m := orderRefPattern.FindStringSubmatch(req.PaymentDetails); m != nil {
		result.OrderID = m[1]
		res, err := tx.ExecContext(ctx, `
			UPDATE orders SET status = ? WHERE id = ?`, domain.OrderProcessing, result.OrderID)
		if err != nil {
			return nil, err
		}
		// referenced order may have been deleted since the request was filed
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, fmt.Errorf("order %s referenced by payment request: %w", result.OrderID, ErrNotFound)
		}
	} else {
		result.CreditedAmount = req.Amount
		if _, err := tx.ExecContext(ctx, `
			UPDATE users SET balance = balance + ? WHERE id = ?`, req.Amount, req.UserID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	req.Status = domain.PaymentApproved
	req.AdminNotes = adminNote
	return result, nil
}

// RejectRequest rejects a pending payment request with an optional note.
func (s *ShopService) RejectRequest(ctx context.Context, requestID, adminNote string) (*domain.PaymentRequest, error) {
	req, err := s.payments.GetRequest(ctx, requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if req.Status != domain.PaymentPending {
		return nil, ErrWrongStage
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE payment_requests SET status = ?, admin_notes = ? WHERE id = ?`,
		domain.PaymentRejected, nullIfEmpty(adminNote), requestID); err != nil {
		return nil, err
	}

	req.Status = domain.PaymentRejected
	req.AdminNotes = adminNote
	return req, nil
}

// ExpireStaleRequests rejects pending payment requests older than the cutoff.
// CURRENT_TIMESTAMP stores UTC, so the cutoff must be UTC too.
func (s *ShopService) ExpireStaleRequests(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := s.db.ExecContext(ctx, `
		UPDATE payment_requests
		SET status = ?, admin_notes = 'expired'
		WHERE status = ? AND created_at < ?`,
		domain.PaymentRejected, domain.PaymentPending, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if n > 0 {
		s.logger.Info("expired stale payment requests", zap.Int64("count", n))
	}
	return n, err
}

// CollectStats gathers the dashboard counters.
func (s *ShopService) CollectStats(ctx context.Context) (*Stats, error) {
	st := &Stats{}

	counts := []struct {
		query string
		dst   *int
	}{
		{`SELECT COUNT(1) FROM users`, &st.Users},
		{`SELECT COUNT(1) FROM products`, &st.Products},
		{`SELECT COUNT(1) FROM orders`, &st.Orders},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return nil, err
		}
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM payment_requests WHERE status = ?`, domain.PaymentPending).
		Scan(&st.PendingRequests); err != nil {
		return nil, err
	}

	if err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_amount), 0) FROM orders
		WHERE status IN (?, ?, ?, ?)`,
		domain.OrderPaid, domain.OrderProcessing, domain.OrderShipped, domain.OrderCompleted).
		Scan(&st.Revenue); err != nil {
		return nil, err
	}
	return st, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
