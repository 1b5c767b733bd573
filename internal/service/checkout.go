package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"hatshop/internal/domain"
	"hatshop/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrProductUnavailable  = errors.New("product is not available")
	ErrOutOfStock          = errors.New("product is out of stock")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrWrongStage          = errors.New("unexpected checkout stage")
	ErrNoPaymentMethods    = errors.New("no active payment methods")
	ErrNotFound            = errors.New("not found")
)

// SessionStore is the per-chat checkout session storage. Get returns
// (nil, nil) for an idle chat.
type SessionStore interface {
	Get(ctx context.Context, chatID int64) (*domain.CheckoutState, error)
	Save(ctx context.Context, chatID int64, state *domain.CheckoutState) error
	Delete(ctx context.Context, chatID int64) error
}

// CheckoutReceipt is what a confirmed checkout produced.
type CheckoutReceipt struct {
	OrderID          string
	PaymentRequestID string
	ProductName      string
	Amount           float64
	Address          string
	PaymentMethod    string
}

// CheckoutService drives the conversational checkout:
//
//	idle → waiting_for_address → selecting_payment → confirming_payment → idle
//
// plus the awaiting_topup detour for manual balance top-ups. Transitions for
// one chat are serialized through a per-chat mutex, and every multi-row write
// happens in a single transaction.
type CheckoutService struct {
	db       *sql.DB
	logger   *zap.Logger
	sessions SessionStore
	products *repository.ProductRepository
	payments *repository.PaymentRepository

	locks sync.Map // chat id -> *sync.Mutex
}

func NewCheckoutService(db *sql.DB, logger *zap.Logger, sessions SessionStore, products *repository.ProductRepository, payments *repository.PaymentRepository) *CheckoutService {
	return &CheckoutService{
		db:       db,
		logger:   logger,
		sessions: sessions,
		products: products,
		payments: payments,
	}
}

func (s *CheckoutService) lockChat(chatID int64) func() {
	v, _ := s.locks.LoadOrStore(chatID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Session returns the chat's current session, nil when idle.
func (s *CheckoutService) Session(ctx context.Context, chatID int64) (*domain.CheckoutState, error) {
	return s.sessions.Get(ctx, chatID)
}

// Begin starts a checkout for the product, seeding the session payload.
// The product must be active with stock on hand.
func (s *CheckoutService) Begin(ctx context.Context, chatID int64, productID string) (*domain.CheckoutState, error) {
	unlock := s.lockChat(chatID)
	defer unlock()

	product, err := s.products.GetByID(ctx, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !product.Active {
		return nil, ErrProductUnavailable
	}
	if product.Stock <= 0 {
		return nil, ErrOutOfStock
	}

	state := &domain.CheckoutState{
		Stage:       domain.StageWaitingForAddress,
		ProductID:   product.ID,
		ProductName: product.Name,
		Price:       product.Price,
	}
	if err := s.sessions.Save(ctx, chatID, state); err != nil {
		return nil, err
	}
	return state, nil
}

// SetAddress records the shipping address and presents the active payment
// methods. The text is taken verbatim, addresses are not validated.
func (s *CheckoutService) SetAddress(ctx context.Context, chatID int64, address string) (*domain.CheckoutState, []domain.PaymentSetting, error) {
	unlock := s.lockChat(chatID)
	defer unlock()

	state, err := s.sessions.Get(ctx, chatID)
	if err != nil {
		return nil, nil, err
	}
	if state == nil || state.Stage != domain.StageWaitingForAddress {
		return nil, nil, ErrWrongStage
	}

	methods, err := s.payments.ListActiveSettings(ctx)
	if err != nil {
		return nil, nil, err
	}
	if len(methods) == 0 {
		return nil, nil, ErrNoPaymentMethods
	}

	state.Address = address
	state.Stage = domain.StageSelectingPayment
	if err := s.sessions.Save(ctx, chatID, state); err != nil {
		return nil, nil, err
	}
	return state, methods, nil
}

// ChoosePayment records the selected payment setting and moves the chat to
// the confirmation stage.
func (s *CheckoutService) ChoosePayment(ctx context.Context, chatID int64, settingID string) (*domain.CheckoutState, *domain.PaymentSetting, error) {
	unlock := s.lockChat(chatID)
	defer unlock()

	state, err := s.sessions.Get(ctx, chatID)
	if err != nil {
		return nil, nil, err
	}
	if state == nil || state.Stage != domain.StageSelectingPayment {
		return nil, nil, ErrWrongStage
	}

	setting, err := s.payments.GetSetting(ctx, settingID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	state.PaymentMethod = setting.Type
	state.Stage = domain.StageConfirmingPayment
	if err := s.sessions.Save(ctx, chatID, state); err != nil {
		return nil, nil, err
	}
	return state, setting, nil
}

// Confirm turns the session into an Order (pending), its single line and a
// pending PaymentRequest referencing the order — one transaction, stock
// re-checked and reserved inside it. The session is cleared on success.
func (s *CheckoutService) Confirm(ctx context.Context, chatID int64, userID string) (*CheckoutReceipt, error) {
	unlock := s.lockChat(chatID)
	defer unlock()

	state, err := s.sessions.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if state == nil || state.Stage != domain.StageConfirmingPayment {
		return nil, ErrWrongStage
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var stock int
	err = tx.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = ? AND active = 1`, state.ProductID).Scan(&stock)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductUnavailable
	}
	if err != nil {
		return nil, err
	}
	if stock <= 0 {
		return nil, ErrOutOfStock
	}

	orderID := uuid.New().String()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, status, total_amount, shipping_address)
		VALUES (?, ?, ?, ?, ?)`,
		orderID, userID, domain.OrderPending, state.Price, state.Address); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO order_items (id, order_id, product_id, quantity, price)
		VALUES (?, ?, ?, 1, ?)`,
		uuid.New().String(), orderID, state.ProductID, state.Price); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE products SET stock = stock - 1 WHERE id = ?`, state.ProductID); err != nil {
		return nil, err
	}

	requestID := uuid.New().String()
	details := fmt.Sprintf("Sipariş ID: %s, Ürün: %s", orderID, state.ProductName)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO payment_requests (id, user_id, amount, payment_method, payment_details, status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		requestID, userID, state.Price, state.PaymentMethod, details, domain.PaymentPending); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if err := s.sessions.Delete(ctx, chatID); err != nil {
		s.logger.Error("delete checkout session", zap.Int64("chat_id", chatID), zap.Error(err))
	}

	return &CheckoutReceipt{
		OrderID:          orderID,
		PaymentRequestID: requestID,
		ProductName:      state.ProductName,
		Amount:           state.Price,
		Address:          state.Address,
		PaymentMethod:    state.PaymentMethod,
	}, nil
}

// Cancel drops the chat's session, whatever stage it is in.
func (s *CheckoutService) Cancel(ctx context.Context, chatID int64) error {
	unlock := s.lockChat(chatID)
	defer unlock()
	return s.sessions.Delete(ctx, chatID)
}

// BeginTopup puts the chat into the awaiting_topup stage after listing the
// active payment accounts.
func (s *CheckoutService) BeginTopup(ctx context.Context, chatID int64) ([]domain.PaymentSetting, error) {
	unlock := s.lockChat(chatID)
	defer unlock()

	methods, err := s.payments.ListActiveSettings(ctx)
	if err != nil {
		return nil, err
	}
	if len(methods) == 0 {
		return nil, ErrNoPaymentMethods
	}

	state := &domain.CheckoutState{Stage: domain.StageAwaitingTopup}
	if err := s.sessions.Save(ctx, chatID, state); err != nil {
		return nil, err
	}
	return methods, nil
}

var amountPattern = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

// SubmitTopup records the user's manual payment claim as a pending
// PaymentRequest. The amount is parsed from the first number in the text
// when present; the full text is kept as the details.
func (s *CheckoutService) SubmitTopup(ctx context.Context, chatID int64, userID, text string) (*domain.PaymentRequest, error) {
	unlock := s.lockChat(chatID)
	defer unlock()

	state, err := s.sessions.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if state == nil || state.Stage != domain.StageAwaitingTopup {
		return nil, ErrWrongStage
	}

	var amount float64
	if m := amountPattern.FindString(text); m != "" {
		amount, _ = strconv.ParseFloat(strings.ReplaceAll(m, ",", "."), 64)
	}

	method := "iban"
	if strings.Contains(strings.ToLower(text), "trx") {
		method = "trx"
	}

	req := &domain.PaymentRequest{
		UserID:         userID,
		Amount:         amount,
		PaymentMethod:  method,
		PaymentDetails: text,
		Status:         domain.PaymentPending,
	}
	if err := s.payments.CreateRequest(ctx, req); err != nil {
		return nil, err
	}

	if err := s.sessions.Delete(ctx, chatID); err != nil {
		s.logger.Error("delete topup session", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	return req, nil
}
