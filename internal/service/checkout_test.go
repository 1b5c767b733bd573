package service

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"hatshop/internal/domain"
	"hatshop/internal/repository"
	"hatshop/traits/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memStore keeps checkout sessions in a map, standing in for Redis.
type memStore struct {
	m map[int64]*domain.CheckoutState
}

func newMemStore() *memStore {
	return &memStore{m: make(map[int64]*domain.CheckoutState)}
}

func (s *memStore) Get(_ context.Context, chatID int64) (*domain.CheckoutState, error) {
	state, ok := s.m[chatID]
	if !ok {
		return nil, nil
	}
	cp := *state
	return &cp, nil
}

func (s *memStore) Save(_ context.Context, chatID int64, state *domain.CheckoutState) error {
	cp := *state
	s.m[chatID] = &cp
	return nil
}

func (s *memStore) Delete(_ context.Context, chatID int64) error {
	delete(s.m, chatID)
	return nil
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.InitDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedUser(t *testing.T, db *sql.DB, balance float64) *domain.User {
	t.Helper()
	users := repository.NewUserRepository(db)
	u, err := users.Upsert(context.Background(), 777001, "testuser", "Test", "User")
	require.NoError(t, err)
	if balance != 0 {
		require.NoError(t, users.AdjustBalance(context.Background(), u.ID, balance))
		u.Balance += balance
	}
	return u
}

func seedProduct(t *testing.T, db *sql.DB, name string, price float64, stock int, active bool) *domain.Product {
	t.Helper()
	p := &domain.Product{Name: name, Price: price, Stock: stock, Active: active}
	require.NoError(t, repository.NewProductRepository(db).Create(context.Background(), p))
	return p
}

func seedPaymentSetting(t *testing.T, db *sql.DB, typ, account string) *domain.PaymentSetting {
	t.Helper()
	s := &domain.PaymentSetting{Type: typ, Account: account, AccountName: "Shop", Active: true}
	require.NoError(t, repository.NewPaymentRepository(db).CreateSetting(context.Background(), s))
	return s
}

func newCheckout(db *sql.DB, sessions SessionStore) *CheckoutService {
	return NewCheckoutService(db, zap.NewNop(), sessions,
		repository.NewProductRepository(db), repository.NewPaymentRepository(db))
}

func TestCheckoutFullFlow(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := seedUser(t, db, 0)
	product := seedProduct(t, db, "Esnek Hat 10GB", 250, 3, true)
	setting := seedPaymentSetting(t, db, "iban", "TR12 0006 1000 0000 0000 0000 01")

	svc := newCheckout(db, newMemStore())
	chatID := int64(777001)

	state, err := svc.Begin(ctx, chatID, product.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageWaitingForAddress, state.Stage)
	assert.Equal(t, product.Name, state.ProductName)

	state, methods, err := svc.SetAddress(ctx, chatID, "İstiklal Cad. No:5, İstanbul")
	require.NoError(t, err)
	assert.Equal(t, domain.StageSelectingPayment, state.Stage)
	assert.Len(t, methods, 1)

	state, chosen, err := svc.ChoosePayment(ctx, chatID, setting.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageConfirmingPayment, state.Stage)
	assert.Equal(t, "iban", chosen.Type)

	receipt, err := svc.Confirm(ctx, chatID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 250.0, receipt.Amount)
	assert.Equal(t, "İstiklal Cad. No:5, İstanbul", receipt.Address)

	// session cleared
	state, err = svc.Session(ctx, chatID)
	require.NoError(t, err)
	assert.Nil(t, state)

	// pending order with one line, stock reserved
	order, err := repository.NewOrderRepository(db).GetWithItems(ctx, receipt.OrderID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPending, order.Status)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 1, order.Items[0].Quantity)

	got, err := repository.NewProductRepository(db).GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Stock)

	// payment request references the order
	req, err := repository.NewPaymentRepository(db).GetRequest(ctx, receipt.PaymentRequestID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPending, req.Status)
	assert.Contains(t, req.PaymentDetails, receipt.OrderID)
}

func TestCheckoutBeginRejectsUnavailable(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := newCheckout(db, newMemStore())

	inactive := seedProduct(t, db, "Kapalı Hat", 100, 5, false)
	_, err := svc.Begin(ctx, 1, inactive.ID)
	assert.ErrorIs(t, err, ErrProductUnavailable)

	empty := seedProduct(t, db, "Tükenen Hat", 100, 0, true)
	_, err = svc.Begin(ctx, 1, empty.ID)
	assert.ErrorIs(t, err, ErrOutOfStock)

	_, err = svc.Begin(ctx, 1, "no-such-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCheckoutAddressIsTakenVerbatim(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	product := seedProduct(t, db, "Hat", 100, 1, true)
	seedPaymentSetting(t, db, "trx", "TAbc123")

	svc := newCheckout(db, newMemStore())
	_, err := svc.Begin(ctx, 5, product.ID)
	require.NoError(t, err)

	// any non-empty text advances, even a single character
	state, _, err := svc.SetAddress(ctx, 5, "x")
	require.NoError(t, err)
	assert.Equal(t, "x", state.Address)
	assert.Equal(t, domain.StageSelectingPayment, state.Stage)
}

func TestCheckoutNoActivePaymentMethods(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	product := seedProduct(t, db, "Hat", 100, 1, true)

	svc := newCheckout(db, newMemStore())
	_, err := svc.Begin(ctx, 9, product.ID)
	require.NoError(t, err)

	_, _, err = svc.SetAddress(ctx, 9, "adres")
	assert.ErrorIs(t, err, ErrNoPaymentMethods)
}

func TestCheckoutConfirmOffStage(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := seedUser(t, db, 0)
	svc := newCheckout(db, newMemStore())

	// no session at all
	_, err := svc.Confirm(ctx, 42, user.ID)
	assert.ErrorIs(t, err, ErrWrongStage)

	// session exists but still waiting for the address
	product := seedProduct(t, db, "Hat", 100, 1, true)
	_, err = svc.Begin(ctx, 42, product.ID)
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, 42, user.ID)
	assert.ErrorIs(t, err, ErrWrongStage)

	// nothing was written
	var orders int
	require.NoError(t, db.QueryRow(`SELECT COUNT(1) FROM orders`).Scan(&orders))
	assert.Zero(t, orders)
}

func TestCheckoutConfirmRechecksStock(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := seedUser(t, db, 0)
	product := seedProduct(t, db, "Hat", 100, 1, true)
	setting := seedPaymentSetting(t, db, "iban", "TR00")

	svc := newCheckout(db, newMemStore())
	_, err := svc.Begin(ctx, 7, product.ID)
	require.NoError(t, err)
	_, _, err = svc.SetAddress(ctx, 7, "adres")
	require.NoError(t, err)
	_, _, err = svc.ChoosePayment(ctx, 7, setting.ID)
	require.NoError(t, err)

	// stock ran out while the user was deciding
	_, err = db.Exec(`UPDATE products SET stock = 0 WHERE id = ?`, product.ID)
	require.NoError(t, err)

	_, err = svc.Confirm(ctx, 7, user.ID)
	assert.ErrorIs(t, err, ErrOutOfStock)

	var orders int
	require.NoError(t, db.QueryRow(`SELECT COUNT(1) FROM orders`).Scan(&orders))
	assert.Zero(t, orders)
}

func TestCheckoutCancelClearsSession(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	product := seedProduct(t, db, "Hat", 100, 1, true)

	svc := newCheckout(db, newMemStore())
	_, err := svc.Begin(ctx, 3, product.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(ctx, 3))

	state, err := svc.Session(ctx, 3)
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestTopupFlow(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := seedUser(t, db, 0)
	seedPaymentSetting(t, db, "trx", "TAbc123")

	svc := newCheckout(db, newMemStore())

	methods, err := svc.BeginTopup(ctx, 11)
	require.NoError(t, err)
	assert.Len(t, methods, 1)

	req, err := svc.SubmitTopup(ctx, 11, user.ID, "TRX ile 150,50 gönderdim, tx: abc")
	require.NoError(t, err)
	assert.Equal(t, 150.5, req.Amount)
	assert.Equal(t, "trx", req.PaymentMethod)
	assert.Equal(t, domain.PaymentPending, req.Status)

	// session is consumed, a second claim needs /bakiyeekle again
	_, err = svc.SubmitTopup(ctx, 11, user.ID, "tekrar")
	assert.ErrorIs(t, err, ErrWrongStage)
}

func TestTopupAmountDefaultsToZero(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := seedUser(t, db, 0)
	seedPaymentSetting(t, db, "iban", "TR00")

	svc := newCheckout(db, newMemStore())
	_, err := svc.BeginTopup(ctx, 12)
	require.NoError(t, err)

	req, err := svc.SubmitTopup(ctx, 12, user.ID, "havale yaptım")
	require.NoError(t, err)
	assert.Zero(t, req.Amount)
	assert.Equal(t, "iban", req.PaymentMethod)
	assert.Equal(t, "havale yaptım", req.PaymentDetails)
}
