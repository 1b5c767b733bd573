package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"hatshop/config"
	"hatshop/internal/domain"
	"hatshop/traits/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testAdminID int64 = 424242

type fakeSessions struct {
	m map[int64]*domain.CheckoutState
}

func (s *fakeSessions) Get(_ context.Context, chatID int64) (*domain.CheckoutState, error) {
	return s.m[chatID], nil
}

func (s *fakeSessions) Save(_ context.Context, chatID int64, state *domain.CheckoutState) error {
	s.m[chatID] = state
	return nil
}

func (s *fakeSessions) Delete(_ context.Context, chatID int64) error {
	delete(s.m, chatID)
	return nil
}

func newTestHandler(t *testing.T) *Handler {
	h, _ := newTestHandlerWithSessions(t)
	return h
}

func newTestHandlerWithSessions(t *testing.T) (*Handler, *fakeSessions) {
	t.Helper()
	db, err := database.InitDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := &config.Config{Port: "8080", AdminID: testAdminID}
	sessions := &fakeSessions{m: map[int64]*domain.CheckoutState{}}
	return NewHandler(zap.NewNop(), cfg, context.Background(), db, sessions), sessions
}

func asAdmin(r *http.Request) *http.Request {
	r.Header.Set("X-Telegram-Id", fmt.Sprint(testAdminID))
	return r
}

func TestNotifyRejectsBadInput(t *testing.T) {
	h := newTestHandler(t)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"missing chat_id", `{"message":"merhaba"}`, http.StatusBadRequest},
		{"missing message", `{"chat_id":123}`, http.StatusBadRequest},
		{"blank message", `{"chat_id":123,"message":"  "}`, http.StatusBadRequest},
		{"broken json", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/notify", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			h.handleNotify(w, req)
			assert.Equal(t, tt.code, w.Code)
		})
	}

	t.Run("get not allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/notify", nil)
		w := httptest.NewRecorder()
		h.handleNotify(w, req)
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}

func TestAdminEndpointsRequireAdminHeader(t *testing.T) {
	h := newTestHandler(t)

	endpoints := []struct {
		name string
		fn   http.HandlerFunc
	}{
		{"stats", h.handleStats},
		{"products", h.handleAdminListProducts},
		{"orders", h.handleAdminListOrders},
		{"payment requests", h.handleAdminListPaymentRequests},
		{"users", h.handleAdminListUsers},
	}
	for _, e := range endpoints {
		t.Run(e.name+" no header", func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			w := httptest.NewRecorder()
			e.fn(w, req)
			assert.Equal(t, http.StatusForbidden, w.Code)
		})
		t.Run(e.name+" wrong id", func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("X-Telegram-Id", "1")
			w := httptest.NewRecorder()
			e.fn(w, req)
			assert.Equal(t, http.StatusForbidden, w.Code)
		})
	}
}

func TestAdminProductCRUD(t *testing.T) {
	h := newTestHandler(t)

	// add
	body := `{"name":"Esnek Hat 10GB","description":"10 GB","price":250,"stock":5,"active":true}`
	req := asAdmin(httptest.NewRequest(http.MethodPost, "/api/admin/products/add", strings.NewReader(body)))
	w := httptest.NewRecorder()
	h.handleAdminAddProduct(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var created domain.Product
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	require.NotEmpty(t, created.ID)

	// list
	req = asAdmin(httptest.NewRequest(http.MethodGet, "/api/admin/products", nil))
	w = httptest.NewRecorder()
	h.handleAdminListProducts(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var products []domain.Product
	require.NoError(t, json.NewDecoder(w.Body).Decode(&products))
	require.Len(t, products, 1)
	assert.Equal(t, "Esnek Hat 10GB", products[0].Name)

	// update
	body = fmt.Sprintf(`{"id":%q,"name":"Esnek Hat 20GB","price":400,"stock":3,"active":false}`, created.ID)
	req = asAdmin(httptest.NewRequest(http.MethodPost, "/api/admin/products/update", strings.NewReader(body)))
	w = httptest.NewRecorder()
	h.handleAdminUpdateProduct(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	got, err := h.productRepo.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Esnek Hat 20GB", got.Name)
	assert.Equal(t, 400.0, got.Price)
	assert.False(t, got.Active)

	// delete
	body = fmt.Sprintf(`{"id":%q}`, created.ID)
	req = asAdmin(httptest.NewRequest(http.MethodPost, "/api/admin/products/delete", strings.NewReader(body)))
	w = httptest.NewRecorder()
	h.handleAdminDeleteProduct(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req = asAdmin(httptest.NewRequest(http.MethodGet, "/api/admin/products", nil))
	w = httptest.NewRecorder()
	h.handleAdminListProducts(w, req)
	products = nil
	require.NoError(t, json.NewDecoder(w.Body).Decode(&products))
	assert.Empty(t, products)
}

func TestAdminAddProductValidation(t *testing.T) {
	h := newTestHandler(t)

	tests := []struct {
		name string
		body string
	}{
		{"empty name", `{"name":"","price":10,"stock":1}`},
		{"negative price", `{"name":"Hat","price":-1,"stock":1}`},
		{"negative stock", `{"name":"Hat","price":10,"stock":-1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := asAdmin(httptest.NewRequest(http.MethodPost, "/api/admin/products/add", strings.NewReader(tt.body)))
			w := httptest.NewRecorder()
			h.handleAdminAddProduct(w, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestAdminUpdateOrderValidation(t *testing.T) {
	h := newTestHandler(t)

	req := asAdmin(httptest.NewRequest(http.MethodPost, "/api/admin/orders/update", strings.NewReader(`{"id":"x"}`)))
	w := httptest.NewRecorder()
	h.handleAdminUpdateOrder(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req = asAdmin(httptest.NewRequest(http.MethodPost, "/api/admin/orders/update", strings.NewReader(`{"id":"missing","status":"shipped"}`)))
	w = httptest.NewRecorder()
	h.handleAdminUpdateOrder(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminPaymentSettingValidation(t *testing.T) {
	h := newTestHandler(t)

	req := asAdmin(httptest.NewRequest(http.MethodPost, "/api/admin/payment-settings/add",
		strings.NewReader(`{"type":"paypal","account":"x"}`)))
	w := httptest.NewRecorder()
	h.handleAdminAddPaymentSetting(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req = asAdmin(httptest.NewRequest(http.MethodPost, "/api/admin/payment-settings/add",
		strings.NewReader(`{"type":"iban","account":"TR12","account_name":"Shop","active":true}`)))
	w = httptest.NewRecorder()
	h.handleAdminAddPaymentSetting(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	settings, err := h.paymentRepo.ListActiveSettings(context.Background())
	require.NoError(t, err)
	require.Len(t, settings, 1)
	assert.Equal(t, "iban", settings[0].Type)
}

func TestAdminAdjustBalance(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()

	user, err := h.userRepo.Upsert(ctx, 555, "u", "U", "")
	require.NoError(t, err)

	body := fmt.Sprintf(`{"id":%q,"amount":75.5}`, user.ID)
	req := asAdmin(httptest.NewRequest(http.MethodPost, "/api/admin/users/balance", strings.NewReader(body)))
	w := httptest.NewRecorder()
	h.handleAdminAdjustBalance(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	got, err := h.userRepo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 75.5, got.Balance)

	// unknown user
	req = asAdmin(httptest.NewRequest(http.MethodPost, "/api/admin/users/balance",
		strings.NewReader(`{"id":"missing","amount":10}`)))
	w = httptest.NewRecorder()
	h.handleAdminAdjustBalance(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := newTestHandler(t)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight must not reach the handler")
	})
	req := httptest.NewRequest(http.MethodOptions, "/api/admin/stats", nil)
	w := httptest.NewRecorder()
	h.corsMiddleware(inner).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-Telegram-Id")
}
