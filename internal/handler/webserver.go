package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"hatshop/internal/domain"
	"hatshop/internal/service"

	"github.com/go-telegram/bot"
	"go.uber.org/zap"
)

func (h *Handler) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Telegram-Id")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) StartWebServer(ctx context.Context, b *bot.Bot) {
	h.SetBot(b)

	mux := http.NewServeMux()

	// Telegram webhook when a public URL is configured
	if h.cfg.WebhookURL != "" {
		mux.HandleFunc("/webhook", b.WebhookHandler())
	}

	// notification endpoint
	mux.HandleFunc("/api/notify", h.handleNotify)

	// dashboard
	mux.HandleFunc("/api/admin/stats", h.handleStats)

	// ADMIN: products
	mux.HandleFunc("/api/admin/products", h.handleAdminListProducts)
	mux.HandleFunc("/api/admin/products/get", h.handleAdminGetProduct)
	mux.HandleFunc("/api/admin/products/add", h.handleAdminAddProduct)
	mux.HandleFunc("/api/admin/products/update", h.handleAdminUpdateProduct)
	mux.HandleFunc("/api/admin/products/delete", h.handleAdminDeleteProduct)

	// ADMIN: orders & shipping
	mux.HandleFunc("/api/admin/orders", h.handleAdminListOrders)
	mux.HandleFunc("/api/admin/orders/get", h.handleAdminGetOrder)
	mux.HandleFunc("/api/admin/orders/update", h.handleAdminUpdateOrder)
	mux.HandleFunc("/api/admin/shipping", h.handleAdminListShipping)
	mux.HandleFunc("/api/admin/shipping/add", h.handleAdminAddShipping)

	// ADMIN: payment requests & settings
	mux.HandleFunc("/api/admin/payment-requests", h.handleAdminListPaymentRequests)
	mux.HandleFunc("/api/admin/payment-requests/approve", h.handleAdminApprovePayment)
	mux.HandleFunc("/api/admin/payment-requests/reject", h.handleAdminRejectPayment)
	mux.HandleFunc("/api/admin/payment-settings", h.handleAdminListPaymentSettings)
	mux.HandleFunc("/api/admin/payment-settings/add", h.handleAdminAddPaymentSetting)
	mux.HandleFunc("/api/admin/payment-settings/update", h.handleAdminUpdatePaymentSetting)
	mux.HandleFunc("/api/admin/payment-settings/delete", h.handleAdminDeletePaymentSetting)

	// ADMIN: users
	mux.HandleFunc("/api/admin/users", h.handleAdminListUsers)
	mux.HandleFunc("/api/admin/users/balance", h.handleAdminAdjustBalance)
	mux.HandleFunc("/api/admin/users/delete", h.handleAdminDeleteUser)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		jsonOK(w, map[string]any{
			"status":    "healthy",
			"timestamp": time.Now().Format(time.RFC3339),
			"service":   "hatshop",
		})
	})

	handler := h.corsMiddleware(mux)

	addr := fmt.Sprintf(":%s", h.cfg.Port)
	h.logger.Info("Web server listening", zap.String("address", addr))

	server := &http.Server{Addr: addr, Handler: handler}

	go func() {
		<-ctx.Done()
		h.logger.Info("Shutting down web server...")
		_ = server.Shutdown(context.Background())
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		h.logger.Error("Web server error", zap.Error(err))
	}
}

// =============== helpers ===============

func (h *Handler) isAdminRequest(r *http.Request) bool {
	tgid := strings.TrimSpace(r.Header.Get("X-Telegram-Id"))
	if tgid == "" {
		return false
	}
	return tgid == fmt.Sprint(h.cfg.AdminID)
}

func jsonOK(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(v)
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": msg,
	})
}

// =============== notification endpoint ===============

type notifyIn struct {
	ChatID  int64  `json:"chat_id"`
	Message string `json:"message"`
}

func (h *Handler) handleNotify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var in notifyIn
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if in.ChatID == 0 || strings.TrimSpace(in.Message) == "" {
		jsonErr(w, http.StatusBadRequest, "chat_id ve message parametreleri gereklidir")
		return
	}
	if h.bot == nil {
		jsonErr(w, http.StatusServiceUnavailable, "bot not ready")
		return
	}

	h.send(r.Context(), h.bot, in.ChatID, in.Message, nil)
	jsonOK(w, map[string]string{"status": "ok"})
}

// =============== dashboard ===============

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	if !h.isAdminRequest(r) {
		jsonErr(w, http.StatusForbidden, "forbidden")
		return
	}
	stats, err := h.shop.CollectStats(r.Context())
	if err != nil {
		h.logger.Error("collect stats", zap.Error(err))
		jsonErr(w, http.StatusInternalServerError, "db error")
		return
	}
	jsonOK(w, stats)
}

// =============== products ===============

func (h *Handler) handleAdminListProducts(w http.ResponseWriter, r *http.Request) {
	if !h.isAdminRequest(r) {
		jsonErr(w, http.StatusForbidden, "forbidden")
		return
	}
	products, err := h.productRepo.ListAll(r.Context())
	if err != nil {
		h.logger.Error("admin list products", zap.Error(err))
		jsonErr(w, http.StatusInternalServerError, "db error")
		return
	}
	jsonOK(w, products)
}

func (h *Handler) handleAdminGetProduct(w http.ResponseWriter, r *http.Request) {
	if !h.isAdminRequest(r) {
		jsonErr(w, http.StatusForbidden, "forbidden")
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		jsonErr(w, http.StatusBadRequest, "id required")
		return
	}
	product, err := h.productRepo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			jsonErr(w, http.StatusNotFound, "not found")
			return
		}
		h.logger.Error("get product", zap.Error(err))
		jsonErr(w, http.StatusInternalServerError, "db error")
		return
	}
	jsonOK(w, product)
}

type productIn struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
	Active      bool    `json:"active"`
}

func (h *Handler) handleAdminAddProduct(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !h.isAdminRequest(r) {
		jsonErr(w, http.StatusForbidden, "forbidden")
		return
	}
	var in productIn
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" || in.Price < 0 || in.Stock < 0 {
		jsonErr(w, http.StatusBadRequest, "name required, price and stock must be >= 0")
		return
	}

	p := &domain.Product{
		Name:        in.Name,
		Description: strings.TrimSpace(in.Description),
		Price:       in.Price,
		Stock:       in.Stock,
		Active:      in.Active,
	}
	if err := h.productRepo.Create(r.Context(), p); err != nil {
		h.logger.Error("insert product", zap.Error(err))
		jsonErr(w, http.StatusInternalServerError, "db error")
		return
	}
	jsonOK(w, p)
}

func (h *Handler) handleAdminUpdateProduct(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !h.isAdminRequest(r) {
		jsonErr(w, http.StatusForbidden, "forbidden")
		return
	}
	var in productIn
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.ID == "" {
		jsonErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" || in.Price < 0 || in.Stock < 0 {
		jsonErr(w, http.StatusBadRequest, "name required, price and stock must be >= 0")
		return
	}

	p := &domain.Product{
		ID:          in.ID,
		Name:        in.Name,
		Description: strings.TrimSpace(in.Description),
		Price:       in.Price,
		Stock:       in.Stock,
		Active:      in.Active,
	}
	if err := h.productRepo.Update(r.Context(), p); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			jsonErr(w, http.StatusNotFound, "not found")
			return
		}
		h.logger.Error("update product", zap.Error(err))
		jsonErr(w, http.StatusInternalServerError, "db error")
		return
	}
	jsonOK(w, map[string]string{"status": "ok"})
}

type idIn struct {
	ID string `json:"id"`
}

func (h *Handler) handleAdminDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !h.isAdminRequest(r) {
		jsonErr(w, http.StatusForbidden, "forbidden")
		return
	}
	var in idIn
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.ID == "" {
		jsonErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.productRepo.Delete(r.Context(), in.ID); err != nil {
		h.logger.Error("delete product", zap.Error(err))
		jsonErr(w, http.StatusInternalServerError, "db error")
		return
	}
	jsonOK(w, map[string]string{"status": "ok"})
}

// =============== orders ===============

func (h *Handler) handleAdminListOrders(w http.ResponseWriter, r *http.Request) {
	if !h.isAdminRequest(r) {
		jsonErr(w, http.StatusForbidden, "forbidden")
		return
	}

	rows, err := h.db.QueryContext(r.Context(), `
		SELECT o.id, o.user_id, o.status, o.total_amount,
		       COALESCE(o.shipping_address,''), COALESCE(o.tracking_number,''), o.created_at,
		       u.telegram_id, COALESCE(u.username,''), COALESCE(u.first_name,'')
		FROM orders o
		LEFT JOIN users u ON u.id = o.user_id
		ORDER BY o.created_at DESC
	`)
	if err != nil {
		h.logger.Error("admin list orders", zap.Error(err))
		jsonErr(w, http.StatusInternalServerError, "db error")
		return
	}
	defer rows.Close()

	type orderRow struct {
		domain.Order
		TelegramID int64  `json:"telegram_id"`
		Username   string `json:"username"`
		FirstName  string `json:"first_name"`
	}
	var out []orderRow
	for rows.Next() {
		var o orderRow
		var tgID sql.NullInt64
		if err := rows.Scan(&o.ID, &o.UserID, &o.Status, &o.TotalAmount,
			&o.ShippingAddress, &o.TrackingNumber, &o.CreatedAt,
			&tgID, &o.Username, &o.FirstName); err != nil {
			h.logger.Error("scan order", zap.Error(err))
			continue
		}
		o.TelegramID = tgID.Int64
		out = append(out, o)
	}
	jsonOK(w, out)
}

func (h *Handler) handleAdminGetOrder(w http.ResponseWriter, r *http.Request) {
	if !h.isAdminRequest(r) {
		jsonErr(w, http.StatusForbidden, "forbidden")
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		jsonErr(w, http.StatusBadRequest, "id required")
		return
	}
	order, err := h.orderRepo.GetWithItems(r.Context(), id, "")
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			jsonErr(w, http.StatusNotFound, "not found")
			return
		}
		h.logger.Error("admin get order", zap.Error(err))
		jsonErr(w, http.StatusInternalServerError, "db error")
		return
	}
	jsonOK(w, order)
}

type orderUpdateIn struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	TrackingNumber string `json:"tracking_number"`
	Description    string `json:"description"`
}

func (h *Handler) handleAdminUpdateOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !h.isAdminRequest(r) {
		jsonErr(w, http.StatusForbidden, "forbidden")
		return
	}
	var in orderUpdateIn
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.ID == "" || in.Status == "" {
		jsonErr(w, http.StatusBadRequest, "id and status are required")
		return
	}

	if err := h.orderRepo.UpdateStatus(r.Context(), in.ID, in.Status, strings.TrimSpace(in.TrackingNumber)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			jsonErr(w, http.StatusNotFound, "not found")
			return
		}
		h.logger.Error("update order", zap.Error(err))
		jsonErr(w, http.StatusInternalServerError, "db error")
		return
	}

	update := &domain.ShippingUpdate{
		OrderID:     in.ID,
		Status:      orderStatusText(in.Status),
		Description: strings.TrimSpace(in.Description),
	}
	if err := h.shippingRepo.Add(r.Context(), update); err != nil {
		h.logger.Error("insert shipping update", zap.Error(err))
	}

	h.notifyOrderUser(r.Context(), in.ID, in.Status, in.TrackingNumber)
	jsonOK(w, map[string]string{"status": "ok"})
}

func (h *Handler) notifyOrderUser(ctx context.Context, orderID, status, trackingNumber string) {
	if h.bot == nil {
		return
	}
	order, err := h.orderRepo.GetWithItems(ctx, orderID, "")
	if err != nil {
		h.logger.Error("load order for notify", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	user, err := h.userRepo.GetByID(ctx, order.UserID)
	if err != nil {
		h.logger.Error("load user for notify", zap.String("user_id", order.UserID), zap.Error(err))
		return
	}

	text := fmt.Sprintf("📦 Sipariş #%s durumu güncellendi: <b>%s</b>", shortID(orderID), orderStatusText(status))
	if trackingNumber != "" {
		text += fmt.Sprintf("\nKargo Takip No: <code>%s</code>", trackingNumber)
	}
	h.send(ctx, h.bot, user.TelegramID, text, nil)
}

// =============== shipping ===============

func (h *Handler) handleAdminListShipping(w http.ResponseWriter, r *http.Request) {
	if !h.isAdminRequest(r) {
		jsonErr(w, http.StatusForbidden, "forbidden")
		return
	}
	orderID := strings.TrimSpace(r.URL.Query().Get("order_id"))
	if orderID == "" {
		jsonErr(w, http.StatusBadRequest, "order_id required")
		return
	}
	updates, err := h.shippingRepo.ListForOrder(r.Context(), orderID)
	if err != nil {
		h.logger.Error("list shipping updates", zap.Error(err))
		jsonErr(w, http.StatusInternalServerError, "db error")
		return
	}
	jsonOK(w, updates)
}

type shippingIn struct {
	OrderID     string `json:"order_id"`
	Status      string `json:"status"`
	Description string `json:"description"`
}

func (h *Handler) handleAdminAddShipping(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !h.isAdminRequest(r) {
		jsonErr(w, http.StatusForbidden, "forbidden")
		return
	}
	var in shippingIn
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.OrderID == "" || strings.TrimSpace(in.Status) == "" {
		jsonErr(w, http.StatusBadRequest, "order_id and status are required")
		return
	}

	update := &domain.ShippingUpdate{
		OrderID:     in.OrderID,
		Status:      strings.TrimSpace(in.Status),
		Description: strings.TrimSpace(in.Description),
	}
	if err := h.shippingRepo.Add(r.Context(), update); err != nil {
		h.logger.Error("insert shipping update", zap.Error(err))
		jsonErr(w, http.StatusInternalServerError, "db error")
		return
	}
	jsonOK(w, update)
}

// =============== payment requests ===============

func (h *Handler) handleAdminListPaymentRequests(w http.ResponseWriter, r *http.Request) {
	if !h.isAdminRequest(r) {
		jsonErr(w, http.StatusForbidden, "forbidden")
		return
	}

	rows, err := h.db.QueryContext(r.Context(), `
		SELECT p.id, p.user_id, p.amount, p.payment_method, p.payment_details,
		       p.status, COALESCE(p.admin_notes,''), p.created_at,
		       u.telegram_id, COALESCE(u.username,''), COALESCE(u.first_name,''), COALESCE(u.last_name,'')
		FROM payment_requests p
		LEFT JOIN users u ON u.id = p.user_id
		ORDER BY p.created_at DESC
	`)
	if err != nil {
		h.logger.Error("list payment requests", zap.Error(err))
		jsonErr(w, http.StatusInternalServerError, "db error")
		return
	}
	defer rows.Close()

	type requestRow struct {
		domain.PaymentRequest
		TelegramID int64  `json:"telegram_id"`
		Username   string `json:"username"`
		FirstName  string `json:"first_name"`
		LastName   string `json:"last_name"`
	}
	var out []requestRow
	for rows.Next() {
		var p requestRow
		var tgID sql.NullInt64
		if err := rows.Scan(&p.ID, &p.UserID, &p.Amount, &p.PaymentMethod, &p.PaymentDetails,
			&p.Status, &p.AdminNotes, &p.CreatedAt,
			&tgID, &p.Username, &p.FirstName, &p.LastName); err != nil {
			h.logger.Error("scan payment request", zap.Error(err))
			continue
		}
		p.TelegramID = tgID.Int64
		out = append(out, p)
	}
	jsonOK(w, out)
}

type verdictIn struct {
	ID   string `json:"id"`
	Note string `json:"note"`
}

func (h *Handler) handleAdminApprovePayment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !h.isAdminRequest(r) {
		jsonErr(w, http.StatusForbidden, "forbidden")
		return
	}
	var in verdictIn
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.ID == "" {
		jsonErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	result, err := h.shop.ApproveRequest(r.Context(), in.ID, strings.TrimSpace(in.Note))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			jsonErr(w, http.StatusNotFound, "not found")
		case errors.Is(err, service.ErrWrongStage):
			jsonErr(w, http.StatusConflict, "request already processed")
		default:
			h.logger.Error("approve payment request", zap.Error(err))
			jsonErr(w, http.StatusInternalServerError, "db error")
		}
		return
	}

	if h.bot != nil {
		h.notifyRequestUser(r.Context(), h.bot, result.Request.UserID, func(_ int64) string {
			if result.OrderID != "" {
				return fmt.Sprintf("✅ Ödemeniz onaylandı! Sipariş #%s hazırlanmaya başladı.", shortID(result.OrderID))
			}
			return fmt.Sprintf("✅ Ödemeniz onaylandı! Bakiyenize ₺%.2f yüklendi.", result.CreditedAmount)
		})
	}
	jsonOK(w, map[string]string{"status": "ok"})
}

func (h *Handler) handleAdminRejectPayment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !h.isAdminRequest(r) {
		jsonErr(w, http.StatusForbidden, "forbidden")
		return
	}
	var in verdictIn
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.ID == "" {
		jsonErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	req, err := h.shop.RejectRequest(r.Context(), in.ID, strings.TrimSpace(in.Note))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			jsonErr(w, http.StatusNotFound, "not found")
		case errors.Is(err, service.ErrWrongStage):
			jsonErr(w, http.StatusConflict, "request already processed")
		default:
			h.logger.Error("reject payment request", zap.Error(err))
			jsonErr(w, http.StatusInternalServerError, "db error")
		}
		return
	}

	if h.bot != nil {
		h.notifyRequestUser(r.Context(), h.bot, req.UserID, func(_ int64) string {
			return "❌ Ödeme bildiriminiz reddedildi. Bilgilerinizi kontrol edip tekrar deneyin."
		})
	}
	jsonOK(w, map[string]string{"status": "ok"})
}

// =============== payment settings ===============

func (h *Handler) handleAdminListPaymentSettings(w http.ResponseWriter, r *http.Request) {
	if !h.isAdminRequest(r) {
		jsonErr(w, http.StatusForbidden, "forbidden")
		return
	}
	settings, err := h.paymentRepo.ListSettings(r.Context())
	if err != nil {
		h.logger.Error("list payment settings", zap.Error(err))
		jsonErr(w, http.StatusInternalServerError, "db error")
		return
	}
	jsonOK(w, settings)
}

type paymentSettingIn struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Account     string `json:"account"`
	AccountName string `json:"account_name"`
	Active      bool   `json:"active"`
}

func (h *Handler) handleAdminAddPaymentSetting(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !h.isAdminRequest(r) {
		jsonErr(w, http.StatusForbidden, "forbidden")
		return
	}
	var in paymentSettingIn
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	in.Type = strings.TrimSpace(in.Type)
	in.Account = strings.TrimSpace(in.Account)
	if (in.Type != "trx" && in.Type != "iban") || in.Account == "" {
		jsonErr(w, http.StatusBadRequest, "type must be trx or iban, account required")
		return
	}

	s := &domain.PaymentSetting{
		Type:        in.Type,
		Account:     in.Account,
		AccountName: strings.TrimSpace(in.AccountName),
		Active:      in.Active,
	}
	if err := h.paymentRepo.CreateSetting(r.Context(), s); err != nil {
		h.logger.Error("insert payment setting", zap.Error(err))
		jsonErr(w, http.StatusInternalServerError, "db error")
		return
	}
	jsonOK(w, s)
}

func (h *Handler) handleAdminUpdatePaymentSetting(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !h.isAdminRequest(r) {
		jsonErr(w, http.StatusForbidden, "forbidden")
		return
	}
	var in paymentSettingIn
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.ID == "" {
		jsonErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	in.Type = strings.TrimSpace(in.Type)
	in.Account = strings.TrimSpace(in.Account)
	if (in.Type != "trx" && in.Type != "iban") || in.Account == "" {
		jsonErr(w, http.StatusBadRequest, "type must be trx or iban, account required")
		return
	}

	s := &domain.PaymentSetting{
		ID:          in.ID,
		Type:        in.Type,
		Account:     in.Account,
		AccountName: strings.TrimSpace(in.AccountName),
		Active:      in.Active,
	}
	if err := h.paymentRepo.UpdateSetting(r.Context(), s); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			jsonErr(w, http.StatusNotFound, "not found")
			return
		}
		h.logger.Error("update payment setting", zap.Error(err))
		jsonErr(w, http.StatusInternalServerError, "db error")
		return
	}
	jsonOK(w, map[string]string{"status": "ok"})
}

func (h *Handler) handleAdminDeletePaymentSetting(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !h.isAdminRequest(r) {
		jsonErr(w, http.StatusForbidden, "forbidden")
		return
	}
	var in idIn
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.ID == "" {
		jsonErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.paymentRepo.DeleteSetting(r.Context(), in.ID); err != nil {
		h.logger.Error("delete payment setting", zap.Error(err))
		jsonErr(w, http.StatusInternalServerError, "db error")
		return
	}
	jsonOK(w, map[string]string{"status": "ok"})
}

// =============== users ===============

func (h *Handler) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	if !h.isAdminRequest(r) {
		jsonErr(w, http.StatusForbidden, "forbidden")
		return
	}
	users, err := h.userRepo.List(r.Context())
	if err != nil {
		h.logger.Error("list users", zap.Error(err))
		jsonErr(w, http.StatusInternalServerError, "db error")
		return
	}
	jsonOK(w, users)
}

type balanceIn struct {
	ID     string  `json:"id"`
	Amount float64 `json:"amount"`
}

func (h *Handler) handleAdminAdjustBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !h.isAdminRequest(r) {
		jsonErr(w, http.StatusForbidden, "forbidden")
		return
	}
	var in balanceIn
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.ID == "" || in.Amount == 0 {
		jsonErr(w, http.StatusBadRequest, "id and non-zero amount are required")
		return
	}
	if err := h.userRepo.AdjustBalance(r.Context(), in.ID, in.Amount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			jsonErr(w, http.StatusNotFound, "not found")
			return
		}
		h.logger.Error("adjust balance", zap.Error(err))
		jsonErr(w, http.StatusInternalServerError, "db error")
		return
	}
	jsonOK(w, map[string]string{"status": "ok"})
}

func (h *Handler) handleAdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !h.isAdminRequest(r) {
		jsonErr(w, http.StatusForbidden, "forbidden")
		return
	}
	var in idIn
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.ID == "" {
		jsonErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.userRepo.Delete(r.Context(), in.ID); err != nil {
		h.logger.Error("delete user", zap.Error(err))
		jsonErr(w, http.StatusInternalServerError, "db error")
		return
	}
	jsonOK(w, map[string]string{"status": "ok"})
}
