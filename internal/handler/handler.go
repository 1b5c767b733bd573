package handler

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"hatshop/config"
	"hatshop/internal/domain"
	"hatshop/internal/repository"
	"hatshop/internal/service"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Telegram caps bots at ~30 messages per second overall.
const sendRatePerSecond = 30

const (
	msgGenericError  = "Bir hata oluştu. Lütfen daha sonra tekrar deneyin."
	msgUnknown       = "Anlaşılamayan komut. Komutları görmek için /yardim yazabilirsiniz."
	msgRestartFlow   = "⚠️ İşlem durumu bulunamadı veya zaman aşımına uğradı. Lütfen /urunler komutu ile yeniden başlayın."
	msgOutOfStock    = "Üzgünüz, bu ürün şu anda stokta bulunmamaktadır."
	msgNoProducts    = "Şu anda satışta ürün bulunmamaktadır."
	msgNoOrders      = "Henüz bir siparişiniz bulunmamaktadır."
	msgNoPayment     = "Şu anda ödeme kabul edilmemektedir. Lütfen daha sonra tekrar deneyin."
	msgFlowCancelled = "❌ İşlem iptal edildi."
)

type Handler struct {
	logger  *zap.Logger
	cfg     *config.Config
	ctx     context.Context
	bot     *bot.Bot
	db      *sql.DB
	limiter *rate.Limiter

	userRepo     *repository.UserRepository
	productRepo  *repository.ProductRepository
	orderRepo    *repository.OrderRepository
	paymentRepo  *repository.PaymentRepository
	shippingRepo *repository.ShippingRepository

	checkout *service.CheckoutService
	shop     *service.ShopService
}

func NewHandler(logger *zap.Logger, cfg *config.Config, ctx context.Context, db *sql.DB, sessions service.SessionStore) *Handler {
	productRepo := repository.NewProductRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	return &Handler{
		logger:       logger,
		cfg:          cfg,
		ctx:          ctx,
		db:           db,
		limiter:      rate.NewLimiter(rate.Limit(sendRatePerSecond), sendRatePerSecond),
		userRepo:     repository.NewUserRepository(db),
		productRepo:  productRepo,
		orderRepo:    repository.NewOrderRepository(db),
		paymentRepo:  paymentRepo,
		shippingRepo: repository.NewShippingRepository(db),
		checkout:     service.NewCheckoutService(db, logger, sessions, productRepo, paymentRepo),
		shop:         service.NewShopService(db, logger, paymentRepo),
	}
}

func (h *Handler) SetBot(b *bot.Bot) { h.bot = b }

// send is the single outbound chokepoint: HTML parse mode, rate limited,
// errors logged and swallowed.
func (h *Handler) send(ctx context.Context, b *bot.Bot, chatID int64, text string, kb models.ReplyMarkup) {
	if err := h.limiter.Wait(ctx); err != nil {
		return
	}
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ParseMode:   models.ParseModeHTML,
		ReplyMarkup: kb,
	})
	if err != nil {
		h.logger.Error("send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// ensureUser upserts the sender's profile before any dispatch. A failed
// upsert aborts handling with the generic apology.
func (h *Handler) ensureUser(ctx context.Context, b *bot.Bot, chatID int64, from *models.User) (*domain.User, bool) {
	var username, firstName, lastName string
	if from != nil {
		username = from.Username
		firstName = from.FirstName
		lastName = from.LastName
	}

	user, err := h.userRepo.Upsert(ctx, chatID, username, firstName, lastName)
	if err != nil {
		h.logger.Error("upsert user", zap.Int64("chat_id", chatID), zap.Error(err))
		h.send(ctx, b, chatID, msgGenericError, nil)
		return nil, false
	}
	return user, true
}

func (h *Handler) notifyAdmin(text string, kb models.ReplyMarkup) {
	if h.bot == nil || h.cfg.AdminID == 0 {
		return
	}
	go func() {
		_, err := h.bot.SendMessage(h.ctx, &bot.SendMessageParams{
			ChatID:      h.cfg.AdminID,
			Text:        text,
			ParseMode:   models.ParseModeHTML,
			ReplyMarkup: kb,
		})
		if err != nil {
			h.logger.Error("notify admin", zap.Error(err))
		}
	}()
}

// ================= commands =================

func (h *Handler) StartHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	if _, ok := h.ensureUser(ctx, b, chatID, update.Message.From); !ok {
		return
	}

	name := "Değerli Müşterimiz"
	if update.Message.From != nil && update.Message.From.FirstName != "" {
		name = update.Message.From.FirstName
	}

	text := fmt.Sprintf("Merhaba %s! 👋\n\n"+
		"Hat satış sistemimize hoş geldiniz. Aşağıdaki komutları kullanarak işlem yapabilirsiniz:\n\n"+
		"/urunler - Mevcut hat ürünlerini görüntüle\n"+
		"/bakiye - Bakiyeni görüntüle\n"+
		"/bakiyeekle - Bakiye yükle\n"+
		"/siparislerim - Siparişlerini görüntüle\n"+
		"/yardim - Yardım menüsü", name)
	h.send(ctx, b, chatID, text, nil)
}

func (h *Handler) ProductsHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	if _, ok := h.ensureUser(ctx, b, chatID, update.Message.From); !ok {
		return
	}

	products, err := h.productRepo.ListActive(ctx)
	if err != nil {
		h.logger.Error("list products", zap.Error(err))
		h.send(ctx, b, chatID, "Ürünler yüklenirken bir hata oluştu. Lütfen daha sonra tekrar deneyin.", nil)
		return
	}
	if len(products) == 0 {
		h.send(ctx, b, chatID, msgNoProducts, nil)
		return
	}

	var sb strings.Builder
	sb.WriteString("📱 <b>Mevcut Hat Ürünleri</b>\n\n")
	rows := make([][]models.InlineKeyboardButton, 0, len(products))
	for _, p := range products {
		fmt.Fprintf(&sb, "<b>%s</b>\n", p.Name)
		fmt.Fprintf(&sb, "Fiyat: ₺%.2f\n", p.Price)
		if p.Description != "" {
			fmt.Fprintf(&sb, "Açıklama: %s\n", p.Description)
		}
		fmt.Fprintf(&sb, "Stok: %d adet\n", p.Stock)
		fmt.Fprintf(&sb, "\nBakiye ile hemen almak için: /satin_%s\n\n", p.ID)
		sb.WriteString("------------------------\n\n")

		rows = append(rows, []models.InlineKeyboardButton{{
			Text:         fmt.Sprintf("🛒 %s — ₺%.2f", p.Name, p.Price),
			CallbackData: "buy:" + p.ID,
		}})
	}

	kb := &models.InlineKeyboardMarkup{InlineKeyboard: rows}
	h.send(ctx, b, chatID, sb.String(), kb)
}

func (h *Handler) BalanceHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	user, ok := h.ensureUser(ctx, b, chatID, update.Message.From)
	if !ok {
		return
	}

	text := fmt.Sprintf("💰 <b>Mevcut Bakiyeniz</b>\n\n₺%.2f\n\nBakiye yüklemek için: /bakiyeekle", user.Balance)
	h.send(ctx, b, chatID, text, nil)
}

func (h *Handler) AddBalanceHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	if _, ok := h.ensureUser(ctx, b, chatID, update.Message.From); !ok {
		return
	}

	methods, err := h.checkout.BeginTopup(ctx, chatID)
	if err != nil {
		if err == service.ErrNoPaymentMethods {
			h.send(ctx, b, chatID, msgNoPayment, nil)
			return
		}
		h.logger.Error("begin topup", zap.Int64("chat_id", chatID), zap.Error(err))
		h.send(ctx, b, chatID, "Ödeme bilgileri yüklenirken bir hata oluştu. Lütfen daha sonra tekrar deneyin.", nil)
		return
	}

	h.send(ctx, b, chatID, formatTopupInstructions(methods), nil)
}

func (h *Handler) OrdersHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	user, ok := h.ensureUser(ctx, b, chatID, update.Message.From)
	if !ok {
		return
	}

	orders, err := h.orderRepo.ListByUser(ctx, user.ID)
	if err != nil {
		h.logger.Error("list orders", zap.Error(err))
		h.send(ctx, b, chatID, "Siparişleriniz sorgulanırken bir hata oluştu. Lütfen daha sonra tekrar deneyin.", nil)
		return
	}
	if len(orders) == 0 {
		h.send(ctx, b, chatID, msgNoOrders, nil)
		return
	}

	var sb strings.Builder
	sb.WriteString("📦 <b>Siparişleriniz</b>\n\n")
	for _, o := range orders {
		fmt.Fprintf(&sb, "<b>Sipariş #%s</b>\n", shortID(o.ID))
		fmt.Fprintf(&sb, "Tarih: %s\n", o.CreatedAt.Format("02.01.2006"))
		fmt.Fprintf(&sb, "Tutar: ₺%.2f\n", o.TotalAmount)
		fmt.Fprintf(&sb, "Durum: %s\n", orderStatusText(o.Status))
		if o.TrackingNumber != "" {
			fmt.Fprintf(&sb, "Kargo Takip No: %s\n", o.TrackingNumber)
		}
		fmt.Fprintf(&sb, "\nDetaylar için: /siparis_%s\n\n", o.ID)
		sb.WriteString("------------------------\n\n")
	}
	h.send(ctx, b, chatID, sb.String(), nil)
}

func (h *Handler) OrderDetailHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	user, ok := h.ensureUser(ctx, b, chatID, update.Message.From)
	if !ok {
		return
	}

	orderID := strings.TrimPrefix(update.Message.Text, "/siparis_")
	order, err := h.orderRepo.GetWithItems(ctx, orderID, user.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			h.send(ctx, b, chatID, "Sipariş bulunamadı. Siparişlerinizi görmek için: /siparislerim", nil)
			return
		}
		h.logger.Error("get order", zap.String("order_id", orderID), zap.Error(err))
		h.send(ctx, b, chatID, "Sipariş detayları sorgulanırken bir hata oluştu. Lütfen daha sonra tekrar deneyin.", nil)
		return
	}

	updates, err := h.shippingRepo.ListForOrder(ctx, orderID)
	if err != nil {
		h.logger.Error("list shipping updates", zap.String("order_id", orderID), zap.Error(err))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📦 <b>Sipariş Detayı #%s</b>\n\n", shortID(order.ID))
	fmt.Fprintf(&sb, "Tarih: %s\n", order.CreatedAt.Format("02.01.2006"))
	fmt.Fprintf(&sb, "Durum: %s\n", orderStatusText(order.Status))
	fmt.Fprintf(&sb, "Toplam Tutar: ₺%.2f\n\n", order.TotalAmount)
	if order.ShippingAddress != "" {
		fmt.Fprintf(&sb, "<b>Teslimat Adresi:</b>\n%s\n\n", order.ShippingAddress)
	}
	if order.TrackingNumber != "" {
		fmt.Fprintf(&sb, "<b>Kargo Takip No:</b> %s\n\n", order.TrackingNumber)
	}
	sb.WriteString("<b>Ürünler:</b>\n")
	for _, it := range order.Items {
		fmt.Fprintf(&sb, "- %s x %d: ₺%.2f\n", it.ProductName, it.Quantity, it.Price)
	}
	if len(updates) > 0 {
		sb.WriteString("\n<b>Kargo Durumu:</b>\n")
		for _, u := range updates {
			fmt.Fprintf(&sb, "%s - %s", u.CreatedAt.Format("02.01.2006 15:04"), u.Status)
			if u.Description != "" {
				fmt.Fprintf(&sb, ": %s", u.Description)
			}
			sb.WriteString("\n")
		}
	}
	h.send(ctx, b, chatID, sb.String(), nil)
}

// BuyHandler is the balance-funded direct buy (/satin_<id>).
func (h *Handler) BuyHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	user, ok := h.ensureUser(ctx, b, chatID, update.Message.From)
	if !ok {
		return
	}

	productID := strings.TrimPrefix(update.Message.Text, "/satin_")
	purchase, err := h.shop.DirectBuy(ctx, user.ID, productID)
	if err != nil {
		switch err {
		case service.ErrProductUnavailable, service.ErrNotFound:
			h.send(ctx, b, chatID, "Ürün bilgileri yüklenirken bir hata oluştu. Lütfen daha sonra tekrar deneyin.", nil)
		case service.ErrOutOfStock:
			h.send(ctx, b, chatID, msgOutOfStock, nil)
		case service.ErrInsufficientBalance:
			product, perr := h.productRepo.GetByID(ctx, productID)
			if perr != nil {
				h.send(ctx, b, chatID, msgGenericError, nil)
				return
			}
			h.send(ctx, b, chatID, fmt.Sprintf(
				"Yetersiz bakiye. Ürün fiyatı: ₺%.2f, Bakiyeniz: ₺%.2f\n\nBakiye yüklemek için: /bakiyeekle",
				product.Price, user.Balance), nil)
		default:
			h.logger.Error("direct buy", zap.String("product_id", productID), zap.Error(err))
			h.send(ctx, b, chatID, "Satın alma işlemi sırasında bir hata oluştu. Lütfen daha sonra tekrar deneyin.", nil)
		}
		return
	}

	text := fmt.Sprintf("✅ <b>Satın Alma Başarılı!</b>\n\n"+
		"<b>%s</b> ürününü başarıyla satın aldınız.\n\n"+
		"Sipariş No: #%s\nTutar: ₺%.2f\nYeni Bakiyeniz: ₺%.2f\n\n"+
		"Siparişiniz en kısa sürede işleme alınacaktır. Siparişlerinizi görmek için: /siparislerim",
		purchase.ProductName, shortID(purchase.OrderID), purchase.Price, purchase.NewBalance)
	h.send(ctx, b, chatID, text, nil)

	h.notifyAdmin(fmt.Sprintf("🛒 Yeni sipariş (bakiye)\n\n👤 Telegram ID: %d\nÜrün: %s\nTutar: ₺%.2f\nSipariş: #%s",
		chatID, purchase.ProductName, purchase.Price, shortID(purchase.OrderID)), nil)
}

func (h *Handler) HelpHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	if _, ok := h.ensureUser(ctx, b, chatID, update.Message.From); !ok {
		return
	}

	text := "📌 <b>Yardım Menüsü</b>\n\n" +
		"<b>Kullanılabilir Komutlar:</b>\n\n" +
		"/urunler - Mevcut hat ürünlerini görüntüle\n" +
		"/bakiye - Bakiyeni görüntüle\n" +
		"/bakiyeekle - Bakiye yükle\n" +
		"/siparislerim - Siparişlerini görüntüle\n" +
		"/yardim - Bu yardım menüsünü görüntüle\n\n" +
		"<b>Nasıl Çalışır?</b>\n\n" +
		"1. /bakiyeekle komutu ile bakiye yükleyin\n" +
		"2. /urunler komutu ile ürünleri görüntüleyin\n" +
		"3. İstediğiniz ürünü satın alın\n" +
		"4. /siparislerim komutu ile siparişlerinizi takip edin"
	h.send(ctx, b, chatID, text, nil)
}

// DefaultHandler receives everything the command table does not: free text
// feeding a checkout stage, or an unknown command.
func (h *Handler) DefaultHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	user, ok := h.ensureUser(ctx, b, chatID, update.Message.From)
	if !ok {
		return
	}

	state, err := h.checkout.Session(ctx, chatID)
	if err != nil {
		h.logger.Error("load session", zap.Int64("chat_id", chatID), zap.Error(err))
		h.send(ctx, b, chatID, msgGenericError, nil)
		return
	}

	if state == nil {
		h.send(ctx, b, chatID, msgUnknown, nil)
		return
	}

	switch state.Stage {
	case domain.StageWaitingForAddress:
		h.handleAddressInput(ctx, b, chatID, update.Message.Text)
	case domain.StageAwaitingTopup:
		h.handleTopupClaim(ctx, b, chatID, user, update.Message.Text)
	default:
		h.send(ctx, b, chatID, msgUnknown, nil)
	}
}

// ================= formatting =================

func formatTopupInstructions(methods []domain.PaymentSetting) string {
	var sb strings.Builder
	sb.WriteString("💳 <b>Bakiye Yükleme</b>\n\n")
	sb.WriteString("Bakiye yüklemek için aşağıdaki adımları takip edin:\n\n")
	sb.WriteString("1. Aşağıdaki ödeme yöntemlerinden birini seçin\n")
	sb.WriteString("2. Ödemeyi yapın ve açıklama kısmına Telegram kullanıcı adınızı yazın\n")
	sb.WriteString("3. Ödeme yaptıktan sonra bot üzerinden ödeme bilgilerinizi gönderin\n\n")
	sb.WriteString("<b>Ödeme Yöntemleri:</b>\n\n")

	var trx, iban []domain.PaymentSetting
	for _, m := range methods {
		if m.Type == "trx" {
			trx = append(trx, m)
		} else {
			iban = append(iban, m)
		}
	}

	if len(trx) > 0 {
		sb.WriteString("🔹 <b>TRX (Tron) ile Ödeme</b>\n")
		for _, m := range trx {
			fmt.Fprintf(&sb, "Adres: <code>%s</code>\n\n", m.Account)
		}
	}
	if len(iban) > 0 {
		sb.WriteString("🔹 <b>Banka Havalesi ile Ödeme</b>\n")
		for _, m := range iban {
			fmt.Fprintf(&sb, "IBAN: <code>%s</code>\n", m.Account)
			if m.AccountName != "" {
				fmt.Fprintf(&sb, "Hesap Sahibi: %s\n", m.AccountName)
			}
			sb.WriteString("\n")
		}
	}

	sb.WriteString("Ödeme yaptıktan sonra, aşağıdaki bilgileri içeren bir mesaj gönderin:\n")
	sb.WriteString("- Ödeme tutarı\n")
	sb.WriteString("- Ödeme yöntemi (TRX veya IBAN)\n")
	sb.WriteString("- İşlem ID'si veya dekont bilgisi\n\n")
	sb.WriteString("Örnek: \"100 TL ödeme yaptım, TRX ile, işlem ID: ABC123\"")
	return sb.String()
}

func orderStatusText(status string) string {
	switch status {
	case domain.OrderPending:
		return "Beklemede"
	case domain.OrderProcessing:
		return "Hazırlanıyor"
	case domain.OrderShipped:
		return "Kargoya Verildi"
	case domain.OrderDelivered:
		return "Teslim Edildi"
	case domain.OrderCompleted:
		return "Tamamlandı"
	case domain.OrderCancelled:
		return "İptal Edildi"
	case domain.OrderRefunded:
		return "İade Edildi"
	case domain.OrderPaid:
		return "Ödendi"
	default:
		return "Bilinmeyen Durum"
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
