package handler

import (
	"context"
	"fmt"

	"hatshop/internal/domain"
	"hatshop/internal/service"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// Inline-keyboard checkout: buy → address → payment method → confirmation.

func (h *Handler) answerCallback(ctx context.Context, b *bot.Bot, callbackID string) {
	_, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
	})
	if err != nil {
		h.logger.Warn("answer callback query", zap.Error(err))
	}
}

// CheckoutStartHandler handles the buy:<product> button from the product
// listing and asks for the shipping address.
func (h *Handler) CheckoutStartHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	h.answerCallback(ctx, b, update.CallbackQuery.ID)

	act := ParseAction(update.CallbackQuery.Data)
	if act.Kind != ActionBuy || act.Arg == "" {
		return
	}

	chatID := update.CallbackQuery.From.ID
	if _, ok := h.ensureUser(ctx, b, chatID, &update.CallbackQuery.From); !ok {
		return
	}

	state, err := h.checkout.Begin(ctx, chatID, act.Arg)
	if err != nil {
		switch err {
		case service.ErrNotFound, service.ErrProductUnavailable:
			h.send(ctx, b, chatID, "Ürün bilgileri yüklenirken bir hata oluştu. Lütfen daha sonra tekrar deneyin.", nil)
		case service.ErrOutOfStock:
			h.send(ctx, b, chatID, msgOutOfStock, nil)
		default:
			h.logger.Error("begin checkout", zap.String("product_id", act.Arg), zap.Error(err))
			h.send(ctx, b, chatID, msgGenericError, nil)
		}
		return
	}

	text := fmt.Sprintf("🛒 <b>%s</b> (₺%.2f) için sipariş oluşturuluyor.\n\n"+
		"📍 Lütfen teslimat adresinizi tek mesaj olarak yazın.",
		state.ProductName, state.Price)
	h.send(ctx, b, chatID, text, nil)
}

// handleAddressInput consumes the next free-text message of a chat in
// waiting_for_address. The text is the address, whatever it says.
func (h *Handler) handleAddressInput(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	state, methods, err := h.checkout.SetAddress(ctx, chatID, text)
	if err != nil {
		switch err {
		case service.ErrWrongStage:
			h.send(ctx, b, chatID, msgRestartFlow, nil)
		case service.ErrNoPaymentMethods:
			h.send(ctx, b, chatID, msgNoPayment, nil)
			_ = h.checkout.Cancel(ctx, chatID)
		default:
			h.logger.Error("set address", zap.Int64("chat_id", chatID), zap.Error(err))
			h.send(ctx, b, chatID, msgGenericError, nil)
		}
		return
	}

	rows := make([][]models.InlineKeyboardButton, 0, len(methods))
	for _, m := range methods {
		rows = append(rows, []models.InlineKeyboardButton{{
			Text:         paymentMethodText(m),
			CallbackData: "paymethod:" + m.ID,
		}})
	}
	kb := &models.InlineKeyboardMarkup{InlineKeyboard: rows}

	msg := fmt.Sprintf("📍 Adres alındı:\n%s\n\n💳 Şimdi bir ödeme yöntemi seçin:", state.Address)
	h.send(ctx, b, chatID, msg, kb)
}

// PaymentMethodHandler handles paymethod:<setting> and shows the order
// summary with confirm/cancel buttons.
func (h *Handler) PaymentMethodHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	h.answerCallback(ctx, b, update.CallbackQuery.ID)

	act := ParseAction(update.CallbackQuery.Data)
	if act.Kind != ActionPayMethod || act.Arg == "" {
		return
	}

	chatID := update.CallbackQuery.From.ID
	if _, ok := h.ensureUser(ctx, b, chatID, &update.CallbackQuery.From); !ok {
		return
	}

	state, setting, err := h.checkout.ChoosePayment(ctx, chatID, act.Arg)
	if err != nil {
		switch err {
		case service.ErrWrongStage:
			h.send(ctx, b, chatID, msgRestartFlow, nil)
		case service.ErrNotFound:
			h.send(ctx, b, chatID, msgGenericError, nil)
		default:
			h.logger.Error("choose payment", zap.Int64("chat_id", chatID), zap.Error(err))
			h.send(ctx, b, chatID, msgGenericError, nil)
		}
		return
	}

	kb := &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{{
			{Text: "✅ Onayla", CallbackData: "payconfirm"},
			{Text: "❌ İptal", CallbackData: "paycancel"},
		}},
	}

	text := fmt.Sprintf("🧾 <b>Sipariş Özeti</b>\n\n"+
		"Ürün: %s\nTutar: ₺%.2f\nAdres: %s\nÖdeme: %s\n\n"+
		"Ödeme bilgisi:\n<code>%s</code>\n\n"+
		"Siparişi onaylıyor musunuz?",
		state.ProductName, state.Price, state.Address, paymentMethodText(*setting), setting.Account)
	h.send(ctx, b, chatID, text, kb)
}

// PaymentConfirmHandler handles payconfirm: order, line and payment request
// are created together, the session is cleared, admin gets verdict buttons.
func (h *Handler) PaymentConfirmHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	h.answerCallback(ctx, b, update.CallbackQuery.ID)

	chatID := update.CallbackQuery.From.ID
	user, ok := h.ensureUser(ctx, b, chatID, &update.CallbackQuery.From)
	if !ok {
		return
	}

	receipt, err := h.checkout.Confirm(ctx, chatID, user.ID)
	if err != nil {
		switch err {
		case service.ErrWrongStage:
			h.send(ctx, b, chatID, msgRestartFlow, nil)
		case service.ErrOutOfStock, service.ErrProductUnavailable:
			h.send(ctx, b, chatID, msgOutOfStock, nil)
			_ = h.checkout.Cancel(ctx, chatID)
		default:
			h.logger.Error("confirm checkout", zap.Int64("chat_id", chatID), zap.Error(err))
			h.send(ctx, b, chatID, msgGenericError, nil)
		}
		return
	}

	text := fmt.Sprintf("✅ <b>Siparişiniz Alındı!</b>\n\n"+
		"Sipariş No: #%s\nÜrün: %s\nTutar: ₺%.2f\n\n"+
		"Ödemeniz onaylandığında siparişiniz işleme alınacaktır.\n"+
		"Siparişlerinizi görmek için: /siparislerim",
		shortID(receipt.OrderID), receipt.ProductName, receipt.Amount)
	h.send(ctx, b, chatID, text, nil)

	kb := &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{{
			{Text: "✅ Onayla", CallbackData: "pay_ok:" + receipt.PaymentRequestID},
			{Text: "❌ Reddet", CallbackData: "pay_reject:" + receipt.PaymentRequestID},
		}},
	}
	h.notifyAdmin(fmt.Sprintf("🧾 Yeni ödeme bekleyen sipariş\n\n"+
		"👤 Telegram ID: %d\nÜrün: %s\nTutar: ₺%.2f\nAdres: %s\nYöntem: %s\nSipariş: #%s",
		chatID, receipt.ProductName, receipt.Amount, receipt.Address, receipt.PaymentMethod, shortID(receipt.OrderID)), kb)
}

// PaymentCancelHandler handles paycancel at any stage.
func (h *Handler) PaymentCancelHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	h.answerCallback(ctx, b, update.CallbackQuery.ID)

	chatID := update.CallbackQuery.From.ID
	if _, ok := h.ensureUser(ctx, b, chatID, &update.CallbackQuery.From); !ok {
		return
	}
	if err := h.checkout.Cancel(ctx, chatID); err != nil {
		h.logger.Error("cancel checkout", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	h.send(ctx, b, chatID, msgFlowCancelled, nil)
}

// handleTopupClaim records a manual payment claim sent while the chat is in
// awaiting_topup and forwards it to the admin with verdict buttons.
func (h *Handler) handleTopupClaim(ctx context.Context, b *bot.Bot, chatID int64, user *domain.User, text string) {
	req, err := h.checkout.SubmitTopup(ctx, chatID, user.ID, text)
	if err != nil {
		if err == service.ErrWrongStage {
			h.send(ctx, b, chatID, msgRestartFlow, nil)
			return
		}
		h.logger.Error("submit topup", zap.Int64("chat_id", chatID), zap.Error(err))
		h.send(ctx, b, chatID, msgGenericError, nil)
		return
	}

	h.send(ctx, b, chatID,
		"✅ Ödeme bildiriminiz alındı. Onaylandığında bakiyenize yansıtılacaktır.", nil)

	kb := &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{{
			{Text: "✅ Onayla", CallbackData: "pay_ok:" + req.ID},
			{Text: "❌ Reddet", CallbackData: "pay_reject:" + req.ID},
		}},
	}
	h.notifyAdmin(fmt.Sprintf("💳 Yeni bakiye yükleme talebi\n\n"+
		"👤 Telegram ID: %d\nTutar: ₺%.2f\nYöntem: %s\n\nAçıklama:\n%s",
		chatID, req.Amount, req.PaymentMethod, req.PaymentDetails), kb)
}

func paymentMethodText(m domain.PaymentSetting) string {
	switch m.Type {
	case "trx":
		return "TRX (Tron)"
	case "iban":
		if m.AccountName != "" {
			return "Banka Havalesi - " + m.AccountName
		}
		return "Banka Havalesi"
	default:
		return m.Type
	}
}
