// handler/payment-handler.go
package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hatshop/internal/service"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// Pending payment requests older than this are auto-rejected by the sweeper.
const staleRequestAge = 7 * 24 * time.Hour

// PaymentCallbackHandler processes the admin's pay_ok:/pay_reject: inline
// buttons on payment requests.
func (h *Handler) PaymentCallbackHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	h.answerCallback(ctx, b, update.CallbackQuery.ID)

	if _, ok := h.ensureUser(ctx, b, update.CallbackQuery.From.ID, &update.CallbackQuery.From); !ok {
		return
	}
	if update.CallbackQuery.From.ID != h.cfg.AdminID {
		return
	}

	act := ParseAction(update.CallbackQuery.Data)
	switch act.Kind {
	case ActionApprove:
		h.approvePayment(ctx, b, act.Arg)
	case ActionReject:
		h.rejectPayment(ctx, b, act.Arg)
	}
}

func (h *Handler) approvePayment(ctx context.Context, b *bot.Bot, requestID string) {
	result, err := h.shop.ApproveRequest(ctx, requestID, "")
	if err != nil {
		switch {
		case errors.Is(err, service.ErrWrongStage):
			h.send(ctx, b, h.cfg.AdminID, "Bu ödeme talebi zaten işlenmiş.", nil)
		case errors.Is(err, service.ErrNotFound):
			h.send(ctx, b, h.cfg.AdminID, "Talebin bağlı olduğu sipariş bulunamadı, onay yapılmadı.", nil)
		default:
			h.logger.Error("approve payment request", zap.String("request_id", requestID), zap.Error(err))
			h.send(ctx, b, h.cfg.AdminID, "Ödeme talebi onaylanırken hata oluştu.", nil)
		}
		return
	}

	if result.OrderID != "" {
		h.send(ctx, b, h.cfg.AdminID,
			fmt.Sprintf("✅ Ödeme onaylandı, sipariş #%s hazırlanıyor.", shortID(result.OrderID)), nil)
	} else {
		h.send(ctx, b, h.cfg.AdminID,
			fmt.Sprintf("✅ Ödeme onaylandı, bakiyeye ₺%.2f yüklendi.", result.CreditedAmount), nil)
	}

	h.notifyRequestUser(ctx, b, result.Request.UserID, func(_ int64) string {
		if result.OrderID != "" {
			return fmt.Sprintf("✅ Ödemeniz onaylandı! Sipariş #%s hazırlanmaya başladı.\n\nDetaylar için: /siparislerim",
				shortID(result.OrderID))
		}
		return fmt.Sprintf("✅ Ödemeniz onaylandı! Bakiyenize ₺%.2f yüklendi.\n\nBakiyenizi görmek için: /bakiye",
			result.CreditedAmount)
	})
}

func (h *Handler) rejectPayment(ctx context.Context, b *bot.Bot, requestID string) {
	req, err := h.shop.RejectRequest(ctx, requestID, "")
	if err != nil {
		if err == service.ErrWrongStage {
			h.send(ctx, b, h.cfg.AdminID, "Bu ödeme talebi zaten işlenmiş.", nil)
			return
		}
		h.logger.Error("reject payment request", zap.String("request_id", requestID), zap.Error(err))
		h.send(ctx, b, h.cfg.AdminID, "Ödeme talebi reddedilirken hata oluştu.", nil)
		return
	}

	h.send(ctx, b, h.cfg.AdminID, "❌ Ödeme talebi reddedildi.", nil)
	h.notifyRequestUser(ctx, b, req.UserID, func(_ int64) string {
		return "❌ Ödeme bildiriminiz reddedildi. Bilgilerinizi kontrol edip tekrar deneyin veya destek için iletişime geçin."
	})
}

func (h *Handler) notifyRequestUser(ctx context.Context, b *bot.Bot, userID string, text func(chatID int64) string) {
	user, err := h.userRepo.GetByID(ctx, userID)
	if err != nil {
		h.logger.Error("load request user", zap.String("user_id", userID), zap.Error(err))
		return
	}
	h.send(ctx, b, user.TelegramID, text(user.TelegramID), nil)
}

// CheckPayment runs the daily sweep rejecting payment requests that sat
// pending longer than staleRequestAge.
func (h *Handler) CheckPayment(ctx context.Context) {
	h.logger.Info("started payment request sweeper")

	h.sweepStaleRequests(ctx)

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("stopping payment request sweeper", zap.Error(ctx.Err()))
			return
		case <-ticker.C:
			h.sweepStaleRequests(ctx)
		}
	}
}

func (h *Handler) sweepStaleRequests(ctx context.Context) {
	n, err := h.shop.ExpireStaleRequests(ctx, staleRequestAge)
	if err != nil {
		h.logger.Error("expire stale payment requests", zap.Error(err))
		return
	}
	if n > 0 {
		h.logger.Info("stale payment requests rejected", zap.Int64("count", n))
	}
}
