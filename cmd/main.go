// cmd/main.go
package main

import (
	"context"
	"hatshop/config"
	"hatshop/internal/handler"
	"hatshop/internal/repository"
	"hatshop/traits/database"
	"hatshop/traits/logger"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-telegram/bot"
	"go.uber.org/zap"
)

func main() {
	zapLogger, err := logger.NewLogger()
	if err != nil {
		panic(err)
	}

	cfg, err := config.NewConfig()
	if err != nil {
		zapLogger.Error("error init config", zap.Error(err))
		return
	}

	db, err := database.InitDatabase(cfg.DBPath)
	if err != nil {
		zapLogger.Error("error initializing database", zap.Error(err))
		return
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())

	redisClient, err := database.ConnectRedis(ctx, cfg.RedisAddr, zapLogger)
	if err != nil {
		zapLogger.Fatal("error conn to redis", zap.Error(err))
	}
	sessions := repository.NewSessionRepository(redisClient, cfg.SessionTTL)

	handl := handler.NewHandler(zapLogger, cfg, ctx, db, sessions)

	opts := []bot.Option{
		bot.WithAllowedUpdates([]string{"message", "callback_query"}),

		// Müşteri komutları
		bot.WithMessageTextHandler("/start", bot.MatchTypeExact, handl.StartHandler),
		bot.WithMessageTextHandler("/urunler", bot.MatchTypeExact, handl.ProductsHandler),
		bot.WithMessageTextHandler("/bakiye", bot.MatchTypeExact, handl.BalanceHandler),
		bot.WithMessageTextHandler("/bakiyeekle", bot.MatchTypeExact, handl.AddBalanceHandler),
		bot.WithMessageTextHandler("/siparislerim", bot.MatchTypeExact, handl.OrdersHandler),
		bot.WithMessageTextHandler("/yardim", bot.MatchTypeExact, handl.HelpHandler),
		bot.WithMessageTextHandler("/satin_", bot.MatchTypePrefix, handl.BuyHandler),
		bot.WithMessageTextHandler("/siparis_", bot.MatchTypePrefix, handl.OrderDetailHandler),

		// Satın alma akışının inline düğmeleri
		bot.WithCallbackQueryDataHandler("buy:", bot.MatchTypePrefix, handl.CheckoutStartHandler),
		bot.WithCallbackQueryDataHandler("paymethod:", bot.MatchTypePrefix, handl.PaymentMethodHandler),
		bot.WithCallbackQueryDataHandler("payconfirm", bot.MatchTypeExact, handl.PaymentConfirmHandler),
		bot.WithCallbackQueryDataHandler("paycancel", bot.MatchTypeExact, handl.PaymentCancelHandler),

		// Admin onay düğmeleri (pay_ok:... / pay_reject:...)
		bot.WithCallbackQueryDataHandler("pay_", bot.MatchTypePrefix, handl.PaymentCallbackHandler),

		bot.WithDefaultHandler(handl.DefaultHandler),
	}
	if cfg.WebhookURL != "" {
		opts = append(opts, bot.WithWebhookSecretToken(cfg.WebhookSecret))
	}

	b, err := bot.New(cfg.Token, opts...)
	if err != nil {
		zapLogger.Error("error in start bot", zap.Error(err))
		return
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT)

	go func() {
		<-stop
		zapLogger.Info("Bot stopped successfully")
		cancel()
	}()

	go handl.CheckPayment(ctx)
	go handl.StartWebServer(ctx, b)
	zapLogger.Info("Starting web server", zap.String("port", cfg.Port))
	zapLogger.Info("Bot started successfully")

	if cfg.WebhookURL != "" {
		if _, err := b.SetWebhook(ctx, &bot.SetWebhookParams{
			URL:         cfg.WebhookURL + "/webhook",
			SecretToken: cfg.WebhookSecret,
		}); err != nil {
			zapLogger.Error("error setting webhook", zap.Error(err))
			return
		}
		b.StartWebhook(ctx)
		return
	}

	b.Start(ctx)
}
