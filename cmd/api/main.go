// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cashback-advisor/internal/app"
	"cashback-advisor/internal/auth"
	"cashback-advisor/internal/bot"
	"cashback-advisor/internal/config"
	"cashback-advisor/internal/handler"
	"cashback-advisor/internal/logging"
	"cashback-advisor/internal/metrics"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func main() {
	cfg := config.MustLoad()
	logger := logging.Setup(logging.Config{
		Level: logging.ParseLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := app.OpenStore(ctx, cfg)
	if err != nil {
		slog.Error("Не удалось подключиться к хранилищу", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	m := metrics.New()
	advisor := app.NewAdvisor(cfg, store, m, logger)

	gin.SetMode(gin.ReleaseMode)
	router := handler.NewRouter(handler.RouterDeps{
		Store:   store,
		Advisor: advisor,
		Tokens:  auth.NewTokenService(cfg),
		Metrics: m,
	})

	if cfg.TelegramToken != "" {
		if err := mountWebhook(ctx, router, cfg, bot.NewDispatcher(store, advisor, logger)); err != nil {
			slog.Error("Не удалось инициализировать Telegram бота", "error", err)
			os.Exit(1)
		}
	}

	srv := &http.Server{
		Addr:              cfg.ServerPort(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("🚀 Сервер запущен", "port", cfg.Port, "storage", cfg.Storage)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Сервер завершил работу с ошибкой", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Не удалось корректно остановить сервер", "error", err)
	}
	slog.Info("Сервер остановлен")
}

// mountWebhook регистрирует /telegram и сообщает адрес Telegram.
func mountWebhook(ctx context.Context, router *gin.Engine, cfg config.Config, d *bot.Dispatcher) error {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return err
	}

	router.POST("/telegram", func(c *gin.Context) {
		var update tgbotapi.Update
		if err := c.ShouldBindJSON(&update); err != nil {
			slog.Error("Ошибка парсинга обновления", "error", err)
			c.Status(http.StatusBadRequest)
			return
		}
		if msg := d.Reply(c.Request.Context(), update); msg != nil {
			if _, err := api.Send(msg); err != nil {
				slog.Error("Не удалось отправить ответ", "error", err)
			}
		}
		c.Status(http.StatusOK)
	})

	if cfg.WebhookBaseURL == "" {
		slog.Warn("WEBHOOK_BASE_URL не задан, webhook не установлен")
		return nil
	}
	webhookURL := cfg.WebhookBaseURL + "/telegram"
	if err := bot.SetWebhook(api, webhookURL); err != nil {
		return err
	}
	slog.Info("Telegram webhook установлен", "url", webhookURL, "bot", api.Self.UserName)
	return nil
}
