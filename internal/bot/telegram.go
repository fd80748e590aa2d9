package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Reply строит ответ на обновление Telegram. nil — отвечать не нужно.
func (d *Dispatcher) Reply(ctx context.Context, update tgbotapi.Update) *tgbotapi.MessageConfig {
	if update.Message == nil || update.Message.From == nil {
		return nil
	}
	text := d.Handle(ctx, update.Message.From.ID, update.Message.Text)
	msg := tgbotapi.NewMessage(update.Message.Chat.ID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	return &msg
}

// Poll получает обновления long polling до отмены ctx.
func (d *Dispatcher) Poll(ctx context.Context, api *tgbotapi.BotAPI) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)
	defer api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if msg := d.Reply(ctx, update); msg != nil {
				if _, err := api.Send(msg); err != nil {
					d.logger.Error("Не удалось отправить ответ", "error", err)
				}
			}
		}
	}
}

// SetWebhook регистрирует адрес вебхука у Telegram.
func SetWebhook(api *tgbotapi.BotAPI, url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("build webhook: %w", err)
	}
	if _, err := api.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	return nil
}
