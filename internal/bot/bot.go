// Package bot implements the Telegram commands of the cashback advisor.
// Both the long-polling bot and the webhook in the API server dispatch
// through Dispatcher.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cashback-advisor/internal/domain"
	"cashback-advisor/internal/storage"
)

const helpText = "🏦 *Кэшбэк-советник*\n\n" +
	"Команды:\n" +
	"`/add` — добавить банк: `Сбер: Аптеки 5, Такси 10` или `Сбер (3, 5000): Аптеки 5`\n" +
	"`/month` — показать кэшбэк за текущий месяц\n" +
	"`/search_bank Сбер` — найти категории по банку\n" +
	"`/search_cat Аптеки` — найти банки по категории\n" +
	"`/delete_bank Сбер` — удалить банк\n" +
	"`/delete_cat Сбер Аптеки` — удалить категорию\n" +
	"`/advice` — последняя рекомендация за месяц\n" +
	"`/confirm` — подтвердить рекомендованные категории\n" +
	"`/confirmed` — подтверждённые категории"

type Store interface {
	storage.CashbackStorage
	storage.ConfirmationStorage
}

type Advisor interface {
	Latest(ctx context.Context, userID int64, month string) (*domain.Recommendation, error)
	Confirm(ctx context.Context, userID int64, month string, choices []domain.ConfirmedChoice) (*domain.Confirmation, error)
}

type Dispatcher struct {
	store   Store
	advisor Advisor
	logger  *slog.Logger
	now     func() time.Time
}

func NewDispatcher(store Store, advisor Advisor, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{store: store, advisor: advisor, logger: logger, now: time.Now}
}

func (d *Dispatcher) month() string {
	return d.now().Format(domain.MonthLayout)
}

// Handle выполняет команду и возвращает текст ответа в Markdown.
func (d *Dispatcher) Handle(ctx context.Context, userID int64, raw string) string {
	text := sanitizeInput(fixEncoding(raw))
	d.logger.Info("📥 Получено сообщение", "user_id", userID, "text", text)

	command, args, _ := strings.Cut(text, " ")
	// "/help@MyBot" в группах
	command, _, _ = strings.Cut(command, "@")

	var (
		msg string
		err error
	)
	switch command {
	case "/start", "/help":
		msg = helpText
	case "/month":
		msg, err = d.showMonth(ctx, userID)
	case "/search_bank":
		msg, err = d.searchBank(ctx, userID, args)
	case "/search_cat":
		msg, err = d.searchCategory(ctx, userID, args)
	case "/delete_bank":
		msg, err = d.deleteBank(ctx, userID, args)
	case "/delete_cat":
		msg, err = d.deleteCategory(ctx, userID, args)
	case "/add":
		msg, err = d.add(ctx, userID, args)
	case "/advice":
		msg, err = d.advice(ctx, userID)
	case "/confirm":
		msg, err = d.confirm(ctx, userID)
	case "/confirmed":
		msg, err = d.confirmed(ctx, userID)
	default:
		msg = "Неизвестная команда. Напиши /help"
	}

	if err != nil {
		d.logger.Warn("Команда завершилась с ошибкой", "user_id", userID, "command", command, "error", err)
		return "❌ Ошибка: " + err.Error()
	}
	return msg
}

func (d *Dispatcher) add(ctx context.Context, userID int64, args string) (string, error) {
	if args == "" {
		return "Отправь категории в формате:\nСбер: Аптеки 5, Такси 10", nil
	}
	bwc, err := parseAdd(args)
	if err != nil {
		return "", err
	}
	if err := d.store.PatchMonth(ctx, userID, d.month(), []domain.BankWithCategories{bwc}); err != nil {
		return "", err
	}
	return "✅ Сохранено!", nil
}

func (d *Dispatcher) showMonth(ctx context.Context, userID int64) (string, error) {
	month := d.month()
	cashback, err := d.store.GetMonth(ctx, userID, month)
	if err != nil {
		return "", err
	}
	if cashback == nil || len(cashback.Banks) == 0 {
		return "📭 Нет данных за " + month, nil
	}

	lines := []string{fmt.Sprintf("🏦 *Кэшбэк за %s*", month)}
	for _, bwc := range cashback.Banks {
		lines = append(lines, fmt.Sprintf("\n*%s* (категорий: %d, лимит: %s)",
			bwc.Bank.Name, bwc.MaxCategories, bwc.BankLimit.StringFixed(0)))
		for _, cc := range bwc.Categories {
			lines = append(lines, fmt.Sprintf("- %s: %s%%", cc.Category.Name, cc.Percent.StringFixed(1)))
		}
	}
	return strings.Join(lines, "\n"), nil
}

func (d *Dispatcher) searchBank(ctx context.Context, userID int64, bankName string) (string, error) {
	if bankName == "" {
		return "❌ Укажи название банка", nil
	}
	month := d.month()
	cashback, err := d.store.GetMonth(ctx, userID, month)
	if err != nil {
		return "", err
	}
	if cashback == nil || len(cashback.Banks) == 0 {
		return fmt.Sprintf("📭 Нет данных за %s", month), nil
	}

	for _, bwc := range cashback.Banks {
		if !strings.EqualFold(bwc.Bank.Name, bankName) {
			continue
		}
		lines := []string{fmt.Sprintf("🔍 *Категории для %s*", bwc.Bank.Name)}
		for _, cc := range bwc.Categories {
			lines = append(lines, fmt.Sprintf("- %s: %s%%", cc.Category.Name, cc.Percent.StringFixed(1)))
		}
		return strings.Join(lines, "\n"), nil
	}
	return fmt.Sprintf("📭 Нет кэшбэка по банку *%s*", bankName), nil
}

func (d *Dispatcher) searchCategory(ctx context.Context, userID int64, categoryName string) (string, error) {
	if categoryName == "" {
		return "❌ Укажи название категории", nil
	}
	month := d.month()
	cashback, err := d.store.GetMonth(ctx, userID, month)
	if err != nil {
		return "", err
	}
	if cashback == nil || len(cashback.Banks) == 0 {
		return fmt.Sprintf("📭 Нет данных за %s", month), nil
	}

	var lines []string
	for _, bwc := range cashback.Banks {
		for _, cc := range bwc.Categories {
			if strings.EqualFold(cc.Category.Name, categoryName) {
				lines = append(lines, fmt.Sprintf("- %s: %s%%", bwc.Bank.Name, cc.Percent.StringFixed(1)))
				break
			}
		}
	}
	if len(lines) == 0 {
		return fmt.Sprintf("📭 Нет кэшбэка по категории *%s*", categoryName), nil
	}
	header := fmt.Sprintf("🔍 *Банки с кэшбэком по %s*", categoryName)
	return header + "\n" + strings.Join(lines, "\n"), nil
}

func (d *Dispatcher) deleteBank(ctx context.Context, userID int64, args string) (string, error) {
	if args == "" {
		return "❌ Используй: /delete_bank Банк", nil
	}
	if err := d.store.DeleteBankFromMonth(ctx, userID, d.month(), args); err != nil {
		return "", err
	}
	return "✅ Банк удалён", nil
}

func (d *Dispatcher) deleteCategory(ctx context.Context, userID int64, args string) (string, error) {
	bankName, categoryName, _ := strings.Cut(args, " ")
	if bankName == "" || categoryName == "" {
		return "❌ Используй: /delete_cat Банк Категория", nil
	}
	err := d.store.DeleteCategoryFromBank(ctx, userID, d.month(), bankName, categoryName)
	if errors.Is(err, domain.ErrNotFound) {
		return "📭 Нет подходящей категории", nil
	}
	if err != nil {
		return "", err
	}
	return "✅ Категория удалена", nil
}

func (d *Dispatcher) advice(ctx context.Context, userID int64) (string, error) {
	month := d.month()
	rec, err := d.advisor.Latest(ctx, userID, month)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Sprintf("📭 Нет рекомендации за %s. Отправь выписку через API.", month), nil
	}
	if err != nil {
		return "", err
	}

	lines := []string{fmt.Sprintf("💡 *Рекомендация за %s*", month)}
	for _, dec := range rec.Decisions {
		if !dec.Chosen {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s: %s %s%% (≈ %s)",
			dec.Bank, dec.Category, dec.Percent.StringFixed(1), dec.Amount.Decimal.StringFixed(2)))
	}
	if len(lines) == 1 {
		lines = append(lines, "Выбирать нечего: прогноз трат пуст")
	}
	return strings.Join(lines, "\n"), nil
}

func (d *Dispatcher) confirm(ctx context.Context, userID int64) (string, error) {
	c, err := d.advisor.Confirm(ctx, userID, d.month(), nil)
	if errors.Is(err, domain.ErrNotFound) {
		return "📭 Сначала получи рекомендацию: /advice", nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Подтверждено категорий: %d", len(c.Choices)), nil
}

func (d *Dispatcher) confirmed(ctx context.Context, userID int64) (string, error) {
	month := d.month()
	c, err := d.store.GetConfirmation(ctx, userID, month)
	if err != nil {
		return "", err
	}
	if c == nil || len(c.Choices) == 0 {
		return "📭 Нет подтверждённых категорий за " + month, nil
	}
	lines := []string{fmt.Sprintf("✅ *Подтверждено за %s*", month)}
	for _, ch := range c.Choices {
		lines = append(lines, fmt.Sprintf("- %s: %s %s%%", ch.Bank, ch.Category, ch.Percent.StringFixed(1)))
	}
	return strings.Join(lines, "\n"), nil
}
