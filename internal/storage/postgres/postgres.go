// internal/storage/postgres/postgres.go
package postgres

import (
	"cashback-advisor/internal/domain"
	"cashback-advisor/internal/storage"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Storage struct {
	db *pgxpool.Pool
}

var _ storage.Storage = (*Storage)(nil)

func NewStorage(db *pgxpool.Pool) *Storage {
	return &Storage{db: db}
}

// querier — общее подмножество pgxpool.Pool и pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// sanitizeString очищает строку от невидимых и проблемных символов
func sanitizeString(s string) string {
	result := make([]rune, 0, len(s))
	for _, r := range s {
		// NO-BREAK SPACE и прочие пробельные символы превращаем в обычный пробел
		switch {
		case unicode.IsSpace(r):
			result = append(result, ' ')
		case r >= 32 && r <= 126:
			result = append(result, r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			result = append(result, r)
		}
		// всё остальное (0xa1, 0x92 и т.д.) отбрасываем
	}
	return strings.Join(strings.Fields(string(result)), " ")
}

// === BankStorage ===

func (s *Storage) CreateIfNotExists(ctx context.Context, name string) (int, error) {
	id, err := upsertName(ctx, s.db, "banks", name)
	if err != nil {
		return 0, fmt.Errorf("create or get bank: %w", err)
	}
	return id, nil
}

func (s *Storage) FindByName(ctx context.Context, name string) (*domain.Bank, error) {
	var bank domain.Bank
	err := s.db.QueryRow(ctx, "SELECT id, name FROM banks WHERE name = $1", name).Scan(&bank.ID, &bank.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find bank: %w", err)
	}
	return &bank, nil
}

// === CategoryStorage ===

func (s *Storage) CreateCategoryIfNotExists(ctx context.Context, name string) (int, error) {
	id, err := upsertName(ctx, s.db, "categories", name)
	if err != nil {
		return 0, fmt.Errorf("create or get category: %w", err)
	}
	return id, nil
}

func (s *Storage) FindCategoryByName(ctx context.Context, name string) (*domain.Category, error) {
	var cat domain.Category
	err := s.db.QueryRow(ctx, "SELECT id, name FROM categories WHERE name = $1", name).Scan(&cat.ID, &cat.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find category: %w", err)
	}
	return &cat, nil
}

// upsertName вставляет имя в справочник (banks или categories) и возвращает id.
func upsertName(ctx context.Context, q querier, table, name string) (int, error) {
	var id int
	err := q.QueryRow(ctx, `
		INSERT INTO `+table+` (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, name).Scan(&id)
	return id, err
}

// === CashbackStorage ===

func (s *Storage) SaveMonth(ctx context.Context, userID int64, monthStr string, bankCategories []domain.BankWithCategories) error {
	if err := storage.ValidateBanks(bankCategories); err != nil {
		return err
	}
	monthTime, err := domain.ParseMonth(monthStr)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Каскадом уходят банки и категории месяца
	_, err = tx.Exec(ctx, "DELETE FROM cashback_months WHERE user_id = $1 AND month = $2", userID, monthTime)
	if err != nil {
		return fmt.Errorf("clear old month: %w", err)
	}

	var monthID int
	err = tx.QueryRow(ctx, `
		INSERT INTO cashback_months (user_id, month) VALUES ($1, $2) RETURNING id
	`, userID, monthTime).Scan(&monthID)
	if err != nil {
		return fmt.Errorf("insert cashback_month: %w", err)
	}

	for _, bc := range bankCategories {
		if err := upsertMonthBank(ctx, tx, monthID, bc); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	slog.Debug("SaveMonth completed", "user_id", userID, "month", monthStr)
	return nil
}

// upsertMonthBank создаёт или обновляет банк в месяце вместе с категориями.
// Новые строки получают позицию в конце, существующие сохраняют свою.
func upsertMonthBank(ctx context.Context, q querier, monthID int, bc domain.BankWithCategories) error {
	bankID, found, err := findMonthBank(ctx, q, monthID, bc.Bank.Name)
	if err != nil {
		return err
	}
	if !found {
		bankID, err = upsertName(ctx, q, "banks", bc.Bank.Name)
		if err != nil {
			return fmt.Errorf("create bank %q: %w", bc.Bank.Name, err)
		}
	}

	_, err = q.Exec(ctx, `
		INSERT INTO cashback_month_banks (cashback_month_id, bank_id, bank_limit, max_categories, position)
		VALUES ($1, $2, $3::text::numeric, $4,
			(SELECT COALESCE(MAX(position) + 1, 0) FROM cashback_month_banks WHERE cashback_month_id = $1))
		ON CONFLICT (cashback_month_id, bank_id)
		DO UPDATE SET bank_limit = EXCLUDED.bank_limit, max_categories = EXCLUDED.max_categories
	`, monthID, bankID, bc.BankLimit.String(), bc.MaxCategories)
	if err != nil {
		return fmt.Errorf("link bank %q to month: %w", bc.Bank.Name, err)
	}

	for _, cc := range bc.Categories {
		if err := upsertBankCategory(ctx, q, monthID, bankID, cc); err != nil {
			return err
		}
	}
	return nil
}

func upsertBankCategory(ctx context.Context, q querier, monthID, bankID int, cc domain.CashbackCategory) error {
	var categoryID int
	err := q.QueryRow(ctx, `
		SELECT bcc.category_id
		FROM bank_cashback_categories bcc
		JOIN categories c ON c.id = bcc.category_id
		WHERE bcc.cashback_month_id = $1 AND bcc.bank_id = $2 AND lower(c.name) = lower($3)
	`, monthID, bankID, cc.Category.Name).Scan(&categoryID)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		categoryID, err = upsertName(ctx, q, "categories", cc.Category.Name)
		if err != nil {
			return fmt.Errorf("create category %q: %w", cc.Category.Name, err)
		}
	case err != nil:
		return fmt.Errorf("find category %q: %w", cc.Category.Name, err)
	}

	_, err = q.Exec(ctx, `
		INSERT INTO bank_cashback_categories
			(cashback_month_id, bank_id, category_id, percent, category_limit, position)
		VALUES ($1, $2, $3, $4::text::numeric, $5::text::numeric,
			(SELECT COALESCE(MAX(position) + 1, 0) FROM bank_cashback_categories
			 WHERE cashback_month_id = $1 AND bank_id = $2))
		ON CONFLICT (cashback_month_id, bank_id, category_id)
		DO UPDATE SET percent = EXCLUDED.percent, category_limit = EXCLUDED.category_limit
	`, monthID, bankID, categoryID, cc.Percent.String(), nullNumeric(cc.CategoryLimit))
	if err != nil {
		return fmt.Errorf("link bank-category: %w", err)
	}
	return nil
}

// findMonthBank ищет банк месяца по имени без учёта регистра.
func findMonthBank(ctx context.Context, q querier, monthID int, bankName string) (int, bool, error) {
	var bankID int
	err := q.QueryRow(ctx, `
		SELECT mb.bank_id
		FROM cashback_month_banks mb
		JOIN banks b ON b.id = mb.bank_id
		WHERE mb.cashback_month_id = $1 AND lower(b.name) = lower($2)
	`, monthID, sanitizeString(bankName)).Scan(&bankID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("find bank in month: %w", err)
	}
	return bankID, true, nil
}

func findMonth(ctx context.Context, q querier, userID int64, monthStr string) (int, bool, error) {
	monthTime, err := domain.ParseMonth(monthStr)
	if err != nil {
		return 0, false, err
	}
	var monthID int
	err = q.QueryRow(ctx, `
		SELECT id FROM cashback_months WHERE user_id = $1 AND month = $2
	`, userID, monthTime).Scan(&monthID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("find month: %w", err)
	}
	return monthID, true, nil
}

func (s *Storage) GetMonth(ctx context.Context, userID int64, monthStr string) (*domain.CashbackMonth, error) {
	monthID, found, err := findMonth(ctx, s.db, userID, monthStr)
	if err != nil || !found {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT
			b.id, b.name, mb.bank_limit::text, mb.max_categories,
			c.id, c.name, bcc.percent::text, bcc.category_limit::text
		FROM cashback_month_banks mb
		JOIN banks b ON b.id = mb.bank_id
		JOIN bank_cashback_categories bcc
			ON bcc.cashback_month_id = mb.cashback_month_id AND bcc.bank_id = mb.bank_id
		JOIN categories c ON c.id = bcc.category_id
		WHERE mb.cashback_month_id = $1
		ORDER BY mb.position, bcc.position
	`, monthID)
	if err != nil {
		return nil, fmt.Errorf("query bank-category: %w", err)
	}
	defer rows.Close()

	// Порядок банков и категорий важен для оптимизатора
	var banks []domain.BankWithCategories
	index := make(map[int]int)
	for rows.Next() {
		var (
			bankID, catID, maxCategories int
			bankName, catName            string
			bankLimit, percent           string
			categoryLimit                *string
		)
		if err := rows.Scan(&bankID, &bankName, &bankLimit, &maxCategories, &catID, &catName, &percent, &categoryLimit); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		i, exists := index[bankID]
		if !exists {
			limit, err := parseNumeric(bankLimit)
			if err != nil {
				return nil, fmt.Errorf("bank %q limit: %w", bankName, err)
			}
			banks = append(banks, domain.BankWithCategories{
				Bank:          domain.Bank{ID: bankID, Name: bankName},
				BankLimit:     limit,
				MaxCategories: maxCategories,
			})
			i = len(banks) - 1
			index[bankID] = i
		}

		cc, err := scanCategory(catID, catName, percent, categoryLimit)
		if err != nil {
			return nil, err
		}
		banks[i].Categories = append(banks[i].Categories, cc)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return &domain.CashbackMonth{
		Month:  monthStr,
		UserID: userID,
		Banks:  banks,
	}, nil
}

func scanCategory(id int, name, percent string, limit *string) (domain.CashbackCategory, error) {
	p, err := parseNumeric(percent)
	if err != nil {
		return domain.CashbackCategory{}, fmt.Errorf("category %q percent: %w", name, err)
	}
	cl, err := parseNullNumeric(limit)
	if err != nil {
		return domain.CashbackCategory{}, fmt.Errorf("category %q limit: %w", name, err)
	}
	return domain.CashbackCategory{
		Category:      domain.Category{ID: id, Name: name},
		Percent:       p,
		CategoryLimit: cl,
	}, nil
}

func (s *Storage) SearchByCategory(ctx context.Context, userID int64, monthStr, categoryName string) ([]domain.Bank, error) {
	monthTime, err := domain.ParseMonth(monthStr)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT b.id, b.name
		FROM bank_cashback_categories bcc
		JOIN banks b ON b.id = bcc.bank_id
		JOIN categories c ON c.id = bcc.category_id
		JOIN cashback_months cm ON cm.id = bcc.cashback_month_id
		WHERE cm.user_id = $1 AND cm.month = $2 AND lower(c.name) = lower($3)
		ORDER BY b.name
	`, userID, monthTime, categoryName)
	if err != nil {
		return nil, fmt.Errorf("search banks by category: %w", err)
	}
	defer rows.Close()

	var banks []domain.Bank
	for rows.Next() {
		var bank domain.Bank
		if err := rows.Scan(&bank.ID, &bank.Name); err != nil {
			return nil, fmt.Errorf("scan bank: %w", err)
		}
		banks = append(banks, bank)
	}
	return banks, rows.Err()
}

func (s *Storage) SearchByBank(ctx context.Context, userID int64, monthStr, bankName string) ([]domain.Category, error) {
	monthTime, err := domain.ParseMonth(monthStr)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT c.id, c.name
		FROM bank_cashback_categories bcc
		JOIN banks b ON b.id = bcc.bank_id
		JOIN categories c ON c.id = bcc.category_id
		JOIN cashback_months cm ON cm.id = bcc.cashback_month_id
		WHERE cm.user_id = $1 AND cm.month = $2 AND lower(b.name) = lower($3)
		ORDER BY c.name
	`, userID, monthTime, bankName)
	if err != nil {
		return nil, fmt.Errorf("search categories by bank: %w", err)
	}
	defer rows.Close()

	var categories []domain.Category
	for rows.Next() {
		var cat domain.Category
		if err := rows.Scan(&cat.ID, &cat.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, cat)
	}
	return categories, rows.Err()
}

func (s *Storage) UpdateBankCategories(ctx context.Context, userID int64, monthStr, bankName string, newCategories []domain.CashbackCategory) error {
	if err := storage.ValidateCategories(bankName, newCategories); err != nil {
		return err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	notFound := fmt.Errorf("bank %q not found in month %s: %w", bankName, monthStr, domain.ErrNotFound)
	monthID, found, err := findMonth(ctx, tx, userID, monthStr)
	if err != nil {
		return err
	}
	if !found {
		return notFound
	}
	bankID, found, err := findMonthBank(ctx, tx, monthID, bankName)
	if err != nil {
		return err
	}
	if !found {
		return notFound
	}

	_, err = tx.Exec(ctx, `
		DELETE FROM bank_cashback_categories
		WHERE cashback_month_id = $1 AND bank_id = $2
	`, monthID, bankID)
	if err != nil {
		return fmt.Errorf("clear old categories: %w", err)
	}

	for _, cc := range newCategories {
		if err := upsertBankCategory(ctx, tx, monthID, bankID, cc); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *Storage) DeleteBankFromMonth(ctx context.Context, userID int64, monthStr, bankName string) error {
	monthTime, err := domain.ParseMonth(monthStr)
	if err != nil {
		return err
	}

	bankName = sanitizeString(bankName)
	_, err = s.db.Exec(ctx, `
		DELETE FROM cashback_month_banks
		USING banks b, cashback_months cm
		WHERE cashback_month_banks.bank_id = b.id
		AND cashback_month_banks.cashback_month_id = cm.id
		AND cm.user_id = $1
		AND cm.month = $2
		AND lower(b.name) = lower($3)
	`, userID, monthTime, bankName)
	if err != nil {
		return fmt.Errorf("delete bank from month: %w", err)
	}
	return nil
}

func (s *Storage) DeleteCategoryFromBank(ctx context.Context, userID int64, monthStr, bankName, categoryName string) error {
	bankName = sanitizeString(bankName)
	slog.Debug("DeleteCategoryFromBank", "user_id", userID, "month", monthStr, "bank", bankName, "category", categoryName)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	notFound := fmt.Errorf("category %q not found for bank %q in %s: %w", categoryName, bankName, monthStr, domain.ErrNotFound)
	monthID, found, err := findMonth(ctx, tx, userID, monthStr)
	if err != nil {
		return err
	}
	if !found {
		return notFound
	}
	bankID, found, err := findMonthBank(ctx, tx, monthID, bankName)
	if err != nil {
		return err
	}
	if !found {
		return notFound
	}

	result, err := tx.Exec(ctx, `
		DELETE FROM bank_cashback_categories
		USING categories c
		WHERE bank_cashback_categories.category_id = c.id
		AND bank_cashback_categories.cashback_month_id = $1
		AND bank_cashback_categories.bank_id = $2
		AND lower(c.name) = lower($3)
	`, monthID, bankID, categoryName)
	if err != nil {
		return fmt.Errorf("delete category from bank: %w", err)
	}
	if result.RowsAffected() == 0 {
		return notFound
	}

	// Банк без категорий из месяца убираем
	_, err = tx.Exec(ctx, `
		DELETE FROM cashback_month_banks mb
		WHERE mb.cashback_month_id = $1 AND mb.bank_id = $2
		AND NOT EXISTS (
			SELECT 1 FROM bank_cashback_categories bcc
			WHERE bcc.cashback_month_id = $1 AND bcc.bank_id = $2
		)
	`, monthID, bankID)
	if err != nil {
		return fmt.Errorf("drop empty bank: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *Storage) PatchMonth(ctx context.Context, userID int64, monthStr string, bankCategories []domain.BankWithCategories) error {
	if err := storage.ValidateBanks(bankCategories); err != nil {
		return err
	}
	monthTime, err := domain.ParseMonth(monthStr)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	monthID, found, err := findMonth(ctx, tx, userID, monthStr)
	if err != nil {
		return err
	}
	if !found {
		err = tx.QueryRow(ctx, `
			INSERT INTO cashback_months (user_id, month) VALUES ($1, $2) RETURNING id
		`, userID, monthTime).Scan(&monthID)
		if err != nil {
			return fmt.Errorf("create month: %w", err)
		}
	}

	for _, bc := range bankCategories {
		if err := upsertMonthBank(ctx, tx, monthID, bc); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
