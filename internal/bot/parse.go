package bot

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"cashback-advisor/internal/domain"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
)

// fixEncoding чинит текст, пришедший в windows-1251 вместо UTF-8.
func fixEncoding(s string) string {
	if utf8.ValidString(s) {
		return s
	}

	decoder := charmap.Windows1251.NewDecoder()
	fixed, err := decoder.String(s)
	if err == nil && utf8.ValidString(fixed) {
		return fixed
	}

	// Если не получилось — выбрасываем невалидные символы
	return strings.ToValidUTF8(s, "")
}

// sanitizeInput заменяет любые пробельные символы обычным пробелом
// и схлопывает повторы.
func sanitizeInput(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			b.WriteRune(' ')
		} else {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// parseAdd разбирает "Банк: Категория1 5, Категория2 10".
// После названия банка можно указать "(категорий, лимит)":
// "Сбер (3, 5000): Аптеки 5, Такси 10".
func parseAdd(input string) (domain.BankWithCategories, error) {
	bankPart, categoriesStr, found := strings.Cut(input, ":")
	if !found {
		return domain.BankWithCategories{}, fmt.Errorf("используй формат: Банк: Категория1 5, Категория2 10")
	}

	bankName, params, err := splitBankParams(strings.TrimSpace(bankPart))
	if err != nil {
		return domain.BankWithCategories{}, err
	}
	categoriesStr = strings.TrimSpace(categoriesStr)
	if bankName == "" || categoriesStr == "" {
		return domain.BankWithCategories{}, fmt.Errorf("банк и категории не могут быть пустыми")
	}

	bwc := domain.BankWithCategories{
		Bank:          domain.Bank{Name: bankName},
		BankLimit:     decimal.NewFromInt(domain.DefaultBankLimit),
		MaxCategories: domain.DefaultMaxCategories,
	}
	if params != "" {
		if bwc.MaxCategories, bwc.BankLimit, err = parseBankParams(params); err != nil {
			return domain.BankWithCategories{}, err
		}
	}

	for _, catPart := range strings.Split(categoriesStr, ",") {
		fields := strings.Fields(catPart)
		if len(fields) < 2 {
			return domain.BankWithCategories{}, fmt.Errorf("категория должна содержать название и процент: %q", strings.TrimSpace(catPart))
		}

		percentStr := strings.TrimSuffix(fields[len(fields)-1], "%")
		percent, err := decimal.NewFromString(percentStr)
		if err != nil || percent.IsNegative() || percent.GreaterThan(decimal.NewFromInt(100)) {
			return domain.BankWithCategories{}, fmt.Errorf("неверный процент: %q", fields[len(fields)-1])
		}

		bwc.Categories = append(bwc.Categories, domain.CashbackCategory{
			Category: domain.Category{Name: strings.Join(fields[:len(fields)-1], " ")},
			Percent:  percent,
		})
	}
	return bwc, nil
}

func splitBankParams(s string) (name, params string, err error) {
	open := strings.IndexByte(s, '(')
	if open < 0 {
		return s, "", nil
	}
	if !strings.HasSuffix(s, ")") {
		return "", "", fmt.Errorf("параметры банка пишутся в скобках: Банк (3, 5000)")
	}
	return strings.TrimSpace(s[:open]), s[open+1 : len(s)-1], nil
}

func parseBankParams(params string) (int, decimal.Decimal, error) {
	maxStr, limitStr, found := strings.Cut(params, ",")
	if !found {
		return 0, decimal.Zero, fmt.Errorf("укажи число категорий и лимит: (3, 5000)")
	}
	maxCategories, err := strconv.Atoi(strings.TrimSpace(maxStr))
	if err != nil || maxCategories < 1 {
		return 0, decimal.Zero, fmt.Errorf("неверное число категорий: %q", strings.TrimSpace(maxStr))
	}
	limit, err := decimal.NewFromString(strings.TrimSpace(limitStr))
	if err != nil || limit.IsNegative() {
		return 0, decimal.Zero, fmt.Errorf("неверный лимит: %q", strings.TrimSpace(limitStr))
	}
	return maxCategories, limit, nil
}
