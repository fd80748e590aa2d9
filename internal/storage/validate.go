package storage

import (
	"fmt"
	"strings"

	"cashback-advisor/internal/domain"

	"github.com/shopspring/decimal"
)

var maxPercent = decimal.NewFromInt(100)

// ValidateBanks checks what every storage backend refuses to persist.
func ValidateBanks(bankCategories []domain.BankWithCategories) error {
	seen := make(map[string]bool, len(bankCategories))
	for _, bc := range bankCategories {
		if strings.TrimSpace(bc.Bank.Name) == "" {
			return fmt.Errorf("bank name cannot be empty")
		}
		key := domain.NormalizeKey(bc.Bank.Name)
		if seen[key] {
			return fmt.Errorf("bank %q listed twice", bc.Bank.Name)
		}
		seen[key] = true
		if bc.MaxCategories < 1 {
			return fmt.Errorf("bank %q: max_categories must be positive", bc.Bank.Name)
		}
		if bc.BankLimit.IsNegative() {
			return fmt.Errorf("bank %q: bank_limit must not be negative", bc.Bank.Name)
		}
		if err := ValidateCategories(bc.Bank.Name, bc.Categories); err != nil {
			return err
		}
	}
	return nil
}

func ValidateCategories(bank string, categories []domain.CashbackCategory) error {
	if len(categories) == 0 {
		return fmt.Errorf("bank %q must have at least one category", bank)
	}
	for _, cc := range categories {
		if strings.TrimSpace(cc.Category.Name) == "" {
			return fmt.Errorf("category name cannot be empty for bank %q", bank)
		}
		if cc.Percent.IsNegative() || cc.Percent.GreaterThan(maxPercent) {
			return fmt.Errorf("percent must be between 0 and 100 for category %q", cc.Category.Name)
		}
		if cc.CategoryLimit.Valid && cc.CategoryLimit.Decimal.IsNegative() {
			return fmt.Errorf("category_limit must not be negative for category %q", cc.Category.Name)
		}
	}
	return nil
}
