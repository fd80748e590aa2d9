package ingest

import (
	"log/slog"
	"strings"

	"cashback-advisor/internal/attribution"
	"cashback-advisor/internal/domain"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// OtherPayments is the category of spends that could not be classified.
const OtherPayments = "Other Payments"

// KnownCategories are memo texts accepted as a category when the merchant
// carries none.
var KnownCategories = []string{
	"Hair Cut", "Зарплата", "Транспорт", "Grocery", "Food", "Cafe", "Restaurant",
	"Clothing", "Shoes", "Personal Items", "Pharmacy", "Drugstore",
	"Personal Care", "Eating/Going Out",
}

// ExcludedCategories are not spending and never enter the forecast.
var ExcludedCategories = []string{
	"Зарплата", OtherPayments, "Платеж По Кредиту", "Payment", "Transfer", "Salary",
}

type Normalizer struct {
	known    map[string]struct{}
	excluded map[string]struct{}
	logger   *slog.Logger
}

// NewNormalizer uses the default known and excluded category lists when the
// corresponding argument is nil.
func NewNormalizer(known, excluded []string, logger *slog.Logger) *Normalizer {
	if known == nil {
		known = KnownCategories
	}
	if excluded == nil {
		excluded = ExcludedCategories
	}
	if logger == nil {
		logger = slog.Default()
	}
	n := &Normalizer{
		known:    make(map[string]struct{}, len(known)),
		excluded: make(map[string]struct{}, len(excluded)),
		logger:   logger,
	}
	for _, c := range known {
		n.known[domain.NormalizeKey(c)] = struct{}{}
	}
	for _, c := range excluded {
		n.excluded[domain.NormalizeKey(c)] = struct{}{}
	}
	return n
}

// Category resolves the spend category of a transaction in title case.
func (n *Normalizer) Category(tx domain.BankTransaction) string {
	category := OtherPayments
	switch {
	case strings.TrimSpace(tx.Category) != "":
		category = tx.Category
	case strings.TrimSpace(tx.Information) != "":
		if _, ok := n.known[domain.NormalizeKey(tx.Information)]; ok {
			category = tx.Information
		}
	}
	return TitleCase(category)
}

// Normalize keeps completed debit transactions outside the excluded
// categories and maps them to monthly spend records.
func (n *Normalizer) Normalize(txs []domain.BankTransaction) []domain.SpendRecord {
	out := make([]domain.SpendRecord, 0, len(txs))
	for _, tx := range txs {
		if !attribution.IsCompletedDebit(tx) {
			continue
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(tx.Amount))
		if err != nil {
			n.logger.Debug("spend skipped: bad amount", "transaction_id", tx.ID, "amount", tx.Amount)
			continue
		}
		if tx.BookedAt.IsZero() {
			n.logger.Debug("spend skipped: no booking time", "transaction_id", tx.ID)
			continue
		}
		category := n.Category(tx)
		if _, ok := n.excluded[domain.NormalizeKey(category)]; ok {
			continue
		}
		out = append(out, domain.SpendRecord{
			Month:    domain.MonthStart(tx.BookedAt),
			Category: category,
			Amount:   amount.Abs(),
		})
	}
	return out
}

// TitleCase trims s and upper-cases the first letter of every word.
func TitleCase(s string) string {
	return cases.Title(language.Und).String(strings.TrimSpace(s))
}
