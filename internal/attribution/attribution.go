// Package attribution checks each spend against the user's confirmed
// cashback choices and explains how it could have earned more.
package attribution

import (
	"fmt"
	"log/slog"
	"strings"

	"cashback-advisor/internal/domain"

	"github.com/shopspring/decimal"
)

const UnknownMerchant = "Unknown Merchant"

var hundred = decimal.NewFromInt(100)

type Attributor struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Attributor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Attributor{logger: logger}
}

// Attribute returns verdicts for completed debit transactions grouped by the
// transaction's category. Transactions without a category, bank or parseable
// amount are skipped.
func (a *Attributor) Attribute(txs []domain.BankTransaction, confirmed domain.Confirmed) map[string][]domain.TransactionVerdict {
	out := make(map[string][]domain.TransactionVerdict)
	skipped := 0
	for _, tx := range txs {
		if !IsCompletedDebit(tx) {
			continue
		}
		verdict, ok := a.attributeOne(tx, confirmed)
		if !ok {
			skipped++
			continue
		}
		out[tx.Category] = append(out[tx.Category], verdict)
	}
	a.logger.Debug("transactions attributed", "total", len(txs), "skipped", skipped, "categories", len(out))
	return out
}

func (a *Attributor) attributeOne(tx domain.BankTransaction, confirmed domain.Confirmed) (domain.TransactionVerdict, bool) {
	if strings.TrimSpace(tx.Category) == "" || strings.TrimSpace(tx.Bank) == "" {
		a.logger.Debug("transaction skipped: no category or bank", "transaction_id", tx.ID)
		return domain.TransactionVerdict{}, false
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(tx.Amount))
	if err != nil {
		a.logger.Debug("transaction skipped: bad amount", "transaction_id", tx.ID, "amount", tx.Amount)
		return domain.TransactionVerdict{}, false
	}
	amount = amount.Abs()

	v := domain.TransactionVerdict{
		TransactionID:    tx.ID,
		Bank:             tx.Bank,
		MerchantName:     MerchantName(tx),
		Amount:           amount,
		CashbackReceived: decimal.Zero,
		BookedAt:         tx.BookedAt,
	}

	if rate, ok := confirmed.Rate(tx.Bank, tx.Category); ok {
		v.CashbackReceived = amount.Mul(rate).Div(hundred).Round(2)
		v.IsOptimal = true
		return v, true
	}
	if bank, _, ok := confirmed.BestBank(tx.Category); ok {
		v.Advice = fmt.Sprintf("Consider using a card from %s for %s to maximize cashback.", bank, tx.Category)
		return v, true
	}
	v.Advice = fmt.Sprintf("No cashback category selected for '%s' among your chosen banks.", tx.Category)
	return v, true
}

// MerchantName falls back from the merchant name to the memo.
func MerchantName(tx domain.BankTransaction) string {
	if name := strings.TrimSpace(tx.MerchantName); name != "" {
		return name
	}
	if info := strings.TrimSpace(tx.Information); info != "" {
		return info
	}
	return UnknownMerchant
}

func IsCompletedDebit(tx domain.BankTransaction) bool {
	return strings.EqualFold(strings.TrimSpace(tx.Status), "completed") &&
		strings.EqualFold(strings.TrimSpace(tx.Direction), "debit")
}
