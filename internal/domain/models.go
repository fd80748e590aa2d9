// internal/domain/models.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Bank struct {
	ID   int    `json:"-"`
	Name string `json:"name"`
}

type Category struct {
	ID   int    `json:"-"`
	Name string `json:"name"`
}

// CashbackCategory — категория + процент и лимит по категории.
// Пустой CategoryLimit означает отсутствие лимита.
type CashbackCategory struct {
	Category      Category            `json:"category"`
	Percent       decimal.Decimal     `json:"percent"`
	CategoryLimit decimal.NullDecimal `json:"category_limit"`
}

// Значения по умолчанию для банков, добавленных без лимитов (бот, старые клиенты API).
const (
	DefaultBankLimit     = 5000
	DefaultMaxCategories = 3
)

// BankWithCategories — банк, его общий лимит и доступные категории.
type BankWithCategories struct {
	Bank          Bank               `json:"bank"`
	BankLimit     decimal.Decimal    `json:"bank_limit"`
	MaxCategories int                `json:"max_categories"`
	Categories    []CashbackCategory `json:"categories"`
}

type CashbackMonth struct {
	Month  string               `json:"month"`
	UserID int64                `json:"-"`
	Banks  []BankWithCategories `json:"banks"`
}

// Offers flattens the month into catalog rows in declaration order.
func (m *CashbackMonth) Offers() []CashbackOffer {
	if m == nil {
		return nil
	}
	var offers []CashbackOffer
	for _, bwc := range m.Banks {
		for _, cc := range bwc.Categories {
			offers = append(offers, CashbackOffer{
				Bank:          bwc.Bank.Name,
				Category:      cc.Category.Name,
				Percent:       cc.Percent,
				CategoryLimit: cc.CategoryLimit,
				BankLimit:     bwc.BankLimit,
				MaxCategories: bwc.MaxCategories,
			})
		}
	}
	return offers
}

// SpendRecord is one normalized expense: the month it was booked in
// (first day, UTC), its category and a non-negative amount.
type SpendRecord struct {
	Month    time.Time       `json:"month"`
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

type CategoryPrediction struct {
	Category        string          `json:"category"`
	PredictedAmount decimal.Decimal `json:"predicted_amount"`
}

// CashbackOffer is a single catalog row. All offers of one bank share
// BankLimit and MaxCategories.
type CashbackOffer struct {
	Bank          string              `json:"bank"`
	Category      string              `json:"category"`
	Percent       decimal.Decimal     `json:"percent"`
	CategoryLimit decimal.NullDecimal `json:"category_limit"`
	BankLimit     decimal.Decimal     `json:"bank_limit"`
	MaxCategories int                 `json:"max_categories_in_bank"`
}

// Rule returns the declared part of the offer.
func (o CashbackOffer) Rule() CatalogRule {
	return CatalogRule{Bank: o.Bank, Category: o.Category, Percent: o.Percent}
}

// ChosenCashback is one category picked by the optimizer.
// Projected is the per-category cashback before the bank limit,
// Amount is what is left of it after the bank limit is applied.
type ChosenCashback struct {
	Bank      string          `json:"bank"`
	Category  string          `json:"category"`
	Percent   decimal.Decimal `json:"percent"`
	Projected decimal.Decimal `json:"projected"`
	Amount    decimal.Decimal `json:"amount"`
}

type CatalogRule struct {
	Bank     string          `json:"bank_name"`
	Category string          `json:"category"`
	Percent  decimal.Decimal `json:"percent"`
}

// CashbackRuleDecision is a catalog row annotated with the optimizer's pick.
type CashbackRuleDecision struct {
	Bank     string              `json:"bank_name"`
	Category string              `json:"category"`
	Percent  decimal.Decimal     `json:"percent"`
	Chosen   bool                `json:"chosen"`
	Amount   decimal.NullDecimal `json:"total_cb"`
}

// BankTransaction is a raw transaction as fetched from a bank API and
// tagged with the bank it came from.
type BankTransaction struct {
	ID           string    `json:"transactionId"`
	Bank         string    `json:"bank_name"`
	Status       string    `json:"status"`
	Direction    string    `json:"creditDebitIndicator"`
	Amount       string    `json:"amount"`
	Currency     string    `json:"currency,omitempty"`
	Category     string    `json:"category,omitempty"`
	MerchantName string    `json:"merchant_name,omitempty"`
	Information  string    `json:"transactionInformation,omitempty"`
	BookedAt     time.Time `json:"bookingDateTime"`
}

// ConfirmedChoice is a (bank, category) the user agreed to activate.
type ConfirmedChoice struct {
	Bank     string          `json:"bank_name" validate:"required,notblank"`
	Category string          `json:"category" validate:"required,notblank"`
	Percent  decimal.Decimal `json:"percent" validate:"percent"`
}

type TransactionVerdict struct {
	TransactionID    string          `json:"transaction_id,omitempty"`
	Bank             string          `json:"bank_name"`
	MerchantName     string          `json:"merchant_name"`
	Amount           decimal.Decimal `json:"amount"`
	CashbackReceived decimal.Decimal `json:"cashback_received"`
	IsOptimal        bool            `json:"is_optimal"`
	Advice           string          `json:"advice"`
	BookedAt         time.Time       `json:"booked_at"`
}

// Recommendation is the stored outcome of one advisor run.
type Recommendation struct {
	ID          string                 `json:"id"`
	UserID      int64                  `json:"-"`
	Month       string                 `json:"month"`
	CreatedAt   time.Time              `json:"created_at"`
	Predictions []CategoryPrediction   `json:"predictions"`
	Decisions   []CashbackRuleDecision `json:"decisions"`
}

// Confirmation is the set of choices a user confirmed for a month.
type Confirmation struct {
	UserID      int64             `json:"-"`
	Month       string            `json:"month"`
	ConfirmedAt time.Time         `json:"confirmed_at"`
	Choices     []ConfirmedChoice `json:"choices"`
}
