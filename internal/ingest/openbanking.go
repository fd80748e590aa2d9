// Package ingest turns raw Open Banking transaction payloads into bank-tagged
// transactions and normalized spend records.
package ingest

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cashback-advisor/internal/domain"
)

// OBTransaction is a transaction as returned by the account transaction
// history endpoint of an Open Banking API.
type OBTransaction struct {
	TransactionID          string      `json:"transactionId"`
	Status                 string      `json:"status"`
	CreditDebitIndicator   string      `json:"creditDebitIndicator"`
	Amount                 OBAmount    `json:"amount"`
	BookingDateTime        OBTime      `json:"bookingDateTime"`
	TransactionInformation string      `json:"transactionInformation"`
	Merchant               *OBMerchant `json:"merchant,omitempty"`
	BankName               string      `json:"_bank_name,omitempty"`
	AccountID              string      `json:"_account_id,omitempty"`
}

type OBAmount struct {
	Amount   Number `json:"amount"`
	Currency string `json:"currency"`
}

type OBMerchant struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

// Number holds an amount sent either as a JSON number or as a string.
// Values are kept verbatim and parsed later.
type Number string

func (n *Number) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*n = Number(s)
		return nil
	}
	*n = Number(strings.TrimSpace(string(b)))
	return nil
}

func (n Number) String() string { return string(n) }

// OBTime accepts RFC 3339 timestamps with or without a zone offset.
type OBTime struct{ time.Time }

var obTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func (t *OBTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("booking time: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range obTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("booking time %q: unsupported format", s)
}

func (t OBTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.UTC().Format(time.RFC3339))
}

// ToDomain flattens the transaction; bank is used only when the transaction
// carries no bank tag of its own.
func (t OBTransaction) ToDomain(bank string) domain.BankTransaction {
	if strings.TrimSpace(t.BankName) != "" {
		bank = t.BankName
	}
	tx := domain.BankTransaction{
		ID:          t.TransactionID,
		Bank:        strings.TrimSpace(bank),
		Status:      t.Status,
		Direction:   t.CreditDebitIndicator,
		Amount:      t.Amount.Amount.String(),
		Currency:    t.Amount.Currency,
		Information: t.TransactionInformation,
		BookedAt:    t.BookingDateTime.Time,
	}
	if t.Merchant != nil {
		tx.MerchantName = t.Merchant.Name
		tx.Category = t.Merchant.Category
	}
	return tx
}

type envelope struct {
	Data struct {
		Transaction []OBTransaction `json:"transaction"`
	} `json:"data"`
}

// ParseOpenBanking decodes either the {"data":{"transaction":[...]}} envelope
// or a bare list of transactions.
func ParseOpenBanking(data []byte, bank string) ([]domain.BankTransaction, error) {
	trimmed := strings.TrimSpace(string(data))
	var raw []OBTransaction
	switch {
	case trimmed == "" || trimmed == "null":
		return nil, nil
	case strings.HasPrefix(trimmed, "["):
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode transaction list: %w", err)
		}
	default:
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("decode transaction envelope: %w", err)
		}
		raw = env.Data.Transaction
	}
	return ToDomain(raw, bank), nil
}

func ToDomain(raw []OBTransaction, bank string) []domain.BankTransaction {
	out := make([]domain.BankTransaction, 0, len(raw))
	for _, t := range raw {
		out = append(out, t.ToDomain(bank))
	}
	return out
}
