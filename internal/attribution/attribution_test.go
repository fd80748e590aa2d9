package attribution

import (
	"strings"
	"testing"

	"cashback-advisor/internal/domain"

	"github.com/shopspring/decimal"
)

func tx(id, bank, status, direction, amount, category, merchant, info string) domain.BankTransaction {
	return domain.BankTransaction{
		ID:           id,
		Bank:         bank,
		Status:       status,
		Direction:    direction,
		Amount:       amount,
		Category:     category,
		MerchantName: merchant,
		Information:  info,
	}
}

func TestAttribute(t *testing.T) {
	confirmed := domain.NewConfirmed([]domain.ConfirmedChoice{
		{Bank: "Sbank", Category: "Groceries", Percent: decimal.NewFromInt(5)},
		{Bank: "Abank", Category: "Dining", Percent: decimal.NewFromInt(3)},
		{Bank: "Vbank", Category: "dining", Percent: decimal.NewFromInt(7)},
	})
	txs := []domain.BankTransaction{
		tx("1", "sbank", "completed", "Debit", "1000.00", "Groceries", "Perekrestok", ""),
		tx("2", "sbank", "completed", "Debit", "200", "Dining", "", "Coffee Bar"),
		tx("3", "sbank", "completed", "Debit", "150", "Pharmacy", "", ""),
		tx("4", "sbank", "completed", "Credit", "5000", "Salary", "", ""),
		tx("5", "sbank", "pending", "Debit", "99", "Groceries", "", ""),
		tx("6", "", "completed", "Debit", "99", "Groceries", "", ""),
		tx("7", "sbank", "completed", "Debit", "abc", "Groceries", "", ""),
		tx("8", "sbank", "completed", "Debit", "10", "", "", ""),
	}

	got := New(nil).Attribute(txs, confirmed)

	if len(got) != 3 {
		t.Fatalf("expected 3 categories, got %d: %+v", len(got), got)
	}

	groceries := got["Groceries"]
	if len(groceries) != 1 {
		t.Fatalf("expected 1 groceries verdict, got %+v", groceries)
	}
	g := groceries[0]
	if !g.IsOptimal || g.Advice != "" || !g.CashbackReceived.Equal(decimal.NewFromInt(50)) {
		t.Errorf("groceries verdict: %+v", g)
	}
	if g.MerchantName != "Perekrestok" {
		t.Errorf("merchant: got %q", g.MerchantName)
	}

	dining := got["Dining"][0]
	if dining.IsOptimal || !dining.CashbackReceived.IsZero() {
		t.Errorf("dining verdict: %+v", dining)
	}
	if !strings.Contains(dining.Advice, "Vbank") {
		t.Errorf("advice should recommend the highest rate bank, got %q", dining.Advice)
	}
	if dining.MerchantName != "Coffee Bar" {
		t.Errorf("merchant fallback to memo: got %q", dining.MerchantName)
	}

	pharmacy := got["Pharmacy"][0]
	if pharmacy.IsOptimal || !strings.Contains(pharmacy.Advice, "No cashback category selected") {
		t.Errorf("pharmacy verdict: %+v", pharmacy)
	}
	if pharmacy.MerchantName != UnknownMerchant {
		t.Errorf("merchant fallback: got %q", pharmacy.MerchantName)
	}
}

func TestAttribute_NoConfirmed(t *testing.T) {
	txs := []domain.BankTransaction{
		tx("1", "sbank", "completed", "Debit", "10", "Taxi", "Yandex Go", ""),
	}
	got := New(nil).Attribute(txs, domain.NewConfirmed(nil))
	if v := got["Taxi"]; len(v) != 1 || v[0].IsOptimal {
		t.Fatalf("got %+v", got)
	}
}

func TestBestBankTieIsAlphabetical(t *testing.T) {
	confirmed := domain.NewConfirmed([]domain.ConfirmedChoice{
		{Bank: "Zbank", Category: "Taxi", Percent: decimal.NewFromInt(5)},
		{Bank: "Abank", Category: "Taxi", Percent: decimal.NewFromInt(5)},
	})
	bank, _, ok := confirmed.BestBank("taxi")
	if !ok || bank != "Abank" {
		t.Fatalf("got %q, %v", bank, ok)
	}
}

func TestBestBankIgnoresZeroRates(t *testing.T) {
	confirmed := domain.NewConfirmed([]domain.ConfirmedChoice{
		{Bank: "Abank", Category: "Taxi", Percent: decimal.Zero},
		{Bank: "Zbank", Category: "Taxi", Percent: decimal.NewFromInt(1)},
		{Bank: "Abank", Category: "Cinema", Percent: decimal.Zero},
	})
	if bank, _, ok := confirmed.BestBank("taxi"); !ok || bank != "Zbank" {
		t.Errorf("taxi: got %q, %v", bank, ok)
	}
	if bank, _, ok := confirmed.BestBank("cinema"); ok {
		t.Errorf("cinema: zero rate advised as %q", bank)
	}

	txs := []domain.BankTransaction{tx("1", "Bbank", "Completed", "Debit", "-100", "Cinema", "", "")}
	got := New(nil).Attribute(txs, confirmed)
	if v := got["Cinema"]; len(v) != 1 || !strings.HasPrefix(v[0].Advice, "No cashback category selected") {
		t.Errorf("cinema verdict: %+v", got)
	}
}
