package optimizer

import (
	"errors"
	"reflect"
	"testing"

	"cashback-advisor/internal/domain"
	"cashback-advisor/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func limit(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(d(s))
}

func offer(bank, category, percent string, catLimit decimal.NullDecimal, bankLimit string, maxCats int) domain.CashbackOffer {
	return domain.CashbackOffer{
		Bank:          bank,
		Category:      category,
		Percent:       d(percent),
		CategoryLimit: catLimit,
		BankLimit:     d(bankLimit),
		MaxCategories: maxCats,
	}
}

func TestOptimize_NamedTieKeepsFirstCatalogRow(t *testing.T) {
	preds := domain.Predictions{"Groceries": d("1000"), "Dining": d("500")}
	offers := []domain.CashbackOffer{
		offer("A", "Groceries", "5", limit("100"), "1000", 1),
		offer("A", "Dining", "10", limit("80"), "1000", 1),
	}

	got, err := New(Options{}).Optimize(preds, offers)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Category != "Groceries" {
		t.Fatalf("expected Groceries alone, got %+v", got)
	}
	if !got[0].Amount.Equal(d("50")) {
		t.Errorf("amount: got %s, want 50", got[0].Amount)
	}

	// reversing the catalog flips the tie
	offers[0], offers[1] = offers[1], offers[0]
	got, err = New(Options{}).Optimize(preds, offers)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Category != "Dining" {
		t.Fatalf("expected Dining alone, got %+v", got)
	}
}

func TestOptimize_NearTieDecidedBeforeRounding(t *testing.T) {
	preds := domain.Predictions{"Cafe": d("500.01"), "Taxi": d("500.04")}
	offers := []domain.CashbackOffer{
		offer("A", "Cafe", "10", decimal.NullDecimal{}, "1000", 1),
		offer("A", "Taxi", "10", decimal.NullDecimal{}, "1000", 1),
	}

	got, err := New(Options{}).Optimize(preds, offers)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Category != "Taxi" {
		t.Fatalf("expected Taxi (50.004 > 50.001), got %+v", got)
	}
	if !got[0].Amount.Equal(d("50")) || !got[0].Projected.Equal(d("50")) {
		t.Errorf("output not rounded: projected %s amount %s", got[0].Projected, got[0].Amount)
	}
}

func TestOptimize_AllOfferWinsTie(t *testing.T) {
	preds := domain.Predictions{"Groceries": d("1000"), "Dining": d("500")}
	offers := []domain.CashbackOffer{
		offer("B", "Groceries", "5", limit("30"), "50", 1),
		offer("B", " ALL ", "2", limit("50"), "50", 1),
	}

	got, err := New(Options{}).Optimize(preds, offers)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one row, got %+v", got)
	}
	if got[0].Category != " ALL " {
		t.Errorf("category: got %q, want original casing %q", got[0].Category, " ALL ")
	}
	if !got[0].Amount.Equal(d("30")) {
		t.Errorf("amount: got %s, want 30", got[0].Amount)
	}
}

func TestOptimize_NamedBeatsAll(t *testing.T) {
	preds := domain.Predictions{"Groceries": d("1000"), "Dining": d("500")}
	offers := []domain.CashbackOffer{
		offer("B", "all", "1", decimal.NullDecimal{}, "500", 2),
		offer("B", "Groceries", "5", decimal.NullDecimal{}, "500", 2),
		offer("B", "Dining", "3", decimal.NullDecimal{}, "500", 2),
	}
	got, err := New(Options{}).Optimize(preds, offers)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var cats []string
	for _, c := range got {
		cats = append(cats, c.Category)
		if domain.IsAllCategory(c.Category) {
			t.Fatalf("all combined with named categories: %+v", got)
		}
	}
	if !reflect.DeepEqual(cats, []string{"Groceries", "Dining"}) {
		t.Errorf("got %v", cats)
	}
}

func TestOptimize_CapsMakeGreedyWrong(t *testing.T) {
	// Greedy by uncapped cashback would take Travel (100), but its cap is 20.
	preds := domain.Predictions{"Travel": d("1000"), "Pharmacy": d("400"), "Taxi": d("300")}
	offers := []domain.CashbackOffer{
		offer("C", "Travel", "10", limit("20"), "1000", 2),
		offer("C", "Pharmacy", "10", decimal.NullDecimal{}, "1000", 2),
		offer("C", "Taxi", "10", decimal.NullDecimal{}, "1000", 2),
	}
	got, err := New(Options{}).Optimize(preds, offers)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var cats []string
	for _, c := range got {
		cats = append(cats, c.Category)
	}
	if !reflect.DeepEqual(cats, []string{"Pharmacy", "Taxi"}) {
		t.Errorf("got %v, want [Pharmacy Taxi]", cats)
	}
}

func TestOptimize_BankLimitBoundsOutput(t *testing.T) {
	preds := domain.Predictions{"Groceries": d("2000"), "Dining": d("1000")}
	offers := []domain.CashbackOffer{
		offer("D", "Groceries", "5", decimal.NullDecimal{}, "120", 2),
		offer("D", "Dining", "5", decimal.NullDecimal{}, "120", 2),
	}
	got, err := New(Options{}).Optimize(preds, offers)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) > 2 {
		t.Fatalf("more categories than allowed: %+v", got)
	}
	projected, realized := decimal.Zero, decimal.Zero
	for _, c := range got {
		projected = projected.Add(c.Projected)
		realized = realized.Add(c.Amount)
	}
	if !projected.Equal(d("150")) {
		t.Errorf("projected: got %s, want 150", projected)
	}
	if !realized.Equal(d("120")) {
		t.Errorf("realized: got %s, want 120", realized)
	}
}

func TestOptimize_EmptyPredictionsYieldZeroAmounts(t *testing.T) {
	offers := []domain.CashbackOffer{
		offer("E", "Groceries", "5", limit("100"), "1000", 3),
		offer("E", "Dining", "10", limit("80"), "1000", 3),
	}
	got, err := New(Options{}).Optimize(domain.Predictions{}, offers)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected both named categories, got %+v", got)
	}
	for _, c := range got {
		if !c.Amount.IsZero() {
			t.Errorf("%s: got %s, want 0", c.Category, c.Amount)
		}
	}
}

func TestOptimize_MultipleBanksSortedAndIdempotent(t *testing.T) {
	preds := domain.Predictions{"Groceries": d("1000"), "Dining": d("500")}
	offers := []domain.CashbackOffer{
		offer("zbank", "Dining", "3", decimal.NullDecimal{}, "1000", 1),
		offer("Abank", "Groceries", "1", decimal.NullDecimal{}, "1000", 1),
		offer("ZBANK", "Groceries", "2", decimal.NullDecimal{}, "1000", 1),
	}
	opt := New(Options{})
	first, err := opt.Optimize(preds, offers)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, _ := opt.Optimize(preds, offers)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("non-deterministic output:\n%+v\n%+v", first, second)
	}
	if len(first) != 2 || first[0].Bank != "Abank" || first[1].Bank != "zbank" || first[1].Category != "Groceries" {
		t.Errorf("unexpected result %+v", first)
	}
}

func TestOptimize_InvalidCatalog(t *testing.T) {
	tests := []struct {
		name   string
		offers []domain.CashbackOffer
	}{
		{"inconsistent bank limit", []domain.CashbackOffer{
			offer("A", "Groceries", "5", decimal.NullDecimal{}, "100", 1),
			offer("A", "Dining", "5", decimal.NullDecimal{}, "200", 1),
		}},
		{"inconsistent max categories", []domain.CashbackOffer{
			offer("A", "Groceries", "5", decimal.NullDecimal{}, "100", 1),
			offer("a ", "Dining", "5", decimal.NullDecimal{}, "100", 2),
		}},
		{"zero max categories", []domain.CashbackOffer{
			offer("A", "Groceries", "5", decimal.NullDecimal{}, "100", 0),
		}},
		{"negative percent", []domain.CashbackOffer{
			offer("A", "Groceries", "-1", decimal.NullDecimal{}, "100", 1),
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(Options{}).Optimize(domain.Predictions{}, tc.offers)
			if !errors.Is(err, domain.ErrInvalidCatalog) {
				t.Fatalf("expected ErrInvalidCatalog, got %v", err)
			}
		})
	}
}

func TestOptimize_TruncatedSearchKeepsBestSoFar(t *testing.T) {
	preds := domain.Predictions{"A": d("100"), "B": d("200"), "C": d("300")}
	offers := []domain.CashbackOffer{
		offer("X", "A", "10", decimal.NullDecimal{}, "1000", 1),
		offer("X", "B", "10", decimal.NullDecimal{}, "1000", 1),
		offer("X", "C", "10", decimal.NullDecimal{}, "1000", 1),
	}
	m := metrics.New()
	got, err := New(Options{MaxSubsets: 2, Metrics: m}).Optimize(preds, offers)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Category != "B" {
		t.Fatalf("expected best of first two subsets (B), got %+v", got)
	}
	if v := testutil.ToFloat64(m.SearchTruncated); v != 1 {
		t.Errorf("truncated counter: got %v, want 1", v)
	}
	if v := testutil.ToFloat64(m.SubsetsEnumerated); v != 2 {
		t.Errorf("subsets counter: got %v, want 2", v)
	}
}

func TestCombinations(t *testing.T) {
	c := NewCombinations(4, 2)
	var got [][]int
	for c.Next() {
		got = append(got, append([]int(nil), c.Indices()...))
	}
	want := [][]int{{0, 1}, {0, 2}, {0, 3}, {1, 2}, {1, 3}, {2, 3}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	c.Reset()
	count := 0
	for c.Next() {
		count++
	}
	if count != 6 {
		t.Errorf("after reset: got %d subsets, want 6", count)
	}

	if NewCombinations(2, 3).Next() {
		t.Error("k > n must yield nothing")
	}
}

func TestBinomial(t *testing.T) {
	tests := []struct {
		n, k int
		want uint64
	}{
		{5, 2, 10},
		{10, 0, 1},
		{3, 4, 0},
		{60, 30, 1000},
	}
	for _, tc := range tests {
		if got := Binomial(tc.n, tc.k, 1000); got != tc.want {
			t.Errorf("C(%d,%d): got %d, want %d", tc.n, tc.k, got, tc.want)
		}
	}
}
