package memory

import (
	"context"
	"errors"
	"testing"

	"cashback-advisor/internal/domain"

	"github.com/shopspring/decimal"
)

func bank(name, limit string, maxCats int, cats ...domain.CashbackCategory) domain.BankWithCategories {
	return domain.BankWithCategories{
		Bank:          domain.Bank{Name: name},
		BankLimit:     decimal.RequireFromString(limit),
		MaxCategories: maxCats,
		Categories:    cats,
	}
}

func cat(name, percent string) domain.CashbackCategory {
	return domain.CashbackCategory{
		Category: domain.Category{Name: name},
		Percent:  decimal.RequireFromString(percent),
	}
}

func TestSaveAndGetMonth_PreservesOrder(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()

	banks := []domain.BankWithCategories{
		bank("Tinkoff", "5000", 3, cat("Taxi", "5"), cat("Cafe", "3")),
		bank("Alfa", "3000", 1, cat("all", "1")),
	}
	if err := s.SaveMonth(ctx, 1, "2024-12", banks); err != nil {
		t.Fatalf("SaveMonth: %v", err)
	}

	got, err := s.GetMonth(ctx, 1, "2024-12")
	if err != nil {
		t.Fatalf("GetMonth: %v", err)
	}
	if got == nil || len(got.Banks) != 2 {
		t.Fatalf("expected 2 banks, got %+v", got)
	}
	if got.Banks[0].Bank.Name != "Tinkoff" || got.Banks[1].Bank.Name != "Alfa" {
		t.Errorf("bank order lost: %+v", got.Banks)
	}
	if got.Banks[0].Categories[0].Category.Name != "Taxi" {
		t.Errorf("category order lost: %+v", got.Banks[0].Categories)
	}
	if got.Banks[0].Bank.ID == 0 || got.Banks[0].Categories[0].Category.ID == 0 {
		t.Errorf("ids not assigned")
	}

	// mutating the result must not leak into the store
	got.Banks[0].Categories[0].Category.Name = "changed"
	again, _ := s.GetMonth(ctx, 1, "2024-12")
	if again.Banks[0].Categories[0].Category.Name != "Taxi" {
		t.Errorf("store was mutated through returned value")
	}
}

func TestGetMonth_Missing(t *testing.T) {
	s := NewStorage()
	got, err := s.GetMonth(context.Background(), 1, "2024-01")
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil; got %+v, %v", got, err)
	}
	if _, err := s.GetMonth(context.Background(), 1, "2024/01"); err == nil {
		t.Fatal("expected error for bad month")
	}
}

func TestSaveMonth_Validation(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()

	tests := []struct {
		name  string
		banks []domain.BankWithCategories
	}{
		{"empty bank name", []domain.BankWithCategories{bank(" ", "0", 1, cat("Taxi", "5"))}},
		{"no categories", []domain.BankWithCategories{bank("A", "0", 1)}},
		{"percent over 100", []domain.BankWithCategories{bank("A", "0", 1, cat("Taxi", "101"))}},
		{"zero max categories", []domain.BankWithCategories{bank("A", "0", 0, cat("Taxi", "5"))}},
		{"negative bank limit", []domain.BankWithCategories{bank("A", "-1", 1, cat("Taxi", "5"))}},
		{"duplicate bank", []domain.BankWithCategories{
			bank("A", "0", 1, cat("Taxi", "5")),
			bank("a", "0", 1, cat("Cafe", "5")),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.SaveMonth(ctx, 1, "2024-12", tt.banks); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestPatchMonth_MergesBanksAndCategories(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()

	if err := s.PatchMonth(ctx, 7, "2024-12", []domain.BankWithCategories{
		bank("Sber", "1000", 2, cat("Pharmacy", "5"), cat("Taxi", "10")),
	}); err != nil {
		t.Fatalf("first patch: %v", err)
	}
	if err := s.PatchMonth(ctx, 7, "2024-12", []domain.BankWithCategories{
		bank("sber", "2000", 3, cat("taxi", "7"), cat("Books", "4")),
		bank("VTB", "500", 1, cat("all", "1")),
	}); err != nil {
		t.Fatalf("second patch: %v", err)
	}

	got, _ := s.GetMonth(ctx, 7, "2024-12")
	if len(got.Banks) != 2 {
		t.Fatalf("expected 2 banks, got %d", len(got.Banks))
	}
	sber := got.Banks[0]
	if sber.Bank.Name != "Sber" || !sber.BankLimit.Equal(decimal.NewFromInt(2000)) || sber.MaxCategories != 3 {
		t.Errorf("bank not updated in place: %+v", sber)
	}
	if len(sber.Categories) != 3 {
		t.Fatalf("expected 3 categories, got %+v", sber.Categories)
	}
	if sber.Categories[1].Category.Name != "taxi" || !sber.Categories[1].Percent.Equal(decimal.NewFromInt(7)) {
		t.Errorf("taxi not replaced in place: %+v", sber.Categories[1])
	}
	if sber.Categories[2].Category.Name != "Books" {
		t.Errorf("new category not appended: %+v", sber.Categories)
	}
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	_ = s.SaveMonth(ctx, 1, "2024-12", []domain.BankWithCategories{
		bank("Tinkoff", "0", 3, cat("Taxi", "5"), cat("Cafe", "3")),
		bank("Alfa", "0", 3, cat("taxi", "2")),
	})

	banks, err := s.SearchByCategory(ctx, 1, "2024-12", "TAXI")
	if err != nil {
		t.Fatalf("SearchByCategory: %v", err)
	}
	if len(banks) != 2 || banks[0].Name != "Alfa" || banks[1].Name != "Tinkoff" {
		t.Errorf("unexpected banks: %+v", banks)
	}

	cats, err := s.SearchByBank(ctx, 1, "2024-12", "tinkoff")
	if err != nil {
		t.Fatalf("SearchByBank: %v", err)
	}
	if len(cats) != 2 || cats[0].Name != "Cafe" || cats[1].Name != "Taxi" {
		t.Errorf("unexpected categories: %+v", cats)
	}

	none, err := s.SearchByBank(ctx, 2, "2024-12", "tinkoff")
	if err != nil || len(none) != 0 {
		t.Errorf("expected nothing for another user, got %+v, %v", none, err)
	}
}

func TestUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	_ = s.SaveMonth(ctx, 1, "2024-12", []domain.BankWithCategories{
		bank("Tinkoff", "0", 3, cat("Taxi", "5"), cat("Cafe", "3")),
		bank("Alfa", "0", 3, cat("Books", "2")),
	})

	if err := s.UpdateBankCategories(ctx, 1, "2024-12", "Nope", []domain.CashbackCategory{cat("X", "1")}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.UpdateBankCategories(ctx, 1, "2024-12", "tinkoff", []domain.CashbackCategory{cat("Fuel", "4")}); err != nil {
		t.Fatalf("UpdateBankCategories: %v", err)
	}
	got, _ := s.GetMonth(ctx, 1, "2024-12")
	if len(got.Banks[0].Categories) != 1 || got.Banks[0].Categories[0].Category.Name != "Fuel" {
		t.Errorf("categories not replaced: %+v", got.Banks[0].Categories)
	}

	if err := s.DeleteCategoryFromBank(ctx, 1, "2024-12", "Alfa", "Taxi"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteCategoryFromBank(ctx, 1, "2024-12", "Alfa", "books"); err != nil {
		t.Fatalf("DeleteCategoryFromBank: %v", err)
	}
	got, _ = s.GetMonth(ctx, 1, "2024-12")
	if len(got.Banks) != 1 {
		t.Errorf("bank without categories should disappear: %+v", got.Banks)
	}

	if err := s.DeleteBankFromMonth(ctx, 1, "2024-12", "TINKOFF"); err != nil {
		t.Fatalf("DeleteBankFromMonth: %v", err)
	}
	got, _ = s.GetMonth(ctx, 1, "2024-12")
	if len(got.Banks) != 0 {
		t.Errorf("expected empty month, got %+v", got.Banks)
	}
}

func TestRecommendationsAndConfirmations(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()

	if rec, err := s.GetRecommendation(ctx, 1, "2024-12"); rec != nil || err != nil {
		t.Fatalf("expected nil, nil; got %+v, %v", rec, err)
	}

	first := &domain.Recommendation{ID: "a", UserID: 1, Month: "2024-12"}
	second := &domain.Recommendation{ID: "b", UserID: 1, Month: "2024-12"}
	_ = s.SaveRecommendation(ctx, first)
	_ = s.SaveRecommendation(ctx, second)
	rec, err := s.GetRecommendation(ctx, 1, "2024-12")
	if err != nil || rec == nil || rec.ID != "b" {
		t.Fatalf("expected overwritten recommendation, got %+v, %v", rec, err)
	}

	c := &domain.Confirmation{UserID: 1, Month: "2024-12", Choices: []domain.ConfirmedChoice{{Bank: "A", Category: "Taxi"}}}
	if err := s.SaveConfirmation(ctx, c); err != nil {
		t.Fatalf("SaveConfirmation: %v", err)
	}
	c.Choices[0].Bank = "mutated"
	got, err := s.GetConfirmation(ctx, 1, "2024-12")
	if err != nil || got == nil || got.Choices[0].Bank != "A" {
		t.Fatalf("unexpected confirmation: %+v, %v", got, err)
	}
}
