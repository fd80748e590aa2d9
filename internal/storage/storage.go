// internal/storage/storage.go
package storage

import (
	"cashback-advisor/internal/domain"
	"context"
)

type BankStorage interface {
	CreateIfNotExists(ctx context.Context, name string) (int, error)
	FindByName(ctx context.Context, name string) (*domain.Bank, error)
}

type CategoryStorage interface {
	CreateCategoryIfNotExists(ctx context.Context, name string) (int, error)
	FindCategoryByName(ctx context.Context, name string) (*domain.Category, error)
}

// CashbackStorage keeps the declared cashback catalog per user and month.
// GetMonth returns nil, nil when nothing is stored.
type CashbackStorage interface {
	SaveMonth(ctx context.Context, userID int64, monthTime string, bankCategories []domain.BankWithCategories) error
	GetMonth(ctx context.Context, userID int64, monthTime string) (*domain.CashbackMonth, error)
	SearchByCategory(ctx context.Context, userID int64, monthTime string, categoryName string) ([]domain.Bank, error)
	SearchByBank(ctx context.Context, userID int64, monthTime string, bankName string) ([]domain.Category, error)
	UpdateBankCategories(ctx context.Context, userID int64, monthTime string, bankName string, categories []domain.CashbackCategory) error
	PatchMonth(ctx context.Context, userID int64, monthTime string, bankCategories []domain.BankWithCategories) error
	DeleteBankFromMonth(ctx context.Context, userID int64, monthTime string, bankName string) error
	DeleteCategoryFromBank(ctx context.Context, userID int64, monthTime string, bankName string, categoryName string) error
}

// RecommendationStorage keeps the latest recommendation per user and month;
// saving again overwrites it. GetRecommendation returns nil, nil when absent.
type RecommendationStorage interface {
	SaveRecommendation(ctx context.Context, rec *domain.Recommendation) error
	GetRecommendation(ctx context.Context, userID int64, monthTime string) (*domain.Recommendation, error)
}

// ConfirmationStorage keeps the confirmed choices per user and month.
type ConfirmationStorage interface {
	SaveConfirmation(ctx context.Context, c *domain.Confirmation) error
	GetConfirmation(ctx context.Context, userID int64, monthTime string) (*domain.Confirmation, error)
}

type Storage interface {
	BankStorage
	CategoryStorage
	CashbackStorage
	RecommendationStorage
	ConfirmationStorage
}
