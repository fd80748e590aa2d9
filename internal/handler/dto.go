// internal/handler/dto.go
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cashback-advisor/internal/domain"
	val "cashback-advisor/internal/validator"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type CategoryRequest struct {
	Name          string   `json:"name" validate:"required,notblank"`
	Percent       float64  `json:"percent" validate:"percent"`
	CategoryLimit *float64 `json:"category_limit" validate:"omitempty,gte=0"`
}

// BankRequest — банк с категориями. Без bank_limit и max_categories
// берутся значения по умолчанию.
type BankRequest struct {
	Name          string            `json:"name" validate:"required,notblank"`
	BankLimit     *float64          `json:"bank_limit" validate:"omitempty,gte=0"`
	MaxCategories *int              `json:"max_categories" validate:"omitempty,min=1"`
	Categories    []CategoryRequest `json:"categories" validate:"required,min=1,dive"`
}

type SaveMonthRequest struct {
	Month string        `json:"month" validate:"required,yearmonth"`
	Banks []BankRequest `json:"banks" validate:"required,min=1,dive"`
}

type UpdateCategoriesRequest struct {
	Categories []CategoryRequest `json:"categories" validate:"required,min=1,dive"`
}

// TransactionsRequest несёт выписку в формате Open Banking: конверт
// {"data":{"transaction":[...]}} или просто массив. Bank проставляется
// транзакциям без собственного тега банка.
type TransactionsRequest struct {
	Month        string          `json:"month" validate:"required,yearmonth"`
	Bank         string          `json:"bank_name"`
	Transactions json.RawMessage `json:"transactions"`
}

type ConfirmRequest struct {
	Month   string          `json:"month" validate:"required,yearmonth"`
	Choices []ChoiceRequest `json:"choices" validate:"omitempty,dive"`
}

type ChoiceRequest struct {
	Bank     string  `json:"bank_name" validate:"required,notblank"`
	Category string  `json:"category" validate:"required,notblank"`
	Percent  float64 `json:"percent" validate:"percent"`
}

func (r CategoryRequest) toDomain() domain.CashbackCategory {
	cc := domain.CashbackCategory{
		Category: domain.Category{Name: strings.TrimSpace(r.Name)},
		Percent:  decimal.NewFromFloat(r.Percent),
	}
	if r.CategoryLimit != nil {
		cc.CategoryLimit = decimal.NewNullDecimal(decimal.NewFromFloat(*r.CategoryLimit))
	}
	return cc
}

func (r BankRequest) toDomain() domain.BankWithCategories {
	bwc := domain.BankWithCategories{
		Bank:          domain.Bank{Name: strings.TrimSpace(r.Name)},
		BankLimit:     decimal.NewFromInt(domain.DefaultBankLimit),
		MaxCategories: domain.DefaultMaxCategories,
		Categories:    categoriesToDomain(r.Categories),
	}
	if r.BankLimit != nil {
		bwc.BankLimit = decimal.NewFromFloat(*r.BankLimit)
	}
	if r.MaxCategories != nil {
		bwc.MaxCategories = *r.MaxCategories
	}
	return bwc
}

func categoriesToDomain(reqs []CategoryRequest) []domain.CashbackCategory {
	out := make([]domain.CashbackCategory, len(reqs))
	for i, r := range reqs {
		out[i] = r.toDomain()
	}
	return out
}

func (r SaveMonthRequest) toDomain() []domain.BankWithCategories {
	out := make([]domain.BankWithCategories, len(r.Banks))
	for i, b := range r.Banks {
		out[i] = b.toDomain()
	}
	return out
}

func (r ConfirmRequest) toDomain() []domain.ConfirmedChoice {
	out := make([]domain.ConfirmedChoice, len(r.Choices))
	for i, ch := range r.Choices {
		out[i] = domain.ConfirmedChoice{
			Bank:     strings.TrimSpace(ch.Bank),
			Category: strings.TrimSpace(ch.Category),
			Percent:  decimal.NewFromFloat(ch.Percent),
		}
	}
	return out
}

func validateStruct(v any) error {
	err := val.Validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid input: %w", err)
	}
	errs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		errs = append(errs, fieldErrorToString(e))
	}
	return fmt.Errorf("invalid input: %s", strings.Join(errs, "; "))
}

func fieldErrorToString(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", e.Field())
	case "yearmonth":
		return fmt.Sprintf("%s must be in YYYY-MM format", e.Field())
	case "notblank":
		return fmt.Sprintf("%s must not be blank", e.Field())
	case "min":
		if e.Param() == "1" {
			return fmt.Sprintf("%s must not be empty", e.Field())
		}
		return fmt.Sprintf("%s is too short", e.Field())
	case "percent":
		return fmt.Sprintf("%s must be between 0 and 100", e.Field())
	case "gte":
		return fmt.Sprintf("%s must not be negative", e.Field())
	default:
		return fmt.Sprintf("%s is invalid", e.Field())
	}
}
