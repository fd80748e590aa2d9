// Package catalog loads the declared cashback catalog from a TOML file.
//
// Example:
//
//	month = "2025-10"
//
//	[[bank]]
//	name = "Sbank"
//	bank_limit = 5000
//	max_categories = 3
//
//	  [[bank.offer]]
//	  category = "Groceries"
//	  percent = 5
//	  category_limit = 1000
//
//	  [[bank.offer]]
//	  category = "All"
//	  percent = 1
package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cashback-advisor/internal/domain"
	val "cashback-advisor/internal/validator"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type File struct {
	Month string `toml:"month" validate:"omitempty,yearmonth"`
	Banks []Bank `toml:"bank" validate:"required,min=1,dive"`
}

type Bank struct {
	Name          string  `toml:"name" validate:"required,notblank"`
	BankLimit     float64 `toml:"bank_limit" validate:"gte=0"`
	MaxCategories int     `toml:"max_categories" validate:"min=1"`
	Offers        []Offer `toml:"offer" validate:"required,min=1,dive"`
}

type Offer struct {
	Category      string   `toml:"category" validate:"required,notblank"`
	Percent       float64  `toml:"percent" validate:"percent"`
	CategoryLimit *float64 `toml:"category_limit" validate:"omitempty,gte=0"`
}

// Load reads and validates a catalog file.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

func Decode(r io.Reader) (*File, error) {
	var file File
	md, err := toml.NewDecoder(r).Decode(&file)
	if err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%w: unknown keys %v", domain.ErrInvalidCatalog, undecoded)
	}
	if err := file.Validate(); err != nil {
		return nil, err
	}
	return &file, nil
}

// Validate rejects malformed rows and banks declared twice.
func (f *File) Validate() error {
	if err := val.Validate.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, e := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", e.Namespace(), e.Tag()))
			}
			return fmt.Errorf("%w: %s", domain.ErrInvalidCatalog, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", domain.ErrInvalidCatalog, err)
	}

	seen := make(map[string]bool, len(f.Banks))
	for _, b := range f.Banks {
		key := domain.NormalizeKey(b.Name)
		if seen[key] {
			return fmt.Errorf("%w: bank %q declared twice", domain.ErrInvalidCatalog, b.Name)
		}
		seen[key] = true
	}
	return nil
}

// BanksWithCategories converts the file into the storage representation.
func (f *File) BanksWithCategories() []domain.BankWithCategories {
	out := make([]domain.BankWithCategories, 0, len(f.Banks))
	for _, b := range f.Banks {
		bwc := domain.BankWithCategories{
			Bank:          domain.Bank{Name: strings.TrimSpace(b.Name)},
			BankLimit:     decimal.NewFromFloat(b.BankLimit),
			MaxCategories: b.MaxCategories,
		}
		for _, o := range b.Offers {
			cc := domain.CashbackCategory{
				Category: domain.Category{Name: strings.TrimSpace(o.Category)},
				Percent:  decimal.NewFromFloat(o.Percent),
			}
			if o.CategoryLimit != nil {
				cc.CategoryLimit = decimal.NewNullDecimal(decimal.NewFromFloat(*o.CategoryLimit))
			}
			bwc.Categories = append(bwc.Categories, cc)
		}
		out = append(out, bwc)
	}
	return out
}

// Offers flattens the file into catalog rows.
func (f *File) Offers() []domain.CashbackOffer {
	m := domain.CashbackMonth{Month: f.Month, Banks: f.BanksWithCategories()}
	return m.Offers()
}
