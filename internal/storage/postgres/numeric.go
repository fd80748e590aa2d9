package postgres

import (
	"github.com/shopspring/decimal"
)

// Numeric значения ходят через text, чтобы не терять точность.

func parseNumeric(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

func parseNullNumeric(s *string) (decimal.NullDecimal, error) {
	if s == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

func nullNumeric(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}
