package validator

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestRules(t *testing.T) {
	type row struct {
		Month   string          `validate:"yearmonth"`
		Name    string          `validate:"notblank"`
		Percent decimal.Decimal `validate:"percent"`
	}
	tests := []struct {
		name string
		in   row
		ok   bool
	}{
		{"valid", row{"2024-12", "Сбер", decimal.NewFromInt(5)}, true},
		{"zero percent", row{"2024-12", "Сбер", decimal.Zero}, true},
		{"bad month", row{"2024-13", "Сбер", decimal.NewFromInt(5)}, false},
		{"blank name", row{"2024-12", " \t", decimal.NewFromInt(5)}, false},
		{"negative percent", row{"2024-12", "Сбер", decimal.NewFromInt(-1)}, false},
		{"percent over 100", row{"2024-12", "Сбер", decimal.RequireFromString("100.5")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate.Struct(tt.in)
			if (err == nil) != tt.ok {
				t.Errorf("Validate.Struct(%+v) = %v, want ok=%v", tt.in, err, tt.ok)
			}
		})
	}
}
