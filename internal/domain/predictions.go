package domain

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// AllCategory is the catalog sentinel for a bank-wide cashback rate.
const AllCategory = "all"

// NormalizeKey is the matching form of bank and category names.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsAllCategory reports whether a catalog category is the "all" sentinel.
func IsAllCategory(category string) bool {
	return NormalizeKey(category) == AllCategory
}

// Predictions maps a category to its predicted spend for the next month.
type Predictions map[string]decimal.Decimal

// Total is the predicted spend across all categories.
func (p Predictions) Total() decimal.Decimal {
	total := decimal.Zero
	for _, amount := range p {
		total = total.Add(amount)
	}
	return total
}

// Lookup returns the prediction for a category matched case-insensitively.
func (p Predictions) Lookup(category string) decimal.Decimal {
	if v, ok := p[category]; ok {
		return v
	}
	key := NormalizeKey(category)
	sum := decimal.Zero
	for name, amount := range p {
		if NormalizeKey(name) == key {
			sum = sum.Add(amount)
		}
	}
	return sum
}

// Sorted returns predictions ordered by category name.
func (p Predictions) Sorted() []CategoryPrediction {
	out := make([]CategoryPrediction, 0, len(p))
	for category, amount := range p {
		out = append(out, CategoryPrediction{Category: category, PredictedAmount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}
