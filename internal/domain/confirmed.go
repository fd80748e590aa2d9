package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

type confirmedKey struct {
	bank     string
	category string
}

// Confirmed is a case-insensitive lookup of confirmed (bank, category) rates.
type Confirmed struct {
	rates map[confirmedKey]decimal.Decimal
	banks map[string]string // normalized -> display name
}

// NewConfirmed indexes choices; a later duplicate overrides an earlier one.
func NewConfirmed(choices []ConfirmedChoice) Confirmed {
	c := Confirmed{
		rates: make(map[confirmedKey]decimal.Decimal, len(choices)),
		banks: make(map[string]string),
	}
	for _, ch := range choices {
		bank := NormalizeKey(ch.Bank)
		c.rates[confirmedKey{bank: bank, category: NormalizeKey(ch.Category)}] = ch.Percent
		if _, ok := c.banks[bank]; !ok {
			c.banks[bank] = ch.Bank
		}
	}
	return c
}

func (c Confirmed) Len() int { return len(c.rates) }

// Rate returns the confirmed percent for the bank and category.
func (c Confirmed) Rate(bank, category string) (decimal.Decimal, bool) {
	rate, ok := c.rates[confirmedKey{bank: NormalizeKey(bank), category: NormalizeKey(category)}]
	return rate, ok
}

// BestBank returns the bank with the highest confirmed rate for category.
// Only positive rates qualify. Equal rates resolve to the alphabetically
// first bank.
func (c Confirmed) BestBank(category string) (string, decimal.Decimal, bool) {
	cat := NormalizeKey(category)
	var banks []string
	for k, rate := range c.rates {
		if k.category == cat && rate.IsPositive() {
			banks = append(banks, k.bank)
		}
	}
	if len(banks) == 0 {
		return "", decimal.Zero, false
	}
	sort.Strings(banks)

	best := banks[0]
	bestRate := c.rates[confirmedKey{bank: best, category: cat}]
	for _, b := range banks[1:] {
		if r := c.rates[confirmedKey{bank: b, category: cat}]; r.GreaterThan(bestRate) {
			best, bestRate = b, r
		}
	}
	return c.banks[best], bestRate, true
}
