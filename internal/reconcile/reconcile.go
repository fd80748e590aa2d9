// Package reconcile annotates the declared cashback catalog with the
// optimizer's picks.
package reconcile

import (
	"cashback-advisor/internal/domain"

	"github.com/shopspring/decimal"
)

type key struct{ bank, category string }

// Reconcile left-joins catalog onto chosen by trimmed, case-insensitive
// (bank, category). Every catalog row yields exactly one decision, in
// catalog order and with the catalog's own spelling.
func Reconcile(chosen []domain.ChosenCashback, catalog []domain.CatalogRule) []domain.CashbackRuleDecision {
	amounts := make(map[key]decimal.Decimal, len(chosen))
	for _, c := range chosen {
		amounts[key{domain.NormalizeKey(c.Bank), domain.NormalizeKey(c.Category)}] = c.Amount
	}

	out := make([]domain.CashbackRuleDecision, 0, len(catalog))
	for _, rule := range catalog {
		decision := domain.CashbackRuleDecision{
			Bank:     rule.Bank,
			Category: rule.Category,
			Percent:  rule.Percent,
		}
		if amount, ok := amounts[key{domain.NormalizeKey(rule.Bank), domain.NormalizeKey(rule.Category)}]; ok {
			decision.Chosen = true
			decision.Amount = decimal.NewNullDecimal(amount)
		}
		out = append(out, decision)
	}
	return out
}

// Rules extracts the declared rows of an offer catalog.
func Rules(offers []domain.CashbackOffer) []domain.CatalogRule {
	out := make([]domain.CatalogRule, len(offers))
	for i, o := range offers {
		out[i] = o.Rule()
	}
	return out
}

// Confirmable returns the chosen decisions as confirmed choices.
func Confirmable(decisions []domain.CashbackRuleDecision) []domain.ConfirmedChoice {
	var out []domain.ConfirmedChoice
	for _, dec := range decisions {
		if dec.Chosen {
			out = append(out, domain.ConfirmedChoice{Bank: dec.Bank, Category: dec.Category, Percent: dec.Percent})
		}
	}
	return out
}
