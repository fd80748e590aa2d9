// Package optimizer picks, per bank, the cashback categories that maximize
// projected cashback for predicted spend.
//
// Category caps and the bank-wide cap make the objective non-additive, so the
// named-category search enumerates every subset of size
// min(max_categories, n). That is C(n, k) subsets per bank: fine for tens of
// categories, but the search is bounded by Options.MaxSubsets so a large
// catalog degrades to the best subset seen so far instead of stalling.
package optimizer

import (
	"fmt"
	"log/slog"
	"sort"

	"cashback-advisor/internal/domain"
	"cashback-advisor/internal/metrics"

	"github.com/shopspring/decimal"
)

// DefaultMaxSubsets bounds the per-bank combination search.
const DefaultMaxSubsets = 1_000_000

var hundred = decimal.NewFromInt(100)

type Options struct {
	MaxSubsets int
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
}

type Optimizer struct {
	maxSubsets int
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

func New(opts Options) *Optimizer {
	o := &Optimizer{
		maxSubsets: opts.MaxSubsets,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
	}
	if o.maxSubsets <= 0 {
		o.maxSubsets = DefaultMaxSubsets
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// BankOffers is the slice of the catalog belonging to one bank.
type BankOffers struct {
	Bank          string
	BankLimit     decimal.Decimal
	MaxCategories int
	All           *domain.CashbackOffer
	Named         []domain.CashbackOffer
}

// GroupByBank splits the catalog per bank, ordered by bank name, and checks
// that limits are consistent within each bank. Banks are matched
// case-insensitively; the first spelling seen is kept.
func GroupByBank(offers []domain.CashbackOffer) ([]BankOffers, error) {
	index := make(map[string]int)
	var groups []BankOffers
	seenCategory := make(map[string]map[string]bool)

	for _, o := range offers {
		if err := checkOffer(o); err != nil {
			return nil, err
		}
		key := domain.NormalizeKey(o.Bank)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, BankOffers{
				Bank:          o.Bank,
				BankLimit:     o.BankLimit,
				MaxCategories: o.MaxCategories,
			})
			seenCategory[key] = make(map[string]bool)
		}
		g := &groups[i]
		if !g.BankLimit.Equal(o.BankLimit) || g.MaxCategories != o.MaxCategories {
			return nil, fmt.Errorf("%w: bank %q has inconsistent bank_limit or max_categories_in_bank",
				domain.ErrInvalidCatalog, o.Bank)
		}

		if domain.IsAllCategory(o.Category) {
			if g.All == nil {
				all := o
				g.All = &all
			}
			continue
		}
		// first row wins for a repeated category
		cat := domain.NormalizeKey(o.Category)
		if seenCategory[key][cat] {
			continue
		}
		seenCategory[key][cat] = true
		g.Named = append(g.Named, o)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return domain.NormalizeKey(groups[i].Bank) < domain.NormalizeKey(groups[j].Bank)
	})
	return groups, nil
}

func checkOffer(o domain.CashbackOffer) error {
	switch {
	case o.MaxCategories < 1:
		return fmt.Errorf("%w: bank %q: max_categories_in_bank must be positive", domain.ErrInvalidCatalog, o.Bank)
	case o.Percent.IsNegative():
		return fmt.Errorf("%w: bank %q category %q: negative percent", domain.ErrInvalidCatalog, o.Bank, o.Category)
	case o.BankLimit.IsNegative():
		return fmt.Errorf("%w: bank %q: negative bank_limit", domain.ErrInvalidCatalog, o.Bank)
	case o.CategoryLimit.Valid && o.CategoryLimit.Decimal.IsNegative():
		return fmt.Errorf("%w: bank %q category %q: negative category_limit", domain.ErrInvalidCatalog, o.Bank, o.Category)
	}
	return nil
}

// Optimize returns the chosen categories for every bank in the catalog,
// ordered by bank and then by position in the winning subset.
func (o *Optimizer) Optimize(predictions domain.Predictions, offers []domain.CashbackOffer) ([]domain.ChosenCashback, error) {
	groups, err := GroupByBank(offers)
	if err != nil {
		return nil, err
	}
	total := predictions.Total()

	var out []domain.ChosenCashback
	for _, g := range groups {
		out = append(out, o.OptimizeBank(predictions, total, g)...)
	}
	return out, nil
}

// OptimizeBank solves a single bank. The "all" offer is evaluated first and
// kept on a tie; among named subsets the first one in lexicographic catalog
// order wins.
func (o *Optimizer) OptimizeBank(predictions domain.Predictions, totalSpend decimal.Decimal, g BankOffers) []domain.ChosenCashback {
	best := decimal.NewFromInt(-1)
	var chosen []domain.ChosenCashback

	if g.All != nil {
		cb := capped(totalSpend.Mul(g.All.Percent).Div(hundred), g.All.CategoryLimit)
		cb = decimal.Min(cb, g.BankLimit)
		best = cb
		chosen = []domain.ChosenCashback{{
			Bank:      g.Bank,
			Category:  g.All.Category,
			Percent:   g.All.Percent,
			Projected: cb.Round(2),
			Amount:    cb.Round(2),
		}}
	}

	n := len(g.Named)
	if n == 0 {
		return chosen
	}
	k := min(g.MaxCategories, n)

	perCategory := make([]decimal.Decimal, n)
	for i, offer := range g.Named {
		spend := predictions.Lookup(offer.Category)
		// unrounded: near-ties are decided on exact figures, rounding is for output only
		perCategory[i] = capped(spend.Mul(offer.Percent).Div(hundred), offer.CategoryLimit)
	}

	var bestSubset []int
	enumerated := 0
	truncated := false
	combos := NewCombinations(n, k)
	for combos.Next() {
		if enumerated >= o.maxSubsets {
			truncated = true
			break
		}
		enumerated++

		sum := decimal.Zero
		for _, idx := range combos.Indices() {
			sum = sum.Add(perCategory[idx])
		}
		if sum = decimal.Min(sum, g.BankLimit); sum.GreaterThan(best) {
			best = sum
			bestSubset = append(bestSubset[:0], combos.Indices()...)
		}
	}

	if o.metrics != nil {
		o.metrics.SubsetsEnumerated.Add(float64(enumerated))
		if truncated {
			o.metrics.SearchTruncated.Inc()
		}
	}
	if truncated {
		o.logger.Warn("cashback combination search truncated",
			"bank", g.Bank,
			"categories", n,
			"max_categories", k,
			"subsets_total", Binomial(n, k, 1<<40),
			"subsets_checked", enumerated,
		)
	}

	if bestSubset == nil {
		return chosen
	}

	remaining := g.BankLimit
	chosen = chosen[:0]
	for _, idx := range bestSubset {
		projected := perCategory[idx].Round(2)
		amount := decimal.Min(projected, remaining)
		remaining = remaining.Sub(amount)
		chosen = append(chosen, domain.ChosenCashback{
			Bank:      g.Bank,
			Category:  g.Named[idx].Category,
			Percent:   g.Named[idx].Percent,
			Projected: projected,
			Amount:    amount,
		})
	}
	return chosen
}

func capped(v decimal.Decimal, limit decimal.NullDecimal) decimal.Decimal {
	if limit.Valid {
		return decimal.Min(v, limit.Decimal)
	}
	return v
}
