// Package forecast predicts next month's spend per category from the
// transaction history by blending a trailing-average model with a
// category-share model.
package forecast

import (
	"log/slog"
	"sort"
	"time"

	"cashback-advisor/internal/domain"

	"github.com/shopspring/decimal"
)

var (
	shareWeight  = decimal.RequireFromString("0.7")
	directWeight = decimal.RequireFromString("0.3")

	// trailing-average windows of the direct model
	directWindows = []window{
		{months: 3, weight: decimal.RequireFromString("0.6")},
		{months: 6, weight: decimal.RequireFromString("0.3")},
		{months: 12, weight: decimal.RequireFromString("0.1")},
	}

	// windows of the total-spend estimate used by the share model
	totalWindows = []window{
		{months: 1, weight: decimal.RequireFromString("0.6")},
		{months: 3, weight: decimal.RequireFromString("0.3")},
		{months: 12, weight: decimal.RequireFromString("0.1")},
	}
)

const shareWindowMonths = 3

type window struct {
	months int
	weight decimal.Decimal
}

type Options struct {
	// LegacyDirectWeights reproduces the historical direct-model formula
	// 0.6*avg3 + 0.3*avg3 + 0.1*avg12, where the six-month average is
	// computed but never used.
	LegacyDirectWeights bool
	Logger              *slog.Logger
}

type Forecaster struct {
	legacy bool
	logger *slog.Logger
}

func New(opts Options) *Forecaster {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Forecaster{legacy: opts.LegacyDirectWeights, logger: logger}
}

// Forecast returns the predicted spend per category for the month containing
// target. Categories whose prediction is zero are left out; an empty or
// stale history yields an empty result.
func (f *Forecaster) Forecast(history []domain.SpendRecord, target time.Time) domain.Predictions {
	target = domain.MonthStart(target)
	records := sanitize(history)

	share := f.shareModel(records, target)
	direct := f.directModel(records, target)

	out := make(domain.Predictions)
	for _, category := range unionKeys(share, direct) {
		v := shareWeight.Mul(share[category]).Add(directWeight.Mul(direct[category])).Round(2)
		if v.IsPositive() {
			out[category] = v
		}
	}

	f.logger.Debug("forecast computed",
		"target", target.Format(domain.MonthLayout),
		"records", len(records),
		"categories", len(out),
		"legacy_weights", f.legacy,
	)
	return out
}

// directModel is the weighted blend of 3, 6 and 12 month trailing averages.
func (f *Forecaster) directModel(records []domain.SpendRecord, target time.Time) map[string]decimal.Decimal {
	averages := make([]map[string]decimal.Decimal, len(directWindows))
	for i, w := range directWindows {
		averages[i] = trailingAverage(records, target, w.months)
	}
	if f.legacy {
		// 6-month weight applied to the 3-month average
		averages[1] = averages[0]
	}

	out := make(map[string]decimal.Decimal)
	for i, w := range directWindows {
		for category, avg := range averages[i] {
			out[category] = out[category].Add(w.weight.Mul(avg))
		}
	}
	return out
}

// shareModel distributes the forecast total over categories by their median
// share of monthly spend in the recent window.
func (f *Forecaster) shareModel(records []domain.SpendRecord, target time.Time) map[string]decimal.Decimal {
	recent := inWindow(records, target, shareWindowMonths)
	if len(recent) == 0 {
		return nil
	}

	monthTotals := make(map[time.Time]decimal.Decimal)
	catMonth := make(map[string]map[time.Time]decimal.Decimal)
	for _, r := range recent {
		monthTotals[r.Month] = monthTotals[r.Month].Add(r.Amount)
		if catMonth[r.Category] == nil {
			catMonth[r.Category] = make(map[time.Time]decimal.Decimal)
		}
		catMonth[r.Category][r.Month] = catMonth[r.Category][r.Month].Add(r.Amount)
	}

	medians := make(map[string]decimal.Decimal, len(catMonth))
	shareSum := decimal.Zero
	for category, byMonth := range catMonth {
		shares := make([]decimal.Decimal, 0, shareWindowMonths)
		for month, amount := range byMonth {
			shares = append(shares, safeDiv(amount, monthTotals[month]))
		}
		for len(shares) < shareWindowMonths {
			shares = append(shares, decimal.Zero)
		}
		m := median(shares)
		medians[category] = m
		shareSum = shareSum.Add(m)
	}

	total := totalSpendForecast(records, target)
	out := make(map[string]decimal.Decimal, len(medians))
	for category, m := range medians {
		out[category] = safeDiv(m, shareSum).Mul(total)
	}
	return out
}

// totalSpendForecast is the weighted blend of 1, 3 and 12 month averages of
// total monthly spend.
func totalSpendForecast(records []domain.SpendRecord, target time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, w := range totalWindows {
		sum := decimal.Zero
		for _, r := range inWindow(records, target, w.months) {
			sum = sum.Add(r.Amount)
		}
		total = total.Add(w.weight.Mul(safeDiv(sum, decimal.NewFromInt(int64(w.months)))))
	}
	return total
}

// trailingAverage is per-category spend over the window divided by the
// window length, so months without activity count as zero.
func trailingAverage(records []domain.SpendRecord, target time.Time, months int) map[string]decimal.Decimal {
	sums := make(map[string]decimal.Decimal)
	for _, r := range inWindow(records, target, months) {
		sums[r.Category] = sums[r.Category].Add(r.Amount)
	}
	n := decimal.NewFromInt(int64(months))
	for category, sum := range sums {
		sums[category] = safeDiv(sum, n)
	}
	return sums
}

// inWindow keeps records with target-months <= month < target.
func inWindow(records []domain.SpendRecord, target time.Time, months int) []domain.SpendRecord {
	if months <= 0 {
		return nil
	}
	cutoff := target.AddDate(0, -months, 0)
	var out []domain.SpendRecord
	for _, r := range records {
		if !r.Month.Before(cutoff) && r.Month.Before(target) {
			out = append(out, r)
		}
	}
	return out
}

func sanitize(history []domain.SpendRecord) []domain.SpendRecord {
	out := make([]domain.SpendRecord, 0, len(history))
	for _, r := range history {
		if r.Category == "" || r.Amount.IsNegative() {
			continue
		}
		r.Month = domain.MonthStart(r.Month)
		out = append(out, r)
	}
	return out
}

func median(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	sorted := append([]decimal.Decimal(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return sorted[mid-1].Add(sorted[mid]).Div(decimal.NewFromInt(2))
}

func safeDiv(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return a.Div(b)
}

func unionKeys(maps ...map[string]decimal.Decimal) []string {
	seen := make(map[string]struct{})
	var keys []string
	for _, m := range maps {
		for k := range m {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}
