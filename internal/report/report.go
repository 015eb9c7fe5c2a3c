// Package report derives summaries from a record set: totals, amounts per
// category and totals per month. Sums use exact decimal arithmetic, so
// Balance == Income - Expense and the per-category amounts add up to the
// kind total regardless of record order.
package report

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

// Totals sums records by kind. An empty set yields zeros.
func Totals(records []core.Record) core.Totals {
	var t core.Totals
	for _, r := range records {
		t = add(t, r)
	}
	return t
}

func add(t core.Totals, r core.Record) core.Totals {
	switch r.Kind {
	case core.Income:
		t.Income = t.Income.Add(r.Amount.Decimal)
	case core.Expense:
		t.Expense = t.Expense.Add(r.Amount.Decimal)
	}
	t.Balance = t.Income.Sub(t.Expense)
	return t
}

// ByCategory sums the amounts of one kind per category. Categories without
// records of that kind are absent.
func ByCategory(records []core.Record, kind core.Kind) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, r := range records {
		if r.Kind != kind {
			continue
		}
		out[r.Category] = out[r.Category].Add(r.Amount.Decimal)
	}
	return out
}

// ByMonth groups totals by the YYYY-MM prefix of the record date.
func ByMonth(records []core.Record) map[string]core.Totals {
	out := make(map[string]core.Totals)
	for _, r := range records {
		key := r.Date.MonthKey()
		out[key] = add(out[key], r)
	}
	return out
}

// MonthsDescending lists the months of byMonth latest first.
func MonthsDescending(byMonth map[string]core.Totals) []core.MonthSummary {
	keys := make([]string, 0, len(byMonth))
	for k := range byMonth {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	slices.Reverse(keys)
	out := make([]core.MonthSummary, 0, len(keys))
	for _, k := range keys {
		out = append(out, core.MonthSummary{Month: k, Totals: byMonth[k]})
	}
	return out
}

// CategoryShares lists ByCategory largest first, ties by name, each with
// its percentage of the kind total.
func CategoryShares(records []core.Record, kind core.Kind) []core.CategoryAmount {
	sums := ByCategory(records, kind)
	total := decimal.Zero
	for _, v := range sums {
		total = total.Add(v)
	}

	out := make([]core.CategoryAmount, 0, len(sums))
	for name, amount := range sums {
		share := 0.0
		if total.IsPositive() {
			share = amount.Div(total).Mul(decimal.NewFromInt(100)).InexactFloat64()
		}
		out = append(out, core.CategoryAmount{Name: name, Amount: amount, Percent: share})
	}
	slices.SortFunc(out, func(a, b core.CategoryAmount) int {
		if c := b.Amount.Cmp(a.Amount); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}
