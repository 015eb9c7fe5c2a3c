package core

import "github.com/shopspring/decimal"

// Totals sums a record set by kind. Balance may be negative.
type Totals struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
	Balance decimal.Decimal
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name    string
	Amount  decimal.Decimal
	Percent float64 // share of the kind total, 0-100
}

// MonthSummary is the totals of one YYYY-MM month.
type MonthSummary struct {
	Month string
	Totals
}
