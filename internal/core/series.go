package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// YearSeries holds twelve monthly buckets for the annual chart.
type YearSeries struct {
	Labels  []string
	Income  []decimal.Decimal
	Expense []decimal.Decimal
}

// MonthLabel renders the "YYYY-MM" bucket label.
func MonthLabel(year, month int) string {
	return fmt.Sprintf("%d-%02d", year, month)
}

// BuildYearSeries buckets the entries visible under s into the months of
// year. Matching is a raw-date prefix test, so dates not stored as
// YYYY-MM-... never land in a bucket even when they would parse.
func BuildYearSeries(entries []Entry, s Scope, year int) YearSeries {
	ys := YearSeries{
		Labels:  make([]string, 12),
		Income:  make([]decimal.Decimal, 12),
		Expense: make([]decimal.Decimal, 12),
	}
	visible := VisibleEntries(entries, s)

	for i := 0; i < 12; i++ {
		label := MonthLabel(year, i+1)
		income, expense := decimal.Zero, decimal.Zero
		for _, e := range visible {
			if e.Amount.IsNegative() || !strings.HasPrefix(e.Date, label) {
				continue
			}
			switch e.Kind {
			case KindIncome:
				income = income.Add(e.Amount)
			case KindExpense:
				expense = expense.Add(e.Amount)
			}
		}
		ys.Labels[i] = label
		ys.Income[i] = RoundMoney(income)
		ys.Expense[i] = RoundMoney(expense)
	}
	return ys
}
