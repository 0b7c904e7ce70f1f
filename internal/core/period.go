package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// PeriodTotals is the rounded income/expense split of one calendar month.
// Balance is derived from the rounded totals so it always matches them.
type PeriodTotals struct {
	TotalIncome  decimal.Decimal
	TotalExpense decimal.Decimal
	Balance      decimal.Decimal
}

// InPeriod reports whether the entry's parsed date falls in year/month.
// Unparsable dates never match.
func (e Entry) InPeriod(year, month int) bool {
	d, ok := e.ParsedDate()
	if !ok {
		return false
	}
	return d.Year() == year && d.Month() == time.Month(month)
}

// EntriesInPeriod keeps the entries dated in year/month, in input order.
func EntriesInPeriod(entries []Entry, year, month int) []Entry {
	out := make([]Entry, 0)
	for _, e := range entries {
		if e.InPeriod(year, month) {
			out = append(out, e)
		}
	}
	return out
}

// Aggregate totals already-visible entries for one month.
func Aggregate(visible []Entry, year, month int) PeriodTotals {
	income, expense := decimal.Zero, decimal.Zero
	for _, e := range visible {
		if e.Amount.IsNegative() || !e.InPeriod(year, month) {
			continue
		}
		switch e.Kind {
		case KindIncome:
			income = income.Add(e.Amount)
		case KindExpense:
			expense = expense.Add(e.Amount)
		}
	}
	income, expense = RoundMoney(income), RoundMoney(expense)
	return PeriodTotals{
		TotalIncome:  income,
		TotalExpense: expense,
		Balance:      income.Sub(expense),
	}
}
