package core

import "github.com/shopspring/decimal"

// Summary is everything the dashboard shows for one scope and month.
type Summary struct {
	Year         int
	Month        int // 1-12
	BudgetKey    string
	TotalIncome  decimal.Decimal
	TotalExpense decimal.Decimal
	Balance      decimal.Decimal
	BudgetLimit  decimal.Decimal
	Remaining    decimal.Decimal
	ItemRows     []ItemRow
	Unassigned   decimal.Decimal
	ChartLabels  []string
	ChartIncome  []decimal.Decimal
	ChartExpense []decimal.Decimal
}

// BuildSummary composes visibility, period totals, budget reconciliation and
// the annual series for one dashboard view.
func BuildSummary(entries []Entry, budgets BudgetTree, s Scope, year, month int) Summary {
	visible := VisibleEntries(entries, s)
	totals := Aggregate(visible, year, month)

	monthExpenses := make([]Entry, 0)
	for _, e := range EntriesInPeriod(visible, year, month) {
		if e.Kind == KindExpense {
			monthExpenses = append(monthExpenses, e)
		}
	}

	key := s.BudgetKey()
	resolved := ResolveBudget(budgets, key)
	rows, unassigned := PerItemSpend(monthExpenses, resolved.Items)
	limit := RoundMoney(resolved.Total)
	series := BuildYearSeries(entries, s, year)

	return Summary{
		Year:         year,
		Month:        month,
		BudgetKey:    key,
		TotalIncome:  totals.TotalIncome,
		TotalExpense: totals.TotalExpense,
		Balance:      totals.Balance,
		BudgetLimit:  limit,
		Remaining:    limit.Sub(totals.TotalExpense),
		ItemRows:     rows,
		Unassigned:   unassigned,
		ChartLabels:  series.Labels,
		ChartIncome:  series.Income,
		ChartExpense: series.Expense,
	}
}
