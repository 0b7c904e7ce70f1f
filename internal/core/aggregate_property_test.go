package core

import (
	"fmt"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var propertyDepartments = []string{"Youth", "Music", "Outreach", "Children"}

// randomLedger fills a year of entries across departments and both managed
// accounts. Amounts carry at most two decimals so per-scope sums add up
// exactly to the unscoped sum.
func randomLedger(f *gofakeit.Faker, n, year int) []Entry {
	accounts := append([]string{AccountMain, AccountBuildingFund}, propertyDepartments...)
	items := []string{"", "Camp", "Snacks", "Rent", "Unknown"}
	start := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, 12, 31, 0, 0, 0, 0, time.UTC)

	entries := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		account := f.RandomString(accounts)
		e := Entry{
			ID:         fmt.Sprintf("e%d", i),
			Kind:       KindIncome,
			Subtype:    f.Word(),
			Account:    account,
			Department: account,
			Date:       f.DateRange(start, end).Format(DateLayout),
			Amount:     decimal.NewFromFloat(f.Price(0, 500)).Round(2),
		}
		if f.Bool() {
			e.Kind = KindExpense
			e.BudgetItem = f.RandomString(items)
		}
		if f.IntRange(0, 20) == 0 {
			e.Amount = e.Amount.Neg()
		}
		entries = append(entries, e)
	}
	return entries
}

func TestAggregationProperties(t *testing.T) {
	const year = 2024
	f := gofakeit.New(42)
	entries := randomLedger(f, 400, year)
	budgets := BudgetTree{
		"Youth":             NormalizeBudget(map[string]any{"total": 2000.0, "items": map[string]any{"Camp": 800.0, "Snacks": 100.0}}),
		AccountMain:         NormalizeBudget(5000.0),
		AccountBuildingFund: NormalizeBudget(map[string]any{"items": map[string]any{"Rent": 1200.0}}),
	}

	scopes := []Scope{
		{Role: RoleFinanceManager, Department: "Finance", Account: AccountMain},
		{Role: RoleFinanceManager, Department: "Finance", Account: AccountBuildingFund},
	}
	for _, d := range propertyDepartments {
		scopes = append(scopes, Scope{Role: "Treasurer", Department: d})
	}
	pastor := Scope{Role: RoleSeniorPastor, Department: "Pastoral"}

	for month := 1; month <= 12; month++ {
		all := BuildSummary(entries, budgets, pastor, year, month)
		income, expense := decimal.Zero, decimal.Zero

		for _, s := range append(scopes, pastor) {
			sum := BuildSummary(entries, budgets, s, year, month)

			assert.True(t, sum.Balance.Equal(sum.TotalIncome.Sub(sum.TotalExpense)), "balance %v month %d", s, month)
			assert.True(t, sum.TotalIncome.Equal(sum.ChartIncome[month-1]), "chart income %v month %d", s, month)
			assert.True(t, sum.TotalExpense.Equal(sum.ChartExpense[month-1]), "chart expense %v month %d", s, month)
			assert.True(t, sum.Remaining.Equal(sum.BudgetLimit.Sub(sum.TotalExpense)))

			spent := decimal.Zero
			for _, row := range sum.ItemRows {
				if row.Name != UnassignedItem {
					spent = spent.Add(row.Spent)
				}
			}
			assert.True(t, spent.Add(sum.Unassigned).Equal(sum.TotalExpense),
				"item rows plus unassigned cover the month's expenses for %v month %d", s, month)

			if s.Role != RoleSeniorPastor {
				income = income.Add(sum.TotalIncome)
				expense = expense.Add(sum.TotalExpense)
			}
		}

		require.True(t, all.TotalIncome.Equal(income), "scopes partition income in month %d", month)
		require.True(t, all.TotalExpense.Equal(expense), "scopes partition expenses in month %d", month)
	}
}
