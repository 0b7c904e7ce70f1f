package google

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
)

func TestParseBudgetRows(t *testing.T) {
	values := [][]interface{}{
		{"Main", "", 1000.0},
		{"Main", "Salaries", 500.0},
		{"Main", "Outreach", "1,250.50"},
		{"Youth", "", "15000"},
		{"Choir", "Robes", "$300"},
		{"", "", ""},
		{"", "Orphan", 10.0},
		{"Missions", "", "n/a"},
		{"Short"},
	}

	tree, skipped := parseBudgetRows(values)
	assert.Equal(t, 3, skipped)
	require.Len(t, tree, 3)

	main := core.ResolveBudget(tree, "Main")
	assert.Equal(t, "1000.00", main.Total.StringFixed(2))
	assert.Equal(t, "500.00", main.Items["Salaries"].StringFixed(2))
	assert.Equal(t, "1250.50", main.Items["Outreach"].StringFixed(2))

	_, flat := tree["Youth"].(core.FlatTotal)
	assert.True(t, flat)
	assert.Equal(t, "15000.00", tree["Youth"].Total().StringFixed(2))

	// no declared total: the items are summed
	assert.Equal(t, "300.00", tree["Choir"].Total().StringFixed(2))
}

func TestEntryRow(t *testing.T) {
	row := entryRow(core.Entry{
		ID: "e-1", Kind: core.KindExpense, Account: "Main", Department: "Finance",
		Subtype: "Utilities", Description: "power", Date: "2024-01-20",
		Amount: decimal.RequireFromString("300.5"), BudgetItem: "Salaries",
	})
	assert.Equal(t, []any{"e-1", "2024-01-20", "Expense", "Main", "Finance", "Utilities", "power", "300.50", "Salaries"}, row)
}

func TestYearPrefixedName(t *testing.T) {
	assert.Equal(t, "2024 Ledger", yearPrefixedName("Ledger", 2024))
	assert.Equal(t, "2023 Ledger", yearPrefixedName("2023 Ledger", 2024))
	assert.Equal(t, "2024 Ledger 2", yearPrefixedName(" Ledger 2 ", 2024))
}
