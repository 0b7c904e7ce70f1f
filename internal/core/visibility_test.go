package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleEntries() []Entry {
	return []Entry{
		{ID: "1", Kind: KindIncome, Account: "Main", Department: "Finance", Date: "2024-01-15", Amount: dec("1000")},
		{ID: "2", Kind: KindExpense, Account: "Main", Department: "Finance", Date: "2024-01-20", Amount: dec("300"), BudgetItem: "Salaries"},
		{ID: "3", Kind: KindExpense, Account: "Building Fund", Department: "Finance", Date: "2024-01-21", Amount: dec("75")},
		{ID: "4", Kind: KindIncome, Account: "Youth", Department: "Youth", Date: "2024-01-02", Amount: dec("40")},
		{ID: "5", Kind: KindExpense, Account: "Main", Department: "Youth", Date: "2024-01-03", Amount: dec("12")},
	}
}

func ids(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

func TestVisibleEntries(t *testing.T) {
	cases := []struct {
		name  string
		scope Scope
		want  []string
	}{
		{"finance manager main", Scope{Role: RoleFinanceManager, Account: "Main"}, []string{"1", "2", "5"}},
		{"finance manager building fund", Scope{Role: RoleFinanceManager, Account: "Building Fund"}, []string{"3"}},
		{"finance manager bad account", Scope{Role: RoleFinanceManager, Account: "Youth"}, []string{}},
		{"finance manager no account", Scope{Role: RoleFinanceManager}, []string{}},
		{"senior pastor", Scope{Role: RoleSeniorPastor}, []string{"1", "2", "3", "4", "5"}},
		{"treasurer", Scope{Role: "Treasurer", Department: "Youth", Account: "Main"}, []string{"4"}},
		{"unknown role", Scope{Role: "Usher", Department: "Choir"}, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ids(VisibleEntries(sampleEntries(), tc.scope)))
		})
	}
}

func TestScopeBudgetKey(t *testing.T) {
	assert.Equal(t, "Main", Scope{Role: RoleFinanceManager, Department: "Finance", Account: "Main"}.BudgetKey())
	assert.Equal(t, "Youth", Scope{Role: "Treasurer", Department: "Youth", Account: "Main"}.BudgetKey())
	assert.Equal(t, "Finance", Scope{Role: RoleSeniorPastor, Department: "Finance"}.BudgetKey())
}
