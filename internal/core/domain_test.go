package core

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func goodEntry() Entry {
	return Entry{
		Kind:        KindExpense,
		Subtype:     "Utilities",
		Account:     AccountMain,
		Department:  "Finance",
		Description: "electricity",
		Date:        "2024-01-20",
		Amount:      decimal.RequireFromString("300.00"),
		BudgetItem:  "Salaries",
	}
}

func TestEntryValidate(t *testing.T) {
	require.NoError(t, goodEntry().Validate())

	zero := goodEntry()
	zero.Amount = decimal.Zero
	assert.NoError(t, zero.Validate(), "zero amounts are allowed")

	cases := []struct {
		name   string
		mutate func(*Entry)
		want   error
	}{
		{"bad kind", func(e *Entry) { e.Kind = "Transfer" }, ErrInvalidKind},
		{"empty kind", func(e *Entry) { e.Kind = "" }, ErrInvalidKind},
		{"empty subtype", func(e *Entry) { e.Subtype = "" }, ErrEmptySubtype},
		{"empty account", func(e *Entry) { e.Account = "" }, ErrEmptyAccount},
		{"empty department", func(e *Entry) { e.Department = "" }, ErrEmptyDepartment},
		{"long description", func(e *Entry) { e.Description = strings.Repeat("x", 201) }, ErrDescriptionTooLong},
		{"long subtype", func(e *Entry) { e.Subtype = strings.Repeat("x", 101) }, ErrFieldTooLong},
		{"not a date", func(e *Entry) { e.Date = "not-a-date" }, ErrInvalidDate},
		{"impossible day", func(e *Entry) { e.Date = "2024-02-30" }, ErrInvalidDate},
		{"datetime", func(e *Entry) { e.Date = "2024-01-20 10:00:00" }, ErrInvalidDate},
		{"negative amount", func(e *Entry) { e.Amount = decimal.NewFromInt(-1) }, ErrInvalidAmount},
		{"three decimals", func(e *Entry) { e.Amount = decimal.RequireFromString("1.005") }, ErrInvalidAmount},
		{"budget item on income", func(e *Entry) { e.Kind = KindIncome }, ErrBudgetItemOnIncome},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := goodEntry()
			tc.mutate(&e)
			err := e.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidEntry)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestEntryNormalize(t *testing.T) {
	e := Entry{Kind: " Income ", Subtype: " Tithe", Account: "Main ", Department: " Youth ", Date: " 2024-01-15 "}
	n := e.Normalize()
	assert.Equal(t, KindIncome, n.Kind)
	assert.Equal(t, "Tithe", n.Subtype)
	assert.Equal(t, "Main", n.Account)
	assert.Equal(t, "Youth", n.Department)
	assert.Equal(t, "2024-01-15", n.Date)
	assert.Equal(t, " Youth ", e.Department, "original is untouched")
}

func TestEntryParsedDate(t *testing.T) {
	cases := []struct {
		raw  string
		ok   bool
		want string
	}{
		{"2024-01-15", true, "2024-01-15"},
		{"2024-01-15 09:30:00", true, "2024-01-15"},
		{"2024-01-15T09:30:00Z", true, "2024-01-15"},
		{"not-a-date", false, ""},
		{"", false, ""},
		{"15/01/2024", false, ""},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			d, ok := Entry{Date: tc.raw}.ParsedDate()
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, d.Format(DateLayout))
			}
		})
	}
}

func TestIsManagedAccount(t *testing.T) {
	assert.True(t, IsManagedAccount("Main"))
	assert.True(t, IsManagedAccount("Building Fund"))
	assert.False(t, IsManagedAccount("main"))
	assert.False(t, IsManagedAccount("Youth"))
	assert.False(t, IsManagedAccount(""))
}
