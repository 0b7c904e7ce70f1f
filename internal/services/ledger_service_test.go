package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/cache"
	"ledger/internal/core"
	"ledger/internal/store/memory"
)

type fakePublisher struct {
	ids []string
	err error
}

func (p *fakePublisher) PublishEntrySync(_ context.Context, id string) error {
	p.ids = append(p.ids, id)
	return p.err
}

func newTestService(t *testing.T, pub Publisher) (*LedgerService, *memory.Store) {
	t.Helper()
	st := memory.New()
	svc := NewLedgerService(st, pub, cache.NewLRUCache[core.Summary](16, time.Minute))
	svc.now = func() time.Time { return time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC) }
	return svc, st
}

var (
	financeScope = core.Scope{Role: core.RoleFinanceManager, Department: "Finance", Account: core.AccountMain}
	pastorScope  = core.Scope{Role: core.RoleSeniorPastor, Department: "Pastoral"}
	youthScope   = core.Scope{Role: "Treasurer", Department: "Youth"}
)

func TestRecordEntryAppliesIdentity(t *testing.T) {
	pub := &fakePublisher{}
	svc, st := newTestService(t, pub)
	ctx := context.Background()

	e, err := svc.RecordEntry(ctx, youthScope, EntryInput{
		Kind: "Expense", Subtype: "Snacks", Account: "Main",
		Date: "2024-01-10", Amount: "12,5",
	})
	require.NoError(t, err)
	assert.Equal(t, "Youth", e.Account, "non-managers post to their department account")
	assert.Equal(t, "Youth", e.Department)
	assert.Equal(t, "12.50", e.Amount.StringFixed(2))
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, []string{e.ID}, pub.ids)

	stored, err := st.ListEntries(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, e.ID, stored[0].ID)
}

func TestRecordEntryRoles(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	in := EntryInput{Kind: "Income", Subtype: "Tithe", Account: "Building Fund", Date: "2024-01-07", Amount: "100"}

	_, err := svc.RecordEntry(ctx, pastorScope, in)
	assert.ErrorIs(t, err, ErrForbidden)

	e, err := svc.RecordEntry(ctx, financeScope, in)
	require.NoError(t, err)
	assert.Equal(t, core.AccountBuildingFund, e.Account)

	in.Account = "Petty Cash"
	_, err = svc.RecordEntry(ctx, financeScope, in)
	assert.ErrorIs(t, err, core.ErrInvalidEntry)
	assert.ErrorIs(t, err, ErrInvalidAccount)
}

func TestRecordEntryRejectsInvalidInput(t *testing.T) {
	svc, st := newTestService(t, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		in   EntryInput
	}{
		{"bad amount", EntryInput{Kind: "Expense", Subtype: "Food", Date: "2024-01-10", Amount: "-5"}},
		{"bad date", EntryInput{Kind: "Expense", Subtype: "Food", Date: "10/01/2024", Amount: "5"}},
		{"bad kind", EntryInput{Kind: "Transfer", Subtype: "Food", Date: "2024-01-10", Amount: "5"}},
		{"budget item on income", EntryInput{Kind: "Income", Subtype: "Gift", Date: "2024-01-10", Amount: "5", BudgetItem: "Food"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RecordEntry(ctx, youthScope, tt.in)
			assert.ErrorIs(t, err, core.ErrInvalidEntry)
		})
	}

	stored, err := st.ListEntries(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestAppendEntryPublishFailureIsNotFatal(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	svc, st := newTestService(t, pub)

	_, err := svc.AppendEntry(context.Background(), core.Entry{
		Kind: core.KindIncome, Subtype: "Tithe", Account: "Youth", Department: "Youth",
		Date: "2024-01-07", Amount: decimal.NewFromInt(20),
	})
	require.NoError(t, err)
	assert.Len(t, pub.ids, 1)

	stored, _ := st.ListEntries(context.Background())
	assert.Len(t, stored, 1)
}

func TestImportEntriesCollectsRejects(t *testing.T) {
	svc, _ := newTestService(t, nil)
	res, err := svc.ImportEntries(context.Background(), []core.Entry{
		{Kind: core.KindIncome, Subtype: "Tithe", Account: "Youth", Department: "Youth", Date: "2024-01-07", Amount: decimal.NewFromInt(20)},
		{Kind: core.KindIncome, Subtype: "", Account: "Youth", Department: "Youth", Date: "2024-01-07", Amount: decimal.NewFromInt(20)},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	require.Len(t, res.Rejected, 1)
	assert.ErrorIs(t, res.Rejected[0], core.ErrInvalidEntry)
}

func TestUpdateBudget(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.UpdateBudget(ctx, youthScope, "Youth", []byte(`100`))
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.UpdateBudget(ctx, financeScope, "  ", []byte(`100`))
	assert.ErrorIs(t, err, core.ErrInvalidBudget)

	_, err = svc.UpdateBudget(ctx, financeScope, "Main", []byte(`{"total": -1}`))
	assert.ErrorIs(t, err, core.ErrInvalidBudget)

	res, err := svc.UpdateBudget(ctx, financeScope, "Main", []byte(`{"total": 1000, "items": {"Salaries": 600}}`))
	require.NoError(t, err)
	assert.Equal(t, "1000.00", res.Total.StringFixed(2))
	assert.Equal(t, "600.00", res.Items["Salaries"].StringFixed(2))

	got, err := svc.Budget(ctx, "Main")
	require.NoError(t, err)
	assert.Equal(t, "1000.00", got.Total.StringFixed(2))
}

func TestDashboardIsInvalidatedByWrites(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.UpdateBudget(ctx, financeScope, "Main", []byte(`{"total": 1000, "items": {"Salaries": 600}}`))
	require.NoError(t, err)

	sum, err := svc.Dashboard(ctx, financeScope, 2024, 1)
	require.NoError(t, err)
	assert.Equal(t, "Main", sum.BudgetKey)
	assert.True(t, sum.TotalExpense.IsZero())
	assert.Equal(t, "1000.00", sum.Remaining.StringFixed(2))

	_, err = svc.RecordEntry(ctx, financeScope, EntryInput{
		Kind: "Expense", Subtype: "Payroll", Account: "Main",
		Date: "2024-01-20", Amount: "250", BudgetItem: "Salaries",
	})
	require.NoError(t, err)

	sum, err = svc.Dashboard(ctx, financeScope, 2024, 1)
	require.NoError(t, err)
	assert.Equal(t, "250.00", sum.TotalExpense.StringFixed(2))
	assert.Equal(t, "750.00", sum.Remaining.StringFixed(2))
	require.Len(t, sum.ItemRows, 1)
	assert.Equal(t, "350.00", sum.ItemRows[0].Remaining.StringFixed(2))
	assert.Len(t, sum.ChartLabels, 12)
}

func TestMonthEntriesAndReport(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	for _, in := range []struct {
		scope core.Scope
		in    EntryInput
	}{
		{youthScope, EntryInput{Kind: "Income", Subtype: "Offering", Date: "2024-01-07", Amount: "40"}},
		{youthScope, EntryInput{Kind: "Expense", Subtype: "Camp", Date: "2024-02-03", Amount: "15"}},
		{financeScope, EntryInput{Kind: "Income", Subtype: "Tithe", Account: "Main", Date: "2024-01-14", Amount: "900"}},
	} {
		_, err := svc.RecordEntry(ctx, in.scope, in.in)
		require.NoError(t, err)
	}

	jan, err := svc.MonthEntries(ctx, youthScope, 2024, 1)
	require.NoError(t, err)
	require.Len(t, jan, 1)
	assert.Equal(t, "Offering", jan[0].Subtype)

	_, err = svc.Report(ctx, youthScope, core.ReportFilter{})
	assert.ErrorIs(t, err, ErrForbidden)

	all, err := svc.Report(ctx, pastorScope, core.ReportFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "2024-02-03", all[0].Date, "newest first")

	youth, err := svc.Report(ctx, financeScope, core.ReportFilter{Department: "youth"})
	require.NoError(t, err)
	assert.Len(t, youth, 2)
}
