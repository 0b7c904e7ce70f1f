package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
	"ledger/internal/store"
)

var _ store.Store = (*Store)(nil)

func TestAppendAndList(t *testing.T) {
	ctx := context.Background()
	s := New()

	id, err := s.AppendEntry(ctx, core.Entry{Kind: core.KindIncome, Account: "Main", Date: "2024-01-01", Amount: decimal.NewFromInt(5)})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	entries, err := s.ListEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ID)
	assert.False(t, entries[0].CreatedAt.IsZero())

	entries[0].Account = "changed"
	again, _ := s.ListEntries(ctx)
	assert.Equal(t, "Main", again[0].Account)
}

func TestConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	s := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.AppendEntry(ctx, core.Entry{ID: fmt.Sprintf("e%d", i), Kind: core.KindExpense})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	entries, err := s.ListEntries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 50)
}

func TestBudgets(t *testing.T) {
	ctx := context.Background()
	s := NewWithData(nil, core.BudgetTree{"Youth": core.FlatTotal{Amount: decimal.NewFromInt(100)}})

	require.NoError(t, s.ReplaceBudget(ctx, "Main", core.FlatTotal{Amount: decimal.NewFromInt(7)}))
	tree, err := s.LoadBudgets(ctx)
	require.NoError(t, err)
	assert.Len(t, tree, 2)

	delete(tree, "Main")
	tree, _ = s.LoadBudgets(ctx)
	assert.Contains(t, tree, "Main")
}

func TestRevisionMovesOnWrites(t *testing.T) {
	ctx := context.Background()
	s := New()

	r0, err := s.Revision(ctx)
	require.NoError(t, err)
	_, err = s.ListEntries(ctx)
	require.NoError(t, err)
	r1, _ := s.Revision(ctx)
	assert.Equal(t, r0, r1, "reads leave the revision alone")

	_, err = s.AppendEntry(ctx, core.Entry{Kind: core.KindIncome, Amount: decimal.NewFromInt(1)})
	require.NoError(t, err)
	r2, _ := s.Revision(ctx)
	assert.NotEqual(t, r1, r2)

	require.NoError(t, s.ReplaceBudget(ctx, "Main", core.FlatTotal{Amount: decimal.NewFromInt(3)}))
	r3, _ := s.Revision(ctx)
	assert.NotEqual(t, r2, r3)
}
