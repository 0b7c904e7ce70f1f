package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/amqp"
	"ledger/internal/core"
	sheetmem "ledger/internal/sheets/memory"
	"ledger/internal/storage"
)

var _ SyncStore = (*storage.SQLiteRepository)(nil)

type recordingImporter struct{ tree core.BudgetTree }

func (r *recordingImporter) ImportBudgets(_ context.Context, tree core.BudgetTree) (int, error) {
	r.tree = tree
	return len(tree), nil
}

func setup(t *testing.T, ids ...string) (*storage.SQLiteRepository, *sheetmem.Sheet) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	for _, id := range ids {
		_, err := repo.AppendEntry(context.Background(), core.Entry{
			ID: id, Kind: core.KindIncome, Subtype: "Tithe", Account: "Main", Department: "Finance",
			Date: "2024-01-07", Amount: decimal.NewFromInt(100),
		})
		require.NoError(t, err)
	}
	return repo, sheetmem.New(nil)
}

func TestHandleSyncMessage(t *testing.T) {
	ctx := context.Background()
	repo, sheet := setup(t, "e-1")
	w := NewSyncWorker(repo, sheet, nil, nil, 10)

	require.NoError(t, w.HandleSyncMessage(ctx, amqp.NewEntrySyncMessage("e-1")))
	require.Len(t, sheet.Rows(), 1)
	assert.Equal(t, "e-1", sheet.Rows()[0].ID)

	// redelivery does not append twice
	require.NoError(t, w.HandleSyncMessage(ctx, amqp.NewEntrySyncMessage("e-1")))
	assert.Len(t, sheet.Rows(), 1)

	// unknown entries are dropped rather than requeued forever
	assert.NoError(t, w.HandleSyncMessage(ctx, amqp.NewEntrySyncMessage("missing")))
}

func TestSheetFailureLeavesEntryPending(t *testing.T) {
	ctx := context.Background()
	repo, sheet := setup(t, "e-1", "e-2")
	w := NewSyncWorker(repo, sheet, nil, nil, 10)

	sheet.FailWith(errors.New("quota exceeded"))
	require.NoError(t, w.HandleSyncMessage(ctx, amqp.NewEntrySyncMessage("e-1")))

	pending, err := repo.GetPendingSync(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "quota exceeded", pending[0].SyncError)

	sheet.FailWith(nil)
	n, err := w.ProcessPendingEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, sheet.Rows(), 2)

	pending, err = repo.GetPendingSync(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestProcessPendingRespectsBatchSize(t *testing.T) {
	ctx := context.Background()
	repo, sheet := setup(t, "a", "b", "c")
	w := NewSyncWorker(repo, sheet, nil, nil, 2)

	n, err := w.ProcessPendingEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, w.StartupSyncCheck(ctx))
	assert.Len(t, sheet.Rows(), 3)
}

func TestRefreshBudgets(t *testing.T) {
	ctx := context.Background()
	repo, _ := setup(t)
	sheet := sheetmem.New(core.BudgetTree{"Youth": core.FlatTotal{Amount: decimal.NewFromInt(500)}})

	n, err := NewSyncWorker(repo, sheet, nil, nil, 10).RefreshBudgets(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "no reader configured")

	imp := &recordingImporter{}
	n, err = NewSyncWorker(repo, sheet, sheet, imp, 10).RefreshBudgets(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "500", imp.tree["Youth"].Total().String())
}
