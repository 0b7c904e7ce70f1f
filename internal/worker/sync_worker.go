package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/sheets"
	"ledger/internal/storage"
	"ledger/internal/store"
)

// SyncStore is the slice of the SQLite repository the worker needs.
type SyncStore interface {
	GetEntry(ctx context.Context, id string) (core.Entry, error)
	IsSynced(ctx context.Context, id string) (bool, error)
	GetPendingSync(ctx context.Context, limit int) ([]storage.PendingEntry, error)
	MarkSynced(ctx context.Context, id string) error
	MarkSyncError(ctx context.Context, id string, cause error) error
}

// BudgetImporter replaces budget records, invalidating derived views.
type BudgetImporter interface {
	ImportBudgets(ctx context.Context, tree core.BudgetTree) (int, error)
}

// SyncWorker mirrors appended entries into the spreadsheet and pulls budget
// records back from it.
type SyncWorker struct {
	storage   SyncStore
	sheets    sheets.EntryWriter
	budgets   sheets.BudgetReader
	importer  BudgetImporter
	batchSize int
}

// NewSyncWorker wires the worker. budgets and importer may both be nil, in
// which case RefreshBudgets is a no-op.
func NewSyncWorker(st SyncStore, writer sheets.EntryWriter, budgets sheets.BudgetReader, importer BudgetImporter, batchSize int) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &SyncWorker{
		storage:   st,
		sheets:    writer,
		budgets:   budgets,
		importer:  importer,
		batchSize: batchSize,
	}
}

// HandleSyncMessage processes a single entry sync message from AMQP.
// Redelivered messages for already mirrored entries are acknowledged without
// a second append. A spreadsheet failure is recorded on the entry and left
// to the pending sweep; only storage failures ask for a redelivery.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.EntrySyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message", "entry_id", msg.EntryID)

	synced, err := w.storage.IsSynced(ctx, msg.EntryID)
	if errors.Is(err, store.ErrNotFound) {
		slog.WarnContext(ctx, "Sync message for unknown entry, dropping", "entry_id", msg.EntryID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("check sync state: %w", err)
	}
	if synced {
		slog.InfoContext(ctx, "Entry already synced, skipping", "entry_id", msg.EntryID)
		return nil
	}

	entry, err := w.storage.GetEntry(ctx, msg.EntryID)
	if err != nil {
		return fmt.Errorf("get entry from storage: %w", err)
	}

	if err := w.syncEntryToSheets(ctx, entry); err != nil {
		slog.ErrorContext(ctx, "Entry left pending for the sweep", "entry_id", msg.EntryID, "error", err)
	}
	return nil
}

// ProcessPendingEntries mirrors up to one batch of unsynced entries.
// This is the backup path for lost or failed AMQP messages.
func (w *SyncWorker) ProcessPendingEntries(ctx context.Context) (int, error) {
	return w.processPending(ctx, w.batchSize)
}

// StartupSyncCheck drains a larger batch at worker startup, to recover from
// downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, err := w.processPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	slog.InfoContext(ctx, "Startup sync completed", "synced", synced)
	return nil
}

func (w *SyncWorker) processPending(ctx context.Context, limit int) (int, error) {
	pending, err := w.storage.GetPendingSync(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending entries: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "Processing pending entries", "count", len(pending))

	synced := 0
	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return synced, err
		}
		if p.SyncError != "" {
			slog.DebugContext(ctx, "Retrying entry", "entry_id", p.Entry.ID, "last_error", p.SyncError)
		}
		if err := w.syncEntryToSheets(ctx, p.Entry); err != nil {
			slog.ErrorContext(ctx, "Failed to sync entry", "entry_id", p.Entry.ID, "error", err)
			continue
		}
		synced++
	}
	return synced, nil
}

// RefreshBudgets reloads budget records from the spreadsheet into the store.
func (w *SyncWorker) RefreshBudgets(ctx context.Context) (int, error) {
	if w.budgets == nil || w.importer == nil {
		return 0, nil
	}
	tree, err := w.budgets.ReadBudgets(ctx)
	if err != nil {
		return 0, fmt.Errorf("read budgets from sheets: %w", err)
	}
	n, err := w.importer.ImportBudgets(ctx, tree)
	if err != nil {
		return n, fmt.Errorf("import budgets: %w", err)
	}
	return n, nil
}

func (w *SyncWorker) syncEntryToSheets(ctx context.Context, e core.Entry) error {
	ref, err := w.sheets.AppendEntry(ctx, e)
	if err != nil {
		if markErr := w.storage.MarkSyncError(ctx, e.ID, err); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "entry_id", e.ID, "error", markErr)
		}
		return fmt.Errorf("append to sheets: %w", err)
	}

	// the row exists now; a failed mark only risks a duplicate on the next sweep
	if err := w.storage.MarkSynced(ctx, e.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to mark as synced", "entry_id", e.ID, "error", err)
	}

	slog.InfoContext(ctx, "Successfully synced entry",
		"entry_id", e.ID,
		"sheets_ref", ref,
		"kind", e.Kind,
		"amount", e.Amount.StringFixed(2))
	return nil
}
