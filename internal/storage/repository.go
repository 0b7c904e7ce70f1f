package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledger/internal/core"
	"ledger/internal/store"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	version uint
}

// PendingEntry is an entry not yet mirrored to the spreadsheet.
type PendingEntry struct {
	Entry     core.Entry
	SyncError string
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		version: version,
	}, nil
}

// SchemaVersion is the migration version applied at open time.
func (r *SQLiteRepository) SchemaVersion() uint {
	return r.version
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// AppendEntry implements store.EntryStore.
func (r *SQLiteRepository) AppendEntry(ctx context.Context, e core.Entry) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	err := r.queries.CreateEntry(ctx, CreateEntryParams{
		ID:          e.ID,
		Kind:        e.Kind.String(),
		Subtype:     e.Subtype,
		Account:     e.Account,
		Department:  e.Department,
		Description: e.Description,
		Date:        e.Date,
		Amount:      e.Amount.String(),
		BudgetItem:  sql.NullString{String: e.BudgetItem, Valid: e.BudgetItem != ""},
		CreatedAt:   e.CreatedAt.UTC().Format(timeLayout),
	})
	if err != nil {
		return "", fmt.Errorf("create entry: %w", err)
	}

	slog.InfoContext(ctx, "Entry saved to SQLite",
		"id", e.ID,
		"kind", e.Kind,
		"account", e.Account,
		"department", e.Department,
		"amount", e.Amount.StringFixed(2),
		"date", e.Date)

	return e.ID, nil
}

// ListEntries implements store.EntryStore.
func (r *SQLiteRepository) ListEntries(ctx context.Context) ([]core.Entry, error) {
	rows, err := r.queries.ListEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	out := make([]core.Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toCore(ctx))
	}
	return out, nil
}

// GetEntry retrieves a single entry by ID.
func (r *SQLiteRepository) GetEntry(ctx context.Context, id string) (core.Entry, error) {
	row, err := r.queries.GetEntry(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Entry{}, fmt.Errorf("get entry %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return core.Entry{}, fmt.Errorf("get entry by id: %w", err)
	}
	return row.toCore(ctx), nil
}

// IsSynced reports whether the entry has already been mirrored.
func (r *SQLiteRepository) IsSynced(ctx context.Context, id string) (bool, error) {
	row, err := r.queries.GetEntry(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("get entry %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("get entry by id: %w", err)
	}
	return row.SyncedAt.Valid, nil
}

// LoadBudgets implements store.BudgetStore.
func (r *SQLiteRepository) LoadBudgets(ctx context.Context) (core.BudgetTree, error) {
	rows, err := r.queries.ListBudgets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	tree := make(core.BudgetTree, len(rows))
	for _, row := range rows {
		tree[row.Key] = core.UnmarshalBudget([]byte(row.Body))
	}
	return tree, nil
}

// ReplaceBudget implements store.BudgetStore.
func (r *SQLiteRepository) ReplaceBudget(ctx context.Context, key string, b core.Budget) error {
	body, err := core.MarshalBudget(b)
	if err != nil {
		return fmt.Errorf("encode budget %s: %w", key, err)
	}
	err = r.queries.UpsertBudget(ctx, UpsertBudgetParams{
		Key:       key,
		Body:      string(body),
		UpdatedAt: time.Now().UTC().Format(timeLayout),
	})
	if err != nil {
		return fmt.Errorf("upsert budget %s: %w", key, err)
	}

	slog.InfoContext(ctx, "Budget replaced", "key", key, "total", b.Total().StringFixed(2))
	return nil
}

// Revision implements store.Store. Triggers bump the counter on every
// entry insert and budget write, whichever connection made it.
func (r *SQLiteRepository) Revision(ctx context.Context) (string, error) {
	n, err := r.queries.GetRevision(ctx)
	if err != nil {
		return "", fmt.Errorf("read revision: %w", err)
	}
	return strconv.FormatInt(n, 10), nil
}

// GetPendingSync returns up to limit entries that still need to be synced.
func (r *SQLiteRepository) GetPendingSync(ctx context.Context, limit int) ([]PendingEntry, error) {
	rows, err := r.queries.GetPendingSyncEntries(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("get pending sync entries: %w", err)
	}
	out := make([]PendingEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, PendingEntry{Entry: row.toCore(ctx), SyncError: row.SyncError.String})
	}
	return out, nil
}

// MarkSynced marks an entry as successfully synced.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string) error {
	n, err := r.queries.MarkEntrySynced(ctx, time.Now().UTC().Format(timeLayout), id)
	if err != nil {
		return fmt.Errorf("mark entry synced: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("mark entry synced %s: %w", id, store.ErrNotFound)
	}

	slog.InfoContext(ctx, "Entry marked as synced", "id", id)
	return nil
}

// MarkSyncError records the last sync failure; the entry stays pending.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	n, err := r.queries.MarkEntrySyncError(ctx, msg, id)
	if err != nil {
		return fmt.Errorf("mark entry sync error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("mark entry sync error %s: %w", id, store.ErrNotFound)
	}

	slog.WarnContext(ctx, "Entry marked with sync error", "id", id, "error", msg)
	return nil
}

func (row EntryRow) toCore(ctx context.Context) core.Entry {
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		// corrupt rows still list; the aggregators treat them as zero
		slog.WarnContext(ctx, "Unparsable stored amount", "id", row.ID, "amount", row.Amount)
		amount = decimal.Zero
	}
	created, _ := time.Parse(timeLayout, row.CreatedAt)
	return core.Entry{
		ID:          row.ID,
		Kind:        core.Kind(row.Kind),
		Subtype:     row.Subtype,
		Account:     row.Account,
		Department:  row.Department,
		Description: row.Description,
		Date:        row.Date,
		Amount:      amount,
		BudgetItem:  row.BudgetItem.String,
		CreatedAt:   created,
	}
}
