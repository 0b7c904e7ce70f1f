package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// EntryRow mirrors the entries table.
type EntryRow struct {
	Seq         int64
	ID          string
	Kind        string
	Subtype     string
	Account     string
	Department  string
	Description string
	Date        string
	Amount      string
	BudgetItem  sql.NullString
	CreatedAt   string
	SyncedAt    sql.NullString
	SyncError   sql.NullString
}

type BudgetRow struct {
	Key       string
	Body      string
	UpdatedAt string
}

const entryColumns = `seq, id, kind, subtype, account, department, description, date, amount, budget_item, created_at, synced_at, sync_error`

func scanEntry(sc interface{ Scan(...any) error }) (EntryRow, error) {
	var r EntryRow
	err := sc.Scan(
		&r.Seq,
		&r.ID,
		&r.Kind,
		&r.Subtype,
		&r.Account,
		&r.Department,
		&r.Description,
		&r.Date,
		&r.Amount,
		&r.BudgetItem,
		&r.CreatedAt,
		&r.SyncedAt,
		&r.SyncError,
	)
	return r, err
}

const createEntry = `INSERT INTO entries (id, kind, subtype, account, department, description, date, amount, budget_item, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

type CreateEntryParams struct {
	ID          string
	Kind        string
	Subtype     string
	Account     string
	Department  string
	Description string
	Date        string
	Amount      string
	BudgetItem  sql.NullString
	CreatedAt   string
}

func (q *Queries) CreateEntry(ctx context.Context, arg CreateEntryParams) error {
	_, err := q.db.ExecContext(ctx, createEntry,
		arg.ID,
		arg.Kind,
		arg.Subtype,
		arg.Account,
		arg.Department,
		arg.Description,
		arg.Date,
		arg.Amount,
		arg.BudgetItem,
		arg.CreatedAt,
	)
	return err
}

const getEntry = `SELECT ` + entryColumns + ` FROM entries WHERE id = ?`

func (q *Queries) GetEntry(ctx context.Context, id string) (EntryRow, error) {
	return scanEntry(q.db.QueryRowContext(ctx, getEntry, id))
}

const listEntries = `SELECT ` + entryColumns + ` FROM entries ORDER BY seq`

func (q *Queries) ListEntries(ctx context.Context) ([]EntryRow, error) {
	return q.queryEntries(ctx, listEntries)
}

const getPendingSyncEntries = `SELECT ` + entryColumns + ` FROM entries
WHERE synced_at IS NULL
ORDER BY seq
LIMIT ?`

func (q *Queries) GetPendingSyncEntries(ctx context.Context, limit int64) ([]EntryRow, error) {
	return q.queryEntries(ctx, getPendingSyncEntries, limit)
}

func (q *Queries) queryEntries(ctx context.Context, query string, args ...interface{}) ([]EntryRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []EntryRow
	for rows.Next() {
		r, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const markEntrySynced = `UPDATE entries SET synced_at = ?, sync_error = NULL WHERE id = ?`

func (q *Queries) MarkEntrySynced(ctx context.Context, syncedAt, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, markEntrySynced, syncedAt, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const markEntrySyncError = `UPDATE entries SET sync_error = ? WHERE id = ?`

func (q *Queries) MarkEntrySyncError(ctx context.Context, msg, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, markEntrySyncError, msg, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listBudgets = `SELECT key, body, updated_at FROM budgets ORDER BY key`

func (q *Queries) ListBudgets(ctx context.Context) ([]BudgetRow, error) {
	rows, err := q.db.QueryContext(ctx, listBudgets)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []BudgetRow
	for rows.Next() {
		var r BudgetRow
		if err := rows.Scan(&r.Key, &r.Body, &r.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertBudget = `INSERT INTO budgets (key, body, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`

type UpsertBudgetParams struct {
	Key       string
	Body      string
	UpdatedAt string
}

func (q *Queries) UpsertBudget(ctx context.Context, arg UpsertBudgetParams) error {
	_, err := q.db.ExecContext(ctx, upsertBudget, arg.Key, arg.Body, arg.UpdatedAt)
	return err
}

const getRevision = `SELECT n FROM ledger_revision WHERE id = 1`

func (q *Queries) GetRevision(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, getRevision).Scan(&n)
	return n, err
}
