package store

import (
	"context"
	"errors"

	"ledger/internal/core"
)

var ErrNotFound = errors.New("not found")

// Ports for the persistence backends.
type (
	// EntryStore is append-only: entries are never updated or deleted.
	EntryStore interface {
		// ListEntries returns every stored entry in insertion order.
		ListEntries(ctx context.Context) ([]core.Entry, error)
		// AppendEntry stores a validated entry and returns its ID.
		AppendEntry(ctx context.Context, e core.Entry) (id string, err error)
	}

	BudgetStore interface {
		// LoadBudgets returns every budget record, already normalised.
		LoadBudgets(ctx context.Context) (core.BudgetTree, error)
		// ReplaceBudget overwrites the whole record stored under key.
		ReplaceBudget(ctx context.Context, key string, b core.Budget) error
	}

	// Store is what the ledger service needs from a backend.
	Store interface {
		EntryStore
		BudgetStore
		// Revision changes whenever an entry is appended or a budget is
		// written, by this process or any other sharing the backend.
		Revision(ctx context.Context) (string, error)
		Ping(ctx context.Context) error
		Close() error
	}
)
