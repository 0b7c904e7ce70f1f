package sheets

import (
	"context"

	"ledger/internal/core"
)

// Ports for the spreadsheet mirror.
type (
	// EntryWriter appends one ledger row to the spreadsheet.
	EntryWriter interface {
		AppendEntry(ctx context.Context, e core.Entry) (rowRef string, err error)
	}

	// BudgetReader loads budget records maintained in the spreadsheet.
	BudgetReader interface {
		ReadBudgets(ctx context.Context) (core.BudgetTree, error)
	}
)
