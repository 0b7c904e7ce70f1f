package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ledger/internal/cache"
	"ledger/internal/core"
	"ledger/internal/store"
)

var (
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidAccount = errors.New("account must be Main or Building Fund")
	ErrEmptyBudgetKey = errors.New("empty budget key")
)

// Publisher announces appended entries to downstream consumers.
type Publisher interface {
	PublishEntrySync(ctx context.Context, entryID string) error
}

// EntryInput is an entry as submitted by a user, before identity is applied.
type EntryInput struct {
	Kind        string
	Subtype     string
	Account     string
	Description string
	Date        string
	Amount      string
	BudgetItem  string
}

// ImportResult summarises a bulk import.
type ImportResult struct {
	Imported int
	Rejected []error
}

// LedgerService orchestrates ledger operations over a store, the event
// publisher and the dashboard cache.
type LedgerService struct {
	store      store.Store
	publisher  Publisher
	dashboards cache.Cache[core.Summary]
	now        func() time.Time
}

// NewLedgerService wires the service. publisher and dashboards may be nil.
func NewLedgerService(st store.Store, publisher Publisher, dashboards cache.Cache[core.Summary]) *LedgerService {
	return &LedgerService{
		store:      st,
		publisher:  publisher,
		dashboards: dashboards,
		now:        time.Now,
	}
}

// RecordEntry applies the caller's identity to in and appends the result.
// A Senior Pastor is read-only; a Finance Manager posts into a managed
// account; everyone else posts into their own department account.
func (s *LedgerService) RecordEntry(ctx context.Context, scope core.Scope, in EntryInput) (core.Entry, error) {
	var account string
	switch scope.Role {
	case core.RoleSeniorPastor:
		return core.Entry{}, fmt.Errorf("%w: %s may not record entries", ErrForbidden, scope.Role)
	case core.RoleFinanceManager:
		account = strings.TrimSpace(in.Account)
		if !core.IsManagedAccount(account) {
			return core.Entry{}, fmt.Errorf("%w: %w", core.ErrInvalidEntry, ErrInvalidAccount)
		}
	default:
		account = scope.Department
	}

	amount, err := core.ParseAmount(in.Amount)
	if err != nil {
		return core.Entry{}, fmt.Errorf("%w: %w", core.ErrInvalidEntry, err)
	}

	return s.AppendEntry(ctx, core.Entry{
		Kind:        core.Kind(in.Kind),
		Subtype:     in.Subtype,
		Account:     account,
		Department:  scope.Department,
		Description: in.Description,
		Date:        in.Date,
		Amount:      amount,
		BudgetItem:  in.BudgetItem,
	})
}

// AppendEntry validates and stores a fully-formed entry, then announces it.
// A publish failure is logged; the entry is already durable.
func (s *LedgerService) AppendEntry(ctx context.Context, e core.Entry) (core.Entry, error) {
	e = e.Normalize()
	e.ID = uuid.NewString()
	e.CreatedAt = s.now().UTC()

	if err := e.Validate(); err != nil {
		return core.Entry{}, err
	}

	id, err := s.store.AppendEntry(ctx, e)
	if err != nil {
		return core.Entry{}, fmt.Errorf("save entry: %w", err)
	}
	e.ID = id
	s.invalidate()

	if s.publisher == nil {
		slog.DebugContext(ctx, "No publisher configured, skipping entry event", "id", id)
		return e, nil
	}
	if err := s.publisher.PublishEntrySync(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish entry event", "id", id, "error", err)
	}
	return e, nil
}

// ImportEntries appends already-mapped entries one by one. Invalid entries
// are collected; a store failure aborts the import.
func (s *LedgerService) ImportEntries(ctx context.Context, entries []core.Entry) (ImportResult, error) {
	var res ImportResult
	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if _, err := s.AppendEntry(ctx, e); err != nil {
			if errors.Is(err, core.ErrInvalidEntry) {
				res.Rejected = append(res.Rejected, fmt.Errorf("entry %d: %w", i, err))
				continue
			}
			return res, err
		}
		res.Imported++
	}
	return res, nil
}

// UpdateBudget replaces the whole record under key. Finance Manager only.
func (s *LedgerService) UpdateBudget(ctx context.Context, scope core.Scope, key string, body []byte) (core.ResolvedBudget, error) {
	if scope.Role != core.RoleFinanceManager {
		return core.ResolvedBudget{}, fmt.Errorf("%w: only a Finance Manager may edit budgets", ErrForbidden)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return core.ResolvedBudget{}, fmt.Errorf("%w: %w", core.ErrInvalidBudget, ErrEmptyBudgetKey)
	}
	b, err := core.ParseBudgetInput(body)
	if err != nil {
		return core.ResolvedBudget{}, err
	}
	if err := s.store.ReplaceBudget(ctx, key, b); err != nil {
		return core.ResolvedBudget{}, fmt.Errorf("replace budget: %w", err)
	}
	s.invalidate()
	return core.ResolveBudget(core.BudgetTree{key: b}, key), nil
}

// ImportBudgets replaces every record in tree, e.g. from the budget sheet.
func (s *LedgerService) ImportBudgets(ctx context.Context, tree core.BudgetTree) (int, error) {
	n := 0
	for key, b := range tree {
		if err := s.store.ReplaceBudget(ctx, key, b); err != nil {
			return n, fmt.Errorf("replace budget %s: %w", key, err)
		}
		n++
	}
	if n > 0 {
		s.invalidate()
	}
	return n, nil
}

// Budget resolves the record stored under key.
func (s *LedgerService) Budget(ctx context.Context, key string) (core.ResolvedBudget, error) {
	tree, err := s.store.LoadBudgets(ctx)
	if err != nil {
		return core.ResolvedBudget{}, fmt.Errorf("load budgets: %w", err)
	}
	return core.ResolveBudget(tree, key), nil
}

// Dashboard builds (or serves from cache) the summary for scope and month.
// Cached summaries are keyed by the store revision, so a write made by
// another process sharing the backend is seen on the next call.
func (s *LedgerService) Dashboard(ctx context.Context, scope core.Scope, year, month int) (core.Summary, error) {
	var (
		key       string
		gen       uint64
		cacheable bool
	)
	if s.dashboards != nil {
		rev, err := s.store.Revision(ctx)
		if err != nil {
			slog.WarnContext(ctx, "Store revision unavailable, bypassing dashboard cache", "error", err)
		} else {
			key = dashboardKey(scope, year, month, rev)
			if sum, ok := s.dashboards.Get(key); ok {
				return sum, nil
			}
			gen = s.dashboards.Generation()
			cacheable = true
		}
	}

	var (
		entries []core.Entry
		budgets core.BudgetTree
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entries, err = s.store.ListEntries(gctx)
		if err != nil {
			return fmt.Errorf("list entries: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		budgets, err = s.store.LoadBudgets(gctx)
		if err != nil {
			return fmt.Errorf("load budgets: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return core.Summary{}, err
	}

	sum := core.BuildSummary(entries, budgets, scope, year, month)
	if cacheable {
		s.dashboards.SetIfGeneration(key, sum, gen)
	}
	return sum, nil
}

// MonthEntries lists the entries scope can see in year/month.
func (s *LedgerService) MonthEntries(ctx context.Context, scope core.Scope, year, month int) ([]core.Entry, error) {
	entries, err := s.store.ListEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return core.EntriesInPeriod(core.VisibleEntries(entries, scope), year, month), nil
}

// Report filters every entry for a Finance Manager or Senior Pastor.
func (s *LedgerService) Report(ctx context.Context, scope core.Scope, f core.ReportFilter) ([]core.Entry, error) {
	if scope.Role != core.RoleFinanceManager && scope.Role != core.RoleSeniorPastor {
		return nil, fmt.Errorf("%w: reports are restricted", ErrForbidden)
	}
	entries, err := s.store.ListEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return core.FilterReport(entries, f), nil
}

func (s *LedgerService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *LedgerService) invalidate() {
	if s.dashboards != nil {
		s.dashboards.Purge()
	}
}

func dashboardKey(scope core.Scope, year, month int, revision string) string {
	return fmt.Sprintf("%s|%s|%s|%d|%02d|%s", scope.Role, scope.Department, scope.Account, year, month, revision)
}

// Close closes the store and, when it can be closed, the publisher.
func (s *LedgerService) Close() error {
	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if c, ok := s.publisher.(interface{ Close() error }); ok && c != nil {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %w", errors.Join(errs...))
	}
	return nil
}
