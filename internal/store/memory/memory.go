package memory

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"ledger/internal/core"
)

// Store keeps entries and budgets in process memory.
type Store struct {
	mu       sync.Mutex
	entries  []core.Entry
	budgets  core.BudgetTree
	revision uint64
}

func New() *Store {
	return &Store{budgets: core.BudgetTree{}}
}

// NewWithData seeds the store; used by tests and the demo backend.
func NewWithData(entries []core.Entry, budgets core.BudgetTree) *Store {
	s := New()
	s.entries = append(s.entries, entries...)
	for k, v := range budgets {
		s.budgets[k] = v
	}
	return s
}

// AppendEntry stores the entry and returns its ID.
func (s *Store) AppendEntry(_ context.Context, e core.Entry) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	s.revision++
	return e.ID, nil
}

// ListEntries returns a copy of the entries in insertion order.
func (s *Store) ListEntries(_ context.Context) ([]core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Entry(nil), s.entries...), nil
}

func (s *Store) LoadBudgets(_ context.Context) (core.BudgetTree, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(core.BudgetTree, len(s.budgets))
	for k, v := range s.budgets {
		out[k] = v
	}
	return out, nil
}

func (s *Store) ReplaceBudget(_ context.Context, key string, b core.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets[key] = b
	s.revision++
	return nil
}

func (s *Store) Revision(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strconv.FormatUint(s.revision, 10), nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
