package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
	ports "ledger/internal/sheets"
)

// Sheet is an in-process stand-in for the spreadsheet mirror.
type Sheet struct {
	mu      sync.Mutex
	rows    []core.Entry
	budgets core.BudgetTree
	failing error
}

var (
	_ ports.EntryWriter  = (*Sheet)(nil)
	_ ports.BudgetReader = (*Sheet)(nil)
)

func New(budgets core.BudgetTree) *Sheet {
	if budgets == nil {
		budgets = core.BudgetTree{}
	}
	return &Sheet{budgets: budgets}
}

// NewFromSeedFile reads "key|item|amount" lines; blank item sets the total.
// A missing file yields an empty sheet.
func NewFromSeedFile(path string) (*Sheet, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return New(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open budget seed: %w", err)
	}
	defer f.Close()

	raw := map[string]map[string]any{}
	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, "|")
		if len(parts) != 3 {
			return nil, fmt.Errorf("budget seed line %d: want key|item|amount", n)
		}
		key, item := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		amount, err := decimal.NewFromString(strings.TrimSpace(parts[2]))
		if err != nil || key == "" {
			return nil, fmt.Errorf("budget seed line %d: invalid row", n)
		}
		rec, ok := raw[key]
		if !ok {
			rec = map[string]any{"items": map[string]any{}}
			raw[key] = rec
		}
		if item == "" {
			rec["total"] = amount
			continue
		}
		rec["items"].(map[string]any)[item] = amount
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read budget seed: %w", err)
	}

	tree := core.BudgetTree{}
	for key, rec := range raw {
		if len(rec["items"].(map[string]any)) == 0 {
			tree[key] = core.NormalizeBudget(rec["total"])
			continue
		}
		tree[key] = core.NormalizeBudget(map[string]any(rec))
	}
	return New(tree), nil
}

// FailWith makes subsequent appends return err; nil restores normal behaviour.
func (s *Sheet) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = err
}

func (s *Sheet) AppendEntry(_ context.Context, e core.Entry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing != nil {
		return "", s.failing
	}
	s.rows = append(s.rows, e)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

func (s *Sheet) ReadBudgets(_ context.Context) (core.BudgetTree, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(core.BudgetTree, len(s.budgets))
	for k, v := range s.budgets {
		out[k] = v
	}
	return out, nil
}

// Rows returns a copy of the appended entries.
func (s *Sheet) Rows() []core.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Entry(nil), s.rows...)
}
