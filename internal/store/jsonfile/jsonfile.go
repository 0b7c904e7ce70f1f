// Package jsonfile persists the ledger as JSON documents in a directory.
//
// Every read-modify-write reloads the file under the store lock right before
// writing, so two handlers in the same process never overwrite each other's
// appends. Writes go through a temp file and a rename.
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

const (
	EntriesFile  = "entries.json"
	BudgetsFile  = "budgets.json"
	RevisionFile = "revision"
)

type Store struct {
	mu  sync.Mutex
	dir string
}

type entryRecord struct {
	ID          string          `json:"id"`
	Kind        string          `json:"kind"`
	Subtype     string          `json:"subtype"`
	Account     string          `json:"account"`
	Department  string          `json:"department"`
	Description string          `json:"description"`
	Date        string          `json:"date"`
	Amount      json.RawMessage `json:"amount"`
	BudgetItem  string          `json:"budget_item,omitempty"`
	CreatedAt   string          `json:"created_at,omitempty"`
}

// New opens (and creates if needed) a store rooted at dir.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *Store) AppendEntry(ctx context.Context, e core.Entry) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readEntries()
	if err != nil {
		return "", err
	}
	rec, err := json.Marshal(toRecord(e))
	if err != nil {
		return "", fmt.Errorf("encode entry %s: %w", e.ID, err)
	}
	records = append(records, rec)
	if err := s.writeJSON(EntriesFile, records); err != nil {
		return "", err
	}
	if err := s.bumpRevision(); err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "Entry saved to JSON file",
		"id", e.ID,
		"kind", e.Kind,
		"account", e.Account,
		"amount", e.Amount.StringFixed(2),
		"count", len(records))
	return e.ID, nil
}

func (s *Store) ListEntries(ctx context.Context) ([]core.Entry, error) {
	s.mu.Lock()
	records, err := s.readEntries()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := make([]core.Entry, 0, len(records))
	for i, raw := range records {
		if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			continue
		}
		var r entryRecord
		if err := json.Unmarshal(raw, &r); err != nil {
			slog.WarnContext(ctx, "Skipping unreadable entry record", "index", i, "error", err)
			continue
		}
		out = append(out, r.toCore(ctx))
	}
	return out, nil
}

func (s *Store) LoadBudgets(_ context.Context) (core.BudgetTree, error) {
	s.mu.Lock()
	raw, err := s.readBudgets()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	tree := make(core.BudgetTree, len(raw))
	for k, v := range raw {
		tree[k] = core.NormalizeBudget(v)
	}
	return tree, nil
}

// ReplaceBudget rewrites one key and leaves every other record as stored,
// including legacy shapes.
func (s *Store) ReplaceBudget(ctx context.Context, key string, b core.Budget) error {
	body, err := core.MarshalBudget(b)
	if err != nil {
		return fmt.Errorf("encode budget %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.readBudgets()
	if err != nil {
		return err
	}
	raw[key] = json.RawMessage(body)
	if err := s.writeJSON(BudgetsFile, raw); err != nil {
		return err
	}
	if err := s.bumpRevision(); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Budget replaced", "key", key, "total", b.Total().StringFixed(2))
	return nil
}

// Revision combines the token rewritten on every write with the size and
// mtime of both data files, so edits made outside the store count too.
func (s *Store) Revision(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, err := os.ReadFile(s.path(RevisionFile))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("read %s: %w", RevisionFile, err)
	}
	parts := []string{string(bytes.TrimSpace(token))}
	for _, name := range []string{EntriesFile, BudgetsFile} {
		info, err := os.Stat(s.path(name))
		switch {
		case errors.Is(err, os.ErrNotExist):
			parts = append(parts, "-")
		case err != nil:
			return "", fmt.Errorf("stat %s: %w", name, err)
		default:
			parts = append(parts, fmt.Sprintf("%d.%d", info.ModTime().UnixNano(), info.Size()))
		}
	}
	return strings.Join(parts, ":"), nil
}

func (s *Store) Ping(context.Context) error {
	_, err := os.Stat(s.dir)
	return err
}

func (s *Store) Close() error { return nil }

// readEntries returns the stored records undecoded; a rewrite keeps the
// ones ListEntries has to skip.
func (s *Store) readEntries() ([]json.RawMessage, error) {
	data, err := os.ReadFile(s.path(EntriesFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", EntriesFile, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", EntriesFile, err)
	}
	return records, nil
}

func (s *Store) readBudgets() (map[string]any, error) {
	out := map[string]any{}
	data, err := os.ReadFile(s.path(BudgetsFile))
	if errors.Is(err, os.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", BudgetsFile, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return out, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", BudgetsFile, err)
	}
	return out, nil
}

func (s *Store) bumpRevision() error {
	return s.writeFile(RevisionFile, []byte(uuid.NewString()+"\n"))
}

func (s *Store) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return s.writeFile(name, data)
}

func (s *Store) writeFile(name string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), s.path(name)); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

func toRecord(e core.Entry) entryRecord {
	return entryRecord{
		ID:          e.ID,
		Kind:        e.Kind.String(),
		Subtype:     e.Subtype,
		Account:     e.Account,
		Department:  e.Department,
		Description: e.Description,
		Date:        e.Date,
		Amount:      json.RawMessage(e.Amount.String()),
		BudgetItem:  e.BudgetItem,
		CreatedAt:   e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (r entryRecord) toCore(ctx context.Context) core.Entry {
	created, _ := time.Parse(time.RFC3339Nano, r.CreatedAt)
	return core.Entry{
		ID:          r.ID,
		Kind:        core.Kind(r.Kind),
		Subtype:     r.Subtype,
		Account:     r.Account,
		Department:  r.Department,
		Description: r.Description,
		Date:        r.Date,
		Amount:      rawAmount(ctx, r.ID, r.Amount),
		BudgetItem:  r.BudgetItem,
		CreatedAt:   created,
	}
}

// rawAmount accepts a JSON number or numeric string; anything else reads as zero.
func rawAmount(ctx context.Context, id string, raw json.RawMessage) decimal.Decimal {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		slog.WarnContext(ctx, "Unparsable stored amount", "id", id, "amount", string(raw))
		return decimal.Zero
	}
	return d
}
