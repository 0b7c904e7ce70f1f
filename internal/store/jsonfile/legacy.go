package jsonfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ledger/internal/core"
)

// Flat files written by the earlier single-account deployment.
const (
	LegacyIncomeFile  = "income_log.json"
	LegacyExpenseFile = "expense_log.json"
)

// Subtype given to legacy income records, which carry no category.
const DefaultIncomeSubtype = "General"

// LegacyRecord is one element of income_log.json or expense_log.json.
type LegacyRecord struct {
	Amount     json.Number `json:"amount"`
	Note       string      `json:"note"`
	Category   string      `json:"category"`
	Date       string      `json:"date"`
	Department string      `json:"department"`
}

// ToEntry maps a legacy record onto an entry posted into account. An empty
// account falls back to the record's department. A "YYYY-MM-DD HH:MM:SS"
// timestamp keeps only its date part.
func (r LegacyRecord) ToEntry(kind core.Kind, account string) (core.Entry, error) {
	amount, err := core.ParseAmount(r.Amount.String())
	if err != nil {
		return core.Entry{}, fmt.Errorf("amount %q: %w", r.Amount, err)
	}
	subtype := strings.TrimSpace(r.Category)
	if subtype == "" && kind == core.KindIncome {
		subtype = DefaultIncomeSubtype
	}
	date := strings.TrimSpace(r.Date)
	if len(date) > len(core.DateLayout) {
		date = date[:len(core.DateLayout)]
	}
	dept := strings.TrimSpace(r.Department)
	if account = strings.TrimSpace(account); account == "" {
		account = dept
	}
	return core.Entry{
		Kind:        kind,
		Subtype:     subtype,
		Account:     account,
		Department:  dept,
		Description: strings.TrimSpace(r.Note),
		Date:        date,
		Amount:      amount,
	}, nil
}

// LegacyBatch is everything read from one legacy directory.
type LegacyBatch struct {
	Entries []core.Entry
	Skipped []error
}

// ReadLegacy loads both legacy logs from dir and posts every record into
// account (see ToEntry). Missing files are empty; records that cannot be
// mapped land in Skipped.
func ReadLegacy(dir, account string) (LegacyBatch, error) {
	var batch LegacyBatch
	sources := []struct {
		file string
		kind core.Kind
	}{
		{LegacyIncomeFile, core.KindIncome},
		{LegacyExpenseFile, core.KindExpense},
	}
	for _, src := range sources {
		records, err := readLegacyFile(filepath.Join(dir, src.file))
		if err != nil {
			return LegacyBatch{}, err
		}
		for i, r := range records {
			e, err := r.ToEntry(src.kind, account)
			if err != nil {
				batch.Skipped = append(batch.Skipped, fmt.Errorf("%s[%d]: %w", src.file, i, err))
				continue
			}
			batch.Entries = append(batch.Entries, e)
		}
	}
	return batch, nil
}

func readLegacyFile(path string) ([]LegacyRecord, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var records []LegacyRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return records, nil
}
