package google

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

// entryRow is the column layout of the ledger tab:
// ID | Date | Kind | Account | Department | Subtype | Description | Amount | Budget item
func entryRow(e core.Entry) []any {
	return []any{
		e.ID,
		e.Date,
		e.Kind.String(),
		e.Account,
		e.Department,
		e.Subtype,
		e.Description,
		e.Amount.StringFixed(2),
		e.BudgetItem,
	}
}

// parseBudgetRows groups "key | item | amount" rows into budget records. A
// row without an item sets the declared total; a key with no item rows stays
// a flat total. Rows without a key or a readable amount are counted and skipped.
func parseBudgetRows(values [][]interface{}) (core.BudgetTree, int) {
	type acc struct {
		total    any
		items    map[string]any
		itemized bool
	}
	byKey := map[string]*acc{}
	order := []string{}
	skipped := 0

	for _, raw := range values {
		row := toStrings(raw)
		key := safeGet(row, 0)
		item := safeGet(row, 1)
		if key == "" {
			if item != "" || safeGet(row, 2) != "" {
				skipped++
			}
			continue
		}
		amount, ok := cellAmount(raw, 2)
		if !ok {
			skipped++
			continue
		}
		a, seen := byKey[key]
		if !seen {
			a = &acc{items: map[string]any{}}
			byKey[key] = a
			order = append(order, key)
		}
		if item == "" {
			a.total = amount
			continue
		}
		a.itemized = true
		a.items[item] = amount
	}

	tree := make(core.BudgetTree, len(byKey))
	for _, key := range order {
		a := byKey[key]
		if !a.itemized {
			tree[key] = core.NormalizeBudget(a.total)
			continue
		}
		tree[key] = core.NormalizeBudget(map[string]any{"total": a.total, "items": a.items})
	}
	return tree, skipped
}

// cellAmount reads a numeric cell. Unformatted values arrive as float64;
// formatted ones may carry thousands separators or a currency sign.
func cellAmount(row []interface{}, idx int) (decimal.Decimal, bool) {
	if idx >= len(row) {
		return decimal.Zero, false
	}
	switch v := row[idx].(type) {
	case float64:
		return decimal.NewFromFloat(v), true
	case string:
		s := strings.TrimSpace(v)
		s = strings.TrimLeft(s, "$€£ ")
		s = strings.ReplaceAll(s, ",", "")
		if s == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(s)
		return d, err == nil
	default:
		return decimal.Zero, false
	}
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
