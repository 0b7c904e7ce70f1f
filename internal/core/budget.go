package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// UnassignedItem collects expenses whose budget item is empty or unknown.
const UnassignedItem = "(Unassigned)"

var ErrInvalidBudget = errors.New("invalid budget")

// nested item values are searched for these keys, in order
var itemValueKeys = []string{"amount", "value", "budget"}

type (
	// Budget is either a FlatTotal or an Itemized record. Stored records are
	// normalised into one of the two shapes on read.
	Budget interface {
		Total() decimal.Decimal
		Items() map[string]decimal.Decimal
		isBudget()
	}

	// FlatTotal is a single budget limit without per-item detail.
	FlatTotal struct {
		Amount decimal.Decimal
	}

	// Itemized carries per-item limits and an optional declared total.
	Itemized struct {
		Declared decimal.Decimal
		Lines    map[string]decimal.Decimal
	}

	// BudgetTree maps a budget key (account or department name) to its record.
	BudgetTree map[string]Budget

	ResolvedBudget struct {
		Total decimal.Decimal
		Items map[string]decimal.Decimal
	}

	ItemRow struct {
		Name      string
		Budgeted  decimal.Decimal
		Spent     decimal.Decimal
		Remaining decimal.Decimal
	}
)

func (FlatTotal) isBudget() {}
func (Itemized) isBudget()  {}

func (b FlatTotal) Total() decimal.Decimal { return b.Amount }

func (b FlatTotal) Items() map[string]decimal.Decimal { return map[string]decimal.Decimal{} }

// Total is the declared total when non-zero, otherwise the sum of the items.
func (b Itemized) Total() decimal.Decimal {
	if !b.Declared.IsZero() {
		return b.Declared
	}
	sum := decimal.Zero
	for _, v := range b.Lines {
		sum = sum.Add(v)
	}
	return sum
}

func (b Itemized) Items() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(b.Lines))
	for k, v := range b.Lines {
		out[k] = v
	}
	return out
}

// NormalizeBudget coerces a JSON-decoded stored value into a Budget. It never
// fails: anything unrecognisable becomes a zero FlatTotal.
func NormalizeBudget(raw any) Budget {
	switch v := raw.(type) {
	case map[string]any:
		return normalizeItemized(v)
	case Budget:
		return v
	default:
		d, ok := coerceNumber(v)
		if !ok || d.IsNegative() {
			return FlatTotal{}
		}
		return FlatTotal{Amount: d}
	}
}

func normalizeItemized(m map[string]any) Itemized {
	b := Itemized{Lines: map[string]decimal.Decimal{}}
	if d, ok := coerceNumber(m["total"]); ok && d.IsPositive() {
		b.Declared = d
	}
	items, _ := m["items"].(map[string]any)
	for name, v := range items {
		d, ok := itemValue(v)
		if !ok || d.IsNegative() {
			continue
		}
		b.Lines[name] = d
	}
	return b
}

func itemValue(v any) (decimal.Decimal, bool) {
	nested, ok := v.(map[string]any)
	if !ok {
		return coerceNumber(v)
	}
	for _, key := range itemValueKeys {
		if raw, present := nested[key]; present {
			if d, ok := coerceNumber(raw); ok {
				return d, true
			}
		}
	}
	return decimal.Zero, false
}

func coerceNumber(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, true
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(n), true
	case float32:
		return decimal.NewFromFloat32(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		return d, err == nil
	default:
		return decimal.Zero, false
	}
}

// ParseBudgetInput validates a budget update body. It accepts a non-negative
// number or an object {"total": number, "items": {name: number}}.
func ParseBudgetInput(raw []byte) (Budget, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBudget, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", ErrInvalidBudget)
	}

	switch body := v.(type) {
	case json.Number:
		d, err := strictAmount(body)
		if err != nil {
			return nil, err
		}
		return FlatTotal{Amount: d}, nil
	case map[string]any:
		return parseItemizedInput(body)
	default:
		return nil, fmt.Errorf("%w: expected a number or an object", ErrInvalidBudget)
	}
}

func parseItemizedInput(body map[string]any) (Budget, error) {
	b := Itemized{Lines: map[string]decimal.Decimal{}}
	for key, val := range body {
		switch key {
		case "total":
			if val == nil {
				continue
			}
			n, ok := val.(json.Number)
			if !ok {
				return nil, fmt.Errorf("%w: total must be a number", ErrInvalidBudget)
			}
			d, err := strictAmount(n)
			if err != nil {
				return nil, err
			}
			b.Declared = d
		case "items":
			if val == nil {
				continue
			}
			items, ok := val.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: items must be an object", ErrInvalidBudget)
			}
			for name, raw := range items {
				name = strings.TrimSpace(name)
				if name == "" {
					return nil, fmt.Errorf("%w: empty item name", ErrInvalidBudget)
				}
				n, ok := raw.(json.Number)
				if !ok {
					return nil, fmt.Errorf("%w: item %q must be a number", ErrInvalidBudget, name)
				}
				d, err := strictAmount(n)
				if err != nil {
					return nil, err
				}
				b.Lines[name] = d
			}
		default:
			return nil, fmt.Errorf("%w: unknown field %q", ErrInvalidBudget, key)
		}
	}
	return b, nil
}

func strictAmount(n json.Number) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a number", ErrInvalidBudget, n)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative amount %s", ErrInvalidBudget, d)
	}
	return d, nil
}

// MarshalBudget encodes a budget in the stored shape: a bare number for a
// FlatTotal, {"total", "items"} for an Itemized record.
func MarshalBudget(b Budget) ([]byte, error) {
	switch v := b.(type) {
	case FlatTotal:
		return json.Marshal(json.Number(v.Amount.String()))
	case Itemized:
		items := make(map[string]json.Number, len(v.Lines))
		for k, d := range v.Lines {
			items[k] = json.Number(d.String())
		}
		out := struct {
			Total *json.Number           `json:"total,omitempty"`
			Items map[string]json.Number `json:"items"`
		}{Items: items}
		if !v.Declared.IsZero() {
			n := json.Number(v.Declared.String())
			out.Total = &n
		}
		return json.Marshal(out)
	case nil:
		return []byte("0"), nil
	default:
		return nil, fmt.Errorf("%w: unsupported budget type %T", ErrInvalidBudget, b)
	}
}

// UnmarshalBudget decodes a stored record through NormalizeBudget.
func UnmarshalBudget(data []byte) Budget {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return FlatTotal{}
	}
	return NormalizeBudget(raw)
}

// ResolveBudget looks up key in tree. A missing key resolves to a zero budget.
func ResolveBudget(tree BudgetTree, key string) ResolvedBudget {
	b, ok := tree[key]
	if !ok || b == nil {
		return ResolvedBudget{Total: decimal.Zero, Items: map[string]decimal.Decimal{}}
	}
	return ResolvedBudget{Total: b.Total(), Items: b.Items()}
}

// PerItemSpend distributes expenses over the budget items. Rows are sorted by
// item name; the unassigned row is appended only when it carries spend.
// Income and negative amounts are ignored.
func PerItemSpend(expenses []Entry, items map[string]decimal.Decimal) ([]ItemRow, decimal.Decimal) {
	spent := make(map[string]decimal.Decimal, len(items))
	for name := range items {
		spent[name] = decimal.Zero
	}
	unassigned := decimal.Zero

	for _, e := range expenses {
		if e.Kind != KindExpense || e.Amount.IsNegative() {
			continue
		}
		if _, known := items[e.BudgetItem]; known && e.BudgetItem != "" {
			spent[e.BudgetItem] = spent[e.BudgetItem].Add(e.Amount)
			continue
		}
		unassigned = unassigned.Add(e.Amount)
	}

	names := make([]string, 0, len(items))
	for name := range items {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]ItemRow, 0, len(names)+1)
	for _, name := range names {
		budgeted := RoundMoney(items[name])
		s := RoundMoney(spent[name])
		rows = append(rows, ItemRow{
			Name:      name,
			Budgeted:  budgeted,
			Spent:     s,
			Remaining: budgeted.Sub(s),
		})
	}

	unassigned = RoundMoney(unassigned)
	if unassigned.IsPositive() {
		rows = append(rows, ItemRow{
			Name:      UnassignedItem,
			Budgeted:  decimal.Zero,
			Spent:     unassigned,
			Remaining: unassigned.Neg(),
		})
	}
	return rows, unassigned
}
