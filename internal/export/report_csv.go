package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"ledger/internal/core"
)

// ReportHeader is the column layout of an exported report.
var ReportHeader = []string{"Date", "Kind", "Account", "Department", "Subtype", "Description", "Amount", "Budget item"}

// AmountFormatter renders money for a locale. The zero value prints plain
// two-decimal amounts without grouping.
type AmountFormatter struct {
	printer *message.Printer
}

func NewAmountFormatter(tag language.Tag) AmountFormatter {
	return AmountFormatter{printer: message.NewPrinter(tag)}
}

func (f AmountFormatter) Format(d decimal.Decimal) string {
	d = core.RoundMoney(d)
	if f.printer == nil {
		return d.StringFixed(2)
	}
	v, _ := d.Float64()
	return f.printer.Sprintf("%.2f", v)
}

// WriteReportCSV writes the report rows in the given order followed by the
// income, expense and balance totals.
func WriteReportCSV(w io.Writer, entries []core.Entry, f AmountFormatter) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ReportHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	income, expense := decimal.Zero, decimal.Zero
	for _, e := range entries {
		switch e.Kind {
		case core.KindIncome:
			income = income.Add(e.Amount)
		case core.KindExpense:
			expense = expense.Add(e.Amount)
		}
		if err := cw.Write([]string{
			e.Date,
			e.Kind.String(),
			e.Account,
			e.Department,
			e.Subtype,
			e.Description,
			f.Format(e.Amount),
			e.BudgetItem,
		}); err != nil {
			return fmt.Errorf("write row %s: %w", e.ID, err)
		}
	}

	income, expense = core.RoundMoney(income), core.RoundMoney(expense)
	footer := [][]string{
		{"Total income", "", "", "", "", "", f.Format(income), ""},
		{"Total expense", "", "", "", "", "", f.Format(expense), ""},
		{"Balance", "", "", "", "", "", f.Format(income.Sub(expense)), ""},
	}
	if err := cw.WriteAll(footer); err != nil {
		return fmt.Errorf("write totals: %w", err)
	}
	return nil
}
