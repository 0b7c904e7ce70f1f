// This file implements the Builder Pattern for JSON responses and the
// mapping from service errors to status codes.

package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/shopspring/decimal"

	"ledger/internal/auth"
	"ledger/internal/core"
	applog "ledger/internal/log"
	"ledger/internal/services"
	"ledger/internal/store"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(key, value string) *JSONResponseBuilder {
	b.headers[key] = value
	return b
}

func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Error sets status and an {"error": msg} body.
func (b *JSONResponseBuilder) Error(code int, msg string) *JSONResponseBuilder {
	return b.Status(code).Body(errorBody{Error: msg})
}

// Write encodes the body. Nothing can be reported to the client once the
// header is out, so encoding errors are only returned.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) error {
	for k, v := range b.headers {
		w.Header().Set(k, v)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if b.body == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(b.body)
}

type errorBody struct {
	Error string `json:"error"`
}

// statusFor maps an error returned by the service layer to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrInvalidClaims):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalidEntry), errors.Is(err, core.ErrInvalidBudget):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs server-side failures and hides their detail from the
// client.
func writeError(w http.ResponseWriter, r *http.Request, err error, op string) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		applog.NewStructuredLogger(applog.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, applog.ComponentHTTP, op)
		msg = "internal error"
	}
	if code == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="ledger"`)
	}
	_ = NewJSONResponse().Error(code, msg).Write(w)
}

// Money renders a decimal as a JSON number with two fraction digits.
type Money decimal.Decimal

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(m).StringFixed(2)), nil
}

func moneySlice(ds []decimal.Decimal) []Money {
	out := make([]Money, len(ds))
	for i, d := range ds {
		out[i] = Money(d)
	}
	return out
}

type entryResponse struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Subtype     string `json:"subtype"`
	Account     string `json:"account"`
	Department  string `json:"department"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Amount      Money  `json:"amount"`
	BudgetItem  string `json:"budget_item,omitempty"`
}

func toEntryResponse(e core.Entry) entryResponse {
	return entryResponse{
		ID:          e.ID,
		Kind:        e.Kind.String(),
		Subtype:     e.Subtype,
		Account:     e.Account,
		Department:  e.Department,
		Description: e.Description,
		Date:        e.Date,
		Amount:      Money(e.Amount),
		BudgetItem:  e.BudgetItem,
	}
}

func toEntryResponses(entries []core.Entry) []entryResponse {
	out := make([]entryResponse, len(entries))
	for i, e := range entries {
		out[i] = toEntryResponse(e)
	}
	return out
}

type itemRowResponse struct {
	Name      string `json:"name"`
	Budgeted  Money  `json:"budgeted"`
	Spent     Money  `json:"spent"`
	Remaining Money  `json:"remaining"`
}

type chartResponse struct {
	Labels  []string `json:"labels"`
	Income  []Money  `json:"income"`
	Expense []Money  `json:"expense"`
}

type summaryResponse struct {
	Year         int               `json:"year"`
	Month        int               `json:"month"`
	BudgetKey    string            `json:"budget_key"`
	TotalIncome  Money             `json:"total_income"`
	TotalExpense Money             `json:"total_expense"`
	Balance      Money             `json:"balance"`
	BudgetLimit  Money             `json:"budget_limit"`
	Remaining    Money             `json:"remaining"`
	Items        []itemRowResponse `json:"items"`
	Unassigned   Money             `json:"unassigned"`
	Chart        chartResponse     `json:"chart"`
}

func toSummaryResponse(s core.Summary) summaryResponse {
	items := make([]itemRowResponse, len(s.ItemRows))
	for i, row := range s.ItemRows {
		items[i] = itemRowResponse{
			Name:      row.Name,
			Budgeted:  Money(row.Budgeted),
			Spent:     Money(row.Spent),
			Remaining: Money(row.Remaining),
		}
	}
	labels := s.ChartLabels
	if labels == nil {
		labels = []string{}
	}
	return summaryResponse{
		Year:         s.Year,
		Month:        s.Month,
		BudgetKey:    s.BudgetKey,
		TotalIncome:  Money(s.TotalIncome),
		TotalExpense: Money(s.TotalExpense),
		Balance:      Money(s.Balance),
		BudgetLimit:  Money(s.BudgetLimit),
		Remaining:    Money(s.Remaining),
		Items:        items,
		Unassigned:   Money(s.Unassigned),
		Chart: chartResponse{
			Labels:  labels,
			Income:  moneySlice(s.ChartIncome),
			Expense: moneySlice(s.ChartExpense),
		},
	}
}

type budgetItemResponse struct {
	Name   string `json:"name"`
	Amount Money  `json:"amount"`
}

type budgetResponse struct {
	Key   string               `json:"key"`
	Total Money                `json:"total"`
	Items []budgetItemResponse `json:"items"`
}

func toBudgetResponse(key string, b core.ResolvedBudget) budgetResponse {
	names := make([]string, 0, len(b.Items))
	for name := range b.Items {
		names = append(names, name)
	}
	sort.Strings(names)

	items := make([]budgetItemResponse, len(names))
	for i, name := range names {
		items[i] = budgetItemResponse{Name: name, Amount: Money(b.Items[name])}
	}
	return budgetResponse{Key: key, Total: Money(b.Total), Items: items}
}
