package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/auth"
	"ledger/internal/core"
	"ledger/internal/services"
	"ledger/internal/store"
)

func TestJSONResponseBuilder(t *testing.T) {
	rr := httptest.NewRecorder()
	err := NewJSONResponse().
		Status(http.StatusCreated).
		Header("X-Test", "yes").
		Body(map[string]int{"n": 1}).
		Write(rr)
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "yes", rr.Header().Get("X-Test"))
	assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"n":1}`, rr.Body.String())
}

func TestJSONResponseBuilderError(t *testing.T) {
	rr := httptest.NewRecorder()
	require.NoError(t, NewJSONResponse().Error(http.StatusConflict, "nope").Write(rr))
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.JSONEq(t, `{"error":"nope"}`, rr.Body.String())
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: month", errBadRequest), http.StatusBadRequest},
		{auth.ErrMissingToken, http.StatusUnauthorized},
		{fmt.Errorf("%w: sig", auth.ErrInvalidToken), http.StatusUnauthorized},
		{auth.ErrExpiredToken, http.StatusUnauthorized},
		{fmt.Errorf("%w: pastor", services.ErrForbidden), http.StatusForbidden},
		{store.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: %w", core.ErrInvalidEntry, core.ErrInvalidAmount), http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: trailing data", core.ErrInvalidBudget), http.StatusUnprocessableEntity},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	writeError(rr, r, errors.New("connection string leaked"), "test")

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	writeError(rr, r, auth.ErrMissingToken, "test")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Header().Get("WWW-Authenticate"), "Bearer")
}

func TestMoneyMarshalsAsNumber(t *testing.T) {
	out, err := json.Marshal(map[string]Money{
		"a": Money(decimal.RequireFromString("12.5")),
		"b": Money(decimal.RequireFromString("-3")),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":12.50,"b":-3.00}`, string(out))
}

func TestToSummaryResponse(t *testing.T) {
	d := decimal.RequireFromString
	sum := core.Summary{
		Year: 2024, Month: 1, BudgetKey: "Youth",
		TotalIncome: d("100"), TotalExpense: d("40"), Balance: d("60"),
		BudgetLimit: d("500"), Remaining: d("460"),
		ItemRows: []core.ItemRow{{Name: "Camp", Budgeted: d("300"), Spent: d("40"), Remaining: d("260")}},
	}
	out, err := json.Marshal(toSummaryResponse(sum))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, "Youth", got["budget_key"])
	assert.InDelta(t, 460.0, got["remaining"], 0.001)
	items := got["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "Camp", items[0].(map[string]any)["name"])

	chart := got["chart"].(map[string]any)
	assert.Equal(t, []any{}, chart["labels"], "empty series render as arrays, not null")
}

func TestToBudgetResponseSortsItems(t *testing.T) {
	d := decimal.RequireFromString
	resp := toBudgetResponse("Youth", core.ResolvedBudget{
		Total: d("300"),
		Items: map[string]decimal.Decimal{"Snacks": d("100"), "Camp": d("200")},
	})
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "Camp", resp.Items[0].Name)
	assert.Equal(t, "Snacks", resp.Items[1].Name)
	assert.Equal(t, "Youth", resp.Key)
}
