package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMonthParams(t *testing.T) {
	now := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		query   string
		want    MonthParams
		wantErr bool
	}{
		{"defaults", "", MonthParams{2024, 3}, false},
		{"explicit", "year=2023&month=12", MonthParams{2023, 12}, false},
		{"padded", "year=2023&month=01", MonthParams{2023, 1}, false},
		{"month zero", "month=0", MonthParams{}, true},
		{"month thirteen", "month=13", MonthParams{}, true},
		{"bad year", "year=twenty", MonthParams{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			require.NoError(t, err)
			got, err := ParseMonthParams(q, now)
			if tt.wantErr {
				assert.ErrorIs(t, err, errBadRequest)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func newParser(t *testing.T, body string) *RequestBodyParser {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	return NewRequestBodyParser(httptest.NewRecorder(), r)
}

func TestRequestBodyParserJSON(t *testing.T) {
	p := newParser(t, ` {"kind":"Expense","amount":12.50,"description":"  pens\u0007 ","flag":true,"n":null}`)
	require.NoError(t, p.Parse())
	assert.True(t, p.IsJSON())
	assert.Equal(t, "Expense", p.Get("kind"))
	assert.Equal(t, "12.50", p.Get("amount"), "numbers keep their exact text")
	assert.Equal(t, "pens", p.Get("description"))
	assert.Equal(t, "true", p.Get("flag"))
	assert.Empty(t, p.Get("n"))
	assert.Empty(t, p.Get("missing"))
}

func TestRequestBodyParserForm(t *testing.T) {
	p := newParser(t, "kind=Income&amount=100%2C5&subtype=Tithe")
	require.NoError(t, p.Parse())
	assert.False(t, p.IsJSON())
	assert.Equal(t, "100,5", p.Get("amount"))
	assert.Equal(t, "Tithe", p.Get("subtype"))

	empty := newParser(t, "")
	require.NoError(t, empty.Parse())
	assert.Empty(t, empty.Get("kind"))
}

func TestRequestBodyParserErrors(t *testing.T) {
	p := newParser(t, `{"kind":`)
	assert.ErrorIs(t, p.Parse(), errBadRequest)
	assert.ErrorIs(t, p.Parse(), errBadRequest, "result is memoised")

	big := newParser(t, "a="+strings.Repeat("x", maxBodyBytes+1))
	assert.ErrorIs(t, big.Parse(), errBadRequest)
}

func TestSanitizeInput(t *testing.T) {
	assert.Equal(t, "a\tb", sanitizeInput("  a\tb\x00 "))
	assert.Equal(t, "line1\nline2", sanitizeInput("line1\nline2"))
}
