package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"ledger/internal/core"
	ports "ledger/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const (
	DefaultEntriesSheet = "Ledger"
	DefaultBudgetSheet  = "Budgets"
)

// Config selects the spreadsheet and the credentials used to reach it.
type Config struct {
	SpreadsheetID   string
	EntriesSheet    string // base name; the entry's year is prefixed
	BudgetSheet     string
	CredentialsJSON string
	CredentialsFile string
	// OAuth, when configured, is used instead of the service account.
	OAuth OAuthCredentials
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	entriesBase   string
	budgetSheet   string
}

var (
	_ ports.EntryWriter  = (*Client)(nil)
	_ ports.BudgetReader = (*Client)(nil)
)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, cfg), nil
}

// NewWithService wraps an existing service, e.g. one pointed at a test server.
func NewWithService(svc *gsheet.Service, cfg Config) *Client {
	entries := strings.TrimSpace(cfg.EntriesSheet)
	if entries == "" {
		entries = DefaultEntriesSheet
	}
	budgets := strings.TrimSpace(cfg.BudgetSheet)
	if budgets == "" {
		budgets = DefaultBudgetSheet
	}
	return &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(cfg.SpreadsheetID),
		entriesBase:   entries,
		budgetSheet:   budgets,
	}
}

// newSheetsService uses an OAuth user token when one is configured. Otherwise
// it prefers inline service account JSON, then a credentials file, then
// GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	if cfg.OAuth.configured() {
		ts, err := oauthTokenSource(ctx, cfg.OAuth)
		if err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "Using OAuth user credentials")
		return gsheet.NewService(ctx, goption.WithTokenSource(ts))
	}

	inline := strings.TrimSpace(cfg.CredentialsJSON)
	file := strings.TrimSpace(cfg.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentials []byte
	switch {
	case inline != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentials = []byte(inline)
	case file != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", file)
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentials = data
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentials),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created successfully")
	return svc, nil
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if len(base) >= 5 && base[4] == ' ' {
		if _, err := time.Parse("2006", base[:4]); err == nil {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}

// EntriesSheetFor names the tab an entry is mirrored to.
func (c *Client) EntriesSheetFor(e core.Entry) string {
	year := time.Now().Year()
	if d, ok := e.ParsedDate(); ok {
		year = d.Year()
	}
	return yearPrefixedName(c.entriesBase, year)
}

// AppendEntry appends one row to the entry's year tab and returns the
// updated range.
func (c *Client) AppendEntry(ctx context.Context, e core.Entry) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	sheet := c.EntriesSheetFor(e)
	rng := fmt.Sprintf("%s!A:I", sheet)
	vr := &gsheet.ValueRange{Values: [][]any{entryRow(e)}}

	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", sheet, err)
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	slog.InfoContext(ctx, "Entry appended to Google Sheets", "id", e.ID, "range", ref)
	return ref, nil
}

// ReadBudgets loads the budget tab (key | item | amount, header on row 1).
func (c *Client) ReadBudgets(ctx context.Context) (core.BudgetTree, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A2:C", c.budgetSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}

	tree, skipped := parseBudgetRows(resp.Values)
	if skipped > 0 {
		slog.WarnContext(ctx, "Skipped unreadable budget rows", "sheet", c.budgetSheet, "count", skipped)
	}
	return tree, nil
}
