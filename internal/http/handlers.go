package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/language"

	"ledger/internal/auth"
	"ledger/internal/core"
	"ledger/internal/export"
	applog "ledger/internal/log"
	"ledger/internal/services"
)

// Ledger is what the handlers need from the service layer.
type Ledger interface {
	RecordEntry(ctx context.Context, scope core.Scope, in services.EntryInput) (core.Entry, error)
	Dashboard(ctx context.Context, scope core.Scope, year, month int) (core.Summary, error)
	MonthEntries(ctx context.Context, scope core.Scope, year, month int) ([]core.Entry, error)
	UpdateBudget(ctx context.Context, scope core.Scope, key string, body []byte) (core.ResolvedBudget, error)
	Budget(ctx context.Context, key string) (core.ResolvedBudget, error)
	Report(ctx context.Context, scope core.Scope, f core.ReportFilter) ([]core.Entry, error)
	Ping(ctx context.Context) error
}

// TokenVerifier turns a bearer token into a caller identity.
type TokenVerifier interface {
	Verify(raw string) (auth.Identity, error)
}

type identityKey struct{}

func identityFrom(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(auth.Identity)
	return id, ok
}

// requireAuth rejects requests without a valid bearer token and stores the
// identity in the request context.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := auth.BearerToken(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, r, err, "authenticate")
			return
		}
		id, err := s.verifier.Verify(raw)
		if err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Token rejected",
				applog.FieldComponent, applog.ComponentAuth,
				applog.FieldError, err)
			writeError(w, r, err, "authenticate")
			return
		}
		ctx := context.WithValue(r.Context(), identityKey{}, id)
		ctx = applog.WithSubject(ctx, id.Subject)
		next(w, r.WithContext(ctx))
	}
}

// viewScope binds the caller to the account selected in the query. A Finance
// Manager must select one of the managed accounts.
func viewScope(r *http.Request) (core.Scope, error) {
	id, ok := identityFrom(r.Context())
	if !ok {
		return core.Scope{}, auth.ErrMissingToken
	}
	scope := id.Scope(r.URL.Query().Get("account"))
	if !scope.Valid() {
		return core.Scope{}, fmt.Errorf("%w: account must be %q or %q",
			errBadRequest, core.AccountMain, core.AccountBuildingFund)
	}
	return scope, nil
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	_ = NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.ledger.Ping(ctx); err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
		_ = NewJSONResponse().Error(http.StatusServiceUnavailable, "store unavailable").Write(w)
		return
	}
	_ = NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	scope, err := viewScope(r)
	if err != nil {
		writeError(w, r, err, applog.OpDashboard)
		return
	}
	params, err := ParseMonthParams(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, r, err, applog.OpDashboard)
		return
	}
	sum, err := s.ledger.Dashboard(r.Context(), scope, params.Year, params.Month)
	if err != nil {
		writeError(w, r, err, applog.OpDashboard)
		return
	}
	_ = NewJSONResponse().Body(toSummaryResponse(sum)).Write(w)
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	scope, err := viewScope(r)
	if err != nil {
		writeError(w, r, err, applog.OpList)
		return
	}
	params, err := ParseMonthParams(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, r, err, applog.OpList)
		return
	}
	entries, err := s.ledger.MonthEntries(r.Context(), scope, params.Year, params.Month)
	if err != nil {
		writeError(w, r, err, applog.OpList)
		return
	}
	_ = NewJSONResponse().Body(map[string]any{
		"year":    params.Year,
		"month":   params.Month,
		"entries": toEntryResponses(entries),
	}).Write(w)
}

// handleCreateEntry accepts a JSON object or a form. Identity fields are
// taken from the token, never from the body; only a Finance Manager picks
// the account.
func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, r, auth.ErrMissingToken, applog.OpAppend)
		return
	}
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		writeError(w, r, err, applog.OpAppend)
		return
	}

	date := p.Get("date")
	if date == "" {
		date = s.now().Format(core.DateLayout)
	}
	in := services.EntryInput{
		Kind:        p.Get("kind"),
		Subtype:     p.Get("subtype"),
		Account:     p.Get("account"),
		Description: p.Get("description"),
		Date:        date,
		Amount:      p.Get("amount"),
		BudgetItem:  p.Get("budget_item"),
	}

	scope := id.Scope(in.Account)
	e, err := s.ledger.RecordEntry(r.Context(), scope, in)
	if err != nil {
		writeError(w, r, err, applog.OpAppend)
		return
	}
	applog.NewStructuredLogger(applog.FromContext(r.Context())).LogEntryRecorded(r.Context(), scope, e)
	s.metrics.EntryRecorded(e.Kind.String())

	_ = NewJSONResponse().
		Status(http.StatusCreated).
		Body(toEntryResponse(e)).
		Write(w)
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.PathValue("key"))
	b, err := s.ledger.Budget(r.Context(), key)
	if err != nil {
		writeError(w, r, err, applog.OpBudget)
		return
	}
	_ = NewJSONResponse().Body(toBudgetResponse(key, b)).Write(w)
}

func (s *Server) handlePutBudget(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, r, auth.ErrMissingToken, applog.OpBudget)
		return
	}
	// The body is a bare number or an object; the service validates it.
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: read body: %v", errBadRequest, err), applog.OpBudget)
		return
	}

	key := strings.TrimSpace(r.PathValue("key"))
	b, err := s.ledger.UpdateBudget(r.Context(), id.Scope(""), key, body)
	if err != nil {
		writeError(w, r, err, applog.OpBudget)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Budget replaced",
		applog.FieldBudgetKey, key,
		applog.FieldSubject, id.Subject)
	_ = NewJSONResponse().Body(toBudgetResponse(key, b)).Write(w)
}

// handleReport serves the filtered entry list as JSON, or as CSV with
// format=csv. locale selects the CSV amount formatting.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, r, auth.ErrMissingToken, applog.OpReport)
		return
	}
	q := r.URL.Query()
	filter := core.ReportFilter{
		Department: strings.TrimSpace(q.Get("department")),
		From:       strings.TrimSpace(q.Get("from")),
		To:         strings.TrimSpace(q.Get("to")),
	}
	entries, err := s.ledger.Report(r.Context(), id.Scope(""), filter)
	if err != nil {
		writeError(w, r, err, applog.OpReport)
		return
	}

	switch format := strings.ToLower(q.Get("format")); format {
	case "", "json":
		_ = NewJSONResponse().Body(map[string]any{"entries": toEntryResponses(entries)}).Write(w)
	case "csv":
		var f export.AmountFormatter
		if loc := q.Get("locale"); loc != "" {
			tag, err := language.Parse(loc)
			if err != nil {
				writeError(w, r, fmt.Errorf("%w: invalid locale %q", errBadRequest, loc), applog.OpReport)
				return
			}
			f = export.NewAmountFormatter(tag)
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="report.csv"`)
		if err := export.WriteReportCSV(w, entries, f); err != nil {
			applog.NewStructuredLogger(applog.FromContext(r.Context())).
				LogError(r.Context(), "Failed writing CSV report", err, applog.ComponentHTTP, applog.OpReport)
		}
	default:
		writeError(w, r, fmt.Errorf("%w: unknown format %q", errBadRequest, format), applog.OpReport)
	}
}
