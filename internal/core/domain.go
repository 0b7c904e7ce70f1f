package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const (
	KindIncome  Kind = "Income"
	KindExpense Kind = "Expense"
)

const (
	RoleFinanceManager Role = "Finance Manager"
	RoleSeniorPastor   Role = "Senior Pastor"
)

// Accounts a Finance Manager may operate on.
const (
	AccountMain         = "Main"
	AccountBuildingFund = "Building Fund"
)

// DateLayout is the canonical stored form of Entry.Date.
const DateLayout = "2006-01-02"

type (
	Kind string

	Role string

	// Entry is one financial transaction. Date keeps the raw stored string:
	// the report filter and the chart builder work on it as text, the period
	// aggregator parses it.
	Entry struct {
		ID          string          `json:"id"`
		Kind        Kind            `json:"kind" validate:"required,oneof=Income Expense"`
		Subtype     string          `json:"subtype" validate:"required,max=100"`
		Account     string          `json:"account" validate:"required,max=100"`
		Department  string          `json:"department" validate:"required,max=100"`
		Description string          `json:"description" validate:"max=200"`
		Date        string          `json:"date" validate:"required,datetime=2006-01-02"`
		Amount      decimal.Decimal `json:"amount"`
		BudgetItem  string          `json:"budget_item,omitempty" validate:"max=100"`
		CreatedAt   time.Time       `json:"created_at"`
	}
)

var (
	ErrInvalidEntry       = errors.New("invalid entry")
	ErrInvalidKind        = errors.New("invalid kind")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptySubtype       = errors.New("empty subtype")
	ErrEmptyAccount       = errors.New("empty account")
	ErrEmptyDepartment    = errors.New("empty department")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrFieldTooLong       = errors.New("field too long (max 100 characters)")
	ErrBudgetItemOnIncome = errors.New("budget item is only allowed on expenses")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// legacy records carry a time of day; new appends never do
var entryDateLayouts = []string{
	DateLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// IsValid reports whether k is one of the two entry kinds.
func (k Kind) IsValid() bool {
	return k == KindIncome || k == KindExpense
}

func (k Kind) String() string {
	return string(k)
}

func (r Role) String() string {
	return string(r)
}

// IsManagedAccount reports whether account is one a Finance Manager may select.
func IsManagedAccount(account string) bool {
	return account == AccountMain || account == AccountBuildingFund
}

// ParsedDate parses the raw date. Entries that fail to parse are excluded
// from every date-scoped aggregation.
func (e Entry) ParsedDate() (time.Time, bool) {
	raw := strings.TrimSpace(e.Date)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range entryDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Normalize returns a copy of e with surrounding whitespace trimmed.
func (e Entry) Normalize() Entry {
	e.Kind = Kind(strings.TrimSpace(string(e.Kind)))
	e.Subtype = strings.TrimSpace(e.Subtype)
	e.Account = strings.TrimSpace(e.Account)
	e.Department = strings.TrimSpace(e.Department)
	e.Description = strings.TrimSpace(e.Description)
	e.Date = strings.TrimSpace(e.Date)
	e.BudgetItem = strings.TrimSpace(e.BudgetItem)
	return e
}

// Validate checks a fully-formed entry at the append boundary. Every failure
// wraps ErrInvalidEntry together with a field-specific error.
func (e Entry) Validate() error {
	if err := validate.Struct(e); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %w", ErrInvalidEntry, fieldError(verrs[0]))
		}
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	if e.Amount.IsNegative() || !e.Amount.Equal(e.Amount.Round(2)) {
		return fmt.Errorf("%w: %w", ErrInvalidEntry, ErrInvalidAmount)
	}
	if e.Kind == KindIncome && e.BudgetItem != "" {
		return fmt.Errorf("%w: %w", ErrInvalidEntry, ErrBudgetItemOnIncome)
	}
	return nil
}

func fieldError(fe validator.FieldError) error {
	if fe.Tag() == "max" {
		if fe.Field() == "Description" {
			return ErrDescriptionTooLong
		}
		return fmt.Errorf("%w: %s", ErrFieldTooLong, strings.ToLower(fe.Field()))
	}
	switch fe.Field() {
	case "Kind":
		return ErrInvalidKind
	case "Date":
		return ErrInvalidDate
	case "Subtype":
		return ErrEmptySubtype
	case "Account":
		return ErrEmptyAccount
	case "Department":
		return ErrEmptyDepartment
	default:
		return fmt.Errorf("field %s failed %q", fe.Field(), fe.Tag())
	}
}
