package core

// Scope is the caller identity every query is evaluated against. Account is
// only meaningful for a Finance Manager.
type Scope struct {
	Role       Role
	Department string
	Account    string
}

// Allows reports whether e is visible under s:
//   - Finance Manager sees only the selected managed account;
//   - Senior Pastor sees everything;
//   - any other role sees entries booked to its own department account.
func (s Scope) Allows(e Entry) bool {
	switch s.Role {
	case RoleFinanceManager:
		return IsManagedAccount(s.Account) && e.Account == s.Account
	case RoleSeniorPastor:
		return true
	default:
		return e.Account == s.Department
	}
}

// Valid is false for a Finance Manager without a managed account selected.
func (s Scope) Valid() bool {
	if s.Role == RoleFinanceManager {
		return IsManagedAccount(s.Account)
	}
	return true
}

// BudgetKey selects the budget record for s.
func (s Scope) BudgetKey() string {
	if s.Role == RoleFinanceManager {
		return s.Account
	}
	return s.Department
}

// VisibleEntries returns the entries s may see, preserving input order.
func VisibleEntries(entries []Entry, s Scope) []Entry {
	out := make([]Entry, 0, len(entries))
	if !s.Valid() {
		return out
	}
	for _, e := range entries {
		if s.Allows(e) {
			out = append(out, e)
		}
	}
	return out
}
