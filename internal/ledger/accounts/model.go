package accounts

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType enumerates chart-of-accounts categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeIncome    AccountType = "INCOME"
	AccountTypeExpense   AccountType = "EXPENSE"
	AccountTypeOther     AccountType = "OTHER"
)

// Account models a chart of accounts node. (TenantID, Code) is unique.
type Account struct {
	ID            int64
	TenantID      int64
	Code          string
	Name          string
	Type          AccountType
	ParentID      *int64
	IsGroup       bool
	CachedBalance decimal.Decimal
	Meta          map[string]string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Postable reports whether ledger entries may reference the account.
// Group accounts are aggregators only.
func (a Account) Postable() bool {
	return !a.IsGroup
}

// DisplayBalance converts a raw debit-minus-credit figure into the
// human-meaningful balance for the account type. Credit-normal types
// (liability, equity, income) flip the sign; everything else reports
// the raw figure unchanged. This is the single definition of the
// polarity rule; reporting collaborators must call it rather than
// re-deriving signs.
func DisplayBalance(t AccountType, raw decimal.Decimal) decimal.Decimal {
	switch t {
	case AccountTypeLiability, AccountTypeEquity, AccountTypeIncome:
		return raw.Neg()
	default:
		return raw
	}
}
