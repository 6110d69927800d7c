package entries

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReferenceType names the business event class behind an entry.
type ReferenceType string

const (
	ReferencePayment      ReferenceType = "PAYMENT"
	ReferenceOpeningStock ReferenceType = "OPENING_STOCK"
	ReferenceAdjustment   ReferenceType = "ADJUSTMENT"
)

// LedgerEntry is one immutable debit-or-credit line. Entries sharing a
// ReferenceID must sum to equal debits and credits. Reversals add new
// sign-swapped lines under the same reference; nothing is ever mutated
// or deleted.
type LedgerEntry struct {
	ID            int64
	TenantID      int64
	BranchID      int64
	AccountID     int64
	CustomerID    *int64
	SupplierID    *int64
	Debit         decimal.Decimal
	Credit        decimal.Decimal
	Date          time.Time
	Description   string
	ReferenceType ReferenceType
	ReferenceID   uuid.UUID
	IsReversal    bool
	CreatedBy     int64
	CreatedAt     time.Time
}

// AccountTotals aggregates all entry amounts posted to one account.
type AccountTotals struct {
	AccountID   int64
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
}

// ReferenceTotals aggregates one business event's entries; used by the
// integrity scan to find references that drifted out of balance.
type ReferenceTotals struct {
	ReferenceID uuid.UUID
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
}
