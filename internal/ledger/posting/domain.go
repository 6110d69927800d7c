package posting

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/ledger/entries"
	"github.com/meridian-erp/meridian-erp/internal/ledger/shared"
)

// EventKind enumerates business event classes the engine can post.
type EventKind string

const (
	EventKindPayment      EventKind = "PAYMENT"
	EventKindOpeningStock EventKind = "OPENING_STOCK"
	EventKindAdjustment   EventKind = "ADJUSTMENT"
)

// EventStatus is the event lifecycle. Transitions are DRAFT -> POSTED ->
// REVERSED or CANCELLED; the engine persists events already posted, so
// DRAFT never reaches storage here.
type EventStatus string

const (
	EventStatusDraft     EventStatus = "DRAFT"
	EventStatusPosted    EventStatus = "POSTED"
	EventStatusReversed  EventStatus = "REVERSED"
	EventStatusCancelled EventStatus = "CANCELLED"
)

// CanReverse reports whether a compensating posting is allowed from the
// current status.
func (s EventStatus) CanReverse() bool {
	return s == EventStatusPosted
}

// PaymentDirection marks money flowing into or out of the business.
type PaymentDirection string

const (
	DirectionInflow  PaymentDirection = "INFLOW"
	DirectionOutflow PaymentDirection = "OUTFLOW"
)

// AdjustmentDirection marks stock valuation being added or written off.
type AdjustmentDirection string

const (
	AdjustmentAdd      AdjustmentDirection = "ADD"
	AdjustmentSubtract AdjustmentDirection = "SUBTRACT"
)

// Event is a posted business event. The engine co-owns only the financial
// effect fields of the referenced records (paid amounts, outstanding
// balances); their wider lifecycle belongs to other modules.
type Event struct {
	ID          uuid.UUID
	TenantID    int64
	BranchID    int64
	Kind        EventKind
	Direction   string
	Amount      decimal.Decimal
	Method      string
	CustomerID  *int64
	SupplierID  *int64
	InvoiceID   *int64
	PurchaseID  *int64
	ProductID   *int64
	ExternalRef *string
	Reason      string
	Status      EventStatus
	CreatedBy   int64
	PostedAt    time.Time
	ReversedAt  *time.Time
	CreatedAt   time.Time
}

// PostingResult reports what a posting produced. Duplicate marks an
// idempotency short-circuit: the ids describe the previously accepted
// event and nothing new was written.
type PostingResult struct {
	EventID   uuid.UUID
	EntryIDs  []int64
	Duplicate bool
}

// PaymentInput carries an already-validated payment command.
type PaymentInput struct {
	TenantID    int64
	BranchID    int64
	Direction   PaymentDirection
	Amount      decimal.Decimal
	Method      string
	CustomerID  *int64
	SupplierID  *int64
	InvoiceID   *int64
	PurchaseID  *int64
	ExternalRef string
	Note        string
	Date        time.Time
	ActorID     int64
}

// Validate rejects malformed payments before any account resolution.
func (in PaymentInput) Validate() error {
	if in.TenantID == 0 {
		return fmt.Errorf("%w: tenant id required", shared.ErrValidation)
	}
	if in.Direction != DirectionInflow && in.Direction != DirectionOutflow {
		return fmt.Errorf("%w: direction must be INFLOW or OUTFLOW", shared.ErrValidation)
	}
	if !in.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", shared.ErrValidation)
	}
	if in.Method == "" {
		return fmt.Errorf("%w: payment method required", shared.ErrValidation)
	}
	return nil
}

// OpeningStockInput records the initial valuation of a product.
type OpeningStockInput struct {
	TenantID  int64
	BranchID  int64
	Valuation decimal.Decimal
	ProductID int64
	Date      time.Time
	ActorID   int64
}

func (in OpeningStockInput) Validate() error {
	if in.TenantID == 0 {
		return fmt.Errorf("%w: tenant id required", shared.ErrValidation)
	}
	if in.ProductID == 0 {
		return fmt.Errorf("%w: product required", shared.ErrValidation)
	}
	if !in.Valuation.IsPositive() {
		return fmt.Errorf("%w: valuation must be positive", shared.ErrValidation)
	}
	return nil
}

// StockAdjustmentInput revalues stock up or down with a stated reason.
type StockAdjustmentInput struct {
	TenantID  int64
	BranchID  int64
	Direction AdjustmentDirection
	Valuation decimal.Decimal
	ProductID int64
	Reason    string
	Date      time.Time
	ActorID   int64
}

func (in StockAdjustmentInput) Validate() error {
	if in.TenantID == 0 {
		return fmt.Errorf("%w: tenant id required", shared.ErrValidation)
	}
	if in.Direction != AdjustmentAdd && in.Direction != AdjustmentSubtract {
		return fmt.Errorf("%w: direction must be ADD or SUBTRACT", shared.ErrValidation)
	}
	if in.ProductID == 0 {
		return fmt.Errorf("%w: product required", shared.ErrValidation)
	}
	if !in.Valuation.IsPositive() {
		return fmt.Errorf("%w: valuation must be positive", shared.ErrValidation)
	}
	return nil
}

// PendingReconciliation parks an event the engine could not post safely.
// A manual operation resolves it later; nothing is silently dropped.
type PendingReconciliation struct {
	ID        int64
	TenantID  int64
	Payload   []byte
	Amount    decimal.Decimal
	Reason    string
	Status    string
	CreatedAt time.Time
}

const (
	ReconciliationPending  = "PENDING"
	ReconciliationResolved = "RESOLVED"
)

// balancedSet verifies the invariant before anything is staged: per
// reference, debits must equal credits.
func balancedSet(lines []entries.LedgerEntry) error {
	debit := decimal.Zero
	credit := decimal.Zero
	for _, line := range lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if !debit.Equal(credit) {
		return fmt.Errorf("%w: debit %s credit %s", shared.ErrUnbalanced, debit, credit)
	}
	return nil
}
