package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

type postPaymentRequest struct {
	TenantID    int64           `json:"tenant_id" validate:"required,gt=0"`
	BranchID    int64           `json:"branch_id" validate:"gte=0"`
	Direction   string          `json:"direction" validate:"required,oneof=INFLOW OUTFLOW"`
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	Method      string          `json:"method" validate:"required,max=30"`
	CustomerID  *int64          `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	SupplierID  *int64          `json:"supplier_id,omitempty" validate:"omitempty,gt=0"`
	InvoiceID   *int64          `json:"invoice_id,omitempty" validate:"omitempty,gt=0"`
	PurchaseID  *int64          `json:"purchase_id,omitempty" validate:"omitempty,gt=0"`
	ExternalRef string          `json:"external_ref,omitempty" validate:"omitempty,max=120"`
	Note        string          `json:"note,omitempty" validate:"omitempty,max=500"`
	Date        time.Time       `json:"date,omitempty"`
	ActorID     int64           `json:"actor_id" validate:"gte=0"`
}

type postOpeningStockRequest struct {
	TenantID  int64           `json:"tenant_id" validate:"required,gt=0"`
	BranchID  int64           `json:"branch_id" validate:"gte=0"`
	Valuation decimal.Decimal `json:"valuation" validate:"required"`
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Date      time.Time       `json:"date,omitempty"`
	ActorID   int64           `json:"actor_id" validate:"gte=0"`
}

type postAdjustmentRequest struct {
	TenantID  int64           `json:"tenant_id" validate:"required,gt=0"`
	BranchID  int64           `json:"branch_id" validate:"gte=0"`
	Direction string          `json:"direction" validate:"required,oneof=ADD SUBTRACT"`
	Valuation decimal.Decimal `json:"valuation" validate:"required"`
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Reason    string          `json:"reason" validate:"required,max=500"`
	Date      time.Time       `json:"date,omitempty"`
	ActorID   int64           `json:"actor_id" validate:"gte=0"`
}

type reverseRequest struct {
	TenantID int64 `json:"tenant_id" validate:"required,gt=0"`
}

type eventResponse struct {
	ID          string     `json:"id"`
	TenantID    int64      `json:"tenant_id"`
	BranchID    int64      `json:"branch_id,omitempty"`
	Kind        string     `json:"kind"`
	Direction   string     `json:"direction,omitempty"`
	Amount      string     `json:"amount"`
	Method      string     `json:"method,omitempty"`
	CustomerID  *int64     `json:"customer_id,omitempty"`
	SupplierID  *int64     `json:"supplier_id,omitempty"`
	InvoiceID   *int64     `json:"invoice_id,omitempty"`
	PurchaseID  *int64     `json:"purchase_id,omitempty"`
	ProductID   *int64     `json:"product_id,omitempty"`
	ExternalRef *string    `json:"external_ref,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	Status      string     `json:"status"`
	PostedAt    time.Time  `json:"posted_at"`
	ReversedAt  *time.Time `json:"reversed_at,omitempty"`
}

type postingResponse struct {
	EventID   string  `json:"event_id"`
	EntryIDs  []int64 `json:"entry_ids"`
	Duplicate bool    `json:"duplicate"`
}

type accountViewResponse struct {
	ID              int64  `json:"id"`
	Code            string `json:"code"`
	Name            string `json:"name"`
	Type            string `json:"type"`
	IsGroup         bool   `json:"is_group"`
	TotalDebit      string `json:"total_debit"`
	TotalCredit     string `json:"total_credit"`
	RawBalance      string `json:"raw_balance"`
	ComputedBalance string `json:"computed_balance"`
	Balance         string `json:"balance"`
}

type accountNodeResponse struct {
	accountViewResponse
	Children []accountNodeResponse `json:"children,omitempty"`
}
