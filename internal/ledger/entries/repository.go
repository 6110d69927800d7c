package entries

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the read side of the entry store. Writes happen only inside
// the posting engine's transaction; no other component appends lines.
type Repository interface {
	ListByReference(ctx context.Context, tenantID int64, referenceID uuid.UUID) ([]LedgerEntry, error)
	TotalsByAccount(ctx context.Context, tenantID int64) ([]AccountTotals, error)
	UnbalancedReferences(ctx context.Context) ([]ReferenceTotals, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const entryColumns = `id, tenant_id, branch_id, account_id, customer_id, supplier_id, debit, credit, date, description, reference_type, reference_id, is_reversal, created_by, created_at`

func (r *repository) ListByReference(ctx context.Context, tenantID int64, referenceID uuid.UUID) ([]LedgerEntry, error) {
	rows, err := r.db.Query(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE tenant_id=$1 AND reference_id=$2 ORDER BY id`, tenantID, referenceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.ID, &e.TenantID, &e.BranchID, &e.AccountID, &e.CustomerID, &e.SupplierID,
			&e.Debit, &e.Credit, &e.Date, &e.Description, &e.ReferenceType, &e.ReferenceID,
			&e.IsReversal, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *repository) TotalsByAccount(ctx context.Context, tenantID int64) ([]AccountTotals, error) {
	rows, err := r.db.Query(ctx, `SELECT account_id, COALESCE(SUM(debit),0), COALESCE(SUM(credit),0)
FROM ledger_entries WHERE tenant_id=$1 GROUP BY account_id`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountTotals
	for rows.Next() {
		var t AccountTotals
		if err := rows.Scan(&t.AccountID, &t.TotalDebit, &t.TotalCredit); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *repository) UnbalancedReferences(ctx context.Context) ([]ReferenceTotals, error) {
	rows, err := r.db.Query(ctx, `SELECT reference_id, SUM(debit), SUM(credit)
FROM ledger_entries GROUP BY reference_id HAVING SUM(debit) <> SUM(credit)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ReferenceTotals
	for rows.Next() {
		var t ReferenceTotals
		if err := rows.Scan(&t.ReferenceID, &t.TotalDebit, &t.TotalCredit); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
