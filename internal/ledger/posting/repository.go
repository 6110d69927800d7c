package posting

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/ledger/entries"
	"github.com/meridian-erp/meridian-erp/internal/ledger/shared"
)

// Repository encapsulates DB operations for event posting.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetEvent(ctx context.Context, tenantID int64, eventID uuid.UUID) (Event, error)
	FindByExternalRef(ctx context.Context, tenantID int64, ref string) (Event, []int64, error)
	FindOpeningStock(ctx context.Context, tenantID, productID int64) (Event, []int64, error)
	RecordPendingReconciliation(ctx context.Context, rec PendingReconciliation) error
}

// TxRepository exposes the operations available inside the atomic unit.
// Everything called through it either fully commits or fully aborts.
type TxRepository interface {
	InsertEvent(ctx context.Context, event Event) error
	InsertEntries(ctx context.Context, lines []entries.LedgerEntry) ([]int64, error)
	GetEventForUpdate(ctx context.Context, tenantID int64, eventID uuid.UUID) (Event, error)
	ListEntriesByReference(ctx context.Context, tenantID int64, referenceID uuid.UUID) ([]entries.LedgerEntry, error)
	UpdateEventStatus(ctx context.Context, eventID uuid.UUID, status EventStatus, at time.Time) error
	AdjustCustomerBalance(ctx context.Context, tenantID, customerID int64, delta decimal.Decimal) error
	AdjustSupplierBalance(ctx context.Context, tenantID, supplierID int64, delta decimal.Decimal) error
	AdjustInvoicePaid(ctx context.Context, tenantID, invoiceID int64, delta decimal.Decimal) error
	AdjustPurchasePaid(ctx context.Context, tenantID, purchaseID int64, delta decimal.Decimal) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return classifyStoreError(err)
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return classifyStoreError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return classifyStoreError(err)
	}
	return nil
}

const eventColumns = `id, tenant_id, branch_id, kind, direction, amount, method, customer_id, supplier_id, invoice_id, purchase_id, product_id, external_ref, reason, status, created_by, posted_at, reversed_at, created_at`

func (r *repository) GetEvent(ctx context.Context, tenantID int64, eventID uuid.UUID) (Event, error) {
	row := r.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM ledger_events WHERE tenant_id=$1 AND id=$2`, tenantID, eventID)
	return scanEvent(row)
}

func (r *repository) FindByExternalRef(ctx context.Context, tenantID int64, ref string) (Event, []int64, error) {
	row := r.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM ledger_events WHERE tenant_id=$1 AND external_ref=$2`, tenantID, ref)
	event, err := scanEvent(row)
	if err != nil {
		return Event{}, nil, err
	}
	ids, err := r.entryIDs(ctx, tenantID, event.ID)
	return event, ids, err
}

func (r *repository) FindOpeningStock(ctx context.Context, tenantID, productID int64) (Event, []int64, error) {
	row := r.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM ledger_events
WHERE tenant_id=$1 AND product_id=$2 AND kind='OPENING_STOCK'`, tenantID, productID)
	event, err := scanEvent(row)
	if err != nil {
		return Event{}, nil, err
	}
	ids, err := r.entryIDs(ctx, tenantID, event.ID)
	return event, ids, err
}

func (r *repository) entryIDs(ctx context.Context, tenantID int64, referenceID uuid.UUID) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM ledger_entries WHERE tenant_id=$1 AND reference_id=$2 AND NOT is_reversal ORDER BY id`, tenantID, referenceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *repository) RecordPendingReconciliation(ctx context.Context, rec PendingReconciliation) error {
	_, err := r.db.Exec(ctx, `INSERT INTO pending_reconciliations (tenant_id, payload, amount, reason, status)
VALUES ($1,$2,$3,$4,$5)`, rec.TenantID, rec.Payload, rec.Amount, rec.Reason, ReconciliationPending)
	return err
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertEvent(ctx context.Context, event Event) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO ledger_events (`+eventColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		event.ID, event.TenantID, event.BranchID, event.Kind, event.Direction, event.Amount, event.Method,
		event.CustomerID, event.SupplierID, event.InvoiceID, event.PurchaseID, event.ProductID,
		event.ExternalRef, event.Reason, event.Status, event.CreatedBy, event.PostedAt, event.ReversedAt, event.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return shared.ErrDuplicateEvent
		}
		return err
	}
	return nil
}

func (r *txRepository) InsertEntries(ctx context.Context, lines []entries.LedgerEntry) ([]int64, error) {
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		var id int64
		err := r.tx.QueryRow(ctx, `INSERT INTO ledger_entries (tenant_id, branch_id, account_id, customer_id, supplier_id, debit, credit, date, description, reference_type, reference_id, is_reversal, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13) RETURNING id`,
			line.TenantID, line.BranchID, line.AccountID, line.CustomerID, line.SupplierID,
			line.Debit, line.Credit, line.Date, line.Description, line.ReferenceType, line.ReferenceID,
			line.IsReversal, line.CreatedBy).Scan(&id)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *txRepository) GetEventForUpdate(ctx context.Context, tenantID int64, eventID uuid.UUID) (Event, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+eventColumns+` FROM ledger_events WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, eventID)
	return scanEvent(row)
}

func (r *txRepository) ListEntriesByReference(ctx context.Context, tenantID int64, referenceID uuid.UUID) ([]entries.LedgerEntry, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, tenant_id, branch_id, account_id, customer_id, supplier_id, debit, credit, date, description, reference_type, reference_id, is_reversal, created_by, created_at
FROM ledger_entries WHERE tenant_id=$1 AND reference_id=$2 ORDER BY id`, tenantID, referenceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []entries.LedgerEntry
	for rows.Next() {
		var e entries.LedgerEntry
		if err := rows.Scan(&e.ID, &e.TenantID, &e.BranchID, &e.AccountID, &e.CustomerID, &e.SupplierID,
			&e.Debit, &e.Credit, &e.Date, &e.Description, &e.ReferenceType, &e.ReferenceID,
			&e.IsReversal, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *txRepository) UpdateEventStatus(ctx context.Context, eventID uuid.UUID, status EventStatus, at time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE ledger_events SET status=$2, reversed_at=$3 WHERE id=$1`, eventID, status, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrEventNotFound
	}
	return nil
}

func (r *txRepository) AdjustCustomerBalance(ctx context.Context, tenantID, customerID int64, delta decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `UPDATE customers SET outstanding_balance = outstanding_balance + $3, updated_at=NOW()
WHERE tenant_id=$1 AND id=$2`, tenantID, customerID, delta)
	return err
}

func (r *txRepository) AdjustSupplierBalance(ctx context.Context, tenantID, supplierID int64, delta decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `UPDATE suppliers SET outstanding_balance = outstanding_balance + $3, updated_at=NOW()
WHERE tenant_id=$1 AND id=$2`, tenantID, supplierID, delta)
	return err
}

func (r *txRepository) AdjustInvoicePaid(ctx context.Context, tenantID, invoiceID int64, delta decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `UPDATE invoices SET paid_amount = paid_amount + $3, updated_at=NOW()
WHERE tenant_id=$1 AND id=$2`, tenantID, invoiceID, delta)
	return err
}

func (r *txRepository) AdjustPurchasePaid(ctx context.Context, tenantID, purchaseID int64, delta decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `UPDATE purchases SET paid_amount = paid_amount + $3, updated_at=NOW()
WHERE tenant_id=$1 AND id=$2`, tenantID, purchaseID, delta)
	return err
}

func scanEvent(row pgx.Row) (Event, error) {
	var e Event
	err := row.Scan(&e.ID, &e.TenantID, &e.BranchID, &e.Kind, &e.Direction, &e.Amount, &e.Method,
		&e.CustomerID, &e.SupplierID, &e.InvoiceID, &e.PurchaseID, &e.ProductID,
		&e.ExternalRef, &e.Reason, &e.Status, &e.CreatedBy, &e.PostedAt, &e.ReversedAt, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Event{}, shared.ErrEventNotFound
		}
		return Event{}, err
	}
	return e, nil
}

// classifyStoreError keeps sentinel errors intact and maps write conflicts
// and connectivity failures to the retryable transient class.
func classifyStoreError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, shared.ErrDuplicateEvent) || errors.Is(err, shared.ErrEventNotFound) ||
		errors.Is(err, shared.ErrInvalidTransition) || errors.Is(err, shared.ErrValidation) ||
		errors.Is(err, shared.ErrConfiguration) || errors.Is(err, shared.ErrUnbalanced) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return shared.ErrTransientStore
		}
		return err
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return shared.ErrTransientStore
	}
	return err
}
