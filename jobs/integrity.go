package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/ledger/entries"
)

// IntegrityChecker verifies the balanced-event invariant across the entry
// store. It never mutates; findings are logged for operators.
type IntegrityChecker struct {
	entries entries.Repository
	logger  *slog.Logger
}

func NewIntegrityChecker(entryRepo entries.Repository, logger *slog.Logger) *IntegrityChecker {
	return &IntegrityChecker{entries: entryRepo, logger: logger}
}

// Run reports every reference id whose entries do not balance.
func (c *IntegrityChecker) Run(ctx context.Context) (int, error) {
	unbalanced, err := c.entries.UnbalancedReferences(ctx)
	if err != nil {
		return 0, err
	}
	for _, ref := range unbalanced {
		c.logger.Error("unbalanced reference detected",
			slog.String("reference_id", ref.ReferenceID.String()),
			slog.String("debit", ref.TotalDebit.String()),
			slog.String("credit", ref.TotalCredit.String()))
	}
	if len(unbalanced) == 0 {
		c.logger.Info("ledger integrity check passed")
	}
	return len(unbalanced), nil
}

// Handler adapts the checker to an Asynq task.
func (c *IntegrityChecker) Handler(ctx context.Context, _ *asynq.Task) error {
	_, err := c.Run(ctx)
	return err
}

// ReconciliationReminder surfaces pending reconciliations older than the
// configured age so they are not forgotten.
type ReconciliationReminder struct {
	db     *pgxpool.Pool
	age    time.Duration
	logger *slog.Logger
}

func NewReconciliationReminder(db *pgxpool.Pool, age time.Duration, logger *slog.Logger) *ReconciliationReminder {
	if age <= 0 {
		age = 24 * time.Hour
	}
	return &ReconciliationReminder{db: db, age: age, logger: logger}
}

// Handler logs a reminder per stale pending reconciliation.
func (r *ReconciliationReminder) Handler(ctx context.Context, _ *asynq.Task) error {
	cutoff := time.Now().Add(-r.age)
	rows, err := r.db.Query(ctx, `SELECT id, tenant_id, amount, reason, created_at
FROM pending_reconciliations WHERE status='PENDING' AND created_at < $1 ORDER BY created_at`, cutoff)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id, tenantID int64
			amount       string
			reason       string
			createdAt    time.Time
		)
		if err := rows.Scan(&id, &tenantID, &amount, &reason, &createdAt); err != nil {
			return err
		}
		r.logger.Warn("pending reconciliation awaiting manual handling",
			slog.Int64("id", id),
			slog.Int64("tenant", tenantID),
			slog.String("amount", amount),
			slog.String("reason", reason),
			slog.Time("created_at", createdAt))
	}
	return rows.Err()
}
