package posting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/ledger/accounts"
	"github.com/meridian-erp/meridian-erp/internal/ledger/entries"
	"github.com/meridian-erp/meridian-erp/internal/ledger/shared"
)

// AccountResolver resolves semantic roles to tenant accounts.
type AccountResolver interface {
	ResolveRole(ctx context.Context, tenantID int64, role accounts.Role) (accounts.Account, error)
}

// CacheInvalidator drops cached tenant aggregates after a commit.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, tenantID int64) error
}

// Service is the posting and reversal engine. Every operation writes its
// entry set, event row and settlement-field updates in one transaction.
type Service struct {
	repo     Repository
	registry AccountResolver
	cache    CacheInvalidator
	logger   *slog.Logger
	now      func() time.Time
	attempts int
}

func NewService(repo Repository, registry AccountResolver, cache CacheInvalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, registry: registry, cache: cache, logger: logger, now: time.Now, attempts: 3}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// PostPayment posts an inflow or outflow payment. A repeated external
// reference returns the prior result with Duplicate set and writes nothing.
func (s *Service) PostPayment(ctx context.Context, input PaymentInput) (PostingResult, error) {
	if err := input.Validate(); err != nil {
		return PostingResult{}, err
	}
	if input.ExternalRef != "" {
		prior, ids, err := s.repo.FindByExternalRef(ctx, input.TenantID, input.ExternalRef)
		if err == nil {
			return PostingResult{EventID: prior.ID, EntryIDs: ids, Duplicate: true}, nil
		}
		if !errors.Is(err, shared.ErrEventNotFound) {
			return PostingResult{}, err
		}
	}

	funds, err := s.fundsAccount(ctx, input.TenantID, input.Method)
	if err != nil {
		return PostingResult{}, err
	}
	var counter accounts.Account
	switch input.Direction {
	case DirectionInflow:
		counter, err = s.registry.ResolveRole(ctx, input.TenantID, accounts.RoleReceivable)
	case DirectionOutflow:
		counter, err = s.registry.ResolveRole(ctx, input.TenantID, accounts.RolePayable)
	}
	if err != nil {
		return PostingResult{}, err
	}

	event := s.newEvent(EventKindPayment, input.TenantID, input.BranchID, input.Amount, input.ActorID)
	event.Direction = string(input.Direction)
	event.Method = input.Method
	event.CustomerID = input.CustomerID
	event.SupplierID = input.SupplierID
	event.InvoiceID = input.InvoiceID
	event.PurchaseID = input.PurchaseID
	if input.ExternalRef != "" {
		ref := input.ExternalRef
		event.ExternalRef = &ref
	}

	date := input.Date
	if date.IsZero() {
		date = s.now()
	}
	note := input.Note
	if note == "" {
		note = fmt.Sprintf("%s payment via %s", input.Direction, input.Method)
	}
	var debitAccount, creditAccount accounts.Account
	if input.Direction == DirectionInflow {
		debitAccount, creditAccount = funds, counter
	} else {
		debitAccount, creditAccount = counter, funds
	}
	lines := []entries.LedgerEntry{
		s.line(event, debitAccount.ID, input.Amount, decimal.Zero, date, note, input),
		s.line(event, creditAccount.ID, decimal.Zero, input.Amount, date, note, input),
	}

	result, err := s.commitPosting(ctx, event, lines, func(ctx context.Context, tx TxRepository) error {
		return s.applySettlement(ctx, tx, event, decimal.NewFromInt(1))
	})
	if err != nil && errors.Is(err, shared.ErrTransientStore) && input.ExternalRef != "" {
		return PostingResult{}, s.parkForReconciliation(ctx, input, err)
	}
	return result, err
}

// PostOpeningStock books a product's initial stock valuation. Idempotent
// per (tenant, product): a second call is a no-op returning the prior
// entry set.
func (s *Service) PostOpeningStock(ctx context.Context, input OpeningStockInput) (PostingResult, error) {
	if err := input.Validate(); err != nil {
		return PostingResult{}, err
	}
	prior, ids, err := s.repo.FindOpeningStock(ctx, input.TenantID, input.ProductID)
	if err == nil {
		return PostingResult{EventID: prior.ID, EntryIDs: ids, Duplicate: true}, nil
	}
	if !errors.Is(err, shared.ErrEventNotFound) {
		return PostingResult{}, err
	}

	inventory, err := s.registry.ResolveRole(ctx, input.TenantID, accounts.RoleInventory)
	if err != nil {
		return PostingResult{}, err
	}
	equity, err := s.registry.ResolveRole(ctx, input.TenantID, accounts.RoleOpeningEquity)
	if err != nil {
		return PostingResult{}, err
	}

	event := s.newEvent(EventKindOpeningStock, input.TenantID, input.BranchID, input.Valuation, input.ActorID)
	productID := input.ProductID
	event.ProductID = &productID

	date := input.Date
	if date.IsZero() {
		date = s.now()
	}
	note := fmt.Sprintf("Opening stock for product %d", input.ProductID)
	lines := []entries.LedgerEntry{
		s.stockLine(event, inventory.ID, input.Valuation, decimal.Zero, date, note, input.ActorID, ReferenceKind(event.Kind)),
		s.stockLine(event, equity.ID, decimal.Zero, input.Valuation, date, note, input.ActorID, ReferenceKind(event.Kind)),
	}
	return s.commitPosting(ctx, event, lines, nil)
}

// PostStockAdjustment books a stock write-up or write-off at the given
// valuation.
func (s *Service) PostStockAdjustment(ctx context.Context, input StockAdjustmentInput) (PostingResult, error) {
	if err := input.Validate(); err != nil {
		return PostingResult{}, err
	}
	inventory, err := s.registry.ResolveRole(ctx, input.TenantID, accounts.RoleInventory)
	if err != nil {
		return PostingResult{}, err
	}

	event := s.newEvent(EventKindAdjustment, input.TenantID, input.BranchID, input.Valuation, input.ActorID)
	event.Direction = string(input.Direction)
	event.Reason = input.Reason
	productID := input.ProductID
	event.ProductID = &productID

	date := input.Date
	if date.IsZero() {
		date = s.now()
	}
	note := input.Reason
	if note == "" {
		note = fmt.Sprintf("Stock adjustment for product %d", input.ProductID)
	}
	var lines []entries.LedgerEntry
	if input.Direction == AdjustmentAdd {
		gain, err := s.registry.ResolveRole(ctx, input.TenantID, accounts.RoleAdjustmentGain)
		if err != nil {
			return PostingResult{}, err
		}
		lines = []entries.LedgerEntry{
			s.stockLine(event, inventory.ID, input.Valuation, decimal.Zero, date, note, input.ActorID, entries.ReferenceAdjustment),
			s.stockLine(event, gain.ID, decimal.Zero, input.Valuation, date, note, input.ActorID, entries.ReferenceAdjustment),
		}
	} else {
		loss, err := s.registry.ResolveRole(ctx, input.TenantID, accounts.RoleAdjustmentLoss)
		if err != nil {
			return PostingResult{}, err
		}
		lines = []entries.LedgerEntry{
			s.stockLine(event, loss.ID, input.Valuation, decimal.Zero, date, note, input.ActorID, entries.ReferenceAdjustment),
			s.stockLine(event, inventory.ID, decimal.Zero, input.Valuation, date, note, input.ActorID, entries.ReferenceAdjustment),
		}
	}
	return s.commitPosting(ctx, event, lines, nil)
}

// GetEvent looks up a single event by id within the tenant.
func (s *Service) GetEvent(ctx context.Context, tenantID int64, eventID uuid.UUID) (Event, error) {
	if tenantID == 0 {
		return Event{}, fmt.Errorf("%w: tenant id required", shared.ErrValidation)
	}
	return s.repo.GetEvent(ctx, tenantID, eventID)
}

// ReverseEvent writes the compensating entry set for a posted event and
// transitions it to REVERSED. Prior entries stay untouched.
func (s *Service) ReverseEvent(ctx context.Context, tenantID int64, eventID uuid.UUID) (PostingResult, error) {
	return s.reverse(ctx, tenantID, eventID, EventStatusReversed)
}

// CancelEvent is the reversal variant that additionally marks the event
// itself cancelled.
func (s *Service) CancelEvent(ctx context.Context, tenantID int64, eventID uuid.UUID) (PostingResult, error) {
	return s.reverse(ctx, tenantID, eventID, EventStatusCancelled)
}

func (s *Service) reverse(ctx context.Context, tenantID int64, eventID uuid.UUID, target EventStatus) (PostingResult, error) {
	if tenantID == 0 {
		return PostingResult{}, fmt.Errorf("%w: tenant id required", shared.ErrValidation)
	}
	var result PostingResult
	err := s.runTx(ctx, func(ctx context.Context, tx TxRepository) error {
		event, err := tx.GetEventForUpdate(ctx, tenantID, eventID)
		if err != nil {
			return err
		}
		if !event.Status.CanReverse() {
			return fmt.Errorf("%w: event is %s", shared.ErrInvalidTransition, event.Status)
		}
		existing, err := tx.ListEntriesByReference(ctx, tenantID, eventID)
		if err != nil {
			return err
		}
		now := s.now()
		mirrored := make([]entries.LedgerEntry, 0, len(existing))
		for _, line := range existing {
			if line.IsReversal {
				continue
			}
			flipped := line
			flipped.ID = 0
			flipped.Debit, flipped.Credit = line.Credit, line.Debit
			flipped.Date = now
			flipped.Description = "Reversal: " + line.Description
			flipped.IsReversal = true
			flipped.CreatedAt = time.Time{}
			mirrored = append(mirrored, flipped)
		}
		if err := balancedSet(mirrored); err != nil {
			return err
		}
		ids, err := tx.InsertEntries(ctx, mirrored)
		if err != nil {
			return err
		}
		if err := s.applySettlement(ctx, tx, event, decimal.NewFromInt(-1)); err != nil {
			return err
		}
		if err := tx.UpdateEventStatus(ctx, eventID, target, now); err != nil {
			return err
		}
		result = PostingResult{EventID: eventID, EntryIDs: ids}
		return nil
	})
	if err != nil {
		return PostingResult{}, err
	}
	s.invalidate(ctx, tenantID)
	return result, nil
}

// commitPosting runs the atomic unit for a fresh event: event row, entry
// set and any settlement updates. A unique-constraint loss inside the
// transaction degrades to the stored prior result.
func (s *Service) commitPosting(ctx context.Context, event Event, lines []entries.LedgerEntry, settle func(context.Context, TxRepository) error) (PostingResult, error) {
	if err := balancedSet(lines); err != nil {
		return PostingResult{}, err
	}
	var ids []int64
	err := s.runTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.InsertEvent(ctx, event); err != nil {
			return err
		}
		inserted, err := tx.InsertEntries(ctx, lines)
		if err != nil {
			return err
		}
		if settle != nil {
			if err := settle(ctx, tx); err != nil {
				return err
			}
		}
		ids = inserted
		return nil
	})
	if err != nil {
		if errors.Is(err, shared.ErrDuplicateEvent) {
			return s.priorResult(ctx, event)
		}
		return PostingResult{}, err
	}
	s.invalidate(ctx, event.TenantID)
	return PostingResult{EventID: event.ID, EntryIDs: ids}, nil
}

// priorResult resolves the committed twin after losing an insert race.
func (s *Service) priorResult(ctx context.Context, event Event) (PostingResult, error) {
	var prior Event
	var ids []int64
	var err error
	switch {
	case event.ExternalRef != nil:
		prior, ids, err = s.repo.FindByExternalRef(ctx, event.TenantID, *event.ExternalRef)
	case event.Kind == EventKindOpeningStock && event.ProductID != nil:
		prior, ids, err = s.repo.FindOpeningStock(ctx, event.TenantID, *event.ProductID)
	default:
		return PostingResult{}, shared.ErrDuplicateEvent
	}
	if err != nil {
		return PostingResult{}, err
	}
	return PostingResult{EventID: prior.ID, EntryIDs: ids, Duplicate: true}, nil
}

func (s *Service) runTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	var err error
	for attempt := 0; attempt < s.attempts; attempt++ {
		err = s.repo.WithTx(ctx, fn)
		if err == nil || !errors.Is(err, shared.ErrTransientStore) {
			return err
		}
		s.logger.Warn("posting retry after write conflict", slog.Int("attempt", attempt+1))
	}
	return err
}

// applySettlement moves the co-owned financial-effect fields by the
// event's amount. sign is +1 for posting, -1 for a reversal.
func (s *Service) applySettlement(ctx context.Context, tx TxRepository, event Event, sign decimal.Decimal) error {
	if event.Kind != EventKindPayment {
		return nil
	}
	delta := event.Amount.Mul(sign)
	switch PaymentDirection(event.Direction) {
	case DirectionInflow:
		if event.CustomerID != nil {
			if err := tx.AdjustCustomerBalance(ctx, event.TenantID, *event.CustomerID, delta.Neg()); err != nil {
				return err
			}
		}
		if event.InvoiceID != nil {
			if err := tx.AdjustInvoicePaid(ctx, event.TenantID, *event.InvoiceID, delta); err != nil {
				return err
			}
		}
	case DirectionOutflow:
		if event.SupplierID != nil {
			if err := tx.AdjustSupplierBalance(ctx, event.TenantID, *event.SupplierID, delta.Neg()); err != nil {
				return err
			}
		}
		if event.PurchaseID != nil {
			if err := tx.AdjustPurchasePaid(ctx, event.TenantID, *event.PurchaseID, delta); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Service) parkForReconciliation(ctx context.Context, input PaymentInput, cause error) error {
	payload, err := json.Marshal(input)
	if err != nil {
		payload = []byte("{}")
	}
	rec := PendingReconciliation{
		TenantID: input.TenantID,
		Payload:  payload,
		Amount:   input.Amount,
		Reason:   cause.Error(),
	}
	if err := s.repo.RecordPendingReconciliation(ctx, rec); err != nil {
		s.logger.Error("record pending reconciliation", slog.Any("error", err))
		return fmt.Errorf("%w: %v", shared.ErrReconciliationRequired, err)
	}
	return shared.ErrReconciliationRequired
}

func (s *Service) fundsAccount(ctx context.Context, tenantID int64, method string) (accounts.Account, error) {
	switch method {
	case "cash":
		return s.registry.ResolveRole(ctx, tenantID, accounts.RoleCash)
	case "bank", "transfer", "card", "cheque":
		return s.registry.ResolveRole(ctx, tenantID, accounts.RoleBank)
	default:
		return accounts.Account{}, fmt.Errorf("%w: unknown payment method %q", shared.ErrConfiguration, method)
	}
}

func (s *Service) newEvent(kind EventKind, tenantID, branchID int64, amount decimal.Decimal, actorID int64) Event {
	now := s.now()
	return Event{
		ID:        uuid.New(),
		TenantID:  tenantID,
		BranchID:  branchID,
		Kind:      kind,
		Amount:    amount,
		Status:    EventStatusPosted,
		CreatedBy: actorID,
		PostedAt:  now,
		CreatedAt: now,
	}
}

func (s *Service) line(event Event, accountID int64, debit, credit decimal.Decimal, date time.Time, note string, input PaymentInput) entries.LedgerEntry {
	return entries.LedgerEntry{
		TenantID:      event.TenantID,
		BranchID:      event.BranchID,
		AccountID:     accountID,
		CustomerID:    input.CustomerID,
		SupplierID:    input.SupplierID,
		Debit:         debit,
		Credit:        credit,
		Date:          date,
		Description:   note,
		ReferenceType: entries.ReferencePayment,
		ReferenceID:   event.ID,
		CreatedBy:     input.ActorID,
	}
}

func (s *Service) stockLine(event Event, accountID int64, debit, credit decimal.Decimal, date time.Time, note string, actorID int64, refType entries.ReferenceType) entries.LedgerEntry {
	return entries.LedgerEntry{
		TenantID:      event.TenantID,
		BranchID:      event.BranchID,
		AccountID:     accountID,
		Debit:         debit,
		Credit:        credit,
		Date:          date,
		Description:   note,
		ReferenceType: refType,
		ReferenceID:   event.ID,
		CreatedBy:     actorID,
	}
}

func (s *Service) invalidate(ctx context.Context, tenantID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, tenantID); err != nil {
		s.logger.Warn("balance cache invalidation failed", slog.Int64("tenant", tenantID), slog.Any("error", err))
	}
}

// ReferenceKind maps an event kind onto the entry reference type.
func ReferenceKind(kind EventKind) entries.ReferenceType {
	switch kind {
	case EventKindOpeningStock:
		return entries.ReferenceOpeningStock
	case EventKindAdjustment:
		return entries.ReferenceAdjustment
	default:
		return entries.ReferencePayment
	}
}
