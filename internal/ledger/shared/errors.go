package shared

import "errors"

var (
	// ErrValidation indicates bad input shape or amount.
	ErrValidation = errors.New("ledger: validation failed")
	// ErrConfiguration indicates the tenant chart cannot support the requested policy.
	ErrConfiguration = errors.New("ledger: account policy cannot be resolved")
	// ErrDuplicateEvent indicates an idempotency hit. Not a failure.
	ErrDuplicateEvent = errors.New("ledger: event already posted")
	// ErrInvalidTransition indicates a reversal or cancel attempted on a non-posted event.
	ErrInvalidTransition = errors.New("ledger: invalid event status transition")
	// ErrTransientStore indicates a write conflict or connectivity issue. Safe to retry.
	ErrTransientStore = errors.New("ledger: transient store failure")
	// ErrReconciliationRequired indicates posting failed after retries and was
	// parked for manual reconciliation.
	ErrReconciliationRequired = errors.New("ledger: posting requires manual reconciliation")
	// ErrEventNotFound indicates a missing event row.
	ErrEventNotFound = errors.New("ledger: event not found")
	// ErrAccountConflict indicates the account row already exists.
	ErrAccountConflict = errors.New("ledger: account code conflict")
	// ErrAccountNotFound indicates a missing account row.
	ErrAccountNotFound = errors.New("ledger: account not found")
	// ErrUnbalanced indicates a candidate entry set whose debits do not equal credits.
	ErrUnbalanced = errors.New("ledger: entries must balance")
)
