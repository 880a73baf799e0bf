/*
errors.go - Centralized error types for the points engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Business outcomes (cap exceeded, insufficient balance) are NOT errors -
  they are fields on AwardResult/DeductResult. Errors here are structural:
  unknown users, unknown items, invalid input, storage failures.

ERROR CATEGORIES:
  1. Not-found errors   - Unknown user or catalog item
  2. Validation errors  - Non-positive amounts, missing timezone
  3. Storage errors     - Backend failures during reads/writes
  4. Compensation error - The severe case: deduct committed, fulfillment
                          failed, AND the refund failed

USAGE:
  if errors.Is(err, ledger.ErrUserNotFound) { ... }

  var comp *ledger.CompensationError
  if errors.As(err, &comp) {
      // comp carries UserID/Amount/ItemID for manual reconciliation
  }

SEE ALSO:
  - service.go: Returns these errors
  - shop/saga.go: Produces CompensationError
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrUserNotFound is returned when an operation references a user with
	// no ledger account and no identity record.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidAmount is returned for non-positive amounts where the
	// operation requires a positive one (Deduct validation happens before
	// any storage access).
	ErrInvalidAmount = errors.New("amount must be a positive integer")

	// ErrInvalidKind is returned when Deduct is called with a kind other
	// than shop-purchase or adjustment. The kind is an explicit, required
	// argument, never inferred from the description text.
	ErrInvalidKind = errors.New("invalid deduction kind")

	// ErrTimezoneRequired is returned when a timezone-dependent operation
	// is called without a location. The engine never assumes a default.
	ErrTimezoneRequired = errors.New("timezone is required")

	// ErrCompensationFailed marks the manual-reconciliation state: points
	// were deducted, no item was granted, and the refund failed too.
	ErrCompensationFailed = errors.New("compensation failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// StorageError wraps a backend failure with the operation that hit it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// CompensationError carries full context for operator reconciliation.
// It is logged at the highest severity where it is produced; the fields
// exist so the log line can name the user, amount, and item involved.
type CompensationError struct {
	UserID        string
	Amount        int64
	ItemID        string
	FulfillErr    error
	CompensateErr error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("compensation failed for user %s: %d points deducted, item %s not granted (fulfill: %v, refund: %v)",
		e.UserID, e.Amount, e.ItemID, e.FulfillErr, e.CompensateErr)
}

func (e *CompensationError) Unwrap() error { return ErrCompensationFailed }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether the error indicates a missing user.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

// IsClientError reports whether the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidKind) ||
		errors.Is(err, ErrTimezoneRequired)
}
