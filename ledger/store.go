/*
store.go - Persistence interface for accounts and ledger entries

PURPOSE:
  Defines the interface between the ledger logic and the database.
  Different implementations can use SQLite, PostgreSQL, or in-memory
  storage; the Service only sees this contract.

APPEND-ONLY CONTRACT:
  ledger_entries is append-only:
  - AppendEntry(): the ONLY entry write operation
  - NO update or delete methods exist for entries
  Corrections are made via compensating entries, not edits.

ACCOUNTS:
  The account row is the one mutable resource. SaveAccount is an upsert;
  it must only ever be called from inside WithTx together with the entry
  append so balance and log cannot diverge.

CONCURRENCY:
  WithTx is the transactional unit from the concurrency model: the body
  runs with exclusive access to account state (read-balance → compute →
  write-balance-and-append-entry). Two concurrent operations on the same
  user can never both observe the pre-mutation balance; implementations
  guarantee this with a write lock plus a database transaction. A plain
  read-modify-write without WithTx is incorrect.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - ledger/store/memory.go: In-memory for testing

SEE ALSO:
  - service.go: The only caller of the mutating operations
*/
package ledger

import "context"

// Store handles persistence of accounts and entries.
type Store interface {
	// GetAccount returns the account for a user, or nil if none exists.
	GetAccount(ctx context.Context, userID string) (*Account, error)

	// SaveAccount upserts the account row. Call only inside WithTx.
	SaveAccount(ctx context.Context, account *Account) error

	// AppendEntry persists one immutable ledger entry.
	// This is the ONLY write operation for entries.
	AppendEntry(ctx context.Context, entry Entry) error

	// Entries returns all entries for a user in creation order.
	Entries(ctx context.Context, userID string) ([]Entry, error)

	// WithTx executes fn atomically with exclusive account access.
	// If fn returns an error, every write made through its Store argument
	// is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// IDENTITY CHECK - External collaborator
// =============================================================================

// IdentityChecker confirms a user id exists and is active. User lifecycle
// is owned by the user-management service; the ledger only asks.
type IdentityChecker interface {
	Exists(ctx context.Context, userID string) (bool, error)
}

// AllowAllIdentity accepts every user id. Suitable when the ledger runs
// embedded in the same process as user management.
type AllowAllIdentity struct{}

func (AllowAllIdentity) Exists(ctx context.Context, userID string) (bool, error) {
	return userID != "", nil
}
