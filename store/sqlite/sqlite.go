/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements ledger.Store and shop.InventoryStore on a single relational
  database. In production the same patterns apply to PostgreSQL - only
  minor SQL dialect differences.

KEY TABLES:
  accounts:        One mutable row per user (balance + daily counters)
  ledger_entries:  Immutable append-only log of all balance changes
  inventory_lines: One row per user x item, PK(user_id, item_id)

APPEND-ONLY ENFORCEMENT:
  No UPDATE or DELETE statement for ledger_entries exists in this package.
  Corrections happen via compensating entries.

CONCURRENCY:
  WithTx takes the store's write mutex for its whole duration and runs the
  body inside a database transaction. That serializes all balance
  mutations: two concurrent operations on the same user cannot both read
  the pre-mutation balance. Reads outside WithTx take the read lock only.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/points.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: Interface definition and transactional contract
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/commune/points-engine/ledger"
	"github.com/commune/points-engine/shop"
	_ "github.com/mattn/go-sqlite3"
)

// Store implements ledger.Store and shop.InventoryStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Accounts (materialized balance, one row per user)
	CREATE TABLE IF NOT EXISTS accounts (
		user_id TEXT PRIMARY KEY,
		balance INTEGER NOT NULL DEFAULT 0,
		daily_counters_json TEXT NOT NULL DEFAULT '{}',
		last_daily_reset_at TEXT NOT NULL,
		last_attendance_at TEXT
	);

	-- Ledger entries (append-only; balance_after chain reconstructs history)
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		amount INTEGER NOT NULL,
		balance_after INTEGER NOT NULL,
		kind TEXT NOT NULL,
		description TEXT,
		reference_type TEXT,
		reference_id TEXT,
		metadata_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_user
		ON ledger_entries(user_id);
	CREATE INDEX IF NOT EXISTS idx_entries_user_created
		ON ledger_entries(user_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_entries_kind
		ON ledger_entries(kind);

	-- Inventory lines (one per user x item; display fields cached)
	CREATE TABLE IF NOT EXISTS inventory_lines (
		user_id TEXT NOT NULL,
		item_id TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		last_purchased_at TEXT NOT NULL,
		last_purchase_price INTEGER NOT NULL,
		category TEXT,
		icon TEXT,
		rarity TEXT,
		PRIMARY KEY (user_id, item_id)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// LEDGER STORE (ledger.Store interface)
// =============================================================================

// GetAccount returns the account row, or nil if the user has none.
func (s *Store) GetAccount(ctx context.Context, userID string) (*ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getAccount(ctx, s.db, userID)
}

// SaveAccount upserts the account row.
func (s *Store) SaveAccount(ctx context.Context, account *ledger.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveAccount(ctx, s.db, account)
}

// AppendEntry adds one immutable entry to the ledger.
func (s *Store) AppendEntry(ctx context.Context, entry ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendEntry(ctx, s.db, entry)
}

// Entries returns all entries for a user in creation order.
func (s *Store) Entries(ctx context.Context, userID string) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryEntries(ctx, s.db, userID)
}

// WithTx executes fn inside a database transaction with the write lock
// held. The inner Store operates on the transaction directly and takes no
// further locks.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore runs ledger operations against an open transaction. The parent
// holds the write lock, so no locking happens here.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) GetAccount(ctx context.Context, userID string) (*ledger.Account, error) {
	return getAccount(ctx, ts.tx, userID)
}

func (ts *txStore) SaveAccount(ctx context.Context, account *ledger.Account) error {
	return saveAccount(ctx, ts.tx, account)
}

func (ts *txStore) AppendEntry(ctx context.Context, entry ledger.Entry) error {
	return appendEntry(ctx, ts.tx, entry)
}

func (ts *txStore) Entries(ctx context.Context, userID string) ([]ledger.Entry, error) {
	return queryEntries(ctx, ts.tx, userID)
}

func (ts *txStore) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	// Already inside the transactional unit.
	return fn(ts)
}

// =============================================================================
// ROW HELPERS
// =============================================================================

func getAccount(ctx context.Context, db dbtx, userID string) (*ledger.Account, error) {
	var (
		account      ledger.Account
		countersJSON string
		lastReset    string
		lastAttend   sql.NullString
	)

	err := db.QueryRowContext(ctx, `
		SELECT user_id, balance, daily_counters_json, last_daily_reset_at, last_attendance_at
		FROM accounts WHERE user_id = ?
	`, userID).Scan(&account.UserID, &account.Balance, &countersJSON, &lastReset, &lastAttend)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	account.DailyCounters = make(map[ledger.ActionKind]int64)
	if countersJSON != "" {
		if err := json.Unmarshal([]byte(countersJSON), &account.DailyCounters); err != nil {
			return nil, fmt.Errorf("corrupt daily counters for %s: %w", userID, err)
		}
	}
	account.LastDailyResetAt, _ = time.Parse(time.RFC3339Nano, lastReset)
	if lastAttend.Valid {
		t, _ := time.Parse(time.RFC3339Nano, lastAttend.String)
		account.LastAttendanceAt = &t
	}

	return &account, nil
}

func saveAccount(ctx context.Context, db dbtx, account *ledger.Account) error {
	countersJSON, err := json.Marshal(account.DailyCounters)
	if err != nil {
		return fmt.Errorf("failed to encode daily counters: %w", err)
	}

	var lastAttend *string
	if account.LastAttendanceAt != nil {
		t := account.LastAttendanceAt.UTC().Format(time.RFC3339Nano)
		lastAttend = &t
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO accounts (user_id, balance, daily_counters_json, last_daily_reset_at, last_attendance_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			balance = excluded.balance,
			daily_counters_json = excluded.daily_counters_json,
			last_daily_reset_at = excluded.last_daily_reset_at,
			last_attendance_at = excluded.last_attendance_at
	`,
		account.UserID,
		account.Balance,
		string(countersJSON),
		account.LastDailyResetAt.UTC().Format(time.RFC3339Nano),
		lastAttend,
	)
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

func appendEntry(ctx context.Context, db dbtx, entry ledger.Entry) error {
	metadataJSON, _ := json.Marshal(entry.Metadata)

	_, err := db.ExecContext(ctx, `
		INSERT INTO ledger_entries
		(id, user_id, amount, balance_after, kind, description,
		 reference_type, reference_id, metadata_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.ID,
		entry.UserID,
		entry.Amount,
		entry.BalanceAfter,
		string(entry.Kind),
		entry.Description,
		nullString(entry.ReferenceType),
		nullString(entry.ReferenceID),
		string(metadataJSON),
		entry.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

func queryEntries(ctx context.Context, db dbtx, userID string) ([]ledger.Entry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, amount, balance_after, kind, description,
		       reference_type, reference_id, metadata_json, created_at
		FROM ledger_entries
		WHERE user_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanEntry(rows *sql.Rows) (ledger.Entry, error) {
	var (
		entry         ledger.Entry
		kind          string
		description   sql.NullString
		referenceType sql.NullString
		referenceID   sql.NullString
		metadataJSON  sql.NullString
		createdAt     string
	)

	err := rows.Scan(
		&entry.ID, &entry.UserID, &entry.Amount, &entry.BalanceAfter, &kind,
		&description, &referenceType, &referenceID, &metadataJSON, &createdAt,
	)
	if err != nil {
		return entry, fmt.Errorf("failed to scan entry: %w", err)
	}

	entry.Kind = ledger.Kind(kind)
	entry.Description = description.String
	entry.ReferenceType = referenceType.String
	entry.ReferenceID = referenceID.String
	entry.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)

	if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != "null" {
		json.Unmarshal([]byte(metadataJSON.String), &entry.Metadata)
	}

	return entry, nil
}

// =============================================================================
// INVENTORY STORE (shop.InventoryStore interface)
// =============================================================================

// Find returns the line for (userID, itemID), or nil if none exists.
func (s *Store) Find(ctx context.Context, userID, itemID string) (*shop.InventoryLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		line        shop.InventoryLine
		purchasedAt string
		category    sql.NullString
		icon        sql.NullString
		rarity      sql.NullString
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, item_id, quantity, last_purchased_at, last_purchase_price,
		       category, icon, rarity
		FROM inventory_lines WHERE user_id = ? AND item_id = ?
	`, userID, itemID).Scan(
		&line.UserID, &line.ItemID, &line.Quantity, &purchasedAt,
		&line.LastPurchasePrice, &category, &icon, &rarity,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load inventory line: %w", err)
	}

	line.LastPurchasedAt, _ = time.Parse(time.RFC3339Nano, purchasedAt)
	line.Category = category.String
	line.Icon = icon.String
	line.Rarity = rarity.String
	return &line, nil
}

// Insert creates a new inventory line. Fails if the key already exists.
func (s *Store) Insert(ctx context.Context, line shop.InventoryLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inventory_lines
		(user_id, item_id, quantity, last_purchased_at, last_purchase_price, category, icon, rarity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		line.UserID, line.ItemID, line.Quantity,
		line.LastPurchasedAt.UTC().Format(time.RFC3339Nano),
		line.LastPurchasePrice, line.Category, line.Icon, line.Rarity,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("inventory line already exists for %s/%s: %w", line.UserID, line.ItemID, err)
		}
		return fmt.Errorf("failed to insert inventory line: %w", err)
	}
	return nil
}

// Update replaces an existing inventory line.
func (s *Store) Update(ctx context.Context, line shop.InventoryLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		UPDATE inventory_lines SET
			quantity = ?,
			last_purchased_at = ?,
			last_purchase_price = ?,
			category = ?,
			icon = ?,
			rarity = ?
		WHERE user_id = ? AND item_id = ?
	`,
		line.Quantity,
		line.LastPurchasedAt.UTC().Format(time.RFC3339Nano),
		line.LastPurchasePrice,
		line.Category, line.Icon, line.Rarity,
		line.UserID, line.ItemID,
	)
	if err != nil {
		return fmt.Errorf("failed to update inventory line: %w", err)
	}
	return nil
}

// ListByUser returns all inventory lines for a user.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]shop.InventoryLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, item_id, quantity, last_purchased_at, last_purchase_price,
		       category, icon, rarity
		FROM inventory_lines
		WHERE user_id = ?
		ORDER BY item_id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}
	defer rows.Close()

	var lines []shop.InventoryLine
	for rows.Next() {
		var (
			line        shop.InventoryLine
			purchasedAt string
			category    sql.NullString
			icon        sql.NullString
			rarity      sql.NullString
		)
		if err := rows.Scan(
			&line.UserID, &line.ItemID, &line.Quantity, &purchasedAt,
			&line.LastPurchasePrice, &category, &icon, &rarity,
		); err != nil {
			return nil, err
		}
		line.LastPurchasedAt, _ = time.Parse(time.RFC3339Nano, purchasedAt)
		line.Category = category.String
		line.Icon = icon.String
		line.Rarity = rarity.String
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"ledger_entries", "inventory_lines", "accounts"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
