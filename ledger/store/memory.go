// Package store provides ledger.Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/commune/points-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory is an in-memory ledger store. WithTx serializes all mutation
// through one mutex and rolls back via snapshot on error, which gives the
// same lost-update protection the SQLite store gets from its write lock.
type Memory struct {
	mu       sync.RWMutex
	accounts map[string]*ledger.Account
	entries  map[string][]ledger.Entry
}

func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[string]*ledger.Account),
		entries:  make(map[string][]ledger.Entry),
	}
}

func (m *Memory) GetAccount(_ context.Context, userID string) (*ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneAccount(m.accounts[userID]), nil
}

func (m *Memory) SaveAccount(_ context.Context, account *ledger.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.UserID] = cloneAccount(account)
	return nil
}

func (m *Memory) AppendEntry(_ context.Context, entry ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.UserID] = append(m.entries[entry.UserID], entry)
	return nil
}

func (m *Memory) Entries(_ context.Context, userID string) ([]ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]ledger.Entry, len(m.entries[userID]))
	copy(result, m.entries[userID])
	return result, nil
}

// WithTx executes fn with the write lock held. Rollback is simulated with
// a snapshot restore, mirroring a database transaction.
func (m *Memory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()
	view := &txMemoryView{parent: m}

	if err := fn(view); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

// Reset clears all data (for testing/demo).
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts = make(map[string]*ledger.Account)
	m.entries = make(map[string][]ledger.Entry)
	return nil
}

func (m *Memory) snapshot() memorySnapshot {
	accounts := make(map[string]*ledger.Account, len(m.accounts))
	for k, v := range m.accounts {
		accounts[k] = cloneAccount(v)
	}
	entries := make(map[string][]ledger.Entry, len(m.entries))
	for k, v := range m.entries {
		entries[k] = append([]ledger.Entry{}, v...)
	}
	return memorySnapshot{accounts: accounts, entries: entries}
}

func (m *Memory) restore(s memorySnapshot) {
	m.accounts = s.accounts
	m.entries = s.entries
}

type memorySnapshot struct {
	accounts map[string]*ledger.Account
	entries  map[string][]ledger.Entry
}

// txMemoryView accesses parent state directly; the parent already holds
// the write lock for the duration of WithTx.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) GetAccount(_ context.Context, userID string) (*ledger.Account, error) {
	return cloneAccount(tv.parent.accounts[userID]), nil
}

func (tv *txMemoryView) SaveAccount(_ context.Context, account *ledger.Account) error {
	tv.parent.accounts[account.UserID] = cloneAccount(account)
	return nil
}

func (tv *txMemoryView) AppendEntry(_ context.Context, entry ledger.Entry) error {
	tv.parent.entries[entry.UserID] = append(tv.parent.entries[entry.UserID], entry)
	return nil
}

func (tv *txMemoryView) Entries(_ context.Context, userID string) ([]ledger.Entry, error) {
	result := make([]ledger.Entry, len(tv.parent.entries[userID]))
	copy(result, tv.parent.entries[userID])
	return result, nil
}

func (tv *txMemoryView) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	// Already inside the transactional unit.
	return fn(tv)
}

func cloneAccount(a *ledger.Account) *ledger.Account {
	if a == nil {
		return nil
	}
	clone := *a
	clone.DailyCounters = make(map[ledger.ActionKind]int64, len(a.DailyCounters))
	for k, v := range a.DailyCounters {
		clone.DailyCounters[k] = v
	}
	if a.LastAttendanceAt != nil {
		at := *a.LastAttendanceAt
		clone.LastAttendanceAt = &at
	}
	return &clone
}
