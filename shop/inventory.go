/*
Package shop composes the points ledger with the inventory store to sell
catalog items for points.

This file (inventory.go) holds the inventory contracts. The inventory may
live in a different storage concern than the ledger, which is exactly why
the purchase flow is a saga (see saga.go) and not a cross-store
transaction.

INVENTORY LINES:
  One row per user x item. Created on first purchase, incremented on
  repeat purchases, never implicitly deleted. Display attributes
  (category, icon, rarity) are cached from the catalog at purchase time so
  reads don't join against it; they are refreshed on every repeat purchase
  so catalog edits propagate.
*/
package shop

import (
	"context"
	"sync"
	"time"
)

// InventoryLine is one user's holding of one catalog item.
type InventoryLine struct {
	UserID            string
	ItemID            string
	Quantity          int64 // >= 1
	LastPurchasedAt   time.Time
	LastPurchasePrice int64

	// Cached catalog display attributes.
	Category string
	Icon     string
	Rarity   string
}

// InventoryStore persists inventory lines. Lines are keyed by
// (userID, itemID); Insert fails the saga if the key already exists.
type InventoryStore interface {
	Find(ctx context.Context, userID, itemID string) (*InventoryLine, error)
	Insert(ctx context.Context, line InventoryLine) error
	Update(ctx context.Context, line InventoryLine) error
	ListByUser(ctx context.Context, userID string) ([]InventoryLine, error)
}

// =============================================================================
// MEMORY INVENTORY - In-memory implementation (for testing/dev)
// =============================================================================

type MemoryInventory struct {
	mu    sync.RWMutex
	lines map[inventoryKey]InventoryLine
}

type inventoryKey struct {
	UserID string
	ItemID string
}

func NewMemoryInventory() *MemoryInventory {
	return &MemoryInventory{lines: make(map[inventoryKey]InventoryLine)}
}

func (m *MemoryInventory) Find(_ context.Context, userID, itemID string) (*InventoryLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	line, ok := m.lines[inventoryKey{UserID: userID, ItemID: itemID}]
	if !ok {
		return nil, nil
	}
	return &line, nil
}

func (m *MemoryInventory) Insert(_ context.Context, line InventoryLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines[inventoryKey{UserID: line.UserID, ItemID: line.ItemID}] = line
	return nil
}

func (m *MemoryInventory) Update(_ context.Context, line InventoryLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines[inventoryKey{UserID: line.UserID, ItemID: line.ItemID}] = line
	return nil
}

// Reset clears all lines (for testing/demo).
func (m *MemoryInventory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = make(map[inventoryKey]InventoryLine)
	return nil
}

func (m *MemoryInventory) ListByUser(_ context.Context, userID string) ([]InventoryLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var lines []InventoryLine
	for k, v := range m.lines {
		if k.UserID == userID {
			lines = append(lines, v)
		}
	}
	return lines, nil
}
