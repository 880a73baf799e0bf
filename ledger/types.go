/*
Package ledger provides the core points ledger engine.

PURPOSE:
  This package contains the types and algorithms for managing user point
  balances in the community backend. Every balance change (chat rewards,
  post rewards, attendance bonuses, admin adjustments, shop purchases)
  flows through this package and leaves an immutable audit record.

KEY CONCEPTS IN THIS FILE (types.go):
  - Account: Mutable per-user state (balance, daily counters, timestamps)
  - Entry: An immutable ledger row recording one balance change
  - ActionKind: A rewardable user action (chat message, post, attendance)
  - Kind: The classification stored on a ledger entry

DESIGN PRINCIPLES:
  1. Immutability: Entries are never modified, only appended
  2. Auditability: Balance is reconstructable by replaying entries
  3. Typed outcomes: Cap-exceeded and insufficient-balance are results,
     not errors; callers branch on them routinely

BALANCE VS ENTRIES:
  The entry log is the source of truth. Account.Balance is a materialized
  cache of the last entry's BalanceAfter. The Service maintains both inside
  a single store transaction so they can never diverge.

SEE ALSO:
  - policy.go: Earning rules and the timezone-aware day boundary
  - service.go: Award/Deduct/CreditCustom orchestration
  - store.go: Persistence contracts
*/
package ledger

import (
	"time"
)

// =============================================================================
// ACTION KINDS - Rewardable user actions
// =============================================================================

// ActionKind identifies a user action that may earn points.
type ActionKind string

const (
	ActionChatMessage     ActionKind = "chat-message"
	ActionPostCreate      ActionKind = "post-create"
	ActionDailyAttendance ActionKind = "daily-attendance"
)

// =============================================================================
// ENTRY KINDS - Classification of ledger entries
// =============================================================================

// Kind classifies a ledger entry. Earn kinds map 1:1 from ActionKind;
// deductions carry an explicit caller-supplied kind.
type Kind string

const (
	KindEarnChat       Kind = "earn-chat"
	KindEarnPost       Kind = "earn-post"
	KindEarnAttendance Kind = "earn-attendance"
	KindAdjustment     Kind = "adjustment"
	KindShopPurchase   Kind = "shop-purchase"
)

// EarnKindFor maps an action kind to the entry kind recorded for it.
// Unknown actions map to the empty Kind.
func EarnKindFor(action ActionKind) Kind {
	switch action {
	case ActionChatMessage:
		return KindEarnChat
	case ActionPostCreate:
		return KindEarnPost
	case ActionDailyAttendance:
		return KindEarnAttendance
	default:
		return ""
	}
}

// =============================================================================
// ACCOUNT - Mutable per-user balance state
// =============================================================================

// Account is the materialized balance state for one user.
// Created lazily on first award; mutated only by the Service.
type Account struct {
	UserID           string
	Balance          int64 // never negative
	DailyCounters    map[ActionKind]int64
	LastDailyResetAt time.Time
	LastAttendanceAt *time.Time
}

// NewAccount returns a zeroed account for a user.
func NewAccount(userID string, now time.Time) *Account {
	return &Account{
		UserID:           userID,
		DailyCounters:    make(map[ActionKind]int64),
		LastDailyResetAt: now,
	}
}

// ResetDailyCounters zeroes all per-day earning counters and stamps the
// reset time. Called when the ledger day boundary is crossed.
func (a *Account) ResetDailyCounters(now time.Time) {
	a.DailyCounters = make(map[ActionKind]int64)
	a.LastDailyResetAt = now
}

// =============================================================================
// ENTRY - Append-only ledger row
// =============================================================================

// Entry is one immutable balance change. For a fixed user, ordering by
// CreatedAt reconstructs balance history exactly:
// BalanceAfter[i] == BalanceAfter[i-1] + Amount[i].
type Entry struct {
	ID            string
	UserID        string
	Amount        int64 // positive = credit, negative = debit
	BalanceAfter  int64
	Kind          Kind
	Description   string
	ReferenceType string
	ReferenceID   string
	Metadata      map[string]string
	CreatedAt     time.Time
}

// =============================================================================
// OPERATION RESULTS - Typed business outcomes
// =============================================================================

// AwardResult is the outcome of Award and CreditCustom.
// Skipped is a routine business outcome (cap reached, attendance already
// recorded, zero custom credit), never an error.
type AwardResult struct {
	AddedPoints int64
	TotalPoints int64
	Skipped     bool
	SkipReason  string
}

// DeductResult is the outcome of Deduct. Success=false with a message is
// the insufficient-balance business outcome; callers branch on it.
type DeductResult struct {
	Success         bool
	Message         string
	RemainingPoints int64
}

// Snapshot is the read-only view returned by GetSnapshot.
type Snapshot struct {
	UserID           string
	Balance          int64
	DailyCounters    map[ActionKind]int64
	LastDailyResetAt time.Time
	LastAttendanceAt *time.Time

	// LedgerDay is the earning day the snapshot was taken in, resolved
	// against the caller's timezone and the cutover hour.
	LedgerDay time.Time
}
