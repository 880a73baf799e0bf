/*
service.go - Points Ledger Service

PURPOSE:
  Orchestrates every balance mutation: earning rewards for user actions,
  deducting for purchases and penalties, and administrative credits.
  Enforces daily caps via the Policy and appends exactly one Entry per
  change, inside one store transaction with the account update.

OPERATION FLOW (Award):
  1. Resolve the reward; unknown actions are a no-op
  2. Identity check, then load or lazily create the account
  3. Persist a daily-counter reset if the ledger day rolled over
  4. Attendance: skip if already recorded for this ledger day
  5. Capped actions: skip if the reward would exceed the daily cap
  6. Otherwise mutate balance + counters and append the entry as one
     atomic unit
  7. After commit, publish the "awarded" event (fire-and-forget)

INVARIANTS:
  - Balance never goes negative; a deduct that would is rejected with
    Success=false and zero mutation
  - Every mutation writes the entry and the account in the same WithTx,
    so BalanceAfter always agrees with the materialized balance
  - Skipped/failed business outcomes are typed results, never errors

TIMEZONE:
  Timezone-dependent operations take an explicit *time.Location. The
  service has no default timezone; callers own that decision.

SEE ALSO:
  - policy.go: Earning rules and day boundary
  - store.go: The transactional contract this relies on
*/
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Service is the points ledger. All balance mutations go through it.
type Service struct {
	store    Store
	policy   Policy
	identity IdentityChecker
	events   EventSink
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithPolicy overrides the earning policy.
func WithPolicy(p Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithIdentity sets the identity collaborator consulted before lazily
// creating an account.
func WithIdentity(ic IdentityChecker) Option {
	return func(s *Service) { s.identity = ic }
}

// WithEvents sets the sink for post-commit notifications.
func WithEvents(sink EventSink) Option {
	return func(s *Service) { s.events = sink }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a ledger service with the default policy, an
// allow-all identity check, and no event sink.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		policy:   DefaultPolicy(),
		identity: AllowAllIdentity{},
		events:   NopSink{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the earning policy in effect.
func (s *Service) Policy() Policy { return s.policy }

// =============================================================================
// AWARD
// =============================================================================

// Award credits the reward for one occurrence of action, subject to daily
// caps and the once-per-day attendance rule. The account is created lazily
// on first interaction.
func (s *Service) Award(ctx context.Context, userID string, action ActionKind, now time.Time, loc *time.Location) (AwardResult, error) {
	if loc == nil {
		return AwardResult{}, ErrTimezoneRequired
	}

	reward := s.policy.RewardFor(action)
	if reward == 0 {
		// Unknown action kinds are a no-op, never an error.
		return AwardResult{Skipped: true, SkipReason: fmt.Sprintf("no reward configured for action %q", action)}, nil
	}

	ok, err := s.identity.Exists(ctx, userID)
	if err != nil {
		return AwardResult{}, &StorageError{Op: "identity check", Err: err}
	}
	if !ok {
		return AwardResult{}, ErrUserNotFound
	}

	var result AwardResult
	err = s.store.WithTx(ctx, func(tx Store) error {
		account, err := tx.GetAccount(ctx, userID)
		if err != nil {
			return err
		}
		if account == nil {
			account = NewAccount(userID, now)
			if err := tx.SaveAccount(ctx, account); err != nil {
				return err
			}
		}

		// The reset is persisted before caps are evaluated, even when the
		// award itself ends up skipped.
		if s.policy.NeedsDailyReset(now, account.LastDailyResetAt, loc) {
			account.ResetDailyCounters(now)
			if err := tx.SaveAccount(ctx, account); err != nil {
				return err
			}
		}

		if action == ActionDailyAttendance && account.LastAttendanceAt != nil &&
			s.policy.SameLedgerDay(*account.LastAttendanceAt, now, loc) {
			result = AwardResult{
				TotalPoints: account.Balance,
				Skipped:     true,
				SkipReason:  "attendance already recorded today",
			}
			return nil
		}

		if limit, capped := s.policy.DailyCapFor(action); capped {
			if account.DailyCounters[action]+reward > limit {
				result = AwardResult{
					TotalPoints: account.Balance,
					Skipped:     true,
					SkipReason:  fmt.Sprintf("daily cap of %d points reached for %s", limit, action),
				}
				return nil
			}
		}

		account.Balance += reward
		account.DailyCounters[action] += reward
		if action == ActionDailyAttendance {
			at := now
			account.LastAttendanceAt = &at
		}
		if err := tx.SaveAccount(ctx, account); err != nil {
			return err
		}

		entry := Entry{
			ID:           uuid.NewString(),
			UserID:       userID,
			Amount:       reward,
			BalanceAfter: account.Balance,
			Kind:         EarnKindFor(action),
			Description:  fmt.Sprintf("reward for %s", action),
			CreatedAt:    now,
		}
		if err := tx.AppendEntry(ctx, entry); err != nil {
			return err
		}

		result = AwardResult{AddedPoints: reward, TotalPoints: account.Balance}
		return nil
	})
	if err != nil {
		return AwardResult{}, wrapStorage("award", err)
	}

	if !result.Skipped {
		s.publish(Event{
			Type:    EventAwarded,
			UserID:  userID,
			Action:  action,
			Kind:    EarnKindFor(action),
			Amount:  result.AddedPoints,
			Balance: result.TotalPoints,
			At:      now,
		})
	}
	return result, nil
}

// =============================================================================
// DEDUCT
// =============================================================================

// Deduct removes amount points from the user's balance. The kind is an
// explicit, required classification (shop-purchase or adjustment).
// Insufficient balance is a business outcome: Success=false, no mutation.
func (s *Service) Deduct(ctx context.Context, userID string, amount int64, kind Kind, reason string, now time.Time) (DeductResult, error) {
	if amount <= 0 {
		return DeductResult{Success: false, Message: "amount must be a positive integer"}, nil
	}
	if kind != KindShopPurchase && kind != KindAdjustment {
		return DeductResult{}, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}

	var result DeductResult
	err := s.store.WithTx(ctx, func(tx Store) error {
		account, err := tx.GetAccount(ctx, userID)
		if err != nil {
			return err
		}
		if account == nil {
			return ErrUserNotFound
		}

		if account.Balance < amount {
			result = DeductResult{
				Success:         false,
				Message:         fmt.Sprintf("insufficient balance: have %d, need %d (short %d)", account.Balance, amount, amount-account.Balance),
				RemainingPoints: account.Balance,
			}
			return nil
		}

		account.Balance -= amount
		if err := tx.SaveAccount(ctx, account); err != nil {
			return err
		}

		entry := Entry{
			ID:           uuid.NewString(),
			UserID:       userID,
			Amount:       -amount,
			BalanceAfter: account.Balance,
			Kind:         kind,
			Description:  reason,
			CreatedAt:    now,
		}
		if err := tx.AppendEntry(ctx, entry); err != nil {
			return err
		}

		result = DeductResult{Success: true, RemainingPoints: account.Balance}
		return nil
	})
	if err != nil {
		if IsNotFound(err) {
			return DeductResult{}, err
		}
		return DeductResult{}, wrapStorage("deduct", err)
	}

	if result.Success {
		s.publish(Event{
			Type:    EventDeducted,
			UserID:  userID,
			Kind:    kind,
			Amount:  amount,
			Balance: result.RemainingPoints,
			At:      now,
		})
	}
	return result, nil
}

// =============================================================================
// CUSTOM CREDIT
// =============================================================================

// CreditCustom applies an administrative or compensating credit outside
// the normal earning rules. An amount <= 0 is a no-op (Skipped=true), never
// an error, since refund callers may compute a zero correction.
func (s *Service) CreditCustom(ctx context.Context, userID string, amount int64, reason string, now time.Time) (AwardResult, error) {
	if amount <= 0 {
		return AwardResult{Skipped: true, SkipReason: "non-positive credit amount"}, nil
	}

	var result AwardResult
	err := s.store.WithTx(ctx, func(tx Store) error {
		account, err := tx.GetAccount(ctx, userID)
		if err != nil {
			return err
		}
		if account == nil {
			return ErrUserNotFound
		}

		account.Balance += amount
		if err := tx.SaveAccount(ctx, account); err != nil {
			return err
		}

		entry := Entry{
			ID:           uuid.NewString(),
			UserID:       userID,
			Amount:       amount,
			BalanceAfter: account.Balance,
			Kind:         KindAdjustment,
			Description:  reason,
			Metadata:     map[string]string{"custom": "true"},
			CreatedAt:    now,
		}
		if err := tx.AppendEntry(ctx, entry); err != nil {
			return err
		}

		result = AwardResult{AddedPoints: amount, TotalPoints: account.Balance}
		return nil
	})
	if err != nil {
		if IsNotFound(err) {
			return AwardResult{}, err
		}
		return AwardResult{}, wrapStorage("credit", err)
	}

	s.publish(Event{
		Type:    EventAwarded,
		UserID:  userID,
		Kind:    KindAdjustment,
		Amount:  result.AddedPoints,
		Balance: result.TotalPoints,
		At:      now,
	})
	return result, nil
}

// =============================================================================
// SNAPSHOT & ADMIN
// =============================================================================

// GetSnapshot returns the current balance state. It performs the same lazy
// daily-reset check as Award, so a stale counter is corrected (and the
// correction persisted) on read, not only on write.
func (s *Service) GetSnapshot(ctx context.Context, userID string, now time.Time, loc *time.Location) (Snapshot, error) {
	if loc == nil {
		return Snapshot{}, ErrTimezoneRequired
	}

	var snap Snapshot
	err := s.store.WithTx(ctx, func(tx Store) error {
		account, err := tx.GetAccount(ctx, userID)
		if err != nil {
			return err
		}
		if account == nil {
			return ErrUserNotFound
		}

		if s.policy.NeedsDailyReset(now, account.LastDailyResetAt, loc) {
			account.ResetDailyCounters(now)
			if err := tx.SaveAccount(ctx, account); err != nil {
				return err
			}
		}

		counters := make(map[ActionKind]int64, len(account.DailyCounters))
		for k, v := range account.DailyCounters {
			counters[k] = v
		}
		snap = Snapshot{
			UserID:           account.UserID,
			Balance:          account.Balance,
			DailyCounters:    counters,
			LastDailyResetAt: account.LastDailyResetAt,
			LastAttendanceAt: account.LastAttendanceAt,
			LedgerDay:        s.policy.LedgerDay(now, loc),
		}
		return nil
	})
	if err != nil {
		if IsNotFound(err) {
			return Snapshot{}, err
		}
		return Snapshot{}, wrapStorage("snapshot", err)
	}
	return snap, nil
}

// ResetDailyLimits forces the daily-counter reset outside normal cap
// evaluation. Administrative operation.
func (s *Service) ResetDailyLimits(ctx context.Context, userID string, now time.Time) error {
	err := s.store.WithTx(ctx, func(tx Store) error {
		account, err := tx.GetAccount(ctx, userID)
		if err != nil {
			return err
		}
		if account == nil {
			return ErrUserNotFound
		}
		account.ResetDailyCounters(now)
		return tx.SaveAccount(ctx, account)
	})
	if err != nil {
		if IsNotFound(err) {
			return err
		}
		return wrapStorage("reset daily limits", err)
	}
	return nil
}

// History returns the user's full ledger in creation order.
func (s *Service) History(ctx context.Context, userID string) ([]Entry, error) {
	entries, err := s.store.Entries(ctx, userID)
	if err != nil {
		return nil, wrapStorage("history", err)
	}
	return entries, nil
}

// =============================================================================
// INTERNAL
// =============================================================================

// publish delivers an event after commit. Sink failures are isolated from
// the transactional result.
func (s *Service) publish(e Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("event sink panicked", slog.Any("panic", r), slog.String("user_id", e.UserID))
		}
	}()
	s.events.Publish(e)
}

func wrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
