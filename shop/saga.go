/*
saga.go - The deduct-then-allocate purchase saga

PURPOSE:
  A purchase touches two stores: the points ledger (deduct the cost) and
  the inventory (grant the item). They are independent storage concerns,
  so this is deliberately a saga with a compensating action, not a faked
  cross-store transaction.

STATE MACHINE (linear, no back-edges):
  1. Validate    quantity >= 1, item resolvable and available
  2. Reserve     ledger.Deduct(totalCost); insufficient balance ends the
                 saga with the ledger's message verbatim, no inventory
                 write is attempted
  3. Fulfill     upsert the inventory line (create or increment), refresh
                 cached catalog display fields
  4. Compensate  on fulfillment failure, ledger.CreditCustom(totalCost)
                 restores the points, then the caller gets a failure

FAILURE MODE THAT CANNOT BE HIDDEN:
  If the compensating credit itself fails, points are gone and no item
  was granted. That state is logged at Error level with full context
  (user, amount, item) for manual reconciliation, and the caller receives
  a CompensationError. It must never be silently swallowed.

CANCELLATION:
  Once Reserve commits, the saga always runs to a terminal state; store
  timeouts are treated as storage errors and routed through compensation.
  All steps are synchronous: the caller sees success,
  failure-with-refund-applied, or failure-with-refund-failed.
*/
package shop

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/commune/points-engine/catalog"
	"github.com/commune/points-engine/ledger"
)

// PurchaseResult is the terminal state of a purchase.
// Success=false with a Message is the insufficient-balance business
// outcome; structural failures are returned as errors instead.
type PurchaseResult struct {
	Success         bool
	Message         string
	Line            InventoryLine
	Created         bool // true if this was the user's first line for the item
	UnitPrice       int64
	TotalCost       int64
	RemainingPoints int64
}

// Saga coordinates purchases across the ledger and the inventory store.
type Saga struct {
	ledger    *ledger.Service
	catalog   *catalog.Catalog
	inventory InventoryStore
	logger    *slog.Logger
}

// NewSaga wires the purchase saga. logger may be nil.
func NewSaga(l *ledger.Service, c *catalog.Catalog, inv InventoryStore, logger *slog.Logger) *Saga {
	if logger == nil {
		logger = slog.Default()
	}
	return &Saga{ledger: l, catalog: c, inventory: inv, logger: logger}
}

// Purchase buys quantity units of an item for points.
func (s *Saga) Purchase(ctx context.Context, userID, itemID string, quantity int64, now time.Time) (PurchaseResult, error) {
	// Step 1: Validate.
	if quantity < 1 {
		return PurchaseResult{}, fmt.Errorf("%w: quantity %d", ledger.ErrInvalidAmount, quantity)
	}
	item, unitPrice, err := s.catalog.EnsurePurchasable(itemID)
	if err != nil {
		return PurchaseResult{}, err
	}
	totalCost := unitPrice * quantity

	// Step 2: Reserve. A zero-cost item still goes through fulfillment but
	// skips the ledger round-trip.
	remaining := int64(0)
	if totalCost > 0 {
		deduction, err := s.ledger.Deduct(ctx, userID, totalCost,
			ledger.KindShopPurchase, fmt.Sprintf("%s x%d", item.Name, quantity), now)
		if err != nil {
			return PurchaseResult{}, err
		}
		if !deduction.Success {
			return PurchaseResult{Success: false, Message: deduction.Message, UnitPrice: unitPrice, TotalCost: totalCost, RemainingPoints: deduction.RemainingPoints}, nil
		}
		remaining = deduction.RemainingPoints
	}

	// Step 3: Fulfill.
	line, created, err := s.fulfill(ctx, userID, item, quantity, unitPrice, now)
	if err == nil {
		return PurchaseResult{
			Success:         true,
			Line:            line,
			Created:         created,
			UnitPrice:       unitPrice,
			TotalCost:       totalCost,
			RemainingPoints: remaining,
		}, nil
	}

	// Step 4: Compensate. The deduction committed but the item was not
	// granted; put the points back before reporting failure.
	if totalCost > 0 {
		if _, creditErr := s.ledger.CreditCustom(ctx, userID, totalCost,
			fmt.Sprintf("purchase rollback: %s", item.Name), now); creditErr != nil {
			comp := &ledger.CompensationError{
				UserID:        userID,
				Amount:        totalCost,
				ItemID:        itemID,
				FulfillErr:    err,
				CompensateErr: creditErr,
			}
			s.logger.Error("PURCHASE COMPENSATION FAILED - manual reconciliation required",
				slog.String("user_id", userID),
				slog.Int64("amount", totalCost),
				slog.String("item_id", itemID),
				slog.Any("fulfill_error", err),
				slog.Any("refund_error", creditErr),
			)
			return PurchaseResult{}, comp
		}
		s.logger.Warn("purchase fulfillment failed, points refunded",
			slog.String("user_id", userID),
			slog.Int64("amount", totalCost),
			slog.String("item_id", itemID),
			slog.Any("error", err),
		)
	}
	return PurchaseResult{}, fmt.Errorf("purchase fulfillment failed: %w", err)
}

// fulfill upserts the inventory line: first purchase creates it, repeat
// purchases increment quantity and refresh the cached catalog fields.
func (s *Saga) fulfill(ctx context.Context, userID string, item catalog.Item, quantity, unitPrice int64, now time.Time) (InventoryLine, bool, error) {
	existing, err := s.inventory.Find(ctx, userID, item.ID)
	if err != nil {
		return InventoryLine{}, false, err
	}

	if existing == nil {
		line := InventoryLine{
			UserID:            userID,
			ItemID:            item.ID,
			Quantity:          quantity,
			LastPurchasedAt:   now,
			LastPurchasePrice: unitPrice,
			Category:          item.Category,
			Icon:              item.Icon,
			Rarity:            item.Rarity,
		}
		if err := s.inventory.Insert(ctx, line); err != nil {
			return InventoryLine{}, false, err
		}
		return line, true, nil
	}

	line := *existing
	line.Quantity += quantity
	line.LastPurchasedAt = now
	line.LastPurchasePrice = unitPrice
	line.Category = item.Category
	line.Icon = item.Icon
	line.Rarity = item.Rarity
	if err := s.inventory.Update(ctx, line); err != nil {
		return InventoryLine{}, false, err
	}
	return line, false, nil
}

// Inventory returns a user's inventory lines.
func (s *Saga) Inventory(ctx context.Context, userID string) ([]InventoryLine, error) {
	return s.inventory.ListByUser(ctx, userID)
}
