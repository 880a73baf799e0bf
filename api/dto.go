/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/types.go: Domain types these map from
*/
package api

import (
	"time"

	"github.com/commune/points-engine/catalog"
	"github.com/commune/points-engine/ledger"
	"github.com/commune/points-engine/shop"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// AwardRequest is the request to record a rewardable community action.
type AwardRequest struct {
	Action   string `json:"action"`             // chat-message | post-create | daily-attendance
	Timezone string `json:"timezone,omitempty"` // IANA name; falls back to server default
}

// AwardDTO is the response after recording an action.
type AwardDTO struct {
	AddedPoints int64  `json:"added_points"`
	TotalPoints int64  `json:"total_points"`
	Skipped     bool   `json:"skipped"`
	SkipReason  string `json:"skip_reason,omitempty"`
}

// DeductRequest is the request to spend points.
type DeductRequest struct {
	Amount int64  `json:"amount"`
	Kind   string `json:"kind"` // shop-purchase | adjustment
	Reason string `json:"reason,omitempty"`
}

// DeductDTO is the response after a deduction attempt.
type DeductDTO struct {
	Success         bool   `json:"success"`
	Message         string `json:"message,omitempty"`
	RemainingPoints int64  `json:"remaining_points"`
}

// CreditRequest is the request to grant points outside the earning rules.
type CreditRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason,omitempty"`
}

// SnapshotDTO is a user's points state at read time.
type SnapshotDTO struct {
	UserID        string           `json:"user_id"`
	Balance       int64            `json:"balance"`
	DailyCounters map[string]int64 `json:"daily_counters"`
	LedgerDay     string           `json:"ledger_day"`
}

// EntryDTO represents one ledger entry.
type EntryDTO struct {
	ID            string            `json:"id"`
	Amount        int64             `json:"amount"`
	BalanceAfter  int64             `json:"balance_after"`
	Kind          string            `json:"kind"`
	Description   string            `json:"description,omitempty"`
	ReferenceType string            `json:"reference_type,omitempty"`
	ReferenceID   string            `json:"reference_id,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     string            `json:"created_at"`
}

// ItemDTO represents a catalog item with its derived final price.
type ItemDTO struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	BasePrice       int64  `json:"base_price"`
	DiscountPercent int64  `json:"discount_percent,omitempty"`
	FinalPrice      int64  `json:"final_price"`
	Available       bool   `json:"available"`
	Category        string `json:"category,omitempty"`
	Icon            string `json:"icon,omitempty"`
	Rarity          string `json:"rarity,omitempty"`
}

// PurchaseRequest is the request to buy a catalog item.
type PurchaseRequest struct {
	ItemID   string `json:"item_id"`
	Quantity int64  `json:"quantity"` // 0 is treated as 1
}

// PurchaseDTO is the response after a purchase attempt.
type PurchaseDTO struct {
	Success         bool          `json:"success"`
	Message         string        `json:"message,omitempty"`
	Item            *InventoryDTO `json:"item,omitempty"`
	UnitPrice       int64         `json:"unit_price,omitempty"`
	TotalCost       int64         `json:"total_cost,omitempty"`
	RemainingPoints int64         `json:"remaining_points"`
}

// InventoryDTO represents one owned item line.
type InventoryDTO struct {
	ItemID            string `json:"item_id"`
	Quantity          int64  `json:"quantity"`
	LastPurchasedAt   string `json:"last_purchased_at"`
	LastPurchasePrice int64  `json:"last_purchase_price"`
	Category          string `json:"category,omitempty"`
	Icon              string `json:"icon,omitempty"`
	Rarity            string `json:"rarity,omitempty"`
}

// ResetDTO is the response after an admin daily-counter reset.
type ResetDTO struct {
	UserID  string `json:"user_id"`
	ResetAt string `json:"reset_at"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toEntryDTO(e ledger.Entry) EntryDTO {
	return EntryDTO{
		ID:            e.ID,
		Amount:        e.Amount,
		BalanceAfter:  e.BalanceAfter,
		Kind:          string(e.Kind),
		Description:   e.Description,
		ReferenceType: e.ReferenceType,
		ReferenceID:   e.ReferenceID,
		Metadata:      e.Metadata,
		CreatedAt:     e.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toEntryDTOs(entries []ledger.Entry) []EntryDTO {
	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	return dtos
}

func toSnapshotDTO(s ledger.Snapshot) SnapshotDTO {
	counters := make(map[string]int64, len(s.DailyCounters))
	for k, v := range s.DailyCounters {
		counters[string(k)] = v
	}
	return SnapshotDTO{
		UserID:        s.UserID,
		Balance:       s.Balance,
		DailyCounters: counters,
		LedgerDay:     s.LedgerDay.Format("2006-01-02"),
	}
}

func toItemDTO(item catalog.Item) ItemDTO {
	return ItemDTO{
		ID:              item.ID,
		Name:            item.Name,
		BasePrice:       item.BasePrice,
		DiscountPercent: item.DiscountPercent,
		FinalPrice:      catalog.FinalPrice(item),
		Available:       item.Available,
		Category:        item.Category,
		Icon:            item.Icon,
		Rarity:          item.Rarity,
	}
}

func toInventoryDTO(line shop.InventoryLine) InventoryDTO {
	return InventoryDTO{
		ItemID:            line.ItemID,
		Quantity:          line.Quantity,
		LastPurchasedAt:   line.LastPurchasedAt.UTC().Format(time.RFC3339),
		LastPurchasePrice: line.LastPurchasePrice,
		Category:          line.Category,
		Icon:              line.Icon,
		Rarity:            line.Rarity,
	}
}

func toInventoryDTOs(lines []shop.InventoryLine) []InventoryDTO {
	dtos := make([]InventoryDTO, len(lines))
	for i, line := range lines {
		dtos[i] = toInventoryDTO(line)
	}
	return dtos
}
