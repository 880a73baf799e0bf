/*
handlers.go - HTTP API handlers for the community points system

PURPOSE:
  Exposes the points ledger and shop via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Points:
    POST   /api/users/{id}/awards       Record a rewardable action
    POST   /api/users/{id}/deductions   Spend points
    POST   /api/users/{id}/credits      Custom grant (admin/compensation)
    GET    /api/users/{id}/points       Balance snapshot
    GET    /api/users/{id}/transactions Ledger history

  Shop:
    GET    /api/catalog                 List catalog items
    POST   /api/users/{id}/purchases    Buy an item
    GET    /api/users/{id}/inventory    Owned items

  Admin:
    POST   /api/admin/users/{id}/daily-reset  Force daily-counter reset

TIMEZONE RESOLUTION:
  Timezone-sensitive endpoints (awards, points) resolve the IANA zone
  from the request (body field or ?tz= query), falling back to the
  server-configured default. The domain layer never assumes a zone.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: User or item not found
  - 500: Internal/storage errors
  Business outcomes (cap reached, insufficient balance) are 200 responses
  with success/skipped flags, not errors.

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/commune/points-engine/catalog"
	"github.com/commune/points-engine/ledger"
	"github.com/commune/points-engine/shop"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger  *ledger.Service
	Saga    *shop.Saga
	Catalog *catalog.Catalog

	// DefaultLocation is used when a request carries no timezone.
	DefaultLocation *time.Location

	// Clock returns the current time; replaceable in tests.
	Clock func() time.Time

	// Resetter enables the demo scenario endpoints when set.
	Resetter Resetter

	currentScenario string
}

// NewHandler creates a handler. defaultLoc nil means UTC.
func NewHandler(l *ledger.Service, saga *shop.Saga, cat *catalog.Catalog, defaultLoc *time.Location) *Handler {
	if defaultLoc == nil {
		defaultLoc = time.UTC
	}
	return &Handler{
		Ledger:          l,
		Saga:            saga,
		Catalog:         cat,
		DefaultLocation: defaultLoc,
		Clock:           time.Now,
	}
}

// resolveLocation picks the request timezone: explicit name first, then
// the server default. An unknown name is a client error.
func (h *Handler) resolveLocation(name string) (*time.Location, error) {
	if name == "" {
		return h.DefaultLocation, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, err
	}
	return loc, nil
}

// =============================================================================
// POINTS HANDLERS
// =============================================================================

// RecordAward handles POST /api/users/{id}/awards
func (h *Handler) RecordAward(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	var req AwardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Action == "" {
		writeError(w, http.StatusBadRequest, "action is required")
		return
	}

	loc, err := h.resolveLocation(req.Timezone)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown timezone: "+req.Timezone)
		return
	}

	result, err := h.Ledger.Award(r.Context(), userID, ledger.ActionKind(req.Action), h.Clock(), loc)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, AwardDTO{
		AddedPoints: result.AddedPoints,
		TotalPoints: result.TotalPoints,
		Skipped:     result.Skipped,
		SkipReason:  result.SkipReason,
	})
}

// RecordDeduction handles POST /api/users/{id}/deductions
func (h *Handler) RecordDeduction(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	var req DeductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Kind == "" {
		writeError(w, http.StatusBadRequest, "kind is required")
		return
	}

	result, err := h.Ledger.Deduct(r.Context(), userID, req.Amount, ledger.Kind(req.Kind), req.Reason, h.Clock())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, DeductDTO{
		Success:         result.Success,
		Message:         result.Message,
		RemainingPoints: result.RemainingPoints,
	})
}

// RecordCredit handles POST /api/users/{id}/credits
func (h *Handler) RecordCredit(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	var req CreditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := h.Ledger.CreditCustom(r.Context(), userID, req.Amount, req.Reason, h.Clock())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, AwardDTO{
		AddedPoints: result.AddedPoints,
		TotalPoints: result.TotalPoints,
		Skipped:     result.Skipped,
		SkipReason:  result.SkipReason,
	})
}

// GetPoints handles GET /api/users/{id}/points?tz=Asia/Seoul
func (h *Handler) GetPoints(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	loc, err := h.resolveLocation(r.URL.Query().Get("tz"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown timezone: "+r.URL.Query().Get("tz"))
		return
	}

	snap, err := h.Ledger.GetSnapshot(r.Context(), userID, h.Clock(), loc)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSnapshotDTO(snap))
}

// GetTransactions handles GET /api/users/{id}/transactions
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	entries, err := h.Ledger.History(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":      userID,
		"transactions": toEntryDTOs(entries),
	})
}

// =============================================================================
// SHOP HANDLERS
// =============================================================================

// ListCatalog handles GET /api/catalog
func (h *Handler) ListCatalog(w http.ResponseWriter, r *http.Request) {
	items := h.Catalog.List()
	dtos := make([]ItemDTO, len(items))
	for i, item := range items {
		dtos[i] = toItemDTO(item)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": dtos})
}

// RecordPurchase handles POST /api/users/{id}/purchases
func (h *Handler) RecordPurchase(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	var req PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ItemID == "" {
		writeError(w, http.StatusBadRequest, "item_id is required")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	result, err := h.Saga.Purchase(r.Context(), userID, req.ItemID, req.Quantity, h.Clock())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dto := PurchaseDTO{
		Success:         result.Success,
		Message:         result.Message,
		UnitPrice:       result.UnitPrice,
		TotalCost:       result.TotalCost,
		RemainingPoints: result.RemainingPoints,
	}
	if result.Success {
		line := toInventoryDTO(result.Line)
		dto.Item = &line
	}
	writeJSON(w, http.StatusOK, dto)
}

// GetInventory handles GET /api/users/{id}/inventory
func (h *Handler) GetInventory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	lines, err := h.Saga.Inventory(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"items":   toInventoryDTOs(lines),
	})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// ResetDailyCounters handles POST /api/admin/users/{id}/daily-reset
func (h *Handler) ResetDailyCounters(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	now := h.Clock()
	if err := h.Ledger.ResetDailyLimits(r.Context(), userID, now); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ResetDTO{
		UserID:  userID,
		ResetAt: now.UTC().Format(time.RFC3339),
	})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeDomainError maps domain errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case ledger.IsNotFound(err) || errors.Is(err, catalog.ErrItemNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case ledger.IsClientError(err) || errors.Is(err, catalog.ErrItemUnavailable):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrCompensationFailed):
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "compensation_failed",
		})
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
