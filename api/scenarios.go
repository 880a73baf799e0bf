/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Provides pre-built scenarios that populate the database with realistic
  data for testing and demos. Each scenario creates users with earning
  history, purchases, and balances that demonstrate specific features.

AVAILABLE SCENARIOS:
  new-member:     First-day user: attendance bonus plus a few chat rewards
  power-chatter:  User who has hit the daily chat cap
  collector:      Long-time member with a big balance and several purchases
  refund-audit:   Ledger showing a purchase and its compensating refund pair

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Replay awards/credits through the ledger service
 3. Optionally run purchases through the saga

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "collector"}

NOTE:
  Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler dependencies
  - server.go: Scenario routes
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/commune/points-engine/ledger"
)

// Resetter clears all stored data. Implemented by the SQLite store;
// optional on the handler, scenario loading requires it.
type Resetter interface {
	Reset(ctx context.Context) error
}

// ScenarioDTO describes one loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "new-member",
		Name:        "New Member",
		Description: "First-day user: attendance bonus plus a few chat rewards",
	},
	{
		ID:          "power-chatter",
		Name:        "Power Chatter",
		Description: "User who has hit the daily chat cap",
	},
	{
		ID:          "collector",
		Name:        "Collector",
		Description: "Long-time member with a big balance and several shop purchases",
	},
	{
		ID:          "refund-audit",
		Name:        "Refund Audit",
		Description: "Ledger showing a purchase and its compensating refund pair",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: h.currentScenario, Name: h.currentScenario})
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	if h.Resetter == nil {
		writeError(w, http.StatusNotImplemented, "scenario loading is not enabled")
		return
	}

	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ctx := r.Context()
	if err := h.Resetter.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reset database")
		return
	}
	h.currentScenario = ""

	var err error
	switch req.ScenarioID {
	case "new-member":
		err = h.loadNewMemberScenario(ctx)
	case "power-chatter":
		err = h.loadPowerChatterScenario(ctx)
	case "collector":
		err = h.loadCollectorScenario(ctx)
	case "refund-audit":
		err = h.loadRefundAuditScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, "unknown scenario: "+req.ScenarioID)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load scenario: %v", err))
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data without loading a scenario.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if h.Resetter == nil {
		writeError(w, http.StatusNotImplemented, "reset is not enabled")
		return
	}
	if err := h.Resetter.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reset database")
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadNewMemberScenario(ctx context.Context) error {
	now := h.Clock()
	if _, err := h.Ledger.Award(ctx, "demo-alex", ledger.ActionDailyAttendance, now.Add(-2*time.Hour), h.DefaultLocation); err != nil {
		return err
	}
	for i := 0; i < 3; i++ {
		if _, err := h.Ledger.Award(ctx, "demo-alex", ledger.ActionChatMessage, now.Add(-time.Duration(90-i*10)*time.Minute), h.DefaultLocation); err != nil {
			return err
		}
	}
	_, err := h.Ledger.Award(ctx, "demo-alex", ledger.ActionPostCreate, now.Add(-30*time.Minute), h.DefaultLocation)
	return err
}

func (h *Handler) loadPowerChatterScenario(ctx context.Context) error {
	now := h.Clock()
	// Six chat awards exhaust the 30-point daily cap; the seventh is
	// recorded as a skip by the service, leaving a capped account.
	for i := 0; i < 7; i++ {
		if _, err := h.Ledger.Award(ctx, "demo-sam", ledger.ActionChatMessage, now.Add(-time.Duration(70-i*10)*time.Minute), h.DefaultLocation); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadCollectorScenario(ctx context.Context) error {
	now := h.Clock()
	if _, err := h.Ledger.Award(ctx, "demo-rin", ledger.ActionDailyAttendance, now.Add(-3*time.Hour), h.DefaultLocation); err != nil {
		return err
	}
	if _, err := h.Ledger.CreditCustom(ctx, "demo-rin", 800, "event season reward", now.Add(-3*time.Hour)); err != nil {
		return err
	}
	for _, itemID := range []string{"badge-bronze", "badge-silver", "badge-gold", "frame-neon"} {
		result, err := h.Saga.Purchase(ctx, "demo-rin", itemID, 1, now.Add(-time.Hour))
		if err != nil {
			return err
		}
		if !result.Success {
			return fmt.Errorf("collector scenario purchase of %s failed: %s", itemID, result.Message)
		}
	}
	return nil
}

func (h *Handler) loadRefundAuditScenario(ctx context.Context) error {
	now := h.Clock()
	if _, err := h.Ledger.Award(ctx, "demo-kai", ledger.ActionDailyAttendance, now.Add(-2*time.Hour), h.DefaultLocation); err != nil {
		return err
	}
	if _, err := h.Ledger.CreditCustom(ctx, "demo-kai", 200, "welcome grant", now.Add(-2*time.Hour)); err != nil {
		return err
	}
	// Record the deduct/refund pair an operator would see after a failed
	// fulfillment was compensated.
	deduction, err := h.Ledger.Deduct(ctx, "demo-kai", 160, ledger.KindShopPurchase, "Gold Badge x1", now.Add(-time.Hour))
	if err != nil {
		return err
	}
	if !deduction.Success {
		return fmt.Errorf("refund-audit scenario deduction failed: %s", deduction.Message)
	}
	_, err = h.Ledger.CreditCustom(ctx, "demo-kai", 160, "purchase rollback: Gold Badge", now.Add(-time.Hour))
	return err
}
