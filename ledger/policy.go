/*
policy.go - Earning rules and the timezone-aware day boundary

PURPOSE:
  Pure, stateless computation: which actions earn how many points, which
  actions are capped per day, and when the "ledger day" rolls over.

DAY BOUNDARY:
  Days do NOT roll over at midnight. The cutover happens at a fixed local
  hour (06:00 by default): an award at 05:59 belongs to the previous ledger
  day, an award at 06:01 to the next. The cutover hour is a named,
  configurable constant, never an implicit midnight. This function is the
  ONLY place day-boundary logic lives, and it takes "now" as an argument so
  it is unit-testable with injected times.

CAPS:
  Chat and post rewards are capped per ledger day (points, not counts).
  Attendance is not point-capped; it is limited to once per ledger day by
  the Service comparing LastAttendanceAt against "now".

UNKNOWN ACTIONS:
  RewardFor returns 0 for unknown action kinds. The Service treats a zero
  reward as a no-op, never an error.

SEE ALSO:
  - service.go: Applies these rules inside the transactional unit
*/
package ledger

import "time"

// DefaultCutoverHour is the local hour at which the ledger day rolls over.
// Deliberately not midnight: daily limits reset at 06:00 local time.
const DefaultCutoverHour = 6

// Default reward and cap values.
const (
	RewardChatMessage     = 5
	RewardPostCreate      = 5
	RewardDailyAttendance = 20

	DailyCapChatMessage = 30
	DailyCapPostCreate  = 30
)

// =============================================================================
// POLICY
// =============================================================================

// Policy holds the earning rules. The zero value is NOT usable; construct
// with DefaultPolicy or fill every field.
type Policy struct {
	// Rewards maps an action to the points it earns. Absent = 0 = no-op.
	Rewards map[ActionKind]int64

	// DailyCaps maps an action to the maximum points earnable per ledger
	// day. Absent = unlimited.
	DailyCaps map[ActionKind]int64

	// CutoverHour is the local hour [0,23] at which a new ledger day starts.
	CutoverHour int
}

// DefaultPolicy returns the standard community earning rules.
func DefaultPolicy() Policy {
	return Policy{
		Rewards: map[ActionKind]int64{
			ActionChatMessage:     RewardChatMessage,
			ActionPostCreate:      RewardPostCreate,
			ActionDailyAttendance: RewardDailyAttendance,
		},
		DailyCaps: map[ActionKind]int64{
			ActionChatMessage: DailyCapChatMessage,
			ActionPostCreate:  DailyCapPostCreate,
		},
		CutoverHour: DefaultCutoverHour,
	}
}

// RewardFor returns the points earned by one occurrence of action.
// Unknown actions return 0.
func (p Policy) RewardFor(action ActionKind) int64 {
	return p.Rewards[action]
}

// DailyCapFor returns the per-day point cap for an action.
// capped=false means unlimited.
func (p Policy) DailyCapFor(action ActionKind) (limit int64, capped bool) {
	limit, capped = p.DailyCaps[action]
	return limit, capped
}

// =============================================================================
// DAY BOUNDARY
// =============================================================================

// LedgerDay returns the calendar date (midnight UTC marker) that t belongs
// to in loc, with days starting at CutoverHour local rather than midnight.
func (p Policy) LedgerDay(t time.Time, loc *time.Location) time.Time {
	shifted := t.In(loc).Add(-time.Duration(p.CutoverHour) * time.Hour)
	return time.Date(shifted.Year(), shifted.Month(), shifted.Day(), 0, 0, 0, 0, time.UTC)
}

// SameLedgerDay reports whether a and b fall on the same ledger day in loc.
func (p Policy) SameLedgerDay(a, b time.Time, loc *time.Location) bool {
	return p.LedgerDay(a, loc).Equal(p.LedgerDay(b, loc))
}

// NeedsDailyReset reports whether the daily counters stamped at lastReset
// are stale as of now. A zero lastReset always needs a reset.
func (p Policy) NeedsDailyReset(now, lastReset time.Time, loc *time.Location) bool {
	if lastReset.IsZero() {
		return true
	}
	return !p.SameLedgerDay(now, lastReset, loc)
}
