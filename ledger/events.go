/*
events.go - Fire-and-forget domain events

PURPOSE:
  After a ledger mutation commits, the Service publishes an event so
  notification/analytics collaborators can react. Delivery is best-effort
  and isolated from the transactional result: a sink that errors, blocks,
  or panics must never roll back or fail the ledger operation.

SINKS:
  NopSink:  discard everything (default)
  LogSink:  structured log line per event
  ChanSink: buffered channel for in-process listeners; drops the oldest
            event when the buffer is full so publishing never blocks

SEE ALSO:
  - service.go: publishes after commit, wrapped in a recover
*/
package ledger

import (
	"log/slog"
	"time"
)

// EventType distinguishes the outbound notifications.
type EventType string

const (
	EventAwarded  EventType = "awarded"
	EventDeducted EventType = "deducted"
)

// Event carries the result payload of a committed ledger mutation.
type Event struct {
	Type    EventType
	UserID  string
	Action  ActionKind // set for awards
	Kind    Kind
	Amount  int64 // absolute points moved
	Balance int64 // balance after the mutation
	At      time.Time
}

// EventSink receives events after commit. Implementations must not block.
type EventSink interface {
	Publish(e Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Publish(Event) {}

// LogSink writes one structured log line per event.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Publish(e Event) {
	s.Logger.Info("ledger event",
		slog.String("type", string(e.Type)),
		slog.String("user_id", e.UserID),
		slog.String("kind", string(e.Kind)),
		slog.Int64("amount", e.Amount),
		slog.Int64("balance", e.Balance),
	)
}

// ChanSink delivers events to an in-process channel. When the buffer is
// full the oldest event is dropped; Publish never blocks the ledger.
type ChanSink struct {
	C chan Event
}

func NewChanSink(buffer int) *ChanSink {
	return &ChanSink{C: make(chan Event, buffer)}
}

func (s *ChanSink) Publish(e Event) {
	for {
		select {
		case s.C <- e:
			return
		default:
			select {
			case <-s.C: // drop oldest
			default:
			}
		}
	}
}
