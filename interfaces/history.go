package interfaces

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// EventType classifies a history event.
type EventType string

const (
	EventRegister EventType = "register"
	EventTransfer EventType = "transfer"
	EventService  EventType = "service"
	EventUnknown  EventType = "unknown"
)

// EventTypeFor maps an operation kind to the event type it produces.
func EventTypeFor(kind OpKind) EventType {
	switch kind {
	case OpRegister:
		return EventRegister
	case OpTransfer:
		return EventTransfer
	case OpAddService:
		return EventService
	default:
		return EventUnknown
	}
}

// EventDetails carries the decoded arguments of the transaction behind an event.
type EventDetails struct {
	Method         string          `json:"method"`
	Registration   Registration    `json:"registration"`
	NewOwner       Address         `json:"new_owner,omitempty"`
	ServiceDetails string          `json:"service_details,omitempty"`
	RawData        []hexutil.Bytes `json:"raw_data,omitempty"`
}

// HistoryEvent is one entry of a reconstructed vehicle timeline. ID is
// "<transaction id>:<method name>" and is stable across reconstructions.
type HistoryEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Round     uint64    `json:"round"`
	// IntraRoundOffset orders events executed in the same round.
	IntraRoundOffset uint64       `json:"intra_round_offset"`
	TransactionID    string       `json:"transaction_id"`
	Sender           Address      `json:"sender"`
	Details          EventDetails `json:"details"`
	ExplorerURL      string       `json:"explorer_url,omitempty"`
}

// Diagnostic reports an application transaction that could not be decoded.
type Diagnostic struct {
	TransactionID string    `json:"transaction_id"`
	Round         uint64    `json:"round"`
	Timestamp     time.Time `json:"timestamp"`
	Sender        Address   `json:"sender"`
	Reason        string    `json:"reason"`
}

// History is the reconstructed, newest-first timeline of one registration.
type History struct {
	Registration        Registration   `json:"registration"`
	Events              []HistoryEvent `json:"events"`
	Diagnostics         []Diagnostic   `json:"diagnostics,omitempty"`
	ScannedTransactions int            `json:"scanned_transactions"`
	LatestRound         uint64         `json:"latest_round"`

	// Degraded is set only when the history was served from a previous
	// successful reconstruction because the indexer failed.
	Degraded       bool   `json:"degraded,omitempty"`
	DegradedReason string `json:"degraded_reason,omitempty"`
}

// EventsByType returns the events of the given type, preserving order.
func (h *History) EventsByType(eventType EventType) []HistoryEvent {
	var out []HistoryEvent
	for _, ev := range h.Events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

// Latest returns the most recent event, if any.
func (h *History) Latest() (HistoryEvent, bool) {
	if len(h.Events) == 0 {
		return HistoryEvent{}, false
	}
	return h.Events[0], true
}

// HistoryProvider reconstructs vehicle histories.
type HistoryProvider interface {
	History(ctx context.Context, registration Registration) (*History, error)
}
