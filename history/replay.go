package history

import (
	"cmp"
	"context"
	"io"
	"log/slog"
	"slices"

	"github.com/ruteri/vehicle-registry/interfaces"
	"github.com/ruteri/vehicle-registry/registry"
)

// Replay rebuilds the current record of a registration by applying its
// events in ledger order (round, then position within the round) to an empty
// state machine. Events the machine rejects are logged and skipped. Returns a
// NotFound error when no register event applies.
func Replay(ctx context.Context, history *interfaces.History, log *slog.Logger) (*interfaces.VehicleRecord, error) {
	machine := registry.NewMachine(registry.NewMemoryStore(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	for _, ev := range LedgerOrder(history.Events) {
		op := interfaces.Operation{
			Registration:   ev.Details.Registration,
			NewOwner:       ev.Details.NewOwner,
			ServiceDetails: ev.Details.ServiceDetails,
			Caller:         ev.Sender,
		}
		switch ev.Type {
		case interfaces.EventRegister:
			op.Kind = interfaces.OpRegister
		case interfaces.EventTransfer:
			op.Kind = interfaces.OpTransfer
		case interfaces.EventService:
			op.Kind = interfaces.OpAddService
		default:
			continue
		}
		if _, err := machine.Apply(ctx, op, ev.Timestamp); err != nil {
			log.Warn("Replayed event rejected",
				slog.String("registration", history.Registration.String()),
				slog.String("event", ev.ID),
				slog.Uint64("round", ev.Round),
				"err", err)
		}
	}

	return machine.Record(ctx, history.Registration)
}

// LedgerOrder returns a copy of events sorted oldest first by round and
// intra-round offset. Events at the same position keep their relative order.
func LedgerOrder(events []interfaces.HistoryEvent) []interfaces.HistoryEvent {
	ordered := slices.Clone(events)
	slices.SortStableFunc(ordered, func(a, b interfaces.HistoryEvent) int {
		if c := cmp.Compare(a.Round, b.Round); c != 0 {
			return c
		}
		return cmp.Compare(a.IntraRoundOffset, b.IntraRoundOffset)
	})
	return ordered
}

// ReplayReader implements interfaces.RecordReader by replaying history. It
// serves record reads when the ledger state itself is not queryable.
type ReplayReader struct {
	source interfaces.HistoryProvider
	log    *slog.Logger
}

// NewReplayReader creates a reader over source.
func NewReplayReader(source interfaces.HistoryProvider, log *slog.Logger) *ReplayReader {
	return &ReplayReader{source: source, log: log}
}

// Record implements interfaces.RecordReader.
func (r *ReplayReader) Record(ctx context.Context, registration interfaces.Registration) (*interfaces.VehicleRecord, error) {
	history, err := r.source.History(ctx, registration)
	if err != nil {
		return nil, err
	}
	return Replay(ctx, history, r.log)
}
