package history

import (
	"context"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/event"

	"github.com/ruteri/vehicle-registry/interfaces"
)

// Snapshot is a history published by a Watcher. NewEvents lists the events
// not present in the previous snapshot, newest first.
type Snapshot struct {
	History   *interfaces.History
	NewEvents []interfaces.HistoryEvent
}

// Watcher polls one registration and publishes a Snapshot whenever its event
// set changes. Polling has no side effects on the registry.
type Watcher struct {
	source   interfaces.HistoryProvider
	interval time.Duration
	kick     chan struct{}
	feed     event.Feed
	log      *slog.Logger
}

// NewWatcher creates a watcher polling source every interval.
func NewWatcher(source interfaces.HistoryProvider, interval time.Duration, log *slog.Logger) *Watcher {
	return &Watcher{
		source:   source,
		interval: interval,
		kick:     make(chan struct{}, 1),
		log:      log,
	}
}

// Subscribe delivers snapshots to ch.
func (w *Watcher) Subscribe(ch chan<- Snapshot) event.Subscription {
	return w.feed.Subscribe(ch)
}

// Notify requests an immediate poll.
func (w *Watcher) Notify() {
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

// Watch polls registration until ctx is done. The first successful poll is
// always published. Poll failures are logged and retried on the next tick.
func (w *Watcher) Watch(ctx context.Context, registration interfaces.Registration) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	known := map[string]struct{}{}
	first := true
	for {
		history, err := w.source.History(ctx, registration)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.log.Warn("History poll failed",
				slog.String("registration", registration.String()),
				"err", err)
		case history.Degraded:
			w.log.Debug("Skipping degraded history snapshot", slog.String("registration", registration.String()))
		default:
			var fresh []interfaces.HistoryEvent
			for _, ev := range history.Events {
				if _, ok := known[ev.ID]; !ok {
					fresh = append(fresh, ev)
					known[ev.ID] = struct{}{}
				}
			}
			if first || len(fresh) > 0 {
				first = false
				w.feed.Send(Snapshot{History: history, NewEvents: fresh})
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-w.kick:
		}
	}
}
