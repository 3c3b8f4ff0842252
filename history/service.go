package history

import (
	"context"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/ruteri/vehicle-registry/interfaces"
	"github.com/ruteri/vehicle-registry/metrics"
)

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// ScanTimeout bounds one shared reconstruction, independent of the
	// callers waiting on it.
	ScanTimeout time.Duration
	// StaleFallback serves the last good history, flagged Degraded, when the
	// indexer is unavailable.
	StaleFallback bool
	// StaleTTL is how long a good history stays eligible as a fallback.
	StaleTTL time.Duration
}

// Service coalesces concurrent reconstructions of the same registration and
// optionally falls back to the last good result.
type Service struct {
	cfg     ServiceConfig
	source  interfaces.HistoryProvider
	group   singleflight.Group
	stale   *cache.Cache
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewService wraps source. m may be nil.
func NewService(cfg ServiceConfig, source interfaces.HistoryProvider, m *metrics.Metrics, log *slog.Logger) *Service {
	if cfg.ScanTimeout <= 0 {
		cfg.ScanTimeout = time.Minute
	}
	if cfg.StaleTTL <= 0 {
		cfg.StaleTTL = time.Hour
	}
	return &Service{
		cfg:     cfg,
		source:  source,
		stale:   cache.New(cfg.StaleTTL, cfg.StaleTTL/2),
		metrics: m,
		log:     log,
	}
}

// History implements interfaces.HistoryProvider. Callers always receive their
// own copy of the result.
func (s *Service) History(ctx context.Context, registration interfaces.Registration) (*interfaces.History, error) {
	registration = interfaces.NormalizeRegistration(string(registration))
	key := registration.String()

	ch := s.group.DoChan(key, func() (any, error) {
		scanCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ScanTimeout)
		defer cancel()
		return s.source.History(scanCtx, registration)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, &interfaces.RegistryError{
			Kind:         interfaces.KindHistorySourceUnavailable,
			Op:           interfaces.OpHistory,
			Registration: registration,
			Reason:       "history request cancelled",
			Err:          ctx.Err(),
		}
	case res = <-ch:
	}

	if res.Err != nil {
		return s.fallback(registration, res.Err)
	}

	history := res.Val.(*interfaces.History)
	if s.cfg.StaleFallback {
		s.stale.SetDefault(key, history)
	}
	if res.Shared {
		s.metrics.RecordHistoryRequest("shared")
	} else {
		s.metrics.RecordHistoryRequest("ok")
	}
	return cloneHistory(history), nil
}

func (s *Service) fallback(registration interfaces.Registration, err error) (*interfaces.History, error) {
	if !s.cfg.StaleFallback || interfaces.KindOf(err) != interfaces.KindHistorySourceUnavailable {
		s.metrics.RecordHistoryRequest("error")
		return nil, err
	}
	cached, ok := s.stale.Get(registration.String())
	if !ok {
		s.metrics.RecordHistoryRequest("error")
		return nil, err
	}

	s.log.Warn("Serving stale history",
		slog.String("registration", registration.String()),
		"err", err)
	s.metrics.RecordHistoryRequest("degraded")

	history := cloneHistory(cached.(*interfaces.History))
	history.Degraded = true
	history.DegradedReason = err.Error()
	return history, nil
}

func cloneHistory(h *interfaces.History) *interfaces.History {
	out := *h
	out.Events = append([]interfaces.HistoryEvent{}, h.Events...)
	if h.Diagnostics != nil {
		out.Diagnostics = append([]interfaces.Diagnostic(nil), h.Diagnostics...)
	}
	return &out
}
