package history

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/lru"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ruteri/vehicle-registry/interfaces"
	"github.com/ruteri/vehicle-registry/metrics"
	"github.com/ruteri/vehicle-registry/registry"
	"github.com/ruteri/vehicle-registry/txcodec"
)

const (
	DefaultPageSize        = 1000
	DefaultDecodeCacheSize = 100_000
	DefaultMaxPages        = 10_000
)

// Config configures a Reconstructor.
type Config struct {
	ApplicationID interfaces.ApplicationID
	// PageSize is the indexer page limit.
	PageSize int
	// MaxPages aborts scans of runaway pagination.
	MaxPages int
	// DecodeCacheSize bounds the number of memoized decoded transactions.
	DecodeCacheSize int
	// ExplorerURL is the base for transaction links on events.
	ExplorerURL string
}

// Reconstructor builds histories from an indexer.
type Reconstructor struct {
	cfg     Config
	indexer interfaces.Indexer
	decoded *lru.Cache[string, interfaces.Operation]
	tracer  trace.Tracer
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewReconstructor creates a reconstructor reading from idx. m may be nil.
func NewReconstructor(cfg Config, idx interfaces.Indexer, m *metrics.Metrics, log *slog.Logger) *Reconstructor {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	if cfg.DecodeCacheSize <= 0 {
		cfg.DecodeCacheSize = DefaultDecodeCacheSize
	}
	return &Reconstructor{
		cfg:     cfg,
		indexer: idx,
		decoded: lru.NewCache[string, interfaces.Operation](cfg.DecodeCacheSize),
		tracer:  otel.Tracer("github.com/ruteri/vehicle-registry/history"),
		metrics: m,
		log:     log,
	}
}

// WithTracer overrides the tracer.
func (r *Reconstructor) WithTracer(tracer trace.Tracer) *Reconstructor {
	r.tracer = tracer
	return r
}

// History returns the events of registration, newest first.
func (r *Reconstructor) History(ctx context.Context, registration interfaces.Registration) (*interfaces.History, error) {
	registration = interfaces.NormalizeRegistration(string(registration))
	if err := registration.Validate(); err != nil {
		return nil, &interfaces.RegistryError{
			Kind:         interfaces.KindInvalidInput,
			Op:           interfaces.OpHistory,
			Registration: registration,
			Reason:       "invalid history request",
			Err:          err,
		}
	}

	ctx, span := r.tracer.Start(ctx, "history.Reconstruct",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("registration", registration.String()),
			attribute.Int64("app_id", int64(r.cfg.ApplicationID)),
		))
	defer span.End()

	start := time.Now()
	txs, err := r.scan(ctx, registration)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	history := &interfaces.History{
		Registration:        registration,
		Events:              []interfaces.HistoryEvent{},
		ScannedTransactions: len(txs),
	}
	seen := make(map[string]struct{})
	for _, tx := range txs {
		if tx.Round > history.LatestRound {
			history.LatestRound = tx.Round
		}

		op := r.decode(tx)
		if op.Kind == interfaces.OpUnknown {
			history.Diagnostics = append(history.Diagnostics, interfaces.Diagnostic{
				TransactionID: tx.ID,
				Round:         tx.Round,
				Timestamp:     tx.Timestamp,
				Sender:        tx.Sender,
				Reason:        op.Reason,
			})
			continue
		}
		if !op.Kind.Mutating() || op.Registration != registration {
			continue
		}

		event := r.event(tx, op)
		if _, dup := seen[event.ID]; dup {
			continue
		}
		seen[event.ID] = struct{}{}
		history.Events = append(history.Events, event)
	}

	SortEvents(history.Events)
	sort.Slice(history.Diagnostics, func(i, j int) bool {
		a, b := history.Diagnostics[i], history.Diagnostics[j]
		if a.Round != b.Round {
			return a.Round < b.Round
		}
		return a.TransactionID < b.TransactionID
	})

	r.metrics.ObserveHistoryScan(start, len(txs), len(history.Diagnostics))
	span.SetAttributes(
		attribute.Int("scanned", len(txs)),
		attribute.Int("events", len(history.Events)),
		attribute.Int("diagnostics", len(history.Diagnostics)))
	span.SetStatus(codes.Ok, "")

	r.log.Debug("Reconstructed history",
		slog.String("registration", registration.String()),
		slog.Int("scanned", len(txs)),
		slog.Int("events", len(history.Events)),
		slog.Int("diagnostics", len(history.Diagnostics)),
		slog.Duration("duration", time.Since(start)))
	return history, nil
}

// scan fetches every page. Any failure discards what was fetched so far.
func (r *Reconstructor) scan(ctx context.Context, registration interfaces.Registration) ([]interfaces.LedgerTransaction, error) {
	var (
		txs    []interfaces.LedgerTransaction
		token  string
		tokens = make(map[string]struct{})
	)
	for page := 0; ; page++ {
		if page >= r.cfg.MaxPages {
			return nil, r.unavailable(registration, fmt.Errorf("indexer returned more than %d pages", r.cfg.MaxPages))
		}
		if err := ctx.Err(); err != nil {
			return nil, r.unavailable(registration, err)
		}

		result, err := r.indexer.SearchApplicationTransactions(ctx, r.cfg.ApplicationID, r.cfg.PageSize, token)
		if err != nil {
			return nil, r.unavailable(registration, err)
		}
		if result == nil {
			return nil, r.unavailable(registration, fmt.Errorf("indexer returned no page"))
		}
		txs = append(txs, result.Transactions...)

		if result.NextToken == "" {
			return txs, nil
		}
		if _, repeated := tokens[result.NextToken]; repeated {
			return nil, r.unavailable(registration, fmt.Errorf("indexer repeated next token %q", result.NextToken))
		}
		tokens[result.NextToken] = struct{}{}
		token = result.NextToken
	}
}

func (r *Reconstructor) unavailable(registration interfaces.Registration, err error) error {
	r.log.Warn("History source unavailable",
		slog.String("registration", registration.String()),
		"err", err)
	return &interfaces.RegistryError{
		Kind:         interfaces.KindHistorySourceUnavailable,
		Op:           interfaces.OpHistory,
		Registration: registration,
		Reason:       "history source unavailable",
		Err:          err,
	}
}

// decode memoizes txcodec.Decode by transaction id; committed transactions
// never change.
func (r *Reconstructor) decode(tx interfaces.LedgerTransaction) interfaces.Operation {
	if tx.ID == "" {
		return txcodec.Decode(tx)
	}
	if op, ok := r.decoded.Get(tx.ID); ok {
		return op
	}
	op := txcodec.Decode(tx)
	r.decoded.Add(tx.ID, op)
	return op
}

func (r *Reconstructor) event(tx interfaces.LedgerTransaction, op interfaces.Operation) interfaces.HistoryEvent {
	var raw []hexutil.Bytes
	if len(tx.Args) > 1 {
		raw = make([]hexutil.Bytes, 0, len(tx.Args)-1)
		for _, arg := range tx.Args[1:] {
			raw = append(raw, hexutil.Bytes(arg))
		}
	}

	return interfaces.HistoryEvent{
		ID:               EventID(tx.ID, op.Method),
		Type:             interfaces.EventTypeFor(op.Kind),
		Timestamp:        tx.Timestamp,
		Round:            tx.Round,
		IntraRoundOffset: tx.IntraRoundOffset,
		TransactionID:    tx.ID,
		Sender:           tx.Sender,
		Details: interfaces.EventDetails{
			Method:         op.Method,
			Registration:   op.Registration,
			NewOwner:       op.NewOwner,
			ServiceDetails: op.ServiceDetails,
			RawData:        raw,
		},
		ExplorerURL: registry.TransactionURL(r.cfg.ExplorerURL, tx.ID),
	}
}

// EventID is the stable identifier of the event carried by a transaction.
func EventID(txID, method string) string {
	return txID + ":" + method
}

// SortEvents orders events newest first: timestamp descending, then round
// descending, then transaction id ascending. Events sharing a transaction
// fall back to their id.
func SortEvents(events []interfaces.HistoryEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		if a.Round != b.Round {
			return a.Round > b.Round
		}
		if a.TransactionID != b.TransactionID {
			return a.TransactionID < b.TransactionID
		}
		return a.ID < b.ID
	})
}
