package ledger

import (
	"context"
	"crypto/sha512"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/ruteri/vehicle-registry/interfaces"
	"github.com/ruteri/vehicle-registry/registry"
	"github.com/ruteri/vehicle-registry/txcodec"
)

// DefaultPageSize is used when an indexer search does not set a limit.
const DefaultPageSize = 1000

var txIDEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Local is a single-writer devnet ledger hosting one registry application.
type Local struct {
	mu        sync.Mutex
	app       interfaces.ApplicationID
	machine   *registry.Machine
	store     interfaces.RecordStore
	txlog     TransactionLog
	committer Committer
	now       func() time.Time

	lastRound     uint64
	lastTimestamp time.Time

	feed event.Feed
	log  *slog.Logger
}

// NewLocal creates a devnet for app on top of an existing record store and
// transaction log. The round counter resumes from the log length. When store
// and txlog are the same Committer, accepted calls are committed atomically.
func NewLocal(ctx context.Context, app interfaces.ApplicationID, store interfaces.RecordStore, txlog TransactionLog, log *slog.Logger) (*Local, error) {
	l := &Local{
		app:     app,
		machine: registry.NewMachine(store, log),
		store:   store,
		txlog:   txlog,
		now:     time.Now,
		log:     log,
	}
	if c, ok := txlog.(Committer); ok && any(store) == any(txlog) {
		l.committer = c
	}

	n, err := txlog.Len(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading transaction log: %w", err)
	}
	if n > 0 {
		last, err := txlog.Range(ctx, n-1, 1)
		if err != nil {
			return nil, fmt.Errorf("reading transaction log: %w", err)
		}
		if len(last) == 1 {
			l.lastRound = last[0].Round
			l.lastTimestamp = last[0].Timestamp
		}
	}

	log.Info("Devnet ledger ready",
		slog.Uint64("appID", uint64(app)),
		slog.Int("transactions", n),
		slog.Uint64("lastRound", l.lastRound))
	return l, nil
}

// WithClock overrides the clock used for transaction timestamps.
func (l *Local) WithClock(now func() time.Time) *Local {
	l.now = now
	return l
}

// ApplicationID returns the hosted application id.
func (l *Local) ApplicationID() interfaces.ApplicationID {
	return l.app
}

// Record implements interfaces.RecordReader.
func (l *Local) Record(ctx context.Context, registration interfaces.Registration) (*interfaces.VehicleRecord, error) {
	return l.machine.Record(ctx, registration)
}

// SubscribeTransactions delivers every appended transaction to ch.
func (l *Local) SubscribeTransactions(ch chan<- interfaces.LedgerTransaction) event.Subscription {
	return l.feed.Subscribe(ch)
}

// Submit executes call and appends it to the log if the registry accepts it.
// Each accepted call gets its own round. The record change and the log entry
// are kept together: if either cannot be written, neither is.
func (l *Local) Submit(ctx context.Context, call interfaces.ApplicationCall) (*interfaces.Submission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	round := l.lastRound + 1
	ts := l.now().UTC().Truncate(time.Second)
	if ts.Before(l.lastTimestamp) {
		ts = l.lastTimestamp
	}

	tx := interfaces.LedgerTransaction{
		ID:            TransactionID(round, call.Sender, call.Args),
		Sender:        call.Sender,
		Round:         round,
		Timestamp:     ts,
		ApplicationID: l.app,
		Args:          call.Args,
	}

	op := txcodec.Decode(tx)
	if op.Kind == interfaces.OpUnknown {
		l.mu.Unlock()
		return nil, &interfaces.RegistryError{
			Kind:   interfaces.KindDecodeFailure,
			Op:     interfaces.OpUnknown,
			Caller: call.Sender,
			Reason: op.Reason,
		}
	}

	staged := &stagedStore{base: l.store}
	receipt, err := registry.NewMachine(staged, l.log).Apply(ctx, op, ts)
	if err != nil {
		l.mu.Unlock()
		l.log.Debug("Devnet rejected call",
			slog.String("method", op.Method),
			slog.String("sender", call.Sender.String()),
			"err", err)
		return nil, err
	}

	if err := l.commit(ctx, staged, tx); err != nil {
		l.mu.Unlock()
		l.log.Error("Failed to commit accepted transaction",
			slog.String("txID", tx.ID),
			"err", err)
		return nil, &interfaces.RegistryError{
			Kind:         interfaces.KindSubmissionFailed,
			Op:           op.Kind,
			Registration: op.Registration,
			Caller:       call.Sender,
			Reason:       "committing transaction",
			Err:          err,
		}
	}
	l.lastRound = round
	l.lastTimestamp = ts
	l.mu.Unlock()

	l.log.Debug("Devnet appended transaction",
		slog.String("txID", tx.ID),
		slog.Uint64("round", round),
		slog.String("method", op.Method))

	l.feed.Send(tx)

	return &interfaces.Submission{
		TxID:        tx.ID,
		Round:       round,
		Timestamp:   ts,
		ReturnValue: receipt.Message,
	}, nil
}

// SearchApplicationTransactions implements interfaces.Indexer. The next token
// is the decimal offset of the following page.
func (l *Local) SearchApplicationTransactions(ctx context.Context, app interfaces.ApplicationID, limit int, nextToken string) (*interfaces.TransactionPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if app != l.app {
		return &interfaces.TransactionPage{}, nil
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}

	offset := 0
	if nextToken != "" {
		parsed, err := strconv.Atoi(nextToken)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("invalid next token %q", nextToken)
		}
		offset = parsed
	}

	txs, err := l.txlog.Range(ctx, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("reading transaction log: %w", err)
	}
	total, err := l.txlog.Len(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading transaction log: %w", err)
	}

	page := &interfaces.TransactionPage{Transactions: txs}
	if next := offset + len(txs); next < total {
		page.NextToken = strconv.Itoa(next)
	}
	return page, nil
}

// LatestRound returns the round of the most recent transaction.
func (l *Local) LatestRound() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastRound
}

// TransactionID derives the deterministic devnet transaction id: base32 of
// SHA-512/256 over the round, sender and length-prefixed arguments.
func TransactionID(round uint64, sender interfaces.Address, args [][]byte) string {
	h := sha512.New512_256()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], round)
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], uint64(len(sender)))
	h.Write(buf[:])
	h.Write([]byte(sender))
	for _, arg := range args {
		binary.BigEndian.PutUint64(buf[:], uint64(len(arg)))
		h.Write(buf[:])
		h.Write(arg)
	}
	return txIDEncoding.EncodeToString(h.Sum(nil))
}
