package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/ruteri/vehicle-registry/interfaces"
	"github.com/ruteri/vehicle-registry/registry"
	"github.com/ruteri/vehicle-registry/txcodec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testApp interfaces.ApplicationID = 1001

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stepClock struct {
	t time.Time
}

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(10 * time.Second)
	return c.t
}

func newTestLocal(t *testing.T) *Local {
	clock := &stepClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	l, err := NewLocal(context.Background(), testApp, registry.NewMemoryStore(), NewMemoryLog(), testLogger())
	require.NoError(t, err)
	return l.WithClock(clock.now)
}

func submitOp(t *testing.T, l *Local, op interfaces.Operation, sender interfaces.Address) (*interfaces.Submission, error) {
	args, err := txcodec.Encode(op)
	require.NoError(t, err)
	return l.Submit(context.Background(), interfaces.ApplicationCall{Sender: sender, Args: args})
}

func TestLocal_SubmitAppendsAcceptedCalls(t *testing.T) {
	l := newTestLocal(t)

	sub, err := submitOp(t, l, interfaces.RegisterOp("12D12345"), "ALICE")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), sub.Round)
	assert.Len(t, sub.TxID, 52)
	assert.Equal(t, "Vehicle 12D12345 registered successfully to ALICE", sub.ReturnValue)

	_, err = submitOp(t, l, interfaces.RegisterOp("12D12345"), "BOB")
	assert.ErrorIs(t, err, interfaces.ErrAlreadyRegistered)

	sub, err = submitOp(t, l, interfaces.TransferOp("12D12345", "CAROL"), "ALICE")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), sub.Round)

	page, err := l.SearchApplicationTransactions(context.Background(), testApp, 0, "")
	require.NoError(t, err)
	require.Len(t, page.Transactions, 2)
	assert.Empty(t, page.NextToken)
	assert.Equal(t, interfaces.Address("ALICE"), page.Transactions[0].Sender)
	assert.True(t, page.Transactions[1].Timestamp.After(page.Transactions[0].Timestamp))

	record, err := l.Record(context.Background(), "12D12345")
	require.NoError(t, err)
	assert.Equal(t, interfaces.Address("CAROL"), record.Owner)
}

func TestLocal_RejectsUnknownSelector(t *testing.T) {
	l := newTestLocal(t)

	_, err := l.Submit(context.Background(), interfaces.ApplicationCall{
		Sender: "ALICE",
		Args:   [][]byte{{0xde, 0xad, 0xbe, 0xef}},
	})
	assert.ErrorIs(t, err, interfaces.ErrDecodeFailure)
	assert.Equal(t, uint64(0), l.LatestRound())
}

func TestLocal_Pagination(t *testing.T) {
	l := newTestLocal(t)
	for _, reg := range []interfaces.Registration{"A1", "A2", "A3", "A4", "A5"} {
		_, err := submitOp(t, l, interfaces.RegisterOp(reg), "ALICE")
		require.NoError(t, err)
	}

	var (
		seen  []string
		token string
		pages int
	)
	for {
		page, err := l.SearchApplicationTransactions(context.Background(), testApp, 2, token)
		require.NoError(t, err)
		pages++
		for _, tx := range page.Transactions {
			seen = append(seen, tx.ID)
		}
		if page.NextToken == "" {
			break
		}
		token = page.NextToken
	}
	assert.Equal(t, 3, pages)
	assert.Len(t, seen, 5)

	other, err := l.SearchApplicationTransactions(context.Background(), testApp+1, 2, "")
	require.NoError(t, err)
	assert.Empty(t, other.Transactions)

	_, err = l.SearchApplicationTransactions(context.Background(), testApp, 2, "not-a-token")
	assert.Error(t, err)
}

func TestLocal_PublishesAppendedTransactions(t *testing.T) {
	l := newTestLocal(t)
	ch := make(chan interfaces.LedgerTransaction, 4)
	sub := l.SubscribeTransactions(ch)
	defer sub.Unsubscribe()

	submission, err := submitOp(t, l, interfaces.RegisterOp("EV123"), "ALICE")
	require.NoError(t, err)

	select {
	case tx := <-ch:
		assert.Equal(t, submission.TxID, tx.ID)
	case <-time.After(time.Second):
		t.Fatal("no transaction published")
	}
}

func TestTransactionID_Deterministic(t *testing.T) {
	args := [][]byte{{1, 2, 3}}
	assert.Equal(t, TransactionID(1, "A", args), TransactionID(1, "A", args))
	assert.NotEqual(t, TransactionID(1, "A", args), TransactionID(2, "A", args))
	assert.NotEqual(t, TransactionID(1, "A", args), TransactionID(1, "B", args))
}

func TestLocal_ResumesFromSQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "devnet.db")

	store, err := OpenSQLiteStore(ctx, path, testLogger())
	require.NoError(t, err)
	l, err := NewLocal(ctx, testApp, store, store, testLogger())
	require.NoError(t, err)

	_, err = submitOp(t, l, interfaces.RegisterOp("KY05ABC"), "ALICE")
	require.NoError(t, err)
	_, err = submitOp(t, l, interfaces.AddServiceOp("KY05ABC", "oil-change"), "ALICE")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = OpenSQLiteStore(ctx, path, testLogger())
	require.NoError(t, err)
	defer store.Close()
	l, err = NewLocal(ctx, testApp, store, store, testLogger())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), l.LatestRound())

	record, err := l.Record(ctx, "KY05ABC")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), record.ServiceCount)

	_, err = submitOp(t, l, interfaces.RegisterOp("KY05ABC"), "BOB")
	assert.ErrorIs(t, err, interfaces.ErrAlreadyRegistered)

	sub, err := submitOp(t, l, interfaces.TransferOp("KY05ABC", "BOB"), "ALICE")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), sub.Round)
}

// flakyLog is a MemoryLog whose Append fails while failing is set.
type flakyLog struct {
	*MemoryLog
	failing bool
}

func (l *flakyLog) Append(ctx context.Context, tx interfaces.LedgerTransaction) error {
	if l.failing {
		return errors.New("disk full")
	}
	return l.MemoryLog.Append(ctx, tx)
}

func TestLocal_AppendFailureLeavesNoPartialState(t *testing.T) {
	ctx := context.Background()
	store := registry.NewMemoryStore()
	txlog := &flakyLog{MemoryLog: NewMemoryLog(), failing: true}
	l, err := NewLocal(ctx, testApp, store, txlog, testLogger())
	require.NoError(t, err)

	_, err = submitOp(t, l, interfaces.RegisterOp("12D12345"), "ALICE")
	assert.ErrorIs(t, err, interfaces.ErrSubmissionFailed)

	_, err = l.Record(ctx, "12D12345")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
	n, err := txlog.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, l.LatestRound())

	txlog.failing = false
	sub, err := submitOp(t, l, interfaces.RegisterOp("12D12345"), "ALICE")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), sub.Round)

	txlog.failing = true
	_, err = submitOp(t, l, interfaces.TransferOp("12D12345", "BOB"), "ALICE")
	assert.ErrorIs(t, err, interfaces.ErrSubmissionFailed)

	record, err := l.Record(ctx, "12D12345")
	require.NoError(t, err)
	assert.Equal(t, interfaces.Address("ALICE"), record.Owner)
	n, err = txlog.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLocal_SQLiteCommitIsAtomic(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLiteStore(ctx, filepath.Join(t.TempDir(), "devnet.db"), testLogger())
	require.NoError(t, err)
	defer store.Close()

	// Occupy the id the next register call will be assigned so its insert fails.
	args, err := txcodec.Encode(interfaces.RegisterOp("12D12345"))
	require.NoError(t, err)
	info, err := txcodec.Encode(interfaces.GetInfoOp())
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, interfaces.LedgerTransaction{
		ID:            TransactionID(2, "ALICE", args),
		Sender:        "BOB",
		Round:         1,
		Timestamp:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		ApplicationID: testApp,
		Args:          info,
	}))

	l, err := NewLocal(ctx, testApp, store, store, testLogger())
	require.NoError(t, err)
	require.NotNil(t, l.committer)

	_, err = submitOp(t, l, interfaces.RegisterOp("12D12345"), "ALICE")
	assert.ErrorIs(t, err, interfaces.ErrSubmissionFailed)

	_, err = store.Get(ctx, "12D12345")
	assert.ErrorIs(t, err, interfaces.ErrRecordNotFound)
	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
