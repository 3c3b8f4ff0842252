package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ruteri/vehicle-registry/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore_Records(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLiteStore(ctx, filepath.Join(t.TempDir(), "records.db"), testLogger())
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Get(ctx, "NONE")
	assert.ErrorIs(t, err, interfaces.ErrRecordNotFound)

	record := &interfaces.VehicleRecord{
		Registration: "12D12345",
		Owner:        "ALICE",
		Registered:   true,
		RegisteredAt: time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC),
	}
	require.NoError(t, store.Put(ctx, record))

	record.Owner = "BOB"
	record.ServiceCount = 3
	require.NoError(t, store.Put(ctx, record))

	got, err := store.Get(ctx, "12D12345")
	require.NoError(t, err)
	assert.Equal(t, record, got)
}

func TestSQLiteStore_TransactionLog(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLiteStore(ctx, filepath.Join(t.TempDir(), "log.db"), testLogger())
	require.NoError(t, err)
	defer store.Close()

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	tx := interfaces.LedgerTransaction{
		ID:            "TX1",
		Sender:        "ALICE",
		Round:         9,
		Timestamp:     time.Unix(1_700_000_000, 0).UTC(),
		ApplicationID: testApp,
		Args:          [][]byte{{0x11, 0xe0, 0x29, 0xfd}, {0x00, 0x01, 'A'}},
	}
	require.NoError(t, store.Append(ctx, tx))
	assert.Error(t, store.Append(ctx, tx), "duplicate ids are rejected")

	txs, err := store.Range(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, tx, txs[0])

	txs, err = store.Range(ctx, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, txs)
}
