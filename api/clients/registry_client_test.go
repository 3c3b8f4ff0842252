package clients

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/vehicle-registry/history"
	"github.com/ruteri/vehicle-registry/httpserver"
	"github.com/ruteri/vehicle-registry/interfaces"
	"github.com/ruteri/vehicle-registry/ledger"
	"github.com/ruteri/vehicle-registry/registry"
	"github.com/ruteri/vehicle-registry/storage"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tick := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	l, err := ledger.NewLocal(context.Background(), 7, registry.NewMemoryStore(), ledger.NewMemoryLog(), logger)
	require.NoError(t, err)
	l.WithClock(func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	})

	backend, err := storage.NewFileBackend(t.TempDir(), logger)
	require.NoError(t, err)

	handler := httpserver.NewHandler(httpserver.HandlerConfig{
		Registry: registry.NewClient(l, "", logger),
		Records:  l,
		History:  history.NewReconstructor(history.Config{ApplicationID: 7}, l, nil, logger),
		Archive:  history.NewArchive(backend, logger),
	}, logger)
	server, err := httpserver.New(&httpserver.HTTPServerConfig{Log: logger}, handler)
	require.NoError(t, err)

	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestRegistryClient_RoundTrip(t *testing.T) {
	ctx := context.Background()
	client := NewRegistryClient(newTestServer(t).URL+"/", nil)

	var _ interfaces.VehicleRegistry = client
	var _ interfaces.RecordReader = client
	var _ interfaces.HistoryProvider = client

	receipt, err := client.Register(ctx, "12D12345", "A")
	require.NoError(t, err)
	assert.Equal(t, "Vehicle 12D12345 registered successfully to A", receipt.Message)
	assert.NotEmpty(t, receipt.TxID)

	_, err = client.Register(ctx, "12D12345", "B")
	require.ErrorIs(t, err, interfaces.ErrAlreadyRegistered)
	var regErr *interfaces.RegistryError
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, interfaces.OpRegister, regErr.Op)
	assert.Equal(t, interfaces.Registration("12D12345"), regErr.Registration)
	assert.Equal(t, "Error: Vehicle 12D12345 is already registered", err.Error())

	_, err = client.Transfer(ctx, "12D12345", "B", "B")
	assert.ErrorIs(t, err, interfaces.ErrNotOwner)

	_, err = client.Transfer(ctx, "12D12345", "C", "A")
	require.NoError(t, err)

	_, err = client.AddServiceRecord(ctx, "12D12345", "oil-change", "A")
	assert.ErrorIs(t, err, interfaces.ErrNotOwner)
	_, err = client.AddServiceRecord(ctx, "12D12345", "oil-change", "C")
	require.NoError(t, err)

	record, err := client.Record(ctx, "12D12345")
	require.NoError(t, err)
	assert.Equal(t, interfaces.Address("C"), record.Owner)
	assert.Equal(t, uint64(1), record.ServiceCount)

	_, err = client.Record(ctx, "99Z99999")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	info, err := client.GetInfo(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, registry.InfoString, info.Message)

	hist, err := client.History(ctx, "12D12345")
	require.NoError(t, err)
	require.Len(t, hist.Events, 3)
	assert.Equal(t, interfaces.EventService, hist.Events[0].Type)

	empty, err := client.History(ctx, "99Z99999")
	require.NoError(t, err)
	assert.NotNil(t, empty.Events)
	assert.Empty(t, empty.Events)

	snapshot, err := client.ExportSnapshot(ctx, "12D12345")
	require.NoError(t, err)
	id, err := interfaces.NewContentIDFromHex(snapshot.ContentID)
	require.NoError(t, err)

	archived, err := client.Snapshot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, hist.Events[0].ID, archived.Events[0].ID)

	types, err := client.ServiceTypes(ctx)
	require.NoError(t, err)
	assert.Contains(t, types, "oil-change")
}

func TestRegistryClient_NonEnvelopeResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewRegistryClient(srv.URL, nil).GetInfo(context.Background(), "A")
	assert.ErrorContains(t, err, "non-envelope response 502")
}
