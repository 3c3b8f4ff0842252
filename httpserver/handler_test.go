package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/vehicle-registry/history"
	"github.com/ruteri/vehicle-registry/interfaces"
	"github.com/ruteri/vehicle-registry/ledger"
	"github.com/ruteri/vehicle-registry/metrics"
	"github.com/ruteri/vehicle-registry/registry"
	"github.com/ruteri/vehicle-registry/storage"
)

const testApp interfaces.ApplicationID = 1001

type mockLookup struct {
	mock.Mock
}

func (m *mockLookup) Lookup(ctx context.Context, registration interfaces.Registration) (*interfaces.VehicleData, error) {
	args := m.Called(ctx, registration)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.VehicleData), args.Error(1)
}

type envelope struct {
	OK      bool                    `json:"ok"`
	Data    json.RawMessage         `json:"data"`
	Message string                  `json:"message"`
	Error   *interfaces.ResultError `json:"error"`
}

type testEnv struct {
	srv     *httptest.Server
	metrics *metrics.Metrics
	lookup  *mockLookup
}

func newTestEnv(t *testing.T, withArchive bool) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	tick := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	l, err := ledger.NewLocal(ctx, testApp, registry.NewMemoryStore(), ledger.NewMemoryLog(), logger)
	require.NoError(t, err)
	l.WithClock(func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	})

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics("test", reg)
	reconstructor := history.NewReconstructor(history.Config{ApplicationID: testApp, ExplorerURL: "https://lora.algokit.io/testnet"}, l, m, logger)

	lookup := &mockLookup{}
	cfg := HandlerConfig{
		Registry: registry.NewClient(l, "https://lora.algokit.io/testnet", logger),
		Records:  l,
		History:  history.NewService(history.ServiceConfig{}, reconstructor, m, logger),
		Lookup:   lookup,
		Metrics:  m,
	}
	if withArchive {
		backend, err := storage.NewFileBackend(t.TempDir(), logger)
		require.NoError(t, err)
		cfg.Archive = history.NewArchive(backend, logger)
	}

	server, err := New(&HTTPServerConfig{Log: logger, Gatherer: reg}, NewHandler(cfg, logger))
	require.NoError(t, err)

	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, metrics: m, lookup: lookup}
}

func (e *testEnv) call(t *testing.T, method, path string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func TestHandler_RegistryLifecycle(t *testing.T) {
	env := newTestEnv(t, false)

	status, res := env.call(t, http.MethodPost, "/api/vehicles/12d-12345/register", map[string]string{"caller": "A"})
	require.Equal(t, http.StatusOK, status)
	require.True(t, res.OK)
	assert.Equal(t, "Vehicle 12D12345 registered successfully to A", res.Message)

	var receipt interfaces.Receipt
	require.NoError(t, json.Unmarshal(res.Data, &receipt))
	assert.Equal(t, interfaces.Registration("12D12345"), receipt.Registration)
	assert.NotEmpty(t, receipt.TxID)
	assert.Equal(t, "https://lora.algokit.io/testnet/transaction/"+receipt.TxID, receipt.ExplorerURL)

	status, res = env.call(t, http.MethodPost, "/api/vehicles/12D12345/register", map[string]string{"caller": "B"})
	assert.Equal(t, http.StatusConflict, status)
	require.NotNil(t, res.Error)
	assert.Equal(t, interfaces.KindAlreadyRegistered, res.Error.Kind)
	assert.Equal(t, interfaces.OpRegister, res.Error.Operation)
	assert.Equal(t, interfaces.Registration("12D12345"), res.Error.Registration)

	status, res = env.call(t, http.MethodPost, "/api/vehicles/12D12345/transfer", map[string]string{"caller": "B", "new_owner": "B"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, interfaces.KindNotOwner, res.Error.Kind)

	status, res = env.call(t, http.MethodPost, "/api/vehicles/12D12345/transfer", map[string]string{"caller": "A", "new_owner": "C"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "12D12345 ownership transferred to C", res.Message)

	status, res = env.call(t, http.MethodPost, "/api/vehicles/12D12345/service", map[string]string{"caller": "C", "service_details": "oil-change"})
	require.Equal(t, http.StatusOK, status)
	assert.Regexp(t, `^Service record 'oil-change' added for 12D12345 at \d+$`, res.Message)

	status, res = env.call(t, http.MethodPost, "/api/vehicles/99Z99999/service", map[string]string{"caller": "C", "service_details": "oil-change"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, interfaces.KindNotFound, res.Error.Kind)

	env.lookup.On("Lookup", mock.Anything, interfaces.Registration("12D12345")).
		Return(&interfaces.VehicleData{Registration: "12D12345", Make: "Volkswagen", Model: "Golf", Year: 2012}, nil)

	status, res = env.call(t, http.MethodGet, "/api/vehicles/12D12345", nil)
	require.Equal(t, http.StatusOK, status)
	var vehicle struct {
		Record interfaces.VehicleRecord `json:"record"`
		Static *interfaces.VehicleData  `json:"static"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &vehicle))
	assert.Equal(t, interfaces.Address("C"), vehicle.Record.Owner)
	assert.Equal(t, uint64(1), vehicle.Record.ServiceCount)
	require.NotNil(t, vehicle.Static)
	assert.Equal(t, "Golf", vehicle.Static.Model)

	status, res = env.call(t, http.MethodGet, "/api/vehicles/12D12345/history", nil)
	require.Equal(t, http.StatusOK, status)
	var hist interfaces.History
	require.NoError(t, json.Unmarshal(res.Data, &hist))
	require.Len(t, hist.Events, 3)
	assert.Equal(t, interfaces.EventService, hist.Events[0].Type)
	assert.Equal(t, interfaces.EventTransfer, hist.Events[1].Type)
	assert.Equal(t, interfaces.EventRegister, hist.Events[2].Type)
	assert.Equal(t, "3 events for 12D12345", res.Message)

	assert.Equal(t, 3.0, testutil.ToFloat64(env.metrics.RegistryOperations.WithLabelValues("register", "ok"))+
		testutil.ToFloat64(env.metrics.RegistryOperations.WithLabelValues("transfer", "ok"))+
		testutil.ToFloat64(env.metrics.RegistryOperations.WithLabelValues("service", "ok")))
	env.lookup.AssertExpectations(t)
}

func TestHandler_VehicleLookupFailureIsIgnored(t *testing.T) {
	env := newTestEnv(t, false)

	status, _ := env.call(t, http.MethodPost, "/api/vehicles/AB1/register", map[string]string{"caller": "A"})
	require.Equal(t, http.StatusOK, status)

	env.lookup.On("Lookup", mock.Anything, interfaces.Registration("AB1")).Return(nil, errors.New("connection refused"))

	status, res := env.call(t, http.MethodGet, "/api/vehicles/AB1", nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotContains(t, string(res.Data), `"static"`)

	status, res = env.call(t, http.MethodGet, "/api/vehicles/ZZ9", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, interfaces.KindNotFound, res.Error.Kind)
}

func TestHandler_InvalidInput(t *testing.T) {
	env := newTestEnv(t, false)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"malformed registration", http.MethodPost, "/api/vehicles/AB!1/register", map[string]string{"caller": "A"}},
		{"missing caller", http.MethodPost, "/api/vehicles/AB1/register", map[string]string{}},
		{"missing new owner", http.MethodPost, "/api/vehicles/AB1/transfer", map[string]string{"caller": "A"}},
		{"missing service details", http.MethodPost, "/api/vehicles/AB1/service", map[string]string{"caller": "A"}},
		{"body not json", http.MethodPost, "/api/vehicles/AB1/register", "not an object"},
		{"history of malformed registration", http.MethodGet, "/api/vehicles/AB!1/history", nil},
		{"record of malformed registration", http.MethodGet, "/api/vehicles/AB!1", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, res := env.call(t, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.False(t, res.OK)
			require.NotNil(t, res.Error)
			assert.Equal(t, interfaces.KindInvalidInput, res.Error.Kind)
		})
	}
}

func TestHandler_HistoryUnavailable(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	provider := &history.MockHistoryProvider{}
	provider.On("History", mock.Anything, interfaces.Registration("AB1")).Return(nil, &interfaces.RegistryError{
		Kind:         interfaces.KindHistorySourceUnavailable,
		Op:           interfaces.OpHistory,
		Registration: "AB1",
		Reason:       "indexer unreachable",
	})

	server, err := New(&HTTPServerConfig{Log: logger}, NewHandler(HandlerConfig{History: provider}, logger))
	require.NoError(t, err)
	srv := httptest.NewServer(server.Handler())
	defer srv.Close()

	env := &testEnv{srv: srv}
	status, res := env.call(t, http.MethodGet, "/api/vehicles/AB1/history", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, interfaces.KindHistorySourceUnavailable, res.Error.Kind)
	assert.Equal(t, "Error: indexer unreachable", res.Error.Message)
}

func TestHandler_Snapshots(t *testing.T) {
	env := newTestEnv(t, true)

	status, _ := env.call(t, http.MethodPost, "/api/vehicles/AB1/register", map[string]string{"caller": "A"})
	require.Equal(t, http.StatusOK, status)

	status, res := env.call(t, http.MethodPost, "/api/vehicles/AB1/history/snapshots", nil)
	require.Equal(t, http.StatusCreated, status)
	var snapshot struct {
		ContentID string `json:"content_id"`
		Events    int    `json:"events"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &snapshot))
	assert.Len(t, snapshot.ContentID, 64)
	assert.Equal(t, 1, snapshot.Events)

	status, res = env.call(t, http.MethodGet, "/api/history/snapshots/"+snapshot.ContentID, nil)
	require.Equal(t, http.StatusOK, status)
	var hist interfaces.History
	require.NoError(t, json.Unmarshal(res.Data, &hist))
	assert.Equal(t, interfaces.Registration("AB1"), hist.Registration)
	require.Len(t, hist.Events, 1)

	missing := interfaces.ComputeID([]byte("missing")).String()
	status, res = env.call(t, http.MethodGet, "/api/history/snapshots/"+missing, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, interfaces.KindNotFound, res.Error.Kind)

	status, _ = env.call(t, http.MethodGet, "/api/history/snapshots/nothex", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestHandler_SnapshotsDisabled(t *testing.T) {
	env := newTestEnv(t, false)

	status, res := env.call(t, http.MethodPost, "/api/vehicles/AB1/history/snapshots", nil)
	assert.Equal(t, http.StatusNotImplemented, status)
	assert.False(t, res.OK)
}

func TestHandler_InfoAndServiceTypes(t *testing.T) {
	env := newTestEnv(t, false)

	status, res := env.call(t, http.MethodGet, "/api/info?caller=A", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, registry.InfoString, res.Message)

	status, res = env.call(t, http.MethodGet, "/api/service-types", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(res.Data), "oil-change")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, StatusFor(interfaces.KindAlreadyRegistered))
	assert.Equal(t, http.StatusNotFound, StatusFor(interfaces.KindNotFound))
	assert.Equal(t, http.StatusForbidden, StatusFor(interfaces.KindNotOwner))
	assert.Equal(t, http.StatusBadRequest, StatusFor(interfaces.KindInvalidInput))
	assert.Equal(t, http.StatusServiceUnavailable, StatusFor(interfaces.KindHistorySourceUnavailable))
	assert.Equal(t, http.StatusBadGateway, StatusFor(interfaces.KindSubmissionFailed))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(interfaces.KindInternal))
}
