package vehicleapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/ruteri/vehicle-registry/interfaces"
	"github.com/ruteri/vehicle-registry/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newLookupServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/vehicles/12D12345":
			_, _ = io.WriteString(w, `{"success":true,"data":{"registration":"12-D-12345","vin":"WVWZZZ1JZXW000001","make":"Volkswagen","model":"Golf","year":2012,"color":"Silver","fuelType":"Diesel","engineSize":"1.6"}}`)
		case "/api/vehicles/00X0":
			_, _ = io.WriteString(w, `{"success":false,"message":"no match"}`)
		case "/api/vehicles/500X1":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Lookup(t *testing.T) {
	var calls atomic.Int32
	srv := newLookupServer(t, &calls)

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics("test", reg)
	client, err := NewClient(Config{BaseURL: srv.URL + "/"}, nil, m, testLogger())
	require.NoError(t, err)

	data, err := client.Lookup(context.Background(), "12d-12345")
	require.NoError(t, err)
	assert.Equal(t, interfaces.Registration("12D12345"), data.Registration)
	assert.Equal(t, "Volkswagen", data.Make)
	assert.Equal(t, "Golf", data.Model)
	assert.Equal(t, 2012, data.Year)
	assert.Equal(t, "Silver", data.Colour)
	assert.Equal(t, "Diesel", data.FuelType)

	data.Make = "mutated"
	again, err := client.Lookup(context.Background(), "12D12345")
	require.NoError(t, err)
	assert.Equal(t, "Volkswagen", again.Make, "cached entries are copied out")
	assert.Equal(t, int32(1), calls.Load())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.VehicleLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VehicleLookups.WithLabelValues("hit")))
}

func TestClient_NotFoundIsCached(t *testing.T) {
	var calls atomic.Int32
	srv := newLookupServer(t, &calls)
	client, err := NewClient(Config{BaseURL: srv.URL}, nil, nil, testLogger())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = client.Lookup(context.Background(), "99Z99999")
		assert.ErrorIs(t, err, interfaces.ErrVehicleNotFound)
	}
	assert.Equal(t, int32(1), calls.Load())

	_, err = client.Lookup(context.Background(), "00X0")
	assert.ErrorIs(t, err, interfaces.ErrVehicleNotFound)
}

func TestClient_Failures(t *testing.T) {
	var calls atomic.Int32
	srv := newLookupServer(t, &calls)
	client, err := NewClient(Config{BaseURL: srv.URL}, nil, nil, testLogger())
	require.NoError(t, err)

	_, err = client.Lookup(context.Background(), "500X1")
	assert.ErrorIs(t, err, ErrLookupFailed)
	_, err = client.Lookup(context.Background(), "500X1")
	assert.ErrorIs(t, err, ErrLookupFailed)
	assert.Equal(t, int32(2), calls.Load(), "failures are not cached")

	_, err = client.Lookup(context.Background(), "not valid!")
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput)

	_, err = NewClient(Config{BaseURL: "not a url"}, nil, nil, testLogger())
	assert.Error(t, err)
}
