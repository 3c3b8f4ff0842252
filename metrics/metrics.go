package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/ruteri/vehicle-registry/interfaces"
)

// Metrics holds the registry service collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	RegistryOperations    *prometheus.CounterVec
	HistoryScanDuration   prometheus.Histogram
	HistoryScanned        prometheus.Counter
	HistoryDecodeFailures prometheus.Counter
	HistoryRequests       *prometheus.CounterVec
	VehicleLookups        *prometheus.CounterVec
}

// NewMetrics registers all collectors with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RegistryOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_operations_total",
			Help:      "Registry operations by operation and outcome kind",
		}, []string{"op", "outcome"}),
		HistoryScanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "history_scan_duration_seconds",
			Help:      "Duration of full indexer scans for history reconstruction",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		HistoryScanned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_scanned_transactions_total",
			Help:      "Application transactions scanned during history reconstruction",
		}),
		HistoryDecodeFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_decode_failures_total",
			Help:      "Application transactions that could not be decoded",
		}),
		HistoryRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_requests_total",
			Help:      "History requests by result (ok, shared, degraded, error)",
		}, []string{"result"}),
		VehicleLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vehicle_lookups_total",
			Help:      "Static vehicle data lookups by result (hit, miss, not_found, error)",
		}, []string{"result"}),
	}
}

// RecordOperation counts a registry operation outcome. err may be nil.
func (m *Metrics) RecordOperation(op interfaces.OpKind, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = string(interfaces.KindOf(err))
	}
	m.RegistryOperations.WithLabelValues(string(op), outcome).Inc()
}

// ObserveHistoryScan records a completed scan.
// Call with time.Now() at the start of the scan.
func (m *Metrics) ObserveHistoryScan(start time.Time, scanned, decodeFailures int) {
	if m == nil {
		return
	}
	m.HistoryScanDuration.Observe(time.Since(start).Seconds())
	m.HistoryScanned.Add(float64(scanned))
	m.HistoryDecodeFailures.Add(float64(decodeFailures))
}

// RecordHistoryRequest counts a history request result.
func (m *Metrics) RecordHistoryRequest(result string) {
	if m == nil {
		return
	}
	m.HistoryRequests.WithLabelValues(result).Inc()
}

// RecordVehicleLookup counts a static data lookup result.
func (m *Metrics) RecordVehicleLookup(result string) {
	if m == nil {
		return
	}
	m.VehicleLookups.WithLabelValues(result).Inc()
}
