// Package common holds process-wide build metadata and logger setup shared by
// all binaries.
package common

var (
	// PackageName is the default log service tag.
	PackageName = "vehicle-registry"

	// MetricsNamespace prefixes every Prometheus metric.
	MetricsNamespace = "vehicle_registry"

	// Version is overridden at build time via -ldflags.
	Version = "dev"
)
