// Package history rebuilds a vehicle's timeline from the ledger.
//
// Reconstructor scans every application call the indexer reports for the
// registry program, decodes each one with txcodec, keeps the calls whose
// registration argument equals the requested registration after
// normalization, and orders the resulting events newest first (timestamp,
// then round, then transaction id). Undecodable calls are reported as
// diagnostics instead of events. Any indexer failure aborts the scan with a
// HistorySourceUnavailable error; partial results are never returned.
//
// Reconstruction is a pure function of the transactions observed: running it
// twice yields the same ids in the same order, and running it after more
// transactions were appended yields a superset that keeps the prior relative
// order.
//
// Service adds request coalescing and an opt-in stale fallback, Watcher polls
// a registration and publishes new snapshots, Replay rebuilds the current
// record from events, and Archive stores snapshots in a content-addressed
// storage backend.
package history
