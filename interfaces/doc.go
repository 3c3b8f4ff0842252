// Package interfaces defines the core types and interfaces of the vehicle
// registry, separating contracts between components from their
// implementations.
//
// # Registry
//
// VehicleRecord is the per-registration state kept by a RecordStore.
// VehicleRegistry is implemented both by the local state machine and by
// clients that submit operations to a ledger. Every mutating call returns a
// Receipt on success or a *RegistryError on failure.
//
// # Ledger
//
// Operations travel to the ledger as an ApplicationCall (method selector plus
// ARC-4 encoded string arguments) through a Submitter. Historical calls are
// read back through an Indexer as LedgerTransaction pages.
//
// # History
//
// HistoryEvent and History are derived views rebuilt from indexer data on
// every query. They are never persisted by the registry itself.
//
// # Storage
//
// StorageBackend provides content-addressed storage used to archive history
// snapshots (file, S3, IPFS).
package interfaces
