// Package ledger connects the registry to an append-only ledger.
//
// Local is an in-process, single-writer devnet: every submitted call is
// decoded, executed by a registry.Machine and, if accepted, appended to a
// TransactionLog with a fresh round, timestamp and deterministic transaction
// id. Rejected calls are never appended. Local serves the appended log back
// through the interfaces.Indexer contract, so history reconstruction runs the
// same code against the devnet as against a real indexer.
//
// SQLiteStore persists both the record store and the transaction log so a
// devnet survives restarts.
//
// AlgodSubmitter signs application calls and submits them to an Algorand node,
// waiting for confirmation and decoding the method's return value.
package ledger
